package main

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"glim-hq/cards/pkg/card"
	"glim-hq/cards/pkg/cli"
)

const helloWorldJSON = `{
	"name": "hello-world",
	"full_name": "octocat/hello-world",
	"description": "My first repository",
	"language": "Go",
	"stargazers_count": 1500,
	"forks_count": 12,
	"owner": {"login": "octocat"}
}`

// fakeGitHub serves octocat/hello-world and 404s everything else.
func fakeGitHub(t *testing.T) *atomic.Int32 {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		switch r.URL.Path {
		case "/repos/octocat/hello-world", "/repos/octocat/spoon-knife":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(helloWorldJSON))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message": "Not Found"}`))
		}
	}))
	t.Cleanup(srv.Close)
	t.Setenv("GLIM_GITHUB_BASE_URL", srv.URL)
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("GLIM_GITHUB_TOKEN", "")
	return &calls
}

func TestParseRepositories(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		theme   string
		scale   float64
		want    []string
		wantErr string
	}{
		{"single", []string{"Octocat/Hello-World"}, "default", 1, []string{"octocat:hello-world/default:v1"}, ""},
		{"trailing slash", []string{"octocat/hello-world/"}, "dark", 1, []string{"octocat:hello-world/dark:v1"}, ""},
		{"several", []string{"a/b", "c/d"}, "default", 1, []string{"a:b/default:v1", "c:d/default:v1"}, ""},
		{"missing repo", []string{"octocat"}, "default", 1, nil, "repository"},
		{"extra segment", []string{"a/b/c"}, "default", 1, nil, "repository"},
		{"unknown theme", []string{"a/b"}, "neon", 1, nil, "theme"},
		{"scale too large", []string{"a/b"}, "default", 10, nil, "scale"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRepositories(tt.args, tt.theme, tt.scale)
			if tt.wantErr != "" {
				var cfgErr *cli.ConfigError
				if !errors.As(err, &cfgErr) || cfgErr.Field != tt.wantErr {
					t.Fatalf("error = %v, want config error on %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d meanings, want %d", len(got), len(tt.want))
			}
			for i, m := range got {
				if m.CacheKey() != tt.want[i] {
					t.Errorf("meaning %d = %q, want %q", i, m.CacheKey(), tt.want[i])
				}
			}
		})
	}
}

func TestCardFileName(t *testing.T) {
	if got := cardFileName(card.NewMeaning("Octocat", "Hello", "", "", 0)); got != "octocat_hello.svg" {
		t.Errorf("default theme = %q", got)
	}
	if got := cardFileName(card.NewMeaning("octocat", "hello", "dark", "", 0)); got != "octocat_hello_dark.svg" {
		t.Errorf("dark theme = %q", got)
	}
}

func TestCardCommand_Stdout(t *testing.T) {
	calls := fakeGitHub(t)

	out, _, err := execute(t, "card", "octocat/hello-world")
	if err != nil {
		t.Fatalf("card failed: %v", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(out), "<svg") {
		t.Errorf("stdout is not an SVG: %.80q", out)
	}
	if !strings.Contains(out, "hello-world") {
		t.Error("card does not name the repository")
	}
	if calls.Load() != 1 {
		t.Errorf("github calls = %d, want 1", calls.Load())
	}
}

func TestCardCommand_File(t *testing.T) {
	fakeGitHub(t)
	path := filepath.Join(t.TempDir(), "card.svg")

	if _, _, err := execute(t, "card", "octocat/hello-world", "--theme", "dark", "-o", path); err != nil {
		t.Fatalf("card failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "#0d1117") {
		t.Error("card does not use the dark background")
	}
}

func TestCardCommand_NotFound(t *testing.T) {
	fakeGitHub(t)

	_, _, err := execute(t, "card", "octocat/missing")
	if err == nil {
		t.Fatal("expected an error")
	}
	if code := cli.ExitCode(err); code != cli.ExitError {
		t.Errorf("exit code = %d, want %d", code, cli.ExitError)
	}
	if !strings.Contains(err.Error(), "octocat/missing") {
		t.Errorf("error %q does not name the repository", err)
	}
}

func TestCardCommand_Batch(t *testing.T) {
	fakeGitHub(t)
	dir := filepath.Join(t.TempDir(), "cards")

	_, stderr, err := execute(t, "card", "octocat/hello-world", "octocat/spoon-knife", "octocat/missing", "-o", dir)
	if err == nil || !strings.Contains(err.Error(), "1 of 3 cards failed") {
		t.Fatalf("error = %v, want one failure", err)
	}

	for _, name := range []string{"octocat_hello-world.svg", "octocat_spoon-knife.svg"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "octocat_missing.svg")); !os.IsNotExist(err) {
		t.Error("failed card was written")
	}
	if !strings.Contains(stderr, "✗ octocat/missing") || !strings.Contains(stderr, "(3/3)") {
		t.Errorf("progress output = %q", stderr)
	}
}

func TestCardCommand_BatchNeedsDirectory(t *testing.T) {
	_, _, err := execute(t, "card", "a/b", "c/d")
	if code := cli.ExitCode(err); code != cli.ExitConfig {
		t.Errorf("exit code = %d, want %d (err %v)", code, cli.ExitConfig, err)
	}
}
