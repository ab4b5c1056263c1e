package main

import (
	"encoding/json"
	"runtime"
	"strings"
	"testing"

	"glim-hq/cards/pkg/cli"
)

func TestVersionCommand_Text(t *testing.T) {
	out, _, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}

	for _, want := range []string{"Glim " + Version, "Git Commit: " + GitCommit, "Go Version: " + runtime.Version()} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestVersionCommand_JSON(t *testing.T) {
	orig := Version
	Version = "1.2.3-test"
	t.Cleanup(func() { Version = orig })

	out, _, err := execute(t, "version", "--output", "json")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}

	var info versionInfo
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if info.Version != "1.2.3-test" {
		t.Errorf("version = %q", info.Version)
	}
	if info.Platform != runtime.GOOS+"/"+runtime.GOARCH {
		t.Errorf("platform = %q", info.Platform)
	}
}

func TestVersionCommand_BadFormat(t *testing.T) {
	_, _, err := execute(t, "version", "-o", "xml")
	if code := cli.ExitCode(err); code != cli.ExitConfig {
		t.Errorf("exit code = %d, want %d (err %v)", code, cli.ExitConfig, err)
	}
}
