package card

import (
	"context"
	"encoding/xml"
	"errors"
	"strings"
	"testing"

	"glim-hq/cards/pkg/upstream"
)

func strPtr(s string) *string { return &s }

func TestFormatCount(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "0"},
		{820, "820"},
		{999, "999"},
		{1000, "1.0k"},
		{1234, "1.2k"},
		{9949, "9.9k"},
		{10000, "10k"},
		{12345, "12k"},
		{215000, "215k"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatCount(tt.in); got != tt.want {
				t.Errorf("FormatCount(%d) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestWrapText(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width int
		want  string
	}{
		{
			name:  "empty",
			text:  "",
			width: 65,
			want:  `<tspan x="16" dy="-0.5em"></tspan>`,
		},
		{
			name:  "single line",
			text:  "A tiny   service",
			width: 65,
			want:  `<tspan x="16" dy="-0.5em">A tiny service</tspan>`,
		},
		{
			name:  "wraps greedily",
			text:  "aaa bbb ccc ddd",
			width: 8,
			want: `<tspan x="16" dy="-0.5em">aaa bbb</tspan>` +
				`<tspan x="16" dy="1.4em">ccc ddd</tspan>`,
		},
		{
			name:  "three lines",
			text:  "one two three",
			width: 5,
			want: `<tspan x="16" dy="-0.5em">one</tspan>` +
				`<tspan x="16" dy="1.4em">two</tspan>` +
				`<tspan x="16" dy="3.3em">three</tspan>`,
		},
		{
			name:  "escapes markup",
			text:  "<b> & co",
			width: 65,
			want:  `<tspan x="16" dy="-0.5em">&lt;b&gt; &amp; co</tspan>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WrapText(tt.text, tt.width); got != tt.want {
				t.Errorf("WrapText() =\n%s\nwant\n%s", got, tt.want)
			}
		})
	}
}

func TestWrapText_LongFirstWordStartsOnSecondLine(t *testing.T) {
	got := wrapLines("supercalifragilistic word", 10)
	want := []string{"", "supercalifragilistic", "word"}
	if len(got) != len(want) {
		t.Fatalf("wrapLines() = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestColors(t *testing.T) {
	colors := DefaultColors()
	if colors.Len() < 40 {
		t.Errorf("Len() = %d, want the embedded table", colors.Len())
	}

	tests := []struct {
		lang string
		want string
	}{
		{"Go", "#00ADD8"},
		{"go", "#00ADD8"},
		{"C++", "#f34b7d"},
		{"C#", "#178600"},
		{"Rust", "#dea584"},
		{"Brainfunk", DefaultLanguageColor},
		{"", DefaultLanguageColor},
	}
	for _, tt := range tests {
		t.Run(tt.lang, func(t *testing.T) {
			if got := colors.For(tt.lang); got != tt.want {
				t.Errorf("For(%q) = %q, want %q", tt.lang, got, tt.want)
			}
		})
	}
}

func TestLoadColors_SkipsLanguagesWithoutColor(t *testing.T) {
	colors, err := LoadColors([]byte("Text:\n  type: prose\nGo:\n  color: \"#00ADD8\"\n"))
	if err != nil {
		t.Fatalf("LoadColors() error = %v", err)
	}
	if _, ok := colors.Lookup("Text"); ok {
		t.Error("language without color was loaded")
	}
	if colors.Len() != 1 {
		t.Errorf("Len() = %d, want 1", colors.Len())
	}

	if _, err := LoadColors([]byte("- not a map")); err == nil {
		t.Error("LoadColors() accepted a sequence")
	}
}

func TestMeaning_CacheKey(t *testing.T) {
	tests := []struct {
		name    string
		meaning Meaning
		want    string
	}{
		{"defaults", NewMeaning("Octocat", "Hello-World", "", "", 0), "octocat:hello-world/default:v1"},
		{"theme", NewMeaning("octocat", "hello-world", "Dark", FormatSVG, 1), "octocat:hello-world/dark:v1"},
		{"scaled", NewMeaning("octocat", "hello-world", "", FormatSVG, 1.5), "octocat:hello-world/default:v1@1.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.meaning.CacheKey(); got != tt.want {
				t.Errorf("CacheKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMeaning_Weight(t *testing.T) {
	short := NewMeaning("a", "b", "", "", 0)
	long := NewMeaning("kubernetes-sigs", "controller-runtime", "", "", 0)
	if short.Weight() <= long.Weight() {
		t.Errorf("short names weight %d, long names %d; short names should cost more",
			short.Weight(), long.Weight())
	}
}

func TestParseFormat(t *testing.T) {
	if f, ok := ParseFormat("SVG"); !ok || f != FormatSVG {
		t.Errorf("ParseFormat(SVG) = %q, %v", f, ok)
	}
	for _, ext := range []string{"js", "png", ""} {
		if _, ok := ParseFormat(ext); ok {
			t.Errorf("ParseFormat(%q) accepted", ext)
		}
	}
	if FormatSVG.ContentType() != "image/svg+xml" {
		t.Errorf("ContentType() = %q", FormatSVG.ContentType())
	}
}

func TestParseTheme(t *testing.T) {
	if _, err := ParseTheme("DARK"); err != nil {
		t.Errorf("ParseTheme(DARK) error = %v", err)
	}
	_, err := ParseTheme("neon")
	var themeErr *UnknownThemeError
	if !errors.As(err, &themeErr) {
		t.Fatalf("ParseTheme(neon) error = %v, want *UnknownThemeError", err)
	}
	if !strings.Contains(err.Error(), "default") {
		t.Errorf("error %q does not list available themes", err)
	}
}

func TestRender(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}

	repo := &upstream.Repository{
		Name:            "glim",
		Description:     strPtr("Generate <beautiful> cards & badges for your GitHub repositories, served fast and cached forever"),
		Language:        strPtr("Rust"),
		StargazersCount: 1234,
		ForksCount:      56,
	}

	out, err := r.Render(context.Background(), NewMeaning("Lucas", "glim", "", "", 0), repo)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	svg := string(out)

	for _, want := range []string{
		`width="500"`,
		`>glim</text>`,
		`fill="#dea584"`,
		`>Rust</text>`,
		`>1.2k</text>`,
		`>56</text>`,
		`&lt;beautiful&gt; cards &amp; badges`,
		`dy="1.4em"`,
	} {
		if !strings.Contains(svg, want) {
			t.Errorf("rendered card missing %q", want)
		}
	}

	if err := xml.Unmarshal(out, new(struct{ XMLName xml.Name })); err != nil {
		t.Errorf("rendered card is not well-formed XML: %v", err)
	}
}

func TestRender_NoLanguageAndScale(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatal(err)
	}

	out, err := r.Render(context.Background(), NewMeaning("o", "r", "dark", FormatSVG, 2), &upstream.Repository{Name: "r"})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	svg := string(out)

	if strings.Contains(svg, "<circle") {
		t.Error("language dot rendered without a language")
	}
	if !strings.Contains(svg, `width="1000"`) || !strings.Contains(svg, `height="220"`) {
		t.Error("scale not applied to dimensions")
	}
	if !strings.Contains(svg, `viewBox="0 0 500 110"`) {
		t.Error("view box changed with scale")
	}
	if !strings.Contains(svg, "#0d1117") {
		t.Error("dark theme not applied")
	}
}

func TestRender_UnknownTheme(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatal(err)
	}
	_, err = r.Render(context.Background(), NewMeaning("o", "r", "neon", "", 0), &upstream.Repository{})
	var themeErr *UnknownThemeError
	if !errors.As(err, &themeErr) {
		t.Errorf("Render() error = %v, want *UnknownThemeError", err)
	}
}
