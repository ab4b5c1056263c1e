package card

import (
	"fmt"
	"slices"
	"strings"
)

// DefaultTheme is used when a request names no theme.
const DefaultTheme = "default"

// Theme is a card color palette.
type Theme struct {
	Name       string
	Background string
	Border     string
	Title      string
	Text       string
	Muted      string
}

var themes = map[string]Theme{
	"default": {
		Name:       "default",
		Background: "#ffffff",
		Border:     "#d0d7de",
		Title:      "#0969da",
		Text:       "#59636e",
		Muted:      "#59636e",
	},
	"dark": {
		Name:       "dark",
		Background: "#0d1117",
		Border:     "#30363d",
		Title:      "#4493f8",
		Text:       "#9198a1",
		Muted:      "#9198a1",
	},
}

// UnknownThemeError is returned for a theme name with no palette.
type UnknownThemeError struct {
	Name string
}

// Error implements the error interface.
func (e *UnknownThemeError) Error() string {
	return fmt.Sprintf("unknown theme %q (available: %s)", e.Name, strings.Join(ThemeNames(), ", "))
}

// ParseTheme looks up a theme by name. An empty name selects DefaultTheme.
func ParseTheme(name string) (Theme, error) {
	if name == "" {
		name = DefaultTheme
	}
	t, ok := themes[strings.ToLower(name)]
	if !ok {
		return Theme{}, &UnknownThemeError{Name: name}
	}
	return t, nil
}

// ThemeNames returns the available theme names, sorted.
func ThemeNames() []string {
	names := make([]string, 0, len(themes))
	for name := range themes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
