package card

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultLanguageColor is used for languages without a known color.
const DefaultLanguageColor = "#f1e05a"

//go:embed languages.yml
var languagesYAML []byte

type language struct {
	Type  string `yaml:"type"`
	Color string `yaml:"color"`
}

// Colors maps language names to their linguist colors.
type Colors struct {
	exact  map[string]string
	folded map[string]string
}

// LoadColors parses a linguist-style languages document. Languages without
// a color are skipped.
func LoadColors(data []byte) (*Colors, error) {
	var langs map[string]language
	if err := yaml.Unmarshal(data, &langs); err != nil {
		return nil, fmt.Errorf("failed to parse languages: %w", err)
	}

	c := &Colors{
		exact:  make(map[string]string, len(langs)),
		folded: make(map[string]string, len(langs)),
	}
	for name, lang := range langs {
		if lang.Color == "" {
			continue
		}
		c.exact[name] = lang.Color
		c.folded[strings.ToLower(name)] = lang.Color
	}
	return c, nil
}

// DefaultColors returns the embedded color table.
func DefaultColors() *Colors {
	c, err := LoadColors(languagesYAML)
	if err != nil {
		// Only fails if the embedded file is malformed.
		panic("card: " + err.Error())
	}
	return c
}

// Lookup returns the color for lang, matching case-insensitively when there
// is no exact match.
func (c *Colors) Lookup(lang string) (string, bool) {
	if color, ok := c.exact[lang]; ok {
		return color, true
	}
	color, ok := c.folded[strings.ToLower(lang)]
	return color, ok
}

// For returns the color for lang or DefaultLanguageColor.
func (c *Colors) For(lang string) string {
	if color, ok := c.Lookup(lang); ok {
		return color
	}
	return DefaultLanguageColor
}

// Len returns the number of languages with a color.
func (c *Colors) Len() int {
	return len(c.exact)
}
