package card

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"text/template"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"glim-hq/cards/pkg/upstream"
)

// DescriptionWidth is the wrap width, in characters, of the description.
const DescriptionWidth = 65

const (
	viewWidth   = 500
	baseHeight  = 110
	lineHeight  = 25
	glyphWidth  = 7
	slowRender  = time.Second
	defaultName = "repository"
)

//go:embed card.svg.tmpl
var cardTemplate string

// Renderer turns repository metadata into card artifacts.
type Renderer struct {
	tmpl   *template.Template
	colors *Colors
	tracer trace.Tracer
}

// Option customizes a Renderer.
type Option func(*Renderer)

// WithColors replaces the embedded language color table.
func WithColors(c *Colors) Option {
	return func(r *Renderer) {
		r.colors = c
	}
}

// WithTracer sets the tracer used for render spans.
func WithTracer(t trace.Tracer) Option {
	return func(r *Renderer) {
		r.tracer = t
	}
}

// NewRenderer parses the card template.
func NewRenderer(opts ...Option) (*Renderer, error) {
	tmpl, err := template.New("card").Funcs(template.FuncMap{
		"xml": template.HTMLEscapeString,
	}).Parse(cardTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse card template: %w", err)
	}

	r := &Renderer{
		tmpl:   tmpl,
		tracer: noop.NewTracerProvider().Tracer(""),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.colors == nil {
		r.colors = DefaultColors()
	}
	return r, nil
}

// templateData is the template's view of one card.
type templateData struct {
	Name          string
	Description   string
	Language      string
	LanguageColor string
	Stars         string
	Forks         string
	Theme         Theme

	Width, Height           string
	ViewWidth, ViewHeight   int
	InnerWidth, InnerHeight int
	FooterY, FooterTextY    int
	FooterIconY             int
	StarsX, StarsTextX      int
	ForksX, ForksTextX      int
}

// Render produces the card for repo as described by m.
func (r *Renderer) Render(ctx context.Context, m Meaning, repo *upstream.Repository) ([]byte, error) {
	_, span := r.tracer.Start(ctx, "card.render", trace.WithAttributes(
		attribute.String("card.repository", m.Repository()),
		attribute.String("card.theme", m.Theme),
		attribute.Float64("card.scale", m.Scale),
	))
	defer span.End()

	start := time.Now()

	if m.Format != FormatSVG {
		err := fmt.Errorf("unsupported format %q", m.Format)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	theme, err := ParseTheme(m.Theme)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	data := r.layout(m, repo, theme)

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to render card: %w", err)
	}

	elapsed := time.Since(start)
	span.SetAttributes(attribute.Int("card.bytes", buf.Len()))
	if elapsed > slowRender {
		slog.Warn("slow card render",
			"repository", m.Repository(),
			"duration_ms", elapsed.Milliseconds(),
		)
	} else {
		slog.Debug("card rendered",
			"repository", m.Repository(),
			"bytes", buf.Len(),
			"duration_ms", elapsed.Milliseconds(),
		)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) layout(m Meaning, repo *upstream.Repository, theme Theme) templateData {
	name := repo.Name
	if name == "" {
		name = m.Repo
	}
	if name == "" {
		name = defaultName
	}

	lines := wrapLines(repo.DescriptionOrEmpty(), DescriptionWidth)
	language := repo.LanguageOrEmpty()
	stars := FormatCount(repo.StargazersCount)
	forks := FormatCount(repo.ForksCount)

	height := baseHeight + (len(lines)-1)*lineHeight
	scale := m.Scale
	if scale == 0 {
		scale = DefaultScale
	}

	d := templateData{
		Name:          name,
		Description:   renderTspans(lines),
		Language:      language,
		LanguageColor: r.colors.For(language),
		Stars:         stars,
		Forks:         forks,
		Theme:         theme,
		Width:         formatDimension(viewWidth * scale),
		Height:        formatDimension(float64(height) * scale),
		ViewWidth:     viewWidth,
		ViewHeight:    height,
		InnerWidth:    viewWidth - 1,
		InnerHeight:   height - 1,
		FooterY:       height - 22,
		FooterTextY:   height - 18,
		FooterIconY:   height - 31,
		StarsX:        16,
	}
	if language != "" {
		d.StarsX = 34 + utf8.RuneCountInString(language)*glyphWidth + 20
	}
	d.StarsTextX = d.StarsX + 20
	d.ForksX = d.StarsTextX + len(stars)*glyphWidth + 16
	d.ForksTextX = d.ForksX + 20
	return d
}

// WrapText greedily wraps text at width characters and returns one
// <tspan> per line, each offset by 1.9em from the previous. Words longer
// than width are not split.
func WrapText(text string, width int) string {
	return renderTspans(wrapLines(text, width))
}

func wrapLines(text string, width int) []string {
	var (
		lines   []string
		current strings.Builder
		n       int
	)
	for _, word := range strings.Fields(text) {
		w := utf8.RuneCountInString(word)
		if n+w+1 > width {
			lines = append(lines, current.String())
			current.Reset()
			n = 0
		}
		if n > 0 {
			current.WriteByte(' ')
			n++
		}
		current.WriteString(word)
		n += w
	}
	return append(lines, current.String())
}

func renderTspans(lines []string) string {
	var b strings.Builder
	for i, line := range lines {
		dy := float32(i)*1.9 - 0.5
		fmt.Fprintf(&b, `<tspan x="16" dy="%sem">%s</tspan>`,
			strconv.FormatFloat(float64(dy), 'f', -1, 32),
			template.HTMLEscapeString(line),
		)
	}
	return b.String()
}

// FormatCount abbreviates counts of a thousand or more: 1234 becomes
// "1.2k" and 12345 becomes "12k".
func FormatCount(n int) string {
	if n < 1000 {
		return strconv.Itoa(n)
	}
	thousands := float64(n) / 1000
	if thousands >= 10 {
		return strconv.Itoa(int(thousands)) + "k"
	}
	return strconv.FormatFloat(thousands, 'f', 1, 64) + "k"
}

func formatDimension(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
