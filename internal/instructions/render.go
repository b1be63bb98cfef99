// Package instructions renders project instructions for display.
package instructions

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"

	"github.com/conneroisu/popcode/internal/project"
)

// Styles accepted by NewRenderer.
const (
	StyleDark  = "dark"
	StyleLight = "light"
	StyleAuto  = "auto"
	// StylePlain renders without colors or syntax highlighting.
	StylePlain = "notty"
)

const defaultWidth = 80

// Renderer turns instruction markdown into terminal text. Instructions known
// to break the syntax highlighter are rendered with StylePlain.
type Renderer struct {
	style string
	width int

	mu        sync.Mutex
	renderers map[string]*glamour.TermRenderer
}

// NewRenderer creates a Renderer. Unknown styles fall back to StyleDark and a
// non-positive width to 80 columns.
func NewRenderer(style string, width int) *Renderer {
	style = strings.ToLower(strings.TrimSpace(style))
	switch style {
	case StyleDark, StyleLight, StyleAuto, StylePlain:
	default:
		style = StyleDark
	}
	if width <= 0 {
		width = defaultWidth
	}
	return &Renderer{style: style, width: width, renderers: map[string]*glamour.TermRenderer{}}
}

// Render renders i. Empty instructions render as "".
func (r *Renderer) Render(i project.Instructions) (string, error) {
	if i.IsEmpty() {
		return "", nil
	}

	style := r.style
	if i.IsKnownToBreakSyntaxHighlighting {
		style = StylePlain
	}
	renderer, err := r.renderer(style)
	if err != nil {
		return i.Markdown, err
	}
	out, err := renderer.Render(i.Markdown)
	if err != nil {
		return i.Markdown, err
	}
	return out, nil
}

func (r *Renderer) renderer(style string) (*glamour.TermRenderer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if renderer, ok := r.renderers[style]; ok {
		return renderer, nil
	}

	styleOption := glamour.WithStandardStyle(style)
	if style == StyleAuto {
		styleOption = glamour.WithAutoStyle()
	}
	renderer, err := glamour.NewTermRenderer(styleOption, glamour.WithWordWrap(r.width))
	if err != nil {
		return nil, err
	}
	r.renderers[style] = renderer
	return renderer, nil
}
