// Package layout computes the flex sizing of the stacked editor panes.
//
// Up to three panes (html, css, javascript) share one column. Dragging a
// divider pins the pane above it to a pixel height while the trailing pane
// stays flexible and absorbs whatever space is left, so the column height is
// preserved. All functions are pure and O(1); they run on every drag event.
package layout

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/conneroisu/popcode/internal/project"
)

// DividerHeight is the pixel height of the draggable divider between panes.
const DividerHeight = 4

// MaxPanes is the number of editor panes.
const MaxPanes = 3

// Flex is one pane's CSS flex descriptor: either flexible ("1") or a fixed
// basis in pixels ("0 1 Npx").
type Flex struct {
	Fixed  bool
	Pixels float64
}

// Flexible is the descriptor for a pane that grows to fill remaining space.
var Flexible = Flex{}

// FixedAt returns a fixed descriptor of px pixels.
func FixedAt(px float64) Flex {
	return Flex{Fixed: true, Pixels: px}
}

// String renders the descriptor as a CSS flex value.
func (f Flex) String() string {
	if !f.Fixed {
		return "1"
	}
	return fmt.Sprintf("0 1 %spx", strconv.FormatFloat(f.Pixels, 'f', -1, 64))
}

// MarshalText lets descriptors serialize as their CSS value.
func (f Flex) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText parses a value produced by MarshalText.
func (f *Flex) UnmarshalText(text []byte) error {
	value := string(text)
	if value == "1" {
		*f = Flexible
		return nil
	}
	number, ok := strings.CutPrefix(value, "0 1 ")
	if ok {
		number, ok = strings.CutSuffix(number, "px")
	}
	px, err := strconv.ParseFloat(number, 64)
	if !ok || err != nil {
		return fmt.Errorf("invalid flex value %q", value)
	}
	*f = FixedAt(px)
	return nil
}

// Geometry is the ordered list of descriptors, one per pane slot.
type Geometry []Flex

// Strings renders every descriptor.
func (g Geometry) Strings() []string {
	out := make([]string, len(g))
	for i, f := range g {
		out[i] = f.String()
	}
	return out
}

// Trim returns the first n descriptors, for n visible panes.
func (g Geometry) Trim(n int) Geometry {
	if n < 0 {
		n = 0
	}
	if n > len(g) {
		n = len(g)
	}
	out := make(Geometry, n)
	copy(out, g[:n])
	return out
}

// Default returns the uniform layout trimmed to the visible pane count.
func Default(visible int) Geometry {
	return Geometry{Flexible, Flexible, Flexible}.Trim(visible)
}

// Drag computes the geometry after divider dividerIndex was dragged deltaY
// pixels from the top of the pane above it. heights are the last measured
// heights of the currently rendered panes, top to bottom.
//
// The result always has MaxPanes slots; with only two rendered panes the
// third slot is flexible and unused.
func Drag(dividerIndex int, deltaY float64, heights []float64) Geometry {
	deltaY = math.Max(0, deltaY)

	if dividerIndex <= 0 {
		last := Flexible
		if len(heights) == MaxPanes {
			last = FixedAt(heights[2])
		}
		return Geometry{
			FixedAt(deltaY + DividerHeight),
			Flexible,
			last,
		}
	}

	return Geometry{
		FixedAt(measured(heights, 0) + DividerHeight),
		FixedAt(deltaY + DividerHeight),
		Flexible,
	}
}

func measured(heights []float64, i int) float64 {
	if i < len(heights) {
		return heights[i]
	}
	return 0
}

// Visible returns the panes that are not minimized, in order.
func Visible(minimized []string) []project.Language {
	hidden := make(map[string]struct{}, len(minimized))
	for _, name := range minimized {
		hidden[name] = struct{}{}
	}

	visible := make([]project.Language, 0, len(project.Languages))
	for _, lang := range project.Languages {
		if _, ok := hidden[lang.EditorComponent()]; !ok {
			visible = append(visible, lang)
		}
	}
	return visible
}
