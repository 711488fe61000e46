package reflow

import (
	"errors"
	"math"
)

// Errors reported before a pass starts.
var (
	ErrInvalidStyle = errors.New("reflow: invalid style")
	ErrNoMeasurer   = errors.New("reflow: measurer is nil")
)

// Ellipsis is appended to a truncated final line under OverflowEllipsis.
const Ellipsis = "..."

const ellipsisLen = 3

// Align is the horizontal alignment of text within a line.
type Align int

const (
	AlignLeft Align = iota
	AlignRight
	AlignCenter
)

func (a Align) String() string {
	switch a {
	case AlignRight:
		return "right"
	case AlignCenter:
		return "center"
	default:
		return "left"
	}
}

// Side is the container edge the obstacles are anchored to.
type Side int

const (
	SideLeft Side = iota
	SideRight
)

func (s Side) String() string {
	if s == SideRight {
		return "right"
	}
	return "left"
}

// Overflow decides how the capped last line is cut.
type Overflow int

const (
	OverflowClip Overflow = iota
	OverflowEllipsis
)

func (o Overflow) String() string {
	if o == OverflowEllipsis {
		return "ellipsis"
	}
	return "clip"
}

// FontStyle selects the upright or italic face of the measured font.
type FontStyle int

const (
	FontNormal FontStyle = iota
	FontItalic
)

// Style holds the typographic parameters of one pass. All lengths share the
// unit of the container (the layout package uses millimetres).
type Style struct {
	FontSize        float64
	FontStyle       FontStyle
	LetterSpacing   float64
	LineHeight      float64 // 0 or anything below FontSize means FontSize
	Align           Align
	ParagraphIndent float64
	Overflow        Overflow
	MaxLines        int // <= 0 means no cap
}

// LineHeightOrDefault returns the distance between baselines.
func (s Style) LineHeightOrDefault() float64 {
	if s.LineHeight >= s.FontSize {
		return s.LineHeight
	}
	return s.FontSize
}

func (s Style) validate() error {
	if math.IsNaN(s.FontSize) || math.IsInf(s.FontSize, 0) || s.FontSize <= 0 {
		return ErrInvalidStyle
	}
	if math.IsNaN(s.LineHeight) || math.IsInf(s.LineHeight, 0) {
		return ErrInvalidStyle
	}
	return nil
}

// Obstacle is a fixed-size rectangle occupying one edge of the container.
type Obstacle struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Input is everything one pass depends on.
type Input struct {
	Text         string
	Width        float64
	Height       float64 // use Unbounded() when the container may grow freely
	Obstacles    []Obstacle
	Stacking     Stacking
	AlignContent Side
	Style        Style
}

// Unbounded is a container height that never ends a pass.
func Unbounded() float64 { return math.Inf(1) }

// Line is one emitted line. X is the paint origin: the left edge for
// left-aligned text, the right edge for right-aligned text and the centre
// for centred text. Y is the baseline, measured from the top of the block.
type Line struct {
	Text       string  `json:"text"`
	Skipped    string  `json:"skipped,omitempty"` // whitespace consumed after Text but not drawn
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Top        float64 `json:"top"`
	Advance    float64 `json:"advance"`
	Available  float64 `json:"available"`
	Occupied   float64 `json:"occupied"`
	Paragraph  int     `json:"paragraph"`
	Index      int     `json:"index"`
	Final      bool    `json:"final,omitempty"`
	Ellipsized bool    `json:"ellipsized,omitempty"`
}

// Bounds returns the horizontal extent painted by the line.
func (l Line) Bounds(align Align) (left, right float64) {
	switch align {
	case AlignRight:
		return l.X - l.Advance, l.X
	case AlignCenter:
		return l.X - l.Advance/2, l.X + l.Advance/2
	default:
		return l.X, l.X + l.Advance
	}
}

// Result is the outcome of one pass.
type Result struct {
	Lines      []Line  `json:"lines"`
	LineHeight float64 `json:"lineHeight"`
	// ContentHeight is len(Lines)*LineHeight, or the container height when
	// the pass was cut by the container height.
	ContentHeight float64 `json:"contentHeight"`
	HeightLimited bool    `json:"heightLimited"`
	// Truncated reports that some text was not emitted.
	Truncated bool `json:"truncated"`
}
