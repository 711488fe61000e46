package reflow

// Stacking decides where each obstacle starts vertically.
type Stacking int

const (
	// StackConsecutive places every obstacle directly below the previous one.
	StackConsecutive Stacking = iota
	// StackOverlay top-aligns every obstacle at the top of the block.
	StackOverlay
)

func (s Stacking) String() string {
	if s == StackOverlay {
		return "overlay"
	}
	return "consecutive"
}

// Span is the vertical extent of one placed obstacle.
type Span struct {
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
	Width  float64 `json:"width"`
}

// Profile answers how much horizontal space obstacles occupy at a given
// offset from the top of the text block. It is immutable once built.
type Profile struct {
	spans  []Span
	bottom float64
}

// NewProfile places obstacles in input order. Negative sizes count as 0.
func NewProfile(obstacles []Obstacle, stacking Stacking) Profile {
	p := Profile{spans: make([]Span, 0, len(obstacles))}
	var top float64
	for _, o := range obstacles {
		w, h := clampSize(o.Width), clampSize(o.Height)
		span := Span{Top: top, Bottom: top + h, Width: w}
		if stacking == StackConsecutive {
			top = span.Bottom
		}
		if span.Bottom > p.bottom {
			p.bottom = span.Bottom
		}
		p.spans = append(p.spans, span)
	}
	return p
}

// OccupiedWidth returns the widest obstacle covering y, or 0.
func (p Profile) OccupiedWidth(y float64) float64 {
	var width float64
	for _, s := range p.spans {
		if y >= s.Top && y < s.Bottom && s.Width > width {
			width = s.Width
		}
	}
	return width
}

// Bottom is the lowest edge of any obstacle.
func (p Profile) Bottom() float64 { return p.bottom }

// Spans returns a copy of the placed obstacles.
func (p Profile) Spans() []Span {
	out := make([]Span, len(p.spans))
	copy(out, p.spans)
	return out
}

func clampSize(v float64) float64 {
	// NaN fails the comparison too.
	if !(v > 0) {
		return 0
	}
	return v
}
