package reflow

import (
	"math"
	"strings"
)

// SplitParagraphs splits text on hard line breaks. CRLF and lone CR count
// as a single break. Runes are kept exactly as given.
func SplitParagraphs(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Split(text, "\n")
}

// placement is the horizontal geometry of one line.
type placement struct {
	x, available, occupied float64
}

// place computes the paint origin and available width of a line whose top
// edge is at top.
func place(in Input, profile Profile, top float64, firstOfParagraph bool) placement {
	w := in.Width
	occ := math.Min(profile.OccupiedWidth(top), w)
	free := w - occ
	p := placement{available: free, occupied: occ}
	if in.AlignContent == SideRight {
		switch in.Style.Align {
		case AlignRight:
			p.x = w - occ
		case AlignCenter:
			p.x = free / 2
		default:
			p.x = 0
		}
	} else {
		switch in.Style.Align {
		case AlignRight:
			p.x = w
		case AlignCenter:
			p.x = occ + free/2
		default:
			p.x = occ
		}
	}
	if firstOfParagraph && in.Style.Align == AlignLeft {
		p.x += in.Style.ParagraphIndent
		p.available -= in.Style.ParagraphIndent
	}
	if p.available < 0 {
		p.available = 0
	}
	return p
}

// Layout runs one reflow pass.
func Layout(in Input, m Measurer) (*Result, error) {
	if m == nil {
		return nil, ErrNoMeasurer
	}
	if err := in.Style.validate(); err != nil {
		return nil, err
	}
	lh := in.Style.LineHeightOrDefault()
	res := &Result{LineHeight: lh, Lines: []Line{}}

	height := in.Height
	if math.IsNaN(height) || height < 0 {
		height = 0
	}
	if math.IsNaN(in.Width) || in.Width < 0 {
		in.Width = 0
	}
	paragraphs := SplitParagraphs(in.Text)
	if len(paragraphs) == 0 {
		return res, nil
	}
	if in.Width <= 0 || height <= 0 {
		res.Truncated = true
		res.HeightLimited = height <= 0
		return res, nil
	}

	lim := limits{lineHeight: lh, height: height, maxLines: in.Style.MaxLines}
	profile := NewProfile(in.Obstacles, in.Stacking)
	state := initialState(lim)

	for pi, para := range paragraphs {
		rest := []rune(para)
		for index := 0; len(rest) > 0; index++ {
			state = beforeLine(state, lim)
			var lineNo int
			switch st := state.(type) {
			case Accumulating:
				lineNo = st.LineNo
			case FinalLine:
				lineNo = st.LineNo
			default:
				res.Truncated = true
				return finish(res, state, height), nil
			}

			top := float64(lineNo-1) * lh
			p := place(in, profile, top, index == 0)
			line := Line{
				X:         p.x,
				Y:         float64(lineNo) * lh,
				Top:       top,
				Available: p.available,
				Occupied:  p.occupied,
				Paragraph: pi,
				Index:     index,
			}
			if _, final := state.(FinalLine); final {
				text, ellipsized, cut := breakFinal(m, rest, p.available, in.Style)
				line.Text = text
				line.Final = true
				line.Ellipsized = ellipsized
				res.Truncated = cut || hasText(paragraphs[pi+1:])
				rest = nil
			} else {
				line.Text, line.Skipped, rest = breakOrdinary(m, rest, p.available, in.Style)
			}
			line.Advance = m.AdvanceWidth(line.Text, in.Style)
			res.Lines = append(res.Lines, line)
			state = afterLine(state, lim)
		}
	}
	return finish(res, state, height), nil
}

func hasText(paragraphs []string) bool {
	for _, p := range paragraphs {
		if p != "" {
			return true
		}
	}
	return false
}

// finish computes the consumed height once the machine stops.
func finish(res *Result, state State, height float64) *Result {
	if done, ok := state.(Done); ok && done.HeightLimited {
		res.HeightLimited = true
		res.ContentHeight = height
		return res
	}
	res.ContentHeight = float64(len(res.Lines)) * res.LineHeight
	return res
}
