package reflow

import (
	"math"
	"unicode/utf8"
)

// Measurer is the text measuring capability injected into a pass. Counts
// are in runes.
type Measurer interface {
	// AdvanceWidth returns the painted width of text.
	AdvanceWidth(text string, style Style) float64
	// BreakLength returns how many leading runes of text fit in maxWidth.
	BreakLength(text string, maxWidth float64, style Style) int
}

// Monospace measures every rune as Advance times the font size, plus the
// letter spacing. It is exact, which makes it handy for tests and for
// character-cell output.
type Monospace struct {
	Advance float64 // em fraction per rune; 0 means 0.5
}

func (m Monospace) cell(style Style) float64 {
	adv := m.Advance
	if adv <= 0 {
		adv = 0.5
	}
	return adv*style.FontSize + style.LetterSpacing
}

// AdvanceWidth implements Measurer.
func (m Monospace) AdvanceWidth(text string, style Style) float64 {
	return float64(utf8.RuneCountInString(text)) * m.cell(style)
}

// BreakLength implements Measurer.
func (m Monospace) BreakLength(text string, maxWidth float64, style Style) int {
	n := utf8.RuneCountInString(text)
	cell := m.cell(style)
	if cell <= 0 {
		return n
	}
	if maxWidth <= 0 {
		return 0
	}
	// A small epsilon keeps widths like 3*0.1 from losing a cell.
	fit := int(math.Floor(maxWidth/cell + 1e-9))
	if fit > n {
		return n
	}
	return fit
}
