package reflow

// breakLength asks the measurer for a break and clamps it into [0, len(text)].
func breakLength(m Measurer, text []rune, maxWidth float64, style Style) int {
	if maxWidth < 0 {
		maxWidth = 0
	}
	n := m.BreakLength(string(text), maxWidth, style)
	if n < 0 {
		return 0
	}
	if n > len(text) {
		return len(text)
	}
	return n
}

// isBreakSpace reports a break opportunity. Only U+0020 counts; tabs and
// other whitespace are drawn like any other rune.
func isBreakSpace(r rune) bool { return r == ' ' }

// chunkSize returns how many runes an ordinary line consumes given the raw
// break length n. The result is always at least 1 for non-empty text.
func chunkSize(text []rune, n int) int {
	switch {
	case len(text) == 0:
		return 0
	case n <= 0:
		return 1
	case n >= len(text):
		return len(text)
	case isBreakSpace(text[n-1]):
		return n
	case isBreakSpace(text[n]):
		return n + 1
	}
	for i := n - 1; i > 0; i-- {
		if isBreakSpace(text[i]) {
			return i + 1
		}
	}
	// No space after position 0: break mid-word.
	return n
}

// splitDrawn separates the trailing break spaces of a consumed chunk.
func splitDrawn(chunk []rune) (drawn, skipped string) {
	end := len(chunk)
	for end > 0 && isBreakSpace(chunk[end-1]) {
		end--
	}
	return string(chunk[:end]), string(chunk[end:])
}

// breakOrdinary produces the text of a non-final line and the remainder.
func breakOrdinary(m Measurer, text []rune, maxWidth float64, style Style) (drawn, skipped string, rest []rune) {
	k := chunkSize(text, breakLength(m, text, maxWidth, style))
	drawn, skipped = splitDrawn(text[:k])
	return drawn, skipped, text[k:]
}

// breakFinal produces the text of the capped last line. It never looks for
// a word boundary.
func breakFinal(m Measurer, text []rune, maxWidth float64, style Style) (line string, ellipsized, cut bool) {
	n := breakLength(m, text, maxWidth, style)
	if n >= len(text) {
		return string(text), false, false
	}
	if style.Overflow == OverflowEllipsis {
		keep := n - ellipsisLen
		if keep < 0 {
			keep = 0
		}
		return string(text[:keep]) + Ellipsis, true, true
	}
	return string(text[:n]), false, true
}
