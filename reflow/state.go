package reflow

// State is the position of a pass in its state machine:
// Accumulating -> FinalLine -> Done. Values are replaced, never mutated.
type State interface {
	isState()
}

// Accumulating emits ordinary lines. LineNo is the 1-based global number of
// the next line.
type Accumulating struct{ LineNo int }

// FinalLine emits the one capped, possibly truncated, line LineNo.
type FinalLine struct{ LineNo int }

// Done ends the pass. HeightLimited reports that the container height, not
// the text or the line cap, ended it.
type Done struct{ HeightLimited bool }

func (Accumulating) isState() {}
func (FinalLine) isState() {}
func (Done) isState() {}

// limits are the ceilings a pass checks before and after each line.
type limits struct {
	lineHeight float64
	height     float64
	maxLines   int
}

// exceeds reports whether a block of n lines no longer fits the container.
func (l limits) exceeds(n int) bool {
	return float64(n)*l.lineHeight > l.height
}

func (l limits) capped(n int) bool {
	return l.maxLines > 0 && n >= l.maxLines
}

// initialState starts in FinalLine when fewer than two lines fit or when a
// single line is allowed.
func initialState(l limits) State {
	if l.exceeds(2) || l.maxLines == 1 {
		return FinalLine{LineNo: 1}
	}
	return Accumulating{LineNo: 1}
}

// beforeLine promotes Accumulating to FinalLine when line n is the last one
// that may be emitted.
func beforeLine(s State, l limits) State {
	acc, ok := s.(Accumulating)
	if !ok {
		return s
	}
	if l.exceeds(acc.LineNo+1) || l.capped(acc.LineNo) {
		return FinalLine{LineNo: acc.LineNo}
	}
	return s
}

// afterLine advances past an emitted line.
func afterLine(s State, l limits) State {
	switch st := s.(type) {
	case Accumulating:
		if l.exceeds(st.LineNo + 1) {
			return Done{HeightLimited: true}
		}
		return Accumulating{LineNo: st.LineNo + 1}
	case FinalLine:
		return Done{HeightLimited: l.exceeds(st.LineNo + 1)}
	default:
		return s
	}
}
