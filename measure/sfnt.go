// Package measure provides reflow.Measurer implementations backed by
// parsed OpenType/TrueType fonts.
package measure

import (
	"fmt"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/ByLCY/textflow/fonts"
	"github.com/ByLCY/textflow/reflow"
)

// scale enlarges faces so 26.6 rounding stays well below a visible size.
const scale = 64

// newFace is replaced in tests.
var newFace = opentype.NewFace

// SFNT measures text with golang.org/x/image font faces. Widths come back in
// the unit of Style.FontSize. It is safe for concurrent use.
type SFNT struct {
	regular *opentype.Font
	italic  *opentype.Font

	mu    sync.Mutex
	faces map[faceKey]font.Face
	err   error
}

type faceKey struct {
	size   float64
	italic bool
}

var _ reflow.Measurer = (*SFNT)(nil)

// NewSFNT parses the regular face and, when given, the italic face. Both
// are instantiated once here so a font the rasterizer rejects fails now
// rather than measuring every rune as zero.
func NewSFNT(regular, italic []byte) (*SFNT, error) {
	reg, err := opentype.Parse(regular)
	if err != nil {
		return nil, fmt.Errorf("measure: parse regular font: %w", err)
	}
	m := &SFNT{regular: reg, faces: map[faceKey]font.Face{}}
	if len(italic) > 0 {
		it, err := opentype.Parse(italic)
		if err != nil {
			return nil, fmt.Errorf("measure: parse italic font: %w", err)
		}
		m.italic = it
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, fs := range []reflow.FontStyle{reflow.FontNormal, reflow.FontItalic} {
		if _, err := m.face(reflow.Style{FontSize: 1, FontStyle: fs}); err != nil {
			return nil, fmt.Errorf("measure: build face: %w", err)
		}
	}
	return m, nil
}

// GoFonts returns a measurer over the embedded Go regular and italic faces.
func GoFonts() (*SFNT, error) {
	fam, err := fonts.LoadFamily("go")
	if err != nil {
		return nil, err
	}
	return NewSFNT(fam.Regular, fam.Italic)
}

// face must be called with m.mu held.
func (m *SFNT) face(style reflow.Style) (font.Face, error) {
	key := faceKey{size: style.FontSize, italic: style.FontStyle == reflow.FontItalic && m.italic != nil}
	if f, ok := m.faces[key]; ok {
		return f, nil
	}
	src := m.regular
	if key.italic {
		src = m.italic
	}
	f, err := newFace(src, &opentype.FaceOptions{
		Size:    style.FontSize * scale,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, err
	}
	m.faces[key] = f
	return f, nil
}

func toUnits(v fixed.Int26_6) float64 {
	return float64(v) / 64 / scale
}

// walk calls fn with the running width after each rune; fn returns false to stop.
func (m *SFNT) walk(text string, style reflow.Style, fn func(width float64) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, err := m.face(style)
	if err != nil {
		if m.err == nil {
			m.err = fmt.Errorf("measure: face at size %g: %w", style.FontSize, err)
		}
		return
	}
	var (
		width float64
		prev  rune
		first = true
	)
	for _, r := range text {
		if !first {
			width += toUnits(f.Kern(prev, r))
		}
		adv, _ := f.GlyphAdvance(r)
		width += toUnits(adv) + style.LetterSpacing
		if !fn(width) {
			return
		}
		prev, first = r, false
	}
}

// Err returns the first face construction failure seen while measuring.
// Widths measured after a failure are zero.
func (m *SFNT) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// AdvanceWidth implements reflow.Measurer.
func (m *SFNT) AdvanceWidth(text string, style reflow.Style) float64 {
	var total float64
	m.walk(text, style, func(w float64) bool {
		total = w
		return true
	})
	return total
}

// BreakLength implements reflow.Measurer.
func (m *SFNT) BreakLength(text string, maxWidth float64, style reflow.Style) int {
	n := 0
	m.walk(text, style, func(w float64) bool {
		if w > maxWidth+1e-9 {
			return false
		}
		n++
		return true
	})
	return n
}

// Close releases every cached face.
func (m *SFNT) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, f := range m.faces {
		f.Close()
		delete(m.faces, k)
	}
	return nil
}
