package measure

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ByLCY/textflow/fonts"
	"github.com/ByLCY/textflow/layout"
	"github.com/ByLCY/textflow/reflow"
)

// Typesetter resolves layout font resources to SFNT measurers. Relative font
// paths are joined with BaseDir. Measurers are shared between flows.
type Typesetter struct {
	BaseDir string

	mu    sync.Mutex
	cache map[string]*SFNT
}

var _ layout.Typesetter = (*Typesetter)(nil)

// Measurer implements layout.Typesetter.
func (t *Typesetter) Measurer(font layout.FontResource) (reflow.Measurer, error) {
	key := font.Src + "|" + font.Italic
	t.mu.Lock()
	defer t.mu.Unlock()
	if m, ok := t.cache[key]; ok {
		return m, nil
	}

	regular, italic, err := t.load(font)
	if err != nil {
		return nil, err
	}
	m, err := NewSFNT(regular, italic)
	if err != nil {
		return nil, err
	}
	if t.cache == nil {
		t.cache = map[string]*SFNT{}
	}
	t.cache[key] = m
	return m, nil
}

func (t *Typesetter) load(font layout.FontResource) (regular, italic []byte, err error) {
	switch {
	case font.Src == "":
		return nil, nil, fmt.Errorf("measure: font %s has no src", font.Name)
	case strings.HasPrefix(font.Src, "embed:"):
		if fam, famErr := fonts.LoadFamily(font.Src); famErr == nil {
			regular, italic = fam.Regular, fam.Italic
		} else if regular, err = fonts.Load(font.Src); err != nil {
			return nil, nil, err
		}
	default:
		if regular, err = t.read(font.Src); err != nil {
			return nil, nil, err
		}
	}
	if font.Italic != "" {
		if italic, err = t.read(font.Italic); err != nil {
			return nil, nil, err
		}
	}
	return regular, italic, nil
}

func (t *Typesetter) read(src string) ([]byte, error) {
	if strings.HasPrefix(src, "embed:") {
		return fonts.Load(src)
	}
	path := src
	if !filepath.IsAbs(path) && t.BaseDir != "" {
		path = filepath.Join(t.BaseDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("measure: read font %s: %w", src, err)
	}
	return data, nil
}

// Err reports the first measuring failure of any cached measurer.
func (t *Typesetter) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for src, m := range t.cache {
		if err := m.Err(); err != nil {
			return fmt.Errorf("measure: font %s: %w", strings.TrimSuffix(src, "|"), err)
		}
	}
	return nil
}

// Close releases every cached face.
func (t *Typesetter) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var first error
	for k, m := range t.cache {
		if err := m.Close(); err != nil && first == nil {
			first = err
		}
		delete(t.cache, k)
	}
	return first
}
