package canvasrenderer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/tdewolff/canvas"

	"github.com/ByLCY/textflow/fonts"
	"github.com/ByLCY/textflow/layout"
	"github.com/ByLCY/textflow/reflow"
)

// fontFamilyEntry 缓存一个已加载的字体族，以及按字号/斜体创建过的字体面。
type fontFamilyEntry struct {
	family    *canvas.FontFamily
	hasItalic bool

	mu    sync.Mutex
	faces map[faceKey]*canvas.FontFace
}

type faceKey struct {
	sizePt float64
	italic bool
}

// face 返回用于测量的黑色字体面；canvas 的宽度单位为 mm，字号单位为 pt。
func (e *fontFamilyEntry) face(sizePt float64, italic bool) *canvas.FontFace {
	if !e.hasItalic {
		italic = false
	}
	key := faceKey{sizePt: sizePt, italic: italic}
	e.mu.Lock()
	defer e.mu.Unlock()
	if f, ok := e.faces[key]; ok {
		return f
	}
	f := e.family.Face(sizePt, canvas.Black, faceStyle(italic), canvas.FontNormal)
	e.faces[key] = f
	return f
}

func (e *fontFamilyEntry) coloredFace(sizePt float64, italic bool, col layout.Color) *canvas.FontFace {
	if !e.hasItalic {
		italic = false
	}
	return e.family.Face(sizePt, colorFromLayout(col), faceStyle(italic), canvas.FontNormal)
}

func faceStyle(italic bool) canvas.FontStyle {
	if italic {
		return canvas.FontRegular | canvas.FontItalic
	}
	return canvas.FontRegular
}

// Measurer 实现 layout.Typesetter：返回绑定到字体资源的测量器，供 reflow 断行。
func (r *Renderer) Measurer(font layout.FontResource) (reflow.Measurer, error) {
	entry, err := r.ensureFontFamily(font)
	if err != nil {
		return nil, err
	}
	return &faceMeasurer{entry: entry}, nil
}

// faceMeasurer 以 canvas 字体面测量文本宽度。Style.FontSize 与返回值均为 mm。
type faceMeasurer struct {
	entry *fontFamilyEntry
}

var _ reflow.Measurer = (*faceMeasurer)(nil)

// AdvanceWidth 返回文本宽度，字间距按字符数累加。
func (m *faceMeasurer) AdvanceWidth(text string, style reflow.Style) float64 {
	if text == "" {
		return 0
	}
	face := m.entry.face(toPt(style.FontSize), style.FontStyle == reflow.FontItalic)
	return face.TextWidth(text) + style.LetterSpacing*float64(utf8.RuneCountInString(text))
}

// BreakLength 二分查找能放进 maxWidth 的最长前缀（按 rune 计）。
func (m *faceMeasurer) BreakLength(text string, maxWidth float64, style reflow.Style) int {
	runes := []rune(text)
	if len(runes) == 0 || maxWidth <= 0 {
		return 0
	}
	const eps = 1e-9
	if m.AdvanceWidth(text, style) <= maxWidth+eps {
		return len(runes)
	}
	lo, hi := 0, len(runes)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if m.AdvanceWidth(string(runes[:mid]), style) <= maxWidth+eps {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

func (r *Renderer) ensureFontFamily(font layout.FontResource) (*fontFamilyEntry, error) {
	key := fontCacheKey(font)
	r.fontMu.Lock()
	defer r.fontMu.Unlock()

	if entry, ok := r.fontFamilies[key]; ok {
		return entry, nil
	}

	familyName := font.Family
	if familyName == "" {
		familyName = font.Name
	}
	if familyName == "" {
		familyName = "Body"
	}
	entry, err := r.loadFamily(familyName, font)
	if err != nil {
		fallback, fbErr := r.fallback()
		if fbErr != nil {
			return nil, err
		}
		r.fontFamilies[key] = fallback
		return fallback, nil
	}
	r.fontFamilies[key] = entry
	return entry, nil
}

func (r *Renderer) loadFamily(name string, font layout.FontResource) (*fontFamilyEntry, error) {
	if font.Src == "" {
		return nil, fmt.Errorf("字体 %s 缺少 src", font.Name)
	}
	var regular, italic []byte
	if strings.HasPrefix(font.Src, "embed:") {
		fam, err := fonts.LoadFamily(font.Src)
		if err != nil {
			data, loadErr := fonts.Load(font.Src)
			if loadErr != nil {
				return nil, err
			}
			fam = fonts.Family{Regular: data}
		}
		regular, italic = fam.Regular, fam.Italic
	} else {
		data, err := r.loadFontBytes(font.Src)
		if err != nil {
			return nil, err
		}
		regular = data
	}
	if font.Italic != "" {
		data, err := r.loadFontBytes(font.Italic)
		if err != nil {
			return nil, fmt.Errorf("加载斜体字形失败: %w", err)
		}
		italic = data
	}
	return newFamilyEntry(name, regular, italic)
}

func newFamilyEntry(name string, regular, italic []byte) (*fontFamilyEntry, error) {
	family := canvas.NewFontFamily(name)
	if err := family.LoadFont(regular, 0, canvas.FontRegular); err != nil {
		return nil, fmt.Errorf("加载字体 %s 失败: %w", name, err)
	}
	entry := &fontFamilyEntry{family: family, faces: map[faceKey]*canvas.FontFace{}}
	if len(italic) > 0 {
		if err := family.LoadFont(italic, 0, faceStyle(true)); err != nil {
			return nil, fmt.Errorf("加载字体 %s 的斜体失败: %w", name, err)
		}
		entry.hasItalic = true
	}
	return entry, nil
}

func (r *Renderer) loadFontBytes(src string) ([]byte, error) {
	if strings.HasPrefix(src, "built-in:") || strings.HasPrefix(src, "builtin:") {
		name := strings.TrimPrefix(strings.TrimPrefix(src, "built-in:"), "builtin:")
		if blob, ok := r.fontBlobs[name]; ok {
			return blob, nil
		}
		return nil, fmt.Errorf("找不到内置字体资源 built-in:%s", name)
	}
	if strings.HasPrefix(src, "embed:") {
		return fonts.Load(src)
	}
	path := src
	if r.baseDir == "" && !filepath.IsAbs(path) {
		return nil, fmt.Errorf("未指定资源目录时不允许直接使用字体路径：%s（请改用 built-in: 或 embed:）", src)
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.baseDir, path)
	}
	return os.ReadFile(path)
}

// fallback 在字体加载失败时使用内置 Go 字体；调用方持有 fontMu。
func (r *Renderer) fallback() (*fontFamilyEntry, error) {
	if r.fallbackFamily != nil {
		return r.fallbackFamily, nil
	}
	fam, err := fonts.LoadFamily("go")
	if err != nil {
		return nil, err
	}
	entry, err := newFamilyEntry("textflow-fallback", fam.Regular, fam.Italic)
	if err != nil {
		return nil, err
	}
	r.fallbackFamily = entry
	return entry, nil
}

func resolveFontResource(name string, fonts map[string]layout.FontResource) layout.FontResource {
	if font, ok := fonts[name]; ok {
		return font
	}
	if font, ok := fonts["Body"]; ok {
		return font
	}
	for _, font := range fonts {
		return font
	}
	return layout.FontResource{}
}

func fontCacheKey(font layout.FontResource) string {
	return fmt.Sprintf("%s|%s|%s", font.Name, font.Src, font.Italic)
}

// toPt 将毫米(mm)转换为点(pt)。
func toPt(mm float64) float64 { return mm * layout.MmToPt }
