package canvasrenderer

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/pdf"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"

	"github.com/ByLCY/textflow/layout"
	"github.com/ByLCY/textflow/renderer"
)

const (
	obstacleStrokeWidth = 0.3
	defaultDPMM         = 8.0
)

// Format 是输出文件格式。
type Format string

const (
	FormatPDF Format = "pdf"
	FormatSVG Format = "svg"
	FormatPNG Format = "png"
)

// ParseFormat 解析 CLI 中的格式名称，空字符串视为 pdf。
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatPDF, nil
	case FormatPDF, FormatSVG, FormatPNG:
		return f, nil
	default:
		return "", fmt.Errorf("不支持的输出格式 %s", s)
	}
}

// Renderer draws layout results via github.com/tdewolff/canvas.
type Renderer struct {
	baseDir string
	format  Format
	page    int
	dpmm    float64

	// injected resources
	fontBlobs  map[string][]byte // by unique name
	imageBlobs map[string][]byte // by unique name

	fontMu         sync.Mutex
	fontFamilies   map[string]*fontFamilyEntry
	fallbackFamily *fontFamilyEntry
}

var (
	_ renderer.Renderer = (*Renderer)(nil)
	_ layout.Typesetter = (*Renderer)(nil)
)

// Options configures the canvas renderer.
type Options struct {
	BaseDir string
	Format  Format
	// Page 选择 SVG/PNG 输出的页下标，PDF 总是输出全部页面。
	Page int
	// DPMM 是 PNG 分辨率（像素/毫米）。
	DPMM   float64
	Fonts  map[string]Resource // built-in fonts accessible via built-in:<name>
	Images map[string]Resource // built-in images accessible via built-in:<name>
}

// Resource can be provided either by Bytes or by Path.
type Resource struct {
	Bytes []byte
	Path  string
}

// NewRenderer creates a PDF renderer rooted at baseDir for resolving assets.
func NewRenderer(baseDir string) *Renderer { return NewRendererWithOptions(Options{BaseDir: baseDir}) }

// NewRendererWithOptions creates a renderer with injected resources and optional baseDir.
func NewRendererWithOptions(opts Options) *Renderer {
	r := &Renderer{
		baseDir:      opts.BaseDir,
		format:       opts.Format,
		page:         opts.Page,
		dpmm:         opts.DPMM,
		fontBlobs:    map[string][]byte{},
		imageBlobs:   map[string][]byte{},
		fontFamilies: map[string]*fontFamilyEntry{},
	}
	if r.format == "" {
		r.format = FormatPDF
	}
	if r.dpmm <= 0 {
		r.dpmm = defaultDPMM
	}
	ingest(r.fontBlobs, opts.Fonts)
	ingest(r.imageBlobs, opts.Images)
	return r
}

func ingest(dst map[string][]byte, src map[string]Resource) {
	for name, res := range src {
		if name == "" {
			continue
		}
		if len(res.Bytes) > 0 {
			dst[name] = res.Bytes
			continue
		}
		if res.Path != "" {
			data, _ := os.ReadFile(res.Path) // ignore error here; will be caught when actually used
			if len(data) > 0 {
				dst[name] = data
			}
		}
	}
}

// Render renders the result in the configured format.
func (r *Renderer) Render(result *layout.Result) ([]byte, error) {
	if result == nil {
		return nil, fmt.Errorf("渲染结果为空")
	}
	if len(result.Pages) == 0 {
		return nil, fmt.Errorf("缺少可渲染的页面")
	}
	switch r.format {
	case FormatPDF:
		return r.renderPDF(result)
	case FormatSVG, FormatPNG:
		if r.page < 0 || r.page >= len(result.Pages) {
			return nil, fmt.Errorf("页码 %d 超出范围（共 %d 页）", r.page, len(result.Pages))
		}
		c, err := r.drawCanvas(result.Pages[r.page], result.Resources)
		if err != nil {
			return nil, err
		}
		if r.format == FormatSVG {
			return encodeSVG(c)
		}
		return r.encodePNG(c)
	default:
		return nil, fmt.Errorf("不支持的输出格式 %s", r.format)
	}
}

func (r *Renderer) renderPDF(result *layout.Result) ([]byte, error) {
	var buf bytes.Buffer
	writer := pdf.New(&buf, result.Pages[0].Width, result.Pages[0].Height, nil)
	r.applyMeta(writer, result.Meta)
	for i, page := range result.Pages {
		if i > 0 {
			writer.NewPage(page.Width, page.Height)
		}
		c, err := r.drawCanvas(page, result.Resources)
		if err != nil {
			return nil, err
		}
		c.RenderTo(writer)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("写入 PDF 失败: %w", err)
	}
	return buf.Bytes(), nil
}

func encodeSVG(c *canvas.Canvas) ([]byte, error) {
	var buf bytes.Buffer
	writer := svg.New(&buf, c.W, c.H, nil)
	c.RenderTo(writer)
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("写入 SVG 失败: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) encodePNG(c *canvas.Canvas) ([]byte, error) {
	img := rasterizer.Draw(c, canvas.DPMM(r.dpmm), canvas.DefaultColorSpace)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("写入 PNG 失败: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) applyMeta(writer *pdf.PDF, meta layout.DocumentMeta) {
	if writer == nil {
		return
	}
	keywords := strings.Join(meta.Keywords, ", ")
	writer.SetInfo(meta.Title, meta.Subject, keywords, meta.Author, meta.Creator)
}

func (r *Renderer) drawCanvas(page layout.Page, resources layout.ResourceSet) (*canvas.Canvas, error) {
	c := canvas.New(page.Width, page.Height)
	ctx := canvas.NewContext(c)
	ctx.SetCoordSystem(canvas.CartesianIV) // 使坐标与布局保持左上角为原点

	// 白色背景，PNG 默认是透明的
	ctx.SetFillColor(canvas.White)
	ctx.SetStrokeColor(color.RGBA{0, 0, 0, 0})
	ctx.DrawPath(0, 0, canvas.Rectangle(page.Width, page.Height))

	if err := r.drawObstacles(ctx, page.Obstacles); err != nil {
		return nil, err
	}
	fontRes := resolveFontResource(page.Text.Font, resources.Fonts)
	if err := r.drawFlow(ctx, page.Text, fontRes); err != nil {
		return nil, err
	}
	return c, nil
}

// drawFlow 在每行基线处绘制文本。FlowLine.X 是绘制锚点，含义随对齐方式变化，与 canvas 的 TextAlign 一致。
func (r *Renderer) drawFlow(ctx *canvas.Context, tf layout.TextFlow, fontRes layout.FontResource) error {
	if len(tf.Lines) == 0 {
		return nil
	}
	entry, err := r.ensureFontFamily(fontRes)
	if err != nil {
		return err
	}
	face := entry.coloredFace(toPt(tf.FontSize), tf.Italic, tf.Color)

	var textAlign canvas.TextAlign
	switch strings.ToLower(tf.Align) {
	case "center":
		textAlign = canvas.Center
	case "right":
		textAlign = canvas.Right
	default:
		textAlign = canvas.Left
	}

	for _, line := range tf.Lines {
		if line.Content == "" {
			continue
		}
		if tf.LetterSpacing == 0 {
			ctx.DrawText(line.X, line.Y, canvas.NewTextLine(face, line.Content, textAlign))
			continue
		}
		// 有字间距时逐字绘制，从左边缘开始累加
		left := line.X
		switch textAlign {
		case canvas.Right:
			left -= line.Width
		case canvas.Center:
			left -= line.Width / 2
		}
		runes := []rune(line.Content)
		for i, x := range runeOffsets(face, runes, tf.LetterSpacing) {
			ctx.DrawText(left+x, line.Y, canvas.NewTextLine(face, string(runes[i]), canvas.Left))
		}
	}
	return nil
}

// runeOffsets 返回每个字符相对行首的绘制位置，包含字偶距与字间距，
// 与 faceMeasurer.AdvanceWidth 对整行的测量一致。
func runeOffsets(face *canvas.FontFace, runes []rune, spacing float64) []float64 {
	out := make([]float64, len(runes))
	for i := range runes {
		out[i] = face.TextWidth(string(runes[:i+1])) - face.TextWidth(string(runes[i])) + spacing*float64(i)
	}
	return out
}

func (r *Renderer) drawObstacles(ctx *canvas.Context, obstacles []layout.ObstacleBox) error {
	for _, o := range obstacles {
		if o.Width <= 0 || o.Height <= 0 {
			continue
		}
		if o.Image != "" {
			img, err := r.loadImage(o.Image)
			if err != nil {
				return err
			}
			dx, dy, dpmm := fitImage(img.Bounds(), o.Width, o.Height)
			ctx.DrawImage(o.X+dx, o.Y+dy, img, canvas.DPMM(dpmm))
			continue
		}
		if o.Fill != nil {
			ctx.SetFillColor(colorFromLayout(*o.Fill))
		} else {
			ctx.SetFillColor(color.RGBA{0, 0, 0, 0})
		}
		if o.Stroke != nil {
			ctx.SetStrokeColor(colorFromLayout(*o.Stroke))
			ctx.SetStrokeWidth(obstacleStrokeWidth)
		} else {
			ctx.SetStrokeColor(color.RGBA{0, 0, 0, 0})
		}
		ctx.DrawPath(o.X, o.Y, canvas.Rectangle(o.Width, o.Height))
	}
	return nil
}

// fitImage 等比缩放图片使其完整落在 w×h 的障碍物框内并居中，返回偏移与分辨率。
func fitImage(bounds image.Rectangle, w, h float64) (dx, dy, dpmm float64) {
	px, py := float64(bounds.Dx()), float64(bounds.Dy())
	if px <= 0 || py <= 0 {
		return 0, 0, 1
	}
	dpmm = max(px/w, py/h)
	return (w - px/dpmm) / 2, (h - py/dpmm) / 2, dpmm
}

func (r *Renderer) loadImage(orig string) (image.Image, error) {
	// built-in resources take precedence
	if strings.HasPrefix(orig, "built-in:") || strings.HasPrefix(orig, "builtin:") {
		name := strings.TrimPrefix(strings.TrimPrefix(orig, "built-in:"), "builtin:")
		blob, ok := r.imageBlobs[name]
		if !ok {
			return nil, fmt.Errorf("找不到内置图片资源 built-in:%s", name)
		}
		img, _, err := image.Decode(bytes.NewReader(blob))
		if err != nil {
			return nil, fmt.Errorf("解码内置图片 built-in:%s 失败: %w", name, err)
		}
		return img, nil
	}
	if strings.HasPrefix(orig, "embed:") {
		return nil, fmt.Errorf("图片资源 %s 未找到（embed 仅支持内置字体，暂不支持图片）", orig)
	}
	if r.baseDir == "" && !filepath.IsAbs(orig) {
		return nil, fmt.Errorf("未指定资源目录时不允许直接使用路径：%s（请改用 built-in: 或 embed:）", orig)
	}
	path := orig
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.baseDir, path)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("读取图片 %s 失败: %w", orig, err)
	}
	defer file.Close()
	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("解码图片 %s 失败: %w", orig, err)
	}
	return img, nil
}

func colorFromLayout(c layout.Color) color.Color {
	return canvas.RGBA(float64(c.R)/255.0, float64(c.G)/255.0, float64(c.B)/255.0, 1.0)
}
