package layout

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ByLCY/textflow/dsl"
	"github.com/ByLCY/textflow/reflow"
)

// stubTypesetter 是一个最小实现，仅用于测试，避免引入 renderer 造成循环依赖。
// 每个字符宽度为字号的一半。
type stubTypesetter struct {
	err error
}

func (s *stubTypesetter) Measurer(font FontResource) (reflow.Measurer, error) {
	if s.err != nil {
		return nil, s.err
	}
	return reflow.Monospace{Advance: 0.5}, nil
}

func buildDoc(t *testing.T, dslText string, data any, opts BuildOptions) (*Result, error) {
	t.Helper()
	doc, err := dsl.Parse(strings.NewReader(dslText))
	if err != nil {
		t.Fatalf("解析 DSL 失败: %v", err)
	}
	if opts.Typesetter == nil {
		opts.Typesetter = &stubTypesetter{}
	}
	return Build(doc, data, opts)
}

func mustBuild(t *testing.T, dslText string, data any, opts BuildOptions) *Result {
	t.Helper()
	res, err := buildDoc(t, dslText, data, opts)
	if err != nil {
		t.Fatalf("布局计算失败: %v", err)
	}
	return res
}

func lineContents(lines []FlowLine) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.Content)
	}
	return out
}

func TestBuildWrapsAroundRightObstacle(t *testing.T) {
	src := `doc T v1 {
  flow Intro page 100mm 100mm margin 10mm {
    container width 40mm height auto
    content right
    obstacle width 20mm height 10mm
    text size 4mm line-height 5mm { "aaaa bbbb cccc dddd" }
  }
}`
	res := mustBuild(t, src, nil, BuildOptions{})
	if len(res.Pages) != 1 {
		t.Fatalf("期望 1 页，实际 %d", len(res.Pages))
	}
	page := res.Pages[0]
	if page.Name != "Intro" || page.Width != 100 || page.Height != 100 {
		t.Fatalf("页面信息不符: %+v", page)
	}

	wantObs := []ObstacleBox{{Box: Box{X: 30, Y: 10, Width: 20, Height: 10}, Fill: &Color{R: 220, G: 220, B: 220}}}
	if diff := cmp.Diff(wantObs, page.Obstacles); diff != "" {
		t.Fatalf("障碍物位置 (-want +got):\n%s", diff)
	}

	wantLines := []FlowLine{
		{Content: "aaaa bbbb", X: 10, Y: 15, Width: 18, Available: 20},
		{Content: "cccc dddd", X: 10, Y: 20, Width: 18, Available: 20},
	}
	if diff := cmp.Diff(wantLines, page.Text.Lines); diff != "" {
		t.Fatalf("文本行 (-want +got):\n%s", diff)
	}
	if page.Container.Height != 10 || page.Text.HeightLimited || page.Text.Truncated {
		t.Fatalf("容器高度应等于内容与障碍物的最大值: %+v", page.Container)
	}
}

func TestBuildAutoHeightGrowsPage(t *testing.T) {
	text := strings.TrimSpace(strings.Repeat("aaaa ", 20))
	src := fmt.Sprintf(`doc T v1 {
  flow Long page 50mm 30mm margin 5mm {
    container height auto
    text size 4mm line-height 5mm { %q }
  }
}`, text)
	page := mustBuild(t, src, nil, BuildOptions{}).Pages[0]
	if len(page.Text.Lines) != 5 {
		t.Fatalf("期望 5 行，实际 %d: %v", len(page.Text.Lines), lineContents(page.Text.Lines))
	}
	if page.Container.Width != 40 || page.Container.Height != 25 {
		t.Fatalf("容器尺寸不符: %+v", page.Container)
	}
	if page.Height != 35 {
		t.Fatalf("自动高度应撑高页面到 35mm，实际 %.2f", page.Height)
	}
}

func TestBuildHeightLimitedEllipsis(t *testing.T) {
	text := strings.TrimSpace(strings.Repeat("aaaa ", 20))
	src := fmt.Sprintf(`doc T v1 {
  flow Short page 50mm 50mm margin 5mm {
    container height 12mm
    text size 4mm line-height 5mm overflow ellipsis { %q }
  }
}`, text)
	page := mustBuild(t, src, nil, BuildOptions{}).Pages[0]
	want := []string{"aaaa aaaa aaaa aaaa", "aaaa aaaa aaaa aa..."}
	if diff := cmp.Diff(want, lineContents(page.Text.Lines)); diff != "" {
		t.Fatalf("文本行 (-want +got):\n%s", diff)
	}
	if !page.Text.Lines[1].Final {
		t.Fatal("最后一行应标记为 Final")
	}
	if !page.Text.HeightLimited || !page.Text.Truncated {
		t.Fatalf("应当受高度限制并被截断: %+v", page.Text)
	}
	if page.Container.Height != 12 || page.Text.ContentHeight != 12 {
		t.Fatalf("受限时容器高度保持声明值: %+v", page.Container)
	}
	if page.Height != 50 {
		t.Fatalf("页面高度不应变化: %.2f", page.Height)
	}
}

func TestBuildStylesAndBinding(t *testing.T) {
	src := `doc T v1 {
  meta {
    title: "Hello ${user.name}"
    keywords: [ "a", "b" ]
  }
  resources {
    color Ink = #112233
    style Base { size: 4mm line-height: 5mm color: Ink }
    style Lead extends Base { align: right spacing: 1mm }
  }
  flow F page A5 {
    text Lead max-lines 3 { "Dear ${user.name|friend}" }
  }
}`
	data := map[string]any{"user": map[string]any{"name": "Ada"}}
	res := mustBuild(t, src, data, BuildOptions{})
	if res.Meta.Title != "Hello Ada" || res.Meta.Creator != "textflow" {
		t.Fatalf("元信息不符: %+v", res.Meta)
	}
	if diff := cmp.Diff([]string{"a", "b"}, res.Meta.Keywords); diff != "" {
		t.Fatalf("keywords (-want +got):\n%s", diff)
	}

	tf := res.Pages[0].Text
	if tf.Align != "right" || tf.LetterSpacing != 1 || tf.FontSize != 4 || tf.LineHeight != 5 {
		t.Fatalf("样式继承不符: %+v", tf)
	}
	if tf.Color != (Color{R: 0x11, G: 0x22, B: 0x33}) {
		t.Fatalf("颜色解析不符: %+v", tf.Color)
	}
	if tf.Font != "Body" {
		t.Fatalf("缺省字体应为 Body，实际 %s", tf.Font)
	}
	if len(tf.Lines) != 1 || tf.Lines[0].Content != "Dear Ada" {
		t.Fatalf("插值结果不符: %v", lineContents(tf.Lines))
	}
	// A5 宽 148mm，默认边距 10mm，右对齐锚点在容器右边缘。
	if got := tf.Lines[0].X; got != 138 {
		t.Fatalf("右对齐锚点应为 138，实际 %.2f", got)
	}
}

func TestBuildPageParams(t *testing.T) {
	tests := []struct {
		name       string
		params     string
		wantW      float64
		wantH      float64
		wantMargin Margin
	}{
		{"default", "", 210, 297, Margin{10, 10, 10, 10}},
		{"landscape", "page A4 landscape", 297, 210, Margin{10, 10, 10, 10}},
		{"custom", `page "120mmx80mm" margin 5mm 8mm`, 120, 80, Margin{5, 8, 5, 8}},
		{"two lengths", "page 12cm 80mm margin 1mm 2mm 3mm", 120, 80, Margin{1, 2, 3, 2}},
		{"four margins", "page Letter margin 1mm 2mm 3mm 4mm", 215.9, 279.4, Margin{1, 2, 3, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := fmt.Sprintf(`doc T v1 { flow F %s { text { "x" } } }`, tt.params)
			page := mustBuild(t, src, nil, BuildOptions{}).Pages[0]
			if page.Width != tt.wantW || page.Height != tt.wantH {
				t.Fatalf("页面尺寸 %.1fx%.1f，期望 %.1fx%.1f", page.Width, page.Height, tt.wantW, tt.wantH)
			}
			if diff := cmp.Diff(tt.wantMargin, page.Margin); diff != "" {
				t.Fatalf("边距 (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuildImageObstaclesStackOnLeft(t *testing.T) {
	src := `doc T v1 {
  resources {
    image Cover { src: "cover.png" width: 20mm height: 8mm }
  }
  flow F page 100mm 100mm margin 10mm {
    obstacle Cover
    obstacle width 10mm height 4mm stroke #f00
    text size 4mm line-height 4mm { "x" }
  }
}`
	page := mustBuild(t, src, nil, BuildOptions{}).Pages[0]
	want := []ObstacleBox{
		{Box: Box{X: 10, Y: 10, Width: 20, Height: 8}, Image: "cover.png"},
		{Box: Box{X: 10, Y: 18, Width: 10, Height: 4}, Stroke: &Color{R: 255}},
	}
	if diff := cmp.Diff(want, page.Obstacles); diff != "" {
		t.Fatalf("障碍物 (-want +got):\n%s", diff)
	}
	if got := page.Text.Lines[0].X; got != 30 {
		t.Fatalf("首行应从障碍物右侧开始，实际 X=%.2f", got)
	}
}

func TestBuildOverlayStacking(t *testing.T) {
	src := `doc T v1 {
  flow F page 100mm 100mm margin 10mm {
    stacking overlay
    obstacle width 20mm height 8mm
    obstacle width 30mm height 4mm
    text { "x" }
  }
}`
	page := mustBuild(t, src, nil, BuildOptions{Debug: DebugOptions{Geometry: true}}).Pages[0]
	if page.Obstacles[0].Y != 10 || page.Obstacles[1].Y != 10 {
		t.Fatalf("overlay 模式下障碍物应顶部对齐: %+v", page.Obstacles)
	}
	if page.Text.Debug == nil || page.Text.Debug.Stacking != "overlay" || len(page.Text.Debug.Spans) != 2 {
		t.Fatalf("调试信息缺失: %+v", page.Text.Debug)
	}
}

func TestBuildMultipleFlowsKeepOrder(t *testing.T) {
	var b strings.Builder
	b.WriteString("doc T v1 {\n")
	for i := 0; i < 8; i++ {
		fmt.Fprintf(&b, "  flow F%d { text { \"flow %d\" } }\n", i, i)
	}
	b.WriteString("}\n")
	res := mustBuild(t, b.String(), nil, BuildOptions{Parallelism: 3})
	if len(res.Pages) != 8 {
		t.Fatalf("期望 8 页，实际 %d", len(res.Pages))
	}
	for i, p := range res.Pages {
		if p.Name != fmt.Sprintf("F%d", i) || p.Text.Lines[0].Content != fmt.Sprintf("flow %d", i) {
			t.Fatalf("第 %d 页顺序错乱: %s %q", i, p.Name, p.Text.Lines[0].Content)
		}
	}
}

func TestBuildRawUnitsShadow(t *testing.T) {
	src := `doc T v1 { flow F { text size 11pt line-height 1.2x { "x" } } }`
	page := mustBuild(t, src, nil, BuildOptions{Debug: DebugOptions{RawUnits: true}}).Pages[0]
	dbg := page.Text.Debug
	if dbg == nil || dbg.RawUnits == nil {
		t.Fatal("期望输出 rawUnits 影子字段")
	}
	if dbg.RawUnits.FontSize.Value != 11 || dbg.RawUnits.FontSize.Unit != "pt" {
		t.Fatalf("字号原始单位不符: %+v", dbg.RawUnits.FontSize)
	}
	if dbg.RawUnits.LineHeight.Kind != "factor" || dbg.RawUnits.LineHeight.Factor != 1.2 {
		t.Fatalf("行高原始单位不符: %+v", dbg.RawUnits.LineHeight)
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"no flow", `doc T v1 { meta { title: "x" } }`, "缺少 flow"},
		{"no text", `doc T v1 { flow F { obstacle width 1mm height 1mm } }`, "缺少 text"},
		{"two texts", `doc T v1 { flow F { text { "a" } text { "b" } } }`, "仅支持一个 text"},
		{"unknown style", `doc T v1 { flow F { text Missing { "a" } } }`, "Missing 未定义"},
		{"style cycle", `doc T v1 { resources { style A extends B { size: 1mm } style B extends A { size: 2mm } } flow F { text A { "a" } } }`, "循环"},
		{"bad obstacle", `doc T v1 { flow F { obstacle width 1mm; text { "a" } } }`, "width 与 height"},
		{"unknown image", `doc T v1 { flow F { obstacle Nope; text { "a" } } }`, "Nope 未定义"},
		{"bad align", `doc T v1 { flow F { text align justify { "a" } } }`, "align"},
		{"bad param", `doc T v1 { flow F sideways { text { "a" } } }`, "sideways"},
		{"margin too big", `doc T v1 { flow F page 20mm 20mm margin 10mm { text { "a" } } }`, "边距"},
		{"bad max-lines", `doc T v1 { flow F { text max-lines -1 { "a" } } }`, "max-lines"},
		{"zero font size", `doc T v1 { flow F { text size 0mm { "a" } } }`, "排版失败"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildDoc(t, tt.src, nil, BuildOptions{})
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("期望包含 %q 的错误，实际 %v", tt.want, err)
			}
		})
	}
}

func TestBuildWrapsInvalidStyle(t *testing.T) {
	_, err := buildDoc(t, `doc T v1 { flow F { text size 0mm { "a" } } }`, nil, BuildOptions{})
	if !errors.Is(err, reflow.ErrInvalidStyle) {
		t.Fatalf("期望 ErrInvalidStyle，实际 %v", err)
	}
}

func TestBuildTypesetterFailure(t *testing.T) {
	boom := errors.New("boom")
	_, err := buildDoc(t, `doc T v1 { flow F { text { "a" } } }`, nil, BuildOptions{Typesetter: &stubTypesetter{err: boom}})
	if !errors.Is(err, boom) {
		t.Fatalf("期望包装 Typesetter 错误，实际 %v", err)
	}
}

func TestBuildNormalizesTextToNFC(t *testing.T) {
	// 4mm 字号，每字 2mm，容器宽 8mm 恰好容纳四个字符
	src := `doc T v1 {
  flow F page 100mm 100mm margin 10mm {
    container width 8mm
    text size 4mm line-height 5mm { "${word} bar" }
  }
}`
	res := mustBuild(t, src, map[string]any{"word": "cafe\u0301"}, BuildOptions{})
	got := lineContents(res.Pages[0].Text.Lines)
	if diff := cmp.Diff([]string{"caf\u00e9", "bar"}, got); diff != "" {
		t.Fatalf("组合字符应合并为一个字符 (-want +got):\n%s", diff)
	}
}
