package layout

import "github.com/ByLCY/textflow/reflow"

// 该文件定义布局结果与资源描述，供布局计算、渲染与调试 JSON 共用。坐标单位均为 mm，原点在页面左上角。

// Result 保存布局后的页面与资源信息，每个 flow 段落对应一页。
type Result struct {
	Pages     []Page       `json:"pages"`
	Resources ResourceSet  `json:"resources"`
	Meta      DocumentMeta `json:"meta"`
}

// ResourceSet 记录解析出的字体、颜色与图片定义。
type ResourceSet struct {
	Fonts  map[string]FontResource  `json:"fonts"`
	Colors map[string]Color         `json:"colors"`
	Images map[string]ImageResource `json:"images"`
	Styles map[string]Style         `json:"styles"`
}

// FontResource 描述字体资源，src 可以是文件路径或 embed:<go|gobold|gomono> 内置字体。
type FontResource struct {
	Name   string `json:"name"`
	Src    string `json:"src"`
	Italic string `json:"italic,omitempty"` // 可选的斜体字形文件
	Style  string `json:"style,omitempty"`
	Family string `json:"family"` // 渲染器使用的 Family 名称
}

// ImageResource 记录图片资源，宽高统一以毫米为单位保存。
type ImageResource struct {
	Name   string  `json:"name"`
	Src    string  `json:"src"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Color 采用 0-255 的 RGB 数值。
type Color struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// Style 用于描述可继承的文本样式。
type Style struct {
	Name    string            `json:"name"`
	Extends string            `json:"extends,omitempty"`
	Props   map[string]string `json:"props"`
}

// DocumentMeta 保存 PDF 元信息。
type DocumentMeta struct {
	Title    string   `json:"title"`
	Author   string   `json:"author"`
	Subject  string   `json:"subject"`
	Creator  string   `json:"creator"`
	Keywords []string `json:"keywords"`
}

// Page 记录页面尺寸、边距、文本容器与其中已经排好坐标的障碍物和文本行。
type Page struct {
	Name      string        `json:"name"`
	Width     float64       `json:"width"`
	Height    float64       `json:"height"`
	Margin    Margin        `json:"margin"`
	Container Box           `json:"container"`
	Obstacles []ObstacleBox `json:"obstacles"`
	Text      TextFlow      `json:"text"`
}

// Margin 以毫米为单位。
type Margin struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

// Box 是页面坐标系中的矩形。
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ObstacleBox 是贴边放置的障碍物：图片或纯色矩形。
type ObstacleBox struct {
	Box
	Image  string `json:"image,omitempty"` // 图片路径，空表示绘制矩形
	Fill   *Color `json:"fill,omitempty"`
	Stroke *Color `json:"stroke,omitempty"`
}

// TextFlow 是围绕障碍物排好的一段文本。
type TextFlow struct {
	Font          string     `json:"font"`
	FontSize      float64    `json:"fontSize"`
	LineHeight    float64    `json:"lineHeight"`
	LetterSpacing float64    `json:"letterSpacing,omitempty"`
	Italic        bool       `json:"italic,omitempty"`
	Color         Color      `json:"color"`
	Align         string     `json:"align"` // left/center/right，决定 FlowLine.X 的含义
	Lines         []FlowLine `json:"lines"`
	// ContentHeight 为文本实际占用的高度；受容器高度截断时等于容器高度。
	ContentHeight float64    `json:"contentHeight"`
	HeightLimited bool       `json:"heightLimited"`
	Truncated     bool       `json:"truncated"`
	Debug         *FlowDebug `json:"debug,omitempty"`
}

// FlowLine 表示一行文本。X 为绘制锚点（left 为左边缘、right 为右边缘、center 为中心），Y 为基线。
type FlowLine struct {
	Content   string  `json:"content"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Width     float64 `json:"width"`
	Available float64 `json:"available"`
	Final     bool    `json:"final,omitempty"`
}

// FlowDebug holds optional debug info displayed only when enabled by BuildOptions.
type FlowDebug struct {
	RawUnits     *RawUnits     `json:"rawUnits,omitempty"`
	Stacking     string        `json:"stacking,omitempty"`
	AlignContent string        `json:"alignContent,omitempty"`
	Spans        []reflow.Span `json:"spans,omitempty"`
	Lines        []reflow.Line `json:"lines,omitempty"` // 容器坐标系下的原始行记录
}

// RawUnits describes original author-specified units for key fields.
type RawUnits struct {
	FontSize   *RawLengthJSON     `json:"fontSize,omitempty"`
	LineHeight *RawLineHeightJSON `json:"lineHeight,omitempty"`
}

// RawLengthJSON is a JSON-friendly representation of Length.
type RawLengthJSON struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// RawLineHeightJSON is a JSON-friendly representation of LineHeightSpec.
type RawLineHeightJSON struct {
	Kind   string  `json:"kind"` // "factor" | "absolute"
	Factor float64 `json:"factor,omitempty"`
	Value  float64 `json:"value,omitempty"`
	Unit   string  `json:"unit,omitempty"`
}
