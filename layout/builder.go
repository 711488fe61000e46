package layout

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"github.com/ByLCY/textflow/binding"
	"github.com/ByLCY/textflow/dsl"
	"github.com/ByLCY/textflow/reflow"
)

const (
	defaultMargin    = 10.0
	defaultFontPt    = 12.0
	defaultLineRatio = 1.4
)

var defaultColor = Color{R: 30, G: 30, B: 30}

// Build 根据 DSL AST 生成每个 flow 的页面、障碍物与文本行。
// 各 flow 之间互不依赖，按 Parallelism 并发排版，输出顺序与文档顺序一致。
func Build(doc *dsl.Document, data any, opts BuildOptions) (*Result, error) {
	if doc == nil {
		return nil, fmt.Errorf("文档为空")
	}
	if opts.Typesetter == nil {
		return nil, fmt.Errorf("layout: 缺少排版后端 Typesetter")
	}

	res, err := collectResources(doc)
	if err != nil {
		return nil, err
	}
	meta := collectMeta(doc, data)
	flows := doc.Flows()
	if len(flows) == 0 {
		return nil, fmt.Errorf("文档中缺少 flow 段落")
	}

	pages := make([]Page, len(flows))
	var g errgroup.Group
	if opts.Parallelism > 0 {
		g.SetLimit(opts.Parallelism)
	}
	for i, section := range flows {
		g.Go(func() error {
			page, err := buildPage(section, res, data, opts)
			if err != nil {
				return fmt.Errorf("flow %s: %w", section.Name, err)
			}
			pages[i] = page
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Result{
		Pages:     pages,
		Resources: res,
		Meta:      meta,
	}, nil
}

// flowDecl 汇总 flow 块内的声明，尚未做几何计算。
type flowDecl struct {
	width     Dimension
	height    Dimension
	side      reflow.Side
	stacking  reflow.Stacking
	obstacles []ObstacleBox
	text      *dsl.Command
}

func buildPage(section *dsl.FlowSection, res ResourceSet, data any, opts BuildOptions) (Page, error) {
	if section.Block == nil {
		return Page{}, fmt.Errorf("flow 段落缺少内容")
	}
	width, height, margin, err := resolvePage(section.Params)
	if err != nil {
		return Page{}, err
	}
	decl, err := collectFlow(section.Block, res)
	if err != nil {
		return Page{}, err
	}

	contentW := width - margin.Left - margin.Right
	contentH := height - margin.Top - margin.Bottom
	container := Box{X: margin.Left, Y: margin.Top, Width: contentW, Height: contentH}
	if w, ok := decl.width.Resolve(contentW); ok {
		container.Width = w
	}
	bounded := true
	if h, ok := decl.height.Resolve(contentH); ok {
		container.Height = h
	} else if decl.height.Auto {
		bounded = false
	}

	text, err := composeText(decl.text, res, data, opts)
	if err != nil {
		return Page{}, err
	}

	obstacles := make([]reflow.Obstacle, len(decl.obstacles))
	for i, o := range decl.obstacles {
		obstacles[i] = reflow.Obstacle{Width: o.Width, Height: o.Height}
	}
	in := reflow.Input{
		Text:         text.content,
		Width:        container.Width,
		Height:       container.Height,
		Obstacles:    obstacles,
		Stacking:     decl.stacking,
		AlignContent: decl.side,
		Style:        text.style,
	}
	if !bounded {
		in.Height = reflow.Unbounded()
	}
	measurer, err := opts.Typesetter.Measurer(text.font)
	if err != nil {
		return Page{}, fmt.Errorf("加载字体 %s 失败: %w", text.font.Name, err)
	}
	flowed, err := reflow.Layout(in, measurer)
	if err != nil {
		return Page{}, fmt.Errorf("排版失败: %w", err)
	}

	profile := reflow.NewProfile(obstacles, decl.stacking)
	placed := placeObstacles(decl.obstacles, profile.Spans(), container, decl.side)
	if !flowed.HeightLimited {
		container.Height = flowed.ContentHeight
		if b := profile.Bottom(); b > container.Height {
			container.Height = b
		}
	}
	if bottom := container.Y + container.Height + margin.Bottom; bottom > height {
		height = bottom
	}

	tf := text.flow
	tf.Lines = make([]FlowLine, 0, len(flowed.Lines))
	for _, l := range flowed.Lines {
		tf.Lines = append(tf.Lines, FlowLine{
			Content:   l.Text,
			X:         container.X + l.X,
			Y:         container.Y + l.Y,
			Width:     l.Advance,
			Available: l.Available,
			Final:     l.Final,
		})
	}
	tf.LineHeight = flowed.LineHeight
	tf.ContentHeight = flowed.ContentHeight
	tf.HeightLimited = flowed.HeightLimited
	tf.Truncated = flowed.Truncated
	if opts.Debug.Geometry {
		if tf.Debug == nil {
			tf.Debug = &FlowDebug{}
		}
		tf.Debug.Stacking = decl.stacking.String()
		tf.Debug.AlignContent = decl.side.String()
		tf.Debug.Spans = profile.Spans()
		tf.Debug.Lines = flowed.Lines
	}

	return Page{
		Name:      section.Name,
		Width:     width,
		Height:    height,
		Margin:    margin,
		Container: container,
		Obstacles: placed,
		Text:      tf,
	}, nil
}

// placeObstacles 把 reflow 给出的纵向区间映射到页面坐标，水平方向贴住所在一侧。
func placeObstacles(boxes []ObstacleBox, spans []reflow.Span, container Box, side reflow.Side) []ObstacleBox {
	out := make([]ObstacleBox, len(boxes))
	for i, box := range boxes {
		span := spans[i]
		box.Width = span.Width
		box.Height = span.Bottom - span.Top
		box.Y = container.Y + span.Top
		box.X = container.X
		if side == reflow.SideRight {
			box.X = container.X + container.Width - box.Width
		}
		out[i] = box
	}
	return out
}

func collectFlow(block *dsl.Block, res ResourceSet) (flowDecl, error) {
	full := Dimension{isPct: true, Percent: 100}
	decl := flowDecl{width: full, height: full}
	for _, cmd := range block.Commands() {
		switch strings.ToLower(cmd.Name) {
		case "container":
			_, attrs := cmd.Attributes(false)
			if v, ok := attrs["width"]; ok {
				d, err := ParseDimension(v)
				if err != nil || d.Auto {
					return decl, fmt.Errorf("container width 无效: %q", v)
				}
				decl.width = d
			}
			if v, ok := attrs["height"]; ok {
				d, err := ParseDimension(v)
				if err != nil {
					return decl, fmt.Errorf("container height 无效: %q", v)
				}
				decl.height = d
			}
		case "content":
			side, err := parseSide(firstWord(cmd))
			if err != nil {
				return decl, err
			}
			decl.side = side
		case "stacking":
			switch strings.ToLower(firstWord(cmd)) {
			case "", "consecutive", "stack":
				decl.stacking = reflow.StackConsecutive
			case "overlay":
				decl.stacking = reflow.StackOverlay
			default:
				return decl, fmt.Errorf("未知的 stacking 方式: %s", firstWord(cmd))
			}
		case "obstacle":
			box, err := parseObstacle(cmd, res)
			if err != nil {
				return decl, err
			}
			decl.obstacles = append(decl.obstacles, box)
		case "text":
			if decl.text != nil {
				return decl, fmt.Errorf("flow 仅支持一个 text 语句")
			}
			decl.text = cmd
		default:
			// 其余命令暂未实现，忽略即可
		}
	}
	if decl.text == nil {
		return decl, fmt.Errorf("flow 缺少 text 语句")
	}
	return decl, nil
}

func firstWord(cmd *dsl.Command) string {
	words := cmd.Words()
	if len(words) == 0 {
		return ""
	}
	return words[0]
}

func parseSide(v string) (reflow.Side, error) {
	switch strings.ToLower(v) {
	case "", "left", "start":
		return reflow.SideLeft, nil
	case "right", "end":
		return reflow.SideRight, nil
	default:
		return reflow.SideLeft, fmt.Errorf("未知的 content 方向: %s", v)
	}
}

// parseObstacle 支持两种写法：obstacle <图片资源名> [width ..] [height ..] 与 obstacle width .. height .. [fill ..] [stroke ..]。
func parseObstacle(cmd *dsl.Command, res ResourceSet) (ObstacleBox, error) {
	name, attrs := cmd.Attributes(true)
	if v := attrs["image"]; v != "" {
		name = v
	}
	var box ObstacleBox
	if name != "" {
		img, ok := res.Images[name]
		if !ok {
			return box, fmt.Errorf("图片资源 %s 未定义", name)
		}
		box.Image = img.Src
		box.Width, box.Height = img.Width, img.Height
	}
	if v := attrs["src"]; v != "" {
		box.Image = v
	}
	for key, dst := range map[string]*float64{"width": &box.Width, "height": &box.Height} {
		v, ok := attrs[key]
		if !ok {
			continue
		}
		l, err := ParseLength(v)
		if err != nil {
			return box, fmt.Errorf("obstacle %s 无效: %w", key, err)
		}
		*dst = l.ToMM()
	}
	if box.Width <= 0 || box.Height <= 0 {
		return box, fmt.Errorf("obstacle 需要正的 width 与 height")
	}
	if v := attrs["fill"]; v != "" {
		c := resolveColor(v, res)
		box.Fill = &c
	}
	if v := attrs["stroke"]; v != "" {
		c := resolveColor(v, res)
		box.Stroke = &c
	}
	if box.Image == "" && box.Fill == nil && box.Stroke == nil {
		c := Color{R: 220, G: 220, B: 220}
		box.Fill = &c
	}
	return box, nil
}

// composedText 是 text 语句解析后的结果：reflow 的样式参数与输出所需的字体/颜色信息。
type composedText struct {
	content string
	font    FontResource
	style   reflow.Style
	flow    TextFlow
}

func composeText(cmd *dsl.Command, res ResourceSet, data any, opts BuildOptions) (composedText, error) {
	var out composedText
	if cmd.Block == nil {
		return out, fmt.Errorf("text 语句缺少文本块")
	}
	styleName, inline := cmd.Attributes(true)
	if styleName != "" {
		if _, ok := res.Styles[styleName]; !ok {
			if _, isFont := res.Fonts[styleName]; !isFont {
				return out, fmt.Errorf("style %s 未定义", styleName)
			}
		}
	}
	attrs := mergeStyleAttributes(styleName, inline, res.Styles)
	// 统一为 NFC，组合字符按一个字符计宽与断行
	out.content = norm.NFC.String(binding.Interpolate(cmd.Block.Text(), data))

	fontName := attrs["font"]
	if fontName == "" {
		fontName = styleName
	}
	font, err := resolveFontResource(fontName, res)
	if err != nil {
		return out, err
	}
	out.font = font

	fontSize := Length{Value: defaultFontPt, Unit: UnitPT}
	if v := attrs["size"]; v != "" {
		if fontSize, err = ParseLength(v); err != nil {
			return out, fmt.Errorf("字号无效: %w", err)
		}
	}
	lineSpec := LineHeightSpec{Kind: LineHeightFactor, Factor: defaultLineRatio}
	if v := attrs["line-height"]; v != "" {
		if lineSpec, err = ParseLineHeight(v); err != nil {
			return out, fmt.Errorf("行高无效: %w", err)
		}
	}

	style := reflow.Style{
		FontSize:   fontSize.ToMM(),
		LineHeight: lineSpec.ResolveMM(fontSize),
	}
	if style.Align, err = parseAlign(attrs["align"]); err != nil {
		return out, err
	}
	if v := attrs["overflow"]; v != "" {
		switch strings.ToLower(v) {
		case "clip":
			style.Overflow = reflow.OverflowClip
		case "ellipsis":
			style.Overflow = reflow.OverflowEllipsis
		default:
			return out, fmt.Errorf("未知的 overflow: %s", v)
		}
	}
	if v := attrs["max-lines"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return out, fmt.Errorf("max-lines 无效: %q", v)
		}
		style.MaxLines = n
	}
	for key, dst := range map[string]*float64{"indent": &style.ParagraphIndent, "spacing": &style.LetterSpacing} {
		v := attrs[key]
		if v == "" {
			continue
		}
		l, err := ParseLength(v)
		if err != nil {
			return out, fmt.Errorf("%s 无效: %w", key, err)
		}
		*dst = l.ToMM()
	}
	italic := strings.EqualFold(attrs["italic"], "true") ||
		strings.Contains(strings.ToLower(attrs["style"]), "italic") ||
		strings.Contains(strings.ToLower(font.Style), "italic")
	if italic {
		style.FontStyle = reflow.FontItalic
	}
	out.style = style

	out.flow = TextFlow{
		Font:          font.Name,
		FontSize:      style.FontSize,
		LetterSpacing: style.LetterSpacing,
		Italic:        italic,
		Color:         resolveColor(attrs["color"], res),
		Align:         style.Align.String(),
	}
	if opts.Debug.RawUnits {
		raw := &RawUnits{
			FontSize: &RawLengthJSON{Value: fontSize.Value, Unit: fontSize.Unit.String()},
		}
		switch lineSpec.Kind {
		case LineHeightAbsolute:
			raw.LineHeight = &RawLineHeightJSON{Kind: "absolute", Value: lineSpec.Len.Value, Unit: lineSpec.Len.Unit.String()}
		default:
			raw.LineHeight = &RawLineHeightJSON{Kind: "factor", Factor: lineSpec.Factor}
		}
		out.flow.Debug = &FlowDebug{RawUnits: raw}
	}
	return out, nil
}

func parseAlign(v string) (reflow.Align, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "left", "start":
		return reflow.AlignLeft, nil
	case "right", "end":
		return reflow.AlignRight, nil
	case "center", "middle":
		return reflow.AlignCenter, nil
	default:
		return reflow.AlignLeft, fmt.Errorf("未知的 align: %s", v)
	}
}

func collectResources(doc *dsl.Document) (ResourceSet, error) {
	res := ResourceSet{
		Fonts:  map[string]FontResource{},
		Colors: map[string]Color{},
		Images: map[string]ImageResource{},
		Styles: map[string]Style{},
	}
	rawStyles := map[string]Style{}

	for _, section := range doc.Sections {
		if section.Resources == nil || section.Resources.Block == nil {
			continue
		}
		for _, cmd := range section.Resources.Block.Commands() {
			switch cmd.Name {
			case "font":
				font := parseFontResource(cmd)
				if font.Name != "" {
					res.Fonts[font.Name] = font
				}
			case "color":
				name, value := parseColorResource(cmd)
				if name == "" || value == "" {
					continue
				}
				c, err := parseColor(value)
				if err != nil {
					return res, err
				}
				res.Colors[name] = c
			case "image":
				image, err := parseImageResource(cmd)
				if err != nil {
					return res, err
				}
				if image.Name != "" {
					res.Images[image.Name] = image
				}
			case "style":
				style := parseStyleResource(cmd)
				if style.Name != "" {
					rawStyles[style.Name] = style
				}
			}
		}
	}

	if _, ok := res.Fonts["Body"]; !ok {
		res.Fonts["Body"] = FontResource{Name: "Body", Src: "embed:go", Family: "Body"}
	}

	resolvedStyles, err := resolveStyles(rawStyles)
	if err != nil {
		return res, err
	}
	res.Styles = resolvedStyles

	return res, nil
}

func collectMeta(doc *dsl.Document, data any) DocumentMeta {
	meta := DocumentMeta{
		Creator: "textflow",
	}
	for _, section := range doc.Sections {
		if section.Meta == nil || section.Meta.Block == nil {
			continue
		}
		for _, stmt := range section.Meta.Block.Statements {
			if stmt.Assignment == nil {
				continue
			}
			val := stmt.Assignment.Value
			switch strings.ToLower(stmt.Assignment.Key) {
			case "title":
				meta.Title = binding.Interpolate(val.Text(), data)
			case "author":
				meta.Author = binding.Interpolate(val.Text(), data)
			case "subject":
				meta.Subject = binding.Interpolate(val.Text(), data)
			case "creator":
				meta.Creator = val.Text()
			case "keywords":
				meta.Keywords = val.Strings()
			}
		}
	}
	return meta
}

func parseFontResource(cmd *dsl.Command) FontResource {
	if len(cmd.Args) == 0 {
		return FontResource{}
	}
	font := FontResource{
		Name:   cmd.Args[0].Value,
		Family: cmd.Args[0].Value,
	}
	if cmd.Block == nil {
		return font
	}
	for _, stmt := range cmd.Block.Statements {
		if stmt.Assignment == nil {
			continue
		}
		switch stmt.Assignment.Key {
		case "src":
			font.Src = stmt.Assignment.Value.Text()
		case "italic":
			font.Italic = stmt.Assignment.Value.Text()
		case "style":
			font.Style = stmt.Assignment.Value.Text()
		case "family":
			font.Family = stmt.Assignment.Value.Text()
		}
	}
	return font
}

func parseImageResource(cmd *dsl.Command) (ImageResource, error) {
	if len(cmd.Args) == 0 {
		return ImageResource{}, nil
	}
	image := ImageResource{
		Name: cmd.Args[0].Value,
	}
	if cmd.Block == nil {
		return image, nil
	}

	for _, stmt := range cmd.Block.Statements {
		if stmt.Assignment == nil {
			continue
		}
		switch stmt.Assignment.Key {
		case "src":
			image.Src = stmt.Assignment.Value.Text()
		case "width", "height":
			l, err := ParseLength(stmt.Assignment.Value.Text())
			if err != nil {
				return image, fmt.Errorf("image %s 的 %s 无效: %w", image.Name, stmt.Assignment.Key, err)
			}
			if stmt.Assignment.Key == "width" {
				image.Width = l.ToMM()
			} else {
				image.Height = l.ToMM()
			}
		}
	}
	return image, nil
}

func parseStyleResource(cmd *dsl.Command) Style {
	if len(cmd.Args) == 0 {
		return Style{}
	}
	style := Style{
		Name:  cmd.Args[0].Value,
		Props: map[string]string{},
	}
	if len(cmd.Args) >= 3 && strings.EqualFold(cmd.Args[1].Value, "extends") {
		style.Extends = cmd.Args[2].Value
	}

	if cmd.Block == nil {
		return style
	}

	for _, stmt := range cmd.Block.Statements {
		if stmt.Assignment == nil {
			continue
		}
		val := stmt.Assignment.Value.Text()
		if val == "" {
			continue
		}
		style.Props[stmt.Assignment.Key] = val
	}
	return style
}

func resolveStyles(styles map[string]Style) (map[string]Style, error) {
	resolved := map[string]Style{}
	visiting := map[string]bool{}

	var dfs func(name string) (Style, error)
	dfs = func(name string) (Style, error) {
		if style, ok := resolved[name]; ok {
			return style, nil
		}
		style, ok := styles[name]
		if !ok {
			return Style{}, fmt.Errorf("style %s 未定义", name)
		}
		if visiting[name] {
			return Style{}, fmt.Errorf("style 继承存在循环：%s", name)
		}
		visiting[name] = true

		props := map[string]string{}
		if style.Extends != "" {
			parent, err := dfs(style.Extends)
			if err != nil {
				return Style{}, err
			}
			for k, v := range parent.Props {
				props[k] = v
			}
		}
		for k, v := range style.Props {
			props[k] = v
		}
		style.Props = props
		resolved[name] = style
		delete(visiting, name)
		return style, nil
	}

	for name := range styles {
		if _, err := dfs(name); err != nil {
			return nil, err
		}
	}
	return resolved, nil
}

func parseColorResource(cmd *dsl.Command) (string, string) {
	words := cmd.Words()
	if len(words) == 0 {
		return "", ""
	}
	name := words[0]
	for _, w := range words[1:] {
		if w != "=" {
			return name, w
		}
	}
	return name, ""
}

// resolvePage 解析 flow 参数：page <A4|A5|Letter|宽 高> [portrait|landscape] [margin 1-4 个值]。
func resolvePage(params []*dsl.Lexeme) (float64, float64, Margin, error) {
	width, height := pageSizes["A4"][0], pageSizes["A4"][1]
	margin := Margin{Top: defaultMargin, Right: defaultMargin, Bottom: defaultMargin, Left: defaultMargin}
	landscape := false

	for i := 0; i < len(params); i++ {
		switch strings.ToLower(params[i].Value) {
		case "page", "size":
			if i+1 >= len(params) {
				return 0, 0, margin, fmt.Errorf("page 缺少尺寸")
			}
			first := params[i+1]
			if first.Type == "Number" {
				if i+2 >= len(params) {
					return 0, 0, margin, fmt.Errorf("自定义页面尺寸需要宽和高")
				}
				w, errW := ParseLength(first.Value)
				h, errH := ParseLength(params[i+2].Value)
				if errW != nil || errH != nil || w.ToMM() <= 0 || h.ToMM() <= 0 {
					return 0, 0, margin, fmt.Errorf("自定义页面尺寸无效: %s %s", first.Value, params[i+2].Value)
				}
				width, height = w.ToMM(), h.ToMM()
				i += 2
				continue
			}
			w, h, err := ParsePageSize(first.Value)
			if err != nil {
				return 0, 0, margin, err
			}
			width, height = w, h
			i++
		case "landscape":
			landscape = true
		case "portrait":
			landscape = false
		case "margin":
			var vals []float64
			for i+1 < len(params) && params[i+1].Type == "Number" {
				l, err := ParseLength(params[i+1].Value)
				if err != nil {
					return 0, 0, margin, fmt.Errorf("margin 无效: %w", err)
				}
				vals = append(vals, l.ToMM())
				i++
			}
			margin = marginFrom(vals, margin)
		default:
			return 0, 0, margin, fmt.Errorf("未知的 flow 参数 %s", params[i].Value)
		}
	}
	if landscape {
		width, height = height, width
	}
	if margin.Left+margin.Right >= width || margin.Top+margin.Bottom >= height {
		return 0, 0, margin, fmt.Errorf("边距超出页面尺寸")
	}
	return width, height, margin, nil
}

// marginFrom 沿用 CSS 语义：1 个值四边相同；2 个值为上下/左右；3 个值为上/左右/下；4 个及以上取前四个。
func marginFrom(vals []float64, fallback Margin) Margin {
	switch len(vals) {
	case 0:
		return fallback
	case 1:
		return Margin{Top: vals[0], Right: vals[0], Bottom: vals[0], Left: vals[0]}
	case 2:
		return Margin{Top: vals[0], Right: vals[1], Bottom: vals[0], Left: vals[1]}
	case 3:
		return Margin{Top: vals[0], Right: vals[1], Bottom: vals[2], Left: vals[1]}
	default:
		return Margin{Top: vals[0], Right: vals[1], Bottom: vals[2], Left: vals[3]}
	}
}

func mergeStyleAttributes(style string, inline map[string]string, styles map[string]Style) map[string]string {
	out := make(map[string]string)
	if style != "" {
		if s, ok := styles[style]; ok {
			for k, v := range s.Props {
				out[k] = v
			}
		}
	}
	for k, v := range inline {
		out[k] = v
	}
	return out
}

func resolveFontResource(name string, res ResourceSet) (FontResource, error) {
	if font, ok := res.Fonts[name]; ok {
		return font, nil
	}
	if name != "" {
		if _, isStyle := res.Styles[name]; !isStyle {
			return FontResource{}, fmt.Errorf("字体 %s 未定义", name)
		}
	}
	if font, ok := res.Fonts["Body"]; ok {
		return font, nil
	}
	return FontResource{}, fmt.Errorf("字体 %s 未定义，且没有可用的默认字体", name)
}

func resolveColor(value string, res ResourceSet) Color {
	if value == "" {
		return defaultColor
	}
	if c, ok := res.Colors[value]; ok {
		return c
	}
	if strings.HasPrefix(value, "#") {
		if c, err := parseColor(value); err == nil {
			return c
		}
	}
	return defaultColor
}

func parseColor(value string) (Color, error) {
	hex := strings.TrimPrefix(value, "#")
	switch len(hex) {
	case 3:
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	case 6, 8:
		hex = hex[:6]
	default:
		return Color{}, fmt.Errorf("颜色值 %s 无法解析", value)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("颜色值 %s 无法解析", value)
	}
	return Color{R: int(v >> 16 & 0xff), G: int(v >> 8 & 0xff), B: int(v & 0xff)}, nil
}
