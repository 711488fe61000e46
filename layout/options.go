package layout

import "github.com/ByLCY/textflow/reflow"

// BuildOptions 配置布局阶段所需的依赖，例如排版后端。
type BuildOptions struct {
	Typesetter Typesetter
	Debug      DebugOptions
	// Parallelism 限制同时排版的 flow 数量，<=0 表示不限制。
	Parallelism int
}

// DebugOptions 控制调试相关输出。
type DebugOptions struct {
	RawUnits bool // 在调试 JSON 中输出 debug.rawUnits 影子字段
	Geometry bool // 输出障碍物轮廓与原始行记录
}

// Typesetter 为指定字体提供测量能力，供 reflow 计算断行位置。
// 返回的 Measurer 可能被多个 flow 并发使用。
type Typesetter interface {
	Measurer(font FontResource) (reflow.Measurer, error)
}
