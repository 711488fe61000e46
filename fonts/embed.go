package fonts

import (
	"fmt"
	"strings"

	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
)

// 内置字体使用 Go 字体族（BSD 许可），无需额外的字体文件即可排版与渲染。
var builtin = map[string][]byte{
	"goregular":    goregular.TTF,
	"goitalic":     goitalic.TTF,
	"gobold":       gobold.TTF,
	"gobolditalic": gobolditalic.TTF,
	"gomono":       gomono.TTF,
}

// Family 描述一个内置字体族的常规与斜体字形。
type Family struct {
	Regular []byte
	Italic  []byte
}

// Load 返回内置字体的字节数据，name 可写为 "embed:goregular" 或直接 "goregular"，也可带 .ttf 后缀。
func Load(name string) ([]byte, error) {
	key := normalize(name)
	data, ok := builtin[key]
	if !ok {
		return nil, fmt.Errorf("读取内置字体 %s 失败: 未知字体", name)
	}
	return data, nil
}

// LoadFamily 返回内置字体族。"go" 对应 goregular/goitalic，"gobold" 对应粗体，"gomono" 无斜体。
func LoadFamily(name string) (Family, error) {
	switch normalize(name) {
	case "go", "goregular", "goitalic":
		return Family{Regular: goregular.TTF, Italic: goitalic.TTF}, nil
	case "gobold", "gobolditalic":
		return Family{Regular: gobold.TTF, Italic: gobolditalic.TTF}, nil
	case "gomono":
		return Family{Regular: gomono.TTF}, nil
	default:
		return Family{}, fmt.Errorf("内置字体族 %s 不存在", name)
	}
}

func normalize(name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "embed:")
	name = strings.TrimSuffix(strings.ToLower(name), ".ttf")
	return strings.ReplaceAll(name, "-", "")
}
