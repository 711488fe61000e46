package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"

	"github.com/ByLCY/textflow/binding"
	"github.com/ByLCY/textflow/dsl"
	"github.com/ByLCY/textflow/layout"
	"github.com/ByLCY/textflow/measure"
	"github.com/ByLCY/textflow/renderer"
	canvasrenderer "github.com/ByLCY/textflow/renderer/canvas"
)

// options 汇总命令行参数。
type options struct {
	input         string
	output        string
	format        canvasrenderer.Format
	measurer      string
	page          int
	debugPath     string
	debugRawUnits bool
	debugGeometry bool
	parallelism   int
	data          any
}

func main() {
	input := flag.String("in", "examples/demo.textflow", "DSL 文件路径")
	output := flag.String("out", "output/demo.pdf", "输出文件路径")
	format := flag.String("format", "pdf", "输出格式：pdf、svg 或 png")
	measurer := flag.String("measurer", "canvas", "断行测量后端：canvas 或 sfnt")
	page := flag.Int("page", 0, "svg/png 输出的页下标")
	debug := flag.String("debug", "", "布局调试 JSON 输出路径")
	debugRawUnits := flag.Bool("debug-raw-units", false, "在调试 JSON 中输出 debug.rawUnits 影子字段")
	debugGeometry := flag.Bool("debug-geometry", false, "在调试 JSON 中输出障碍物轮廓与原始行记录")
	dataJSON := flag.String("data", "", "绑定到 DSL 的 JSON 数据")
	dataFile := flag.String("data-file", "", "绑定数据文件（.json/.yaml/.yml）")
	jobs := flag.Int("j", runtime.GOMAXPROCS(0), "并发排版的 flow 数量")
	flag.Parse()

	outFormat, err := canvasrenderer.ParseFormat(*format)
	if err != nil {
		log.Fatalf("参数错误: %v", err)
	}

	var inputData any
	switch {
	case *dataJSON != "" && *dataFile != "":
		log.Fatalf("参数错误: -data 与 -data-file 不能同时使用")
	case *dataJSON != "":
		if err := json.Unmarshal([]byte(*dataJSON), &inputData); err != nil {
			log.Fatalf("解析 data JSON 失败: %v", err)
		}
	case *dataFile != "":
		if inputData, err = binding.LoadFile(*dataFile); err != nil {
			log.Fatalf("读取数据文件失败: %v", err)
		}
	}

	opts := options{
		input:         *input,
		output:        *output,
		format:        outFormat,
		measurer:      *measurer,
		page:          *page,
		debugPath:     *debug,
		debugRawUnits: *debugRawUnits,
		debugGeometry: *debugGeometry,
		parallelism:   *jobs,
		data:          inputData,
	}
	if err := run(opts); err != nil {
		log.Fatalf("生成 %s 失败: %v", outFormat, err)
	}
	fmt.Printf("已生成 %s：%s\n", outFormat, opts.output)
}

// run 串联解析、布局与渲染。
func run(opts options) error {
	baseDir := filepath.Dir(opts.input)
	r := canvasrenderer.NewRendererWithOptions(canvasrenderer.Options{
		BaseDir: baseDir,
		Format:  opts.format,
		Page:    opts.page,
	})
	ts, err := typesetterFor(opts.measurer, baseDir, r)
	if err != nil {
		return err
	}
	if closer, ok := ts.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	doc, err := dsl.ParseFile(opts.input)
	if err != nil {
		return fmt.Errorf("解析 DSL 失败: %w", err)
	}

	result, err := layout.Build(doc, opts.data, layout.BuildOptions{
		Typesetter:  ts,
		Debug:       layout.DebugOptions{RawUnits: opts.debugRawUnits, Geometry: opts.debugGeometry},
		Parallelism: opts.parallelism,
	})
	if err != nil {
		return fmt.Errorf("布局计算失败: %w", err)
	}
	if checker, ok := ts.(interface{ Err() error }); ok {
		if err := checker.Err(); err != nil {
			return fmt.Errorf("字体测量失败: %w", err)
		}
	}

	if opts.debugPath != "" {
		if err := writeDebug(result, opts.debugPath); err != nil {
			return err
		}
	}

	return writeOutput(r, result, opts.output)
}

// typesetterFor 选择断行测量后端；canvas 与渲染共用同一字体实现，sfnt 直接读取字形度量。
func typesetterFor(name, baseDir string, r *canvasrenderer.Renderer) (layout.Typesetter, error) {
	switch name {
	case "", "canvas":
		return r, nil
	case "sfnt":
		return &measure.Typesetter{BaseDir: baseDir}, nil
	default:
		return nil, fmt.Errorf("未知的测量后端 %s", name)
	}
}

func writeOutput(r renderer.Renderer, result *layout.Result, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}
	data, err := r.Render(result)
	if err != nil {
		return fmt.Errorf("渲染失败: %w", err)
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return fmt.Errorf("写入输出文件失败: %w", err)
	}
	return nil
}

func writeDebug(result *layout.Result, debugPath string) error {
	if debugPath != "-" {
		if err := os.MkdirAll(filepath.Dir(debugPath), 0o755); err != nil {
			return fmt.Errorf("创建调试目录失败: %w", err)
		}
	}
	if err := layout.WriteDebugJSON(result, debugPath); err != nil {
		return fmt.Errorf("输出调试 JSON 失败: %w", err)
	}
	return nil
}
