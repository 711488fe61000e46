package layout

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestDebugJSONCarriesGeometry(t *testing.T) {
	src := `doc T v1 {
  flow F page 100mm 100mm margin 10mm {
    obstacle width 20mm height 10mm
    text size 4mm line-height 5mm { "aaaa bbbb" }
  }
}`
	res := mustBuild(t, src, nil, BuildOptions{Debug: DebugOptions{Geometry: true}})

	var buf bytes.Buffer
	if err := EncodeDebugJSON(&buf, res); err != nil {
		t.Fatalf("编码失败: %v", err)
	}
	var decoded struct {
		Pages []struct {
			Text struct {
				Lines []struct {
					Content string  `json:"content"`
					X       float64 `json:"x"`
				} `json:"lines"`
				Debug struct {
					Stacking string `json:"stacking"`
					Spans    []struct {
						Bottom float64 `json:"bottom"`
					} `json:"spans"`
				} `json:"debug"`
			} `json:"text"`
		} `json:"pages"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("解码失败: %v", err)
	}
	text := decoded.Pages[0].Text
	if len(text.Lines) != 1 || text.Lines[0].Content != "aaaa bbbb" || text.Lines[0].X != 30 {
		t.Fatalf("行信息不符: %+v", text.Lines)
	}
	if text.Debug.Stacking != "consecutive" || len(text.Debug.Spans) != 1 || text.Debug.Spans[0].Bottom != 10 {
		t.Fatalf("调试几何信息不符: %+v", text.Debug)
	}

	path := filepath.Join(t.TempDir(), "layout.json")
	if err := WriteDebugJSON(res, path); err != nil {
		t.Fatalf("写文件失败: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读文件失败: %v", err)
	}
	if !bytes.Equal(data, buf.Bytes()) {
		t.Fatal("文件内容应与编码结果一致")
	}
}
