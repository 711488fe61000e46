package dsl_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ByLCY/textflow/dsl"
)

const sampleDSL = `
doc Brochure v1 {
  meta {
    title: "Lighthouses"
    keywords: [
      "coast"
      "travel"
    ]
  }

  resources {
    font Body {
      src: "embed:go"
    }

    color Ink = #333
    image Cover { src: "cover.png" width: 40mm height: 30mm }
    style Body { font: Body size: 11pt line-height: 1.4x color: Ink }
  }

  // one flow per page
  flow Intro page A5 margin 12mm {
    container width 100% height auto
    content right
    obstacle Cover
    obstacle width 20mm height 10mm fill #eee
    text Body align left indent 6mm overflow ellipsis max-lines 12 {
      "Hello, ${reader.name}!\n"
      "Second paragraph."
    }
  }
}
`

func TestParseDocument(t *testing.T) {
	doc, err := dsl.ParseString(sampleDSL)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if doc.Name != "Brochure" || doc.Version != "v1" {
		t.Fatalf("unexpected header: %s %s", doc.Name, doc.Version)
	}
	kinds := make([]string, 0, len(doc.Sections))
	for _, s := range doc.Sections {
		kinds = append(kinds, s.Kind())
	}
	if diff := cmp.Diff([]string{"meta", "resources", "flow"}, kinds); diff != "" {
		t.Fatalf("section kinds (-want +got):\n%s", diff)
	}

	meta := doc.Sections[0].Meta
	title := meta.Block.Statements[0].Assignment
	if title == nil || title.Key != "title" || title.Value.Text() != "Lighthouses" {
		t.Fatalf("expected title assignment, got %+v", meta.Block.Statements[0])
	}
	keywords := meta.Block.Statements[1].Assignment
	if diff := cmp.Diff([]string{"coast", "travel"}, keywords.Value.Strings()); diff != "" {
		t.Fatalf("keywords (-want +got):\n%s", diff)
	}

	flows := doc.Flows()
	if len(flows) != 1 {
		t.Fatalf("expected 1 flow, got %d", len(flows))
	}
	flow := flows[0]
	if flow.Name != "Intro" {
		t.Fatalf("flow name: %s", flow.Name)
	}
	params := make([]string, 0, len(flow.Params))
	for _, p := range flow.Params {
		params = append(params, p.Value)
	}
	if diff := cmp.Diff([]string{"page", "A5", "margin", "12mm"}, params); diff != "" {
		t.Fatalf("flow params (-want +got):\n%s", diff)
	}

	cmds := flow.Block.Commands()
	names := make([]string, 0, len(cmds))
	for _, c := range cmds {
		names = append(names, c.Name)
	}
	if diff := cmp.Diff([]string{"container", "content", "obstacle", "obstacle", "text"}, names); diff != "" {
		t.Fatalf("flow commands (-want +got):\n%s", diff)
	}

	_, box := cmds[3].Attributes(false)
	if diff := cmp.Diff(map[string]string{"width": "20mm", "height": "10mm", "fill": "#eee"}, box); diff != "" {
		t.Fatalf("obstacle attributes (-want +got):\n%s", diff)
	}

	text := cmds[4]
	style, attrs := text.Attributes(true)
	if style != "Body" {
		t.Fatalf("text style: %q", style)
	}
	want := map[string]string{"align": "left", "indent": "6mm", "overflow": "ellipsis", "max-lines": "12"}
	if diff := cmp.Diff(want, attrs); diff != "" {
		t.Fatalf("text attributes (-want +got):\n%s", diff)
	}
	if got := text.Block.Text(); got != "Hello, ${reader.name}!\nSecond paragraph." {
		t.Fatalf("text content: %q", got)
	}
}

func TestAttributesWithoutStyle(t *testing.T) {
	doc, err := dsl.ParseString(`doc T v1 { flow F { text align center italic { "x" } } }`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	text := doc.Flows()[0].Block.Commands()[0]
	style, attrs := text.Attributes(true)
	if style != "" {
		t.Fatalf("attribute key must not be taken as style, got %q", style)
	}
	if diff := cmp.Diff(map[string]string{"align": "center", "italic": "true"}, attrs); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestParseExpressionValue(t *testing.T) {
	doc, err := dsl.ParseString(`doc T v1 {
  meta {
    author: data.owner.name
  }
}`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	author := doc.Sections[0].Meta.Block.Statements[0].Assignment
	if author == nil || author.Value.Expr == nil {
		t.Fatalf("expected expression value, got %+v", doc.Sections[0].Meta.Block.Statements[0])
	}
	if got := tokensToString(author.Value.Expr.Parts); got != "data . owner . name" {
		t.Fatalf("unexpected expression tokens: %s", got)
	}
	if got := author.Value.Text(); got != "data.owner.name" {
		t.Fatalf("Text() = %q", got)
	}
}

func TestParseRejectsUnknownSection(t *testing.T) {
	if _, err := dsl.ParseString(`doc T v1 { page A4 { } }`); err == nil {
		t.Fatal("expected error for unknown section")
	}
}

func tokensToString(parts []*dsl.Lexeme) string {
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		values = append(values, p.Value)
	}
	return strings.Join(values, " ")
}
