package markup

import (
	"errors"
	"testing"
)

func mustParse(t *testing.T, text string) *Node {
	t.Helper()
	doc, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return doc
}

func TestParseEquation(t *testing.T) {
	t.Parallel()

	doc := mustParse(t, `<?xml version="1.0"?>
<math xmlns="http://www.w3.org/1998/Math/MathML">
  <apply><eq/>
    <ci>y</ci>
    <cn cellml:units="dimensionless">1</cn>
  </apply>
</math>`)

	math := doc.FirstElement()
	if math == nil || math.Name != "math" {
		t.Fatalf("expected math root, got %+v", math)
	}
	apply := math.FirstElement()
	if apply.Name != "apply" || apply.Line != 3 {
		t.Errorf("apply: name=%q line=%d", apply.Name, apply.Line)
	}
	kids := apply.Elements()
	if len(kids) != 3 {
		t.Fatalf("expected 3 apply children, got %d", len(kids))
	}
	if kids[0].Name != "eq" || len(kids[0].Children) != 0 {
		t.Errorf("first child: %+v", kids[0])
	}
	if kids[1].Name != "ci" || kids[1].TextContent() != "y" {
		t.Errorf("ci: name=%q text=%q", kids[1].Name, kids[1].TextContent())
	}
	if units, ok := kids[2].Attr("units"); !ok || units != "dimensionless" {
		t.Errorf("cn units attribute = %q, %v", units, ok)
	}
	if kids[2].Parent != apply {
		t.Error("parent link not set")
	}
}

func TestParseSeparatedNumber(t *testing.T) {
	t.Parallel()

	doc := mustParse(t, `<math><cn type="e-notation">1.5<sep/>3</cn></math>`)
	cn := doc.FirstElement().FirstElement()
	if len(cn.Children) != 3 {
		t.Fatalf("expected text, sep, text; got %d children", len(cn.Children))
	}
	if cn.Children[0].Kind != Text || cn.Children[1].Name != "sep" || cn.Children[2].Kind != Text {
		t.Errorf("unexpected layout: %+v", cn.Children)
	}
}

func TestParseNamespacePrefix(t *testing.T) {
	t.Parallel()

	doc := mustParse(t, `<mml:math><mml:ci>x</mml:ci></mml:math>`)
	math := doc.FirstElement()
	if math.Name != "math" || math.FirstElement().Name != "ci" {
		t.Errorf("prefixes not stripped: %q / %q", math.Name, math.FirstElement().Name)
	}
}

func TestParseEntity(t *testing.T) {
	t.Parallel()

	doc := mustParse(t, `<math><ci>a&amp;b</ci></math>`)
	if got := doc.FirstElement().FirstElement().TextContent(); got != "a&b" {
		t.Errorf("TextContent() = %q, want a&b", got)
	}
}

func TestParseMismatchedEndTag(t *testing.T) {
	t.Parallel()

	_, err := Parse(`<math><apply></ci></apply></math>`)
	if err == nil {
		t.Fatal("expected error for mismatched end tag")
	}
	var se *SyntaxError
	if !errors.As(err, &se) {
		t.Fatalf("expected *SyntaxError, got %T", err)
	}
}

func TestParseUnclosedElement(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		line int
	}{
		{
			name: "closed by ancestor end tag",
			text: "<math><apply><plus/><ci>a</ci></math>",
			line: 1,
		},
		{
			name: "sibling nested into unclosed apply",
			text: "<math>\n<apply><eq/><ci>y</ci><cn>1</cn>\n<apply><eq/><ci>z</ci><cn>2</cn></apply>\n</math>",
			line: 2,
		},
		{
			name: "unclosed root",
			text: "<math><ci>a</ci>",
			line: 1,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse(tt.text)
			var se *SyntaxError
			if !errors.As(err, &se) {
				t.Fatalf("expected *SyntaxError, got %v", err)
			}
			if se.Line != tt.line {
				t.Errorf("line = %d, want %d (%v)", se.Line, tt.line, se)
			}
		})
	}
}
