package toon

import (
	"strings"
	"testing"

	"github.com/phobologic/cellanalyser/internal/report"
)

func TestEncodeValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", `""`},
		{"simple", "hello", "hello"},
		{"leading space", " hello", `" hello"`},
		{"trailing space", "hello ", `"hello "`},
		{"newline", "a\nb", `"a\nb"`},
		{"tab", "a\tb", `"a\tb"`},
		{"carriage return", "a\rb", `"a\rb"`},
		{"true keyword", "true", `"true"`},
		{"True keyword", "True", `"True"`},
		{"false keyword", "false", `"false"`},
		{"null keyword", "null", `"null"`},
		{"integer", "42", "42"},
		{"negative integer", "-1", "-1"},
		{"float", "3.14", "3.14"},
		{"zero", "0", "0"},
		{"leading zero invalid", "01", "01"},
		{"comma", "a,b", `"a,b"`},
		{"colon", "a:b", `"a:b"`},
		{"quote", `a"b`, `"a\"b"`},
		{"backslash", `a\b`, `"a\\b"`},
		{"bracket", "a[b", `"a[b"`},
		{"brace", "a{b", `"a{b"`},
		{"dash prefix", "-foo", `"-foo"`},
		{"key", "main.x", "main.x"},
		{"expression", "d(x)/d(t) = -(k*x)", "d(x)/d(t) = -(k*x)"},
		{"scientific", "1.5e-3", "1.5e-3"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := encodeValue(tt.in)
			if got != tt.want {
				t.Errorf("encodeValue(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestEncode(t *testing.T) {
	t.Parallel()

	r := &report.Report{
		Path:  "models/decay.yaml",
		Model: "decay",
		Type:  "ode",
		VOI:   "t",
		States: []report.VariableRow{
			{Index: 0, Component: "main", Name: "x", Type: "state", Units: "dimensionless", Initial: "1"},
		},
		Variables: []report.VariableRow{
			{Index: 0, Component: "main", Name: "k", Type: "computed_constant", Units: "per_second"},
		},
		Equations: []report.EquationRow{
			{Order: 0, Type: "true_constant", Component: "main", Variable: "k", Rank: 0.75, Expression: "k = 2"},
			{Order: 1, Type: "rate", Component: "main", Variable: "x", StateRateBased: true, Rank: 0.25, Expression: "d(x)/d(t) = -(k*x)"},
		},
		Dependencies: []report.DependencyRow{{Source: "main.x", Target: "main.k"}},
		Issues: []report.IssueRow{
			{Level: "warning", Cause: "analyser", Description: "Iteration limit reached, ordering stopped."},
		},
		Needs: []string{"exp", "power"},
	}

	lines := strings.Split(Encode(r), "\n")
	want := []string{
		"path: models/decay.yaml",
		"model: decay",
		"type: ode",
		"voi: t",
		"states[1]{index,component,name,type,units,initial}:",
		"  0,main,x,state,dimensionless,1",
		"variables[1]{index,component,name,type,units,initial}:",
		`  0,main,k,computed_constant,per_second,""`,
		"equations[2]{order,type,component,variable,state_rate_based,rank,expression}:",
		"  0,true_constant,main,k,false,0.7500,k = 2",
		"  1,rate,main,x,true,0.2500,d(x)/d(t) = -(k*x)",
		"dependencies[1]{source,target}:",
		"  main.x,main.k",
		"issues[1]{level,cause,description}:",
		`  warning,analyser,"Iteration limit reached, ordering stopped."`,
		"needs[2]: exp,power",
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d:\n%s", len(lines), len(want), strings.Join(lines, "\n"))
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d: got %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestEncodeEmpty(t *testing.T) {
	t.Parallel()

	got := Encode(&report.Report{Path: "empty.yaml", Model: "empty", Type: "unknown"})
	if strings.Contains(got, "voi:") {
		t.Errorf("unexpected voi line:\n%s", got)
	}
	for _, want := range []string{
		"states[0]{index,component,name,type,units,initial}:",
		"equations[0]{order,type,component,variable,state_rate_based,rank,expression}:",
		"issues[0]{level,cause,description}:",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q, got:\n%s", want, got)
		}
	}
	if strings.Contains(got, "needs[") || strings.Contains(got, "trees[") {
		t.Errorf("optional sections should be omitted:\n%s", got)
	}
}

func TestEncodeTrees(t *testing.T) {
	t.Parallel()

	r := &report.Report{
		Model: "m",
		Type:  "algebraic",
		Trees: []report.TreeRow{{Variable: "c.y", Tree: ".\n└── assignment\n"}},
	}
	got := Encode(r)
	if !strings.Contains(got, "trees[1]{variable,tree}:\n  c.y,\".\\n└── assignment\"") {
		t.Errorf("unexpected trees section:\n%s", got)
	}
}
