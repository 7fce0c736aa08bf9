// Package report flattens an analysis into rows ready for encoding.
package report

import (
	"sort"

	"github.com/phobologic/cellanalyser/internal/analyser"
	"github.com/phobologic/cellanalyser/internal/graph"
	"github.com/phobologic/cellanalyser/internal/model"
)

// Report is the encodable summary of one analysed model file.
type Report struct {
	Path         string          `yaml:"path"`
	Model        string          `yaml:"model"`
	Type         string          `yaml:"type"`
	VOI          string          `yaml:"voi,omitempty"`
	States       []VariableRow   `yaml:"states"`
	Variables    []VariableRow   `yaml:"variables"`
	Equations    []EquationRow   `yaml:"equations"`
	Dependencies []DependencyRow `yaml:"dependencies"`
	Issues       []IssueRow      `yaml:"issues"`
	Needs        []string        `yaml:"needs,omitempty"`
	Trees        []TreeRow       `yaml:"trees,omitempty"`
}

// VariableRow describes a published variable.
type VariableRow struct {
	Index     int    `yaml:"index"`
	Component string `yaml:"component"`
	Name      string `yaml:"name"`
	Type      string `yaml:"type"`
	Units     string `yaml:"units"`
	Initial   string `yaml:"initial,omitempty"`
}

// Key returns the component.name key of the row.
func (v VariableRow) Key() string {
	return v.Component + "." + v.Name
}

// EquationRow describes a resolved equation.
type EquationRow struct {
	Order          int      `yaml:"order"`
	Type           string   `yaml:"type"`
	Component      string   `yaml:"component"`
	Variable       string   `yaml:"variable"`
	StateRateBased bool     `yaml:"state_rate_based"`
	Rank           float64  `yaml:"rank"`
	DependsOn      []string `yaml:"depends_on,omitempty"`
	Expression     string   `yaml:"expression"`
}

// Key returns the component.variable key of the computed variable.
func (e EquationRow) Key() string {
	return e.Component + "." + e.Variable
}

// DependencyRow is an edge from an equation to one it needs.
type DependencyRow struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
}

// IssueRow is a diagnostic.
type IssueRow struct {
	Level       string `yaml:"level"`
	Cause       string `yaml:"cause"`
	Description string `yaml:"description"`
}

// TreeRow holds the rendered expression tree of one equation.
type TreeRow struct {
	Variable string `yaml:"variable"`
	Tree     string `yaml:"tree"`
}

// Options controls optional report content.
type Options struct {
	Trees bool
}

// Build summarises res, the analysis of src read from path. Equations are
// listed in evaluation order.
func Build(path string, src *model.Model, res *analyser.Model, opts Options) *Report {
	r := &Report{
		Path:  path,
		Model: src.Name,
		Type:  res.Type.String(),
	}
	if res.VOI != nil {
		r.VOI = res.VOI.Variable.Name
	}

	for _, v := range res.States {
		r.States = append(r.States, variableRow(v))
	}
	for _, v := range res.Variables {
		r.Variables = append(r.Variables, variableRow(v))
	}

	ranks := graph.Rank(res)
	eqs := make([]*analyser.Equation, len(res.Equations))
	copy(eqs, res.Equations)
	sort.SliceStable(eqs, func(i, j int) bool { return eqs[i].Order < eqs[j].Order })

	for _, eq := range eqs {
		row := EquationRow{
			Order:          eq.Order,
			Type:           eq.Type.String(),
			Component:      eq.Component.Name,
			Variable:       eq.Variable.Variable.Name,
			StateRateBased: eq.StateRateBased,
			Rank:           ranks[eq],
			Expression:     Infix(eq.AST),
		}
		for _, dep := range eq.Dependencies {
			row.DependsOn = append(row.DependsOn, graph.Key(dep))
		}
		r.Equations = append(r.Equations, row)

		if opts.Trees {
			r.Trees = append(r.Trees, TreeRow{Variable: graph.Key(eq), Tree: Tree(eq.AST)})
		}
	}

	for _, d := range graph.Edges(res) {
		r.Dependencies = append(r.Dependencies, DependencyRow{Source: d.Source, Target: d.Target})
	}

	for _, i := range res.Issues {
		r.Issues = append(r.Issues, IssueRow{
			Level:       i.Level.String(),
			Cause:       string(i.Cause),
			Description: i.Description,
		})
	}

	for _, k := range res.NeededKinds() {
		r.Needs = append(r.Needs, k.String())
	}
	return r
}

func variableRow(v *analyser.Variable) VariableRow {
	row := VariableRow{
		Index: v.Index,
		Name:  v.Variable.Name,
		Type:  v.Type.String(),
		Units: v.Variable.Units,
	}
	if c := v.Variable.Component(); c != nil {
		row.Component = c.Name
	}
	if v.InitialisingVariable != nil {
		row.Initial = v.InitialisingVariable.InitialValue
	}
	return row
}
