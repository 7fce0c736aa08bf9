// Package ranking narrows an analysis report to the equations that matter
// most, either by rank or around a chosen variable.
package ranking

import (
	"fmt"
	"sort"
	"strings"

	"github.com/phobologic/cellanalyser/internal/report"
)

// SelectEquations returns a new Report with only the top-ranked equations,
// still listed in evaluation order. If maxEquations is <= 0 or covers every
// equation, r is returned unchanged.
func SelectEquations(r *report.Report, maxEquations int) *report.Report {
	if maxEquations <= 0 || maxEquations >= len(r.Equations) {
		return r
	}

	byRank := make([]report.EquationRow, len(r.Equations))
	copy(byRank, r.Equations)
	sort.SliceStable(byRank, func(i, j int) bool { return byRank[i].Rank > byRank[j].Rank })

	keep := make(map[string]struct{}, maxEquations)
	for _, eq := range byRank[:maxEquations] {
		keep[eq.Key()] = struct{}{}
	}
	return restrict(r, keep)
}

// FilterByVariable returns a new Report containing the equations computing a
// variable whose component.name key contains substr (case-insensitive),
// together with every equation they depend on, directly or transitively.
func FilterByVariable(r *report.Report, substr string) (*report.Report, error) {
	lower := strings.ToLower(substr)
	byKey := make(map[string]report.EquationRow, len(r.Equations))
	var queue []string
	for _, eq := range r.Equations {
		byKey[eq.Key()] = eq
		if strings.Contains(strings.ToLower(eq.Key()), lower) {
			queue = append(queue, eq.Key())
		}
	}
	if len(queue) == 0 {
		return nil, fmt.Errorf("no equation computes a variable matching %q", substr)
	}

	keep := make(map[string]struct{})
	for len(queue) > 0 {
		key := queue[0]
		queue = queue[1:]
		if _, seen := keep[key]; seen {
			continue
		}
		keep[key] = struct{}{}
		queue = append(queue, byKey[key].DependsOn...)
	}
	return restrict(r, keep), nil
}

// restrict keeps the equations in keep, the states and variables they
// compute, constants, and the edges between kept equations. Issues and
// needed kinds are carried over as they are.
func restrict(r *report.Report, keep map[string]struct{}) *report.Report {
	kept := func(key string) bool {
		_, ok := keep[key]
		return ok
	}

	out := &report.Report{
		Path:   r.Path,
		Model:  r.Model,
		Type:   r.Type,
		VOI:    r.VOI,
		Issues: r.Issues,
		Needs:  r.Needs,
	}
	for _, v := range r.States {
		if kept(v.Key()) {
			out.States = append(out.States, v)
		}
	}
	for _, v := range r.Variables {
		if v.Type == "constant" || kept(v.Key()) {
			out.Variables = append(out.Variables, v)
		}
	}
	for _, eq := range r.Equations {
		if kept(eq.Key()) {
			out.Equations = append(out.Equations, eq)
		}
	}
	for _, d := range r.Dependencies {
		if kept(d.Source) && kept(d.Target) {
			out.Dependencies = append(out.Dependencies, d)
		}
	}
	for _, t := range r.Trees {
		if kept(t.Variable) {
			out.Trees = append(out.Trees, t)
		}
	}
	return out
}
