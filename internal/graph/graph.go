// Package graph derives the equation dependency graph of an analysis, checks
// its ordering and ranks equations by how much of the model relies on them.
package graph

import (
	"fmt"
	"math"
	"sort"

	"github.com/phobologic/cellanalyser/internal/analyser"
)

// Dependency is an edge from an equation to an equation it needs. Both ends
// are keyed by the component and name of the variable they compute.
type Dependency struct {
	Source string
	Target string
}

// Key returns the component.variable key of the variable eq computes.
func Key(eq *analyser.Equation) string {
	v := eq.Variable.Variable
	if c := v.Component(); c != nil {
		return c.Name + "." + v.Name
	}
	return v.Name
}

// Edges returns the dependency edges of m, deduplicated and sorted.
func Edges(m *analyser.Model) []Dependency {
	type edgeKey struct{ src, tgt string }
	seen := make(map[edgeKey]struct{})

	var deps []Dependency
	for _, eq := range m.Equations {
		src := Key(eq)
		for _, dep := range eq.Dependencies {
			key := edgeKey{src, Key(dep)}
			if key.src == key.tgt {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			deps = append(deps, Dependency{Source: key.src, Target: key.tgt})
		}
	}

	sort.Slice(deps, func(i, j int) bool {
		if deps[i].Source != deps[j].Source {
			return deps[i].Source < deps[j].Source
		}
		return deps[i].Target < deps[j].Target
	})
	return deps
}

// CheckOrder verifies that the equation orders of m form a permutation of
// 0..n-1, that every dependency is a published equation evaluated before its
// dependant, and that dependencies are acyclic.
func CheckOrder(m *analyser.Model) error {
	n := len(m.Equations)
	byOrder := make(map[int]*analyser.Equation, n)
	published := make(map[*analyser.Equation]bool, n)
	for _, eq := range m.Equations {
		if eq.Order < 0 || eq.Order >= n {
			return fmt.Errorf("equation for %s has order %d outside 0..%d", Key(eq), eq.Order, n-1)
		}
		if other, dup := byOrder[eq.Order]; dup {
			return fmt.Errorf("equations for %s and %s share order %d", Key(other), Key(eq), eq.Order)
		}
		byOrder[eq.Order] = eq
		published[eq] = true
	}

	err := Detect(Config[*analyser.Equation]{
		Starts:  m.Equations,
		Exists:  func(eq *analyser.Equation) bool { return published[eq] },
		Missing: MissingPolicyError,
		Next: func(eq *analyser.Equation) ([]*analyser.Equation, error) {
			for _, dep := range eq.Dependencies {
				if published[dep] && dep.Order >= eq.Order {
					return nil, fmt.Errorf("equation for %s (order %d) depends on %s (order %d)",
						Key(eq), eq.Order, Key(dep), dep.Order)
				}
			}
			return eq.Dependencies, nil
		},
	})
	if err != nil {
		return fmt.Errorf("checking equation order: %w", err)
	}
	return nil
}

// Rank applies PageRank over the dependency edges of m. An equation that
// many others rely on, directly or transitively, ranks high. Ranks sum to 1.
func Rank(m *analyser.Model) map[*analyser.Equation]float64 {
	n := len(m.Equations)
	if n == 0 {
		return nil
	}

	const (
		alpha   = 0.85
		maxIter = 100
		tol     = 1e-6
	)

	rank := make(map[*analyser.Equation]float64, n)
	for _, eq := range m.Equations {
		rank[eq] = 1.0 / float64(n)
	}
	teleport := (1.0 - alpha) / float64(n)

	for iter := 0; iter < maxIter; iter++ {
		// Equations with no dependencies spread their rank evenly.
		var danglingSum float64
		for _, eq := range m.Equations {
			if len(eq.Dependencies) == 0 {
				danglingSum += rank[eq]
			}
		}
		base := teleport + alpha*danglingSum/float64(n)

		next := make(map[*analyser.Equation]float64, n)
		for _, eq := range m.Equations {
			next[eq] = base
		}
		for _, eq := range m.Equations {
			if len(eq.Dependencies) == 0 {
				continue
			}
			share := alpha * rank[eq] / float64(len(eq.Dependencies))
			for _, dep := range eq.Dependencies {
				next[dep] += share
			}
		}

		var diff float64
		for _, eq := range m.Equations {
			diff += math.Abs(next[eq] - rank[eq])
		}
		rank = next
		if diff < tol {
			break
		}
	}
	return rank
}
