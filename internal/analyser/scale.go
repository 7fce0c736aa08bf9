package analyser

import (
	"go.uber.org/zap"

	"github.com/phobologic/cellanalyser/internal/model"
	"github.com/phobologic/cellanalyser/internal/units"
)

// scaleEquation inserts unit conversion factors wherever a reference uses
// different units from its class's canonical variable. Scaling an equation
// twice is a no-op.
func (a *run) scaleEquation(e *equationRecord) {
	if e.scaled || e.ast == nil {
		return
	}
	e.scaled = true
	a.scaleNode(e.ast)
}

func (a *run) scaleNode(n *Node) {
	if n.Left != nil {
		a.scaleNode(n.Left)
	}
	// Read Right only now: scaling the left subtree may have rewritten it.
	if n.Right != nil {
		a.scaleNode(n.Right)
	}
	if n.Kind != KindCI || n.Parent == nil {
		return
	}

	parent := n.Parent
	if parent.Kind == KindDiff {
		if f := a.factor(parent.firstBVarVariable()); !units.IsUnity(f) {
			grand := parent.Parent
			if grand != nil && grand.Kind == KindAssignment && grand.Left == parent {
				a.insertFactor(grand.Right, 1/f)
			} else {
				a.insertFactor(parent, 1/f)
			}
		}
	}

	if (parent.Kind != KindAssignment || parent.Left != n) && parent.Kind != KindBVar {
		if f := a.factor(n.Variable); !units.IsUnity(f) {
			if parent.Kind == KindDiff {
				a.insertFactor(parent, f)
			} else {
				a.insertFactor(n, f)
			}
		}
	}
}

// factor returns the conversion from the units of v's canonical variable to
// the units v is declared in.
func (a *run) factor(v *model.Variable) float64 {
	if v == nil {
		return 1
	}
	canonical := a.record(v).variable
	f, err := a.units.Factor(canonical.Units, v.Units)
	if err != nil {
		a.log.Warn("cannot scale reference",
			zap.String("variable", v.Name),
			zap.String("component", componentName(v)),
			zap.Error(err))
		return 1
	}
	return f
}

// insertFactor replaces n under its parent with factor*n.
func (a *run) insertFactor(n *Node, factor float64) {
	if n == nil || n.Parent == nil {
		return
	}
	times := &Node{Kind: KindTimes}
	n.replace(times)
	times.Left = &Node{Kind: KindCN, Value: units.Format(factor), Parent: times}
	times.Right = n
	n.Parent = times
	a.log.Debug("inserted scaling factor",
		zap.String("factor", times.Left.Value),
		zap.Stringer("operand", n.Kind))
}
