package analyser

import (
	"strings"

	"github.com/phobologic/cellanalyser/internal/markup"
	"github.com/phobologic/cellanalyser/internal/model"
)

// buildEquations turns every child of every math element of c into an
// equation record with its expression tree.
func (a *run) buildEquations(c *model.Component, doc *markup.Node) {
	for _, math := range doc.Elements() {
		if math.Name != "math" {
			continue
		}
		for _, child := range math.Elements() {
			e := newEquationRecord(len(a.equations), c)
			a.equations = append(a.equations, e)
			e.ast = a.buildNode(child, nil, e)
		}
	}
}

// buildNode converts one markup element into an expression node attached to
// parent. Operator applications with more than two operands become a
// right-leaning chain of the same operator.
func (a *run) buildNode(el *markup.Node, parent *Node, e *equationRecord) *Node {
	if el.Name == "apply" {
		kids := el.Elements()
		if len(kids) == 0 {
			return &Node{Kind: KindNaN, Parent: parent}
		}
		op := a.buildNode(kids[0], parent, e)
		if len(kids) > 1 {
			op.Left = a.buildNode(kids[1], op, e)
		}
		if len(kids) > 2 {
			right := a.buildNode(kids[len(kids)-1], nil, e)
			for i := len(kids) - 2; i > 1; i-- {
				link := a.buildNode(kids[0], nil, e)
				link.Left = a.buildNode(kids[i], link, e)
				link.Right = right
				right.Parent = link
				right = link
			}
			right.Parent = op
			op.Right = right
		}
		return op
	}

	kind, ok := KindForElement(el.Name)
	if !ok {
		// Validation rejects unsupported elements before analysis runs.
		return &Node{Kind: KindNaN, Parent: parent}
	}
	n := &Node{Kind: kind, Parent: parent}
	if helperKinds[kind] && kind != KindEq {
		a.needs[kind] = true
	}

	switch kind {
	case KindEq:
		if inEquationPosition(el) {
			n.Kind = KindAssignment
		} else {
			a.needs[KindEq] = true
		}
	case KindPiecewise:
		a.buildPiecewise(el, n, e)
	case KindPiece:
		kids := el.Elements()
		if len(kids) > 0 {
			n.Left = a.buildNode(kids[0], n, e)
		}
		if len(kids) > 1 {
			n.Right = a.buildNode(kids[1], n, e)
		}
	case KindOtherwise, KindDegree, KindLogbase:
		if kid := el.FirstElement(); kid != nil {
			n.Left = a.buildNode(kid, n, e)
		}
	case KindBVar:
		kids := el.Elements()
		if len(kids) > 0 {
			n.Left = a.buildNode(kids[0], n, e)
		}
		if len(kids) > 1 {
			n.Right = a.buildNode(kids[1], n, e)
		}
	case KindCI:
		a.buildIdentifier(el, n, e)
	case KindCN:
		n.Value = numberText(el)
	}
	return n
}

// buildPiecewise chains the pieces and optional otherwise of el under n.
func (a *run) buildPiecewise(el *markup.Node, n *Node, e *equationRecord) {
	kids := el.Elements()
	switch len(kids) {
	case 0:
		return
	case 1:
		n.Left = a.buildNode(kids[0], n, e)
		return
	}
	n.Left = a.buildNode(kids[0], n, e)
	tail := n
	for i := 1; i < len(kids)-1; i++ {
		link := &Node{Kind: KindPiecewise, Parent: tail}
		link.Left = a.buildNode(kids[i], link, e)
		tail.Right = link
		tail = link
	}
	tail.Right = a.buildNode(kids[len(kids)-1], tail, e)
}

// buildIdentifier resolves an identifier to a component variable and records
// it against the equation as an ordinary or derivative reference. Variables
// of integration are recorded by neither.
func (a *run) buildIdentifier(el *markup.Node, n *Node, e *equationRecord) {
	name := el.TextContent()
	v := e.component.Variable(name)
	n.Variable = v
	if v == nil {
		return
	}
	rec := a.record(v)

	parent := el.Parent
	switch {
	case parent != nil && parent.Name == "bvar" &&
		parent.Parent != nil && firstElementName(parent.Parent) == "diff":
	case parent != nil && firstElementName(parent) == "diff":
		e.derivatives = appendUnique(e.derivatives, rec.id)
	default:
		e.variables = appendUnique(e.variables, rec.id)
	}
}

// inEquationPosition reports whether an eq element is the operator of a
// top-level apply.
func inEquationPosition(el *markup.Node) bool {
	apply := el.Parent
	return apply != nil && apply.Name == "apply" &&
		apply.Parent != nil && apply.Parent.Name == "math" &&
		apply.FirstElement() == el
}

func firstElementName(n *markup.Node) string {
	if first := n.FirstElement(); first != nil {
		return first.Name
	}
	return ""
}

// numberText returns the literal of a cn element; an e-notation pair
// separated by sep becomes mantissa "e" exponent.
func numberText(el *markup.Node) string {
	var before, after strings.Builder
	sep := false
	for _, c := range el.Children {
		switch {
		case c.Kind == markup.Element && c.Name == "sep":
			sep = true
		case c.Kind == markup.Text && sep:
			after.WriteString(c.Text)
		case c.Kind == markup.Text:
			before.WriteString(c.Text)
		}
	}
	if sep {
		return strings.TrimSpace(before.String()) + "e" + strings.TrimSpace(after.String())
	}
	return strings.TrimSpace(before.String())
}
