package report

import (
	"strings"

	"github.com/phobologic/cellanalyser/internal/analyser"
)

var binaryOps = map[analyser.Kind]string{
	analyser.KindAssignment: " = ",
	analyser.KindEq:         " == ",
	analyser.KindNeq:        " != ",
	analyser.KindLt:         " < ",
	analyser.KindLeq:        " <= ",
	analyser.KindGt:         " > ",
	analyser.KindGeq:        " >= ",
	analyser.KindAnd:        " && ",
	analyser.KindOr:         " || ",
	analyser.KindPlus:       " + ",
	analyser.KindMinus:      " - ",
	analyser.KindTimes:      "*",
	analyser.KindDivide:     "/",
	analyser.KindPower:      "^",
}

var constants = map[analyser.Kind]string{
	analyser.KindTrue:  "true",
	analyser.KindFalse: "false",
	analyser.KindE:     "e",
	analyser.KindPi:    "pi",
	analyser.KindInf:   "inf",
	analyser.KindNaN:   "nan",
}

// precedence of a node when it appears as an operand.
func precedence(n *analyser.Node) int {
	switch n.Kind {
	case analyser.KindAssignment:
		return 0
	case analyser.KindOr:
		return 1
	case analyser.KindAnd:
		return 2
	case analyser.KindEq, analyser.KindNeq, analyser.KindLt, analyser.KindLeq, analyser.KindGt, analyser.KindGeq:
		return 3
	case analyser.KindPlus:
		return 4
	case analyser.KindMinus:
		if n.Right == nil {
			return 6
		}
		return 4
	case analyser.KindTimes, analyser.KindDivide:
		return 5
	case analyser.KindNot:
		return 6
	case analyser.KindPower:
		return 7
	}
	return 8
}

// Infix renders an expression tree as a single line of text.
func Infix(n *analyser.Node) string {
	var b strings.Builder
	writeInfix(&b, n)
	return b.String()
}

func writeInfix(b *strings.Builder, n *analyser.Node) {
	if n == nil {
		return
	}
	switch n.Kind {
	case analyser.KindCI:
		if n.Variable != nil {
			b.WriteString(n.Variable.Name)
		}
		return
	case analyser.KindCN:
		b.WriteString(n.Value)
		return
	case analyser.KindDiff:
		b.WriteString("d(")
		writeInfix(b, n.Right)
		b.WriteString(")/d(")
		if n.Left != nil {
			writeInfix(b, n.Left.Left)
		}
		b.WriteString(")")
		return
	case analyser.KindPiecewise, analyser.KindPiece, analyser.KindOtherwise:
		b.WriteString("piecewise(")
		writePieces(b, n)
		b.WriteString(")")
		return
	case analyser.KindBVar, analyser.KindDegree, analyser.KindLogbase:
		writeInfix(b, n.Left)
		return
	}

	if s, ok := constants[n.Kind]; ok {
		b.WriteString(s)
		return
	}

	if n.Kind == analyser.KindMinus && n.Right == nil {
		b.WriteString("-")
		writeOperand(b, n, n.Left, false)
		return
	}
	if n.Kind == analyser.KindNot {
		b.WriteString("!")
		writeOperand(b, n, n.Left, false)
		return
	}

	if op, ok := binaryOps[n.Kind]; ok && n.Right != nil {
		writeOperand(b, n, n.Left, false)
		b.WriteString(op)
		writeOperand(b, n, n.Right, true)
		return
	}

	writeCall(b, n)
}

// writeCall renders functions, including root and log with an optional
// qualifier in their left child.
func writeCall(b *strings.Builder, n *analyser.Node) {
	name := n.Kind.String()
	args := []*analyser.Node{n.Left, n.Right}
	switch n.Kind {
	case analyser.KindRoot:
		if n.Left != nil && n.Left.Kind == analyser.KindDegree {
			args = []*analyser.Node{n.Right, n.Left}
		} else {
			name = "sqrt"
		}
	case analyser.KindLog:
		if n.Left != nil && n.Left.Kind == analyser.KindLogbase {
			args = []*analyser.Node{n.Right, n.Left}
		} else {
			name = "log10"
		}
	}

	b.WriteString(name)
	b.WriteString("(")
	first := true
	for _, arg := range args {
		if arg == nil {
			continue
		}
		if !first {
			b.WriteString(", ")
		}
		first = false
		writeInfix(b, arg)
	}
	b.WriteString(")")
}

func writeOperand(b *strings.Builder, parent, child *analyser.Node, right bool) {
	pp, cp := precedence(parent), precedence(child)
	wrap := cp < pp
	// Non-associative operators need their right operand grouped.
	if right && cp == pp && (parent.Kind == analyser.KindMinus || parent.Kind == analyser.KindDivide || parent.Kind == analyser.KindPower) {
		wrap = true
	}
	if wrap {
		b.WriteString("(")
	}
	writeInfix(b, child)
	if wrap {
		b.WriteString(")")
	}
}

// writePieces flattens a piecewise chain into "value if cond" items.
func writePieces(b *strings.Builder, n *analyser.Node) {
	first := true
	var walk func(*analyser.Node)
	walk = func(n *analyser.Node) {
		if n == nil {
			return
		}
		switch n.Kind {
		case analyser.KindPiecewise:
			walk(n.Left)
			walk(n.Right)
			return
		}
		if !first {
			b.WriteString(", ")
		}
		first = false
		switch n.Kind {
		case analyser.KindPiece:
			writeInfix(b, n.Right)
			b.WriteString(" ? ")
			writeInfix(b, n.Left)
		case analyser.KindOtherwise:
			b.WriteString("otherwise ")
			writeInfix(b, n.Left)
		default:
			writeInfix(b, n)
		}
	}
	walk(n)
}
