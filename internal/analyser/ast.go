package analyser

import (
	"fmt"

	"github.com/phobologic/cellanalyser/internal/model"
)

// Kind is the operator or leaf kind of an expression node.
type Kind uint8

const (
	KindAssignment Kind = iota

	// Relational and logical operators.
	KindEq
	KindNeq
	KindLt
	KindLeq
	KindGt
	KindGeq
	KindAnd
	KindOr
	KindXor
	KindNot

	// Arithmetic operators.
	KindPlus
	KindMinus
	KindTimes
	KindDivide
	KindPower
	KindRoot
	KindAbs
	KindExp
	KindLn
	KindLog
	KindCeiling
	KindFloor
	KindMin
	KindMax
	KindRem

	// Calculus.
	KindDiff

	// Trigonometric operators.
	KindSin
	KindCos
	KindTan
	KindSec
	KindCsc
	KindCot
	KindSinh
	KindCosh
	KindTanh
	KindSech
	KindCsch
	KindCoth
	KindAsin
	KindAcos
	KindAtan
	KindAsec
	KindAcsc
	KindAcot
	KindAsinh
	KindAcosh
	KindAtanh
	KindAsech
	KindAcsch
	KindAcoth

	// Piecewise statements.
	KindPiecewise
	KindPiece
	KindOtherwise

	// Token elements.
	KindCI
	KindCN

	// Qualifying elements.
	KindDegree
	KindLogbase
	KindBVar

	// Constants.
	KindTrue
	KindFalse
	KindE
	KindPi
	KindInf
	KindNaN
)

var kindNames = [...]string{
	KindAssignment: "assignment",
	KindEq:         "eq",
	KindNeq:        "neq",
	KindLt:         "lt",
	KindLeq:        "leq",
	KindGt:         "gt",
	KindGeq:        "geq",
	KindAnd:        "and",
	KindOr:         "or",
	KindXor:        "xor",
	KindNot:        "not",
	KindPlus:       "plus",
	KindMinus:      "minus",
	KindTimes:      "times",
	KindDivide:     "divide",
	KindPower:      "power",
	KindRoot:       "root",
	KindAbs:        "abs",
	KindExp:        "exp",
	KindLn:         "ln",
	KindLog:        "log",
	KindCeiling:    "ceiling",
	KindFloor:      "floor",
	KindMin:        "min",
	KindMax:        "max",
	KindRem:        "rem",
	KindDiff:       "diff",
	KindSin:        "sin",
	KindCos:        "cos",
	KindTan:        "tan",
	KindSec:        "sec",
	KindCsc:        "csc",
	KindCot:        "cot",
	KindSinh:       "sinh",
	KindCosh:       "cosh",
	KindTanh:       "tanh",
	KindSech:       "sech",
	KindCsch:       "csch",
	KindCoth:       "coth",
	KindAsin:       "asin",
	KindAcos:       "acos",
	KindAtan:       "atan",
	KindAsec:       "asec",
	KindAcsc:       "acsc",
	KindAcot:       "acot",
	KindAsinh:      "asinh",
	KindAcosh:      "acosh",
	KindAtanh:      "atanh",
	KindAsech:      "asech",
	KindAcsch:      "acsch",
	KindAcoth:      "acoth",
	KindPiecewise:  "piecewise",
	KindPiece:      "piece",
	KindOtherwise:  "otherwise",
	KindCI:         "ci",
	KindCN:         "cn",
	KindDegree:     "degree",
	KindLogbase:    "logbase",
	KindBVar:       "bvar",
	KindTrue:       "true",
	KindFalse:      "false",
	KindE:          "e",
	KindPi:         "pi",
	KindInf:        "inf",
	KindNaN:        "nan",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// elementKinds maps markup element names to node kinds. The assignment kind
// has no element of its own; it is an eq in equation position.
var elementKinds = map[string]Kind{
	"eq":           KindEq,
	"neq":          KindNeq,
	"lt":           KindLt,
	"leq":          KindLeq,
	"gt":           KindGt,
	"geq":          KindGeq,
	"and":          KindAnd,
	"or":           KindOr,
	"xor":          KindXor,
	"not":          KindNot,
	"plus":         KindPlus,
	"minus":        KindMinus,
	"times":        KindTimes,
	"divide":       KindDivide,
	"power":        KindPower,
	"root":         KindRoot,
	"abs":          KindAbs,
	"exp":          KindExp,
	"ln":           KindLn,
	"log":          KindLog,
	"ceiling":      KindCeiling,
	"floor":        KindFloor,
	"min":          KindMin,
	"max":          KindMax,
	"rem":          KindRem,
	"diff":         KindDiff,
	"sin":          KindSin,
	"cos":          KindCos,
	"tan":          KindTan,
	"sec":          KindSec,
	"csc":          KindCsc,
	"cot":          KindCot,
	"sinh":         KindSinh,
	"cosh":         KindCosh,
	"tanh":         KindTanh,
	"sech":         KindSech,
	"csch":         KindCsch,
	"coth":         KindCoth,
	"arcsin":       KindAsin,
	"arccos":       KindAcos,
	"arctan":       KindAtan,
	"arcsec":       KindAsec,
	"arccsc":       KindAcsc,
	"arccot":       KindAcot,
	"arcsinh":      KindAsinh,
	"arccosh":      KindAcosh,
	"arctanh":      KindAtanh,
	"arcsech":      KindAsech,
	"arccsch":      KindAcsch,
	"arccoth":      KindAcoth,
	"piecewise":    KindPiecewise,
	"piece":        KindPiece,
	"otherwise":    KindOtherwise,
	"ci":           KindCI,
	"cn":           KindCN,
	"degree":       KindDegree,
	"logbase":      KindLogbase,
	"bvar":         KindBVar,
	"true":         KindTrue,
	"false":        KindFalse,
	"exponentiale": KindE,
	"pi":           KindPi,
	"infinity":     KindInf,
	"notanumber":   KindNaN,
}

// KindForElement returns the node kind for a markup element name.
func KindForElement(name string) (Kind, bool) {
	k, ok := elementKinds[name]
	return k, ok
}

// helperKinds are operators a code generator must supply a helper for.
var helperKinds = map[Kind]bool{
	KindEq: true, KindNeq: true, KindLt: true, KindLeq: true, KindGt: true, KindGeq: true,
	KindAnd: true, KindOr: true, KindXor: true, KindNot: true,
	KindMin: true, KindMax: true,
	KindSec: true, KindCsc: true, KindCot: true,
	KindSech: true, KindCsch: true, KindCoth: true,
	KindAsec: true, KindAcsc: true, KindAcot: true,
	KindAsech: true, KindAcsch: true, KindAcoth: true,
}

// Node is a binary expression node. Unary operators use Left only; leaves
// carry a Value (numbers) or a Variable (identifiers).
type Node struct {
	Kind     Kind
	Value    string
	Variable *model.Variable

	Parent *Node
	Left   *Node
	Right  *Node
}

// Walk visits n and its descendants, left subtree before right.
func (n *Node) Walk(fn func(*Node)) {
	if n == nil {
		return
	}
	fn(n)
	n.Left.Walk(fn)
	n.Right.Walk(fn)
}

// replace puts repl in n's place under n's parent.
func (n *Node) replace(repl *Node) {
	parent := n.Parent
	repl.Parent = parent
	if parent == nil {
		return
	}
	if parent.Left == n {
		parent.Left = repl
	} else if parent.Right == n {
		parent.Right = repl
	}
}

// firstBVarVariable returns the variable of integration of a derivative node.
func (n *Node) firstBVarVariable() *model.Variable {
	if n.Kind != KindDiff || n.Left == nil || n.Left.Kind != KindBVar || n.Left.Left == nil {
		return nil
	}
	return n.Left.Left.Variable
}
