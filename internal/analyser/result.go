package analyser

import (
	"fmt"

	"github.com/phobologic/cellanalyser/internal/issue"
	"github.com/phobologic/cellanalyser/internal/model"
)

// ModelType is the overall verdict of an analysis.
type ModelType uint8

const (
	ModelUnknown ModelType = iota
	ModelODE
	ModelAlgebraic
	ModelInvalid
	ModelUnderconstrained
	ModelOverconstrained
	ModelUnsuitablyConstrained
)

var modelTypeNames = [...]string{
	ModelUnknown:               "unknown",
	ModelODE:                   "ode",
	ModelAlgebraic:             "algebraic",
	ModelInvalid:               "invalid",
	ModelUnderconstrained:      "underconstrained",
	ModelOverconstrained:       "overconstrained",
	ModelUnsuitablyConstrained: "unsuitably_constrained",
}

func (t ModelType) String() string {
	if int(t) < len(modelTypeNames) {
		return modelTypeNames[t]
	}
	return fmt.Sprintf("model_type(%d)", uint8(t))
}

// VariableType is the published role of a variable.
type VariableType uint8

const (
	VariableOfIntegration VariableType = iota
	VariableState
	VariableConstant
	VariableComputedConstant
	VariableAlgebraic
)

var variableTypeNames = [...]string{
	VariableOfIntegration:    "variable_of_integration",
	VariableState:            "state",
	VariableConstant:         "constant",
	VariableComputedConstant: "computed_constant",
	VariableAlgebraic:        "algebraic",
}

func (t VariableType) String() string {
	if int(t) < len(variableTypeNames) {
		return variableTypeNames[t]
	}
	return fmt.Sprintf("variable_type(%d)", uint8(t))
}

// EquationType is the published kind of a resolved equation.
type EquationType uint8

const (
	EquationTrueConstant EquationType = iota
	EquationVariableBasedConstant
	EquationRate
	EquationAlgebraic
)

var equationTypeNames = [...]string{
	EquationTrueConstant:          "true_constant",
	EquationVariableBasedConstant: "variable_based_constant",
	EquationRate:                  "rate",
	EquationAlgebraic:             "algebraic",
}

func (t EquationType) String() string {
	if int(t) < len(equationTypeNames) {
		return equationTypeNames[t]
	}
	return fmt.Sprintf("equation_type(%d)", uint8(t))
}

// Model is the result of analysing a source model.
type Model struct {
	Type ModelType
	// VOI is set for ODE models only.
	VOI       *Variable
	States    []*Variable
	Variables []*Variable
	Equations []*Equation
	Issues    issue.List

	needs map[Kind]bool
}

// Needs reports whether expressions of the model use an operator of kind k
// that a code generator must supply a helper for.
func (m *Model) Needs(k Kind) bool {
	return m.needs[k]
}

// NeededKinds returns the helper kinds used by the model, in kind order.
func (m *Model) NeededKinds() []Kind {
	var out []Kind
	for k := range kindNames {
		if m.needs[Kind(k)] {
			out = append(out, Kind(k))
		}
	}
	return out
}

// Variable is a published variable. Variable is the canonical source
// variable, local to the component of the equation computing it when there
// is one.
type Variable struct {
	Index                int
	Type                 VariableType
	Variable             *model.Variable
	InitialisingVariable *model.Variable
	Equation             *Equation
}

// Equation is a published, resolved equation.
type Equation struct {
	Order          int
	Type           EquationType
	AST            *Node
	Dependencies   []*Equation
	StateRateBased bool
	Variable       *Variable
	Component      *model.Component
}
