package analyser

import (
	"github.com/phobologic/cellanalyser/internal/model"
)

// classification is the working role of an equivalence class during a run.
type classification uint8

const (
	classUnknown classification = iota
	classShouldBeState
	classVariableOfIntegration
	classState
	classConstant
	classComputedTrueConstant
	classComputedVariableBasedConstant
	classAlgebraic
	classOverconstrained
)

var classificationNames = [...]string{
	classUnknown:                       "unknown",
	classShouldBeState:                 "should_be_state",
	classVariableOfIntegration:         "variable_of_integration",
	classState:                         "state",
	classConstant:                      "constant",
	classComputedTrueConstant:          "computed_true_constant",
	classComputedVariableBasedConstant: "computed_variable_based_constant",
	classAlgebraic:                     "algebraic",
	classOverconstrained:               "overconstrained",
}

func (c classification) String() string {
	return classificationNames[c]
}

// variableRecord is the registry entry of one equivalence class.
type variableRecord struct {
	id    int
	class classification
	// index is -1 until the class is numbered.
	index int
	// variable is the canonical member of the class.
	variable     *model.Variable
	initialising *model.Variable
	// equation is the arena id of the producing equation, or -1.
	equation int
}

// setVariable makes v canonical. A variable with an initial value turns the
// class into a constant initialised by v.
func (r *variableRecord) setVariable(v *model.Variable) {
	r.variable = v
	if v.HasInitialValue() {
		r.class = classConstant
		r.initialising = v
	}
}

func (r *variableRecord) makeVOI() {
	r.class = classVariableOfIntegration
}

func (r *variableRecord) makeState() {
	switch r.class {
	case classUnknown:
		r.class = classShouldBeState
	case classConstant:
		r.class = classState
	}
}

// known reports whether the record no longer needs to be solved for in an
// ordinary position.
func (r *variableRecord) known() bool {
	if r.index >= 0 {
		return true
	}
	switch r.class {
	case classVariableOfIntegration, classState, classConstant,
		classComputedTrueConstant, classComputedVariableBasedConstant:
		return true
	}
	return false
}

// knownDerivative reports whether the record no longer needs to be solved
// for in derivative position.
func (r *variableRecord) knownDerivative() bool {
	return r.index >= 0 || r.class == classVariableOfIntegration
}

func (r *variableRecord) constantLike() bool {
	switch r.class {
	case classUnknown, classConstant,
		classComputedTrueConstant, classComputedVariableBasedConstant:
		return true
	}
	return false
}

// record returns the registry entry of v's equivalence class, creating it on
// first use.
func (a *run) record(v *model.Variable) *variableRecord {
	class := a.eqv.Class(v)
	if class < 0 {
		// Variables outside the model each form a class of their own.
		if id, ok := a.loose[v]; ok {
			return a.variables[id]
		}
		rec := a.newRecord(v)
		a.loose[v] = rec.id
		return rec
	}
	if id, ok := a.byClass[class]; ok {
		return a.variables[id]
	}
	rec := a.newRecord(v)
	a.byClass[class] = rec.id
	return rec
}

func (a *run) newRecord(v *model.Variable) *variableRecord {
	rec := &variableRecord{
		id:       len(a.variables),
		index:    -1,
		equation: -1,
	}
	rec.setVariable(v)
	a.variables = append(a.variables, rec)
	return rec
}
