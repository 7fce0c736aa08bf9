package analyser

import (
	"github.com/phobologic/cellanalyser/internal/model"
)

// equationRecord is the working state of one equation during a run.
type equationRecord struct {
	id        int
	ast       *Node
	component *model.Component

	// order is -1 until the equation is resolved.
	order int
	kind  EquationType
	// variable is the record id of the computed variable, or -1.
	variable int

	// Records still unresolved, referenced in ordinary and derivative
	// position respectively.
	variables   []int
	derivatives []int

	dependencies []int

	trueConstant          bool
	variableBasedConstant bool
	stateRateBased        bool

	scaled bool
}

func newEquationRecord(id int, c *model.Component) *equationRecord {
	return &equationRecord{
		id:                    id,
		component:             c,
		order:                 -1,
		variable:              -1,
		trueConstant:          true,
		variableBasedConstant: true,
	}
}

func (e *equationRecord) resolved() bool {
	return e.order >= 0
}

func appendUnique(ids []int, id int) []int {
	for _, x := range ids {
		if x == id {
			return ids
		}
	}
	return append(ids, id)
}

// counters hands out equation orders and variable indices.
type counters struct {
	order    int
	state    int
	variable int
}

// resolve tries to make e computable from what is already known. It reports
// whether e was resolved in this attempt.
func (a *run) resolve(e *equationRecord, c *counters) bool {
	if e.resolved() {
		return false
	}

	// A lone unknown that is already numbered means a second equation
	// computes the same class.
	if len(e.variables)+len(e.derivatives) == 1 {
		rec := a.sole(e)
		if rec.index >= 0 && rec.class != classUnknown && rec.class != classShouldBeState {
			rec.class = classOverconstrained
			return false
		}
	}

	e.trueConstant = e.trueConstant &&
		a.all(e.variables, func(r *variableRecord) bool { return r.class == classUnknown }) &&
		a.all(e.derivatives, func(r *variableRecord) bool { return r.class == classUnknown })
	e.variableBasedConstant = e.variableBasedConstant &&
		a.all(e.variables, (*variableRecord).constantLike) &&
		a.all(e.derivatives, (*variableRecord).constantLike)

	if !e.stateRateBased {
		e.stateRateBased = len(e.derivatives) > 0
	}

	for _, id := range e.variables {
		rec := a.variables[id]
		if !rec.known() {
			continue
		}
		var producer *equationRecord
		if rec.equation >= 0 {
			producer = a.equations[rec.equation]
		}
		if !e.stateRateBased {
			if producer == nil {
				e.stateRateBased = rec.class == classState
			} else {
				e.stateRateBased = producer.stateRateBased
			}
		}
		if producer != nil {
			e.dependencies = appendUnique(e.dependencies, producer.id)
		}
	}

	e.variables = a.drop(e.variables, (*variableRecord).known)
	e.derivatives = a.drop(e.derivatives, (*variableRecord).knownDerivative)

	if len(e.variables)+len(e.derivatives) != 1 {
		return false
	}

	rec := a.sole(e)
	for _, local := range e.component.Variables() {
		if a.eqv.Same(rec.variable, local) {
			rec.variable = local
			break
		}
	}

	if rec.class == classUnknown {
		switch {
		case e.trueConstant:
			rec.class = classComputedTrueConstant
		case e.variableBasedConstant:
			rec.class = classComputedVariableBasedConstant
		default:
			rec.class = classAlgebraic
		}
	}

	switch rec.class {
	case classState:
		rec.index = c.state
		c.state++
		e.kind = EquationRate
	case classComputedTrueConstant:
		rec.index = c.variable
		c.variable++
		e.kind = EquationTrueConstant
	case classComputedVariableBasedConstant:
		rec.index = c.variable
		c.variable++
		e.kind = EquationVariableBasedConstant
	case classAlgebraic:
		rec.index = c.variable
		c.variable++
		e.kind = EquationAlgebraic
	default:
		return false
	}

	rec.equation = e.id
	e.variable = rec.id
	e.order = c.order
	c.order++
	return true
}

func (a *run) sole(e *equationRecord) *variableRecord {
	if len(e.variables) == 1 {
		return a.variables[e.variables[0]]
	}
	return a.variables[e.derivatives[0]]
}

func (a *run) all(ids []int, pred func(*variableRecord) bool) bool {
	for _, id := range ids {
		if !pred(a.variables[id]) {
			return false
		}
	}
	return true
}

func (a *run) drop(ids []int, pred func(*variableRecord) bool) []int {
	kept := ids[:0]
	for _, id := range ids {
		if !pred(a.variables[id]) {
			kept = append(kept, id)
		}
	}
	return kept
}
