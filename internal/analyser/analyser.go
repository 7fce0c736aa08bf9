// Package analyser classifies the variables of a model, orders its equations
// into an evaluation sequence and reports models that are not well posed.
package analyser

import (
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/phobologic/cellanalyser/internal/issue"
	"github.com/phobologic/cellanalyser/internal/markup"
	"github.com/phobologic/cellanalyser/internal/model"
	"github.com/phobologic/cellanalyser/internal/units"
	"github.com/phobologic/cellanalyser/internal/validate"
)

// Option configures an Analyser.
type Option func(*Analyser)

// WithLogger sets the logger used for debug tracing of a run.
func WithLogger(l *zap.Logger) Option {
	return func(a *Analyser) {
		if l != nil {
			a.log = l
		}
	}
}

// WithIterationLimit caps the number of resolution rounds. Zero or less
// means one more round than there are equations.
func WithIterationLimit(n int) Option {
	return func(a *Analyser) {
		a.limit = n
	}
}

// Analyser runs analyses. It holds configuration only and is safe for
// concurrent use.
type Analyser struct {
	log   *zap.Logger
	limit int
}

// New returns an Analyser.
func New(opts ...Option) *Analyser {
	a := &Analyser{log: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyse validates m and, when it is valid, analyses it. Model problems are
// reported through the returned model's Issues, never as errors.
func (an *Analyser) Analyse(m *model.Model) *Model {
	log := an.log.With(zap.String("model", m.Name))

	if issues := validate.Model(m); issues.ErrorCount() > 0 {
		log.Debug("validation failed", zap.Int("issues", len(issues)))
		return &Model{Type: ModelInvalid, Issues: issues}
	}

	a := newRun(m, log, an.limit)
	out := a.analyse()
	log.Debug("analysis complete",
		zap.Stringer("type", out.Type),
		zap.Int("equations", len(a.equations)),
		zap.Int("issues", len(out.Issues)))
	return out
}

// run is the state of a single analysis. Records live in arenas addressed by
// id; nothing outlives the call to Analyse.
type run struct {
	log   *zap.Logger
	src   *model.Model
	eqv   *model.Equivalence
	units *units.Table
	limit int

	variables []*variableRecord
	byClass   map[int]int
	loose     map[*model.Variable]int
	equations []*equationRecord

	voi *model.Variable
	// voiReported holds classes already diagnosed as a variable of
	// integration.
	voiReported map[int]bool

	needs  map[Kind]bool
	issues issue.List
}

func newRun(m *model.Model, log *zap.Logger, limit int) *run {
	return &run{
		log:         log,
		src:         m,
		eqv:         model.NewEquivalence(m),
		units:       units.NewTable(m),
		limit:       limit,
		byClass:     make(map[int]int),
		loose:       make(map[*model.Variable]int),
		voiReported: make(map[int]bool),
		needs:       make(map[Kind]bool),
	}
}

func (a *run) analyse() *Model {
	for _, c := range a.src.Components() {
		a.processComponent(c)
	}
	a.checkInitialisers()

	if a.issues.ErrorCount() == 0 {
		for _, e := range a.equations {
			a.processDerivatives(e)
		}
	}
	if a.issues.ErrorCount() > 0 {
		return a.unpublished(ModelInvalid)
	}

	sorted := a.sortedByName()
	constants := 0
	for _, rec := range sorted {
		if rec.class == classConstant {
			rec.index = constants
			constants++
		}
	}

	a.solve(&counters{variable: constants})
	a.reportUnsolved(sorted)

	t := a.modelType()
	if t != ModelODE && t != ModelAlgebraic {
		return a.unpublished(t)
	}
	for _, e := range a.equations {
		a.scaleEquation(e)
	}
	return a.publish(t)
}

// processComponent builds the equations of c and registers its variables,
// then recurses into encapsulated components.
func (a *run) processComponent(c *model.Component) {
	a.log.Debug("processing component", zap.String("component", c.Name))

	if strings.TrimSpace(c.Math) != "" {
		doc, err := markup.Parse(c.Math)
		if err != nil {
			a.issues.Addf(issue.CauseAnalyser, "The math in component '%s' could not be parsed: %v.", c.Name, err)
		} else {
			a.buildEquations(c, doc)
		}
	}

	for _, v := range c.Variables() {
		rec := a.record(v)
		switch {
		case v.HasInitialValue() && !rec.variable.HasInitialValue():
			rec.setVariable(v)
		case v != rec.variable && v.HasInitialValue() && rec.variable.HasInitialValue():
			a.issues.Addf(issue.CauseAnalyser,
				"Variable %s and variable %s are equivalent and cannot therefore both be initialised.",
				v.Qualified(), rec.initialising.Qualified())
		}
	}

	for _, child := range c.Components() {
		a.processComponent(child)
	}
}

// checkInitialisers requires a variable initialised by name to be
// initialised by a constant.
func (a *run) checkInitialisers() {
	for _, rec := range a.variables {
		v := rec.initialising
		if v == nil || isReal(v.InitialValue) {
			continue
		}
		name := strings.TrimSpace(v.InitialValue)
		ref := v.Component().Variable(name)
		if ref == nil {
			continue
		}
		if a.record(ref).class != classConstant {
			a.issues.Addf(issue.CauseAnalyser,
				"Variable %s is initialised using variable '%s', but it is not a constant.",
				v.Qualified(), name)
		}
	}
}

// processDerivatives finds the variable of integration, checks derivative
// order and marks differentiated variables as states.
func (a *run) processDerivatives(e *equationRecord) {
	e.ast.Walk(func(n *Node) {
		parent := n.Parent
		switch {
		case n.Kind == KindCI && parent != nil && parent.Kind == KindBVar &&
			parent.Parent != nil && parent.Parent.Kind == KindDiff:
			a.setVOI(n.Variable)
		case n.Kind == KindCN && parent != nil && parent.Kind == KindDegree &&
			parent.Parent != nil && parent.Parent.Kind == KindBVar &&
			parent.Parent.Parent != nil && parent.Parent.Parent.Kind == KindDiff:
			if order, err := strconv.ParseFloat(n.Value, 64); err != nil || order != 1 {
				diff := parent.Parent.Parent
				if diff.Right != nil && diff.Right.Variable != nil {
					a.issues.Addf(issue.CauseAnalyser,
						"The differential equation for variable %s must be of the first order.",
						diff.Right.Variable.Qualified())
				}
			}
		case n.Kind == KindCI && parent != nil && parent.Kind == KindDiff && n.Variable != nil:
			a.record(n.Variable).makeState()
		}
	})
}

func (a *run) setVOI(v *model.Variable) {
	if v == nil {
		return
	}
	a.record(v).makeVOI()

	class := a.eqv.Class(v)
	if a.voi != nil {
		if !a.eqv.Same(v, a.voi) && !a.voiReported[class] {
			a.voiReported[class] = true
			a.issues.Addf(issue.CauseAnalyser,
				"Variable %s and variable %s cannot both be the variable of integration.",
				a.voi.Qualified(), v.Qualified())
		}
		return
	}
	if a.voiReported[class] {
		return
	}

	first := a.firstOccurrence(v)
	initialised := false
	for _, member := range a.eqv.Members(first) {
		if member.HasInitialValue() {
			initialised = true
			a.issues.Addf(issue.CauseAnalyser,
				"Variable %s cannot be both a variable of integration and initialised.",
				member.Qualified())
		}
	}
	if initialised {
		a.voiReported[class] = true
		return
	}
	a.voi = first
}

// firstOccurrence returns the first member of v's class met when walking
// the components depth-first.
func (a *run) firstOccurrence(v *model.Variable) *model.Variable {
	var found *model.Variable
	a.src.Walk(func(c *model.Component) {
		if found != nil {
			return
		}
		for _, candidate := range c.Variables() {
			if a.eqv.Same(v, candidate) {
				found = candidate
				return
			}
		}
	})
	if found == nil {
		return v
	}
	return found
}

// sortedByName returns the records ordered by owning component name, then
// by variable name.
func (a *run) sortedByName() []*variableRecord {
	sorted := make([]*variableRecord, len(a.variables))
	copy(sorted, a.variables)
	sort.SliceStable(sorted, func(i, j int) bool {
		ci, cj := componentName(sorted[i].variable), componentName(sorted[j].variable)
		if ci != cj {
			return ci < cj
		}
		return sorted[i].variable.Name < sorted[j].variable.Name
	})
	return sorted
}

func componentName(v *model.Variable) string {
	if c := v.Component(); c != nil {
		return c.Name
	}
	return ""
}

// solve repeats resolution passes over all equations until a pass makes no
// progress.
func (a *run) solve(c *counters) {
	limit := a.limit
	if limit <= 0 {
		limit = len(a.equations) + 1
	}
	for round := 1; ; round++ {
		progress := false
		for _, e := range a.equations {
			if a.resolve(e, c) {
				progress = true
			}
		}
		a.log.Debug("resolution round",
			zap.Int("round", round),
			zap.Int("resolved", c.order),
			zap.Int("equations", len(a.equations)))
		if !progress {
			return
		}
		if round >= limit {
			a.log.Error("resolution stopped before reaching a fixed point", zap.Int("rounds", round))
			a.issues.Add(issue.Issue{
				Cause:       issue.CauseAnalyser,
				Level:       issue.LevelWarning,
				Description: "Equation ordering stopped after " + strconv.Itoa(round) + " rounds.",
			})
			return
		}
	}
}

func (a *run) reportUnsolved(sorted []*variableRecord) {
	for _, rec := range sorted {
		switch rec.class {
		case classUnknown:
			a.issues.Addf(issue.CauseAnalyser, "Variable %s is not computed.", rec.variable.Qualified())
		case classShouldBeState:
			a.issues.Addf(issue.CauseAnalyser, "Variable %s is used in an ODE, but it is not initialised.", rec.variable.Qualified())
		case classOverconstrained:
			a.issues.Addf(issue.CauseAnalyser, "Variable %s is computed more than once.", rec.variable.Qualified())
		}
	}
}

func (a *run) modelType() ModelType {
	under, over := false, false
	for _, rec := range a.variables {
		switch rec.class {
		case classUnknown, classShouldBeState:
			under = true
		case classOverconstrained:
			over = true
		}
	}
	switch {
	case under && over:
		return ModelUnsuitablyConstrained
	case under:
		return ModelUnderconstrained
	case over:
		return ModelOverconstrained
	case a.voi != nil:
		return ModelODE
	case len(a.variables) > 0:
		return ModelAlgebraic
	}
	return ModelUnknown
}

func (a *run) unpublished(t ModelType) *Model {
	return &Model{Type: t, Issues: a.issues, needs: a.needs}
}

// before orders states ahead of every other kind, then by index.
func before(x, y *variableRecord) bool {
	xs, ys := x.class == classState, y.class == classState
	if xs != ys {
		return xs
	}
	return sortIndex(x) < sortIndex(y)
}

func sortIndex(r *variableRecord) int {
	if r.index < 0 {
		return int(^uint(0) >> 1)
	}
	return r.index
}

func published(c classification) VariableType {
	switch c {
	case classState:
		return VariableState
	case classConstant:
		return VariableConstant
	case classComputedTrueConstant, classComputedVariableBasedConstant:
		return VariableComputedConstant
	case classVariableOfIntegration:
		return VariableOfIntegration
	}
	return VariableAlgebraic
}

// publish converts the run state into the output model.
func (a *run) publish(t ModelType) *Model {
	out := a.unpublished(t)

	var recs []*variableRecord
	for _, rec := range a.variables {
		if rec.class != classVariableOfIntegration {
			recs = append(recs, rec)
		}
	}
	sort.SliceStable(recs, func(i, j int) bool { return before(recs[i], recs[j]) })

	vars := make(map[int]*Variable, len(recs))
	for _, rec := range recs {
		pub := &Variable{
			Index:                rec.index,
			Type:                 published(rec.class),
			Variable:             rec.variable,
			InitialisingVariable: rec.initialising,
		}
		vars[rec.id] = pub
		if rec.class == classState {
			out.States = append(out.States, pub)
		} else {
			out.Variables = append(out.Variables, pub)
		}
	}
	if a.voi != nil {
		out.VOI = &Variable{Type: VariableOfIntegration, Variable: a.voi}
	}

	var eqs []*equationRecord
	for _, e := range a.equations {
		if e.resolved() {
			eqs = append(eqs, e)
		}
	}
	sort.SliceStable(eqs, func(i, j int) bool {
		return before(a.variables[eqs[i].variable], a.variables[eqs[j].variable])
	})

	byID := make(map[int]*Equation, len(eqs))
	for _, e := range eqs {
		pub := &Equation{
			Order:          e.order,
			Type:           e.kind,
			AST:            e.ast,
			StateRateBased: e.stateRateBased,
			Variable:       vars[e.variable],
			Component:      e.component,
		}
		pub.Variable.Equation = pub
		byID[e.id] = pub
		out.Equations = append(out.Equations, pub)
	}
	for _, e := range eqs {
		pub := byID[e.id]
		for _, dep := range e.dependencies {
			if d, ok := byID[dep]; ok {
				pub.Dependencies = append(pub.Dependencies, d)
			}
		}
	}
	return out
}

func isReal(s string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil
}
