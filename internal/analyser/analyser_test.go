package analyser

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/phobologic/cellanalyser/internal/issue"
	"github.com/phobologic/cellanalyser/internal/model"
)

const mathOpen = `<math xmlns="http://www.w3.org/1998/Math/MathML" xmlns:cellml="http://www.cellml.org/cellml/2.0#">`

func mathml(equations ...string) string {
	return mathOpen + strings.Join(equations, "") + "</math>"
}

func apply(op string, args ...string) string {
	return "<apply><" + op + "/>" + strings.Join(args, "") + "</apply>"
}

func assign(lhs, rhs string) string {
	return apply("eq", lhs, rhs)
}

func ci(name string) string {
	return "<ci>" + name + "</ci>"
}

func cn(value string) string {
	return `<cn cellml:units="dimensionless">` + value + "</cn>"
}

func derivative(x, t string) string {
	return "<apply><diff/><bvar>" + ci(t) + "</bvar>" + ci(x) + "</apply>"
}

func descriptions(l issue.List) string {
	var b strings.Builder
	for _, i := range l {
		b.WriteString(i.Description)
		b.WriteString("\n")
	}
	return b.String()
}

// analyserCaused fails t unless every issue in l was raised by the analyser
// stage.
func analyserCaused(t *testing.T, l issue.List) {
	t.Helper()
	for _, i := range l {
		if i.Cause != issue.CauseAnalyser {
			t.Errorf("issue %q has cause %s, want %s", i.Description, i.Cause, issue.CauseAnalyser)
		}
	}
}

func byName(vs []*Variable, name string) *Variable {
	for _, v := range vs {
		if v.Variable.Name == name {
			return v
		}
	}
	return nil
}

// odeModel returns dx/dt = 1 with x(0) = 1.
func odeModel() *model.Model {
	m := model.New("ode")
	c := m.AddComponent(&model.Component{Name: "main"})
	c.AddVariable(&model.Variable{Name: "t", Units: "second"})
	c.AddVariable(&model.Variable{Name: "x", Units: "dimensionless", InitialValue: "1"})
	c.Math = mathml(assign(derivative("x", "t"), cn("1")))
	return m
}

func TestAnalyseSimpleODE(t *testing.T) {
	t.Parallel()

	out := New().Analyse(odeModel())
	if out.Type != ModelODE {
		t.Fatalf("type = %s, want ode; issues:\n%s", out.Type, descriptions(out.Issues))
	}
	if len(out.Issues) != 0 {
		t.Errorf("unexpected issues:\n%s", descriptions(out.Issues))
	}
	if out.VOI == nil || out.VOI.Variable.Name != "t" {
		t.Fatalf("VOI = %+v, want t", out.VOI)
	}
	if len(out.States) != 1 || out.States[0].Variable.Name != "x" || out.States[0].Index != 0 {
		t.Fatalf("states = %+v", out.States)
	}
	if len(out.Variables) != 0 {
		t.Errorf("expected no other variables, got %d", len(out.Variables))
	}
	if len(out.Equations) != 1 {
		t.Fatalf("expected 1 equation, got %d", len(out.Equations))
	}
	eq := out.Equations[0]
	if eq.Type != EquationRate || eq.Order != 0 || !eq.StateRateBased {
		t.Errorf("equation: type=%s order=%d stateRateBased=%v", eq.Type, eq.Order, eq.StateRateBased)
	}
	if eq.Variable != out.States[0] || out.States[0].Equation != eq {
		t.Error("state and rate equation are not linked")
	}
	if out.States[0].InitialisingVariable == nil || out.States[0].InitialisingVariable.Name != "x" {
		t.Error("state should be initialised by x")
	}

	ast := eq.AST
	if ast.Kind != KindAssignment || ast.Left.Kind != KindDiff || ast.Right.Kind != KindCN {
		t.Fatalf("unexpected tree: %s(%s, %s)", ast.Kind, ast.Left.Kind, ast.Right.Kind)
	}
	if bvar := ast.Left.Left; bvar.Kind != KindBVar || bvar.Left.Variable.Name != "t" {
		t.Errorf("derivative bvar: %s", bvar.Kind)
	}
	if ast.Left.Right.Variable.Name != "x" || ast.Right.Value != "1" {
		t.Errorf("derivative target %q, rhs %q", ast.Left.Right.Variable.Name, ast.Right.Value)
	}
}

func TestAnalyseOverconstrained(t *testing.T) {
	t.Parallel()

	m := model.New("over")
	c := m.AddComponent(&model.Component{Name: "main"})
	c.AddVariable(&model.Variable{Name: "y", Units: "dimensionless"})
	c.Math = mathml(assign(ci("y"), cn("1")), assign(ci("y"), cn("2")))

	a := newRun(m, zap.NewNop(), 0)
	out := a.analyse()
	if out.Type != ModelOverconstrained {
		t.Fatalf("type = %s, want overconstrained", out.Type)
	}
	if len(out.Issues) != 1 {
		t.Fatalf("expected 1 issue, got:\n%s", descriptions(out.Issues))
	}
	want := "Variable 'y' in component 'main' of model 'over' is computed more than once."
	if out.Issues[0].Description != want {
		t.Errorf("issue = %q, want %q", out.Issues[0].Description, want)
	}
	analyserCaused(t, out.Issues)
	if got := a.variables[0].class; got != classOverconstrained {
		t.Errorf("y classified %s, want overconstrained", got)
	}
}

func TestAnalyseUnderconstrained(t *testing.T) {
	t.Parallel()

	m := model.New("under")
	c := m.AddComponent(&model.Component{Name: "main"})
	c.AddVariable(&model.Variable{Name: "w", Units: "dimensionless"})
	c.AddVariable(&model.Variable{Name: "z", Units: "dimensionless"})
	c.Math = mathml(assign(ci("w"), apply("plus", ci("z"), cn("1"))))

	out := New().Analyse(m)
	if out.Type != ModelUnderconstrained {
		t.Fatalf("type = %s, want underconstrained", out.Type)
	}
	cited := 0
	for _, i := range out.Issues {
		if !strings.HasSuffix(i.Description, "is not computed.") {
			t.Errorf("unexpected issue %q", i.Description)
		}
		if strings.HasPrefix(i.Description, "Variable 'z' in component 'main'") {
			cited++
		}
	}
	if cited != 1 {
		t.Errorf("expected exactly one issue citing z, got:\n%s", descriptions(out.Issues))
	}
	if len(out.Equations) != 0 || len(out.Variables) != 0 {
		t.Error("underconstrained models publish no equations or variables")
	}
	analyserCaused(t, out.Issues)
}

func TestAnalyseUnsuitablyConstrained(t *testing.T) {
	t.Parallel()

	m := model.New("mixed")
	c := m.AddComponent(&model.Component{Name: "main"})
	c.AddVariable(&model.Variable{Name: "y", Units: "dimensionless"})
	c.AddVariable(&model.Variable{Name: "w", Units: "dimensionless"})
	c.AddVariable(&model.Variable{Name: "z", Units: "dimensionless"})
	c.Math = mathml(
		assign(ci("y"), cn("1")),
		assign(ci("y"), cn("2")),
		assign(ci("w"), apply("plus", ci("z"), cn("1"))),
	)

	out := New().Analyse(m)
	if out.Type != ModelUnsuitablyConstrained {
		t.Fatalf("type = %s, want unsuitably_constrained; issues:\n%s", out.Type, descriptions(out.Issues))
	}
	if out.Type.String() != "unsuitably_constrained" {
		t.Errorf("type renders as %q", out.Type.String())
	}

	want := []string{
		"Variable 'w' in component 'main' of model 'mixed' is not computed.",
		"Variable 'y' in component 'main' of model 'mixed' is computed more than once.",
		"Variable 'z' in component 'main' of model 'mixed' is not computed.",
	}
	if diff := cmp.Diff(want, strings.Split(strings.TrimSpace(descriptions(out.Issues)), "\n")); diff != "" {
		t.Errorf("issues (-want +got):\n%s", diff)
	}
	analyserCaused(t, out.Issues)
	if len(out.Equations) != 0 || len(out.States) != 0 || len(out.Variables) != 0 {
		t.Error("unsuitably constrained models publish no equations or variables")
	}
}

func TestAnalyseODENotInitialised(t *testing.T) {
	t.Parallel()

	m := odeModel()
	m.Components()[0].Variable("x").InitialValue = ""

	out := New().Analyse(m)
	if out.Type != ModelUnderconstrained {
		t.Fatalf("type = %s, want underconstrained", out.Type)
	}
	want := []string{"Variable 'x' in component 'main' of model 'ode' is used in an ODE, but it is not initialised."}
	if diff := cmp.Diff(want, strings.Split(strings.TrimSpace(descriptions(out.Issues)), "\n")); diff != "" {
		t.Errorf("issues (-want +got):\n%s", diff)
	}
	analyserCaused(t, out.Issues)
}

func TestAnalyseEmptyModel(t *testing.T) {
	t.Parallel()

	m := model.New("empty")
	m.AddComponent(&model.Component{Name: "nothing"})
	out := New().Analyse(m)
	if out.Type != ModelUnknown || len(out.Issues) != 0 {
		t.Errorf("type = %s, issues:\n%s", out.Type, descriptions(out.Issues))
	}
}

func TestAnalyseInvalidModelSkipsAnalysis(t *testing.T) {
	t.Parallel()

	m := odeModel()
	m.Components()[0].Variable("x").Units = "furlong"
	out := New().Analyse(m)
	if out.Type != ModelInvalid {
		t.Fatalf("type = %s, want invalid", out.Type)
	}
	if len(out.Issues) == 0 || !strings.Contains(out.Issues[0].Description, "furlong") {
		t.Errorf("expected validation issue, got:\n%s", descriptions(out.Issues))
	}
	if len(out.Equations) != 0 {
		t.Error("invalid models publish no equations")
	}
}

func TestAnalyseUnclosedMarkupIsInvalid(t *testing.T) {
	t.Parallel()

	m := model.New("m")
	c := m.AddComponent(&model.Component{Name: "main"})
	c.AddVariable(&model.Variable{Name: "y", Units: "dimensionless"})
	c.AddVariable(&model.Variable{Name: "z", Units: "dimensionless"})
	// The first apply is never closed.
	c.Math = mathOpen +
		`<apply><eq/>` + ci("y") + cn("1") +
		assign(ci("z"), cn("2")) +
		`</math>`

	out := New().Analyse(m)
	if out.Type != ModelInvalid {
		t.Fatalf("type = %s, want invalid; issues:\n%s", out.Type, descriptions(out.Issues))
	}
	if len(out.Issues) == 0 || out.Issues[0].Cause != issue.CauseMarkup ||
		!strings.Contains(out.Issues[0].Description, "could not be parsed") {
		t.Errorf("expected a markup parse issue, got:\n%s", descriptions(out.Issues))
	}
}

// mixedModel holds an ODE together with computed constants and an algebraic
// variable, with equations declared out of dependency order.
func mixedModel() *model.Model {
	m := model.New("mixed")
	c := m.AddComponent(&model.Component{Name: "main"})
	for _, name := range []string{"t", "a", "b", "y"} {
		units := "dimensionless"
		if name == "t" {
			units = "second"
		}
		c.AddVariable(&model.Variable{Name: name, Units: units})
	}
	c.AddVariable(&model.Variable{Name: "x", Units: "dimensionless", InitialValue: "1"})
	c.AddVariable(&model.Variable{Name: "k", Units: "dimensionless", InitialValue: "2"})
	c.Math = mathml(
		assign(ci("y"), apply("plus", ci("x"), ci("b"))),
		assign(derivative("x", "t"), apply("times", ci("a"), ci("x"))),
		assign(ci("b"), apply("times", ci("a"), ci("k"))),
		assign(ci("a"), cn("3")),
	)
	return m
}

func TestAnalyseMixedClassification(t *testing.T) {
	t.Parallel()

	out := New().Analyse(mixedModel())
	if out.Type != ModelODE || len(out.Issues) != 0 {
		t.Fatalf("type = %s, issues:\n%s", out.Type, descriptions(out.Issues))
	}

	type row struct {
		Name  string
		Type  string
		Index int
	}
	var got []row
	for _, v := range append(append([]*Variable{}, out.States...), out.Variables...) {
		got = append(got, row{v.Variable.Name, v.Type.String(), v.Index})
	}
	want := []row{
		{"x", "state", 0},
		{"k", "constant", 0},
		{"a", "computed_constant", 1},
		{"b", "computed_constant", 2},
		{"y", "algebraic", 3},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("variables (-want +got):\n%s", diff)
	}

	a := byName(out.Variables, "a").Equation
	b := byName(out.Variables, "b").Equation
	y := byName(out.Variables, "y").Equation
	x := out.States[0].Equation
	if a.Type != EquationTrueConstant || b.Type != EquationVariableBasedConstant ||
		x.Type != EquationRate || y.Type != EquationAlgebraic {
		t.Errorf("equation types: a=%s b=%s x=%s y=%s", a.Type, b.Type, x.Type, y.Type)
	}
	if a.StateRateBased || b.StateRateBased || !x.StateRateBased || !y.StateRateBased {
		t.Errorf("state/rate flags: a=%v b=%v x=%v y=%v", a.StateRateBased, b.StateRateBased, x.StateRateBased, y.StateRateBased)
	}
	if len(y.Dependencies) != 1 || y.Dependencies[0] != b {
		t.Errorf("y should depend on b only, got %d deps", len(y.Dependencies))
	}
	if len(x.Dependencies) != 1 || x.Dependencies[0] != a {
		t.Errorf("rate of x should depend on a only, got %d deps", len(x.Dependencies))
	}
	if k := byName(out.Variables, "k"); k.Equation != nil || k.InitialisingVariable.Name != "k" {
		t.Error("constant k should have no equation and be self-initialised")
	}
}

func TestAnalyseOrderingInvariants(t *testing.T) {
	t.Parallel()

	out := New().Analyse(mixedModel())

	seen := make(map[int]bool)
	for _, eq := range out.Equations {
		if eq.Order < 0 || eq.Order >= len(out.Equations) || seen[eq.Order] {
			t.Errorf("order %d is not part of a permutation", eq.Order)
		}
		seen[eq.Order] = true
		for _, dep := range eq.Dependencies {
			if dep.Order >= eq.Order {
				t.Errorf("dependency order %d not before %d", dep.Order, eq.Order)
			}
		}
	}

	for i, s := range out.States {
		if s.Index != i {
			t.Errorf("state %s index %d, want %d", s.Variable.Name, s.Index, i)
		}
	}
	for i, v := range out.Variables {
		if v.Index != i {
			t.Errorf("variable %s index %d, want %d", v.Variable.Name, v.Index, i)
		}
	}
}

func TestAnalyseDeterministic(t *testing.T) {
	t.Parallel()

	first := New().Analyse(mixedModel())
	second := New().Analyse(mixedModel())
	orders := func(m *Model) []string {
		var out []string
		for _, eq := range m.Equations {
			out = append(out, eq.Variable.Variable.Name+":"+eq.Type.String())
		}
		return out
	}
	if diff := cmp.Diff(orders(first), orders(second)); diff != "" {
		t.Errorf("runs differ (-first +second):\n%s", diff)
	}
}

func TestAnalyseIterationLimit(t *testing.T) {
	t.Parallel()

	m := model.New("chain")
	c := m.AddComponent(&model.Component{Name: "main"})
	for _, name := range []string{"a", "b", "c"} {
		c.AddVariable(&model.Variable{Name: name, Units: "dimensionless"})
	}
	c.Math = mathml(
		assign(ci("c"), ci("b")),
		assign(ci("b"), ci("a")),
		assign(ci("a"), cn("1")),
	)

	full := New().Analyse(m)
	if full.Type != ModelAlgebraic {
		t.Fatalf("unlimited: type = %s, issues:\n%s", full.Type, descriptions(full.Issues))
	}

	limited := New(WithIterationLimit(1)).Analyse(m)
	if limited.Type != ModelUnderconstrained {
		t.Fatalf("limited: type = %s", limited.Type)
	}
	found := false
	for _, i := range limited.Issues {
		if i.Cause == issue.CauseAnalyser && i.Level == issue.LevelWarning {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a stopped-early warning, got:\n%s", descriptions(limited.Issues))
	}
}

func TestAnalyseEquivalentInitialisedTwice(t *testing.T) {
	t.Parallel()

	m := model.New("m")
	p := m.AddComponent(&model.Component{Name: "p"})
	q := m.AddComponent(&model.Component{Name: "q"})
	pa := p.AddVariable(&model.Variable{Name: "a", Units: "dimensionless", InitialValue: "1"})
	qa := q.AddVariable(&model.Variable{Name: "a", Units: "dimensionless", InitialValue: "2"})
	model.Connect(pa, qa)

	out := New().Analyse(m)
	if out.Type != ModelInvalid {
		t.Fatalf("type = %s, want invalid", out.Type)
	}
	want := "Variable 'a' in component 'q' of model 'm' and variable 'a' in component 'p' of model 'm' are equivalent and cannot therefore both be initialised."
	if len(out.Issues) != 1 || out.Issues[0].Description != want {
		t.Errorf("issues:\n%s", descriptions(out.Issues))
	}
	analyserCaused(t, out.Issues)
}

func TestAnalyseInitialisedByNonConstant(t *testing.T) {
	t.Parallel()

	m := model.New("m")
	c := m.AddComponent(&model.Component{Name: "c"})
	c.AddVariable(&model.Variable{Name: "t", Units: "second"})
	c.AddVariable(&model.Variable{Name: "x", Units: "dimensionless", InitialValue: "k"})
	c.AddVariable(&model.Variable{Name: "k", Units: "dimensionless"})
	c.Math = mathml(
		assign(derivative("x", "t"), cn("1")),
		assign(ci("k"), cn("2")),
	)

	out := New().Analyse(m)
	if out.Type != ModelInvalid {
		t.Fatalf("type = %s, want invalid", out.Type)
	}
	want := "Variable 'x' in component 'c' of model 'm' is initialised using variable 'k', but it is not a constant."
	if len(out.Issues) != 1 || out.Issues[0].Description != want {
		t.Errorf("issues:\n%s", descriptions(out.Issues))
	}
	analyserCaused(t, out.Issues)
}

func TestAnalyseInitialisedByConstant(t *testing.T) {
	t.Parallel()

	m := model.New("m")
	c := m.AddComponent(&model.Component{Name: "c"})
	c.AddVariable(&model.Variable{Name: "t", Units: "second"})
	c.AddVariable(&model.Variable{Name: "x", Units: "dimensionless", InitialValue: "k"})
	c.AddVariable(&model.Variable{Name: "k", Units: "dimensionless", InitialValue: "2"})
	c.Math = mathml(assign(derivative("x", "t"), cn("1")))

	out := New().Analyse(m)
	if out.Type != ModelODE {
		t.Fatalf("type = %s, issues:\n%s", out.Type, descriptions(out.Issues))
	}
}

func TestAnalyseInitialisedVOI(t *testing.T) {
	t.Parallel()

	m := odeModel()
	m.Components()[0].Variable("t").InitialValue = "0"

	out := New().Analyse(m)
	if out.Type != ModelInvalid {
		t.Fatalf("type = %s, want invalid", out.Type)
	}
	want := "Variable 't' in component 'main' of model 'ode' cannot be both a variable of integration and initialised."
	if len(out.Issues) != 1 || out.Issues[0].Description != want {
		t.Errorf("issues:\n%s", descriptions(out.Issues))
	}
	analyserCaused(t, out.Issues)
}

func TestAnalyseTwoVOIs(t *testing.T) {
	t.Parallel()

	m := model.New("m")
	c := m.AddComponent(&model.Component{Name: "c"})
	c.AddVariable(&model.Variable{Name: "t", Units: "second"})
	c.AddVariable(&model.Variable{Name: "s", Units: "second"})
	c.AddVariable(&model.Variable{Name: "x", Units: "dimensionless", InitialValue: "1"})
	c.AddVariable(&model.Variable{Name: "y", Units: "dimensionless", InitialValue: "1"})
	c.Math = mathml(
		assign(derivative("x", "t"), cn("1")),
		assign(derivative("y", "s"), cn("1")),
	)

	out := New().Analyse(m)
	if out.Type != ModelInvalid {
		t.Fatalf("type = %s, want invalid", out.Type)
	}
	want := "Variable 't' in component 'c' of model 'm' and variable 's' in component 'c' of model 'm' cannot both be the variable of integration."
	if len(out.Issues) != 1 || out.Issues[0].Description != want {
		t.Errorf("issues:\n%s", descriptions(out.Issues))
	}
	analyserCaused(t, out.Issues)
}

func TestAnalyseSecondOrder(t *testing.T) {
	t.Parallel()

	m := odeModel()
	m.Components()[0].Math = mathml(assign(
		`<apply><diff/><bvar><ci>t</ci><degree>`+cn("2")+`</degree></bvar><ci>x</ci></apply>`,
		cn("1"),
	))

	out := New().Analyse(m)
	if out.Type != ModelInvalid {
		t.Fatalf("type = %s, want invalid", out.Type)
	}
	want := "The differential equation for variable 'x' in component 'main' of model 'ode' must be of the first order."
	if len(out.Issues) != 1 || out.Issues[0].Description != want {
		t.Errorf("issues:\n%s", descriptions(out.Issues))
	}
	analyserCaused(t, out.Issues)
}

func TestAnalyseVOIFromEncapsulatedComponent(t *testing.T) {
	t.Parallel()

	m := model.New("m")
	env := m.AddComponent(&model.Component{Name: "env"})
	envT := env.AddVariable(&model.Variable{Name: "time", Units: "second"})
	inner := env.AddComponent(&model.Component{Name: "inner"})
	innerT := inner.AddVariable(&model.Variable{Name: "t", Units: "second"})
	inner.AddVariable(&model.Variable{Name: "x", Units: "dimensionless", InitialValue: "1"})
	inner.Math = mathml(assign(derivative("x", "t"), cn("1")))
	model.Connect(envT, innerT)

	out := New().Analyse(m)
	if out.Type != ModelODE {
		t.Fatalf("type = %s, issues:\n%s", out.Type, descriptions(out.Issues))
	}
	if out.VOI.Variable != envT {
		t.Errorf("VOI should be the first occurrence env.time, got %s", out.VOI.Variable.Qualified())
	}
}

func TestNeeds(t *testing.T) {
	t.Parallel()

	m := model.New("m")
	c := m.AddComponent(&model.Component{Name: "c"})
	c.AddVariable(&model.Variable{Name: "y", Units: "dimensionless"})
	c.AddVariable(&model.Variable{Name: "k", Units: "dimensionless", InitialValue: "1"})
	c.Math = mathml(assign(ci("y"),
		`<piecewise><piece>`+apply("min", ci("k"), cn("2"))+apply("eq", ci("k"), cn("1"))+`</piece>`+
			`<otherwise>`+cn("0")+`</otherwise></piecewise>`))

	out := New().Analyse(m)
	if out.Type != ModelAlgebraic {
		t.Fatalf("type = %s, issues:\n%s", out.Type, descriptions(out.Issues))
	}
	got := out.NeededKinds()
	want := []Kind{KindEq, KindMin}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("needs (-want +got):\n%s", diff)
	}
	if out.Needs(KindMax) {
		t.Error("max is not used")
	}
}
