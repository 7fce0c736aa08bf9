// Package model defines the source model object graph consumed by validation
// and analysis: components, variables, units and equivalence links.
package model

import "strings"

// Interface values accepted on a variable.
const (
	InterfaceNone             = "none"
	InterfacePublic           = "public"
	InterfacePrivate          = "private"
	InterfacePublicAndPrivate = "public_and_private"
)

// Unit is a single factor of a units definition. A zero Exponent or
// Multiplier means 1.
type Unit struct {
	Reference  string
	Prefix     string
	Exponent   float64
	Multiplier float64
}

// Units is a named units definition, the product of its unit factors.
type Units struct {
	Name  string
	Units []Unit
}

// Variable is a named quantity declared in a component.
type Variable struct {
	Name         string
	Units        string
	Interface    string
	InitialValue string

	component  *Component
	equivalent []*Variable
}

// Component returns the component that declares v.
func (v *Variable) Component() *Component {
	return v.component
}

// Equivalents returns the variables directly connected to v.
func (v *Variable) Equivalents() []*Variable {
	return v.equivalent
}

// HasInitialValue reports whether v declares an initial value.
func (v *Variable) HasInitialValue() bool {
	return strings.TrimSpace(v.InitialValue) != ""
}

// Qualified returns the quoted variable name followed by its owning component
// and model, e.g. 'x' in component 'c' of model 'm'.
func (v *Variable) Qualified() string {
	var b strings.Builder
	b.WriteString("'" + v.Name + "'")
	if v.component != nil {
		b.WriteString(" in component '" + v.component.Name + "'")
		if m := v.component.Model(); m != nil {
			b.WriteString(" of model '" + m.Name + "'")
		}
	}
	return b.String()
}

// Component groups variables and the mathematics relating them. Components
// may encapsulate other components.
type Component struct {
	Name string
	// Math holds the raw markup of every math element of the component.
	Math string

	variables  []*Variable
	components []*Component
	parent     *Component
	model      *Model
}

// AddVariable declares v in c and returns it.
func (c *Component) AddVariable(v *Variable) *Variable {
	v.component = c
	c.variables = append(c.variables, v)
	return v
}

// AddComponent encapsulates child in c and returns it.
func (c *Component) AddComponent(child *Component) *Component {
	child.parent = c
	child.model = nil
	c.components = append(c.components, child)
	return child
}

// Variables returns the variables declared in c, in declaration order.
func (c *Component) Variables() []*Variable {
	return c.variables
}

// Components returns the components encapsulated by c.
func (c *Component) Components() []*Component {
	return c.components
}

// Variable returns the variable of c with the given name, or nil.
func (c *Component) Variable(name string) *Variable {
	for _, v := range c.variables {
		if v.Name == name {
			return v
		}
	}
	return nil
}

// Parent returns the encapsulating component, or nil for a top-level one.
func (c *Component) Parent() *Component {
	return c.parent
}

// Model returns the model owning c, or nil if c is detached.
func (c *Component) Model() *Model {
	top := c
	for top.parent != nil {
		top = top.parent
	}
	return top.model
}

// Model is the root of the object graph.
type Model struct {
	Name string

	units      []*Units
	components []*Component
}

// New returns an empty model.
func New(name string) *Model {
	return &Model{Name: name}
}

// AddComponent adds a top-level component to m and returns it.
func (m *Model) AddComponent(c *Component) *Component {
	c.parent = nil
	c.model = m
	m.components = append(m.components, c)
	return c
}

// AddUnits adds a units definition to m and returns it.
func (m *Model) AddUnits(u *Units) *Units {
	m.units = append(m.units, u)
	return u
}

// Components returns the top-level components of m.
func (m *Model) Components() []*Component {
	return m.components
}

// Units returns the units definitions of m.
func (m *Model) Units() []*Units {
	return m.units
}

// LookupUnits returns the units definition with the given name, or nil.
func (m *Model) LookupUnits(name string) *Units {
	for _, u := range m.units {
		if u.Name == name {
			return u
		}
	}
	return nil
}

// Walk visits every component depth-first, parents before children, in
// declaration order.
func (m *Model) Walk(fn func(c *Component)) {
	var visit func(cs []*Component)
	visit = func(cs []*Component) {
		for _, c := range cs {
			fn(c)
			visit(c.components)
		}
	}
	visit(m.components)
}

// AllComponents returns every component of m in Walk order.
func (m *Model) AllComponents() []*Component {
	var all []*Component
	m.Walk(func(c *Component) {
		all = append(all, c)
	})
	return all
}

// Connect declares a and b equivalent. The link is symmetric; duplicate and
// self links are ignored.
func Connect(a, b *Variable) {
	if a == nil || b == nil || a == b {
		return
	}
	for _, e := range a.equivalent {
		if e == b {
			return
		}
	}
	a.equivalent = append(a.equivalent, b)
	b.equivalent = append(b.equivalent, a)
}
