package model

import "sort"

// Equivalence partitions the variables of a model into equivalence classes,
// the transitive closure of Connect. Classes are numbered in the order their
// first member is declared when walking the model.
type Equivalence struct {
	class   map[*Variable]int
	seq     map[*Variable]int
	members [][]*Variable
}

// NewEquivalence computes the equivalence classes of m.
func NewEquivalence(m *Model) *Equivalence {
	e := &Equivalence{
		class: make(map[*Variable]int),
		seq:   make(map[*Variable]int),
	}

	var declared []*Variable
	m.Walk(func(c *Component) {
		for _, v := range c.variables {
			e.seq[v] = len(declared)
			declared = append(declared, v)
		}
	})

	for _, v := range declared {
		if _, ok := e.class[v]; ok {
			continue
		}
		id := len(e.members)
		class := []*Variable{v}
		e.class[v] = id
		for i := 0; i < len(class); i++ {
			for _, next := range class[i].equivalent {
				if _, seen := e.class[next]; seen {
					continue
				}
				e.class[next] = id
				class = append(class, next)
			}
		}
		sort.SliceStable(class, func(i, j int) bool {
			return e.order(class[i]) < e.order(class[j])
		})
		e.members = append(e.members, class)
	}
	return e
}

// order ranks variables connected from outside the model after every
// declared one.
func (e *Equivalence) order(v *Variable) int {
	if s, ok := e.seq[v]; ok {
		return s
	}
	return len(e.seq)
}

// Class returns the class number of v, or -1 if v is not part of the model.
func (e *Equivalence) Class(v *Variable) int {
	if id, ok := e.class[v]; ok {
		return id
	}
	return -1
}

// Same reports whether a and b belong to the same class.
func (e *Equivalence) Same(a, b *Variable) bool {
	if a == b {
		return true
	}
	ca, cb := e.Class(a), e.Class(b)
	return ca >= 0 && ca == cb
}

// Members returns every variable equivalent to v, including v itself, in
// declaration order.
func (e *Equivalence) Members(v *Variable) []*Variable {
	id := e.Class(v)
	if id < 0 {
		return []*Variable{v}
	}
	return e.members[id]
}

// Len returns the number of classes.
func (e *Equivalence) Len() int {
	return len(e.members)
}
