// Package validate checks the structural rules a model must satisfy before
// it can be analysed.
package validate

import (
	"errors"
	"strconv"
	"strings"

	"github.com/phobologic/cellanalyser/internal/issue"
	"github.com/phobologic/cellanalyser/internal/model"
	"github.com/phobologic/cellanalyser/internal/units"
)

var interfaces = map[string]bool{
	"":                              true,
	model.InterfaceNone:             true,
	model.InterfacePublic:           true,
	model.InterfacePrivate:          true,
	model.InterfacePublicAndPrivate: true,
}

// Model returns every rule violation found in m, in model order.
func Model(m *model.Model) issue.List {
	v := &validator{model: m, table: units.NewTable(m)}
	v.checkModel()
	v.checkUnits()
	v.checkComponents()
	v.checkConnections()
	return v.issues
}

type validator struct {
	model  *model.Model
	table  *units.Table
	issues issue.List
}

func (v *validator) addf(cause issue.Cause, format string, args ...any) {
	v.issues.Addf(cause, format, args...)
}

func (v *validator) checkModel() {
	if strings.TrimSpace(v.model.Name) == "" {
		v.addf(issue.CauseModel, "Model does not have a valid name attribute.")
	}
}

func (v *validator) checkUnits() {
	seen := map[string]bool{}
	for _, u := range v.model.Units() {
		name := strings.TrimSpace(u.Name)
		switch {
		case name == "":
			v.addf(issue.CauseUnits, "Units in model '%s' does not have a valid name attribute.", v.model.Name)
			continue
		case units.IsStandard(name):
			v.addf(issue.CauseUnits, "Units is named '%s' which is a protected standard unit name.", name)
		case seen[name]:
			v.addf(issue.CauseModel, "Model '%s' contains multiple units with the name '%s'. Valid units names must be unique to their model.", v.model.Name, name)
		}
		seen[name] = true

		refsOK := true
		for _, unit := range u.Units {
			if !v.unitsExist(unit.Reference) {
				refsOK = false
				v.addf(issue.CauseUnits, "Units reference '%s' in units '%s' is not a valid reference to a local units or a standard unit type.", unit.Reference, name)
			}
			if _, ok := units.PrefixExponent(unit.Prefix); !ok {
				refsOK = false
				v.addf(issue.CauseUnits, "Prefix '%s' of a unit referencing '%s' in units '%s' is not a valid integer or an SI prefix.", unit.Prefix, unit.Reference, name)
			}
		}
		if !refsOK {
			continue
		}
		if _, err := v.table.Magnitude(name); err != nil {
			var ce *units.CycleError
			if errors.As(err, &ce) {
				v.addf(issue.CauseUnits, "Units '%s' in model '%s' is defined in terms of itself.", name, v.model.Name)
			}
		}
	}
}

func (v *validator) unitsExist(name string) bool {
	return units.IsStandard(name) || v.model.LookupUnits(name) != nil
}

func (v *validator) checkComponents() {
	seen := map[string]bool{}
	v.model.Walk(func(c *model.Component) {
		name := strings.TrimSpace(c.Name)
		switch {
		case name == "":
			v.addf(issue.CauseComponent, "Component in model '%s' does not have a valid name attribute.", v.model.Name)
		case seen[name]:
			v.addf(issue.CauseModel, "Model '%s' contains multiple components with the name '%s'. Valid component names must be unique to their model.", v.model.Name, name)
		}
		seen[name] = true

		v.checkVariables(c)
		v.checkMath(c)
	})
}

func (v *validator) checkVariables(c *model.Component) {
	seen := map[string]bool{}
	for _, variable := range c.Variables() {
		name := strings.TrimSpace(variable.Name)
		if name == "" {
			v.addf(issue.CauseVariable, "Variable in component '%s' of model '%s' does not have a valid name attribute.", c.Name, v.model.Name)
			continue
		}
		if seen[name] {
			v.addf(issue.CauseComponent, "Component '%s' contains multiple variables with the name '%s'. Valid variable names must be unique to their component.", c.Name, name)
		}
		seen[name] = true

		switch {
		case strings.TrimSpace(variable.Units) == "":
			v.addf(issue.CauseVariable, "Variable %s does not have a valid units attribute.", variable.Qualified())
		case !v.unitsExist(variable.Units):
			v.addf(issue.CauseVariable, "Variable %s has a units reference '%s' which is neither standard nor defined in the parent model.", variable.Qualified(), variable.Units)
		}

		if !interfaces[variable.Interface] {
			v.addf(issue.CauseVariable, "Variable %s has an invalid interface attribute value '%s'.", variable.Qualified(), variable.Interface)
		}

		if variable.HasInitialValue() {
			init := strings.TrimSpace(variable.InitialValue)
			if !isReal(init) && c.Variable(init) == nil {
				v.addf(issue.CauseVariable, "Variable %s has an invalid initial value '%s'. Initial values must be a real number string or a variable reference.", variable.Qualified(), init)
			}
		}
	}
}

func (v *validator) checkConnections() {
	v.model.Walk(func(c *model.Component) {
		for _, variable := range c.Variables() {
			for _, other := range variable.Equivalents() {
				oc := other.Component()
				switch {
				case oc == nil || oc.Model() != v.model:
					v.addf(issue.CauseConnection, "Variable %s is equivalent to variable '%s' which is not part of model '%s'.", variable.Qualified(), other.Name, v.model.Name)
				case oc == c:
					// Reported from the first of the pair only.
					if indexOf(c.Variables(), variable) < indexOf(c.Variables(), other) {
						v.addf(issue.CauseConnection, "Variable %s is equivalent to variable '%s' in the same component.", variable.Qualified(), other.Name)
					}
				}
			}
		}
	})
}

func indexOf(vs []*model.Variable, target *model.Variable) int {
	for i, v := range vs {
		if v == target {
			return i
		}
	}
	return -1
}

func isReal(s string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil
}
