package validate

import (
	"strings"

	"github.com/phobologic/cellanalyser/internal/issue"
	"github.com/phobologic/cellanalyser/internal/markup"
	"github.com/phobologic/cellanalyser/internal/model"
)

// mathElements is the supported MathML subset.
var mathElements = map[string]bool{
	"math": true, "apply": true, "sep": true,
	"eq": true, "neq": true, "lt": true, "leq": true, "gt": true, "geq": true,
	"and": true, "or": true, "xor": true, "not": true,
	"plus": true, "minus": true, "times": true, "divide": true, "power": true,
	"root": true, "abs": true, "exp": true, "ln": true, "log": true,
	"ceiling": true, "floor": true, "min": true, "max": true, "rem": true,
	"diff": true,
	"sin": true, "cos": true, "tan": true, "sec": true, "csc": true, "cot": true,
	"sinh": true, "cosh": true, "tanh": true, "sech": true, "csch": true, "coth": true,
	"arcsin": true, "arccos": true, "arctan": true, "arcsec": true, "arccsc": true, "arccot": true,
	"arcsinh": true, "arccosh": true, "arctanh": true, "arcsech": true, "arccsch": true, "arccoth": true,
	"piecewise": true, "piece": true, "otherwise": true,
	"ci": true, "cn": true,
	"degree": true, "logbase": true, "bvar": true,
	"true": true, "false": true, "exponentiale": true, "pi": true,
	"infinity": true, "notanumber": true,
}

// operands are elements that name a value rather than an operator.
var operands = map[string]bool{
	"apply": true, "ci": true, "cn": true, "piecewise": true,
	"piece": true, "otherwise": true, "bvar": true, "degree": true, "logbase": true,
}

// SupportedElement reports whether name is part of the supported MathML
// subset.
func SupportedElement(name string) bool {
	return mathElements[name]
}

func (v *validator) checkMath(c *model.Component) {
	if strings.TrimSpace(c.Math) == "" {
		return
	}
	doc, err := markup.Parse(c.Math)
	if err != nil {
		v.addf(issue.CauseMarkup, "The math in component '%s' of model '%s' could not be parsed: %v.", c.Name, v.model.Name, err)
		return
	}
	for _, root := range doc.Elements() {
		if root.Name != "math" {
			v.addf(issue.CauseMathML, "Math root node is of invalid type '%s' on component '%s'. A valid math root node should be of type 'math'.", root.Name, c.Name)
			continue
		}
		for _, el := range root.Elements() {
			v.checkElement(c, el)
		}
	}
}

func (v *validator) checkElement(c *model.Component, el *markup.Node) {
	if !mathElements[el.Name] || el.Name == "math" {
		v.addf(issue.CauseMathML, "Math has a '%s' element that is not a supported MathML element.", el.Name)
		return
	}

	switch el.Name {
	case "apply":
		v.checkApply(c, el)
	case "ci":
		name := el.TextContent()
		if c.Variable(name) == nil {
			v.addf(issue.CauseMathML, "MathML ci element has the child text '%s' which does not correspond with any variable names present in component '%s'.", name, c.Name)
		}
		return
	case "cn":
		v.checkNumber(el)
		return
	case "bvar":
		first := el.FirstElement()
		if first == nil || first.Name != "ci" {
			v.addf(issue.CauseMathML, "Math in component '%s' has a bvar element without a ci child.", c.Name)
		}
	}

	for _, child := range el.Elements() {
		v.checkElement(c, child)
	}
}

func (v *validator) checkApply(c *model.Component, el *markup.Node) {
	kids := el.Elements()
	if len(kids) == 0 {
		v.addf(issue.CauseMathML, "Math in component '%s' has an apply element with no children.", c.Name)
		return
	}
	if operands[kids[0].Name] {
		v.addf(issue.CauseMathML, "Math in component '%s' has an apply element whose first child '%s' is not an operator.", c.Name, kids[0].Name)
	}
	if kids[0].Name == "diff" {
		if len(kids) != 3 || kids[1].Name != "bvar" || kids[2].Name != "ci" {
			v.addf(issue.CauseMathML, "Math in component '%s' has a derivative that is not of a variable with respect to a single bvar.", c.Name)
		}
	}
}

func (v *validator) checkNumber(el *markup.Node) {
	text := numberText(el)
	if !isReal(text) {
		v.addf(issue.CauseMathML, "MathML cn element has the value '%s' which cannot be converted to a real number.", text)
	}
	u, ok := el.Attr("units")
	switch {
	case !ok || strings.TrimSpace(u) == "":
		v.addf(issue.CauseMathML, "Math cn element with the value '%s' does not have a valid cellml:units attribute.", text)
	case !v.unitsExist(u):
		v.addf(issue.CauseMathML, "Math has a cn element with a cellml:units attribute '%s' that is not a valid reference to units in the model or a standard unit.", u)
	}
}

// numberText joins an e-notation pair into a single literal.
func numberText(el *markup.Node) string {
	var b strings.Builder
	for _, c := range el.Children {
		switch {
		case c.Kind == markup.Text:
			b.WriteString(strings.TrimSpace(c.Text))
		case c.Name == "sep":
			b.WriteString("e")
		}
	}
	return b.String()
}
