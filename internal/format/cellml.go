package format

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/phobologic/cellanalyser/internal/model"
)

func init() {
	Formats["cellml"] = &Format{
		Name:       "cellml",
		Extensions: []string{".cellml", ".xml"},
		Decode:     decodeCellML,
	}
}

type cellmlModel struct {
	XMLName       xml.Name              `xml:"model"`
	Name          string                `xml:"name,attr"`
	Imports       []struct{}            `xml:"import"`
	Units         []cellmlUnits         `xml:"units"`
	Components    []cellmlComponent     `xml:"component"`
	Connections   []cellmlConnection    `xml:"connection"`
	Encapsulation []cellmlEncapsulation `xml:"encapsulation"`
	Groups        []cellmlGroup         `xml:"group"`
}

type cellmlUnits struct {
	Name  string       `xml:"name,attr"`
	Units []cellmlUnit `xml:"unit"`
}

type cellmlUnit struct {
	Units      string `xml:"units,attr"`
	Prefix     string `xml:"prefix,attr"`
	Exponent   string `xml:"exponent,attr"`
	Multiplier string `xml:"multiplier,attr"`
}

type cellmlComponent struct {
	Name      string           `xml:"name,attr"`
	Variables []cellmlVariable `xml:"variable"`
	Math      []cellmlMath     `xml:"math"`
}

type cellmlVariable struct {
	Name             string `xml:"name,attr"`
	Units            string `xml:"units,attr"`
	Interface        string `xml:"interface,attr"`
	PublicInterface  string `xml:"public_interface,attr"`
	PrivateInterface string `xml:"private_interface,attr"`
	InitialValue     string `xml:"initial_value,attr"`
}

type cellmlMath struct {
	Inner string `xml:",innerxml"`
}

type cellmlConnection struct {
	Component1    string              `xml:"component_1,attr"`
	Component2    string              `xml:"component_2,attr"`
	MapComponents *cellmlMapComponent `xml:"map_components"`
	MapVariables  []cellmlMapVariable `xml:"map_variables"`
}

type cellmlMapComponent struct {
	Component1 string `xml:"component_1,attr"`
	Component2 string `xml:"component_2,attr"`
}

type cellmlMapVariable struct {
	Variable1 string `xml:"variable_1,attr"`
	Variable2 string `xml:"variable_2,attr"`
}

type cellmlEncapsulation struct {
	Refs []cellmlComponentRef `xml:"component_ref"`
}

type cellmlGroup struct {
	Relationships []struct {
		Relationship string `xml:"relationship,attr"`
	} `xml:"relationship_ref"`
	Refs []cellmlComponentRef `xml:"component_ref"`
}

type cellmlComponentRef struct {
	Component string               `xml:"component,attr"`
	Refs      []cellmlComponentRef `xml:"component_ref"`
}

func decodeCellML(data []byte) (*model.Model, error) {
	var doc cellmlModel
	dec := xml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing xml: %w", err)
	}
	if len(doc.Imports) > 0 {
		return nil, errors.New("imports are not supported")
	}

	m := model.New(doc.Name)
	for _, u := range doc.Units {
		units := &model.Units{Name: u.Name}
		for _, f := range u.Units {
			unit, err := f.unit()
			if err != nil {
				return nil, fmt.Errorf("units %q: %w", u.Name, err)
			}
			units.Units = append(units.Units, unit)
		}
		m.AddUnits(units)
	}

	// Components are declared flat; encapsulation decides where each one
	// lives in the hierarchy.
	declared := make(map[string]*model.Component, len(doc.Components))
	var order []*model.Component
	for _, c := range doc.Components {
		comp := c.component()
		if _, dup := declared[c.Name]; !dup {
			declared[c.Name] = comp
		}
		order = append(order, comp)
	}

	parents := make(map[*model.Component]*model.Component)
	children := make(map[*model.Component][]*model.Component)
	var link func(parent *model.Component, refs []cellmlComponentRef) error
	link = func(parent *model.Component, refs []cellmlComponentRef) error {
		for _, ref := range refs {
			comp, ok := declared[ref.Component]
			if !ok {
				return fmt.Errorf("encapsulation references unknown component %q", ref.Component)
			}
			if parent != nil {
				if prev, ok := parents[comp]; ok && prev != parent {
					return fmt.Errorf("component %q is encapsulated more than once", ref.Component)
				}
				if _, ok := parents[comp]; !ok {
					parents[comp] = parent
					children[parent] = append(children[parent], comp)
				}
			}
			if err := link(comp, ref.Refs); err != nil {
				return err
			}
		}
		return nil
	}
	for _, e := range doc.Encapsulation {
		if err := link(nil, e.Refs); err != nil {
			return nil, err
		}
	}
	for _, g := range doc.Groups {
		if g.encapsulation() {
			if err := link(nil, g.Refs); err != nil {
				return nil, err
			}
		}
	}

	var attach func(parent *model.Component)
	attach = func(parent *model.Component) {
		for _, child := range children[parent] {
			parent.AddComponent(child)
			attach(child)
		}
	}
	for _, comp := range order {
		if _, nested := parents[comp]; nested {
			continue
		}
		m.AddComponent(comp)
		attach(comp)
	}
	if len(m.AllComponents()) != len(order) {
		return nil, errors.New("encapsulation hierarchy contains a cycle")
	}

	index := componentIndex(m)
	for _, conn := range doc.Connections {
		c1, c2 := conn.Component1, conn.Component2
		if conn.MapComponents != nil {
			c1, c2 = conn.MapComponents.Component1, conn.MapComponents.Component2
		}
		for _, mv := range conn.MapVariables {
			if err := connect(index, c1, c2, mv.Variable1, mv.Variable2); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (u cellmlUnit) unit() (model.Unit, error) {
	unit := model.Unit{Reference: u.Units, Prefix: u.Prefix}
	var err error
	if unit.Exponent, err = parseOptionalFloat(u.Exponent); err != nil {
		return unit, fmt.Errorf("exponent: %w", err)
	}
	if unit.Multiplier, err = parseOptionalFloat(u.Multiplier); err != nil {
		return unit, fmt.Errorf("multiplier: %w", err)
	}
	return unit, nil
}

func parseOptionalFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func (c cellmlComponent) component() *model.Component {
	comp := &model.Component{Name: c.Name}
	var math strings.Builder
	for _, m := range c.Math {
		math.WriteString("<math>")
		math.WriteString(m.Inner)
		math.WriteString("</math>")
	}
	comp.Math = math.String()
	for _, v := range c.Variables {
		comp.AddVariable(&model.Variable{
			Name:         v.Name,
			Units:        v.Units,
			Interface:    v.iface(),
			InitialValue: v.InitialValue,
		})
	}
	return comp
}

// iface returns the interface of v, deriving it from the public and private
// interfaces of older documents.
func (v cellmlVariable) iface() string {
	if v.Interface != "" {
		return v.Interface
	}
	public := v.PublicInterface != "" && v.PublicInterface != "none"
	private := v.PrivateInterface != "" && v.PrivateInterface != "none"
	switch {
	case public && private:
		return model.InterfacePublicAndPrivate
	case public:
		return model.InterfacePublic
	case private:
		return model.InterfacePrivate
	}
	return ""
}

func (g cellmlGroup) encapsulation() bool {
	for _, r := range g.Relationships {
		if r.Relationship == "encapsulation" {
			return true
		}
	}
	return false
}
