package format

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/phobologic/cellanalyser/internal/model"
)

func init() {
	Formats["yaml"] = &Format{
		Name:       "yaml",
		Extensions: []string{".yaml", ".yml"},
		Decode:     decodeYAML,
	}
}

// Document is the YAML form of a model.
type Document struct {
	Name        string               `yaml:"name"`
	Units       []UnitsDocument      `yaml:"units,omitempty"`
	Components  []ComponentDocument  `yaml:"components"`
	Connections []ConnectionDocument `yaml:"connections,omitempty"`
}

// UnitsDocument is a named units definition.
type UnitsDocument struct {
	Name  string         `yaml:"name"`
	Units []UnitDocument `yaml:"units"`
}

// UnitDocument is one factor of a units definition.
type UnitDocument struct {
	Reference  string  `yaml:"reference"`
	Prefix     string  `yaml:"prefix,omitempty"`
	Exponent   float64 `yaml:"exponent,omitempty"`
	Multiplier float64 `yaml:"multiplier,omitempty"`
}

// ComponentDocument is a component with its encapsulated children.
type ComponentDocument struct {
	Name       string              `yaml:"name"`
	Variables  []VariableDocument  `yaml:"variables,omitempty"`
	Math       string              `yaml:"math,omitempty"`
	Components []ComponentDocument `yaml:"components,omitempty"`
}

// VariableDocument is a variable declaration.
type VariableDocument struct {
	Name         string `yaml:"name"`
	Units        string `yaml:"units"`
	Interface    string `yaml:"interface,omitempty"`
	InitialValue string `yaml:"initial_value,omitempty"`
}

// ConnectionDocument links variables of two components.
type ConnectionDocument struct {
	Component1 string            `yaml:"component_1"`
	Component2 string            `yaml:"component_2"`
	Variables  []VariableMapping `yaml:"variables"`
}

// VariableMapping pairs a variable of each connected component.
type VariableMapping struct {
	Variable1 string `yaml:"variable_1"`
	Variable2 string `yaml:"variable_2"`
}

func decodeYAML(data []byte) (*model.Model, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty document")
		}
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}
	return doc.Model()
}

// Model builds the object graph described by d.
func (d *Document) Model() (*model.Model, error) {
	m := model.New(d.Name)
	for _, u := range d.Units {
		units := &model.Units{Name: u.Name}
		for _, f := range u.Units {
			units.Units = append(units.Units, model.Unit{
				Reference:  f.Reference,
				Prefix:     f.Prefix,
				Exponent:   f.Exponent,
				Multiplier: f.Multiplier,
			})
		}
		m.AddUnits(units)
	}

	for _, c := range d.Components {
		m.AddComponent(c.component())
	}

	index := componentIndex(m)
	for _, conn := range d.Connections {
		for _, v := range conn.Variables {
			if err := connect(index, conn.Component1, conn.Component2, v.Variable1, v.Variable2); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (c ComponentDocument) component() *model.Component {
	comp := &model.Component{Name: c.Name, Math: c.Math}
	for _, v := range c.Variables {
		comp.AddVariable(&model.Variable{
			Name:         v.Name,
			Units:        v.Units,
			Interface:    v.Interface,
			InitialValue: v.InitialValue,
		})
	}
	for _, child := range c.Components {
		comp.AddComponent(child.component())
	}
	return comp
}
