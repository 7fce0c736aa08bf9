// Package units resolves units definitions to magnitudes relative to SI base
// units and computes conversion factors between them.
package units

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/phobologic/cellanalyser/internal/model"
)

// standard lists the built-in units with their magnitude relative to the
// coherent SI expression of their dimension.
var standard = map[string]float64{
	"ampere":        1,
	"becquerel":     1,
	"candela":       1,
	"coulomb":       1,
	"dimensionless": 1,
	"farad":         1,
	"gram":          1e-3,
	"gray":          1,
	"henry":         1,
	"hertz":         1,
	"joule":         1,
	"katal":         1,
	"kelvin":        1,
	"kilogram":      1,
	"liter":         1e-3,
	"litre":         1e-3,
	"lumen":         1,
	"lux":           1,
	"metre":         1,
	"meter":         1,
	"mole":          1,
	"newton":        1,
	"ohm":           1,
	"pascal":        1,
	"radian":        1,
	"second":        1,
	"siemens":       1,
	"sievert":       1,
	"steradian":     1,
	"tesla":         1,
	"volt":          1,
	"watt":          1,
	"weber":         1,
}

var prefixes = map[string]int{
	"yotta": 24,
	"zetta": 21,
	"exa":   18,
	"peta":  15,
	"tera":  12,
	"giga":  9,
	"mega":  6,
	"kilo":  3,
	"hecto": 2,
	"deca":  1,
	"deka":  1,
	"deci":  -1,
	"centi": -2,
	"milli": -3,
	"micro": -6,
	"nano":  -9,
	"pico":  -12,
	"femto": -15,
	"atto":  -18,
	"zepto": -21,
	"yocto": -24,
}

// IsStandard reports whether name is a built-in units name.
func IsStandard(name string) bool {
	_, ok := standard[name]
	return ok
}

// PrefixExponent returns the power of ten denoted by a prefix, given either
// as an SI prefix name or as an integer. An empty prefix is zero.
func PrefixExponent(prefix string) (int, bool) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return 0, true
	}
	if e, ok := prefixes[prefix]; ok {
		return e, true
	}
	e, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, false
	}
	return e, true
}

// CycleError reports a units definition that refers back to itself.
type CycleError struct {
	Name string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("units %q is defined in terms of itself", e.Name)
}

// Table resolves the units of one model, caching magnitudes.
type Table struct {
	model *model.Model
	cache map[string]float64
}

// NewTable returns a Table for m.
func NewTable(m *model.Model) *Table {
	return &Table{model: m, cache: make(map[string]float64)}
}

// Magnitude returns the size of one unit of name relative to SI.
func (t *Table) Magnitude(name string) (float64, error) {
	return t.magnitude(name, map[string]bool{})
}

func (t *Table) magnitude(name string, visiting map[string]bool) (float64, error) {
	if m, ok := t.cache[name]; ok {
		return m, nil
	}
	// Built-in names cannot be redefined.
	if m, ok := standard[name]; ok {
		return m, nil
	}
	def := t.model.LookupUnits(name)
	if def == nil {
		return 0, fmt.Errorf("units %q is not defined", name)
	}
	if visiting[name] {
		return 0, &CycleError{Name: name}
	}
	visiting[name] = true
	defer delete(visiting, name)

	total := 1.0
	for _, u := range def.Units {
		ref, err := t.magnitude(u.Reference, visiting)
		if err != nil {
			return 0, err
		}
		exp, ok := PrefixExponent(u.Prefix)
		if !ok {
			return 0, fmt.Errorf("units %q: invalid prefix %q", name, u.Prefix)
		}
		mult := u.Multiplier
		if mult == 0 {
			mult = 1
		}
		power := u.Exponent
		if power == 0 {
			power = 1
		}
		total *= math.Pow(mult*math.Pow10(exp)*ref, power)
	}
	t.cache[name] = total
	return total, nil
}

// Factor returns the number a value expressed in source units must be
// multiplied by to express it in target units.
func (t *Table) Factor(source, target string) (float64, error) {
	if source == target {
		return 1, nil
	}
	s, err := t.Magnitude(source)
	if err != nil {
		return 0, err
	}
	d, err := t.Magnitude(target)
	if err != nil {
		return 0, err
	}
	return s / d, nil
}

// IsUnity reports whether f is 1 within floating point tolerance.
func IsUnity(f float64) bool {
	return math.Abs(f-1) <= 1e-12
}

// Format renders a factor as the shortest decimal that round-trips.
func Format(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
