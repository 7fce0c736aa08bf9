// Package toon encodes analysis reports in TOON (Token-Oriented Object
// Notation).
package toon

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/phobologic/cellanalyser/internal/report"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// Encode converts a report into TOON format.
func Encode(r *report.Report) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("path: %s", encodeValue(r.Path)))
	parts = append(parts, fmt.Sprintf("model: %s", encodeValue(r.Model)))
	parts = append(parts, fmt.Sprintf("type: %s", encodeValue(r.Type)))
	if r.VOI != "" {
		parts = append(parts, fmt.Sprintf("voi: %s", encodeValue(r.VOI)))
	}

	variableColumns := []string{"index", "component", "name", "type", "units", "initial"}
	parts = append(parts, formatTabular("states", variableColumns, variableRows(r.States)))
	parts = append(parts, formatTabular("variables", variableColumns, variableRows(r.Variables)))

	var eqRows [][]any
	for _, e := range r.Equations {
		eqRows = append(eqRows, []any{
			e.Order,
			e.Type,
			e.Component,
			e.Variable,
			e.StateRateBased,
			e.Rank,
			e.Expression,
		})
	}
	parts = append(parts, formatTabular("equations",
		[]string{"order", "type", "component", "variable", "state_rate_based", "rank", "expression"}, eqRows))

	var depRows [][]any
	for _, d := range r.Dependencies {
		depRows = append(depRows, []any{d.Source, d.Target})
	}
	parts = append(parts, formatTabular("dependencies", []string{"source", "target"}, depRows))

	var issueRows [][]any
	for _, i := range r.Issues {
		issueRows = append(issueRows, []any{i.Level, i.Cause, i.Description})
	}
	parts = append(parts, formatTabular("issues", []string{"level", "cause", "description"}, issueRows))

	if len(r.Needs) > 0 {
		encoded := make([]string, len(r.Needs))
		for i, n := range r.Needs {
			encoded[i] = encodeValue(n)
		}
		parts = append(parts, fmt.Sprintf("needs[%d]: %s", len(r.Needs), strings.Join(encoded, ",")))
	}

	if len(r.Trees) > 0 {
		var treeRows [][]any
		for _, t := range r.Trees {
			treeRows = append(treeRows, []any{t.Variable, strings.TrimRight(t.Tree, "\n")})
		}
		parts = append(parts, formatTabular("trees", []string{"variable", "tree"}, treeRows))
	}

	return strings.Join(parts, "\n")
}

func variableRows(vs []report.VariableRow) [][]any {
	var rows [][]any
	for _, v := range vs {
		rows = append(rows, []any{
			v.Index,
			v.Component,
			v.Name,
			v.Type,
			v.Units,
			v.Initial,
		})
	}
	return rows
}

func formatTabular(name string, columns []string, rows [][]any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeCell(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

// encodeCell renders numbers and booleans natively and strings as values.
func encodeCell(cell any) string {
	switch v := cell.(type) {
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', 4, 64)
	case string:
		return encodeValue(v)
	}
	return encodeValue(fmt.Sprint(cell))
}

func encodeValue(value string) string {
	switch {
	case value == "":
		return `""`
	case value != strings.TrimSpace(value), strings.ContainsAny(value, "\n\r\t"):
		return quote(value)
	}
	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}
	if looksNumeric.MatchString(value) {
		return value
	}
	if needsQuoting.MatchString(value) || strings.HasPrefix(value, "-") {
		return quote(value)
	}
	return value
}

func quote(value string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "\t", `\t`)
	return `"` + r.Replace(value) + `"`
}
