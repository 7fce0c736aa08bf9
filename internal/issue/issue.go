// Package issue defines the diagnostics produced by validation and analysis.
package issue

import (
	"errors"
	"fmt"
)

// Cause names the kind of model item a diagnostic is about.
type Cause string

const (
	CauseAnalyser   Cause = "analyser"
	CauseModel      Cause = "model"
	CauseComponent  Cause = "component"
	CauseVariable   Cause = "variable"
	CauseUnits      Cause = "units"
	CauseMathML     Cause = "mathml"
	CauseConnection Cause = "connection"
	CauseMarkup     Cause = "markup"
)

// Level is the severity of a diagnostic.
type Level uint8

const (
	LevelError Level = iota
	LevelWarning
	LevelMessage
)

func (l Level) String() string {
	switch l {
	case LevelError:
		return "error"
	case LevelWarning:
		return "warning"
	case LevelMessage:
		return "message"
	}
	return fmt.Sprintf("level(%d)", uint8(l))
}

// Issue is a single diagnostic.
type Issue struct {
	Cause       Cause
	Level       Level
	Description string
}

// New returns an error-level issue.
func New(cause Cause, description string) Issue {
	return Issue{Cause: cause, Level: LevelError, Description: description}
}

// Newf returns an error-level issue with a formatted description.
func Newf(cause Cause, format string, args ...any) Issue {
	return New(cause, fmt.Sprintf(format, args...))
}

func (i Issue) Error() string {
	if i.Cause == "" {
		return i.Description
	}
	return fmt.Sprintf("[%s] %s", i.Cause, i.Description)
}

// List is an ordered collection of issues. A non-empty List is an error.
type List []Issue

// Add appends i to l.
func (l *List) Add(i Issue) {
	*l = append(*l, i)
}

// Addf appends an error-level issue with a formatted description.
func (l *List) Addf(cause Cause, format string, args ...any) {
	l.Add(Newf(cause, format, args...))
}

// ErrorCount returns the number of error-level issues in l.
func (l List) ErrorCount() int {
	n := 0
	for _, i := range l {
		if i.Level == LevelError {
			n++
		}
	}
	return n
}

// Err returns l as an error, or nil when l holds no errors.
func (l List) Err() error {
	if l.ErrorCount() == 0 {
		return nil
	}
	return l
}

func (l List) Error() string {
	switch len(l) {
	case 0:
		return "no issues"
	case 1:
		return l[0].Error()
	}
	return fmt.Sprintf("%s (and %d more)", l[0].Error(), len(l)-1)
}

// AsList extracts a List from err.
func AsList(err error) (List, bool) {
	if err == nil {
		return nil, false
	}
	var l List
	if errors.As(err, &l) {
		return l, true
	}
	var i Issue
	if errors.As(err, &i) {
		return List{i}, true
	}
	return nil, false
}
