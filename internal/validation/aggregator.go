// Package validation holds the per-language validation model and the
// aggregation rule that reduces it to the single status shown in the
// workspace chrome.
package validation

import (
	"encoding/json"
	"fmt"

	"github.com/conneroisu/popcode/internal/project"
)

// State is a validation status. The zero value is Passed.
type State int

const (
	Passed State = iota
	Validating
	Failed
)

// String returns the wire name of the state.
func (s State) String() string {
	switch s {
	case Passed:
		return "passed"
	case Validating:
		return "validating"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the state by name.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a state name.
func (s *State) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseState(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseState converts a wire name to a State.
func ParseState(name string) (State, error) {
	switch name {
	case "passed":
		return Passed, nil
	case "validating":
		return Validating, nil
	case "failed":
		return Failed, nil
	default:
		return Passed, fmt.Errorf("unknown validation state %q", name)
	}
}

// ErrorItem is one diagnostic at a 1-based line and column.
type ErrorItem struct {
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Message string `json:"message"`
}

// Result is one validator's output for one language.
type Result struct {
	State State       `json:"state"`
	Items []ErrorItem `json:"items"`
}

// ResultFor builds a Result from a list of errors.
func ResultFor(items []ErrorItem) Result {
	if len(items) == 0 {
		return Result{State: Passed, Items: []ErrorItem{}}
	}
	return Result{State: Failed, Items: items}
}

// Aggregate reduces per-language states to one overall status. Failures are
// reported as Validating while the user is typing so errors do not flash
// mid-edit.
func Aggregate(states map[project.Language]State, isUserTyping bool) State {
	anyValidating := false
	for _, state := range states {
		switch state {
		case Failed:
			if isUserTyping {
				return Validating
			}
			return Failed
		case Validating:
			anyValidating = true
		}
	}

	if anyValidating {
		return Validating
	}
	return Passed
}

// StatesOf extracts the state of every result.
func StatesOf(results map[project.Language]Result) map[project.Language]State {
	states := make(map[project.Language]State, len(results))
	for lang, result := range results {
		states[lang] = result.State
	}
	return states
}
