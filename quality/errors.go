package quality

import (
	"errors"
	"fmt"
)

// ErrNoRuleSet is returned by Engine.Evaluate when no ruleset has been
// published yet.
var ErrNoRuleSet = errors.New("no ruleset loaded")

// MalformedRuleSetError reports a ruleset whose structure is missing or
// mistyped: unknown field types, bad operators, invalid regexps, ranges on
// non-numeric fields, and so on. A ruleset that fails to load must not be
// published.
type MalformedRuleSetError struct {
	Reason string
	Err    error
}

func (e *MalformedRuleSetError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed ruleset: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed ruleset: %s", e.Reason)
}

func (e *MalformedRuleSetError) Unwrap() error { return e.Err }

// DuplicateRuleError reports a repeated field name or rule ID within a
// single ruleset.
type DuplicateRuleError struct {
	Kind string // "field" or "ruleId"
	Key  string
}

func (e *DuplicateRuleError) Error() string {
	return fmt.Sprintf("duplicate %s %q in ruleset", e.Kind, e.Key)
}

func malformed(format string, args ...any) error {
	return &MalformedRuleSetError{Reason: fmt.Sprintf(format, args...)}
}

func malformedErr(err error, format string, args ...any) error {
	return &MalformedRuleSetError{Reason: fmt.Sprintf(format, args...), Err: err}
}
