package quality

import (
	"fmt"
	"regexp"
	"sort"
	"time"
)

// Condition is a pure predicate over named fields of a Record.
//
// Conditions form a small closed set of typed primitives (comparison,
// range membership, pattern match, boolean combinators and conditional
// implication) assembled into a tree at ruleset load time. There is no
// embedded expression language and no runtime code evaluation.
type Condition interface {
	// Eval evaluates the condition against the record. Eval may assume
	// every field returned by Fields is present; callers that cannot
	// guarantee that must check first (see ValidateConsistency).
	Eval(rec Record) bool

	// Fields returns the names of all record fields the condition reads.
	Fields() []string
}

// Op is a comparison operator on a single field.
type Op string

const (
	OpEq Op = "eq"
	OpNe Op = "ne"
	OpLt Op = "lt"
	OpLe Op = "le"
	OpGt Op = "gt"
	OpGe Op = "ge"
)

func validOp(op Op) bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return true
	}
	return false
}

// Pattern is a compiled, anchored regular expression that remembers its
// source text for error messages.
type Pattern struct {
	Source string
	re     *regexp.Regexp
}

// CompilePattern compiles src as a full-match pattern.
func CompilePattern(src string) (*Pattern, error) {
	re, err := regexp.Compile("^(?:" + src + ")$")
	if err != nil {
		return nil, err
	}
	return &Pattern{Source: src, re: re}, nil
}

// MatchString reports whether s matches the entire pattern.
func (p *Pattern) MatchString(s string) bool { return p.re.MatchString(s) }

// Comparison compares one field against a literal.
type Comparison struct {
	Field string
	Op    Op
	Value any // string, float64 or date string in DateLayout
}

func (c Comparison) Fields() []string { return []string{c.Field} }

func (c Comparison) Eval(rec Record) bool {
	ord, ok := compareValues(rec[c.Field], c.Value)
	if !ok {
		// Incomparable values (e.g. string vs number) never satisfy an
		// ordering; equality is false, inequality true.
		return c.Op == OpNe
	}
	switch c.Op {
	case OpEq:
		return ord == 0
	case OpNe:
		return ord != 0
	case OpLt:
		return ord < 0
	case OpLe:
		return ord <= 0
	case OpGt:
		return ord > 0
	case OpGe:
		return ord >= 0
	}
	return false
}

// Between tests inclusive numeric range membership on one field.
type Between struct {
	Field string
	Min   float64
	Max   float64
}

func (b Between) Fields() []string { return []string{b.Field} }

func (b Between) Eval(rec Record) bool {
	v, ok := asFloat(rec[b.Field])
	if !ok {
		return false
	}
	return v >= b.Min && v <= b.Max
}

// Matches tests a field's string form against an anchored pattern.
type Matches struct {
	Field   string
	Pattern *Pattern
}

func (m Matches) Fields() []string { return []string{m.Field} }

func (m Matches) Eval(rec Record) bool {
	return m.Pattern.MatchString(stringify(rec[m.Field]))
}

// All is satisfied when every child condition is satisfied.
type All []Condition

func (a All) Fields() []string { return unionFields([]Condition(a)) }

func (a All) Eval(rec Record) bool {
	for _, c := range a {
		if !c.Eval(rec) {
			return false
		}
	}
	return true
}

// Any is satisfied when at least one child condition is satisfied.
type Any []Condition

func (a Any) Fields() []string { return unionFields([]Condition(a)) }

func (a Any) Eval(rec Record) bool {
	for _, c := range a {
		if c.Eval(rec) {
			return true
		}
	}
	return false
}

// Not negates a condition.
type Not struct {
	Cond Condition
}

func (n Not) Fields() []string { return n.Cond.Fields() }

func (n Not) Eval(rec Record) bool { return !n.Cond.Eval(rec) }

// Implies is a conditional implication: when When holds, Then must hold.
// Records where When does not hold satisfy the rule vacuously.
type Implies struct {
	When Condition
	Then Condition
}

func (i Implies) Fields() []string { return unionFields([]Condition{i.When, i.Then}) }

func (i Implies) Eval(rec Record) bool {
	if !i.When.Eval(rec) {
		return true
	}
	return i.Then.Eval(rec)
}

func unionFields(conds []Condition) []string {
	seen := make(map[string]bool)
	var fields []string
	for _, c := range conds {
		for _, f := range c.Fields() {
			if !seen[f] {
				seen[f] = true
				fields = append(fields, f)
			}
		}
	}
	sort.Strings(fields)
	return fields
}

// compareValues orders a record value against a rule literal.
// Returns ok=false when the two are not comparable.
func compareValues(recVal, lit any) (int, bool) {
	if rf, ok := asFloat(recVal); ok {
		if lf, ok := asFloat(lit); ok {
			switch {
			case rf < lf:
				return -1, true
			case rf > lf:
				return 1, true
			}
			return 0, true
		}
		return 0, false
	}

	if rt, ok := recVal.(time.Time); ok {
		if lt, ok := asTime(lit); ok {
			switch {
			case rt.Before(lt):
				return -1, true
			case rt.After(lt):
				return 1, true
			}
			return 0, true
		}
		return 0, false
	}

	if rs, ok := recVal.(string); ok {
		if ls, ok := lit.(string); ok {
			switch {
			case rs < ls:
				return -1, true
			case rs > ls:
				return 1, true
			}
			return 0, true
		}
		return 0, false
	}

	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(DateLayout, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	}
	return time.Time{}, false
}

func stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case time.Time:
		return s.Format(DateLayout)
	case float64:
		// Trim the trailing .0 JSON gives whole numbers so patterns like
		// ^\d{6}$ behave the same for "541511" and 541511.
		if s == float64(int64(s)) {
			return fmt.Sprintf("%d", int64(s))
		}
		return fmt.Sprintf("%v", s)
	default:
		return fmt.Sprintf("%v", v)
	}
}
