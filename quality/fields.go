package quality

import (
	"fmt"
	"math"
	"strings"
)

// Message fragments shared with the scoring pass. Completeness only counts
// the missing-required failure against a record, so the two must agree on
// how that failure is identified.
const msgRequiredMissing = "required field missing"

// ValidateFields evaluates every field rule independently against the
// record, one result per rule, in ruleset declaration order. A failing
// field never stops evaluation of the remaining fields.
func ValidateFields(rules []FieldRule, rec Record) []ValidationResult {
	results := make([]ValidationResult, 0, len(rules))
	for _, rule := range rules {
		results = append(results, validateField(rule, rec))
	}
	return results
}

func validateField(rule FieldRule, rec Record) ValidationResult {
	res := ValidationResult{
		RuleID:    fieldRuleID(rule.Field),
		RuleName:  fieldRuleName(rule),
		FieldName: rule.Field,
		Severity:  SeverityInfo,
	}

	if !rec.Has(rule.Field) {
		if rule.Nullable {
			res.Passed = true
			res.Actual = "null"
			return res
		}
		res.Passed = false
		res.Severity = SeverityError
		res.Expected = "not null"
		res.Actual = "null"
		res.Message = fmt.Sprintf("%s: %s", rule.Field, msgRequiredMissing)
		return res
	}

	value := rec[rule.Field]
	res.Actual = stringify(value)

	if !typeMatches(rule.Type, value) {
		res.Passed = false
		res.Severity = SeverityError
		res.Expected = string(rule.Type)
		res.Message = fmt.Sprintf("%s: type mismatch, expected %s", rule.Field, rule.Type)
		return res
	}

	if rule.Pattern != nil && !rule.Pattern.MatchString(stringify(value)) {
		res.Passed = false
		res.Severity = SeverityError
		res.Expected = "pattern " + rule.Pattern.Source
		res.Message = fmt.Sprintf("%s: pattern mismatch", rule.Field)
		return res
	}

	if rule.Range != nil {
		if ok, expected := inRange(rule, value); !ok {
			res.Passed = false
			res.Severity = SeverityError
			res.Expected = expected
			res.Message = fmt.Sprintf("%s: out of range %s", rule.Field, expected)
			return res
		}
	}

	if rule.Type == TypeString && (rule.MinLength > 0 || rule.MaxLength > 0) {
		length := len(stringify(value))
		min, max := rule.MinLength, rule.MaxLength
		if max == 0 {
			max = math.MaxInt
		}
		if length < min || length > max {
			res.Passed = false
			res.Severity = SeverityError
			res.Expected = lengthBounds(rule.MinLength, rule.MaxLength)
			res.Actual = fmt.Sprintf("length %d", length)
			res.Message = fmt.Sprintf("%s: length %d out of range %s",
				rule.Field, length, lengthBounds(rule.MinLength, rule.MaxLength))
			return res
		}
	}

	res.Passed = true
	return res
}

// typeMatches checks the record value against the declared field type.
// JSON decoding hands numbers over as float64, so integer accepts any
// whole-valued number; date accepts a time.Time or a DateLayout string.
func typeMatches(ft FieldType, v any) bool {
	switch ft {
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeInteger:
		f, ok := asFloat(v)
		return ok && f == math.Trunc(f)
	case TypeDecimal:
		_, ok := asFloat(v)
		return ok
	case TypeDate:
		_, ok := asTime(v)
		return ok
	}
	return false
}

func inRange(rule FieldRule, v any) (bool, string) {
	if rule.Type == TypeDate {
		expected := fmt.Sprintf("[%s, %s]",
			rule.Range.MinDate.Format(DateLayout), rule.Range.MaxDate.Format(DateLayout))
		t, ok := asTime(v)
		if !ok {
			return false, expected
		}
		return !t.Before(rule.Range.MinDate) && !t.After(rule.Range.MaxDate), expected
	}

	expected := fmt.Sprintf("[%s, %s]", trimFloat(rule.Range.Min), trimFloat(rule.Range.Max))
	f, ok := asFloat(v)
	if !ok {
		return false, expected
	}
	return f >= rule.Range.Min && f <= rule.Range.Max, expected
}

func lengthBounds(min, max int) string {
	if max == 0 {
		return fmt.Sprintf("[%d, +inf)", min)
	}
	return fmt.Sprintf("[%d, %d]", min, max)
}

func trimFloat(f float64) string {
	if f == math.Trunc(f) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%v", f)
}

func fieldRuleID(field string) string {
	return "REQ-" + strings.ToUpper(field)
}

func fieldRuleName(rule FieldRule) string {
	if rule.Description != "" {
		return "Required Field: " + rule.Description
	}
	return "Required Field: " + rule.Field
}

// isRequiredMissing identifies the one failure kind that counts against
// the completeness score.
func isRequiredMissing(res ValidationResult) bool {
	return !res.Passed && strings.Contains(res.Message, msgRequiredMissing)
}
