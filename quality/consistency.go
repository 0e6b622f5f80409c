package quality

import (
	"regexp"
	"strings"
)

const msgSkippedInsufficientData = "skipped: insufficient data"

// ValidateConsistency evaluates every consistency rule independently
// against the full record, one result per rule, in declaration order.
//
// A rule whose condition references an absent field is reported as passed
// with a skip message: flagging missing data is the field rule's job, and
// a missing field must never surface as a business-rule violation.
func ValidateConsistency(rules []ConsistencyRule, rec Record) []ValidationResult {
	results := make([]ValidationResult, 0, len(rules))
	for _, rule := range rules {
		results = append(results, validateConsistencyRule(rule, rec))
	}
	return results
}

func validateConsistencyRule(rule ConsistencyRule, rec Record) ValidationResult {
	res := ValidationResult{
		RuleID:    rule.RuleID,
		RuleName:  rule.Name,
		FieldName: strings.Join(rule.Condition.Fields(), ", "),
		Severity:  rule.Severity,
	}

	for _, field := range rule.Condition.Fields() {
		if !rec.Has(field) {
			res.Passed = true
			res.Message = msgSkippedInsufficientData
			return res
		}
	}

	res.Passed = rule.Condition.Eval(rec)
	if !res.Passed {
		res.Message = interpolate(rule.ErrorMessage, rec)
	}
	return res
}

var placeholderRe = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// interpolate substitutes ${field} placeholders in an error message
// template with the record's values. Unknown fields render as "null".
func interpolate(template string, rec Record) string {
	return placeholderRe.ReplaceAllStringFunc(template, func(m string) string {
		field := m[2 : len(m)-1]
		if !rec.Has(field) {
			return "null"
		}
		return stringify(rec[field])
	})
}
