package quality

import "time"

// FieldType is the declared type of a required field.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeInteger FieldType = "integer"
	TypeDecimal FieldType = "decimal"
	TypeDate    FieldType = "date"
)

// Severity classifies how serious a failed check is.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// DateLayout is the wire format for date-typed field values and literals.
const DateLayout = "2006-01-02"

// Range is an inclusive bound on a numeric or date field.
// Exactly one of the numeric or date pair is populated, matching the
// field's declared type; the loader enforces this at load time.
type Range struct {
	Min     float64
	Max     float64
	MinDate time.Time
	MaxDate time.Time
}

// FieldRule declares the constraints on a single submission field.
type FieldRule struct {
	Field       string
	Description string
	Category    string // grouping label from the ruleset, cosmetic only
	Nullable    bool
	Type        FieldType
	Pattern     *Pattern // optional, full-match
	Range       *Range   // optional, numeric/date fields only
	MinLength   int      // optional, string fields only; 0 = unset
	MaxLength   int      // optional, string fields only; 0 = unset
}

// ConsistencyRule is a declarative cross-field business check.
type ConsistencyRule struct {
	RuleID       string
	Name         string
	Severity     Severity
	Condition    Condition
	ErrorMessage string // template with ${field} interpolation
}

// ThresholdDefinition declares target and minimum values for a quality
// metric, plus the named formula used to calculate it.
type ThresholdDefinition struct {
	Metric      string
	Target      float64
	Minimum     float64
	Calculation string
}

// RuleSet is the full declarative ruleset governing validation.
// A RuleSet is immutable once loaded; the Engine publishes replacements
// with an atomic pointer swap.
type RuleSet struct {
	Version           string
	RequiredFields    []FieldRule
	ConsistencyChecks []ConsistencyRule
	QualityThresholds []ThresholdDefinition
}

// ThresholdFor returns the threshold definition for a metric, or nil.
func (rs *RuleSet) ThresholdFor(metric string) *ThresholdDefinition {
	for i := range rs.QualityThresholds {
		if rs.QualityThresholds[i].Metric == metric {
			return &rs.QualityThresholds[i]
		}
	}
	return nil
}

// Record is a flat submission record: field name to typed value.
// Accepted value types are string, int, int64, float64 and time.Time.
// A nil value and a missing key are both treated as absent.
// The engine never mutates a Record.
type Record map[string]any

// Has reports whether the field is present with a non-nil value.
func (r Record) Has(field string) bool {
	v, ok := r[field]
	return ok && v != nil
}

// ValidationResult is the outcome of one field rule or consistency rule.
// Failures are ordinary data, never errors.
type ValidationResult struct {
	RuleID    string   `json:"ruleId"`
	RuleName  string   `json:"ruleName"`
	FieldName string   `json:"fieldName,omitempty"`
	Passed    bool     `json:"passed"`
	Severity  Severity `json:"severity"`
	Expected  string   `json:"expected,omitempty"`
	Actual    string   `json:"actual,omitempty"`
	Message   string   `json:"message,omitempty"`
}

// ValidationReport is the full outcome of evaluating one submission.
// Field results come first, in ruleset declaration order, followed by
// consistency results in declaration order. The report is owned by the
// caller; the engine keeps no reference to it.
type ValidationReport struct {
	ReportID          string             `json:"reportId"`
	SubmissionID      string             `json:"submissionId"`
	RulesetVersion    string             `json:"rulesetVersion"`
	Results           []ValidationResult `json:"results"`
	CompletenessScore float64            `json:"completenessScore"`
	ConsistencyScore  float64            `json:"consistencyScore"`
	OverallScore      float64            `json:"overallScore"`
	Timestamp         time.Time          `json:"timestamp"`
}

// FailedChecks counts results that did not pass.
func (r *ValidationReport) FailedChecks() int {
	n := 0
	for i := range r.Results {
		if !r.Results[i].Passed {
			n++
		}
	}
	return n
}
