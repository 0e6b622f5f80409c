package quality

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Engine evaluates submission records against the currently published
// ruleset.
//
// The ruleset is held behind an atomic pointer: Evaluate reads one
// consistent snapshot for the whole call, Reload publishes a replacement
// in a single swap, and concurrent callers never observe a partially
// updated ruleset. Evaluation itself is pure — no I/O, no shared mutable
// state — so any number of goroutines may call Evaluate at once.
type Engine struct {
	ruleset atomic.Pointer[RuleSet]
}

// NewEngine creates an engine. rs may be nil; Evaluate returns
// ErrNoRuleSet until a ruleset is published via Reload.
func NewEngine(rs *RuleSet) *Engine {
	en := &Engine{}
	if rs != nil {
		en.ruleset.Store(rs)
	}
	return en
}

// Reload atomically publishes a new ruleset. In-flight evaluations keep
// the snapshot they started with.
func (en *Engine) Reload(rs *RuleSet) {
	en.ruleset.Store(rs)
}

// RuleSet returns the currently published ruleset, or nil.
func (en *Engine) RuleSet() *RuleSet {
	return en.ruleset.Load()
}

// Evaluate runs every field rule and every consistency rule against the
// record and assembles a fresh ValidationReport: field results first,
// consistency results second, both in ruleset declaration order, followed
// by the aggregate scores and a call-time timestamp.
//
// Data-quality problems are output, not errors: a failing field or rule
// becomes a ValidationResult with Passed=false and never aborts the rest
// of the evaluation. The only error Evaluate returns is ErrNoRuleSet.
func (en *Engine) Evaluate(rec Record) (*ValidationReport, error) {
	rs := en.ruleset.Load()
	if rs == nil {
		return nil, ErrNoRuleSet
	}

	fieldResults := ValidateFields(rs.RequiredFields, rec)
	consistencyResults := ValidateConsistency(rs.ConsistencyChecks, rec)
	scores := ComputeScores(fieldResults, consistencyResults, rs.QualityThresholds)

	results := make([]ValidationResult, 0, len(fieldResults)+len(consistencyResults))
	results = append(results, fieldResults...)
	results = append(results, consistencyResults...)

	return &ValidationReport{
		ReportID:          uuid.NewString(),
		SubmissionID:      submissionID(rec),
		RulesetVersion:    rs.Version,
		Results:           results,
		CompletenessScore: scores.Completeness,
		ConsistencyScore:  scores.Consistency,
		OverallScore:      scores.Overall,
		Timestamp:         time.Now(),
	}, nil
}

func submissionID(rec Record) string {
	if id, ok := rec["submission_id"].(string); ok {
		return id
	}
	return ""
}
