package quality

import (
	"math"
	"testing"
)

func passResult() ValidationResult { return ValidationResult{Passed: true} }

func missingResult(field string) ValidationResult {
	return ValidationResult{
		FieldName: field,
		Passed:    false,
		Severity:  SeverityError,
		Message:   field + ": required field missing",
	}
}

func qualityFailResult(field string) ValidationResult {
	return ValidationResult{
		FieldName: field,
		Passed:    false,
		Severity:  SeverityError,
		Message:   field + ": out of range [0, 1]",
	}
}

// TestComputeScoresCompleteness verifies that only missing-required
// failures count against completeness: a present field failing a quality
// check is still present.
func TestComputeScoresCompleteness(t *testing.T) {
	fieldResults := []ValidationResult{
		passResult(),
		missingResult("naics_code"),
		qualityFailResult("annual_revenue"),
		passResult(),
	}

	scores := ComputeScores(fieldResults, nil, nil)
	if scores.Completeness != 0.75 {
		t.Errorf("completeness = %v, want 0.75 (one of four fields missing)", scores.Completeness)
	}
}

// TestComputeScoresConsistencySkippedCountsAsPassed verifies skip results
// count toward the consistency score.
func TestComputeScoresConsistencySkippedCountsAsPassed(t *testing.T) {
	consistencyResults := []ValidationResult{
		{Passed: true, Message: "skipped: insufficient data"},
		{Passed: false, Severity: SeverityWarning, Message: "violated"},
	}

	scores := ComputeScores(nil, consistencyResults, nil)
	if scores.Consistency != 0.5 {
		t.Errorf("consistency = %v, want 0.5", scores.Consistency)
	}
}

// TestComputeScoresEmptyRuleSets verifies the zero-denominator contract:
// with no rules to fail, every score is a perfect 1.0.
func TestComputeScoresEmptyRuleSets(t *testing.T) {
	scores := ComputeScores(nil, nil, nil)

	if scores.Completeness != 1.0 || scores.Consistency != 1.0 || scores.Overall != 1.0 {
		t.Errorf("empty ruleset scores = %+v, want all 1.0", scores)
	}
	for _, s := range []float64{scores.Completeness, scores.Consistency, scores.Overall} {
		if math.IsNaN(s) {
			t.Fatal("no score may be NaN")
		}
	}
}

// TestComputeScoresDefaultFormula verifies the arithmetic-mean default.
func TestComputeScoresDefaultFormula(t *testing.T) {
	fieldResults := []ValidationResult{passResult()}                    // completeness 1.0
	consistencyResults := []ValidationResult{{Passed: false}}           // consistency 0.0

	scores := ComputeScores(fieldResults, consistencyResults, nil)
	if scores.Overall != 0.5 {
		t.Errorf("overall = %v, want mean 0.5", scores.Overall)
	}
}

// TestComputeScoresNamedFormula verifies that the ruleset's threshold
// definitions select the overall formula as a named strategy.
func TestComputeScoresNamedFormula(t *testing.T) {
	thresholds := []ThresholdDefinition{
		{Metric: "completeness_score", Target: 0.95, Minimum: 0.8},
		{Metric: "overall_quality_score", Target: 0.9, Minimum: 0.75, Calculation: FormulaWeighted},
	}
	fieldResults := []ValidationResult{passResult()}          // completeness 1.0
	consistencyResults := []ValidationResult{{Passed: false}} // consistency 0.0

	scores := ComputeScores(fieldResults, consistencyResults, thresholds)
	want := 1.0*0.6 + 0.0*0.4
	if scores.Overall != want {
		t.Errorf("overall = %v, want weighted %v", scores.Overall, want)
	}
}

// TestComputeScoresBounds verifies every score stays within [0, 1].
func TestComputeScoresBounds(t *testing.T) {
	allMissing := []ValidationResult{missingResult("a"), missingResult("b")}
	allFailed := []ValidationResult{{Passed: false}, {Passed: false}}

	scores := ComputeScores(allMissing, allFailed, nil)
	for name, s := range map[string]float64{
		"completeness": scores.Completeness,
		"consistency":  scores.Consistency,
		"overall":      scores.Overall,
	} {
		if s < 0 || s > 1 || math.IsNaN(s) {
			t.Errorf("%s score %v outside [0, 1]", name, s)
		}
	}
	if scores.Completeness != 0 {
		t.Errorf("completeness = %v, want 0 when every field is missing", scores.Completeness)
	}
}

// TestLookupFormula verifies the registry rejects unknown names.
func TestLookupFormula(t *testing.T) {
	if _, ok := LookupFormula(FormulaMean); !ok {
		t.Error("mean formula should be registered")
	}
	if _, ok := LookupFormula(FormulaWeighted); !ok {
		t.Error("weighted formula should be registered")
	}
	if _, ok := LookupFormula("geometric"); ok {
		t.Error("unknown formula name should not resolve")
	}
}
