package quality

// Scores holds the three aggregate quality metrics for one report.
type Scores struct {
	Completeness float64
	Consistency  float64
	Overall      float64
}

// Formula combines the completeness and consistency scores into an overall
// score. Formulas are a named strategy looked up from the ruleset's
// threshold definitions, so the combination rule ships with the ruleset
// rather than the binary.
type Formula func(completeness, consistency float64) float64

// Named overall-score formulas. "mean" is the default; "weighted_60_40"
// matches the original quality contract (completeness 0.6, consistency 0.4).
const (
	FormulaMean     = "mean"
	FormulaWeighted = "weighted_60_40"
)

var formulas = map[string]Formula{
	FormulaMean: func(comp, cons float64) float64 {
		return (comp + cons) / 2
	},
	FormulaWeighted: func(comp, cons float64) float64 {
		return comp*0.6 + cons*0.4
	},
}

// LookupFormula returns the named formula, or false when unknown.
func LookupFormula(name string) (Formula, bool) {
	f, ok := formulas[name]
	return f, ok
}

// ComputeScores aggregates field and consistency results into scores.
//
// Completeness counts only missing-required failures against the record:
// a present field that fails a type, pattern, range or length check is
// still present, so it still counts toward completeness. Consistency
// counts skipped rules as passed. An empty denominator scores 1.0 — with
// no rules to fail, perfect is the defined default. All scores are clamped
// to [0, 1] and are never NaN.
func ComputeScores(fieldResults, consistencyResults []ValidationResult, thresholds []ThresholdDefinition) Scores {
	completeness := 1.0
	if len(fieldResults) > 0 {
		present := 0
		for _, res := range fieldResults {
			if !isRequiredMissing(res) {
				present++
			}
		}
		completeness = float64(present) / float64(len(fieldResults))
	}

	consistency := 1.0
	if len(consistencyResults) > 0 {
		passed := 0
		for _, res := range consistencyResults {
			if res.Passed {
				passed++
			}
		}
		consistency = float64(passed) / float64(len(consistencyResults))
	}

	completeness = clamp01(completeness)
	consistency = clamp01(consistency)

	formula := formulas[FormulaMean]
	for _, th := range thresholds {
		if th.Metric != "overall_quality_score" || th.Calculation == "" {
			continue
		}
		if f, ok := LookupFormula(th.Calculation); ok {
			formula = f
		}
	}

	return Scores{
		Completeness: completeness,
		Consistency:  consistency,
		Overall:      clamp01(formula(completeness, consistency)),
	}
}

func clamp01(f float64) float64 {
	switch {
	case f != f: // NaN
		return 1.0
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
