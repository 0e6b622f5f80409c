package pipeline

import (
	"github.com/acordlabs/submissionqc/quality"
)

// Anomaly flags an unusual pattern in a submission. Anomalies are
// advisory; they never change validation scores.
type Anomaly struct {
	Type              string  `json:"type"`
	Severity          string  `json:"severity"`
	Confidence        float64 `json:"confidence"`
	Explanation       string  `json:"explanation"`
	RecommendedAction string  `json:"recommendedAction"`
}

// AnomalyDetector scores a validated record for unusual patterns.
type AnomalyDetector interface {
	Detect(rec quality.Record, report *quality.ValidationReport) ([]Anomaly, error)
}

// DefaultConfidenceThreshold filters out low-confidence anomalies.
const DefaultConfidenceThreshold = 0.7

// HeuristicDetector flags submissions whose numeric profile falls into
// extreme ranges, plus unusually low quality scores.
type HeuristicDetector struct {
	// ConfidenceThreshold drops anomalies scored below it. Zero means
	// DefaultConfidenceThreshold.
	ConfidenceThreshold float64
}

// NewHeuristicDetector creates a detector with the default confidence
// threshold.
func NewHeuristicDetector() *HeuristicDetector {
	return &HeuristicDetector{}
}

// outlierCheck is one numeric feature range check. Values outside
// (low, high) are flagged.
type outlierCheck struct {
	field      string
	low, high  float64
	confidence float64
}

var outlierChecks = []outlierCheck{
	{field: "annual_revenue", low: 50_000, high: 100_000_000, confidence: 0.8},
	{field: "employee_count", low: 2, high: 1_000, confidence: 0.75},
	{field: "years_in_business", low: 1, high: 100, confidence: 0.7},
}

// Detect runs the range checks over the record and flags low overall
// quality. Detection never fails; the error return satisfies the
// interface for remote detectors.
func (d *HeuristicDetector) Detect(rec quality.Record, report *quality.ValidationReport) ([]Anomaly, error) {
	threshold := d.ConfidenceThreshold
	if threshold == 0 {
		threshold = DefaultConfidenceThreshold
	}

	var anomalies []Anomaly
	for _, check := range outlierChecks {
		value, ok := numericField(rec, check.field)
		if !ok {
			continue
		}
		if value >= check.low && value <= check.high {
			continue
		}
		anomalies = append(anomalies, Anomaly{
			Type:              "statistical_outlier_" + check.field,
			Severity:          severityFor(check.confidence),
			Confidence:        check.confidence,
			Explanation:       check.field + " value is statistically unusual compared to similar businesses",
			RecommendedAction: "Verify " + check.field + " data with applicant",
		})
	}

	if report != nil && report.OverallScore < 0.5 {
		anomalies = append(anomalies, Anomaly{
			Type:              "low_quality_score",
			Severity:          severityFor(0.9),
			Confidence:        0.9,
			Explanation:       "Overall quality score is unusually low",
			RecommendedAction: "Review submission for data quality issues",
		})
	}

	filtered := anomalies[:0]
	for _, a := range anomalies {
		if a.Confidence >= threshold {
			filtered = append(filtered, a)
		}
	}
	return filtered, nil
}

func severityFor(confidence float64) string {
	switch {
	case confidence >= 0.9:
		return "critical"
	case confidence >= 0.8:
		return "high"
	case confidence >= 0.7:
		return "medium"
	default:
		return "low"
	}
}

func numericField(rec quality.Record, field string) (float64, bool) {
	switch v := rec[field].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
