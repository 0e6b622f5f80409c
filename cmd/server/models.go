package main

import (
	"github.com/acordlabs/submissionqc/quality"
)

// RulesetSummaryResponse describes the currently loaded ruleset without
// echoing the full rule definitions back.
type RulesetSummaryResponse struct {
	Version           string              `json:"version"`
	Path              string              `json:"path"`
	FieldRules        int                 `json:"fieldRules"`
	ConsistencyChecks []string            `json:"consistencyChecks"`
	Thresholds        []ThresholdResponse `json:"thresholds"`
}

// ThresholdResponse is one quality threshold in the summary.
type ThresholdResponse struct {
	Metric  string  `json:"metric"`
	Target  float64 `json:"target"`
	Minimum float64 `json:"minimum"`
}

func rulesetSummary(rs *quality.RuleSet, path string) RulesetSummaryResponse {
	checks := make([]string, len(rs.ConsistencyChecks))
	for i, c := range rs.ConsistencyChecks {
		checks[i] = c.RuleID
	}
	thresholds := make([]ThresholdResponse, len(rs.QualityThresholds))
	for i, t := range rs.QualityThresholds {
		thresholds[i] = ThresholdResponse{
			Metric:  t.Metric,
			Target:  t.Target,
			Minimum: t.Minimum,
		}
	}
	return RulesetSummaryResponse{
		Version:           rs.Version,
		Path:              path,
		FieldRules:        len(rs.RequiredFields),
		ConsistencyChecks: checks,
		Thresholds:        thresholds,
	}
}
