// Package pipeline runs submissions through quality validation,
// enrichment and anomaly detection as one synchronous flow.
package pipeline

import (
	"fmt"
	"time"

	"github.com/acordlabs/submissionqc/internal/logger"
	"github.com/acordlabs/submissionqc/quality"
)

// DefaultEnrichmentThreshold is the overall score below which the
// processor attempts enrichment before re-validating.
const DefaultEnrichmentThreshold = 0.8

// ProcessingResult is the outcome of one pipeline run: the final
// validation report plus per-stage decisions.
type ProcessingResult struct {
	SubmissionID      string                    `json:"submissionId"`
	Report            *quality.ValidationReport `json:"report"`
	EnrichmentApplied bool                      `json:"enrichmentApplied"`
	Anomalies         []Anomaly                 `json:"anomalies"`
	Decisions         []string                  `json:"decisions"`
	ProcessingTimeMS  int64                     `json:"processingTimeMs"`
}

// Config holds pipeline tuning knobs.
type Config struct {
	// EnrichmentThreshold is the overall score below which enrichment
	// runs. Zero means DefaultEnrichmentThreshold.
	EnrichmentThreshold float64
}

// Processor coordinates the validation, enrichment and anomaly stages.
// Enricher and Detector are optional; a nil collaborator skips its stage.
type Processor struct {
	engine    *quality.Engine
	enricher  Enricher
	detector  AnomalyDetector
	threshold float64
}

// NewProcessor creates a Processor around a validation engine.
func NewProcessor(engine *quality.Engine, enricher Enricher, detector AnomalyDetector, config Config) *Processor {
	threshold := config.EnrichmentThreshold
	if threshold == 0 {
		threshold = DefaultEnrichmentThreshold
	}
	return &Processor{
		engine:    engine,
		enricher:  enricher,
		detector:  detector,
		threshold: threshold,
	}
}

// Process runs a record through the pipeline:
//
//  1. validate against the loaded ruleset
//  2. if the overall score is below the enrichment threshold, ask the
//     enricher to fill missing fields and re-validate
//  3. run anomaly detection over the final record and report
//
// Stage failures after the initial validation degrade the run (the
// stage is skipped and the reason recorded) rather than aborting it.
// Only a missing ruleset returns an error.
func (p *Processor) Process(rec quality.Record) (*ProcessingResult, error) {
	start := time.Now()

	report, err := p.engine.Evaluate(rec)
	if err != nil {
		return nil, err
	}

	result := &ProcessingResult{
		SubmissionID: report.SubmissionID,
		Report:       report,
	}

	if report.OverallScore < p.threshold && p.enricher != nil {
		rec, report = p.enrich(rec, report, result)
	}

	if p.detector != nil {
		anomalies, err := p.detector.Detect(rec, report)
		if err != nil {
			result.Decisions = append(result.Decisions,
				fmt.Sprintf("anomaly detection skipped: %v", err))
			logger.Warn("anomaly detection failed", "submissionId", report.SubmissionID, "error", err)
		} else {
			result.Anomalies = anomalies
			for _, a := range anomalies {
				result.Decisions = append(result.Decisions,
					fmt.Sprintf("anomaly %s detected (confidence %.2f, severity %s)",
						a.Type, a.Confidence, a.Severity))
			}
		}
	}

	result.Report = report
	result.ProcessingTimeMS = time.Since(start).Milliseconds()
	return result, nil
}

// enrich asks the enricher for missing values, merges them into a copy of
// the record and re-validates. The original record is never mutated.
func (p *Processor) enrich(rec quality.Record, report *quality.ValidationReport, result *ProcessingResult) (quality.Record, *quality.ValidationReport) {
	values, err := p.enricher.Enrich(rec, report)
	if err != nil {
		result.Decisions = append(result.Decisions,
			fmt.Sprintf("enrichment skipped: %v", err))
		logger.Warn("enrichment failed", "submissionId", report.SubmissionID, "error", err)
		return rec, report
	}
	if len(values) == 0 {
		result.Decisions = append(result.Decisions, "enrichment found no fillable fields")
		return rec, report
	}

	enriched := make(quality.Record, len(rec)+len(values))
	for k, v := range rec {
		enriched[k] = v
	}
	for field, value := range values {
		enriched[field] = value
		result.Decisions = append(result.Decisions,
			fmt.Sprintf("enriched %s = %v", field, value))
	}

	revalidated, err := p.engine.Evaluate(enriched)
	if err != nil {
		// The ruleset was swapped out between stages. Keep the
		// original report.
		result.Decisions = append(result.Decisions,
			fmt.Sprintf("re-validation skipped: %v", err))
		return rec, report
	}

	result.EnrichmentApplied = true
	return enriched, revalidated
}
