// Package store persists validation reports and serves aggregate quality
// metrics over them.
package store

import (
	"fmt"
	"sync"

	"github.com/acordlabs/submissionqc/quality"
)

// ReportStore manages validation report persistence and retrieval.
type ReportStore interface {
	// Save persists a report and all of its results.
	Save(report *quality.ValidationReport) error

	// Get retrieves a report by its report ID.
	Get(reportID string) (*quality.ValidationReport, error)

	// ListBySubmission returns all reports for one submission, newest first.
	ListBySubmission(submissionID string) ([]*quality.ValidationReport, error)

	// Recent returns up to limit reports, newest first.
	Recent(limit int) ([]*quality.ValidationReport, error)
}

// InMemoryReportStore implements ReportStore with a map and an insertion
// log. Thread-safe with an RWMutex.
type InMemoryReportStore struct {
	reports map[string]*quality.ValidationReport
	order   []string // report IDs in insertion order
	mu      sync.RWMutex
}

// NewInMemoryReportStore creates an empty in-memory report store.
func NewInMemoryReportStore() *InMemoryReportStore {
	return &InMemoryReportStore{
		reports: make(map[string]*quality.ValidationReport),
	}
}

// Save stores a report. Report IDs are unique; saving the same ID twice is
// an error.
func (s *InMemoryReportStore) Save(report *quality.ValidationReport) error {
	if report.ReportID == "" {
		return fmt.Errorf("report has no report ID")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.reports[report.ReportID]; exists {
		return fmt.Errorf("report %s already exists", report.ReportID)
	}
	s.reports[report.ReportID] = report
	s.order = append(s.order, report.ReportID)
	return nil
}

// Get retrieves a report by ID.
func (s *InMemoryReportStore) Get(reportID string) (*quality.ValidationReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report, exists := s.reports[reportID]
	if !exists {
		return nil, fmt.Errorf("report %s not found", reportID)
	}
	return report, nil
}

// ListBySubmission returns every report for a submission, newest first.
func (s *InMemoryReportStore) ListBySubmission(submissionID string) ([]*quality.ValidationReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var reports []*quality.ValidationReport
	for i := len(s.order) - 1; i >= 0; i-- {
		if r := s.reports[s.order[i]]; r.SubmissionID == submissionID {
			reports = append(reports, r)
		}
	}
	return reports, nil
}

// Recent returns up to limit reports, newest first.
func (s *InMemoryReportStore) Recent(limit int) ([]*quality.ValidationReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.order) {
		limit = len(s.order)
	}
	reports := make([]*quality.ValidationReport, 0, limit)
	for i := len(s.order) - 1; i >= 0 && len(reports) < limit; i-- {
		reports = append(reports, s.reports[s.order[i]])
	}
	return reports, nil
}
