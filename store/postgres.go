package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/acordlabs/submissionqc/quality"
)

// PostgresReportStore implements ReportStore backed by PostgreSQL.
// Reports land in the reports table; each individual result becomes one
// row in the quality_checks fact table.
type PostgresReportStore struct {
	db *sql.DB
}

// NewPostgresReportStore creates a PostgreSQL-backed report store.
func NewPostgresReportStore(db *sql.DB) *PostgresReportStore {
	return &PostgresReportStore{db: db}
}

// Save inserts the report header and its result rows in one transaction.
func (s *PostgresReportStore) Save(report *quality.ValidationReport) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO reports (report_id, submission_id, ruleset_version,
			completeness_score, consistency_score, overall_score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, report.ReportID, report.SubmissionID, report.RulesetVersion,
		report.CompletenessScore, report.ConsistencyScore, report.OverallScore,
		report.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}

	for i, res := range report.Results {
		_, err = tx.Exec(`
			INSERT INTO quality_checks (quality_check_id, report_id, position,
				rule_id, rule_name, field_name, passed, severity,
				expected_value, actual_value, error_message)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, uuid.NewString(), report.ReportID, i,
			res.RuleID, res.RuleName, res.FieldName, res.Passed, string(res.Severity),
			res.Expected, res.Actual, res.Message)
		if err != nil {
			return fmt.Errorf("failed to insert quality check %s: %w", res.RuleID, err)
		}
	}

	return tx.Commit()
}

// Get retrieves a report with its results in stored position order.
func (s *PostgresReportStore) Get(reportID string) (*quality.ValidationReport, error) {
	var report quality.ValidationReport
	err := s.db.QueryRow(`
		SELECT report_id, submission_id, ruleset_version,
			completeness_score, consistency_score, overall_score, created_at
		FROM reports
		WHERE report_id = $1
	`, reportID).Scan(
		&report.ReportID,
		&report.SubmissionID,
		&report.RulesetVersion,
		&report.CompletenessScore,
		&report.ConsistencyScore,
		&report.OverallScore,
		&report.Timestamp,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("report %s not found", reportID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	results, err := s.loadResults(reportID)
	if err != nil {
		return nil, err
	}
	report.Results = results
	return &report, nil
}

func (s *PostgresReportStore) loadResults(reportID string) ([]quality.ValidationResult, error) {
	rows, err := s.db.Query(`
		SELECT rule_id, rule_name, field_name, passed, severity,
			expected_value, actual_value, error_message
		FROM quality_checks
		WHERE report_id = $1
		ORDER BY position ASC
	`, reportID)
	if err != nil {
		return nil, fmt.Errorf("failed to list quality checks: %w", err)
	}
	defer rows.Close()

	var results []quality.ValidationResult
	for rows.Next() {
		var res quality.ValidationResult
		var severity string
		if err := rows.Scan(&res.RuleID, &res.RuleName, &res.FieldName, &res.Passed,
			&severity, &res.Expected, &res.Actual, &res.Message); err != nil {
			return nil, fmt.Errorf("failed to scan quality check: %w", err)
		}
		res.Severity = quality.Severity(severity)
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating quality checks: %w", err)
	}
	return results, nil
}

// ListBySubmission returns every report for a submission, newest first.
func (s *PostgresReportStore) ListBySubmission(submissionID string) ([]*quality.ValidationReport, error) {
	return s.queryReports(`
		SELECT report_id FROM reports
		WHERE submission_id = $1
		ORDER BY created_at DESC
	`, submissionID)
}

// Recent returns up to limit reports, newest first.
func (s *PostgresReportStore) Recent(limit int) ([]*quality.ValidationReport, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.queryReports(`
		SELECT report_id FROM reports
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
}

func (s *PostgresReportStore) queryReports(query string, arg any) ([]*quality.ValidationReport, error) {
	rows, err := s.db.Query(query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan report id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reports: %w", err)
	}

	reports := make([]*quality.ValidationReport, 0, len(ids))
	for _, id := range ids {
		report, err := s.Get(id)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}
