package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/acordlabs/submissionqc/quality"
)

const testRuleset = `
version: "2.0"
required_fields:
  basic_info:
    - field: business_name
      description: Legal business name
      nullable: false
      type: string
    - field: annual_revenue
      description: Annual revenue in USD
      nullable: false
      type: decimal
consistency_checks:
  - rule_id: CONS-001
    name: Revenue vs Employee Consistency
    severity: warning
    error_message: "Revenue ${annual_revenue} is inconsistent with ${employee_count} employees"
    condition:
      when: {field: employee_count, op: lt, value: 5}
      then: {field: annual_revenue, op: lt, value: 1000000}
quality_thresholds:
  - metric: overall_quality_score
    target: 0.90
    minimum: 0.75
`

// newTestServer runs against the in-memory store with a ruleset written
// to a temp file, so reload tests can rewrite it.
func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "rules.yml")
	if err := os.WriteFile(path, []byte(testRuleset), 0o644); err != nil {
		t.Fatalf("Failed to write ruleset: %v", err)
	}

	server, err := NewServer("", path)
	if err != nil {
		t.Fatalf("NewServer() failed: %v", err)
	}
	return server, path
}

func doJSON(t *testing.T, server *Server, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(out); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}

// TestHealthEndpoint verifies the health check reports the loaded
// ruleset version.
func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	w := doJSON(t, server, http.MethodGet, "/api/v1/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp map[string]any
	decodeBody(t, w, &resp)
	if resp["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", resp["status"])
	}
	if resp["rulesetVersion"] != "2.0" {
		t.Errorf("rulesetVersion = %v, want 2.0", resp["rulesetVersion"])
	}
}

// TestValidateEndpoint verifies validation returns a report without
// persisting anything.
func TestValidateEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	w := doJSON(t, server, http.MethodPost, "/api/v1/validate", map[string]any{
		"submission_id":  "sub-1",
		"business_name":  "Acme Corp",
		"annual_revenue": 2500000,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var report quality.ValidationReport
	decodeBody(t, w, &report)
	if report.SubmissionID != "sub-1" {
		t.Errorf("submissionId = %q, want sub-1", report.SubmissionID)
	}
	if len(report.Results) != 3 {
		t.Errorf("got %d results, want 3", len(report.Results))
	}
	if report.OverallScore != 1.0 {
		t.Errorf("overall = %v, want 1.0", report.OverallScore)
	}

	reports, _ := server.reports.Recent(10)
	if len(reports) != 0 {
		t.Errorf("validate persisted %d reports, want 0", len(reports))
	}
}

// TestValidateEndpointBadBody verifies malformed and empty bodies are 400s.
func TestValidateEndpointBadBody(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/validate", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", w.Code)
	}

	w = doJSON(t, server, http.MethodPost, "/api/v1/validate", map[string]any{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty record status = %d, want 400", w.Code)
	}
}

// TestSubmissionPersistsReport verifies the full pipeline endpoint stores
// the report and it is retrievable afterwards.
func TestSubmissionPersistsReport(t *testing.T) {
	server, _ := newTestServer(t)

	w := doJSON(t, server, http.MethodPost, "/api/v1/submissions", map[string]any{
		"submission_id":  "sub-2",
		"business_name":  "Acme Corp",
		"annual_revenue": 2500000,
		"employee_count": 2,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}

	var result struct {
		SubmissionID string                    `json:"submissionId"`
		Report       *quality.ValidationReport `json:"report"`
	}
	decodeBody(t, w, &result)
	if result.Report == nil || result.Report.ReportID == "" {
		t.Fatal("result carries no report")
	}

	// The inconsistent revenue/employee pair must fail CONS-001.
	failed := result.Report.FailedChecks()
	if failed != 1 {
		t.Errorf("failedChecks = %d, want 1", failed)
	}

	w = doJSON(t, server, http.MethodGet, "/api/v1/reports/"+result.Report.ReportID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get report status = %d, want 200", w.Code)
	}

	var stored quality.ValidationReport
	decodeBody(t, w, &stored)
	if stored.SubmissionID != "sub-2" {
		t.Errorf("stored submissionId = %q, want sub-2", stored.SubmissionID)
	}
}

// TestACORDSubmissionEndpoint verifies the XML intake path end to end.
func TestACORDSubmissionEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	xmlBody := `<?xml version="1.0"?>
<ACORD>
  <CommercialSubmission>
    <SubmissionNumber>ACORD-42</SubmissionNumber>
    <SubmissionDate>2026-03-01</SubmissionDate>
    <Applicant>
      <BusinessInfo>
        <BusinessName>Acme Tech LLC</BusinessName>
      </BusinessInfo>
      <FinancialInfo>
        <AnnualRevenue>2500000</AnnualRevenue>
      </FinancialInfo>
    </Applicant>
  </CommercialSubmission>
</ACORD>`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions/acord", strings.NewReader(xmlBody))
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}

	var result struct {
		Report *quality.ValidationReport `json:"report"`
	}
	decodeBody(t, w, &result)
	if result.Report.CompletenessScore != 1.0 {
		t.Errorf("completeness = %v, want 1.0", result.Report.CompletenessScore)
	}
}

// TestACORDSubmissionBadXML verifies a non-XML body is rejected.
func TestACORDSubmissionBadXML(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions/acord", strings.NewReader("not xml at all"))
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

// TestListReportsBySubmission verifies the submissionId filter.
func TestListReportsBySubmission(t *testing.T) {
	server, _ := newTestServer(t)

	for _, sub := range []string{"sub-a", "sub-a", "sub-b"} {
		w := doJSON(t, server, http.MethodPost, "/api/v1/submissions", map[string]any{
			"submission_id":  sub,
			"business_name":  "Acme Corp",
			"annual_revenue": 2500000,
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("submission status = %d, want 201", w.Code)
		}
	}

	w := doJSON(t, server, http.MethodGet, "/api/v1/reports?submissionId=sub-a", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp struct {
		Reports []*quality.ValidationReport `json:"reports"`
	}
	decodeBody(t, w, &resp)
	if len(resp.Reports) != 2 {
		t.Errorf("got %d reports, want 2", len(resp.Reports))
	}
}

// TestGetReportNotFound verifies unknown report IDs are 404s.
func TestGetReportNotFound(t *testing.T) {
	server, _ := newTestServer(t)

	w := doJSON(t, server, http.MethodGet, "/api/v1/reports/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

// TestRulesetSummaryAndReload verifies the summary endpoint and a
// successful reload after the file changes.
func TestRulesetSummaryAndReload(t *testing.T) {
	server, path := newTestServer(t)

	w := doJSON(t, server, http.MethodGet, "/api/v1/ruleset", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var summary RulesetSummaryResponse
	decodeBody(t, w, &summary)
	if summary.Version != "2.0" || summary.FieldRules != 2 {
		t.Errorf("summary = %+v", summary)
	}
	if len(summary.ConsistencyChecks) != 1 || summary.ConsistencyChecks[0] != "CONS-001" {
		t.Errorf("consistencyChecks = %v", summary.ConsistencyChecks)
	}

	updated := strings.Replace(testRuleset, `version: "2.0"`, `version: "2.1"`, 1)
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("Failed to rewrite ruleset: %v", err)
	}

	w = doJSON(t, server, http.MethodPost, "/api/v1/ruleset/reload", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("reload status = %d, want 200: %s", w.Code, w.Body.String())
	}
	decodeBody(t, w, &summary)
	if summary.Version != "2.1" {
		t.Errorf("reloaded version = %q, want 2.1", summary.Version)
	}
}

// TestReloadRejectsMalformedRuleset verifies a broken file never replaces
// the running ruleset.
func TestReloadRejectsMalformedRuleset(t *testing.T) {
	server, path := newTestServer(t)

	broken := strings.Replace(testRuleset, "op: lt", "op: sideways", 1)
	if err := os.WriteFile(path, []byte(broken), 0o644); err != nil {
		t.Fatalf("Failed to rewrite ruleset: %v", err)
	}

	w := doJSON(t, server, http.MethodPost, "/api/v1/ruleset/reload", nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422: %s", w.Code, w.Body.String())
	}

	// The old ruleset must still serve.
	w = doJSON(t, server, http.MethodGet, "/api/v1/ruleset", nil)
	var summary RulesetSummaryResponse
	decodeBody(t, w, &summary)
	if summary.Version != "2.0" {
		t.Errorf("version after failed reload = %q, want 2.0", summary.Version)
	}
}

// TestMetricsEndpoint verifies aggregates over persisted reports and the
// cache invalidation on new submissions.
func TestMetricsEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	w := doJSON(t, server, http.MethodGet, "/api/v1/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var summary struct {
		TotalReports int `json:"totalReports"`
	}
	decodeBody(t, w, &summary)
	if summary.TotalReports != 0 {
		t.Errorf("totalReports = %d, want 0", summary.TotalReports)
	}

	w = doJSON(t, server, http.MethodPost, "/api/v1/submissions", map[string]any{
		"submission_id":  "sub-m",
		"business_name":  "Acme Corp",
		"annual_revenue": 2500000,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("submission status = %d, want 201", w.Code)
	}

	w = doJSON(t, server, http.MethodGet, "/api/v1/metrics", nil)
	decodeBody(t, w, &summary)
	if summary.TotalReports != 1 {
		t.Errorf("totalReports after submission = %d, want 1", summary.TotalReports)
	}
}
