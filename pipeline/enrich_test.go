package pipeline

import (
	"testing"

	"github.com/acordlabs/submissionqc/quality"
)

// TestReferenceEnricherInfersNAICS verifies code inference from business
// name keywords.
func TestReferenceEnricherInfersNAICS(t *testing.T) {
	tests := []struct {
		name     string
		business string
		wantCode string
	}{
		{"software company", "Acme Software Solutions", "541511"},
		{"restaurant", "Main Street Diner", "722511"},
		{"electrical contractor", "Smith Electric Co", "238210"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewReferenceEnricher()
			values, err := e.Enrich(quality.Record{"business_name": tt.business}, nil)
			if err != nil {
				t.Fatalf("Enrich() failed: %v", err)
			}
			if values["naics_code"] != tt.wantCode {
				t.Errorf("naics_code = %v, want %s", values["naics_code"], tt.wantCode)
			}
			if values["industry_description"] == "" {
				t.Error("industry_description should be filled alongside the code")
			}
		})
	}
}

// TestReferenceEnricherUnknownName verifies nothing is invented for a
// business the reference table cannot classify.
func TestReferenceEnricherUnknownName(t *testing.T) {
	e := NewReferenceEnricher()
	values, err := e.Enrich(quality.Record{"business_name": "Consolidated Holdings"}, nil)
	if err != nil {
		t.Fatalf("Enrich() failed: %v", err)
	}
	if len(values) != 0 {
		t.Errorf("values = %v, want none", values)
	}
}

// TestReferenceEnricherDescriptionOnly verifies a record that already has
// a known code only gains the description.
func TestReferenceEnricherDescriptionOnly(t *testing.T) {
	e := NewReferenceEnricher()
	values, err := e.Enrich(quality.Record{
		"business_name": "Consolidated Holdings",
		"naics_code":    "722511",
	}, nil)
	if err != nil {
		t.Fatalf("Enrich() failed: %v", err)
	}
	if _, ok := values["naics_code"]; ok {
		t.Error("existing naics_code must not be overwritten")
	}
	if values["industry_description"] != "Full-Service Restaurants" {
		t.Errorf("industry_description = %v", values["industry_description"])
	}
}

// TestReferenceEnricherKeepsExistingDescription verifies a present
// description is left alone.
func TestReferenceEnricherKeepsExistingDescription(t *testing.T) {
	e := NewReferenceEnricher()
	values, err := e.Enrich(quality.Record{
		"naics_code":           "541511",
		"industry_description": "Software consultancy",
	}, nil)
	if err != nil {
		t.Fatalf("Enrich() failed: %v", err)
	}
	if len(values) != 0 {
		t.Errorf("values = %v, want none", values)
	}
}
