package pipeline

import (
	"strings"

	"github.com/acordlabs/submissionqc/quality"
)

// Enricher fills in missing submission fields from reference data or an
// external lookup. It returns only the values to add; it never modifies
// the record it is given.
type Enricher interface {
	Enrich(rec quality.Record, report *quality.ValidationReport) (map[string]any, error)
}

// industryInfo is one row of the static NAICS reference table.
type industryInfo struct {
	code        string
	title       string
	riskClass   string
	nameMarkers []string
}

// naicsReference covers the industry codes seen in commercial
// submissions. nameMarkers drive inference from the business name when
// the code itself is missing.
var naicsReference = []industryInfo{
	{
		code:        "541511",
		title:       "Custom Computer Programming Services",
		riskClass:   "low",
		nameMarkers: []string{"tech", "software", "computer"},
	},
	{
		code:        "722511",
		title:       "Full-Service Restaurants",
		riskClass:   "medium",
		nameMarkers: []string{"restaurant", "cafe", "diner"},
	},
	{
		code:        "238210",
		title:       "Electrical Contractors and Other Wiring Installation Contractors",
		riskClass:   "high",
		nameMarkers: []string{"electric", "contractor"},
	},
}

// ReferenceEnricher fills missing industry fields from the static NAICS
// reference table. It infers naics_code from the business name and adds
// industry_description for a known code.
type ReferenceEnricher struct{}

// NewReferenceEnricher creates a reference-data enricher.
func NewReferenceEnricher() *ReferenceEnricher {
	return &ReferenceEnricher{}
}

// Enrich returns values for the industry fields the record is missing.
func (e *ReferenceEnricher) Enrich(rec quality.Record, _ *quality.ValidationReport) (map[string]any, error) {
	values := make(map[string]any)

	code, haveCode := rec["naics_code"].(string)
	if !haveCode || code == "" {
		if name, ok := rec["business_name"].(string); ok {
			if info := inferIndustry(name); info != nil {
				code = info.code
				values["naics_code"] = info.code
				haveCode = true
			}
		}
	}

	if haveCode && !rec.Has("industry_description") {
		if info := lookupIndustry(code); info != nil {
			values["industry_description"] = info.title
		}
	}

	return values, nil
}

func lookupIndustry(code string) *industryInfo {
	for i := range naicsReference {
		if naicsReference[i].code == code {
			return &naicsReference[i]
		}
	}
	return nil
}

func inferIndustry(businessName string) *industryInfo {
	name := strings.ToLower(businessName)
	for i := range naicsReference {
		for _, marker := range naicsReference[i].nameMarkers {
			if strings.Contains(name, marker) {
				return &naicsReference[i]
			}
		}
	}
	return nil
}
