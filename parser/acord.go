// Package parser extracts flat submission records from ACORD-style XML
// documents. Extraction is plain element-path lookup: fields the document
// does not carry are simply absent from the record, and it is the quality
// engine's job to flag them. The parser never fails on missing data, only
// on documents that are not XML at all.
package parser

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/acordlabs/submissionqc/quality"
)

// fieldPath maps one record field to its element path and value kind.
type fieldPath struct {
	field string
	path  string
	kind  quality.FieldType
}

// Paths follow the ACORD commercial submission layout. The leading
// CommercialSubmission segment is resolved under the document root
// regardless of the root element's own name or namespace.
var submissionPaths = []fieldPath{
	{"acord_submission_number", "CommercialSubmission/SubmissionNumber", quality.TypeString},
	{"business_name", "CommercialSubmission/Applicant/BusinessInfo/BusinessName", quality.TypeString},
	{"naics_code", "CommercialSubmission/Applicant/BusinessInfo/NAICSCode", quality.TypeString},
	{"years_in_business", "CommercialSubmission/Applicant/BusinessInfo/YearsInBusiness", quality.TypeInteger},
	{"annual_revenue", "CommercialSubmission/Applicant/FinancialInfo/AnnualRevenue", quality.TypeDecimal},
	{"employee_count", "CommercialSubmission/Applicant/EmployeeInfo/TotalEmployees", quality.TypeInteger},
	{"requested_coverage_types", "CommercialSubmission/CoverageRequest/CoverageType", quality.TypeString},
	{"requested_limits", "CommercialSubmission/CoverageRequest/Limits", quality.TypeString},
	{"submission_date", "CommercialSubmission/SubmissionDate", quality.TypeDate},
}

var addressPaths = []string{
	"CommercialSubmission/Applicant/Address/Street",
	"CommercialSubmission/Applicant/Address/City",
	"CommercialSubmission/Applicant/Address/State",
	"CommercialSubmission/Applicant/Address/PostalCode",
}

// ParseSubmission reads one ACORD XML document and returns a flat record.
// A submission_id is generated when the document does not carry one.
func ParseSubmission(r io.Reader) (quality.Record, error) {
	root, err := decodeTree(r)
	if err != nil {
		return nil, fmt.Errorf("parse submission XML: %w", err)
	}

	rec := quality.Record{"submission_id": uuid.NewString()}

	for _, fp := range submissionPaths {
		text, ok := root.lookup(fp.path)
		if !ok || text == "" {
			continue
		}
		value, err := convert(fp.kind, text)
		if err != nil {
			// Unconvertible text still lands in the record as a string so
			// the type check reports it instead of the parser hiding it.
			rec[fp.field] = text
			continue
		}
		rec[fp.field] = value
	}

	var addressParts []string
	for _, path := range addressPaths {
		if text, ok := root.lookup(path); ok && text != "" {
			addressParts = append(addressParts, text)
		}
	}
	if len(addressParts) > 0 {
		rec["business_address"] = strings.Join(addressParts, ", ")
	}

	return rec, nil
}

func convert(kind quality.FieldType, text string) (any, error) {
	switch kind {
	case quality.TypeInteger:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, err
		}
		return n, nil
	case quality.TypeDecimal:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, err
		}
		return f, nil
	case quality.TypeDate:
		// Accept date-only and full timestamps; submissions in the wild
		// carry both.
		if t, err := time.Parse(quality.DateLayout, text); err == nil {
			return t, nil
		}
		t, err := time.Parse(time.RFC3339, text)
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		return text, nil
	}
}

// element is a minimal XML tree node. Namespaces are stripped so paths
// match documents with or without an ACORD namespace declaration.
type element struct {
	name     string
	text     string
	children []*element
}

func decodeTree(r io.Reader) (*element, error) {
	dec := xml.NewDecoder(r)
	root := &element{}
	stack := []*element{root}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			child := &element{name: t.Name.Local}
			parent := stack[len(stack)-1]
			parent.children = append(parent.children, child)
			stack = append(stack, child)
		case xml.EndElement:
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			cur := stack[len(stack)-1]
			cur.text += string(t)
		}
	}

	if len(root.children) == 0 {
		return nil, fmt.Errorf("document has no root element")
	}
	return root, nil
}

// lookup resolves a slash-separated path. The search starts at the
// document root's children, so the first path segment may be either the
// root element itself or a child of it.
func (e *element) lookup(path string) (string, bool) {
	parts := strings.Split(path, "/")
	node := e.find(parts)
	if node == nil && len(e.children) == 1 {
		// Tolerate an extra wrapper root element (e.g. <ACORD> around
		// <CommercialSubmission>).
		node = e.children[0].find(parts)
	}
	if node == nil {
		return "", false
	}
	return strings.TrimSpace(node.text), true
}

func (e *element) find(parts []string) *element {
	cur := e
	for _, part := range parts {
		var next *element
		for _, child := range cur.children {
			if child.name == part {
				next = child
				break
			}
		}
		if next == nil {
			return nil
		}
		cur = next
	}
	return cur
}
