package quality

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// rulesetDoc mirrors the YAML contract layout. required_fields is kept as
// a raw node because its categories are an ordered mapping and the output
// ordering of a report follows ruleset declaration order.
type rulesetDoc struct {
	Version           string          `yaml:"version"`
	RequiredFields    yaml.Node       `yaml:"required_fields"`
	ConsistencyChecks []checkSpec     `yaml:"consistency_checks"`
	QualityThresholds []thresholdSpec `yaml:"quality_thresholds"`
}

type fieldSpec struct {
	Field       string    `yaml:"field"`
	Description string    `yaml:"description"`
	Nullable    *bool     `yaml:"nullable"`
	Type        string    `yaml:"type"`
	Pattern     string    `yaml:"pattern"`
	Range       yaml.Node `yaml:"range"`
	MinLength   int       `yaml:"min_length"`
	MaxLength   int       `yaml:"max_length"`
}

type checkSpec struct {
	RuleID       string         `yaml:"rule_id"`
	Name         string         `yaml:"name"`
	Severity     string         `yaml:"severity"`
	ErrorMessage string         `yaml:"error_message"`
	Condition    *conditionSpec `yaml:"condition"`
}

type thresholdSpec struct {
	Metric      string   `yaml:"metric"`
	Target      *float64 `yaml:"target"`
	Minimum     *float64 `yaml:"minimum"`
	Calculation string   `yaml:"calculation"`
}

// conditionSpec is the YAML form of a condition tree node. Exactly one of
// the combinator forms (all, any, not, when/then) or the leaf form
// (field + op) may be used per node.
type conditionSpec struct {
	All  []conditionSpec `yaml:"all"`
	Any  []conditionSpec `yaml:"any"`
	Not  *conditionSpec  `yaml:"not"`
	When *conditionSpec  `yaml:"when"`
	Then *conditionSpec  `yaml:"then"`

	Field   string    `yaml:"field"`
	Op      string    `yaml:"op"`
	Value   yaml.Node `yaml:"value"`
	Min     *float64  `yaml:"min"`
	Max     *float64  `yaml:"max"`
	Pattern string    `yaml:"pattern"`
}

// LoadFile reads and validates a YAML ruleset from disk.
func LoadFile(path string) (*RuleSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ruleset: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses and validates a YAML ruleset. Load is a pure function of
// its input: it either returns a fully validated, immutable RuleSet or a
// MalformedRuleSetError / DuplicateRuleError, never a partial result.
func Load(r io.Reader) (*RuleSet, error) {
	var doc rulesetDoc
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, malformedErr(err, "invalid YAML")
	}

	rs := &RuleSet{Version: doc.Version}

	fields, err := parseRequiredFields(&doc.RequiredFields)
	if err != nil {
		return nil, err
	}
	rs.RequiredFields = fields

	seenIDs := make(map[string]bool)
	for i, spec := range doc.ConsistencyChecks {
		rule, err := parseConsistencyRule(i, spec)
		if err != nil {
			return nil, err
		}
		if seenIDs[rule.RuleID] {
			return nil, &DuplicateRuleError{Kind: "ruleId", Key: rule.RuleID}
		}
		seenIDs[rule.RuleID] = true
		rs.ConsistencyChecks = append(rs.ConsistencyChecks, rule)
	}

	for i, spec := range doc.QualityThresholds {
		th, err := parseThreshold(i, spec)
		if err != nil {
			return nil, err
		}
		rs.QualityThresholds = append(rs.QualityThresholds, th)
	}

	return rs, nil
}

// parseRequiredFields walks the category mapping in document order and
// flattens it into a single declaration-ordered rule list. The category
// grouping is cosmetic; only the order matters.
func parseRequiredFields(node *yaml.Node) ([]FieldRule, error) {
	if node.Kind == 0 || node.Tag == "!!null" {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, malformed("required_fields must be a mapping of categories")
	}

	var rules []FieldRule
	seen := make(map[string]bool)

	for i := 0; i+1 < len(node.Content); i += 2 {
		category := node.Content[i].Value
		listNode := node.Content[i+1]
		if listNode.Kind != yaml.SequenceNode {
			return nil, malformed("required_fields category %q must be a list", category)
		}

		var specs []fieldSpec
		if err := listNode.Decode(&specs); err != nil {
			return nil, malformedErr(err, "required_fields category %q", category)
		}

		for _, spec := range specs {
			rule, err := parseFieldRule(category, spec)
			if err != nil {
				return nil, err
			}
			if seen[rule.Field] {
				return nil, &DuplicateRuleError{Kind: "field", Key: rule.Field}
			}
			seen[rule.Field] = true
			rules = append(rules, rule)
		}
	}
	return rules, nil
}

func parseFieldRule(category string, spec fieldSpec) (FieldRule, error) {
	if spec.Field == "" {
		return FieldRule{}, malformed("field rule in category %q is missing a field name", category)
	}

	ft := FieldType(spec.Type)
	switch ft {
	case TypeString, TypeInteger, TypeDecimal, TypeDate:
	case "":
		return FieldRule{}, malformed("field %q is missing a type", spec.Field)
	default:
		return FieldRule{}, malformed("field %q has unknown type %q", spec.Field, spec.Type)
	}

	rule := FieldRule{
		Field:       spec.Field,
		Description: spec.Description,
		Category:    category,
		Nullable:    true, // absent nullable defaults to optional
		Type:        ft,
		MinLength:   spec.MinLength,
		MaxLength:   spec.MaxLength,
	}
	if spec.Nullable != nil {
		rule.Nullable = *spec.Nullable
	}

	if spec.Pattern != "" {
		p, err := CompilePattern(spec.Pattern)
		if err != nil {
			return FieldRule{}, malformedErr(err, "field %q has invalid pattern", spec.Field)
		}
		rule.Pattern = p
	}

	if spec.Range.Kind != 0 && spec.Range.Tag != "!!null" {
		r, err := parseRange(spec.Field, ft, &spec.Range)
		if err != nil {
			return FieldRule{}, err
		}
		rule.Range = r
	}

	if (spec.MinLength != 0 || spec.MaxLength != 0) && ft != TypeString {
		return FieldRule{}, malformed("field %q: length bounds apply to string fields only", spec.Field)
	}
	if spec.MinLength < 0 || spec.MaxLength < 0 {
		return FieldRule{}, malformed("field %q: negative length bound", spec.Field)
	}
	if spec.MaxLength != 0 && spec.MinLength > spec.MaxLength {
		return FieldRule{}, malformed("field %q: min_length %d exceeds max_length %d",
			spec.Field, spec.MinLength, spec.MaxLength)
	}

	return rule, nil
}

func parseRange(field string, ft FieldType, node *yaml.Node) (*Range, error) {
	switch ft {
	case TypeInteger, TypeDecimal:
		var bounds []float64
		if err := node.Decode(&bounds); err != nil || len(bounds) != 2 {
			return nil, malformed("field %q: range must be [min, max] numbers", field)
		}
		if bounds[0] > bounds[1] {
			return nil, malformed("field %q: range min %v exceeds max %v", field, bounds[0], bounds[1])
		}
		return &Range{Min: bounds[0], Max: bounds[1]}, nil

	case TypeDate:
		var bounds []string
		if err := node.Decode(&bounds); err != nil || len(bounds) != 2 {
			return nil, malformed("field %q: range must be [min, max] dates", field)
		}
		min, err1 := time.Parse(DateLayout, bounds[0])
		max, err2 := time.Parse(DateLayout, bounds[1])
		if err1 != nil || err2 != nil {
			return nil, malformed("field %q: range dates must use %s", field, DateLayout)
		}
		if min.After(max) {
			return nil, malformed("field %q: range min %s exceeds max %s", field, bounds[0], bounds[1])
		}
		return &Range{MinDate: min, MaxDate: max}, nil

	default:
		return nil, malformed("field %q: range applies to numeric and date fields only", field)
	}
}

func parseConsistencyRule(idx int, spec checkSpec) (ConsistencyRule, error) {
	if spec.RuleID == "" {
		return ConsistencyRule{}, malformed("consistency check #%d is missing rule_id", idx)
	}
	if spec.Condition == nil {
		return ConsistencyRule{}, malformed("consistency check %q is missing a condition", spec.RuleID)
	}

	sev := Severity(spec.Severity)
	switch sev {
	case SeverityError, SeverityWarning, SeverityInfo:
	case "":
		sev = SeverityError
	default:
		return ConsistencyRule{}, malformed("consistency check %q has unknown severity %q", spec.RuleID, spec.Severity)
	}

	cond, err := buildCondition(spec.RuleID, spec.Condition)
	if err != nil {
		return ConsistencyRule{}, err
	}

	return ConsistencyRule{
		RuleID:       spec.RuleID,
		Name:         spec.Name,
		Severity:     sev,
		Condition:    cond,
		ErrorMessage: spec.ErrorMessage,
	}, nil
}

func buildCondition(ruleID string, spec *conditionSpec) (Condition, error) {
	forms := 0
	if len(spec.All) > 0 {
		forms++
	}
	if len(spec.Any) > 0 {
		forms++
	}
	if spec.Not != nil {
		forms++
	}
	if spec.When != nil || spec.Then != nil {
		forms++
	}
	if spec.Field != "" {
		forms++
	}
	if forms != 1 {
		return nil, malformed("check %q: condition node must use exactly one of all/any/not/when+then/field", ruleID)
	}

	switch {
	case len(spec.All) > 0:
		children, err := buildConditions(ruleID, spec.All)
		if err != nil {
			return nil, err
		}
		return All(children), nil

	case len(spec.Any) > 0:
		children, err := buildConditions(ruleID, spec.Any)
		if err != nil {
			return nil, err
		}
		return Any(children), nil

	case spec.Not != nil:
		child, err := buildCondition(ruleID, spec.Not)
		if err != nil {
			return nil, err
		}
		return Not{Cond: child}, nil

	case spec.When != nil || spec.Then != nil:
		if spec.When == nil || spec.Then == nil {
			return nil, malformed("check %q: when and then must appear together", ruleID)
		}
		when, err := buildCondition(ruleID, spec.When)
		if err != nil {
			return nil, err
		}
		then, err := buildCondition(ruleID, spec.Then)
		if err != nil {
			return nil, err
		}
		return Implies{When: when, Then: then}, nil

	default:
		return buildLeaf(ruleID, spec)
	}
}

func buildConditions(ruleID string, specs []conditionSpec) ([]Condition, error) {
	conds := make([]Condition, 0, len(specs))
	for i := range specs {
		c, err := buildCondition(ruleID, &specs[i])
		if err != nil {
			return nil, err
		}
		conds = append(conds, c)
	}
	return conds, nil
}

func buildLeaf(ruleID string, spec *conditionSpec) (Condition, error) {
	switch spec.Op {
	case "between":
		if spec.Min == nil || spec.Max == nil {
			return nil, malformed("check %q: between requires min and max", ruleID)
		}
		if *spec.Min > *spec.Max {
			return nil, malformed("check %q: between min %v exceeds max %v", ruleID, *spec.Min, *spec.Max)
		}
		return Between{Field: spec.Field, Min: *spec.Min, Max: *spec.Max}, nil

	case "matches":
		if spec.Pattern == "" {
			return nil, malformed("check %q: matches requires a pattern", ruleID)
		}
		p, err := CompilePattern(spec.Pattern)
		if err != nil {
			return nil, malformedErr(err, "check %q: invalid pattern", ruleID)
		}
		return Matches{Field: spec.Field, Pattern: p}, nil

	case "":
		return nil, malformed("check %q: leaf condition on %q is missing op", ruleID, spec.Field)

	default:
		op := Op(spec.Op)
		if !validOp(op) {
			return nil, malformed("check %q: unknown op %q", ruleID, spec.Op)
		}
		value, err := decodeLiteral(&spec.Value)
		if err != nil {
			return nil, malformed("check %q: op %q requires a scalar value", ruleID, spec.Op)
		}
		return Comparison{Field: spec.Field, Op: op, Value: value}, nil
	}
}

// decodeLiteral reads a comparison literal as a float64 or a string.
func decodeLiteral(node *yaml.Node) (any, error) {
	if node.Kind == 0 || node.Tag == "!!null" {
		return nil, fmt.Errorf("missing value")
	}
	var f float64
	if err := node.Decode(&f); err == nil {
		return f, nil
	}
	var s string
	if err := node.Decode(&s); err == nil {
		return s, nil
	}
	return nil, fmt.Errorf("value must be a number or string")
}

func parseThreshold(idx int, spec thresholdSpec) (ThresholdDefinition, error) {
	if spec.Metric == "" {
		return ThresholdDefinition{}, malformed("quality threshold #%d is missing a metric name", idx)
	}
	if spec.Target == nil || spec.Minimum == nil {
		return ThresholdDefinition{}, malformed("quality threshold %q requires target and minimum", spec.Metric)
	}
	if *spec.Target < 0 || *spec.Target > 1 || *spec.Minimum < 0 || *spec.Minimum > 1 {
		return ThresholdDefinition{}, malformed("quality threshold %q: target and minimum must be within [0, 1]", spec.Metric)
	}
	if spec.Calculation != "" && spec.Metric == "overall_quality_score" {
		if _, ok := LookupFormula(spec.Calculation); !ok {
			return ThresholdDefinition{}, malformed("quality threshold %q: unknown calculation %q", spec.Metric, spec.Calculation)
		}
	}
	return ThresholdDefinition{
		Metric:      spec.Metric,
		Target:      *spec.Target,
		Minimum:     *spec.Minimum,
		Calculation: spec.Calculation,
	}, nil
}
