package extract

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/provider-ingest/internal/common"
)

//go:embed specs/*.yaml specs/fieldspec.schema.json
var specFS embed.FS

// Selector picks a value out of a multi-group match.
type Selector string

const (
	SelectFirst   Selector = "first"   // first non-empty group
	SelectNumeric Selector = "numeric" // first purely numeric group
	SelectPhone   Selector = "phone"   // "(area) exchange-line"
	SelectJoin    Selector = "join"    // non-empty groups joined by a space
)

// Pattern is one candidate extraction rule for a field.
type Pattern struct {
	Expr   string   `yaml:"pattern"`
	Select Selector `yaml:"select,omitempty"`

	re *regexp.Regexp
}

// FieldSpec maps canonical field names to ordered candidate patterns.
type FieldSpec struct {
	Name   string               `yaml:"name"`
	Fields map[string][]Pattern `yaml:"fields"`

	order []string
}

// FieldNames returns the spec's fields in a stable order.
func (s *FieldSpec) FieldNames() []string { return s.order }

// LoadFieldSpec reads a YAML field spec, checks it against the spec schema and
// compiles its patterns. Patterns are compiled case-insensitive and multi-line.
func LoadFieldSpec(r io.Reader) (*FieldSpec, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read field spec: %w", err)
	}
	if err := validateSpecDocument(raw); err != nil {
		return nil, common.NewAppError("FIELD_SPEC_INVALID", "field spec does not match schema", err)
	}

	var spec FieldSpec
	if err := yaml.Unmarshal(raw, &spec); err != nil {
		return nil, fmt.Errorf("decode field spec: %w", err)
	}
	if err := spec.compile(); err != nil {
		return nil, common.NewAppError("FIELD_SPEC_INVALID", "field spec pattern does not compile", err)
	}
	return &spec, nil
}

// DefaultSpec loads one of the embedded specs, e.g. "camp_inspection".
func DefaultSpec(name string) (*FieldSpec, error) {
	b, err := specFS.ReadFile("specs/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("default spec %q: %w", name, err)
	}
	return LoadFieldSpec(bytes.NewReader(b))
}

func (s *FieldSpec) compile() error {
	s.order = s.order[:0]
	for field, patterns := range s.Fields {
		for i := range patterns {
			re, err := regexp.Compile(`(?im)` + patterns[i].Expr)
			if err != nil {
				return fmt.Errorf("field %s pattern %d: %w", field, i, err)
			}
			if patterns[i].Select == "" {
				patterns[i].Select = SelectFirst
			}
			patterns[i].re = re
		}
		s.order = append(s.order, field)
	}
	sort.Strings(s.order)
	return nil
}

func validateSpecDocument(raw []byte) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	// round-trip so the validator only sees JSON types
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal spec: %w", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("unmarshal spec: %w", err)
	}

	schemaBytes, err := specFS.ReadFile("specs/fieldspec.schema.json")
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("fieldspec.schema.json", bytes.NewReader(schemaBytes)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("fieldspec.schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return err
	}
	return nil
}

var reOnlyDigits = regexp.MustCompile(`^\d[\d-]*$`)

// pick applies the selector to the submatches of one match.
func (p Pattern) pick(m []string) string {
	groups := make([]string, 0, len(m))
	for _, g := range m[1:] {
		groups = append(groups, strings.TrimSpace(g))
	}
	if len(groups) == 0 {
		return strings.TrimSpace(m[0])
	}

	switch p.Select {
	case SelectNumeric:
		for _, g := range groups {
			if reOnlyDigits.MatchString(g) {
				return g
			}
		}
		return ""
	case SelectPhone:
		if len(groups) >= 3 && groups[0] != "" {
			return fmt.Sprintf("(%s) %s-%s", groups[0], groups[1], groups[2])
		}
		if len(groups) == 2 && groups[0] != "" {
			return fmt.Sprintf("(%s) %s", groups[0], groups[1])
		}
		return firstNonEmpty(groups)
	case SelectJoin:
		var parts []string
		for _, g := range groups {
			if g != "" {
				parts = append(parts, g)
			}
		}
		return strings.Join(parts, " ")
	default:
		return firstNonEmpty(groups)
	}
}

func firstNonEmpty(values []string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
