// Package jsonschema checks decoded documents against a JSON Schema.
package jsonschema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ValidationErrors represents a collection of validation errors
type ValidationErrors []error

// Error implements the error interface for ValidationErrors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}

	var sb strings.Builder
	for i, err := range ve {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Violation is one schema violation at a location in the document.
type Violation struct {
	// Location is a JSON pointer into the document, e.g. "/scenarios/reads/vus".
	Location string
	Message  string
}

func (v *Violation) Error() string {
	loc := v.Location
	if loc == "" {
		loc = "/"
	}
	return fmt.Sprintf("%s: %s", loc, v.Message)
}

// Schema is a compiled schema, safe for concurrent use.
type Schema struct {
	schema *jsonschema.Schema
}

// Compile compiles a draft 2020-12 schema document.
func Compile(name string, schema []byte) (*Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	if err := compiler.AddResource(name, bytes.NewReader(schema)); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	s, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return &Schema{schema: s}, nil
}

// MustCompile is like Compile but panics on error. It is meant for
// embedded schemas.
func MustCompile(name string, schema []byte) *Schema {
	s, err := Compile(name, schema)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks doc, a value decoded into the generic JSON shapes
// (map[string]any, []any, float64, string, bool, nil). It returns nil or
// ValidationErrors with one *Violation per failing leaf, ordered by location.
func (s *Schema) Validate(doc any) error {
	err := s.schema.Validate(doc)
	if err == nil {
		return nil
	}

	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return ValidationErrors{err}
	}

	violations := leaves(verr)
	sort.SliceStable(violations, func(i, j int) bool {
		return violations[i].Location < violations[j].Location
	})

	out := make(ValidationErrors, 0, len(violations))
	seen := make(map[string]bool)
	for _, v := range violations {
		key := v.Location + "\x00" + v.Message
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}

// ValidateJSON decodes data and validates it.
func (s *Schema) ValidateJSON(data []byte) error {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return s.Validate(doc)
}

// leaves collects the innermost causes; intermediate errors only repeat
// "doesn't validate with ..." for their children.
func leaves(err *jsonschema.ValidationError) []*Violation {
	if len(err.Causes) == 0 {
		return []*Violation{{Location: err.InstanceLocation, Message: err.Message}}
	}
	var out []*Violation
	for _, c := range err.Causes {
		out = append(out, leaves(c)...)
	}
	return out
}
