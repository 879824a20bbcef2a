package jsonschema

import (
	"errors"
	"strings"
	"testing"
)

const personSchema = `{
	"type": "object",
	"properties": {
		"name": { "type": "string", "minLength": 3 },
		"age": { "type": "integer", "minimum": 18 },
		"tags": { "type": "array", "items": { "type": "string" } }
	},
	"required": ["name"],
	"additionalProperties": false
}`

func TestCompile(t *testing.T) {
	tests := []struct {
		name    string
		schema  string
		wantErr bool
	}{
		{"valid schema", personSchema, false},
		{"invalid type keyword", `{"type": "invalid-type"}`, true},
		{"not JSON", `{ invalid`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile("schema.json", []byte(tt.schema))
			if (err != nil) != tt.wantErr {
				t.Errorf("Compile() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMustCompile_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustCompile() did not panic on an invalid schema")
		}
	}()
	MustCompile("schema.json", []byte(`{"type": 1}`))
}

func TestSchema_ValidateJSON(t *testing.T) {
	s := MustCompile("person.json", []byte(personSchema))

	tests := []struct {
		name       string
		json       string
		wantValid  bool
		wantErrors []string // substrings of the error message
	}{
		{
			name:      "valid document",
			json:      `{"name": "Jane", "age": 30, "tags": ["a"]}`,
			wantValid: true,
		},
		{
			name:       "missing required property",
			json:       `{"age": 30}`,
			wantErrors: []string{"missing properties", "name"},
		},
		{
			name:       "wrong type",
			json:       `{"name": "Jane", "age": "thirty"}`,
			wantErrors: []string{"/age", "integer"},
		},
		{
			name:       "nested array item",
			json:       `{"name": "Jane", "tags": ["ok", 3]}`,
			wantErrors: []string{"/tags/1"},
		},
		{
			name:       "unknown property",
			json:       `{"name": "Jane", "nickname": "J"}`,
			wantErrors: []string{"nickname"},
		},
		{
			name:       "multiple errors",
			json:       `{"name": "Jo", "age": 16}`,
			wantErrors: []string{"/age", "/name"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.ValidateJSON([]byte(tt.json))
			if tt.wantValid {
				if err != nil {
					t.Fatalf("ValidateJSON() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("ValidateJSON() error = nil, want violations")
			}

			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("error type = %T, want ValidationErrors", err)
			}
			msg := err.Error()
			for _, want := range tt.wantErrors {
				if !strings.Contains(msg, want) {
					t.Errorf("error %q does not contain %q", msg, want)
				}
			}
		})
	}
}

func TestSchema_ValidateJSON_Malformed(t *testing.T) {
	s := MustCompile("person.json", []byte(personSchema))
	err := s.ValidateJSON([]byte(`{ invalid json }`))
	if err == nil || !strings.Contains(err.Error(), "invalid JSON") {
		t.Errorf("ValidateJSON() error = %v, want invalid JSON", err)
	}
}

func TestSchema_ViolationsOrdered(t *testing.T) {
	s := MustCompile("person.json", []byte(personSchema))
	err := s.Validate(map[string]any{"name": "Jo", "age": float64(16)})

	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("error type = %T, want ValidationErrors", err)
	}
	if len(verrs) != 2 {
		t.Fatalf("violations = %d (%v), want 2", len(verrs), verrs)
	}

	var first *Violation
	if !errors.As(verrs[0], &first) {
		t.Fatalf("violation type = %T, want *Violation", verrs[0])
	}
	if first.Location != "/age" {
		t.Errorf("first location = %q, want /age", first.Location)
	}
}

func TestValidationErrors_Error(t *testing.T) {
	var empty ValidationErrors
	if got := empty.Error(); got != "" {
		t.Errorf("Error() = %q, want empty", got)
	}

	ve := ValidationErrors{
		&Violation{Location: "/a", Message: "bad"},
		&Violation{Message: "worse"},
	}
	if got, want := ve.Error(), "/a: bad; /: worse"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
