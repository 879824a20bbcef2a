// Package jsonpath evaluates a subset of JSONPath ($.a.b[0].c) against
// response bodies.
package jsonpath

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	// ErrNotFound is returned when a path does not exist in the body.
	ErrNotFound = errors.New("path not found")

	// ErrInvalidJSON is returned for bodies that are not valid JSON.
	ErrInvalidJSON = errors.New("invalid JSON")
)

// Path is a parsed JSONPath expression.
type Path struct {
	expr  string
	gpath string
}

// Parse parses a JSONPath expression such as "$.trade.tradeId" or
// "$.fees[0].amount". A leading "$" is optional.
func Parse(expr string) (Path, error) {
	if strings.TrimSpace(expr) == "" {
		return Path{}, errors.New("empty JSONPath expression")
	}
	return Path{expr: expr, gpath: convertToGjsonPath(expr)}, nil
}

// MustParse is like Parse but panics on error.
func MustParse(expr string) Path {
	p, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Path) String() string {
	return p.expr
}

// Lookup returns the value at p. Strings are returned unquoted, other
// values as raw JSON; null is "null".
func (p Path) Lookup(body []byte) (string, error) {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return "", ErrInvalidJSON
	}
	result := gjson.GetBytes(body, p.gpath)
	if !result.Exists() {
		return "", fmt.Errorf("%w: %s", ErrNotFound, p.expr)
	}
	if result.Type == gjson.Null {
		return "null", nil
	}
	return result.String(), nil
}

// Exists reports whether body is valid JSON with a value at p. A JSON null
// counts as present.
func (p Path) Exists(body []byte) bool {
	_, err := p.Lookup(body)
	return err == nil
}

// Equals reports whether the value at p renders as want.
func (p Path) Equals(body []byte, want string) bool {
	got, err := p.Lookup(body)
	return err == nil && got == want
}

// Extract parses expr and looks it up in body.
func Extract(body []byte, expr string) (string, error) {
	p, err := Parse(expr)
	if err != nil {
		return "", err
	}
	return p.Lookup(body)
}

// convertToGjsonPath converts a JSONPath expression to a gjson path format
func convertToGjsonPath(path string) string {
	path = strings.TrimSpace(path)
	path = strings.TrimPrefix(path, "$")
	path = strings.TrimPrefix(path, ".")
	if path == "" {
		return "@this"
	}

	// Quoted bracket keys: ['name'] and ["name"].
	for _, q := range []string{"'", `"`} {
		path = strings.ReplaceAll(path, "["+q, ".")
		path = strings.ReplaceAll(path, q+"]", "")
	}

	// Index brackets: a[0][1] -> a.0.1
	path = strings.ReplaceAll(path, "[", ".")
	path = strings.ReplaceAll(path, "]", "")
	return strings.TrimPrefix(path, ".")
}
