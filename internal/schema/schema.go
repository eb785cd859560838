// Package schema models collection definitions and the registry that
// serves them.
//
// Schemas are loaded once per compilation session from an external
// registry and are read-only afterward. The production registry reads
// CUE documents; tests and the CLI can use a static in-memory registry.
package schema

import (
	"fmt"

	"github.com/refineql/refineql/internal/types"
)

// Column is one named, typed column of a collection.
type Column struct {
	Name       string
	Type       types.TypeExpr
	PrimaryKey bool
	Unique     bool
}

// Schema is a named collection definition: an ordered column list, free-form
// constraint annotations, and an optional target normal-form tag.
type Schema struct {
	Name        string
	Columns     []Column
	Constraints []string
	NormalForm  string // "NF1".."BCNF", or "" when untargeted
}

// Column returns the named column, or false.
func (s *Schema) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames returns column names in declaration order.
func (s *Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Validate checks internal consistency: non-empty name, at least one
// column, no duplicate column names.
func (s *Schema) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("schema has no name")
	}
	if len(s.Columns) == 0 {
		return fmt.Errorf("schema %q has no columns", s.Name)
	}
	seen := make(map[string]bool, len(s.Columns))
	for _, c := range s.Columns {
		if c.Name == "" {
			return fmt.Errorf("schema %q has an unnamed column", s.Name)
		}
		if seen[c.Name] {
			return fmt.Errorf("schema %q declares column %q twice", s.Name, c.Name)
		}
		seen[c.Name] = true
		if c.Type == nil {
			return fmt.Errorf("schema %q column %q has no type", s.Name, c.Name)
		}
	}
	return nil
}

// NotFoundError reports a collection the registry does not know.
type NotFoundError struct {
	Name string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("schema %q not found", e.Name)
}

// UnavailableError reports a registry that could not be reached or read:
// cancellation, timeout, or a malformed registry document.
type UnavailableError struct {
	Name string
	Err  error
}

// Error implements the error interface.
func (e *UnavailableError) Error() string {
	return fmt.Sprintf("schema registry unavailable for %q: %v", e.Name, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *UnavailableError) Unwrap() error { return e.Err }
