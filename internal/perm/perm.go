// Package perm loads role profiles and filters compiled statements
// against them. Access is granted per type expression, not per column:
// a role that may not touch Confidence values is denied every statement
// carrying one, whatever the column is called.
package perm

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/refineql/refineql/internal/ir"
	"github.com/refineql/refineql/internal/parser"
	"github.com/refineql/refineql/internal/proof"
	"github.com/refineql/refineql/internal/types"
)

// Role is one loaded permission profile entry.
type Role struct {
	ID             string
	Tier           proof.Tier
	Whitelist      []types.TypeExpr // empty = unrestricted
	SchemaMutation bool
}

// Metadata builds the permission metadata stamped onto IR statements
// compiled for a caller holding this role.
func (r Role) Metadata(caller uuid.UUID) ir.PermissionMetadata {
	return ir.PermissionMetadata{
		CallerID:  caller,
		RoleID:    r.ID,
		Tier:      r.Tier,
		Whitelist: r.Whitelist,
	}
}

// Profiles is a parsed role file.
type Profiles struct {
	roles map[string]Role
}

// Role looks up a role by name.
func (p *Profiles) Role(name string) (Role, error) {
	r, ok := p.roles[name]
	if !ok {
		return Role{}, &UnknownRoleError{Name: name}
	}
	return r, nil
}

// RoleNames lists the loaded role names in map order. Callers needing a
// stable order should sort.
func (p *Profiles) RoleNames() []string {
	out := make([]string, 0, len(p.roles))
	for name := range p.roles {
		out = append(out, name)
	}
	return out
}

type profileFile struct {
	Roles map[string]roleEntry `yaml:"roles"`
}

type roleEntry struct {
	Tier           string   `yaml:"tier"`
	AllowedTypes   []string `yaml:"allowed_types"`
	SchemaMutation bool     `yaml:"schema_mutation"`
}

// Load parses a YAML role file. Type expressions in allowed_types use
// the surface type syntax and are rejected when malformed.
func Load(data []byte) (*Profiles, error) {
	var f profileFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing role file: %w", err)
	}
	if len(f.Roles) == 0 {
		return nil, fmt.Errorf("role file defines no roles")
	}
	p := &Profiles{roles: make(map[string]Role, len(f.Roles))}
	for name, entry := range f.Roles {
		role := Role{ID: name, SchemaMutation: entry.SchemaMutation}
		if entry.Tier != "" {
			tier, err := proof.ParseTier(entry.Tier)
			if err != nil {
				return nil, fmt.Errorf("role %q: %w", name, err)
			}
			role.Tier = tier
		} else {
			role.Tier = proof.TierRuntime
		}
		for _, src := range entry.AllowedTypes {
			t, err := parser.ParseTypeExprString(src)
			if err != nil {
				return nil, fmt.Errorf("role %q: allowed type %q: %w", name, src, err)
			}
			role.Whitelist = append(role.Whitelist, t)
		}
		p.roles[name] = role
	}
	return p, nil
}

// LoadFile reads and parses a YAML role file from disk.
func LoadFile(path string) (*Profiles, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading role file: %w", err)
	}
	return Load(data)
}

// UnknownRoleError reports a lookup of a role the profile does not
// define.
type UnknownRoleError struct {
	Name string
}

// Error implements the error interface.
func (e *UnknownRoleError) Error() string {
	return fmt.Sprintf("unknown role %q", e.Name)
}

// DeniedError reports a statement carrying a type outside the caller's
// whitelist, or a schema mutation by a role without that right.
type DeniedError struct {
	Role   string
	Caller uuid.UUID
	Type   types.TypeExpr // nil for schema-mutation denials
	Stmt   ir.StatementKind
}

// Error implements the error interface.
func (e *DeniedError) Error() string {
	if e.Type == nil {
		return fmt.Sprintf("role %q may not run %s statements", e.Role, e.Stmt)
	}
	return fmt.Sprintf("role %q may not access values of type %s", e.Role, e.Type)
}

// Validate checks a compiled statement against its own permission
// metadata. Every type the statement carries must be whitelisted, and
// schema mutations need the schema_mutation right.
func Validate(stmt ir.Statement, role Role) error {
	meta := stmt.Meta()
	switch stmt.Kind() {
	case ir.KindCreate, ir.KindNormalize:
		if !role.SchemaMutation {
			return &DeniedError{Role: role.ID, Caller: meta.CallerID, Stmt: stmt.Kind()}
		}
	}
	for _, t := range stmt.ValueTypes() {
		if !meta.Allows(t) {
			return &DeniedError{Role: role.ID, Caller: meta.CallerID, Type: t, Stmt: stmt.Kind()}
		}
	}
	return nil
}
