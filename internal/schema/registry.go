package schema

import (
	"context"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/refineql/refineql/internal/parser"
)

// Registry serves collection schemas by name.
//
// GetSchema blocks until the schema is available, the context is done, or
// the registry fails. Callers get *NotFoundError for unknown names and
// *UnavailableError for everything else that goes wrong. Implementations
// must be safe for concurrent use; the compile pipeline caches results
// per compilation, so GetSchema is called at most once per name per
// session.
type Registry interface {
	GetSchema(ctx context.Context, name string) (*Schema, error)
}

// Static is an in-memory Registry for tests and embedded use.
type Static struct {
	schemas map[string]*Schema
}

// NewStatic creates a Static registry over the given schemas.
func NewStatic(schemas ...*Schema) *Static {
	m := make(map[string]*Schema, len(schemas))
	for _, s := range schemas {
		m[s.Name] = s
	}
	return &Static{schemas: m}
}

// GetSchema implements Registry.
func (r *Static) GetSchema(ctx context.Context, name string) (*Schema, error) {
	if err := ctx.Err(); err != nil {
		return nil, &UnavailableError{Name: name, Err: err}
	}
	s, ok := r.schemas[name]
	if !ok {
		return nil, &NotFoundError{Name: name}
	}
	return s, nil
}

// CUERegistry loads collection schemas from a CUE document of the form:
//
//	collections: {
//	    evidence: {
//	        normal_form: "NF3"
//	        columns: [
//	            {name: "id",    type: "UUID", primary_key: true},
//	            {name: "title", type: "NonEmptyText"},
//	            {name: "score", type: "BoundedNat[0,100]"},
//	        ]
//	    }
//	}
//
// Column types are written in the catalogue's surface syntax and parsed
// through the type-expression grammar, so the registry cannot introduce
// types outside the catalogue.
type CUERegistry struct {
	root cue.Value
}

// NewCUERegistry compiles the given CUE source. A malformed document
// fails every subsequent lookup with *UnavailableError rather than
// serving a partial registry.
func NewCUERegistry(src []byte) *CUERegistry {
	ctx := cuecontext.New()
	return &CUERegistry{root: ctx.CompileBytes(src)}
}

// GetSchema implements Registry. The lookup itself is CPU-bound and fast;
// the context check makes cancellation and deadlines effective for
// callers that treat the registry as a remote collaborator.
func (r *CUERegistry) GetSchema(ctx context.Context, name string) (*Schema, error) {
	if err := ctx.Err(); err != nil {
		return nil, &UnavailableError{Name: name, Err: err}
	}
	if err := r.root.Err(); err != nil {
		return nil, &UnavailableError{Name: name, Err: err}
	}

	v := r.root.LookupPath(cue.ParsePath("collections." + name))
	if !v.Exists() {
		return nil, &NotFoundError{Name: name}
	}

	s := &Schema{Name: name}

	if nf := v.LookupPath(cue.ParsePath("normal_form")); nf.Exists() {
		tag, err := nf.String()
		if err != nil {
			return nil, &UnavailableError{Name: name, Err: err}
		}
		s.NormalForm = tag
	}

	cols := v.LookupPath(cue.ParsePath("columns"))
	if !cols.Exists() {
		return nil, &UnavailableError{Name: name, Err: missingField(name, "columns")}
	}
	iter, err := cols.List()
	if err != nil {
		return nil, &UnavailableError{Name: name, Err: err}
	}
	for iter.Next() {
		col, err := parseColumn(name, iter.Value())
		if err != nil {
			return nil, err
		}
		s.Columns = append(s.Columns, col)
	}

	if constraints := v.LookupPath(cue.ParsePath("constraints")); constraints.Exists() {
		citer, err := constraints.List()
		if err != nil {
			return nil, &UnavailableError{Name: name, Err: err}
		}
		for citer.Next() {
			c, err := citer.Value().String()
			if err != nil {
				return nil, &UnavailableError{Name: name, Err: err}
			}
			s.Constraints = append(s.Constraints, c)
		}
	}

	if err := s.Validate(); err != nil {
		return nil, &UnavailableError{Name: name, Err: err}
	}
	return s, nil
}

func parseColumn(schemaName string, v cue.Value) (Column, error) {
	col := Column{}

	cn := v.LookupPath(cue.ParsePath("name"))
	if !cn.Exists() {
		return col, &UnavailableError{Name: schemaName, Err: missingField(schemaName, "column name")}
	}
	name, err := cn.String()
	if err != nil {
		return col, &UnavailableError{Name: schemaName, Err: err}
	}
	col.Name = name

	ct := v.LookupPath(cue.ParsePath("type"))
	if !ct.Exists() {
		return col, &UnavailableError{Name: schemaName, Err: missingField(schemaName, "column type")}
	}
	typStr, err := ct.String()
	if err != nil {
		return col, &UnavailableError{Name: schemaName, Err: err}
	}
	typ, err := parser.ParseTypeExprString(typStr)
	if err != nil {
		return col, &UnavailableError{Name: schemaName, Err: err}
	}
	col.Type = typ

	if pk := v.LookupPath(cue.ParsePath("primary_key")); pk.Exists() {
		b, err := pk.Bool()
		if err != nil {
			return col, &UnavailableError{Name: schemaName, Err: err}
		}
		col.PrimaryKey = b
	}
	if uq := v.LookupPath(cue.ParsePath("unique")); uq.Exists() {
		b, err := uq.Bool()
		if err != nil {
			return col, &UnavailableError{Name: schemaName, Err: err}
		}
		col.Unique = b
	}
	return col, nil
}

type registryFieldError struct {
	schema string
	field  string
}

func (e *registryFieldError) Error() string {
	return "schema " + e.schema + ": missing " + e.field
}

func missingField(schema, field string) error {
	return &registryFieldError{schema: schema, field: field}
}
