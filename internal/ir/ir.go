package ir

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/refineql/refineql/internal/proof"
	"github.com/refineql/refineql/internal/schema"
	"github.com/refineql/refineql/internal/types"
)

// PermissionMetadata identifies the caller a statement was compiled for
// and the validation policy that applies to it. Attached to every IR
// statement.
type PermissionMetadata struct {
	CallerID uuid.UUID
	RoleID   string
	Tier     proof.Tier

	// Whitelist lists the type expressions the caller may touch.
	// Empty means unrestricted.
	Whitelist []types.TypeExpr
}

// Allows reports whether the whitelist admits a type. Enforcement is on
// the type, not the column name, so a schema change that alters a
// column's type re-evaluates every role's access automatically.
func (m PermissionMetadata) Allows(t types.TypeExpr) bool {
	if len(m.Whitelist) == 0 {
		return true
	}
	for _, w := range m.Whitelist {
		if w.Equal(t) {
			return true
		}
	}
	return false
}

// Provenance is the audit metadata of a mutating statement.
type Provenance struct {
	Actor     string
	Rationale string
	At        time.Time
}

// MissingProvenanceError reports a mutation that lacks its mandatory
// rationale or row-selecting predicate.
type MissingProvenanceError struct {
	Stmt   string // "DELETE" or "UPDATE"
	Table  string
	Reason string
}

// Error implements the error interface.
func (e *MissingProvenanceError) Error() string {
	return fmt.Sprintf("%s on %q: %s", e.Stmt, e.Table, e.Reason)
}

// StatementKind tags the IR union members.
type StatementKind string

// Statement kinds.
const (
	KindInsert    StatementKind = "insert"
	KindSelect    StatementKind = "select"
	KindUpdate    StatementKind = "update"
	KindDelete    StatementKind = "delete"
	KindNormalize StatementKind = "normalize"
	KindCreate    StatementKind = "create"
)

// Statement is the sealed interface over the IR union. Implementations
// are immutable; all state is set by the constructor.
type Statement interface {
	irStatement() // Sealed - only types in this package implement it

	// Kind tags the union member.
	Kind() StatementKind

	// Table names the collection the statement targets.
	Table() string

	// Meta returns the statement's permission metadata.
	Meta() PermissionMetadata

	// ValueTypes lists the type expression of every value the statement
	// carries, predicates included. The permission validator checks this
	// list against the caller's whitelist.
	ValueTypes() []types.TypeExpr

	// Deferred lists obligations postponed to the runtime-tier
	// pre-execution recheck. Empty for strict-tier statements.
	Deferred() []proof.Obligation
}

// ColumnValue binds one resolved column to its verified typed value.
type ColumnValue struct {
	Column string
	Value  types.TypedValue
}

// Insert is a compiled INSERT: schema-bound rows of verified values.
type Insert struct {
	schema   *schema.Schema
	rows     [][]ColumnValue
	blobs    []proof.Blob
	deferred []proof.Obligation
	prov     *Provenance
	meta     PermissionMetadata
}

// NewInsert builds an Insert. Every row must bind the same columns and
// every bound column must exist in the schema with the value's type.
func NewInsert(s *schema.Schema, rows [][]ColumnValue, blobs []proof.Blob, deferred []proof.Obligation, prov *Provenance, meta PermissionMetadata) (*Insert, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("insert into %q has no rows", s.Name)
	}
	for _, row := range rows {
		for _, cv := range row {
			col, ok := s.Column(cv.Column)
			if !ok {
				return nil, fmt.Errorf("insert into %q references unknown column %q", s.Name, cv.Column)
			}
			if !col.Type.Equal(cv.Value.Type()) {
				return nil, fmt.Errorf("insert into %q column %q: value type %s does not match schema type %s",
					s.Name, cv.Column, cv.Value.Type(), col.Type)
			}
		}
	}
	return &Insert{
		schema:   s,
		rows:     cloneRows(rows),
		blobs:    cloneBlobs(blobs),
		deferred: cloneObligations(deferred),
		prov:     prov,
		meta:     meta,
	}, nil
}

func (*Insert) irStatement() {}

// Kind implements Statement.
func (*Insert) Kind() StatementKind { return KindInsert }

// Table implements Statement.
func (i *Insert) Table() string { return i.schema.Name }

// Schema returns the bound collection schema.
func (i *Insert) Schema() *schema.Schema { return i.schema }

// Rows returns the resolved value rows.
func (i *Insert) Rows() [][]ColumnValue { return cloneRows(i.rows) }

// Blobs returns the proof audit records.
func (i *Insert) Blobs() []proof.Blob { return cloneBlobs(i.blobs) }

// Provenance returns the optional audit metadata.
func (i *Insert) Provenance() *Provenance { return i.prov }

// Meta implements Statement.
func (i *Insert) Meta() PermissionMetadata { return i.meta }

// Deferred implements Statement.
func (i *Insert) Deferred() []proof.Obligation { return cloneObligations(i.deferred) }

// ValueTypes implements Statement.
func (i *Insert) ValueTypes() []types.TypeExpr {
	var out []types.TypeExpr
	for _, row := range i.rows {
		for _, cv := range row {
			out = append(out, cv.Value.Type())
		}
	}
	return out
}

// Select is a compiled SELECT.
type Select struct {
	schema   *schema.Schema
	columns  []string // empty = all columns
	distinct bool
	where    Predicate // nil = unfiltered
	orderBy  []OrderKey
	limit    int64 // -1 = no limit
	meta     PermissionMetadata
}

// OrderKey is one resolved ORDER BY key.
type OrderKey struct {
	Column string
	Desc   bool
}

// NewSelect builds a Select. Projected and ordered columns must exist.
func NewSelect(s *schema.Schema, columns []string, distinct bool, where Predicate, orderBy []OrderKey, limit int64, meta PermissionMetadata) (*Select, error) {
	for _, c := range columns {
		if _, ok := s.Column(c); !ok {
			return nil, fmt.Errorf("select from %q references unknown column %q", s.Name, c)
		}
	}
	for _, k := range orderBy {
		if _, ok := s.Column(k.Column); !ok {
			return nil, fmt.Errorf("select from %q orders by unknown column %q", s.Name, k.Column)
		}
	}
	if err := checkPredicate(s, where); err != nil {
		return nil, err
	}
	return &Select{
		schema:   s,
		columns:  append([]string(nil), columns...),
		distinct: distinct,
		where:    where,
		orderBy:  append([]OrderKey(nil), orderBy...),
		limit:    limit,
		meta:     meta,
	}, nil
}

func (*Select) irStatement() {}

// Kind implements Statement.
func (*Select) Kind() StatementKind { return KindSelect }

// Table implements Statement.
func (s *Select) Table() string { return s.schema.Name }

// Schema returns the bound collection schema.
func (s *Select) Schema() *schema.Schema { return s.schema }

// ProjectedColumns returns the projection, or every schema column when
// the statement selected *.
func (s *Select) ProjectedColumns() []string {
	if len(s.columns) == 0 {
		return s.schema.ColumnNames()
	}
	return append([]string(nil), s.columns...)
}

// Distinct reports whether duplicates are collapsed.
func (s *Select) Distinct() bool { return s.distinct }

// Where returns the filter predicate, nil when absent.
func (s *Select) Where() Predicate { return s.where }

// OrderBy returns the resolved ordering keys.
func (s *Select) OrderBy() []OrderKey { return append([]OrderKey(nil), s.orderBy...) }

// Limit returns the row limit, -1 when absent.
func (s *Select) Limit() int64 { return s.limit }

// Meta implements Statement.
func (s *Select) Meta() PermissionMetadata { return s.meta }

// Deferred implements Statement.
func (s *Select) Deferred() []proof.Obligation { return nil }

// ValueTypes implements Statement.
func (s *Select) ValueTypes() []types.TypeExpr {
	return typesOfValues(PredicateValues(s.where))
}

// Update is a compiled UPDATE. Constructed only with a predicate and a
// non-empty rationale: unconditional or unexplained updates are
// structurally unrepresentable.
type Update struct {
	schema   *schema.Schema
	sets     []ColumnValue
	where    Predicate
	blobs    []proof.Blob
	deferred []proof.Obligation
	prov     Provenance
	meta     PermissionMetadata
}

// NewUpdate builds an Update.
func NewUpdate(s *schema.Schema, sets []ColumnValue, where Predicate, blobs []proof.Blob, deferred []proof.Obligation, prov Provenance, meta PermissionMetadata) (*Update, error) {
	if where == nil {
		return nil, &MissingProvenanceError{Stmt: "UPDATE", Table: s.Name, Reason: "no row-selecting predicate"}
	}
	if prov.Rationale == "" {
		return nil, &MissingProvenanceError{Stmt: "UPDATE", Table: s.Name, Reason: "rationale is empty"}
	}
	if len(sets) == 0 {
		return nil, fmt.Errorf("update of %q sets no columns", s.Name)
	}
	for _, cv := range sets {
		col, ok := s.Column(cv.Column)
		if !ok {
			return nil, fmt.Errorf("update of %q references unknown column %q", s.Name, cv.Column)
		}
		if !col.Type.Equal(cv.Value.Type()) {
			return nil, fmt.Errorf("update of %q column %q: value type %s does not match schema type %s",
				s.Name, cv.Column, cv.Value.Type(), col.Type)
		}
	}
	if err := checkPredicate(s, where); err != nil {
		return nil, err
	}
	return &Update{
		schema:   s,
		sets:     append([]ColumnValue(nil), sets...),
		where:    where,
		blobs:    cloneBlobs(blobs),
		deferred: cloneObligations(deferred),
		prov:     prov,
		meta:     meta,
	}, nil
}

func (*Update) irStatement() {}

// Kind implements Statement.
func (*Update) Kind() StatementKind { return KindUpdate }

// Table implements Statement.
func (u *Update) Table() string { return u.schema.Name }

// Schema returns the bound collection schema.
func (u *Update) Schema() *schema.Schema { return u.schema }

// Sets returns the resolved assignments.
func (u *Update) Sets() []ColumnValue { return append([]ColumnValue(nil), u.sets...) }

// Where returns the row-selecting predicate. Never nil.
func (u *Update) Where() Predicate { return u.where }

// Blobs returns the proof audit records.
func (u *Update) Blobs() []proof.Blob { return cloneBlobs(u.blobs) }

// Provenance returns the mandatory audit metadata.
func (u *Update) Provenance() Provenance { return u.prov }

// Meta implements Statement.
func (u *Update) Meta() PermissionMetadata { return u.meta }

// Deferred implements Statement.
func (u *Update) Deferred() []proof.Obligation { return cloneObligations(u.deferred) }

// ValueTypes implements Statement.
func (u *Update) ValueTypes() []types.TypeExpr {
	var out []types.TypeExpr
	for _, cv := range u.sets {
		out = append(out, cv.Value.Type())
	}
	return append(out, typesOfValues(PredicateValues(u.where))...)
}

// Delete is a compiled DELETE. Like Update, it cannot exist without a
// predicate and rationale.
type Delete struct {
	schema *schema.Schema
	where  Predicate
	prov   Provenance
	meta   PermissionMetadata
}

// NewDelete builds a Delete.
func NewDelete(s *schema.Schema, where Predicate, prov Provenance, meta PermissionMetadata) (*Delete, error) {
	if where == nil {
		return nil, &MissingProvenanceError{Stmt: "DELETE", Table: s.Name, Reason: "no row-selecting predicate"}
	}
	if prov.Rationale == "" {
		return nil, &MissingProvenanceError{Stmt: "DELETE", Table: s.Name, Reason: "rationale is empty"}
	}
	if err := checkPredicate(s, where); err != nil {
		return nil, err
	}
	return &Delete{schema: s, where: where, prov: prov, meta: meta}, nil
}

func (*Delete) irStatement() {}

// Kind implements Statement.
func (*Delete) Kind() StatementKind { return KindDelete }

// Table implements Statement.
func (d *Delete) Table() string { return d.schema.Name }

// Schema returns the bound collection schema.
func (d *Delete) Schema() *schema.Schema { return d.schema }

// Where returns the row-selecting predicate. Never nil.
func (d *Delete) Where() Predicate { return d.where }

// Provenance returns the mandatory audit metadata.
func (d *Delete) Provenance() Provenance { return d.prov }

// Meta implements Statement.
func (d *Delete) Meta() PermissionMetadata { return d.meta }

// Deferred implements Statement.
func (d *Delete) Deferred() []proof.Obligation { return nil }

// ValueTypes implements Statement.
func (d *Delete) ValueTypes() []types.TypeExpr {
	return typesOfValues(PredicateValues(d.where))
}

// CreateTable is a compiled CREATE TABLE carrying the new collection's
// definition.
type CreateTable struct {
	def  *schema.Schema
	meta PermissionMetadata
}

// NewCreateTable builds a CreateTable from a validated definition.
func NewCreateTable(def *schema.Schema, meta PermissionMetadata) (*CreateTable, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &CreateTable{def: def, meta: meta}, nil
}

func (*CreateTable) irStatement() {}

// Kind implements Statement.
func (*CreateTable) Kind() StatementKind { return KindCreate }

// Table implements Statement.
func (c *CreateTable) Table() string { return c.def.Name }

// Definition returns the collection definition being created.
func (c *CreateTable) Definition() *schema.Schema { return c.def }

// Meta implements Statement.
func (c *CreateTable) Meta() PermissionMetadata { return c.meta }

// Deferred implements Statement.
func (c *CreateTable) Deferred() []proof.Obligation { return nil }

// ValueTypes implements Statement.
func (c *CreateTable) ValueTypes() []types.TypeExpr {
	out := make([]types.TypeExpr, len(c.def.Columns))
	for i, col := range c.def.Columns {
		out[i] = col.Type
	}
	return out
}

// Normalize is a compiled NORMALIZE TABLE ... TO NFx.
type Normalize struct {
	schema *schema.Schema
	target string
	meta   PermissionMetadata
}

// NewNormalize builds a Normalize.
func NewNormalize(s *schema.Schema, target string, meta PermissionMetadata) (*Normalize, error) {
	if target == "" {
		return nil, fmt.Errorf("normalize of %q has no target normal form", s.Name)
	}
	return &Normalize{schema: s, target: target, meta: meta}, nil
}

func (*Normalize) irStatement() {}

// Kind implements Statement.
func (*Normalize) Kind() StatementKind { return KindNormalize }

// Table implements Statement.
func (n *Normalize) Table() string { return n.schema.Name }

// Schema returns the bound collection schema.
func (n *Normalize) Schema() *schema.Schema { return n.schema }

// Target returns the target normal-form tag.
func (n *Normalize) Target() string { return n.target }

// Meta implements Statement.
func (n *Normalize) Meta() PermissionMetadata { return n.meta }

// Deferred implements Statement.
func (n *Normalize) Deferred() []proof.Obligation { return nil }

// ValueTypes implements Statement.
func (n *Normalize) ValueTypes() []types.TypeExpr { return nil }

// checkPredicate verifies every column a predicate references exists in
// the schema.
func checkPredicate(s *schema.Schema, p Predicate) error {
	if p == nil {
		return nil
	}
	for _, c := range p.Columns() {
		if _, ok := s.Column(c); !ok {
			return fmt.Errorf("predicate references unknown column %q in %q", c, s.Name)
		}
	}
	return nil
}

func typesOfValues(vals []types.TypedValue) []types.TypeExpr {
	out := make([]types.TypeExpr, 0, len(vals))
	for _, v := range vals {
		out = append(out, v.Type())
	}
	return out
}

func cloneRows(rows [][]ColumnValue) [][]ColumnValue {
	out := make([][]ColumnValue, len(rows))
	for i, row := range rows {
		out[i] = append([]ColumnValue(nil), row...)
	}
	return out
}

func cloneBlobs(blobs []proof.Blob) []proof.Blob {
	return append([]proof.Blob(nil), blobs...)
}

func cloneObligations(obs []proof.Obligation) []proof.Obligation {
	return append([]proof.Obligation(nil), obs...)
}
