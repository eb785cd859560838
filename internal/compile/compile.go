// Package compile orchestrates the front-end pipeline: lexing, parsing,
// type inference, proof discharge, IR generation and permission
// filtering. One Compiler handles one compilation session; sessions
// share nothing, so independent statements may be compiled in parallel
// by independent Compilers.
package compile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/refineql/refineql/internal/ast"
	"github.com/refineql/refineql/internal/infer"
	"github.com/refineql/refineql/internal/ir"
	"github.com/refineql/refineql/internal/parser"
	"github.com/refineql/refineql/internal/perm"
	"github.com/refineql/refineql/internal/proof"
	"github.com/refineql/refineql/internal/schema"
)

// Compiler drives source text through the pipeline. Schemas are fetched
// from the registry once per session and cached; the cache never
// invalidates, so a schema change needs a fresh Compiler.
type Compiler struct {
	registry schema.Registry
	engine   *proof.Engine
	role     perm.Role
	caller   uuid.UUID
	now      func() time.Time

	schemas map[string]*schema.Schema
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithRole compiles on behalf of a permission role. The zero role is
// unrestricted.
func WithRole(r perm.Role) Option {
	return func(c *Compiler) { c.role = r }
}

// WithCaller stamps the caller id onto produced IR.
func WithCaller(id uuid.UUID) Option {
	return func(c *Compiler) { c.caller = id }
}

// WithClock overrides the provenance timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Compiler) { c.now = now }
}

// New builds a Compiler over a schema registry.
func New(registry schema.Registry, opts ...Option) *Compiler {
	c := &Compiler{
		registry: registry,
		engine:   proof.NewEngine(),
		now:      time.Now,
		schemas:  make(map[string]*schema.Schema),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Compile runs one statement through the full pipeline.
func (c *Compiler) Compile(ctx context.Context, src string) (ir.Statement, error) {
	stmt, err := parser.ParseSource(src)
	if err != nil {
		return nil, err
	}
	return c.lower(ctx, stmt)
}

// BatchResult pairs one batch statement with its outcome. Statements in
// a batch are independent: a failed statement never blocks the others.
type BatchResult struct {
	Source string
	Stmt   ir.Statement
	Err    error
}

// CompileBatch compiles a semicolon-separated batch.
func (c *Compiler) CompileBatch(ctx context.Context, src string) []BatchResult {
	parsed := parser.ParseBatch(src)
	results := make([]BatchResult, 0, len(parsed))
	for _, p := range parsed {
		r := BatchResult{Source: p.Source, Err: p.Err}
		if r.Err == nil {
			r.Stmt, r.Err = c.lower(ctx, p.Stmt)
		}
		results = append(results, r)
	}
	return results
}

func (c *Compiler) lower(ctx context.Context, stmt ast.Statement) (ir.Statement, error) {
	out, err := c.lowerStatement(ctx, stmt)
	if err != nil {
		return nil, err
	}
	if c.role.ID != "" {
		if err := perm.Validate(out, c.role); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (c *Compiler) lowerStatement(ctx context.Context, stmt ast.Statement) (ir.Statement, error) {
	switch s := stmt.(type) {
	case ast.CreateTable:
		return c.lowerCreate(s)
	case ast.Insert:
		return c.lowerInsert(ctx, s)
	case ast.Select:
		return c.lowerSelect(ctx, s)
	case ast.Update:
		return c.lowerUpdate(ctx, s)
	case ast.Delete:
		return c.lowerDelete(ctx, s)
	case ast.Normalize:
		return c.lowerNormalize(ctx, s)
	default:
		return nil, fmt.Errorf("%s: unsupported statement %T", stmt.Pos(), stmt)
	}
}

// schemaFor resolves a collection schema, consulting the session cache
// before the registry.
func (c *Compiler) schemaFor(ctx context.Context, name string) (*schema.Schema, error) {
	if s, ok := c.schemas[name]; ok {
		return s, nil
	}
	s, err := c.registry.GetSchema(ctx, name)
	if err != nil {
		return nil, err
	}
	c.schemas[name] = s
	return s, nil
}

// tierFor picks the enforcement tier: explicit statements default to
// strict, inferred to runtime, and a stricter role tier always wins.
func (c *Compiler) tierFor(mode ast.Mode) proof.Tier {
	t := proof.TierRuntime
	if mode == ast.ModeExplicit {
		t = proof.TierStrict
	}
	if c.role.Tier > t {
		t = c.role.Tier
	}
	return t
}

func (c *Compiler) meta(tier proof.Tier) ir.PermissionMetadata {
	m := c.role.Metadata(c.caller)
	m.Tier = tier
	return m
}

func (c *Compiler) lowerCreate(s ast.CreateTable) (ir.Statement, error) {
	cols := make([]schema.Column, len(s.Columns))
	for i, cd := range s.Columns {
		cols[i] = schema.Column{
			Name:       cd.Name,
			Type:       cd.Type,
			PrimaryKey: cd.PrimaryKey,
			Unique:     cd.Unique,
		}
	}
	def := &schema.Schema{Name: s.Table, Columns: cols, NormalForm: s.NormalForm}
	ct, err := ir.NewCreateTable(def, c.meta(c.tierFor(s.Mode)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Position, err)
	}
	// CREATE TABLE defines the schema it names; later statements in the
	// session resolve against it without a registry round trip.
	c.schemas[s.Table] = def
	return ct, nil
}

// resolveValue checks an optional explicit annotation against the
// declared column type and infers the typed value.
func (c *Compiler) resolveValue(sch *schema.Schema, colName string, arg ast.ValueArg) (infer.Result, error) {
	col, ok := sch.Column(colName)
	if !ok {
		return infer.Result{}, fmt.Errorf("unknown column %q in %q", colName, sch.Name)
	}
	if arg.Annotated() && !arg.Type.Equal(col.Type) {
		return infer.Result{}, &AnnotationError{
			Column:    colName,
			Declared:  col.Type,
			Annotated: arg.Type,
			Pos:       arg.Expr.ValuePos(),
		}
	}
	return infer.Infer(colName, col.Type, arg.Expr, c.now)
}

// discharge runs the obligation battery and enforces the tier.
func (c *Compiler) discharge(obs []proof.Obligation, clause *ast.ProofClause, tier proof.Tier) ([]proof.Blob, []proof.Obligation, error) {
	manual := make(map[string]bool)
	if clause != nil {
		for _, e := range clause.Entries {
			if e.Mode == ast.DischargeManual {
				manual[e.Name] = true
			}
		}
	}
	discharged, blobs := c.engine.DischargeAll(obs, manual)
	deferred, err := proof.Enforce(tier, discharged)
	if err != nil {
		return nil, nil, err
	}
	return blobs, deferred, nil
}

func (c *Compiler) provenance(actor, rationale string) *ir.Provenance {
	if actor == "" && rationale == "" {
		return nil
	}
	return &ir.Provenance{Actor: actor, Rationale: rationale, At: c.now().UTC()}
}

func (c *Compiler) lowerInsert(ctx context.Context, s ast.Insert) (ir.Statement, error) {
	sch, err := c.schemaFor(ctx, s.Table)
	if err != nil {
		return nil, err
	}
	tier := c.tierFor(s.Mode)

	var obligations []proof.Obligation
	rows := make([][]ir.ColumnValue, len(s.Rows))
	for ri, row := range s.Rows {
		rows[ri] = make([]ir.ColumnValue, len(row))
		for ci, arg := range row {
			colName := s.Columns[ci]
			res, err := c.resolveValue(sch, colName, arg)
			if err != nil {
				return nil, err
			}
			rows[ri][ci] = ir.ColumnValue{Column: colName, Value: res.Value}
			obligations = append(obligations, proof.ObligationsFor(colName, res.Value)...)
		}
	}

	blobs, deferred, err := c.discharge(obligations, s.Proof, tier)
	if err != nil {
		return nil, err
	}
	ins, err := ir.NewInsert(sch, rows, blobs, deferred, c.provenance(s.Actor, s.Rationale), c.meta(tier))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Position, err)
	}
	return ins, nil
}

func (c *Compiler) lowerSelect(ctx context.Context, s ast.Select) (ir.Statement, error) {
	sch, err := c.schemaFor(ctx, s.Table)
	if err != nil {
		return nil, err
	}
	var where ir.Predicate
	if s.Where != nil {
		where, err = c.lowerPredicate(sch, s.Where)
		if err != nil {
			return nil, err
		}
	}
	keys := make([]ir.OrderKey, len(s.OrderBy))
	for i, k := range s.OrderBy {
		keys[i] = ir.OrderKey{Column: k.Column, Desc: k.Desc}
	}
	tier := c.tierFor(s.Mode)
	sel, err := ir.NewSelect(sch, s.Columns, s.Distinct, where, keys, s.Limit, c.meta(tier))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Position, err)
	}
	return sel, nil
}

func (c *Compiler) lowerUpdate(ctx context.Context, s ast.Update) (ir.Statement, error) {
	sch, err := c.schemaFor(ctx, s.Table)
	if err != nil {
		return nil, err
	}
	tier := c.tierFor(s.Mode)

	var obligations []proof.Obligation
	sets := make([]ir.ColumnValue, len(s.Sets))
	for i, sc := range s.Sets {
		res, err := c.resolveValue(sch, sc.Column, sc.Value)
		if err != nil {
			return nil, err
		}
		sets[i] = ir.ColumnValue{Column: sc.Column, Value: res.Value}
		obligations = append(obligations, proof.ObligationsFor(sc.Column, res.Value)...)
	}

	var where ir.Predicate
	if s.Where != nil {
		where, err = c.lowerPredicate(sch, s.Where)
		if err != nil {
			return nil, err
		}
	}

	blobs, deferred, err := c.discharge(obligations, s.Proof, tier)
	if err != nil {
		return nil, err
	}
	// Where stays nil for a flagged unconditional UPDATE; the IR
	// constructor rejects it structurally.
	upd, err := ir.NewUpdate(sch, sets, where, blobs, deferred,
		ir.Provenance{Actor: s.Actor, Rationale: s.Rationale, At: c.now().UTC()},
		c.meta(tier))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Position, err)
	}
	return upd, nil
}

func (c *Compiler) lowerDelete(ctx context.Context, s ast.Delete) (ir.Statement, error) {
	sch, err := c.schemaFor(ctx, s.Table)
	if err != nil {
		return nil, err
	}
	where, err := c.lowerPredicate(sch, s.Where)
	if err != nil {
		return nil, err
	}
	del, err := ir.NewDelete(sch, where,
		ir.Provenance{Actor: s.Actor, Rationale: s.Rationale, At: c.now().UTC()},
		c.meta(c.tierFor(s.Mode)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Position, err)
	}
	return del, nil
}

func (c *Compiler) lowerNormalize(ctx context.Context, s ast.Normalize) (ir.Statement, error) {
	sch, err := c.schemaFor(ctx, s.Table)
	if err != nil {
		return nil, err
	}
	n, err := ir.NewNormalize(sch, s.NormalForm, c.meta(c.tierFor(s.Mode)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Position, err)
	}
	return n, nil
}
