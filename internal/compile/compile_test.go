package compile

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refineql/refineql/internal/ir"
	"github.com/refineql/refineql/internal/parser"
	"github.com/refineql/refineql/internal/perm"
	"github.com/refineql/refineql/internal/proof"
	"github.com/refineql/refineql/internal/schema"
	"github.com/refineql/refineql/internal/types"
	"github.com/refineql/refineql/internal/wire"
)

func evidenceRegistry() schema.Registry {
	return schema.NewStatic(&schema.Schema{
		Name: "evidence",
		Columns: []schema.Column{
			{Name: "id", Type: types.Primitive{Kind: types.UUID}, PrimaryKey: true},
			{Name: "title", Type: types.NonEmptyText{}},
			{Name: "score", Type: types.BoundedNat{Min: 0, Max: 100}},
			{Name: "confidence", Type: types.Confidence{}},
			{Name: "assessment", Type: types.CompositeScore{Dims: 6}},
		},
	})
}

func TestCompile_InsertInferred(t *testing.T) {
	c := New(evidenceRegistry())
	stmt, err := c.Compile(context.Background(),
		`INSERT INTO evidence (title, score) VALUES ('ONS Data', 95)`)
	require.NoError(t, err)

	ins, ok := stmt.(*ir.Insert)
	require.True(t, ok)
	rows := ins.Rows()
	require.Len(t, rows, 1)
	assert.True(t, rows[0][0].Value.Type().Equal(types.NonEmptyText{}))
	assert.True(t, rows[0][1].Value.Type().Equal(types.BoundedNat{Min: 0, Max: 100}))

	// Both obligations auto-discharged: nothing deferred, two blobs.
	assert.Empty(t, ins.Deferred())
	blobs := ins.Blobs()
	require.Len(t, blobs, 2)
	for _, b := range blobs {
		assert.Equal(t, "auto", b.Status)
	}
}

func TestCompile_InsertOutOfRange(t *testing.T) {
	c := New(evidenceRegistry())
	_, err := c.Compile(context.Background(),
		`INSERT INTO evidence (title, score) VALUES ('ONS Data', 150)`)

	var violation *types.RefinementViolationError
	require.ErrorAs(t, err, &violation)
	assert.Contains(t, violation.Error(), "150 exceeds maximum 100")
	assert.Equal(t, "use a value between 0 and 100", violation.Suggestion)
}

func TestCompile_DeleteWithoutWhereIsParseError(t *testing.T) {
	c := New(evidenceRegistry())
	_, err := c.Compile(context.Background(), `DELETE FROM evidence`)

	var pe *parser.ParseError
	require.ErrorAs(t, err, &pe)
}

func TestCompile_CompositeScore(t *testing.T) {
	c := New(evidenceRegistry())
	stmt, err := c.Compile(context.Background(),
		`INSERT INTO evidence (title, assessment) VALUES ('review', {dims: [100, 100, 95, 95, 100, 95], overall: 97})`)
	require.NoError(t, err)
	assert.Equal(t, ir.KindInsert, stmt.Kind())

	_, err = c.Compile(context.Background(),
		`INSERT INTO evidence (title, assessment) VALUES ('review', {dims: [100, 100, 95, 95, 100, 95], overall: 50})`)
	var violation *types.RefinementViolationError
	require.ErrorAs(t, err, &violation)
}

func TestCompile_BinaryRoundTripFromIR(t *testing.T) {
	c := New(evidenceRegistry())
	stmt, err := c.Compile(context.Background(),
		`INSERT INTO evidence (title, score) VALUES ('ONS Data', 95)`)
	require.NoError(t, err)

	v := stmt.(*ir.Insert).Rows()[0][1].Value
	data, err := wire.EncodeValue(v, nil)
	require.NoError(t, err)
	got, _, err := wire.DecodeValue(data)
	require.NoError(t, err)
	assert.True(t, got.Equal(v))
	assert.True(t, got.Type().Equal(types.BoundedNat{Min: 0, Max: 100}))
}

func TestCompile_ExplicitAnnotation(t *testing.T) {
	c := New(evidenceRegistry())
	stmt, err := c.Compile(context.Background(),
		`INSERT INTO evidence (score) VALUES (95 : BoundedNat[0, 100]) PROOF { score_bounds: auto }`)
	require.NoError(t, err)
	assert.Empty(t, stmt.Deferred())

	// A contradictory annotation is rejected before inference.
	_, err = c.Compile(context.Background(),
		`INSERT INTO evidence (score) VALUES (95 : BoundedNat[0, 10]) PROOF { score_bounds: auto }`)
	var ae *AnnotationError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "score", ae.Column)
}

func TestCompile_UnconditionalUpdateRejected(t *testing.T) {
	c := New(evidenceRegistry())
	_, err := c.Compile(context.Background(),
		`UPDATE evidence SET score = 10 RATIONALE 'reset'`)

	var missing *ir.MissingProvenanceError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "UPDATE", missing.Stmt)
}

func TestCompile_DeleteRequiresRationale(t *testing.T) {
	c := New(evidenceRegistry())
	_, err := c.Compile(context.Background(),
		`DELETE FROM evidence WHERE score = 0`)

	var missing *ir.MissingProvenanceError
	require.ErrorAs(t, err, &missing)

	stmt, err := c.Compile(context.Background(),
		`DELETE FROM evidence WHERE score = 0 RATIONALE 'stale rows' ACTOR 'ops'`)
	require.NoError(t, err)
	del := stmt.(*ir.Delete)
	assert.Equal(t, "stale rows", del.Provenance().Rationale)
	assert.NotNil(t, del.Where())
}

func TestCompile_WherePredicate(t *testing.T) {
	c := New(evidenceRegistry())
	stmt, err := c.Compile(context.Background(),
		`SELECT title FROM evidence WHERE score >= 80 AND confidence > 0.5 ORDER BY score DESC LIMIT 10`)
	require.NoError(t, err)

	sel := stmt.(*ir.Select)
	and, ok := sel.Where().(ir.And)
	require.True(t, ok)
	require.Len(t, and.Predicates, 2)

	// Predicate literals take the column's declared type.
	cmp := and.Predicates[0].(ir.Compare)
	assert.True(t, cmp.Value.Type().Equal(types.BoundedNat{Min: 0, Max: 100}))
	conf := and.Predicates[1].(ir.Compare)
	assert.True(t, conf.Value.Type().Equal(types.Confidence{}))

	assert.Equal(t, int64(10), sel.Limit())
}

func TestCompile_WhereLiteralOutOfRange(t *testing.T) {
	c := New(evidenceRegistry())
	_, err := c.Compile(context.Background(),
		`SELECT title FROM evidence WHERE score > 150`)

	var violation *types.RefinementViolationError
	require.ErrorAs(t, err, &violation)
}

func TestCompile_PermissionDenied(t *testing.T) {
	profiles, err := perm.Load([]byte(`
roles:
  reader:
    tier: runtime
    allowed_types:
      - NonEmptyText
`))
	require.NoError(t, err)
	reader, err := profiles.Role("reader")
	require.NoError(t, err)

	c := New(evidenceRegistry(), WithRole(reader), WithCaller(uuid.New()))

	// The whitelist admits NonEmptyText only; the statement touches a
	// bounded-numeric column with an in-range value.
	_, err = c.Compile(context.Background(),
		`INSERT INTO evidence (title, score) VALUES ('ONS Data', 95)`)
	var denied *perm.DeniedError
	require.ErrorAs(t, err, &denied)
	assert.True(t, denied.Type.Equal(types.BoundedNat{Min: 0, Max: 100}))
}

func TestCompile_CreateTableVisibleInSession(t *testing.T) {
	c := New(schema.NewStatic())
	_, err := c.Compile(context.Background(),
		`CREATE TABLE notes (id UUID PRIMARY KEY, body NonEmptyText)`)
	require.NoError(t, err)

	stmt, err := c.Compile(context.Background(),
		`INSERT INTO notes (body) VALUES ('hello')`)
	require.NoError(t, err)
	assert.Equal(t, "notes", stmt.Table())
}

func TestCompileBatch_IndependentStatements(t *testing.T) {
	c := New(evidenceRegistry())
	results := c.CompileBatch(context.Background(), `
		INSERT INTO evidence (title, score) VALUES ('a', 95);
		INSERT INTO evidence (title, score) VALUES ('b', 150);
		SELECT title FROM evidence
	`)
	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.NoError(t, results[2].Err)
}

func TestCompile_TierDefaults(t *testing.T) {
	c := New(evidenceRegistry())

	inferred, err := c.Compile(context.Background(),
		`INSERT INTO evidence (score) VALUES (95)`)
	require.NoError(t, err)
	assert.Equal(t, proof.TierRuntime, inferred.Meta().Tier)

	explicit, err := c.Compile(context.Background(),
		`INSERT INTO evidence (score) VALUES (95 : BoundedNat[0, 100]) PROOF { score_bounds: auto }`)
	require.NoError(t, err)
	assert.Equal(t, proof.TierStrict, explicit.Meta().Tier)
}

func TestCompile_SchemaUnavailable(t *testing.T) {
	c := New(evidenceRegistry())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Compile(ctx, `SELECT title FROM evidence`)
	var unavailable *schema.UnavailableError
	require.ErrorAs(t, err, &unavailable)
}

func TestCompile_ProvenanceClock(t *testing.T) {
	fixed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	c := New(evidenceRegistry(), WithClock(func() time.Time { return fixed }))

	stmt, err := c.Compile(context.Background(),
		`INSERT INTO evidence (title) VALUES ('x') RATIONALE 'load' ACTOR 'alice'`)
	require.NoError(t, err)

	prov := stmt.(*ir.Insert).Provenance()
	require.NotNil(t, prov)
	assert.Equal(t, fixed, prov.At)
	assert.Equal(t, "alice", prov.Actor)
}

func TestCompile_ProvenanceLiteralDefaultsToClock(t *testing.T) {
	reg := schema.NewStatic(&schema.Schema{
		Name: "notes",
		Columns: []schema.Column{
			{Name: "id", Type: types.Primitive{Kind: types.UUID}, PrimaryKey: true},
			{Name: "note", Type: types.Provenance{Inner: types.NonEmptyText{}}},
		},
	})
	fixed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	c := New(reg, WithClock(func() time.Time { return fixed }))

	stmt, err := c.Compile(context.Background(),
		`INSERT INTO notes (note) VALUES ({value: 'finding', actor: 'analyst-7', rationale: 'import'})
		 RATIONALE 'load' ACTOR 'alice'`)
	require.NoError(t, err)

	rows := stmt.(*ir.Insert).Rows()
	require.Len(t, rows, 1)
	pv := rows[0][0].Value.Raw().(types.ProvValue)
	assert.True(t, pv.At.Equal(fixed), "omitted literal timestamp comes from the session clock")
}
