package ir

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refineql/refineql/internal/proof"
	"github.com/refineql/refineql/internal/schema"
	"github.com/refineql/refineql/internal/types"
)

func claimsSchema(t *testing.T) *schema.Schema {
	t.Helper()
	return &schema.Schema{
		Name: "claims",
		Columns: []schema.Column{
			{Name: "id", Type: types.Primitive{Kind: types.UUID}, PrimaryKey: true},
			{Name: "title", Type: types.NonEmptyText{}},
			{Name: "score", Type: types.BoundedNat{Min: 0, Max: 100}},
		},
	}
}

func mustBoundedNat(t *testing.T, v int64) types.TypedValue {
	t.Helper()
	tv, err := types.NewBoundedNat(v, types.BoundedNat{Min: 0, Max: 100})
	require.NoError(t, err)
	return tv
}

func TestNewInsert(t *testing.T) {
	s := claimsSchema(t)
	title, err := types.NewNonEmptyText("first claim")
	require.NoError(t, err)

	row := []ColumnValue{
		{Column: "title", Value: title},
		{Column: "score", Value: mustBoundedNat(t, 97)},
	}
	ins, err := NewInsert(s, [][]ColumnValue{row}, nil, nil, nil, PermissionMetadata{})
	require.NoError(t, err)

	assert.Equal(t, KindInsert, ins.Kind())
	assert.Equal(t, "claims", ins.Table())
	require.Len(t, ins.Rows(), 1)

	got := ins.ValueTypes()
	require.Len(t, got, 2)
	assert.True(t, got[0].Equal(types.NonEmptyText{}))
	assert.True(t, got[1].Equal(types.BoundedNat{Min: 0, Max: 100}))
}

func TestNewInsert_UnknownColumn(t *testing.T) {
	s := claimsSchema(t)
	row := []ColumnValue{{Column: "missing", Value: types.NewText("x")}}

	_, err := NewInsert(s, [][]ColumnValue{row}, nil, nil, nil, PermissionMetadata{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown column")
}

func TestNewInsert_TypeMismatch(t *testing.T) {
	s := claimsSchema(t)
	// Plain Text where the schema demands NonEmptyText.
	row := []ColumnValue{{Column: "title", Value: types.NewText("x")}}

	_, err := NewInsert(s, [][]ColumnValue{row}, nil, nil, nil, PermissionMetadata{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match schema type")
}

func TestNewDelete_RequiresPredicateAndRationale(t *testing.T) {
	s := claimsSchema(t)
	where := Compare{Column: "score", Op: OpLt, Value: mustBoundedNat(t, 10)}

	_, err := NewDelete(s, nil, Provenance{Rationale: "cleanup"}, PermissionMetadata{})
	var missing *MissingProvenanceError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "DELETE", missing.Stmt)

	_, err = NewDelete(s, where, Provenance{}, PermissionMetadata{})
	require.ErrorAs(t, err, &missing)
	assert.Contains(t, missing.Error(), "rationale is empty")

	del, err := NewDelete(s, where, Provenance{Actor: "ops", Rationale: "cleanup"}, PermissionMetadata{})
	require.NoError(t, err)
	assert.Equal(t, KindDelete, del.Kind())
	assert.NotNil(t, del.Where())
}

func TestNewUpdate_RequiresPredicateAndRationale(t *testing.T) {
	s := claimsSchema(t)
	sets := []ColumnValue{{Column: "score", Value: mustBoundedNat(t, 50)}}
	where := Compare{Column: "score", Op: OpGt, Value: mustBoundedNat(t, 90)}

	var missing *MissingProvenanceError
	_, err := NewUpdate(s, sets, nil, nil, nil, Provenance{Rationale: "recalibrate"}, PermissionMetadata{})
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "UPDATE", missing.Stmt)

	_, err = NewUpdate(s, sets, where, nil, nil, Provenance{}, PermissionMetadata{})
	require.ErrorAs(t, err, &missing)

	upd, err := NewUpdate(s, sets, where, nil, nil, Provenance{Actor: "ops", Rationale: "recalibrate"}, PermissionMetadata{})
	require.NoError(t, err)
	assert.Equal(t, KindUpdate, upd.Kind())

	// Value types cover both the assignments and the predicate literals.
	assert.Len(t, upd.ValueTypes(), 2)
}

func TestNewUpdate_UnknownPredicateColumn(t *testing.T) {
	s := claimsSchema(t)
	sets := []ColumnValue{{Column: "score", Value: mustBoundedNat(t, 50)}}
	where := Compare{Column: "ghost", Op: OpEq, Value: types.NewInt(1)}

	_, err := NewUpdate(s, sets, where, nil, nil, Provenance{Actor: "ops", Rationale: "r"}, PermissionMetadata{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown column "ghost"`)
}

func TestNewSelect(t *testing.T) {
	s := claimsSchema(t)
	where := And{Predicates: []Predicate{
		Compare{Column: "score", Op: OpGte, Value: mustBoundedNat(t, 80)},
		IsNull{Column: "title", Negated: true},
	}}

	sel, err := NewSelect(s, []string{"id", "score"}, true, where, []OrderKey{{Column: "score", Desc: true}}, 10, PermissionMetadata{})
	require.NoError(t, err)
	assert.True(t, sel.Distinct())
	assert.Equal(t, int64(10), sel.Limit())
	assert.Equal(t, []string{"id", "score"}, sel.ProjectedColumns())
	assert.Empty(t, sel.Deferred())

	// Star projection expands to the schema's columns.
	all, err := NewSelect(s, nil, false, nil, nil, -1, PermissionMetadata{})
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "title", "score"}, all.ProjectedColumns())

	_, err = NewSelect(s, []string{"ghost"}, false, nil, nil, -1, PermissionMetadata{})
	require.Error(t, err)
}

func TestPermissionMetadata_Allows(t *testing.T) {
	open := PermissionMetadata{CallerID: uuid.New()}
	assert.True(t, open.Allows(types.Confidence{}))

	restricted := PermissionMetadata{
		Tier:      proof.TierStrict,
		Whitelist: []types.TypeExpr{types.BoundedNat{Min: 0, Max: 100}, types.NonEmptyText{}},
	}
	assert.True(t, restricted.Allows(types.BoundedNat{Min: 0, Max: 100}))
	assert.False(t, restricted.Allows(types.BoundedNat{Min: 0, Max: 10}))
	assert.False(t, restricted.Allows(types.Confidence{}))
}

func TestNewCreateTable(t *testing.T) {
	s := claimsSchema(t)
	ct, err := NewCreateTable(s, PermissionMetadata{})
	require.NoError(t, err)
	assert.Equal(t, KindCreate, ct.Kind())
	assert.Len(t, ct.ValueTypes(), 3)
}

func TestNewNormalize(t *testing.T) {
	s := claimsSchema(t)
	n, err := NewNormalize(s, "NF3", PermissionMetadata{})
	require.NoError(t, err)
	assert.Equal(t, "NF3", n.Target())

	_, err = NewNormalize(s, "", PermissionMetadata{})
	require.Error(t, err)
}
