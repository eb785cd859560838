package infer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refineql/refineql/internal/ast"
	"github.com/refineql/refineql/internal/types"
)

func intLiteral(n int64) ast.Literal {
	return ast.Literal{Kind: ast.LitInt, IntVal: n}
}

func strLiteral(s string) ast.Literal {
	return ast.Literal{Kind: ast.LitString, StrVal: s}
}

func TestInfer_BoundedNatInRange(t *testing.T) {
	colType := types.BoundedNat{Min: 0, Max: 100}

	res, err := Infer("score", colType, intLiteral(95), nil)
	require.NoError(t, err)

	assert.True(t, colType.Equal(res.Type))
	assert.Equal(t, int64(95), res.Value.Raw())
	assert.True(t, res.AutoProvable)
}

func TestInfer_BoundedNatOutOfRange(t *testing.T) {
	colType := types.BoundedNat{Min: 0, Max: 100}

	_, err := Infer("score", colType, intLiteral(150), nil)
	var rve *types.RefinementViolationError
	require.ErrorAs(t, err, &rve)
	assert.Equal(t, "150 exceeds maximum 100", rve.Constraint)
	assert.Equal(t, "use a value between 0 and 100", rve.Suggestion)
}

func TestInfer_NonEmptyText(t *testing.T) {
	res, err := Infer("title", types.NonEmptyText{}, strLiteral("ONS Data"), nil)
	require.NoError(t, err)
	assert.Equal(t, "ONS Data", res.Value.Raw())
	assert.True(t, res.AutoProvable)

	_, err = Infer("title", types.NonEmptyText{}, strLiteral(""), nil)
	var rve *types.RefinementViolationError
	assert.ErrorAs(t, err, &rve)
}

func TestInfer_PrimitivesAreNotAutoProvable(t *testing.T) {
	res, err := Infer("body", types.Primitive{Kind: types.Text}, strLiteral("x"), nil)
	require.NoError(t, err)
	assert.False(t, res.AutoProvable, "unrefined types carry no obligations")
}

func TestInfer_KindMismatchIsHardError(t *testing.T) {
	testCases := []struct {
		name    string
		colType types.TypeExpr
		expr    ast.ValueExpr
	}{
		{"string for numeric", types.BoundedNat{Min: 0, Max: 100}, strLiteral("95")},
		{"numeric for text", types.NonEmptyText{}, intLiteral(7)},
		{"float for nat", types.Primitive{Kind: types.Nat}, ast.Literal{Kind: ast.LitFloat, FloatVal: 1.5}},
		{"bool for int", types.Primitive{Kind: types.Int}, ast.Literal{Kind: ast.LitBool, BoolVal: true}},
		{"scalar for vector", types.Vector{Elem: types.Primitive{Kind: types.Int}, Len: 2}, intLiteral(1)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Infer("col", tc.colType, tc.expr, nil)
			var tme *TypeMismatchError
			require.ErrorAs(t, err, &tme)
			assert.Equal(t, "col", tme.Column)
		})
	}
}

func TestInfer_IntLiteralWidensToFloatColumn(t *testing.T) {
	res, err := Infer("weight", types.BoundedFloat{Min: 0, Max: 1}, intLiteral(1), nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Value.Raw())
}

func TestInfer_Confidence(t *testing.T) {
	res, err := Infer("conf", types.Confidence{}, ast.Literal{Kind: ast.LitFloat, FloatVal: 0.9}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.9, res.Value.Raw())

	_, err = Infer("conf", types.Confidence{}, ast.Literal{Kind: ast.LitFloat, FloatVal: 1.5}, nil)
	var rve *types.RefinementViolationError
	assert.ErrorAs(t, err, &rve)
}

func TestInfer_UUIDColumn(t *testing.T) {
	res, err := Infer("id", types.Primitive{Kind: types.UUID}, strLiteral("550e8400-e29b-41d4-a716-446655440000"), nil)
	require.NoError(t, err)
	assert.NotNil(t, res.Value.Raw())

	_, err = Infer("id", types.Primitive{Kind: types.UUID}, strLiteral("nope"), nil)
	assert.Error(t, err)
}

func TestInfer_TimestampColumn(t *testing.T) {
	res, err := Infer("at", types.Primitive{Kind: types.Timestamp}, strLiteral("2025-06-01T12:00:00Z"), nil)
	require.NoError(t, err)
	want := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	assert.True(t, want.Equal(res.Value.Raw().(time.Time)))

	_, err = Infer("at", types.Primitive{Kind: types.Timestamp}, strLiteral("June 1st"), nil)
	var tme *TypeMismatchError
	require.ErrorAs(t, err, &tme)
	assert.Contains(t, tme.Got, "RFC 3339")
}

func TestInfer_Vector(t *testing.T) {
	colType := types.Vector{Elem: types.BoundedNat{Min: 0, Max: 10}, Len: 3}
	list := ast.List{Elems: []ast.ValueExpr{intLiteral(1), intLiteral(2), intLiteral(3)}}

	res, err := Infer("v", colType, list, nil)
	require.NoError(t, err)
	assert.Len(t, res.Value.Raw().([]types.TypedValue), 3)

	short := ast.List{Elems: []ast.ValueExpr{intLiteral(1)}}
	_, err = Infer("v", colType, short, nil)
	var rve *types.RefinementViolationError
	assert.ErrorAs(t, err, &rve, "length is part of the type")

	outOfRange := ast.List{Elems: []ast.ValueExpr{intLiteral(1), intLiteral(2), intLiteral(99)}}
	_, err = Infer("v", colType, outOfRange, nil)
	assert.ErrorAs(t, err, &rve, "element refinement is checked")
}

func TestInfer_CompositeScore(t *testing.T) {
	colType := types.CompositeScore{Dims: 6}
	rec := ast.Record{Fields: []ast.RecordField{
		{Name: "dims", Value: ast.List{Elems: []ast.ValueExpr{
			intLiteral(100), intLiteral(100), intLiteral(95),
			intLiteral(95), intLiteral(100), intLiteral(95),
		}}},
		{Name: "overall", Value: intLiteral(97)},
	}}

	res, err := Infer("assessment", colType, rec, nil)
	require.NoError(t, err)
	sv := res.Value.Raw().(types.ScoreValue)
	assert.Equal(t, int64(97), sv.Overall)

	bad := ast.Record{Fields: []ast.RecordField{
		{Name: "dims", Value: ast.List{Elems: []ast.ValueExpr{
			intLiteral(100), intLiteral(100), intLiteral(95),
			intLiteral(95), intLiteral(100), intLiteral(95),
		}}},
		{Name: "overall", Value: intLiteral(50)},
	}}
	_, err = Infer("assessment", colType, bad, nil)
	var rve *types.RefinementViolationError
	require.ErrorAs(t, err, &rve)
	assert.Contains(t, rve.Constraint, "declared overall 50")
}

func TestInfer_CompositeScoreMissingField(t *testing.T) {
	colType := types.CompositeScore{Dims: 2}
	rec := ast.Record{Fields: []ast.RecordField{
		{Name: "dims", Value: ast.List{Elems: []ast.ValueExpr{intLiteral(1), intLiteral(2)}}},
	}}

	_, err := Infer("assessment", colType, rec, nil)
	var tme *TypeMismatchError
	require.ErrorAs(t, err, &tme)
	assert.Contains(t, tme.Got, `missing field "overall"`)
}

func TestInfer_Provenance(t *testing.T) {
	colType := types.Provenance{Inner: types.NonEmptyText{}}
	rec := ast.Record{Fields: []ast.RecordField{
		{Name: "value", Value: strLiteral("finding")},
		{Name: "actor", Value: strLiteral("analyst-7")},
		{Name: "rationale", Value: strLiteral("initial import")},
		{Name: "timestamp", Value: strLiteral("2025-06-01T12:00:00Z")},
	}}

	res, err := Infer("note", colType, rec, nil)
	require.NoError(t, err)
	pv := res.Value.Raw().(types.ProvValue)
	assert.Equal(t, "analyst-7", pv.Actor)
	assert.Equal(t, "finding", pv.Inner.Raw())

	noRationale := ast.Record{Fields: []ast.RecordField{
		{Name: "value", Value: strLiteral("finding")},
		{Name: "actor", Value: strLiteral("analyst-7")},
	}}
	_, err = Infer("note", colType, noRationale, nil)
	var tme *TypeMismatchError
	assert.ErrorAs(t, err, &tme)
}

func TestInfer_ProvenanceDefaultTimestampUsesClock(t *testing.T) {
	colType := types.Provenance{Inner: types.NonEmptyText{}}
	rec := ast.Record{Fields: []ast.RecordField{
		{Name: "value", Value: strLiteral("finding")},
		{Name: "actor", Value: strLiteral("analyst-7")},
		{Name: "rationale", Value: strLiteral("initial import")},
	}}

	frozen := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	res, err := Infer("note", colType, rec, func() time.Time { return frozen })
	require.NoError(t, err)
	pv := res.Value.Raw().(types.ProvValue)
	assert.True(t, pv.At.Equal(frozen), "omitted timestamp comes from the supplied clock")
}
