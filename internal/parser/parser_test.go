package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refineql/refineql/internal/ast"
	"github.com/refineql/refineql/internal/token"
	"github.com/refineql/refineql/internal/types"
)

func TestParse_InsertInferred(t *testing.T) {
	stmt, err := ParseSource(`INSERT INTO evidence (title, score) VALUES ('ONS Data', 95)`)
	require.NoError(t, err)

	ins, ok := stmt.(ast.Insert)
	require.True(t, ok)
	assert.Equal(t, "evidence", ins.Table)
	assert.Equal(t, []string{"title", "score"}, ins.Columns)
	require.Len(t, ins.Rows, 1)
	require.Len(t, ins.Rows[0], 2)

	assert.Equal(t, ast.ModeInferred, ins.StmtMode())
	assert.False(t, ins.Rows[0][0].Annotated())

	title := ins.Rows[0][0].Expr.(ast.Literal)
	assert.Equal(t, ast.LitString, title.Kind)
	assert.Equal(t, "ONS Data", title.StrVal)

	score := ins.Rows[0][1].Expr.(ast.Literal)
	assert.Equal(t, ast.LitInt, score.Kind)
	assert.Equal(t, int64(95), score.IntVal)
}

func TestParse_InsertExplicit(t *testing.T) {
	src := `INSERT INTO evidence (title, score)
	        VALUES ('ONS Data': NonEmptyText, 95: BoundedNat[0,100])
	        PROOF { score_bounds: auto, title_nonempty: auto }`
	stmt, err := ParseSource(src)
	require.NoError(t, err)

	ins := stmt.(ast.Insert)
	assert.Equal(t, ast.ModeExplicit, ins.StmtMode())

	require.True(t, ins.Rows[0][0].Annotated())
	assert.True(t, types.NonEmptyText{}.Equal(ins.Rows[0][0].Type))
	assert.True(t, types.BoundedNat{Min: 0, Max: 100}.Equal(ins.Rows[0][1].Type))

	require.NotNil(t, ins.Proof)
	require.Len(t, ins.Proof.Entries, 2)
	assert.Equal(t, "score_bounds", ins.Proof.Entries[0].Name)
	assert.Equal(t, ast.DischargeAuto, ins.Proof.Entries[0].Mode)
}

func TestParse_AnnotationAloneIsExplicit(t *testing.T) {
	stmt, err := ParseSource(`INSERT INTO t (a) VALUES (1: Nat)`)
	require.NoError(t, err)
	assert.Equal(t, ast.ModeExplicit, stmt.StmtMode())
}

func TestParse_ProofClauseAloneIsExplicit(t *testing.T) {
	stmt, err := ParseSource(`INSERT INTO t (a) VALUES (1) PROOF { a_ok: manual }`)
	require.NoError(t, err)
	assert.Equal(t, ast.ModeExplicit, stmt.StmtMode())
}

func TestParse_InsertMultiRow(t *testing.T) {
	stmt, err := ParseSource(`INSERT INTO t (a, b) VALUES (1, 2), (3, 4)`)
	require.NoError(t, err)
	assert.Len(t, stmt.(ast.Insert).Rows, 2)
}

func TestParse_InsertArityMismatch(t *testing.T) {
	_, err := ParseSource(`INSERT INTO t (a, b) VALUES (1)`)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Message, "1 values for 2 columns")
}

func TestParse_Select(t *testing.T) {
	stmt, err := ParseSource(`SELECT title, score FROM evidence WHERE score >= 90 ORDER BY score DESC LIMIT 10`)
	require.NoError(t, err)

	sel := stmt.(ast.Select)
	assert.Equal(t, "evidence", sel.Table)
	assert.Equal(t, []string{"title", "score"}, sel.Columns)
	assert.Equal(t, int64(10), sel.Limit)
	require.Len(t, sel.OrderBy, 1)
	assert.True(t, sel.OrderBy[0].Desc)

	cmp := sel.Where.(ast.Binary)
	assert.Equal(t, token.GTE, cmp.Op)
	assert.Equal(t, "score", cmp.Left.(ast.ColumnRef).Name)
}

func TestParse_SelectStar(t *testing.T) {
	stmt, err := ParseSource(`SELECT * FROM evidence`)
	require.NoError(t, err)
	sel := stmt.(ast.Select)
	assert.Empty(t, sel.Columns)
	assert.Nil(t, sel.Where)
}

func TestParse_WherePrecedence(t *testing.T) {
	// a = 1 OR b = 2 AND c = 3 parses as a=1 OR (b=2 AND c=3).
	stmt, err := ParseSource(`SELECT * FROM t WHERE a = 1 OR b = 2 AND c = 3`)
	require.NoError(t, err)

	or := stmt.(ast.Select).Where.(ast.Binary)
	assert.Equal(t, token.OR, or.Op)
	and := or.Right.(ast.Binary)
	assert.Equal(t, token.AND, and.Op)
}

func TestParse_WhereBetweenAndIn(t *testing.T) {
	stmt, err := ParseSource(`SELECT * FROM t WHERE score BETWEEN 10 AND 20 AND name IN ('a', 'b')`)
	require.NoError(t, err)

	and := stmt.(ast.Select).Where.(ast.Binary)
	require.Equal(t, token.AND, and.Op)

	between := and.Left.(ast.Between)
	assert.Equal(t, "score", between.Operand.(ast.ColumnRef).Name)

	in := and.Right.(ast.In)
	assert.Len(t, in.Set, 2)
	assert.False(t, between.Negated)
	assert.False(t, in.Negated)
}

func TestParse_WhereNotBetweenAndNotIn(t *testing.T) {
	stmt, err := ParseSource(`SELECT * FROM t WHERE score NOT BETWEEN 10 AND 20 AND name NOT IN ('a', 'b')`)
	require.NoError(t, err)

	and := stmt.(ast.Select).Where.(ast.Binary)
	require.Equal(t, token.AND, and.Op)

	between := and.Left.(ast.Between)
	assert.Equal(t, "score", between.Operand.(ast.ColumnRef).Name)
	assert.True(t, between.Negated)

	in := and.Right.(ast.In)
	assert.Len(t, in.Set, 2)
	assert.True(t, in.Negated)
}

func TestParse_PrefixNotStillWrapsComparison(t *testing.T) {
	stmt, err := ParseSource(`SELECT * FROM t WHERE NOT score BETWEEN 10 AND 20`)
	require.NoError(t, err)

	not := stmt.(ast.Select).Where.(ast.Unary)
	require.Equal(t, token.NOT, not.Op)
	between := not.Operand.(ast.Between)
	assert.False(t, between.Negated)
}

func TestParse_WhereIsNull(t *testing.T) {
	stmt, err := ParseSource(`SELECT * FROM t WHERE note IS NOT NULL`)
	require.NoError(t, err)
	isNull := stmt.(ast.Select).Where.(ast.IsNull)
	assert.True(t, isNull.Negated)
}

func TestParse_DeleteRequiresWhere(t *testing.T) {
	_, err := ParseSource(`DELETE FROM evidence`)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Message, "requires a WHERE clause")
}

func TestParse_Delete(t *testing.T) {
	stmt, err := ParseSource(`DELETE FROM evidence WHERE id = 4 RATIONALE 'duplicate row' ACTOR 'analyst-7'`)
	require.NoError(t, err)

	del := stmt.(ast.Delete)
	assert.Equal(t, "evidence", del.Table)
	assert.NotNil(t, del.Where)
	assert.Equal(t, "duplicate row", del.Rationale)
	assert.Equal(t, "analyst-7", del.Actor)
}

func TestParse_UpdateWithoutWhereIsFlagged(t *testing.T) {
	stmt, err := ParseSource(`UPDATE evidence SET score = 80 RATIONALE 'recalibration'`)
	require.NoError(t, err)

	upd := stmt.(ast.Update)
	assert.True(t, upd.Unconditional)
	assert.Nil(t, upd.Where)
}

func TestParse_UpdateWithWhere(t *testing.T) {
	stmt, err := ParseSource(`UPDATE evidence SET score = 80, title = 'Revised' WHERE id = 3 RATIONALE 'corrected'`)
	require.NoError(t, err)

	upd := stmt.(ast.Update)
	assert.False(t, upd.Unconditional)
	require.Len(t, upd.Sets, 2)
	assert.Equal(t, "score", upd.Sets[0].Column)
	assert.Equal(t, "corrected", upd.Rationale)
}

func TestParse_CreateTable(t *testing.T) {
	src := `CREATE TABLE evidence (
	  id UUID PRIMARY KEY,
	  title NonEmptyText,
	  score BoundedNat[0,100],
	  confidence Confidence,
	  embedding Vector[Float, 4],
	  assessment CompositeScore[6]
	) TO NF3`
	stmt, err := ParseSource(src)
	require.NoError(t, err)

	ct := stmt.(ast.CreateTable)
	assert.Equal(t, "evidence", ct.Table)
	assert.Equal(t, "NF3", ct.NormalForm)
	require.Len(t, ct.Columns, 6)

	assert.True(t, ct.Columns[0].PrimaryKey)
	assert.True(t, types.Primitive{Kind: types.UUID}.Equal(ct.Columns[0].Type))
	assert.True(t, types.BoundedNat{Min: 0, Max: 100}.Equal(ct.Columns[2].Type))
	assert.True(t, types.Vector{Elem: types.Primitive{Kind: types.Float}, Len: 4}.Equal(ct.Columns[4].Type))
	assert.True(t, types.CompositeScore{Dims: 6}.Equal(ct.Columns[5].Type))
}

func TestParse_Normalize(t *testing.T) {
	stmt, err := ParseSource(`NORMALIZE TABLE evidence TO BCNF`)
	require.NoError(t, err)

	n := stmt.(ast.Normalize)
	assert.Equal(t, "evidence", n.Table)
	assert.Equal(t, "BCNF", n.NormalForm)
}

func TestParse_RecordAndListValues(t *testing.T) {
	src := `INSERT INTO t (scores, tags) VALUES ({dims: [100, 95], overall: 98}, [1, 2, 3])`
	stmt, err := ParseSource(src)
	require.NoError(t, err)

	row := stmt.(ast.Insert).Rows[0]
	rec := row[0].Expr.(ast.Record)
	require.NotNil(t, rec.Field("dims"))
	require.NotNil(t, rec.Field("overall"))
	assert.Nil(t, rec.Field("missing"))

	list := row[1].Expr.(ast.List)
	assert.Len(t, list.Elems, 3)
}

func TestParse_BatchIndependence(t *testing.T) {
	src := `INSERT INTO t (a) VALUES (1);
	        DELETE FROM t;
	        SELECT * FROM t`
	results := ParseBatch(src)
	require.Len(t, results, 3)

	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err, "WHERE-less DELETE fails alone")
	assert.NoError(t, results[2].Err, "later statements parse despite the earlier failure")
}

func TestParse_BatchCarriesSourceText(t *testing.T) {
	src := "SELECT a FROM t;\n  INSERT INTO t (a) VALUES ('x; y')"
	results := ParseBatch(src)
	require.Len(t, results, 2)

	assert.Equal(t, "SELECT a FROM t", results[0].Source)
	assert.Equal(t, "INSERT INTO t (a) VALUES ('x; y')", results[1].Source,
		"semicolons inside string literals do not split statements")

	for _, r := range results {
		assert.NoError(t, r.Err)
		assert.NotNil(t, r.Stmt)
	}
}

func TestParse_ErrorCarriesPosition(t *testing.T) {
	_, err := ParseSource("SELECT FROM t")
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 1, pe.Pos.Line)
	assert.Greater(t, pe.Pos.Column, 1)
}

func TestParse_TrailingGarbage(t *testing.T) {
	_, err := ParseSource("SELECT * FROM t garbage trailing")
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Message, "after statement")
}

func TestParseTypeExprString(t *testing.T) {
	testCases := []struct {
		src  string
		want types.TypeExpr
	}{
		{"Nat", types.Primitive{Kind: types.Nat}},
		{"Timestamp", types.Primitive{Kind: types.Timestamp}},
		{"BoundedNat[0,100]", types.BoundedNat{Min: 0, Max: 100}},
		{"BoundedFloat[-1.5, 1.5]", types.BoundedFloat{Min: -1.5, Max: 1.5}},
		{"NonEmptyText", types.NonEmptyText{}},
		{"Confidence", types.Confidence{}},
		{"Vector[BoundedNat[0,10], 3]", types.Vector{Elem: types.BoundedNat{Min: 0, Max: 10}, Len: 3}},
		{"Provenance[NonEmptyText]", types.Provenance{Inner: types.NonEmptyText{}}},
		{"CompositeScore[6]", types.CompositeScore{Dims: 6}},
	}

	for _, tc := range testCases {
		t.Run(tc.src, func(t *testing.T) {
			got, err := ParseTypeExprString(tc.src)
			require.NoError(t, err)
			assert.True(t, tc.want.Equal(got), "got %s", got)
		})
	}
}

func TestParseTypeExprString_Errors(t *testing.T) {
	testCases := []struct {
		name string
		src  string
		msg  string
	}{
		{"inverted bounds", "BoundedNat[10,0]", "inverted"},
		{"negative nat bound", "BoundedNat[-5,5]", "negative"},
		{"zero vector length", "Vector[Int, 0]", "positive"},
		{"wrong case", "boundednat[0,100]", "case-sensitive"},
		{"unknown name", "Widget", "unknown type"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseTypeExprString(tc.src)
			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Contains(t, pe.Message, tc.msg)
		})
	}
}
