package perm

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refineql/refineql/internal/ir"
	"github.com/refineql/refineql/internal/proof"
	"github.com/refineql/refineql/internal/schema"
	"github.com/refineql/refineql/internal/types"
)

const roleFile = `
roles:
  analyst:
    tier: strict
    allowed_types:
      - BoundedNat[0, 100]
      - NonEmptyText
      - UUID
  operator:
    tier: runtime
    schema_mutation: true
  auditor:
    allowed_types:
      - Provenance[Text]
`

func TestLoad(t *testing.T) {
	p, err := Load([]byte(roleFile))
	require.NoError(t, err)

	analyst, err := p.Role("analyst")
	require.NoError(t, err)
	assert.Equal(t, proof.TierStrict, analyst.Tier)
	require.Len(t, analyst.Whitelist, 3)
	assert.True(t, analyst.Whitelist[0].Equal(types.BoundedNat{Min: 0, Max: 100}))
	assert.False(t, analyst.SchemaMutation)

	operator, err := p.Role("operator")
	require.NoError(t, err)
	assert.Empty(t, operator.Whitelist)
	assert.True(t, operator.SchemaMutation)

	// Tier defaults to runtime when the entry omits it.
	auditor, err := p.Role("auditor")
	require.NoError(t, err)
	assert.Equal(t, proof.TierRuntime, auditor.Tier)

	var unknown *UnknownRoleError
	_, err = p.Role("ghost")
	require.ErrorAs(t, err, &unknown)
}

func TestLoad_Malformed(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"not yaml", "roles: [:", "parsing role file"},
		{"no roles", "roles: {}", "defines no roles"},
		{"bad tier", "roles:\n  a:\n    tier: paranoid", "paranoid"},
		{"bad type", "roles:\n  a:\n    allowed_types: [\"boundednat[0,1]\"]", "allowed type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func testSchema() *schema.Schema {
	return &schema.Schema{
		Name: "claims",
		Columns: []schema.Column{
			{Name: "id", Type: types.Primitive{Kind: types.UUID}, PrimaryKey: true},
			{Name: "score", Type: types.BoundedNat{Min: 0, Max: 100}},
			{Name: "confidence", Type: types.Confidence{}},
		},
	}
}

func TestValidate_Whitelist(t *testing.T) {
	p, err := Load([]byte(roleFile))
	require.NoError(t, err)
	analyst, err := p.Role("analyst")
	require.NoError(t, err)

	s := testSchema()
	caller := uuid.New()

	score, err := types.NewBoundedNat(97, types.BoundedNat{Min: 0, Max: 100})
	require.NoError(t, err)
	ins, err := ir.NewInsert(s, [][]ir.ColumnValue{{{Column: "score", Value: score}}},
		nil, nil, nil, analyst.Metadata(caller))
	require.NoError(t, err)
	assert.NoError(t, Validate(ins, analyst))

	// Confidence is outside the analyst whitelist.
	conf, err := types.NewConfidence(0.9)
	require.NoError(t, err)
	denied, err := ir.NewInsert(s, [][]ir.ColumnValue{{{Column: "confidence", Value: conf}}},
		nil, nil, nil, analyst.Metadata(caller))
	require.NoError(t, err)

	err = Validate(denied, analyst)
	var de *DeniedError
	require.ErrorAs(t, err, &de)
	assert.True(t, de.Type.Equal(types.Confidence{}))
	assert.Equal(t, "analyst", de.Role)
}

func TestValidate_PredicateTypesCount(t *testing.T) {
	p, err := Load([]byte(roleFile))
	require.NoError(t, err)
	analyst, err := p.Role("analyst")
	require.NoError(t, err)

	s := testSchema()
	conf, err := types.NewConfidence(0.5)
	require.NoError(t, err)

	// The denied type rides in the WHERE clause, not the projection.
	sel, err := ir.NewSelect(s, []string{"id"}, false,
		ir.Compare{Column: "confidence", Op: ir.OpGt, Value: conf},
		nil, -1, analyst.Metadata(uuid.New()))
	require.NoError(t, err)

	var de *DeniedError
	require.ErrorAs(t, Validate(sel, analyst), &de)
}

func TestValidate_SchemaMutation(t *testing.T) {
	p, err := Load([]byte(roleFile))
	require.NoError(t, err)
	analyst, err := p.Role("analyst")
	require.NoError(t, err)
	operator, err := p.Role("operator")
	require.NoError(t, err)

	s := &schema.Schema{
		Name: "notes",
		Columns: []schema.Column{
			{Name: "id", Type: types.Primitive{Kind: types.UUID}, PrimaryKey: true},
		},
	}

	ct, err := ir.NewCreateTable(s, operator.Metadata(uuid.New()))
	require.NoError(t, err)
	assert.NoError(t, Validate(ct, operator))

	ctDenied, err := ir.NewCreateTable(s, analyst.Metadata(uuid.New()))
	require.NoError(t, err)
	var de *DeniedError
	require.ErrorAs(t, Validate(ctDenied, analyst), &de)
	assert.Nil(t, de.Type)
	assert.Contains(t, de.Error(), "may not run")
}
