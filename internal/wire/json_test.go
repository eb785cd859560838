package wire

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refineql/refineql/internal/proof"
	"github.com/refineql/refineql/internal/types"
)

func TestEncodeValueJSON(t *testing.T) {
	mv := mustValue(t)
	v := mv(types.NewBoundedNat(97, types.BoundedNat{Min: 0, Max: 100}))
	data, err := EncodeValueJSON(v, nil)
	require.NoError(t, err)
	assert.Equal(t, `{"type":"BoundedNat[0,100]","value":97}`, string(data))
}

func TestEncodeValueJSON_NFCNormalization(t *testing.T) {
	// "cafe" plus a combining acute accent: NFD input.
	decomposed := "café"
	data, err := EncodeValueJSON(types.NewText(decomposed), nil)
	require.NoError(t, err)
	// The output carries the composed form.
	assert.Equal(t, `{"type":"Text","value":"café"}`, string(data))
}

func TestEncodeValueJSON_NoHTMLEscaping(t *testing.T) {
	data, err := EncodeValueJSON(types.NewText("a < b && c > d"), nil)
	require.NoError(t, err)
	assert.Equal(t, `{"type":"Text","value":"a < b && c > d"}`, string(data))
}

func TestJSONRoundTrip(t *testing.T) {
	mv := mustValue(t)
	ts := time.Date(2026, 3, 14, 9, 26, 53, 500000000, time.UTC)
	inner := mv(types.NewBoundedNat(7, types.BoundedNat{Min: 0, Max: 10}))

	tests := []struct {
		name string
		v    types.TypedValue
	}{
		{"nat", mv(types.NewNat(42))},
		{"int", types.NewInt(-9)},
		{"float", mv(types.NewFloat(2.5))},
		{"text", types.NewText("")},
		{"bool", types.NewBool(false)},
		{"uuid", mv(types.ParseUUID("a2c8f6e4-1b3d-4e5f-8a9b-0c1d2e3f4a5b"))},
		{"timestamp", types.NewTimestamp(ts)},
		{"confidence", mv(types.NewConfidence(0.5))},
		{"vector", mv(types.NewVector([]types.TypedValue{inner, inner},
			types.Vector{Elem: types.BoundedNat{Min: 0, Max: 10}, Len: 2}))},
		{"provenance", mv(types.NewProvenance(inner, "bob", "manual entry", ts,
			types.Provenance{Inner: types.BoundedNat{Min: 0, Max: 10}}))},
		{"composite score", mv(types.NewCompositeScore([]int64{100, 95}, 97,
			types.CompositeScore{Dims: 2}))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeValueJSON(tt.v, nil)
			require.NoError(t, err)

			got, blobs, err := DecodeValueJSON(data)
			require.NoError(t, err)
			assert.Empty(t, blobs)
			assert.True(t, got.Equal(tt.v), "decoded %s, want %s", got, tt.v)
		})
	}
}

func TestJSONRoundTrip_ProofBlobs(t *testing.T) {
	mv := mustValue(t)
	v := mv(types.NewBoundedNat(97, types.BoundedNat{Min: 0, Max: 100}))
	blobs := []proof.Blob{{
		Kind:        "int-interval",
		Subject:     "score",
		Description: "0 <= 97 <= 100",
		Evidence:    "interval-check",
		Status:      "auto",
	}}

	data, err := EncodeValueJSON(v, blobs)
	require.NoError(t, err)

	got, gotBlobs, err := DecodeValueJSON(data)
	require.NoError(t, err)
	assert.True(t, got.Equal(v))
	assert.Equal(t, blobs, gotBlobs)
}

func TestDecodeValueJSON_ViolationRejected(t *testing.T) {
	// Well-formed JSON whose value breaks the declared refinement.
	_, _, err := DecodeValueJSON([]byte(`{"type":"BoundedNat[0,100]","value":150}`))
	var violation *types.RefinementViolationError
	require.ErrorAs(t, err, &violation)

	_, _, err = DecodeValueJSON([]byte(`{"type":"NonEmptyText","value":""}`))
	require.ErrorAs(t, err, &violation)
}

func TestDecodeValueJSON_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{`},
		{"no type", `{"value":1}`},
		{"bad type expression", `{"type":"boundednat[0,1]","value":1}`},
		{"wrong payload shape", `{"type":"Int","value":"x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeValueJSON([]byte(tt.data))
			var se *SerializationError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, "json", se.Format)
		})
	}
}
