package wire

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refineql/refineql/internal/proof"
	"github.com/refineql/refineql/internal/types"
)

// mustValue adapts a two-value constructor call for inline use:
//
//	mv := mustValue(t)
//	v := mv(types.NewConfidence(0.85))
func mustValue(t *testing.T) func(types.TypedValue, error) types.TypedValue {
	return func(v types.TypedValue, err error) types.TypedValue {
		t.Helper()
		require.NoError(t, err)
		return v
	}
}

func TestEncodeValue_Deterministic(t *testing.T) {
	v := types.NewInt(7)
	got, err := EncodeValue(v, nil)
	require.NoError(t, err)

	// map(2), "t", "Int", "v", 7
	want := []byte{0xa2, 0x61, 't', 0x63, 'I', 'n', 't', 0x61, 'v', 0x07}
	assert.Equal(t, want, got)

	again, err := EncodeValue(v, nil)
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestBinaryRoundTrip(t *testing.T) {
	mv := mustValue(t)
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	id := uuid.MustParse("a2c8f6e4-1b3d-4e5f-8a9b-0c1d2e3f4a5b")
	inner := mv(types.NewConfidence(0.85))

	vec := mv(types.NewVector([]types.TypedValue{
		mv(types.NewFloat(1.5)),
		mv(types.NewFloat(-2.25)),
		mv(types.NewFloat(0)),
	}, types.Vector{Elem: types.Primitive{Kind: types.Float}, Len: 3}))

	tests := []struct {
		name string
		v    types.TypedValue
	}{
		{"nat", mv(types.NewNat(42))},
		{"negative int", types.NewInt(-1000)},
		{"text", types.NewText("hello, wire")},
		{"bool", types.NewBool(true)},
		{"float", mv(types.NewFloat(3.14159))},
		{"uuid", types.NewUUID(id)},
		{"timestamp", types.NewTimestamp(ts)},
		{"bounded nat", mv(types.NewBoundedNat(97, types.BoundedNat{Min: 0, Max: 100}))},
		{"bounded float", mv(types.NewBoundedFloat(-0.5, types.BoundedFloat{Min: -1, Max: 1}))},
		{"non-empty text", mv(types.NewNonEmptyText("x"))},
		{"confidence", inner},
		{"vector", vec},
		{"provenance", mv(types.NewProvenance(inner, "alice", "initial estimate", ts,
			types.Provenance{Inner: types.Confidence{}}))},
		{"composite score", mv(types.NewCompositeScore([]int64{98, 97}, 97,
			types.CompositeScore{Dims: 2}))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeValue(tt.v, nil)
			require.NoError(t, err)

			got, blobs, err := DecodeValue(data)
			require.NoError(t, err)
			assert.Empty(t, blobs)
			assert.True(t, got.Equal(tt.v), "decoded %s, want %s", got, tt.v)
		})
	}
}

func TestBinaryRoundTrip_ProofBlobs(t *testing.T) {
	mv := mustValue(t)
	v := mv(types.NewBoundedNat(97, types.BoundedNat{Min: 0, Max: 100}))
	blobs := []proof.Blob{{
		Kind:        "int-interval",
		Subject:     "score",
		Description: "0 <= 97 <= 100",
		Evidence:    "interval-check",
		Status:      "auto",
	}}

	data, err := EncodeValue(v, blobs)
	require.NoError(t, err)

	got, gotBlobs, err := DecodeValue(data)
	require.NoError(t, err)
	assert.True(t, got.Equal(v))
	assert.Equal(t, blobs, gotBlobs)
}

func TestDecodeValue_TamperedPayloadRejected(t *testing.T) {
	mv := mustValue(t)
	v := mv(types.NewBoundedNat(97, types.BoundedNat{Min: 0, Max: 100}))
	data, err := EncodeValue(v, nil)
	require.NoError(t, err)

	// The value 97 encodes as the final two bytes 0x18 0x61. Rewriting
	// the payload byte to 255 puts it outside [0,100].
	require.Equal(t, byte(0x61), data[len(data)-1])
	data[len(data)-1] = 0xff

	_, _, err = DecodeValue(data)
	var violation *types.RefinementViolationError
	require.ErrorAs(t, err, &violation)
}

func TestDecodeValue_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"not a map", []byte{0x01}},
		{"truncated", []byte{0xa2, 0x61, 't'}},
		{"wrong entry count", []byte{0xa1, 0x61, 't', 0x60}},
		// Text head declaring 2^63 bytes: must be rejected as
		// truncated, not overflow the bounds check.
		{"huge declared text length", []byte{0xa2, 0x7b, 0x80, 0, 0, 0, 0, 0, 0, 0}},
		// Proof array head declaring 2^36 elements with no payload.
		{"huge declared blob count", []byte{0xa3, 0x61, 'p', 0x9b, 0, 0, 0, 0x10, 0, 0, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeValue(tt.data)
			var se *SerializationError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, "binary", se.Format)
		})
	}
}

func TestDecodeValue_TrailingBytes(t *testing.T) {
	data, err := EncodeValue(types.NewInt(1), nil)
	require.NoError(t, err)
	data = append(data, 0x00)

	_, _, err = DecodeValue(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trailing bytes")
}
