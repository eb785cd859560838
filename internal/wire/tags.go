package wire

import "github.com/refineql/refineql/internal/types"

// CBOR tag numbers for the type constructors, allocated from the
// vendor range 39400-39499. The block is versioned as a whole: a
// breaking change to any payload layout moves the entire block, so old
// and new readers can never misparse each other's bytes.
const (
	tagBlockBase = 39400

	tagBoundedNat     = tagBlockBase + 0
	tagBoundedFloat   = tagBlockBase + 1
	tagNonEmptyText   = tagBlockBase + 2
	tagConfidence     = tagBlockBase + 3
	tagVector         = tagBlockBase + 4
	tagProvenance     = tagBlockBase + 5
	tagCompositeScore = tagBlockBase + 6

	// Primitives that need a tag to be self-describing.
	tagUUID      = tagBlockBase + 10
	tagTimestamp = tagBlockBase + 11
)

// tagFor returns the vendor tag for a refined or tagged-primitive type.
// Untagged primitives (Nat, Int, Text, Bool, Float) return false and
// encode as bare CBOR values.
func tagFor(t types.TypeExpr) (uint64, bool) {
	switch tt := t.(type) {
	case types.BoundedNat:
		return tagBoundedNat, true
	case types.BoundedFloat:
		return tagBoundedFloat, true
	case types.NonEmptyText:
		return tagNonEmptyText, true
	case types.Confidence:
		return tagConfidence, true
	case types.Vector:
		return tagVector, true
	case types.Provenance:
		return tagProvenance, true
	case types.CompositeScore:
		return tagCompositeScore, true
	case types.Primitive:
		switch tt.Kind {
		case types.UUID:
			return tagUUID, true
		case types.Timestamp:
			return tagTimestamp, true
		}
	}
	return 0, false
}
