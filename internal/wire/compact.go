package wire

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/refineql/refineql/internal/types"
)

// Compact binary trades self-description for size: one discriminator
// byte per constructor, fixed-width scalars, length-prefixed strings,
// no proof record and no type parameters. The declared type must travel
// out of band; DecodeCompact checks its discriminator and re-runs the
// refinement predicate on every read.

// Constructor discriminators. Values above 0x10 are refined.
const (
	discNat  byte = 0x01
	discInt  byte = 0x02
	discText byte = 0x03
	discBool byte = 0x04
	discFlt  byte = 0x05
	discUUID byte = 0x06
	discTime byte = 0x07

	discBoundedNat     byte = 0x11
	discBoundedFloat   byte = 0x12
	discNonEmptyText   byte = 0x13
	discConfidence     byte = 0x14
	discVector         byte = 0x15
	discProvenance     byte = 0x16
	discCompositeScore byte = 0x17
)

func discFor(t types.TypeExpr) (byte, error) {
	switch tt := t.(type) {
	case types.Primitive:
		switch tt.Kind {
		case types.Nat:
			return discNat, nil
		case types.Int:
			return discInt, nil
		case types.Text:
			return discText, nil
		case types.Bool:
			return discBool, nil
		case types.Float:
			return discFlt, nil
		case types.UUID:
			return discUUID, nil
		case types.Timestamp:
			return discTime, nil
		}
	case types.BoundedNat:
		return discBoundedNat, nil
	case types.BoundedFloat:
		return discBoundedFloat, nil
	case types.NonEmptyText:
		return discNonEmptyText, nil
	case types.Confidence:
		return discConfidence, nil
	case types.Vector:
		return discVector, nil
	case types.Provenance:
		return discProvenance, nil
	case types.CompositeScore:
		return discCompositeScore, nil
	}
	return 0, serr("compact", "unsupported type %s", t)
}

// EncodeCompact renders a typed value in the compact format.
func EncodeCompact(v types.TypedValue) ([]byte, error) {
	if v.IsZero() {
		return nil, serr("compact", "cannot encode the zero value")
	}
	var buf []byte
	return appendCompact(buf, v)
}

func appendCompact(buf []byte, v types.TypedValue) ([]byte, error) {
	disc, err := discFor(v.Type())
	if err != nil {
		return nil, err
	}
	buf = append(buf, disc)
	switch raw := v.Raw().(type) {
	case int64:
		buf = binary.BigEndian.AppendUint64(buf, uint64(raw))
	case float64:
		buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(raw))
	case bool:
		if raw {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	case string:
		buf = appendCompactString(buf, raw)
	case uuid.UUID:
		buf = append(buf, raw[:]...)
	case time.Time:
		buf = binary.BigEndian.AppendUint64(buf, uint64(raw.UTC().UnixNano()))
	case []types.TypedValue:
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(raw)))
		for _, e := range raw {
			if buf, err = appendCompact(buf, e); err != nil {
				return nil, err
			}
		}
	case types.ProvValue:
		buf = appendCompactString(buf, raw.Actor)
		buf = appendCompactString(buf, raw.Rationale)
		buf = binary.BigEndian.AppendUint64(buf, uint64(raw.At.UTC().UnixNano()))
		if buf, err = appendCompact(buf, raw.Inner); err != nil {
			return nil, err
		}
	case types.ScoreValue:
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(raw.Dims)))
		for _, d := range raw.Dims {
			buf = binary.BigEndian.AppendUint64(buf, uint64(d))
		}
		buf = binary.BigEndian.AppendUint64(buf, uint64(raw.Overall))
	default:
		return nil, serr("compact", "unsupported representation %T", raw)
	}
	return buf, nil
}

func appendCompactString(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

type compactReader struct {
	data []byte
	pos  int
}

func (r *compactReader) byte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, serr("compact", "truncated stream at offset %d", r.pos)
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *compactReader) take(n int) ([]byte, error) {
	if r.pos+n > len(r.data) {
		return nil, serr("compact", "truncated stream at offset %d", r.pos)
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *compactReader) uint64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (r *compactReader) uint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *compactReader) string() (string, error) {
	n, err := r.uint32()
	if err != nil {
		return "", err
	}
	b, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeCompact parses a compact stream against its declared type. The
// value is rebuilt through the type's constructor, so data written for a
// looser type fails here rather than smuggling an out-of-range value in.
func DecodeCompact(data []byte, t types.TypeExpr) (types.TypedValue, error) {
	r := &compactReader{data: data}
	v, err := readCompact(r, t)
	if err != nil {
		return types.TypedValue{}, err
	}
	if r.pos != len(r.data) {
		return types.TypedValue{}, serr("compact", "%d trailing bytes after value", len(r.data)-r.pos)
	}
	return v, nil
}

func readCompact(r *compactReader, t types.TypeExpr) (types.TypedValue, error) {
	want, err := discFor(t)
	if err != nil {
		return types.TypedValue{}, err
	}
	got, err := r.byte()
	if err != nil {
		return types.TypedValue{}, err
	}
	if got != want {
		return types.TypedValue{}, serr("compact", "discriminator 0x%02x does not match declared type %s", got, t)
	}
	switch tt := t.(type) {
	case types.Primitive:
		return readCompactPrimitive(r, tt)
	case types.BoundedNat:
		n, err := r.uint64()
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.NewBoundedNat(int64(n), tt)
	case types.BoundedFloat:
		n, err := r.uint64()
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.NewBoundedFloat(math.Float64frombits(n), tt)
	case types.Confidence:
		n, err := r.uint64()
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.NewConfidence(math.Float64frombits(n))
	case types.NonEmptyText:
		s, err := r.string()
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.NewNonEmptyText(s)
	case types.Vector:
		n, err := r.uint32()
		if err != nil {
			return types.TypedValue{}, err
		}
		elems := make([]types.TypedValue, 0, n)
		for i := uint32(0); i < n; i++ {
			e, err := readCompact(r, tt.Elem)
			if err != nil {
				return types.TypedValue{}, err
			}
			elems = append(elems, e)
		}
		return types.NewVector(elems, tt)
	case types.Provenance:
		actor, err := r.string()
		if err != nil {
			return types.TypedValue{}, err
		}
		rationale, err := r.string()
		if err != nil {
			return types.TypedValue{}, err
		}
		nanos, err := r.uint64()
		if err != nil {
			return types.TypedValue{}, err
		}
		inner, err := readCompact(r, tt.Inner)
		if err != nil {
			return types.TypedValue{}, err
		}
		at := time.Unix(0, int64(nanos)).UTC()
		return types.NewProvenance(inner, actor, rationale, at, tt)
	case types.CompositeScore:
		n, err := r.uint32()
		if err != nil {
			return types.TypedValue{}, err
		}
		dims := make([]int64, 0, n)
		for i := uint32(0); i < n; i++ {
			d, err := r.uint64()
			if err != nil {
				return types.TypedValue{}, err
			}
			dims = append(dims, int64(d))
		}
		overall, err := r.uint64()
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.NewCompositeScore(dims, int64(overall), tt)
	default:
		return types.TypedValue{}, serr("compact", "unsupported type %s", t)
	}
}

func readCompactPrimitive(r *compactReader, t types.Primitive) (types.TypedValue, error) {
	switch t.Kind {
	case types.Nat:
		n, err := r.uint64()
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.NewNat(int64(n))
	case types.Int:
		n, err := r.uint64()
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.NewInt(int64(n)), nil
	case types.Float:
		n, err := r.uint64()
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.NewFloat(math.Float64frombits(n))
	case types.Text:
		s, err := r.string()
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.NewText(s), nil
	case types.Bool:
		b, err := r.byte()
		if err != nil {
			return types.TypedValue{}, err
		}
		if b > 1 {
			return types.TypedValue{}, serr("compact", "boolean byte 0x%02x is not 0 or 1", b)
		}
		return types.NewBool(b == 1), nil
	case types.UUID:
		b, err := r.take(16)
		if err != nil {
			return types.TypedValue{}, err
		}
		id, err := uuid.FromBytes(b)
		if err != nil {
			return types.TypedValue{}, swrap("compact", err, "invalid UUID payload")
		}
		return types.NewUUID(id), nil
	case types.Timestamp:
		nanos, err := r.uint64()
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.NewTimestamp(time.Unix(0, int64(nanos)).UTC()), nil
	default:
		return types.TypedValue{}, serr("compact", "unsupported primitive %s", t)
	}
}
