package types

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// TypedValue is a runtime value indexed by exactly one TypeExpr. Its
// representation always satisfies the type's predicate: the only way to
// obtain one is through the New* smart constructors, which evaluate the
// predicate and fail with *RefinementViolationError when it does not hold.
//
// Runtime representations by type:
//
//	Nat, Int, BoundedNat    int64
//	Float, BoundedFloat,
//	Confidence              float64
//	Text, NonEmptyText      string
//	Bool                    bool
//	UUID                    uuid.UUID
//	Timestamp               time.Time (UTC)
//	Vector                  []TypedValue
//	Provenance              ProvValue
//	CompositeScore          ScoreValue
//
// TypedValue is immutable after construction.
type TypedValue struct {
	typ TypeExpr
	raw any
}

// Type returns the value's type expression.
func (v TypedValue) Type() TypeExpr { return v.typ }

// Raw returns the underlying representation.
func (v TypedValue) Raw() any { return v.raw }

// IsZero reports whether v is the zero TypedValue (no type attached).
func (v TypedValue) IsZero() bool { return v.typ == nil }

// String renders "value : Type" for diagnostics.
func (v TypedValue) String() string {
	return fmt.Sprintf("%v : %s", v.raw, v.typ)
}

// Equal reports deep equality of type and representation.
func (v TypedValue) Equal(o TypedValue) bool {
	if v.typ == nil || o.typ == nil {
		return v.typ == nil && o.typ == nil
	}
	if !v.typ.Equal(o.typ) {
		return false
	}
	switch a := v.raw.(type) {
	case []TypedValue:
		b, ok := o.raw.([]TypedValue)
		if !ok || len(a) != len(b) {
			return false
		}
		for i := range a {
			if !a[i].Equal(b[i]) {
				return false
			}
		}
		return true
	case ProvValue:
		b, ok := o.raw.(ProvValue)
		return ok && a.Actor == b.Actor && a.Rationale == b.Rationale &&
			a.At.Equal(b.At) && a.Inner.Equal(b.Inner)
	case ScoreValue:
		b, ok := o.raw.(ScoreValue)
		if !ok || a.Overall != b.Overall || len(a.Dims) != len(b.Dims) {
			return false
		}
		for i := range a.Dims {
			if a.Dims[i] != b.Dims[i] {
				return false
			}
		}
		return true
	case time.Time:
		b, ok := o.raw.(time.Time)
		return ok && a.Equal(b)
	default:
		return v.raw == o.raw
	}
}

// ProvValue is the representation of a Provenance-wrapped value.
type ProvValue struct {
	Inner     TypedValue
	Actor     string
	Rationale string
	At        time.Time
}

// ScoreValue is the representation of a CompositeScore value.
type ScoreValue struct {
	Dims    []int64
	Overall int64
}

// RoundMean computes the derived overall for a dimension list: the mean
// rounded half-down, so 97.5 rounds to 97. Callers must pass a non-empty
// slice.
func RoundMean(dims []int64) int64 {
	var sum int64
	for _, d := range dims {
		sum += d
	}
	mean := float64(sum) / float64(len(dims))
	return int64(math.Ceil(mean - 0.5))
}

// NewNat constructs a Nat. Naturals are non-negative.
func NewNat(v int64) (TypedValue, error) {
	t := Primitive{Kind: Nat}
	if v < 0 {
		return TypedValue{}, violationf(t, v, "use a value >= 0", "%d is negative", v)
	}
	return TypedValue{typ: t, raw: v}, nil
}

// NewInt constructs an Int.
func NewInt(v int64) TypedValue {
	return TypedValue{typ: Primitive{Kind: Int}, raw: v}
}

// NewText constructs a Text.
func NewText(v string) TypedValue {
	return TypedValue{typ: Primitive{Kind: Text}, raw: v}
}

// NewBool constructs a Bool.
func NewBool(v bool) TypedValue {
	return TypedValue{typ: Primitive{Kind: Bool}, raw: v}
}

// NewFloat constructs a Float. NaN and infinities are rejected: they have
// no order, so no bound predicate over them is decidable.
func NewFloat(v float64) (TypedValue, error) {
	t := Primitive{Kind: Float}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return TypedValue{}, violationf(t, v, "use a finite value", "%v is not a finite number", v)
	}
	return TypedValue{typ: t, raw: v}, nil
}

// NewUUID constructs a UUID value.
func NewUUID(v uuid.UUID) TypedValue {
	return TypedValue{typ: Primitive{Kind: UUID}, raw: v}
}

// ParseUUID constructs a UUID value from its string form.
func ParseUUID(s string) (TypedValue, error) {
	t := Primitive{Kind: UUID}
	id, err := uuid.Parse(s)
	if err != nil {
		return TypedValue{}, violationf(t, s, "use RFC 4122 hyphenated form", "%q is not a valid UUID", s)
	}
	return TypedValue{typ: t, raw: id}, nil
}

// NewTimestamp constructs a Timestamp, normalized to UTC.
func NewTimestamp(v time.Time) TypedValue {
	return TypedValue{typ: Primitive{Kind: Timestamp}, raw: v.UTC()}
}

// NewBoundedNat constructs a value of BoundedNat[min,max].
func NewBoundedNat(v int64, t BoundedNat) (TypedValue, error) {
	suggestion := fmt.Sprintf("use a value between %d and %d", t.Min, t.Max)
	if v < t.Min {
		return TypedValue{}, violationf(t, v, suggestion, "%d is below minimum %d", v, t.Min)
	}
	if v > t.Max {
		return TypedValue{}, violationf(t, v, suggestion, "%d exceeds maximum %d", v, t.Max)
	}
	return TypedValue{typ: t, raw: v}, nil
}

// NewBoundedFloat constructs a value of BoundedFloat[min,max].
func NewBoundedFloat(v float64, t BoundedFloat) (TypedValue, error) {
	suggestion := fmt.Sprintf("use a value between %s and %s", formatFloat(t.Min), formatFloat(t.Max))
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return TypedValue{}, violationf(t, v, suggestion, "%v is not a finite number", v)
	}
	if v < t.Min {
		return TypedValue{}, violationf(t, v, suggestion, "%s is below minimum %s", formatFloat(v), formatFloat(t.Min))
	}
	if v > t.Max {
		return TypedValue{}, violationf(t, v, suggestion, "%s exceeds maximum %s", formatFloat(v), formatFloat(t.Max))
	}
	return TypedValue{typ: t, raw: v}, nil
}

// NewNonEmptyText constructs a NonEmptyText.
func NewNonEmptyText(v string) (TypedValue, error) {
	t := NonEmptyText{}
	if len(v) == 0 {
		return TypedValue{}, violationf(t, v, "provide at least one character", "string is empty")
	}
	return TypedValue{typ: t, raw: v}, nil
}

// NewConfidence constructs a Confidence in [0,1].
func NewConfidence(v float64) (TypedValue, error) {
	t := Confidence{}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > 1 {
		return TypedValue{}, violationf(t, v, "use a value between 0 and 1", "%v is outside [0,1]", v)
	}
	return TypedValue{typ: t, raw: v}, nil
}

// NewVector constructs a Vector[elem,len(vals)] against the declared type.
// Every element must already inhabit t.Elem; the length must match t.Len.
func NewVector(vals []TypedValue, t Vector) (TypedValue, error) {
	if len(vals) != t.Len {
		return TypedValue{}, violationf(t, vals,
			fmt.Sprintf("provide exactly %d elements", t.Len),
			"vector has %d elements, type requires %d", len(vals), t.Len)
	}
	for i, v := range vals {
		if !v.Type().Equal(t.Elem) {
			return TypedValue{}, violationf(t, vals, "",
				"element %d has type %s, want %s", i, v.Type(), t.Elem)
		}
	}
	elems := make([]TypedValue, len(vals))
	copy(elems, vals)
	return TypedValue{typ: t, raw: elems}, nil
}

// NewProvenance wraps inner with audit metadata. The rationale must be
// non-empty and the inner value must inhabit t.Inner.
func NewProvenance(inner TypedValue, actor, rationale string, at time.Time, t Provenance) (TypedValue, error) {
	if rationale == "" {
		return TypedValue{}, violationf(t, inner.Raw(), "state why the value was recorded", "rationale is empty")
	}
	if !inner.Type().Equal(t.Inner) {
		return TypedValue{}, violationf(t, inner.Raw(), "",
			"wrapped value has type %s, want %s", inner.Type(), t.Inner)
	}
	return TypedValue{typ: t, raw: ProvValue{
		Inner:     inner,
		Actor:     actor,
		Rationale: rationale,
		At:        at.UTC(),
	}}, nil
}

// NewCompositeScore constructs a CompositeScore from its dimensions and a
// declared overall. Every dimension must lie in [0,100] and the overall
// must equal RoundMean(dims).
func NewCompositeScore(dims []int64, overall int64, t CompositeScore) (TypedValue, error) {
	if len(dims) != t.Dims {
		return TypedValue{}, violationf(t, dims,
			fmt.Sprintf("provide exactly %d dimensions", t.Dims),
			"score has %d dimensions, type requires %d", len(dims), t.Dims)
	}
	if len(dims) == 0 {
		return TypedValue{}, violationf(t, dims, "provide at least one dimension", "score has no dimensions")
	}
	for i, d := range dims {
		if d < 0 || d > 100 {
			return TypedValue{}, violationf(t, d,
				"use dimension values between 0 and 100",
				"dimension %d is %d, outside [0,100]", i, d)
		}
	}
	if want := RoundMean(dims); overall != want {
		return TypedValue{}, violationf(t, overall,
			fmt.Sprintf("use overall = %d", want),
			"declared overall %d does not equal round(mean(dimensions)) = %d", overall, want)
	}
	ds := make([]int64, len(dims))
	copy(ds, dims)
	return TypedValue{typ: t, raw: ScoreValue{Dims: ds, Overall: overall}}, nil
}
