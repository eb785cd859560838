// Package types defines the closed RQL type catalogue: primitive, refined,
// and dependent type expressions, their predicates, and the smart
// constructors that are the only way to obtain a TypedValue of a refined
// or dependent type.
//
// TypeExpr values are immutable and compared structurally. The catalogue
// is sealed: no package outside this one can add a constructor.
package types

import "fmt"

// TypeExpr is a sealed interface over the catalogue's constructors.
// Only types in this package implement it. The marker method enables
// exhaustive type switches in the inference engine and serializers.
type TypeExpr interface {
	typeExpr() // Sealed - only catalogue constructors implement it

	// Equal reports structural equality with another expression.
	Equal(TypeExpr) bool

	// String renders the surface syntax, e.g. "BoundedNat[0,100]".
	String() string
}

// PrimitiveKind identifies one of the seven primitive types.
type PrimitiveKind int

const (
	Nat PrimitiveKind = iota // non-negative int64
	Int
	Text
	Bool
	Float
	UUID
	Timestamp
)

var primitiveNames = map[PrimitiveKind]string{
	Nat:       "Nat",
	Int:       "Int",
	Text:      "Text",
	Bool:      "Bool",
	Float:     "Float",
	UUID:      "UUID",
	Timestamp: "Timestamp",
}

// String returns the surface spelling of the primitive kind.
func (k PrimitiveKind) String() string {
	if s, ok := primitiveNames[k]; ok {
		return s
	}
	return fmt.Sprintf("PrimitiveKind(%d)", int(k))
}

// Primitive is an unrefined base type.
type Primitive struct {
	Kind PrimitiveKind
}

func (Primitive) typeExpr() {}

// Equal implements TypeExpr.
func (p Primitive) Equal(o TypeExpr) bool {
	q, ok := o.(Primitive)
	return ok && p.Kind == q.Kind
}

// String implements TypeExpr.
func (p Primitive) String() string { return p.Kind.String() }

// BoundedNat is a natural number refined to the closed interval [Min, Max].
type BoundedNat struct {
	Min int64
	Max int64
}

func (BoundedNat) typeExpr() {}

// Equal implements TypeExpr.
func (t BoundedNat) Equal(o TypeExpr) bool {
	u, ok := o.(BoundedNat)
	return ok && t.Min == u.Min && t.Max == u.Max
}

// String implements TypeExpr.
func (t BoundedNat) String() string {
	return fmt.Sprintf("BoundedNat[%d,%d]", t.Min, t.Max)
}

// BoundedFloat is a float refined to the closed interval [Min, Max].
type BoundedFloat struct {
	Min float64
	Max float64
}

func (BoundedFloat) typeExpr() {}

// Equal implements TypeExpr.
func (t BoundedFloat) Equal(o TypeExpr) bool {
	u, ok := o.(BoundedFloat)
	return ok && t.Min == u.Min && t.Max == u.Max
}

// String implements TypeExpr.
func (t BoundedFloat) String() string {
	return fmt.Sprintf("BoundedFloat[%s,%s]", formatFloat(t.Min), formatFloat(t.Max))
}

// NonEmptyText is text refined to length > 0.
type NonEmptyText struct{}

func (NonEmptyText) typeExpr() {}

// Equal implements TypeExpr.
func (NonEmptyText) Equal(o TypeExpr) bool {
	_, ok := o.(NonEmptyText)
	return ok
}

// String implements TypeExpr.
func (NonEmptyText) String() string { return "NonEmptyText" }

// Confidence is a float refined to [0,1]. It is its own constructor rather
// than an alias for BoundedFloat[0,1]: the two are NOT structurally equal,
// and serialize under distinct wire tags.
type Confidence struct{}

func (Confidence) typeExpr() {}

// Equal implements TypeExpr.
func (Confidence) Equal(o TypeExpr) bool {
	_, ok := o.(Confidence)
	return ok
}

// String implements TypeExpr.
func (Confidence) String() string { return "Confidence" }

// Vector is a fixed-length sequence whose elements all inhabit Elem.
// The length is part of the type.
type Vector struct {
	Elem TypeExpr
	Len  int
}

func (Vector) typeExpr() {}

// Equal implements TypeExpr.
func (t Vector) Equal(o TypeExpr) bool {
	u, ok := o.(Vector)
	return ok && t.Len == u.Len && t.Elem.Equal(u.Elem)
}

// String implements TypeExpr.
func (t Vector) String() string {
	return fmt.Sprintf("Vector[%s,%d]", t.Elem, t.Len)
}

// Provenance wraps an inner type with mandatory audit metadata
// (actor, rationale, timestamp). The rationale must be non-empty.
type Provenance struct {
	Inner TypeExpr
}

func (Provenance) typeExpr() {}

// Equal implements TypeExpr.
func (t Provenance) Equal(o TypeExpr) bool {
	u, ok := o.(Provenance)
	return ok && t.Inner.Equal(u.Inner)
}

// String implements TypeExpr.
func (t Provenance) String() string {
	return fmt.Sprintf("Provenance[%s]", t.Inner)
}

// CompositeScore is a multi-dimension score with Dims dimensions, each in
// [0,100], plus a derived overall field that must equal the rounded mean
// of the dimensions.
type CompositeScore struct {
	Dims int
}

func (CompositeScore) typeExpr() {}

// Equal implements TypeExpr.
func (t CompositeScore) Equal(o TypeExpr) bool {
	u, ok := o.(CompositeScore)
	return ok && t.Dims == u.Dims
}

// String implements TypeExpr.
func (t CompositeScore) String() string {
	return fmt.Sprintf("CompositeScore[%d]", t.Dims)
}

// IsRefined reports whether t carries a refinement or dependent predicate,
// i.e. whether values of t generate proof obligations.
func IsRefined(t TypeExpr) bool {
	switch t.(type) {
	case Primitive:
		return false
	default:
		return true
	}
}

// BaseOf returns the primitive kind underlying a type expression. For
// dependent constructors it is the kind of the outermost scalar payload:
// vectors report their element's base, provenance its inner base, and
// composite scores Nat.
func BaseOf(t TypeExpr) PrimitiveKind {
	switch u := t.(type) {
	case Primitive:
		return u.Kind
	case BoundedNat:
		return Nat
	case BoundedFloat:
		return Float
	case NonEmptyText:
		return Text
	case Confidence:
		return Float
	case Vector:
		return BaseOf(u.Elem)
	case Provenance:
		return BaseOf(u.Inner)
	case CompositeScore:
		return Nat
	default:
		panic(fmt.Sprintf("unknown TypeExpr %T", t))
	}
}

// formatFloat renders a float bound without trailing zero noise.
func formatFloat(f float64) string {
	s := fmt.Sprintf("%g", f)
	return s
}
