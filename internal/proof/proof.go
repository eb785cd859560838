// Package proof emits and discharges verification conditions for refined
// and dependent typed values.
//
// Every independent invariant of a value becomes one Obligation. A fixed,
// ordered battery of decision procedures attempts discharge; the first
// applicable procedure that succeeds settles the obligation. There is no
// search and no backtracking, so discharge is deterministic and bounded.
package proof

import (
	"fmt"

	"github.com/refineql/refineql/internal/types"
)

// Status is an obligation's discharge state.
type Status int

const (
	// StatusUnresolved means no procedure has discharged the obligation.
	StatusUnresolved Status = iota
	// StatusAuto means a decision procedure discharged it.
	StatusAuto
	// StatusManual means the statement declared it externally established.
	StatusManual
)

// String renders the status name.
func (s Status) String() string {
	switch s {
	case StatusAuto:
		return "auto"
	case StatusManual:
		return "manual"
	default:
		return "unresolved"
	}
}

// Discharged reports whether the obligation no longer blocks compilation.
func (s Status) Discharged() bool { return s != StatusUnresolved }

// Predicate is the sealed interface over verification-condition shapes.
// Decision procedures match on these shapes.
type Predicate interface {
	predicate()

	// Describe renders the condition for audit records.
	Describe() string
}

// IntInterval asserts Min <= Value <= Max over integers.
type IntInterval struct {
	Value int64
	Min   int64
	Max   int64
}

func (IntInterval) predicate() {}

// Describe implements Predicate.
func (p IntInterval) Describe() string {
	return fmt.Sprintf("%d <= %d <= %d", p.Min, p.Value, p.Max)
}

// FloatInterval asserts Min <= Value <= Max over floats.
type FloatInterval struct {
	Value float64
	Min   float64
	Max   float64
}

func (FloatInterval) predicate() {}

// Describe implements Predicate.
func (p FloatInterval) Describe() string {
	return fmt.Sprintf("%g <= %g <= %g", p.Min, p.Value, p.Max)
}

// NonZeroLength asserts len(Value) > 0.
type NonZeroLength struct {
	Value string
}

func (NonZeroLength) predicate() {}

// Describe implements Predicate.
func (p NonZeroLength) Describe() string {
	return fmt.Sprintf("length %d > 0", len(p.Value))
}

// ArityEquals asserts an element count matches the type's declared count.
type ArityEquals struct {
	Got  int
	Want int
}

func (ArityEquals) predicate() {}

// Describe implements Predicate.
func (p ArityEquals) Describe() string {
	return fmt.Sprintf("arity %d == %d", p.Got, p.Want)
}

// DerivedEquals asserts a declared derived field structurally equals its
// recomputed value.
type DerivedEquals struct {
	Field    string
	Declared int64
	Derived  int64
}

func (DerivedEquals) predicate() {}

// Describe implements Predicate.
func (p DerivedEquals) Describe() string {
	return fmt.Sprintf("%s: declared %d == derived %d", p.Field, p.Declared, p.Derived)
}

// Obligation is one verification condition over one subject.
type Obligation struct {
	// Name identifies the obligation for proof-clause references,
	// e.g. "score_bounds" or "assessment_overall".
	Name string

	// Subject is the column or sub-value the condition constrains.
	Subject string

	// Predicate is the condition itself.
	Predicate Predicate

	// Status is the discharge state. Zero value is unresolved.
	Status Status
}

// String renders the obligation for diagnostics.
func (o Obligation) String() string {
	return fmt.Sprintf("%s: %s [%s]", o.Name, o.Predicate.Describe(), o.Status)
}

// ObligationsFor walks a typed value and emits one obligation per
// independent invariant. Unrefined primitives emit none.
func ObligationsFor(subject string, v types.TypedValue) []Obligation {
	var obs []Obligation
	collect(subject, v, &obs)
	return obs
}

func collect(subject string, v types.TypedValue, obs *[]Obligation) {
	switch t := v.Type().(type) {
	case types.Primitive:
		// No refinement, no obligation.
	case types.BoundedNat:
		*obs = append(*obs, Obligation{
			Name:      subject + "_bounds",
			Subject:   subject,
			Predicate: IntInterval{Value: v.Raw().(int64), Min: t.Min, Max: t.Max},
		})
	case types.BoundedFloat:
		*obs = append(*obs, Obligation{
			Name:      subject + "_bounds",
			Subject:   subject,
			Predicate: FloatInterval{Value: v.Raw().(float64), Min: t.Min, Max: t.Max},
		})
	case types.Confidence:
		*obs = append(*obs, Obligation{
			Name:      subject + "_bounds",
			Subject:   subject,
			Predicate: FloatInterval{Value: v.Raw().(float64), Min: 0, Max: 1},
		})
	case types.NonEmptyText:
		*obs = append(*obs, Obligation{
			Name:      subject + "_nonempty",
			Subject:   subject,
			Predicate: NonZeroLength{Value: v.Raw().(string)},
		})
	case types.Vector:
		elems := v.Raw().([]types.TypedValue)
		*obs = append(*obs, Obligation{
			Name:      subject + "_arity",
			Subject:   subject,
			Predicate: ArityEquals{Got: len(elems), Want: t.Len},
		})
		for i, e := range elems {
			collect(fmt.Sprintf("%s_%d", subject, i), e, obs)
		}
	case types.Provenance:
		pv := v.Raw().(types.ProvValue)
		*obs = append(*obs, Obligation{
			Name:      subject + "_rationale",
			Subject:   subject,
			Predicate: NonZeroLength{Value: pv.Rationale},
		})
		collect(subject+"_value", pv.Inner, obs)
	case types.CompositeScore:
		sv := v.Raw().(types.ScoreValue)
		for i, d := range sv.Dims {
			*obs = append(*obs, Obligation{
				Name:      fmt.Sprintf("%s_dim_%d", subject, i),
				Subject:   fmt.Sprintf("%s.dims[%d]", subject, i),
				Predicate: IntInterval{Value: d, Min: 0, Max: 100},
			})
		}
		*obs = append(*obs, Obligation{
			Name:    subject + "_overall",
			Subject: subject,
			Predicate: DerivedEquals{
				Field:    "overall",
				Declared: sv.Overall,
				Derived:  types.RoundMean(sv.Dims),
			},
		})
	}
}
