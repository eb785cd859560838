package proof

import (
	"fmt"
	"strings"
)

// Procedure is one decision procedure in the discharge battery.
//
// Procedures are pure: Discharge inspects the predicate and returns
// whether it holds. A procedure that does not apply to a predicate shape
// is skipped.
type Procedure interface {
	// Name identifies the procedure in audit blobs.
	Name() string

	// Applies reports whether the procedure can decide the predicate.
	Applies(Predicate) bool

	// Discharge evaluates the predicate. Only called when Applies is true.
	Discharge(Predicate) bool
}

// intervalCheck decides integer and float interval predicates.
type intervalCheck struct{}

func (intervalCheck) Name() string { return "interval-check" }

func (intervalCheck) Applies(p Predicate) bool {
	switch p.(type) {
	case IntInterval, FloatInterval:
		return true
	}
	return false
}

func (intervalCheck) Discharge(p Predicate) bool {
	switch q := p.(type) {
	case IntInterval:
		return q.Min <= q.Value && q.Value <= q.Max
	case FloatInterval:
		return q.Min <= q.Value && q.Value <= q.Max
	}
	return false
}

// lengthCheck decides length predicates: non-zero string length and
// arity equalities.
type lengthCheck struct{}

func (lengthCheck) Name() string { return "length-check" }

func (lengthCheck) Applies(p Predicate) bool {
	switch p.(type) {
	case NonZeroLength, ArityEquals:
		return true
	}
	return false
}

func (lengthCheck) Discharge(p Predicate) bool {
	switch q := p.(type) {
	case NonZeroLength:
		return len(q.Value) > 0
	case ArityEquals:
		return q.Got == q.Want
	}
	return false
}

// structuralEquality decides derived-field predicates.
type structuralEquality struct{}

func (structuralEquality) Name() string { return "structural-equality" }

func (structuralEquality) Applies(p Predicate) bool {
	_, ok := p.(DerivedEquals)
	return ok
}

func (structuralEquality) Discharge(p Predicate) bool {
	q := p.(DerivedEquals)
	return q.Declared == q.Derived
}

// Engine runs the discharge battery in a fixed order. The order is part
// of the engine's contract: the first applicable procedure that succeeds
// discharges the obligation, and re-running the engine on a discharged
// obligation yields the same result.
type Engine struct {
	procedures []Procedure
}

// NewEngine creates an Engine with the standard battery:
// interval check, then length check, then structural equality.
func NewEngine() *Engine {
	return &Engine{
		procedures: []Procedure{
			intervalCheck{},
			lengthCheck{},
			structuralEquality{},
		},
	}
}

// Discharge attempts to discharge one obligation, returning the updated
// obligation and the name of the deciding procedure (empty when the
// obligation stays unresolved). Already-discharged obligations pass
// through untouched.
func (e *Engine) Discharge(ob Obligation) (Obligation, string) {
	if ob.Status.Discharged() {
		return ob, ""
	}
	for _, proc := range e.procedures {
		if !proc.Applies(ob.Predicate) {
			continue
		}
		if proc.Discharge(ob.Predicate) {
			ob.Status = StatusAuto
			return ob, proc.Name()
		}
		// The procedure decided the predicate false. No later procedure
		// may overturn it: the battery decides, it does not vote.
		return ob, ""
	}
	return ob, ""
}

// DischargeAll runs the battery over every obligation, honoring manual
// declarations first. Returns the updated obligations and the audit
// blobs for discharged ones.
func (e *Engine) DischargeAll(obs []Obligation, manual map[string]bool) ([]Obligation, []Blob) {
	out := make([]Obligation, len(obs))
	var blobs []Blob
	for i, ob := range obs {
		if manual[ob.Name] {
			ob.Status = StatusManual
			out[i] = ob
			blobs = append(blobs, BlobFor(ob, "declared manual"))
			continue
		}
		discharged, procName := e.Discharge(ob)
		out[i] = discharged
		if discharged.Status.Discharged() {
			blobs = append(blobs, BlobFor(discharged, procName))
		}
	}
	return out, blobs
}

// Unresolved filters the obligations that remain undischarged.
func Unresolved(obs []Obligation) []Obligation {
	var out []Obligation
	for _, ob := range obs {
		if !ob.Status.Discharged() {
			out = append(out, ob)
		}
	}
	return out
}

// UnresolvedError reports obligations a strict-tier statement could not
// discharge. The statement never reaches IR.
type UnresolvedError struct {
	Obligations []Obligation
}

// Error implements the error interface.
func (e *UnresolvedError) Error() string {
	names := make([]string, len(e.Obligations))
	for i, ob := range e.Obligations {
		names[i] = fmt.Sprintf("%s (%s)", ob.Name, ob.Predicate.Describe())
	}
	return fmt.Sprintf("unresolved proof obligations: %s", strings.Join(names, ", "))
}

// Blob is a serialized audit record of one discharge: human-auditable
// metadata, not an independently re-checkable certificate.
type Blob struct {
	Kind        string `json:"kind"`        // predicate shape, e.g. "int-interval"
	Subject     string `json:"subject"`     // what was constrained
	Description string `json:"description"` // the condition that held
	Evidence    string `json:"evidence"`    // deciding procedure or declaration
	Status      string `json:"status"`      // "auto" or "manual"
}

// BlobFor builds the audit blob for a discharged obligation.
func BlobFor(ob Obligation, evidence string) Blob {
	return Blob{
		Kind:        predicateKind(ob.Predicate),
		Subject:     ob.Subject,
		Description: ob.Predicate.Describe(),
		Evidence:    evidence,
		Status:      ob.Status.String(),
	}
}

func predicateKind(p Predicate) string {
	switch p.(type) {
	case IntInterval:
		return "int-interval"
	case FloatInterval:
		return "float-interval"
	case NonZeroLength:
		return "non-zero-length"
	case ArityEquals:
		return "arity-equals"
	case DerivedEquals:
		return "derived-equals"
	default:
		return "unknown"
	}
}
