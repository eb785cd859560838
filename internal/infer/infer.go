// Package infer resolves the most specific catalogue type for every
// literal in an inferred-mode statement, against the schema column it is
// headed for.
//
// Inference never coerces: a literal whose primitive kind does not match
// the column's base kind is a *TypeMismatchError, full stop. When kinds
// match, the column's refinement predicate decides between success
// (auto-provable) and *types.RefinementViolationError.
package infer

import (
	"fmt"
	"time"

	"github.com/refineql/refineql/internal/ast"
	"github.com/refineql/refineql/internal/token"
	"github.com/refineql/refineql/internal/types"
)

// TypeMismatchError reports incompatible primitive kinds between a literal
// and its column, e.g. a string literal for a numeric column.
type TypeMismatchError struct {
	Column string
	Want   types.TypeExpr
	Got    string // literal description, e.g. "string literal"
	Pos    token.Position
}

// Error implements the error interface.
func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%s: type mismatch for column %q: %s cannot inhabit %s",
		e.Pos, e.Column, e.Got, e.Want)
}

// Result is a successful inference.
type Result struct {
	// Type is the inferred type: the column's declared TypeExpr.
	Type types.TypeExpr

	// Value is the constructed TypedValue; its predicate already held.
	Value types.TypedValue

	// AutoProvable marks values whose refinement predicate was decided
	// here, so the proof engine can discharge their obligations without
	// re-deriving anything.
	AutoProvable bool
}

// Infer resolves a value expression against a column's declared type.
//
// The literal's primitive kind must match the column type's base kind.
// One widening is permitted at the literal level: an integer literal may
// inhabit a float-based column, since 95 and 95.0 denote the same number.
// No runtime value is ever converted.
//
// now supplies the timestamp for provenance literals that omit one; a
// nil now falls back to the wall clock.
func Infer(columnName string, columnType types.TypeExpr, expr ast.ValueExpr, now func() time.Time) (Result, error) {
	if now == nil {
		now = time.Now
	}
	v, err := build(columnName, columnType, expr, now)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Type:         columnType,
		Value:        v,
		AutoProvable: types.IsRefined(columnType),
	}, nil
}

// build constructs a TypedValue of exactly want from expr.
func build(col string, want types.TypeExpr, expr ast.ValueExpr, now func() time.Time) (types.TypedValue, error) {
	switch t := want.(type) {
	case types.Primitive:
		return buildPrimitive(col, t, expr)
	case types.BoundedNat:
		n, err := intLit(col, t, expr)
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.NewBoundedNat(n, t)
	case types.BoundedFloat:
		f, err := floatLit(col, t, expr)
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.NewBoundedFloat(f, t)
	case types.NonEmptyText:
		s, err := strLit(col, t, expr)
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.NewNonEmptyText(s)
	case types.Confidence:
		f, err := floatLit(col, t, expr)
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.NewConfidence(f)
	case types.Vector:
		return buildVector(col, t, expr, now)
	case types.Provenance:
		return buildProvenance(col, t, expr, now)
	case types.CompositeScore:
		return buildCompositeScore(col, t, expr)
	default:
		return types.TypedValue{}, fmt.Errorf("unknown type expression %T", want)
	}
}

func buildPrimitive(col string, t types.Primitive, expr ast.ValueExpr) (types.TypedValue, error) {
	switch t.Kind {
	case types.Nat:
		n, err := intLit(col, t, expr)
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.NewNat(n)
	case types.Int:
		n, err := intLit(col, t, expr)
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.NewInt(n), nil
	case types.Text:
		s, err := strLit(col, t, expr)
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.NewText(s), nil
	case types.Bool:
		lit, ok := scalar(expr)
		if !ok || lit.Kind != ast.LitBool {
			return types.TypedValue{}, mismatch(col, t, expr)
		}
		return types.NewBool(lit.BoolVal), nil
	case types.Float:
		f, err := floatLit(col, t, expr)
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.NewFloat(f)
	case types.UUID:
		s, err := strLit(col, t, expr)
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.ParseUUID(s)
	case types.Timestamp:
		s, err := strLit(col, t, expr)
		if err != nil {
			return types.TypedValue{}, err
		}
		ts, perr := time.Parse(time.RFC3339, s)
		if perr != nil {
			return types.TypedValue{}, &TypeMismatchError{
				Column: col,
				Want:   t,
				Got:    fmt.Sprintf("string %q (not an RFC 3339 timestamp)", s),
				Pos:    expr.ValuePos(),
			}
		}
		return types.NewTimestamp(ts), nil
	default:
		return types.TypedValue{}, fmt.Errorf("unknown primitive kind %v", t.Kind)
	}
}

func buildVector(col string, t types.Vector, expr ast.ValueExpr, now func() time.Time) (types.TypedValue, error) {
	list, ok := expr.(ast.List)
	if !ok {
		return types.TypedValue{}, mismatch(col, t, expr)
	}
	elems := make([]types.TypedValue, 0, len(list.Elems))
	for _, e := range list.Elems {
		v, err := build(col, t.Elem, e, now)
		if err != nil {
			return types.TypedValue{}, err
		}
		elems = append(elems, v)
	}
	return types.NewVector(elems, t)
}

// buildProvenance accepts {value: ..., actor: 'a', rationale: 'r'} with an
// optional RFC 3339 timestamp field; absent timestamps default to now.
func buildProvenance(col string, t types.Provenance, expr ast.ValueExpr, now func() time.Time) (types.TypedValue, error) {
	rec, ok := expr.(ast.Record)
	if !ok {
		return types.TypedValue{}, mismatch(col, t, expr)
	}

	valueExpr := rec.Field("value")
	if valueExpr == nil {
		return types.TypedValue{}, recordFieldError(col, t, expr, "value")
	}
	inner, err := build(col, t.Inner, valueExpr, now)
	if err != nil {
		return types.TypedValue{}, err
	}

	actor, err := recordString(col, t, rec, "actor", true)
	if err != nil {
		return types.TypedValue{}, err
	}
	rationale, err := recordString(col, t, rec, "rationale", true)
	if err != nil {
		return types.TypedValue{}, err
	}

	at := now().UTC()
	if tsStr, err := recordString(col, t, rec, "timestamp", false); err != nil {
		return types.TypedValue{}, err
	} else if tsStr != "" {
		parsed, perr := time.Parse(time.RFC3339, tsStr)
		if perr != nil {
			return types.TypedValue{}, &TypeMismatchError{
				Column: col,
				Want:   t,
				Got:    fmt.Sprintf("timestamp %q (not RFC 3339)", tsStr),
				Pos:    expr.ValuePos(),
			}
		}
		at = parsed
	}

	return types.NewProvenance(inner, actor, rationale, at, t)
}

// buildCompositeScore accepts {dims: [n, ...], overall: n}.
func buildCompositeScore(col string, t types.CompositeScore, expr ast.ValueExpr) (types.TypedValue, error) {
	rec, ok := expr.(ast.Record)
	if !ok {
		return types.TypedValue{}, mismatch(col, t, expr)
	}

	dimsExpr := rec.Field("dims")
	if dimsExpr == nil {
		return types.TypedValue{}, recordFieldError(col, t, expr, "dims")
	}
	list, ok := dimsExpr.(ast.List)
	if !ok {
		return types.TypedValue{}, mismatch(col, t, dimsExpr)
	}
	dims := make([]int64, 0, len(list.Elems))
	for _, e := range list.Elems {
		lit, ok := scalar(e)
		if !ok || lit.Kind != ast.LitInt {
			return types.TypedValue{}, mismatch(col, t, e)
		}
		dims = append(dims, lit.IntVal)
	}

	overallExpr := rec.Field("overall")
	if overallExpr == nil {
		return types.TypedValue{}, recordFieldError(col, t, expr, "overall")
	}
	overallLit, ok := scalar(overallExpr)
	if !ok || overallLit.Kind != ast.LitInt {
		return types.TypedValue{}, mismatch(col, t, overallExpr)
	}

	return types.NewCompositeScore(dims, overallLit.IntVal, t)
}

// scalar unwraps a value expression to a scalar literal if it is one.
func scalar(expr ast.ValueExpr) (ast.Literal, bool) {
	lit, ok := expr.(ast.Literal)
	return lit, ok
}

func intLit(col string, want types.TypeExpr, expr ast.ValueExpr) (int64, error) {
	lit, ok := scalar(expr)
	if !ok || lit.Kind != ast.LitInt {
		return 0, mismatch(col, want, expr)
	}
	return lit.IntVal, nil
}

func floatLit(col string, want types.TypeExpr, expr ast.ValueExpr) (float64, error) {
	lit, ok := scalar(expr)
	if !ok {
		return 0, mismatch(col, want, expr)
	}
	switch lit.Kind {
	case ast.LitFloat:
		return lit.FloatVal, nil
	case ast.LitInt:
		// Literal-level widening: 95 denotes the same number as 95.0.
		return float64(lit.IntVal), nil
	default:
		return 0, mismatch(col, want, expr)
	}
}

func strLit(col string, want types.TypeExpr, expr ast.ValueExpr) (string, error) {
	lit, ok := scalar(expr)
	if !ok || lit.Kind != ast.LitString {
		return "", mismatch(col, want, expr)
	}
	return lit.StrVal, nil
}

func recordString(col string, want types.TypeExpr, rec ast.Record, field string, required bool) (string, error) {
	f := rec.Field(field)
	if f == nil {
		if required {
			return "", recordFieldError(col, want, rec, field)
		}
		return "", nil
	}
	lit, ok := scalar(f)
	if !ok || lit.Kind != ast.LitString {
		return "", mismatch(col, want, f)
	}
	return lit.StrVal, nil
}

func mismatch(col string, want types.TypeExpr, expr ast.ValueExpr) *TypeMismatchError {
	return &TypeMismatchError{
		Column: col,
		Want:   want,
		Got:    describe(expr),
		Pos:    expr.ValuePos(),
	}
}

func recordFieldError(col string, want types.TypeExpr, expr ast.ValueExpr, field string) *TypeMismatchError {
	return &TypeMismatchError{
		Column: col,
		Want:   want,
		Got:    fmt.Sprintf("record missing field %q", field),
		Pos:    expr.ValuePos(),
	}
}

func describe(expr ast.ValueExpr) string {
	switch e := expr.(type) {
	case ast.Literal:
		switch e.Kind {
		case ast.LitInt:
			return fmt.Sprintf("integer literal %d", e.IntVal)
		case ast.LitFloat:
			return fmt.Sprintf("float literal %g", e.FloatVal)
		case ast.LitString:
			return fmt.Sprintf("string literal %q", e.StrVal)
		case ast.LitBool:
			return fmt.Sprintf("boolean literal %v", e.BoolVal)
		case ast.LitNull:
			return "NULL literal"
		}
	case ast.List:
		return fmt.Sprintf("list literal of %d elements", len(e.Elems))
	case ast.Record:
		return fmt.Sprintf("record literal of %d fields", len(e.Fields))
	}
	return "value"
}
