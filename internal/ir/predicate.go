package ir

import (
	"fmt"
	"strings"

	"github.com/refineql/refineql/internal/types"
)

// Predicate is the sealed interface over resolved row-selecting
// predicates. Every column reference has been checked against the schema
// and every literal carries its verified type.
type Predicate interface {
	predicateNode() // Sealed - only types in this package implement it

	// Columns lists the column names the predicate touches.
	Columns() []string

	// String renders the predicate in surface syntax for diagnostics.
	String() string
}

// CompareOp is a comparison operator in a resolved predicate.
type CompareOp string

// Comparison operators.
const (
	OpEq   CompareOp = "="
	OpNeq  CompareOp = "!="
	OpLt   CompareOp = "<"
	OpLte  CompareOp = "<="
	OpGt   CompareOp = ">"
	OpGte  CompareOp = ">="
	OpLike CompareOp = "LIKE"
)

// Compare is column <op> value.
type Compare struct {
	Column string
	Op     CompareOp
	Value  types.TypedValue
}

func (Compare) predicateNode() {}

// Columns implements Predicate.
func (p Compare) Columns() []string { return []string{p.Column} }

// String implements Predicate.
func (p Compare) String() string {
	return fmt.Sprintf("%s %s %v", p.Column, p.Op, p.Value.Raw())
}

// And requires every sub-predicate to hold.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Columns implements Predicate.
func (p And) Columns() []string { return unionColumns(p.Predicates) }

// String implements Predicate.
func (p And) String() string { return joinPredicates(p.Predicates, " AND ") }

// Or requires at least one sub-predicate to hold.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// Columns implements Predicate.
func (p Or) Columns() []string { return unionColumns(p.Predicates) }

// String implements Predicate.
func (p Or) String() string { return joinPredicates(p.Predicates, " OR ") }

// Not negates a sub-predicate.
type Not struct {
	Predicate Predicate
}

func (Not) predicateNode() {}

// Columns implements Predicate.
func (p Not) Columns() []string { return p.Predicate.Columns() }

// String implements Predicate.
func (p Not) String() string { return "NOT (" + p.Predicate.String() + ")" }

// Between is column BETWEEN low AND high, bounds inclusive.
type Between struct {
	Column  string
	Low     types.TypedValue
	High    types.TypedValue
	Negated bool
}

func (Between) predicateNode() {}

// Columns implements Predicate.
func (p Between) Columns() []string { return []string{p.Column} }

// String implements Predicate.
func (p Between) String() string {
	not := ""
	if p.Negated {
		not = "NOT "
	}
	return fmt.Sprintf("%s %sBETWEEN %v AND %v", p.Column, not, p.Low.Raw(), p.High.Raw())
}

// In is column IN (v1, v2, ...).
type In struct {
	Column  string
	Set     []types.TypedValue
	Negated bool
}

func (In) predicateNode() {}

// Columns implements Predicate.
func (p In) Columns() []string { return []string{p.Column} }

// String implements Predicate.
func (p In) String() string {
	vals := make([]string, len(p.Set))
	for i, v := range p.Set {
		vals[i] = fmt.Sprintf("%v", v.Raw())
	}
	not := ""
	if p.Negated {
		not = "NOT "
	}
	return fmt.Sprintf("%s %sIN (%s)", p.Column, not, strings.Join(vals, ", "))
}

// IsNull is column IS [NOT] NULL.
type IsNull struct {
	Column  string
	Negated bool
}

func (IsNull) predicateNode() {}

// Columns implements Predicate.
func (p IsNull) Columns() []string { return []string{p.Column} }

// String implements Predicate.
func (p IsNull) String() string {
	if p.Negated {
		return p.Column + " IS NOT NULL"
	}
	return p.Column + " IS NULL"
}

// PredicateValues collects every typed literal inside a predicate tree.
func PredicateValues(p Predicate) []types.TypedValue {
	if p == nil {
		return nil
	}
	switch q := p.(type) {
	case Compare:
		return []types.TypedValue{q.Value}
	case And:
		return collectValues(q.Predicates)
	case Or:
		return collectValues(q.Predicates)
	case Not:
		return PredicateValues(q.Predicate)
	case Between:
		return []types.TypedValue{q.Low, q.High}
	case In:
		return q.Set
	case IsNull:
		return nil
	default:
		return nil
	}
}

func collectValues(ps []Predicate) []types.TypedValue {
	var out []types.TypedValue
	for _, p := range ps {
		out = append(out, PredicateValues(p)...)
	}
	return out
}

func unionColumns(ps []Predicate) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range ps {
		for _, c := range p.Columns() {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	return out
}

func joinPredicates(ps []Predicate, sep string) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = "(" + p.String() + ")"
	}
	return strings.Join(parts, sep)
}
