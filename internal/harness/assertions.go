package harness

import (
	"context"
	"fmt"

	"github.com/refineql/refineql/internal/compile"
	"github.com/refineql/refineql/internal/ir"
	"github.com/refineql/refineql/internal/store"
)

// AssertionContext carries what assertions need to query final state.
type AssertionContext struct {
	Store    *store.Store
	Compiler *compile.Compiler
	Ctx      context.Context
}

// EvaluateAssertions checks every assertion against the final database
// state and returns one message per failure. Assertions are evaluated
// independently so a report covers everything that broke, not just the
// first thing.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluateAssertion(&a, actx); err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d] (%s): %v", i, a.Type, err))
		}
	}
	return failures
}

func evaluateAssertion(a *Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertRowCount:
		return assertRowCount(a, actx)
	case AssertState:
		return assertState(a, actx)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func compileQuery(a *Assertion, actx *AssertionContext) (*ir.Select, error) {
	stmt, err := actx.Compiler.Compile(actx.Ctx, a.Query)
	if err != nil {
		return nil, fmt.Errorf("compiling query: %w", err)
	}
	sel, ok := stmt.(*ir.Select)
	if !ok {
		return nil, fmt.Errorf("query must be a SELECT, got %s", stmt.Kind())
	}
	return sel, nil
}

func assertRowCount(a *Assertion, actx *AssertionContext) error {
	sel, err := compileQuery(a, actx)
	if err != nil {
		return err
	}
	count, err := countRows(actx.Ctx, actx.Store, sel)
	if err != nil {
		return err
	}
	if count != int64(a.Count) {
		return fmt.Errorf("expected %d row(s), got %d", a.Count, count)
	}
	return nil
}

// assertState checks expected field values against the first returned
// row. Subset match: fields absent from expect are ignored.
func assertState(a *Assertion, actx *AssertionContext) error {
	sel, err := compileQuery(a, actx)
	if err != nil {
		return err
	}
	rows, err := actx.Store.Query(actx.Ctx, sel)
	if err != nil {
		return err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return err
		}
		return fmt.Errorf("query returned no rows")
	}

	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return err
	}

	row := make(map[string]any, len(cols))
	for i, c := range cols {
		row[c] = vals[i]
	}
	for field, want := range a.Expect {
		got, ok := row[field]
		if !ok {
			return fmt.Errorf("field %q not in query result (columns: %v)", field, cols)
		}
		if !valuesEqual(want, got) {
			return fmt.Errorf("field %q: expected %v, got %v", field, want, got)
		}
	}
	return nil
}

// valuesEqual compares a YAML expectation against a driver value.
// SQLite hands back int64 for INTEGER and []byte for TEXT in some
// paths, while YAML parses int and string, so both sides are rendered
// before comparison.
func valuesEqual(want, got any) bool {
	if b, ok := got.([]byte); ok {
		got = string(b)
	}
	return fmt.Sprintf("%v", want) == fmt.Sprintf("%v", got)
}
