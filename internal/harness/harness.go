// Package harness provides a conformance testing framework for the
// statement pipeline.
//
// A scenario is a YAML file describing a sequence of statements, the
// outcome each one should have, and assertions over the final database
// state. Every scenario runs against a fresh in-memory database with a
// deterministic clock and caller id, so repeated runs produce identical
// results and golden files stay byte-stable.
//
// The harness exercises the real pipeline end to end: statements are
// compiled through the type checker and proof engine, permission
// filtering applies when the scenario names a role, and mutations go
// through the store's transactional apply path including the runtime
// recheck of deferred obligations.
package harness

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/refineql/refineql/internal/compile"
	"github.com/refineql/refineql/internal/ir"
	"github.com/refineql/refineql/internal/perm"
	"github.com/refineql/refineql/internal/schema"
	"github.com/refineql/refineql/internal/store"
	"github.com/refineql/refineql/internal/testutil"
)

// Harness executes one scenario against a fresh store.
type Harness struct {
	store    *store.Store
	compiler *compile.Compiler
	clock    *testutil.Clock
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation. The
// compiler session is shared across setup, steps and assertions, so
// collections created in setup resolve in later statements.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("creating in-memory store: %w", err)
	}
	defer st.Close()

	compiler, clock, err := newScenarioCompiler(scenario)
	if err != nil {
		return nil, err
	}

	h := &Harness{store: st, compiler: compiler, clock: clock}
	ctx := context.Background()

	result := NewResult()
	if err := h.executeSetup(ctx, scenario.Setup); err != nil {
		return nil, fmt.Errorf("executing setup: %w", err)
	}
	h.executeSteps(ctx, scenario.Steps, result)

	actx := &AssertionContext{Store: st, Compiler: compiler, Ctx: ctx}
	for _, msg := range EvaluateAssertions(scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func newScenarioCompiler(scenario *Scenario) (*compile.Compiler, *testutil.Clock, error) {
	var registry schema.Registry = schema.NewStatic()
	if scenario.Schema != "" {
		src, err := os.ReadFile(scenario.Schema)
		if err != nil {
			return nil, nil, fmt.Errorf("reading schema registry: %w", err)
		}
		registry = schema.NewCUERegistry(src)
	}

	clock := testutil.NewDefaultClock()
	opts := []compile.Option{
		compile.WithCaller(testutil.FixedCaller()),
		compile.WithClock(clock.Now),
	}
	if scenario.Role != "" {
		profiles, err := perm.LoadFile(scenario.Roles)
		if err != nil {
			return nil, nil, fmt.Errorf("loading role file: %w", err)
		}
		role, err := profiles.Role(scenario.Role)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, compile.WithRole(role))
	}
	return compile.New(registry, opts...), clock, nil
}

// executeSetup runs setup statements. Any failure aborts the scenario,
// since later steps would be asserting against undefined state.
func (h *Harness) executeSetup(ctx context.Context, setup []string) error {
	for i, src := range setup {
		outcome := h.executeStatement(ctx, src)
		if outcome.Error != "" {
			return fmt.Errorf("setup[%d]: %s", i, outcome.Error)
		}
	}
	return nil
}

// executeSteps runs the main flow. Steps are independent: a failed
// step is recorded and the remaining steps still run.
func (h *Harness) executeSteps(ctx context.Context, steps []Step, result *Result) {
	for i, step := range steps {
		outcome := h.executeStatement(ctx, step.Statement)
		result.Steps = append(result.Steps, outcome)
		h.checkExpect(i, step.Expect, outcome, result)
	}
}

func (h *Harness) checkExpect(index int, expect *ExpectClause, outcome StepOutcome, result *Result) {
	if expect == nil {
		if outcome.Error != "" {
			result.AddError(fmt.Sprintf("steps[%d]: unexpected error: %s", index, outcome.Error))
		}
		return
	}
	if expect.Error != "" {
		if outcome.Error == "" {
			result.AddError(fmt.Sprintf("steps[%d]: expected error containing %q, got success", index, expect.Error))
		} else if !strings.Contains(outcome.Error, expect.Error) {
			result.AddError(fmt.Sprintf("steps[%d]: expected error containing %q, got %q", index, expect.Error, outcome.Error))
		}
		return
	}
	if outcome.Error != "" {
		result.AddError(fmt.Sprintf("steps[%d]: unexpected error: %s", index, outcome.Error))
		return
	}
	if expect.Rows != nil && outcome.Rows != *expect.Rows {
		result.AddError(fmt.Sprintf("steps[%d]: expected %d row(s), got %d", index, *expect.Rows, outcome.Rows))
	}
}

// executeStatement compiles one statement and runs it against the
// store. Queries report rows returned, everything else rows affected.
func (h *Harness) executeStatement(ctx context.Context, src string) StepOutcome {
	outcome := StepOutcome{Statement: src}

	stmt, err := h.compiler.Compile(ctx, src)
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}
	outcome.Kind = string(stmt.Kind())
	outcome.Table = stmt.Table()

	if sel, ok := stmt.(*ir.Select); ok {
		count, err := countRows(ctx, h.store, sel)
		if err != nil {
			outcome.Error = err.Error()
			return outcome
		}
		outcome.Rows = count
		return outcome
	}

	res, err := h.store.Apply(ctx, stmt)
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}
	outcome.Rows = res.RowsAffected
	return outcome
}

func countRows(ctx context.Context, st *store.Store, sel *ir.Select) (int64, error) {
	rows, err := st.Query(ctx, sel)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var count int64
	for rows.Next() {
		count++
	}
	return count, rows.Err()
}
