// Package store executes compiled statements against SQLite.
//
// The store is the runtime boundary of the pipeline: every statement
// applies in one transaction, and runtime-tier obligations deferred by
// the compiler are re-checked here before any row is touched. A failed
// recheck rolls the transaction back, so an invalid statement never
// partially mutates persisted state.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/refineql/refineql/internal/ir"
	"github.com/refineql/refineql/internal/proof"
	"github.com/refineql/refineql/internal/wire"
)

// Store is a SQLite-backed execution sink.
type Store struct {
	db     *sql.DB
	engine *proof.Engine
}

// Open creates or opens a SQLite database at the given path.
//
// The database is configured with WAL mode for concurrent reads, NORMAL
// synchronous mode, a 5-second busy timeout and foreign key
// enforcement. Safe to call multiple times on the same path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	// SQLite allows one writer at a time; a single connection avoids
	// SQLITE_BUSY under concurrent statements.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying pragmas: %w", err)
	}
	return &Store{db: db, engine: proof.NewEngine()}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return nil
}

// Result reports the effect of an applied statement.
type Result struct {
	RowsAffected int64
}

// Apply executes a mutating or DDL statement in one transaction. Before
// touching any row it re-runs the statement's deferred obligations; an
// obligation that still fails aborts with *proof.UnresolvedError and no
// effect.
func (s *Store) Apply(ctx context.Context, stmt ir.Statement) (Result, error) {
	if _, ok := stmt.(*ir.Select); ok {
		return Result{}, fmt.Errorf("SELECT is read-only; use Query")
	}
	if err := s.recheck(stmt); err != nil {
		return Result{}, err
	}
	sqlText, params, err := wire.SQLText(stmt)
	if err != nil {
		return Result{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, fmt.Errorf("beginning transaction: %w", err)
	}
	res, err := tx.ExecContext(ctx, sqlText, params...)
	if err != nil {
		tx.Rollback()
		return Result{}, fmt.Errorf("executing %s on %q: %w", stmt.Kind(), stmt.Table(), err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		tx.Rollback()
		return Result{}, err
	}
	if err := tx.Commit(); err != nil {
		return Result{}, fmt.Errorf("committing %s on %q: %w", stmt.Kind(), stmt.Table(), err)
	}
	return Result{RowsAffected: affected}, nil
}

// recheck re-runs the obligations the compiler deferred under the
// runtime tier. Manual declarations do not apply here: a deferred
// obligation must discharge automatically or the statement aborts.
func (s *Store) recheck(stmt ir.Statement) error {
	deferred := stmt.Deferred()
	if len(deferred) == 0 {
		return nil
	}
	discharged, _ := s.engine.DischargeAll(deferred, nil)
	if unresolved := proof.Unresolved(discharged); len(unresolved) > 0 {
		return &proof.UnresolvedError{Obligations: unresolved}
	}
	return nil
}

// Query executes a compiled SELECT and returns its rows. Callers must
// close the returned rows.
func (s *Store) Query(ctx context.Context, sel *ir.Select) (*sql.Rows, error) {
	sqlText, params, err := wire.SQLText(sel)
	if err != nil {
		return nil, err
	}
	return s.db.QueryContext(ctx, sqlText, params...)
}
