package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecFullCycle(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cycle.db")
	srcFile := writeTempFile(t, "cycle.rql", `
		CREATE TABLE evidence (title NonEmptyText PRIMARY KEY, score BoundedNat[0, 100]);
		INSERT INTO evidence (title, score) VALUES ('a', 95), ('b', 40);
		UPDATE evidence SET score = 50 WHERE title = 'b' RATIONALE 'recalibration';
		SELECT title FROM evidence WHERE score >= 50
	`)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewExecCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{srcFile, "--db", dbPath})

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "statement 1: create evidence")
	assert.Contains(t, output, "statement 2: insert evidence (2 row(s) affected)")
	assert.Contains(t, output, "statement 3: update evidence (1 row(s) affected)")
	assert.Contains(t, output, "statement 4: 2 row(s)")
}

func TestExecSelectJSON(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "rows.db")
	srcFile := writeTempFile(t, "rows.rql", `
		CREATE TABLE evidence (title NonEmptyText PRIMARY KEY, score BoundedNat[0, 100]);
		INSERT INTO evidence (title, score) VALUES ('kept', 70);
		SELECT title, score FROM evidence
	`)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewExecCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{srcFile, "--db", dbPath})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), `"kept"`)
}

func TestExecRejectsViolation(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "violation.db")
	srcFile := writeTempFile(t, "violation.rql", `
		CREATE TABLE evidence (title NonEmptyText PRIMARY KEY, score BoundedNat[0, 100]);
		INSERT INTO evidence (title, score) VALUES ('bad', 150);
		SELECT title FROM evidence
	`)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewExecCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{srcFile, "--db", dbPath})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	output := buf.String()
	assert.Contains(t, output, "statement 2: error")
	assert.Contains(t, output, "statement 3: 0 row(s)")
}

func TestExecBadDatabasePath(t *testing.T) {
	srcFile := writeTempFile(t, "any.rql", `SELECT title FROM evidence`)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewExecCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{srcFile, "--db", "/nonexistent/dir/rql.db"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
