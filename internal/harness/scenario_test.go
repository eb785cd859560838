package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenarioFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_Valid(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "insert_cycle.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "insert-cycle", s.Name)
	assert.Len(t, s.Setup, 1)
	require.Len(t, s.Steps, 2)
	require.NotNil(t, s.Steps[0].Expect)
	require.NotNil(t, s.Steps[0].Expect.Rows)
	assert.Equal(t, int64(2), *s.Steps[0].Expect.Rows)
	assert.Len(t, s.Assertions, 2)
}

func TestLoadScenario_ResolvesRelativePaths(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "registry_types.yaml"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("testdata", "scenarios", "registry.cue"), s.Schema)
}

func TestLoadScenario_UnknownFieldRejected(t *testing.T) {
	path := writeScenarioFile(t, `
name: typo
description: unknown fields fail loudly
steps:
  - statement: "SELECT x FROM y"
assertion:
  - type: row_count
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing scenario YAML")
}

func TestLoadScenario_MissingFields(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "no name",
			content: "description: d\nsteps:\n  - statement: \"SELECT x FROM y\"\n",
			wantErr: "name is required",
		},
		{
			name:    "no steps",
			content: "name: n\ndescription: d\n",
			wantErr: "steps list is required",
		},
		{
			name:    "role without roles file",
			content: "name: n\ndescription: d\nrole: reader\nsteps:\n  - statement: \"SELECT x FROM y\"\n",
			wantErr: "requires a roles file",
		},
		{
			name:    "empty expect",
			content: "name: n\ndescription: d\nsteps:\n  - statement: \"SELECT x FROM y\"\n    expect: {}\n",
			wantErr: "error or rows is required",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeScenarioFile(t, tc.content)
			_, err := LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoadScenario_BadAssertions(t *testing.T) {
	cases := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unknown type",
			yaml:    "  - type: trace_contains\n    query: \"SELECT x FROM y\"\n",
			wantErr: `unknown assertion type "trace_contains"`,
		},
		{
			name:    "missing query",
			yaml:    "  - type: row_count\n",
			wantErr: "query is required",
		},
		{
			name:    "state without expect",
			yaml:    "  - type: state\n    query: \"SELECT x FROM y\"\n",
			wantErr: "expect is required for state",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeScenarioFile(t,
				"name: n\ndescription: d\nsteps:\n  - statement: \"SELECT x FROM y\"\nassertions:\n"+tc.yaml)
			_, err := LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoadScenario_MissingSchemaFile(t *testing.T) {
	path := writeScenarioFile(t, `
name: n
description: d
schema: no_such_registry.cue
steps:
  - statement: "SELECT x FROM y"
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema file not found")
}
