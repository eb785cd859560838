package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
// Scenarios run a sequence of statements through the full pipeline
// against a fresh database and assert on outcomes and final state.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is an optional path to a CUE schema registry document.
	// Paths are relative to the scenario file location. Scenarios
	// without a registry must create their collections in setup.
	Schema string `yaml:"schema,omitempty"`

	// Roles is an optional path to a YAML role file.
	Roles string `yaml:"roles,omitempty"`

	// Role names the role to compile as. Requires Roles.
	Role string `yaml:"role,omitempty"`

	// Setup contains statements run before the main steps.
	// Setup statements are assumed to succeed.
	Setup []string `yaml:"setup,omitempty"`

	// Steps contains the main test flow with expected outcomes.
	Steps []Step `yaml:"steps"`

	// Assertions validate final database state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one statement in the main flow, optionally with an
// expected outcome.
type Step struct {
	// Statement is the source text to compile and execute.
	Statement string `yaml:"statement"`

	// Expect specifies the expected outcome. If nil, the step is
	// expected to succeed and its row count is not checked.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies an expected step outcome.
type ExpectClause struct {
	// Error is a substring the step's error must contain. A step with
	// an Error expectation must fail; the database stays untouched.
	Error string `yaml:"error,omitempty"`

	// Rows is the expected row count: rows affected for mutations,
	// rows returned for queries.
	Rows *int64 `yaml:"rows,omitempty"`
}

// Assertion validates final database state after all steps ran.
type Assertion struct {
	// Type specifies the assertion type:
	// - "row_count": Query and verify the number of returned rows
	// - "state": Query and verify field values of the first row
	Type string `yaml:"type"`

	// Query is the statement to run. Must be a query.
	Query string `yaml:"query"`

	// Count is the expected row count (used by row_count).
	Count int `yaml:"count,omitempty"`

	// Expect contains expected first-row field values (used by state).
	// Subset match: only listed fields are checked.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertRowCount = "row_count"
	AssertState    = "state"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields
// are rejected so typos fail loudly instead of silently skipping
// assertions.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving schema and role paths relative to the given base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parsing scenario YAML: %w", err)
	}

	if basePath != "" {
		if scenario.Schema != "" && !filepath.IsAbs(scenario.Schema) {
			scenario.Schema = filepath.Join(basePath, scenario.Schema)
		}
		if scenario.Roles != "" && !filepath.IsAbs(scenario.Roles) {
			scenario.Roles = filepath.Join(basePath, scenario.Roles)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if s.Role != "" && s.Roles == "" {
		return fmt.Errorf("role %q requires a roles file", s.Role)
	}
	if s.Schema != "" {
		if _, err := os.Stat(s.Schema); os.IsNotExist(err) {
			return fmt.Errorf("schema file not found: %s", s.Schema)
		}
	}
	if s.Roles != "" {
		if _, err := os.Stat(s.Roles); os.IsNotExist(err) {
			return fmt.Errorf("roles file not found: %s", s.Roles)
		}
	}

	for i, stmt := range s.Setup {
		if stmt == "" {
			return fmt.Errorf("setup[%d]: statement is required", i)
		}
	}
	for i, step := range s.Steps {
		if step.Statement == "" {
			return fmt.Errorf("steps[%d]: statement is required", i)
		}
		if step.Expect != nil && step.Expect.Error == "" && step.Expect.Rows == nil {
			return fmt.Errorf("steps[%d].expect: error or rows is required", i)
		}
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Query == "" {
		return fmt.Errorf("assertions[%d]: query is required", index)
	}
	switch a.Type {
	case AssertRowCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for row_count", index)
		}
	case AssertState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
