package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot is the golden-file form of a scenario run. It captures the
// per-step outcomes, which are deterministic thanks to the fixed clock
// and caller id.
type Snapshot struct {
	Scenario string        `json:"scenario"`
	Steps    []StepOutcome `json:"steps"`
}

// RunWithGolden executes a scenario and compares its outcomes against
// a golden file in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run the harness tests with -update.
//
// Returns an error if scenario execution itself fails; expectation
// and assertion failures surface through t.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Errorf("scenario %s: %s", scenario.Name, msg)
	}

	snapshot := Snapshot{Scenario: scenario.Name, Steps: result.Steps}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
	return nil
}
