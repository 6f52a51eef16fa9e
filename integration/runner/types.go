package runner

import (
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/puzzle-engine/pkg/rules"
	"github.com/jwebster45206/puzzle-engine/pkg/snapshot"
)

// TestSuite defines a complete integration test scenario
// Can either be a regular test with Steps, or a suite that references other Cases
type TestSuite struct {
	Name        string             `yaml:"name"`
	RuleSet     *rules.RuleSet     `yaml:"ruleset,omitempty"`      // Created via POST /v1/rulesets
	RuleSetFile string             `yaml:"ruleset_file,omitempty"` // Imported from the server's data directory
	Policy      string             `yaml:"policy,omitempty"`       // Default policy for every step
	Seed        *snapshot.Snapshot `yaml:"seed,omitempty"`         // Scene variables before the first step
	Steps       []TestStep         `yaml:"steps,omitempty"`        // Used for regular tests
	Cases       []string           `yaml:"cases,omitempty"`        // Used for suite tests (list of case files)
}

// IsSequence returns true if this is a suite that sequences other cases
func (ts *TestSuite) IsSequence() bool {
	return len(ts.Cases) > 0
}

// TestStep defines a single change to the scene and its expected outcomes
// Use reset: true to put the scene back to the seed snapshot before Set is applied
type TestStep struct {
	Name         string       `yaml:"name,omitempty"`
	Reset        bool         `yaml:"reset,omitempty"`
	Set          []Change     `yaml:"set,omitempty"`
	Policy       string       `yaml:"policy,omitempty"`
	Expectations Expectations `yaml:"expect"`
}

// Change sets one scene variable
type Change struct {
	EntityID string         `yaml:"entityId" json:"entityId"`
	Variable string         `yaml:"variable" json:"variable"`
	Value    snapshot.Value `yaml:"value" json:"value"`
}

// Expectations defines what to check after a test step executes
type Expectations struct {
	// Branch names in output order. Checked when set or when NoMatches is true.
	Matches   []string `yaml:"matches,omitempty"`
	NoMatches bool     `yaml:"no_matches,omitempty"`

	// Action summaries that must appear among the matched actions
	ActionsContain []string `yaml:"actions_contain,omitempty"`

	// Stored variable values after the step, keyed "entity/variable"
	Variables map[string]string `yaml:"variables,omitempty"`

	// Wait for the worker's rules.evaluated event and compare its matches too
	Worker bool `yaml:"worker,omitempty"`
}

// TestResult contains the outcome of running a test step
type TestResult struct {
	TestName string
	StepName string
	Success  bool
	Error    error
	Duration time.Duration
	Matches  []string
	IsReset  bool // True if the step only reset the scene (should not count toward pass/fail metrics)
}

// TestJob represents a test suite to be executed
type TestJob struct {
	Name     string
	Suite    TestSuite
	CaseFile string
}

// TestRunResult contains the results of running an entire test suite
type TestRunResult struct {
	Job       TestJob
	Results   []TestResult
	Error     error
	Duration  time.Duration
	Scene     string    // Scene created for this run
	RuleSetID uuid.UUID // Rule set created for this run
}
