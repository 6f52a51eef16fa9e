package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/puzzle-engine/pkg/rules"
	"github.com/jwebster45206/puzzle-engine/pkg/snapshot"
	"gopkg.in/yaml.v3"
)

type ErrorHandlingMode string

const ErrorHandlingExit ErrorHandlingMode = "exit"
const ErrorHandlingContinue ErrorHandlingMode = "continue"

// Runner executes integration tests against a running puzzle-engine API
type Runner struct {
	BaseURL           string
	Client            *http.Client
	Timeout           time.Duration
	Logger            func(format string, args ...interface{})
	ErrorHandlingMode ErrorHandlingMode
}

// NewRunner creates a new test runner
func NewRunner(baseURL string) *Runner {
	return &Runner{
		BaseURL:           strings.TrimSuffix(baseURL, "/"),
		Client:            &http.Client{Timeout: 60 * time.Second},
		Timeout:           30 * time.Second,
		Logger:            func(string, ...interface{}) {},
		ErrorHandlingMode: ErrorHandlingContinue,
	}
}

// LoadTestSuite loads a test suite from a YAML file
func LoadTestSuite(filename string) (TestSuite, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return TestSuite{}, fmt.Errorf("failed to read test file %s: %w", filename, err)
	}

	var suite TestSuite
	if err := yaml.Unmarshal(content, &suite); err != nil {
		return TestSuite{}, fmt.Errorf("failed to parse YAML in %s: %w", filename, err)
	}

	return suite, nil
}

// LoadTestSuiteWithExpansion loads a test suite and expands it if it's a sequence
// Returns a list of actual test suites (expanded from the sequence if needed)
func LoadTestSuiteWithExpansion(filename string, casesDir string) ([]TestJob, error) {
	suite, err := LoadTestSuite(filename)
	if err != nil {
		return nil, err
	}

	if !suite.IsSequence() {
		return []TestJob{{
			Name:     suite.Name,
			Suite:    suite,
			CaseFile: filename,
		}}, nil
	}

	var jobs []TestJob
	for _, caseFile := range suite.Cases {
		casePath := filepath.Join(casesDir, caseFile)

		// Recursively load (in case a sequence references another sequence)
		subJobs, err := LoadTestSuiteWithExpansion(casePath, casesDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load case '%s' referenced by sequence '%s': %w", caseFile, suite.Name, err)
		}

		jobs = append(jobs, subJobs...)
	}

	return jobs, nil
}

// RunSuite executes a complete test suite against a fresh scene
func (r *Runner) RunSuite(ctx context.Context, suite TestSuite) (TestRunResult, error) {
	start := time.Now()
	result := TestRunResult{
		Job: TestJob{
			Name:  suite.Name,
			Suite: suite,
		},
		Results: make([]TestResult, 0, len(suite.Steps)),
		Scene:   "it-" + uuid.NewString(),
	}

	ruleSetID, err := r.createRuleSet(ctx, suite)
	if err != nil {
		result.Error = fmt.Errorf("failed to create rule set: %w", err)
		result.Duration = time.Since(start)
		return result, result.Error
	}
	result.RuleSetID = ruleSetID
	defer r.cleanup(result.Scene, ruleSetID)

	if err := r.resetScene(ctx, result.Scene, suite.Seed); err != nil {
		result.Error = fmt.Errorf("failed to seed scene: %w", err)
		result.Duration = time.Since(start)
		return result, result.Error
	}
	if err := r.send(ctx, http.MethodPut, r.bindingPath(result.Scene, ruleSetID), nil, http.StatusNoContent, nil); err != nil {
		result.Error = fmt.Errorf("failed to bind rule set: %w", err)
		result.Duration = time.Since(start)
		return result, result.Error
	}

	for i, step := range suite.Steps {
		r.Logger("    [%d/%d] Running step: %s", i+1, len(suite.Steps), step.Name)
		stepResult := r.runStep(ctx, suite, result.Scene, ruleSetID, step)
		result.Results = append(result.Results, stepResult)

		if stepResult.Error != nil {
			r.Logger("    [%d/%d] ✗ %s: %v", i+1, len(suite.Steps), step.Name, stepResult.Error)
			if result.Error == nil {
				result.Error = fmt.Errorf("step %d (%s) failed: %w", i, step.Name, stepResult.Error)
			}
			if r.ErrorHandlingMode == ErrorHandlingExit {
				break
			}
			continue
		}

		r.Logger("    [%d/%d] ✓ %s (%v)", i+1, len(suite.Steps), step.Name, stepResult.Duration)
	}

	result.Duration = time.Since(start)
	return result, result.Error
}

func (r *Runner) runStep(ctx context.Context, suite TestSuite, scene string, ruleSetID uuid.UUID, step TestStep) TestResult {
	start := time.Now()
	result := TestResult{TestName: suite.Name, StepName: step.Name}

	fail := func(err error) TestResult {
		result.Error = err
		result.Duration = time.Since(start)
		return result
	}

	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	policy := step.Policy
	if policy == "" {
		policy = suite.Policy
	}

	// subscribe before writing so the worker's event cannot be missed
	var stream *EventStream
	if step.Expectations.Worker {
		var err error
		stream, err = SubscribeSceneEvents(ctx, r.Client, r.BaseURL, scene)
		if err != nil {
			return fail(err)
		}
		defer stream.Close()
	}

	var requestID string
	if step.Reset {
		if err := r.resetScene(ctx, scene, suite.Seed); err != nil {
			return fail(fmt.Errorf("failed to reset scene: %w", err))
		}
		result.IsReset = len(step.Set) == 0 && !hasExpectations(step.Expectations)
	}
	if len(step.Set) > 0 {
		id, err := r.patchScene(ctx, scene, step.Set)
		if err != nil {
			return fail(err)
		}
		requestID = id
	}
	if result.IsReset {
		result.Success = true
		result.Duration = time.Since(start)
		return result
	}

	matches, err := r.evaluate(ctx, scene, ruleSetID, policy)
	if err != nil {
		return fail(err)
	}
	result.Matches = BranchNames(matches)

	if err := CheckMatches(step.Expectations, matches); err != nil {
		return fail(err)
	}
	if len(step.Expectations.Variables) > 0 {
		snap, err := r.getSnapshot(ctx, scene)
		if err != nil {
			return fail(err)
		}
		if err := CheckVariables(step.Expectations.Variables, snap); err != nil {
			return fail(err)
		}
	}

	if stream != nil {
		if requestID == "" {
			return fail(errors.New("worker expectation needs a step that sets variables on a queued API"))
		}
		event, err := stream.WaitFor(ctx, requestID, ruleSetID)
		if err != nil {
			return fail(err)
		}
		if event.Type == EventRulesFailed {
			return fail(fmt.Errorf("worker failed: %v", event.Data["error"]))
		}
		workerMatches, err := event.Matches()
		if err != nil {
			return fail(err)
		}
		// the worker applies the request's policy, which is the server default for scene triggers
		if err := CheckMatches(Expectations{Matches: step.Expectations.Matches, NoMatches: step.Expectations.NoMatches}, workerMatches); err != nil {
			return fail(fmt.Errorf("worker: %w", err))
		}
	}

	result.Success = true
	result.Duration = time.Since(start)
	return result
}

func hasExpectations(e Expectations) bool {
	return len(e.Matches) > 0 || e.NoMatches || len(e.ActionsContain) > 0 || len(e.Variables) > 0 || e.Worker
}

// BranchNames lists matched branch names in output order
func BranchNames(matches []rules.Match) []string {
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m.BranchName)
	}
	return names
}

// CheckMatches compares evaluation output against a step's expectations
func CheckMatches(e Expectations, matches []rules.Match) error {
	got := BranchNames(matches)
	if e.NoMatches && len(got) > 0 {
		return fmt.Errorf("expected no matches, got %v", got)
	}
	if len(e.Matches) > 0 {
		if len(got) != len(e.Matches) {
			return fmt.Errorf("expected matches %v, got %v", e.Matches, got)
		}
		for i := range got {
			if got[i] != e.Matches[i] {
				return fmt.Errorf("expected matches %v, got %v", e.Matches, got)
			}
		}
	}

	if len(e.ActionsContain) > 0 {
		var summaries []string
		for _, m := range matches {
			for _, a := range m.Actions {
				summaries = append(summaries, a.Summary())
			}
		}
		for _, want := range e.ActionsContain {
			found := false
			for _, s := range summaries {
				if strings.Contains(s, want) {
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("expected an action containing %q, got %v", want, summaries)
			}
		}
	}
	return nil
}

// CheckVariables compares stored values by their text form
func CheckVariables(want map[string]string, snap *snapshot.Snapshot) error {
	for key, expected := range want {
		entityID, variable, ok := strings.Cut(key, "/")
		if !ok {
			return fmt.Errorf("variable expectation %q must be entity/variable", key)
		}
		v, found := snap.Lookup(entityID, variable)
		if !found {
			return fmt.Errorf("expected %s = %q, but it is not set", key, expected)
		}
		if v.Text() != expected {
			return fmt.Errorf("expected %s = %q, got %q", key, expected, v.Text())
		}
	}
	return nil
}

func (r *Runner) createRuleSet(ctx context.Context, suite TestSuite) (uuid.UUID, error) {
	var created rules.RuleSet
	switch {
	case suite.RuleSetFile != "":
		path := "/v1/rulesets/files/" + url.PathEscape(suite.RuleSetFile)
		if err := r.send(ctx, http.MethodPost, path, nil, http.StatusCreated, &created); err != nil {
			return uuid.Nil, err
		}
	case suite.RuleSet != nil:
		if err := r.send(ctx, http.MethodPost, "/v1/rulesets", suite.RuleSet, http.StatusCreated, &created); err != nil {
			return uuid.Nil, err
		}
	default:
		return uuid.Nil, errors.New("suite needs ruleset or ruleset_file")
	}
	return created.ID, nil
}

func (r *Runner) resetScene(ctx context.Context, scene string, seed *snapshot.Snapshot) error {
	if seed == nil {
		seed = snapshot.Empty()
	}
	return r.send(ctx, http.MethodPut, "/v1/snapshots/"+url.PathEscape(scene), seed, http.StatusOK, nil)
}

func (r *Runner) patchScene(ctx context.Context, scene string, changes []Change) (string, error) {
	body := map[string]interface{}{"changes": changes}
	var resp struct {
		Queued    bool   `json:"queued"`
		RequestID string `json:"requestId"`
	}
	if err := r.send(ctx, http.MethodPatch, "/v1/snapshots/"+url.PathEscape(scene), body, http.StatusOK, &resp); err != nil {
		return "", err
	}
	return resp.RequestID, nil
}

func (r *Runner) evaluate(ctx context.Context, scene string, ruleSetID uuid.UUID, policy string) ([]rules.Match, error) {
	body := map[string]string{"scene": scene, "policy": policy}
	var resp struct {
		Matches []rules.Match `json:"matches"`
	}
	path := fmt.Sprintf("/v1/rulesets/%s/evaluate", ruleSetID)
	if err := r.send(ctx, http.MethodPost, path, body, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return resp.Matches, nil
}

func (r *Runner) getSnapshot(ctx context.Context, scene string) (*snapshot.Snapshot, error) {
	var snap snapshot.Snapshot
	if err := r.send(ctx, http.MethodGet, "/v1/snapshots/"+url.PathEscape(scene), nil, http.StatusOK, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (r *Runner) bindingPath(scene string, ruleSetID uuid.UUID) string {
	return fmt.Sprintf("/v1/scenes/%s/rulesets/%s", url.PathEscape(scene), ruleSetID)
}

// cleanup removes what the run created; failures are only logged
func (r *Runner) cleanup(scene string, ruleSetID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.send(ctx, http.MethodDelete, r.bindingPath(scene, ruleSetID), nil, http.StatusNoContent, nil); err != nil {
		r.Logger("    cleanup: %v", err)
	}
	if err := r.send(ctx, http.MethodDelete, fmt.Sprintf("/v1/rulesets/%s", ruleSetID), nil, http.StatusNoContent, nil); err != nil {
		r.Logger("    cleanup: %v", err)
	}
}

func (r *Runner) send(ctx context.Context, method, path string, body interface{}, wantStatus int, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal %s %s request: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", method, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != wantStatus {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s returned %d (expected %d): %s", method, path, resp.StatusCode, wantStatus, string(data))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}
