package worker

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jwebster45206/puzzle-engine/internal/services/queue"
	"github.com/jwebster45206/puzzle-engine/pkg/actions"
	queuePkg "github.com/jwebster45206/puzzle-engine/pkg/queue"
	"github.com/jwebster45206/puzzle-engine/pkg/rules"
	"github.com/jwebster45206/puzzle-engine/pkg/snapshot"
	"github.com/jwebster45206/puzzle-engine/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	scene     string
	ruleSetID uuid.UUID
	matches   []rules.Match
	failure   string
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (r *recordingPublisher) PublishRulesEvaluated(ctx context.Context, scene, requestID string, ruleSetID uuid.UUID, policy rules.Policy, matches []rules.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, published{scene: scene, ruleSetID: ruleSetID, matches: matches})
	return nil
}

func (r *recordingPublisher) PublishRulesFailed(ctx context.Context, scene, requestID string, ruleSetID uuid.UUID, errorMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, published{scene: scene, ruleSetID: ruleSetID, failure: errorMsg})
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// gateRuleSet opens the gate when the lever is ON and always plays a chime
func gateRuleSet(t *testing.T) *rules.RuleSet {
	t.Helper()
	door, err := actions.NewDoorChange(actions.DoorChange{Target: actions.Target{ID: "gate"}, State: actions.DoorOpen})
	require.NoError(t, err)
	chime, err := actions.NewTileChange(actions.TileChange{
		Target:     actions.Target{ID: "chime"},
		Activation: actions.ActivationActivate,
		Visibility: actions.VisibilityNothing,
		Trigger:    true,
	})
	require.NoError(t, err)

	rs := rules.NewRuleSet("gate")
	open := rs.AddBranch("lever on")
	open.AddCondition(rules.Condition{EntityID: "lever", Variable: "state", Operator: rules.OpEquals, Value: "ON"})
	open.AddAction(door)
	always := rs.AddBranch("chime")
	always.AddAction(chime)
	return rs
}

func TestProcessor_SceneChanged(t *testing.T) {
	store := storage.NewMockStorage()
	pub := &recordingPublisher{}
	p := NewProcessor(store, pub, testLogger())
	ctx := context.Background()

	rs := gateRuleSet(t)
	require.NoError(t, store.SaveRuleSet(ctx, rs))
	require.NoError(t, store.BindRuleSet(ctx, "crypt", rs.ID))
	require.NoError(t, store.SetVariable(ctx, "crypt", "lever", "state", snapshot.String("ON")))

	tests := []struct {
		name     string
		policy   rules.Policy
		branches []string
	}{
		{"all", rules.PolicyAll, []string{"lever on", "chime"}},
		{"first", rules.PolicyFirst, []string{"lever on"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := p.Process(ctx, queuePkg.NewSceneChanged("crypt", tt.policy))
			require.NoError(t, err)
			require.Len(t, results, 1)
			require.NoError(t, results[0].Err)

			var names []string
			for _, m := range results[0].Matches {
				names = append(names, m.BranchName)
			}
			assert.Equal(t, tt.branches, names)
		})
	}

	require.Len(t, pub.events, 2)
	assert.Equal(t, rs.ID, pub.events[0].ruleSetID)
	assert.Empty(t, pub.events[0].failure)
}

func TestProcessor_NoBindings(t *testing.T) {
	pub := &recordingPublisher{}
	p := NewProcessor(storage.NewMockStorage(), pub, testLogger())

	results, err := p.Process(context.Background(), queuePkg.NewSceneChanged("empty", rules.PolicyAll))
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, pub.events)
}

func TestProcessor_MissingRuleSetDoesNotAbortOthers(t *testing.T) {
	store := storage.NewMockStorage()
	pub := &recordingPublisher{}
	p := NewProcessor(store, pub, testLogger())
	ctx := context.Background()

	rs := gateRuleSet(t)
	missing := uuid.New()
	require.NoError(t, store.SaveRuleSet(ctx, rs))
	require.NoError(t, store.BindRuleSet(ctx, "crypt", rs.ID))
	require.NoError(t, store.BindRuleSet(ctx, "crypt", missing))

	results, err := p.Process(ctx, queuePkg.NewSceneChanged("crypt", rules.PolicyAll))
	require.NoError(t, err)
	require.Len(t, results, 2)

	byID := map[uuid.UUID]Result{}
	for _, r := range results {
		byID[r.RuleSetID] = r
	}
	assert.ErrorIs(t, byID[missing].Err, storage.ErrNotFound)
	require.NoError(t, byID[rs.ID].Err)
	// lever unset: only the unconditional branch fires
	require.Len(t, byID[rs.ID].Matches, 1)
	assert.Equal(t, "chime", byID[rs.ID].Matches[0].BranchName)

	failures := 0
	for _, e := range pub.events {
		if e.failure != "" {
			failures++
			assert.Equal(t, missing, e.ruleSetID)
		}
	}
	assert.Equal(t, 1, failures)
}

func TestProcessor_InvalidRequest(t *testing.T) {
	p := NewProcessor(storage.NewMockStorage(), nil, testLogger())
	_, err := p.Process(context.Background(), &queuePkg.Request{Type: queuePkg.RequestTypeSceneChanged})
	assert.Error(t, err)
}

func setupWorker(t *testing.T, store storage.Storage, pub Publisher) (*Worker, *queue.TriggerQueue, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client, err := queue.NewClient("redis://"+mr.Addr(), testLogger())
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})

	q := queue.NewTriggerQueue(client)
	w := New(q, NewProcessor(store, pub, testLogger()), client.Redis(), testLogger(), "worker-test")
	w.pollTimeout = time.Second
	w.lockBackoff = 50 * time.Millisecond
	return w, q, mr
}

func TestWorker_ProcessesAndReleasesLock(t *testing.T) {
	store := storage.NewMockStorage()
	pub := &recordingPublisher{}
	w, q, mr := setupWorker(t, store, pub)
	ctx := context.Background()

	rs := gateRuleSet(t)
	require.NoError(t, store.SaveRuleSet(ctx, rs))
	require.NoError(t, q.EnqueueRequest(ctx, queuePkg.NewEvaluate("crypt", rs.ID, rules.PolicyAll)))

	require.NoError(t, w.processNextRequest())

	assert.False(t, mr.Exists(lockKey("crypt")))
	require.Len(t, pub.events, 1)
	assert.Equal(t, rs.ID, pub.events[0].ruleSetID)

	depth, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, depth)
}

func TestWorker_RequeuesLockedScene(t *testing.T) {
	store := storage.NewMockStorage()
	pub := &recordingPublisher{}
	w, q, mr := setupWorker(t, store, pub)
	ctx := context.Background()

	require.NoError(t, mr.Set(lockKey("crypt"), "someone-else"))
	require.NoError(t, q.EnqueueRequest(ctx, queuePkg.NewSceneChanged("crypt", rules.PolicyAll)))

	start := time.Now()
	require.NoError(t, w.processNextRequest())
	assert.GreaterOrEqual(t, time.Since(start), w.lockBackoff, "backs off before re-queueing")

	depth, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, depth)
	assert.Empty(t, pub.events)

	got, err := mr.Get(lockKey("crypt"))
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got, "foreign lock must survive")
}

func TestWorker_StopDuringBackoffKeepsRequest(t *testing.T) {
	w, q, mr := setupWorker(t, storage.NewMockStorage(), nil)
	w.lockBackoff = time.Minute
	ctx := context.Background()

	require.NoError(t, mr.Set(lockKey("crypt"), "someone-else"))
	require.NoError(t, q.EnqueueRequest(ctx, queuePkg.NewSceneChanged("crypt", rules.PolicyAll)))

	done := make(chan error, 1)
	go func() { done <- w.processNextRequest() }()

	assert.Eventually(t, func() bool {
		depth, err := q.Depth(ctx)
		return err == nil && depth == 0
	}, 5*time.Second, 10*time.Millisecond)
	w.Stop()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker stayed in back-off after stop")
	}

	depth, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, depth)
}

func TestWorker_StartStop(t *testing.T) {
	w, _, _ := setupWorker(t, storage.NewMockStorage(), nil)

	done := make(chan error, 1)
	go func() { done <- w.Start() }()

	w.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}
