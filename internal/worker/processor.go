package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jwebster45206/puzzle-engine/internal/logger"
	"github.com/jwebster45206/puzzle-engine/pkg/queue"
	"github.com/jwebster45206/puzzle-engine/pkg/rules"
	"github.com/jwebster45206/puzzle-engine/pkg/storage"
)

// Publisher receives evaluation outcomes. events.Broadcaster satisfies it.
type Publisher interface {
	PublishRulesEvaluated(ctx context.Context, scene, requestID string, ruleSetID uuid.UUID, policy rules.Policy, matches []rules.Match) error
	PublishRulesFailed(ctx context.Context, scene, requestID string, ruleSetID uuid.UUID, errorMsg string) error
}

// Result is the outcome for one rule set of a request
type Result struct {
	RuleSetID uuid.UUID
	Matches   []rules.Match
	Err       error
}

// Processor evaluates the rule sets a trigger names against the scene's
// current snapshot. It's used by the worker and by tests directly.
type Processor struct {
	storage   storage.Storage
	publisher Publisher
	logger    *slog.Logger
}

// NewProcessor creates a new processor. publisher may be nil.
func NewProcessor(storage storage.Storage, publisher Publisher, logger *slog.Logger) *Processor {
	return &Processor{
		storage:   storage,
		publisher: publisher,
		logger:    logger,
	}
}

// Process captures the scene once and evaluates every target rule set
// against that same snapshot. A failing rule set is reported and does not
// stop the others.
func (p *Processor) Process(ctx context.Context, req *queue.Request) ([]Result, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	policy, _ := rules.ParsePolicy(string(req.Policy))
	log := logger.WithScene(logger.WithRequestID(p.logger, req.RequestID), req.Scene)

	targets, err := p.targets(ctx, req)
	if err != nil {
		p.publishFailed(ctx, req, uuid.Nil, err)
		return nil, err
	}
	if len(targets) == 0 {
		log.Debug("No rule sets bound to scene")
		return []Result{}, nil
	}

	snap, err := p.storage.LoadSnapshot(ctx, req.Scene)
	if err != nil {
		err = fmt.Errorf("failed to capture scene %s: %w", req.Scene, err)
		p.publishFailed(ctx, req, uuid.Nil, err)
		return nil, err
	}

	results := make([]Result, 0, len(targets))
	for _, id := range targets {
		res := Result{RuleSetID: id}

		rs, err := p.storage.LoadRuleSet(ctx, id)
		switch {
		case err != nil:
			res.Err = err
		case rs == nil:
			res.Err = fmt.Errorf("rule set %s: %w", id, storage.ErrNotFound)
		default:
			var matches []rules.Match
			matches, res.Err = rules.Evaluate(rs, snap)
			res.Matches = rules.ApplyPolicy(matches, policy)
		}

		if res.Err != nil {
			log.Warn("Rule set evaluation failed",
				"uuid", id,
				"error", res.Err,
			)
			p.publishFailed(ctx, req, id, res.Err)
		} else {
			log.Info("Rule set evaluated",
				"uuid", id,
				"matches", len(res.Matches),
			)
			if p.publisher != nil {
				if err := p.publisher.PublishRulesEvaluated(ctx, req.Scene, req.RequestID, id, policy, res.Matches); err != nil {
					// Don't fail the request just because event publishing failed
					log.Error("Failed to publish evaluation event", "error", err)
				}
			}
		}
		results = append(results, res)
	}

	return results, nil
}

func (p *Processor) targets(ctx context.Context, req *queue.Request) ([]uuid.UUID, error) {
	switch req.Type {
	case queue.RequestTypeEvaluate:
		return []uuid.UUID{req.RuleSetID}, nil
	case queue.RequestTypeSceneChanged:
		ids, err := p.storage.SceneRuleSets(ctx, req.Scene)
		if err != nil {
			return nil, fmt.Errorf("failed to load scene bindings: %w", err)
		}
		return ids, nil
	default:
		return nil, errors.New("unknown request type: " + string(req.Type))
	}
}

func (p *Processor) publishFailed(ctx context.Context, req *queue.Request, id uuid.UUID, cause error) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.PublishRulesFailed(ctx, req.Scene, req.RequestID, id, cause.Error()); err != nil {
		p.logger.Error("Failed to publish failure event", "error", err)
	}
}
