package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/jwebster45206/puzzle-engine/internal/services/queue"
	queuePkg "github.com/jwebster45206/puzzle-engine/pkg/queue"
	"github.com/jwebster45206/puzzle-engine/pkg/rules"
	"github.com/spf13/cobra"
)

func main() {
	var redisURL, scene, ruleSet, policy string

	cmd := &cobra.Command{
		Use:          "test-enqueue",
		Short:        "Push one trigger onto the worker queue",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := rules.ParsePolicy(policy)
			if err != nil {
				return err
			}

			req := queuePkg.NewSceneChanged(scene, p)
			if ruleSet != "" {
				id, err := uuid.Parse(ruleSet)
				if err != nil {
					return fmt.Errorf("invalid rule set ID: %w", err)
				}
				req = queuePkg.NewEvaluate(scene, id, p)
			}

			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
			client, err := queue.NewClient(redisURL, logger)
			if err != nil {
				return fmt.Errorf("failed to connect to Redis: %w", err)
			}
			defer func() { _ = client.Close() }()

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Connected to Redis successfully!")

			ctx := cmd.Context()
			q := queue.NewTriggerQueue(client)
			if err := q.EnqueueRequest(ctx, req); err != nil {
				return fmt.Errorf("failed to enqueue request: %w", err)
			}
			fmt.Fprintf(out, "✅ Enqueued %s trigger %s for scene %s\n", req.Type, req.RequestID, req.Scene)

			depth, err := q.Depth(ctx)
			if err != nil {
				return fmt.Errorf("failed to get queue depth: %w", err)
			}
			fmt.Fprintf(out, "📊 Queue depth: %d\n", depth)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&redisURL, "redis", "redis://localhost:6379", "Redis URL")
	f.StringVar(&scene, "scene", "test-scene", "scene to trigger")
	f.StringVar(&ruleSet, "ruleset", "", "evaluate only this rule set ID")
	f.StringVar(&policy, "policy", "all", "match policy: all or first")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
