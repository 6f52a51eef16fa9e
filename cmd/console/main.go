package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/jwebster45206/puzzle-engine/pkg/rules"
	"github.com/spf13/cobra"
)

type ConsoleConfig struct {
	APIBaseURL   string
	Timeout      time.Duration
	RulesPath    string
	SnapshotPath string
	Scene        string
	RuleSetID    string
	Policy       string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := &ConsoleConfig{
		APIBaseURL: getEnv("API_BASE_URL", "http://localhost:8080"),
		Timeout:    30 * time.Second,
	}

	cmd := &cobra.Command{
		Use:   "console",
		Short: "Flip scene variables and watch which branches match",
		Long: `console edits a snapshot interactively and re-evaluates a rule set on every change.

Offline:  console --rules gate.yaml --snapshot crypt.yaml
Live:     console --scene crypt --ruleset <id>`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := rules.ParsePolicy(cfg.Policy)
			if err != nil {
				return err
			}
			b, err := newBackend(cfg)
			if err != nil {
				return err
			}
			ruleSet, snap, err := b.Load()
			if err != nil {
				return err
			}

			p := tea.NewProgram(NewConsoleUI(b, ruleSet, snap, policy), tea.WithAltScreen())
			_, err = p.Run()
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.RulesPath, "rules", "", "rule set file (JSON or YAML)")
	f.StringVar(&cfg.SnapshotPath, "snapshot", "", "snapshot file (JSON or YAML)")
	f.StringVar(&cfg.Scene, "scene", "", "edit a live scene through the API")
	f.StringVar(&cfg.RuleSetID, "ruleset", "", "rule set ID to evaluate against the live scene")
	f.StringVar(&cfg.APIBaseURL, "api", cfg.APIBaseURL, "API base URL")
	f.StringVar(&cfg.Policy, "policy", string(rules.PolicyAll), "match policy: all or first")
	return cmd
}

func newBackend(cfg *ConsoleConfig) (backend, error) {
	if cfg.Scene == "" {
		if cfg.RulesPath == "" || cfg.SnapshotPath == "" {
			return nil, errors.New("either --rules and --snapshot, or --scene and --ruleset, are required")
		}
		return &fileBackend{rulesPath: cfg.RulesPath, snapshotPath: cfg.SnapshotPath}, nil
	}

	id, err := uuid.Parse(cfg.RuleSetID)
	if err != nil {
		return nil, fmt.Errorf("--ruleset must be a rule set ID: %w", err)
	}
	client := &http.Client{Timeout: cfg.Timeout}
	if !testConnection(client, cfg.APIBaseURL) {
		return nil, fmt.Errorf("could not connect to API at %s; ensure the API is running", cfg.APIBaseURL)
	}
	return &apiBackend{client: client, baseURL: cfg.APIBaseURL, scene: cfg.Scene, ruleSetID: id}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
