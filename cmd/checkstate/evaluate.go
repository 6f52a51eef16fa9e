package main

import (
	"encoding/json"
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/jwebster45206/puzzle-engine/internal/render"
	"github.com/jwebster45206/puzzle-engine/pkg/rules"
	"github.com/jwebster45206/puzzle-engine/pkg/snapshot"
	"github.com/jwebster45206/puzzle-engine/pkg/storage"
	"github.com/spf13/cobra"
)

// writeClipboard is swapped out in tests; CI has no clipboard
var writeClipboard = clipboard.WriteAll

type inputFlags struct {
	rulesPath    string
	snapshotPath string
	asJSON       bool
	width        int
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.rulesPath, "rules", "", "rule set file (.json, .yaml)")
	cmd.Flags().StringVar(&f.snapshotPath, "snapshot", "", "snapshot file (.json, .yaml)")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "print JSON instead of text")
	cmd.Flags().IntVar(&f.width, "width", 80, "wrap text output at this width")
	_ = cmd.MarkFlagRequired("rules")
	_ = cmd.MarkFlagRequired("snapshot")
}

func (f *inputFlags) load() (*rules.RuleSet, *snapshot.Snapshot, error) {
	rs, err := storage.LoadRuleSetFile(f.rulesPath)
	if err != nil {
		return nil, nil, err
	}
	snap, err := storage.LoadSnapshotFile(f.snapshotPath)
	if err != nil {
		return nil, nil, err
	}
	return rs, snap, nil
}

func evaluateCmd() *cobra.Command {
	var (
		in     inputFlags
		policy string
		copyIt bool
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Print the branches that match a snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := rules.ParsePolicy(policy)
			if err != nil {
				return err
			}
			rs, snap, err := in.load()
			if err != nil {
				return err
			}

			matches, err := rules.Evaluate(rs, snap)
			if err != nil {
				return err
			}
			matches = rules.ApplyPolicy(matches, p)

			data, err := json.MarshalIndent(matches, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode matches: %w", err)
			}

			out := cmd.OutOrStdout()
			if in.asJSON {
				fmt.Fprintln(out, string(data))
			} else {
				fmt.Fprint(out, render.Matches(rs, matches, in.width))
			}

			if copyIt {
				if err := writeClipboard(string(data)); err != nil {
					return fmt.Errorf("failed to copy to clipboard: %w", err)
				}
				fmt.Fprintln(cmd.ErrOrStderr(), "Matches copied to clipboard.")
			}
			return nil
		},
	}

	in.register(cmd)
	cmd.Flags().StringVar(&policy, "policy", "all", "match policy: all or first")
	cmd.Flags().BoolVar(&copyIt, "copy", false, "copy the matches JSON to the clipboard")
	return cmd
}
