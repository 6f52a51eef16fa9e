package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jwebster45206/puzzle-engine/internal/render"
	"github.com/jwebster45206/puzzle-engine/pkg/rules"
	"github.com/jwebster45206/puzzle-engine/pkg/snapshot"
	"github.com/jwebster45206/puzzle-engine/pkg/storage"
	"github.com/spf13/cobra"
)

func validateCmd() *cobra.Command {
	var (
		snapshotPath string
		asJSON       bool
		width        int
	)

	cmd := &cobra.Command{
		Use:   "validate <rules-file>",
		Short: "Run authoring checks against a rule set file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, err := storage.LoadRuleSetFile(args[0])
			if err != nil {
				return err
			}

			var snap *snapshot.Snapshot
			if snapshotPath != "" {
				if snap, err = storage.LoadSnapshotFile(snapshotPath); err != nil {
					return err
				}
			}
			report := rules.ValidateAgainst(rs, snap)

			out := cmd.OutOrStdout()
			if asJSON {
				data, err := json.MarshalIndent(report, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to encode report: %w", err)
				}
				fmt.Fprintln(out, string(data))
			} else {
				fmt.Fprint(out, render.Report(report, width))
			}

			if report.HasErrors() {
				return errors.New("validation found errors")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&snapshotPath, "snapshot", "", "also check references against this snapshot")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of text")
	cmd.Flags().IntVar(&width, "width", 80, "wrap text output at this width")
	return cmd
}
