package main

import (
	"encoding/json"
	"fmt"

	"github.com/jwebster45206/puzzle-engine/internal/render"
	"github.com/jwebster45206/puzzle-engine/pkg/rules"
	"github.com/spf13/cobra"
)

func explainCmd() *cobra.Command {
	var in inputFlags

	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Trace every condition of every branch",
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, snap, err := in.load()
			if err != nil {
				return err
			}
			traces, err := rules.Explain(rs, snap)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if in.asJSON {
				data, err := json.MarshalIndent(traces, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to encode traces: %w", err)
				}
				fmt.Fprintln(out, string(data))
				return nil
			}
			fmt.Fprintln(out, render.TitleStyle.Render(render.Title(rs.Name)))
			fmt.Fprint(out, render.Traces(traces, in.width))
			return nil
		},
	}

	in.register(cmd)
	return cmd
}
