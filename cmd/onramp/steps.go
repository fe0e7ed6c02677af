package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/aretw0/onramp/internal/cli"
	"github.com/aretw0/onramp/internal/presentation/graph"
	"github.com/aretw0/onramp/pkg/domain"
	"github.com/spf13/cobra"
)

var stepsCmd = &cobra.Command{
	Use:   "steps",
	Short: "List the protocol steps",
	Long: `Prints the protocol in order. With --mermaid it outputs a Mermaid diagram
(graph TD), and --user overlays that user's progress on it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}

		rt, err := cli.Build(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer rt.Close()

		steps := rt.Engine.Steps()
		out := cmd.OutOrStdout()

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(steps)
		}

		if mermaid, _ := cmd.Flags().GetBool("mermaid"); mermaid {
			var overlay *graph.Overlay
			if userID, _ := cmd.Flags().GetString("user"); userID != "" {
				s, err := rt.Engine.Session(cmd.Context(), userID)
				if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
					return err
				}
				overlay = graph.OverlayFor(s)
			}
			fmt.Fprint(out, graph.GenerateMermaid(steps, overlay))
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ORDER\tID\tTITLE\tREQUIRES")
		for _, s := range steps {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", s.Order, s.ID, s.Title, s.RequiresPriorStep)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(stepsCmd)
	stepsCmd.Flags().Bool("json", false, "Output JSON")
	stepsCmd.Flags().Bool("mermaid", false, "Output a Mermaid diagram")
	stepsCmd.Flags().String("user", "", "Overlay a user's progress (with --mermaid)")
}
