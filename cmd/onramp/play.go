package main

import (
	"context"
	"os"
	"os/user"

	"github.com/aretw0/onramp"
	"github.com/aretw0/onramp/internal/cli"
	"github.com/aretw0/onramp/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:   "play [user-id]",
	Short: "Walk through the protocol interactively",
	Long: `Starts an interactive session in the terminal. Type 'next' or a step id
to advance, /start to restart, /status for progress and exit to leave.
Any other text is recorded in the inbox when one is configured.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}

		userID := "local"
		username := ""
		if u, err := user.Current(); err == nil {
			userID, username = u.Username, u.Username
		}
		if len(args) > 0 {
			userID = args[0]
		}

		sigCtx := cli.NewSignalContext(context.Background())
		defer sigCtx.Cancel()

		rt, err := cli.Build(sigCtx, cfg, logger)
		if err != nil {
			return err
		}
		defer rt.Close()

		plain, _ := cmd.Flags().GetBool("plain")
		render := tui.Plain
		if !plain {
			render = tui.ForFile(os.Stdout)
		}
		if tui.IsTerminal(os.Stdout) && !plain {
			tui.PrintBanner(os.Stdout, onramp.Version)
		}

		opts := cli.PlayOptions{
			UserID:   userID,
			Username: username,
			In:       cmd.InOrStdin(),
			Out:      cmd.OutOrStdout(),
			Render:   render,
		}
		if rt.Inbox != nil {
			opts.Inbox = rt.Inbox
		}
		return cli.Play(sigCtx, rt.Engine, opts)
	},
}

func init() {
	rootCmd.AddCommand(playCmd)
	playCmd.Flags().Bool("plain", false, "Print narratives as raw markdown")
}
