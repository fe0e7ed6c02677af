package main

import (
	"fmt"

	"github.com/aretw0/onramp"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of onramp",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "onramp version %s\n", onramp.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
