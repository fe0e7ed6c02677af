package main

import (
	"fmt"

	"github.com/aretw0/onramp/pkg/registry"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration and protocol",
	Long:  `Loads the configuration and protocol file and reports every invalid setting.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}

		reg := registry.Default()
		if cfg.ProtocolFile != "" {
			if reg, err = registry.LoadFile(cfg.ProtocolFile); err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Configuration is valid: %d steps, %s storage ✅\n", reg.Len(), cfg.Storage.Driver)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
