package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/secretops/config"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			specs, err := cfg.DeclaredSpecs()
			if err != nil {
				return err
			}

			enabled := 0
			for _, p := range cfg.Providers {
				if p.IsEnabled() {
					enabled++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: valid (%d providers, %d enabled; %d specs)\n",
				path, len(cfg.Providers), enabled, len(specs))
			return nil
		},
	}
}
