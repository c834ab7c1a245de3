package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/secretops/health"
)

func newHealthCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Deploy the configuration and report runtime health",
		Long: `health deploys the configuration once and runs every runtime check.
Degraded providers are reported but only an unhealthy runtime fails the command.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			rt, err := startRuntime(cmd.Context(), path, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = rt.close(cmd.Context()) }()

			report := rt.svc.HealthReport(cmd.Context())
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(out, "%-10s %s\n", report.Status, "secrets")
				for _, name := range report.Names() {
					r := report.Results[name]
					fmt.Fprintf(out, "  %-10s %-18s %s\n", r.Status, name, r.Message)
				}
			}

			if report.Status == health.StatusUnhealthy {
				return fmt.Errorf("secrets runtime is %s", report.Status)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}
