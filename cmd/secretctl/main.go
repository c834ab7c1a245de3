// Command secretctl validates secrets runtime configurations and resolves
// references against them.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "secretctl",
		Short: "Inspect and exercise a secrets runtime configuration",
		Long: `secretctl loads a secrets runtime configuration, registers its providers,
deploys its Specs and resolves secret references the way a gateway would.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringP("config", "c", "secrets.yaml", "Path to the runtime configuration")

	root.AddCommand(newValidateCmd())
	root.AddCommand(newResolveCmd())
	root.AddCommand(newSpecsCmd())
	root.AddCommand(newHealthCmd())

	return root
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
