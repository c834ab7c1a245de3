package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/secretops/spec"
)

func newSpecsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "specs",
		Short: "Deploy the configuration and list every Spec with its cache state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			rt, err := startRuntime(cmd.Context(), path, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = rt.close(cmd.Context()) }()

			svc := rt.svc
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-12s %-24s %-32s %-6s %-10s %s\n", "ENV", "NAME", "URI", "MODE", "STATE", "CACHE")
			for _, env := range svc.Specs().Envs() {
				reg := svc.Specs().Registry(env)
				if reg == nil {
					continue
				}
				specs := reg.All()
				slices.SortFunc(specs, func(a, b *spec.Spec) int {
					return strings.Compare(a.NaturalID(), b.NaturalID())
				})
				for _, sp := range specs {
					kind := "-"
					if e, ok := svc.Cache().Get(cmd.Context(), sp.EnvID, sp.NaturalID()); ok {
						kind = e.Kind.String()
					}
					shown := env
					if shown == "" {
						shown = "*"
					}
					fmt.Fprintf(out, "%-12s %-24s %-32s %-6s %-10s %s\n",
						shown, sp.NaturalID(), sp.URI, sp.Resolution.Type,
						svc.State(sp.EnvID, sp.NaturalID()), kind)
				}
			}
			return nil
		},
	}
}
