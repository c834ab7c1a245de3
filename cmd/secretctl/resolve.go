package main

import (
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/secretops/cache"
	"github.com/jonwraymond/secretops/spec"
)

func newResolveCmd() *cobra.Command {
	var (
		envID  string
		reveal bool
	)

	cmd := &cobra.Command{
		Use:   "resolve <reference>",
		Short: "Resolve a secret reference such as '<< uri /vault/db key password >>'",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := spec.Parse(args[0])
			if err != nil {
				return err
			}
			if !ref.IsLiteral() {
				return fmt.Errorf("%s: expression references need a discovery context", ref.Raw)
			}

			path, _ := cmd.Flags().GetString("config")
			rt, err := startRuntime(cmd.Context(), path, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = rt.close(cmd.Context()) }()

			svc := rt.svc
			sp := svc.Specs().FromRef(envID, ref)
			if sp == nil {
				if !svc.ShouldDeployOnTheFly(ref) {
					return fmt.Errorf("no spec matches %s in environment %q", ref.Raw, envID)
				}
				if sp, err = svc.DeployOnTheFly(cmd.Context(), envID, ref); err != nil {
					return err
				}
			}

			entry, ok := svc.Cache().Get(cmd.Context(), sp.EnvID, sp.NaturalID())
			if !ok {
				return fmt.Errorf("%s is not deployed", sp.NaturalID())
			}
			return printEntry(cmd.OutOrStdout(), entry, selectedKey(sp, ref), reveal)
		},
	}

	cmd.Flags().StringVarP(&envID, "env", "e", "", "Environment the reference is read from")
	cmd.Flags().BoolVar(&reveal, "reveal", false, "Print secret values instead of masking them")
	return cmd
}

// selectedKey is the bundle key a reference reads, or "" for the whole bundle.
func selectedKey(sp *spec.Spec, ref spec.Ref) string {
	if ref.SecondaryType == spec.RefTypeKey {
		return ref.Secondary.Value
	}
	if ref.MainType == spec.RefTypeName && ref.Main.Value == sp.Name {
		return sp.Key
	}
	for _, c := range sp.Children {
		if c.Name == ref.Main.Value {
			return c.Key
		}
	}
	return sp.Key
}

func printEntry(w io.Writer, e cache.Entry, key string, reveal bool) error {
	switch e.Kind {
	case cache.KindValue:
	case cache.KindError:
		return fmt.Errorf("provider error: %s", e.Error)
	default:
		fmt.Fprintln(w, e.Kind)
		return nil
	}

	keys := slices.Sorted(maps.Keys(e.Value))
	if key != "" {
		if _, ok := e.Value[key]; !ok {
			return fmt.Errorf("key %q not found in secret", key)
		}
		keys = []string{key}
	}
	for _, k := range keys {
		v := e.Value[k].String()
		if reveal {
			v = e.Value[k].Value()
		}
		fmt.Fprintf(w, "%s=%s\n", k, v)
	}
	if !e.ExpireAt.IsZero() {
		fmt.Fprintf(w, "# expires %s\n", e.ExpireAt.Format("2006-01-02T15:04:05Z07:00"))
	}
	return nil
}
