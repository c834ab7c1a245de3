package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jonwraymond/secretops/config"
	"github.com/jonwraymond/secretops/lifecycle"
	"github.com/jonwraymond/secretops/observe"
)

// runtime is a deployed configuration plus its telemetry.
type runtime struct {
	svc *lifecycle.Service
	obs observe.Observer
}

// startRuntime loads path, wires telemetry to logs and deploys every
// declared provider and Spec. Provider and deploy failures are reported on
// logs and do not abort the start.
func startRuntime(ctx context.Context, path string, logs io.Writer) (*runtime, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	cfg.Observability.Writer = logs

	obs, err := observe.NewObserver(ctx, cfg.Observability)
	if err != nil {
		return nil, err
	}
	mw, err := observe.MiddlewareFromObserver(obs)
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, err
	}

	opts := lifecycle.OptionsFromConfig(cfg)
	opts.Middleware = mw
	opts.Logger = obs.Logger()
	svc := lifecycle.New(opts)

	rt := &runtime{svc: svc, obs: obs}
	specs, err := cfg.DeclaredSpecs()
	if err != nil {
		_ = rt.close(ctx)
		return nil, err
	}
	if err := svc.ConfigureProviders(cfg.Providers); err != nil {
		fmt.Fprintf(logs, "warning: %v\n", err)
	}
	if err := svc.DeployAll(ctx, specs); err != nil {
		fmt.Fprintf(logs, "warning: %v\n", err)
	}
	return rt, nil
}

func (r *runtime) close(ctx context.Context) error {
	return errors.Join(r.svc.Stop(ctx), r.obs.Shutdown(ctx))
}
