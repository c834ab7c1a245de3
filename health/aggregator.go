package health

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultTimeout bounds a full aggregator run.
const DefaultTimeout = 10 * time.Second

// Report is the outcome of an aggregator run.
type Report struct {
	Status    Status            `json:"status"`
	Results   map[string]Result `json:"results"`
	Timestamp time.Time         `json:"timestamp"`
}

// Names returns the checked names, sorted.
func (r Report) Names() []string {
	return slices.Sorted(maps.Keys(r.Results))
}

// Aggregator combines named checkers.
type Aggregator struct {
	timeout time.Duration

	mu       sync.RWMutex
	checkers map[string]Checker
	order    []string
}

// NewAggregator creates an aggregator whose runs are bounded by timeout
// (DefaultTimeout when non-positive).
func NewAggregator(timeout time.Duration) *Aggregator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Aggregator{timeout: timeout, checkers: make(map[string]Checker)}
}

// Register adds c under c.Name(), replacing a checker of the same name.
func (a *Aggregator) Register(c Checker) {
	a.mu.Lock()
	defer a.mu.Unlock()
	name := c.Name()
	if _, exists := a.checkers[name]; !exists {
		a.order = append(a.order, name)
	}
	a.checkers[name] = c
}

// Unregister removes the named checker.
func (a *Aggregator) Unregister(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.checkers, name)
	a.order = slices.DeleteFunc(a.order, func(n string) bool { return n == name })
}

// CheckerNames returns the registered names in registration order.
func (a *Aggregator) CheckerNames() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.order)
}

// Check runs a single named check.
func (a *Aggregator) Check(ctx context.Context, name string) (Result, error) {
	a.mu.RLock()
	c, ok := a.checkers[name]
	a.mu.RUnlock()
	if !ok {
		return Result{}, ErrCheckerNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return run(ctx, c), nil
}

// Run executes every check concurrently and aggregates the results.
// An empty aggregator is healthy.
func (a *Aggregator) Run(ctx context.Context) Report {
	a.mu.RLock()
	checkers := make([]Checker, 0, len(a.order))
	for _, name := range a.order {
		checkers = append(checkers, a.checkers[name])
	}
	a.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	results := make([]Result, len(checkers))
	var g errgroup.Group
	for i, c := range checkers {
		g.Go(func() error {
			results[i] = run(ctx, c)
			return nil
		})
	}
	_ = g.Wait()

	report := Report{Status: StatusHealthy, Results: make(map[string]Result, len(checkers)), Timestamp: time.Now()}
	for i, c := range checkers {
		report.Results[c.Name()] = results[i]
		report.Status = report.Status.Worst(results[i].Status)
	}
	return report
}

// Checker exposes the aggregator as a single Checker named name.
func (a *Aggregator) Checker(name string) Checker {
	return Named(name, func(ctx context.Context) Result {
		report := a.Run(ctx)
		details := make(map[string]any, len(report.Results))
		worst := 0
		for n, r := range report.Results {
			details[n] = r.Status.String()
			if r.Status != StatusHealthy {
				worst++
			}
		}
		msg := "all checks passed"
		if worst > 0 {
			msg = fmt.Sprintf("%d of %d checks %s", worst, len(report.Results), report.Status)
		}
		return Result{Status: report.Status, Message: msg, Details: details, Timestamp: report.Timestamp}
	})
}

func run(ctx context.Context, c Checker) Result {
	start := time.Now()
	ch := make(chan Result, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				ch <- Unhealthy(fmt.Errorf("%w: %v", ErrCheckPanicked, p), "check panicked")
			}
		}()
		ch <- c.Check(ctx)
	}()

	select {
	case r := <-ch:
		r.Duration = time.Since(start)
		if r.Timestamp.IsZero() {
			r.Timestamp = start
		}
		return r
	case <-ctx.Done():
		return Result{
			Status:    StatusUnhealthy,
			Message:   "check timed out",
			Error:     ErrCheckTimeout,
			Duration:  time.Since(start),
			Timestamp: start,
		}
	}
}
