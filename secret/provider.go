package secret

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Provider resolves secret bundles from one back-end.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Resolve never blocks the caller; the returned Future completes exactly once.
// - A missing secret completes with found=false and a nil error.
// - Watch returns ErrWatchUnsupported when the back-end cannot push changes.
// - FromURL owns the provider's URL dialect.
// - Implementations must not log secret values.
type Provider interface {
	Resolve(ctx context.Context, m Mount) *Future
	Watch(ctx context.Context, m Mount, types ...EventType) (*Watch, error)
	FromURL(u URL) (Mount, error)
	Close() error
}

// Result is the outcome of one resolution.
type Result struct {
	Map   Map
	Found bool
	Err   error
}

// Future is a single-result asynchronous resolution.
type Future struct {
	done chan struct{}
	res  Result
}

// Completed returns an already completed Future.
func Completed(m Map, found bool, err error) *Future {
	f := &Future{done: make(chan struct{})}
	f.res = Result{Map: m, Found: found, Err: err}
	close(f.done)
	return f
}

// Go runs fn in its own goroutine and returns its Future. A panic in fn
// completes the Future with an error.
func Go(ctx context.Context, fn func(ctx context.Context) (Map, bool, error)) *Future {
	f := &Future{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				f.res = Result{Err: fmt.Errorf("secret: provider panicked: %v", r)}
			}
		}()
		m, found, err := fn(ctx)
		f.res = Result{Map: m, Found: found, Err: err}
	}()
	return f
}

// Done is closed once the Future completes.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the Future completes or ctx is done.
func (f *Future) Await(ctx context.Context) (Map, bool, error) {
	select {
	case <-f.done:
		return f.res.Map, f.res.Found, f.res.Err
	case <-ctx.Done():
		return Map{}, false, ctx.Err()
	}
}

// EventType is the kind of change a provider pushes.
type EventType int

const (
	EventCreated EventType = iota + 1
	EventUpdated
	EventDeleted
)

func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "CREATED"
	case EventUpdated:
		return "UPDATED"
	case EventDeleted:
		return "DELETED"
	default:
		return "UNKNOWN"
	}
}

// Accepts reports whether t passes a watch filter. An empty filter accepts
// every type.
func Accepts(filter []EventType, t EventType) bool {
	return len(filter) == 0 || slices.Contains(filter, t)
}

// Event is one change pushed by a provider.
type Event struct {
	Type EventType
	Map  Map
}

const watchBuffer = 16

// Watch is a cancellable event stream. Events is closed after Stop returns
// or the producer ends.
type Watch struct {
	events chan Event
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// StartWatch runs producer until its context is cancelled. producer calls
// emit for every event; emit returns false once the watch is stopped and the
// producer should return.
func StartWatch(parent context.Context, producer func(ctx context.Context, emit func(Event) bool)) *Watch {
	ctx, cancel := context.WithCancel(parent)
	w := &Watch{
		events: make(chan Event, watchBuffer),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	emit := func(e Event) bool {
		select {
		case w.events <- e:
			return true
		case <-ctx.Done():
			return false
		}
	}
	go func() {
		defer close(w.done)
		defer close(w.events)
		producer(ctx, emit)
	}()
	return w
}

// Events returns the event stream.
func (w *Watch) Events() <-chan Event {
	return w.events
}

// Done is closed once the producer has returned.
func (w *Watch) Done() <-chan struct{} {
	return w.done
}

// Stop cancels the watch and waits for the producer to return. It is safe
// to call more than once.
func (w *Watch) Stop() {
	w.once.Do(w.cancel)
	<-w.done
}
