// Package loop implements the single-goroutine cooperative event loop
// shared by every daemon in this module: it waits on a set of named
// sources plus a periodic tick, and dispatches to the matching executor
// when one fires. Exactly one goroutine ever runs reconciliation for a
// given daemon instance, so the orchestrator state that executors touch
// needs no locking (spec.md §5).
package loop

import (
	"context"
	"log"
	"reflect"
	"time"
)

// An Executor reacts to a Source becoming ready. A transient error is
// logged and the loop continues; there is no retry beyond whatever the
// executor itself performs.
type Executor func() error

// A Source is one selectable input: a channel that is sent to (or
// closed) whenever there's work for Exec to do.
type Source struct {
	// Name identifies the source in log output.
	Name string
	// Ready fires whenever the source has data pending.
	Ready <-chan struct{}
	// Exec drains and processes whatever became ready.
	Exec Executor
}

// Tick is called on every periodic wakeup. It exists to re-run
// reconciliation over state left pending by an earlier partial pass
// (e.g. a consumer.Buffer entry that was Retained); it is not a
// cancellation mechanism (spec.md §5).
type Tick func()

// A Loop runs Sources and a periodic Tick until its context is
// cancelled. The number of sources is fixed for the lifetime of a Loop
// and waited on with reflect.Select, since a plain select statement
// can't take a dynamically-sized case list.
type Loop struct {
	sources  []Source
	interval time.Duration
	tick     Tick
	logger   *log.Logger
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger overrides the default logger.
func WithLogger(l *log.Logger) Option {
	return func(lp *Loop) { lp.logger = l }
}

// New creates a Loop over sources, calling tick every interval.
func New(interval time.Duration, tick Tick, sources []Source, opts ...Option) *Loop {
	lp := &Loop{
		sources:  sources,
		interval: interval,
		tick:     tick,
		logger:   log.Default(),
	}
	for _, o := range opts {
		o(lp)
	}
	return lp
}

// Run blocks, servicing sources and ticks, until ctx is cancelled. It
// returns nil in that case — the only clean shutdown path. A source
// executor's error is logged and the loop continues.
func (lp *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(lp.interval)
	defer ticker.Stop()

	cases := lp.buildCases(ctx, ticker)

	for {
		chosen, _, _ := reflect.Select(cases)

		switch {
		case chosen == 0: // ctx.Done()
			return nil
		case chosen == 1: // ticker.C
			lp.tick()
		default:
			lp.exec(lp.sources[chosen-2])
		}
	}
}

func (lp *Loop) buildCases(ctx context.Context, ticker *time.Ticker) []reflect.SelectCase {
	cases := make([]reflect.SelectCase, 0, len(lp.sources)+2)
	cases = append(cases,
		reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ctx.Done())},
		reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ticker.C)},
	)
	for _, s := range lp.sources {
		cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(s.Ready)})
	}
	return cases
}

func (lp *Loop) exec(s Source) {
	if err := s.Exec(); err != nil {
		lp.logger.Printf("%s: %v", s.Name, err)
	}
}
