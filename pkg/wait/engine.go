// Package wait implements the bounded polling used to find elements and to
// wait for them to become visible, hidden or geometrically stable.
//
// Every wait is a blocking loop with an explicit sleep. The timeout bounds
// how long a loop blocks; the context can cut it short.
package wait

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/devicelab-dev/webfind/pkg/core"
)

const tracerName = "github.com/devicelab-dev/webfind/pkg/wait"

// Defaults used when an option is not set.
const (
	DefaultStabilityDelay = 200 * time.Millisecond
	DefaultPollInterval   = 100 * time.Millisecond
)

// Condition is one poll attempt. It reports done, or an error that stops the loop.
type Condition func(ctx context.Context) (bool, error)

// Engine runs poll loops against an injectable clock.
type Engine struct {
	clock          clockwork.Clock
	stabilityDelay time.Duration
	tracer         trace.Tracer
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used for sleeping and measuring elapsed time.
func WithClock(c clockwork.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithStabilityDelay sets the delay between the two geometry samples of a
// stability probe. The 200ms default is empirical; slow animations need more.
func WithStabilityDelay(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.stabilityDelay = d
		}
	}
}

// WithTracerProvider sets the provider spans are recorded with.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) { e.tracer = tp.Tracer(tracerName) }
}

// New creates an engine with the real clock and the global tracer provider.
func New(opts ...Option) *Engine {
	e := &Engine{
		clock:          clockwork.NewRealClock(),
		stabilityDelay: DefaultStabilityDelay,
		tracer:         otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Clock returns the engine's clock.
func (e *Engine) Clock() clockwork.Clock { return e.clock }

// StabilityDelay returns the delay between stability samples.
func (e *Engine) StabilityDelay() time.Duration { return e.stabilityDelay }

// Until calls cond until it reports done or fails, or until timeout has
// elapsed. A timeout of 0 makes exactly one attempt without sleeping. Each
// sleep is clamped to the time remaining, so the final attempt lands on the
// deadline. Expiry returns core.ErrWaitTimeout with timing details.
func (e *Engine) Until(ctx context.Context, timeout, interval time.Duration, cond Condition) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	start := e.clock.Now()

	for attempt := 1; ; attempt++ {
		done, err := cond(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		elapsed := e.clock.Since(start)
		if elapsed >= timeout {
			return core.ErrWaitTimeout.WithDetails(map[string]interface{}{
				core.DetailTimeout:      timeout,
				core.DetailPollInterval: interval,
				core.DetailElapsed:      elapsed,
				core.DetailAttempts:     attempt,
			})
		}

		pause := interval
		if remaining := timeout - elapsed; remaining < pause {
			pause = remaining
		}
		if err := e.sleep(ctx, pause); err != nil {
			return err
		}
	}
}

// sleep blocks for d or until ctx is done.
func (e *Engine) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil || d <= 0 {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-e.clock.After(d):
		return nil
	}
}

// Sleep blocks for d on the engine's clock, or until ctx is done.
func (e *Engine) Sleep(ctx context.Context, d time.Duration) error {
	return e.sleep(ctx, d)
}
