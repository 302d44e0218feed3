package wait

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/devicelab-dev/webfind/pkg/core"
	"github.com/devicelab-dev/webfind/pkg/locator"
	"github.com/devicelab-dev/webfind/pkg/logger"
	"github.com/devicelab-dev/webfind/pkg/node"
)

// Finder runs one remote find. *node.Resolver implements it.
type Finder interface {
	FindAll(ctx context.Context, scope node.Scope, spec *locator.Spec) ([]*node.Node, error)
}

// FindOptions controls TryFind.
type FindOptions struct {
	Timeout      time.Duration
	PollInterval time.Duration

	// AllowMultiple takes the first of several matches instead of failing.
	AllowMultiple bool

	// RequireStable waits for the match to stop moving, then finds again.
	RequireStable bool
}

// TryFind polls f until the locator matches. Zero matches is retried until
// the timeout; more than one match without AllowMultiple fails at once and is
// never retried.
func (e *Engine) TryFind(ctx context.Context, f Finder, scope node.Scope, spec *locator.Spec, opts FindOptions) (*node.Node, error) {
	ctx, span := e.tracer.Start(ctx, "wait.TryFind", trace.WithAttributes(
		attribute.String("locator.name", spec.Name()),
		attribute.String("locator.kind", spec.Kind().String()),
		attribute.String("locator.value", spec.Resolved()),
		attribute.Int64("timeout_ms", opts.Timeout.Milliseconds()),
		attribute.Bool("allow_multiple", opts.AllowMultiple),
		attribute.Bool("require_stable", opts.RequireStable),
	))
	defer span.End()

	n, err := e.tryFind(ctx, f, scope, spec, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, errorCode(err))
		return nil, err
	}
	return n, nil
}

func (e *Engine) tryFind(ctx context.Context, f Finder, scope node.Scope, spec *locator.Spec, opts FindOptions) (*node.Node, error) {
	match, err := e.findOnce(ctx, f, scope, spec, opts, opts.Timeout)
	if err != nil || !opts.RequireStable {
		return match, err
	}

	stable, err := e.IsStable(ctx, match)
	if err != nil {
		return nil, err
	}
	if stable {
		return match, nil
	}

	logger.Debug("%s is moving, waiting for layout to settle", spec.Describe())
	if err := e.WaitUntilStable(ctx, match, opts.Timeout, opts.PollInterval); err != nil {
		return nil, err
	}
	// Layout may have changed which element comes first
	return e.findOnce(ctx, f, scope, spec, opts, 0)
}

// findOnce runs the poll loop for one find phase.
func (e *Engine) findOnce(ctx context.Context, f Finder, scope node.Scope, spec *locator.Spec, opts FindOptions, timeout time.Duration) (*node.Node, error) {
	var match *node.Node
	err := e.Until(ctx, timeout, opts.PollInterval, func(ctx context.Context) (bool, error) {
		nodes, err := f.FindAll(ctx, scope, spec)
		if err != nil {
			return false, err
		}
		switch {
		case len(nodes) == 0:
			return false, nil
		case len(nodes) > 1 && !opts.AllowMultiple:
			return false, core.ErrMultipleElementsFound.
				WithMessage(fmt.Sprintf("%d elements match %s", len(nodes), spec.Describe())).
				WithDetails(node.Details(spec, scope)).
				WithDetails(map[string]interface{}{core.DetailCount: len(nodes)})
		}
		match = nodes[0]
		return true, nil
	})

	var timeoutErr *core.ExecutionError
	if errors.Is(err, core.ErrWaitTimeout) && errors.As(err, &timeoutErr) {
		return nil, core.ErrNoElementsFound.
			WithMessage(fmt.Sprintf("no elements match %s", spec.Describe())).
			WithDetails(node.Details(spec, scope)).
			WithDetails(map[string]interface{}{
				core.DetailTimeout:      timeout,
				core.DetailPollInterval: timeoutErr.Detail(core.DetailPollInterval),
				core.DetailElapsed:      timeoutErr.Detail(core.DetailElapsed),
				core.DetailAttempts:     timeoutErr.Detail(core.DetailAttempts),
			})
	}
	if err != nil {
		return nil, err
	}
	return match, nil
}

// errorCode returns the engine code of err for span status, or "error".
func errorCode(err error) string {
	var execErr *core.ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Code
	}
	return "error"
}
