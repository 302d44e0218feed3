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
	"github.com/devicelab-dev/webfind/pkg/node"
	"github.com/devicelab-dev/webfind/pkg/remote"
)

// State is a condition WaitForState can wait for.
type State int

const (
	StatePresent State = iota // At least one match
	StateAbsent               // No match
	StateVisible              // First match is displayed
	StateHidden               // No match, or first match not displayed
	StateStable               // First match stopped moving
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case StatePresent:
		return "present"
	case StateAbsent:
		return "absent"
	case StateVisible:
		return "visible"
	case StateHidden:
		return "hidden"
	case StateStable:
		return "stable"
	default:
		return "unknown"
	}
}

// IsStable samples the element's bounding box twice, stabilityDelay apart,
// and reports whether both samples are identical. This is a heuristic: an
// element can pause mid-animation for longer than the delay.
func (e *Engine) IsStable(ctx context.Context, n *node.Node) (bool, error) {
	before, err := n.Rect(ctx)
	if err != nil {
		return false, err
	}
	if err := e.sleep(ctx, e.stabilityDelay); err != nil {
		return false, err
	}
	after, err := n.Rect(ctx)
	if err != nil {
		return false, err
	}
	return before == after, nil
}

// WaitUntilStable polls IsStable until it holds or timeout elapses.
func (e *Engine) WaitUntilStable(ctx context.Context, n *node.Node, timeout, interval time.Duration) error {
	err := e.Until(ctx, timeout, interval, func(ctx context.Context) (bool, error) {
		return e.IsStable(ctx, n)
	})
	if errors.Is(err, core.ErrWaitTimeout) {
		return stateTimeout(err, n.Spec(), n.Parent(), StateStable)
	}
	return err
}

// WaitForState polls until the locator reaches state in scope. Each poll is a
// single find; zero matches is an ordinary outcome, not an error. A handle
// that goes stale while its visibility is read counts as hidden.
//
// The returned node is the first match for Present and Visible, nil otherwise.
func (e *Engine) WaitForState(ctx context.Context, f Finder, scope node.Scope, spec *locator.Spec, state State, timeout, interval time.Duration) (*node.Node, error) {
	ctx, span := e.tracer.Start(ctx, "wait.WaitForState", trace.WithAttributes(
		attribute.String("locator.name", spec.Name()),
		attribute.String("state", state.String()),
		attribute.Int64("timeout_ms", timeout.Milliseconds()),
	))
	defer span.End()

	var match *node.Node
	err := e.Until(ctx, timeout, interval, func(ctx context.Context) (bool, error) {
		match = nil
		nodes, err := f.FindAll(ctx, scope, spec)
		if err != nil {
			return false, err
		}
		done, first, err := e.reached(ctx, nodes, state)
		if done {
			match = first
		}
		return done, err
	})
	if errors.Is(err, core.ErrWaitTimeout) {
		err = stateTimeout(err, spec, scope, state)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, errorCode(err))
		return nil, err
	}
	return match, nil
}

// reached evaluates one poll of WaitForState.
func (e *Engine) reached(ctx context.Context, nodes []*node.Node, state State) (bool, *node.Node, error) {
	switch state {
	case StatePresent:
		if len(nodes) > 0 {
			return true, nodes[0], nil
		}
		return false, nil, nil
	case StateAbsent:
		return len(nodes) == 0, nil, nil
	case StateVisible, StateHidden:
		if len(nodes) == 0 {
			return state == StateHidden, nil, nil
		}
		shown, err := nodes[0].Displayed(ctx)
		if remote.IsStale(err) {
			shown, err = false, nil
		}
		if err != nil {
			return false, nil, err
		}
		if state == StateVisible {
			return shown, nodes[0], nil
		}
		return !shown, nil, nil
	case StateStable:
		if len(nodes) == 0 {
			return false, nil, nil
		}
		stable, err := e.IsStable(ctx, nodes[0])
		if remote.IsStale(err) {
			return false, nil, nil
		}
		return stable, nodes[0], err
	}
	return false, nil, core.ErrInvariantViolation.WithMessage(fmt.Sprintf("unknown wait state %d", state))
}

// stateTimeout turns a poll-loop expiry into a WaitTimeout for spec.
func stateTimeout(err error, spec *locator.Spec, scope node.Scope, state State) error {
	details := map[string]interface{}{core.DetailState: state.String()}
	var execErr *core.ExecutionError
	if errors.As(err, &execErr) {
		details[core.DetailTimeout] = execErr.Detail(core.DetailTimeout)
		details[core.DetailElapsed] = execErr.Detail(core.DetailElapsed)
		details[core.DetailPollInterval] = execErr.Detail(core.DetailPollInterval)
	}
	return core.ErrWaitTimeout.
		WithMessage(fmt.Sprintf("%s did not become %s", spec.Describe(), state)).
		WithDetails(node.Details(spec, scope)).
		WithDetails(details)
}
