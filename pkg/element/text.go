package element

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/devicelab-dev/webfind/pkg/core"
	"github.com/devicelab-dev/webfind/pkg/logger"
	"github.com/devicelab-dev/webfind/pkg/node"
	"github.com/devicelab-dev/webfind/pkg/remote"
	"github.com/devicelab-dev/webfind/pkg/wait"
)

// TextPolicy bounds the retries of text entry and text reads. Only the
// "invalid element state" class is retried; UI frameworks raise it for a few
// milliseconds while re-rendering an input.
type TextPolicy struct {
	MaxRetries    int // total attempts; 0 retries until ctx ends
	RetryInterval time.Duration

	// OnRetry, if set, is called before each sleep.
	OnRetry func(attempt int, err error)
}

// SetText clears n and types text.
func SetText(ctx context.Context, e *wait.Engine, n *node.Node, text string, p TextPolicy) error {
	if n == nil || !n.Bound() {
		return notBound(n)
	}
	src := n.Source()
	h := n.Handle()

	attempts, exhausted, err := retryTransient(ctx, e, p, func() error {
		if err := src.Clear(ctx, h); err != nil {
			return err
		}
		return src.SendKeys(ctx, h, text)
	})
	if err == nil || isContextErr(err) {
		return err
	}
	if !exhausted {
		return core.ErrInteractionFailed.
			WithMessage(fmt.Sprintf("failed to set text of %s", n.Spec().Describe())).
			WithDetails(n.Details()).
			WithDetails(map[string]interface{}{core.DetailText: text, core.DetailAttempts: attempts}).
			WithCause(err)
	}
	return core.ErrUnableToSetOrGetText.
		WithMessage(fmt.Sprintf("unable to set text of %s after %d attempts", n.Spec().Describe(), attempts)).
		WithDetails(n.Details()).
		WithDetails(map[string]interface{}{core.DetailText: text, core.DetailAttempts: attempts}).
		WithCause(err)
}

// ReadText reads n's visible text with the same retry policy as SetText.
func ReadText(ctx context.Context, e *wait.Engine, n *node.Node, p TextPolicy) (string, error) {
	if n == nil || !n.Bound() {
		return "", notBound(n)
	}
	src := n.Source()
	h := n.Handle()

	var text string
	attempts, exhausted, err := retryTransient(ctx, e, p, func() error {
		var err error
		text, err = src.Text(ctx, h)
		return err
	})
	if err == nil {
		return text, nil
	}
	if isContextErr(err) {
		return "", err
	}
	if !exhausted {
		return "", core.ErrInteractionFailed.
			WithMessage(fmt.Sprintf("failed to read text of %s", n.Spec().Describe())).
			WithDetails(n.Details()).
			WithCause(err)
	}
	return "", core.ErrUnableToSetOrGetText.
		WithMessage(fmt.Sprintf("unable to read text of %s after %d attempts", n.Spec().Describe(), attempts)).
		WithDetails(n.Details()).
		WithDetails(map[string]interface{}{core.DetailAttempts: attempts}).
		WithCause(err)
}

// retryTransient runs op until it succeeds, fails with a non-transient
// error, or exhausts the policy. When exhausted, err is the last transient
// failure.
func retryTransient(ctx context.Context, e *wait.Engine, p TextPolicy, op func() error) (attempts int, exhausted bool, err error) {
	for attempts = 1; ; attempts++ {
		err = op()
		if err == nil {
			return attempts, false, nil
		}
		if !remote.IsTransientState(err) {
			return attempts, false, err
		}
		if p.MaxRetries > 0 && attempts >= p.MaxRetries {
			return attempts, true, err
		}

		logger.Debug("attempt %d hit %v, retrying in %s", attempts, err, p.RetryInterval)
		if p.OnRetry != nil {
			p.OnRetry(attempts, err)
		}
		if serr := e.Sleep(ctx, p.RetryInterval); serr != nil {
			return attempts, false, serr
		}
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func notBound(n *node.Node) error {
	if n == nil {
		return core.ErrNotBound
	}
	return core.ErrNotBound.WithDetails(n.Details())
}
