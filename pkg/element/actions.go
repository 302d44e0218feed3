package element

import (
	"context"
	"fmt"
	"time"

	"github.com/devicelab-dev/webfind/pkg/cache"
	"github.com/devicelab-dev/webfind/pkg/core"
	"github.com/devicelab-dev/webfind/pkg/locator"
	"github.com/devicelab-dev/webfind/pkg/logger"
	"github.com/devicelab-dev/webfind/pkg/node"
	"github.com/devicelab-dev/webfind/pkg/remote"
	"github.com/devicelab-dev/webfind/pkg/wait"
)

// withNode resolves c and runs fn on the bound node. A stale-class failure
// re-resolves once and retries once; a second stale failure surfaces as
// ErrStaleElement.
func (c *Control) withNode(ctx context.Context, op string, fn func(context.Context, *node.Node) error) error {
	target, err := c.Resolve(ctx)
	if err != nil {
		return err
	}
	n, err := target.Node()
	if err != nil {
		return err
	}

	err = fn(ctx, n)
	if !remote.IsStale(err) {
		return err
	}

	logger.Debug("%s went stale during %s, re-resolving", c.spec.Describe(), op)
	c.session.metrics.ObserveStaleRetry()
	target, _, err = target.resolve(ctx, true)
	if err != nil {
		return err
	}
	if n, err = target.Node(); err != nil {
		return err
	}

	err = fn(ctx, n)
	if remote.IsStale(err) {
		return core.ErrStaleElement.
			WithMessage(fmt.Sprintf("%s went stale again after re-resolving during %s", c.spec.Describe(), op)).
			WithDetails(target.details()).
			WithCause(err)
	}
	return err
}

func (c *Control) textPolicy() TextPolicy {
	p := c.session.settings.TextPolicy()
	p.OnRetry = func(int, error) { c.session.metrics.ObserveTextRetry() }
	return p
}

func interactionError(n *node.Node, op string, err error) error {
	if err == nil {
		return nil
	}
	return core.ErrInteractionFailed.
		WithMessage(fmt.Sprintf("%s on %s failed", op, n.Spec().Describe())).
		WithDetails(n.Details()).
		WithCause(err)
}

// Click clicks the element.
func (c *Control) Click(ctx context.Context) error {
	return c.withNode(ctx, "click", func(ctx context.Context, n *node.Node) error {
		return interactionError(n, "click", n.Source().Click(ctx, n.Handle()))
	})
}

// SetText replaces the element's value with text, retrying while the element
// reports an invalid state.
func (c *Control) SetText(ctx context.Context, text string) error {
	policy := c.textPolicy()
	return c.withNode(ctx, "set text", func(ctx context.Context, n *node.Node) error {
		return SetText(ctx, c.session.engine, n, text, policy)
	})
}

// GetText returns the element's visible text.
func (c *Control) GetText(ctx context.Context) (string, error) {
	policy := c.textPolicy()
	var text string
	err := c.withNode(ctx, "get text", func(ctx context.Context, n *node.Node) error {
		var err error
		text, err = ReadText(ctx, c.session.engine, n, policy)
		return err
	})
	return text, err
}

// GetAttribute returns the named attribute or property.
func (c *Control) GetAttribute(ctx context.Context, name string) (string, error) {
	var value string
	err := c.withNode(ctx, "get attribute", func(ctx context.Context, n *node.Node) error {
		var err error
		value, err = n.Source().Attribute(ctx, n.Handle(), name)
		return interactionError(n, "get attribute "+name, err)
	})
	return value, err
}

// Info reads a snapshot of the element for reporting.
func (c *Control) Info(ctx context.Context) (core.ElementInfo, error) {
	var info core.ElementInfo
	err := c.withNode(ctx, "inspect", func(ctx context.Context, n *node.Node) error {
		src, h := n.Source(), n.Handle()
		tag, err := src.TagName(ctx, h)
		if err != nil {
			return err
		}
		text, err := src.Text(ctx, h)
		if err != nil {
			return err
		}
		rect, err := src.Rect(ctx, h)
		if err != nil {
			return err
		}
		shown, err := src.Displayed(ctx, h)
		if err != nil {
			return err
		}
		info = core.ElementInfo{
			Name:    c.spec.Name(),
			Locator: c.spec.Resolved(),
			Tag:     tag,
			Text:    text,
			Bounds:  rect,
			Visible: shown,
			Handle:  string(h),
		}
		if p := c.Parent(); p != nil {
			info.ParentOf = p.Path()
		}
		return nil
	})
	return info, err
}

// WaitUntilStable waits until the element stops moving.
func (c *Control) WaitUntilStable(ctx context.Context, timeout time.Duration) error {
	return c.withNode(ctx, "wait until stable", func(ctx context.Context, n *node.Node) error {
		return c.session.engine.WaitUntilStable(ctx, n, timeout, c.session.settings.PollInterval)
	})
}

// WaitUntilVisible waits until the first match is displayed.
func (c *Control) WaitUntilVisible(ctx context.Context, timeout time.Duration) error {
	return c.waitForState(ctx, wait.StateVisible, timeout)
}

// WaitUntilHidden waits until nothing matches or the first match is not
// displayed.
func (c *Control) WaitUntilHidden(ctx context.Context, timeout time.Duration) error {
	return c.waitForState(ctx, wait.StateHidden, timeout)
}

// WaitUntilPresent waits until at least one element matches.
func (c *Control) WaitUntilPresent(ctx context.Context, timeout time.Duration) error {
	return c.waitForState(ctx, wait.StatePresent, timeout)
}

// WaitUntilAbsent waits until nothing matches.
func (c *Control) WaitUntilAbsent(ctx context.Context, timeout time.Duration) error {
	return c.waitForState(ctx, wait.StateAbsent, timeout)
}

func (c *Control) waitForState(ctx context.Context, state wait.State, timeout time.Duration) error {
	s := c.session
	scope, err := c.resolveScope(ctx, false)
	if err != nil {
		return err
	}
	_, err = s.engine.WaitForState(ctx, s.resolver, scope, c.spec, state, timeout, s.settings.PollInterval)
	if err != nil && isStaleScope(err) && c.Parent() != nil {
		if scope, err = c.resolveScope(ctx, true); err != nil {
			return err
		}
		_, err = s.engine.WaitForState(ctx, s.resolver, scope, c.spec, state, timeout, s.settings.PollInterval)
	}
	return err
}

// resolveScope resolves c's parent and returns the scope c is found in.
func (c *Control) resolveScope(ctx context.Context, stale bool) (node.Scope, error) {
	parent := c.Parent()
	if parent == nil {
		return c.session.root, nil
	}

	var p *Control
	var err error
	if stale {
		p, _, err = parent.resolve(ctx, true)
	} else {
		p, err = parent.Resolve(ctx)
	}
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.parent = p
	c.mu.Unlock()
	return p.Node()
}

// FindAll returns one control per element matching spec inside c, each
// carrying an indexed copy of spec. Zero matches is an empty slice.
func (c *Control) FindAll(ctx context.Context, spec *locator.Spec, opts ...ControlOption) ([]*Control, error) {
	target, err := c.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	n, err := target.Node()
	if err != nil {
		return nil, err
	}
	return findControls(ctx, c.session, target, n, spec, opts)
}

// FindAll returns one top-level control per element matching spec.
func (s *Session) FindAll(ctx context.Context, spec *locator.Spec, opts ...ControlOption) ([]*Control, error) {
	return findControls(ctx, s, nil, s.root, spec, opts)
}

func findControls(ctx context.Context, s *Session, parent *Control, scope node.Scope, spec *locator.Spec, opts []ControlOption) ([]*Control, error) {
	nodes, err := s.resolver.FindAll(ctx, scope, spec)
	if err != nil {
		return nil, err
	}

	controls := make([]*Control, 0, len(nodes))
	for i, n := range nodes {
		ctl := newControl(s, n.Spec(), parent, opts...)
		ctl.index = i
		ctl.current.Store(n)
		ctl.gen.Store(s.cache.Generation())

		got, outcome := s.cache.Check(ctx, ctl)
		if outcome == cache.Hit && got != ctl {
			ctl.current.Store(nil)
		} else {
			ctl.gen.Store(s.cache.Generation())
		}
		got.setState(core.StateResolved)
		got.fireOnBeingSet(got == ctl)
		controls = append(controls, got)
	}
	return controls, nil
}
