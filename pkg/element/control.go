package element

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/devicelab-dev/webfind/pkg/cache"
	"github.com/devicelab-dev/webfind/pkg/core"
	"github.com/devicelab-dev/webfind/pkg/locator"
	"github.com/devicelab-dev/webfind/pkg/logger"
	"github.com/devicelab-dev/webfind/pkg/node"
	"github.com/devicelab-dev/webfind/pkg/remote"
	"github.com/devicelab-dev/webfind/pkg/wait"
)

// DefaultShape is the shape of controls created without WithShape.
const DefaultShape = "control"

var controlIDs atomic.Uint64

// OnBeingSetFunc is called after every successful Resolve with the control
// handed to the caller. firstTime is false when it came from the cache.
type OnBeingSetFunc func(c *Control, firstTime bool)

type controlOptions struct {
	shape         string
	allowMultiple bool
	stable        bool
	timeout       time.Duration
	onBeingSet    OnBeingSetFunc
}

// ControlOption configures a Control.
type ControlOption func(*controlOptions)

// WithShape sets the control's type name. Controls of different shapes with
// the same locator are cached separately.
func WithShape(shape string) ControlOption {
	return func(o *controlOptions) { o.shape = shape }
}

// WithAllowMultiple takes the first of several matches instead of failing.
func WithAllowMultiple() ControlOption {
	return func(o *controlOptions) { o.allowMultiple = true }
}

// WithStable waits for the element to stop moving before binding it.
func WithStable() ControlOption {
	return func(o *controlOptions) { o.stable = true }
}

// WithTimeout overrides the session find timeout for this control.
func WithTimeout(d time.Duration) ControlOption {
	return func(o *controlOptions) { o.timeout = d }
}

// WithOnBeingSet installs the lifecycle hook.
func WithOnBeingSet(fn OnBeingSetFunc) ControlOption {
	return func(o *controlOptions) { o.onBeingSet = fn }
}

// Control is a parent-aware, lazily bound handle to one element.
//
// Resolve never swallows find errors. Behaviors resolve first, and retry
// once after re-resolving when the element went stale mid-action.
type Control struct {
	id      uint64
	spec    *locator.Spec
	session *Session
	opts    controlOptions
	index   int // >= 0 for controls produced by FindAll

	mu     sync.Mutex // serializes Resolve
	parent *Control   // guarded by mu

	// Read without mu by cache liveness probes
	current atomic.Pointer[node.Node]
	gen     atomic.Uint64
	state   atomic.Int32
}

func newControl(s *Session, spec *locator.Spec, parent *Control, opts ...ControlOption) *Control {
	o := controlOptions{shape: DefaultShape}
	for _, opt := range opts {
		opt(&o)
	}
	return &Control{
		id:      controlIDs.Add(1),
		spec:    spec,
		session: s,
		opts:    o,
		index:   -1,
		parent:  parent,
	}
}

// Child creates a control for spec scoped to c.
func (c *Control) Child(spec *locator.Spec, opts ...ControlOption) *Control {
	return newControl(c.session, spec, c, opts...)
}

// Spec returns the control's locator.
func (c *Control) Spec() *locator.Spec { return c.spec }

// Name returns the friendly name.
func (c *Control) Name() string { return c.spec.Name() }

// Shape returns the control's type name.
func (c *Control) Shape() string { return c.opts.shape }

// Session returns the owning session.
func (c *Control) Session() *Session { return c.session }

// Parent returns the logical parent, nil for top-level controls.
func (c *Control) Parent() *Control {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.parent
}

// State returns the resolution state.
func (c *Control) State() core.ResolveState {
	return core.ResolveState(c.state.Load())
}

func (c *Control) setState(s core.ResolveState) {
	c.state.Store(int32(s))
}

// Node returns the bound node, or ErrNotBound before the first Resolve.
func (c *Control) Node() (*node.Node, error) {
	if n := c.current.Load(); n != nil {
		return n, nil
	}
	return nil, core.ErrNotBound.
		WithMessage(fmt.Sprintf("%s has not been resolved", c.spec.Describe())).
		WithDetails(c.details())
}

// Path returns the friendly names from the top-level control down to c.
func (c *Control) Path() string {
	if p := c.Parent(); p != nil {
		return p.Path() + " > " + c.spec.Name()
	}
	return c.spec.Name()
}

func (c *Control) details() map[string]interface{} {
	d := map[string]interface{}{
		core.DetailLocator:  c.spec.Name(),
		core.DetailResolved: c.spec.Resolved(),
	}
	if p := c.Parent(); p != nil {
		d[core.DetailParent] = p.Path()
	}
	return d
}

// identity is the cache identity used by child keys.
func (c *Control) identity() string {
	return "c" + strconv.FormatUint(c.id, 10)
}

// CacheKey implements cache.Entry.
func (c *Control) CacheKey() cache.Key {
	parentID := "root"
	if c.parent != nil {
		parentID = c.parent.identity()
	}
	shape := c.opts.shape + "/" + c.spec.Kind().String()
	if c.index >= 0 {
		shape += "#" + strconv.Itoa(c.index)
	}
	return cache.NewKey(parentID, c.spec.Raw(), shape)
}

// IsStale implements cache.Entry: true when unbound or the handle is dead.
func (c *Control) IsStale(ctx context.Context) bool {
	n := c.current.Load()
	if n == nil {
		return true
	}
	return n.IsStale(ctx)
}

// Resolve binds the control, refreshing stale ancestors first, and returns
// the instance callers should use: c itself, or the cached twin for the same
// parent and locator.
func (c *Control) Resolve(ctx context.Context) (*Control, error) {
	resolved, _, err := c.ResolveWithOutcome(ctx)
	return resolved, err
}

// ResolveWithOutcome is Resolve that also reports how the cache served the
// call: Hit when no find was issued for the returned instance.
func (c *Control) ResolveWithOutcome(ctx context.Context) (*Control, cache.Outcome, error) {
	ctx, span := c.session.tracer.Start(ctx, "control.Resolve", trace.WithAttributes(
		attribute.String("control.name", c.spec.Name()),
		attribute.String("control.shape", c.opts.shape),
		attribute.String("locator", c.spec.Resolved()),
	))
	defer span.End()

	resolved, outcome, err := c.resolve(ctx, false)
	if err != nil {
		code := codeOf(err)
		c.session.metrics.ObserveResolution(code)
		span.RecordError(err)
		span.SetStatus(codes.Error, code)
		return nil, outcome, err
	}
	c.session.metrics.ObserveResolution("ok")
	span.SetAttributes(attribute.String("cache.outcome", outcome.String()))
	return resolved, outcome, nil
}

// resolve runs the resolution state machine, then fires the OnBeingSet hook
// of the returned instance once c.mu is released. knownStale skips the
// liveness probe when the caller already saw c's handle fail.
func (c *Control) resolve(ctx context.Context, knownStale bool) (*Control, cache.Outcome, error) {
	c.mu.Lock()
	got, outcome, err := c.resolveLocked(ctx, knownStale)
	c.mu.Unlock()
	if err != nil {
		return nil, outcome, err
	}
	got.fireOnBeingSet(outcome != cache.Hit)
	return got, outcome, nil
}

// resolveLocked is resolve without the hook. Caller holds c.mu.
func (c *Control) resolveLocked(ctx context.Context, knownStale bool) (*Control, cache.Outcome, error) {
	wasBound := c.current.Load() != nil
	c.setState(core.StateResolving)
	fail := func(err error) (*Control, cache.Outcome, error) {
		if wasBound {
			c.setState(core.StateStale)
		} else {
			c.setState(core.StateUnresolved)
		}
		return nil, cache.Miss, err
	}

	// Parent first, walking up only as far as something is stale
	if c.parent != nil && c.parent.needsRefresh(ctx) {
		p, _, err := c.parent.resolve(ctx, false)
		if err != nil {
			return fail(err)
		}
		c.parent = p
	}

	if c.needsFind(ctx, knownStale) {
		if twin, ok := c.session.cache.Lookup(ctx, c.CacheKey()); ok && twin != c {
			logger.Debug("cache hit for %s", c.spec.Describe())
			c.setState(stateOf(wasBound))
			return twin, cache.Hit, nil
		}

		found, err := c.find(ctx)
		if err != nil && c.parent != nil && isStaleScope(err) {
			// The parent died between its probe and our find
			logger.Debug("scope of %s went stale, refreshing parent", c.spec.Describe())
			p, _, perr := c.parent.resolve(ctx, true)
			if perr != nil {
				return fail(perr)
			}
			c.parent = p
			found, err = c.find(ctx)
		}
		if err != nil {
			return fail(err)
		}
		c.current.Store(found)
		c.gen.Store(c.session.cache.Generation())
	}

	got, outcome := c.session.cache.Check(ctx, c)
	logger.Debug("cache %s for %s", outcome, c.spec.Describe())
	if outcome == cache.Hit {
		if got != c {
			// A twin was stored while c was finding; c's node is not its own
			c.current.Store(nil)
			c.setState(core.StateUnresolved)
			return got, outcome, nil
		}
		c.setState(core.StateResolved)
		return got, outcome, nil
	}

	// A stale-triggered clear moved the generation; c is stored in the new one
	c.gen.Store(c.session.cache.Generation())
	c.setState(core.StateResolved)
	return c, outcome, nil
}

// needsRefresh reports whether a parent must be re-resolved before use.
func (c *Control) needsRefresh(ctx context.Context) bool {
	n := c.current.Load()
	if n == nil || c.gen.Load() != c.session.cache.Generation() {
		return true
	}
	return n.IsStale(ctx)
}

// needsFind decides whether c's own node must be found again. Caller holds c.mu.
func (c *Control) needsFind(ctx context.Context, knownStale bool) bool {
	n := c.current.Load()
	if n == nil {
		return true
	}
	if c.gen.Load() != c.session.cache.Generation() {
		c.setState(core.StateStale)
		return true
	}
	if knownStale || n.IsStale(ctx) {
		logger.Debug("%s is stale", c.spec.Describe())
		c.setState(core.StateStale)
		c.session.cache.Invalidate()
		return true
	}
	return false
}

// scope returns where c's locator is evaluated. Caller holds c.mu.
func (c *Control) scope() node.Scope {
	if c.parent != nil {
		if n := c.parent.current.Load(); n != nil {
			return n
		}
	}
	return c.session.root
}

// find locates c's element in its scope. Caller holds c.mu.
func (c *Control) find(ctx context.Context) (*node.Node, error) {
	s := c.session
	timeout := s.settings.FindTimeout
	if c.opts.timeout > 0 {
		timeout = c.opts.timeout
	}

	if c.index >= 0 {
		return c.findIndexed(ctx, timeout)
	}

	n, err := s.engine.TryFind(ctx, s.resolver, c.scope(), c.spec, wait.FindOptions{
		Timeout:       timeout,
		PollInterval:  s.settings.PollInterval,
		AllowMultiple: c.opts.allowMultiple,
		RequireStable: c.opts.stable,
	})
	if err != nil {
		return nil, err
	}
	return c.adopt(n)
}

// findIndexed re-finds the match at c.index among all matches.
func (c *Control) findIndexed(ctx context.Context, timeout time.Duration) (*node.Node, error) {
	s := c.session
	scope := c.scope()
	var match *node.Node
	err := s.engine.Until(ctx, timeout, s.settings.PollInterval, func(ctx context.Context) (bool, error) {
		nodes, err := s.resolver.FindAll(ctx, scope, c.spec)
		if err != nil {
			return false, err
		}
		if len(nodes) <= c.index {
			return false, nil
		}
		match = nodes[c.index]
		return true, nil
	})
	if errors.Is(err, core.ErrWaitTimeout) {
		return nil, core.ErrNoElementsFound.
			WithMessage(fmt.Sprintf("no element at index %d for %s", c.index, c.spec.Describe())).
			WithDetails(node.Details(c.spec, scope)).
			WithDetails(map[string]interface{}{
				core.DetailTimeout:      timeout,
				core.DetailPollInterval: s.settings.PollInterval,
			})
	}
	if err != nil {
		return nil, err
	}
	return c.adopt(match)
}

// adopt rebinds a found handle to c's own locator so diagnostics keep c's
// name rather than the indexed copy's.
func (c *Control) adopt(found *node.Node) (*node.Node, error) {
	n := node.New(c.session.src, c.spec, found.Parent())
	if err := n.Bind(found.Handle()); err != nil {
		return nil, err
	}
	return n, nil
}

func (c *Control) fireOnBeingSet(firstTime bool) {
	if c.opts.onBeingSet != nil {
		c.opts.onBeingSet(c, firstTime)
	}
}

// stateOf is the state a control is left in when a twin is returned in its place.
func stateOf(wasBound bool) core.ResolveState {
	if wasBound {
		return core.StateStale
	}
	return core.StateUnresolved
}

// isStaleScope reports a find that failed because its scope handle died.
func isStaleScope(err error) bool {
	return errors.Is(err, core.ErrRemoteFind) && remote.IsStale(err)
}

func codeOf(err error) string {
	var execErr *core.ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Code
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "cancelled"
	}
	return "error"
}
