// Package element provides Controls: lazily resolved, cached handles to
// elements that recover by themselves when the page re-renders.
//
// A Session binds one remote source to one cache. Sessions are independent;
// run parallel work on separate sessions.
package element

import (
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/devicelab-dev/webfind/pkg/cache"
	"github.com/devicelab-dev/webfind/pkg/locator"
	"github.com/devicelab-dev/webfind/pkg/logger"
	"github.com/devicelab-dev/webfind/pkg/metrics"
	"github.com/devicelab-dev/webfind/pkg/node"
	"github.com/devicelab-dev/webfind/pkg/remote"
	"github.com/devicelab-dev/webfind/pkg/wait"
)

const tracerName = "github.com/devicelab-dev/webfind/pkg/element"

// Settings are the engine tunables a session runs with.
type Settings struct {
	FindTimeout       time.Duration
	PollInterval      time.Duration
	TextRetries       int // 0 retries until the context ends
	TextRetryInterval time.Duration
	StabilityDelay    time.Duration
	CachingEnabled    bool
}

// DefaultSettings returns the defaults used when no configuration is given.
func DefaultSettings() Settings {
	return Settings{
		FindTimeout:       10 * time.Second,
		PollInterval:      250 * time.Millisecond,
		TextRetries:       3,
		TextRetryInterval: 100 * time.Millisecond,
		StabilityDelay:    wait.DefaultStabilityDelay,
		CachingEnabled:    true,
	}
}

// TextPolicy returns the text entry retry policy for these settings.
func (s Settings) TextPolicy() TextPolicy {
	return TextPolicy{MaxRetries: s.TextRetries, RetryInterval: s.TextRetryInterval}
}

// Session is one logical browser session: a source, its document root and
// a private cache.
type Session struct {
	label    string
	src      remote.Source
	root     *node.Root
	resolver *node.Resolver
	engine   *wait.Engine
	cache    *cache.Cache[*Control]
	settings Settings
	tracer   trace.Tracer
	metrics  *metrics.Metrics
}

type sessionConfig struct {
	label    string
	settings Settings
	clock    clockwork.Clock
	tp       trace.TracerProvider
	metrics  *metrics.Metrics
}

// SessionOption configures a Session.
type SessionOption func(*sessionConfig)

// WithSettings replaces the default settings.
func WithSettings(s Settings) SessionOption {
	return func(c *sessionConfig) { c.settings = s }
}

// WithClock sets the clock used by every wait in the session.
func WithClock(clock clockwork.Clock) SessionOption {
	return func(c *sessionConfig) { c.clock = clock }
}

// WithTracerProvider sets the provider spans are recorded with.
func WithTracerProvider(tp trace.TracerProvider) SessionOption {
	return func(c *sessionConfig) { c.tp = tp }
}

// WithMetrics records cache outcomes and remote calls.
func WithMetrics(m *metrics.Metrics) SessionOption {
	return func(c *sessionConfig) { c.metrics = m }
}

// WithLabel names the session in logs.
func WithLabel(label string) SessionOption {
	return func(c *sessionConfig) { c.label = label }
}

// NewSession creates a session over src.
func NewSession(src remote.Source, opts ...SessionOption) *Session {
	cfg := sessionConfig{
		settings: DefaultSettings(),
		clock:    clockwork.NewRealClock(),
		tp:       otel.GetTracerProvider(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	src = cfg.metrics.Instrument(src)
	s := &Session{
		label:    cfg.label,
		src:      src,
		root:     node.NewRoot(cfg.label),
		resolver: node.NewResolver(src),
		engine: wait.New(
			wait.WithClock(cfg.clock),
			wait.WithStabilityDelay(cfg.settings.StabilityDelay),
			wait.WithTracerProvider(cfg.tp),
		),
		cache:    cache.New[*Control](cfg.settings.CachingEnabled),
		settings: cfg.settings,
		tracer:   cfg.tp.Tracer(tracerName),
		metrics:  cfg.metrics,
	}
	s.cache.OnOutcome(func(o cache.Outcome) {
		cfg.metrics.ObserveCache(o)
		if o == cache.StaleInvalidateAll {
			logger.Debug("session %s: stale element detected, cache cleared", s.root)
		}
	})
	return s
}

// Control creates a top-level control for spec. Nothing is resolved yet.
func (s *Session) Control(spec *locator.Spec, opts ...ControlOption) *Control {
	return newControl(s, spec, nil, opts...)
}

// ClearCache drops every cached control. Controls resolved before the call
// re-resolve on next use.
func (s *Session) ClearCache() {
	s.cache.Clear()
	logger.Debug("session %s: cache cleared", s.root)
}

// Cache returns the session cache.
func (s *Session) Cache() *cache.Cache[*Control] { return s.cache }

// Settings returns the session settings.
func (s *Session) Settings() Settings { return s.settings }

// Engine returns the session's wait engine.
func (s *Session) Engine() *wait.Engine { return s.engine }

// Resolver returns the session's resolver.
func (s *Session) Resolver() *node.Resolver { return s.resolver }

// Root returns the document root scope.
func (s *Session) Root() *node.Root { return s.root }

// Source returns the (possibly instrumented) remote source.
func (s *Session) Source() remote.Source { return s.src }

// Label returns the session label.
func (s *Session) Label() string { return s.label }
