package metrics

import (
	"context"
	"time"

	"github.com/devicelab-dev/webfind/pkg/core"
	"github.com/devicelab-dev/webfind/pkg/remote"
)

// Instrument wraps src so every call is counted and timed. A nil receiver
// returns src unchanged.
func (m *Metrics) Instrument(src remote.Source) remote.Source {
	if m == nil {
		return src
	}
	return &instrumented{next: src, m: m}
}

type instrumented struct {
	next remote.Source
	m    *Metrics
}

func (s *instrumented) observe(op string, start time.Time, err error) {
	class := "ok"
	if err != nil {
		class = remote.ClassOf(err).String()
	}
	s.m.RemoteCalls.WithLabelValues(op, class).Inc()
	s.m.RemoteLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (s *instrumented) FindAll(ctx context.Context, scope remote.Handle, using, value string) ([]remote.Handle, error) {
	start := time.Now()
	handles, err := s.next.FindAll(ctx, scope, using, value)
	s.observe("find", start, err)
	return handles, err
}

func (s *instrumented) TagName(ctx context.Context, h remote.Handle) (string, error) {
	start := time.Now()
	tag, err := s.next.TagName(ctx, h)
	s.observe("tag_name", start, err)
	return tag, err
}

func (s *instrumented) Click(ctx context.Context, h remote.Handle) error {
	start := time.Now()
	err := s.next.Click(ctx, h)
	s.observe("click", start, err)
	return err
}

func (s *instrumented) Clear(ctx context.Context, h remote.Handle) error {
	start := time.Now()
	err := s.next.Clear(ctx, h)
	s.observe("clear", start, err)
	return err
}

func (s *instrumented) SendKeys(ctx context.Context, h remote.Handle, text string) error {
	start := time.Now()
	err := s.next.SendKeys(ctx, h, text)
	s.observe("send_keys", start, err)
	return err
}

func (s *instrumented) Attribute(ctx context.Context, h remote.Handle, name string) (string, error) {
	start := time.Now()
	v, err := s.next.Attribute(ctx, h, name)
	s.observe("attribute", start, err)
	return v, err
}

func (s *instrumented) Text(ctx context.Context, h remote.Handle) (string, error) {
	start := time.Now()
	v, err := s.next.Text(ctx, h)
	s.observe("text", start, err)
	return v, err
}

func (s *instrumented) Rect(ctx context.Context, h remote.Handle) (core.Bounds, error) {
	start := time.Now()
	b, err := s.next.Rect(ctx, h)
	s.observe("rect", start, err)
	return b, err
}

func (s *instrumented) Displayed(ctx context.Context, h remote.Handle) (bool, error) {
	start := time.Now()
	v, err := s.next.Displayed(ctx, h)
	s.observe("displayed", start, err)
	return v, err
}
