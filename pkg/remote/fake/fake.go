// Package fake provides an in-memory remote.Source for testing without a browser.
//
// Queries are not evaluated: tests register which elements a (scope, using,
// value) query returns. Handles are issued per element and can be made stale
// to simulate re-renders and navigation.
package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/devicelab-dev/webfind/pkg/core"
	"github.com/devicelab-dev/webfind/pkg/remote"
)

// Element is a node in the fake document.
type Element struct {
	Tag    string
	Text   string
	Attrs  map[string]string
	Bounds core.Bounds
	Hidden bool

	// Motion is consumed one entry per Rect call; the last entry sticks.
	Motion []core.Bounds
}

// NewElement creates an element with the given tag and text.
func NewElement(tag, text string) *Element {
	return &Element{
		Tag:    tag,
		Text:   text,
		Attrs:  make(map[string]string),
		Bounds: core.Bounds{X: 0, Y: 0, Width: 100, Height: 20},
	}
}

// QueryFunc computes matches dynamically. call is the 1-based number of times
// this query has been executed.
type QueryFunc func(scope *Element, call int) []*Element

// FindCall records one FindAll invocation.
type FindCall struct {
	Scope remote.Handle
	Using string
	Value string
}

type queryKey struct {
	scope *Element
	using string
	value string
}

type handleEntry struct {
	el    *Element
	stale bool
}

// Source is an in-memory remote.Source.
type Source struct {
	mu sync.Mutex

	handles map[remote.Handle]*handleEntry
	current map[*Element]remote.Handle
	queries map[queryKey]QueryFunc
	runs    map[queryKey]int
	nextID  int

	// Fallback answers queries that were not registered. Nil means no matches.
	Fallback func(scope *Element, using, value string) []*Element

	calls    map[string]int
	finds    []FindCall
	failures map[string][]error
	keys     map[remote.Handle][]string
}

// New creates an empty fake source.
func New() *Source {
	return &Source{
		handles:  make(map[remote.Handle]*handleEntry),
		current:  make(map[*Element]remote.Handle),
		queries:  make(map[queryKey]QueryFunc),
		runs:     make(map[queryKey]int),
		calls:    make(map[string]int),
		failures: make(map[string][]error),
		keys:     make(map[remote.Handle][]string),
	}
}

// NewPermissive creates a source where every unregistered query matches one
// element, created on first use and reused for identical queries.
func NewPermissive() *Source {
	s := New()
	synthesized := make(map[queryKey]*Element)
	s.Fallback = func(scope *Element, using, value string) []*Element {
		k := queryKey{scope: scope, using: using, value: value}
		el, ok := synthesized[k]
		if !ok {
			el = NewElement("div", value)
			synthesized[k] = el
		}
		return []*Element{el}
	}
	return s
}

// On registers the elements a query returns. scope nil means the document root.
func (s *Source) On(scope *Element, using, value string, matches ...*Element) {
	s.OnFunc(scope, using, value, func(*Element, int) []*Element { return matches })
}

// OnFunc registers a dynamic query.
func (s *Source) OnFunc(scope *Element, using, value string, fn QueryFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries[queryKey{scope: scope, using: using, value: value}] = fn
}

// FailNext queues errors returned by the next calls to method, in order.
func (s *Source) FailNext(method string, errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = append(s.failures[method], errs...)
}

// Rerender makes the current handles of the given elements stale. The
// elements stay in the document and receive new handles on the next find.
func (s *Source) Rerender(els ...*Element) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, el := range els {
		if h, ok := s.current[el]; ok {
			s.handles[h].stale = true
			delete(s.current, el)
		}
	}
}

// Navigate makes every issued handle stale.
func (s *Source) Navigate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range s.handles {
		entry.stale = true
	}
	s.current = make(map[*Element]remote.Handle)
}

// HandleOf returns the live handle of el, if one has been issued.
func (s *Source) HandleOf(el *Element) (remote.Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.current[el]
	return h, ok
}

// Calls returns how many times method was invoked.
func (s *Source) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// Finds returns a copy of the recorded FindAll calls.
func (s *Source) Finds() []FindCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]FindCall, len(s.finds))
	copy(out, s.finds)
	return out
}

// Typed returns the text sent to h via SendKeys, one entry per call.
func (s *Source) Typed(h remote.Handle) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.keys[h]...)
}

// ResetCalls clears call counters and recorded finds.
func (s *Source) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = make(map[string]int)
	s.finds = nil
}

// begin records the call and pops a queued failure. Caller holds s.mu.
func (s *Source) begin(method string) error {
	s.calls[method]++
	if queue := s.failures[method]; len(queue) > 0 {
		s.failures[method] = queue[1:]
		return queue[0]
	}
	return nil
}

// lookup resolves a handle to its element. Caller holds s.mu.
func (s *Source) lookup(h remote.Handle) (*Element, error) {
	entry, ok := s.handles[h]
	if !ok {
		return nil, remote.NewError(remote.CodeNoSuchElement, fmt.Sprintf("unknown element %q", h))
	}
	if entry.stale {
		return nil, remote.NewError(remote.CodeStaleElementReference, fmt.Sprintf("element %q is not attached to the page document", h))
	}
	return entry.el, nil
}

// handleFor returns el's live handle, issuing one if needed. Caller holds s.mu.
func (s *Source) handleFor(el *Element) remote.Handle {
	if h, ok := s.current[el]; ok {
		return h
	}
	s.nextID++
	h := remote.Handle(fmt.Sprintf("fake-%d", s.nextID))
	s.handles[h] = &handleEntry{el: el}
	s.current[el] = h
	return h
}

// FindAll implements remote.Source.
func (s *Source) FindAll(_ context.Context, scope remote.Handle, using, value string) ([]remote.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.finds = append(s.finds, FindCall{Scope: scope, Using: using, Value: value})
	if err := s.begin("FindAll"); err != nil {
		return nil, err
	}

	var scopeEl *Element
	if scope != remote.Root {
		el, err := s.lookup(scope)
		if err != nil {
			return nil, err
		}
		scopeEl = el
	}

	k := queryKey{scope: scopeEl, using: using, value: value}
	var matches []*Element
	if fn, ok := s.queries[k]; ok {
		s.runs[k]++
		matches = fn(scopeEl, s.runs[k])
	} else if s.Fallback != nil {
		matches = s.Fallback(scopeEl, using, value)
	}

	handles := make([]remote.Handle, 0, len(matches))
	for _, el := range matches {
		handles = append(handles, s.handleFor(el))
	}
	return handles, nil
}

// TagName implements remote.Source.
func (s *Source) TagName(_ context.Context, h remote.Handle) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("TagName"); err != nil {
		return "", err
	}
	el, err := s.lookup(h)
	if err != nil {
		return "", err
	}
	return el.Tag, nil
}

// Click implements remote.Source.
func (s *Source) Click(_ context.Context, h remote.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("Click"); err != nil {
		return err
	}
	_, err := s.lookup(h)
	return err
}

// Clear implements remote.Source.
func (s *Source) Clear(_ context.Context, h remote.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("Clear"); err != nil {
		return err
	}
	el, err := s.lookup(h)
	if err != nil {
		return err
	}
	el.Attrs["value"] = ""
	return nil
}

// SendKeys implements remote.Source.
func (s *Source) SendKeys(_ context.Context, h remote.Handle, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("SendKeys"); err != nil {
		return err
	}
	el, err := s.lookup(h)
	if err != nil {
		return err
	}
	el.Attrs["value"] += text
	s.keys[h] = append(s.keys[h], text)
	return nil
}

// Attribute implements remote.Source.
func (s *Source) Attribute(_ context.Context, h remote.Handle, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("Attribute"); err != nil {
		return "", err
	}
	el, err := s.lookup(h)
	if err != nil {
		return "", err
	}
	return el.Attrs[name], nil
}

// Text implements remote.Source.
func (s *Source) Text(_ context.Context, h remote.Handle) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("Text"); err != nil {
		return "", err
	}
	el, err := s.lookup(h)
	if err != nil {
		return "", err
	}
	return el.Text, nil
}

// Rect implements remote.Source.
func (s *Source) Rect(_ context.Context, h remote.Handle) (core.Bounds, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("Rect"); err != nil {
		return core.Bounds{}, err
	}
	el, err := s.lookup(h)
	if err != nil {
		return core.Bounds{}, err
	}
	if len(el.Motion) > 0 {
		el.Bounds = el.Motion[0]
		if len(el.Motion) > 1 {
			el.Motion = el.Motion[1:]
		}
	}
	return el.Bounds, nil
}

// Displayed implements remote.Source.
func (s *Source) Displayed(_ context.Context, h remote.Handle) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("Displayed"); err != nil {
		return false, err
	}
	el, err := s.lookup(h)
	if err != nil {
		return false, err
	}
	return !el.Hidden, nil
}

var _ remote.Source = (*Source)(nil)
