// Package node wraps remote element handles in a parent-aware tree.
package node

import (
	"context"
	"strings"
	"sync"

	"github.com/devicelab-dev/webfind/pkg/core"
	"github.com/devicelab-dev/webfind/pkg/locator"
	"github.com/devicelab-dev/webfind/pkg/remote"
)

// Scope is what a locator is evaluated against: the document Root or a
// bound Node. A nil Scope means the document root.
type Scope interface {
	scope()

	// Handle returns the remote scope handle (remote.Root for the document).
	Handle() remote.Handle

	// Path returns the friendly path of the scope, empty for the document.
	Path() string
}

// Root is the document root of one session.
type Root struct {
	Label string
}

// NewRoot creates a root scope. The label is only used for display.
func NewRoot(label string) *Root {
	return &Root{Label: label}
}

func (*Root) scope() {}

// Handle implements Scope.
func (*Root) Handle() remote.Handle { return remote.Root }

// Path implements Scope.
func (*Root) Path() string { return "" }

func (r *Root) String() string {
	if r.Label == "" {
		return "document"
	}
	return r.Label
}

// HandleOf returns the remote handle for a scope, treating nil as the root.
func HandleOf(s Scope) remote.Handle {
	if s == nil {
		return remote.Root
	}
	return s.Handle()
}

// PathOf returns the friendly path for a scope, treating nil as the root.
func PathOf(s Scope) string {
	if s == nil {
		return ""
	}
	return s.Path()
}

// Node owns at most one remote handle. The parent is fixed at construction,
// so the parent chain cannot form a cycle.
type Node struct {
	mu     sync.RWMutex
	handle remote.Handle
	spec   *locator.Spec
	parent Scope
	src    remote.Source
}

// New creates an unbound node.
func New(src remote.Source, spec *locator.Spec, parent Scope) *Node {
	return &Node{src: src, spec: spec, parent: parent}
}

func (*Node) scope() {}

// Handle implements Scope. Empty when unbound.
func (n *Node) Handle() remote.Handle {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.handle
}

// Spec returns the node's locator.
func (n *Node) Spec() *locator.Spec { return n.spec }

// Parent returns the scope the node was found in.
func (n *Node) Parent() Scope { return n.parent }

// Source returns the remote source the handle belongs to.
func (n *Node) Source() remote.Source { return n.src }

// Bound reports whether the node holds a handle.
func (n *Node) Bound() bool {
	return n.Handle() != ""
}

// Bind attaches a handle and freezes the locator. An empty handle is an
// invariant violation.
func (n *Node) Bind(h remote.Handle) error {
	if h == "" {
		return core.ErrInvariantViolation.
			WithMessage("remote returned an empty element handle").
			WithDetails(n.Details())
	}
	n.mu.Lock()
	n.handle = h
	n.mu.Unlock()
	n.spec.MarkBound()
	return nil
}

// Unbind drops the handle. The locator stays frozen.
func (n *Node) Unbind() {
	n.mu.Lock()
	n.handle = ""
	n.mu.Unlock()
}

// Probe reads the tag name as a cheap liveness check. It returns the remote
// error unchanged so callers can classify it.
func (n *Node) Probe(ctx context.Context) error {
	h := n.Handle()
	if h == "" {
		return core.ErrNotBound.WithDetails(n.Details())
	}
	_, err := n.src.TagName(ctx, h)
	return err
}

// IsStale reports whether the handle no longer refers to a live element.
// Unbound nodes are stale. Probe failures that are not stale-class (a
// transport hiccup, say) do not count as staleness.
func (n *Node) IsStale(ctx context.Context) bool {
	if !n.Bound() {
		return true
	}
	return remote.IsStale(n.Probe(ctx))
}

// Rect reads the element's bounding box.
func (n *Node) Rect(ctx context.Context) (core.Bounds, error) {
	h := n.Handle()
	if h == "" {
		return core.Bounds{}, core.ErrNotBound.WithDetails(n.Details())
	}
	return n.src.Rect(ctx, h)
}

// Displayed reads the element's visibility.
func (n *Node) Displayed(ctx context.Context) (bool, error) {
	h := n.Handle()
	if h == "" {
		return false, core.ErrNotBound.WithDetails(n.Details())
	}
	return n.src.Displayed(ctx, h)
}

// Path implements Scope: ancestor names joined with " > ".
func (n *Node) Path() string {
	if parent := PathOf(n.parent); parent != "" {
		return parent + " > " + n.spec.Name()
	}
	return n.spec.Name()
}

// Details returns the diagnostic details every engine error carries.
func (n *Node) Details() map[string]interface{} {
	return Details(n.spec, n.parent)
}

// Details builds error details for a locator evaluated in scope.
func Details(spec *locator.Spec, scope Scope) map[string]interface{} {
	d := map[string]interface{}{
		core.DetailLocator:  spec.Name(),
		core.DetailResolved: spec.Resolved(),
	}
	if p := PathOf(scope); p != "" {
		d[core.DetailParent] = p
	}
	return d
}

// String returns the friendly path with the handle, for logs.
func (n *Node) String() string {
	var b strings.Builder
	b.WriteString(n.Path())
	if h := n.Handle(); h != "" {
		b.WriteString(" #")
		b.WriteString(string(h))
	}
	return b.String()
}
