package node

import (
	"context"

	"github.com/devicelab-dev/webfind/pkg/core"
	"github.com/devicelab-dev/webfind/pkg/locator"
	"github.com/devicelab-dev/webfind/pkg/remote"
)

// Resolver turns one locator into freshly wrapped child nodes. It holds no
// state beyond the source it queries.
type Resolver struct {
	src remote.Source
}

// NewResolver creates a resolver over src.
func NewResolver(src remote.Source) *Resolver {
	return &Resolver{src: src}
}

// Source returns the underlying remote source.
func (r *Resolver) Source() remote.Source { return r.src }

// FindAll issues exactly one remote find against scope and wraps every
// returned handle, in remote order, as a bound Node carrying spec.Copy(i).
// Zero matches is an empty slice, not an error.
func (r *Resolver) FindAll(ctx context.Context, scope Scope, spec *locator.Spec) ([]*Node, error) {
	if scope != nil && scope.Handle() == "" {
		if _, isNode := scope.(*Node); isNode {
			return nil, core.ErrNotBound.
				WithMessage("scope element is not bound").
				WithDetails(Details(spec, scope))
		}
	}

	using, value := spec.Strategy()
	handles, err := r.src.FindAll(ctx, HandleOf(scope), using, value)
	if err != nil {
		return nil, core.ErrRemoteFind.
			WithDetails(Details(spec, scope)).
			WithCause(err)
	}

	nodes := make([]*Node, 0, len(handles))
	for i, h := range handles {
		n := New(r.src, spec.Copy(i), scope)
		if err := n.Bind(h); err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}
