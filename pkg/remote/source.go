// Package remote defines the boundary between the locator engine and the
// remote automation endpoint that owns the live UI tree.
package remote

import (
	"context"

	"github.com/devicelab-dev/webfind/pkg/core"
)

// Handle is an opaque reference to a live element, as issued by the remote end.
// The zero value means "no element" and doubles as the document root scope.
type Handle string

// Root is the scope handle that searches the whole document.
const Root Handle = ""

// Source is the remote element source. Every method is one round-trip.
// Errors should be *Error so the engine can tell stale handles and transient
// element states apart from everything else.
//
//go:generate mockgen -source=source.go -destination=mocks/mock_source.go -package=mocks
type Source interface {
	// FindAll runs a locator against scope (Root for the document) and returns
	// zero or more handles in document order.
	FindAll(ctx context.Context, scope Handle, using, value string) ([]Handle, error)

	// TagName reads the element's tag name. Used as the cheap liveness probe.
	TagName(ctx context.Context, h Handle) (string, error)

	Click(ctx context.Context, h Handle) error
	Clear(ctx context.Context, h Handle) error
	SendKeys(ctx context.Context, h Handle, text string) error
	Attribute(ctx context.Context, h Handle, name string) (string, error)
	Text(ctx context.Context, h Handle) (string, error)
	Rect(ctx context.Context, h Handle) (core.Bounds, error)
	Displayed(ctx context.Context, h Handle) (bool, error)
}
