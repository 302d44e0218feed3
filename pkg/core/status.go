package core

// ResolveState represents where a control is in its resolution lifecycle
type ResolveState int

const (
	StateUnresolved ResolveState = iota // Never resolved, no element handle
	StateResolving                      // Resolution in progress
	StateResolved                       // Bound to a live element handle
	StateStale                          // Handle detected as stale, awaiting re-resolution
)

// String returns the string representation of ResolveState
func (s ResolveState) String() string {
	switch s {
	case StateUnresolved:
		return "unresolved"
	case StateResolving:
		return "resolving"
	case StateResolved:
		return "resolved"
	case StateStale:
		return "stale"
	default:
		return "unknown"
	}
}

// IsBound returns true if the state implies a usable element handle
func (s ResolveState) IsBound() bool {
	return s == StateResolved
}

// ErrorCategory classifies the type of error for better debugging and reporting
type ErrorCategory int

const (
	ErrCategoryNone        ErrorCategory = iota // No error
	ErrCategoryUsage                            // Programming error: unbound control, mutated locator
	ErrCategoryLookup                           // No elements found, multiple elements found
	ErrCategoryStale                            // Element handle is stale and was not refreshed
	ErrCategoryTimeout                          // Wait condition timed out
	ErrCategoryRemote                           // Remote driver/transport failure
	ErrCategoryInteraction                      // Text entry or other element action failed
	ErrCategoryInternal                         // Framework invariant violated
	ErrCategoryConfig                           // Invalid configuration, missing required field
)

// String returns the string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryUsage:
		return "usage"
	case ErrCategoryLookup:
		return "lookup"
	case ErrCategoryStale:
		return "stale"
	case ErrCategoryTimeout:
		return "timeout"
	case ErrCategoryRemote:
		return "remote"
	case ErrCategoryInteraction:
		return "interaction"
	case ErrCategoryInternal:
		return "internal"
	case ErrCategoryConfig:
		return "config"
	default:
		return "unknown"
	}
}
