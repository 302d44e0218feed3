package remote

import (
	"errors"
	"fmt"
)

// ErrorClass groups remote failures by what the engine should do about them.
type ErrorClass int

const (
	ClassUnknown             ErrorClass = iota // Anything not recognized below
	ClassNoSuchElement                         // Element (or scope) does not exist
	ClassStaleElement                          // Handle no longer attached to the document
	ClassInvalidElementState                   // Element rejects the action right now (re-rendering)
	ClassNotInteractable                       // Element exists but cannot receive input
	ClassTransport                             // Network or protocol failure talking to the remote end
)

// String returns the string representation of ErrorClass
func (c ErrorClass) String() string {
	switch c {
	case ClassNoSuchElement:
		return "no_such_element"
	case ClassStaleElement:
		return "stale_element"
	case ClassInvalidElementState:
		return "invalid_element_state"
	case ClassNotInteractable:
		return "not_interactable"
	case ClassTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// W3C WebDriver error codes the engine distinguishes.
const (
	CodeNoSuchElement          = "no such element"
	CodeStaleElementReference  = "stale element reference"
	CodeInvalidElementState    = "invalid element state"
	CodeElementNotInteractable = "element not interactable"
	CodeDetachedShadowRoot     = "detached shadow root"
)

// ClassFromCode maps a W3C error code to its class. Unknown codes map to
// ClassUnknown; the message text is never consulted.
func ClassFromCode(code string) ErrorClass {
	switch code {
	case CodeNoSuchElement:
		return ClassNoSuchElement
	case CodeStaleElementReference, CodeDetachedShadowRoot:
		return ClassStaleElement
	case CodeInvalidElementState:
		return ClassInvalidElementState
	case CodeElementNotInteractable:
		return ClassNotInteractable
	default:
		return ClassUnknown
	}
}

// Error is a classified failure reported by a Source.
type Error struct {
	Class   ErrorClass
	Code    string // W3C error code, when the remote end supplied one
	Message string // Diagnostic text from the remote end
	Cause   error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError builds an Error from a W3C code and message.
func NewError(code, message string) *Error {
	return &Error{Class: ClassFromCode(code), Code: code, Message: message}
}

// TransportError wraps a network/protocol failure.
func TransportError(cause error) *Error {
	return &Error{Class: ClassTransport, Message: "remote call failed", Cause: cause}
}

// ClassOf returns the class of the first *Error in err's chain.
func ClassOf(err error) ErrorClass {
	var re *Error
	if errors.As(err, &re) {
		return re.Class
	}
	return ClassUnknown
}

// IsStale reports whether err means the handle no longer refers to a live element.
func IsStale(err error) bool {
	switch ClassOf(err) {
	case ClassStaleElement, ClassNoSuchElement:
		return true
	}
	return false
}

// IsTransientState reports whether err is an "invalid element state" failure,
// which UI frameworks raise for a few milliseconds while re-rendering.
func IsTransientState(err error) bool {
	return ClassOf(err) == ClassInvalidElementState
}
