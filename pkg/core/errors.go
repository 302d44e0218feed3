package core

import (
	"fmt"
	"sort"
	"strings"
)

// Detail keys shared by every engine error.
const (
	DetailLocator      = "locator"
	DetailResolved     = "resolvedLocator"
	DetailParent       = "parent"
	DetailTimeout      = "timeout"
	DetailPollInterval = "pollInterval"
	DetailCount        = "count"
	DetailText         = "text"
	DetailState        = "requiredState"
	DetailElapsed      = "elapsed"
	DetailAttempts     = "attempts"
)

// ExecutionError represents a structured error with category and details
type ExecutionError struct {
	Category ErrorCategory
	Code     string                 // Machine-readable code: no_elements_found, wait_timeout, etc.
	Message  string                 // Human-readable message
	Details  map[string]interface{} // Additional context
	Cause    error                  // Underlying error
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	msg := e.Message
	if loc := e.describeLocator(); loc != "" {
		msg = fmt.Sprintf("%s [%s]", msg, loc)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *ExecutionError) describeLocator() string {
	if len(e.Details) == 0 {
		return ""
	}
	var parts []string
	for _, key := range []string{DetailLocator, DetailResolved, DetailParent} {
		if v, ok := e.Details[key]; ok && v != "" {
			parts = append(parts, fmt.Sprintf("%s=%v", key, v))
		}
	}
	return strings.Join(parts, " ")
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an ExecutionError with the same code.
// This lets errors.Is match a decorated copy against the predefined value.
func (e *ExecutionError) Is(target error) bool {
	t, ok := target.(*ExecutionError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithCause returns a copy of the error with the given cause
func (e *ExecutionError) WithCause(cause error) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  e.Details,
		Cause:    cause,
	}
}

// WithMessage returns a copy of the error with a custom message
func (e *ExecutionError) WithMessage(msg string) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  msg,
		Details:  e.Details,
		Cause:    e.Cause,
	}
}

// WithDetails returns a copy of the error with additional details
func (e *ExecutionError) WithDetails(details map[string]interface{}) *ExecutionError {
	merged := make(map[string]interface{})
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  merged,
		Cause:    e.Cause,
	}
}

// Detail returns a single detail value, or nil.
func (e *ExecutionError) Detail(key string) interface{} {
	if e.Details == nil {
		return nil
	}
	return e.Details[key]
}

// DetailKeys returns the sorted detail keys (for stable output).
func (e *ExecutionError) DetailKeys() []string {
	keys := make([]string, 0, len(e.Details))
	for k := range e.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Predefined errors
var (
	// Usage errors
	ErrNotBound = &ExecutionError{
		Category: ErrCategoryUsage,
		Code:     "not_bound",
		Message:  "control is not bound to an element",
	}
	ErrLocatorAlreadyBound = &ExecutionError{
		Category: ErrCategoryUsage,
		Code:     "locator_already_bound",
		Message:  "locator cannot change after it has been bound to an element",
	}

	// Lookup errors
	ErrNoElementsFound = &ExecutionError{
		Category: ErrCategoryLookup,
		Code:     "no_elements_found",
		Message:  "no elements found",
	}
	ErrMultipleElementsFound = &ExecutionError{
		Category: ErrCategoryLookup,
		Code:     "multiple_elements_found",
		Message:  "multiple elements found",
	}

	// Staleness
	ErrStaleElement = &ExecutionError{
		Category: ErrCategoryStale,
		Code:     "stale_element",
		Message:  "element is no longer attached to the page",
	}

	// Remote errors
	ErrRemoteFind = &ExecutionError{
		Category: ErrCategoryRemote,
		Code:     "remote_find_failed",
		Message:  "remote find failed",
	}

	// Interaction errors
	ErrUnableToSetOrGetText = &ExecutionError{
		Category: ErrCategoryInteraction,
		Code:     "unable_to_set_or_get_text",
		Message:  "unable to set or get text",
	}
	ErrInteractionFailed = &ExecutionError{
		Category: ErrCategoryInteraction,
		Code:     "interaction_failed",
		Message:  "element interaction failed",
	}

	// Timeout errors
	ErrWaitTimeout = &ExecutionError{
		Category: ErrCategoryTimeout,
		Code:     "wait_timeout",
		Message:  "wait condition timed out",
	}

	// Internal errors
	ErrInvariantViolation = &ExecutionError{
		Category: ErrCategoryInternal,
		Code:     "invariant_violation",
		Message:  "framework invariant violated",
	}

	// Config errors
	ErrInvalidConfig = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "invalid_config",
		Message:  "invalid configuration",
	}
	ErrMissingRequired = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "missing_required",
		Message:  "missing required field",
	}
)

// NewExecutionError creates a new ExecutionError with the given parameters
func NewExecutionError(category ErrorCategory, code, message string) *ExecutionError {
	return &ExecutionError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}
