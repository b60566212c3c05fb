package domain

import (
	"errors"
	"fmt"
	"time"
)

// ToolErrorKind classifies a normalized tool failure.
type ToolErrorKind string

const (
	ToolErrorAuth        ToolErrorKind = "auth"
	ToolErrorNotFound    ToolErrorKind = "not_found"
	ToolErrorRateLimited ToolErrorKind = "rate_limited"
	ToolErrorTransient   ToolErrorKind = "transient"
	ToolErrorInvalidArgs ToolErrorKind = "invalid_args"
)

// ToolError is the normalized failure of a tool invocation. Only the
// transient kind is eligible for retry.
type ToolError struct {
	Kind       ToolErrorKind `json:"kind"`
	Message    string        `json:"message"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool error (%s): %s", e.Kind, e.Message)
}

// Retryable reports whether the registry may retry the call.
func (e *ToolError) Retryable() bool {
	return e.Kind == ToolErrorTransient
}

// MalformedInputError reports unparseable input handed to the diff
// engine. Never retried.
type MalformedInputError struct {
	Side string // "old" or "new"
	Err  error
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed %s document: %v", e.Side, e.Err)
}

func (e *MalformedInputError) Unwrap() error { return e.Err }

// InvalidArgumentsError reports a tool call whose arguments failed
// schema validation. Raised before any network I/O; never retried.
type InvalidArgumentsError struct {
	Tool   string
	Field  string
	Reason string
}

func (e *InvalidArgumentsError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: field %q %s", e.Tool, e.Field, e.Reason)
}

// InferenceEndpointError is a failure of the LLM endpoint itself.
// Turn-fatal: surfaced to the caller as the turn's outcome.
type InferenceEndpointError struct {
	Err error
}

func (e *InferenceEndpointError) Error() string {
	return fmt.Sprintf("inference endpoint: %v", e.Err)
}

func (e *InferenceEndpointError) Unwrap() error { return e.Err }

// Sentinel conditions of the agent loop and session manager.
var (
	// ErrTurnBudgetExceeded ends the turn, not the session.
	ErrTurnBudgetExceeded = errors.New("turn budget exceeded")

	// ErrConcurrentTurn rejects a message while a turn is in flight.
	ErrConcurrentTurn = errors.New("turn in progress")

	// ErrUnknownTool rejects a call outside the closed tool set.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrSessionNotFound reports a missing conversation session.
	ErrSessionNotFound = errors.New("session not found")
)
