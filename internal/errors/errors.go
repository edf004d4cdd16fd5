package errors

import (
	"errors"
)

// Sentinel errors for different categories
var (
	// ErrTransport - the model stream could not be opened or was interrupted; never retried automatically
	ErrTransport = errors.New("transport failure")

	// ErrConnection - tool provider handshake or catalogue fetch failed; fatal to the provider session
	ErrConnection = errors.New("connection failure")

	// ErrInvocation - a tool call failed or was rejected by the provider
	ErrInvocation = errors.New("invocation failure")

	// ErrMalformedFragment - a stream fragment could not be applied (e.g. out-of-range tool call index)
	ErrMalformedFragment = errors.New("malformed fragment")

	// ErrInvalidState - operation not valid in the current session state
	ErrInvalidState = errors.New("invalid state")

	// ErrUnknownToolCall - tool result does not correlate to an outstanding tool call
	ErrUnknownToolCall = errors.New("unknown tool call")

	// ErrMaxTurns - turn budget exhausted while the model still requested tools
	ErrMaxTurns = errors.New("max turns exceeded")

	// ErrInvalidInput - invalid input (show validation error in interactive mode)
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound - resource not found
	ErrNotFound = errors.New("not found")

	// ErrTransient - transient error (show retry hint in interactive mode)
	ErrTransient = errors.New("transient error")

	// ErrInternal - internal error (generic message + trace id in interactive mode)
	ErrInternal = errors.New("internal error")
)
