package debate

import (
	"context"
	"errors"

	"github.com/jobu711/optionalpha/internal/services/llm"
)

// FailureKind is the outcome class of a failed debate step.
type FailureKind int

const (
	// FailureUnknown errors propagate to the caller.
	FailureUnknown FailureKind = iota
	FailureTimeout
	FailureMalformedOutput
	FailureValidation
	FailureUnreachable
)

func (k FailureKind) String() string {
	switch k {
	case FailureTimeout:
		return "timeout"
	case FailureMalformedOutput:
		return "malformed_output"
	case FailureValidation:
		return "validation"
	case FailureUnreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

// TriggersFallback reports whether the failure is answered with a fallback thesis.
func (k FailureKind) TriggersFallback() bool {
	return k != FailureUnknown
}

// Classify maps an error from the availability check or an agent to its FailureKind.
// Caller cancellation is not a recognised failure.
func Classify(err error) FailureKind {
	switch {
	case err == nil:
		return FailureUnknown
	case errors.Is(err, context.DeadlineExceeded):
		return FailureTimeout
	case errors.Is(err, ErrMalformedOutput):
		return FailureMalformedOutput
	case errors.Is(err, ErrValidation):
		return FailureValidation
	case errors.Is(err, llm.ErrUnreachable), errors.Is(err, llm.ErrModelNotFound), errors.Is(err, llm.ErrBackend),
		llm.IsConnectError(err):
		return FailureUnreachable
	default:
		return FailureUnknown
	}
}
