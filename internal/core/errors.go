package core

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the pipeline. Callers classify with errors.Is;
// tool callers see a one-line string prefixed by the kind.
var (
	// ErrValidation indicates bad inputs to a stage or constructor.
	ErrValidation = errors.New("validation error")

	// ErrSearchFailure indicates that every search provider failed.
	ErrSearchFailure = errors.New("search failure")

	// ErrExtractionFailure indicates that no valid URL remained or all
	// fetches failed.
	ErrExtractionFailure = errors.New("extraction failure")

	// ErrLLMFailure indicates exhausted retries or an unusable response
	// from the language model.
	ErrLLMFailure = errors.New("llm failure")

	// ErrRateLimited is an ErrLLMFailure raised when the rate limit
	// cannot be satisfied.
	ErrRateLimited = fmt.Errorf("rate limit exceeded: %w", ErrLLMFailure)

	// ErrTimeout indicates an exceeded deadline.
	ErrTimeout = errors.New("timeout")

	// ErrMemory indicates a persistence failure in the memory subsystem.
	ErrMemory = errors.New("memory error")

	// ErrConfig indicates missing or invalid credentials/configuration.
	ErrConfig = errors.New("config error")
)

// ErrorKind returns the short label used when surfacing an error to a
// tool caller.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "ValidationError"
	case errors.Is(err, ErrSearchFailure):
		return "SearchFailure"
	case errors.Is(err, ErrExtractionFailure):
		return "ExtractionFailure"
	case errors.Is(err, ErrRateLimited):
		return "RateLimitExceeded"
	case errors.Is(err, ErrLLMFailure):
		return "LLMFailure"
	case errors.Is(err, ErrTimeout):
		return "TimeoutError"
	case errors.Is(err, ErrMemory):
		return "MemoryError"
	case errors.Is(err, ErrConfig):
		return "ConfigError"
	default:
		return "Error"
	}
}
