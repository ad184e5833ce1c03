package inference

import (
	"errors"
	"fmt"
)

// UnavailableError marks failures where the inference endpoint could not
// serve the request (connection errors, 5xx, rate limiting). These are
// retried with backoff.
type UnavailableError struct {
	Endpoint string
	Err      error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("inference API unavailable (%s): %v", e.Endpoint, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// AgentLimitError marks an agent analysis that stopped on its iteration or
// time budget instead of producing an answer. Retried: a fresh run usually
// converges.
type AgentLimitError struct {
	Iterations int
}

func (e *AgentLimitError) Error() string {
	return fmt.Sprintf("agent analysis exceeded its limits after %d iterations", e.Iterations)
}

// IsRetryable reports whether the retry wrapper should attempt the request
// again. Everything else (auth failures, malformed prompts, caller bugs) is
// surfaced immediately.
func IsRetryable(err error) bool {
	var unavailable *UnavailableError
	if errors.As(err, &unavailable) {
		return true
	}
	var limit *AgentLimitError
	return errors.As(err, &limit)
}
