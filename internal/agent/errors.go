package agent

import "errors"

// Sentinel errors for agent loop operations. Grounded on the
// teacher's internal/agent/errors.go sentinel set, narrowed to what
// the loop itself can raise (tool-level errors never reach here -
// spec.md §7 requires they be absorbed into the tool result string).
var (
	// ErrMaxIterations indicates the loop exceeded its iteration cap.
	ErrMaxIterations = errors.New("max iterations exceeded")

	// ErrNoProvider indicates no Provider was configured.
	ErrNoProvider = errors.New("no provider configured")
)

// ClientError represents a 4xx response from the Provider: terminal,
// never retried. The loop appends a synthetic assistant message
// carrying Err's text and returns with StatusError.
type ClientError struct {
	Err error
}

func (e *ClientError) Error() string { return e.Err.Error() }
func (e *ClientError) Unwrap() error { return e.Err }
