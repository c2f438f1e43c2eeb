package ledger

import (
	"errors"
	"fmt"
)

// ErrNotReady indicates the gateway could not establish its RPC connection.
var ErrNotReady = errors.New("ledger: gateway not ready")

// TransientError wraps an RPC failure that persisted through the retry budget.
// Callers may retry the whole operation at a higher level.
type TransientError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("ledger: %s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a retry-exhausted ledger failure.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}
