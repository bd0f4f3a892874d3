package ledger

import (
	"errors"
	"fmt"
)

// Errors returned by ledger operations. Callers match them with errors.Is; the
// wrapped message carries the detail.
var (
	ErrValidation         = errors.New("validation error")
	ErrNotFound           = errors.New("not found")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrConflict           = errors.New("conflict")
	// ErrLedgerConsistency means derived state no longer matches the journal.
	// It is never expected and must be surfaced, not retried.
	ErrLedgerConsistency = errors.New("ledger consistency error")
)

func wrapf(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}
