package ledger

import "errors"

// Set of errors for ledger operations. All of them are recoverable: the
// operation reports failure and no state is mutated.
var (
	ErrNotFound          = errors.New("account or customer not found")
	ErrNotOwned          = errors.New("account not owned by customer")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrLimitExceeded     = errors.New("credit limit exceeded")
	ErrSameAccount       = errors.New("source and destination are the same account")
	ErrSameOwner         = errors.New("both accounts owned by the same customer")
	ErrDuplicateIdentity = errors.New("identity already registered")
)
