package apperror

import "errors"

var (
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrNotFound            = errors.New("not found")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrDuplicateDeposit    = errors.New("duplicate deposit")
	ErrExternalService     = errors.New("external service error")
	ErrSettlementFailed    = errors.New("settlement failed")
	ErrStorage             = errors.New("storage error")
	ErrUnsettledWithdrawal = errors.New("withdrawal broadcast but not debited")
)

// Validation failures. Each one also matches ErrInvalidArgument.
var (
	ErrInvalidIdentifier   = wrap("invalid identifier", ErrInvalidArgument)
	ErrInvalidAmount       = wrap("invalid amount", ErrInvalidArgument)
	ErrInvalidAddress      = wrap("invalid address", ErrInvalidArgument)
	ErrSelfTransfer        = wrap("cannot transfer to the same account", ErrInvalidArgument)
	ErrIdempotencyConflict = wrap("idempotency id already used for another request", ErrInvalidArgument)
)

type wrappedError struct {
	msg    string
	parent error
}

func wrap(msg string, parent error) error {
	return &wrappedError{msg: msg, parent: parent}
}

func (e *wrappedError) Error() string { return e.msg }
func (e *wrappedError) Unwrap() error { return e.parent }

// IsBusiness reports whether err is an expected business outcome rather than an
// infrastructure fault.
func IsBusiness(err error) bool {
	return errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrDuplicateDeposit)
}
