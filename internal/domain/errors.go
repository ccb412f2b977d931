package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrAmountOutOfRange    = errors.New("amount outside configured range")
	ErrDailyLimitExceeded  = errors.New("daily withdrawal limit exceeded")
	ErrOutsideWindow       = errors.New("outside withdrawal window")
	ErrVersionConflict     = errors.New("optimistic lock conflict")
	ErrConflict            = errors.New("concurrent update retries exhausted")
	ErrAlreadyProcessed    = errors.New("idempotency key reused with a different request")
	ErrTransactionTerminal = errors.New("transaction already in terminal state")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrPositionClosed      = errors.New("investment position is not active")
	ErrInvalidRequest      = errors.New("invalid request")
)
