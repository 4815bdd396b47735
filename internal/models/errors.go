package models

import "errors"

// Business errors returned by the marketplace components. Callers match them
// with errors.Is; services wrap them with context about the record involved.
var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrWrongStatus        = errors.New("wrong status")
	ErrInvalidParty       = errors.New("invalid party")
	ErrPaymentMismatch    = errors.New("payment mismatch")
	ErrInsufficientAmount = errors.New("insufficient amount")
	ErrPeriodNotReached   = errors.New("auction period not reached yet")
	ErrNothingToWithdraw  = errors.New("nothing to withdraw")
	ErrAlreadyReviewed    = errors.New("already reviewed")
	ErrNotFound           = errors.New("not found")

	ErrInvalidArgument   = errors.New("invalid argument")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrOutOfStock        = errors.New("out of stock")
	ErrOracleUnavailable = errors.New("price oracle unavailable")
)
