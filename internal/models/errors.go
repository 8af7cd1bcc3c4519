package models

import (
	"errors"
	"fmt"
)

// Typed failures surfaced by the wallet, purchase and progress services.
// Handlers map these onto HTTP status codes; everything else is treated as
// a storage failure.
var (
	ErrContentNotFound = errors.New("content item not found")
	ErrVideoNotFound   = errors.New("video not found")
	ErrNotPurchasable  = errors.New("content item is free and cannot be purchased")
	ErrUnauthorized    = errors.New("account is not allowed to perform this operation")
	ErrAlreadyOwned    = errors.New("content item already owned")
	ErrInvalidAmount   = errors.New("amount must be positive")
	ErrEmailTaken      = errors.New("account with this email already exists")
)

// InsufficientFundsError reports a debit that would overdraw the wallet.
type InsufficientFundsError struct {
	Required  int64
	Available int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: required %d, available %d", e.Required, e.Available)
}
