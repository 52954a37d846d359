package service

import "errors"

var (
	ErrInvalidUserID      = errors.New("invalid user id")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("login or email already exists")
	ErrInvalidCredentials = errors.New("Invalid login or password")

	ErrMissingAmount    = errors.New("amount is required")
	ErrNegativeAmount   = errors.New("amount must not be negative")
	ErrRateOutOfRange   = errors.New("custom rate must be between 0 and 100")
	ErrInvalidOperation = errors.New("operation must be 0 (gross) or 1 (net to gross)")
	ErrInvalidRegime    = errors.New("new must be 0 (legacy) or 1 (current)")
	ErrNoCalculations   = errors.New("No calculations found for this user")
)
