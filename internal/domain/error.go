package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrUnauthorized       = errors.New("unauthorized")

	// Registration
	ErrAlreadyRegistered = errors.New("user already registered")
	ErrNotRegistered     = errors.New("user not registered")
	ErrInvalidUsername   = errors.New("invalid username")
	ErrInvalidEmail      = errors.New("invalid email")
	ErrEmailTaken        = errors.New("email already registered")

	// Broadcast
	ErrSessionExpired = errors.New("broadcast session expired")
	ErrEmptyMessage   = errors.New("broadcast message is empty")

	// Prices
	ErrUnsupportedCoin  = errors.New("unsupported coin")
	ErrPriceUnavailable = errors.New("price data unavailable")
)
