// Package common defines shared constants and sentinel errors used across
// the leadkeeper server layers. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Purchase and ledger errors.
	ErrUnknownFieldGroup   = errors.New("unknown field group")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("amount must be positive")

	// Store errors. ErrConcurrencyConflict covers serialization failures,
	// deadlocks and lock wait timeouts; ErrStoreUnavailable covers a
	// database that cannot be reached at all.
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	ErrStoreUnavailable    = errors.New("store unavailable")
)
