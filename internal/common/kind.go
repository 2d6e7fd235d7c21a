package common

import "errors"

// Error kinds as reported to API clients.
const (
	KindUnknownFieldGroup   = "unknown_field_group"
	KindInsufficientBalance = "insufficient_balance"
	KindNotFound            = "not_found"
	KindConcurrencyConflict = "concurrency_conflict"
	KindStoreUnavailable    = "store_unavailable"
	KindUnauthorized        = "unauthorized"
	KindInvalidRequest      = "invalid_request"
	KindInternal            = "internal"
)

// ErrorKind classifies err for transports. Errors outside the taxonomy are
// KindInternal.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrUnknownFieldGroup):
		return KindUnknownFieldGroup
	case errors.Is(err, ErrInsufficientBalance):
		return KindInsufficientBalance
	case errors.Is(err, ErrorNotFound):
		return KindNotFound
	case errors.Is(err, ErrConcurrencyConflict):
		return KindConcurrencyConflict
	case errors.Is(err, ErrStoreUnavailable):
		return KindStoreUnavailable
	case errors.Is(err, ErrorUnauthorized), errors.Is(err, ErrInvalidToken), errors.Is(err, ErrTokenExpired):
		return KindUnauthorized
	case errors.Is(err, ErrInvalidAmount):
		return KindInvalidRequest
	default:
		return KindInternal
	}
}
