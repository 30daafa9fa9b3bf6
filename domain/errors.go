package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a semantic classification shared across transport layers.
type ErrorCode string

const (
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeInvalid      ErrorCode = "INVALID"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeInternal     ErrorCode = "INTERNAL"
)

// Error represents a domain-level error.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches two domain errors by code and message so wrapped sentinels compare equal.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewError builds a domain error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps an existing error with a domain classification.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain errors.
var (
	ErrAffiliateNotFound   = NewError(ErrCodeNotFound, "affiliate not found")
	ErrAffiliateExists     = NewError(ErrCodeConflict, "affiliate account already exists")
	ErrCodeTaken           = NewError(ErrCodeConflict, "affiliate code already taken")
	ErrCodeExhausted       = NewError(ErrCodeInternal, "could not allocate a unique affiliate code")
	ErrSaleNotFound        = NewError(ErrCodeNotFound, "affiliate sale not found")
	ErrDuplicateSale       = NewError(ErrCodeConflict, "affiliate sale already recorded for order")
	ErrDuplicateClick      = NewError(ErrCodeConflict, "affiliate click already recorded")
	ErrInvalidTransition   = NewError(ErrCodeConflict, "invalid sale status transition")
	ErrOrderNotFound       = NewError(ErrCodeNotFound, "order not found")
	ErrProductNotFound     = NewError(ErrCodeNotFound, "product not found")
	ErrProductOutOfStock   = NewError(ErrCodeInvalid, "product out of stock")
	ErrProductSlugTaken    = NewError(ErrCodeConflict, "product slug already taken")
	ErrIdempotencyConflict = NewError(ErrCodeConflict, "request with this idempotency key is in progress")
	ErrIdempotencyReused   = NewError(ErrCodeConflict, "idempotency key was used for a different request")
	ErrUnauthorized        = NewError(ErrCodeUnauthorized, "unauthorized")
	ErrForbidden           = NewError(ErrCodeForbidden, "forbidden")
	ErrInvalidPayload      = NewError(ErrCodeInvalid, "invalid payload")
	ErrInvalidAmount       = NewError(ErrCodeInvalid, "invalid monetary amount")
)

// IsPermanent reports whether err is a classified domain error. Retrying the
// same call cannot change its outcome, unlike infrastructure failures.
func IsPermanent(err error) bool {
	var dErr *Error
	return errors.As(err, &dErr)
}

// IsDomainError helps checking error codes.
func IsDomainError(err error, code ErrorCode) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}
