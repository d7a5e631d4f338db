// Package apperr holds the domain error type shared by the checkout engine and
// the HTTP boundary. Every error that reaches a client carries a Kind, which
// decides the HTTP status, and a stable Code the client can switch on.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindStock
	KindPODValidation
	KindCoupon
	KindPaymentPolicy
	KindState
	KindConflict
	KindIntegrity
	KindUnauthorized
	KindForbidden
)

const (
	CodeValidation        = "ValidationError"
	CodeInvalidID         = "InvalidID"
	CodeNotFound          = "NotFound"
	CodeVariantRequired   = "VariantRequired"
	CodeVariantNotFound   = "VariantNotFound"
	CodeVariantInactive   = "VariantInactive"
	CodeSizeRequired      = "SizeRequired"
	CodeSizeNotFound      = "SizeNotFound"
	CodeInsufficientStock = "InsufficientStock"
	CodePODFieldMissing   = "PODFieldMissing"
	CodePODFieldInvalid   = "PODFieldInvalid"
	CodeCouponInvalid     = "CouponInvalid"
	CodeCODDisabled       = "CODDisabled"
	CodeCODLimitExceeded  = "CODLimitExceeded"
	CodePaymentUnverified = "PaymentUnverified"
	CodeOrderLocked       = "OrderLocked"
	CodeInvalidTransition = "InvalidTransition"
	CodeVersionConflict   = "VersionConflict"
	CodePartialOversell   = "PartialOversell"
	CodeStaleIntent       = "StaleIntent"
	CodeInvalidSignature  = "InvalidSignature"
	CodeUnauthorized      = "Unauthorized"
	CodeForbidden         = "Forbidden"
	CodeInternal          = "InternalError"
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Newf(kind Kind, code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, code string, err error, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

func Validation(format string, args ...any) *Error {
	return Newf(KindValidation, CodeValidation, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return Newf(KindNotFound, CodeNotFound, format, args...)
}

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CodeOf returns the domain code of err, or CodeInternal for foreign errors.
func CodeOf(err error) string {
	if e, ok := As(err); ok {
		return e.Code
	}
	return CodeInternal
}

func HasCode(err error, code string) bool {
	e, ok := As(err)
	return ok && e.Code == code
}

func HTTPStatus(err error) int {
	e, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindValidation, KindStock, KindPODValidation, KindCoupon, KindPaymentPolicy, KindState:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindIntegrity:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
