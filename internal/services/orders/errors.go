package orders

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure so transports can branch on it without parsing messages.
type Kind string

const (
	KindInvalidAmount             Kind = "InvalidAmount"
	KindGatewayUnconfigured       Kind = "GatewayUnconfigured"
	KindGatewayError              Kind = "GatewayError"
	KindMalformedRequest          Kind = "MalformedRequest"
	KindPaymentVerificationFailed Kind = "PaymentVerificationFailed"
	KindPaymentIncomplete         Kind = "PaymentIncomplete"
	KindInvalidProductID          Kind = "InvalidProductId"
	KindProductNotFound           Kind = "ProductNotFound"
	KindInsufficientStock         Kind = "InsufficientStock"
	KindTotalMismatch             Kind = "TotalMismatch"
	KindOrderNotFound             Kind = "OrderNotFound"
	KindInvalidStatus             Kind = "InvalidStatus"
	KindIllegalTransition         Kind = "IllegalTransition"
	KindDuplicatePayment          Kind = "DuplicatePayment"
	KindServerError               Kind = "ServerError"
)

// Error is returned by every Service operation that fails.
type Error struct {
	Kind    Kind
	Message string
	// StatusCode is set for gateway errors, whose status is passed through as is.
	StatusCode int
	// Details holds extra fields for the response body (calculated vs provided total).
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus maps the kind onto a response status.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindInvalidAmount, KindMalformedRequest, KindPaymentVerificationFailed,
		KindInvalidProductID, KindInsufficientStock, KindTotalMismatch, KindInvalidStatus:
		return http.StatusBadRequest
	case KindProductNotFound, KindOrderNotFound:
		return http.StatusNotFound
	case KindDuplicatePayment, KindIllegalTransition, KindPaymentIncomplete:
		return http.StatusConflict
	case KindGatewayError:
		if e.StatusCode >= 400 && e.StatusCode <= 599 {
			return e.StatusCode
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

func serverError(message string, cause error) *Error {
	return newError(KindServerError, message, cause)
}

// KindOf returns the kind of err, or KindServerError for anything untyped.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindServerError
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
