package apperrors

import (
	"errors"
	"net/http"
)

// Error kinds shared across the registry, verification gate, ledger and
// marketplace. Services wrap these with fmt.Errorf("%w: ...") so callers can
// match with errors.Is while keeping context in the message.
var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotAuthorized         = errors.New("not authorized")
	ErrAlreadyRegistered     = errors.New("already registered")
	ErrAlreadyDecided        = errors.New("claim already decided")
	ErrNotConsumable         = errors.New("claim not consumable")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrInsufficientPayment   = errors.New("insufficient payment")
	ErrInsufficientFee       = errors.New("insufficient submission fee")
	ErrInactiveListing       = errors.New("listing is not active")
	ErrUnknownListing        = errors.New("unknown listing")
	ErrUnknownClaim          = errors.New("unknown claim")
	ErrUnknownProducer       = errors.New("unknown producer")
	ErrAmountExceedsListing  = errors.New("amount exceeds listing")
	ErrMonthlyLimitExceeded  = errors.New("monthly production limit exceeded")
	ErrEmptyReason           = errors.New("retirement reason is required")
	ErrFutureTimestamp       = errors.New("production timestamp is in the future")
	ErrPaused                = errors.New("ledger is paused")
	ErrNotSeller             = errors.New("caller is not the listing seller")
	ErrTransferFailed        = errors.New("credit transfer failed")
)

// HTTPStatus maps an error kind to the HTTP status a handler should return.
// Unknown errors map to 500.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrEmptyReason),
		errors.Is(err, ErrFutureTimestamp):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotAuthorized),
		errors.Is(err, ErrNotSeller):
		return http.StatusForbidden
	case errors.Is(err, ErrUnknownClaim),
		errors.Is(err, ErrUnknownListing),
		errors.Is(err, ErrUnknownProducer):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyRegistered),
		errors.Is(err, ErrAlreadyDecided),
		errors.Is(err, ErrNotConsumable),
		errors.Is(err, ErrInactiveListing),
		errors.Is(err, ErrAmountExceedsListing),
		errors.Is(err, ErrMonthlyLimitExceeded),
		errors.Is(err, ErrPaused):
		return http.StatusConflict
	case errors.Is(err, ErrInsufficientBalance),
		errors.Is(err, ErrInsufficientAllowance),
		errors.Is(err, ErrInsufficientPayment),
		errors.Is(err, ErrInsufficientFee),
		errors.Is(err, ErrTransferFailed):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
