package exchange

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorKind is the canonical error taxonomy. Venue classifiers map wire-level
// error envelopes onto these kinds; the REST retrier branches on them.
type ErrorKind string

const (
	// Authentication
	KindInvalidCredentials      ErrorKind = "invalid_credentials"
	KindInvalidKey              ErrorKind = "invalid_key"
	KindSignatureMismatch       ErrorKind = "signature_mismatch"
	KindIPNotWhitelisted        ErrorKind = "ip_not_whitelisted"
	KindInsufficientPermissions ErrorKind = "insufficient_permissions"
	KindReadOnlyKey             ErrorKind = "read_only_key"
	KindRequestExpired          ErrorKind = "request_expired"

	// Request
	KindInvalidParameter ErrorKind = "invalid_parameter"
	KindInvalidSymbol    ErrorKind = "invalid_symbol"
	KindNotFound         ErrorKind = "not_found"
	KindMethodNotAllowed ErrorKind = "method_not_allowed"

	// Trading
	KindOrderNotFound       ErrorKind = "order_not_found"
	KindOrderAlreadyDone    ErrorKind = "order_already_done"
	KindCancelFailed        ErrorKind = "cancel_failed"
	KindOrderSizeError      ErrorKind = "order_size_error"
	KindTradingDisabled     ErrorKind = "trading_disabled"
	KindTradeRestricted     ErrorKind = "trade_restricted"
	KindInsufficientBalance ErrorKind = "insufficient_balance"
	KindNotSupported        ErrorKind = "not_supported"

	// Futures
	KindLeverageOutOfRange   ErrorKind = "leverage_out_of_range"
	KindRiskLimitExceeded    ErrorKind = "risk_limit_exceeded"
	KindLiquidationImminent  ErrorKind = "liquidation_imminent"
	KindPositionEmpty        ErrorKind = "position_empty"
	KindPositionModeConflict ErrorKind = "position_mode_conflict"

	// Transport
	KindConnectionError ErrorKind = "connection_error"
	KindTimeout         ErrorKind = "timeout"

	// Throttling
	KindRateLimit ErrorKind = "rate_limit"

	// Server
	KindServerError        ErrorKind = "server_error"
	KindServiceUnavailable ErrorKind = "service_unavailable"
	KindMaintenance        ErrorKind = "maintenance"
)

// Error is the canonical error record surfaced by every adapter.
type Error struct {
	Kind       ErrorKind
	HTTPStatus int
	VenueCode  string
	Message    string
	RetryAfter time.Duration // rate-limit only; zero when the venue gave none
}

func (e *Error) Error() string {
	if e.VenueCode != "" {
		return fmt.Sprintf("%s (status=%d, code=%s): %s", e.Kind, e.HTTPStatus, e.VenueCode, e.Message)
	}
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("%s (status=%d): %s", e.Kind, e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Retryable reports whether the REST pipeline may retry this error.
// rateLimit retries after RetryAfter or backoff; requestExpired retries after
// a timestamp refresh; transport and 5xx-class errors retry with backoff.
// Everything else is terminal and propagates to the caller.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindRateLimit, KindRequestExpired,
		KindConnectionError, KindTimeout,
		KindServerError, KindServiceUnavailable, KindMaintenance:
		return true
	}
	return false
}

// NewError builds a canonical error without wire-level detail.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// NewVenueError builds a canonical error carrying the venue envelope.
func NewVenueError(kind ErrorKind, status int, venueCode, message string) *Error {
	return &Error{Kind: kind, HTTPStatus: status, VenueCode: venueCode, Message: message}
}

// AsError unwraps err into a canonical *Error.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err is a canonical error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	if e, ok := AsError(err); ok {
		return e.Kind == kind
	}
	return false
}

// IsRetryable reports whether err may be retried by the REST pipeline.
// Non-canonical errors are treated as terminal.
func IsRetryable(err error) bool {
	if e, ok := AsError(err); ok {
		return e.Retryable()
	}
	return false
}

// KindFromHTTPStatus is the pure status-code fallback used when a venue error
// body is not decodable JSON.
func KindFromHTTPStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized:
		return KindInvalidCredentials
	case status == http.StatusForbidden:
		return KindInsufficientPermissions
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusMethodNotAllowed:
		return KindMethodNotAllowed
	case status == http.StatusTooManyRequests:
		return KindRateLimit
	case status == http.StatusServiceUnavailable:
		return KindServiceUnavailable
	case status >= 500:
		return KindServerError
	default:
		return KindInvalidParameter
	}
}
