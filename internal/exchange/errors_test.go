package exchange

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetryabilityMatrix(t *testing.T) {
	retryable := []ErrorKind{
		KindRateLimit, KindRequestExpired, KindConnectionError, KindTimeout,
		KindServerError, KindServiceUnavailable, KindMaintenance,
	}
	terminal := []ErrorKind{
		KindInvalidCredentials, KindInvalidKey, KindSignatureMismatch,
		KindIPNotWhitelisted, KindInsufficientPermissions, KindReadOnlyKey,
		KindInvalidParameter, KindInvalidSymbol, KindNotFound, KindMethodNotAllowed,
		KindOrderNotFound, KindOrderAlreadyDone, KindCancelFailed, KindOrderSizeError,
		KindTradingDisabled, KindTradeRestricted, KindInsufficientBalance, KindNotSupported,
		KindLeverageOutOfRange, KindRiskLimitExceeded, KindLiquidationImminent,
		KindPositionEmpty, KindPositionModeConflict,
	}

	for _, k := range retryable {
		assert.True(t, (&Error{Kind: k}).Retryable(), "kind %s", k)
	}
	for _, k := range terminal {
		assert.False(t, (&Error{Kind: k}).Retryable(), "kind %s", k)
	}
}

func TestErrorUnwrapHelpers(t *testing.T) {
	base := NewVenueError(KindOrderNotFound, 404, "ORDER_NOT_FOUND", "no such order")
	wrapped := fmt.Errorf("cancel failed: %w", base)

	e, ok := AsError(wrapped)
	assert.True(t, ok)
	assert.Equal(t, KindOrderNotFound, e.Kind)
	assert.True(t, IsKind(wrapped, KindOrderNotFound))
	assert.False(t, IsRetryable(wrapped))
	assert.False(t, IsRetryable(fmt.Errorf("plain error")))
}

func TestKindFromHTTPStatusFallback(t *testing.T) {
	cases := map[int]ErrorKind{
		http.StatusUnauthorized:       KindInvalidCredentials,
		http.StatusForbidden:          KindInsufficientPermissions,
		http.StatusNotFound:           KindNotFound,
		http.StatusMethodNotAllowed:   KindMethodNotAllowed,
		http.StatusTooManyRequests:    KindRateLimit,
		http.StatusServiceUnavailable: KindServiceUnavailable,
		http.StatusInternalServerError: KindServerError,
		http.StatusBadGateway:          KindServerError,
		http.StatusBadRequest:          KindInvalidParameter,
	}
	for status, want := range cases {
		assert.Equal(t, want, KindFromHTTPStatus(status), "status %d", status)
	}
}

func TestErrorString(t *testing.T) {
	e := NewVenueError(KindRateLimit, 429, "TOO_MANY_REQUESTS", "slow down")
	assert.Contains(t, e.Error(), "rate_limit")
	assert.Contains(t, e.Error(), "429")
	assert.Contains(t, e.Error(), "TOO_MANY_REQUESTS")
}
