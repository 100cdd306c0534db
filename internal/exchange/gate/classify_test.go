package gate

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"crossarb/internal/exchange"
)

func TestClassifyKnownLabels(t *testing.T) {
	cases := []struct {
		label  string
		status int
		want   exchange.ErrorKind
	}{
		{"INVALID_KEY", 401, exchange.KindInvalidKey},
		{"INVALID_SIGNATURE", 401, exchange.KindSignatureMismatch},
		{"REQUEST_EXPIRED", 403, exchange.KindRequestExpired},
		{"IP_FORBIDDEN", 403, exchange.KindIPNotWhitelisted},
		{"READ_ONLY", 403, exchange.KindReadOnlyKey},
		{"INVALID_CURRENCY_PAIR", 400, exchange.KindInvalidSymbol},
		{"CONTRACT_NOT_FOUND", 404, exchange.KindInvalidSymbol},
		{"ORDER_NOT_FOUND", 404, exchange.KindOrderNotFound},
		{"ORDER_CLOSED", 400, exchange.KindOrderAlreadyDone},
		{"ORDER_CANCELLED", 400, exchange.KindOrderAlreadyDone},
		{"BALANCE_NOT_ENOUGH", 400, exchange.KindInsufficientBalance},
		{"AMOUNT_TOO_LITTLE", 400, exchange.KindOrderSizeError},
		{"LEVERAGE_TOO_HIGH", 400, exchange.KindLeverageOutOfRange},
		{"RISK_LIMIT_EXCEEDED", 400, exchange.KindRiskLimitExceeded},
		{"LIQUIDATE_IMMEDIATELY", 400, exchange.KindLiquidationImminent},
		{"POSITION_EMPTY", 400, exchange.KindPositionEmpty},
		{"POSITION_DUAL_MODE", 400, exchange.KindPositionModeConflict},
		{"TOO_MANY_REQUESTS", 429, exchange.KindRateLimit},
		{"SERVER_ERROR", 500, exchange.KindServerError},
	}

	var c Classifier
	for _, tc := range cases {
		t.Run(tc.label, func(t *testing.T) {
			body := []byte(fmt.Sprintf(`{"label":%q,"message":"boom"}`, tc.label))
			err := c.Classify(tc.status, body)
			assert.Equal(t, tc.want, err.Kind)
			assert.Equal(t, tc.label, err.VenueCode)
			assert.Equal(t, "boom", err.Message)
			assert.Equal(t, tc.status, err.HTTPStatus)
		})
	}
}

func TestClassifyUnknownLabelFallsBackToStatus(t *testing.T) {
	var c Classifier
	err := c.Classify(503, []byte(`{"label":"SOMETHING_NEW","message":"m"}`))
	assert.Equal(t, exchange.KindServiceUnavailable, err.Kind)
	assert.Equal(t, "SOMETHING_NEW", err.VenueCode)
}

func TestClassifyNonJSONBody(t *testing.T) {
	var c Classifier

	err := c.Classify(429, []byte("slow down"))
	assert.Equal(t, exchange.KindRateLimit, err.Kind)
	assert.Equal(t, "slow down", err.Message)

	err = c.Classify(502, []byte("<html>bad gateway</html>"))
	assert.Equal(t, exchange.KindServerError, err.Kind)

	err = c.Classify(404, nil)
	assert.Equal(t, exchange.KindNotFound, err.Kind)
}

func TestClassifiedRetryability(t *testing.T) {
	var c Classifier

	assert.True(t, c.Classify(429, []byte(`{"label":"TOO_MANY_REQUESTS","message":""}`)).Retryable())
	assert.True(t, c.Classify(500, []byte(`{"label":"SERVER_ERROR","message":""}`)).Retryable())
	assert.False(t, c.Classify(400, []byte(`{"label":"BALANCE_NOT_ENOUGH","message":""}`)).Retryable())
	assert.False(t, c.Classify(400, []byte(`{"label":"ORDER_NOT_FOUND","message":""}`)).Retryable())
}
