package mexc

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"crossarb/internal/exchange"
)

func TestClassifyVenueCodes(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   exchange.ErrorKind
	}{
		{"signature mismatch", 400, `{"code":700002,"msg":"Signature for this request is not valid."}`, exchange.KindSignatureMismatch},
		{"request expired", 400, `{"code":700003,"msg":"Timestamp for this request is outside of the recvWindow."}`, exchange.KindRequestExpired},
		{"invalid key", 401, `{"code":10072,"msg":"Invalid access key"}`, exchange.KindInvalidKey},
		{"invalid symbol", 400, `{"code":-1121,"msg":"Invalid symbol."}`, exchange.KindInvalidSymbol},
		{"cancel on done order", 400, `{"code":-2011,"msg":"Unknown order sent."}`, exchange.KindOrderAlreadyDone},
		{"order not found", 400, `{"code":-2013,"msg":"Order does not exist."}`, exchange.KindOrderNotFound},
		{"insufficient balance", 400, `{"code":30004,"msg":"Insufficient balance"}`, exchange.KindInsufficientBalance},
		{"oversold", 400, `{"code":30005,"msg":"Oversold"}`, exchange.KindOrderSizeError},
		{"trading disabled", 400, `{"code":30016,"msg":"Trading is suspended for this pair"}`, exchange.KindTradingDisabled},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := (Classifier{}).Classify(tc.status, []byte(tc.body))
			assert.Equal(t, tc.want, err.Kind)
			assert.Equal(t, tc.status, err.HTTPStatus)
			assert.NotEmpty(t, err.VenueCode)
		})
	}
}

func TestClassifyMessageFallback(t *testing.T) {
	err := (Classifier{}).Classify(400, []byte(`{"code":99999,"msg":"Order does not exist"}`))
	assert.Equal(t, exchange.KindOrderNotFound, err.Kind)
}

func TestClassifyNonJSONFallsBackToStatus(t *testing.T) {
	tests := []struct {
		status int
		want   exchange.ErrorKind
	}{
		{429, exchange.KindRateLimit},
		{500, exchange.KindServerError},
		{503, exchange.KindServiceUnavailable},
		{404, exchange.KindNotFound},
	}
	for _, tc := range tests {
		err := (Classifier{}).Classify(tc.status, []byte(`<html>gateway error</html>`))
		assert.Equal(t, tc.want, err.Kind)
	}
}
