package gate

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func hmacSHA512(secret, payload string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestSignOrderPlacementVector(t *testing.T) {
	const (
		apiKey = "test-key"
		secret = "test-secret"
	)
	auth := NewAuthenticator(apiKey, secret)
	auth.SetClock(fixedClock(1700000000500))

	body := []byte(`{"currency_pair":"BTC_USDT","side":"buy","type":"limit","amount":"0.001","price":"10000","time_in_force":"gtc"}`)
	header := make(http.Header)
	query, err := auth.Sign(http.MethodPost, "/api/v4/spot/orders", url.Values{}, body, header)
	require.NoError(t, err)

	// auth rides in headers only, the query stays untouched
	assert.Empty(t, query.Encode())
	assert.Equal(t, apiKey, header.Get("KEY"))
	assert.Equal(t, "1700000000.5", header.Get("Timestamp"))
	assert.Equal(t, "application/json", header.Get("Content-Type"))

	bodyHash := sha512.Sum512(body)
	payload := "POST\n/api/v4/spot/orders\n\n" +
		hex.EncodeToString(bodyHash[:]) + "\n1700000000.5"
	assert.Equal(t, hmacSHA512(secret, payload), header.Get("SIGN"))
}

func TestSignEmptyBodyHashesEmptyString(t *testing.T) {
	auth := NewAuthenticator("k", "s")
	auth.SetClock(fixedClock(1700000001000))

	header := make(http.Header)
	query := url.Values{"currency_pair": {"BTC_USDT"}, "limit": {"5"}}
	_, err := auth.Sign(http.MethodGet, "/api/v4/spot/order_book", query, nil, header)
	require.NoError(t, err)

	emptyHash := sha512.Sum512(nil)
	payload := "GET\n/api/v4/spot/order_book\n" + query.Encode() + "\n" +
		hex.EncodeToString(emptyHash[:]) + "\n1700000001"
	assert.Equal(t, hmacSHA512("s", payload), header.Get("SIGN"))
	assert.Equal(t, "1700000001", header.Get("Timestamp"))
}

func TestSignedQueryMatchesSentQuery(t *testing.T) {
	auth := NewAuthenticator("k", "s")
	auth.SetClock(fixedClock(1700000002250))

	header := make(http.Header)
	in := url.Values{"contract": {"BTC_USDT"}, "status": {"open"}}
	out, err := auth.Sign(http.MethodGet, "/api/v4/futures/usdt/orders", in, nil, header)
	require.NoError(t, err)
	assert.Equal(t, in.Encode(), out.Encode())
}

func TestTimestampTrimsTrailingZeros(t *testing.T) {
	auth := NewAuthenticator("k", "s")

	auth.SetClock(fixedClock(1700000000000))
	assert.Equal(t, "1700000000", auth.timestamp())

	auth.SetClock(fixedClock(1700000000250))
	assert.Equal(t, "1700000000.25", auth.timestamp())
}

func TestSignWSChannel(t *testing.T) {
	auth := NewAuthenticator("k", "ws-secret")

	sign := auth.SignWSChannel("spot.orders", "subscribe", 1700000000)
	expected := hmacSHA512("ws-secret", "channel=spot.orders&event=subscribe&time=1700000000")
	assert.Equal(t, expected, sign)
}
