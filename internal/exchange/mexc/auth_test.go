package mexc

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignProducesVerifiableSignature(t *testing.T) {
	auth := NewAuthenticator("test-key", "test-secret")

	query := url.Values{"symbol": {"BTCUSDT"}, "side": {"BUY"}}
	header := http.Header{}
	signed, err := auth.Sign(http.MethodPost, "/api/v3/order", query, nil, header)
	require.NoError(t, err)

	assert.Equal(t, "test-key", header.Get("X-MEXC-APIKEY"))
	assert.NotEmpty(t, signed.Get("timestamp"))
	assert.Equal(t, "5000", signed.Get("recvWindow"))

	// recompute over the sorted encoding without the signature param
	sig := signed.Get("signature")
	require.NotEmpty(t, sig)
	verify := url.Values{}
	for k, vs := range signed {
		if k == "signature" {
			continue
		}
		verify[k] = vs
	}
	mac := hmac.New(sha256.New, []byte("test-secret"))
	mac.Write([]byte(verify.Encode()))
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), sig)
}

func TestSignTimestampFreshPerCall(t *testing.T) {
	auth := NewAuthenticator("k", "s")

	q1, err := auth.Sign(http.MethodGet, "/api/v3/account", url.Values{}, nil, http.Header{})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	q2, err := auth.Sign(http.MethodGet, "/api/v3/account", url.Values{}, nil, http.Header{})
	require.NoError(t, err)

	assert.NotEqual(t, q1.Get("timestamp"), q2.Get("timestamp"))
}

func TestTimestampCarriesClockOffset(t *testing.T) {
	auth := NewAuthenticator("k", "s")
	now := time.Now().UnixMilli()
	ts := auth.Timestamp()

	// default skew compensation is +500ms
	assert.GreaterOrEqual(t, ts-now, int64(490))
	assert.LessOrEqual(t, ts-now, int64(510))
}

func TestRefreshTimestampUsesServerTime(t *testing.T) {
	auth := NewAuthenticator("k", "s")
	serverAhead := time.Now().UnixMilli() + 3000
	auth.SetServerTimeSource(func() (int64, error) { return serverAhead, nil })

	auth.RefreshTimestamp()
	ts := auth.Timestamp()

	// offset now tracks the 3s-ahead server clock plus the default skew
	assert.Greater(t, ts, time.Now().UnixMilli()+3000)
}
