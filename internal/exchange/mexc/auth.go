package mexc

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"
)

// defaultClockOffset compensates for local clock skew against MEXC's matching
// engine. Positive means we stamp slightly ahead.
const defaultClockOffset = 500 * time.Millisecond

const defaultRecvWindow = 5000

// Authenticator signs MEXC spot requests: HMAC-SHA256 over the URL-encoded,
// sorted parameter string including timestamp and recvWindow. The signature
// travels as a query parameter and the key as the X-MEXC-APIKEY header.
// Timestamps are in milliseconds and generated fresh on every Sign call.
type Authenticator struct {
	apiKey     string
	secretKey  string
	recvWindow int
	offset     atomic.Int64 // clock offset in milliseconds

	// syncServerTime, when set, returns the venue server time in
	// milliseconds and is consulted on RefreshTimestamp.
	syncServerTime func() (int64, error)
}

// NewAuthenticator creates a MEXC signer from raw credentials.
func NewAuthenticator(apiKey, secretKey string) *Authenticator {
	a := &Authenticator{
		apiKey:     apiKey,
		secretKey:  secretKey,
		recvWindow: defaultRecvWindow,
	}
	a.offset.Store(defaultClockOffset.Milliseconds())
	return a
}

// SetServerTimeSource installs a server-time probe used to re-derive the
// clock offset after a requestExpired error.
func (a *Authenticator) SetServerTimeSource(fn func() (int64, error)) {
	a.syncServerTime = fn
}

// Timestamp returns the next signing timestamp in milliseconds.
func (a *Authenticator) Timestamp() int64 {
	return time.Now().UnixMilli() + a.offset.Load()
}

// Sign stamps timestamp and recvWindow onto the query, computes the
// signature over the sorted encoding and appends it as signature=.
func (a *Authenticator) Sign(method, path string, query url.Values, body []byte, header http.Header) (url.Values, error) {
	query.Set("timestamp", strconv.FormatInt(a.Timestamp(), 10))
	query.Set("recvWindow", strconv.Itoa(a.recvWindow))

	mac := hmac.New(sha256.New, []byte(a.secretKey))
	mac.Write([]byte(query.Encode()))
	query.Set("signature", hex.EncodeToString(mac.Sum(nil)))

	header.Set("X-MEXC-APIKEY", a.apiKey)
	return query, nil
}

// RefreshTimestamp re-derives the clock offset from the venue server time
// when a probe is installed, otherwise resets to the default skew.
func (a *Authenticator) RefreshTimestamp() {
	if a.syncServerTime != nil {
		if serverMs, err := a.syncServerTime(); err == nil {
			a.offset.Store(serverMs - time.Now().UnixMilli() + defaultClockOffset.Milliseconds())
			return
		}
	}
	a.offset.Store(defaultClockOffset.Milliseconds())
}
