package mexc

import (
	"encoding/json"
	"strconv"
	"strings"

	"crossarb/internal/exchange"
)

// errorEnvelope is MEXC's JSON error body.
type errorEnvelope struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// Classifier maps MEXC error envelopes onto the canonical taxonomy.
type Classifier struct{}

// venue error codes -> canonical kinds
var mexcCodes = map[int]exchange.ErrorKind{
	700002: exchange.KindSignatureMismatch,
	700003: exchange.KindRequestExpired,
	700006: exchange.KindIPNotWhitelisted,
	700007: exchange.KindInsufficientPermissions,
	10072:  exchange.KindInvalidKey,
	10073:  exchange.KindRequestExpired,
	10101:  exchange.KindInsufficientBalance,
	30004:  exchange.KindInsufficientBalance,
	30005:  exchange.KindOrderSizeError,
	30016:  exchange.KindTradingDisabled,
	30025:  exchange.KindOrderSizeError,
	-1121:  exchange.KindInvalidSymbol,
	-1021:  exchange.KindRequestExpired,
	-1022:  exchange.KindSignatureMismatch,
	-2010:  exchange.KindInsufficientBalance,
	-2011:  exchange.KindOrderAlreadyDone,
	-2013:  exchange.KindOrderNotFound,
}

// Classify decodes the MEXC envelope and maps the venue code. Bodies that are
// not decodable JSON fall back to pure HTTP-status classification.
func (Classifier) Classify(status int, body []byte) *exchange.Error {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil || (env.Code == 0 && env.Msg == "") {
		return &exchange.Error{
			Kind:       exchange.KindFromHTTPStatus(status),
			HTTPStatus: status,
			Message:    strings.TrimSpace(string(body)),
		}
	}

	kind, ok := mexcCodes[env.Code]
	if !ok {
		kind = kindFromMessage(env.Msg, status)
	}

	return &exchange.Error{
		Kind:       kind,
		HTTPStatus: status,
		VenueCode:  strconv.Itoa(env.Code),
		Message:    env.Msg,
	}
}

// kindFromMessage covers codes MEXC reuses across unrelated failures.
func kindFromMessage(msg string, status int) exchange.ErrorKind {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "order does not exist"):
		return exchange.KindOrderNotFound
	case strings.Contains(lower, "unknown order"):
		return exchange.KindOrderAlreadyDone
	case strings.Contains(lower, "insufficient"):
		return exchange.KindInsufficientBalance
	case strings.Contains(lower, "api key"):
		return exchange.KindInvalidKey
	case strings.Contains(lower, "signature"):
		return exchange.KindSignatureMismatch
	case strings.Contains(lower, "maintenance"):
		return exchange.KindMaintenance
	default:
		return exchange.KindFromHTTPStatus(status)
	}
}
