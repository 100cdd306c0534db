package gate

import (
	"encoding/json"
	"strings"

	"crossarb/internal/exchange"
)

// errorEnvelope is Gate.io's JSON error body.
type errorEnvelope struct {
	Label   string `json:"label"`
	Message string `json:"message"`
}

// Classifier maps Gate.io error envelopes onto the canonical taxonomy. One
// classifier serves spot and futures; the label vocabulary is shared.
type Classifier struct{}

var gateLabels = map[string]exchange.ErrorKind{
	"INVALID_KEY":              exchange.KindInvalidKey,
	"INVALID_SIGNATURE":        exchange.KindSignatureMismatch,
	"SIGNATURE_MISMATCH":       exchange.KindSignatureMismatch,
	"REQUEST_EXPIRED":          exchange.KindRequestExpired,
	"IP_FORBIDDEN":             exchange.KindIPNotWhitelisted,
	"READ_ONLY":                exchange.KindReadOnlyKey,
	"FORBIDDEN":                exchange.KindInsufficientPermissions,
	"MISSING_REQUIRED_PARAM":   exchange.KindInvalidParameter,
	"INVALID_PARAM_VALUE":      exchange.KindInvalidParameter,
	"INVALID_CURRENCY":         exchange.KindInvalidSymbol,
	"INVALID_CURRENCY_PAIR":    exchange.KindInvalidSymbol,
	"CONTRACT_NOT_FOUND":       exchange.KindInvalidSymbol,
	"ORDER_NOT_FOUND":          exchange.KindOrderNotFound,
	"ORDER_CLOSED":             exchange.KindOrderAlreadyDone,
	"ORDER_CANCELLED":          exchange.KindOrderAlreadyDone,
	"ORDER_FINISHED":           exchange.KindOrderAlreadyDone,
	"CANCEL_FAIL":              exchange.KindCancelFailed,
	"AMOUNT_TOO_LITTLE":        exchange.KindOrderSizeError,
	"QUANTITY_NOT_ENOUGH":      exchange.KindOrderSizeError,
	"TRADE_RESTRICTED":         exchange.KindTradeRestricted,
	"TRADING_DISABLED":         exchange.KindTradingDisabled,
	"BALANCE_NOT_ENOUGH":       exchange.KindInsufficientBalance,
	"MARGIN_BALANCE_EXCEPTION": exchange.KindInsufficientBalance,
	"INSUFFICIENT_AVAILABLE":   exchange.KindInsufficientBalance,
	"LEVERAGE_TOO_HIGH":        exchange.KindLeverageOutOfRange,
	"LEVERAGE_TOO_LOW":         exchange.KindLeverageOutOfRange,
	"RISK_LIMIT_EXCEEDED":      exchange.KindRiskLimitExceeded,
	"LIQUIDATE_IMMEDIATELY":    exchange.KindLiquidationImminent,
	"POSITION_EMPTY":           exchange.KindPositionEmpty,
	"POSITION_NOT_FOUND":       exchange.KindPositionEmpty,
	"POSITION_DUAL_MODE":       exchange.KindPositionModeConflict,
	"POSITION_IN_LIQUIDATION":  exchange.KindLiquidationImminent,
	"TOO_MANY_REQUESTS":        exchange.KindRateLimit,
	"SERVER_ERROR":             exchange.KindServerError,
	"INTERNAL":                 exchange.KindServerError,
	"SERVICE_UNAVAILABLE":      exchange.KindServiceUnavailable,
}

// Classify decodes the Gate.io envelope and maps the label. Bodies that are
// not decodable JSON fall back to pure HTTP-status classification.
func (Classifier) Classify(status int, body []byte) *exchange.Error {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.Label == "" {
		return &exchange.Error{
			Kind:       exchange.KindFromHTTPStatus(status),
			HTTPStatus: status,
			Message:    strings.TrimSpace(string(body)),
		}
	}

	kind, ok := gateLabels[env.Label]
	if !ok {
		kind = exchange.KindFromHTTPStatus(status)
	}

	return &exchange.Error{
		Kind:       kind,
		HTTPStatus: status,
		VenueCode:  env.Label,
		Message:    env.Message,
	}
}
