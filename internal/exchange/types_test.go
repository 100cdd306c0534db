package exchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderStatusTerminal(t *testing.T) {
	terminal := []OrderStatus{OrderFilled, OrderCanceled, OrderRejected, OrderExpired}
	for _, s := range terminal {
		assert.True(t, s.IsTerminal(), "status %s", s)
	}
	assert.False(t, OrderNew.IsTerminal())
	assert.False(t, OrderPartiallyFilled.IsTerminal())
}

func TestSideAndPositionSideOpposite(t *testing.T) {
	assert.Equal(t, Sell, Buy.Opposite())
	assert.Equal(t, Buy, Sell.Opposite())
	assert.Equal(t, Short, Long.Opposite())
	assert.Equal(t, Long, Short.Opposite())
}

func TestSymbolCanonicalForm(t *testing.T) {
	s := NewSymbol("btc", "usdt")
	assert.Equal(t, "BTC/USDT", s.String())
	assert.False(t, s.IsZero())
	assert.True(t, Symbol{}.IsZero())
}

func TestOrderRequestValidate(t *testing.T) {
	sym := NewSymbol("BTC", "USDT")

	cases := []struct {
		name string
		req  OrderRequest
		ok   bool
	}{
		{"limit ok", OrderRequest{Symbol: sym, Side: Buy, Type: Limit, Quantity: 0.001, Price: 10000}, true},
		{"limit missing price", OrderRequest{Symbol: sym, Side: Buy, Type: Limit, Quantity: 0.001}, false},
		{"stop limit missing stop", OrderRequest{Symbol: sym, Side: Sell, Type: StopLimit, Quantity: 1, Price: 100}, false},
		{"market buy quote qty", OrderRequest{Symbol: sym, Side: Buy, Type: Market, QuoteQuantity: 50}, true},
		{"market buy base qty", OrderRequest{Symbol: sym, Side: Buy, Type: Market, Quantity: 0.01}, true},
		{"market buy no qty", OrderRequest{Symbol: sym, Side: Buy, Type: Market}, false},
		{"market sell quote qty only", OrderRequest{Symbol: sym, Side: Sell, Type: Market, QuoteQuantity: 50}, false},
		{"market sell base qty", OrderRequest{Symbol: sym, Side: Sell, Type: Market, Quantity: 0.01}, true},
		{"missing symbol", OrderRequest{Side: Buy, Type: Market, Quantity: 1}, false},
		{"bad side", OrderRequest{Symbol: sym, Side: "HOLD", Type: Market, Quantity: 1}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.True(t, IsKind(err, KindInvalidParameter))
			}
		})
	}
}

func TestRoundingToVenueGrids(t *testing.T) {
	assert.InDelta(t, 0.001, RoundDownToStep(0.0019, 0.001), 1e-12)
	assert.InDelta(t, 0.002, RoundUpToStep(0.0011, 0.001), 1e-12)
	assert.InDelta(t, 100.5, RoundToTick(100.49, 0.1), 1e-12)

	// integer-contract grid rounds whole contracts
	assert.InDelta(t, 3, RoundUpToStep(2.01, 1), 1e-12)
	assert.InDelta(t, 2, RoundDownToStep(2.99, 1), 1e-12)

	// zero step is a passthrough
	assert.Equal(t, 1.2345, RoundDownToStep(1.2345, 0))
}

func TestFormatQty(t *testing.T) {
	assert.Equal(t, "0.001", FormatQty(0.001, 8))
	assert.Equal(t, "1.5", FormatQty(1.50000001, 2))
}
