package gate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crossarb/internal/exchange"
	"crossarb/internal/ratelimit"
	"crossarb/internal/rest"
)

func newTestSpotAdapter(t *testing.T, baseURL string) *SpotAdapter {
	t.Helper()
	limiter, err := ratelimit.New("gate_spot_test", ratelimit.Limits{RequestsPerSecond: 1000, Burst: 100})
	require.NoError(t, err)
	client := rest.New(rest.Config{
		Venue:          "gate_spot_test",
		BaseURL:        baseURL,
		DisableBreaker: true,
	}, limiter, NewAuthenticator("k", "s"), Classifier{})
	return NewSpotAdapter(client, NewMapper())
}

func TestSpotGetSymbolsInfoConvertsFeePercent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathCurrencyPairs, r.URL.Path)
		w.Write([]byte(`[{
			"id":"BTC_USDT","base":"BTC","quote":"USDT","fee":"0.2",
			"min_base_amount":"0.0001","min_quote_amount":"3",
			"amount_precision":4,"precision":2,"trade_status":"tradable"
		}]`))
	}))
	defer srv.Close()

	a := newTestSpotAdapter(t, srv.URL)
	infos, err := a.GetSymbolsInfo(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 1)

	info := infos[0]
	assert.Equal(t, exchange.NewSymbol("BTC", "USDT"), info.Symbol)
	assert.InDelta(t, 0.002, info.MakerFee, 1e-12)
	assert.InDelta(t, 0.01, info.TickSize, 1e-12)
	assert.InDelta(t, 0.0001, info.StepSize, 1e-12)
	assert.True(t, info.TradingActive)
	assert.True(t, a.Mapper().IsSupportedPair("BTC_USDT"))
}

func TestSpotGetOrderbook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathSpotOrderBook, r.URL.Path)
		assert.Equal(t, "BTC_USDT", r.URL.Query().Get("currency_pair"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		w.Write([]byte(`{
			"current":1700000000123,
			"bids":[["50000","0.5"],["49999","1.2"]],
			"asks":[["50001","0.3"]]
		}`))
	}))
	defer srv.Close()

	a := newTestSpotAdapter(t, srv.URL)
	book, err := a.GetOrderbook(context.Background(), exchange.NewSymbol("BTC", "USDT"), 5)
	require.NoError(t, err)

	require.Len(t, book.Bids, 2)
	require.Len(t, book.Asks, 1)
	best, ok := book.BestBid()
	require.True(t, ok)
	assert.Equal(t, 50000.0, best.Price)
	assert.Equal(t, 0.5, best.Size)
	assert.Equal(t, int64(1700000000123), book.Timestamp.UnixMilli())
}

// fakeSpotOrders simulates the order lifecycle including the
// ORDER_CANCELLED rejection on a second cancel.
type fakeSpotOrders struct {
	mu     sync.Mutex
	status map[string]string
	nextID int
}

func (f *fakeSpotOrders) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		writeOrder := func(id, status string) {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"id": id, "text": "t-client-1", "currency_pair": "BTC_USDT",
				"status": status, "type": "limit", "side": "buy",
				"amount": "0.001", "price": "10000", "left": "0.001",
				"time_in_force": "gtc", "create_time_ms": "1700000000000",
			})
		}

		switch {
		case r.Method == http.MethodPost && r.URL.Path == PathSpotOrders:
			f.nextID++
			id := strconv.Itoa(10000 + f.nextID)
			f.status[id] = "open"
			writeOrder(id, "open")
		case r.Method == http.MethodGet && len(r.URL.Path) > len(PathSpotOrders):
			id := r.URL.Path[len(PathSpotOrders)+1:]
			st, ok := f.status[id]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte(`{"label":"ORDER_NOT_FOUND","message":"not found"}`))
				return
			}
			writeOrder(id, st)
		case r.Method == http.MethodDelete && len(r.URL.Path) > len(PathSpotOrders):
			id := r.URL.Path[len(PathSpotOrders)+1:]
			if f.status[id] == "cancelled" {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"label":"ORDER_CANCELLED","message":"already cancelled"}`))
				return
			}
			f.status[id] = "cancelled"
			writeOrder(id, "cancelled")
		default:
			http.NotFound(w, r)
		}
	}
}

func TestSpotOrderCycleWithIdempotentCancel(t *testing.T) {
	fake := &fakeSpotOrders{status: make(map[string]string)}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	a := newTestSpotAdapter(t, srv.URL)
	symbol := exchange.NewSymbol("BTC", "USDT")

	order, err := a.PlaceOrder(context.Background(), &exchange.OrderRequest{
		Symbol:        symbol,
		Side:          exchange.Buy,
		Type:          exchange.Limit,
		Quantity:      0.001,
		Price:         10000,
		TimeInForce:   exchange.GTC,
		ClientOrderID: "client-1",
	})
	require.NoError(t, err)
	assert.Equal(t, exchange.OrderNew, order.Status)
	assert.Equal(t, "t-client-1", order.ClientOrderID)

	canceled, err := a.CancelOrder(context.Background(), symbol, order.ID)
	require.NoError(t, err)
	assert.Equal(t, exchange.OrderCanceled, canceled.Status)

	// second cancel collapses into a fetch of the terminal record
	again, err := a.CancelOrder(context.Background(), symbol, order.ID)
	require.NoError(t, err)
	assert.Equal(t, exchange.OrderCanceled, again.Status)
	assert.Equal(t, order.ID, again.ID)
}

func TestSpotGetOpenOrdersWithoutSymbolReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for zero symbol")
	}))
	defer srv.Close()

	a := newTestSpotAdapter(t, srv.URL)
	orders, err := a.GetOpenOrders(context.Background(), exchange.Symbol{})
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestSpotModifyOrderCancelsAndReplaces(t *testing.T) {
	fake := &fakeSpotOrders{status: make(map[string]string)}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	a := newTestSpotAdapter(t, srv.URL)
	symbol := exchange.NewSymbol("BTC", "USDT")

	original, err := a.PlaceOrder(context.Background(), &exchange.OrderRequest{
		Symbol: symbol, Side: exchange.Buy, Type: exchange.Limit,
		Quantity: 0.001, Price: 10000,
	})
	require.NoError(t, err)

	replaced, err := a.ModifyOrder(context.Background(), symbol, original.ID, &exchange.OrderRequest{
		Side: exchange.Buy, Type: exchange.Limit, Quantity: 0.002, Price: 9900,
	})
	require.NoError(t, err)
	assert.NotEqual(t, original.ID, replaced.ID)

	fake.mu.Lock()
	assert.Equal(t, "cancelled", fake.status[original.ID])
	fake.mu.Unlock()
}

func TestSpotCancelWithdrawal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		switch r.URL.Path {
		case PathWithdrawals + "/w-1":
			w.Write([]byte(`{"id":"w-1","status":"CANCEL"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"label":"ORDER_NOT_FOUND","message":"no such withdrawal"}`))
		}
	}))
	defer srv.Close()

	a := newTestSpotAdapter(t, srv.URL)

	ok, err := a.CancelWithdrawal(context.Background(), "w-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.CancelWithdrawal(context.Background(), "w-2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSpotStopLimitUsesPriceOrders(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathSpotPriceOrders, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"id":4321}`))
	}))
	defer srv.Close()

	a := newTestSpotAdapter(t, srv.URL)
	order, err := a.PlaceOrder(context.Background(), &exchange.OrderRequest{
		Symbol:      exchange.NewSymbol("BTC", "USDT"),
		Side:        exchange.Sell,
		Type:        exchange.StopLimit,
		Quantity:    0.001,
		Price:       9900,
		StopPrice:   9950,
		TimeInForce: exchange.GTC,
	})
	require.NoError(t, err)
	assert.Equal(t, "4321", order.ID)
	assert.Equal(t, exchange.OrderNew, order.Status)
	assert.Equal(t, exchange.StopLimit, order.Type)

	assert.Equal(t, "BTC_USDT", got["market"])
	trigger := got["trigger"].(map[string]interface{})
	assert.Equal(t, "9950", trigger["price"])
	assert.Equal(t, "<=", trigger["rule"])
	put := got["put"].(map[string]interface{})
	assert.Equal(t, "limit", put["type"])
	assert.Equal(t, "sell", put["side"])
	assert.Equal(t, "9900", put["price"])
	assert.Equal(t, "0.001", put["amount"])
}

func TestSpotMarketBuySendsQuoteAmount(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{
			"id":"1","currency_pair":"BTC_USDT","status":"closed","type":"market",
			"side":"buy","amount":"50","price":"0","left":"0",
			"time_in_force":"ioc","create_time_ms":"1700000000000"
		}`))
	}))
	defer srv.Close()

	a := newTestSpotAdapter(t, srv.URL)
	order, err := a.PlaceOrder(context.Background(), &exchange.OrderRequest{
		Symbol:        exchange.NewSymbol("BTC", "USDT"),
		Side:          exchange.Buy,
		Type:          exchange.Market,
		QuoteQuantity: 50,
	})
	require.NoError(t, err)
	assert.Equal(t, exchange.OrderFilled, order.Status)

	assert.Equal(t, "market", got["type"])
	assert.Equal(t, "50", got["amount"])
	assert.Equal(t, "ioc", got["time_in_force"])
}
