package mexc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crossarb/internal/exchange"
	"crossarb/internal/ratelimit"
	"crossarb/internal/rest"
)

func newTestAdapter(t *testing.T, baseURL string) *Adapter {
	t.Helper()
	limiter, err := ratelimit.New("mexc_test", ratelimit.Limits{RequestsPerSecond: 1000, Burst: 100})
	require.NoError(t, err)
	client := rest.New(rest.Config{
		Venue:          "mexc_test",
		BaseURL:        baseURL,
		DisableBreaker: true,
	}, limiter, NewAuthenticator("k", "s"), Classifier{})
	return NewAdapter(client, NewMapper(), nil)
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathPing, r.URL.Path)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)
	require.NoError(t, a.Ping(context.Background()))
}

// fakeOrderBook simulates the venue order lifecycle: place, fetch, cancel,
// and the -2011 rejection on a second cancel.
type fakeOrderBook struct {
	mu     sync.Mutex
	status map[string]string
	nextID int
}

func (f *fakeOrderBook) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != PathOrder {
			http.NotFound(w, r)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()

		q := r.URL.Query()
		switch r.Method {
		case http.MethodPost:
			f.nextID++
			id := strconv.Itoa(10000 + f.nextID)
			f.status[id] = "NEW"
			json.NewEncoder(w).Encode(map[string]interface{}{
				"symbol": q.Get("symbol"), "orderId": json.Number(id),
				"price": q.Get("price"), "origQty": q.Get("quantity"),
				"status": "NEW", "side": q.Get("side"), "type": q.Get("type"),
				"transactTime": 1700000000000,
			})
		case http.MethodGet:
			id := q.Get("orderId")
			st, ok := f.status[id]
			if !ok {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"code":-2013,"msg":"Order does not exist."}`))
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"symbol": q.Get("symbol"), "orderId": json.Number(id),
				"status": st, "origQty": "0.001", "price": "10000",
				"side": "BUY", "type": "LIMIT", "time": 1700000000000,
			})
		case http.MethodDelete:
			id := q.Get("orderId")
			if f.status[id] == "CANCELED" {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"code":-2011,"msg":"Unknown order sent."}`))
				return
			}
			f.status[id] = "CANCELED"
			json.NewEncoder(w).Encode(map[string]interface{}{
				"symbol": q.Get("symbol"), "orderId": json.Number(id),
				"status": "CANCELED", "origQty": "0.001", "price": "10000",
				"side": "BUY", "type": "LIMIT",
			})
		}
	}
}

func TestLimitOrderCycleWithIdempotentCancel(t *testing.T) {
	fake := &fakeOrderBook{status: make(map[string]string)}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)
	btc := exchange.NewSymbol("BTC", "USDT")

	order, err := a.PlaceOrder(context.Background(), &exchange.OrderRequest{
		Symbol: btc, Side: exchange.Buy, Type: exchange.Limit,
		Quantity: 0.001, Price: 10000, TimeInForce: exchange.GTC,
	})
	require.NoError(t, err)
	assert.Equal(t, exchange.OrderNew, order.Status)
	assert.NotEmpty(t, order.ID)

	fetched, err := a.GetOrder(context.Background(), btc, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, fetched.ID)
	assert.Equal(t, exchange.OrderNew, fetched.Status)

	canceled, err := a.CancelOrder(context.Background(), btc, order.ID)
	require.NoError(t, err)
	assert.Equal(t, exchange.OrderCanceled, canceled.Status)

	// second cancel collapses to a fetch of the terminal record
	again, err := a.CancelOrder(context.Background(), btc, order.ID)
	require.NoError(t, err)
	assert.Equal(t, exchange.OrderCanceled, again.Status)
}

func TestStopLimitOrderSendsStopPrice(t *testing.T) {
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		json.NewEncoder(w).Encode(map[string]interface{}{
			"symbol": "BTCUSDT", "orderId": json.Number("10001"),
			"price": "9900", "origQty": "0.001", "status": "NEW",
			"side": "SELL", "type": "STOP_LIMIT", "transactTime": 1700000000000,
		})
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)
	order, err := a.PlaceOrder(context.Background(), &exchange.OrderRequest{
		Symbol:    exchange.NewSymbol("BTC", "USDT"),
		Side:      exchange.Sell,
		Type:      exchange.StopLimit,
		Quantity:  0.001,
		Price:     9900,
		StopPrice: 9950,
	})
	require.NoError(t, err)
	assert.Equal(t, exchange.OrderNew, order.Status)

	assert.Equal(t, "STOP_LIMIT", got.Get("type"))
	assert.Equal(t, "9950", got.Get("stopPrice"))
	assert.Equal(t, "9900", got.Get("price"))
}

func TestGetOpenOrdersWithoutSymbolReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)
	orders, err := a.GetOpenOrders(context.Background(), exchange.Symbol{})
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestModifyOrderNotSupported(t *testing.T) {
	a := newTestAdapter(t, "http://unused")
	_, err := a.ModifyOrder(context.Background(), exchange.NewSymbol("BTC", "USDT"), "1", &exchange.OrderRequest{})
	assert.True(t, exchange.IsKind(err, exchange.KindNotSupported))
}

func TestCancelWithdrawalAlwaysFalse(t *testing.T) {
	a := newTestAdapter(t, "http://unused")
	ok, err := a.CancelWithdrawal(context.Background(), "w-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetSymbolsInfoLoadsMapper(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathExchangeInfo, r.URL.Path)
		w.Write([]byte(`{"symbols":[{
			"symbol":"BTCUSDT","status":"1","baseAsset":"BTC","quoteAsset":"USDT",
			"baseAssetPrecision":6,"quotePrecision":2,
			"baseSizePrecision":"0.000001","quoteAmountPrecision":"1",
			"makerCommission":"0.001","takerCommission":"0.001",
			"isSpotTradingAllowed":true}]}`))
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)
	infos, err := a.GetSymbolsInfo(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 1)

	info := infos[0]
	assert.Equal(t, exchange.NewSymbol("BTC", "USDT"), info.Symbol)
	assert.InDelta(t, 1e-6, info.StepSize, 1e-12)
	assert.InDelta(t, 0.01, info.TickSize, 1e-12)
	assert.True(t, info.TradingActive)
	assert.True(t, a.Mapper().IsSupportedPair("BTCUSDT"))
}

func TestListenKeyLifecycle(t *testing.T) {
	var puts, deletes int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, PathUserDataStream, r.URL.Path)
		switch r.Method {
		case http.MethodPost:
			w.Write([]byte(`{"listenKey":"lk-123"}`))
		case http.MethodPut:
			puts++
			assert.Equal(t, "lk-123", r.URL.Query().Get("listenKey"))
			w.Write([]byte(`{}`))
		case http.MethodDelete:
			deletes++
			w.Write([]byte(`{}`))
		}
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)
	key, err := a.CreateListenKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "lk-123", key)

	require.NoError(t, a.KeepAliveListenKey(context.Background(), key))
	require.NoError(t, a.DeleteListenKey(context.Background(), key))
	assert.Equal(t, 1, puts)
	assert.Equal(t, 1, deletes)
}
