package gate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crossarb/internal/exchange"
	"crossarb/internal/ratelimit"
	"crossarb/internal/rest"
)

const testContracts = `[{
	"name":"BTC_USDT","quanto_multiplier":"0.0001","order_size_min":1,
	"order_price_round":"0.1","maker_fee_rate":"0.0002","taker_fee_rate":"0.0005",
	"in_delisting":false
}]`

func newTestFuturesAdapter(t *testing.T, baseURL string) *FuturesAdapter {
	t.Helper()
	limiter, err := ratelimit.New("gate_futures_test", ratelimit.Limits{RequestsPerSecond: 1000, Burst: 100})
	require.NoError(t, err)
	client := rest.New(rest.Config{
		Venue:          "gate_futures_test",
		BaseURL:        baseURL,
		DisableBreaker: true,
	}, limiter, NewAuthenticator("k", "s"), Classifier{})
	return NewFuturesAdapter(client, NewMapper(), SettleUSDT)
}

// futuresMux serves the contract table plus per-test routes.
func futuresMux(extra func(mux *http.ServeMux)) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc(PathFuturesContracts, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testContracts))
	})
	if extra != nil {
		extra(mux)
	}
	return mux
}

func TestFuturesContractMetadata(t *testing.T) {
	srv := httptest.NewServer(futuresMux(nil))
	defer srv.Close()

	a := newTestFuturesAdapter(t, srv.URL)
	infos, err := a.GetSymbolsInfo(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 1)

	info := infos[0]
	assert.Equal(t, exchange.NewSymbol("BTC", "USDT"), info.Symbol)
	assert.True(t, info.IsFutures)
	assert.InDelta(t, 0.0001, info.ContractSize, 1e-12)
	assert.InDelta(t, 0.0001, info.MinBaseQty, 1e-12)
	assert.InDelta(t, 0.1, info.TickSize, 1e-12)
}

func TestFuturesPlaceOrderSignsContracts(t *testing.T) {
	var got futuresOrderPayload
	srv := httptest.NewServer(futuresMux(func(mux *http.ServeMux) {
		mux.HandleFunc(PathFuturesOrders, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			json.NewEncoder(w).Encode(map[string]interface{}{
				"id": 7001, "contract": "BTC_USDT", "status": "open",
				"size": got.Size, "left": got.Size, "price": got.Price,
				"tif": got.TIF, "create_time": 1700000000.0,
			})
		})
	}))
	defer srv.Close()

	a := newTestFuturesAdapter(t, srv.URL)
	symbol := exchange.NewSymbol("BTC", "USDT")

	// 0.001 BTC at 0.0001 BTC per contract is 10 contracts
	order, err := a.PlaceOrder(context.Background(), &exchange.OrderRequest{
		Symbol: symbol, Side: exchange.Buy, Type: exchange.Limit,
		Quantity: 0.001, Price: 50000,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.Size)
	assert.Equal(t, "gtc", got.TIF)
	assert.InDelta(t, 0.001, order.Quantity, 1e-12)

	// sells carry negative size
	_, err = a.PlaceOrder(context.Background(), &exchange.OrderRequest{
		Symbol: symbol, Side: exchange.Sell, Type: exchange.Limit,
		Quantity: 0.001, Price: 50000,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(-10), got.Size)
}

func TestFuturesMarketOrderUsesPriceZero(t *testing.T) {
	var got futuresOrderPayload
	srv := httptest.NewServer(futuresMux(func(mux *http.ServeMux) {
		mux.HandleFunc(PathFuturesOrders, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			json.NewEncoder(w).Encode(map[string]interface{}{
				"id": 7002, "contract": "BTC_USDT", "status": "finished",
				"size": got.Size, "left": 0, "price": "0", "fill_price": "50000",
				"tif": "ioc", "finish_as": "filled", "create_time": 1700000000.0,
			})
		})
	}))
	defer srv.Close()

	a := newTestFuturesAdapter(t, srv.URL)
	order, err := a.PlaceOrder(context.Background(), &exchange.OrderRequest{
		Symbol: exchange.NewSymbol("BTC", "USDT"), Side: exchange.Sell,
		Type: exchange.Market, Quantity: 0.001,
	})
	require.NoError(t, err)
	assert.Equal(t, "0", got.Price)
	assert.Equal(t, "ioc", got.TIF)
	assert.Equal(t, exchange.OrderFilled, order.Status)
	assert.Equal(t, exchange.Market, order.Type)
}

func TestFuturesStopLimitRejected(t *testing.T) {
	srv := httptest.NewServer(futuresMux(func(mux *http.ServeMux) {
		mux.HandleFunc(PathFuturesOrders, func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("no order request expected")
		})
	}))
	defer srv.Close()

	a := newTestFuturesAdapter(t, srv.URL)
	_, err := a.PlaceOrder(context.Background(), &exchange.OrderRequest{
		Symbol: exchange.NewSymbol("BTC", "USDT"), Side: exchange.Sell,
		Type: exchange.StopLimit, Quantity: 0.001, Price: 49000, StopPrice: 49500,
	})
	require.Error(t, err)
	assert.True(t, exchange.IsKind(err, exchange.KindNotSupported))
}

func TestFuturesOrderSizeBelowOneContract(t *testing.T) {
	srv := httptest.NewServer(futuresMux(nil))
	defer srv.Close()

	a := newTestFuturesAdapter(t, srv.URL)
	_, err := a.PlaceOrder(context.Background(), &exchange.OrderRequest{
		Symbol: exchange.NewSymbol("BTC", "USDT"), Side: exchange.Buy,
		Type: exchange.Limit, Quantity: 0.00001, Price: 50000,
	})
	require.Error(t, err)
	assert.True(t, exchange.IsKind(err, exchange.KindOrderSizeError))
}

func TestFuturesOrderbookScalesContractSizes(t *testing.T) {
	srv := httptest.NewServer(futuresMux(func(mux *http.ServeMux) {
		mux.HandleFunc(PathFuturesOrderBook, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "BTC_USDT", r.URL.Query().Get("contract"))
			w.Write([]byte(`{
				"current":1700000000.123,
				"bids":[{"p":"50000","s":20}],
				"asks":[{"p":"50001","s":5}]
			}`))
		})
	}))
	defer srv.Close()

	a := newTestFuturesAdapter(t, srv.URL)
	book, err := a.GetOrderbook(context.Background(), exchange.NewSymbol("BTC", "USDT"), 5)
	require.NoError(t, err)

	best, ok := book.BestBid()
	require.True(t, ok)
	assert.InDelta(t, 0.002, best.Size, 1e-12) // 20 contracts at 0.0001
	ask, ok := book.BestAsk()
	require.True(t, ok)
	assert.InDelta(t, 0.0005, ask.Size, 1e-12)
}

func TestFuturesGetPositionNormalizesShort(t *testing.T) {
	srv := httptest.NewServer(futuresMux(func(mux *http.ServeMux) {
		mux.HandleFunc(PathFuturesPositions+"/BTC_USDT", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{
				"contract":"BTC_USDT","size":-50,"entry_price":"50000",
				"mark_price":"49900","unrealised_pnl":"5","realised_pnl":"0",
				"liq_price":"60000","margin":"250","leverage":"10"
			}`))
		})
	}))
	defer srv.Close()

	a := newTestFuturesAdapter(t, srv.URL)
	position, err := a.GetPosition(context.Background(), exchange.NewSymbol("BTC", "USDT"))
	require.NoError(t, err)

	assert.Equal(t, exchange.Short, position.Side)
	assert.InDelta(t, 0.005, position.Size, 1e-12) // 50 contracts, unsigned
	assert.Equal(t, 50000.0, position.EntryPrice)
	assert.Equal(t, 10.0, position.Leverage)
}

func TestClosePositionPlacesOppositeMarketOrder(t *testing.T) {
	var got futuresOrderPayload
	srv := httptest.NewServer(futuresMux(func(mux *http.ServeMux) {
		mux.HandleFunc(PathFuturesPositions+"/BTC_USDT", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{
				"contract":"BTC_USDT","size":-50,"entry_price":"50000",
				"mark_price":"49900","unrealised_pnl":"5","realised_pnl":"0",
				"liq_price":"60000","margin":"250","leverage":"10"
			}`))
		})
		mux.HandleFunc(PathFuturesOrders, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			json.NewEncoder(w).Encode(map[string]interface{}{
				"id": 7003, "contract": "BTC_USDT", "status": "finished",
				"size": got.Size, "left": 0, "price": "0",
				"tif": "ioc", "finish_as": "filled", "create_time": 1700000000.0,
			})
		})
	}))
	defer srv.Close()

	a := newTestFuturesAdapter(t, srv.URL)
	order, err := a.ClosePosition(context.Background(), exchange.NewSymbol("BTC", "USDT"))
	require.NoError(t, err)

	// short position closes with a reduce-only market buy
	assert.Equal(t, int64(50), got.Size)
	assert.True(t, got.ReduceOnly)
	assert.Equal(t, "0", got.Price)
	assert.Equal(t, exchange.Buy, order.Side)
}

func TestFuturesGetFundingRate(t *testing.T) {
	srv := httptest.NewServer(futuresMux(func(mux *http.ServeMux) {
		mux.HandleFunc(PathFuturesFundingRate, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "BTC_USDT", r.URL.Query().Get("contract"))
			w.Write([]byte(`[{"t":1700000000,"r":"0.0001"}]`))
		})
	}))
	defer srv.Close()

	a := newTestFuturesAdapter(t, srv.URL)
	rate, err := a.GetFundingRate(context.Background(), exchange.NewSymbol("BTC", "USDT"))
	require.NoError(t, err)
	assert.InDelta(t, 0.0001, rate.Rate, 1e-12)
	assert.Equal(t, int64(1700000000), rate.NextFundingTime.Unix())
}
