// Package mexc implements the MEXC spot venue adapter: REST endpoints,
// request signing, error classification and the WS dialect.
package mexc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"crossarb/internal/exchange"
	"crossarb/internal/rest"
)

// REST API endpoints
const (
	BaseURLProduction = "https://api.mexc.com"

	// Public endpoints
	PathPing             = "/api/v3/ping"
	PathTime             = "/api/v3/time"
	PathExchangeInfo     = "/api/v3/exchangeInfo"
	PathDepth            = "/api/v3/depth"
	PathTrades           = "/api/v3/trades"
	PathHistoricalTrades = "/api/v3/historicalTrades"
	PathTicker24hr       = "/api/v3/ticker/24hr"
	PathKlines           = "/api/v3/klines"

	// Private endpoints
	PathOrder          = "/api/v3/order"
	PathOpenOrders     = "/api/v3/openOrders"
	PathAllOrders      = "/api/v3/allOrders"
	PathAccount        = "/api/v3/account"
	PathMyTrades       = "/api/v3/myTrades"
	PathUserDataStream = "/api/v3/userDataStream"

	// Capital endpoints
	PathCapitalConfig     = "/api/v3/capital/config/getall"
	PathWithdraw          = "/api/v3/capital/withdraw"
	PathWithdrawHistory   = "/api/v3/capital/withdraw/history"
	PathDepositHistory    = "/api/v3/capital/deposit/hisrec"
	PathDepositAddress    = "/api/v3/capital/deposit/address"
	PathWithdrawCancelFmt = "/api/v3/capital/withdraw/%s"
)

const klineBatchLimit = 1000

// Adapter implements the spot contracts against MEXC's v3 REST API.
type Adapter struct {
	client *rest.Client
	mapper *Mapper
	auth   *Authenticator
}

// NewAdapter wires the REST pipeline and symbol mapper. The authenticator's
// server-time probe is installed here so requestExpired retries re-sync the
// clock against the venue.
func NewAdapter(client *rest.Client, mapper *Mapper, auth *Authenticator) *Adapter {
	a := &Adapter{client: client, mapper: mapper, auth: auth}
	if auth != nil {
		auth.SetServerTimeSource(func() (int64, error) {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			t, err := a.GetServerTime(ctx)
			if err != nil {
				return 0, err
			}
			return t.UnixMilli(), nil
		})
	}
	return a
}

// Mapper exposes the symbol mapper for the facade.
func (a *Adapter) Mapper() *Mapper { return a.mapper }

func (a *Adapter) get(ctx context.Context, path string, query url.Values, auth bool, out interface{}) error {
	return a.do(ctx, http.MethodGet, path, query, auth, out)
}

func (a *Adapter) do(ctx context.Context, method, path string, query url.Values, auth bool, out interface{}) error {
	body, err := a.client.Do(ctx, &rest.Request{
		Method: method,
		Path:   path,
		Query:  query,
		Auth:   auth,
	})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return exchange.NewError(exchange.KindServerError, "decoding response: "+err.Error())
	}
	return nil
}

// Ping hits /api/v3/ping; an empty 200 body means the venue is reachable.
func (a *Adapter) Ping(ctx context.Context) error {
	return a.get(ctx, PathPing, nil, false, nil)
}

func (a *Adapter) GetServerTime(ctx context.Context) (time.Time, error) {
	var resp serverTimeResponse
	if err := a.get(ctx, PathTime, nil, false, &resp); err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(resp.ServerTime), nil
}

func (a *Adapter) GetSymbolsInfo(ctx context.Context) ([]exchange.SymbolInfo, error) {
	var resp exchangeInfoResponse
	if err := a.get(ctx, PathExchangeInfo, nil, false, &resp); err != nil {
		return nil, err
	}
	infos := make([]exchange.SymbolInfo, 0, len(resp.Symbols))
	for i := range resp.Symbols {
		infos = append(infos, resp.Symbols[i].toSymbolInfo())
	}
	a.mapper.Load(infos)
	return infos, nil
}

func (a *Adapter) GetOrderbook(ctx context.Context, symbol exchange.Symbol, limit int) (*exchange.OrderBook, error) {
	pair, err := a.mapper.ToPair(symbol)
	if err != nil {
		return nil, err
	}
	q := url.Values{"symbol": {pair}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp depthResponse
	if err := a.get(ctx, PathDepth, q, false, &resp); err != nil {
		return nil, err
	}
	return resp.toOrderBook(symbol), nil
}

func (a *Adapter) GetRecentTrades(ctx context.Context, symbol exchange.Symbol, limit int) ([]exchange.Trade, error) {
	return a.fetchTrades(ctx, PathTrades, symbol, limit, false)
}

// GetHistoricalTrades pages the venue's historical trade endpoint and filters
// the requested time window client-side; MEXC takes no from/to parameters.
func (a *Adapter) GetHistoricalTrades(ctx context.Context, symbol exchange.Symbol, from, to time.Time, limit int) ([]exchange.Trade, error) {
	trades, err := a.fetchTrades(ctx, PathHistoricalTrades, symbol, limit, false)
	if err != nil {
		return nil, err
	}
	if from.IsZero() && to.IsZero() {
		return trades, nil
	}
	out := trades[:0]
	for _, t := range trades {
		if !from.IsZero() && t.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && t.Timestamp.After(to) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (a *Adapter) fetchTrades(ctx context.Context, path string, symbol exchange.Symbol, limit int, auth bool) ([]exchange.Trade, error) {
	pair, err := a.mapper.ToPair(symbol)
	if err != nil {
		return nil, err
	}
	q := url.Values{"symbol": {pair}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp []tradeDetail
	if err := a.get(ctx, path, q, auth, &resp); err != nil {
		return nil, err
	}
	trades := make([]exchange.Trade, 0, len(resp))
	for i := range resp {
		trades = append(trades, resp[i].toTrade(symbol))
	}
	return trades, nil
}

func (a *Adapter) GetTicker(ctx context.Context, symbol exchange.Symbol) (*exchange.BookTicker, error) {
	pair, err := a.mapper.ToPair(symbol)
	if err != nil {
		return nil, err
	}
	var resp ticker24hr
	if err := a.get(ctx, PathTicker24hr, url.Values{"symbol": {pair}}, false, &resp); err != nil {
		return nil, err
	}
	return resp.toBookTicker(symbol), nil
}

func (a *Adapter) GetKlines(ctx context.Context, symbol exchange.Symbol, interval string, from, to time.Time) ([]exchange.Kline, error) {
	pair, err := a.mapper.ToPair(symbol)
	if err != nil {
		return nil, err
	}
	q := url.Values{"symbol": {pair}, "interval": {interval}}
	if !from.IsZero() {
		q.Set("startTime", strconv.FormatInt(from.UnixMilli(), 10))
	}
	if !to.IsZero() {
		q.Set("endTime", strconv.FormatInt(to.UnixMilli(), 10))
	}
	q.Set("limit", strconv.Itoa(klineBatchLimit))

	var rows []klineRow
	if err := a.get(ctx, PathKlines, q, false, &rows); err != nil {
		return nil, err
	}
	klines := make([]exchange.Kline, 0, len(rows))
	for _, r := range rows {
		if k, ok := r.toKline(symbol, interval); ok {
			klines = append(klines, k)
		}
	}
	return klines, nil
}

// GetKlinesBatch walks a window larger than one page in chunks, pausing
// between requests so the venue rate limit is never the bottleneck.
func (a *Adapter) GetKlinesBatch(ctx context.Context, symbol exchange.Symbol, interval string, from, to time.Time) ([]exchange.Kline, error) {
	step, err := intervalDuration(interval)
	if err != nil {
		return nil, err
	}
	if to.IsZero() {
		to = time.Now()
	}

	var all []exchange.Kline
	chunk := step * klineBatchLimit
	for cursor := from; cursor.Before(to); cursor = cursor.Add(chunk) {
		end := cursor.Add(chunk)
		if end.After(to) {
			end = to
		}
		klines, err := a.GetKlines(ctx, symbol, interval, cursor, end)
		if err != nil {
			return nil, err
		}
		all = append(all, klines...)

		select {
		case <-ctx.Done():
			return all, exchange.NewError(exchange.KindTimeout, ctx.Err().Error())
		case <-time.After(200 * time.Millisecond):
		}
	}
	return all, nil
}

func (a *Adapter) GetBalances(ctx context.Context) ([]exchange.AssetBalance, error) {
	var resp accountResponse
	if err := a.get(ctx, PathAccount, nil, true, &resp); err != nil {
		return nil, err
	}
	balances := make([]exchange.AssetBalance, 0, len(resp.Balances))
	for i := range resp.Balances {
		balances = append(balances, resp.Balances[i].toBalance())
	}
	return balances, nil
}

func (a *Adapter) GetAssetBalance(ctx context.Context, asset string) (*exchange.AssetBalance, error) {
	balances, err := a.GetBalances(ctx)
	if err != nil {
		return nil, err
	}
	for i := range balances {
		if balances[i].Asset == asset {
			return &balances[i], nil
		}
	}
	return &exchange.AssetBalance{Asset: asset}, nil
}

func (a *Adapter) PlaceOrder(ctx context.Context, req *exchange.OrderRequest) (*exchange.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	pair, err := a.mapper.ToPair(req.Symbol)
	if err != nil {
		return nil, err
	}

	q := url.Values{
		"symbol": {pair},
		"side":   {string(req.Side)},
		"type":   {string(req.Type)},
	}
	if req.Quantity > 0 {
		q.Set("quantity", exchange.FormatQty(req.Quantity, 8))
	}
	if req.QuoteQuantity > 0 && req.Type == exchange.Market && req.Side == exchange.Buy {
		q.Set("quoteOrderQty", exchange.FormatQty(req.QuoteQuantity, 8))
	}
	if req.Price > 0 {
		q.Set("price", exchange.FormatQty(req.Price, 8))
	}
	if req.Type == exchange.StopLimit {
		q.Set("stopPrice", exchange.FormatQty(req.StopPrice, 8))
	}
	if req.ClientOrderID != "" {
		q.Set("newClientOrderId", req.ClientOrderID)
	}

	var resp orderDetail
	if err := a.do(ctx, http.MethodPost, PathOrder, q, true, &resp); err != nil {
		return nil, err
	}
	order := resp.toOrder(req.Symbol)
	if order.Status == "" {
		order.Status = exchange.OrderNew
	}
	if order.Quantity == 0 {
		order.Quantity = req.Quantity
	}
	return order, nil
}

// CancelOrder collapses an already-done order into GetOrder so double
// cancellation stays idempotent for callers.
func (a *Adapter) CancelOrder(ctx context.Context, symbol exchange.Symbol, orderID string) (*exchange.Order, error) {
	pair, err := a.mapper.ToPair(symbol)
	if err != nil {
		return nil, err
	}
	q := url.Values{"symbol": {pair}, "orderId": {orderID}}

	var resp orderDetail
	err = a.do(ctx, http.MethodDelete, PathOrder, q, true, &resp)
	if err == nil {
		order := resp.toOrder(symbol)
		if order.Status == "" {
			order.Status = exchange.OrderCanceled
		}
		return order, nil
	}

	if exchange.IsKind(err, exchange.KindOrderAlreadyDone) || exchange.IsKind(err, exchange.KindOrderNotFound) {
		log.Debug().
			Str("venue", string(exchange.MEXCSpot)).
			Str("order_id", orderID).
			Msg("Cancel on settled order, fetching terminal record")
		return a.GetOrder(ctx, symbol, orderID)
	}
	return nil, err
}

func (a *Adapter) CancelAllOrders(ctx context.Context, symbol exchange.Symbol) ([]exchange.Order, error) {
	pair, err := a.mapper.ToPair(symbol)
	if err != nil {
		return nil, err
	}
	var resp []orderDetail
	if err := a.do(ctx, http.MethodDelete, PathOpenOrders, url.Values{"symbol": {pair}}, true, &resp); err != nil {
		return nil, err
	}
	orders := make([]exchange.Order, 0, len(resp))
	for i := range resp {
		orders = append(orders, *resp[i].toOrder(symbol))
	}
	return orders, nil
}

func (a *Adapter) GetOrder(ctx context.Context, symbol exchange.Symbol, orderID string) (*exchange.Order, error) {
	pair, err := a.mapper.ToPair(symbol)
	if err != nil {
		return nil, err
	}
	q := url.Values{"symbol": {pair}, "orderId": {orderID}}
	var resp orderDetail
	if err := a.get(ctx, PathOrder, q, true, &resp); err != nil {
		return nil, err
	}
	return resp.toOrder(symbol), nil
}

// GetOpenOrders with a zero symbol returns an empty list: MEXC mandates the
// symbol parameter on this endpoint.
func (a *Adapter) GetOpenOrders(ctx context.Context, symbol exchange.Symbol) ([]exchange.Order, error) {
	if symbol.IsZero() {
		log.Debug().
			Str("venue", string(exchange.MEXCSpot)).
			Msg("Open orders requested without symbol, venue requires one")
		return []exchange.Order{}, nil
	}
	pair, err := a.mapper.ToPair(symbol)
	if err != nil {
		return nil, err
	}
	var resp []orderDetail
	if err := a.get(ctx, PathOpenOrders, url.Values{"symbol": {pair}}, true, &resp); err != nil {
		return nil, err
	}
	orders := make([]exchange.Order, 0, len(resp))
	for i := range resp {
		orders = append(orders, *resp[i].toOrder(symbol))
	}
	return orders, nil
}

func (a *Adapter) GetHistoryOrders(ctx context.Context, symbol exchange.Symbol, start, end time.Time, limit int) ([]exchange.Order, error) {
	pair, err := a.mapper.ToPair(symbol)
	if err != nil {
		return nil, err
	}
	q := url.Values{"symbol": {pair}}
	if !start.IsZero() {
		q.Set("startTime", strconv.FormatInt(start.UnixMilli(), 10))
	}
	if !end.IsZero() {
		q.Set("endTime", strconv.FormatInt(end.UnixMilli(), 10))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp []orderDetail
	if err := a.get(ctx, PathAllOrders, q, true, &resp); err != nil {
		return nil, err
	}
	orders := make([]exchange.Order, 0, len(resp))
	for i := range resp {
		orders = append(orders, *resp[i].toOrder(symbol))
	}
	return orders, nil
}

func (a *Adapter) GetAccountTrades(ctx context.Context, symbol exchange.Symbol, orderID string, start, end time.Time, limit int) ([]exchange.Trade, error) {
	pair, err := a.mapper.ToPair(symbol)
	if err != nil {
		return nil, err
	}
	q := url.Values{"symbol": {pair}}
	if orderID != "" {
		q.Set("orderId", orderID)
	}
	if !start.IsZero() {
		q.Set("startTime", strconv.FormatInt(start.UnixMilli(), 10))
	}
	if !end.IsZero() {
		q.Set("endTime", strconv.FormatInt(end.UnixMilli(), 10))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp []accountTradeDetail
	if err := a.get(ctx, PathMyTrades, q, true, &resp); err != nil {
		return nil, err
	}
	trades := make([]exchange.Trade, 0, len(resp))
	for i := range resp {
		trades = append(trades, resp[i].toTrade(symbol))
	}
	return trades, nil
}

// ModifyOrder is not available on MEXC spot: no native amend and
// cancel-and-replace is not atomic enough for a hedged book.
func (a *Adapter) ModifyOrder(ctx context.Context, symbol exchange.Symbol, orderID string, req *exchange.OrderRequest) (*exchange.Order, error) {
	return nil, exchange.NewError(exchange.KindNotSupported, "MEXC spot does not support order modification")
}

func (a *Adapter) GetAssetsInfo(ctx context.Context) ([]exchange.AssetInfo, error) {
	var resp []coinDetail
	if err := a.get(ctx, PathCapitalConfig, nil, true, &resp); err != nil {
		return nil, err
	}
	infos := make([]exchange.AssetInfo, 0, len(resp))
	for i := range resp {
		infos = append(infos, resp[i].toAssetInfo())
	}
	return infos, nil
}

// GetTradingFees reads the commission rates from exchangeInfo; MEXC has no
// dedicated fee endpoint on spot v3.
func (a *Adapter) GetTradingFees(ctx context.Context, symbol exchange.Symbol) (*exchange.Fees, error) {
	infos, err := a.GetSymbolsInfo(ctx)
	if err != nil {
		return nil, err
	}
	for i := range infos {
		if infos[i].Symbol == symbol {
			return &exchange.Fees{Symbol: symbol, Maker: infos[i].MakerFee, Taker: infos[i].TakerFee}, nil
		}
	}
	return nil, exchange.NewError(exchange.KindInvalidSymbol, "unknown symbol "+symbol.String())
}

func (a *Adapter) SubmitWithdrawal(ctx context.Context, req *exchange.WithdrawalRequest) (*exchange.WithdrawalRecord, error) {
	q := url.Values{
		"coin":    {req.Asset},
		"address": {req.Address},
		"amount":  {exchange.FormatQty(req.Amount, 8)},
	}
	if req.Network != "" {
		q.Set("netWork", req.Network)
	}
	if req.Memo != "" {
		q.Set("memo", req.Memo)
	}
	var resp withdrawResponse
	if err := a.do(ctx, http.MethodPost, PathWithdraw, q, true, &resp); err != nil {
		return nil, err
	}
	return &exchange.WithdrawalRecord{
		ID:        resp.ID,
		Asset:     req.Asset,
		Network:   req.Network,
		Address:   req.Address,
		Amount:    req.Amount,
		Status:    exchange.WithdrawalPending,
		Timestamp: time.Now(),
	}, nil
}

// CancelWithdrawal always reports false: MEXC processes withdrawals too fast
// for cancellation to be dependable, so callers must treat submitted
// withdrawals as final.
func (a *Adapter) CancelWithdrawal(ctx context.Context, withdrawalID string) (bool, error) {
	log.Debug().
		Str("venue", string(exchange.MEXCSpot)).
		Str("withdrawal_id", withdrawalID).
		Msg("Withdrawal cancellation unavailable on this venue")
	return false, nil
}

func (a *Adapter) GetWithdrawalStatus(ctx context.Context, withdrawalID string) (*exchange.WithdrawalRecord, error) {
	records, err := a.GetWithdrawalHistory(ctx, "", 0)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].ID == withdrawalID {
			return &records[i], nil
		}
	}
	return nil, exchange.NewError(exchange.KindNotFound, "withdrawal "+withdrawalID+" not found")
}

func (a *Adapter) GetWithdrawalHistory(ctx context.Context, asset string, limit int) ([]exchange.WithdrawalRecord, error) {
	q := url.Values{}
	if asset != "" {
		q.Set("coin", asset)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp []withdrawDetail
	if err := a.get(ctx, PathWithdrawHistory, q, true, &resp); err != nil {
		return nil, err
	}
	records := make([]exchange.WithdrawalRecord, 0, len(resp))
	for i := range resp {
		records = append(records, resp[i].toRecord())
	}
	return records, nil
}

func (a *Adapter) GetDepositAddress(ctx context.Context, asset, network string) (*exchange.DepositAddress, error) {
	q := url.Values{"coin": {asset}}
	if network != "" {
		q.Set("network", network)
	}
	var resp []depositAddressDetail
	if err := a.get(ctx, PathDepositAddress, q, true, &resp); err != nil {
		return nil, err
	}
	for i := range resp {
		if network == "" || resp[i].Network == network {
			return &exchange.DepositAddress{
				Asset:   resp[i].Coin,
				Network: resp[i].Network,
				Address: resp[i].Address,
				Memo:    resp[i].Memo,
			}, nil
		}
	}
	return nil, exchange.NewError(exchange.KindNotFound,
		fmt.Sprintf("no deposit address for %s on %s", asset, network))
}

func (a *Adapter) GetDepositHistory(ctx context.Context, asset string, limit int) ([]exchange.DepositRecord, error) {
	q := url.Values{}
	if asset != "" {
		q.Set("coin", asset)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp []depositDetail
	if err := a.get(ctx, PathDepositHistory, q, true, &resp); err != nil {
		return nil, err
	}
	records := make([]exchange.DepositRecord, 0, len(resp))
	for i := range resp {
		records = append(records, resp[i].toRecord())
	}
	return records, nil
}

// Listen-key lifecycle for the private WS stream.

func (a *Adapter) CreateListenKey(ctx context.Context) (string, error) {
	var resp listenKeyResponse
	if err := a.do(ctx, http.MethodPost, PathUserDataStream, nil, true, &resp); err != nil {
		return "", err
	}
	return resp.ListenKey, nil
}

func (a *Adapter) KeepAliveListenKey(ctx context.Context, key string) error {
	return a.do(ctx, http.MethodPut, PathUserDataStream, url.Values{"listenKey": {key}}, true, nil)
}

func (a *Adapter) DeleteListenKey(ctx context.Context, key string) error {
	return a.do(ctx, http.MethodDelete, PathUserDataStream, url.Values{"listenKey": {key}}, true, nil)
}

// intervalDuration maps venue kline intervals to wall-clock durations.
func intervalDuration(interval string) (time.Duration, error) {
	switch interval {
	case "1m":
		return time.Minute, nil
	case "5m":
		return 5 * time.Minute, nil
	case "15m":
		return 15 * time.Minute, nil
	case "30m":
		return 30 * time.Minute, nil
	case "60m", "1h":
		return time.Hour, nil
	case "4h":
		return 4 * time.Hour, nil
	case "1d":
		return 24 * time.Hour, nil
	default:
		return 0, exchange.NewError(exchange.KindInvalidParameter, "unsupported kline interval "+interval)
	}
}
