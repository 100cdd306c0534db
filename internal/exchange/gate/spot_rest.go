// Package gate implements the Gate.io venue adapters: spot and USDT-margined
// futures REST endpoints, v4 request signing, error classification and the
// WS dialects for both markets.
package gate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"crossarb/internal/exchange"
	"crossarb/internal/rest"
)

// REST API endpoints, spot and wallet
const (
	BaseURLProduction = "https://api.gateio.ws"

	PathSpotTime         = "/api/v4/spot/time"
	PathCurrencyPairs    = "/api/v4/spot/currency_pairs"
	PathSpotOrderBook    = "/api/v4/spot/order_book"
	PathSpotTrades       = "/api/v4/spot/trades"
	PathSpotTickers      = "/api/v4/spot/tickers"
	PathSpotCandlesticks = "/api/v4/spot/candlesticks"
	PathSpotOrders       = "/api/v4/spot/orders"
	PathSpotPriceOrders  = "/api/v4/spot/price_orders"
	PathSpotAccounts     = "/api/v4/spot/accounts"
	PathSpotMyTrades     = "/api/v4/spot/my_trades"
	PathSpotFee          = "/api/v4/spot/fee"

	PathWithdrawStatus = "/api/v4/wallet/withdraw_status"
	PathWithdrawals    = "/api/v4/withdrawals"
	PathDepositAddress = "/api/v4/wallet/deposit_address"
	PathDeposits       = "/api/v4/wallet/deposits"
)

const spotCandleBatchLimit = 1000

// SpotAdapter implements the spot contracts against Gate.io's v4 REST API.
type SpotAdapter struct {
	client *rest.Client
	mapper *Mapper
}

// NewSpotAdapter wires the REST pipeline and symbol mapper.
func NewSpotAdapter(client *rest.Client, mapper *Mapper) *SpotAdapter {
	return &SpotAdapter{client: client, mapper: mapper}
}

// Mapper exposes the symbol mapper for the facade.
func (a *SpotAdapter) Mapper() *Mapper { return a.mapper }

func (a *SpotAdapter) do(ctx context.Context, method, path string, query url.Values, payload, out interface{}, auth bool) error {
	return doJSON(ctx, a.client, method, path, query, payload, out, auth)
}

// doJSON is the shared request helper for both Gate adapters. POST/PUT bodies
// are compact JSON; the signed bytes are exactly the sent bytes.
func doJSON(ctx context.Context, client *rest.Client, method, path string, query url.Values, payload, out interface{}, auth bool) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return exchange.NewError(exchange.KindInvalidParameter, "encoding request: "+err.Error())
		}
	}
	respBody, err := client.Do(ctx, &rest.Request{
		Method: method,
		Path:   path,
		Query:  query,
		Body:   body,
		Auth:   auth,
	})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return exchange.NewError(exchange.KindServerError, "decoding response: "+err.Error())
	}
	return nil
}

// Ping reuses the server time endpoint; Gate.io has no dedicated ping.
func (a *SpotAdapter) Ping(ctx context.Context) error {
	_, err := a.GetServerTime(ctx)
	return err
}

func (a *SpotAdapter) GetServerTime(ctx context.Context) (time.Time, error) {
	var resp serverTimeResponse
	if err := a.do(ctx, http.MethodGet, PathSpotTime, nil, nil, &resp, false); err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(resp.ServerTime), nil
}

func (a *SpotAdapter) GetSymbolsInfo(ctx context.Context) ([]exchange.SymbolInfo, error) {
	var resp []currencyPairDetail
	if err := a.do(ctx, http.MethodGet, PathCurrencyPairs, nil, nil, &resp, false); err != nil {
		return nil, err
	}
	infos := make([]exchange.SymbolInfo, 0, len(resp))
	for i := range resp {
		infos = append(infos, resp[i].toSymbolInfo())
	}
	a.mapper.Load(infos)
	return infos, nil
}

func (a *SpotAdapter) GetOrderbook(ctx context.Context, symbol exchange.Symbol, limit int) (*exchange.OrderBook, error) {
	pair, err := a.mapper.ToPair(symbol)
	if err != nil {
		return nil, err
	}
	q := url.Values{"currency_pair": {pair}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp orderBookResponse
	if err := a.do(ctx, http.MethodGet, PathSpotOrderBook, q, nil, &resp, false); err != nil {
		return nil, err
	}
	return resp.toOrderBook(symbol), nil
}

func (a *SpotAdapter) GetRecentTrades(ctx context.Context, symbol exchange.Symbol, limit int) ([]exchange.Trade, error) {
	pair, err := a.mapper.ToPair(symbol)
	if err != nil {
		return nil, err
	}
	q := url.Values{"currency_pair": {pair}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp []spotTradeDetail
	if err := a.do(ctx, http.MethodGet, PathSpotTrades, q, nil, &resp, false); err != nil {
		return nil, err
	}
	trades := make([]exchange.Trade, 0, len(resp))
	for i := range resp {
		trades = append(trades, resp[i].toTrade(symbol))
	}
	return trades, nil
}

func (a *SpotAdapter) GetHistoricalTrades(ctx context.Context, symbol exchange.Symbol, from, to time.Time, limit int) ([]exchange.Trade, error) {
	pair, err := a.mapper.ToPair(symbol)
	if err != nil {
		return nil, err
	}
	q := url.Values{"currency_pair": {pair}}
	if !from.IsZero() {
		q.Set("from", strconv.FormatInt(from.Unix(), 10))
	}
	if !to.IsZero() {
		q.Set("to", strconv.FormatInt(to.Unix(), 10))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp []spotTradeDetail
	if err := a.do(ctx, http.MethodGet, PathSpotTrades, q, nil, &resp, false); err != nil {
		return nil, err
	}
	trades := make([]exchange.Trade, 0, len(resp))
	for i := range resp {
		trades = append(trades, resp[i].toTrade(symbol))
	}
	return trades, nil
}

// GetTicker returns best bid/ask prices from /spot/tickers. The endpoint
// carries no queue sizes; live sizes come from the WS book ticker stream.
func (a *SpotAdapter) GetTicker(ctx context.Context, symbol exchange.Symbol) (*exchange.BookTicker, error) {
	pair, err := a.mapper.ToPair(symbol)
	if err != nil {
		return nil, err
	}
	var resp []spotTickerDetail
	if err := a.do(ctx, http.MethodGet, PathSpotTickers, url.Values{"currency_pair": {pair}}, nil, &resp, false); err != nil {
		return nil, err
	}
	if len(resp) == 0 {
		return nil, exchange.NewError(exchange.KindInvalidSymbol, "no ticker for "+symbol.String())
	}
	return resp[0].toBookTicker(symbol), nil
}

func (a *SpotAdapter) GetKlines(ctx context.Context, symbol exchange.Symbol, interval string, from, to time.Time) ([]exchange.Kline, error) {
	pair, err := a.mapper.ToPair(symbol)
	if err != nil {
		return nil, err
	}
	step, err := gateIntervalDuration(interval)
	if err != nil {
		return nil, err
	}
	q := url.Values{"currency_pair": {pair}, "interval": {interval}}
	if !from.IsZero() {
		q.Set("from", strconv.FormatInt(from.Unix(), 10))
	}
	if !to.IsZero() {
		q.Set("to", strconv.FormatInt(to.Unix(), 10))
	}
	var rows []spotCandle
	if err := a.do(ctx, http.MethodGet, PathSpotCandlesticks, q, nil, &rows, false); err != nil {
		return nil, err
	}
	klines := make([]exchange.Kline, 0, len(rows))
	for _, r := range rows {
		if k, ok := r.toKline(symbol, interval, step); ok {
			klines = append(klines, k)
		}
	}
	return klines, nil
}

func (a *SpotAdapter) GetKlinesBatch(ctx context.Context, symbol exchange.Symbol, interval string, from, to time.Time) ([]exchange.Kline, error) {
	step, err := gateIntervalDuration(interval)
	if err != nil {
		return nil, err
	}
	if to.IsZero() {
		to = time.Now()
	}

	var all []exchange.Kline
	chunk := step * spotCandleBatchLimit
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

func (a *SpotAdapter) GetBalances(ctx context.Context) ([]exchange.AssetBalance, error) {
	var resp []spotAccountDetail
	if err := a.do(ctx, http.MethodGet, PathSpotAccounts, nil, nil, &resp, true); err != nil {
		return nil, err
	}
	balances := make([]exchange.AssetBalance, 0, len(resp))
	for i := range resp {
		balances = append(balances, resp[i].toBalance())
	}
	return balances, nil
}

func (a *SpotAdapter) GetAssetBalance(ctx context.Context, asset string) (*exchange.AssetBalance, error) {
	var resp []spotAccountDetail
	q := url.Values{"currency": {asset}}
	if err := a.do(ctx, http.MethodGet, PathSpotAccounts, q, nil, &resp, true); err != nil {
		return nil, err
	}
	if len(resp) == 0 {
		return &exchange.AssetBalance{Asset: asset}, nil
	}
	b := resp[0].toBalance()
	return &b, nil
}

// spotOrderPayload is the POST /spot/orders body. Field order is fixed so
// the compact JSON bytes are reproducible for signing.
type spotOrderPayload struct {
	Text         string `json:"text,omitempty"`
	CurrencyPair string `json:"currency_pair"`
	Side         string `json:"side"`
	Type         string `json:"type"`
	Amount       string `json:"amount"`
	Price        string `json:"price,omitempty"`
	TimeInForce  string `json:"time_in_force,omitempty"`
	Iceberg      string `json:"iceberg,omitempty"`
}

func (a *SpotAdapter) PlaceOrder(ctx context.Context, req *exchange.OrderRequest) (*exchange.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	pair, err := a.mapper.ToPair(req.Symbol)
	if err != nil {
		return nil, err
	}
	if req.Type == exchange.StopLimit {
		return a.placeTriggered(ctx, req, pair)
	}

	payload := spotOrderPayload{
		CurrencyPair: pair,
		Side:         map[exchange.Side]string{exchange.Buy: "buy", exchange.Sell: "sell"}[req.Side],
		Type:         "limit",
		Amount:       exchange.FormatQty(req.Quantity, 8),
	}
	if req.ClientOrderID != "" {
		payload.Text = "t-" + req.ClientOrderID
	}
	switch req.Type {
	case exchange.Market:
		payload.Type = "market"
		// market buys on Gate.io take the quote amount
		if req.Side == exchange.Buy {
			quote := req.QuoteQuantity
			if quote == 0 {
				quote = req.Quantity * req.Price
			}
			payload.Amount = exchange.FormatQty(quote, 8)
		}
		payload.TimeInForce = "ioc"
	case exchange.LimitMaker:
		payload.Price = exchange.FormatQty(req.Price, 8)
		payload.TimeInForce = "poc"
	default:
		payload.Price = exchange.FormatQty(req.Price, 8)
		if req.TimeInForce != "" {
			payload.TimeInForce = map[exchange.TimeInForce]string{
				exchange.GTC: "gtc", exchange.IOC: "ioc", exchange.FOK: "fok", exchange.POC: "poc",
			}[req.TimeInForce]
		}
	}
	if req.Iceberg > 0 {
		payload.Iceberg = exchange.FormatQty(req.Iceberg, 8)
	}

	var resp spotOrderDetail
	if err := a.do(ctx, http.MethodPost, PathSpotOrders, nil, payload, &resp, true); err != nil {
		return nil, err
	}
	return resp.toOrder(req.Symbol), nil
}

// spotTriggeredPayload is the POST /spot/price_orders body: the trigger rule
// plus the order put on the book once it fires.
type spotTriggeredPayload struct {
	Trigger spotTriggerRule  `json:"trigger"`
	Put     spotTriggeredPut `json:"put"`
	Market  string           `json:"market"`
}

type spotTriggerRule struct {
	Price      string `json:"price"`
	Rule       string `json:"rule"`
	Expiration int    `json:"expiration"`
}

type spotTriggeredPut struct {
	Type        string `json:"type"`
	Side        string `json:"side"`
	Price       string `json:"price"`
	Amount      string `json:"amount"`
	Account     string `json:"account"`
	TimeInForce string `json:"time_in_force"`
}

// placeTriggered books a stop-limit through the price-triggered endpoint. A
// buy fires when the last price rises to the stop, a sell when it falls to it.
func (a *SpotAdapter) placeTriggered(ctx context.Context, req *exchange.OrderRequest, pair string) (*exchange.Order, error) {
	rule := ">="
	if req.Side == exchange.Sell {
		rule = "<="
	}
	tif := "gtc"
	if req.TimeInForce == exchange.IOC {
		tif = "ioc"
	}
	payload := spotTriggeredPayload{
		Trigger: spotTriggerRule{
			Price:      exchange.FormatQty(req.StopPrice, 8),
			Rule:       rule,
			Expiration: 86400,
		},
		Put: spotTriggeredPut{
			Type:        "limit",
			Side:        map[exchange.Side]string{exchange.Buy: "buy", exchange.Sell: "sell"}[req.Side],
			Price:       exchange.FormatQty(req.Price, 8),
			Amount:      exchange.FormatQty(req.Quantity, 8),
			Account:     "normal",
			TimeInForce: tif,
		},
		Market: pair,
	}

	var resp struct {
		ID int64 `json:"id"`
	}
	if err := a.do(ctx, http.MethodPost, PathSpotPriceOrders, nil, payload, &resp, true); err != nil {
		return nil, err
	}
	return &exchange.Order{
		ID:                strconv.FormatInt(resp.ID, 10),
		ClientOrderID:     req.ClientOrderID,
		Symbol:            req.Symbol,
		Side:              req.Side,
		Type:              exchange.StopLimit,
		Quantity:          req.Quantity,
		Price:             req.Price,
		RemainingQuantity: req.Quantity,
		Status:            exchange.OrderNew,
		TimeInForce:       req.TimeInForce,
		Timestamp:         time.Now(),
	}, nil
}

// CancelOrder collapses an already-done order into GetOrder so double
// cancellation stays idempotent for callers.
func (a *SpotAdapter) CancelOrder(ctx context.Context, symbol exchange.Symbol, orderID string) (*exchange.Order, error) {
	pair, err := a.mapper.ToPair(symbol)
	if err != nil {
		return nil, err
	}
	q := url.Values{"currency_pair": {pair}}

	var resp spotOrderDetail
	err = a.do(ctx, http.MethodDelete, PathSpotOrders+"/"+orderID, q, nil, &resp, true)
	if err == nil {
		order := resp.toOrder(symbol)
		if !order.Status.IsTerminal() {
			order.Status = exchange.OrderCanceled
		}
		return order, nil
	}

	if exchange.IsKind(err, exchange.KindOrderAlreadyDone) || exchange.IsKind(err, exchange.KindOrderNotFound) {
		log.Debug().
			Str("venue", string(exchange.GateSpot)).
			Str("order_id", orderID).
			Msg("Cancel on settled order, fetching terminal record")
		return a.GetOrder(ctx, symbol, orderID)
	}
	return nil, err
}

func (a *SpotAdapter) CancelAllOrders(ctx context.Context, symbol exchange.Symbol) ([]exchange.Order, error) {
	pair, err := a.mapper.ToPair(symbol)
	if err != nil {
		return nil, err
	}
	var resp []spotOrderDetail
	if err := a.do(ctx, http.MethodDelete, PathSpotOrders, url.Values{"currency_pair": {pair}}, nil, &resp, true); err != nil {
		return nil, err
	}
	orders := make([]exchange.Order, 0, len(resp))
	for i := range resp {
		orders = append(orders, *resp[i].toOrder(symbol))
	}
	return orders, nil
}

func (a *SpotAdapter) GetOrder(ctx context.Context, symbol exchange.Symbol, orderID string) (*exchange.Order, error) {
	pair, err := a.mapper.ToPair(symbol)
	if err != nil {
		return nil, err
	}
	var resp spotOrderDetail
	if err := a.do(ctx, http.MethodGet, PathSpotOrders+"/"+orderID, url.Values{"currency_pair": {pair}}, nil, &resp, true); err != nil {
		return nil, err
	}
	return resp.toOrder(symbol), nil
}

func (a *SpotAdapter) GetOpenOrders(ctx context.Context, symbol exchange.Symbol) ([]exchange.Order, error) {
	if symbol.IsZero() {
		log.Debug().
			Str("venue", string(exchange.GateSpot)).
			Msg("Open orders requested without symbol, venue requires one")
		return []exchange.Order{}, nil
	}
	pair, err := a.mapper.ToPair(symbol)
	if err != nil {
		return nil, err
	}
	q := url.Values{"currency_pair": {pair}, "status": {"open"}}
	var resp []spotOrderDetail
	if err := a.do(ctx, http.MethodGet, PathSpotOrders, q, nil, &resp, true); err != nil {
		return nil, err
	}
	orders := make([]exchange.Order, 0, len(resp))
	for i := range resp {
		orders = append(orders, *resp[i].toOrder(symbol))
	}
	return orders, nil
}

func (a *SpotAdapter) GetHistoryOrders(ctx context.Context, symbol exchange.Symbol, start, end time.Time, limit int) ([]exchange.Order, error) {
	pair, err := a.mapper.ToPair(symbol)
	if err != nil {
		return nil, err
	}
	q := url.Values{"currency_pair": {pair}, "status": {"finished"}}
	if !start.IsZero() {
		q.Set("from", strconv.FormatInt(start.Unix(), 10))
	}
	if !end.IsZero() {
		q.Set("to", strconv.FormatInt(end.Unix(), 10))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp []spotOrderDetail
	if err := a.do(ctx, http.MethodGet, PathSpotOrders, q, nil, &resp, true); err != nil {
		return nil, err
	}
	orders := make([]exchange.Order, 0, len(resp))
	for i := range resp {
		orders = append(orders, *resp[i].toOrder(symbol))
	}
	return orders, nil
}

func (a *SpotAdapter) GetAccountTrades(ctx context.Context, symbol exchange.Symbol, orderID string, start, end time.Time, limit int) ([]exchange.Trade, error) {
	pair, err := a.mapper.ToPair(symbol)
	if err != nil {
		return nil, err
	}
	q := url.Values{"currency_pair": {pair}}
	if orderID != "" {
		q.Set("order_id", orderID)
	}
	if !start.IsZero() {
		q.Set("from", strconv.FormatInt(start.Unix(), 10))
	}
	if !end.IsZero() {
		q.Set("to", strconv.FormatInt(end.Unix(), 10))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp []spotMyTradeDetail
	if err := a.do(ctx, http.MethodGet, PathSpotMyTrades, q, nil, &resp, true); err != nil {
		return nil, err
	}
	trades := make([]exchange.Trade, 0, len(resp))
	for i := range resp {
		trades = append(trades, resp[i].toTrade(symbol))
	}
	return trades, nil
}

// ModifyOrder is cancel-and-replace; the replacement reuses the original
// request with the new price/quantity.
func (a *SpotAdapter) ModifyOrder(ctx context.Context, symbol exchange.Symbol, orderID string, req *exchange.OrderRequest) (*exchange.Order, error) {
	if _, err := a.CancelOrder(ctx, symbol, orderID); err != nil {
		return nil, err
	}
	req.Symbol = symbol
	return a.PlaceOrder(ctx, req)
}

func (a *SpotAdapter) GetAssetsInfo(ctx context.Context) ([]exchange.AssetInfo, error) {
	var resp []withdrawStatusDetail
	if err := a.do(ctx, http.MethodGet, PathWithdrawStatus, nil, nil, &resp, true); err != nil {
		return nil, err
	}
	infos := make([]exchange.AssetInfo, 0, len(resp))
	for i := range resp {
		infos = append(infos, exchange.AssetInfo{
			Asset: resp[i].Currency,
			Networks: []exchange.AssetNetwork{{
				Network:         resp[i].Currency,
				DepositEnabled:  resp[i].Deposit != "",
				WithdrawEnabled: resp[i].WithdrawFix != "",
				WithdrawFee:     parseF(resp[i].WithdrawFix),
			}},
		})
	}
	return infos, nil
}

// GetTradingFees is account-level on Gate.io: the currency_pair parameter
// narrows the response but the rates apply to the account tier.
func (a *SpotAdapter) GetTradingFees(ctx context.Context, symbol exchange.Symbol) (*exchange.Fees, error) {
	q := url.Values{}
	if !symbol.IsZero() {
		pair, err := a.mapper.ToPair(symbol)
		if err != nil {
			return nil, err
		}
		q.Set("currency_pair", pair)
	}
	var resp spotFeeDetail
	if err := a.do(ctx, http.MethodGet, PathSpotFee, q, nil, &resp, true); err != nil {
		return nil, err
	}
	return &exchange.Fees{
		Symbol: symbol,
		Maker:  parseF(resp.MakerFee),
		Taker:  parseF(resp.TakerFee),
	}, nil
}

// withdrawalPayload is the POST /withdrawals body.
type withdrawalPayload struct {
	Currency string `json:"currency"`
	Chain    string `json:"chain,omitempty"`
	Address  string `json:"address"`
	Memo     string `json:"memo,omitempty"`
	Amount   string `json:"amount"`
}

func (a *SpotAdapter) SubmitWithdrawal(ctx context.Context, req *exchange.WithdrawalRequest) (*exchange.WithdrawalRecord, error) {
	payload := withdrawalPayload{
		Currency: req.Asset,
		Chain:    req.Network,
		Address:  req.Address,
		Memo:     req.Memo,
		Amount:   exchange.FormatQty(req.Amount, 8),
	}
	var resp withdrawalDetail
	if err := a.do(ctx, http.MethodPost, PathWithdrawals, nil, payload, &resp, true); err != nil {
		return nil, err
	}
	record := resp.toRecord()
	return &record, nil
}

// CancelWithdrawal issues DELETE /withdrawals/{id}; Gate.io allows
// cancellation while the withdrawal is still pending review.
func (a *SpotAdapter) CancelWithdrawal(ctx context.Context, withdrawalID string) (bool, error) {
	err := a.do(ctx, http.MethodDelete, PathWithdrawals+"/"+withdrawalID, nil, nil, nil, true)
	if err == nil {
		return true, nil
	}
	if exchange.IsKind(err, exchange.KindNotFound) || exchange.IsKind(err, exchange.KindOrderAlreadyDone) {
		return false, nil
	}
	return false, err
}

func (a *SpotAdapter) GetWithdrawalStatus(ctx context.Context, withdrawalID string) (*exchange.WithdrawalRecord, error) {
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

func (a *SpotAdapter) GetWithdrawalHistory(ctx context.Context, asset string, limit int) ([]exchange.WithdrawalRecord, error) {
	q := url.Values{}
	if asset != "" {
		q.Set("currency", asset)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp []withdrawalDetail
	if err := a.do(ctx, http.MethodGet, PathWithdrawals, q, nil, &resp, true); err != nil {
		return nil, err
	}
	records := make([]exchange.WithdrawalRecord, 0, len(resp))
	for i := range resp {
		records = append(records, resp[i].toRecord())
	}
	return records, nil
}

func (a *SpotAdapter) GetDepositAddress(ctx context.Context, asset, network string) (*exchange.DepositAddress, error) {
	var resp depositAddressResponse
	if err := a.do(ctx, http.MethodGet, PathDepositAddress, url.Values{"currency": {asset}}, nil, &resp, true); err != nil {
		return nil, err
	}
	for _, ma := range resp.MultichainAddresses {
		if network == "" || ma.Chain == network {
			return &exchange.DepositAddress{
				Asset:   resp.Currency,
				Network: ma.Chain,
				Address: ma.Address,
				Memo:    ma.PaymentID,
			}, nil
		}
	}
	if resp.Address != "" {
		return &exchange.DepositAddress{Asset: resp.Currency, Network: network, Address: resp.Address}, nil
	}
	return nil, exchange.NewError(exchange.KindNotFound, "no deposit address for "+asset)
}

func (a *SpotAdapter) GetDepositHistory(ctx context.Context, asset string, limit int) ([]exchange.DepositRecord, error) {
	q := url.Values{}
	if asset != "" {
		q.Set("currency", asset)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp []depositDetail
	if err := a.do(ctx, http.MethodGet, PathDeposits, q, nil, &resp, true); err != nil {
		return nil, err
	}
	records := make([]exchange.DepositRecord, 0, len(resp))
	for i := range resp {
		records = append(records, resp[i].toRecord())
	}
	return records, nil
}

// gateIntervalDuration maps venue candlestick intervals to durations.
func gateIntervalDuration(interval string) (time.Duration, error) {
	switch interval {
	case "10s":
		return 10 * time.Second, nil
	case "1m":
		return time.Minute, nil
	case "5m":
		return 5 * time.Minute, nil
	case "15m":
		return 15 * time.Minute, nil
	case "30m":
		return 30 * time.Minute, nil
	case "1h":
		return time.Hour, nil
	case "4h":
		return 4 * time.Hour, nil
	case "8h":
		return 8 * time.Hour, nil
	case "1d":
		return 24 * time.Hour, nil
	default:
		return 0, exchange.NewError(exchange.KindInvalidParameter, "unsupported candlestick interval "+interval)
	}
}
