package gate

import (
	"context"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"crossarb/internal/exchange"
	"crossarb/internal/rest"
)

// Settle currencies for the perpetual futures API. Endpoints are scoped per
// settle: /api/v4/futures/{settle}/...
const (
	SettleUSDT = "usdt"
	SettleBTC  = "btc"
)

// USDT-settle endpoint paths, the common case.
const (
	PathFuturesContracts    = "/api/v4/futures/usdt/contracts"
	PathFuturesOrderBook    = "/api/v4/futures/usdt/order_book"
	PathFuturesTrades       = "/api/v4/futures/usdt/trades"
	PathFuturesTickers      = "/api/v4/futures/usdt/tickers"
	PathFuturesCandlesticks = "/api/v4/futures/usdt/candlesticks"
	PathFuturesFundingRate  = "/api/v4/futures/usdt/funding_rate"
	PathFuturesOrders       = "/api/v4/futures/usdt/orders"
	PathFuturesAccounts     = "/api/v4/futures/usdt/accounts"
	PathFuturesPositions    = "/api/v4/futures/usdt/positions"
	PathFuturesMyTrades     = "/api/v4/futures/usdt/my_trades"
	PathFuturesFee          = "/api/v4/futures/usdt/fee"
)

const futuresCandleBatchLimit = 1000

// FuturesAdapter implements the futures contracts against Gate.io's
// settle-scoped perpetual API. The venue sizes orders in signed integer
// contracts; the adapter converts to and from base quantities using the
// contract multiplier discovered with the instrument metadata.
type FuturesAdapter struct {
	client *rest.Client
	mapper *Mapper
	settle string

	mu    sync.RWMutex
	infos map[exchange.Symbol]exchange.SymbolInfo
}

// NewFuturesAdapter wires the REST pipeline and symbol mapper. An empty
// settle means USDT.
func NewFuturesAdapter(client *rest.Client, mapper *Mapper, settle string) *FuturesAdapter {
	if settle == "" {
		settle = SettleUSDT
	}
	return &FuturesAdapter{
		client: client,
		mapper: mapper,
		settle: settle,
		infos:  make(map[exchange.Symbol]exchange.SymbolInfo),
	}
}

// path builds a settle-scoped endpoint path.
func (a *FuturesAdapter) path(endpoint string) string {
	return "/api/v4/futures/" + a.settle + "/" + endpoint
}

// Mapper exposes the symbol mapper for the facade.
func (a *FuturesAdapter) Mapper() *Mapper { return a.mapper }

func (a *FuturesAdapter) do(ctx context.Context, method, path string, query url.Values, payload, out interface{}, auth bool) error {
	return doJSON(ctx, a.client, method, path, query, payload, out, auth)
}

// contractSize resolves the base-units-per-contract multiplier, loading the
// contract table on first use.
func (a *FuturesAdapter) contractSize(ctx context.Context, symbol exchange.Symbol) (float64, error) {
	a.mu.RLock()
	info, ok := a.infos[symbol]
	a.mu.RUnlock()
	if ok {
		return info.ContractSize, nil
	}
	if _, err := a.GetSymbolsInfo(ctx); err != nil {
		return 0, err
	}
	a.mu.RLock()
	info, ok = a.infos[symbol]
	a.mu.RUnlock()
	if !ok {
		return 0, exchange.NewError(exchange.KindInvalidSymbol, "no contract for "+symbol.String())
	}
	return info.ContractSize, nil
}

// toContracts converts a base quantity into whole contracts, rounding to the
// nearest contract. A quantity below half a contract is a sizing error.
func toContracts(qty, contractSize float64) (int64, error) {
	if contractSize <= 0 {
		return 0, exchange.NewError(exchange.KindInvalidParameter, "contract size not loaded")
	}
	n := int64(math.Round(qty / contractSize))
	if n <= 0 {
		return 0, exchange.NewError(exchange.KindOrderSizeError,
			"quantity "+exchange.FormatQty(qty, 8)+" below one contract")
	}
	return n, nil
}

// Ping reuses the spot time endpoint; the futures API has none.
func (a *FuturesAdapter) Ping(ctx context.Context) error {
	_, err := a.GetServerTime(ctx)
	return err
}

func (a *FuturesAdapter) GetServerTime(ctx context.Context) (time.Time, error) {
	var resp serverTimeResponse
	if err := a.do(ctx, http.MethodGet, PathSpotTime, nil, nil, &resp, false); err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(resp.ServerTime), nil
}

func (a *FuturesAdapter) GetSymbolsInfo(ctx context.Context) ([]exchange.SymbolInfo, error) {
	var resp []contractDetail
	if err := a.do(ctx, http.MethodGet, a.path("contracts"), nil, nil, &resp, false); err != nil {
		return nil, err
	}
	infos := make([]exchange.SymbolInfo, 0, len(resp))
	for i := range resp {
		info, err := resp[i].toSymbolInfo(a.mapper)
		if err != nil {
			log.Warn().Err(err).Str("contract", resp[i].Name).Msg("Skipping unmappable contract")
			continue
		}
		infos = append(infos, info)
	}
	a.mapper.Load(infos)

	a.mu.Lock()
	for _, info := range infos {
		a.infos[info.Symbol] = info
	}
	a.mu.Unlock()
	return infos, nil
}

func (a *FuturesAdapter) GetOrderbook(ctx context.Context, symbol exchange.Symbol, limit int) (*exchange.OrderBook, error) {
	contract, err := a.mapper.ToPair(symbol)
	if err != nil {
		return nil, err
	}
	size, err := a.contractSize(ctx, symbol)
	if err != nil {
		return nil, err
	}
	q := url.Values{"contract": {contract}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp futuresOrderBookResponse
	if err := a.do(ctx, http.MethodGet, a.path("order_book"), q, nil, &resp, false); err != nil {
		return nil, err
	}
	book := &exchange.OrderBook{
		Symbol:    symbol,
		Bids:      make([]exchange.PriceLevel, 0, len(resp.Bids)),
		Asks:      make([]exchange.PriceLevel, 0, len(resp.Asks)),
		Timestamp: time.UnixMilli(int64(resp.Current * 1000)),
	}
	for _, lv := range resp.Bids {
		book.Bids = append(book.Bids, exchange.PriceLevel{Price: parseF(lv.Price), Size: float64(lv.Size) * size})
	}
	for _, lv := range resp.Asks {
		book.Asks = append(book.Asks, exchange.PriceLevel{Price: parseF(lv.Price), Size: float64(lv.Size) * size})
	}
	return book, nil
}

func (a *FuturesAdapter) futuresTrades(ctx context.Context, symbol exchange.Symbol, q url.Values) ([]exchange.Trade, error) {
	size, err := a.contractSize(ctx, symbol)
	if err != nil {
		return nil, err
	}
	var resp []futuresTradeDetail
	if err := a.do(ctx, http.MethodGet, a.path("trades"), q, nil, &resp, false); err != nil {
		return nil, err
	}
	trades := make([]exchange.Trade, 0, len(resp))
	for _, t := range resp {
		side := exchange.Buy
		contracts := t.Size
		if contracts < 0 {
			side = exchange.Sell
			contracts = -contracts
		}
		trades = append(trades, exchange.Trade{
			TradeID:   strconv.FormatInt(t.ID, 10),
			Symbol:    symbol,
			Price:     parseF(t.Price),
			Quantity:  float64(contracts) * size,
			Side:      side,
			Timestamp: time.UnixMilli(int64(t.CreateTime)),
		})
	}
	return trades, nil
}

func (a *FuturesAdapter) GetRecentTrades(ctx context.Context, symbol exchange.Symbol, limit int) ([]exchange.Trade, error) {
	contract, err := a.mapper.ToPair(symbol)
	if err != nil {
		return nil, err
	}
	q := url.Values{"contract": {contract}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return a.futuresTrades(ctx, symbol, q)
}

func (a *FuturesAdapter) GetHistoricalTrades(ctx context.Context, symbol exchange.Symbol, from, to time.Time, limit int) ([]exchange.Trade, error) {
	contract, err := a.mapper.ToPair(symbol)
	if err != nil {
		return nil, err
	}
	q := url.Values{"contract": {contract}}
	if !from.IsZero() {
		q.Set("from", strconv.FormatInt(from.Unix(), 10))
	}
	if !to.IsZero() {
		q.Set("to", strconv.FormatInt(to.Unix(), 10))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return a.futuresTrades(ctx, symbol, q)
}

func (a *FuturesAdapter) GetTicker(ctx context.Context, symbol exchange.Symbol) (*exchange.BookTicker, error) {
	contract, err := a.mapper.ToPair(symbol)
	if err != nil {
		return nil, err
	}
	var resp []futuresTickerDetail
	if err := a.do(ctx, http.MethodGet, a.path("tickers"), url.Values{"contract": {contract}}, nil, &resp, false); err != nil {
		return nil, err
	}
	if len(resp) == 0 {
		return nil, exchange.NewError(exchange.KindInvalidSymbol, "no ticker for "+symbol.String())
	}
	return &exchange.BookTicker{
		Symbol:    symbol,
		BidPrice:  parseF(resp[0].HighestBid),
		AskPrice:  parseF(resp[0].LowestAsk),
		Timestamp: time.Now(),
	}, nil
}

func (a *FuturesAdapter) GetKlines(ctx context.Context, symbol exchange.Symbol, interval string, from, to time.Time) ([]exchange.Kline, error) {
	contract, err := a.mapper.ToPair(symbol)
	if err != nil {
		return nil, err
	}
	size, err := a.contractSize(ctx, symbol)
	if err != nil {
		return nil, err
	}
	step, err := gateIntervalDuration(interval)
	if err != nil {
		return nil, err
	}
	q := url.Values{"contract": {contract}, "interval": {interval}}
	if !from.IsZero() {
		q.Set("from", strconv.FormatInt(from.Unix(), 10))
	}
	if !to.IsZero() {
		q.Set("to", strconv.FormatInt(to.Unix(), 10))
	}
	var rows []futuresCandle
	if err := a.do(ctx, http.MethodGet, a.path("candlesticks"), q, nil, &rows, false); err != nil {
		return nil, err
	}
	klines := make([]exchange.Kline, 0, len(rows))
	for _, r := range rows {
		open := time.Unix(r.T, 0)
		klines = append(klines, exchange.Kline{
			Symbol:    symbol,
			Interval:  interval,
			OpenTime:  open,
			Open:      parseF(r.O),
			High:      parseF(r.H),
			Low:       parseF(r.L),
			Close:     parseF(r.C),
			Volume:    float64(r.V) * size,
			CloseTime: open.Add(step),
		})
	}
	return klines, nil
}

func (a *FuturesAdapter) GetKlinesBatch(ctx context.Context, symbol exchange.Symbol, interval string, from, to time.Time) ([]exchange.Kline, error) {
	step, err := gateIntervalDuration(interval)
	if err != nil {
		return nil, err
	}
	if to.IsZero() {
		to = time.Now()
	}

	var all []exchange.Kline
	chunk := step * futuresCandleBatchLimit
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

func (a *FuturesAdapter) GetFundingRate(ctx context.Context, symbol exchange.Symbol) (*exchange.FundingRate, error) {
	contract, err := a.mapper.ToPair(symbol)
	if err != nil {
		return nil, err
	}
	q := url.Values{"contract": {contract}, "limit": {"1"}}
	var resp []fundingRateDetail
	if err := a.do(ctx, http.MethodGet, a.path("funding_rate"), q, nil, &resp, false); err != nil {
		return nil, err
	}
	if len(resp) == 0 {
		return nil, exchange.NewError(exchange.KindNotFound, "no funding rate for "+symbol.String())
	}
	return &exchange.FundingRate{
		Symbol:          symbol,
		Rate:            parseF(resp[0].R),
		NextFundingTime: time.Unix(resp[0].T, 0),
		Timestamp:       time.Now(),
	}, nil
}

// GetBalances reports the single USDT margin account of the settle currency.
func (a *FuturesAdapter) GetBalances(ctx context.Context) ([]exchange.AssetBalance, error) {
	var resp futuresAccountResponse
	if err := a.do(ctx, http.MethodGet, a.path("accounts"), nil, nil, &resp, true); err != nil {
		return nil, err
	}
	return []exchange.AssetBalance{{
		Asset:     resp.Currency,
		Available: parseF(resp.Available),
		Locked:    parseF(resp.PositionMargin) + parseF(resp.OrderMargin),
	}}, nil
}

func (a *FuturesAdapter) GetAssetBalance(ctx context.Context, asset string) (*exchange.AssetBalance, error) {
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

// futuresOrderPayload is the POST /futures/usdt/orders body. Size is signed
// contracts: positive long, negative short. Price "0" means market.
type futuresOrderPayload struct {
	Contract   string `json:"contract"`
	Size       int64  `json:"size"`
	Price      string `json:"price"`
	TIF        string `json:"tif,omitempty"`
	Text       string `json:"text,omitempty"`
	ReduceOnly bool   `json:"reduce_only,omitempty"`
}

func (a *FuturesAdapter) PlaceOrder(ctx context.Context, req *exchange.OrderRequest) (*exchange.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Type == exchange.StopLimit {
		return nil, exchange.NewError(exchange.KindNotSupported,
			"stop-limit orders are not wired for futures")
	}
	contract, err := a.mapper.ToPair(req.Symbol)
	if err != nil {
		return nil, err
	}
	size, err := a.contractSize(ctx, req.Symbol)
	if err != nil {
		return nil, err
	}
	contracts, err := toContracts(req.Quantity, size)
	if err != nil {
		return nil, err
	}
	if req.Side == exchange.Sell {
		contracts = -contracts
	}

	payload := futuresOrderPayload{
		Contract:   contract,
		Size:       contracts,
		ReduceOnly: req.ReduceOnly,
	}
	if req.ClientOrderID != "" {
		payload.Text = "t-" + req.ClientOrderID
	}
	switch req.Type {
	case exchange.Market:
		payload.Price = "0"
		payload.TIF = "ioc"
	case exchange.LimitMaker:
		payload.Price = exchange.FormatQty(req.Price, 8)
		payload.TIF = "poc"
	default:
		payload.Price = exchange.FormatQty(req.Price, 8)
		payload.TIF = "gtc"
		if req.TimeInForce != "" {
			payload.TIF = map[exchange.TimeInForce]string{
				exchange.GTC: "gtc", exchange.IOC: "ioc", exchange.FOK: "fok", exchange.POC: "poc",
			}[req.TimeInForce]
		}
	}

	var resp futuresOrderDetail
	if err := a.do(ctx, http.MethodPost, a.path("orders"), nil, payload, &resp, true); err != nil {
		return nil, err
	}
	return resp.toOrder(req.Symbol, size), nil
}

func (a *FuturesAdapter) CancelOrder(ctx context.Context, symbol exchange.Symbol, orderID string) (*exchange.Order, error) {
	size, err := a.contractSize(ctx, symbol)
	if err != nil {
		return nil, err
	}
	var resp futuresOrderDetail
	err = a.do(ctx, http.MethodDelete, a.path("orders")+"/"+orderID, nil, nil, &resp, true)
	if err == nil {
		order := resp.toOrder(symbol, size)
		if !order.Status.IsTerminal() {
			order.Status = exchange.OrderCanceled
		}
		return order, nil
	}
	if exchange.IsKind(err, exchange.KindOrderAlreadyDone) || exchange.IsKind(err, exchange.KindOrderNotFound) {
		log.Debug().
			Str("venue", string(exchange.GateFuturesUSDT)).
			Str("order_id", orderID).
			Msg("Cancel on settled order, fetching terminal record")
		return a.GetOrder(ctx, symbol, orderID)
	}
	return nil, err
}

func (a *FuturesAdapter) CancelAllOrders(ctx context.Context, symbol exchange.Symbol) ([]exchange.Order, error) {
	contract, err := a.mapper.ToPair(symbol)
	if err != nil {
		return nil, err
	}
	size, err := a.contractSize(ctx, symbol)
	if err != nil {
		return nil, err
	}
	var resp []futuresOrderDetail
	if err := a.do(ctx, http.MethodDelete, a.path("orders"), url.Values{"contract": {contract}}, nil, &resp, true); err != nil {
		return nil, err
	}
	orders := make([]exchange.Order, 0, len(resp))
	for i := range resp {
		orders = append(orders, *resp[i].toOrder(symbol, size))
	}
	return orders, nil
}

func (a *FuturesAdapter) GetOrder(ctx context.Context, symbol exchange.Symbol, orderID string) (*exchange.Order, error) {
	size, err := a.contractSize(ctx, symbol)
	if err != nil {
		return nil, err
	}
	var resp futuresOrderDetail
	if err := a.do(ctx, http.MethodGet, a.path("orders")+"/"+orderID, nil, nil, &resp, true); err != nil {
		return nil, err
	}
	return resp.toOrder(symbol, size), nil
}

func (a *FuturesAdapter) GetOpenOrders(ctx context.Context, symbol exchange.Symbol) ([]exchange.Order, error) {
	if symbol.IsZero() {
		log.Debug().
			Str("venue", string(exchange.GateFuturesUSDT)).
			Msg("Open orders requested without symbol, venue requires one")
		return []exchange.Order{}, nil
	}
	return a.listOrders(ctx, symbol, "open", time.Time{}, time.Time{}, 0)
}

func (a *FuturesAdapter) GetHistoryOrders(ctx context.Context, symbol exchange.Symbol, start, end time.Time, limit int) ([]exchange.Order, error) {
	return a.listOrders(ctx, symbol, "finished", start, end, limit)
}

func (a *FuturesAdapter) listOrders(ctx context.Context, symbol exchange.Symbol, status string, start, end time.Time, limit int) ([]exchange.Order, error) {
	contract, err := a.mapper.ToPair(symbol)
	if err != nil {
		return nil, err
	}
	size, err := a.contractSize(ctx, symbol)
	if err != nil {
		return nil, err
	}
	q := url.Values{"contract": {contract}, "status": {status}}
	if !start.IsZero() {
		q.Set("from", strconv.FormatInt(start.Unix(), 10))
	}
	if !end.IsZero() {
		q.Set("to", strconv.FormatInt(end.Unix(), 10))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp []futuresOrderDetail
	if err := a.do(ctx, http.MethodGet, a.path("orders"), q, nil, &resp, true); err != nil {
		return nil, err
	}
	orders := make([]exchange.Order, 0, len(resp))
	for i := range resp {
		orders = append(orders, *resp[i].toOrder(symbol, size))
	}
	return orders, nil
}

func (a *FuturesAdapter) GetAccountTrades(ctx context.Context, symbol exchange.Symbol, orderID string, start, end time.Time, limit int) ([]exchange.Trade, error) {
	contract, err := a.mapper.ToPair(symbol)
	if err != nil {
		return nil, err
	}
	size, err := a.contractSize(ctx, symbol)
	if err != nil {
		return nil, err
	}
	q := url.Values{"contract": {contract}}
	if orderID != "" {
		q.Set("order", orderID)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp []futuresMyTradeDetail
	if err := a.do(ctx, http.MethodGet, a.path("my_trades"), q, nil, &resp, true); err != nil {
		return nil, err
	}
	trades := make([]exchange.Trade, 0, len(resp))
	for i := range resp {
		t := resp[i].toTrade(symbol, size)
		if !start.IsZero() && t.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && t.Timestamp.After(end) {
			continue
		}
		trades = append(trades, t)
	}
	return trades, nil
}

// ModifyOrder is cancel-and-replace, matching the spot adapter.
func (a *FuturesAdapter) ModifyOrder(ctx context.Context, symbol exchange.Symbol, orderID string, req *exchange.OrderRequest) (*exchange.Order, error) {
	if _, err := a.CancelOrder(ctx, symbol, orderID); err != nil {
		return nil, err
	}
	req.Symbol = symbol
	return a.PlaceOrder(ctx, req)
}

func (a *FuturesAdapter) GetAssetsInfo(ctx context.Context) ([]exchange.AssetInfo, error) {
	return nil, exchange.NewError(exchange.KindNotSupported, "asset metadata lives on the spot wallet API")
}

func (a *FuturesAdapter) GetTradingFees(ctx context.Context, symbol exchange.Symbol) (*exchange.Fees, error) {
	contract, err := a.mapper.ToPair(symbol)
	if err != nil {
		return nil, err
	}
	var resp map[string]futuresFeeDetail
	if err := a.do(ctx, http.MethodGet, a.path("fee"), url.Values{"contract": {contract}}, nil, &resp, true); err != nil {
		return nil, err
	}
	fee, ok := resp[contract]
	if !ok {
		return nil, exchange.NewError(exchange.KindNotFound, "no fee entry for "+symbol.String())
	}
	return &exchange.Fees{
		Symbol: symbol,
		Maker:  parseF(fee.MakerFee),
		Taker:  parseF(fee.TakerFee),
	}, nil
}

// Wallet operations are spot-account scoped on Gate.io; the composite facade
// routes them to the spot adapter.

func (a *FuturesAdapter) SubmitWithdrawal(ctx context.Context, req *exchange.WithdrawalRequest) (*exchange.WithdrawalRecord, error) {
	return nil, exchange.NewError(exchange.KindNotSupported, "withdrawals route through the spot wallet")
}

func (a *FuturesAdapter) CancelWithdrawal(ctx context.Context, withdrawalID string) (bool, error) {
	return false, exchange.NewError(exchange.KindNotSupported, "withdrawals route through the spot wallet")
}

func (a *FuturesAdapter) GetWithdrawalStatus(ctx context.Context, withdrawalID string) (*exchange.WithdrawalRecord, error) {
	return nil, exchange.NewError(exchange.KindNotSupported, "withdrawals route through the spot wallet")
}

func (a *FuturesAdapter) GetWithdrawalHistory(ctx context.Context, asset string, limit int) ([]exchange.WithdrawalRecord, error) {
	return nil, exchange.NewError(exchange.KindNotSupported, "withdrawals route through the spot wallet")
}

func (a *FuturesAdapter) GetDepositAddress(ctx context.Context, asset, network string) (*exchange.DepositAddress, error) {
	return nil, exchange.NewError(exchange.KindNotSupported, "deposits route through the spot wallet")
}

func (a *FuturesAdapter) GetDepositHistory(ctx context.Context, asset string, limit int) ([]exchange.DepositRecord, error) {
	return nil, exchange.NewError(exchange.KindNotSupported, "deposits route through the spot wallet")
}

func (a *FuturesAdapter) GetPositions(ctx context.Context) ([]exchange.Position, error) {
	var resp []positionDetail
	if err := a.do(ctx, http.MethodGet, a.path("positions"), nil, nil, &resp, true); err != nil {
		return nil, err
	}
	positions := make([]exchange.Position, 0, len(resp))
	for i := range resp {
		if resp[i].Size == 0 {
			continue
		}
		symbol, err := a.mapper.ToSymbol(resp[i].Contract)
		if err != nil {
			log.Warn().Err(err).Str("contract", resp[i].Contract).Msg("Skipping unmappable position")
			continue
		}
		size, err := a.contractSize(ctx, symbol)
		if err != nil {
			return nil, err
		}
		positions = append(positions, resp[i].toPosition(symbol, size))
	}
	return positions, nil
}

func (a *FuturesAdapter) GetPosition(ctx context.Context, symbol exchange.Symbol) (*exchange.Position, error) {
	contract, err := a.mapper.ToPair(symbol)
	if err != nil {
		return nil, err
	}
	size, err := a.contractSize(ctx, symbol)
	if err != nil {
		return nil, err
	}
	var resp positionDetail
	if err := a.do(ctx, http.MethodGet, a.path("positions")+"/"+contract, nil, nil, &resp, true); err != nil {
		return nil, err
	}
	position := resp.toPosition(symbol, size)
	return &position, nil
}

// UpdatePositionMargin adds (positive delta) or removes margin.
func (a *FuturesAdapter) UpdatePositionMargin(ctx context.Context, symbol exchange.Symbol, delta float64) (*exchange.Position, error) {
	contract, err := a.mapper.ToPair(symbol)
	if err != nil {
		return nil, err
	}
	size, err := a.contractSize(ctx, symbol)
	if err != nil {
		return nil, err
	}
	q := url.Values{"change": {strconv.FormatFloat(delta, 'f', -1, 64)}}
	var resp positionDetail
	if err := a.do(ctx, http.MethodPost, a.path("positions")+"/"+contract+"/margin", q, nil, &resp, true); err != nil {
		return nil, err
	}
	position := resp.toPosition(symbol, size)
	return &position, nil
}

// UpdatePositionLeverage sets the position leverage; 0 selects cross margin.
func (a *FuturesAdapter) UpdatePositionLeverage(ctx context.Context, symbol exchange.Symbol, leverage float64) (*exchange.Position, error) {
	contract, err := a.mapper.ToPair(symbol)
	if err != nil {
		return nil, err
	}
	size, err := a.contractSize(ctx, symbol)
	if err != nil {
		return nil, err
	}
	q := url.Values{"leverage": {strconv.FormatFloat(leverage, 'f', -1, 64)}}
	var resp positionDetail
	if err := a.do(ctx, http.MethodPost, a.path("positions")+"/"+contract+"/leverage", q, nil, &resp, true); err != nil {
		return nil, err
	}
	position := resp.toPosition(symbol, size)
	return &position, nil
}

// ClosePosition flattens the position with a reduce-only market order on the
// opposite side.
func (a *FuturesAdapter) ClosePosition(ctx context.Context, symbol exchange.Symbol) (*exchange.Order, error) {
	position, err := a.GetPosition(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if position.Size == 0 {
		return nil, exchange.NewError(exchange.KindPositionEmpty, "no open position for "+symbol.String())
	}
	side := exchange.Sell
	if position.Side == exchange.Short {
		side = exchange.Buy
	}
	return a.PlaceOrder(ctx, &exchange.OrderRequest{
		Symbol:     symbol,
		Side:       side,
		Type:       exchange.Market,
		Quantity:   position.Size,
		ReduceOnly: true,
	})
}
