package gate

import (
	"math"
	"strconv"
	"time"

	"crossarb/internal/exchange"
)

// Wire types for the Gate.io v4 API. Spot and futures share the underscore
// pair format but differ in field vocabulary; converters normalize both into
// the canonical model.

type serverTimeResponse struct {
	ServerTime int64 `json:"server_time"` // milliseconds
}

type currencyPairDetail struct {
	ID             string `json:"id"`
	Base           string `json:"base"`
	Quote          string `json:"quote"`
	Fee            string `json:"fee"` // percent
	MinBaseAmount  string `json:"min_base_amount"`
	MinQuoteAmount string `json:"min_quote_amount"`
	AmountPrec     int    `json:"amount_precision"`
	Precision      int    `json:"precision"`
	TradeStatus    string `json:"trade_status"`
}

func (d *currencyPairDetail) toSymbolInfo() exchange.SymbolInfo {
	feePct := parseF(d.Fee) / 100
	return exchange.SymbolInfo{
		Symbol:         exchange.NewSymbol(d.Base, d.Quote),
		BasePrecision:  d.AmountPrec,
		QuotePrecision: d.Precision,
		MinBaseQty:     parseF(d.MinBaseAmount),
		MinQuoteQty:    parseF(d.MinQuoteAmount),
		TickSize:       math.Pow(10, -float64(d.Precision)),
		StepSize:       math.Pow(10, -float64(d.AmountPrec)),
		MakerFee:       feePct,
		TakerFee:       feePct,
		TradingActive:  d.TradeStatus == "tradable",
	}
}

type orderBookResponse struct {
	Current int64       `json:"current"` // milliseconds
	Bids    [][2]string `json:"bids"`
	Asks    [][2]string `json:"asks"`
}

func (r *orderBookResponse) toOrderBook(symbol exchange.Symbol) *exchange.OrderBook {
	book := &exchange.OrderBook{
		Symbol:    symbol,
		Bids:      make([]exchange.PriceLevel, 0, len(r.Bids)),
		Asks:      make([]exchange.PriceLevel, 0, len(r.Asks)),
		Timestamp: time.UnixMilli(r.Current),
	}
	for _, lv := range r.Bids {
		book.Bids = append(book.Bids, exchange.PriceLevel{Price: parseF(lv[0]), Size: parseF(lv[1])})
	}
	for _, lv := range r.Asks {
		book.Asks = append(book.Asks, exchange.PriceLevel{Price: parseF(lv[0]), Size: parseF(lv[1])})
	}
	return book
}

type spotTradeDetail struct {
	ID           string `json:"id"`
	CreateTimeMs string `json:"create_time_ms"`
	Side         string `json:"side"`
	Amount       string `json:"amount"`
	Price        string `json:"price"`
}

func (t *spotTradeDetail) toTrade(symbol exchange.Symbol) exchange.Trade {
	side := exchange.Buy
	if t.Side == "sell" {
		side = exchange.Sell
	}
	return exchange.Trade{
		TradeID:   t.ID,
		Symbol:    symbol,
		Price:     parseF(t.Price),
		Quantity:  parseF(t.Amount),
		Side:      side,
		Timestamp: time.UnixMilli(int64(parseF(t.CreateTimeMs))),
	}
}

type spotTickerDetail struct {
	CurrencyPair string `json:"currency_pair"`
	HighestBid   string `json:"highest_bid"`
	LowestAsk    string `json:"lowest_ask"`
}

func (t *spotTickerDetail) toBookTicker(symbol exchange.Symbol) *exchange.BookTicker {
	return &exchange.BookTicker{
		Symbol:    symbol,
		BidPrice:  parseF(t.HighestBid),
		AskPrice:  parseF(t.LowestAsk),
		Timestamp: time.Now(),
	}
}

// spot candlesticks arrive as positional string arrays:
// [ts, quoteVolume, close, high, low, open, baseVolume, finished]
type spotCandle []string

func (c spotCandle) toKline(symbol exchange.Symbol, interval string, step time.Duration) (exchange.Kline, bool) {
	if len(c) < 7 {
		return exchange.Kline{}, false
	}
	open := time.Unix(int64(parseF(c[0])), 0)
	return exchange.Kline{
		Symbol:    symbol,
		Interval:  interval,
		OpenTime:  open,
		Open:      parseF(c[5]),
		High:      parseF(c[3]),
		Low:       parseF(c[4]),
		Close:     parseF(c[2]),
		Volume:    parseF(c[6]),
		CloseTime: open.Add(step),
	}, true
}

type spotOrderDetail struct {
	ID           string `json:"id"`
	Text         string `json:"text"`
	CurrencyPair string `json:"currency_pair"`
	Status       string `json:"status"` // open, closed, cancelled
	Type         string `json:"type"`
	Side         string `json:"side"`
	Amount       string `json:"amount"`
	Price        string `json:"price"`
	Left         string `json:"left"`
	TimeInForce  string `json:"time_in_force"`
	CreateTimeMs string `json:"create_time_ms"`
}

func spotOrderStatus(status string) exchange.OrderStatus {
	switch status {
	case "open":
		return exchange.OrderNew
	case "closed":
		return exchange.OrderFilled
	case "cancelled":
		return exchange.OrderCanceled
	default:
		return exchange.OrderNew
	}
}

func spotTIF(tif string) exchange.TimeInForce {
	switch tif {
	case "ioc":
		return exchange.IOC
	case "fok":
		return exchange.FOK
	case "poc":
		return exchange.POC
	default:
		return exchange.GTC
	}
}

func (o *spotOrderDetail) toOrder(symbol exchange.Symbol) *exchange.Order {
	qty := parseF(o.Amount)
	left := parseF(o.Left)
	side := exchange.Buy
	if o.Side == "sell" {
		side = exchange.Sell
	}
	typ := exchange.Limit
	if o.Type == "market" {
		typ = exchange.Market
	}
	status := spotOrderStatus(o.Status)
	if status == exchange.OrderNew && left > 0 && left < qty {
		status = exchange.OrderPartiallyFilled
	}
	return &exchange.Order{
		ID:                o.ID,
		ClientOrderID:     o.Text,
		Symbol:            symbol,
		Side:              side,
		Type:              typ,
		Quantity:          qty,
		Price:             parseF(o.Price),
		FilledQuantity:    qty - left,
		RemainingQuantity: left,
		Status:            status,
		TimeInForce:       spotTIF(o.TimeInForce),
		Timestamp:         time.UnixMilli(int64(parseF(o.CreateTimeMs))),
	}
}

type spotAccountDetail struct {
	Currency  string `json:"currency"`
	Available string `json:"available"`
	Locked    string `json:"locked"`
}

func (a *spotAccountDetail) toBalance() exchange.AssetBalance {
	return exchange.AssetBalance{
		Asset:     a.Currency,
		Available: parseF(a.Available),
		Locked:    parseF(a.Locked),
	}
}

type spotMyTradeDetail struct {
	ID           string `json:"id"`
	CreateTimeMs string `json:"create_time_ms"`
	CurrencyPair string `json:"currency_pair"`
	Side         string `json:"side"`
	Role         string `json:"role"` // taker or maker
	Amount       string `json:"amount"`
	Price        string `json:"price"`
	OrderID      string `json:"order_id"`
}

func (t *spotMyTradeDetail) toTrade(symbol exchange.Symbol) exchange.Trade {
	side := exchange.Buy
	if t.Side == "sell" {
		side = exchange.Sell
	}
	return exchange.Trade{
		TradeID:   t.ID,
		Symbol:    symbol,
		Price:     parseF(t.Price),
		Quantity:  parseF(t.Amount),
		Side:      side,
		IsMaker:   t.Role == "maker",
		Timestamp: time.UnixMilli(int64(parseF(t.CreateTimeMs))),
	}
}

type spotFeeDetail struct {
	MakerFee string `json:"maker_fee"`
	TakerFee string `json:"taker_fee"`
}

type withdrawStatusDetail struct {
	Currency     string `json:"currency"`
	WithdrawFix  string `json:"withdraw_fix"`
	WithdrawDay  string `json:"withdraw_day_limit"`
	Deposit      string `json:"deposit"`
	WithdrawMini string `json:"withdraw_each_time_limit"`
}

type withdrawalDetail struct {
	ID        string `json:"id"`
	Currency  string `json:"currency"`
	Chain     string `json:"chain"`
	Address   string `json:"address"`
	Amount    string `json:"amount"`
	Fee       string `json:"fee"`
	Status    string `json:"status"`
	TxID      string `json:"txid"`
	Timestamp string `json:"timestamp"` // seconds
}

// withdrawal status labels per the venue: DONE, CANCEL, FAIL, REQUEST,
// PEND/VERIFY variants are in flight.
func gateWithdrawalStatus(status string) exchange.WithdrawalStatus {
	switch status {
	case "DONE":
		return exchange.WithdrawalDone
	case "CANCEL":
		return exchange.WithdrawalCanceled
	case "FAIL", "INVALID":
		return exchange.WithdrawalFailed
	case "VERIFY", "MANUAL":
		return exchange.WithdrawalReviewing
	default:
		return exchange.WithdrawalPending
	}
}

func (w *withdrawalDetail) toRecord() exchange.WithdrawalRecord {
	return exchange.WithdrawalRecord{
		ID:        w.ID,
		Asset:     w.Currency,
		Network:   w.Chain,
		Address:   w.Address,
		Amount:    parseF(w.Amount),
		Fee:       parseF(w.Fee),
		Status:    gateWithdrawalStatus(w.Status),
		TxID:      w.TxID,
		Timestamp: time.Unix(int64(parseF(w.Timestamp)), 0),
	}
}

type depositAddressResponse struct {
	Currency            string `json:"currency"`
	Address             string `json:"address"`
	MultichainAddresses []struct {
		Chain        string `json:"chain"`
		Address      string `json:"address"`
		PaymentID    string `json:"payment_id"`
		PaymentName  string `json:"payment_name"`
		ObtainFailed int    `json:"obtain_failed"`
	} `json:"multichain_addresses"`
}

type depositDetail struct {
	Currency  string `json:"currency"`
	Chain     string `json:"chain"`
	Amount    string `json:"amount"`
	TxID      string `json:"txid"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

func (d *depositDetail) toRecord() exchange.DepositRecord {
	return exchange.DepositRecord{
		Asset:     d.Currency,
		Network:   d.Chain,
		Amount:    parseF(d.Amount),
		TxID:      d.TxID,
		Status:    d.Status,
		Timestamp: time.Unix(int64(parseF(d.Timestamp)), 0),
	}
}

// Futures wire types.

type contractDetail struct {
	Name            string `json:"name"`
	QuantoMult      string `json:"quanto_multiplier"` // base units per contract
	OrderSizeMin    int64  `json:"order_size_min"`
	OrderPriceRound string `json:"order_price_round"`
	MakerFeeRate    string `json:"maker_fee_rate"`
	TakerFeeRate    string `json:"taker_fee_rate"`
	InDelisting     bool   `json:"in_delisting"`
}

func (d *contractDetail) toSymbolInfo(mapper *Mapper) (exchange.SymbolInfo, error) {
	symbol, err := mapper.ToSymbol(d.Name)
	if err != nil {
		return exchange.SymbolInfo{}, err
	}
	contractSize := parseF(d.QuantoMult)
	if contractSize == 0 {
		contractSize = 1
	}
	return exchange.SymbolInfo{
		Symbol:        symbol,
		MinBaseQty:    float64(d.OrderSizeMin) * contractSize,
		TickSize:      parseF(d.OrderPriceRound),
		StepSize:      contractSize,
		ContractSize:  contractSize,
		MakerFee:      parseF(d.MakerFeeRate),
		TakerFee:      parseF(d.TakerFeeRate),
		IsFutures:     true,
		TradingActive: !d.InDelisting,
	}, nil
}

type futuresOrderBookResponse struct {
	Current float64 `json:"current"` // seconds with fraction
	Bids    []struct {
		Price string `json:"p"`
		Size  int64  `json:"s"`
	} `json:"bids"`
	Asks []struct {
		Price string `json:"p"`
		Size  int64  `json:"s"`
	} `json:"asks"`
}

type futuresTradeDetail struct {
	ID         int64   `json:"id"`
	CreateTime float64 `json:"create_time_ms"`
	Size       int64   `json:"size"` // negative = sell
	Price      string  `json:"price"`
}

type futuresTickerDetail struct {
	Contract   string `json:"contract"`
	Last       string `json:"last"`
	HighestBid string `json:"highest_bid"`
	LowestAsk  string `json:"lowest_ask"`
}

// futures candlesticks are objects, not arrays
type futuresCandle struct {
	T int64  `json:"t"`
	O string `json:"o"`
	H string `json:"h"`
	L string `json:"l"`
	C string `json:"c"`
	V int64  `json:"v"`
}

type fundingRateDetail struct {
	T int64  `json:"t"`
	R string `json:"r"`
}

type futuresOrderDetail struct {
	ID         int64   `json:"id"`
	Contract   string  `json:"contract"`
	Status     string  `json:"status"` // open, finished
	Size       int64   `json:"size"`   // signed
	Left       int64   `json:"left"`
	Price      string  `json:"price"`
	FillPrice  string  `json:"fill_price"`
	TIF        string  `json:"tif"`
	Text       string  `json:"text"`
	FinishAs   string  `json:"finish_as"` // filled, cancelled, ...
	CreateTime float64 `json:"create_time"`
}

func futuresOrderStatus(o *futuresOrderDetail) exchange.OrderStatus {
	if o.Status == "open" {
		if o.Left != o.Size && o.Left != 0 {
			return exchange.OrderPartiallyFilled
		}
		return exchange.OrderNew
	}
	switch o.FinishAs {
	case "filled":
		return exchange.OrderFilled
	case "cancelled", "liquidated", "reduce_only", "position_closed":
		return exchange.OrderCanceled
	case "ioc", "expired":
		return exchange.OrderExpired
	default:
		return exchange.OrderFilled
	}
}

func (o *futuresOrderDetail) toOrder(symbol exchange.Symbol, contractSize float64) *exchange.Order {
	side := exchange.Buy
	size := o.Size
	left := o.Left
	if size < 0 {
		side = exchange.Sell
		size = -size
		left = -left
	}
	typ := exchange.Limit
	if parseF(o.Price) == 0 {
		typ = exchange.Market
	}
	qty := float64(size) * contractSize
	remaining := float64(left) * contractSize
	return &exchange.Order{
		ID:                strconv.FormatInt(o.ID, 10),
		ClientOrderID:     o.Text,
		Symbol:            symbol,
		Side:              side,
		Type:              typ,
		Quantity:          qty,
		Price:             parseF(o.Price),
		FilledQuantity:    qty - remaining,
		RemainingQuantity: remaining,
		Status:            futuresOrderStatus(o),
		TimeInForce:       spotTIF(o.TIF),
		Timestamp:         time.Unix(int64(o.CreateTime), 0),
	}
}

type futuresAccountResponse struct {
	Total          string `json:"total"`
	Available      string `json:"available"`
	PositionMargin string `json:"position_margin"`
	OrderMargin    string `json:"order_margin"`
	Currency       string `json:"currency"`
}

type positionDetail struct {
	Contract      string `json:"contract"`
	Size          int64  `json:"size"` // signed contracts
	EntryPrice    string `json:"entry_price"`
	MarkPrice     string `json:"mark_price"`
	UnrealisedPnl string `json:"unrealised_pnl"`
	RealisedPnl   string `json:"realised_pnl"`
	LiqPrice      string `json:"liq_price"`
	Margin        string `json:"margin"`
	Leverage      string `json:"leverage"`
}

func (p *positionDetail) toPosition(symbol exchange.Symbol, contractSize float64) exchange.Position {
	side := exchange.Long
	size := p.Size
	if size < 0 {
		side = exchange.Short
		size = -size
	}
	return exchange.Position{
		Symbol:           symbol,
		Side:             side,
		Size:             float64(size) * contractSize,
		EntryPrice:       parseF(p.EntryPrice),
		MarkPrice:        parseF(p.MarkPrice),
		UnrealizedPnl:    parseF(p.UnrealisedPnl),
		RealizedPnl:      parseF(p.RealisedPnl),
		LiquidationPrice: parseF(p.LiqPrice),
		Margin:           parseF(p.Margin),
		Leverage:         parseF(p.Leverage),
		Timestamp:        time.Now(),
	}
}

type futuresMyTradeDetail struct {
	ID         int64   `json:"id"`
	CreateTime float64 `json:"create_time"`
	Contract   string  `json:"contract"`
	OrderID    string  `json:"order_id"`
	Size       int64   `json:"size"` // signed contracts
	Price      string  `json:"price"`
	Role       string  `json:"role"`
}

func (t *futuresMyTradeDetail) toTrade(symbol exchange.Symbol, contractSize float64) exchange.Trade {
	side := exchange.Buy
	size := t.Size
	if size < 0 {
		side = exchange.Sell
		size = -size
	}
	return exchange.Trade{
		TradeID:   strconv.FormatInt(t.ID, 10),
		Symbol:    symbol,
		Price:     parseF(t.Price),
		Quantity:  float64(size) * contractSize,
		Side:      side,
		IsMaker:   t.Role == "maker",
		Timestamp: time.Unix(int64(t.CreateTime), 0),
	}
}

type futuresFeeDetail struct {
	MakerFee string `json:"maker_fee"`
	TakerFee string `json:"taker_fee"`
}

func parseF(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
