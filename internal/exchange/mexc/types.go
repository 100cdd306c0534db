package mexc

import (
	"encoding/json"
	"math"
	"strconv"
	"time"

	"crossarb/internal/exchange"
)

// Wire types for the MEXC spot v3 API. Numeric fields arrive as strings;
// converters normalize them into the canonical model at the adapter boundary.

type serverTimeResponse struct {
	ServerTime int64 `json:"serverTime"`
}

type exchangeInfoResponse struct {
	Symbols []symbolDetail `json:"symbols"`
}

type symbolDetail struct {
	Symbol               string `json:"symbol"`
	Status               string `json:"status"`
	BaseAsset            string `json:"baseAsset"`
	QuoteAsset           string `json:"quoteAsset"`
	BaseAssetPrecision   int    `json:"baseAssetPrecision"`
	QuotePrecision       int    `json:"quotePrecision"`
	BaseSizePrecision    string `json:"baseSizePrecision"`    // minimum base quantity
	QuoteAmountPrecision string `json:"quoteAmountPrecision"` // minimum quote notional
	MakerCommission      string `json:"makerCommission"`
	TakerCommission      string `json:"takerCommission"`
	IsSpotTradingAllowed bool   `json:"isSpotTradingAllowed"`
}

func (d *symbolDetail) toSymbolInfo() exchange.SymbolInfo {
	return exchange.SymbolInfo{
		Symbol:         exchange.NewSymbol(d.BaseAsset, d.QuoteAsset),
		BasePrecision:  d.BaseAssetPrecision,
		QuotePrecision: d.QuotePrecision,
		MinBaseQty:     parseF(d.BaseSizePrecision),
		MinQuoteQty:    parseF(d.QuoteAmountPrecision),
		TickSize:       math.Pow(10, -float64(d.QuotePrecision)),
		StepSize:       math.Pow(10, -float64(d.BaseAssetPrecision)),
		MakerFee:       parseF(d.MakerCommission),
		TakerFee:       parseF(d.TakerCommission),
		TradingActive:  d.IsSpotTradingAllowed && d.Status == "1",
	}
}

type depthResponse struct {
	LastUpdateID int64       `json:"lastUpdateId"`
	Bids         [][2]string `json:"bids"`
	Asks         [][2]string `json:"asks"`
}

func (d *depthResponse) toOrderBook(symbol exchange.Symbol) *exchange.OrderBook {
	book := &exchange.OrderBook{
		Symbol:    symbol,
		Bids:      make([]exchange.PriceLevel, 0, len(d.Bids)),
		Asks:      make([]exchange.PriceLevel, 0, len(d.Asks)),
		Timestamp: time.Now(),
	}
	for _, lv := range d.Bids {
		book.Bids = append(book.Bids, exchange.PriceLevel{Price: parseF(lv[0]), Size: parseF(lv[1])})
	}
	for _, lv := range d.Asks {
		book.Asks = append(book.Asks, exchange.PriceLevel{Price: parseF(lv[0]), Size: parseF(lv[1])})
	}
	return book
}

type tradeDetail struct {
	ID           json.Number `json:"id"`
	Price        string      `json:"price"`
	Qty          string      `json:"qty"`
	Time         int64       `json:"time"`
	IsBuyerMaker bool        `json:"isBuyerMaker"`
}

func (t *tradeDetail) toTrade(symbol exchange.Symbol) exchange.Trade {
	side := exchange.Buy
	if t.IsBuyerMaker {
		side = exchange.Sell
	}
	return exchange.Trade{
		TradeID:   t.ID.String(),
		Symbol:    symbol,
		Price:     parseF(t.Price),
		Quantity:  parseF(t.Qty),
		Side:      side,
		Timestamp: time.UnixMilli(t.Time),
	}
}

type ticker24hr struct {
	Symbol    string `json:"symbol"`
	BidPrice  string `json:"bidPrice"`
	BidQty    string `json:"bidQty"`
	AskPrice  string `json:"askPrice"`
	AskQty    string `json:"askQty"`
	CloseTime int64  `json:"closeTime"`
}

func (t *ticker24hr) toBookTicker(symbol exchange.Symbol) *exchange.BookTicker {
	return &exchange.BookTicker{
		Symbol:    symbol,
		BidPrice:  parseF(t.BidPrice),
		BidQty:    parseF(t.BidQty),
		AskPrice:  parseF(t.AskPrice),
		AskQty:    parseF(t.AskQty),
		Timestamp: time.UnixMilli(t.CloseTime),
	}
}

// klines arrive as positional arrays:
// [openTime, open, high, low, close, volume, closeTime, quoteVolume]
type klineRow []json.RawMessage

func (r klineRow) toKline(symbol exchange.Symbol, interval string) (exchange.Kline, bool) {
	if len(r) < 7 {
		return exchange.Kline{}, false
	}
	var openTime, closeTime int64
	var o, h, l, c, v string
	if json.Unmarshal(r[0], &openTime) != nil ||
		json.Unmarshal(r[1], &o) != nil ||
		json.Unmarshal(r[2], &h) != nil ||
		json.Unmarshal(r[3], &l) != nil ||
		json.Unmarshal(r[4], &c) != nil ||
		json.Unmarshal(r[5], &v) != nil ||
		json.Unmarshal(r[6], &closeTime) != nil {
		return exchange.Kline{}, false
	}
	return exchange.Kline{
		Symbol:    symbol,
		Interval:  interval,
		OpenTime:  time.UnixMilli(openTime),
		Open:      parseF(o),
		High:      parseF(h),
		Low:       parseF(l),
		Close:     parseF(c),
		Volume:    parseF(v),
		CloseTime: time.UnixMilli(closeTime),
	}, true
}

type accountResponse struct {
	Balances []balanceDetail `json:"balances"`
}

type balanceDetail struct {
	Asset  string `json:"asset"`
	Free   string `json:"free"`
	Locked string `json:"locked"`
}

func (b *balanceDetail) toBalance() exchange.AssetBalance {
	return exchange.AssetBalance{
		Asset:     b.Asset,
		Available: parseF(b.Free),
		Locked:    parseF(b.Locked),
	}
}

type orderDetail struct {
	Symbol        string      `json:"symbol"`
	OrderID       json.Number `json:"orderId"`
	ClientOrderID string      `json:"clientOrderId"`
	Price         string      `json:"price"`
	OrigQty       string      `json:"origQty"`
	ExecutedQty   string      `json:"executedQty"`
	Status        string      `json:"status"`
	TimeInForce   string      `json:"timeInForce"`
	Type          string      `json:"type"`
	Side          string      `json:"side"`
	Time          int64       `json:"time"`
	TransactTime  int64       `json:"transactTime"`
}

func (o *orderDetail) toOrder(symbol exchange.Symbol) *exchange.Order {
	qty := parseF(o.OrigQty)
	filled := parseF(o.ExecutedQty)
	ts := o.Time
	if ts == 0 {
		ts = o.TransactTime
	}
	return &exchange.Order{
		ID:                o.OrderID.String(),
		ClientOrderID:     o.ClientOrderID,
		Symbol:            symbol,
		Side:              exchange.Side(o.Side),
		Type:              exchange.OrderType(o.Type),
		Quantity:          qty,
		Price:             parseF(o.Price),
		FilledQuantity:    filled,
		RemainingQuantity: qty - filled,
		Status:            exchange.OrderStatus(o.Status),
		TimeInForce:       exchange.TimeInForce(o.TimeInForce),
		Timestamp:         time.UnixMilli(ts),
	}
}

type accountTradeDetail struct {
	Symbol          string      `json:"symbol"`
	ID              json.Number `json:"id"`
	OrderID         json.Number `json:"orderId"`
	Price           string      `json:"price"`
	Qty             string      `json:"qty"`
	Commission      string      `json:"commission"`
	CommissionAsset string      `json:"commissionAsset"`
	Time            int64       `json:"time"`
	IsBuyer         bool        `json:"isBuyer"`
	IsMaker         bool        `json:"isMaker"`
}

func (t *accountTradeDetail) toTrade(symbol exchange.Symbol) exchange.Trade {
	side := exchange.Sell
	if t.IsBuyer {
		side = exchange.Buy
	}
	return exchange.Trade{
		TradeID:   t.ID.String(),
		Symbol:    symbol,
		Price:     parseF(t.Price),
		Quantity:  parseF(t.Qty),
		Side:      side,
		IsMaker:   t.IsMaker,
		Timestamp: time.UnixMilli(t.Time),
	}
}

type coinDetail struct {
	Coin        string          `json:"coin"`
	NetworkList []networkDetail `json:"networkList"`
}

type networkDetail struct {
	Network        string `json:"netWork"`
	DepositEnable  bool   `json:"depositEnable"`
	WithdrawEnable bool   `json:"withdrawEnable"`
	WithdrawFee    string `json:"withdrawFee"`
	WithdrawMin    string `json:"withdrawMin"`
}

func (c *coinDetail) toAssetInfo() exchange.AssetInfo {
	info := exchange.AssetInfo{Asset: c.Coin}
	for _, n := range c.NetworkList {
		info.Networks = append(info.Networks, exchange.AssetNetwork{
			Network:         n.Network,
			DepositEnabled:  n.DepositEnable,
			WithdrawEnabled: n.WithdrawEnable,
			WithdrawFee:     parseF(n.WithdrawFee),
			MinWithdraw:     parseF(n.WithdrawMin),
		})
	}
	return info
}

type withdrawResponse struct {
	ID string `json:"id"`
}

type withdrawDetail struct {
	ID        string `json:"id"`
	Coin      string `json:"coin"`
	Network   string `json:"netWork"`
	Address   string `json:"address"`
	Amount    string `json:"amount"`
	TransFee  string `json:"transFee"`
	Status    int    `json:"status"`
	TxID      string `json:"txId"`
	ApplyTime int64  `json:"applyTime"`
}

// withdrawal status codes per the venue: 7 success, 8 failed, 9 cancel,
// 2 auditing; everything else is in flight.
func withdrawalStatus(code int) exchange.WithdrawalStatus {
	switch code {
	case 7:
		return exchange.WithdrawalDone
	case 8:
		return exchange.WithdrawalFailed
	case 9:
		return exchange.WithdrawalCanceled
	case 2:
		return exchange.WithdrawalReviewing
	default:
		return exchange.WithdrawalPending
	}
}

func (w *withdrawDetail) toRecord() exchange.WithdrawalRecord {
	return exchange.WithdrawalRecord{
		ID:        w.ID,
		Asset:     w.Coin,
		Network:   w.Network,
		Address:   w.Address,
		Amount:    parseF(w.Amount),
		Fee:       parseF(w.TransFee),
		Status:    withdrawalStatus(w.Status),
		TxID:      w.TxID,
		Timestamp: time.UnixMilli(w.ApplyTime),
	}
}

type depositDetail struct {
	Coin       string `json:"coin"`
	Network    string `json:"network"`
	Amount     string `json:"amount"`
	TxID       string `json:"txId"`
	Status     int    `json:"status"`
	InsertTime int64  `json:"insertTime"`
}

func (d *depositDetail) toRecord() exchange.DepositRecord {
	return exchange.DepositRecord{
		Asset:     d.Coin,
		Network:   d.Network,
		Amount:    parseF(d.Amount),
		TxID:      d.TxID,
		Status:    strconv.Itoa(d.Status),
		Timestamp: time.UnixMilli(d.InsertTime),
	}
}

type depositAddressDetail struct {
	Coin    string `json:"coin"`
	Network string `json:"network"`
	Address string `json:"address"`
	Memo    string `json:"memo"`
}

type listenKeyResponse struct {
	ListenKey string `json:"listenKey"`
}

func parseF(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
