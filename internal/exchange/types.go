// Package exchange defines the canonical data model and venue-agnostic
// contracts shared by every venue adapter. Strategy code speaks only this
// vocabulary; venue-native symbols, order payloads and error envelopes never
// leave the adapter packages.
package exchange

import (
	"fmt"
	"strings"
	"time"
)

// ExchangeKind identifies a supported venue and market.
type ExchangeKind string

const (
	MEXCSpot        ExchangeKind = "mexc_spot"
	GateSpot        ExchangeKind = "gate_spot"
	GateFuturesUSDT ExchangeKind = "gate_futures_usdt"
	GateFuturesBTC  ExchangeKind = "gate_futures_btc"
)

// IsFutures reports whether the venue trades futures contracts.
func (k ExchangeKind) IsFutures() bool {
	return k == GateFuturesUSDT || k == GateFuturesBTC
}

func (k ExchangeKind) String() string { return string(k) }

// Symbol is the canonical (base, quote) pair. It carries no venue prefix;
// per-venue serialization is the SymbolMapper's job.
type Symbol struct {
	Base  string
	Quote string
}

// NewSymbol builds a canonical symbol with upper-cased assets.
func NewSymbol(base, quote string) Symbol {
	return Symbol{Base: strings.ToUpper(base), Quote: strings.ToUpper(quote)}
}

func (s Symbol) String() string { return s.Base + "/" + s.Quote }

// IsZero reports whether the symbol is unset.
func (s Symbol) IsZero() bool { return s.Base == "" && s.Quote == "" }

// Side is the direction of an order.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrderType enumerates supported order types.
type OrderType string

const (
	Limit      OrderType = "LIMIT"
	Market     OrderType = "MARKET"
	LimitMaker OrderType = "LIMIT_MAKER"
	StopLimit  OrderType = "STOP_LIMIT"
)

// TimeInForce governs how long a limit order rests.
type TimeInForce string

const (
	GTC TimeInForce = "GTC"
	IOC TimeInForce = "IOC"
	FOK TimeInForce = "FOK"
	POC TimeInForce = "POC" // post-only: reject immediate-match executions
)

// OrderStatus is the canonical order lifecycle state.
// NEW → (PARTIALLY_FILLED)* → FILLED | CANCELED | REJECTED | EXPIRED.
type OrderStatus string

const (
	OrderNew             OrderStatus = "NEW"
	OrderPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderFilled          OrderStatus = "FILLED"
	OrderCanceled        OrderStatus = "CANCELED"
	OrderRejected        OrderStatus = "REJECTED"
	OrderExpired         OrderStatus = "EXPIRED"
)

// IsTerminal reports whether the status is sticky: no further transitions.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderFilled, OrderCanceled, OrderRejected, OrderExpired:
		return true
	}
	return false
}

// PositionSide is the direction of a futures position. Size is always
// unsigned; venues that encode signed size are normalized at the adapter
// boundary.
type PositionSide string

const (
	Long  PositionSide = "LONG"
	Short PositionSide = "SHORT"
)

// Opposite returns the other position side.
func (s PositionSide) Opposite() PositionSide {
	if s == Long {
		return Short
	}
	return Long
}

// Order is a canonical order record.
type Order struct {
	ID                string
	ClientOrderID     string
	Symbol            Symbol
	Side              Side
	Type              OrderType
	Quantity          float64 // base quantity
	Price             float64 // zero for market orders
	FilledQuantity    float64
	RemainingQuantity float64
	Status            OrderStatus
	TimeInForce       TimeInForce
	Timestamp         time.Time
}

// Trade is an immutable execution record.
type Trade struct {
	TradeID   string
	Symbol    Symbol
	Price     float64
	Quantity  float64
	Side      Side
	IsMaker   bool
	Timestamp time.Time
}

// BookTicker is the best bid/ask snapshot. It is never cached by the core:
// each read reflects the latest WS push or a fresh REST fetch.
type BookTicker struct {
	Symbol    Symbol
	BidPrice  float64
	BidQty    float64
	AskPrice  float64
	AskQty    float64
	Timestamp time.Time
}

// PriceLevel is a single (price, size) entry in the book.
type PriceLevel struct {
	Price float64
	Size  float64
}

// OrderBook holds bids sorted descending and asks sorted ascending, with a
// monotonic timestamp.
type OrderBook struct {
	Symbol    Symbol
	Bids      []PriceLevel
	Asks      []PriceLevel
	Timestamp time.Time
}

// BestBid returns the top bid, or false when the book is empty.
func (b *OrderBook) BestBid() (PriceLevel, bool) {
	if len(b.Bids) == 0 {
		return PriceLevel{}, false
	}
	return b.Bids[0], true
}

// BestAsk returns the top ask, or false when the book is empty.
func (b *OrderBook) BestAsk() (PriceLevel, bool) {
	if len(b.Asks) == 0 {
		return PriceLevel{}, false
	}
	return b.Asks[0], true
}

// Kline is one candlestick.
type Kline struct {
	Symbol    Symbol
	Interval  string
	OpenTime  time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	CloseTime time.Time
}

// Position is a canonical futures position.
type Position struct {
	Symbol           Symbol
	Side             PositionSide
	Size             float64 // unsigned base quantity
	EntryPrice       float64
	MarkPrice        float64
	UnrealizedPnl    float64
	RealizedPnl      float64
	LiquidationPrice float64
	Margin           float64
	Leverage         float64
	Timestamp        time.Time
}

// AssetBalance is a per-asset account balance.
type AssetBalance struct {
	Asset     string
	Available float64
	Locked    float64
}

// Total is available + locked.
func (b AssetBalance) Total() float64 { return b.Available + b.Locked }

// SymbolInfo describes a tradable instrument. It is refreshed on a TTL
// (default 5 minutes) and never consulted on the hot path after caching.
type SymbolInfo struct {
	Symbol         Symbol
	BasePrecision  int
	QuotePrecision int
	MinBaseQty     float64
	MinQuoteQty    float64
	TickSize       float64
	StepSize       float64
	ContractSize   float64 // futures only; base units per contract
	MakerFee       float64
	TakerFee       float64
	IsFutures      bool
	TradingActive  bool
}

// FundingRate is the current funding rate of a perpetual contract.
type FundingRate struct {
	Symbol          Symbol
	Rate            float64
	NextFundingTime time.Time
	Timestamp       time.Time
}

// Fees are maker/taker fee rates, fractional (0.001 = 10 bps).
type Fees struct {
	Symbol Symbol
	Maker  float64
	Taker  float64
}

// AssetNetwork describes one deposit/withdrawal chain for an asset.
type AssetNetwork struct {
	Network         string
	DepositEnabled  bool
	WithdrawEnabled bool
	WithdrawFee     float64
	MinWithdraw     float64
}

// AssetInfo is chain-aware asset metadata.
type AssetInfo struct {
	Asset    string
	Networks []AssetNetwork
}

// WithdrawalRequest submits an on-chain withdrawal.
type WithdrawalRequest struct {
	Asset   string
	Network string
	Address string
	Memo    string
	Amount  float64
}

// WithdrawalStatus enumerates withdrawal lifecycle states.
type WithdrawalStatus string

const (
	WithdrawalPending   WithdrawalStatus = "PENDING"
	WithdrawalDone      WithdrawalStatus = "DONE"
	WithdrawalCanceled  WithdrawalStatus = "CANCELED"
	WithdrawalFailed    WithdrawalStatus = "FAILED"
	WithdrawalReviewing WithdrawalStatus = "REVIEWING"
)

// WithdrawalRecord is a submitted or historical withdrawal.
type WithdrawalRecord struct {
	ID        string
	Asset     string
	Network   string
	Address   string
	Amount    float64
	Fee       float64
	Status    WithdrawalStatus
	TxID      string
	Timestamp time.Time
}

// DepositAddress is a chain-specific deposit address.
type DepositAddress struct {
	Asset   string
	Network string
	Address string
	Memo    string
}

// DepositRecord is one historical deposit.
type DepositRecord struct {
	Asset     string
	Network   string
	Amount    float64
	TxID      string
	Status    string
	Timestamp time.Time
}

// OrderRequest is the canonical order placement input. Exactly one of
// Quantity/QuoteQuantity is required for market buys; everything else uses
// base Quantity.
type OrderRequest struct {
	Symbol        Symbol
	Side          Side
	Type          OrderType
	Quantity      float64 // base quantity
	QuoteQuantity float64 // quote quantity; market buy only
	Price         float64
	StopPrice     float64
	TimeInForce   TimeInForce
	Iceberg       float64
	ReduceOnly    bool
	ClientOrderID string
}

// Validate enforces the placement rules shared by all venues. Venue adapters
// apply their own step/tick rounding afterwards.
func (r *OrderRequest) Validate() error {
	if r.Symbol.IsZero() {
		return NewError(KindInvalidParameter, "order request missing symbol")
	}
	if r.Side != Buy && r.Side != Sell {
		return NewError(KindInvalidParameter, fmt.Sprintf("invalid side %q", r.Side))
	}
	switch r.Type {
	case Limit, LimitMaker:
		if r.Price <= 0 {
			return NewError(KindInvalidParameter, "limit order requires a price")
		}
		if r.Quantity <= 0 {
			return NewError(KindInvalidParameter, "limit order requires a base quantity")
		}
	case StopLimit:
		if r.Price <= 0 || r.StopPrice <= 0 {
			return NewError(KindInvalidParameter, "stop-limit order requires price and stop price")
		}
		if r.Quantity <= 0 {
			return NewError(KindInvalidParameter, "stop-limit order requires a base quantity")
		}
	case Market:
		if r.Side == Buy {
			if r.Quantity <= 0 && r.QuoteQuantity <= 0 {
				return NewError(KindInvalidParameter, "market buy requires base or quote quantity")
			}
		} else if r.Quantity <= 0 {
			return NewError(KindInvalidParameter, "market sell requires a base quantity")
		}
	default:
		return NewError(KindInvalidParameter, fmt.Sprintf("unsupported order type %q", r.Type))
	}
	return nil
}
