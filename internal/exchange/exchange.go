package exchange

import (
	"context"
	"time"
)

// SymbolMapper translates between canonical symbols and venue-native pair
// strings. Lookups are O(1) against tables built at startup from SymbolInfo
// discovery; strategy code never holds venue-native strings.
type SymbolMapper interface {
	ToPair(s Symbol) (string, error)
	ToSymbol(pair string) (Symbol, error)
	IsSupportedPair(pair string) bool
}

// PublicSpot is the venue-agnostic public market data contract.
type PublicSpot interface {
	GetSymbolsInfo(ctx context.Context) ([]SymbolInfo, error)
	GetOrderbook(ctx context.Context, symbol Symbol, limit int) (*OrderBook, error)
	GetRecentTrades(ctx context.Context, symbol Symbol, limit int) ([]Trade, error)
	GetHistoricalTrades(ctx context.Context, symbol Symbol, from, to time.Time, limit int) ([]Trade, error)
	GetTicker(ctx context.Context, symbol Symbol) (*BookTicker, error)
	GetKlines(ctx context.Context, symbol Symbol, interval string, from, to time.Time) ([]Kline, error)
	GetKlinesBatch(ctx context.Context, symbol Symbol, interval string, from, to time.Time) ([]Kline, error)
	GetServerTime(ctx context.Context) (time.Time, error)
	Ping(ctx context.Context) error
}

// PrivateSpot is the venue-agnostic trading and account contract.
type PrivateSpot interface {
	GetBalances(ctx context.Context) ([]AssetBalance, error)
	GetAssetBalance(ctx context.Context, asset string) (*AssetBalance, error)
	PlaceOrder(ctx context.Context, req *OrderRequest) (*Order, error)
	// CancelOrder collapses an already-done order into a best-effort GetOrder
	// and returns the terminal record instead of raising.
	CancelOrder(ctx context.Context, symbol Symbol, orderID string) (*Order, error)
	CancelAllOrders(ctx context.Context, symbol Symbol) ([]Order, error)
	GetOrder(ctx context.Context, symbol Symbol, orderID string) (*Order, error)
	// GetOpenOrders with a zero symbol returns an empty list (not an error) on
	// venues that mandate a symbol parameter.
	GetOpenOrders(ctx context.Context, symbol Symbol) ([]Order, error)
	GetHistoryOrders(ctx context.Context, symbol Symbol, start, end time.Time, limit int) ([]Order, error)
	GetAccountTrades(ctx context.Context, symbol Symbol, orderID string, start, end time.Time, limit int) ([]Trade, error)
	// ModifyOrder is cancel-and-replace on venues without native amend, and
	// notSupported where neither exists.
	ModifyOrder(ctx context.Context, symbol Symbol, orderID string, req *OrderRequest) (*Order, error)
	GetAssetsInfo(ctx context.Context) ([]AssetInfo, error)
	GetTradingFees(ctx context.Context, symbol Symbol) (*Fees, error)

	SubmitWithdrawal(ctx context.Context, req *WithdrawalRequest) (*WithdrawalRecord, error)
	CancelWithdrawal(ctx context.Context, withdrawalID string) (bool, error)
	GetWithdrawalStatus(ctx context.Context, withdrawalID string) (*WithdrawalRecord, error)
	GetWithdrawalHistory(ctx context.Context, asset string, limit int) ([]WithdrawalRecord, error)
	GetDepositAddress(ctx context.Context, asset, network string) (*DepositAddress, error)
	GetDepositHistory(ctx context.Context, asset string, limit int) ([]DepositRecord, error)
}

// PublicFutures extends public market data with funding.
type PublicFutures interface {
	PublicSpot
	GetFundingRate(ctx context.Context, symbol Symbol) (*FundingRate, error)
}

// PrivateFutures extends the private contract with position management.
// Closing a position is a market order on the opposite side; no venue in
// scope exposes a native close endpoint.
type PrivateFutures interface {
	PrivateSpot
	GetPositions(ctx context.Context) ([]Position, error)
	GetPosition(ctx context.Context, symbol Symbol) (*Position, error)
	UpdatePositionMargin(ctx context.Context, symbol Symbol, delta float64) (*Position, error)
	UpdatePositionLeverage(ctx context.Context, symbol Symbol, leverage float64) (*Position, error)
	ClosePosition(ctx context.Context, symbol Symbol) (*Order, error)
}

// ChannelKind identifies a typed WebSocket channel.
type ChannelKind string

const (
	ChannelOrderBook  ChannelKind = "orderbook"
	ChannelTrades     ChannelKind = "trades"
	ChannelBookTicker ChannelKind = "book_ticker"
	ChannelOrders     ChannelKind = "orders"
	ChannelBalances   ChannelKind = "balances"
	ChannelPositions  ChannelKind = "positions"
)

// Typed handlers invoked by a venue facade when WS updates arrive. Handlers
// for one channel run serialized in bind order; handlers for different
// channels may run concurrently.
type (
	OrderBookHandler  func(kind ExchangeKind, book *OrderBook)
	TradeHandler      func(kind ExchangeKind, trade *Trade)
	BookTickerHandler func(kind ExchangeKind, ticker *BookTicker)
	OrderHandler      func(kind ExchangeKind, order *Order)
	BalanceHandler    func(kind ExchangeKind, balance *AssetBalance)
	PositionHandler   func(kind ExchangeKind, position *Position)
)
