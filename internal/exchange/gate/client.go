package gate

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"crossarb/internal/exchange"
	"crossarb/internal/ratelimit"
	"crossarb/internal/rest"
	"crossarb/internal/ws"
)

// Config holds everything a Gate.io facade needs. Private mode requires both
// keys; public-only clients leave them empty. Spot and futures facades take
// separate Config values because rate limits and WS endpoints differ.
type Config struct {
	APIKey    string
	SecretKey string
	BaseURL   string // defaults to BaseURLProduction
	WSBaseURL string // defaults per market
	UserID    string // futures private channels only
	Settle    string // futures only: SettleUSDT (default) or SettleBTC
	Limits    ratelimit.Limits
	REST      rest.Config
	WS        ws.Config
}

// symbolInfoTTL bounds how stale the cached instrument metadata may get.
const symbolInfoTTL = 5 * time.Minute

func (cfg *Config) fill(venue exchange.ExchangeKind, wsDefault string) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = BaseURLProduction
	}
	if cfg.WSBaseURL == "" {
		cfg.WSBaseURL = wsDefault
	}
	if cfg.Limits.RequestsPerSecond == 0 {
		cfg.Limits = ratelimit.Limits{RequestsPerSecond: 10, Burst: 20}
	}
	cfg.REST.Venue = string(venue)
	cfg.REST.BaseURL = cfg.BaseURL
	cfg.WS.Venue = string(venue)
}

// SpotClient is the composite Gate.io spot facade: REST adapter, WS session,
// symbol mapper and live market/account mirrors. Construction does no I/O;
// Initialize opens the connections.
type SpotClient struct {
	*SpotAdapter

	cfg      Config
	dialect  *SpotDialect
	registry *ws.Registry
	session  *ws.Session

	stopRefresh chan struct{}
	refreshWG   sync.WaitGroup

	mu      sync.RWMutex
	infos   map[exchange.Symbol]exchange.SymbolInfo
	tickers map[exchange.Symbol]exchange.BookTicker
	books   map[exchange.Symbol]exchange.OrderBook
	balance map[string]exchange.AssetBalance
	orders  map[string]exchange.Order

	onTicker  exchange.BookTickerHandler
	onTrade   exchange.TradeHandler
	onBook    exchange.OrderBookHandler
	onOrder   exchange.OrderHandler
	onBalance exchange.BalanceHandler
}

// NewSpot builds the spot facade. No network traffic happens here.
func NewSpot(cfg Config) (*SpotClient, error) {
	cfg.fill(exchange.GateSpot, WSSpotBaseURL)

	limiter, err := ratelimit.New(string(exchange.GateSpot), cfg.Limits)
	if err != nil {
		return nil, err
	}

	mapper := NewMapper()
	var auth rest.Authenticator = rest.NoAuth{}
	var signer *Authenticator
	if cfg.APIKey != "" {
		signer = NewAuthenticator(cfg.APIKey, cfg.SecretKey)
		auth = signer
	}

	restClient := rest.New(cfg.REST, limiter, auth, Classifier{})

	dialect := NewSpotDialect(mapper, signer)
	dialect.SetBaseURL(cfg.WSBaseURL)
	registry := ws.NewRegistry()

	c := &SpotClient{
		SpotAdapter: NewSpotAdapter(restClient, mapper),
		cfg:         cfg,
		dialect:     dialect,
		registry:    registry,
		session:     ws.NewSession(cfg.WS, dialect, registry),
		stopRefresh: make(chan struct{}),
		infos:       make(map[exchange.Symbol]exchange.SymbolInfo),
		tickers:     make(map[exchange.Symbol]exchange.BookTicker),
		books:       make(map[exchange.Symbol]exchange.OrderBook),
		balance:     make(map[string]exchange.AssetBalance),
		orders:      make(map[string]exchange.Order),
	}
	c.session.OnReconnect(c.reconcileAfterReconnect)
	return c, nil
}

// Kind identifies the venue.
func (c *SpotClient) Kind() exchange.ExchangeKind { return exchange.GateSpot }

// Session exposes the WS session (tests and the orchestrator's health check).
func (c *SpotClient) Session() *ws.Session { return c.session }

// Initialize loads symbol info, opens the WS session and subscribes the
// requested channels with default handlers feeding the live mirrors.
func (c *SpotClient) Initialize(ctx context.Context, symbols []exchange.Symbol, channels []exchange.ChannelKind) error {
	infos, err := c.GetSymbolsInfo(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	for _, info := range infos {
		c.infos[info.Symbol] = info
	}
	c.mu.Unlock()

	private := false
	var wanted []ws.Channel
	for _, kind := range channels {
		switch kind {
		case exchange.ChannelOrders, exchange.ChannelBalances:
			private = true
			wanted = append(wanted, ws.Channel{Kind: kind})
		default:
			for _, s := range symbols {
				wanted = append(wanted, ws.Channel{Kind: kind, Symbol: s})
			}
		}
	}
	if private && c.cfg.APIKey == "" {
		return exchange.NewError(exchange.KindInvalidCredentials, "private channels need API credentials")
	}

	c.bindDefaults(symbols)

	if err := c.session.Connect(ctx); err != nil {
		return err
	}
	if len(wanted) > 0 {
		if err := c.session.Subscribe(wanted...); err != nil {
			return err
		}
	}

	c.refreshWG.Add(1)
	go c.refreshInfosLoop()

	log.Info().
		Str("venue", string(exchange.GateSpot)).
		Int("symbols", len(symbols)).
		Int("channels", len(wanted)).
		Bool("private", private).
		Msg("Facade initialized")
	return nil
}

// Close stops the info refresher and tears down the WS session.
func (c *SpotClient) Close() error {
	close(c.stopRefresh)
	c.refreshWG.Wait()
	return c.session.Close()
}

// refreshInfosLoop re-reads instrument metadata on the symbol info TTL so
// fee and filter changes reach the mirror without a restart.
func (c *SpotClient) refreshInfosLoop() {
	defer c.refreshWG.Done()

	ticker := time.NewTicker(symbolInfoTTL)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopRefresh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			infos, err := c.GetSymbolsInfo(ctx)
			cancel()
			if err != nil {
				log.Warn().Err(err).Str("venue", string(exchange.GateSpot)).Msg("Symbol info refresh failed")
				continue
			}
			c.mu.Lock()
			for _, info := range infos {
				c.infos[info.Symbol] = info
			}
			c.mu.Unlock()
		}
	}
}

func (c *SpotClient) bindDefaults(symbols []exchange.Symbol) {
	for _, s := range symbols {
		sym := s
		c.registry.Bind(ws.Channel{Kind: exchange.ChannelBookTicker, Symbol: sym}, func(ev *ws.Event) {
			t, ok := ws.PayloadAs[*exchange.BookTicker](ev)
			if !ok {
				return
			}
			c.mu.Lock()
			c.tickers[sym] = *t
			c.mu.Unlock()
			if c.onTicker != nil {
				c.onTicker(exchange.GateSpot, t)
			}
		})
		c.registry.Bind(ws.Channel{Kind: exchange.ChannelOrderBook, Symbol: sym}, func(ev *ws.Event) {
			b, ok := ws.PayloadAs[*exchange.OrderBook](ev)
			if !ok {
				return
			}
			c.mu.Lock()
			c.books[sym] = *b
			c.mu.Unlock()
			if c.onBook != nil {
				c.onBook(exchange.GateSpot, b)
			}
		})
		c.registry.Bind(ws.Channel{Kind: exchange.ChannelTrades, Symbol: sym}, func(ev *ws.Event) {
			t, ok := ws.PayloadAs[*exchange.Trade](ev)
			if !ok {
				return
			}
			if c.onTrade != nil {
				c.onTrade(exchange.GateSpot, t)
			}
		})
	}

	c.registry.Bind(ws.Channel{Kind: exchange.ChannelOrders}, func(ev *ws.Event) {
		o, ok := ws.PayloadAs[*exchange.Order](ev)
		if !ok {
			return
		}
		c.mu.Lock()
		if o.Status.IsTerminal() {
			delete(c.orders, o.ID)
		} else {
			c.orders[o.ID] = *o
		}
		c.mu.Unlock()
		if c.onOrder != nil {
			c.onOrder(exchange.GateSpot, o)
		}
	})
	c.registry.Bind(ws.Channel{Kind: exchange.ChannelBalances}, func(ev *ws.Event) {
		b, ok := ws.PayloadAs[*exchange.AssetBalance](ev)
		if !ok {
			return
		}
		c.mu.Lock()
		c.balance[b.Asset] = *b
		c.mu.Unlock()
		if c.onBalance != nil {
			c.onBalance(exchange.GateSpot, b)
		}
	})
}

// SetBookTickerHandler installs the user hook for best bid/ask updates.
func (c *SpotClient) SetBookTickerHandler(h exchange.BookTickerHandler) { c.onTicker = h }

// SetTradeHandler installs the user hook for public trade prints.
func (c *SpotClient) SetTradeHandler(h exchange.TradeHandler) { c.onTrade = h }

// SetOrderBookHandler installs the user hook for depth updates.
func (c *SpotClient) SetOrderBookHandler(h exchange.OrderBookHandler) { c.onBook = h }

// SetOrderHandler installs the user hook for private order updates.
func (c *SpotClient) SetOrderHandler(h exchange.OrderHandler) { c.onOrder = h }

// SetBalanceHandler installs the user hook for private balance updates.
func (c *SpotClient) SetBalanceHandler(h exchange.BalanceHandler) { c.onBalance = h }

// BookTicker returns the latest WS-pushed best bid/ask for the symbol.
func (c *SpotClient) BookTicker(symbol exchange.Symbol) (exchange.BookTicker, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tickers[symbol]
	return t, ok
}

// SymbolInfo returns the cached instrument metadata.
func (c *SpotClient) SymbolInfo(symbol exchange.Symbol) (exchange.SymbolInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.infos[symbol]
	return info, ok
}

// MirroredBalance returns the WS-maintained balance for the asset.
func (c *SpotClient) MirroredBalance(asset string) (exchange.AssetBalance, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.balance[asset]
	return b, ok
}

func (c *SpotClient) reconcileAfterReconnect() {
	if c.cfg.APIKey == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	balances, err := c.GetBalances(ctx)
	if err != nil {
		log.Warn().Err(err).Str("venue", string(exchange.GateSpot)).Msg("Balance reconciliation failed after reconnect")
		return
	}
	c.mu.Lock()
	for _, b := range balances {
		c.balance[b.Asset] = b
	}
	c.mu.Unlock()
}

// FuturesClient is the composite Gate.io perpetual facade. It adds a
// live position mirror on top of the spot facade's market and balance
// mirrors.
type FuturesClient struct {
	*FuturesAdapter

	kind     exchange.ExchangeKind
	cfg      Config
	dialect  *FuturesDialect
	registry *ws.Registry
	session  *ws.Session

	stopRefresh chan struct{}
	refreshWG   sync.WaitGroup

	mu        sync.RWMutex
	infos     map[exchange.Symbol]exchange.SymbolInfo
	tickers   map[exchange.Symbol]exchange.BookTicker
	books     map[exchange.Symbol]exchange.OrderBook
	balance   map[string]exchange.AssetBalance
	orders    map[string]exchange.Order
	positions map[exchange.Symbol]exchange.Position

	onTicker   exchange.BookTickerHandler
	onTrade    exchange.TradeHandler
	onBook     exchange.OrderBookHandler
	onOrder    exchange.OrderHandler
	onBalance  exchange.BalanceHandler
	onPosition exchange.PositionHandler
}

// NewFutures builds the futures facade. No network traffic happens here.
func NewFutures(cfg Config) (*FuturesClient, error) {
	if cfg.Settle == "" {
		cfg.Settle = SettleUSDT
	}
	kind := exchange.GateFuturesUSDT
	if cfg.Settle == SettleBTC {
		kind = exchange.GateFuturesBTC
	}
	cfg.fill(kind, "wss://fx-ws.gateio.ws/v4/ws/"+cfg.Settle+"/")

	limiter, err := ratelimit.New(string(kind), cfg.Limits)
	if err != nil {
		return nil, err
	}

	mapper := NewMapper()
	var auth rest.Authenticator = rest.NoAuth{}
	var signer *Authenticator
	if cfg.APIKey != "" {
		signer = NewAuthenticator(cfg.APIKey, cfg.SecretKey)
		auth = signer
	}

	restClient := rest.New(cfg.REST, limiter, auth, Classifier{})

	dialect := NewFuturesDialect(mapper, signer)
	dialect.SetBaseURL(cfg.WSBaseURL)
	if cfg.UserID != "" {
		dialect.SetUserID(cfg.UserID)
	}
	registry := ws.NewRegistry()

	c := &FuturesClient{
		FuturesAdapter: NewFuturesAdapter(restClient, mapper, cfg.Settle),
		kind:           kind,
		cfg:            cfg,
		dialect:        dialect,
		registry:       registry,
		session:        ws.NewSession(cfg.WS, dialect, registry),
		infos:          make(map[exchange.Symbol]exchange.SymbolInfo),
		tickers:        make(map[exchange.Symbol]exchange.BookTicker),
		books:          make(map[exchange.Symbol]exchange.OrderBook),
		balance:        make(map[string]exchange.AssetBalance),
		orders:         make(map[string]exchange.Order),
		positions:      make(map[exchange.Symbol]exchange.Position),
		stopRefresh:    make(chan struct{}),
	}
	dialect.SetContractSizeFunc(func(symbol exchange.Symbol) float64 {
		c.mu.RLock()
		defer c.mu.RUnlock()
		if info, ok := c.infos[symbol]; ok && info.ContractSize > 0 {
			return info.ContractSize
		}
		return 1
	})
	c.session.OnReconnect(c.reconcileAfterReconnect)
	return c, nil
}

// Kind identifies the venue.
func (c *FuturesClient) Kind() exchange.ExchangeKind { return c.kind }

// Session exposes the WS session (tests and the orchestrator's health check).
func (c *FuturesClient) Session() *ws.Session { return c.session }

// Initialize loads contract metadata, opens the WS session and subscribes the
// requested channels with default handlers feeding the live mirrors.
func (c *FuturesClient) Initialize(ctx context.Context, symbols []exchange.Symbol, channels []exchange.ChannelKind) error {
	infos, err := c.GetSymbolsInfo(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	for _, info := range infos {
		c.infos[info.Symbol] = info
	}
	c.mu.Unlock()

	private := false
	var wanted []ws.Channel
	for _, kind := range channels {
		switch kind {
		case exchange.ChannelOrders, exchange.ChannelBalances, exchange.ChannelPositions:
			private = true
			wanted = append(wanted, ws.Channel{Kind: kind})
		default:
			for _, s := range symbols {
				wanted = append(wanted, ws.Channel{Kind: kind, Symbol: s})
			}
		}
	}
	if private && c.cfg.APIKey == "" {
		return exchange.NewError(exchange.KindInvalidCredentials, "private channels need API credentials")
	}

	c.bindDefaults(symbols)

	if err := c.session.Connect(ctx); err != nil {
		return err
	}
	if len(wanted) > 0 {
		if err := c.session.Subscribe(wanted...); err != nil {
			return err
		}
	}

	c.refreshWG.Add(1)
	go c.refreshInfosLoop()

	log.Info().
		Str("venue", string(c.kind)).
		Int("symbols", len(symbols)).
		Int("channels", len(wanted)).
		Bool("private", private).
		Msg("Facade initialized")
	return nil
}

// Close stops the info refresher and tears down the WS session.
func (c *FuturesClient) Close() error {
	close(c.stopRefresh)
	c.refreshWG.Wait()
	return c.session.Close()
}

// refreshInfosLoop re-reads contract metadata on the symbol info TTL so the
// WS contract-size scaling never drifts from the venue.
func (c *FuturesClient) refreshInfosLoop() {
	defer c.refreshWG.Done()

	ticker := time.NewTicker(symbolInfoTTL)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopRefresh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			infos, err := c.GetSymbolsInfo(ctx)
			cancel()
			if err != nil {
				log.Warn().Err(err).Str("venue", string(c.kind)).Msg("Symbol info refresh failed")
				continue
			}
			c.mu.Lock()
			for _, info := range infos {
				c.infos[info.Symbol] = info
			}
			c.mu.Unlock()
		}
	}
}

func (c *FuturesClient) bindDefaults(symbols []exchange.Symbol) {
	for _, s := range symbols {
		sym := s
		c.registry.Bind(ws.Channel{Kind: exchange.ChannelBookTicker, Symbol: sym}, func(ev *ws.Event) {
			t, ok := ws.PayloadAs[*exchange.BookTicker](ev)
			if !ok {
				return
			}
			c.mu.Lock()
			c.tickers[sym] = *t
			c.mu.Unlock()
			if c.onTicker != nil {
				c.onTicker(c.kind, t)
			}
		})
		c.registry.Bind(ws.Channel{Kind: exchange.ChannelOrderBook, Symbol: sym}, func(ev *ws.Event) {
			b, ok := ws.PayloadAs[*exchange.OrderBook](ev)
			if !ok {
				return
			}
			c.mu.Lock()
			c.books[sym] = *b
			c.mu.Unlock()
			if c.onBook != nil {
				c.onBook(c.kind, b)
			}
		})
		c.registry.Bind(ws.Channel{Kind: exchange.ChannelTrades, Symbol: sym}, func(ev *ws.Event) {
			t, ok := ws.PayloadAs[*exchange.Trade](ev)
			if !ok {
				return
			}
			if c.onTrade != nil {
				c.onTrade(c.kind, t)
			}
		})
	}

	c.registry.Bind(ws.Channel{Kind: exchange.ChannelOrders}, func(ev *ws.Event) {
		o, ok := ws.PayloadAs[*exchange.Order](ev)
		if !ok {
			return
		}
		c.mu.Lock()
		if o.Status.IsTerminal() {
			delete(c.orders, o.ID)
		} else {
			c.orders[o.ID] = *o
		}
		c.mu.Unlock()
		if c.onOrder != nil {
			c.onOrder(c.kind, o)
		}
	})
	c.registry.Bind(ws.Channel{Kind: exchange.ChannelBalances}, func(ev *ws.Event) {
		b, ok := ws.PayloadAs[*exchange.AssetBalance](ev)
		if !ok {
			return
		}
		c.mu.Lock()
		c.balance[b.Asset] = *b
		c.mu.Unlock()
		if c.onBalance != nil {
			c.onBalance(c.kind, b)
		}
	})
	c.registry.Bind(ws.Channel{Kind: exchange.ChannelPositions}, func(ev *ws.Event) {
		p, ok := ws.PayloadAs[*exchange.Position](ev)
		if !ok {
			return
		}
		c.mu.Lock()
		if p.Size == 0 {
			delete(c.positions, p.Symbol)
		} else {
			c.positions[p.Symbol] = *p
		}
		c.mu.Unlock()
		if c.onPosition != nil {
			c.onPosition(c.kind, p)
		}
	})
}

// SetBookTickerHandler installs the user hook for best bid/ask updates.
func (c *FuturesClient) SetBookTickerHandler(h exchange.BookTickerHandler) { c.onTicker = h }

// SetTradeHandler installs the user hook for public trade prints.
func (c *FuturesClient) SetTradeHandler(h exchange.TradeHandler) { c.onTrade = h }

// SetOrderBookHandler installs the user hook for depth updates.
func (c *FuturesClient) SetOrderBookHandler(h exchange.OrderBookHandler) { c.onBook = h }

// SetOrderHandler installs the user hook for private order updates.
func (c *FuturesClient) SetOrderHandler(h exchange.OrderHandler) { c.onOrder = h }

// SetBalanceHandler installs the user hook for private balance updates.
func (c *FuturesClient) SetBalanceHandler(h exchange.BalanceHandler) { c.onBalance = h }

// SetPositionHandler installs the user hook for position updates.
func (c *FuturesClient) SetPositionHandler(h exchange.PositionHandler) { c.onPosition = h }

// BookTicker returns the latest WS-pushed best bid/ask for the symbol.
func (c *FuturesClient) BookTicker(symbol exchange.Symbol) (exchange.BookTicker, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tickers[symbol]
	return t, ok
}

// SymbolInfo returns the cached contract metadata.
func (c *FuturesClient) SymbolInfo(symbol exchange.Symbol) (exchange.SymbolInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.infos[symbol]
	return info, ok
}

// MirroredBalance returns the WS-maintained margin balance for the asset.
func (c *FuturesClient) MirroredBalance(asset string) (exchange.AssetBalance, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.balance[asset]
	return b, ok
}

// MirroredPosition returns the WS-maintained position for the symbol.
func (c *FuturesClient) MirroredPosition(symbol exchange.Symbol) (exchange.Position, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.positions[symbol]
	return p, ok
}

func (c *FuturesClient) reconcileAfterReconnect() {
	if c.cfg.APIKey == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	positions, err := c.GetPositions(ctx)
	if err != nil {
		log.Warn().Err(err).Str("venue", string(c.kind)).Msg("Position reconciliation failed after reconnect")
		return
	}
	c.mu.Lock()
	c.positions = make(map[exchange.Symbol]exchange.Position, len(positions))
	for _, p := range positions {
		c.positions[p.Symbol] = p
	}
	c.mu.Unlock()
}
