package mexc

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

// listenKeyKeepAlive is the venue-prescribed refresh interval.
const listenKeyKeepAlive = 30 * time.Minute

// symbolInfoTTL bounds how stale the cached instrument metadata may get.
const symbolInfoTTL = 5 * time.Minute

// Config holds everything a MEXC facade needs. Private mode requires both
// keys; public-only clients leave them empty.
type Config struct {
	APIKey    string
	SecretKey string
	BaseURL   string // defaults to BaseURLProduction
	WSBaseURL string // defaults to WSBaseURL
	Limits    ratelimit.Limits
	REST      rest.Config
	WS        ws.Config
}

// Client is the composite MEXC spot facade: REST adapter, WS session, symbol
// mapper and live market/account mirrors. Construction does no I/O;
// Initialize opens the connections.
type Client struct {
	*Adapter

	cfg      Config
	dialect  *Dialect
	registry *ws.Registry
	session  *ws.Session

	mu      sync.RWMutex
	infos   map[exchange.Symbol]exchange.SymbolInfo
	tickers map[exchange.Symbol]exchange.BookTicker
	books   map[exchange.Symbol]exchange.OrderBook
	balance map[string]exchange.AssetBalance
	orders  map[string]exchange.Order

	listenKey string
	stopKeep  chan struct{}
	keepWG    sync.WaitGroup

	onTicker  exchange.BookTickerHandler
	onTrade   exchange.TradeHandler
	onBook    exchange.OrderBookHandler
	onOrder   exchange.OrderHandler
	onBalance exchange.BalanceHandler
}

// New builds the facade. No network traffic happens here.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = BaseURLProduction
	}
	if cfg.WSBaseURL == "" {
		cfg.WSBaseURL = WSBaseURL
	}
	if cfg.Limits.RequestsPerSecond == 0 {
		cfg.Limits = ratelimit.Limits{RequestsPerSecond: 20, Burst: 40}
	}
	cfg.REST.Venue = string(exchange.MEXCSpot)
	cfg.REST.BaseURL = cfg.BaseURL
	cfg.WS.Venue = string(exchange.MEXCSpot)

	limiter, err := ratelimit.New(string(exchange.MEXCSpot), cfg.Limits)
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

	dialect := NewDialect(mapper)
	dialect.SetBaseURL(cfg.WSBaseURL)
	registry := ws.NewRegistry()

	c := &Client{
		Adapter:  NewAdapter(restClient, mapper, signer),
		cfg:      cfg,
		dialect:  dialect,
		registry: registry,
		session:  ws.NewSession(cfg.WS, dialect, registry),
		infos:    make(map[exchange.Symbol]exchange.SymbolInfo),
		tickers:  make(map[exchange.Symbol]exchange.BookTicker),
		books:    make(map[exchange.Symbol]exchange.OrderBook),
		balance:  make(map[string]exchange.AssetBalance),
		orders:   make(map[string]exchange.Order),
		stopKeep: make(chan struct{}),
	}
	c.session.OnReconnect(c.reconcileAfterReconnect)
	return c, nil
}

// Kind identifies the venue.
func (c *Client) Kind() exchange.ExchangeKind { return exchange.MEXCSpot }

// Session exposes the WS session (tests and the orchestrator's health check).
func (c *Client) Session() *ws.Session { return c.session }

// Initialize loads symbol info, opens the WS session and subscribes the
// requested channels with default handlers feeding the live mirrors.
func (c *Client) Initialize(ctx context.Context, symbols []exchange.Symbol, channels []exchange.ChannelKind) error {
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

	if private {
		if c.cfg.APIKey == "" {
			return exchange.NewError(exchange.KindInvalidCredentials, "private channels need API credentials")
		}
		key, err := c.CreateListenKey(ctx)
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.listenKey = key
		c.mu.Unlock()
		c.dialect.SetListenKey(key)

		c.keepWG.Add(1)
		go c.keepAliveLoop()
	}

	c.bindDefaults()

	if err := c.session.Connect(ctx); err != nil {
		return err
	}
	if len(wanted) > 0 {
		if err := c.session.Subscribe(wanted...); err != nil {
			return err
		}
	}

	c.keepWG.Add(1)
	go c.refreshInfosLoop()

	log.Info().
		Str("venue", string(exchange.MEXCSpot)).
		Int("symbols", len(symbols)).
		Int("channels", len(wanted)).
		Bool("private", private).
		Msg("Facade initialized")
	return nil
}

// Close tears down keep-alive, the listen key and the WS session.
func (c *Client) Close() error {
	close(c.stopKeep)
	c.keepWG.Wait()

	c.mu.RLock()
	key := c.listenKey
	c.mu.RUnlock()
	if key != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := c.DeleteListenKey(ctx, key); err != nil {
			log.Warn().Err(err).Str("venue", string(exchange.MEXCSpot)).Msg("Listen key delete failed")
		}
		cancel()
	}
	return c.session.Close()
}

// bindDefaults attaches the mirror-maintaining handlers for every channel the
// venue supports; user hooks fire after the mirror update.
func (c *Client) bindDefaults() {
	c.mu.RLock()
	symbols := make([]exchange.Symbol, 0, len(c.infos))
	for s := range c.infos {
		symbols = append(symbols, s)
	}
	c.mu.RUnlock()

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
				c.onTicker(exchange.MEXCSpot, t)
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
				c.onBook(exchange.MEXCSpot, b)
			}
		})
		c.registry.Bind(ws.Channel{Kind: exchange.ChannelTrades, Symbol: sym}, func(ev *ws.Event) {
			t, ok := ws.PayloadAs[*exchange.Trade](ev)
			if !ok {
				return
			}
			if c.onTrade != nil {
				c.onTrade(exchange.MEXCSpot, t)
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
			c.onOrder(exchange.MEXCSpot, o)
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
			c.onBalance(exchange.MEXCSpot, b)
		}
	})
}

// SetBookTickerHandler installs the user hook for best bid/ask updates.
func (c *Client) SetBookTickerHandler(h exchange.BookTickerHandler) { c.onTicker = h }

// SetTradeHandler installs the user hook for public trade prints.
func (c *Client) SetTradeHandler(h exchange.TradeHandler) { c.onTrade = h }

// SetOrderBookHandler installs the user hook for depth updates.
func (c *Client) SetOrderBookHandler(h exchange.OrderBookHandler) { c.onBook = h }

// SetOrderHandler installs the user hook for private order updates.
func (c *Client) SetOrderHandler(h exchange.OrderHandler) { c.onOrder = h }

// SetBalanceHandler installs the user hook for private balance updates.
func (c *Client) SetBalanceHandler(h exchange.BalanceHandler) { c.onBalance = h }

// BookTicker returns the latest WS-pushed best bid/ask for the symbol.
func (c *Client) BookTicker(symbol exchange.Symbol) (exchange.BookTicker, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tickers[symbol]
	return t, ok
}

// SymbolInfo returns the cached instrument metadata.
func (c *Client) SymbolInfo(symbol exchange.Symbol) (exchange.SymbolInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.infos[symbol]
	return info, ok
}

// MirroredBalance returns the WS-maintained balance for the asset.
func (c *Client) MirroredBalance(asset string) (exchange.AssetBalance, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.balance[asset]
	return b, ok
}

// keepAliveLoop refreshes the listen key at the venue interval. A failed
// refresh recreates the key and forces the session to redial with it.
func (c *Client) keepAliveLoop() {
	defer c.keepWG.Done()

	ticker := time.NewTicker(listenKeyKeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopKeep:
			return
		case <-ticker.C:
			c.mu.RLock()
			key := c.listenKey
			c.mu.RUnlock()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := c.KeepAliveListenKey(ctx, key)
			cancel()
			if err == nil {
				continue
			}

			log.Warn().Err(err).Str("venue", string(exchange.MEXCSpot)).Msg("Listen key refresh failed, recreating")

			ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
			newKey, cerr := c.CreateListenKey(ctx)
			cancel()
			if cerr != nil {
				log.Error().Err(cerr).Str("venue", string(exchange.MEXCSpot)).Msg("Listen key recreation failed")
				continue
			}

			c.mu.Lock()
			c.listenKey = newKey
			c.mu.Unlock()
			c.dialect.SetListenKey(newKey)
			c.session.ForceReconnect()
		}
	}
}

// refreshInfosLoop re-reads instrument metadata on the symbol info TTL so
// fee and filter changes reach the mirror without a restart.
func (c *Client) refreshInfosLoop() {
	defer c.keepWG.Done()

	ticker := time.NewTicker(symbolInfoTTL)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopKeep:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			infos, err := c.GetSymbolsInfo(ctx)
			cancel()
			if err != nil {
				log.Warn().Err(err).Str("venue", string(exchange.MEXCSpot)).Msg("Symbol info refresh failed")
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

// reconcileAfterReconnect refreshes the mirrors REST-side after a WS gap; the
// stream may have dropped terminal order transitions while down.
func (c *Client) reconcileAfterReconnect() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if c.cfg.APIKey == "" {
		return
	}

	balances, err := c.GetBalances(ctx)
	if err != nil {
		log.Warn().Err(err).Str("venue", string(exchange.MEXCSpot)).Msg("Balance reconciliation failed after reconnect")
		return
	}
	c.mu.Lock()
	for _, b := range balances {
		c.balance[b.Asset] = b
	}
	c.mu.Unlock()
}
