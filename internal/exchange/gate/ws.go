package gate

import (
	"encoding/json"
	"fmt"
	"time"

	"crossarb/internal/exchange"
	"crossarb/internal/ws"
)

// WS endpoints and channel names
const (
	WSSpotBaseURL    = "wss://api.gateio.ws/ws/v4/"
	WSFuturesBaseURL = "wss://fx-ws.gateio.ws/v4/ws/usdt/"

	wsSpotPing       = "spot.ping"
	wsSpotBookTicker = "spot.book_ticker"
	wsSpotTrades     = "spot.trades"
	wsSpotOrderBook  = "spot.order_book"
	wsSpotOrders     = "spot.orders"
	wsSpotBalances   = "spot.balances"

	wsFuturesPing       = "futures.ping"
	wsFuturesBookTicker = "futures.book_ticker"
	wsFuturesTrades     = "futures.trades"
	wsFuturesOrderBook  = "futures.order_book"
	wsFuturesOrders     = "futures.orders"
	wsFuturesBalances   = "futures.balances"
	wsFuturesPositions  = "futures.positions"
)

// wsFrame is the outbound Gate.io WS envelope, shared by spot and futures.
type wsFrame struct {
	Time    int64    `json:"time"`
	Channel string   `json:"channel"`
	Event   string   `json:"event,omitempty"`
	Payload []string `json:"payload,omitempty"`
	Auth    *wsAuth  `json:"auth,omitempty"`
}

// wsAuth is the per-frame credential block for private channels. The SIGN
// covers channel, event and timestamp, so every subscribe frame is signed
// individually.
type wsAuth struct {
	Method string `json:"method"`
	Key    string `json:"KEY"`
	Sign   string `json:"SIGN"`
}

// wsInbound is the inbound envelope.
type wsInbound struct {
	TimeMs  int64  `json:"time_ms"`
	Channel string `json:"channel"`
	Event   string `json:"event"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Result json.RawMessage `json:"result"`
}

func signedAuth(auth *Authenticator, channel, event string, t int64) *wsAuth {
	if auth == nil {
		return nil
	}
	return &wsAuth{
		Method: "api_key",
		Key:    auth.APIKey(),
		Sign:   auth.SignWSChannel(channel, event, t),
	}
}

// SpotDialect implements the Gate.io spot WS framing. Private channels carry
// a per-frame HMAC signature instead of a login sequence.
type SpotDialect struct {
	baseURL string
	mapper  *Mapper
	auth    *Authenticator
}

// NewSpotDialect creates the spot dialect; auth may be nil for public-only
// streams.
func NewSpotDialect(mapper *Mapper, auth *Authenticator) *SpotDialect {
	return &SpotDialect{baseURL: WSSpotBaseURL, mapper: mapper, auth: auth}
}

// SetBaseURL overrides the dial endpoint (tests).
func (d *SpotDialect) SetBaseURL(u string) { d.baseURL = u }

func (d *SpotDialect) URL() string { return d.baseURL }

func (d *SpotDialect) PingFrame() ([]byte, error) {
	return json.Marshal(wsFrame{Time: time.Now().Unix(), Channel: wsSpotPing, Event: "ping"})
}

// AuthFrames is empty: Gate.io signs each private subscribe frame in place.
func (d *SpotDialect) AuthFrames() ([][]byte, error) { return nil, nil }

func (d *SpotDialect) SubscribeFrames(channels []ws.Channel) ([][]byte, error) {
	return d.frames(channels, "subscribe")
}

func (d *SpotDialect) UnsubscribeFrames(channels []ws.Channel) ([][]byte, error) {
	return d.frames(channels, "unsubscribe")
}

func (d *SpotDialect) frames(channels []ws.Channel, event string) ([][]byte, error) {
	now := time.Now().Unix()
	frames := make([][]byte, 0, len(channels))
	for _, c := range channels {
		var name string
		var payload []string
		private := false
		switch c.Kind {
		case exchange.ChannelBookTicker:
			pair, err := d.mapper.ToPair(c.Symbol)
			if err != nil {
				return nil, err
			}
			name, payload = wsSpotBookTicker, []string{pair}
		case exchange.ChannelTrades:
			pair, err := d.mapper.ToPair(c.Symbol)
			if err != nil {
				return nil, err
			}
			name, payload = wsSpotTrades, []string{pair}
		case exchange.ChannelOrderBook:
			pair, err := d.mapper.ToPair(c.Symbol)
			if err != nil {
				return nil, err
			}
			name, payload = wsSpotOrderBook, []string{pair, "5", "100ms"}
		case exchange.ChannelOrders:
			name, payload, private = wsSpotOrders, []string{"!all"}, true
		case exchange.ChannelBalances:
			name, private = wsSpotBalances, true
		default:
			return nil, exchange.NewError(exchange.KindNotSupported,
				fmt.Sprintf("channel %q not available on Gate spot", c.Kind))
		}

		frame := wsFrame{Time: now, Channel: name, Event: event, Payload: payload}
		if private {
			if d.auth == nil {
				return nil, exchange.NewError(exchange.KindInvalidCredentials,
					"private channel "+name+" requires credentials")
			}
			frame.Auth = signedAuth(d.auth, name, event, now)
		}
		encoded, err := json.Marshal(frame)
		if err != nil {
			return nil, err
		}
		frames = append(frames, encoded)
	}
	return frames, nil
}

// spot inbound payloads

type wsSpotBookTickerData struct {
	T    int64  `json:"t"` // milliseconds
	Pair string `json:"s"`
	Bid  string `json:"b"`
	BidQ string `json:"B"`
	Ask  string `json:"a"`
	AskQ string `json:"A"`
}

type wsSpotTradeData struct {
	ID           int64  `json:"id"`
	CreateTimeMs string `json:"create_time_ms"`
	Side         string `json:"side"`
	CurrencyPair string `json:"currency_pair"`
	Amount       string `json:"amount"`
	Price        string `json:"price"`
}

type wsSpotBookData struct {
	T    int64       `json:"t"`
	Pair string      `json:"s"`
	Bids [][2]string `json:"bids"`
	Asks [][2]string `json:"asks"`
}

type wsSpotOrderData struct {
	ID           string `json:"id"`
	Text         string `json:"text"`
	CurrencyPair string `json:"currency_pair"`
	Event        string `json:"event"` // put, update, finish
	Side         string `json:"side"`
	Amount       string `json:"amount"`
	Price        string `json:"price"`
	Left         string `json:"left"`
	TimeInForce  string `json:"time_in_force"`
	CreateTimeMs string `json:"create_time_ms"`
}

type wsSpotBalanceData struct {
	Currency  string `json:"currency"`
	Available string `json:"available"`
	Total     string `json:"total"`
}

func (d *SpotDialect) Decode(data []byte) ([]*ws.Event, error) {
	var msg wsInbound
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Error != nil {
		return nil, fmt.Errorf("ws error %d: %s", msg.Error.Code, msg.Error.Message)
	}
	// acks and pongs need no dispatch
	if msg.Event != "update" && msg.Event != "all" {
		return nil, nil
	}

	switch msg.Channel {
	case wsSpotBookTicker:
		var t wsSpotBookTickerData
		if err := json.Unmarshal(msg.Result, &t); err != nil {
			return nil, err
		}
		symbol, err := d.mapper.ToSymbol(t.Pair)
		if err != nil {
			return nil, err
		}
		return []*ws.Event{{
			Channel: ws.Channel{Kind: exchange.ChannelBookTicker, Symbol: symbol}.Key(),
			Payload: &exchange.BookTicker{
				Symbol:    symbol,
				BidPrice:  parseF(t.Bid),
				BidQty:    parseF(t.BidQ),
				AskPrice:  parseF(t.Ask),
				AskQty:    parseF(t.AskQ),
				Timestamp: time.UnixMilli(t.T),
			},
		}}, nil

	case wsSpotTrades:
		var t wsSpotTradeData
		if err := json.Unmarshal(msg.Result, &t); err != nil {
			return nil, err
		}
		symbol, err := d.mapper.ToSymbol(t.CurrencyPair)
		if err != nil {
			return nil, err
		}
		side := exchange.Buy
		if t.Side == "sell" {
			side = exchange.Sell
		}
		return []*ws.Event{{
			Channel: ws.Channel{Kind: exchange.ChannelTrades, Symbol: symbol}.Key(),
			Payload: &exchange.Trade{
				TradeID:   fmt.Sprintf("%d", t.ID),
				Symbol:    symbol,
				Price:     parseF(t.Price),
				Quantity:  parseF(t.Amount),
				Side:      side,
				Timestamp: time.UnixMilli(int64(parseF(t.CreateTimeMs))),
			},
		}}, nil

	case wsSpotOrderBook:
		var b wsSpotBookData
		if err := json.Unmarshal(msg.Result, &b); err != nil {
			return nil, err
		}
		symbol, err := d.mapper.ToSymbol(b.Pair)
		if err != nil {
			return nil, err
		}
		book := &exchange.OrderBook{Symbol: symbol, Timestamp: time.UnixMilli(b.T)}
		for _, lv := range b.Bids {
			book.Bids = append(book.Bids, exchange.PriceLevel{Price: parseF(lv[0]), Size: parseF(lv[1])})
		}
		for _, lv := range b.Asks {
			book.Asks = append(book.Asks, exchange.PriceLevel{Price: parseF(lv[0]), Size: parseF(lv[1])})
		}
		return []*ws.Event{{
			Channel: ws.Channel{Kind: exchange.ChannelOrderBook, Symbol: symbol}.Key(),
			Payload: book,
		}}, nil

	case wsSpotOrders:
		// a single frame batches lifecycle transitions; every element counts
		var orders []wsSpotOrderData
		if err := json.Unmarshal(msg.Result, &orders); err != nil {
			return nil, err
		}
		events := make([]*ws.Event, 0, len(orders))
		for i := range orders {
			symbol, err := d.mapper.ToSymbol(orders[i].CurrencyPair)
			if err != nil {
				return nil, err
			}
			events = append(events, &ws.Event{
				Channel: ws.Channel{Kind: exchange.ChannelOrders}.Key(),
				Payload: wsSpotOrderToOrder(&orders[i], symbol),
			})
		}
		return events, nil

	case wsSpotBalances:
		// one fill moves base and quote in the same frame
		var balances []wsSpotBalanceData
		if err := json.Unmarshal(msg.Result, &balances); err != nil {
			return nil, err
		}
		events := make([]*ws.Event, 0, len(balances))
		for _, b := range balances {
			available := parseF(b.Available)
			events = append(events, &ws.Event{
				Channel: ws.Channel{Kind: exchange.ChannelBalances}.Key(),
				Payload: &exchange.AssetBalance{
					Asset:     b.Currency,
					Available: available,
					Locked:    parseF(b.Total) - available,
				},
			})
		}
		return events, nil

	default:
		return nil, nil
	}
}

// wsSpotOrderToOrder maps the order stream event vocabulary (put, update,
// finish) onto the canonical lifecycle.
func wsSpotOrderToOrder(o *wsSpotOrderData, symbol exchange.Symbol) *exchange.Order {
	qty := parseF(o.Amount)
	left := parseF(o.Left)
	side := exchange.Buy
	if o.Side == "sell" {
		side = exchange.Sell
	}

	var status exchange.OrderStatus
	switch o.Event {
	case "put":
		status = exchange.OrderNew
	case "update":
		status = exchange.OrderPartiallyFilled
	case "finish":
		if left == 0 {
			status = exchange.OrderFilled
		} else {
			status = exchange.OrderCanceled
		}
	default:
		status = exchange.OrderNew
	}

	return &exchange.Order{
		ID:                o.ID,
		ClientOrderID:     o.Text,
		Symbol:            symbol,
		Side:              side,
		Quantity:          qty,
		Price:             parseF(o.Price),
		FilledQuantity:    qty - left,
		RemainingQuantity: left,
		Status:            status,
		TimeInForce:       spotTIF(o.TimeInForce),
		Timestamp:         time.UnixMilli(int64(parseF(o.CreateTimeMs))),
	}
}

// FuturesDialect implements the Gate.io USDT perpetual WS framing. Order and
// book sizes arrive in integer contracts; the facade installs a contract
// multiplier lookup so payloads carry base quantities.
type FuturesDialect struct {
	baseURL string
	mapper  *Mapper
	auth    *Authenticator
	userID  string

	// contractSize resolves the base-units-per-contract multiplier from the
	// facade's instrument cache. Unknown symbols fall back to 1.
	contractSize func(symbol exchange.Symbol) float64
}

// NewFuturesDialect creates the futures dialect; auth may be nil for
// public-only streams.
func NewFuturesDialect(mapper *Mapper, auth *Authenticator) *FuturesDialect {
	return &FuturesDialect{
		baseURL:      WSFuturesBaseURL,
		mapper:       mapper,
		auth:         auth,
		contractSize: func(exchange.Symbol) float64 { return 1 },
	}
}

// SetBaseURL overrides the dial endpoint (tests).
func (d *FuturesDialect) SetBaseURL(u string) { d.baseURL = u }

// SetUserID installs the account user id required by private futures
// channels.
func (d *FuturesDialect) SetUserID(uid string) { d.userID = uid }

// SetContractSizeFunc installs the contract multiplier lookup.
func (d *FuturesDialect) SetContractSizeFunc(fn func(symbol exchange.Symbol) float64) {
	if fn != nil {
		d.contractSize = fn
	}
}

func (d *FuturesDialect) URL() string { return d.baseURL }

func (d *FuturesDialect) PingFrame() ([]byte, error) {
	return json.Marshal(wsFrame{Time: time.Now().Unix(), Channel: wsFuturesPing, Event: "ping"})
}

func (d *FuturesDialect) AuthFrames() ([][]byte, error) { return nil, nil }

func (d *FuturesDialect) SubscribeFrames(channels []ws.Channel) ([][]byte, error) {
	return d.frames(channels, "subscribe")
}

func (d *FuturesDialect) UnsubscribeFrames(channels []ws.Channel) ([][]byte, error) {
	return d.frames(channels, "unsubscribe")
}

func (d *FuturesDialect) frames(channels []ws.Channel, event string) ([][]byte, error) {
	now := time.Now().Unix()
	frames := make([][]byte, 0, len(channels))
	for _, c := range channels {
		var name string
		var payload []string
		private := false
		switch c.Kind {
		case exchange.ChannelBookTicker:
			contract, err := d.mapper.ToPair(c.Symbol)
			if err != nil {
				return nil, err
			}
			name, payload = wsFuturesBookTicker, []string{contract}
		case exchange.ChannelTrades:
			contract, err := d.mapper.ToPair(c.Symbol)
			if err != nil {
				return nil, err
			}
			name, payload = wsFuturesTrades, []string{contract}
		case exchange.ChannelOrderBook:
			contract, err := d.mapper.ToPair(c.Symbol)
			if err != nil {
				return nil, err
			}
			name, payload = wsFuturesOrderBook, []string{contract, "5", "0"}
		case exchange.ChannelOrders:
			name, payload, private = wsFuturesOrders, d.privatePayload(), true
		case exchange.ChannelBalances:
			name, payload, private = wsFuturesBalances, d.privatePayload(), true
		case exchange.ChannelPositions:
			name, payload, private = wsFuturesPositions, d.privatePayload(), true
		default:
			return nil, exchange.NewError(exchange.KindNotSupported,
				fmt.Sprintf("channel %q not available on Gate futures", c.Kind))
		}

		frame := wsFrame{Time: now, Channel: name, Event: event, Payload: payload}
		if private {
			if d.auth == nil {
				return nil, exchange.NewError(exchange.KindInvalidCredentials,
					"private channel "+name+" requires credentials")
			}
			frame.Auth = signedAuth(d.auth, name, event, now)
		}
		encoded, err := json.Marshal(frame)
		if err != nil {
			return nil, err
		}
		frames = append(frames, encoded)
	}
	return frames, nil
}

func (d *FuturesDialect) privatePayload() []string {
	if d.userID != "" {
		return []string{d.userID, "!all"}
	}
	return []string{"!all"}
}

// futures inbound payloads

type wsFuturesBookTickerData struct {
	T        int64  `json:"t"` // milliseconds
	Contract string `json:"s"`
	Bid      string `json:"b"`
	BidQ     int64  `json:"B"` // contracts
	Ask      string `json:"a"`
	AskQ     int64  `json:"A"`
}

type wsFuturesTradeData struct {
	ID           int64   `json:"id"`
	CreateTimeMs float64 `json:"create_time_ms"`
	Contract     string  `json:"contract"`
	Size         int64   `json:"size"` // signed contracts
	Price        string  `json:"price"`
}

type wsFuturesBookData struct {
	T        int64  `json:"t"`
	Contract string `json:"contract"`
	Bids     []struct {
		Price string `json:"p"`
		Size  int64  `json:"s"`
	} `json:"bids"`
	Asks []struct {
		Price string `json:"p"`
		Size  int64  `json:"s"`
	} `json:"asks"`
}

type wsFuturesBalanceData struct {
	Balance  float64 `json:"balance"`
	Currency string  `json:"currency"`
}

func (d *FuturesDialect) Decode(data []byte) ([]*ws.Event, error) {
	var msg wsInbound
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Error != nil {
		return nil, fmt.Errorf("ws error %d: %s", msg.Error.Code, msg.Error.Message)
	}
	if msg.Event != "update" && msg.Event != "all" {
		return nil, nil
	}

	switch msg.Channel {
	case wsFuturesBookTicker:
		var t wsFuturesBookTickerData
		if err := json.Unmarshal(msg.Result, &t); err != nil {
			return nil, err
		}
		symbol, err := d.mapper.ToSymbol(t.Contract)
		if err != nil {
			return nil, err
		}
		size := d.contractSize(symbol)
		return []*ws.Event{{
			Channel: ws.Channel{Kind: exchange.ChannelBookTicker, Symbol: symbol}.Key(),
			Payload: &exchange.BookTicker{
				Symbol:    symbol,
				BidPrice:  parseF(t.Bid),
				BidQty:    float64(t.BidQ) * size,
				AskPrice:  parseF(t.Ask),
				AskQty:    float64(t.AskQ) * size,
				Timestamp: time.UnixMilli(t.T),
			},
		}}, nil

	case wsFuturesTrades:
		// public prints are a freshness signal; the latest one suffices
		var trades []wsFuturesTradeData
		if err := json.Unmarshal(msg.Result, &trades); err != nil {
			return nil, err
		}
		if len(trades) == 0 {
			return nil, nil
		}
		t := trades[len(trades)-1]
		symbol, err := d.mapper.ToSymbol(t.Contract)
		if err != nil {
			return nil, err
		}
		side := exchange.Buy
		contracts := t.Size
		if contracts < 0 {
			side = exchange.Sell
			contracts = -contracts
		}
		return []*ws.Event{{
			Channel: ws.Channel{Kind: exchange.ChannelTrades, Symbol: symbol}.Key(),
			Payload: &exchange.Trade{
				TradeID:   fmt.Sprintf("%d", t.ID),
				Symbol:    symbol,
				Price:     parseF(t.Price),
				Quantity:  float64(contracts) * d.contractSize(symbol),
				Side:      side,
				Timestamp: time.UnixMilli(int64(t.CreateTimeMs)),
			},
		}}, nil

	case wsFuturesOrderBook:
		var b wsFuturesBookData
		if err := json.Unmarshal(msg.Result, &b); err != nil {
			return nil, err
		}
		symbol, err := d.mapper.ToSymbol(b.Contract)
		if err != nil {
			return nil, err
		}
		size := d.contractSize(symbol)
		book := &exchange.OrderBook{Symbol: symbol, Timestamp: time.UnixMilli(b.T)}
		for _, lv := range b.Bids {
			book.Bids = append(book.Bids, exchange.PriceLevel{Price: parseF(lv.Price), Size: float64(lv.Size) * size})
		}
		for _, lv := range b.Asks {
			book.Asks = append(book.Asks, exchange.PriceLevel{Price: parseF(lv.Price), Size: float64(lv.Size) * size})
		}
		return []*ws.Event{{
			Channel: ws.Channel{Kind: exchange.ChannelOrderBook, Symbol: symbol}.Key(),
			Payload: book,
		}}, nil

	case wsFuturesOrders:
		// a single frame batches lifecycle transitions; every element counts
		var orders []futuresOrderDetail
		if err := json.Unmarshal(msg.Result, &orders); err != nil {
			return nil, err
		}
		events := make([]*ws.Event, 0, len(orders))
		for i := range orders {
			symbol, err := d.mapper.ToSymbol(orders[i].Contract)
			if err != nil {
				return nil, err
			}
			events = append(events, &ws.Event{
				Channel: ws.Channel{Kind: exchange.ChannelOrders}.Key(),
				Payload: orders[i].toOrder(symbol, d.contractSize(symbol)),
			})
		}
		return events, nil

	case wsFuturesPositions:
		var positions []positionDetail
		if err := json.Unmarshal(msg.Result, &positions); err != nil {
			return nil, err
		}
		events := make([]*ws.Event, 0, len(positions))
		for i := range positions {
			symbol, err := d.mapper.ToSymbol(positions[i].Contract)
			if err != nil {
				return nil, err
			}
			position := positions[i].toPosition(symbol, d.contractSize(symbol))
			events = append(events, &ws.Event{
				Channel: ws.Channel{Kind: exchange.ChannelPositions}.Key(),
				Payload: &position,
			})
		}
		return events, nil

	case wsFuturesBalances:
		var balances []wsFuturesBalanceData
		if err := json.Unmarshal(msg.Result, &balances); err != nil {
			return nil, err
		}
		events := make([]*ws.Event, 0, len(balances))
		for _, b := range balances {
			asset := b.Currency
			if asset == "" {
				asset = "USDT"
			}
			events = append(events, &ws.Event{
				Channel: ws.Channel{Kind: exchange.ChannelBalances}.Key(),
				Payload: &exchange.AssetBalance{Asset: asset, Available: b.Balance},
			})
		}
		return events, nil

	default:
		return nil, nil
	}
}
