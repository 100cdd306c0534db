package mexc

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"crossarb/internal/exchange"
	"crossarb/internal/ws"
)

// WS channel name templates
const (
	WSBaseURL = "wss://wbs.mexc.com/ws"

	wsBookTickerPrefix = "spot@public.bookTicker.v3.api@"
	wsDealsPrefix      = "spot@public.deals.v3.api@"
	wsDepthPrefix      = "spot@public.limit.depth.v3.api@"
	wsDepthLevels      = "@5"

	wsPrivateOrders  = "spot@private.orders.v3.api"
	wsPrivateAccount = "spot@private.account.v3.api"
)

// Dialect implements the MEXC spot WS framing. Private channels ride a listen
// key appended to the dial URL; the facade refreshes the key and reconnects
// the session when it rotates.
type Dialect struct {
	baseURL string
	mapper  *Mapper

	mu        sync.Mutex
	listenKey string
}

// NewDialect creates the public-stream dialect.
func NewDialect(mapper *Mapper) *Dialect {
	return &Dialect{baseURL: WSBaseURL, mapper: mapper}
}

// SetBaseURL overrides the dial endpoint (tests).
func (d *Dialect) SetBaseURL(u string) { d.baseURL = u }

// SetListenKey installs the private-stream listen key for the next dial.
func (d *Dialect) SetListenKey(key string) {
	d.mu.Lock()
	d.listenKey = key
	d.mu.Unlock()
}

func (d *Dialect) URL() string {
	d.mu.Lock()
	key := d.listenKey
	d.mu.Unlock()
	if key == "" {
		return d.baseURL
	}
	return d.baseURL + "?listenKey=" + key
}

type wsRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params,omitempty"`
}

func (d *Dialect) PingFrame() ([]byte, error) {
	return json.Marshal(wsRequest{Method: "PING"})
}

// AuthFrames is empty: MEXC authenticates private streams through the listen
// key in the dial URL, not an in-band login frame.
func (d *Dialect) AuthFrames() ([][]byte, error) { return nil, nil }

func (d *Dialect) SubscribeFrames(channels []ws.Channel) ([][]byte, error) {
	params, err := d.channelNames(channels)
	if err != nil {
		return nil, err
	}
	frame, err := json.Marshal(wsRequest{Method: "SUBSCRIPTION", Params: params})
	if err != nil {
		return nil, err
	}
	return [][]byte{frame}, nil
}

func (d *Dialect) UnsubscribeFrames(channels []ws.Channel) ([][]byte, error) {
	params, err := d.channelNames(channels)
	if err != nil {
		return nil, err
	}
	frame, err := json.Marshal(wsRequest{Method: "UNSUBSCRIPTION", Params: params})
	if err != nil {
		return nil, err
	}
	return [][]byte{frame}, nil
}

func (d *Dialect) channelNames(channels []ws.Channel) ([]string, error) {
	names := make([]string, 0, len(channels))
	for _, c := range channels {
		switch c.Kind {
		case exchange.ChannelBookTicker:
			pair, err := d.mapper.ToPair(c.Symbol)
			if err != nil {
				return nil, err
			}
			names = append(names, wsBookTickerPrefix+pair)
		case exchange.ChannelTrades:
			pair, err := d.mapper.ToPair(c.Symbol)
			if err != nil {
				return nil, err
			}
			names = append(names, wsDealsPrefix+pair)
		case exchange.ChannelOrderBook:
			pair, err := d.mapper.ToPair(c.Symbol)
			if err != nil {
				return nil, err
			}
			names = append(names, wsDepthPrefix+pair+wsDepthLevels)
		case exchange.ChannelOrders:
			names = append(names, wsPrivateOrders)
		case exchange.ChannelBalances:
			names = append(names, wsPrivateAccount)
		default:
			return nil, exchange.NewError(exchange.KindNotSupported,
				fmt.Sprintf("channel %q not available on MEXC spot", c.Kind))
		}
	}
	return names, nil
}

// inbound message envelope
type wsMessage struct {
	Channel string          `json:"c"`
	Symbol  string          `json:"s"`
	Data    json.RawMessage `json:"d"`
	Time    int64           `json:"t"`
	Msg     string          `json:"msg"`
	Code    *int            `json:"code"`
}

type wsBookTickerData struct {
	BidPrice string `json:"b"`
	BidQty   string `json:"B"`
	AskPrice string `json:"a"`
	AskQty   string `json:"A"`
}

type wsDealsData struct {
	Deals []struct {
		Price string `json:"p"`
		Qty   string `json:"v"`
		Side  int    `json:"S"` // 1 buy, 2 sell
		Time  int64  `json:"t"`
	} `json:"deals"`
}

type wsDepthData struct {
	Bids []struct {
		Price string `json:"p"`
		Qty   string `json:"v"`
	} `json:"bids"`
	Asks []struct {
		Price string `json:"p"`
		Qty   string `json:"v"`
	} `json:"asks"`
}

type wsOrderData struct {
	OrderID       string `json:"i"`
	ClientOrderID string `json:"c"`
	Price         string `json:"p"`
	Quantity      string `json:"v"`
	FilledQty     string `json:"cv"`
	Side          int    `json:"S"` // 1 buy, 2 sell
	Status        int    `json:"s"` // 1 new, 2 filled, 3 partial, 4 canceled, 5 partially canceled
	CreateTime    int64  `json:"O"`
}

type wsAccountData struct {
	Asset     string `json:"a"`
	Free      string `json:"f"`
	Frozen    string `json:"l"`
	EventTime int64  `json:"c"`
}

// Decode routes one inbound frame. PONG and subscription acks return no
// events. MEXC frames carry at most one update each.
func (d *Dialect) Decode(data []byte) ([]*ws.Event, error) {
	var msg wsMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}

	// acks and pongs carry no channel
	if msg.Channel == "" {
		if msg.Code != nil && *msg.Code != 0 {
			return nil, fmt.Errorf("ws error code %d: %s", *msg.Code, msg.Msg)
		}
		return nil, nil
	}

	switch {
	case strings.HasPrefix(msg.Channel, wsBookTickerPrefix):
		return singleEvent(d.decodeBookTicker(&msg))
	case strings.HasPrefix(msg.Channel, wsDealsPrefix):
		return singleEvent(d.decodeDeals(&msg))
	case strings.HasPrefix(msg.Channel, wsDepthPrefix):
		return singleEvent(d.decodeDepth(&msg))
	case msg.Channel == wsPrivateOrders:
		return singleEvent(d.decodeOrder(&msg))
	case msg.Channel == wsPrivateAccount:
		return singleEvent(d.decodeAccount(&msg))
	default:
		return nil, nil
	}
}

func singleEvent(ev *ws.Event, err error) ([]*ws.Event, error) {
	if err != nil || ev == nil {
		return nil, err
	}
	return []*ws.Event{ev}, nil
}

func (d *Dialect) decodeBookTicker(msg *wsMessage) (*ws.Event, error) {
	symbol, err := d.mapper.ToSymbol(msg.Symbol)
	if err != nil {
		return nil, err
	}
	var data wsBookTickerData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		return nil, err
	}
	return &ws.Event{
		Channel: ws.Channel{Kind: exchange.ChannelBookTicker, Symbol: symbol}.Key(),
		Payload: &exchange.BookTicker{
			Symbol:    symbol,
			BidPrice:  parseF(data.BidPrice),
			BidQty:    parseF(data.BidQty),
			AskPrice:  parseF(data.AskPrice),
			AskQty:    parseF(data.AskQty),
			Timestamp: time.UnixMilli(msg.Time),
		},
	}, nil
}

func (d *Dialect) decodeDeals(msg *wsMessage) (*ws.Event, error) {
	symbol, err := d.mapper.ToSymbol(msg.Symbol)
	if err != nil {
		return nil, err
	}
	var data wsDealsData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		return nil, err
	}
	if len(data.Deals) == 0 {
		return nil, nil
	}
	// latest deal only; the core consumes trade prints as a freshness signal
	deal := data.Deals[len(data.Deals)-1]
	side := exchange.Buy
	if deal.Side == 2 {
		side = exchange.Sell
	}
	return &ws.Event{
		Channel: ws.Channel{Kind: exchange.ChannelTrades, Symbol: symbol}.Key(),
		Payload: &exchange.Trade{
			Symbol:    symbol,
			Price:     parseF(deal.Price),
			Quantity:  parseF(deal.Qty),
			Side:      side,
			Timestamp: time.UnixMilli(deal.Time),
		},
	}, nil
}

func (d *Dialect) decodeDepth(msg *wsMessage) (*ws.Event, error) {
	symbol, err := d.mapper.ToSymbol(msg.Symbol)
	if err != nil {
		return nil, err
	}
	var data wsDepthData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		return nil, err
	}
	book := &exchange.OrderBook{Symbol: symbol, Timestamp: time.UnixMilli(msg.Time)}
	for _, lv := range data.Bids {
		book.Bids = append(book.Bids, exchange.PriceLevel{Price: parseF(lv.Price), Size: parseF(lv.Qty)})
	}
	for _, lv := range data.Asks {
		book.Asks = append(book.Asks, exchange.PriceLevel{Price: parseF(lv.Price), Size: parseF(lv.Qty)})
	}
	return &ws.Event{
		Channel: ws.Channel{Kind: exchange.ChannelOrderBook, Symbol: symbol}.Key(),
		Payload: book,
	}, nil
}

// private order status codes
func wsOrderStatus(code int) exchange.OrderStatus {
	switch code {
	case 1:
		return exchange.OrderNew
	case 2:
		return exchange.OrderFilled
	case 3:
		return exchange.OrderPartiallyFilled
	case 4, 5:
		return exchange.OrderCanceled
	default:
		return exchange.OrderNew
	}
}

func (d *Dialect) decodeOrder(msg *wsMessage) (*ws.Event, error) {
	symbol, err := d.mapper.ToSymbol(msg.Symbol)
	if err != nil {
		return nil, err
	}
	var data wsOrderData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		return nil, err
	}
	side := exchange.Buy
	if data.Side == 2 {
		side = exchange.Sell
	}
	qty := parseF(data.Quantity)
	filled := parseF(data.FilledQty)
	return &ws.Event{
		Channel: ws.Channel{Kind: exchange.ChannelOrders}.Key(),
		Payload: &exchange.Order{
			ID:                data.OrderID,
			ClientOrderID:     data.ClientOrderID,
			Symbol:            symbol,
			Side:              side,
			Quantity:          qty,
			Price:             parseF(data.Price),
			FilledQuantity:    filled,
			RemainingQuantity: qty - filled,
			Status:            wsOrderStatus(data.Status),
			Timestamp:         time.UnixMilli(msg.Time),
		},
	}, nil
}

func (d *Dialect) decodeAccount(msg *wsMessage) (*ws.Event, error) {
	var data wsAccountData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		return nil, err
	}
	return &ws.Event{
		Channel: ws.Channel{Kind: exchange.ChannelBalances}.Key(),
		Payload: &exchange.AssetBalance{
			Asset:     data.Asset,
			Available: parseF(data.Free),
			Locked:    parseF(data.Frozen),
		},
	}, nil
}
