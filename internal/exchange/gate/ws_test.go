package gate

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crossarb/internal/exchange"
	"crossarb/internal/ws"
)

func TestSpotSubscribeFramesSignPrivateChannels(t *testing.T) {
	auth := NewAuthenticator("key-1", "secret-1")
	d := NewSpotDialect(NewMapper(), auth)

	frames, err := d.SubscribeFrames([]ws.Channel{
		{Kind: exchange.ChannelBookTicker, Symbol: exchange.NewSymbol("BTC", "USDT")},
		{Kind: exchange.ChannelOrders},
	})
	require.NoError(t, err)
	require.Len(t, frames, 2)

	var public wsFrame
	require.NoError(t, json.Unmarshal(frames[0], &public))
	assert.Equal(t, "spot.book_ticker", public.Channel)
	assert.Equal(t, "subscribe", public.Event)
	assert.Equal(t, []string{"BTC_USDT"}, public.Payload)
	assert.Nil(t, public.Auth)

	var private wsFrame
	require.NoError(t, json.Unmarshal(frames[1], &private))
	assert.Equal(t, "spot.orders", private.Channel)
	require.NotNil(t, private.Auth)
	assert.Equal(t, "api_key", private.Auth.Method)
	assert.Equal(t, "key-1", private.Auth.Key)
	assert.Equal(t, auth.SignWSChannel("spot.orders", "subscribe", private.Time), private.Auth.Sign)
}

func TestSpotPrivateChannelWithoutCredentials(t *testing.T) {
	d := NewSpotDialect(NewMapper(), nil)
	_, err := d.SubscribeFrames([]ws.Channel{{Kind: exchange.ChannelOrders}})
	require.Error(t, err)
	assert.True(t, exchange.IsKind(err, exchange.KindInvalidCredentials))
}

func TestSpotPingFrameCarriesEvent(t *testing.T) {
	d := NewSpotDialect(NewMapper(), nil)
	frame, err := d.PingFrame()
	require.NoError(t, err)

	var decoded wsFrame
	require.NoError(t, json.Unmarshal(frame, &decoded))
	assert.Equal(t, "spot.ping", decoded.Channel)
	assert.Equal(t, "ping", decoded.Event)
	assert.NotZero(t, decoded.Time)
}

func TestSpotDecodeBookTicker(t *testing.T) {
	d := NewSpotDialect(NewMapper(), nil)

	raw := []byte(`{
		"time_ms":1700000000123,"channel":"spot.book_ticker","event":"update",
		"result":{"t":1700000000123,"s":"BTC_USDT","b":"50000","B":"0.5","a":"50001","A":"0.3"}
	}`)
	events, err := d.Decode(raw)
	require.NoError(t, err)
	require.Len(t, events, 1)

	ticker := events[0].Payload.(*exchange.BookTicker)
	assert.Equal(t, 50000.0, ticker.BidPrice)
	assert.Equal(t, 0.3, ticker.AskQty)
	assert.Equal(t, exchange.NewSymbol("BTC", "USDT"), ticker.Symbol)
}

func TestSpotDecodeSubscribeAckAndPong(t *testing.T) {
	d := NewSpotDialect(NewMapper(), nil)

	events, err := d.Decode([]byte(`{"time_ms":1,"channel":"spot.book_ticker","event":"subscribe","result":{"status":"success"}}`))
	require.NoError(t, err)
	assert.Empty(t, events)

	events, err = d.Decode([]byte(`{"time_ms":1,"channel":"spot.pong","event":""}`))
	require.NoError(t, err)
	assert.Empty(t, events)

	_, err = d.Decode([]byte(`{"time_ms":1,"channel":"spot.orders","event":"subscribe","error":{"code":2,"message":"unauthorized"}}`))
	require.Error(t, err)
}

func TestSpotDecodeOrderFinish(t *testing.T) {
	d := NewSpotDialect(NewMapper(), nil)

	raw := []byte(`{
		"time_ms":1700000000123,"channel":"spot.orders","event":"update",
		"result":[{
			"id":"123","text":"t-abc","currency_pair":"BTC_USDT","event":"finish",
			"side":"buy","amount":"0.001","price":"10000","left":"0",
			"time_in_force":"gtc","create_time_ms":"1700000000000"
		}]
	}`)
	events, err := d.Decode(raw)
	require.NoError(t, err)
	require.Len(t, events, 1)

	order := events[0].Payload.(*exchange.Order)
	assert.Equal(t, exchange.OrderFilled, order.Status)
	assert.Equal(t, "t-abc", order.ClientOrderID)
	assert.InDelta(t, 0.001, order.FilledQuantity, 1e-12)
}

func TestSpotDecodeBatchedOrderFrame(t *testing.T) {
	d := NewSpotDialect(NewMapper(), nil)

	// one frame carrying a put followed by a finish for the same order
	raw := []byte(`{
		"time_ms":1700000000123,"channel":"spot.orders","event":"update",
		"result":[
			{"id":"123","text":"t-abc","currency_pair":"BTC_USDT","event":"put",
			 "side":"buy","amount":"0.001","price":"10000","left":"0.001",
			 "time_in_force":"gtc","create_time_ms":"1700000000000"},
			{"id":"123","text":"t-abc","currency_pair":"BTC_USDT","event":"finish",
			 "side":"buy","amount":"0.001","price":"10000","left":"0",
			 "time_in_force":"gtc","create_time_ms":"1700000000000"}
		]
	}`)
	events, err := d.Decode(raw)
	require.NoError(t, err)
	require.Len(t, events, 2)

	first := events[0].Payload.(*exchange.Order)
	second := events[1].Payload.(*exchange.Order)
	assert.Equal(t, exchange.OrderNew, first.Status)
	assert.Equal(t, exchange.OrderFilled, second.Status)
}

func TestSpotDecodeBatchedBalances(t *testing.T) {
	d := NewSpotDialect(NewMapper(), nil)

	// a single fill moves base and quote in one frame
	raw := []byte(`{
		"time_ms":1700000000123,"channel":"spot.balances","event":"update",
		"result":[
			{"currency":"BTC","available":"0.5","total":"0.5"},
			{"currency":"USDT","available":"1000","total":"1050"}
		]
	}`)
	events, err := d.Decode(raw)
	require.NoError(t, err)
	require.Len(t, events, 2)

	btc := events[0].Payload.(*exchange.AssetBalance)
	usdt := events[1].Payload.(*exchange.AssetBalance)
	assert.Equal(t, "BTC", btc.Asset)
	assert.Equal(t, 0.5, btc.Available)
	assert.Equal(t, "USDT", usdt.Asset)
	assert.Equal(t, 50.0, usdt.Locked)
}

func TestFuturesDecodeScalesContracts(t *testing.T) {
	d := NewFuturesDialect(NewMapper(), nil)
	d.SetContractSizeFunc(func(exchange.Symbol) float64 { return 0.0001 })

	raw := []byte(`{
		"time_ms":1700000000123,"channel":"futures.book_ticker","event":"update",
		"result":{"t":1700000000123,"s":"BTC_USDT","b":"50000","B":20,"a":"50001","A":5}
	}`)
	events, err := d.Decode(raw)
	require.NoError(t, err)
	require.Len(t, events, 1)

	ticker := events[0].Payload.(*exchange.BookTicker)
	assert.InDelta(t, 0.002, ticker.BidQty, 1e-12)
	assert.InDelta(t, 0.0005, ticker.AskQty, 1e-12)
}

func TestFuturesDecodePositionUpdate(t *testing.T) {
	d := NewFuturesDialect(NewMapper(), nil)
	d.SetContractSizeFunc(func(exchange.Symbol) float64 { return 0.0001 })

	raw := []byte(`{
		"time_ms":1700000000123,"channel":"futures.positions","event":"update",
		"result":[{
			"contract":"BTC_USDT","size":-50,"entry_price":"50000","mark_price":"49900",
			"unrealised_pnl":"5","realised_pnl":"0","liq_price":"60000","margin":"250","leverage":"10"
		}]
	}`)
	events, err := d.Decode(raw)
	require.NoError(t, err)
	require.Len(t, events, 1)

	position := events[0].Payload.(*exchange.Position)
	assert.Equal(t, exchange.Short, position.Side)
	assert.InDelta(t, 0.005, position.Size, 1e-12)
}

func TestFuturesDecodeBatchedOrders(t *testing.T) {
	d := NewFuturesDialect(NewMapper(), nil)
	d.SetContractSizeFunc(func(exchange.Symbol) float64 { return 0.0001 })

	raw := []byte(`{
		"time_ms":1700000000123,"channel":"futures.orders","event":"update",
		"result":[
			{"id":9001,"contract":"BTC_USDT","status":"open","size":-10,"left":-10,
			 "price":"50000","tif":"gtc","create_time":1700000000.0},
			{"id":9001,"contract":"BTC_USDT","status":"finished","size":-10,"left":0,
			 "price":"50000","tif":"gtc","finish_as":"filled","create_time":1700000000.0}
		]
	}`)
	events, err := d.Decode(raw)
	require.NoError(t, err)
	require.Len(t, events, 2)

	open := events[0].Payload.(*exchange.Order)
	done := events[1].Payload.(*exchange.Order)
	assert.Equal(t, exchange.OrderNew, open.Status)
	assert.Equal(t, exchange.OrderFilled, done.Status)
	assert.InDelta(t, 0.001, done.FilledQuantity, 1e-12)
}

func TestFuturesPingFrame(t *testing.T) {
	d := NewFuturesDialect(NewMapper(), nil)
	frame, err := d.PingFrame()
	require.NoError(t, err)

	var decoded wsFrame
	require.NoError(t, json.Unmarshal(frame, &decoded))
	assert.Equal(t, "futures.ping", decoded.Channel)
	assert.Equal(t, "ping", decoded.Event)
	assert.NotZero(t, decoded.Time)
}
