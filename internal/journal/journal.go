// Package journal appends executed fills and orchestrator events to Redis
// Streams, mirrored on Pub/Sub for live dashboards. Publishing is best
// effort: a journal failure increments a metric and never blocks or fails
// the trading path.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"crossarb/internal/exchange"
	"crossarb/internal/metrics"
)

const (
	StreamFills  = "arb:fills"
	StreamEvents = "arb:events"

	fillsMaxLen  = 10000
	eventsMaxLen = 10000

	publishTimeout = 2 * time.Second
)

// Fill is one executed order leg.
type Fill struct {
	Venue     string    `json:"venue"`
	Symbol    string    `json:"symbol"`
	OrderID   string    `json:"order_id"`
	Side      string    `json:"side"`
	Price     float64   `json:"price"`
	Quantity  float64   `json:"quantity"`
	Timestamp time.Time `json:"timestamp"`
}

// EventType tags orchestrator lifecycle records.
type EventType string

const (
	EventEntry     EventType = "entry"
	EventSwitch    EventType = "switch"
	EventRebalance EventType = "rebalance"
	EventExit      EventType = "exit"
	EventState     EventType = "state"
)

// Event is one orchestrator state transition or action.
type Event struct {
	Type      EventType              `json:"type"`
	Symbol    string                 `json:"symbol,omitempty"`
	Detail    map[string]interface{} `json:"detail,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Journal writes to Redis. A nil *Journal is valid and drops everything,
// so callers never need to branch on whether journalling is configured.
type Journal struct {
	client *redis.Client
}

// Options configure the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// New connects and verifies the Redis endpoint.
func New(opts Options) (*Journal, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Journal{client: client}, nil
}

// Close closes the Redis connection.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.client.Close()
}

// RecordFill appends one executed leg to the fills stream.
func (j *Journal) RecordFill(venue exchange.ExchangeKind, order *exchange.Order) {
	if j == nil {
		return
	}
	j.append(StreamFills, fillsMaxLen, Fill{
		Venue:     string(venue),
		Symbol:    order.Symbol.String(),
		OrderID:   order.ID,
		Side:      string(order.Side),
		Price:     order.Price,
		Quantity:  order.FilledQuantity,
		Timestamp: time.Now(),
	})
}

// RecordEvent appends one orchestrator event to the events stream.
func (j *Journal) RecordEvent(eventType EventType, symbol exchange.Symbol, detail map[string]interface{}) {
	if j == nil {
		return
	}
	j.append(StreamEvents, eventsMaxLen, Event{
		Type:      eventType,
		Symbol:    symbol.String(),
		Detail:    detail,
		Timestamp: time.Now(),
	})
}

// append writes one record to a stream and mirrors it on Pub/Sub.
func (j *Journal) append(stream string, maxLen int64, record interface{}) {
	data, err := json.Marshal(record)
	if err != nil {
		metrics.JournalErrors.WithLabelValues(stream).Inc()
		log.Warn().Err(err).Str("stream", stream).Msg("Journal encode failed")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := j.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: maxLen,
		Approx: true,
		Values: map[string]interface{}{"data": string(data)},
	}).Err(); err != nil {
		metrics.JournalErrors.WithLabelValues(stream).Inc()
		log.Warn().Err(err).Str("stream", stream).Msg("Journal append failed")
		return
	}

	if err := j.client.Publish(ctx, stream, string(data)).Err(); err != nil {
		metrics.JournalErrors.WithLabelValues(stream).Inc()
		log.Warn().Err(err).Str("stream", stream).Msg("Journal publish failed")
	}
}
