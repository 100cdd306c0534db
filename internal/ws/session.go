// Package ws implements the venue-agnostic WebSocket session: connection
// lifecycle, heartbeat, bounded inbound queue and reconnect with subscription
// replay. Venue framing lives behind the Dialect interface.
package ws

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"crossarb/internal/metrics"
)

// State is the session lifecycle state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateAuthenticated
	StateSubscribed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateAuthenticated:
		return "authenticated"
	case StateSubscribed:
		return "subscribed"
	default:
		return "disconnected"
	}
}

// Event is one decoded inbound message routed through the registry.
type Event struct {
	Channel string      // registry key, e.g. "bookTicker:BTC/USDT"
	Payload interface{} // typed per channel kind
}

// PayloadAs asserts an event payload type. A mis-routed payload is logged and
// dropped instead of panicking the dispatch goroutine.
func PayloadAs[T any](ev *Event) (T, bool) {
	v, ok := ev.Payload.(T)
	if !ok {
		log.Warn().Str("channel", ev.Channel).Msg("Unexpected event payload type, dropped")
	}
	return v, ok
}

// Dialect supplies the venue-specific framing for a session. Implementations
// must be safe for concurrent use; the session calls them from its own
// goroutines.
type Dialect interface {
	// URL returns the dial endpoint.
	URL() string
	// PingFrame encodes one application-level ping message.
	PingFrame() ([]byte, error)
	// AuthFrames encodes the login sequence for private streams. An empty
	// slice means the stream needs no authentication.
	AuthFrames() ([][]byte, error)
	// SubscribeFrames encodes subscription requests for the given channels.
	SubscribeFrames(channels []Channel) ([][]byte, error)
	// UnsubscribeFrames encodes unsubscription requests.
	UnsubscribeFrames(channels []Channel) ([][]byte, error)
	// Decode turns one raw inbound message into events. Venues batch several
	// updates into one frame (balance deltas, order lifecycle runs); each
	// element is dispatched in arrival order. An empty slice with a nil error
	// means a control message (pong, sub-ack) that needs no dispatch.
	Decode(data []byte) ([]*Event, error)
}

// Config configures one session.
type Config struct {
	Venue             string
	PingInterval      time.Duration // default 20s
	ReconnectDelay    time.Duration // default 1s
	ReconnectMaxDelay time.Duration // default 30s
	MaxReconnects     int           // consecutive failures before giving up, default 10
	QueueSize         int           // inbound queue, default 1024
	// Dialer overrides the default dialer (tests).
	Dialer *websocket.Dialer
}

func (c *Config) defaults() {
	if c.PingInterval <= 0 {
		c.PingInterval = 20 * time.Second
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = time.Second
	}
	if c.ReconnectMaxDelay <= 0 {
		c.ReconnectMaxDelay = 30 * time.Second
	}
	if c.MaxReconnects <= 0 {
		c.MaxReconnects = 10
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 1024
	}
	if c.Dialer == nil {
		c.Dialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	}
}

// Session is one managed WebSocket connection. All writes go through writeMu;
// decoding and dispatch run on a single goroutine so handlers for the same
// channel never run concurrently.
type Session struct {
	cfg      Config
	dialect  Dialect
	registry *Registry

	mu   sync.Mutex
	conn *websocket.Conn

	state   atomic.Int32
	lastMsg atomic.Int64 // unix nanos of the last inbound message

	queue  chan []byte
	done   chan struct{}
	closed atomic.Bool
	wg     sync.WaitGroup

	// onReconnect is invoked after a successful reconnect and replay
	// (listen-key recreation, state reconciliation).
	onReconnect func()
}

// NewSession creates a session bound to a dialect and registry. Connect must
// be called before use.
func NewSession(cfg Config, dialect Dialect, registry *Registry) *Session {
	cfg.defaults()
	return &Session{
		cfg:      cfg,
		dialect:  dialect,
		registry: registry,
		queue:    make(chan []byte, cfg.QueueSize),
		done:     make(chan struct{}),
	}
}

// OnReconnect registers a callback run after every successful reconnect.
func (s *Session) OnReconnect(fn func()) { s.onReconnect = fn }

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// IsConnected reports whether the underlying connection is up.
func (s *Session) IsConnected() bool { return s.State() >= StateConnected }

// LastMessageTime returns when the last inbound message arrived.
func (s *Session) LastMessageTime() time.Time {
	n := s.lastMsg.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// Connect dials, authenticates, subscribes the registry's current channel set
// and starts the read, dispatch and heartbeat loops.
func (s *Session) Connect(ctx context.Context) error {
	if err := s.dial(ctx); err != nil {
		return err
	}

	s.wg.Add(3)
	go s.readLoop()
	go s.dispatchLoop()
	go s.heartbeatLoop()

	return nil
}

// dial establishes one connection and replays auth plus the full
// subscription set.
func (s *Session) dial(ctx context.Context) error {
	s.state.Store(int32(StateConnecting))

	conn, _, err := s.cfg.Dialer.DialContext(ctx, s.dialect.URL(), nil)
	if err != nil {
		s.state.Store(int32(StateDisconnected))
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	s.state.Store(int32(StateConnected))
	s.lastMsg.Store(time.Now().UnixNano())
	metrics.RecordConnectionStatus(s.cfg.Venue, true)

	frames, err := s.dialect.AuthFrames()
	if err != nil {
		return err
	}
	for _, f := range frames {
		if err := s.write(f); err != nil {
			return err
		}
	}
	if len(frames) > 0 {
		s.state.Store(int32(StateAuthenticated))
	}

	channels := s.registry.Channels()
	if len(channels) > 0 {
		subs, err := s.dialect.SubscribeFrames(channels)
		if err != nil {
			return err
		}
		for _, f := range subs {
			if err := s.write(f); err != nil {
				return err
			}
		}
		s.state.Store(int32(StateSubscribed))
	}

	log.Info().
		Str("venue", s.cfg.Venue).
		Int("channels", len(channels)).
		Msg("WebSocket connected")
	return nil
}

// Subscribe adds channels to the registry and sends subscription frames when
// connected. Already-subscribed channels are skipped.
func (s *Session) Subscribe(channels ...Channel) error {
	added := s.registry.Add(channels...)
	if len(added) == 0 || !s.IsConnected() {
		return nil
	}
	frames, err := s.dialect.SubscribeFrames(added)
	if err != nil {
		return err
	}
	for _, f := range frames {
		if err := s.write(f); err != nil {
			return err
		}
	}
	s.state.Store(int32(StateSubscribed))
	return nil
}

// Unsubscribe removes channels and sends unsubscription frames when
// connected. Unknown channels are skipped.
func (s *Session) Unsubscribe(channels ...Channel) error {
	removed := s.registry.Remove(channels...)
	if len(removed) == 0 || !s.IsConnected() {
		return nil
	}
	frames, err := s.dialect.UnsubscribeFrames(removed)
	if err != nil {
		return err
	}
	for _, f := range frames {
		if err := s.write(f); err != nil {
			return err
		}
	}
	return nil
}

// ForceReconnect drops the current connection; the read loop redials with the
// dialect's current URL and replays the subscription set. Used when private
// credentials rotate (listen-key recreation).
func (s *Session) ForceReconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
	}
}

// Close stops all loops and closes the connection.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(s.done)

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn != nil {
		conn.Close()
	}

	s.wg.Wait()
	s.state.Store(int32(StateDisconnected))
	metrics.RecordConnectionStatus(s.cfg.Venue, false)
	return nil
}

func (s *Session) write(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return websocket.ErrCloseSent
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop pulls raw frames off the socket into the bounded queue. A full
// queue drops the oldest pending message so fresh market data wins.
func (s *Session) readLoop() {
	defer s.wg.Done()

	for {
		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()
		if conn == nil {
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}
			log.Warn().Err(err).Str("venue", s.cfg.Venue).Msg("WebSocket read failed")
			if !s.reconnect() {
				return
			}
			continue
		}

		s.lastMsg.Store(time.Now().UnixNano())

		select {
		case s.queue <- data:
		default:
			select {
			case <-s.queue:
				metrics.WSDroppedUpdates.WithLabelValues(s.cfg.Venue).Inc()
			default:
			}
			select {
			case s.queue <- data:
			default:
			}
		}
	}
}

// dispatchLoop decodes queued frames and routes them through the registry.
// Decode failures are logged and skipped; they never stop the loop.
func (s *Session) dispatchLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.done:
			return
		case data := <-s.queue:
			events, err := s.dialect.Decode(data)
			if err != nil {
				metrics.WSDecodeErrors.WithLabelValues(s.cfg.Venue).Inc()
				log.Warn().
					Err(err).
					Str("correlation_id", uuid.NewString()).
					Str("venue", s.cfg.Venue).
					Int("bytes", len(data)).
					Msg("WebSocket decode failed")
				continue
			}
			for _, ev := range events {
				if ev != nil {
					s.registry.Dispatch(ev)
				}
			}
		}
	}
}

// heartbeatLoop sends pings at the configured interval and forces a reconnect
// after two intervals without inbound traffic.
func (s *Session) heartbeatLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if !s.IsConnected() {
				continue
			}

			stale := time.Since(s.LastMessageTime())
			if stale > 2*s.cfg.PingInterval {
				log.Warn().
					Str("venue", s.cfg.Venue).
					Dur("stale", stale).
					Msg("Heartbeat missed, forcing reconnect")
				s.mu.Lock()
				if s.conn != nil {
					s.conn.Close()
				}
				s.mu.Unlock()
				continue
			}

			frame, err := s.dialect.PingFrame()
			if err != nil {
				continue
			}
			if err := s.write(frame); err != nil {
				log.Warn().Err(err).Str("venue", s.cfg.Venue).Msg("Ping write failed")
			}
		}
	}
}

// reconnect redials with exponential backoff and replays auth and
// subscriptions. Returns false when the session is closed or attempts run
// out.
func (s *Session) reconnect() bool {
	s.state.Store(int32(StateDisconnected))
	metrics.RecordConnectionStatus(s.cfg.Venue, false)

	s.mu.Lock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.mu.Unlock()

	delay := s.cfg.ReconnectDelay
	for attempt := 1; attempt <= s.cfg.MaxReconnects; attempt++ {
		select {
		case <-s.done:
			return false
		case <-time.After(delay):
		}

		metrics.WSReconnects.WithLabelValues(s.cfg.Venue).Inc()
		log.Info().
			Str("venue", s.cfg.Venue).
			Int("attempt", attempt).
			Msg("Reconnecting WebSocket")

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := s.dial(ctx)
		cancel()
		if err == nil {
			if s.onReconnect != nil {
				s.onReconnect()
			}
			return true
		}

		log.Warn().Err(err).Str("venue", s.cfg.Venue).Msg("Reconnect attempt failed")
		delay *= 2
		if delay > s.cfg.ReconnectMaxDelay {
			delay = s.cfg.ReconnectMaxDelay
		}
	}

	log.Error().
		Str("venue", s.cfg.Venue).
		Int("attempts", s.cfg.MaxReconnects).
		Msg("Reconnect attempts exhausted")
	return false
}
