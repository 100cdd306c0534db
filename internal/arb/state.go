// Package arb implements the delta-neutral arbitrage orchestrator: one long
// spot leg, one short futures hedge, with optional migration of the spot leg
// between venues while the hedge stays untouched.
package arb

import (
	"math"
	"time"

	"crossarb/internal/exchange"
)

// State is the orchestrator lifecycle phase.
type State string

const (
	StateInitializing  State = "initializing"
	StateScanning      State = "scanning"
	StateInPosition    State = "in_position"
	StateExiting       State = "exiting"
	StateErrorRecovery State = "error_recovery"
)

// States lists every phase, for the state gauge.
var States = []string{
	string(StateInitializing), string(StateScanning), string(StateInPosition),
	string(StateExiting), string(StateErrorRecovery),
}

// Mode selects the trading strategy.
type Mode string

const (
	ModeTraditional   Mode = "traditional"
	ModeSpotSwitching Mode = "spot_switching"
)

// SpotPosition is one spot leg on a single venue.
type SpotPosition struct {
	Venue      exchange.ExchangeKind
	Symbol     exchange.Symbol
	Quantity   float64
	EntryPrice float64
	OpenedAt   time.Time
}

// FuturesPosition is the hedge leg.
type FuturesPosition struct {
	Venue      exchange.ExchangeKind
	Symbol     exchange.Symbol
	Side       exchange.PositionSide
	Quantity   float64
	EntryPrice float64
	OpenedAt   time.Time
}

// PositionState maps spot venues to their legs plus the single futures hedge.
// It is mutated only on the orchestrator goroutine; readers receive cloned
// snapshots and must not retain them across state changes.
type PositionState struct {
	Spots      map[exchange.ExchangeKind]SpotPosition
	Futures    *FuturesPosition
	ActiveSpot exchange.ExchangeKind
}

// NewPositionState returns an empty state.
func NewPositionState() *PositionState {
	return &PositionState{Spots: make(map[exchange.ExchangeKind]SpotPosition)}
}

// Clone deep-copies the state for snapshot readers.
func (s *PositionState) Clone() *PositionState {
	c := &PositionState{
		Spots:      make(map[exchange.ExchangeKind]SpotPosition, len(s.Spots)),
		ActiveSpot: s.ActiveSpot,
	}
	for k, v := range s.Spots {
		c.Spots[k] = v
	}
	if s.Futures != nil {
		f := *s.Futures
		c.Futures = &f
	}
	return c
}

// TotalSpotQty sums the spot legs in base units.
func (s *PositionState) TotalSpotQty() float64 {
	var total float64
	for _, p := range s.Spots {
		total += p.Quantity
	}
	return total
}

// FuturesQty is the hedge size in base units, zero when no hedge exists.
func (s *PositionState) FuturesQty() float64 {
	if s.Futures == nil {
		return 0
	}
	return s.Futures.Quantity
}

// Delta is total spot quantity minus futures quantity, in base units.
func (s *PositionState) Delta() float64 {
	return s.TotalSpotQty() - s.FuturesQty()
}

// HasPositions reports whether any leg is open.
func (s *PositionState) HasPositions() bool {
	return s.TotalSpotQty() > 0 || s.FuturesQty() > 0
}

// IsNeutral reports whether |delta| relative to total spot quantity is within
// the tolerance. An empty book is neutral.
func (s *PositionState) IsNeutral(tolerance float64) bool {
	total := s.TotalSpotQty()
	if total == 0 {
		return s.FuturesQty() == 0
	}
	return math.Abs(s.Delta())/total <= tolerance
}

// ActivePosition returns the spot leg currently carrying the exposure.
func (s *PositionState) ActivePosition() (SpotPosition, bool) {
	p, ok := s.Spots[s.ActiveSpot]
	return p, ok && p.Quantity > 0
}
