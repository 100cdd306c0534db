package arb

import (
	"context"
	"time"

	"crossarb/internal/exchange"
)

// Venue is the slice of a composite facade the orchestrator needs: live
// quotes, instrument metadata and order placement.
type Venue interface {
	Kind() exchange.ExchangeKind
	BookTicker(symbol exchange.Symbol) (exchange.BookTicker, bool)
	SymbolInfo(symbol exchange.Symbol) (exchange.SymbolInfo, bool)
	PlaceOrder(ctx context.Context, req *exchange.OrderRequest) (*exchange.Order, error)
	GetOrder(ctx context.Context, symbol exchange.Symbol, orderID string) (*exchange.Order, error)
	CancelAllOrders(ctx context.Context, symbol exchange.Symbol) ([]exchange.Order, error)
}

// SpotOpportunity is a candidate entry on one spot venue.
type SpotOpportunity struct {
	Venue      exchange.ExchangeKind
	EntryPrice float64 // spot ask
	CostPct    float64 // (spotAsk - futuresBid) / spotAsk * 100
	MaxQty     float64
	Observed   time.Time
}

// SwitchOpportunity is a candidate migration of the spot leg.
type SwitchOpportunity struct {
	From             exchange.ExchangeKind
	To               exchange.ExchangeKind
	CurrentExitPrice float64 // current venue bid
	TargetEntryPrice float64 // target venue ask
	ProfitPct        float64 // (currentBid - targetAsk) / currentBid * 100
	MaxQty           float64
	Observed         time.Time
}

// Fresh reports whether the opportunity was observed within maxAge.
func (o *SwitchOpportunity) Fresh(now time.Time, maxAge time.Duration) bool {
	return now.Sub(o.Observed) <= maxAge
}

// findBestSpotEntry scans every spot venue with a fresh book ticker and
// returns the cheapest entry against the futures bid. Venues missing quotes
// or with stale tickers are skipped.
func findBestSpotEntry(
	spots []Venue,
	futures Venue,
	symbol exchange.Symbol,
	orderSizeUSDT float64,
	maxAge time.Duration,
	now time.Time,
) (*SpotOpportunity, bool) {
	futTicker, ok := futures.BookTicker(symbol)
	if !ok || futTicker.BidPrice <= 0 || now.Sub(futTicker.Timestamp) > maxAge {
		return nil, false
	}

	var best *SpotOpportunity
	for _, spot := range spots {
		ticker, ok := spot.BookTicker(symbol)
		if !ok || ticker.AskPrice <= 0 || now.Sub(ticker.Timestamp) > maxAge {
			continue
		}

		costPct := (ticker.AskPrice - futTicker.BidPrice) / ticker.AskPrice * 100
		maxQty := orderSizeUSDT / ticker.AskPrice
		if ticker.AskQty > 0 && ticker.AskQty < maxQty {
			maxQty = ticker.AskQty
		}
		if futTicker.BidQty > 0 && futTicker.BidQty < maxQty {
			maxQty = futTicker.BidQty
		}
		if maxQty <= 0 {
			continue
		}

		if best == nil || costPct < best.CostPct {
			best = &SpotOpportunity{
				Venue:      spot.Kind(),
				EntryPrice: ticker.AskPrice,
				CostPct:    costPct,
				MaxQty:     maxQty,
				Observed:   now,
			}
		}
	}
	return best, best != nil
}

// evaluateSpotSwitch compares the active spot venue's bid against every other
// venue's ask and returns the most profitable migration at or above the
// threshold.
func evaluateSpotSwitch(
	state *PositionState,
	spots []Venue,
	symbol exchange.Symbol,
	minProfitPct float64,
	maxAge time.Duration,
	now time.Time,
) (*SwitchOpportunity, bool) {
	position, ok := state.ActivePosition()
	if !ok {
		return nil, false
	}

	var current Venue
	for _, spot := range spots {
		if spot.Kind() == state.ActiveSpot {
			current = spot
			break
		}
	}
	if current == nil {
		return nil, false
	}
	currentTicker, ok := current.BookTicker(symbol)
	if !ok || currentTicker.BidPrice <= 0 || now.Sub(currentTicker.Timestamp) > maxAge {
		return nil, false
	}

	var best *SwitchOpportunity
	for _, spot := range spots {
		if spot.Kind() == state.ActiveSpot {
			continue
		}
		ticker, ok := spot.BookTicker(symbol)
		if !ok || ticker.AskPrice <= 0 || now.Sub(ticker.Timestamp) > maxAge {
			continue
		}

		profitPct := (currentTicker.BidPrice - ticker.AskPrice) / currentTicker.BidPrice * 100
		if profitPct < minProfitPct {
			continue
		}

		maxQty := position.Quantity
		if ticker.AskQty > 0 && ticker.AskQty < maxQty {
			maxQty = ticker.AskQty
		}
		if currentTicker.BidQty > 0 && currentTicker.BidQty < maxQty {
			maxQty = currentTicker.BidQty
		}

		if best == nil || profitPct > best.ProfitPct {
			best = &SwitchOpportunity{
				From:             state.ActiveSpot,
				To:               spot.Kind(),
				CurrentExitPrice: currentTicker.BidPrice,
				TargetEntryPrice: ticker.AskPrice,
				ProfitPct:        profitPct,
				MaxQty:           maxQty,
				Observed:         now,
			}
		}
	}
	return best, best != nil
}
