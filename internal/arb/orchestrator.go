package arb

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"crossarb/internal/exchange"
	"crossarb/internal/journal"
	"crossarb/internal/metrics"
)

// Config tunes one orchestrator instance for a single symbol.
type Config struct {
	Symbol             exchange.Symbol
	Mode               Mode
	OrderSizeUSDT      float64 // quote-currency size of one entry
	MaxEntryCostPct    float64
	MinProfitPct       float64
	MaxHoldHours       float64
	MinSwitchProfitPct float64

	DeltaTolerance         float64       // default 0.001 (0.1%)
	RebalanceThresholdUSDT float64       // default 5
	TickInterval           time.Duration // default 500ms
	QuoteMaxAge            time.Duration // default 2s
	MaxRecoveryAttempts    int           // default 5
	RecoveryBaseDelay      time.Duration // default 1s
}

func (cfg *Config) fillDefaults() {
	if cfg.Mode == "" {
		cfg.Mode = ModeTraditional
	}
	if cfg.DeltaTolerance == 0 {
		cfg.DeltaTolerance = 0.001
	}
	if cfg.RebalanceThresholdUSDT == 0 {
		cfg.RebalanceThresholdUSDT = 5
	}
	if cfg.TickInterval == 0 {
		cfg.TickInterval = 500 * time.Millisecond
	}
	if cfg.QuoteMaxAge == 0 {
		cfg.QuoteMaxAge = 2 * time.Second
	}
	if cfg.MaxRecoveryAttempts == 0 {
		cfg.MaxRecoveryAttempts = 5
	}
	if cfg.RecoveryBaseDelay == 0 {
		cfg.RecoveryBaseDelay = time.Second
	}
}

// pendingOrder is a placed order that has not reached a terminal status. Side
// decides which way a shortfall moves the book: an unfilled open shrinks the
// leg it was building, an unfilled close restores the leg it was unwinding.
type pendingOrder struct {
	venue  Venue
	id     string
	qty    float64
	price  float64
	side   exchange.Side
	isSpot bool
}

// Orchestrator runs the monitoring loop. Position state is mutated only on
// the Run goroutine; Snapshot hands out immutable clones.
type Orchestrator struct {
	cfg     Config
	spots   []Venue
	futures Venue
	journal *journal.Journal

	phase     State
	positions *PositionState
	pending   []pendingOrder

	positionStart    time.Time
	totalVolumeUSDT  float64
	recoveryAttempts int

	snapshot atomic.Pointer[PositionState]

	// now is the clock source, swappable in tests.
	now func() time.Time
}

// New builds an orchestrator over one futures hedge venue and at least one
// spot venue.
func New(cfg Config, spots []Venue, futures Venue, jrnl *journal.Journal) (*Orchestrator, error) {
	cfg.fillDefaults()
	if cfg.Symbol.IsZero() {
		return nil, fmt.Errorf("orchestrator requires a symbol")
	}
	if len(spots) == 0 {
		return nil, fmt.Errorf("orchestrator requires at least one spot venue")
	}
	if futures == nil {
		return nil, fmt.Errorf("orchestrator requires a futures venue")
	}
	if cfg.Mode != ModeTraditional && cfg.Mode != ModeSpotSwitching {
		return nil, fmt.Errorf("unknown mode %q", cfg.Mode)
	}

	o := &Orchestrator{
		cfg:       cfg,
		spots:     spots,
		futures:   futures,
		journal:   jrnl,
		phase:     StateInitializing,
		positions: NewPositionState(),
		now:       time.Now,
	}
	o.publishState()
	return o, nil
}

// Snapshot returns the latest immutable position snapshot.
func (o *Orchestrator) Snapshot() *PositionState {
	if s := o.snapshot.Load(); s != nil {
		return s
	}
	return NewPositionState()
}

// Phase returns the current lifecycle phase.
func (o *Orchestrator) Phase() State { return o.phase }

// Run drives the monitoring loop until the context is cancelled or error
// recovery is exhausted.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.setPhase(StateScanning)

	ticker := time.NewTicker(o.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("symbol", o.cfg.Symbol.String()).Msg("Orchestrator stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := o.tick(ctx); err != nil {
				if rerr := o.recover(ctx, err); rerr != nil {
					return rerr
				}
				continue
			}
			// only a clean tick ends the failure streak
			o.recoveryAttempts = 0
		}
	}
}

// tick is one pass of the monitoring loop: reconcile, rebalance, mode step.
func (o *Orchestrator) tick(ctx context.Context) error {
	now := o.now()

	o.reconcilePending(ctx)

	if o.positions.HasPositions() && !o.positions.IsNeutral(o.cfg.DeltaTolerance) {
		o.emergencyRebalance(ctx)
	}

	switch o.cfg.Mode {
	case ModeSpotSwitching:
		return o.stepSpotSwitching(ctx, now)
	default:
		return o.stepTraditional(ctx, now)
	}
}

func (o *Orchestrator) stepTraditional(ctx context.Context, now time.Time) error {
	if !o.positions.HasPositions() {
		return o.tryEnter(ctx, now)
	}
	if o.shouldExit(now) {
		return o.exitAllPositions(ctx)
	}
	return nil
}

func (o *Orchestrator) stepSpotSwitching(ctx context.Context, now time.Time) error {
	if !o.positions.HasPositions() {
		return o.tryEnter(ctx, now)
	}
	if sw, ok := evaluateSpotSwitch(o.positions, o.spots, o.cfg.Symbol,
		o.cfg.MinSwitchProfitPct, o.cfg.QuoteMaxAge, now); ok {
		return o.executeSpotSwitch(ctx, sw)
	}
	if o.shouldExit(now) {
		return o.exitAllPositions(ctx)
	}
	return nil
}

func (o *Orchestrator) tryEnter(ctx context.Context, now time.Time) error {
	opp, ok := findBestSpotEntry(o.spots, o.futures, o.cfg.Symbol,
		o.cfg.OrderSizeUSDT, o.cfg.QuoteMaxAge, now)
	if !ok || opp.CostPct >= o.cfg.MaxEntryCostPct {
		return nil
	}
	return o.enterSpotFuturesPosition(ctx, opp)
}

// enterSpotFuturesPosition opens the long spot leg and the short futures
// hedge in parallel with a single neutral quantity.
func (o *Orchestrator) enterSpotFuturesPosition(ctx context.Context, opp *SpotOpportunity) error {
	spot := o.venueByKind(opp.Venue)
	if spot == nil {
		return fmt.Errorf("no facade for venue %s", opp.Venue)
	}

	futTicker, ok := o.futures.BookTicker(o.cfg.Symbol)
	if !ok || futTicker.BidPrice <= 0 {
		return nil
	}

	baseQty := o.cfg.OrderSizeUSDT / opp.EntryPrice
	if opp.MaxQty < baseQty {
		baseQty = opp.MaxQty
	}

	spotInfo, _ := spot.SymbolInfo(o.cfg.Symbol)
	futInfo, _ := o.futures.SymbolInfo(o.cfg.Symbol)

	// enforce min notionals on both legs
	notional := baseQty * opp.EntryPrice
	if spotInfo.MinQuoteQty > 0 && notional < spotInfo.MinQuoteQty ||
		futInfo.MinQuoteQty > 0 && notional < futInfo.MinQuoteQty ||
		spotInfo.MinBaseQty > 0 && baseQty < spotInfo.MinBaseQty ||
		futInfo.MinBaseQty > 0 && baseQty < futInfo.MinBaseQty {
		log.Info().
			Str("symbol", o.cfg.Symbol.String()).
			Float64("base_qty", baseQty).
			Msg("Entry below venue minimums, skipping")
		return nil
	}

	// neutrality requires one quantity on both legs: round up to the
	// stricter (larger) step so integer-contract venues never force a gap
	step := spotInfo.StepSize
	if futInfo.StepSize > step {
		step = futInfo.StepSize
	}
	qty := exchange.RoundUpToStep(baseQty, step)

	spotOrder, futOrder, err := o.placeParallel(ctx,
		spot, &exchange.OrderRequest{
			Symbol: o.cfg.Symbol, Side: exchange.Buy, Type: exchange.Limit,
			Quantity: qty, Price: opp.EntryPrice, TimeInForce: exchange.GTC,
		},
		o.futures, &exchange.OrderRequest{
			Symbol: o.cfg.Symbol, Side: exchange.Sell, Type: exchange.Limit,
			Quantity: qty, Price: futTicker.BidPrice, TimeInForce: exchange.GTC,
		})
	if err != nil {
		o.cancelAllBothLegs(ctx, spot)
		return err
	}

	o.trackPending(spot, spotOrder, true)
	o.trackPending(o.futures, futOrder, false)

	now := o.now()
	o.positions.Spots[opp.Venue] = SpotPosition{
		Venue: opp.Venue, Symbol: o.cfg.Symbol,
		Quantity: qty, EntryPrice: opp.EntryPrice, OpenedAt: now,
	}
	o.positions.Futures = &FuturesPosition{
		Venue: o.futures.Kind(), Symbol: o.cfg.Symbol, Side: exchange.Short,
		Quantity: qty, EntryPrice: futTicker.BidPrice, OpenedAt: now,
	}
	o.positions.ActiveSpot = opp.Venue
	if o.positionStart.IsZero() {
		o.positionStart = now
	}
	volume := qty * (opp.EntryPrice + futTicker.BidPrice)
	o.totalVolumeUSDT += volume
	o.publishPositions()
	o.setPhase(StateInPosition)

	metrics.Entries.WithLabelValues(string(opp.Venue)).Inc()
	metrics.VolumeUSDT.Add(volume)
	o.journal.RecordFill(opp.Venue, spotOrder)
	o.journal.RecordFill(o.futures.Kind(), futOrder)
	o.journal.RecordEvent(journal.EventEntry, o.cfg.Symbol, map[string]interface{}{
		"venue": string(opp.Venue), "qty": qty,
		"spot_price": opp.EntryPrice, "futures_price": futTicker.BidPrice,
		"cost_pct": opp.CostPct,
	})

	log.Info().
		Str("symbol", o.cfg.Symbol.String()).
		Str("spot_venue", string(opp.Venue)).
		Float64("qty", qty).
		Float64("cost_pct", opp.CostPct).
		Msg("Entered delta-neutral position")
	return nil
}

// executeSpotSwitch migrates the spot leg to a cheaper venue without touching
// the futures hedge.
func (o *Orchestrator) executeSpotSwitch(ctx context.Context, sw *SwitchOpportunity) error {
	now := o.now()
	if !sw.Fresh(now, o.cfg.QuoteMaxAge) {
		log.Debug().
			Str("from", string(sw.From)).Str("to", string(sw.To)).
			Msg("Switch opportunity stale, rejected")
		return nil
	}
	if !o.positions.IsNeutral(o.cfg.DeltaTolerance) {
		o.emergencyRebalance(ctx)
		return nil
	}

	position, ok := o.positions.ActivePosition()
	if !ok {
		return nil
	}
	from := o.venueByKind(sw.From)
	to := o.venueByKind(sw.To)
	if from == nil || to == nil {
		return fmt.Errorf("switch venues not wired: %s -> %s", sw.From, sw.To)
	}

	qty := position.Quantity
	if sw.MaxQty > 0 && sw.MaxQty < qty {
		qty = sw.MaxQty
	}

	closeOrder, openOrder, err := o.placeParallel(ctx,
		from, &exchange.OrderRequest{
			Symbol: o.cfg.Symbol, Side: exchange.Sell, Type: exchange.Limit,
			Quantity: qty, Price: sw.CurrentExitPrice, TimeInForce: exchange.GTC,
		},
		to, &exchange.OrderRequest{
			Symbol: o.cfg.Symbol, Side: exchange.Buy, Type: exchange.Limit,
			Quantity: qty, Price: sw.TargetEntryPrice, TimeInForce: exchange.GTC,
		})
	if err != nil {
		o.cancelAllSpots(ctx, from, to)
		o.emergencyRebalance(ctx)
		return err
	}

	o.trackPending(from, closeOrder, true)
	o.trackPending(to, openOrder, true)

	// retire the old leg, install the new one; the hedge is untouched
	remaining := position.Quantity - qty
	if remaining <= 0 {
		delete(o.positions.Spots, sw.From)
	} else {
		position.Quantity = remaining
		o.positions.Spots[sw.From] = position
	}
	existing := o.positions.Spots[sw.To]
	o.positions.Spots[sw.To] = SpotPosition{
		Venue: sw.To, Symbol: o.cfg.Symbol,
		Quantity:   existing.Quantity + qty,
		EntryPrice: sw.TargetEntryPrice,
		OpenedAt:   now,
	}
	o.positions.ActiveSpot = sw.To
	volume := qty * (sw.CurrentExitPrice + sw.TargetEntryPrice)
	o.totalVolumeUSDT += volume
	o.publishPositions()

	if !o.positions.IsNeutral(o.cfg.DeltaTolerance) {
		o.emergencyRebalance(ctx)
	}

	metrics.Switches.WithLabelValues(string(sw.From), string(sw.To)).Inc()
	metrics.VolumeUSDT.Add(volume)
	o.journal.RecordFill(sw.From, closeOrder)
	o.journal.RecordFill(sw.To, openOrder)
	o.journal.RecordEvent(journal.EventSwitch, o.cfg.Symbol, map[string]interface{}{
		"from": string(sw.From), "to": string(sw.To),
		"qty": qty, "profit_pct": sw.ProfitPct,
	})

	log.Info().
		Str("from", string(sw.From)).
		Str("to", string(sw.To)).
		Float64("qty", qty).
		Float64("profit_pct", sw.ProfitPct).
		Msg("Spot leg migrated")
	return nil
}

// emergencyRebalance flattens a delta violation with a single futures order.
// It runs only when the imbalance is at least the configured USD threshold
// and never retries on its own.
func (o *Orchestrator) emergencyRebalance(ctx context.Context) {
	delta := o.positions.Delta()

	futTicker, ok := o.futures.BookTicker(o.cfg.Symbol)
	if !ok || futTicker.BidPrice <= 0 {
		log.Warn().Str("symbol", o.cfg.Symbol.String()).Msg("Rebalance skipped, no futures quote")
		return
	}
	deltaUSDT := math.Abs(delta) * futTicker.BidPrice
	if deltaUSDT < o.cfg.RebalanceThresholdUSDT {
		return
	}

	req := &exchange.OrderRequest{
		Symbol:   o.cfg.Symbol,
		Type:     exchange.Market,
		Quantity: math.Abs(delta),
	}
	if delta > 0 {
		// excess spot: grow the short hedge
		req.Side = exchange.Sell
	} else {
		// excess short: shrink the hedge
		req.Side = exchange.Buy
		req.ReduceOnly = true
	}

	order, err := o.futures.PlaceOrder(ctx, req)
	if err != nil {
		metrics.Rebalances.WithLabelValues("failure").Inc()
		log.Error().Err(err).
			Float64("delta", delta).
			Float64("delta_usdt", deltaUSDT).
			Msg("Emergency rebalance failed")
		return
	}

	if o.positions.Futures != nil {
		if delta > 0 {
			o.positions.Futures.Quantity += math.Abs(delta)
		} else {
			o.positions.Futures.Quantity -= math.Abs(delta)
			if o.positions.Futures.Quantity <= 0 {
				o.positions.Futures = nil
			}
		}
	} else if delta > 0 {
		o.positions.Futures = &FuturesPosition{
			Venue: o.futures.Kind(), Symbol: o.cfg.Symbol, Side: exchange.Short,
			Quantity: math.Abs(delta), EntryPrice: futTicker.BidPrice, OpenedAt: o.now(),
		}
	}
	o.publishPositions()

	metrics.Rebalances.WithLabelValues("success").Inc()
	o.journal.RecordFill(o.futures.Kind(), order)
	o.journal.RecordEvent(journal.EventRebalance, o.cfg.Symbol, map[string]interface{}{
		"delta": delta, "delta_usdt": deltaUSDT, "side": string(req.Side),
	})
	log.Warn().
		Float64("delta", delta).
		Float64("delta_usdt", deltaUSDT).
		Msg("Emergency rebalance executed")
}

// exitAllPositions closes the active spot leg and the hedge in parallel.
func (o *Orchestrator) exitAllPositions(ctx context.Context) error {
	position, ok := o.positions.ActivePosition()
	if !ok || o.positions.Futures == nil {
		return nil
	}
	spot := o.venueByKind(o.positions.ActiveSpot)
	if spot == nil {
		return fmt.Errorf("no facade for venue %s", o.positions.ActiveSpot)
	}
	o.setPhase(StateExiting)

	futures := *o.positions.Futures
	spotExit, futExit := 0.0, 0.0
	if t, ok := spot.BookTicker(o.cfg.Symbol); ok {
		spotExit = t.BidPrice
	}
	if t, ok := o.futures.BookTicker(o.cfg.Symbol); ok {
		futExit = t.AskPrice
	}

	spotOrder, futOrder, err := o.placeParallel(ctx,
		spot, &exchange.OrderRequest{
			Symbol: o.cfg.Symbol, Side: exchange.Sell, Type: exchange.Market,
			Quantity: position.Quantity,
		},
		o.futures, &exchange.OrderRequest{
			Symbol: o.cfg.Symbol, Side: exchange.Buy, Type: exchange.Market,
			Quantity: futures.Quantity, ReduceOnly: true,
		})
	if err != nil {
		return err
	}

	pnl := o.roundTripPnl(position, futures, spotExit, futExit, spot)

	delete(o.positions.Spots, o.positions.ActiveSpot)
	o.positions.Futures = nil
	o.positions.ActiveSpot = ""
	o.positionStart = time.Time{}
	o.publishPositions()
	o.setPhase(StateScanning)

	o.journal.RecordFill(spot.Kind(), spotOrder)
	o.journal.RecordFill(o.futures.Kind(), futOrder)
	o.journal.RecordEvent(journal.EventExit, o.cfg.Symbol, map[string]interface{}{
		"qty": position.Quantity, "pnl_usdt": pnl,
		"spot_exit": spotExit, "futures_exit": futExit,
	})

	log.Info().
		Str("symbol", o.cfg.Symbol.String()).
		Float64("pnl_usdt", pnl).
		Msg("Exited all positions")
	return nil
}

// roundTripPnl is realized P&L across both legs net of taker fees.
func (o *Orchestrator) roundTripPnl(spot SpotPosition, futures FuturesPosition, spotExit, futExit float64, spotVenue Venue) float64 {
	gross := (spotExit-spot.EntryPrice)*spot.Quantity +
		(futures.EntryPrice-futExit)*futures.Quantity

	var fees float64
	if info, ok := spotVenue.SymbolInfo(o.cfg.Symbol); ok {
		fees += info.TakerFee * spot.Quantity * (spot.EntryPrice + spotExit)
	}
	if info, ok := o.futures.SymbolInfo(o.cfg.Symbol); ok {
		fees += info.TakerFee * futures.Quantity * (futures.EntryPrice + futExit)
	}
	return gross - fees
}

// shouldExit is true when the profit target or the holding timeout is hit.
func (o *Orchestrator) shouldExit(now time.Time) bool {
	position, ok := o.positions.ActivePosition()
	if !ok || o.positions.Futures == nil {
		return false
	}

	if o.cfg.MaxHoldHours > 0 && !o.positionStart.IsZero() {
		if now.Sub(o.positionStart).Hours() >= o.cfg.MaxHoldHours {
			return true
		}
	}

	spot := o.venueByKind(o.positions.ActiveSpot)
	if spot == nil {
		return false
	}
	spotTicker, ok1 := spot.BookTicker(o.cfg.Symbol)
	futTicker, ok2 := o.futures.BookTicker(o.cfg.Symbol)
	if !ok1 || !ok2 || spotTicker.BidPrice <= 0 || futTicker.AskPrice <= 0 {
		return false
	}

	futures := o.positions.Futures
	pnl := (spotTicker.BidPrice-position.EntryPrice)*position.Quantity +
		(futures.EntryPrice-futTicker.AskPrice)*futures.Quantity
	pnlPct := pnl / (position.EntryPrice * position.Quantity) * 100
	return pnlPct >= o.cfg.MinProfitPct
}

// reconcilePending polls unresolved orders and repairs the position book for
// partially-filled terminal orders.
func (o *Orchestrator) reconcilePending(ctx context.Context) {
	if len(o.pending) == 0 {
		return
	}

	var still []pendingOrder
	for _, p := range o.pending {
		order, err := p.venue.GetOrder(ctx, o.cfg.Symbol, p.id)
		if err != nil {
			log.Warn().Err(err).
				Str("venue", string(p.venue.Kind())).
				Str("order_id", p.id).
				Msg("Pending order poll failed")
			still = append(still, p)
			continue
		}
		if !order.Status.IsTerminal() {
			still = append(still, p)
			continue
		}

		shortfall := p.qty - order.FilledQuantity
		if order.Status != exchange.OrderFilled && shortfall > 1e-12 {
			o.applyShortfall(p, shortfall)
			log.Warn().
				Str("venue", string(p.venue.Kind())).
				Str("order_id", p.id).
				Str("status", string(order.Status)).
				Float64("shortfall", shortfall).
				Msg("Order terminated unfilled, position adjusted")
		}
	}
	o.pending = still
}

// applyShortfall repairs the book for the unfilled portion of a terminal
// order. An open that did not fill shrinks the leg it was booked to build; a
// close that did not fill puts the inventory back on the venue it failed to
// leave. The next tick's neutrality check schedules a rebalance if the book
// is now skewed.
func (o *Orchestrator) applyShortfall(p pendingOrder, shortfall float64) {
	if p.isSpot {
		kind := p.venue.Kind()
		pos, ok := o.positions.Spots[kind]
		if p.side == exchange.Buy {
			pos.Quantity -= shortfall
		} else {
			if !ok {
				pos = SpotPosition{
					Venue: kind, Symbol: o.cfg.Symbol,
					EntryPrice: p.price, OpenedAt: o.now(),
				}
			}
			pos.Quantity += shortfall
		}
		if pos.Quantity <= 1e-12 {
			delete(o.positions.Spots, kind)
		} else {
			o.positions.Spots[kind] = pos
		}
	} else {
		// the hedge is a short: a sell builds it, a buy unwinds it
		if p.side == exchange.Sell {
			if o.positions.Futures != nil {
				o.positions.Futures.Quantity -= shortfall
				if o.positions.Futures.Quantity <= 1e-12 {
					o.positions.Futures = nil
				}
			}
		} else if o.positions.Futures != nil {
			o.positions.Futures.Quantity += shortfall
		} else {
			o.positions.Futures = &FuturesPosition{
				Venue: o.futures.Kind(), Symbol: o.cfg.Symbol, Side: exchange.Short,
				Quantity: shortfall, EntryPrice: p.price, OpenedAt: o.now(),
			}
		}
	}
	o.publishPositions()
}

// recover handles a failed tick: log, transition, backoff, and verify quote
// flow before resuming. Repeated failure terminates the orchestrator.
func (o *Orchestrator) recover(ctx context.Context, cause error) error {
	o.recoveryAttempts++
	o.setPhase(StateErrorRecovery)
	log.Error().Err(cause).
		Int("attempt", o.recoveryAttempts).
		Msg("Tick failed, entering recovery")

	if o.recoveryAttempts > o.cfg.MaxRecoveryAttempts {
		return fmt.Errorf("error recovery exhausted after %d attempts: %w",
			o.recoveryAttempts, cause)
	}

	delay := o.cfg.RecoveryBaseDelay * time.Duration(1<<uint(o.recoveryAttempts-1))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
	}

	o.reconcilePending(ctx)
	if o.positions.HasPositions() {
		o.setPhase(StateInPosition)
	} else {
		o.setPhase(StateScanning)
	}
	return nil
}

// placeParallel issues one order per leg concurrently and waits for both.
func (o *Orchestrator) placeParallel(
	ctx context.Context,
	venueA Venue, reqA *exchange.OrderRequest,
	venueB Venue, reqB *exchange.OrderRequest,
) (*exchange.Order, *exchange.Order, error) {
	var (
		wg             sync.WaitGroup
		orderA, orderB *exchange.Order
		errA, errB     error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		orderA, errA = venueA.PlaceOrder(ctx, reqA)
	}()
	go func() {
		defer wg.Done()
		orderB, errB = venueB.PlaceOrder(ctx, reqB)
	}()
	wg.Wait()

	if errA != nil {
		return nil, nil, fmt.Errorf("%s leg: %w", venueA.Kind(), errA)
	}
	if errB != nil {
		return nil, nil, fmt.Errorf("%s leg: %w", venueB.Kind(), errB)
	}
	return orderA, orderB, nil
}

// cancelAllBothLegs sweeps open orders on the spot venue and the hedge venue
// after a partial entry failure.
func (o *Orchestrator) cancelAllBothLegs(ctx context.Context, spot Venue) {
	for _, v := range []Venue{spot, o.futures} {
		if _, err := v.CancelAllOrders(ctx, o.cfg.Symbol); err != nil {
			log.Warn().Err(err).
				Str("venue", string(v.Kind())).
				Msg("Cancel-all sweep failed")
		}
	}
}

func (o *Orchestrator) cancelAllSpots(ctx context.Context, venues ...Venue) {
	for _, v := range venues {
		if _, err := v.CancelAllOrders(ctx, o.cfg.Symbol); err != nil {
			log.Warn().Err(err).
				Str("venue", string(v.Kind())).
				Msg("Cancel-all sweep failed")
		}
	}
}

func (o *Orchestrator) trackPending(venue Venue, order *exchange.Order, isSpot bool) {
	if order == nil || order.Status.IsTerminal() {
		return
	}
	o.pending = append(o.pending, pendingOrder{
		venue: venue, id: order.ID, qty: order.Quantity,
		price: order.Price, side: order.Side, isSpot: isSpot,
	})
}

func (o *Orchestrator) venueByKind(kind exchange.ExchangeKind) Venue {
	if o.futures.Kind() == kind {
		return o.futures
	}
	for _, v := range o.spots {
		if v.Kind() == kind {
			return v
		}
	}
	return nil
}

func (o *Orchestrator) setPhase(s State) {
	if o.phase == s {
		return
	}
	o.phase = s
	metrics.SetOrchestratorState(string(s), States)
	o.journal.RecordEvent(journal.EventState, o.cfg.Symbol, map[string]interface{}{
		"state": string(s),
	})
}

func (o *Orchestrator) publishPositions() {
	o.snapshot.Store(o.positions.Clone())
	metrics.PositionDelta.Set(o.positions.Delta())
}

func (o *Orchestrator) publishState() {
	o.snapshot.Store(o.positions.Clone())
	metrics.SetOrchestratorState(string(o.phase), States)
}
