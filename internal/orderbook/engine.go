// Package orderbook maintains one in-memory, non-crossed order book
// per subscribed symbol, reconstructed from a REST snapshot and kept
// current by the venue's diff-depth WebSocket stream, with strict
// sequence-gap detection and read-triggered re-synchronization
// (spec.md §4.1, §4.3). It is grounded on the teacher's
// exchanges/binance/book.go lazy-per-symbol-state shape, generalized
// from a naive full-replace ladder to real insert/update/delete diff
// application over shopspring/decimal quantities.
package orderbook

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/sawpanic/binance-marketintel/internal/apperrors"
	"github.com/sawpanic/binance-marketintel/internal/clock"
	"github.com/sawpanic/binance-marketintel/internal/symbol"
	"github.com/sawpanic/binance-marketintel/internal/venue/binance"
)

const (
	eventChanCapacity = 10000
	initWaitTimeout   = 15 * time.Second
	// restDepth is the snapshot depth requested on (re)initialization.
	restDepth = 1000
)

// Watcher is notified of every applied book change. The engine
// invokes watchers outside the per-symbol lock: after initialization
// and resync on the calling goroutine, and for live diffs on a fresh
// goroutine per change, so implementations must not block.
type Watcher func(symbol string, book OrderBook)

// symbolState owns one symbol's live book plus the bookkeeping the
// engine needs to detect gaps, drive resync, and report health
// (spec.md §3.1 OrderBookState).
type symbolState struct {
	symbol string

	mu           sync.RWMutex
	book         OrderBook
	lastUpdateAt time.Time
	wsConnected  bool
	needsResync  bool

	resyncMu sync.Mutex // serializes concurrent resync attempts

	droppedEvents atomic.Int64
	ready         chan struct{}
	readyOnce     sync.Once

	updateRate    *secondCounter
	cancelRate    *secondCounter
	spreadHistory *ringStat
	depthHistory  *ringStat

	cancel context.CancelFunc
	events chan binance.DepthDiffEvent
}

func (s *symbolState) markReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}

// Engine is the public order-book maintenance contract (spec.md §4.1).
type Engine struct {
	rest      *binance.RESTClient
	wsBaseURL string

	mu      sync.RWMutex
	symbols map[string]*symbolState

	watchersMu sync.RWMutex
	watchers   []Watcher
}

func NewEngine(rest *binance.RESTClient, wsBaseURL string) *Engine {
	return &Engine{
		rest:      rest,
		wsBaseURL: wsBaseURL,
		symbols:   make(map[string]*symbolState),
	}
}

// Watch registers a callback invoked on every applied book change,
// across all subscribed symbols.
func (e *Engine) Watch(w Watcher) {
	e.watchersMu.Lock()
	defer e.watchersMu.Unlock()
	e.watchers = append(e.watchers, w)
}

func (e *Engine) notify(sym string, book OrderBook) {
	e.watchersMu.RLock()
	defer e.watchersMu.RUnlock()
	for _, w := range e.watchers {
		w(sym, book)
	}
}

// Subscribe is idempotent: the first call for a symbol fetches a REST
// snapshot, starts the symbol's WebSocket task, and returns once the
// book is consistent enough to serve reads; subsequent calls return
// immediately against the existing state (spec.md §4.1, §8.2).
func (e *Engine) Subscribe(ctx context.Context, sym string) error {
	sym = symbol.Normalize(sym)

	e.mu.Lock()
	st, exists := e.symbols[sym]
	if !exists {
		symCtx, cancel := context.WithCancel(context.Background())
		st = &symbolState{
			symbol:        sym,
			ready:         make(chan struct{}),
			cancel:        cancel,
			events:        make(chan binance.DepthDiffEvent, eventChanCapacity),
			updateRate:    &secondCounter{},
			cancelRate:    &secondCounter{},
			spreadHistory: newRingStat(ringHistorySize),
			depthHistory:  newRingStat(ringHistorySize),
		}
		e.symbols[sym] = st
		go e.runSymbol(symCtx, st)
	}
	e.mu.Unlock()

	select {
	case <-st.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(initWaitTimeout):
		return apperrors.Wrap(apperrors.VenueUnavailable, "subscribe: initialization timed out", nil)
	}
}

// Unsubscribe stops the symbol's WebSocket task and removes its state.
func (e *Engine) Unsubscribe(sym string) {
	sym = symbol.Normalize(sym)
	e.mu.Lock()
	defer e.mu.Unlock()
	if st, ok := e.symbols[sym]; ok {
		st.cancel()
		delete(e.symbols, sym)
	}
}

func (e *Engine) state(sym string) (*symbolState, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	st, ok := e.symbols[sym]
	if !ok {
		return nil, apperrors.New(apperrors.NotSubscribed, fmt.Sprintf("symbol %s not subscribed", sym))
	}
	return st, nil
}

// GetBook returns the current book, resyncing first if the state is
// marked needs_resync (spec.md §4.3, event-driven-on-read).
func (e *Engine) GetBook(ctx context.Context, sym string) (OrderBook, error) {
	sym = symbol.Normalize(sym)
	st, err := e.state(sym)
	if err != nil {
		return OrderBook{}, err
	}

	st.mu.RLock()
	needsResync := st.needsResync
	st.mu.RUnlock()

	if needsResync {
		if err := e.resync(ctx, st); err != nil {
			return OrderBook{}, err
		}
	}

	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.book, nil
}

// GetL1 computes best-bid/ask, sizes, mid, micro-price, and spread in
// basis/milli-basis points (spec.md §4.1).
func (e *Engine) GetL1(ctx context.Context, sym string) (L1Metrics, error) {
	book, err := e.GetBook(ctx, sym)
	if err != nil {
		return L1Metrics{}, err
	}

	bestBid, hasBid := book.BestBid()
	bestAsk, hasAsk := book.BestAsk()
	if !hasBid || !hasAsk {
		return L1Metrics{}, apperrors.New(apperrors.Stale, "book has no two-sided quote")
	}

	denom := bestBid.Quantity.Add(bestAsk.Quantity)
	var micro decimal.Decimal
	if denom.IsPositive() {
		micro = bestBid.Price.Mul(bestAsk.Quantity).
			Add(bestAsk.Price.Mul(bestBid.Quantity)).
			Div(denom)
	}

	mid := bestBid.Price.Add(bestAsk.Price).Div(decimal.NewFromInt(2))
	spread := bestAsk.Price.Sub(bestBid.Price)

	spreadBps := 0.0
	if mid.IsPositive() {
		spreadBps, _ = spread.Div(mid).Mul(decimal.NewFromInt(10000)).Float64()
	}

	return L1Metrics{
		Symbol:         sym,
		BestBid:        bestBid.Price,
		BestAsk:        bestAsk.Price,
		BidSize:        bestBid.Quantity,
		AskSize:        bestAsk.Quantity,
		Mid:            mid,
		MicroPrice:     micro,
		SpreadBps:      spreadBps,
		SpreadMilliBps: spreadBps * 1000,
		TimestampMS:    book.TimestampMS,
	}, nil
}

// GetL2 returns the top-depth levels per side with cumulative size
// (spec.md §4.1, depth in [1,100]).
func (e *Engine) GetL2(ctx context.Context, sym string, depth int) (L2Depth, error) {
	if depth < 1 || depth > 100 {
		return L2Depth{}, apperrors.New(apperrors.InvalidInput, "orderbook_levels must be in [1,100]")
	}
	book, err := e.GetBook(ctx, sym)
	if err != nil {
		return L2Depth{}, err
	}
	return L2Depth{
		Symbol:       sym,
		Bids:         depthWithCumulative(book.Bids, depth),
		Asks:         depthWithCumulative(book.Asks, depth),
		LastUpdateID: book.LastUpdateID,
		TimestampMS:  book.TimestampMS,
	}, nil
}

// Health reports connectivity and staleness for a subscribed symbol.
func (e *Engine) Health(sym string) (HealthStatus, error) {
	sym = symbol.Normalize(sym)
	st, err := e.state(sym)
	if err != nil {
		return HealthStatus{}, err
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	return HealthStatus{
		Connected:       st.wsConnected && !st.needsResync,
		WSConnected:     st.wsConnected,
		LastUpdateAgeMS: time.Since(st.lastUpdateAt).Milliseconds(),
		NeedsResync:     st.needsResync,
		DroppedEvents:   st.droppedEvents.Load(),
	}, nil
}

// runSymbol drives one symbol's full lifecycle: WS ingestion feeding
// symbolState.events, and the initialization protocol (spec.md §4.1
// steps 1-5) followed by steady-state diff application.
func (e *Engine) runSymbol(ctx context.Context, st *symbolState) {
	symLower := binanceSymbolLower(st.symbol)
	stream := binance.NewStream(binance.DepthStreamURL(e.wsBaseURL, symLower), "depth:"+st.symbol)

	go stream.Run(ctx,
		func(raw []byte) {
			var ev binance.DepthDiffEvent
			if err := json.Unmarshal(raw, &ev); err != nil {
				log.Error().Str("symbol", st.symbol).Err(err).Msg("malformed depth diff event, dropping")
				return
			}
			select {
			case st.events <- ev:
			default:
				st.droppedEvents.Add(1)
				log.Error().Str("symbol", st.symbol).Msg("depth event buffer full, dropping event")
			}
		},
		func(connected bool) {
			st.mu.Lock()
			st.wsConnected = connected
			st.mu.Unlock()
		},
	)

	if !e.initialize(ctx, st) {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-st.events:
			e.applyLive(st, ev)
		}
	}
}

// initialize runs spec.md §4.1's steps 2-5: fetch the REST snapshot,
// discard stale buffered events, locate the first event that bridges
// the snapshot to the live stream, and apply it plus everything after.
func (e *Engine) initialize(ctx context.Context, st *symbolState) bool {
	snap, err := e.rest.Depth(ctx, st.symbol, restDepth)
	if err != nil {
		log.Error().Str("symbol", st.symbol).Err(err).Msg("initial depth snapshot failed, retrying")
		if !sleepOrDone(ctx, time.Second) {
			return false
		}
		return e.initialize(ctx, st)
	}

	book := snapshotToBook(st.symbol, snap)

	var buffered []binance.DepthDiffEvent
	for {
		select {
		case <-ctx.Done():
			return false
		case ev := <-st.events:
			if ev.FinalUpdateID <= book.LastUpdateID {
				continue // discard: u <= L0
			}
			buffered = append(buffered, ev)
			if ev.FirstUpdateID <= book.LastUpdateID+1 && book.LastUpdateID+1 <= ev.FinalUpdateID {
				if err := applyBufferedChain(&book, buffered); err != nil {
					log.Error().Str("symbol", st.symbol).Err(err).Msg("buffered chain application failed, restarting init")
					return e.initialize(ctx, st)
				}
				st.mu.Lock()
				st.book = book
				st.lastUpdateAt = time.Now()
				st.needsResync = false
				st.spreadHistory.add(spreadBpsOf(book))
				st.depthHistory.add(topNotional(book.Bids, 20) + topNotional(book.Asks, 20))
				st.mu.Unlock()
				st.markReady()
				e.notify(st.symbol, book)
				return true
			}
		case <-time.After(initWaitTimeout):
			log.Error().Str("symbol", st.symbol).Msg("no bridging event found within bound, re-fetching snapshot")
			return e.initialize(ctx, st)
		}
	}
}

// applyBufferedChain applies every buffered event from the first
// bridging event onward, in order, updating lastUpdateId after each.
func applyBufferedChain(book *OrderBook, buffered []binance.DepthDiffEvent) error {
	start := -1
	for i, ev := range buffered {
		if ev.FirstUpdateID <= book.LastUpdateID+1 && book.LastUpdateID+1 <= ev.FinalUpdateID {
			start = i
			break
		}
	}
	if start == -1 {
		return fmt.Errorf("no bridging event in buffer")
	}
	for _, ev := range buffered[start:] {
		if err := applyDiffEvent(book, ev); err != nil {
			return err
		}
	}
	return nil
}

// applyLive applies one steady-state diff event, detecting gaps and
// crosses (spec.md §4.3) and marking needs_resync without tearing down
// the WebSocket task.
func (e *Engine) applyLive(st *symbolState, ev binance.DepthDiffEvent) {
	now := time.Now().Unix()
	st.updateRate.tick(now)
	st.cancelRate.tickBy(now, countZeroQty(ev.Bids)+countZeroQty(ev.Asks))

	st.mu.Lock()
	defer st.mu.Unlock()

	if ev.FirstUpdateID > st.book.LastUpdateID+1 {
		log.Error().Str("symbol", st.symbol).
			Uint64("have", st.book.LastUpdateID).Uint64("event_U", ev.FirstUpdateID).
			Msg("sequence gap detected, marking needs_resync")
		st.needsResync = true
		return
	}
	if ev.FinalUpdateID <= st.book.LastUpdateID {
		return // stale event, already applied past this point
	}

	candidate := st.book
	if err := applyDiffEvent(&candidate, ev); err != nil {
		log.Error().Str("symbol", st.symbol).Err(err).Msg("diff application failed, marking needs_resync")
		st.needsResync = true
		return
	}

	if crossed(candidate.Bids, candidate.Asks) {
		log.Error().Str("symbol", st.symbol).Msg("crossed book detected, marking needs_resync")
		st.needsResync = true
		return
	}

	st.book = candidate
	st.lastUpdateAt = time.Now()
	st.spreadHistory.add(spreadBpsOf(candidate))
	st.depthHistory.add(topNotional(candidate.Bids, 20) + topNotional(candidate.Asks, 20))
	e.bookChanged(st)
}

// bookChanged is invoked with st.mu held; it must not block.
func (e *Engine) bookChanged(st *symbolState) {
	go e.notify(st.symbol, st.book)
}

// resync fetches a fresh REST snapshot and replaces the book in place,
// clearing needs_resync (spec.md §4.3 steps 1-4). Concurrent callers
// for the same symbol are serialized by resyncMu and observe the
// single resulting snapshot.
func (e *Engine) resync(ctx context.Context, st *symbolState) error {
	st.resyncMu.Lock()
	defer st.resyncMu.Unlock()

	st.mu.RLock()
	stillNeeded := st.needsResync
	st.mu.RUnlock()
	if !stillNeeded {
		return nil
	}

	snap, err := e.rest.Depth(ctx, st.symbol, restDepth)
	if err != nil {
		return err
	}
	book := snapshotToBook(st.symbol, snap)

	st.mu.Lock()
	st.book = book
	st.needsResync = false
	st.lastUpdateAt = time.Now()
	st.spreadHistory.add(spreadBpsOf(book))
	st.depthHistory.add(topNotional(book.Bids, 20) + topNotional(book.Asks, 20))
	st.mu.Unlock()

	e.notify(st.symbol, book)
	return nil
}

func snapshotToBook(sym string, snap *binance.DepthResponse) OrderBook {
	bids := decodeLevels(snap.Bids)
	asks := decodeLevels(snap.Asks)
	return OrderBook{
		Symbol:       sym,
		Bids:         sortLevels(bids, sideBid),
		Asks:         sortLevels(asks, sideAsk),
		LastUpdateID: snap.LastUpdateID,
		TimestampMS:  clock.NowMs(),
	}
}

func decodeLevels(raw [][]string) []PriceLevel {
	out := make([]PriceLevel, 0, len(raw))
	for _, e := range raw {
		if len(e) < 2 {
			continue
		}
		price, err1 := decimal.NewFromString(e[0])
		qty, err2 := decimal.NewFromString(e[1])
		if err1 != nil || err2 != nil {
			continue
		}
		out = append(out, PriceLevel{Price: price, Quantity: qty})
	}
	return out
}

func applyDiffEvent(book *OrderBook, ev binance.DepthDiffEvent) error {
	bidUpdates := decodeLevels(ev.Bids)
	askUpdates := decodeLevels(ev.Asks)

	book.Bids = applyLevels(book.Bids, bidUpdates, sideBid)
	book.Asks = applyLevels(book.Asks, askUpdates, sideAsk)

	if !isSorted(book.Bids, sideBid) || !isSorted(book.Asks, sideAsk) {
		return fmt.Errorf("book invariant violated after diff application")
	}

	book.LastUpdateID = ev.FinalUpdateID
	book.TimestampMS = clock.NowMs()
	return nil
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func binanceSymbolLower(sym string) string {
	return symbol.Lower(sym)
}
