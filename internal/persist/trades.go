package persist

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/sawpanic/binance-marketintel/internal/clock"
	"github.com/sawpanic/binance-marketintel/internal/store"
	"github.com/sawpanic/binance-marketintel/internal/symbol"
	"github.com/sawpanic/binance-marketintel/internal/venue/binance"
)

const tradeChanCapacity = 20000

// TradePersister consumes the venue's aggregate-trade stream per
// symbol and flushes accumulated trades to the store on a fixed
// interval (default 1000ms, spec.md §6.4 trade_flush_ms). Each
// symbol's last-seen trade ID is tracked as a watermark so a
// reconnect's overlapping replay is deduplicated rather than
// double-counted (resolves spec.md's open question on trade dedup).
type TradePersister struct {
	st        *store.Store
	wsBaseURL string
	interval  time.Duration

	mu         sync.Mutex
	watermarks map[string]int64
}

func NewTradePersister(st *store.Store, wsBaseURL string, interval time.Duration) *TradePersister {
	return &TradePersister{
		st:         st,
		wsBaseURL:  wsBaseURL,
		interval:   interval,
		watermarks: make(map[string]int64),
	}
}

// Run starts one WebSocket consumer per symbol and flushes each
// symbol's pending trades on the configured interval until ctx is
// cancelled.
func (p *TradePersister) Run(ctx context.Context, symbols []string) {
	var wg sync.WaitGroup
	for _, sym := range symbols {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			p.runSymbol(ctx, sym)
		}(sym)
	}
	wg.Wait()
}

func (p *TradePersister) runSymbol(ctx context.Context, sym string) {
	sym = symbol.Normalize(sym)
	events := make(chan binance.AggTradeEvent, tradeChanCapacity)

	stream := binance.NewStream(binance.AggTradeStreamURL(p.wsBaseURL, symbol.Lower(sym)), "aggTrade:"+sym)
	go stream.Run(ctx, func(raw []byte) {
		var ev binance.AggTradeEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			log.Error().Str("symbol", sym).Err(err).Msg("malformed aggTrade event, dropping")
			return
		}
		select {
		case events <- ev:
		default:
			log.Error().Str("symbol", sym).Msg("trade event buffer full, dropping event")
		}
	}, nil)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var pending []AggTrade
	for {
		select {
		case <-ctx.Done():
			p.flush(context.Background(), sym, pending)
			return
		case ev := <-events:
			trade, ok := p.dedup(sym, ev)
			if ok {
				pending = append(pending, trade)
			}
		case <-ticker.C:
			if len(pending) == 0 {
				continue
			}
			p.flush(ctx, sym, pending)
			pending = nil
		}
	}
}

func (p *TradePersister) dedup(sym string, ev binance.AggTradeEvent) (AggTrade, bool) {
	price, err1 := decimal.NewFromString(ev.Price)
	qty, err2 := decimal.NewFromString(ev.Quantity)
	if err1 != nil || err2 != nil {
		return AggTrade{}, false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if last, ok := p.watermarks[sym]; ok && ev.AggTradeID <= last {
		return AggTrade{}, false
	}
	p.watermarks[sym] = ev.AggTradeID

	return AggTrade{
		Symbol:      sym,
		TradeID:     ev.AggTradeID,
		Price:       price,
		Quantity:    qty,
		TimestampMS: ev.TradeTimeMS,
		BuyerMaker:  ev.BuyerMaker,
	}, true
}

func (p *TradePersister) flush(ctx context.Context, sym string, trades []AggTrade) {
	batch := TradeBatch{
		Symbol:      sym,
		TimestampMS: clock.NowMs(),
		Trades:      trades,
	}
	key := TradeKey(sym, batch.TimestampMS)
	if err := p.st.Put(ctx, key, EncodeTradeBatch(batch)); err != nil {
		log.Error().Str("symbol", sym).Err(err).Msg("trade persister: flush failed")
	}
}
