package persist

import (
	"context"
	"time"

	"github.com/sawpanic/binance-marketintel/internal/apperrors"
	"github.com/sawpanic/binance-marketintel/internal/store"
	"github.com/sawpanic/binance-marketintel/internal/symbol"
)

const (
	maxQueryWindow = 7 * 24 * time.Hour
	queryTimeout   = 2 * time.Second
)

// Querier serves the bounded historical reads the analytics engine
// needs: a window of snapshots or trades for one symbol, rejecting
// windows wider than the retention horizon (spec.md §4.2 query_*).
type Querier struct {
	st *store.Store
}

func NewQuerier(st *store.Store) *Querier {
	return &Querier{st: st}
}

// QuerySnapshots returns every snapshot for sym with timestamp in
// [fromMS, toMS], in ascending time order.
func (q *Querier) QuerySnapshots(ctx context.Context, sym string, fromMS, toMS int64) ([]BookSnapshotRecord, error) {
	if err := validateWindow(fromMS, toMS); err != nil {
		return nil, err
	}
	sym = symbol.Normalize(sym)

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var out []BookSnapshotRecord
	err := q.st.ScanRange(SnapshotPrefix(sym), SuffixFor(fromMS/1000), SuffixFor(toMS/1000),
		func(key, value []byte) bool {
			if ctx.Err() != nil {
				return false
			}
			rec, err := DecodeSnapshot(value)
			if err == nil {
				out = append(out, rec)
			}
			return true
		})
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, apperrors.Wrap(apperrors.Timeout, "query_snapshots exceeded soft timeout", ctx.Err())
	}
	return out, nil
}

// QueryTrades returns every trade batch for sym with timestamp in
// [fromMS, toMS], flattened into a single ascending-time trade slice.
func (q *Querier) QueryTrades(ctx context.Context, sym string, fromMS, toMS int64) ([]AggTrade, error) {
	if err := validateWindow(fromMS, toMS); err != nil {
		return nil, err
	}
	sym = symbol.Normalize(sym)

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var out []AggTrade
	err := q.st.ScanRange(TradePrefix(sym), SuffixFor(fromMS), SuffixFor(toMS),
		func(key, value []byte) bool {
			if ctx.Err() != nil {
				return false
			}
			batch, err := DecodeTradeBatch(sym, value)
			if err != nil {
				return true
			}
			// The batch key is the flush time, not each trade's own
			// trade-time (trades.go), so a matched batch can still
			// carry trades outside [fromMS, toMS]; filter per-trade
			// rather than trusting the batch-level scan bounds.
			for _, t := range batch.Trades {
				if t.TimestampMS >= fromMS && t.TimestampMS <= toMS {
					out = append(out, t)
				}
			}
			return true
		})
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, apperrors.Wrap(apperrors.Timeout, "query_trades exceeded soft timeout", ctx.Err())
	}
	return out, nil
}

func validateWindow(fromMS, toMS int64) error {
	if toMS <= fromMS {
		return apperrors.New(apperrors.InvalidInput, "query window end must be after start")
	}
	if time.Duration(toMS-fromMS)*time.Millisecond > maxQueryWindow {
		return apperrors.New(apperrors.InvalidInput, "query window exceeds the 7-day retention horizon")
	}
	return nil
}
