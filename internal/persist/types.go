// Package persist writes order-book snapshots and trade batches to the
// embedded store on fixed intervals, enforces retention, and serves
// the bounded historical queries the analytics engine reads from
// (spec.md §4.2). Keys follow the time-prefixed schema
// "snapshots:{SYMBOL}:{unix_seconds}" and "trades:{SYMBOL}:{unix_millis}".
package persist

import (
	"encoding/binary"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/sawpanic/binance-marketintel/internal/orderbook"
)

const (
	snapshotPrefixFmt = "snapshots:%s:"
	tradePrefixFmt    = "trades:%s:"
)

// SnapshotKey builds the store key for a book snapshot taken at
// unixSeconds.
func SnapshotKey(sym string, unixSeconds int64) []byte {
	return []byte(fmt.Sprintf(snapshotPrefixFmt+"%020d", sym, unixSeconds))
}

// SnapshotPrefix builds the scan prefix for all of one symbol's snapshots.
func SnapshotPrefix(sym string) []byte {
	return []byte(fmt.Sprintf(snapshotPrefixFmt, sym))
}

// TradeKey builds the store key for a trade batch flushed at unixMillis.
func TradeKey(sym string, unixMillis int64) []byte {
	return []byte(fmt.Sprintf(tradePrefixFmt+"%020d", sym, unixMillis))
}

// TradePrefix builds the scan prefix for all of one symbol's trade batches.
func TradePrefix(sym string) []byte {
	return []byte(fmt.Sprintf(tradePrefixFmt, sym))
}

// SuffixFor renders the zero-padded decimal suffix used for lexical
// range scans between two timestamps sharing a prefix.
func SuffixFor(ts int64) []byte {
	return []byte(fmt.Sprintf("%020d", ts))
}

// BookSnapshotRecord is the persisted form of one order-book snapshot:
// the top N levels per side plus the metadata needed to reconstruct
// L1/L2 views without replaying the live book.
type BookSnapshotRecord struct {
	Symbol       string
	TimestampMS  int64
	LastUpdateID uint64
	Bids         []orderbook.PriceLevel
	Asks         []orderbook.PriceLevel
}

// AggTrade is one persisted trade event, deduplicated against the
// venue's monotonically increasing aggregate trade ID.
type AggTrade struct {
	Symbol      string
	TradeID     int64
	Price       decimal.Decimal
	Quantity    decimal.Decimal
	TimestampMS int64
	BuyerMaker  bool
}

// TradeBatch is the unit written by the 1s trade flush.
type TradeBatch struct {
	Symbol      string
	TimestampMS int64
	Trades      []AggTrade
}

// EncodeSnapshot serializes a BookSnapshotRecord to a compact binary
// form: a fixed header followed by repeated (price, quantity) pairs
// per side, each as a length-prefixed decimal string. This keeps the
// on-disk format independent of decimal.Decimal's internal layout.
func EncodeSnapshot(r BookSnapshotRecord) []byte {
	buf := make([]byte, 0, 64+32*(len(r.Bids)+len(r.Asks)))

	buf = appendString(buf, r.Symbol)
	buf = appendUint64(buf, uint64(r.TimestampMS))
	buf = appendUint64(buf, r.LastUpdateID)
	buf = appendLevels(buf, r.Bids)
	buf = appendLevels(buf, r.Asks)
	return buf
}

// DecodeSnapshot is the inverse of EncodeSnapshot.
func DecodeSnapshot(data []byte) (BookSnapshotRecord, error) {
	r := BookSnapshotRecord{}
	off := 0

	sym, n, err := readString(data, off)
	if err != nil {
		return r, err
	}
	off = n
	r.Symbol = sym

	ts, n, err := readUint64(data, off)
	if err != nil {
		return r, err
	}
	off = n
	r.TimestampMS = int64(ts)

	luid, n, err := readUint64(data, off)
	if err != nil {
		return r, err
	}
	off = n
	r.LastUpdateID = luid

	bids, n, err := readLevels(data, off)
	if err != nil {
		return r, err
	}
	off = n
	r.Bids = bids

	asks, _, err := readLevels(data, off)
	if err != nil {
		return r, err
	}
	r.Asks = asks

	return r, nil
}

// EncodeTradeBatch serializes a TradeBatch using the same
// length-prefixed primitives as EncodeSnapshot.
func EncodeTradeBatch(b TradeBatch) []byte {
	buf := make([]byte, 0, 64+48*len(b.Trades))
	buf = appendString(buf, b.Symbol)
	buf = appendUint64(buf, uint64(b.TimestampMS))
	buf = appendUint64(buf, uint64(len(b.Trades)))
	for _, t := range b.Trades {
		buf = appendUint64(buf, uint64(t.TradeID))
		buf = appendString(buf, t.Price.String())
		buf = appendString(buf, t.Quantity.String())
		buf = appendUint64(buf, uint64(t.TimestampMS))
		if t.BuyerMaker {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	}
	return buf
}

// DecodeTradeBatch is the inverse of EncodeTradeBatch.
func DecodeTradeBatch(sym string, data []byte) (TradeBatch, error) {
	b := TradeBatch{}
	off := 0

	s, n, err := readString(data, off)
	if err != nil {
		return b, err
	}
	off = n
	b.Symbol = s

	ts, n, err := readUint64(data, off)
	if err != nil {
		return b, err
	}
	off = n
	b.TimestampMS = int64(ts)

	count, n, err := readUint64(data, off)
	if err != nil {
		return b, err
	}
	off = n

	b.Trades = make([]AggTrade, 0, count)
	for i := uint64(0); i < count; i++ {
		id, n2, err := readUint64(data, off)
		if err != nil {
			return b, err
		}
		off = n2

		priceStr, n2, err := readString(data, off)
		if err != nil {
			return b, err
		}
		off = n2
		price, err := decimal.NewFromString(priceStr)
		if err != nil {
			return b, err
		}

		qtyStr, n2, err := readString(data, off)
		if err != nil {
			return b, err
		}
		off = n2
		qty, err := decimal.NewFromString(qtyStr)
		if err != nil {
			return b, err
		}

		tts, n2, err := readUint64(data, off)
		if err != nil {
			return b, err
		}
		off = n2

		if off >= len(data) {
			return b, fmt.Errorf("trade batch truncated")
		}
		maker := data[off] == 1
		off++

		b.Trades = append(b.Trades, AggTrade{
			Symbol:      sym,
			TradeID:     int64(id),
			Price:       price,
			Quantity:    qty,
			TimestampMS: int64(tts),
			BuyerMaker:  maker,
		})
	}
	return b, nil
}

func appendLevels(buf []byte, levels []orderbook.PriceLevel) []byte {
	buf = appendUint64(buf, uint64(len(levels)))
	for _, lv := range levels {
		buf = appendString(buf, lv.Price.String())
		buf = appendString(buf, lv.Quantity.String())
	}
	return buf
}

func readLevels(data []byte, off int) ([]orderbook.PriceLevel, int, error) {
	count, off, err := readUint64(data, off)
	if err != nil {
		return nil, off, err
	}
	out := make([]orderbook.PriceLevel, 0, count)
	for i := uint64(0); i < count; i++ {
		priceStr, n, err := readString(data, off)
		if err != nil {
			return nil, off, err
		}
		off = n
		price, err := decimal.NewFromString(priceStr)
		if err != nil {
			return nil, off, err
		}
		qtyStr, n, err := readString(data, off)
		if err != nil {
			return nil, off, err
		}
		off = n
		qty, err := decimal.NewFromString(qtyStr)
		if err != nil {
			return nil, off, err
		}
		out = append(out, orderbook.PriceLevel{Price: price, Quantity: qty})
	}
	return out, off, nil
}

func appendUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

func readUint64(data []byte, off int) (uint64, int, error) {
	if off+8 > len(data) {
		return 0, off, fmt.Errorf("truncated uint64 at offset %d", off)
	}
	return binary.BigEndian.Uint64(data[off : off+8]), off + 8, nil
}

func appendString(buf []byte, s string) []byte {
	buf = appendUint64(buf, uint64(len(s)))
	return append(buf, s...)
}

func readString(data []byte, off int) (string, int, error) {
	l, off, err := readUint64(data, off)
	if err != nil {
		return "", off, err
	}
	if off+int(l) > len(data) {
		return "", off, fmt.Errorf("truncated string at offset %d", off)
	}
	return string(data[off : off+int(l)]), off + int(l), nil
}
