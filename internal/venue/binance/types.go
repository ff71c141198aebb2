// Package binance is the venue REST and WebSocket client: signed-free
// request execution with rate limiting and typed responses for
// exchangeInfo, ticker/24hr, depth, klines, avgPrice, and recent
// trades (spec.md §6.1), plus the diff-depth and aggregate-trade
// WebSocket streams.
package binance

// DepthResponse is the wire shape of GET /api/v3/depth.
type DepthResponse struct {
	LastUpdateID uint64     `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

// DepthDiffEvent is the wire shape of the @depth WebSocket stream.
type DepthDiffEvent struct {
	EventType     string     `json:"e"`
	EventTimeMS   int64      `json:"E"`
	Symbol        string     `json:"s"`
	FirstUpdateID uint64     `json:"U"`
	FinalUpdateID uint64     `json:"u"`
	Bids          [][]string `json:"b"`
	Asks          [][]string `json:"a"`
}

// AggTradeEvent is the wire shape of the @aggTrade WebSocket stream.
type AggTradeEvent struct {
	EventType   string `json:"e"`
	EventTimeMS int64  `json:"E"`
	Symbol      string `json:"s"`
	AggTradeID  int64  `json:"a"`
	Price       string `json:"p"`
	Quantity    string `json:"q"`
	FirstID     int64  `json:"f"`
	LastID      int64  `json:"l"`
	TradeTimeMS int64  `json:"T"`
	BuyerMaker  bool   `json:"m"`
}

// Ticker24hr is the wire shape of GET /api/v3/ticker/24hr.
type Ticker24hr struct {
	Symbol             string `json:"symbol"`
	PriceChange        string `json:"priceChange"`
	PriceChangePercent string `json:"priceChangePercent"`
	LastPrice          string `json:"lastPrice"`
	BidPrice           string `json:"bidPrice"`
	AskPrice           string `json:"askPrice"`
	Volume             string `json:"volume"`
	QuoteVolume        string `json:"quoteVolume"`
	OpenPrice          string `json:"openPrice"`
	HighPrice          string `json:"highPrice"`
	LowPrice           string `json:"lowPrice"`
	OpenTime           int64  `json:"openTime"`
	CloseTime          int64  `json:"closeTime"`
	Count              int64  `json:"count"`
}

// AvgPrice is the wire shape of GET /api/v3/avgPrice.
type AvgPrice struct {
	Mins  int    `json:"mins"`
	Price string `json:"price"`
}

// RecentTrade is one element of GET /api/v3/trades.
type RecentTrade struct {
	ID           int64  `json:"id"`
	Price        string `json:"price"`
	Qty          string `json:"qty"`
	QuoteQty     string `json:"quoteQty"`
	Time         int64  `json:"time"`
	IsBuyerMaker bool   `json:"isBuyerMaker"`
}

// Kline is one candle returned by GET /api/v3/klines, decoded from its
// positional JSON array.
type Kline struct {
	OpenTimeMS  int64
	Open        string
	High        string
	Low         string
	Close       string
	Volume      string
	CloseTimeMS int64
	QuoteVolume string
	NumTrades   int64
}

// ExchangeSymbolFilter is the subset of exchangeInfo per-symbol filter
// fields the service consumes (tick size, for volume-profile bin
// sizing).
type ExchangeSymbolFilter struct {
	FilterType string `json:"filterType"`
	TickSize   string `json:"tickSize"`
	StepSize   string `json:"stepSize"`
}

// ExchangeSymbol is one entry of exchangeInfo.symbols.
type ExchangeSymbol struct {
	Symbol     string                 `json:"symbol"`
	Status     string                 `json:"status"`
	BaseAsset  string                 `json:"baseAsset"`
	QuoteAsset string                 `json:"quoteAsset"`
	Filters    []ExchangeSymbolFilter `json:"filters"`
}

// ExchangeInfo is the wire shape of GET /api/v3/exchangeInfo.
type ExchangeInfo struct {
	Timezone   string           `json:"timezone"`
	ServerTime int64            `json:"serverTime"`
	Symbols    []ExchangeSymbol `json:"symbols"`
}

// TickSize returns the symbol's PRICE_FILTER tick size, or "0.01" if
// absent.
func (e ExchangeSymbol) TickSize() string {
	for _, f := range e.Filters {
		if f.FilterType == "PRICE_FILTER" && f.TickSize != "" {
			return f.TickSize
		}
	}
	return "0.01"
}
