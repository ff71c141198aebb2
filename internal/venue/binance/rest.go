package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sawpanic/binance-marketintel/internal/apperrors"
	"github.com/sawpanic/binance-marketintel/internal/breaker"
	"github.com/sawpanic/binance-marketintel/internal/ratelimit"
)

const restTimeout = 10 * time.Second

// RESTClient executes rate-limited, circuit-broken REST calls against
// the venue's HTTP API. No authentication is required for any call the
// core makes (spec.md §6.1).
type RESTClient struct {
	baseURL string
	http    *http.Client
	limiter *ratelimit.Limiter
	breaker *breaker.Breaker
}

func NewRESTClient(baseURL string, limiter *ratelimit.Limiter) *RESTClient {
	return &RESTClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: restTimeout},
		limiter: limiter,
		breaker: breaker.New("binance-rest"),
	}
}

func (c *RESTClient) do(ctx context.Context, path string, query url.Values, out any) error {
	if err := c.limiter.Acquire(ctx); err != nil {
		return err
	}

	u := c.baseURL + path
	if query != nil {
		u += "?" + query.Encode()
	}

	result, err := c.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.VenueUnavailable, "request failed", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.VenueUnavailable, "read body failed", err)
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == 418 {
			return nil, apperrors.New(apperrors.RateLimitExceeded, "venue returned 429/418")
		}
		if resp.StatusCode != http.StatusOK {
			return nil, apperrors.Wrap(apperrors.VenueUnavailable,
				fmt.Sprintf("unexpected status %d", resp.StatusCode), fmt.Errorf("%s", string(body)))
		}
		return body, nil
	})
	if err != nil {
		return err
	}

	body, _ := result.([]byte)
	if err := json.Unmarshal(body, out); err != nil {
		return apperrors.Wrap(apperrors.VenueUnavailable, "decode response failed", err)
	}
	return nil
}

// ExchangeInfo fetches GET /api/v3/exchangeInfo.
func (c *RESTClient) ExchangeInfo(ctx context.Context) (*ExchangeInfo, error) {
	var out ExchangeInfo
	if err := c.do(ctx, "/api/v3/exchangeInfo", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ticker24hr fetches GET /api/v3/ticker/24hr?symbol=S.
func (c *RESTClient) Ticker24hr(ctx context.Context, sym string) (*Ticker24hr, error) {
	q := url.Values{"symbol": {sym}}
	var out Ticker24hr
	if err := c.do(ctx, "/api/v3/ticker/24hr", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Depth fetches GET /api/v3/depth?symbol=S&limit=L. A limit outside
// 1..5000 is replaced with 1000.
func (c *RESTClient) Depth(ctx context.Context, sym string, limit int) (*DepthResponse, error) {
	if limit <= 0 || limit > 5000 {
		limit = 1000
	}
	q := url.Values{"symbol": {sym}, "limit": {strconv.Itoa(limit)}}
	var out DepthResponse
	if err := c.do(ctx, "/api/v3/depth", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AvgPrice fetches GET /api/v3/avgPrice?symbol=S.
func (c *RESTClient) AvgPrice(ctx context.Context, sym string) (*AvgPrice, error) {
	q := url.Values{"symbol": {sym}}
	var out AvgPrice
	if err := c.do(ctx, "/api/v3/avgPrice", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RecentTrades fetches GET /api/v3/trades?symbol=S&limit=L.
func (c *RESTClient) RecentTrades(ctx context.Context, sym string, limit int) ([]RecentTrade, error) {
	if limit <= 0 || limit > 1000 {
		limit = 500
	}
	q := url.Values{"symbol": {sym}, "limit": {strconv.Itoa(limit)}}
	var out []RecentTrade
	if err := c.do(ctx, "/api/v3/trades", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Klines fetches GET /api/v3/klines?symbol=S&interval=I&limit=L. The
// venue returns each candle as a positional JSON array; it is decoded
// into the Kline struct here rather than surfaced as raw [][]any.
func (c *RESTClient) Klines(ctx context.Context, sym, interval string, limit int) ([]Kline, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	q := url.Values{"symbol": {sym}, "interval": {interval}, "limit": {strconv.Itoa(limit)}}

	var rows [][]any
	if err := c.do(ctx, "/api/v3/klines", q, &rows); err != nil {
		return nil, err
	}

	out := make([]Kline, 0, len(rows))
	for _, r := range rows {
		if len(r) < 9 {
			continue
		}
		k := Kline{
			OpenTimeMS:  toInt64(r[0]),
			Open:        toStr(r[1]),
			High:        toStr(r[2]),
			Low:         toStr(r[3]),
			Close:       toStr(r[4]),
			Volume:      toStr(r[5]),
			CloseTimeMS: toInt64(r[6]),
			QuoteVolume: toStr(r[7]),
			NumTrades:   toInt64(r[8]),
		}
		out = append(out, k)
	}
	return out, nil
}

func toStr(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func toInt64(v any) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case string:
		n, _ := strconv.ParseInt(t, 10, 64)
		return n
	default:
		return 0
	}
}
