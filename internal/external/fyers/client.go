package fyers

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"github.com/wonny/sgloader/internal/contracts"
	"github.com/wonny/sgloader/pkg/config"
	"github.com/wonny/sgloader/pkg/httputil"
	"github.com/wonny/sgloader/pkg/logger"
	"github.com/wonny/sgloader/pkg/redis"
)

// maxSymbolsPerRequest is the quotes endpoint limit
const maxSymbolsPerRequest = 50

// Client is the Fyers Data API v3 quote client
// ⭐ SSOT: broker quote calls go through this client only
type Client struct {
	httpClient *httputil.Client
	cache      *redis.Cache
	limiter    *rate.Limiter
	cfg        config.FyersConfig
	logger     *logger.Logger
}

var _ contracts.QuoteSource = (*Client)(nil)

// NewClient creates a Fyers client. cache may be nil.
func NewClient(httpClient *httputil.Client, cache *redis.Cache, cfg config.FyersConfig, log *logger.Logger) *Client {
	perSecond := cfg.RatePerSecond
	if perSecond <= 0 {
		perSecond = 10
	}

	return &Client{
		httpClient: httpClient.WithHeader("Authorization", cfg.ClientID+":"+cfg.AccessToken),
		cache:      cache,
		limiter:    rate.NewLimiter(rate.Limit(perSecond), perSecond),
		cfg:        cfg,
		logger:     log.WithField("module", "fyers"),
	}
}

// quotesResponse is the /quotes payload
type quotesResponse struct {
	S       string       `json:"s"`
	Code    int          `json:"code"`
	Message string       `json:"message"`
	D       []quoteEntry `json:"d"`
}

type quoteEntry struct {
	N string     `json:"n"`
	S string     `json:"s"`
	V quoteValue `json:"v"`
}

type quoteValue struct {
	LP             float64 `json:"lp"`
	PrevClosePrice float64 `json:"prev_close_price"`
	CHP            float64 `json:"chp"`
	Errmsg         string  `json:"errmsg"`
}

// GetCurrentPrices returns quotes keyed by symbol (NSE:SBIN-EQ).
// Symbols the broker does not return are dropped. A failed or non-ok
// chunk is logged and contributes nothing; only ctx cancellation errors.
func (c *Client) GetCurrentPrices(ctx context.Context, symbols []string) (map[string]contracts.Quote, error) {
	quotes := make(map[string]contracts.Quote, len(symbols))
	misses := c.fromCache(ctx, symbols, quotes)

	for start := 0; start < len(misses); start += maxSymbolsPerRequest {
		end := start + maxSymbolsPerRequest
		if end > len(misses) {
			end = len(misses)
		}

		fetched, err := c.fetch(ctx, misses[start:end])
		if err != nil {
			if ctx.Err() != nil {
				return quotes, err
			}
			c.logger.WithError(err).WithField("symbols", end-start).Warn("Quote request failed")
			continue
		}
		for sym, q := range fetched {
			quotes[sym] = q
			c.store(ctx, q)
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"requested": len(symbols),
		"returned":  len(quotes),
	}).Debug("Fetched quotes")
	return quotes, nil
}

func (c *Client) fetch(ctx context.Context, symbols []string) (map[string]contracts.Quote, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	endpoint := fmt.Sprintf("%s/quotes?symbols=%s",
		strings.TrimRight(c.cfg.BaseURL, "/"), url.QueryEscape(strings.Join(symbols, ",")))

	var resp quotesResponse
	if err := c.httpClient.GetJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("fyers quotes: %w", err)
	}

	return parseQuotes(&resp, c.logger), nil
}

// parseQuotes keeps the ok entries of a quotes response
func parseQuotes(resp *quotesResponse, log *logger.Logger) map[string]contracts.Quote {
	out := make(map[string]contracts.Quote, len(resp.D))
	if resp.S != "ok" {
		log.WithFields(map[string]interface{}{
			"code":    resp.Code,
			"message": resp.Message,
		}).Warn("Quote response not ok")
		return out
	}

	for _, d := range resp.D {
		if d.S != "" && d.S != "ok" || d.V.Errmsg != "" || d.N == "" {
			continue
		}
		out[d.N] = contracts.Quote{
			Symbol:        d.N,
			LTP:           d.V.LP,
			PrevClose:     d.V.PrevClosePrice,
			ChangePercent: d.V.CHP,
		}
	}
	return out
}

func (c *Client) fromCache(ctx context.Context, symbols []string, into map[string]contracts.Quote) []string {
	if c.cache == nil {
		return symbols
	}

	var misses []string
	for _, sym := range symbols {
		var q contracts.Quote
		found, err := c.cache.Get(ctx, redis.QuoteKey(sym), &q)
		if err != nil || !found {
			misses = append(misses, sym)
			continue
		}
		into[sym] = q
	}
	return misses
}

func (c *Client) store(ctx context.Context, q contracts.Quote) {
	if c.cache == nil {
		return
	}
	ttl := c.cfg.QuoteCacheTTL
	if ttl <= 0 {
		ttl = redis.TTLQuote
	}
	if err := c.cache.Set(ctx, redis.QuoteKey(q.Symbol), q, ttl); err != nil {
		c.logger.WithError(err).Debug("Quote cache write failed")
	}
}
