package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"chat_trader/pkg/quant"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

var ErrQuoteNotFound = errors.New("quote not found")

// yahooChartResponse represents the Yahoo Finance Chart API response.
// Prices are kept as json.Number so they convert to decimals exactly.
type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency           string      `json:"currency"`
				Symbol             string      `json:"symbol"`
				RegularMarketPrice json.Number `json:"regularMarketPrice"`
				PreviousClose      json.Number `json:"previousClose"`
				RegularMarketTime  json.Number `json:"regularMarketTime"`
			} `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Quote is the latest observation for one symbol.
type Quote struct {
	Symbol        string
	Currency      string
	Price         decimal.Decimal
	PreviousClose decimal.Decimal
	At            quant.TimeStamp
	fetched       time.Time
}

// Change returns the move since the previous close.
func (q Quote) Change() decimal.Decimal {
	if q.PreviousClose.IsZero() {
		return decimal.Zero
	}
	return q.Price.Sub(q.PreviousClose)
}

// QuoteClient fetches last prices from the Yahoo chart API with a short
// per-symbol cache, retries and a request rate cap.
type QuoteClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	ttl        time.Duration
	attempts   int
	backoff    func(retry int) time.Duration

	mu    sync.RWMutex
	cache map[string]Quote

	pollInterval time.Duration
	watchlist    []string
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

// NewQuoteClient creates a client from the quotes config section.
func NewQuoteClient(cfg *Config) *QuoteClient {
	baseURL := cfg.Quotes.URL
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &QuoteClient{
		baseURL:      baseURL,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		limiter:      rate.NewLimiter(rate.Limit(2), 4),
		ttl:          time.Duration(cfg.Quotes.CacheTTLSec) * time.Second,
		attempts:     3,
		backoff:      quoteBackoff.Delay,
		cache:        make(map[string]Quote),
		pollInterval: time.Duration(cfg.Quotes.PollIntervalSec) * time.Second,
		watchlist:    cfg.Quotes.Watchlist,
	}
}

// LastPrice returns the latest trade price for symbol.
func (c *QuoteClient) LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	q, err := c.Quote(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return q.Price, nil
}

// Quote returns a cached quote younger than the TTL or fetches a new one.
func (c *QuoteClient) Quote(ctx context.Context, symbol string) (Quote, error) {
	symbol = strings.ToUpper(symbol)

	c.mu.RLock()
	q, ok := c.cache[symbol]
	c.mu.RUnlock()
	if ok && time.Since(q.fetched) < c.ttl {
		return q, nil
	}

	q, err := c.fetchQuote(ctx, symbol)
	if err != nil {
		return Quote{}, err
	}

	c.mu.Lock()
	c.cache[symbol] = q
	c.mu.Unlock()
	return q, nil
}

// Start polls the watchlist and reports every price through onUpdate.
// It is a no-op when polling is disabled or the watchlist is empty.
func (c *QuoteClient) Start(ctx context.Context, onUpdate func(symbol string, price decimal.Decimal)) {
	if c.pollInterval <= 0 || len(c.watchlist) == 0 {
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Quote polling panic recovered", slog.Any("panic", r))
			}
		}()

		ticker := time.NewTicker(c.pollInterval)
		defer ticker.Stop()

		for {
			c.pollOnce(ctx, onUpdate)
			select {
			case <-ctx.Done():
				slog.Info("Quote polling stopped")
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop stops the polling
func (c *QuoteClient) Stop() {
	if c.cancel != nil {
		c.cancel()
		c.wg.Wait()
	}
}

func (c *QuoteClient) pollOnce(ctx context.Context, onUpdate func(string, decimal.Decimal)) {
	for _, sym := range c.watchlist {
		q, err := c.Quote(ctx, sym)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("Quote poll failed", slog.String("symbol", sym), slog.Any("error", err))
			continue
		}
		onUpdate(q.Symbol, q.Price)
	}
}

// fetchQuote fetches with retry; a missing symbol is not retried.
func (c *QuoteClient) fetchQuote(ctx context.Context, symbol string) (Quote, error) {
	var lastErr error
	for i := 0; i < c.attempts; i++ {
		if i > 0 {
			delay := c.backoff(i - 1)
			slog.Info("Retrying quote fetch", slog.String("symbol", symbol), slog.Int("attempt", i), slog.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return Quote{}, ctx.Err()
			case <-time.After(delay):
			}
		}

		q, err := c.doFetch(ctx, symbol)
		if err == nil {
			return q, nil
		}
		if errors.Is(err, ErrQuoteNotFound) || ctx.Err() != nil {
			return Quote{}, err
		}
		lastErr = err
		slog.Warn("Quote fetch attempt failed", slog.String("symbol", symbol), slog.Int("attempt", i+1), slog.Any("error", err))
	}
	return Quote{}, lastErr
}

func (c *QuoteClient) doFetch(ctx context.Context, symbol string) (Quote, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Quote{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+url.PathEscape(symbol), nil)
	if err != nil {
		return Quote{}, err
	}
	req.Header.Set("User-Agent", GetPlatformUserAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Quote{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Quote{}, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return Quote{}, fmt.Errorf("%w: %s", ErrQuoteNotFound, symbol)
	}
	if resp.StatusCode != http.StatusOK {
		return Quote{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var data yahooChartResponse
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil {
		return Quote{}, err
	}

	if data.Chart.Error != nil {
		if strings.EqualFold(data.Chart.Error.Code, "Not Found") {
			return Quote{}, fmt.Errorf("%w: %s", ErrQuoteNotFound, symbol)
		}
		return Quote{}, fmt.Errorf("Yahoo API error: %s - %s", data.Chart.Error.Code, data.Chart.Error.Description)
	}
	if len(data.Chart.Result) == 0 {
		return Quote{}, fmt.Errorf("%w: %s", ErrQuoteNotFound, symbol)
	}

	meta := data.Chart.Result[0].Meta
	price, err := decimal.NewFromString(meta.RegularMarketPrice.String())
	if err != nil || !price.IsPositive() {
		return Quote{}, fmt.Errorf("%w: %s has no market price", ErrQuoteNotFound, symbol)
	}

	q := Quote{
		Symbol:   symbol,
		Currency: meta.Currency,
		Price:    price,
		fetched:  time.Now(),
	}
	if prev, err := decimal.NewFromString(meta.PreviousClose.String()); err == nil {
		q.PreviousClose = prev
	}
	if ts, err := quant.ParseTimeStamp(meta.RegularMarketTime.String()); err == nil {
		q.At = ts
	}
	return q, nil
}
