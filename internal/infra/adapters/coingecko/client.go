package coingecko

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kasboi/payecards-bot/internal/config"
	"github.com/kasboi/payecards-bot/internal/domain/model"
	"github.com/kasboi/payecards-bot/internal/domain/ports/adapter"
	"github.com/kasboi/payecards-bot/internal/infra/metrics"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

var _ adapter.PriceProvider = (*Client)(nil)

// Client talks to the public CoinGecko v3 API.
type Client struct {
	baseURL string
	retries int
	backoff time.Duration
	client  *http.Client
	now     func() time.Time
	log     *zerolog.Logger
}

func NewClient(cfg config.PriceConfig, logger *zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		retries: cfg.Retries,
		backoff: 500 * time.Millisecond,
		client:  &http.Client{Timeout: cfg.Timeout},
		now:     time.Now,
		log:     logger,
	}
}

// statusError is a non-2xx answer from the API.
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("coingecko: status %d: %s", e.Code, e.Body)
}

// errDecode marks a response body that is not the expected JSON. Asking
// again returns the same body, so it is never retried.
var errDecode = errors.New("coingecko: undecodable response")

func retryable(err error) bool {
	if errors.Is(err, errDecode) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	// network errors and timeouts
	return !errors.Is(err, context.Canceled)
}

type marketRow struct {
	ID                       string  `json:"id"`
	Symbol                   string  `json:"symbol"`
	Name                     string  `json:"name"`
	CurrentPrice             float64 `json:"current_price"`
	MarketCap                float64 `json:"market_cap"`
	TotalVolume              float64 `json:"total_volume"`
	PriceChangePercentage24h float64 `json:"price_change_percentage_24h"`
	LastUpdated              string  `json:"last_updated"`
}

type simplePrice struct {
	USD          float64 `json:"usd"`
	USD24hChange float64 `json:"usd_24h_change"`
	USDMarketCap float64 `json:"usd_market_cap"`
}

// Quote returns detailed market data for one coin (/coins/markets).
func (c *Client) Quote(ctx context.Context, coin model.Coin) (*model.Quote, error) {
	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("ids", coin.ID)

	var rows []marketRow
	if err := c.get(ctx, "coins_markets", "/coins/markets", q, &rows); err != nil {
		return nil, err
	}
	row, ok := lo.Find(rows, func(r marketRow) bool { return r.ID == coin.ID })
	if !ok {
		return nil, fmt.Errorf("coingecko: no market data for %s", coin.ID)
	}

	fetched := c.now()
	if t, err := time.Parse(time.RFC3339, row.LastUpdated); err == nil {
		fetched = t
	}
	return &model.Quote{
		Coin:      coin,
		PriceUSD:  row.CurrentPrice,
		Change24h: row.PriceChangePercentage24h,
		MarketCap: row.MarketCap,
		Volume24h: row.TotalVolume,
		FetchedAt: fetched,
	}, nil
}

// Quotes returns prices for several coins in one call (/simple/price). Coins
// missing from the answer are skipped; order follows coins.
func (c *Client) Quotes(ctx context.Context, coins []model.Coin) ([]*model.Quote, error) {
	if len(coins) == 0 {
		return []*model.Quote{}, nil
	}
	q := url.Values{}
	q.Set("ids", strings.Join(lo.Map(coins, func(c model.Coin, _ int) string { return c.ID }), ","))
	q.Set("vs_currencies", "usd")
	q.Set("include_24hr_change", "true")
	q.Set("include_market_cap", "true")

	var body map[string]simplePrice
	if err := c.get(ctx, "simple_price", "/simple/price", q, &body); err != nil {
		return nil, err
	}

	now := c.now()
	out := make([]*model.Quote, 0, len(coins))
	for _, coin := range coins {
		p, ok := body[coin.ID]
		if !ok {
			continue
		}
		out = append(out, &model.Quote{
			Coin:      coin,
			PriceUSD:  p.USD,
			Change24h: p.USD24hChange,
			MarketCap: p.USDMarketCap,
			FetchedAt: now,
		})
	}
	if len(out) == 0 {
		return nil, errors.New("coingecko: empty price response")
	}
	return out, nil
}

// get performs a GET with retries on 429, 5xx and network errors.
func (c *Client) get(ctx context.Context, endpoint, path string, query url.Values, dst interface{}) error {
	attempts := c.retries
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		start := time.Now()
		lastErr = c.do(ctx, path, query, dst)
		if lastErr == nil {
			metrics.ObservePriceRequest(endpoint, "ok", time.Since(start))
			return nil
		}
		metrics.ObservePriceRequest(endpoint, "error", time.Since(start))

		if attempt == attempts || !retryable(lastErr) {
			break
		}
		delay := c.backoff * time.Duration(1<<(attempt-1))
		c.log.Warn().Err(lastErr).Str("endpoint", endpoint).Int("attempt", attempt).Dur("retry_in", delay).Msg("price api call failed")

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return lastErr
}

func (c *Client) do(ctx context.Context, path string, query url.Values, dst interface{}) error {
	u := c.baseURL + path + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &statusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: %v", errDecode, err)
	}
	return nil
}
