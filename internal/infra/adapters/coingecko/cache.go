package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kasboi/payecards-bot/internal/domain/model"
	"github.com/kasboi/payecards-bot/internal/domain/ports/adapter"
	"github.com/kasboi/payecards-bot/internal/infra/metrics"
	red "github.com/kasboi/payecards-bot/internal/infra/redis"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

var _ adapter.PriceProvider = (*CachedProvider)(nil)

// CachedProvider keeps quotes in Redis for ttl. Cache failures fall through
// to the wrapped provider.
type CachedProvider struct {
	next   adapter.PriceProvider
	client red.RedisClient
	ttl    time.Duration
	log    *zerolog.Logger
}

func NewCachedProvider(next adapter.PriceProvider, client red.RedisClient, ttl time.Duration, logger *zerolog.Logger) *CachedProvider {
	return &CachedProvider{next: next, client: client, ttl: ttl, log: logger}
}

func quoteKey(id string) string { return "price:quote:" + id }

func quotesKey(coins []model.Coin) string {
	ids := lo.Map(coins, func(c model.Coin, _ int) string { return c.ID })
	return "price:quotes:" + strings.Join(ids, ",")
}

func (p *CachedProvider) Quote(ctx context.Context, coin model.Coin) (*model.Quote, error) {
	var q model.Quote
	if p.load(ctx, quoteKey(coin.ID), &q) {
		return &q, nil
	}
	fresh, err := p.next.Quote(ctx, coin)
	if err != nil {
		return nil, err
	}
	p.store(ctx, quoteKey(coin.ID), fresh)
	return fresh, nil
}

func (p *CachedProvider) Quotes(ctx context.Context, coins []model.Coin) ([]*model.Quote, error) {
	key := quotesKey(coins)
	var qs []*model.Quote
	if p.load(ctx, key, &qs) {
		return qs, nil
	}
	fresh, err := p.next.Quotes(ctx, coins)
	if err != nil {
		return nil, err
	}
	p.store(ctx, key, fresh)
	return fresh, nil
}

func (p *CachedProvider) load(ctx context.Context, key string, dst interface{}) bool {
	raw, err := p.client.Get(ctx, key)
	switch {
	case red.IsNil(err):
		metrics.IncCacheRequest("price", "miss")
		return false
	case err != nil:
		metrics.IncCacheRequest("price", "error")
		p.log.Warn().Err(err).Str("key", key).Msg("price cache read failed")
		return false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		metrics.IncCacheRequest("price", "error")
		return false
	}
	metrics.IncCacheRequest("price", "hit")
	return true
}

func (p *CachedProvider) store(ctx context.Context, key string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := p.client.Set(ctx, key, data, p.ttl); err != nil {
		p.log.Warn().Err(fmt.Errorf("cache %s: %w", key, err)).Msg("price cache write failed")
	}
}
