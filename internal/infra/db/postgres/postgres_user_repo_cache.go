package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/kasboi/payecards-bot/internal/domain/model"
	"github.com/kasboi/payecards-bot/internal/domain/ports/repository"
	"github.com/kasboi/payecards-bot/internal/infra/metrics"
	red "github.com/kasboi/payecards-bot/internal/infra/redis"
)

var _ repository.UserRepository = (*userRepoCacheDecorator)(nil)

// userRepoCacheDecorator caches telegram id lookups, which run on every
// /start, /help and admin check. Reads inside a transaction skip the cache.
type userRepoCacheDecorator struct {
	inner repository.UserRepository
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

func NewUserRepoCacheDecorator(inner repository.UserRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.UserRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &userRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl, log: logger}
}

func userTgKey(tgID int64) string { return fmt.Sprintf("user:tgid:%d", tgID) }

func (d *userRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	if err := d.cache.Del(ctx, userTgKey(u.TelegramID)); err != nil {
		d.log.Warn().Err(err).Int64("tg_id", u.TelegramID).Msg("user cache invalidation failed")
	}
	return d.inner.Save(ctx, tx, u)
}

func (d *userRepoCacheDecorator) FindByTelegramID(ctx context.Context, tx repository.Tx, tgID int64) (*model.User, error) {
	if tx != nil {
		return d.inner.FindByTelegramID(ctx, tx, tgID)
	}
	key := userTgKey(tgID)
	val, err := d.cache.Get(ctx, key)
	switch {
	case err == nil:
		var user model.User
		if json.Unmarshal([]byte(val), &user) == nil {
			metrics.IncCacheRequest("user", "hit")
			return &user, nil
		}
	case !red.IsNil(err):
		metrics.IncCacheRequest("user", "error")
		d.log.Warn().Err(err).Str("key", key).Msg("user cache read failed")
	}

	metrics.IncCacheRequest("user", "miss")
	user, err := d.inner.FindByTelegramID(ctx, tx, tgID)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(user); err == nil {
		_ = d.cache.Set(ctx, key, b, d.ttl)
	}
	return user, nil
}

func (d *userRepoCacheDecorator) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.User, error) {
	return d.inner.FindByEmail(ctx, tx, email)
}

func (d *userRepoCacheDecorator) List(ctx context.Context, tx repository.Tx) ([]*model.User, error) {
	return d.inner.List(ctx, tx)
}

func (d *userRepoCacheDecorator) CountUsers(ctx context.Context, tx repository.Tx) (int, error) {
	return d.inner.CountUsers(ctx, tx)
}
