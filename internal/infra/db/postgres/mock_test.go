//go:build !integration

package postgres

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/kasboi/payecards-bot/internal/domain"
	"github.com/kasboi/payecards-bot/internal/domain/model"
	"github.com/kasboi/payecards-bot/internal/domain/ports/repository"
	red "github.com/kasboi/payecards-bot/internal/infra/redis"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

type mockRedisClient struct {
	GetFunc func(ctx context.Context, key string) (string, error)
	SetFunc func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc func(ctx context.Context, keys ...string) error
}

var _ red.RedisClient = (*mockRedisClient)(nil)

func (m *mockRedisClient) Ping(ctx context.Context) error { return nil }
func (m *mockRedisClient) Close() error                   { return nil }
func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	return "", red.ErrNil
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, key, value, expiration)
	}
	return nil
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	if m.DelFunc != nil {
		return m.DelFunc(ctx, keys...)
	}
	return nil
}
func (m *mockRedisClient) GetDel(ctx context.Context, key string) (string, error) {
	return "", red.ErrNil
}
func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) { return 1, nil }
func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return nil
}

type mockInnerUserRepo struct {
	SaveFunc             func(ctx context.Context, tx repository.Tx, u *model.User) error
	FindByTelegramIDFunc func(ctx context.Context, tx repository.Tx, tgID int64) (*model.User, error)
}

var _ repository.UserRepository = (*mockInnerUserRepo)(nil)

func (m *mockInnerUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, u)
	}
	return nil
}
func (m *mockInnerUserRepo) FindByTelegramID(ctx context.Context, tx repository.Tx, tgID int64) (*model.User, error) {
	if m.FindByTelegramIDFunc != nil {
		return m.FindByTelegramIDFunc(ctx, tx, tgID)
	}
	return nil, domain.ErrNotFound
}
func (m *mockInnerUserRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.User, error) {
	return nil, domain.ErrNotFound
}
func (m *mockInnerUserRepo) List(ctx context.Context, tx repository.Tx) ([]*model.User, error) {
	return nil, nil
}
func (m *mockInnerUserRepo) CountUsers(ctx context.Context, tx repository.Tx) (int, error) {
	return 0, nil
}
