//go:build !integration

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/kasboi/payecards-bot/internal/domain"
	"github.com/kasboi/payecards-bot/internal/domain/model"
	"github.com/kasboi/payecards-bot/internal/domain/ports/repository"
)

func TestUserRepoCacheDecorator(t *testing.T) {
	ctx := context.Background()
	user := &model.User{ID: "user-123", TelegramID: 98765, Username: "ada", Email: "ada@example.com"}

	t.Run("FindByTelegramID should fetch from DB and set cache on miss", func(t *testing.T) {
		innerCalls := 0
		var setKey string
		mockRedis := &mockRedisClient{
			SetFunc: func(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
				setKey = key
				return nil
			},
		}
		inner := &mockInnerUserRepo{
			FindByTelegramIDFunc: func(ctx context.Context, tx repository.Tx, tgID int64) (*model.User, error) {
				innerCalls++
				return user, nil
			},
		}

		decorator := NewUserRepoCacheDecorator(inner, mockRedis, time.Minute, newTestLogger())
		got, err := decorator.FindByTelegramID(ctx, nil, 98765)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if innerCalls != 1 {
			t.Errorf("inner repository should be called once, got %d", innerCalls)
		}
		if got.Email != user.Email {
			t.Errorf("unexpected user %+v", got)
		}
		if setKey != "user:tgid:98765" {
			t.Errorf("unexpected cache key %q", setKey)
		}
	})

	t.Run("FindByTelegramID should serve a hit from cache", func(t *testing.T) {
		b, _ := json.Marshal(user)
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) { return string(b), nil },
		}
		inner := &mockInnerUserRepo{
			FindByTelegramIDFunc: func(ctx context.Context, tx repository.Tx, tgID int64) (*model.User, error) {
				t.Fatal("inner repository should not be called on a hit")
				return nil, nil
			},
		}

		decorator := NewUserRepoCacheDecorator(inner, mockRedis, time.Minute, newTestLogger())
		got, err := decorator.FindByTelegramID(ctx, nil, 98765)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got.ID != user.ID || got.Username != "ada" {
			t.Errorf("unexpected user %+v", got)
		}
	})

	t.Run("FindByTelegramID should fall back to DB when redis fails", func(t *testing.T) {
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) { return "", errors.New("connection refused") },
		}
		inner := &mockInnerUserRepo{
			FindByTelegramIDFunc: func(ctx context.Context, tx repository.Tx, tgID int64) (*model.User, error) {
				return user, nil
			},
		}
		decorator := NewUserRepoCacheDecorator(inner, mockRedis, time.Minute, newTestLogger())
		if _, err := decorator.FindByTelegramID(ctx, nil, 98765); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("FindByTelegramID should not cache a missing user", func(t *testing.T) {
		mockRedis := &mockRedisClient{
			SetFunc: func(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
				t.Fatal("nothing should be cached")
				return nil
			},
		}
		decorator := NewUserRepoCacheDecorator(&mockInnerUserRepo{}, mockRedis, time.Minute, newTestLogger())
		if _, err := decorator.FindByTelegramID(ctx, nil, 1); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("FindByTelegramID should bypass cache inside a transaction", func(t *testing.T) {
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) {
				t.Fatal("cache must not be read inside a transaction")
				return "", nil
			},
		}
		inner := &mockInnerUserRepo{
			FindByTelegramIDFunc: func(ctx context.Context, tx repository.Tx, tgID int64) (*model.User, error) {
				return user, nil
			},
		}
		decorator := NewUserRepoCacheDecorator(inner, mockRedis, time.Minute, newTestLogger())
		if _, err := decorator.FindByTelegramID(ctx, struct{}{}, 98765); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("Save should invalidate the telegram id key", func(t *testing.T) {
		var deleted []string
		mockRedis := &mockRedisClient{
			DelFunc: func(ctx context.Context, keys ...string) error {
				deleted = append(deleted, keys...)
				return nil
			},
		}
		saved := false
		inner := &mockInnerUserRepo{
			SaveFunc: func(ctx context.Context, tx repository.Tx, u *model.User) error {
				saved = true
				return nil
			},
		}
		decorator := NewUserRepoCacheDecorator(inner, mockRedis, time.Minute, newTestLogger())
		if err := decorator.Save(ctx, nil, user); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !saved {
			t.Error("inner Save should be called")
		}
		if len(deleted) != 1 || deleted[0] != "user:tgid:98765" {
			t.Errorf("unexpected invalidated keys %v", deleted)
		}
	})
}
