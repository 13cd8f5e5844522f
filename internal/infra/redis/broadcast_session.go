package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kasboi/payecards-bot/internal/domain/model"
	"github.com/kasboi/payecards-bot/internal/domain/ports/repository"
)

var _ repository.BroadcastSessionStore = (*BroadcastSessionStore)(nil)

// BroadcastSessionStore keeps admin broadcast sessions in Redis so that they
// survive restarts and are shared between bot instances.
type BroadcastSessionStore struct {
	client RedisClient
	ttl    time.Duration
}

func NewBroadcastSessionStore(client RedisClient, ttl time.Duration) *BroadcastSessionStore {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &BroadcastSessionStore{client: client, ttl: ttl}
}

func (s *BroadcastSessionStore) key(adminID int64) string {
	return fmt.Sprintf("broadcast_session:%d", adminID)
}

func (s *BroadcastSessionStore) Get(ctx context.Context, adminID int64) (*model.BroadcastSession, error) {
	data, err := s.client.Get(ctx, s.key(adminID))
	return decodeSession(data, err)
}

func (s *BroadcastSessionStore) Set(ctx context.Context, sess *model.BroadcastSession) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(sess.AdminID), data, s.ttl)
}

func (s *BroadcastSessionStore) Delete(ctx context.Context, adminID int64) error {
	return s.client.Del(ctx, s.key(adminID))
}

func (s *BroadcastSessionStore) Take(ctx context.Context, adminID int64) (*model.BroadcastSession, error) {
	data, err := s.client.GetDel(ctx, s.key(adminID))
	return decodeSession(data, err)
}

func decodeSession(data string, err error) (*model.BroadcastSession, error) {
	if IsNil(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sess model.BroadcastSession
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("decode broadcast session: %w", err)
	}
	return &sess, nil
}
