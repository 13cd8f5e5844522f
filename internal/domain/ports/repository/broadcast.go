package repository

import (
	"context"

	"github.com/kasboi/payecards-bot/internal/domain/model"
)

// DefaultHistoryLimit is used when Recent is called with a non-positive limit.
const DefaultHistoryLimit = 10

// BroadcastHistoryRepository is an append-only log of completed broadcasts.
type BroadcastHistoryRepository interface {
	Append(ctx context.Context, tx Tx, rec *model.BroadcastRecord) error
	// Recent returns at most limit records, most recent first. An empty store
	// yields an empty slice and no error.
	Recent(ctx context.Context, tx Tx, limit int) ([]*model.BroadcastRecord, error)
}

// BroadcastSessionStore keeps one ephemeral broadcast session per admin.
// Get returns (nil, nil) when no session exists.
type BroadcastSessionStore interface {
	Get(ctx context.Context, adminID int64) (*model.BroadcastSession, error)
	Set(ctx context.Context, s *model.BroadcastSession) error
	Delete(ctx context.Context, adminID int64) error
	// Take removes and returns the session in one step, so that only one
	// caller can obtain it. It returns (nil, nil) when no session exists.
	Take(ctx context.Context, adminID int64) (*model.BroadcastSession, error)
}
