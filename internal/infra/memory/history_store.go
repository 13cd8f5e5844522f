package memory

import (
	"context"
	"sync"

	"github.com/kasboi/payecards-bot/internal/domain/model"
	"github.com/kasboi/payecards-bot/internal/domain/ports/repository"
)

var _ repository.BroadcastHistoryRepository = (*HistoryStore)(nil)

// HistoryStore is an in-process broadcast log for dev runs and tests.
// Records are kept in append order and are never modified.
type HistoryStore struct {
	mu      sync.RWMutex
	records []model.BroadcastRecord
}

func NewHistoryStore() *HistoryStore {
	return &HistoryStore{}
}

func (h *HistoryStore) Append(_ context.Context, _ repository.Tx, rec *model.BroadcastRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, *rec)
	return nil
}

func (h *HistoryStore) Recent(_ context.Context, _ repository.Tx, limit int) ([]*model.BroadcastRecord, error) {
	if limit <= 0 {
		limit = repository.DefaultHistoryLimit
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]*model.BroadcastRecord, 0, min(limit, len(h.records)))
	for i := len(h.records) - 1; i >= 0 && len(out) < limit; i-- {
		rec := h.records[i]
		out = append(out, &rec)
	}
	return out, nil
}

func (h *HistoryStore) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.records)
}
