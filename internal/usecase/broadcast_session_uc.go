package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/kasboi/payecards-bot/internal/domain"
	"github.com/kasboi/payecards-bot/internal/domain/model"
	"github.com/kasboi/payecards-bot/internal/domain/ports/repository"
	"github.com/kasboi/payecards-bot/internal/infra/logging"
	"github.com/kasboi/payecards-bot/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ BroadcastSessionUseCase = (*broadcastSessionUC)(nil)

// BroadcastSessionUseCase drives the admin broadcast dialogue:
// idle -> composing -> confirming -> sent | cancelled.
type BroadcastSessionUseCase interface {
	// Begin starts (or restarts) a session and returns the current recipient count.
	Begin(ctx context.Context, adminID int64) (int, error)
	// Compose stores text as the draft of a composing session. handled is
	// false when the admin has no composing session.
	Compose(ctx context.Context, adminID int64, text string) (*model.BroadcastSession, bool, error)
	// Confirm consumes the session and runs the broadcast once.
	// It returns domain.ErrSessionExpired when there is nothing to confirm.
	Confirm(ctx context.Context, adminID int64) (*model.BroadcastResult, error)
	// Reopen sends a confirming session back to composing without its draft,
	// for drafts the transport refused to render. reopened is false when the
	// admin has no confirming session.
	Reopen(ctx context.Context, adminID int64) (bool, error)
	// Cancel drops the session; cancelled is false when there was none.
	Cancel(ctx context.Context, adminID int64) (bool, error)
	Active(ctx context.Context, adminID int64) (*model.BroadcastSession, error)
}

// AdminDirectory answers who may broadcast and to how many users.
type AdminDirectory interface {
	IsAdmin(ctx context.Context, tgID int64) (bool, error)
	CountRecipients(ctx context.Context) (int, error)
}

type broadcastSessionUC struct {
	store  repository.BroadcastSessionStore
	admins AdminDirectory
	engine BroadcastUseCase
	locks  *keyedMutex
	log    *zerolog.Logger
}

func NewBroadcastSessionUseCase(
	store repository.BroadcastSessionStore,
	admins AdminDirectory,
	engine BroadcastUseCase,
	logger *zerolog.Logger,
) *broadcastSessionUC {
	return &broadcastSessionUC{
		store:  store,
		admins: admins,
		engine: engine,
		locks:  newKeyedMutex(),
		log:    logger,
	}
}

func (u *broadcastSessionUC) Begin(ctx context.Context, adminID int64) (int, error) {
	defer logging.TraceDuration(u.log, "BroadcastSessionUC.Begin")()

	if err := u.guard(ctx, adminID); err != nil {
		return 0, err
	}
	count, err := u.admins.CountRecipients(ctx)
	if err != nil {
		return 0, fmt.Errorf("count recipients: %w", err)
	}

	unlock := u.locks.Lock(adminID)
	defer unlock()
	if err := u.store.Set(ctx, model.NewBroadcastSession(adminID, count)); err != nil {
		return 0, fmt.Errorf("save broadcast session: %w", err)
	}
	metrics.IncBroadcastSession("begin")
	return count, nil
}

func (u *broadcastSessionUC) Compose(ctx context.Context, adminID int64, text string) (*model.BroadcastSession, bool, error) {
	defer logging.TraceDuration(u.log, "BroadcastSessionUC.Compose")()

	unlock := u.locks.Lock(adminID)
	defer unlock()

	sess, err := u.store.Get(ctx, adminID)
	if err != nil {
		return nil, false, err
	}
	if sess == nil || sess.State != model.SessionComposing {
		return nil, false, nil
	}
	if err := u.guard(ctx, adminID); err != nil {
		return nil, true, err
	}
	if strings.TrimSpace(text) == "" {
		return sess, true, domain.ErrEmptyMessage
	}

	sess.SetDraft(text)
	if err := u.store.Set(ctx, sess); err != nil {
		return nil, true, fmt.Errorf("save broadcast session: %w", err)
	}
	metrics.IncBroadcastSession("draft")
	return sess, true, nil
}

func (u *broadcastSessionUC) Confirm(ctx context.Context, adminID int64) (*model.BroadcastResult, error) {
	defer logging.TraceDuration(u.log, "BroadcastSessionUC.Confirm")()

	if err := u.guard(ctx, adminID); err != nil {
		return nil, err
	}

	sess, err := u.take(ctx, adminID)
	if err != nil {
		return nil, err
	}

	req, err := model.NewBroadcastRequest(adminID, sess.Draft)
	if err != nil {
		metrics.IncBroadcastSession("expired")
		return nil, domain.ErrSessionExpired
	}
	metrics.IncBroadcastSession("confirm")
	return u.engine.Broadcast(ctx, req)
}

// take consumes a confirmable session. A session that is not confirming is
// left in place, so a stale button cannot wipe a fresh draft. The store
// removes the session atomically, so concurrent confirmations (even from
// other instances) see it at most once.
func (u *broadcastSessionUC) take(ctx context.Context, adminID int64) (*model.BroadcastSession, error) {
	unlock := u.locks.Lock(adminID)
	defer unlock()

	sess, err := u.store.Get(ctx, adminID)
	if err != nil {
		return nil, fmt.Errorf("load broadcast session: %w", err)
	}
	if sess == nil || sess.State != model.SessionConfirming {
		metrics.IncBroadcastSession("expired")
		return nil, domain.ErrSessionExpired
	}

	sess, err = u.store.Take(ctx, adminID)
	if err != nil {
		return nil, fmt.Errorf("take broadcast session: %w", err)
	}
	if !sess.ReadyToSend() {
		metrics.IncBroadcastSession("expired")
		return nil, domain.ErrSessionExpired
	}
	return sess, nil
}

func (u *broadcastSessionUC) Reopen(ctx context.Context, adminID int64) (bool, error) {
	defer logging.TraceDuration(u.log, "BroadcastSessionUC.Reopen")()

	unlock := u.locks.Lock(adminID)
	defer unlock()

	sess, err := u.store.Get(ctx, adminID)
	if err != nil {
		return false, err
	}
	if sess == nil || sess.State != model.SessionConfirming {
		return false, nil
	}
	sess.Reopen()
	if err := u.store.Set(ctx, sess); err != nil {
		return false, fmt.Errorf("save broadcast session: %w", err)
	}
	metrics.IncBroadcastSession("reopen")
	return true, nil
}

func (u *broadcastSessionUC) Cancel(ctx context.Context, adminID int64) (bool, error) {
	defer logging.TraceDuration(u.log, "BroadcastSessionUC.Cancel")()

	if err := u.guard(ctx, adminID); err != nil {
		return false, err
	}

	unlock := u.locks.Lock(adminID)
	defer unlock()

	sess, err := u.store.Get(ctx, adminID)
	if err != nil {
		return false, err
	}
	if sess == nil {
		return false, nil
	}
	if err := u.store.Delete(ctx, adminID); err != nil {
		return false, fmt.Errorf("delete broadcast session: %w", err)
	}
	metrics.IncBroadcastSession("cancel")
	return true, nil
}

func (u *broadcastSessionUC) Active(ctx context.Context, adminID int64) (*model.BroadcastSession, error) {
	unlock := u.locks.Lock(adminID)
	defer unlock()
	return u.store.Get(ctx, adminID)
}

func (u *broadcastSessionUC) guard(ctx context.Context, adminID int64) error {
	ok, err := u.admins.IsAdmin(ctx, adminID)
	if err != nil {
		return fmt.Errorf("check admin: %w", err)
	}
	if !ok {
		return domain.ErrUnauthorized
	}
	return nil
}

// keyedMutex hands out one mutex per admin id; entries are dropped when the
// last holder releases them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[int64]*keyLock)}
}

func (k *keyedMutex) Lock(key int64) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
