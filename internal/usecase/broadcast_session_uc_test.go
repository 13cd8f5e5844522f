//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/kasboi/payecards-bot/internal/domain"
	"github.com/kasboi/payecards-bot/internal/domain/model"
	"github.com/kasboi/payecards-bot/internal/usecase"
)

const (
	adminA   = int64(1001)
	adminB   = int64(1002)
	regularU = int64(2001)
)

func newTracker() (usecase.BroadcastSessionUseCase, *MockSessionStore, *MockEngine) {
	store := NewMockSessionStore()
	engine := &MockEngine{}
	dir := &MockAdminDirectory{Admins: map[int64]bool{adminA: true, adminB: true}, Count: 12}
	return usecase.NewBroadcastSessionUseCase(store, dir, engine, newTestLogger()), store, engine
}

func TestBroadcastSessionUseCase(t *testing.T) {
	ctx := context.Background()

	t.Run("should walk the happy path from begin to sent", func(t *testing.T) {
		uc, store, engine := newTracker()
		engine.BroadcastFunc = func(ctx context.Context, req model.BroadcastRequest) (*model.BroadcastResult, error) {
			return &model.BroadcastResult{TotalRecipients: 12, Succeeded: 12}, nil
		}

		count, err := uc.Begin(ctx, adminA)
		if err != nil || count != 12 {
			t.Fatalf("Begin = %d, %v", count, err)
		}

		sess, handled, err := uc.Compose(ctx, adminA, "/notacommand hello")
		if err != nil || !handled {
			t.Fatalf("Compose = %v, %v", handled, err)
		}
		if sess.State != model.SessionConfirming || sess.Draft != "/notacommand hello" {
			t.Errorf("unexpected session %+v", sess)
		}

		res, err := uc.Confirm(ctx, adminA)
		if err != nil {
			t.Fatalf("Confirm: %v", err)
		}
		if res.Succeeded != 12 {
			t.Errorf("unexpected result %+v", res)
		}
		if engine.CallCount() != 1 || engine.Calls[0].Text != "/notacommand hello" || engine.Calls[0].InitiatorID != adminA {
			t.Errorf("unexpected engine calls %+v", engine.Calls)
		}
		if store.Len() != 0 {
			t.Error("session must be removed after confirmation")
		}
	})

	t.Run("should replace the session on repeated begin", func(t *testing.T) {
		uc, store, _ := newTracker()
		_, _ = uc.Begin(ctx, adminA)
		_, _, _ = uc.Compose(ctx, adminA, "first draft")
		_, _ = uc.Begin(ctx, adminA)

		if store.Len() != 1 {
			t.Fatalf("expected one session, got %d", store.Len())
		}
		sess, _ := uc.Active(ctx, adminA)
		if sess.State != model.SessionComposing || sess.Draft != "" {
			t.Errorf("expected a fresh composing session, got %+v", sess)
		}
	})

	t.Run("should report expired when confirming without a session", func(t *testing.T) {
		uc, _, engine := newTracker()
		_, err := uc.Confirm(ctx, adminA)
		if !errors.Is(err, domain.ErrSessionExpired) {
			t.Fatalf("expected ErrSessionExpired, got %v", err)
		}
		if engine.CallCount() != 0 {
			t.Error("engine must not run")
		}
	})

	t.Run("should keep a composing session when a stale confirm arrives", func(t *testing.T) {
		uc, store, engine := newTracker()
		_, _ = uc.Begin(ctx, adminA)

		_, err := uc.Confirm(ctx, adminA)
		if !errors.Is(err, domain.ErrSessionExpired) {
			t.Fatalf("expected ErrSessionExpired, got %v", err)
		}
		if engine.CallCount() != 0 {
			t.Error("engine must not run")
		}
		if store.Len() != 1 {
			t.Fatal("composing session must survive the stale confirm")
		}
		sess, _, err := uc.Compose(ctx, adminA, "fresh draft")
		if err != nil || sess.State != model.SessionConfirming {
			t.Errorf("expected the draft to be accepted, got %+v, %v", sess, err)
		}
	})

	t.Run("should treat confirming without a draft as expired", func(t *testing.T) {
		uc, store, engine := newTracker()
		_ = store.Set(ctx, &model.BroadcastSession{AdminID: adminA, State: model.SessionConfirming})

		_, err := uc.Confirm(ctx, adminA)
		if !errors.Is(err, domain.ErrSessionExpired) {
			t.Fatalf("expected ErrSessionExpired, got %v", err)
		}
		if engine.CallCount() != 0 || store.Len() != 0 {
			t.Error("broken session must be dropped without broadcasting")
		}
	})

	t.Run("should reopen a confirming session for a new draft", func(t *testing.T) {
		uc, _, engine := newTracker()
		_, _ = uc.Begin(ctx, adminA)
		_, _, _ = uc.Compose(ctx, adminA, "use promo_code today")

		reopened, err := uc.Reopen(ctx, adminA)
		if err != nil || !reopened {
			t.Fatalf("Reopen = %v, %v", reopened, err)
		}
		sess, _ := uc.Active(ctx, adminA)
		if sess.State != model.SessionComposing || sess.Draft != "" {
			t.Errorf("expected composing without draft, got %+v", sess)
		}
		if _, err := uc.Confirm(ctx, adminA); !errors.Is(err, domain.ErrSessionExpired) {
			t.Errorf("reopened session must not be confirmable, got %v", err)
		}
		if engine.CallCount() != 0 {
			t.Error("engine must not run")
		}
	})

	t.Run("should not reopen without a confirming session", func(t *testing.T) {
		uc, _, _ := newTracker()
		if reopened, err := uc.Reopen(ctx, adminA); err != nil || reopened {
			t.Errorf("Reopen = %v, %v", reopened, err)
		}
		_, _ = uc.Begin(ctx, adminA)
		if reopened, err := uc.Reopen(ctx, adminA); err != nil || reopened {
			t.Errorf("composing session must not be reopened, got %v, %v", reopened, err)
		}
	})

	t.Run("should run the engine once for concurrent confirmations", func(t *testing.T) {
		uc, _, engine := newTracker()
		_, _ = uc.Begin(ctx, adminA)
		_, _, _ = uc.Compose(ctx, adminA, "once")

		var wg sync.WaitGroup
		var mu sync.Mutex
		expired := 0
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := uc.Confirm(ctx, adminA); errors.Is(err, domain.ErrSessionExpired) {
					mu.Lock()
					expired++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		if engine.CallCount() != 1 {
			t.Errorf("expected exactly one broadcast, got %d", engine.CallCount())
		}
		if expired != 7 {
			t.Errorf("expected 7 expired confirmations, got %d", expired)
		}
	})

	t.Run("should remove the session even when the engine fails", func(t *testing.T) {
		uc, store, engine := newTracker()
		engine.BroadcastFunc = func(ctx context.Context, req model.BroadcastRequest) (*model.BroadcastResult, error) {
			return nil, errors.New("recipients unavailable")
		}
		_, _ = uc.Begin(ctx, adminA)
		_, _, _ = uc.Compose(ctx, adminA, "hi")

		if _, err := uc.Confirm(ctx, adminA); err == nil {
			t.Fatal("expected engine error")
		}
		if store.Len() != 0 {
			t.Error("session must be gone after confirmation")
		}
	})

	t.Run("should report nothing to cancel", func(t *testing.T) {
		uc, _, _ := newTracker()
		cancelled, err := uc.Cancel(ctx, adminA)
		if err != nil || cancelled {
			t.Errorf("expected (false, nil), got (%v, %v)", cancelled, err)
		}
	})

	t.Run("should cancel from any state", func(t *testing.T) {
		uc, store, engine := newTracker()
		_, _ = uc.Begin(ctx, adminA)
		if ok, _ := uc.Cancel(ctx, adminA); !ok {
			t.Error("expected cancel while composing")
		}

		_, _ = uc.Begin(ctx, adminA)
		_, _, _ = uc.Compose(ctx, adminA, "draft")
		if ok, _ := uc.Cancel(ctx, adminA); !ok {
			t.Error("expected cancel while confirming")
		}
		if store.Len() != 0 || engine.CallCount() != 0 {
			t.Error("cancel must drop the session without broadcasting")
		}
		if _, err := uc.Confirm(ctx, adminA); !errors.Is(err, domain.ErrSessionExpired) {
			t.Errorf("confirm after cancel should be expired, got %v", err)
		}
	})

	t.Run("should keep composing on empty text", func(t *testing.T) {
		uc, _, _ := newTracker()
		_, _ = uc.Begin(ctx, adminA)

		_, handled, err := uc.Compose(ctx, adminA, "   \n ")
		if !handled || !errors.Is(err, domain.ErrEmptyMessage) {
			t.Fatalf("expected handled ErrEmptyMessage, got %v, %v", handled, err)
		}
		sess, _ := uc.Active(ctx, adminA)
		if sess.State != model.SessionComposing {
			t.Errorf("expected composing, got %s", sess.State)
		}
	})

	t.Run("should not handle text without a composing session", func(t *testing.T) {
		uc, _, _ := newTracker()
		_, handled, err := uc.Compose(ctx, adminA, "hello")
		if handled || err != nil {
			t.Errorf("expected unhandled, got %v, %v", handled, err)
		}

		_, _ = uc.Begin(ctx, adminA)
		_, _, _ = uc.Compose(ctx, adminA, "draft")
		_, handled, _ = uc.Compose(ctx, adminA, "second message")
		if handled {
			t.Error("a confirming session must not absorb more text")
		}
	})

	t.Run("should refuse non admins", func(t *testing.T) {
		uc, store, _ := newTracker()
		if _, err := uc.Begin(ctx, regularU); !errors.Is(err, domain.ErrUnauthorized) {
			t.Errorf("Begin: expected ErrUnauthorized, got %v", err)
		}
		if _, err := uc.Confirm(ctx, regularU); !errors.Is(err, domain.ErrUnauthorized) {
			t.Errorf("Confirm: expected ErrUnauthorized, got %v", err)
		}
		if _, err := uc.Cancel(ctx, regularU); !errors.Is(err, domain.ErrUnauthorized) {
			t.Errorf("Cancel: expected ErrUnauthorized, got %v", err)
		}
		if store.Len() != 0 {
			t.Error("no session may be created")
		}
	})

	t.Run("should isolate sessions per admin", func(t *testing.T) {
		uc, _, engine := newTracker()
		_, _ = uc.Begin(ctx, adminA)
		_, _ = uc.Begin(ctx, adminB)
		_, _, _ = uc.Compose(ctx, adminA, "from A")

		if ok, _ := uc.Cancel(ctx, adminB); !ok {
			t.Fatal("expected B's session to be cancelled")
		}
		if _, err := uc.Confirm(ctx, adminA); err != nil {
			t.Fatalf("A's session must survive B's cancel: %v", err)
		}
		if engine.CallCount() != 1 || engine.Calls[0].InitiatorID != adminA {
			t.Errorf("unexpected calls %+v", engine.Calls)
		}
	})

	t.Run("should propagate store errors", func(t *testing.T) {
		uc, store, _ := newTracker()
		store.GetErr = errors.New("redis down")
		if _, err := uc.Confirm(ctx, adminA); err == nil || errors.Is(err, domain.ErrSessionExpired) {
			t.Errorf("expected a store error, got %v", err)
		}
	})
}
