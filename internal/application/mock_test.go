//go:build !integration

package application_test

import (
	"context"
	"io"

	"github.com/rs/zerolog"

	"github.com/kasboi/payecards-bot/internal/domain"
	"github.com/kasboi/payecards-bot/internal/domain/model"
	"github.com/kasboi/payecards-bot/internal/domain/ports/repository"
	"github.com/kasboi/payecards-bot/internal/usecase"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

type mockUserUC struct {
	admins map[int64]bool
	users  map[int64]*model.User

	StartRegistrationFunc func(ctx context.Context, tgID int64) (repository.RegistrationStep, error)
	HandleInputFunc       func(ctx context.Context, tgID int64, profile model.Profile, text string) (*usecase.RegistrationProgress, bool, error)
	CancelFunc            func(ctx context.Context, tgID int64) (bool, error)
	inputCalls            int
}

var _ usecase.UserUseCase = (*mockUserUC)(nil)

func (m *mockUserUC) GetByTelegramID(ctx context.Context, tgID int64) (*model.User, error) {
	if u, ok := m.users[tgID]; ok {
		return u, nil
	}
	return nil, domain.ErrNotFound
}
func (m *mockUserUC) Count(ctx context.Context) (int, error) { return len(m.users), nil }
func (m *mockUserUC) IsAdmin(ctx context.Context, tgID int64) (bool, error) {
	return m.admins[tgID], nil
}
func (m *mockUserUC) Recipients(ctx context.Context) ([]model.Recipient, error) { return nil, nil }
func (m *mockUserUC) CountRecipients(ctx context.Context) (int, error)          { return len(m.users), nil }
func (m *mockUserUC) StartRegistration(ctx context.Context, tgID int64) (repository.RegistrationStep, error) {
	if m.StartRegistrationFunc != nil {
		return m.StartRegistrationFunc(ctx, tgID)
	}
	return repository.StateAwaitingUsername, nil
}
func (m *mockUserUC) HandleRegistrationInput(ctx context.Context, tgID int64, profile model.Profile, text string) (*usecase.RegistrationProgress, bool, error) {
	m.inputCalls++
	if m.HandleInputFunc != nil {
		return m.HandleInputFunc(ctx, tgID, profile, text)
	}
	return nil, false, nil
}
func (m *mockUserUC) CancelRegistration(ctx context.Context, tgID int64) (bool, error) {
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, tgID)
	}
	return false, nil
}

type mockCryptoUC struct {
	PriceFunc    func(ctx context.Context, query string) (*model.Quote, error)
	OverviewFunc func(ctx context.Context) ([]*model.Quote, error)
}

var _ usecase.CryptoUseCase = (*mockCryptoUC)(nil)

func (m *mockCryptoUC) Coins() []model.Coin { return model.SupportedCoins }
func (m *mockCryptoUC) Price(ctx context.Context, query string) (*model.Quote, error) {
	return m.PriceFunc(ctx, query)
}
func (m *mockCryptoUC) Overview(ctx context.Context) ([]*model.Quote, error) {
	return m.OverviewFunc(ctx)
}

type mockStatsUC struct {
	summary *usecase.StatsSummary
	err     error
}

func (m *mockStatsUC) Summary(ctx context.Context) (*usecase.StatsSummary, error) {
	return m.summary, m.err
}

type mockBroadcastUC struct {
	records []*model.BroadcastRecord
}

var _ usecase.BroadcastUseCase = (*mockBroadcastUC)(nil)

func (m *mockBroadcastUC) Broadcast(ctx context.Context, req model.BroadcastRequest) (*model.BroadcastResult, error) {
	return &model.BroadcastResult{}, nil
}
func (m *mockBroadcastUC) Execute(ctx context.Context, req model.BroadcastRequest, recipients []model.Recipient) (*model.BroadcastResult, error) {
	return &model.BroadcastResult{}, nil
}
func (m *mockBroadcastUC) History(ctx context.Context, limit int) ([]*model.BroadcastRecord, error) {
	if limit < len(m.records) {
		return m.records[:limit], nil
	}
	return m.records, nil
}
func (m *mockBroadcastUC) Last(ctx context.Context) (*model.BroadcastRecord, error) {
	if len(m.records) == 0 {
		return nil, nil
	}
	return m.records[0], nil
}

type mockSessionUC struct {
	ComposeFunc func(ctx context.Context, adminID int64, text string) (*model.BroadcastSession, bool, error)
	ConfirmFunc func(ctx context.Context, adminID int64) (*model.BroadcastResult, error)
	CancelFunc  func(ctx context.Context, adminID int64) (bool, error)
	ReopenFunc  func(ctx context.Context, adminID int64) (bool, error)
	count       int
}

var _ usecase.BroadcastSessionUseCase = (*mockSessionUC)(nil)

func (m *mockSessionUC) Begin(ctx context.Context, adminID int64) (int, error) { return m.count, nil }
func (m *mockSessionUC) Compose(ctx context.Context, adminID int64, text string) (*model.BroadcastSession, bool, error) {
	if m.ComposeFunc != nil {
		return m.ComposeFunc(ctx, adminID, text)
	}
	return nil, false, nil
}
func (m *mockSessionUC) Confirm(ctx context.Context, adminID int64) (*model.BroadcastResult, error) {
	if m.ConfirmFunc != nil {
		return m.ConfirmFunc(ctx, adminID)
	}
	return nil, domain.ErrSessionExpired
}
func (m *mockSessionUC) Cancel(ctx context.Context, adminID int64) (bool, error) {
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, adminID)
	}
	return false, nil
}
func (m *mockSessionUC) Reopen(ctx context.Context, adminID int64) (bool, error) {
	if m.ReopenFunc != nil {
		return m.ReopenFunc(ctx, adminID)
	}
	return false, nil
}
func (m *mockSessionUC) Active(ctx context.Context, adminID int64) (*model.BroadcastSession, error) {
	return nil, nil
}
