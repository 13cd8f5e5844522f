//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sort"
	"sync"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"github.com/kasboi/payecards-bot/internal/domain"
	"github.com/kasboi/payecards-bot/internal/domain/model"
	"github.com/kasboi/payecards-bot/internal/domain/ports/adapter"
	"github.com/kasboi/payecards-bot/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

// =============================
// Adapters
// =============================

// ---- Mock TelegramBotAdapter ----

type MockTelegramBot struct {
	mu   sync.Mutex
	Sent []adapter.SendMessageParams // every attempt, including failed ones

	SendMessageFunc     func(ctx context.Context, params adapter.SendMessageParams) error
	SetMenuCommandsFunc func(ctx context.Context, chatID int64, isAdmin bool) error
}

var _ adapter.TelegramBotAdapter = (*MockTelegramBot)(nil)

func (m *MockTelegramBot) SendMessage(ctx context.Context, params adapter.SendMessageParams) error {
	m.mu.Lock()
	m.Sent = append(m.Sent, params)
	m.mu.Unlock()
	if m.SendMessageFunc != nil {
		return m.SendMessageFunc(ctx, params)
	}
	return nil
}

func (m *MockTelegramBot) SetMenuCommands(ctx context.Context, chatID int64, isAdmin bool) error {
	if m.SetMenuCommandsFunc != nil {
		return m.SetMenuCommandsFunc(ctx, chatID, isAdmin)
	}
	return nil
}

func (m *MockTelegramBot) Attempts() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int64, len(m.Sent))
	for i, p := range m.Sent {
		ids[i] = p.ChatID
	}
	return ids
}

// ---- Mock PriceProvider ----

type MockPriceProvider struct {
	QuoteFunc  func(ctx context.Context, coin model.Coin) (*model.Quote, error)
	QuotesFunc func(ctx context.Context, coins []model.Coin) ([]*model.Quote, error)
}

var _ adapter.PriceProvider = (*MockPriceProvider)(nil)

func (m *MockPriceProvider) Quote(ctx context.Context, coin model.Coin) (*model.Quote, error) {
	if m.QuoteFunc != nil {
		return m.QuoteFunc(ctx, coin)
	}
	return &model.Quote{Coin: coin, PriceUSD: 1}, nil
}

func (m *MockPriceProvider) Quotes(ctx context.Context, coins []model.Coin) ([]*model.Quote, error) {
	if m.QuotesFunc != nil {
		return m.QuotesFunc(ctx, coins)
	}
	out := make([]*model.Quote, 0, len(coins))
	for _, c := range coins {
		out = append(out, &model.Quote{Coin: c, PriceUSD: 1})
	}
	return out, nil
}

// =============================
// Repositories
// =============================

// ---- Mock UserRepository ----

type MockUserRepo struct {
	mu     sync.Mutex
	byTgID map[int64]*model.User

	SaveFunc             func(ctx context.Context, tx repository.Tx, u *model.User) error
	FindByTelegramIDFunc func(ctx context.Context, tx repository.Tx, tgID int64) (*model.User, error)
	ListFunc             func(ctx context.Context, tx repository.Tx) ([]*model.User, error)
	CountUsersFunc       func(ctx context.Context, tx repository.Tx) (int, error)
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

func NewMockUserRepo(users ...*model.User) *MockUserRepo {
	m := &MockUserRepo{byTgID: map[int64]*model.User{}}
	for _, u := range users {
		m.byTgID[u.TelegramID] = u
	}
	return m
}

func (m *MockUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, u)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.byTgID[u.TelegramID] = &cp
	return nil
}

func (m *MockUserRepo) FindByTelegramID(ctx context.Context, tx repository.Tx, tgID int64) (*model.User, error) {
	if m.FindByTelegramIDFunc != nil {
		return m.FindByTelegramIDFunc(ctx, tx, tgID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byTgID[tgID]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *MockUserRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byTgID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockUserRepo) List(ctx context.Context, tx repository.Tx) ([]*model.User, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, tx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.User, 0, len(m.byTgID))
	for _, u := range m.byTgID {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TelegramID < out[j].TelegramID })
	return out, nil
}

func (m *MockUserRepo) CountUsers(ctx context.Context, tx repository.Tx) (int, error) {
	if m.CountUsersFunc != nil {
		return m.CountUsersFunc(ctx, tx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byTgID), nil
}

// ---- Mock BroadcastHistoryRepository ----

type MockHistoryRepo struct {
	mu      sync.Mutex
	Records []*model.BroadcastRecord // append order

	AppendFunc func(ctx context.Context, tx repository.Tx, rec *model.BroadcastRecord) error
	RecentFunc func(ctx context.Context, tx repository.Tx, limit int) ([]*model.BroadcastRecord, error)
}

var _ repository.BroadcastHistoryRepository = (*MockHistoryRepo)(nil)

func (m *MockHistoryRepo) Append(ctx context.Context, tx repository.Tx, rec *model.BroadcastRecord) error {
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, tx, rec)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Records = append(m.Records, rec)
	return nil
}

func (m *MockHistoryRepo) Recent(ctx context.Context, tx repository.Tx, limit int) ([]*model.BroadcastRecord, error) {
	if m.RecentFunc != nil {
		return m.RecentFunc(ctx, tx, limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.BroadcastRecord{}
	for i := len(m.Records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.Records[i])
	}
	return out, nil
}

// ---- Mock BroadcastSessionStore ----

type MockSessionStore struct {
	mu       sync.Mutex
	sessions map[int64]model.BroadcastSession

	GetErr    error
	DeleteErr error
}

var _ repository.BroadcastSessionStore = (*MockSessionStore)(nil)

func NewMockSessionStore() *MockSessionStore {
	return &MockSessionStore{sessions: map[int64]model.BroadcastSession{}}
}

func (m *MockSessionStore) Get(ctx context.Context, adminID int64) (*model.BroadcastSession, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[adminID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *MockSessionStore) Set(ctx context.Context, s *model.BroadcastSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.AdminID] = *s
	return nil
}

func (m *MockSessionStore) Delete(ctx context.Context, adminID int64) error {
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, adminID)
	return nil
}

func (m *MockSessionStore) Take(ctx context.Context, adminID int64) (*model.BroadcastSession, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[adminID]
	if !ok {
		return nil, nil
	}
	delete(m.sessions, adminID)
	return &s, nil
}

func (m *MockSessionStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// ---- Mock RegistrationStateRepository ----

type MockRegistrationStateRepo struct {
	mu     sync.Mutex
	states map[int64]repository.RegistrationState
}

var _ repository.RegistrationStateRepository = (*MockRegistrationStateRepo)(nil)

func NewMockRegistrationStateRepo() *MockRegistrationStateRepo {
	return &MockRegistrationStateRepo{states: map[int64]repository.RegistrationState{}}
}

func (m *MockRegistrationStateRepo) SetState(ctx context.Context, tgID int64, state *repository.RegistrationState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	data := map[string]string{}
	for k, v := range state.Data {
		data[k] = v
	}
	m.states[tgID] = repository.RegistrationState{Step: state.Step, Data: data}
	return nil
}

func (m *MockRegistrationStateRepo) GetState(ctx context.Context, tgID int64) (*repository.RegistrationState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[tgID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *MockRegistrationStateRepo) ClearState(ctx context.Context, tgID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, tgID)
	return nil
}

// ---- Mock TransactionManager ----

type mockTxManager struct{}

func (m *mockTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, nil)
}

// =============================
// Collaborators
// =============================

type MockRecipientSource struct {
	RecipientsFunc func(ctx context.Context) ([]model.Recipient, error)
}

func (m *MockRecipientSource) Recipients(ctx context.Context) ([]model.Recipient, error) {
	return m.RecipientsFunc(ctx)
}

type MockAdminDirectory struct {
	Admins map[int64]bool
	Count  int
}

func (m *MockAdminDirectory) IsAdmin(ctx context.Context, tgID int64) (bool, error) {
	return m.Admins[tgID], nil
}

func (m *MockAdminDirectory) CountRecipients(ctx context.Context) (int, error) {
	return m.Count, nil
}

// MockEngine records broadcast invocations for the session tracker tests.
type MockEngine struct {
	mu    sync.Mutex
	Calls []model.BroadcastRequest

	BroadcastFunc func(ctx context.Context, req model.BroadcastRequest) (*model.BroadcastResult, error)
}

func (m *MockEngine) Broadcast(ctx context.Context, req model.BroadcastRequest) (*model.BroadcastResult, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	m.mu.Unlock()
	if m.BroadcastFunc != nil {
		return m.BroadcastFunc(ctx, req)
	}
	return &model.BroadcastResult{}, nil
}

func (m *MockEngine) Execute(ctx context.Context, req model.BroadcastRequest, recipients []model.Recipient) (*model.BroadcastResult, error) {
	return m.Broadcast(ctx, req)
}

func (m *MockEngine) History(ctx context.Context, limit int) ([]*model.BroadcastRecord, error) {
	return nil, nil
}

func (m *MockEngine) Last(ctx context.Context) (*model.BroadcastRecord, error) { return nil, nil }

func (m *MockEngine) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
