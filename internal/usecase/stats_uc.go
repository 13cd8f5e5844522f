package usecase

import (
	"context"

	"github.com/kasboi/payecards-bot/internal/domain/model"
	"github.com/kasboi/payecards-bot/internal/domain/ports/repository"
	"github.com/kasboi/payecards-bot/internal/infra/logging"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ StatsUseCase = (*statsUC)(nil)

type StatsSummary struct {
	TotalUsers    int                    `json:"total_users"`
	LastBroadcast *model.BroadcastRecord `json:"last_broadcast"`
}

type StatsUseCase interface {
	Summary(ctx context.Context) (*StatsSummary, error)
}

type statsUC struct {
	users   repository.UserRepository
	history repository.BroadcastHistoryRepository

	log *zerolog.Logger
}

func NewStatsUseCase(users repository.UserRepository, history repository.BroadcastHistoryRepository, logger *zerolog.Logger) *statsUC {
	return &statsUC{users: users, history: history, log: logger}
}

// Summary returns the user count and the last broadcast, if any.
func (s *statsUC) Summary(ctx context.Context) (*StatsSummary, error) {
	defer logging.TraceDuration(s.log, "StatsUC.Summary")()

	users, err := s.users.CountUsers(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	out := &StatsSummary{TotalUsers: users}

	recent, err := s.history.Recent(ctx, repository.NoTX, 1)
	if err != nil {
		// history is a side record; stats still show the user count
		s.log.Warn().Err(err).Msg("failed to read last broadcast")
		return out, nil
	}
	if len(recent) > 0 {
		out.LastBroadcast = recent[0]
	}
	return out, nil
}
