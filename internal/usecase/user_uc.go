package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/kasboi/payecards-bot/internal/domain"
	"github.com/kasboi/payecards-bot/internal/domain/model"
	"github.com/kasboi/payecards-bot/internal/domain/ports/repository"
	"github.com/kasboi/payecards-bot/internal/infra/logging"
	"github.com/kasboi/payecards-bot/internal/infra/metrics"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// Compile-time checks
var (
	_ UserUseCase     = (*userUC)(nil)
	_ RecipientSource = (*userUC)(nil)
	_ AdminDirectory  = (*userUC)(nil)
)

// UserUseCase exposes user lookups and the registration dialogue.
type UserUseCase interface {
	GetByTelegramID(ctx context.Context, tgID int64) (*model.User, error)
	Count(ctx context.Context) (int, error)
	IsAdmin(ctx context.Context, tgID int64) (bool, error)
	Recipients(ctx context.Context) ([]model.Recipient, error)
	CountRecipients(ctx context.Context) (int, error)

	StartRegistration(ctx context.Context, tgID int64) (repository.RegistrationStep, error)
	// HandleRegistrationInput advances the dialogue with one message. handled
	// is false when the user is not registering.
	HandleRegistrationInput(ctx context.Context, tgID int64, profile model.Profile, text string) (*RegistrationProgress, bool, error)
	CancelRegistration(ctx context.Context, tgID int64) (bool, error)
}

// RegistrationProgress reports where the dialogue stands after an input.
type RegistrationProgress struct {
	Next repository.RegistrationStep
	Done bool
	User *model.User
}

type userUC struct {
	users    repository.UserRepository
	states   repository.RegistrationStateRepository
	tm       repository.TransactionManager
	adminIDs map[int64]struct{}
	dev      bool
	log      *zerolog.Logger
}

func NewUserUseCase(
	users repository.UserRepository,
	states repository.RegistrationStateRepository,
	tm repository.TransactionManager,
	adminIDs []int64,
	dev bool,
	logger *zerolog.Logger,
) *userUC {
	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	return &userUC{
		users:    users,
		states:   states,
		tm:       tm,
		adminIDs: admins,
		dev:      dev,
		log:      logger,
	}
}

// GetByTelegramID returns domain.ErrNotFound for unregistered users.
func (u *userUC) GetByTelegramID(ctx context.Context, tgID int64) (*model.User, error) {
	defer logging.TraceDuration(u.log, "UserUC.GetByTelegramID")()
	return u.users.FindByTelegramID(ctx, repository.NoTX, tgID)
}

func (u *userUC) Count(ctx context.Context) (int, error) {
	defer logging.TraceDuration(u.log, "UserUC.Count")()
	return u.users.CountUsers(ctx, repository.NoTX)
}

// IsAdmin is true for configured admin ids and for users flagged in the database.
func (u *userUC) IsAdmin(ctx context.Context, tgID int64) (bool, error) {
	if _, ok := u.adminIDs[tgID]; ok {
		return true, nil
	}
	user, err := u.users.FindByTelegramID(ctx, repository.NoTX, tgID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return user.IsAdmin, nil
}

func (u *userUC) Recipients(ctx context.Context) ([]model.Recipient, error) {
	defer logging.TraceDuration(u.log, "UserUC.Recipients")()
	users, err := u.users.List(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	return lo.Map(users, func(usr *model.User, _ int) model.Recipient {
		return usr.AsRecipient()
	}), nil
}

func (u *userUC) CountRecipients(ctx context.Context) (int, error) {
	return u.users.CountUsers(ctx, repository.NoTX)
}

func (u *userUC) StartRegistration(ctx context.Context, tgID int64) (repository.RegistrationStep, error) {
	defer logging.TraceDuration(u.log, "UserUC.StartRegistration")()

	_, err := u.users.FindByTelegramID(ctx, repository.NoTX, tgID)
	switch {
	case err == nil:
		return "", domain.ErrAlreadyRegistered
	case !errors.Is(err, domain.ErrNotFound):
		return "", err
	}

	state := &repository.RegistrationState{
		Step: repository.StateAwaitingUsername,
		Data: map[string]string{},
	}
	if err := u.states.SetState(ctx, tgID, state); err != nil {
		return "", fmt.Errorf("save registration state: %w", err)
	}
	return state.Step, nil
}

func (u *userUC) HandleRegistrationInput(ctx context.Context, tgID int64, profile model.Profile, text string) (*RegistrationProgress, bool, error) {
	defer logging.TraceDuration(u.log, "UserUC.HandleRegistrationInput")()

	state, err := u.states.GetState(ctx, tgID)
	if err != nil {
		return nil, false, err
	}
	if state == nil {
		return nil, false, nil
	}
	if state.Data == nil {
		state.Data = map[string]string{}
	}

	switch state.Step {
	case repository.StateAwaitingUsername:
		username, err := ValidateUsername(text)
		if err != nil {
			return &RegistrationProgress{Next: state.Step}, true, err
		}
		state.Data["username"] = username
		state.Step = repository.StateAwaitingEmail
		if err := u.states.SetState(ctx, tgID, state); err != nil {
			return nil, true, fmt.Errorf("save registration state: %w", err)
		}
		return &RegistrationProgress{Next: state.Step}, true, nil

	case repository.StateAwaitingEmail:
		email, err := ValidateEmail(text)
		if err != nil {
			return &RegistrationProgress{Next: state.Step}, true, err
		}
		user, err := u.completeRegistration(ctx, tgID, state.Data["username"], email, profile)
		if err != nil {
			return &RegistrationProgress{Next: state.Step}, true, err
		}
		if err := u.states.ClearState(ctx, tgID); err != nil {
			u.log.Warn().Err(err).Int64("tg_id", tgID).Msg("failed to clear registration state")
		}
		metrics.IncUsersRegistered()
		u.log.Info().
			Int64("tg_id", tgID).
			Str("username", user.Username).
			Str("email", logging.Redact(user.Email, u.dev)).
			Msg("user registered")
		return &RegistrationProgress{Done: true, User: user}, true, nil

	default:
		// unknown step from an older deployment; start over
		_ = u.states.ClearState(ctx, tgID)
		return nil, false, nil
	}
}

func (u *userUC) completeRegistration(ctx context.Context, tgID int64, username, email string, profile model.Profile) (*model.User, error) {
	var user *model.User
	txOpts := pgx.TxOptions{IsoLevel: pgx.Serializable}
	err := u.tm.WithTx(ctx, txOpts, func(ctx context.Context, tx repository.Tx) error {
		if _, err := u.users.FindByTelegramID(ctx, tx, tgID); err == nil {
			return domain.ErrAlreadyRegistered
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		if _, err := u.users.FindByEmail(ctx, tx, email); err == nil {
			return domain.ErrEmailTaken
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		nu, err := model.NewUser("", tgID, username, email, profile)
		if err != nil {
			return err
		}
		_, nu.IsAdmin = u.adminIDs[tgID]
		if err := u.users.Save(ctx, tx, nu); err != nil {
			return err
		}
		user = nu
		return nil
	})
	return user, err
}

func (u *userUC) CancelRegistration(ctx context.Context, tgID int64) (bool, error) {
	defer logging.TraceDuration(u.log, "UserUC.CancelRegistration")()
	state, err := u.states.GetState(ctx, tgID)
	if err != nil {
		return false, err
	}
	if state == nil {
		return false, nil
	}
	return true, u.states.ClearState(ctx, tgID)
}
