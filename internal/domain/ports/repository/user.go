package repository

import (
	"context"

	"github.com/kasboi/payecards-bot/internal/domain/model"
)

// -----------------------------
// Users
// -----------------------------

type UserRepository interface {
	Save(ctx context.Context, tx Tx, u *model.User) error
	FindByTelegramID(ctx context.Context, tx Tx, tgID int64) (*model.User, error)
	FindByEmail(ctx context.Context, tx Tx, email string) (*model.User, error)
	// List returns every stored user ordered by creation time.
	List(ctx context.Context, tx Tx) ([]*model.User, error)
	CountUsers(ctx context.Context, tx Tx) (int, error)
}
