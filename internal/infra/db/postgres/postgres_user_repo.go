package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/kasboi/payecards-bot/internal/domain"
	"github.com/kasboi/payecards-bot/internal/domain/model"
	"github.com/kasboi/payecards-bot/internal/domain/ports/repository"
)

var _ repository.UserRepository = (*PostgresUserRepo)(nil)

type PostgresUserRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{pool: pool}
}

const userColumns = `id, telegram_id, username, email, first_name, last_name, is_admin, created_at, updated_at`

func (r *PostgresUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	const q = `
INSERT INTO users (` + userColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO UPDATE SET
  username=$3, email=$4, first_name=$5, last_name=$6, is_admin=$7, updated_at=$9;`

	_, err := execSQL(ctx, r.pool, tx, q, u.ID, u.TelegramID, u.Username, u.Email, u.FirstName, u.LastName, u.IsAdmin, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		switch uniqueConstraint(err) {
		case "users_email_key":
			return domain.ErrEmailTaken
		case "users_telegram_id_key":
			return domain.ErrAlreadyRegistered
		}
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (r *PostgresUserRepo) FindByTelegramID(ctx context.Context, tx repository.Tx, tgID int64) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE telegram_id=$1;`
	return r.queryOne(ctx, tx, q, tgID)
}

func (r *PostgresUserRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE email=lower($1);`
	return r.queryOne(ctx, tx, q, email)
}

func (r *PostgresUserRepo) List(ctx context.Context, tx repository.Tx) ([]*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users ORDER BY created_at, telegram_id;`
	rows, err := pickRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *PostgresUserRepo) CountUsers(ctx context.Context, tx repository.Tx) (int, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT COUNT(*) FROM users;`)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func (r *PostgresUserRepo) queryOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.User, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.TelegramID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}
