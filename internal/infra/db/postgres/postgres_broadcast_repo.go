package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/kasboi/payecards-bot/internal/domain/model"
	"github.com/kasboi/payecards-bot/internal/domain/ports/repository"
)

var _ repository.BroadcastHistoryRepository = (*PostgresBroadcastRepo)(nil)

// PostgresBroadcastRepo stores broadcast records. Rows are only ever inserted.
type PostgresBroadcastRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresBroadcastRepo(pool *pgxpool.Pool) *PostgresBroadcastRepo {
	return &PostgresBroadcastRepo{pool: pool}
}

func (r *PostgresBroadcastRepo) Append(ctx context.Context, tx repository.Tx, rec *model.BroadcastRecord) error {
	const q = `
INSERT INTO broadcasts (id, initiator_id, text, sent_at, total_recipients, succeeded, failed)
VALUES ($1,$2,$3,$4,$5,$6,$7);`
	if _, err := execSQL(ctx, r.pool, tx, q, rec.ID, rec.InitiatorID, rec.Text, rec.SentAt, rec.TotalRecipients, rec.Succeeded, rec.Failed); err != nil {
		return fmt.Errorf("append broadcast: %w", err)
	}
	return nil
}

func (r *PostgresBroadcastRepo) Recent(ctx context.Context, tx repository.Tx, limit int) ([]*model.BroadcastRecord, error) {
	if limit <= 0 {
		limit = repository.DefaultHistoryLimit
	}
	const q = `
SELECT id, initiator_id, text, sent_at, total_recipients, succeeded, failed
  FROM broadcasts
 ORDER BY sent_at DESC, id DESC
 LIMIT $1;`
	rows, err := pickRows(ctx, r.pool, tx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("recent broadcasts: %w", err)
	}
	defer rows.Close()

	out := make([]*model.BroadcastRecord, 0, limit)
	for rows.Next() {
		var rec model.BroadcastRecord
		if err := rows.Scan(&rec.ID, &rec.InitiatorID, &rec.Text, &rec.SentAt, &rec.TotalRecipients, &rec.Succeeded, &rec.Failed); err != nil {
			return nil, fmt.Errorf("scan broadcast: %w", err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}
