package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type usageStore struct {
	pool *pgxpool.Pool
}

func (s *usageStore) GetMonthly(ctx context.Context, userID int64, month string) (int, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT messages_sent FROM usage_counters WHERE user_id = $1 AND month = $2`,
		userID, month)

	var count int
	if err := row.Scan(&count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return count, nil
}

func (s *usageStore) Increment(ctx context.Context, userID int64, month string) error {
	// Database-side increment keeps the counter correct under concurrent
	// messages from the same user.
	_, err := s.pool.Exec(ctx,
		`INSERT INTO usage_counters (user_id, month, messages_sent)
		 VALUES ($1, $2, 1)
		 ON CONFLICT (user_id, month)
		 DO UPDATE SET messages_sent = usage_counters.messages_sent + 1`,
		userID, month)
	return err
}
