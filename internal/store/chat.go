package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"parley.app/server/internal/model"
)

type chatStore struct {
	pool *pgxpool.Pool
}

func (s *chatStore) GetByID(ctx context.Context, id int64) (*model.Chat, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, user_id, project_id, title, model, provider, message_count, created_at, updated_at
		 FROM chats WHERE id = $1`, id)

	var c model.Chat
	err := row.Scan(&c.ID, &c.UserID, &c.ProjectID, &c.Title, &c.Model, &c.Provider,
		&c.MessageCount, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *chatStore) Create(ctx context.Context, chat *model.Chat) error {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO chats (id, user_id, project_id, title, model, provider)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING message_count, created_at, updated_at`,
		chat.ID, chat.UserID, chat.ProjectID, chat.Title, chat.Model, chat.Provider)
	return row.Scan(&chat.MessageCount, &chat.CreatedAt, &chat.UpdatedAt)
}

func (s *chatStore) ListByUser(ctx context.Context, userID int64) ([]model.Chat, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, project_id, title, model, provider, message_count, created_at, updated_at
		 FROM chats WHERE user_id = $1 ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []model.Chat
	for rows.Next() {
		var c model.Chat
		if err := rows.Scan(&c.ID, &c.UserID, &c.ProjectID, &c.Title, &c.Model, &c.Provider,
			&c.MessageCount, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

func (s *chatStore) RecordMessage(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE chats SET message_count = message_count + 1, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *chatStore) Delete(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM chats WHERE id = $1`, id)
	return err
}
