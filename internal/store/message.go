package store

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"parley.app/server/internal/model"
)

type messageStore struct {
	pool *pgxpool.Pool
}

func (s *messageStore) ListRecent(ctx context.Context, chatID int64, limit int) ([]model.Message, error) {
	// Snowflake IDs are time-ordered, so id ordering is chronological.
	rows, err := s.pool.Query(ctx,
		`SELECT id, chat_id, role, content, images, files, model, provider, token_count, status, created_at
		 FROM messages WHERE chat_id = $1 ORDER BY id DESC LIMIT $2`, chatID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		var m model.Message
		var images, files []byte
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Role, &m.Content, &images, &files,
			&m.Model, &m.Provider, &m.TokenCount, &m.Status, &m.CreatedAt); err != nil {
			return nil, err
		}
		if len(images) > 0 {
			if err := json.Unmarshal(images, &m.Images); err != nil {
				return nil, err
			}
		}
		if len(files) > 0 {
			if err := json.Unmarshal(files, &m.Files); err != nil {
				return nil, err
			}
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse DESC page into chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (s *messageStore) Append(ctx context.Context, msg *model.Message) error {
	images, err := json.Marshal(msg.Images)
	if err != nil {
		return err
	}
	files, err := json.Marshal(msg.Files)
	if err != nil {
		return err
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO messages (id, chat_id, role, content, images, files, model, provider, token_count, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING created_at`,
		msg.ID, msg.ChatID, msg.Role, msg.Content, images, files,
		msg.Model, msg.Provider, msg.TokenCount, msg.Status)
	return row.Scan(&msg.CreatedAt)
}
