package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"parley.app/server/internal/model"
)

type projectStore struct {
	pool *pgxpool.Pool
}

func (s *projectStore) GetByID(ctx context.Context, id int64) (*model.Project, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, user_id, name, file_context, system_prompt, shared_context, instructions, created_at, updated_at
		 FROM projects WHERE id = $1`, id)

	var p model.Project
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.FileContext, &p.SystemPrompt,
		&p.SharedContext, &p.Instructions, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}
