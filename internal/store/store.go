package store

import (
	"parley.app/server/core/db"
)

// Stores bundles all store implementations over one database handle.
type Stores struct {
	db *db.DB
}

func NewStores(database *db.DB) *Stores {
	return &Stores{db: database}
}

func (s *Stores) Users() UserStore {
	return &userStore{pool: s.db.Pool()}
}

func (s *Stores) Chats() ChatStore {
	return &chatStore{pool: s.db.Pool()}
}

func (s *Stores) Messages() MessageStore {
	return &messageStore{pool: s.db.Pool()}
}

func (s *Stores) Projects() ProjectStore {
	return &projectStore{pool: s.db.Pool()}
}

func (s *Stores) Usage() UsageStore {
	return &usageStore{pool: s.db.Pool()}
}
