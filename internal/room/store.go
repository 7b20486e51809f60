package room

import (
	"context"
	"database/sql"
	"errors"
)

// ErrNoDocument means no room document has ever been persisted.
var ErrNoDocument = errors.New("no room document")

// DocStore persists the room document as one opaque blob, rewritten whole on
// every save. Last writer wins; there is no merging.
type DocStore interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, doc []byte) error
}

// SQLiteDocStore keeps the document in a single-row table.
type SQLiteDocStore struct {
	db *sql.DB
}

func NewSQLiteDocStore(db *sql.DB) *SQLiteDocStore {
	return &SQLiteDocStore{db: db}
}

func (s *SQLiteDocStore) Load(ctx context.Context) ([]byte, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM room_state WHERE id = 1`).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoDocument
	}
	return doc, err
}

func (s *SQLiteDocStore) Save(ctx context.Context, doc []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO room_state (id, doc, updated_at)
		VALUES (1, ?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		ON CONFLICT (id) DO UPDATE SET
			doc = excluded.doc,
			updated_at = excluded.updated_at
	`, doc)
	return err
}
