// Package postgres stores documents in a single jsonb table.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"clubattend/internal/docstore"
)

// Store persists documents in the documents table created by the
// embedded migrations.
type Store struct {
	db *sql.DB
}

// New creates a store over an open pgx-backed *sql.DB.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, path string) ([]byte, error) {
	if _, _, err := docstore.Split(path); err != nil {
		return nil, err
	}
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM documents WHERE path = $1`, path).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, docstore.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	if _, _, err := docstore.Split(path); err != nil {
		return false, err
	}
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM documents WHERE path = $1)`, path).Scan(&exists)
	return exists, err
}

func (s *Store) Create(ctx context.Context, path string, doc []byte) error {
	parent, _, err := docstore.Split(path)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (path, parent, data)
		VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (path) DO NOTHING
	`, path, parent, string(doc))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return docstore.ErrAlreadyExists
	}
	return nil
}

// Update relies on jsonb concatenation, which is a shallow merge.
func (s *Store) Update(ctx context.Context, path string, fields map[string]any) error {
	if _, _, err := docstore.Split(path); err != nil {
		return err
	}
	patch, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents
		SET data = data || $2::jsonb, updated_at = NOW()
		WHERE path = $1
	`, path, string(patch))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

func (s *Store) List(ctx context.Context, collection string) ([][]byte, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM documents WHERE parent = $1 ORDER BY path`, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out [][]byte
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	return out, rows.Err()
}
