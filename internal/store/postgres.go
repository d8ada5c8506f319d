package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ssouza/wadispatch/internal/message"
)

// PostgresStore persists message requests in PostgreSQL. The full request
// is stored as a JSON document alongside indexed id/status/created_at
// columns used for lookups and ordering.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const createMessagesTable = `
CREATE TABLE IF NOT EXISTS messages (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	doc        JSONB NOT NULL
)`

// NewPostgresStore connects to PostgreSQL and ensures the messages table
// exists.
func NewPostgresStore(ctx context.Context, url string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("store: connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, createMessagesTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: create messages table: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Put inserts or replaces a request record.
func (s *PostgresStore) Put(ctx context.Context, req *message.Request) error {
	doc, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("store: marshal request: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO messages (id, status, created_at, doc)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status, doc = EXCLUDED.doc
	`, req.ID, string(req.Status), req.CreatedAt, doc)
	if err != nil {
		return fmt.Errorf("store: put message: %w", err)
	}
	return nil
}

// Get returns the stored request, or ErrNotFound.
func (s *PostgresStore) Get(ctx context.Context, id string) (*message.Request, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM messages WHERE id = $1`, id).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get message: %w", err)
	}
	return decodeRequest(doc)
}

// List returns all stored requests ordered by creation time.
func (s *PostgresStore) List(ctx context.Context) ([]*message.Request, error) {
	rows, err := s.pool.Query(ctx, `SELECT doc FROM messages ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: list messages: %w", err)
	}
	defer rows.Close()

	var out []*message.Request
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("store: scan message: %w", err)
		}
		req, err := decodeRequest(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// UpdateStatus sets the status column and the status field of the document.
func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, status message.Status) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE messages
		SET status = $2,
		    doc = jsonb_set(doc, '{status}', to_jsonb($2::text))
		WHERE id = $1
	`, id, string(status))
	if err != nil {
		return fmt.Errorf("store: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetResults records delivery results and the final status.
func (s *PostgresStore) SetResults(ctx context.Context, id string, results []message.DeliveryResult, status message.Status) error {
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("store: marshal results: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE messages
		SET status = $2,
		    doc = jsonb_set(jsonb_set(doc, '{status}', to_jsonb($2::text)), '{results}', $3::jsonb)
		WHERE id = $1
	`, id, string(status), resultsJSON)
	if err != nil {
		return fmt.Errorf("store: set results: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func decodeRequest(doc []byte) (*message.Request, error) {
	var req message.Request
	if err := json.Unmarshal(doc, &req); err != nil {
		return nil, fmt.Errorf("store: decode message document: %w", err)
	}
	return &req, nil
}
