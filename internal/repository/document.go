package repository

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kjannette/aete-backend/internal/docstore"
	"github.com/kjannette/aete-backend/internal/models"
)

// DocumentRepo stores documents as JSONB rows in the documents table.
// It implements docstore.Store.
type DocumentRepo struct {
	pool   *pgxpool.Pool
	now    func() time.Time
	closed atomic.Bool
}

func NewDocumentRepo(pool *pgxpool.Pool) *DocumentRepo {
	return &DocumentRepo{
		pool: pool,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// MergeSet relies on jsonb || jsonb, which overwrites top-level keys and
// keeps the rest.
func (r *DocumentRepo) MergeSet(ctx context.Context, collection, id string, data models.Document) error {
	if r.closed.Load() {
		return docstore.ErrClosed
	}
	body, err := docstore.Encode(docstore.ResolveTimestamps(data.Clone(), r.now()))
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO documents (collection, id, data)
		 VALUES ($1, $2, $3::jsonb)
		 ON CONFLICT (collection, id)
		 DO UPDATE SET data = documents.data || EXCLUDED.data, updated_at = NOW()`,
		collection, id, string(body),
	)
	return err
}

func (r *DocumentRepo) Get(ctx context.Context, collection, id string) (models.Document, error) {
	if r.closed.Load() {
		return nil, docstore.ErrClosed
	}
	var body []byte
	err := r.pool.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, docstore.ErrNotFound
		}
		return nil, err
	}
	return docstore.Decode(body)
}

func (r *DocumentRepo) Add(ctx context.Context, collection string, data models.Document) (string, error) {
	if r.closed.Load() {
		return "", docstore.ErrClosed
	}
	id := uuid.NewString()
	body, err := docstore.Encode(docstore.ResolveTimestamps(data.Clone(), r.now()))
	if err != nil {
		return "", fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)`,
		collection, id, string(body),
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *DocumentRepo) Ping(ctx context.Context) error {
	if r.closed.Load() {
		return docstore.ErrClosed
	}
	return r.pool.Ping(ctx)
}

// Close detaches the repo; later calls return docstore.ErrClosed. The pool
// belongs to whoever created it and stays open.
func (r *DocumentRepo) Close() error {
	r.closed.Store(true)
	return nil
}
