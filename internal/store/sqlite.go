package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	collection TEXT NOT NULL,
	id TEXT NOT NULL,
	data TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	UNIQUE (collection, id)
);
CREATE INDEX IF NOT EXISTS documents_collection_idx ON documents (collection, seq);
`

// SQLiteStore is the embedded DocumentStore used for local runs and tests.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

type SQLiteOption func(*SQLiteStore)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) SQLiteOption {
	return func(s *SQLiteStore) {
		s.now = now
	}
}

// NewSQLiteStore creates the schema on db if needed.
func NewSQLiteStore(ctx context.Context, db *sql.DB, opts ...SQLiteOption) (*SQLiteStore, error) {
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("create sqlite schema: %w", err)
	}
	s := &SQLiteStore{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func (s *SQLiteStore) Get(ctx context.Context, collection, id string) (Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, data, created_at, updated_at
		FROM documents
		WHERE collection=? AND id=?
	`, collection, id)
	doc, err := scanSQLiteDocument(row, collection)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, fmt.Errorf("get %s/%s: %w", collection, id, ErrNotFound)
	}
	if err != nil {
		return Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

func (s *SQLiteStore) Put(ctx context.Context, collection, id string, value any) (Document, error) {
	payload, err := encodeWithID(value, id)
	if err != nil {
		return Document{}, err
	}
	now := s.timestamp()
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO documents (collection, id, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET data=excluded.data, updated_at=excluded.updated_at
		RETURNING id, data, created_at, updated_at
	`, collection, id, string(payload), now, now)
	doc, err := scanSQLiteDocument(row, collection)
	if err != nil {
		return Document{}, fmt.Errorf("put %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

func (s *SQLiteStore) Create(ctx context.Context, collection string, value any) (Document, error) {
	return s.Put(ctx, collection, newDocumentID(), value)
}

func (s *SQLiteStore) Update(ctx context.Context, collection, id string, patch map[string]any) (Document, error) {
	payload, err := json.Marshal(patch)
	if err != nil {
		return Document{}, fmt.Errorf("marshal patch: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `
		UPDATE documents
		SET data=json_patch(data, ?), updated_at=?
		WHERE collection=? AND id=?
		RETURNING id, data, created_at, updated_at
	`, string(payload), s.timestamp(), collection, id)
	doc, err := scanSQLiteDocument(row, collection)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, fmt.Errorf("update %s/%s: %w", collection, id, ErrNotFound)
	}
	if err != nil {
		return Document{}, fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

func (s *SQLiteStore) Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error) {
	if err := validateFilters(filters); err != nil {
		return nil, err
	}

	var (
		where = []string{"collection=?"}
		args  = []any{collection}
	)
	for _, f := range filters {
		path := "$." + f.Field
		switch f.Op {
		case OpEqual:
			where = append(where, "json_extract(data, ?) = ?")
		case OpArrayContains:
			where = append(where, "EXISTS (SELECT 1 FROM json_each(data, ?) WHERE json_each.value = ?)")
		}
		args = append(args, path, f.Value)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, data, created_at, updated_at
		FROM documents
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY seq ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	items := make([]Document, 0)
	for rows.Next() {
		doc, err := scanSQLiteDocument(rows, collection)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		items = append(items, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", collection, err)
	}
	return items, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteDocument(row rowScanner, collection string) (Document, error) {
	var (
		doc       = Document{Collection: collection}
		createdAt string
		updatedAt string
	)
	if err := row.Scan(&doc.ID, (*rawJSON)(&doc.Data), &createdAt, &updatedAt); err != nil {
		return Document{}, err
	}
	var err error
	if doc.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return Document{}, fmt.Errorf("parse created_at: %w", err)
	}
	if doc.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return Document{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return doc, nil
}
