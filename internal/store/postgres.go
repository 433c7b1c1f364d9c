package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// PostgresStore keeps every collection in the JSONB documents table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Get(ctx context.Context, collection, id string) (Document, error) {
	doc := Document{Collection: collection, ID: id}
	err := s.db.QueryRowContext(ctx, `
		SELECT data, created_at, updated_at
		FROM documents
		WHERE collection=$1 AND id=$2
	`, collection, id).Scan((*rawJSON)(&doc.Data), &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, fmt.Errorf("get %s/%s: %w", collection, id, ErrNotFound)
	}
	if err != nil {
		return Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

func (s *PostgresStore) Put(ctx context.Context, collection, id string, value any) (Document, error) {
	payload, err := encodeWithID(value, id)
	if err != nil {
		return Document{}, err
	}
	doc := Document{Collection: collection, ID: id}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO documents (collection, id, data)
		VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id) DO UPDATE SET data=EXCLUDED.data, updated_at=NOW()
		RETURNING data, created_at, updated_at
	`, collection, id, string(payload)).Scan((*rawJSON)(&doc.Data), &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return Document{}, fmt.Errorf("put %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

func (s *PostgresStore) Create(ctx context.Context, collection string, value any) (Document, error) {
	return s.Put(ctx, collection, newDocumentID(), value)
}

func (s *PostgresStore) Update(ctx context.Context, collection, id string, patch map[string]any) (Document, error) {
	payload, err := json.Marshal(patch)
	if err != nil {
		return Document{}, fmt.Errorf("marshal patch: %w", err)
	}
	doc := Document{Collection: collection, ID: id}
	err = s.db.QueryRowContext(ctx, `
		UPDATE documents
		SET data = data || $3::jsonb, updated_at=NOW()
		WHERE collection=$1 AND id=$2
		RETURNING data, created_at, updated_at
	`, collection, id, string(payload)).Scan((*rawJSON)(&doc.Data), &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, fmt.Errorf("update %s/%s: %w", collection, id, ErrNotFound)
	}
	if err != nil {
		return Document{}, fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

func (s *PostgresStore) Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error) {
	if err := validateFilters(filters); err != nil {
		return nil, err
	}

	var (
		where = []string{"collection=$1"}
		args  = []any{collection}
	)
	for _, f := range filters {
		args = append(args, f.Field, f.Value)
		field := fmt.Sprintf("$%d", len(args)-1)
		value := fmt.Sprintf("$%d", len(args))
		switch f.Op {
		case OpEqual:
			where = append(where, fmt.Sprintf("data->>%s::text = %s::text", field, value))
		case OpArrayContains:
			where = append(where, fmt.Sprintf("data->%s::text @> jsonb_build_array(%s::text)", field, value))
		}
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
		doc := Document{Collection: collection}
		if err := rows.Scan(&doc.ID, (*rawJSON)(&doc.Data), &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		items = append(items, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", collection, err)
	}
	return items, nil
}
