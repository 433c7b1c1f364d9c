package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(20)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

// OpenSQLite opens the embedded database at path. ":memory:" gives a private
// in-memory database, which is only shared while a single connection is held.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

// OpenDocumentStore picks the backend for driver ("postgres" or "sqlite").
func OpenDocumentStore(ctx context.Context, driver, databaseURL, sqlitePath, migrationsDir string) (DocumentStore, error) {
	switch driver {
	case "sqlite":
		db, err := OpenSQLite(ctx, sqlitePath)
		if err != nil {
			return nil, err
		}
		return NewSQLiteStore(ctx, db)
	case "postgres", "":
		db, err := Open(ctx, databaseURL)
		if err != nil {
			return nil, err
		}
		if err := ApplyMigrations(ctx, db, migrationsDir); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrations failed: %w", err)
		}
		return NewPostgresStore(db), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
}
