package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Entry is one published batch
type Entry struct {
	ID             string    `json:"id"`
	BaseName       string    `json:"base_name"`
	Voice          string    `json:"voice"`
	Backend        string    `json:"backend"`
	SentenceCount  int       `json:"sentence_count"`
	DurationMillis float64   `json:"duration_ms"`
	Translated     bool      `json:"translated"`
	TargetLanguage string    `json:"target_language,omitempty"`
	Warnings       int       `json:"warnings"`
	CreatedAt      time.Time `json:"created_at"`
}

// History records published batches in SQLite
type History struct {
	db   *sql.DB
	path string
}

// OpenHistory initializes or connects to the history database
func OpenHistory(ctx context.Context, path string) (*History, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	h := &History{db: db, path: path}
	if err := h.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return h, nil
}

// Close closes the underlying database connection.
func (h *History) Close() error {
	if h == nil || h.db == nil {
		return nil
	}
	return h.db.Close()
}

// Path returns the database file path
func (h *History) Path() string {
	return h.path
}

// Ping checks the database, for readiness checks
func (h *History) Ping(ctx context.Context) (bool, error) {
	if err := h.db.PingContext(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Record inserts a published batch
func (h *History) Record(ctx context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := h.db.ExecContext(
		ctx,
		`INSERT INTO narrations (
            id, base_name, voice, backend, sentence_count, duration_ms,
            translated, target_language, warnings, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.BaseName,
		e.Voice,
		e.Backend,
		e.SentenceCount,
		e.DurationMillis,
		boolToInt(e.Translated),
		nullableString(e.TargetLanguage),
		e.Warnings,
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert narration: %w", err)
	}
	return nil
}

// List returns the most recent batches, newest first
func (h *History) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := h.db.QueryContext(
		ctx,
		`SELECT id, base_name, voice, backend, sentence_count, duration_ms,
            translated, target_language, warnings, created_at
        FROM narrations ORDER BY created_at DESC, id LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query narrations: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			translated int
			target     sql.NullString
			createdAt  string
		)
		if err := rows.Scan(
			&e.ID, &e.BaseName, &e.Voice, &e.Backend, &e.SentenceCount, &e.DurationMillis,
			&translated, &target, &e.Warnings, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan narration: %w", err)
		}
		e.Translated = translated != 0
		e.TargetLanguage = target.String
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate narrations: %w", err)
	}
	return entries, nil
}

func (h *History) initSchema(ctx context.Context) error {
	var tableExists int
	err := h.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return h.createSchema(ctx)
	}

	var version int
	if err := h.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s)",
			ErrSchemaMismatch, version, schemaVersion, h.path)
	}
	return nil
}

func (h *History) createSchema(ctx context.Context) error {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
