package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/tapeview/internal/models"
)

// SQLiteHistory implements History using SQLite.
type SQLiteHistory struct {
	db *sql.DB
}

// NewSQLiteHistory opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteHistory(dbPath string) (*SQLiteHistory, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteHistory{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS artifacts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		path TEXT NOT NULL,
		source TEXT,
		mode TEXT NOT NULL,
		charset INTEGER NOT NULL DEFAULT 0,
		size INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_artifacts_created_at ON artifacts(created_at);
	`
	_, err := db.Exec(schema)
	return err
}

// Record inserts a, replacing any artifact with the same ID. ID and CreatedAt
// are assigned when empty.
func (s *SQLiteHistory) Record(ctx context.Context, a *models.Artifact) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO artifacts (id, name, path, source, mode, charset, size, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			path = excluded.path,
			source = excluded.source,
			mode = excluded.mode,
			charset = excluded.charset,
			size = excluded.size,
			created_at = excluded.created_at`,
		a.ID, a.Name, a.Path, a.Source, string(a.Mode), a.Charset, a.Size, a.CreatedAt,
	)
	return err
}

const selectArtifact = `SELECT id, name, path, source, mode, charset, size, created_at FROM artifacts`

type scanner interface {
	Scan(dest ...any) error
}

func scanArtifact(row scanner) (*models.Artifact, error) {
	var a models.Artifact
	var mode string
	var source sql.NullString
	if err := row.Scan(&a.ID, &a.Name, &a.Path, &source, &mode, &a.Charset, &a.Size, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Source = source.String
	a.Mode = models.Mode(mode)
	return &a, nil
}

// Get returns an artifact by ID.
func (s *SQLiteHistory) Get(ctx context.Context, id string) (*models.Artifact, error) {
	a, err := scanArtifact(s.db.QueryRowContext(ctx, selectArtifact+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// List returns artifacts newest first with offset and limit.
func (s *SQLiteHistory) List(ctx context.Context, offset, limit int) ([]*models.Artifact, error) {
	rows, err := s.db.QueryContext(ctx,
		selectArtifact+` ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var artifacts []*models.Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, rows.Err()
}

// Count returns the total number of recorded artifacts.
func (s *SQLiteHistory) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM artifacts`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteHistory) Close() error {
	return s.db.Close()
}
