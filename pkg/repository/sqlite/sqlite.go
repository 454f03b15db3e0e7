package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"

	_ "modernc.org/sqlite"
)

// InMemoryPath opens a private in-memory database. Used by tests.
const InMemoryPath = ":memory:"

// SQLite is the default durable repository backed by a single database file.
type SQLite struct {
	db     *sql.DB
	path   string
	memory *memoryRepository
	closed atomic.Bool
}

var _ interfaces.Repository = &SQLite{}

var schema = []string{
	`PRAGMA journal_mode=WAL`,
	`PRAGMA synchronous=NORMAL`,
	`PRAGMA busy_timeout=5000`,
	`CREATE TABLE IF NOT EXISTS memories (
		id TEXT PRIMARY KEY,
		text TEXT NOT NULL,
		text_hash TEXT,
		embedding BLOB,
		project TEXT,
		tags TEXT,
		created_at INTEGER,
		updated_at INTEGER,
		archived INTEGER DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_project ON memories(project)`,
	`CREATE INDEX IF NOT EXISTS idx_created ON memories(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_hash ON memories(text_hash)`,
	`CREATE INDEX IF NOT EXISTS idx_archived ON memories(archived)`,
}

// New opens the database at path, creating the parent directory and the schema when missing.
func New(ctx context.Context, path string) (*SQLite, error) {
	if path != InMemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, goerr.Wrap(err, "failed to create database directory", goerr.V("path", path))
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open sqlite database", goerr.V("path", path))
	}
	// One connection serializes writers and keeps an in-memory database alive across calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLite{db: db, path: path}
	s.memory = newMemoryRepository(db, s.ready)

	if err := s.InitSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// InitSchema creates the memories table and its indexes. It is idempotent.
func (s *SQLite) InitSchema(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return goerr.Wrap(err, "failed to initialize schema", goerr.V("statement", stmt))
		}
	}
	return nil
}

func (s *SQLite) Memory() interfaces.MemoryRepository {
	return s.memory
}

// Path returns the database file path.
func (s *SQLite) Path() string {
	return s.path
}

func (s *SQLite) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return goerr.Wrap(err, "failed to close sqlite database", goerr.V("path", s.path))
	}
	return nil
}

func (s *SQLite) ready() error {
	if s == nil || s.db == nil || s.closed.Load() {
		return goerr.Wrap(model.ErrNotReady, "sqlite database is not open")
	}
	return nil
}
