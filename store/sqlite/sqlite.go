/*
Package sqlite provides a SQLite-backed ledger.Journal.

PURPOSE:
  Durably records the operation log. On startup the ledger replays it to
  rebuild accounts, posts, replies and likes.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on the operations table
  - No DELETE statements on the operations table
  - seq is UNIQUE; a second writer with a stale sequence is rejected

KEY TABLES:
  operations: one row per accepted mutation, ordered by seq

INDEXES:
  - seq UNIQUE:                 ordering + duplicate detection (hot path)
  - idx_operations_identity:    per-caller audit queries
  - idx_operations_post:        per-post history

CONCURRENCY:
  Uses sync.RWMutex and a single connection. The ledger already serializes
  writes; the mutex protects direct readers (Load, Len, History).

WAL MODE:
  File databases are opened with WAL (Write-Ahead Logging).

USAGE:
  journal, err := sqlite.New("./data/microledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer journal.Close()

  l := ledger.New(ledger.Options{Journal: journal})
  err = l.Restore(ctx)

SEE ALSO:
  - ledger/journal.go: Journal contract
  - ledger/store/memory.go: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/microledger/ledger"
)

// Store implements ledger.Journal using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (and migrates) the database at dbPath.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection: ":memory:" databases are per-connection
	db.SetMaxOpenConns(1)

	store, err := NewFromDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewFromDB wraps an open database handle and migrates it.
func NewFromDB(db *sql.DB) (*Store, error) {
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Operations (append-only journal)
	CREATE TABLE IF NOT EXISTS operations (
		id TEXT PRIMARY KEY,
		seq INTEGER NOT NULL UNIQUE,
		kind TEXT NOT NULL,
		identity TEXT NOT NULL,
		tick INTEGER NOT NULL,
		at TEXT NOT NULL,
		nickname TEXT,
		avatar_url TEXT,
		message TEXT,
		post_id INTEGER NOT NULL DEFAULT 0,
		reply_id INTEGER NOT NULL DEFAULT 0,
		edit_deadline INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_operations_identity
		ON operations(identity);
	CREATE INDEX IF NOT EXISTS idx_operations_post
		ON operations(post_id) WHERE post_id <> 0;
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// databases created before edit deadlines were journaled
	_, err := s.db.Exec(`ALTER TABLE operations ADD COLUMN edit_deadline INTEGER NOT NULL DEFAULT 0`)
	if err != nil && !strings.Contains(err.Error(), "duplicate column name") {
		return err
	}
	return nil
}

// =============================================================================
// JOURNAL (ledger.Journal interface)
// =============================================================================

// Append commits an operation.
func (s *Store) Append(ctx context.Context, op ledger.Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO operations
		(id, seq, kind, identity, tick, at, nickname, avatar_url, message,
		 post_id, reply_id, edit_deadline, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		op.ID,
		op.Seq,
		op.Kind,
		op.Identity,
		op.Tick,
		op.At.UTC().Format(time.RFC3339Nano),
		nullString(op.Nickname),
		nullString(op.AvatarURL),
		nullString(op.Message),
		op.PostID,
		op.ReplyID,
		op.EditDeadline,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicateSequence
		}
		return fmt.Errorf("failed to append operation: %w", err)
	}
	return nil
}

// Load returns all operations ordered by seq.
func (s *Store) Load(ctx context.Context) ([]ledger.Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryOperations(ctx, `
		SELECT id, seq, kind, identity, tick, at, nickname, avatar_url, message, post_id, reply_id, edit_deadline
		FROM operations
		ORDER BY seq ASC
	`)
}

// Len returns the number of committed operations.
func (s *Store) Len(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM operations").Scan(&count)
	return count, err
}

// History returns the operations that touched a post, oldest first.
func (s *Store) History(ctx context.Context, postID ledger.PostID) ([]ledger.Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryOperations(ctx, `
		SELECT id, seq, kind, identity, tick, at, nickname, avatar_url, message, post_id, reply_id, edit_deadline
		FROM operations
		WHERE post_id = ?
		ORDER BY seq ASC
	`, postID)
}

func (s *Store) queryOperations(ctx context.Context, query string, args ...any) ([]ledger.Operation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query operations: %w", err)
	}
	defer rows.Close()

	var ops []ledger.Operation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

func scanOperation(rows *sql.Rows) (ledger.Operation, error) {
	var (
		op        ledger.Operation
		at        string
		nickname  sql.NullString
		avatarURL sql.NullString
		message   sql.NullString
	)

	err := rows.Scan(
		&op.ID, &op.Seq, &op.Kind, &op.Identity, &op.Tick, &at,
		&nickname, &avatarURL, &message, &op.PostID, &op.ReplyID, &op.EditDeadline,
	)
	if err != nil {
		return op, fmt.Errorf("failed to scan operation: %w", err)
	}

	op.At, err = time.Parse(time.RFC3339Nano, at)
	if err != nil {
		return op, fmt.Errorf("operation %d: bad timestamp %q: %w", op.Seq, at, err)
	}
	op.Nickname = nickname.String
	op.AvatarURL = avatarURL.String
	op.Message = message.String
	return op, nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
