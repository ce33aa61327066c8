// Package postgres provides a PostgreSQL-backed ledger.Journal using pgx.
//
// The schema mirrors store/sqlite: one append-only operations table with a
// unique seq column.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/warp/microledger/ledger"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// Store implements ledger.Journal on a pgx connection pool.
type Store struct {
	Pool *pgxpool.Pool
}

// New connects to connStr and creates the schema.
func New(ctx context.Context, connStr string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to reach database: %w", err)
	}

	s := &Store{Pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.Pool.Close()
	return nil
}

func (s *Store) initSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS operations (
			id UUID PRIMARY KEY,
			seq BIGINT NOT NULL UNIQUE,
			kind TEXT NOT NULL,
			identity TEXT NOT NULL,
			tick BIGINT NOT NULL,
			at TIMESTAMPTZ NOT NULL,
			nickname TEXT NOT NULL DEFAULT '',
			avatar_url TEXT NOT NULL DEFAULT '',
			message TEXT NOT NULL DEFAULT '',
			post_id BIGINT NOT NULL DEFAULT 0,
			reply_id BIGINT NOT NULL DEFAULT 0,
			edit_deadline BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`ALTER TABLE operations ADD COLUMN IF NOT EXISTS edit_deadline BIGINT NOT NULL DEFAULT 0`,
		`CREATE INDEX IF NOT EXISTS idx_operations_identity ON operations(identity)`,
		`CREATE INDEX IF NOT EXISTS idx_operations_post ON operations(post_id) WHERE post_id <> 0`,
	}

	for _, q := range queries {
		if _, err := s.Pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("failed to init schema: %w", err)
		}
	}
	return nil
}

// Append commits an operation.
func (s *Store) Append(ctx context.Context, op ledger.Operation) error {
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO operations
		 (id, seq, kind, identity, tick, at, nickname, avatar_url, message, post_id, reply_id, edit_deadline)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		op.ID, int64(op.Seq), string(op.Kind), string(op.Identity), int64(op.Tick), op.At,
		op.Nickname, op.AvatarURL, op.Message, int64(op.PostID), int64(op.ReplyID), int64(op.EditDeadline),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ledger.ErrDuplicateSequence
		}
		return fmt.Errorf("failed to append operation: %w", err)
	}
	return nil
}

// Load returns all operations ordered by seq.
func (s *Store) Load(ctx context.Context) ([]ledger.Operation, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT id::text, seq, kind, identity, tick, at, nickname, avatar_url, message, post_id, reply_id, edit_deadline
		 FROM operations ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query operations: %w", err)
	}

	ops, err := pgx.CollectRows(rows, scanOperation)
	if err != nil {
		return nil, fmt.Errorf("failed to scan operations: %w", err)
	}
	return ops, nil
}

// Len returns the number of committed operations.
func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	err := s.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM operations`).Scan(&n)
	return n, err
}

func scanOperation(row pgx.CollectableRow) (ledger.Operation, error) {
	var (
		op                                ledger.Operation
		kind, identity                    string
		seq, tick, post, parent, deadline int64
	)
	err := row.Scan(&op.ID, &seq, &kind, &identity, &tick, &op.At,
		&op.Nickname, &op.AvatarURL, &op.Message, &post, &parent, &deadline)
	if err != nil {
		return op, err
	}
	op.Seq = uint64(seq)
	op.Kind = ledger.OpKind(kind)
	op.Identity = ledger.Identity(identity)
	op.Tick = ledger.Tick(tick)
	op.PostID = ledger.PostID(post)
	op.ReplyID = ledger.PostID(parent)
	op.EditDeadline = ledger.Tick(deadline)
	op.At = op.At.UTC()
	return op, nil
}
