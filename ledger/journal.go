/*
journal.go - Append-only operation log

PURPOSE:
  The Journal is the commit substrate for the ledger. Every accepted
  mutation is recorded as an Operation before it is applied in memory.
  On startup the ledger replays the journal to rebuild its state.

APPEND-ONLY CONTRACT:
  - Append(): single operation write
  - Load(): every operation in sequence order
  - NO Update() or Delete() methods exist

SEQUENCE NUMBERS:
  Operations are numbered 1, 2, 3, ... in commit order. A journal rejects a
  second operation with an existing Seq (ErrDuplicateSequence). This keeps
  two ledgers pointed at the same journal from interleaving silently.

REPLAY:
  Operations carry the identity and the tick they ran at, and posts carry
  their edit deadline. Replaying them through the same validation path
  reproduces the same state, including edit-window decisions, whatever
  the edit window is configured to today.

IMPLEMENTATIONS:
  - store/memory.go:       in-memory (tests, STORE_DRIVER=memory)
  - ../store/sqlite:       embedded SQLite
  - ../store/postgres:     PostgreSQL via pgx
*/
package ledger

import (
	"context"
	"time"
)

// OpKind names a mutating operation.
type OpKind string

const (
	OpRegister OpKind = "register"
	OpPost     OpKind = "post"
	OpEdit     OpKind = "edit_post"
	OpRemove   OpKind = "remove_post"
	OpLike     OpKind = "like"
	OpUnlike   OpKind = "unlike"
)

// Operation is one committed mutation. Only the fields relevant to Kind are set.
type Operation struct {
	ID       string    `json:"id"`
	Seq      uint64    `json:"seq"`
	Kind     OpKind    `json:"kind"`
	Identity Identity  `json:"identity"`
	Tick     Tick      `json:"tick"`
	At       time.Time `json:"at"`

	Nickname  string `json:"nickname,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Message   string `json:"message,omitempty"`
	PostID    PostID `json:"post_id,omitempty"`
	ReplyID   PostID `json:"reply_id,omitempty"`

	// EditDeadline is fixed when a post commits. Replay uses the recorded
	// value, so changing the edit window never moves existing deadlines.
	EditDeadline Tick `json:"edit_deadline,omitempty"`
}

// Journal persists operations. IMPORTANT: append-only.
type Journal interface {
	// Append commits an operation. Returns ErrDuplicateSequence if Seq exists.
	Append(ctx context.Context, op Operation) error

	// Load returns all operations ordered by Seq.
	Load(ctx context.Context) ([]Operation, error)

	// Len returns the number of committed operations.
	Len(ctx context.Context) (int, error)
}
