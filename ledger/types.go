/*
Package ledger provides the state-transition core of the micro-blogging ledger.

PURPOSE:
  Registered identities publish, edit (within a time window), delete, reply
  to, and like short text posts. This package decides whether an operation
  is admissible, keeps identities, posts, replies and likes consistent, and
  guarantees every mutation either fully applies or is fully rejected.

KEY CONCEPTS IN THIS FILE (types.go):
  - Identity: the verified external caller reference (one account at most)
  - AccountID / PostID: dense integer ids, never reused
  - Tick: the discrete clock unit that stands in for block numbers
  - Account / Post: the records owned by the ledger

COMPONENTS:
  clock.go     Clock abstraction, edit window conversion
  accounts.go  accountRegistry  (identity -> account)
  posts.go     postStore        (posts, replies, per-account index)
  likes.go     likeLedger       ((post, account) -> liked)
  ledger.go    Ledger façade    (the only surface external callers use)
  journal.go   Operation log contract (persistence substrate)
  events.go    Notifications emitted after successful operations

SEE ALSO:
  - errors.go: error taxonomy
  - store/memory.go: in-memory journal
  - ../store/sqlite, ../store/postgres: durable journals
*/
package ledger

import "time"

// =============================================================================
// IDENTIFIERS
// =============================================================================

// Identity is an external, verified caller reference (e.g. a wallet address).
type Identity string

// AccountID identifies an account. Ids are dense and start at AccountBase.
type AccountID uint64

// PostID identifies a post. Ids are dense and start at FirstPostID.
type PostID uint64

// Tick is one unit of the ledger clock.
type Tick uint64

const (
	// AccountBase is the id given to the first registered account.
	AccountBase AccountID = 1

	// NoReply is the ReplyID of a top-level post.
	NoReply PostID = 0

	// FirstPostID is the id given to the first post.
	FirstPostID PostID = 1
)

// =============================================================================
// RECORDS
// =============================================================================

// Account is a registered identity.
type Account struct {
	ID           AccountID `json:"id"`
	Identity     Identity  `json:"identity"`
	Nickname     string    `json:"nickname"`
	AvatarURL    string    `json:"avatar_url"`
	Registered   bool      `json:"registered"`
	PostCount    int       `json:"post_count"` // includes removed posts
	RegisteredAt Tick      `json:"registered_at"`
}

// Post is a single message. Posts are never deleted from the store; removal
// clears the message and sets Removed.
type Post struct {
	ID           PostID    `json:"id"`
	AuthorID     AccountID `json:"author_id"`
	Message      string    `json:"message"`
	ReplyID      PostID    `json:"reply_id"`
	RepliesCount int       `json:"replies_count"`
	CreatedAt    Tick      `json:"created_at"`
	EditDeadline Tick      `json:"edit_deadline"`
	Timestamp    time.Time `json:"timestamp"`
	Edited       bool      `json:"edited"`
	Removed      bool      `json:"removed"`
	Likes        int       `json:"likes"`
}

// IsReply reports whether the post answers another post.
func (p Post) IsReply() bool { return p.ReplyID != NoReply }

// Stats summarizes the ledger.
type Stats struct {
	Accounts   int    `json:"accounts"`
	Posts      int    `json:"posts"`
	PostCount  uint64 `json:"post_count"` // next post id
	Operations uint64 `json:"operations"`
	Now        Tick   `json:"now"`
}
