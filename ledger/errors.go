/*
errors.go - Centralized error types for the ledger

PURPOSE:
  All error kinds in one place. Every rejected operation returns exactly one
  of these and leaves the ledger unchanged.

ERROR CATEGORIES:
  1. Registration errors - AlreadyRegistered, NotRegistered
  2. Lookup errors       - NotFound, IndexOutOfRange
  3. Permission errors   - Unauthorized, EditWindowExpired
  4. Toggle errors       - AlreadyLiked, NotLiked
  5. Journal errors      - DuplicateSequence, JournalCorrupt

USAGE:
  if errors.Is(err, ledger.ErrEditWindowExpired) {
      ...
  }

  var nf *ledger.NotFoundError
  if errors.As(err, &nf) && nf.Removed {
      ...
  }
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrAlreadyRegistered is returned when an identity registers twice.
	ErrAlreadyRegistered = errors.New("already registered")

	// ErrNotRegistered is returned when the caller identity has no account.
	ErrNotRegistered = errors.New("not registered")

	// ErrNotFound is returned when a referenced account or post doesn't exist,
	// or when a mutation targets a removed post.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized is returned when the caller is not the post's author.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrEditWindowExpired is returned when editing after the edit deadline.
	ErrEditWindowExpired = errors.New("edit window expired")

	// ErrAlreadyLiked is returned when liking a post twice.
	ErrAlreadyLiked = errors.New("already liked")

	// ErrNotLiked is returned when unliking a post that isn't liked.
	ErrNotLiked = errors.New("not liked")

	// ErrIndexOutOfRange is returned by indexed reads past the end.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrDuplicateSequence is returned by a journal when an operation with the
	// same sequence number was already committed.
	ErrDuplicateSequence = errors.New("duplicate operation sequence")

	// ErrJournalCorrupt is returned by Restore when the journal cannot be replayed.
	ErrJournalCorrupt = errors.New("journal corrupt")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError names the missing record.
type NotFoundError struct {
	Kind    string // "account" or "post"
	ID      uint64
	Removed bool // the post exists but was removed
}

func (e *NotFoundError) Error() string {
	if e.Removed {
		return fmt.Sprintf("%s %d not found: removed", e.Kind, e.ID)
	}
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// UnauthorizedError describes a mutation attempted by someone other than the author.
type UnauthorizedError struct {
	PostID   PostID
	Caller   Identity
	AuthorID AccountID
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("unauthorized: %q is not the author of post %d", e.Caller, e.PostID)
}

func (e *UnauthorizedError) Unwrap() error {
	return ErrUnauthorized
}

// EditWindowExpiredError carries the deadline that was missed.
type EditWindowExpiredError struct {
	PostID   PostID
	Deadline Tick
	Now      Tick
}

func (e *EditWindowExpiredError) Error() string {
	return fmt.Sprintf("edit window expired for post %d: deadline %d, now %d",
		e.PostID, e.Deadline, e.Now)
}

func (e *EditWindowExpiredError) Unwrap() error {
	return ErrEditWindowExpired
}

// IndexOutOfRangeError describes an indexed read past the end of a list.
type IndexOutOfRangeError struct {
	List  string // "user_posts" or "replies"
	Index int
	Len   int
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("%s index %d out of range [0,%d)", e.List, e.Index, e.Len)
}

func (e *IndexOutOfRangeError) Unwrap() error {
	return ErrIndexOutOfRange
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record or index.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrIndexOutOfRange)
}

// IsForbidden returns true if the caller may not perform the operation.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrNotRegistered) || errors.Is(err, ErrUnauthorized)
}

// IsConflict returns true if the operation conflicts with the current state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyRegistered) ||
		errors.Is(err, ErrAlreadyLiked) ||
		errors.Is(err, ErrNotLiked) ||
		errors.Is(err, ErrEditWindowExpired)
}

// IsClientError returns true if the error is a rejected operation rather than
// an infrastructure failure.
func IsClientError(err error) bool {
	return IsNotFound(err) || IsForbidden(err) || IsConflict(err)
}
