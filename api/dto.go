/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the ledger's
  records from the external contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Small response wrappers

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - ledger/types.go: Account and Post records
*/
package api

import (
	"time"

	"github.com/warp/microledger/ledger"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// RegisterRequest is the body of POST /api/accounts.
type RegisterRequest struct {
	Nickname  string `json:"nickname"`
	AvatarURL string `json:"avatar_url"`
}

// CreatePostRequest is the body of POST /api/posts. ReplyID 0 is a top-level post.
type CreatePostRequest struct {
	Message string        `json:"message"`
	ReplyID ledger.PostID `json:"reply_id"`
}

// EditPostRequest is the body of PUT /api/posts/{id}.
type EditPostRequest struct {
	Message string `json:"message"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// AccountDTO represents an account in API responses.
type AccountDTO struct {
	ID           ledger.AccountID `json:"id"`
	Identity     ledger.Identity  `json:"identity"`
	Nickname     string           `json:"nickname"`
	AvatarURL    string           `json:"avatar_url"`
	PostCount    int              `json:"post_count"`
	Registered   bool             `json:"registered"`
	RegisteredAt ledger.Tick      `json:"registered_at"`
}

// PostDTO represents a post in API responses.
type PostDTO struct {
	ID           ledger.PostID    `json:"id"`
	AuthorID     ledger.AccountID `json:"author_id"`
	Message      string           `json:"message"`
	ReplyID      ledger.PostID    `json:"reply_id,omitempty"`
	RepliesCount int              `json:"replies_count"`
	Likes        int              `json:"likes"`
	CreatedAt    ledger.Tick      `json:"created_at"`
	EditDeadline ledger.Tick      `json:"edit_deadline"`
	Timestamp    string           `json:"timestamp"`
	Edited       bool             `json:"edited"`
	Removed      bool             `json:"removed"`
}

// CreatedResponse returns the id of a created record.
type CreatedResponse struct {
	ID uint64 `json:"id"`
}

// IdentityDTO maps an identity to its account.
type IdentityDTO struct {
	Identity  ledger.Identity  `json:"identity"`
	AccountID ledger.AccountID `json:"account_id"`
}

// PostListDTO is an ordered list of post ids.
type PostListDTO struct {
	Posts []ledger.PostID `json:"posts"`
}

// IndexDTO is the result of an indexed read.
type IndexDTO struct {
	Index  int           `json:"index"`
	PostID ledger.PostID `json:"post_id"`
}

// LikeDTO reports the like state of a post for an account.
type LikeDTO struct {
	PostID    ledger.PostID    `json:"post_id"`
	AccountID ledger.AccountID `json:"account_id"`
	Liked     bool             `json:"liked"`
	Likes     int              `json:"likes"`
}

// StatsDTO summarizes the ledger.
type StatsDTO struct {
	Accounts   int         `json:"accounts"`
	Posts      int         `json:"posts"`
	PostCount  uint64      `json:"post_count"`
	Operations uint64      `json:"operations"`
	Now        ledger.Tick `json:"now"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toAccountDTO(a ledger.Account) AccountDTO {
	return AccountDTO{
		ID:           a.ID,
		Identity:     a.Identity,
		Nickname:     a.Nickname,
		AvatarURL:    a.AvatarURL,
		PostCount:    a.PostCount,
		Registered:   a.Registered,
		RegisteredAt: a.RegisteredAt,
	}
}

func toPostDTO(p ledger.Post) PostDTO {
	return PostDTO{
		ID:           p.ID,
		AuthorID:     p.AuthorID,
		Message:      p.Message,
		ReplyID:      p.ReplyID,
		RepliesCount: p.RepliesCount,
		Likes:        p.Likes,
		CreatedAt:    p.CreatedAt,
		EditDeadline: p.EditDeadline,
		Timestamp:    p.Timestamp.UTC().Format(time.RFC3339),
		Edited:       p.Edited,
		Removed:      p.Removed,
	}
}

func toPostDTOs(posts []ledger.Post) []PostDTO {
	dtos := make([]PostDTO, len(posts))
	for i, p := range posts {
		dtos[i] = toPostDTO(p)
	}
	return dtos
}
