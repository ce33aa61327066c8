/*
handlers.go - HTTP API handlers for the micro-blogging ledger

PURPOSE:
  Exposes the ledger via REST API. Handles HTTP request/response, JSON
  serialization, and delegates every operation to ledger.Ledger.

ENDPOINTS:
  Accounts:
    POST   /api/accounts                      Register the caller
    GET    /api/accounts/{id}                 Account record
    GET    /api/accounts/{id}/posts           All post ids of an account
    GET    /api/accounts/{id}/posts/{index}   Indexed post of an account
    GET    /api/identities/{identity}         Identity -> account id

  Posts:
    GET    /api/posts                         Feed (?limit=N)
    POST   /api/posts                         Publish (or reply)
    GET    /api/posts/{id}                    Post record
    PUT    /api/posts/{id}                    Edit
    DELETE /api/posts/{id}                    Remove
    GET    /api/posts/{id}/thread             Post + live replies
    GET    /api/posts/{id}/replies            Reply ids
    GET    /api/posts/{id}/replies/{index}    Indexed reply

  Likes:
    POST   /api/posts/{id}/like               Like
    DELETE /api/posts/{id}/like               Unlike
    GET    /api/posts/{id}/likes/{accountID}  Like state

  Stats:
    GET    /api/stats                         Ledger summary

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Resolve the caller (mutations only, see auth.go)
  4. Call the ledger
  5. Serialize response

ERROR HANDLING:
  - 400: Invalid input
  - 401: Mutation without a caller identity
  - 403: NotRegistered, Unauthorized
  - 404: NotFound, IndexOutOfRange
  - 409: AlreadyRegistered, AlreadyLiked, NotLiked, EditWindowExpired
  - 500: Journal failures

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/warp/microledger/ledger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Ledger *ledger.Ledger
	Logger *slog.Logger
}

// NewHandler creates a new handler for l.
func NewHandler(l *ledger.Ledger, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Ledger: l, Logger: logger}
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// Register creates the caller's account.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	id, err := h.Ledger.Register(r.Context(), caller, req.Nickname, req.AvatarURL)
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreatedResponse{ID: uint64(id)})
}

// GetAccount returns an account record.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUint(w, r, "id")
	if !ok {
		return
	}

	account, err := h.Ledger.Account(ledger.AccountID(id))
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(account))
}

// ListUserPosts returns every post id written by an account.
func (h *Handler) ListUserPosts(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUint(w, r, "id")
	if !ok {
		return
	}

	posts, err := h.Ledger.UserPosts(ledger.AccountID(id))
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PostListDTO{Posts: nonNil(posts)})
}

// GetUserPostAt returns the index-th post of an account.
func (h *Handler) GetUserPostAt(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUint(w, r, "id")
	if !ok {
		return
	}
	index, ok := pathIndex(w, r)
	if !ok {
		return
	}

	postID, err := h.Ledger.UserPostAt(ledger.AccountID(id), index)
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, IndexDTO{Index: index, PostID: postID})
}

// LookupIdentity resolves an identity to its account id.
func (h *Handler) LookupIdentity(w http.ResponseWriter, r *http.Request) {
	identity := ledger.Identity(chi.URLParam(r, "identity"))

	id, err := h.Ledger.AccountIDOf(identity)
	if errors.Is(err, ledger.ErrNotRegistered) {
		writeError(w, http.StatusNotFound, "Not found", err)
		return
	}
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, IdentityDTO{Identity: identity, AccountID: id})
}

// =============================================================================
// POST HANDLERS
// =============================================================================

// Feed returns live posts, newest first.
func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, toPostDTOs(h.Ledger.Feed(limit)))
}

// CreatePost publishes a post or a reply.
func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	id, err := h.Ledger.Post(r.Context(), caller, req.Message, req.ReplyID)
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreatedResponse{ID: uint64(id)})
}

// GetPost returns a post record, including removed posts.
func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUint(w, r, "id")
	if !ok {
		return
	}

	post, err := h.Ledger.Get(ledger.PostID(id))
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostDTO(post))
}

// EditPost replaces the message of the caller's post.
func (h *Handler) EditPost(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := pathUint(w, r, "id")
	if !ok {
		return
	}

	var req EditPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.Ledger.EditPost(r.Context(), caller, ledger.PostID(id), req.Message); err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	h.writePost(w, r, ledger.PostID(id))
}

// RemovePost clears the caller's post.
func (h *Handler) RemovePost(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := pathUint(w, r, "id")
	if !ok {
		return
	}

	if err := h.Ledger.RemovePost(r.Context(), caller, ledger.PostID(id)); err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Thread returns a post followed by its live replies.
func (h *Handler) Thread(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUint(w, r, "id")
	if !ok {
		return
	}

	thread, err := h.Ledger.Thread(ledger.PostID(id))
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostDTOs(thread))
}

// ListReplies returns every reply id of a post.
func (h *Handler) ListReplies(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUint(w, r, "id")
	if !ok {
		return
	}

	replies, err := h.Ledger.Replies(ledger.PostID(id))
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PostListDTO{Posts: nonNil(replies)})
}

// GetReplyAt returns the index-th reply of a post.
func (h *Handler) GetReplyAt(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUint(w, r, "id")
	if !ok {
		return
	}
	index, ok := pathIndex(w, r)
	if !ok {
		return
	}

	replyID, err := h.Ledger.ReplyAt(ledger.PostID(id), index)
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, IndexDTO{Index: index, PostID: replyID})
}

// =============================================================================
// LIKE HANDLERS
// =============================================================================

// Like marks a post as liked by the caller.
func (h *Handler) Like(w http.ResponseWriter, r *http.Request) {
	h.toggleLike(w, r, true)
}

// Unlike withdraws the caller's like.
func (h *Handler) Unlike(w http.ResponseWriter, r *http.Request) {
	h.toggleLike(w, r, false)
}

func (h *Handler) toggleLike(w http.ResponseWriter, r *http.Request, like bool) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := pathUint(w, r, "id")
	if !ok {
		return
	}
	postID := ledger.PostID(id)

	var err error
	if like {
		err = h.Ledger.Like(r.Context(), caller, postID)
	} else {
		err = h.Ledger.Unlike(r.Context(), caller, postID)
	}
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}

	resp := LikeDTO{PostID: postID, Liked: like}
	resp.AccountID, _ = h.Ledger.AccountIDOf(caller)
	if post, err := h.Ledger.Get(postID); err == nil {
		resp.Likes = post.Likes
	}
	writeJSON(w, http.StatusOK, resp)
}

// IsLiked reports whether an account likes a post. Unknown keys are false.
func (h *Handler) IsLiked(w http.ResponseWriter, r *http.Request) {
	postID, ok := pathUint(w, r, "id")
	if !ok {
		return
	}
	accountID, ok := pathUint(w, r, "accountID")
	if !ok {
		return
	}

	resp := LikeDTO{
		PostID:    ledger.PostID(postID),
		AccountID: ledger.AccountID(accountID),
		Liked:     h.Ledger.IsLiked(ledger.PostID(postID), ledger.AccountID(accountID)),
	}
	if post, err := h.Ledger.Get(resp.PostID); err == nil {
		resp.Likes = post.Likes
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// STATS
// =============================================================================

// Stats returns the ledger summary.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	s := h.Ledger.Stats()
	writeJSON(w, http.StatusOK, StatsDTO{
		Accounts:   s.Accounts,
		Posts:      s.Posts,
		PostCount:  s.PostCount,
		Operations: s.Operations,
		Now:        s.Now,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeLedgerError maps a ledger error onto its HTTP status.
func (h *Handler) writeLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case ledger.IsForbidden(err):
		writeError(w, http.StatusForbidden, "Forbidden", err)
	case ledger.IsConflict(err):
		writeError(w, http.StatusConflict, "Conflict", err)
	default:
		h.Logger.Error("ledger operation failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func (h *Handler) writePost(w http.ResponseWriter, r *http.Request, id ledger.PostID) {
	post, err := h.Ledger.Get(id)
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostDTO(post))
}

// caller returns the request's identity or writes 401.
func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (ledger.Identity, bool) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Caller identity required", errors.New("missing credentials"))
		return "", false
	}
	return identity, true
}

func pathUint(w http.ResponseWriter, r *http.Request, name string) (uint64, bool) {
	n, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid "+name, err)
		return 0, false
	}
	return n, true
}

func pathIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid index", err)
		return 0, false
	}
	return n, true
}

func nonNil(ids []ledger.PostID) []ledger.PostID {
	if ids == nil {
		return []ledger.PostID{}
	}
	return ids
}
