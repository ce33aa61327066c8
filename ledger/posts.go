package ledger

import "time"

// postStore owns post records, reply threading and the per-account index.
// Posts live in an arena indexed by id - FirstPostID; the store never
// allocates ids itself (the Ledger owns the global counter).
//
// Each mutation is split in two: a check* method that validates without
// touching state, and an apply method that cannot fail.
type postStore struct {
	posts     []Post
	replies   map[PostID][]PostID    // parent -> replies, append-only
	userPosts map[AccountID][]PostID // author -> posts, append-only
}

func newPostStore() *postStore {
	return &postStore{
		replies:   make(map[PostID][]PostID),
		userPosts: make(map[AccountID][]PostID),
	}
}

func (s *postStore) len() int { return len(s.posts) }

// get returns any post, removed or not.
func (s *postStore) get(id PostID) (*Post, error) {
	if id < FirstPostID || int(id-FirstPostID) >= len(s.posts) {
		return nil, &NotFoundError{Kind: "post", ID: uint64(id)}
	}
	return &s.posts[id-FirstPostID], nil
}

// live returns a post that may still be mutated.
func (s *postStore) live(id PostID) (*Post, error) {
	p, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if p.Removed {
		return nil, &NotFoundError{Kind: "post", ID: uint64(id), Removed: true}
	}
	return p, nil
}

// =============================================================================
// POST
// =============================================================================

func (s *postStore) checkPost(replyID PostID) error {
	if replyID == NoReply {
		return nil
	}
	_, err := s.live(replyID)
	return err
}

func (s *postStore) insert(id PostID, author AccountID, message string, replyID PostID, now, deadline Tick, at time.Time) {
	s.posts = append(s.posts, Post{
		ID:           id,
		AuthorID:     author,
		Message:      message,
		ReplyID:      replyID,
		CreatedAt:    now,
		EditDeadline: deadline,
		Timestamp:    at,
	})
	s.userPosts[author] = append(s.userPosts[author], id)

	if replyID != NoReply {
		s.posts[replyID-FirstPostID].RepliesCount++
		s.replies[replyID] = append(s.replies[replyID], id)
	}
}

// =============================================================================
// EDIT / REMOVE
// =============================================================================

// checkAuthor resolves the target post and verifies the caller wrote it.
// An unregistered caller is never the author.
func (s *postStore) checkAuthor(id PostID, caller Identity, callerID AccountID, registered bool) (*Post, error) {
	p, err := s.live(id)
	if err != nil {
		return nil, err
	}
	if !registered || p.AuthorID != callerID {
		return nil, &UnauthorizedError{PostID: id, Caller: caller, AuthorID: p.AuthorID}
	}
	return p, nil
}

// checkEdit enforces authorship and the edit window. Edits are admissible
// up to and including the deadline tick; the deadline never moves.
func (s *postStore) checkEdit(id PostID, caller Identity, callerID AccountID, registered bool, now Tick) error {
	p, err := s.checkAuthor(id, caller, callerID, registered)
	if err != nil {
		return err
	}
	if now > p.EditDeadline {
		return &EditWindowExpiredError{PostID: id, Deadline: p.EditDeadline, Now: now}
	}
	return nil
}

func (s *postStore) edit(id PostID, message string) {
	p := &s.posts[id-FirstPostID]
	p.Message = message
	p.Edited = true
}

// checkRemove enforces authorship only; removal has no time limit.
func (s *postStore) checkRemove(id PostID, caller Identity, callerID AccountID, registered bool) error {
	_, err := s.checkAuthor(id, caller, callerID, registered)
	return err
}

func (s *postStore) remove(id PostID) {
	p := &s.posts[id-FirstPostID]
	p.Message = ""
	p.Removed = true
}

// =============================================================================
// INDEXED READS
// =============================================================================

func (s *postStore) replyAt(id PostID, index int) (PostID, error) {
	if _, err := s.get(id); err != nil {
		return 0, err
	}
	return indexAt("replies", s.replies[id], index)
}

func (s *postStore) repliesOf(id PostID) ([]PostID, error) {
	if _, err := s.get(id); err != nil {
		return nil, err
	}
	return append([]PostID(nil), s.replies[id]...), nil
}

func (s *postStore) userPostAt(author AccountID, index int) (PostID, error) {
	return indexAt("user_posts", s.userPosts[author], index)
}

func (s *postStore) postsOf(author AccountID) []PostID {
	return append([]PostID(nil), s.userPosts[author]...)
}

func indexAt(list string, ids []PostID, index int) (PostID, error) {
	if index < 0 || index >= len(ids) {
		return 0, &IndexOutOfRangeError{List: list, Index: index, Len: len(ids)}
	}
	return ids[index], nil
}
