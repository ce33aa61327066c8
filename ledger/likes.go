package ledger

// likeKey identifies one (post, account) toggle.
type likeKey struct {
	PostID    PostID
	AccountID AccountID
}

// likeLedger tracks which accounts currently like which posts. An absent
// entry means "not liked". Transitions are strict: liking twice or unliking
// something not liked is rejected.
//
// INVARIANT: Post.Likes == number of true entries for that post.
type likeLedger struct {
	entries map[likeKey]bool
}

func newLikeLedger() *likeLedger {
	return &likeLedger{entries: make(map[likeKey]bool)}
}

func (l *likeLedger) isLiked(post PostID, account AccountID) bool {
	return l.entries[likeKey{PostID: post, AccountID: account}]
}

func (l *likeLedger) checkLike(post PostID, account AccountID) error {
	if l.isLiked(post, account) {
		return ErrAlreadyLiked
	}
	return nil
}

func (l *likeLedger) checkUnlike(post PostID, account AccountID) error {
	if !l.isLiked(post, account) {
		return ErrNotLiked
	}
	return nil
}

// set flips the entry and adjusts the post's counter. Callers must run the
// matching check first.
func (l *likeLedger) set(p *Post, account AccountID, liked bool) {
	k := likeKey{PostID: p.ID, AccountID: account}
	if liked {
		l.entries[k] = true
		p.Likes++
		return
	}
	delete(l.entries, k)
	p.Likes--
}
