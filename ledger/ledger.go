/*
ledger.go - The Ledger façade

PURPOSE:
  The single operation surface of the micro-blogging core. Composes the
  account registry, post store, like ledger and clock, and guarantees that
  every operation is all-or-nothing.

OPERATION PIPELINE (every mutation):
  1. Resolve the caller identity (once per call)
  2. PLAN:    validate every precondition, touching no state
  3. COMMIT:  append the Operation to the journal (posts record their
              edit deadline here)
  4. APPLY:   run the planned mutation (cannot fail)
  5. NOTIFY:  publish exactly one Event

  A failure in PLAN or COMMIT returns before anything is written, so a
  rejected call leaves the ledger bit-identical to before.

ORDERING:
  One mutex serializes all mutations; this is the total order of the
  operation log. Events are published inside the same critical section so
  subscribers observe them in operation order; a slow publisher therefore
  delays the next mutation.

OWNERSHIP:
  The Ledger is the only holder of the global post counter and operation
  sequence, and the only emitter of events.

EXAMPLE:
  l := ledger.New(ledger.Options{Clock: ledger.NewManualClock(0)})
  mark, _ := l.Register(ctx, "0xMark", "mark", "")
  id, _ := l.Post(ctx, "0xMark", "Hi, I'm Mark", ledger.NoReply)
  _ = l.Like(ctx, "0xAlice", id) // ErrNotRegistered until Alice registers
*/
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Options configures a Ledger. Zero values pick sensible defaults.
type Options struct {
	Clock      Clock
	EditWindow Tick // 0 = EditWindowTicks(DefaultEditWindow, DefaultTickDuration)
	Journal    Journal
	Publisher  Publisher
	Recorder   Recorder
	Logger     *slog.Logger
	Now        func() time.Time // wall clock for post timestamps
}

// Ledger is the micro-blogging state machine.
type Ledger struct {
	mu sync.RWMutex

	clock     Clock
	journal   Journal
	publisher Publisher
	recorder  Recorder
	logger    *slog.Logger
	now       func() time.Time

	editWindow Tick

	accounts *accountRegistry
	posts    *postStore
	likes    *likeLedger

	postCount PostID // next post id
	seq       uint64 // last applied operation
	lastTick  Tick
}

// New creates an empty ledger.
func New(opts Options) *Ledger {
	if opts.Clock == nil {
		opts.Clock = NewWallClock(time.Now(), DefaultTickDuration)
	}
	if opts.EditWindow == 0 {
		opts.EditWindow = EditWindowTicks(DefaultEditWindow, DefaultTickDuration)
	}
	if opts.Journal == nil {
		opts.Journal = &discardJournal{}
	}
	if opts.Publisher == nil {
		opts.Publisher = nopPublisher{}
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Ledger{
		clock:      opts.Clock,
		journal:    opts.Journal,
		publisher:  opts.Publisher,
		recorder:   opts.Recorder,
		logger:     opts.Logger.With("component", "ledger"),
		now:        opts.Now,
		editWindow: opts.EditWindow,
		accounts:   newAccountRegistry(),
		posts:      newPostStore(),
		likes:      newLikeLedger(),
		postCount:  FirstPostID,
	}
}

// =============================================================================
// MUTATIONS
// =============================================================================

// Register creates the account for identity.
func (l *Ledger) Register(ctx context.Context, identity Identity, nickname, avatarURL string) (AccountID, error) {
	ev, err := l.submit(ctx, Operation{
		Kind:      OpRegister,
		Identity:  identity,
		Nickname:  nickname,
		AvatarURL: avatarURL,
	})
	if err != nil {
		return 0, err
	}
	return ev.AccountID, nil
}

// Post publishes a message, optionally replying to replyID (NoReply for a
// top-level post).
func (l *Ledger) Post(ctx context.Context, identity Identity, message string, replyID PostID) (PostID, error) {
	ev, err := l.submit(ctx, Operation{
		Kind:     OpPost,
		Identity: identity,
		Message:  message,
		ReplyID:  replyID,
	})
	if err != nil {
		return 0, err
	}
	return ev.PostID, nil
}

// EditPost replaces the message of the caller's post before its deadline.
func (l *Ledger) EditPost(ctx context.Context, identity Identity, postID PostID, message string) error {
	_, err := l.submit(ctx, Operation{
		Kind:     OpEdit,
		Identity: identity,
		PostID:   postID,
		Message:  message,
	})
	return err
}

// RemovePost clears the caller's post. Removal has no time limit.
func (l *Ledger) RemovePost(ctx context.Context, identity Identity, postID PostID) error {
	_, err := l.submit(ctx, Operation{Kind: OpRemove, Identity: identity, PostID: postID})
	return err
}

// Like marks postID as liked by the caller.
func (l *Ledger) Like(ctx context.Context, identity Identity, postID PostID) error {
	_, err := l.submit(ctx, Operation{Kind: OpLike, Identity: identity, PostID: postID})
	return err
}

// Unlike withdraws the caller's like.
func (l *Ledger) Unlike(ctx context.Context, identity Identity, postID PostID) error {
	_, err := l.submit(ctx, Operation{Kind: OpUnlike, Identity: identity, PostID: postID})
	return err
}

// submit stamps a fresh operation and runs it through the pipeline.
func (l *Ledger) submit(ctx context.Context, op Operation) (Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	op.ID = uuid.NewString()
	op.Seq = l.seq + 1
	op.Tick = l.tick()
	op.At = l.now().UTC()

	ev, err := l.execute(ctx, op, false)
	l.recorder.Record(op.Kind, err)
	if err != nil {
		return Event{}, err
	}

	if err := l.publisher.Publish(ctx, ev); err != nil {
		l.logger.Warn("event delivery failed",
			"event", ev.Kind, "seq", ev.Seq, "error", err)
	}
	return ev, nil
}

// execute plans, commits (unless replaying) and applies op. Caller holds mu.
func (l *Ledger) execute(ctx context.Context, op Operation, replay bool) (Event, error) {
	if op.Kind == OpPost {
		if replay && op.PostID != l.postCount {
			return Event{}, fmt.Errorf("%w: post id %d, expected %d", ErrJournalCorrupt, op.PostID, l.postCount)
		}
		op.PostID = l.postCount
		switch {
		case !replay:
			op.EditDeadline = op.Tick + l.editWindow
		case op.EditDeadline == 0:
			// journals written before deadlines were recorded
			op.EditDeadline = op.Tick + l.editWindow
		case op.EditDeadline < op.Tick:
			return Event{}, fmt.Errorf("%w: edit deadline %d before tick %d", ErrJournalCorrupt, op.EditDeadline, op.Tick)
		}
	}

	apply, err := l.plan(op)
	if err != nil {
		return Event{}, err
	}

	if !replay {
		if err := l.commit(ctx, op); err != nil {
			return Event{}, err
		}
	}

	ev := apply()
	ev.Seq = op.Seq
	l.seq = op.Seq
	l.lastTick = op.Tick
	return ev, nil
}

// commit appends op to the journal. A failed Append may still have landed
// (a lost acknowledgement or a cancelled request racing the write), so the
// journal length decides: if op is there, it is committed.
func (l *Ledger) commit(ctx context.Context, op Operation) error {
	err := l.journal.Append(ctx, op)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrDuplicateSequence) {
		n, lenErr := l.journal.Len(context.WithoutCancel(ctx))
		if lenErr == nil && uint64(n) == op.Seq {
			l.logger.Warn("append reported failure but the operation is durable",
				"op", op.Kind, "seq", op.Seq, "error", err)
			return nil
		}
	}
	return fmt.Errorf("commit %s: %w", op.Kind, err)
}

// mutation applies a planned operation. It must not fail.
type mutation func() Event

// plan validates op against the current state and returns its mutation.
func (l *Ledger) plan(op Operation) (mutation, error) {
	switch op.Kind {
	case OpRegister:
		return l.planRegister(op)
	case OpPost:
		return l.planPost(op)
	case OpEdit:
		return l.planEdit(op)
	case OpRemove:
		return l.planRemove(op)
	case OpLike, OpUnlike:
		return l.planLike(op, op.Kind == OpLike)
	default:
		return nil, fmt.Errorf("%w: unknown operation %q", ErrJournalCorrupt, op.Kind)
	}
}

func (l *Ledger) planRegister(op Operation) (mutation, error) {
	if err := l.accounts.checkRegister(op.Identity); err != nil {
		return nil, err
	}
	return func() Event {
		id := l.accounts.register(op.Identity, op.Nickname, op.AvatarURL, op.Tick)
		return Event{Kind: EventAccountRegistered, Identity: op.Identity, AccountID: id}
	}, nil
}

func (l *Ledger) planPost(op Operation) (mutation, error) {
	author, err := l.accounts.idOf(op.Identity)
	if err != nil {
		return nil, err
	}
	if err := l.posts.checkPost(op.ReplyID); err != nil {
		return nil, err
	}
	return func() Event {
		id := l.postCount
		l.postCount++
		l.posts.insert(id, author, op.Message, op.ReplyID, op.Tick, op.EditDeadline, op.At)
		l.accounts.incrementPostCount(author)
		return Event{Kind: EventNewPost, PostID: id, ReplyID: op.ReplyID, AccountID: author}
	}, nil
}

func (l *Ledger) planEdit(op Operation) (mutation, error) {
	caller, lookupErr := l.accounts.idOf(op.Identity)
	if err := l.posts.checkEdit(op.PostID, op.Identity, caller, lookupErr == nil, op.Tick); err != nil {
		return nil, err
	}
	return func() Event {
		l.posts.edit(op.PostID, op.Message)
		return Event{Kind: EventPostEdited, PostID: op.PostID}
	}, nil
}

func (l *Ledger) planRemove(op Operation) (mutation, error) {
	caller, lookupErr := l.accounts.idOf(op.Identity)
	if err := l.posts.checkRemove(op.PostID, op.Identity, caller, lookupErr == nil); err != nil {
		return nil, err
	}
	return func() Event {
		l.posts.remove(op.PostID)
		return Event{Kind: EventPostRemoved, PostID: op.PostID}
	}, nil
}

func (l *Ledger) planLike(op Operation, liked bool) (mutation, error) {
	caller, err := l.accounts.idOf(op.Identity)
	if err != nil {
		return nil, err
	}
	p, err := l.posts.live(op.PostID)
	if err != nil {
		return nil, err
	}
	if liked {
		err = l.likes.checkLike(op.PostID, caller)
	} else {
		err = l.likes.checkUnlike(op.PostID, caller)
	}
	if err != nil {
		return nil, err
	}
	return func() Event {
		l.likes.set(p, caller, liked)
		return Event{Kind: EventPostLiked, PostID: op.PostID, AccountID: caller, Liked: liked}
	}, nil
}

// tick reads the clock, never going backwards past the last applied operation.
func (l *Ledger) tick() Tick {
	t := l.clock.Now()
	if t < l.lastTick {
		return l.lastTick
	}
	return t
}

// =============================================================================
// REPLAY
// =============================================================================

// Restore rebuilds state from the journal. It must run on an empty ledger
// and never publishes events.
func (l *Ledger) Restore(ctx context.Context) error {
	ops, err := l.journal.Load(ctx)
	if err != nil {
		return fmt.Errorf("load journal: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.seq != 0 {
		return errors.New("restore: ledger is not empty")
	}

	for _, op := range ops {
		if op.Seq != l.seq+1 {
			return fmt.Errorf("%w: sequence gap at %d (expected %d)", ErrJournalCorrupt, op.Seq, l.seq+1)
		}
		if op.Tick < l.lastTick {
			return fmt.Errorf("%w: tick went backwards at seq %d", ErrJournalCorrupt, op.Seq)
		}
		if _, err := l.execute(ctx, op, true); err != nil {
			return fmt.Errorf("%w: replay seq %d: %v", ErrJournalCorrupt, op.Seq, err)
		}
	}

	l.logger.Info("journal restored",
		"operations", len(ops), "accounts", l.accounts.len(), "posts", l.posts.len())
	return nil
}

// =============================================================================
// READS (side-effect free)
// =============================================================================

// AccountIDOf resolves an identity.
func (l *Ledger) AccountIDOf(identity Identity) (AccountID, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.accounts.idOf(identity)
}

// Account returns a copy of the account record.
func (l *Ledger) Account(id AccountID) (Account, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, err := l.accounts.get(id)
	if err != nil {
		return Account{}, err
	}
	return *a, nil
}

// Get returns a copy of the post, including removed posts.
func (l *Ledger) Get(id PostID) (Post, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, err := l.posts.get(id)
	if err != nil {
		return Post{}, err
	}
	return *p, nil
}

// UserPostAt returns the index-th post (0-based) written by an account.
func (l *Ledger) UserPostAt(id AccountID, index int) (PostID, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if _, err := l.accounts.get(id); err != nil {
		return 0, err
	}
	return l.posts.userPostAt(id, index)
}

// UserPosts returns every post id written by an account, oldest first.
func (l *Ledger) UserPosts(id AccountID) ([]PostID, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if _, err := l.accounts.get(id); err != nil {
		return nil, err
	}
	return l.posts.postsOf(id), nil
}

// ReplyAt returns the index-th reply (0-based) to a post.
func (l *Ledger) ReplyAt(id PostID, index int) (PostID, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.posts.replyAt(id, index)
}

// Replies returns every reply id of a post in reply order.
func (l *Ledger) Replies(id PostID) ([]PostID, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.posts.repliesOf(id)
}

// IsLiked reports whether account currently likes post. Unknown keys are false.
func (l *Ledger) IsLiked(post PostID, account AccountID) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.likes.isLiked(post, account)
}

// PostCount returns the next post id. The newest post is PostCount()-1.
func (l *Ledger) PostCount() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(l.postCount)
}

// Now returns the tick the next operation would run at.
func (l *Ledger) Now() Tick {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.tick()
}

// Feed returns non-removed posts, newest first. limit <= 0 means all.
func (l *Ledger) Feed(limit int) []Post {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var feed []Post
	for i := len(l.posts.posts) - 1; i >= 0; i-- {
		p := l.posts.posts[i]
		if p.Removed {
			continue
		}
		feed = append(feed, p)
		if limit > 0 && len(feed) == limit {
			break
		}
	}
	return feed
}

// Thread returns a post followed by its non-removed replies in reply order.
func (l *Ledger) Thread(id PostID) ([]Post, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	root, err := l.posts.live(id)
	if err != nil {
		return nil, err
	}
	thread := []Post{*root}
	for _, rid := range l.posts.replies[id] {
		if r, err := l.posts.live(rid); err == nil {
			thread = append(thread, *r)
		}
	}
	return thread, nil
}

// Stats summarizes the ledger.
func (l *Ledger) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Stats{
		Accounts:   l.accounts.len(),
		Posts:      l.posts.len(),
		PostCount:  uint64(l.postCount),
		Operations: l.seq,
		Now:        l.tick(),
	}
}

// =============================================================================
// DISCARD JOURNAL
// =============================================================================

// discardJournal is used when no journal is configured: operations commit but
// are not retained.
type discardJournal struct {
	n int
}

func (j *discardJournal) Append(context.Context, Operation) error { j.n++; return nil }
func (j *discardJournal) Load(context.Context) ([]Operation, error) { return nil, nil }
func (j *discardJournal) Len(context.Context) (int, error)         { return j.n, nil }
