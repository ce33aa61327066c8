package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/microledger/ledger"
	"github.com/warp/microledger/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const (
	mark   ledger.Identity = "0xMark"
	alice  ledger.Identity = "0xAlice"
	hacker ledger.Identity = "0xHacker"
	anon   ledger.Identity = "0xAnon"
)

// editWindow is 10 minutes at 3 seconds per tick.
const editWindow ledger.Tick = 200

type eventLog struct {
	mu     sync.Mutex
	events []ledger.Event
}

func (e *eventLog) Publish(_ context.Context, ev ledger.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return nil
}

func (e *eventLog) all() []ledger.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]ledger.Event(nil), e.events...)
}

type fixture struct {
	ledger  *ledger.Ledger
	clock   *ledger.ManualClock
	journal *store.Memory
	events  *eventLog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		clock:   ledger.NewManualClock(100),
		journal: store.NewMemory(),
		events:  &eventLog{},
	}
	f.ledger = ledger.New(ledger.Options{
		Clock:      f.clock,
		EditWindow: editWindow,
		Journal:    f.journal,
		Publisher:  f.events,
		Now:        func() time.Time { return time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC) },
	})
	return f
}

func (f *fixture) register(t *testing.T, who ledger.Identity) ledger.AccountID {
	t.Helper()
	id, err := f.ledger.Register(context.Background(), who, string(who), "")
	require.NoError(t, err)
	return id
}

func (f *fixture) post(t *testing.T, who ledger.Identity, msg string, reply ledger.PostID) ledger.PostID {
	t.Helper()
	id, err := f.ledger.Post(context.Background(), who, msg, reply)
	require.NoError(t, err)
	return id
}

// =============================================================================
// END-TO-END SCENARIO
// =============================================================================

func TestScenario_MarkAndAlice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.ledger

	// Mark can register
	markID := f.register(t, mark)
	account, err := l.Account(markID)
	require.NoError(t, err)
	assert.True(t, account.Registered)

	// Mark can't register again
	_, err = l.Register(ctx, mark, "someone", "")
	assert.ErrorIs(t, err, ledger.ErrAlreadyRegistered)

	// Alice can register, right after Mark
	aliceID := f.register(t, alice)
	assert.Equal(t, markID+1, aliceID)

	// Anon can't post
	_, err = l.Post(ctx, anon, "I am anonymous", ledger.NoReply)
	assert.ErrorIs(t, err, ledger.ErrNotRegistered)

	// Mark can post; PostCount points one past the newest post
	f.post(t, mark, "Hi, I'm Mark", ledger.NoReply)
	postID := ledger.PostID(l.PostCount() - 1)
	p, err := l.Get(postID)
	require.NoError(t, err)
	assert.Equal(t, "Hi, I'm Mark", p.Message)
	assert.Equal(t, 0, p.Likes)

	// Hacker can't edit Mark's post
	err = l.EditPost(ctx, hacker, postID, "h4x3d")
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)
	p, _ = l.Get(postID)
	assert.Equal(t, "Hi, I'm Mark", p.Message)

	// Mark can edit his own post
	require.NoError(t, l.EditPost(ctx, mark, postID, "My own edit"))
	p, _ = l.Get(postID)
	assert.Equal(t, "My own edit", p.Message)
	assert.True(t, p.Edited)

	// Mark can't edit once 10 minutes have passed
	f.clock.Advance(ledger.EditWindowTicks(10*time.Minute, 3*time.Second) + 1)
	err = l.EditPost(ctx, mark, postID, "too late")
	assert.ErrorIs(t, err, ledger.ErrEditWindowExpired)
	p, _ = l.Get(postID)
	assert.Equal(t, "My own edit", p.Message)

	// Hacker can't remove Mark's post
	err = l.RemovePost(ctx, hacker, postID)
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)
	p, _ = l.Get(postID)
	assert.Equal(t, "My own edit", p.Message)

	// Mark can remove his own post
	require.NoError(t, l.RemovePost(ctx, mark, postID))
	p, _ = l.Get(postID)
	assert.Equal(t, "", p.Message)
	assert.True(t, p.Removed)

	// Mark can post more posts; the per-account index is 0-based
	messages := []string{"", "important", "new post"}
	f.post(t, mark, messages[1], ledger.NoReply)
	f.post(t, mark, messages[2], ledger.NoReply)
	account, _ = l.Account(markID)
	require.Equal(t, 3, account.PostCount)
	for i := 1; i < account.PostCount; i++ {
		id, err := l.UserPostAt(markID, i)
		require.NoError(t, err)
		post, err := l.Get(id)
		require.NoError(t, err)
		assert.Equal(t, messages[i], post.Message)
	}

	// Alice can like Mark's post, once
	markPost, err := l.UserPostAt(markID, 2)
	require.NoError(t, err)
	require.NoError(t, l.Like(ctx, alice, markPost))
	assert.True(t, l.IsLiked(markPost, aliceID))
	p, _ = l.Get(markPost)
	assert.Equal(t, 1, p.Likes)

	err = l.Like(ctx, alice, markPost)
	assert.ErrorIs(t, err, ledger.ErrAlreadyLiked)
	p, _ = l.Get(markPost)
	assert.Equal(t, 1, p.Likes)

	// Alice can unlike Mark's post, once
	require.NoError(t, l.Unlike(ctx, alice, markPost))
	assert.False(t, l.IsLiked(markPost, aliceID))
	p, _ = l.Get(markPost)
	assert.Equal(t, 0, p.Likes)

	err = l.Unlike(ctx, alice, markPost)
	assert.ErrorIs(t, err, ledger.ErrNotLiked)
}

// =============================================================================
// REGISTRATION
// =============================================================================

func TestRegister_SequentialIDs(t *testing.T) {
	f := newFixture(t)

	first := f.register(t, "0x1")
	second := f.register(t, "0x2")
	third := f.register(t, "0x3")

	assert.Equal(t, ledger.AccountBase, first)
	assert.Equal(t, first+1, second)
	assert.Equal(t, second+1, third)
}

func TestRegister_StoresProfile(t *testing.T) {
	f := newFixture(t)

	id, err := f.ledger.Register(context.Background(), mark, "mark", "https://example.com/mark.png")
	require.NoError(t, err)

	got, err := f.ledger.AccountIDOf(mark)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	account, err := f.ledger.Account(id)
	require.NoError(t, err)
	assert.Equal(t, mark, account.Identity)
	assert.Equal(t, "mark", account.Nickname)
	assert.Equal(t, "https://example.com/mark.png", account.AvatarURL)
	assert.Equal(t, 0, account.PostCount)
	assert.Equal(t, ledger.Tick(100), account.RegisteredAt)
}

func TestLookups_Unknown(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.AccountIDOf(anon)
	assert.ErrorIs(t, err, ledger.ErrNotRegistered)

	_, err = f.ledger.Account(42)
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	_, err = f.ledger.Account(0)
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	_, err = f.ledger.Get(0)
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	_, err = f.ledger.UserPostAt(7, 0)
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	assert.False(t, f.ledger.IsLiked(1, 1))
}

// =============================================================================
// POSTS
// =============================================================================

func TestPost_RecordsClockAndDeadline(t *testing.T) {
	f := newFixture(t)
	markID := f.register(t, mark)

	f.clock.Advance(5)
	id := f.post(t, mark, "hello", ledger.NoReply)

	p, err := f.ledger.Get(id)
	require.NoError(t, err)
	assert.Equal(t, ledger.FirstPostID, id)
	assert.Equal(t, markID, p.AuthorID)
	assert.Equal(t, ledger.Tick(105), p.CreatedAt)
	assert.Equal(t, ledger.Tick(105)+editWindow, p.EditDeadline)
	assert.Equal(t, 2025, p.Timestamp.Year())
	assert.False(t, p.IsReply())
	assert.Equal(t, uint64(2), f.ledger.PostCount())
}

func TestPost_UnregisteredCreatesNothing(t *testing.T) {
	f := newFixture(t)

	before := f.ledger.Stats()
	_, err := f.ledger.Post(context.Background(), anon, "nope", ledger.NoReply)
	assert.ErrorIs(t, err, ledger.ErrNotRegistered)
	assert.Equal(t, before, f.ledger.Stats())
	assert.Empty(t, f.events.all())
}

func TestEdit_WindowBoundary(t *testing.T) {
	// GIVEN: a post created at tick 100 with a 200-tick window
	// WHEN: editing at 299, at the deadline 300 and then at 301
	// THEN: both edits up to the deadline succeed, the last is rejected
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, mark)
	id := f.post(t, mark, "v1", ledger.NoReply)

	f.clock.Advance(editWindow - 1)
	require.NoError(t, f.ledger.EditPost(ctx, mark, id, "v2"))

	f.clock.Advance(1)
	require.NoError(t, f.ledger.EditPost(ctx, mark, id, "v3"))

	f.clock.Advance(1)
	err := f.ledger.EditPost(ctx, mark, id, "v4")
	var expired *ledger.EditWindowExpiredError
	require.ErrorAs(t, err, &expired)
	assert.Equal(t, ledger.Tick(300), expired.Deadline)
	assert.Equal(t, ledger.Tick(301), expired.Now)

	p, _ := f.ledger.Get(id)
	assert.Equal(t, "v3", p.Message)
}

func TestEdit_DeadlineDoesNotReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, mark)
	id := f.post(t, mark, "v1", ledger.NoReply)
	original, _ := f.ledger.Get(id)

	f.clock.Advance(50)
	require.NoError(t, f.ledger.EditPost(ctx, mark, id, "v2"))
	edited, _ := f.ledger.Get(id)
	assert.Equal(t, original.EditDeadline, edited.EditDeadline)

	f.clock.Advance(editWindow - 50 + 1)
	assert.ErrorIs(t, f.ledger.EditPost(ctx, mark, id, "v3"), ledger.ErrEditWindowExpired)
}

func TestEdit_RegisteredNonAuthorUnauthorized(t *testing.T) {
	f := newFixture(t)
	f.register(t, mark)
	aliceID := f.register(t, alice)
	id := f.post(t, mark, "mine", ledger.NoReply)

	err := f.ledger.EditPost(context.Background(), alice, id, "yours")
	var unauthorized *ledger.UnauthorizedError
	require.ErrorAs(t, err, &unauthorized)
	assert.Equal(t, alice, unauthorized.Caller)
	assert.NotEqual(t, aliceID, unauthorized.AuthorID)
}

func TestEdit_UnknownPost(t *testing.T) {
	f := newFixture(t)
	f.register(t, mark)

	err := f.ledger.EditPost(context.Background(), mark, 99, "x")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestRemove_IgnoresEditWindow(t *testing.T) {
	f := newFixture(t)
	f.register(t, mark)
	id := f.post(t, mark, "old", ledger.NoReply)

	f.clock.Advance(editWindow * 10)
	require.NoError(t, f.ledger.RemovePost(context.Background(), mark, id))

	p, _ := f.ledger.Get(id)
	assert.True(t, p.Removed)
	assert.Empty(t, p.Message)
}

func TestRemove_RemovedPostRejectsMutations(t *testing.T) {
	// GIVEN: Mark removed a post Alice had liked
	// WHEN: any further mutation targets it
	// THEN: every one fails with NotFound and the counters are untouched
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, mark)
	f.register(t, alice)
	id := f.post(t, mark, "bye", ledger.NoReply)
	require.NoError(t, f.ledger.Like(ctx, alice, id))
	require.NoError(t, f.ledger.RemovePost(ctx, mark, id))

	var nf *ledger.NotFoundError
	err := f.ledger.RemovePost(ctx, mark, id)
	require.ErrorAs(t, err, &nf)
	assert.True(t, nf.Removed)

	assert.ErrorIs(t, f.ledger.EditPost(ctx, mark, id, "back"), ledger.ErrNotFound)
	assert.ErrorIs(t, f.ledger.Unlike(ctx, alice, id), ledger.ErrNotFound)
	_, err = f.ledger.Post(ctx, alice, "reply", id)
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	p, _ := f.ledger.Get(id)
	assert.Equal(t, 1, p.Likes)
	assert.Equal(t, 0, p.RepliesCount)
}

// =============================================================================
// REPLIES
// =============================================================================

func TestReplies_Threading(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, mark)
	f.register(t, alice)

	root := f.post(t, mark, "root", ledger.NoReply)
	r1 := f.post(t, alice, "first", root)
	r2 := f.post(t, mark, "second", root)
	nested := f.post(t, alice, "nested", r1)

	p, _ := f.ledger.Get(root)
	assert.Equal(t, 2, p.RepliesCount)

	got, err := f.ledger.ReplyAt(root, 0)
	require.NoError(t, err)
	assert.Equal(t, r1, got)
	got, err = f.ledger.ReplyAt(root, 1)
	require.NoError(t, err)
	assert.Equal(t, r2, got)

	_, err = f.ledger.ReplyAt(root, 2)
	var oor *ledger.IndexOutOfRangeError
	require.ErrorAs(t, err, &oor)
	assert.Equal(t, 2, oor.Len)

	ids, err := f.ledger.Replies(r1)
	require.NoError(t, err)
	assert.Equal(t, []ledger.PostID{nested}, ids)

	reply, _ := f.ledger.Get(r1)
	assert.Equal(t, root, reply.ReplyID)
	assert.True(t, reply.IsReply())

	// THEN: removing a reply keeps the count, the thread hides it
	require.NoError(t, f.ledger.RemovePost(ctx, mark, r2))
	p, _ = f.ledger.Get(root)
	assert.Equal(t, 2, p.RepliesCount)

	thread, err := f.ledger.Thread(root)
	require.NoError(t, err)
	require.Len(t, thread, 2)
	assert.Equal(t, root, thread[0].ID)
	assert.Equal(t, r1, thread[1].ID)
}

func TestReplies_UnknownParent(t *testing.T) {
	f := newFixture(t)
	f.register(t, mark)

	before := f.ledger.Stats()
	_, err := f.ledger.Post(context.Background(), mark, "to nowhere", 77)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
	assert.Equal(t, before, f.ledger.Stats())

	_, err = f.ledger.ReplyAt(77, 0)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

// =============================================================================
// LIKES
// =============================================================================

func TestLike_RequiresRegistrationAndPost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, mark)
	id := f.post(t, mark, "like me", ledger.NoReply)

	assert.ErrorIs(t, f.ledger.Like(ctx, anon, id), ledger.ErrNotRegistered)
	assert.ErrorIs(t, f.ledger.Like(ctx, mark, id+1), ledger.ErrNotFound)
	assert.ErrorIs(t, f.ledger.Unlike(ctx, mark, id), ledger.ErrNotLiked)
}

func TestLike_CountsAcrossAccounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	markID := f.register(t, mark)
	aliceID := f.register(t, alice)
	id := f.post(t, mark, "popular", ledger.NoReply)

	require.NoError(t, f.ledger.Like(ctx, mark, id))
	require.NoError(t, f.ledger.Like(ctx, alice, id))
	p, _ := f.ledger.Get(id)
	assert.Equal(t, 2, p.Likes)

	require.NoError(t, f.ledger.Unlike(ctx, mark, id))
	p, _ = f.ledger.Get(id)
	assert.Equal(t, 1, p.Likes)
	assert.False(t, f.ledger.IsLiked(id, markID))
	assert.True(t, f.ledger.IsLiked(id, aliceID))
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

func TestEvents_OnePerSuccessInOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	markID := f.register(t, mark)
	aliceID := f.register(t, alice)
	root := f.post(t, mark, "root", ledger.NoReply)
	reply := f.post(t, alice, "reply", root)
	require.NoError(t, f.ledger.EditPost(ctx, mark, root, "root!"))
	require.NoError(t, f.ledger.Like(ctx, alice, root))
	require.NoError(t, f.ledger.Unlike(ctx, alice, root))
	require.NoError(t, f.ledger.RemovePost(ctx, alice, reply))

	// rejected calls emit nothing
	_, _ = f.ledger.Register(ctx, mark, "again", "")
	_ = f.ledger.Like(ctx, anon, root)

	want := []ledger.Event{
		{Seq: 1, Kind: ledger.EventAccountRegistered, Identity: mark, AccountID: markID},
		{Seq: 2, Kind: ledger.EventAccountRegistered, Identity: alice, AccountID: aliceID},
		{Seq: 3, Kind: ledger.EventNewPost, PostID: root, ReplyID: ledger.NoReply, AccountID: markID},
		{Seq: 4, Kind: ledger.EventNewPost, PostID: reply, ReplyID: root, AccountID: aliceID},
		{Seq: 5, Kind: ledger.EventPostEdited, PostID: root},
		{Seq: 6, Kind: ledger.EventPostLiked, PostID: root, AccountID: aliceID, Liked: true},
		{Seq: 7, Kind: ledger.EventPostLiked, PostID: root, AccountID: aliceID, Liked: false},
		{Seq: 8, Kind: ledger.EventPostRemoved, PostID: reply},
	}
	assert.Equal(t, want, f.events.all())
}

func TestEvents_PublishFailureDoesNotUndo(t *testing.T) {
	l := ledger.New(ledger.Options{
		Clock: ledger.NewManualClock(0),
		Publisher: ledger.PublisherFunc(func(context.Context, ledger.Event) error {
			return errors.New("broker down")
		}),
	})

	id, err := l.Register(context.Background(), mark, "mark", "")
	require.NoError(t, err)
	got, err := l.AccountIDOf(mark)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

// =============================================================================
// ATOMICITY
// =============================================================================

type failingJournal struct {
	*store.Memory
	fail bool
}

func (j *failingJournal) Append(ctx context.Context, op ledger.Operation) error {
	if j.fail {
		return errors.New("disk full")
	}
	return j.Memory.Append(ctx, op)
}

func TestAtomicity_JournalFailureLeavesNoTrace(t *testing.T) {
	// GIVEN: a ledger whose journal starts failing mid-way
	// WHEN: a post and a like are attempted
	// THEN: both are rejected and state, events and sequence are unchanged
	journal := &failingJournal{Memory: store.NewMemory()}
	events := &eventLog{}
	l := ledger.New(ledger.Options{
		Clock:     ledger.NewManualClock(0),
		Journal:   journal,
		Publisher: events,
	})
	ctx := context.Background()

	_, err := l.Register(ctx, mark, "mark", "")
	require.NoError(t, err)
	id, err := l.Post(ctx, mark, "stable", ledger.NoReply)
	require.NoError(t, err)

	before := l.Stats()
	postBefore, _ := l.Get(id)
	accountBefore, _ := l.Account(ledger.AccountBase)

	journal.fail = true
	_, err = l.Post(ctx, mark, "lost", ledger.NoReply)
	require.Error(t, err)
	assert.False(t, ledger.IsClientError(err))
	require.Error(t, l.Like(ctx, mark, id))

	assert.Equal(t, before, l.Stats())
	postAfter, _ := l.Get(id)
	assert.Equal(t, postBefore, postAfter)
	accountAfter, _ := l.Account(ledger.AccountBase)
	assert.Equal(t, accountBefore, accountAfter)
	assert.False(t, l.IsLiked(id, ledger.AccountBase))
	assert.Len(t, events.all(), 2)

	// the ledger stays usable
	journal.fail = false
	next, err := l.Post(ctx, mark, "recovered", ledger.NoReply)
	require.NoError(t, err)
	assert.Equal(t, id+1, next)
	assert.Equal(t, uint64(3), l.Stats().Operations)
}

// lossyJournal writes the operation and then reports a failure, like a
// commit whose acknowledgement was lost.
type lossyJournal struct {
	*store.Memory
	lose bool
}

func (j *lossyJournal) Append(ctx context.Context, op ledger.Operation) error {
	if err := j.Memory.Append(ctx, op); err != nil {
		return err
	}
	if j.lose {
		j.lose = false
		return errors.New("connection reset by peer")
	}
	return nil
}

func TestAtomicity_DurableWriteWithLostAck(t *testing.T) {
	// GIVEN: a journal that stores a post but reports the write as failed
	// WHEN: the post and further mutations run
	// THEN: the post is applied and later operations keep their sequence
	journal := &lossyJournal{Memory: store.NewMemory()}
	events := &eventLog{}
	l := ledger.New(ledger.Options{
		Clock:     ledger.NewManualClock(0),
		Journal:   journal,
		Publisher: events,
	})
	ctx := context.Background()

	_, err := l.Register(ctx, mark, "mark", "")
	require.NoError(t, err)

	journal.lose = true
	id, err := l.Post(ctx, mark, "landed", ledger.NoReply)
	require.NoError(t, err)
	p, err := l.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "landed", p.Message)

	next, err := l.Post(ctx, mark, "after", ledger.NoReply)
	require.NoError(t, err)
	assert.Equal(t, id+1, next)
	assert.Equal(t, uint64(3), l.Stats().Operations)
	assert.Len(t, events.all(), 3)

	n, _ := journal.Len(ctx)
	assert.Equal(t, 3, n)
}

// =============================================================================
// REPLAY
// =============================================================================

func TestRestore_RebuildsIdenticalState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, mark)
	aliceID := f.register(t, alice)
	root := f.post(t, mark, "root", ledger.NoReply)
	reply := f.post(t, alice, "reply", root)
	require.NoError(t, f.ledger.EditPost(ctx, mark, root, "edited"))
	require.NoError(t, f.ledger.Like(ctx, alice, root))
	f.clock.Advance(editWindow)
	require.NoError(t, f.ledger.RemovePost(ctx, alice, reply))

	events := &eventLog{}
	restored := ledger.New(ledger.Options{
		Clock:      ledger.NewManualClock(0),
		EditWindow: editWindow,
		Journal:    f.journal,
		Publisher:  events,
	})
	require.NoError(t, restored.Restore(ctx))

	assert.Equal(t, f.ledger.Stats().Operations, restored.Stats().Operations)
	assert.Equal(t, f.ledger.PostCount(), restored.PostCount())
	for id := ledger.FirstPostID; uint64(id) < f.ledger.PostCount(); id++ {
		want, _ := f.ledger.Get(id)
		got, err := restored.Get(id)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.True(t, restored.IsLiked(root, aliceID))
	assert.Empty(t, events.all(), "replay must not notify")

	// the restored clock never runs behind the journal
	assert.Equal(t, ledger.Tick(100)+editWindow, restored.Now())
	_, err := restored.Register(ctx, mark, "mark", "")
	assert.ErrorIs(t, err, ledger.ErrAlreadyRegistered)
}

func TestRestore_KeepsRecordedDeadlines(t *testing.T) {
	// GIVEN: a post with a 200-tick window edited at tick 250
	// WHEN: the journal is replayed with a 100-tick window
	// THEN: replay succeeds, the old deadline stands, new posts use 100
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, mark)
	id := f.post(t, mark, "v1", ledger.NoReply)
	f.clock.Advance(150)
	require.NoError(t, f.ledger.EditPost(ctx, mark, id, "v2"))

	restored := ledger.New(ledger.Options{
		Clock:      ledger.NewManualClock(0),
		EditWindow: 100,
		Journal:    f.journal,
	})
	require.NoError(t, restored.Restore(ctx))

	p, err := restored.Get(id)
	require.NoError(t, err)
	assert.Equal(t, ledger.Tick(100)+editWindow, p.EditDeadline)
	assert.Equal(t, "v2", p.Message)

	// still editable under the recorded deadline
	require.NoError(t, restored.EditPost(ctx, mark, id, "v3"))

	fresh, err := restored.Post(ctx, mark, "new", ledger.NoReply)
	require.NoError(t, err)
	p, _ = restored.Get(fresh)
	assert.Equal(t, p.CreatedAt+100, p.EditDeadline)
}

func TestRestore_PostWithoutRecordedDeadline(t *testing.T) {
	journal := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, journal.Append(ctx, ledger.Operation{Seq: 1, Kind: ledger.OpRegister, Identity: mark, Tick: 10}))
	require.NoError(t, journal.Append(ctx, ledger.Operation{Seq: 2, Kind: ledger.OpPost, Identity: mark, Tick: 10, PostID: 1, Message: "old"}))

	l := ledger.New(ledger.Options{Clock: ledger.NewManualClock(0), EditWindow: editWindow, Journal: journal})
	require.NoError(t, l.Restore(ctx))

	p, err := l.Get(1)
	require.NoError(t, err)
	assert.Equal(t, ledger.Tick(10)+editWindow, p.EditDeadline)
}

func TestRestore_RejectsDeadlineBeforeTick(t *testing.T) {
	journal := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, journal.Append(ctx, ledger.Operation{Seq: 1, Kind: ledger.OpRegister, Identity: mark, Tick: 10}))
	require.NoError(t, journal.Append(ctx, ledger.Operation{Seq: 2, Kind: ledger.OpPost, Identity: mark, Tick: 10, PostID: 1, EditDeadline: 5}))

	l := ledger.New(ledger.Options{Clock: ledger.NewManualClock(0), Journal: journal})
	assert.ErrorIs(t, l.Restore(ctx), ledger.ErrJournalCorrupt)
}

func TestRestore_DetectsSequenceGap(t *testing.T) {
	journal := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, journal.Append(ctx, ledger.Operation{Seq: 1, Kind: ledger.OpRegister, Identity: mark}))
	require.NoError(t, journal.Append(ctx, ledger.Operation{Seq: 3, Kind: ledger.OpRegister, Identity: alice}))

	l := ledger.New(ledger.Options{Clock: ledger.NewManualClock(0), Journal: journal})
	assert.ErrorIs(t, l.Restore(ctx), ledger.ErrJournalCorrupt)
}

func TestRestore_RejectsInvalidOperation(t *testing.T) {
	journal := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, journal.Append(ctx, ledger.Operation{Seq: 1, Kind: ledger.OpPost, Identity: anon, PostID: 1}))

	l := ledger.New(ledger.Options{Clock: ledger.NewManualClock(0), Journal: journal})
	assert.ErrorIs(t, l.Restore(ctx), ledger.ErrJournalCorrupt)
}

// =============================================================================
// READ MODELS
// =============================================================================

func TestFeed_NewestFirstSkipsRemoved(t *testing.T) {
	f := newFixture(t)
	f.register(t, mark)
	a := f.post(t, mark, "a", ledger.NoReply)
	b := f.post(t, mark, "b", ledger.NoReply)
	c := f.post(t, mark, "c", ledger.NoReply)
	require.NoError(t, f.ledger.RemovePost(context.Background(), mark, b))

	feed := f.ledger.Feed(0)
	require.Len(t, feed, 2)
	assert.Equal(t, c, feed[0].ID)
	assert.Equal(t, a, feed[1].ID)

	assert.Len(t, f.ledger.Feed(1), 1)

	posts, err := f.ledger.UserPosts(ledger.AccountBase)
	require.NoError(t, err)
	assert.Equal(t, []ledger.PostID{a, b, c}, posts)
}
