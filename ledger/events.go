package ledger

import "context"

// EventKind names a notification.
type EventKind string

const (
	EventAccountRegistered EventKind = "AccountRegistered"
	EventNewPost           EventKind = "NewPost"
	EventPostEdited        EventKind = "PostEdited"
	EventPostRemoved       EventKind = "PostRemoved"
	EventPostLiked         EventKind = "PostLiked"
)

// Event is emitted once per successful operation, in operation order.
//
//	AccountRegistered  Identity, AccountID
//	NewPost            PostID, ReplyID, AccountID (author)
//	PostEdited         PostID
//	PostRemoved        PostID
//	PostLiked          PostID, AccountID, Liked
type Event struct {
	Seq       uint64    `json:"seq"`
	Kind      EventKind `json:"kind"`
	Identity  Identity  `json:"identity,omitempty"`
	AccountID AccountID `json:"account_id,omitempty"`
	PostID    PostID    `json:"post_id,omitempty"`
	ReplyID   PostID    `json:"reply_id,omitempty"`
	Liked     bool      `json:"liked"`
}

// Publisher delivers events to external subscribers. Errors are logged by the
// ledger and never undo the operation.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, ev Event) error

func (f PublisherFunc) Publish(ctx context.Context, ev Event) error { return f(ctx, ev) }

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) error { return nil }

// Recorder observes operation outcomes (metrics).
type Recorder interface {
	Record(kind OpKind, err error)
}

type nopRecorder struct{}

func (nopRecorder) Record(OpKind, error) {}
