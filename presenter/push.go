package presenter

import (
	"context"
	"sync"

	"github.com/luma/huddle/client"
	"github.com/luma/huddle/event"
	"github.com/luma/huddle/state"
)

type Kind string

const (
	KindLabel      Kind = "label"
	KindUserJoined Kind = "user_joined"
	KindUserLeft   Kind = "user_left"
	KindUserList   Kind = "user_list"
	KindCatalog    Kind = "catalog"
	KindBadMessage Kind = "bad_message"
)

// Push is something the server told us without being asked, or the answer
// to a request, flattened for display.
type Push struct {
	Seq      uint64         `json:"seq"`
	Kind     Kind           `json:"kind"`
	GroupID  int            `json:"groupID"`
	Username string         `json:"username,omitempty"`
	Users    []string       `json:"users,omitempty"`
	Groups   []state.Group  `json:"groups,omitempty"`
	Message  *state.Message `json:"message,omitempty"`
}

// Subscribe calls fn with a Push for every label, membership change, user
// list, catalog and BAD_MESSAGE the client applies. fn is called with the
// session locked, it must not call back into the client.
func Subscribe(events *client.Events, fn func(Push)) (cancel func()) {
	cancels := []func(){
		events.Labels.Subscribe(func(l client.Label) {
			m := l.Message
			fn(Push{Kind: KindLabel, GroupID: m.GroupID, Username: m.Username, Message: &m})
		}),

		events.UserJoined.Subscribe(func(m client.Membership) {
			fn(Push{Kind: KindUserJoined, GroupID: m.Group.ID, Username: m.Username})
		}),

		events.UserLeft.Subscribe(func(m client.Membership) {
			fn(Push{Kind: KindUserLeft, GroupID: m.Group.ID, Username: m.Username})
		}),

		events.UserLists.Subscribe(func(l client.UserList) {
			fn(Push{Kind: KindUserList, GroupID: l.Group.ID, Users: l.Group.Users})
		}),

		events.Catalog.Subscribe(func(c client.CatalogUpdate) {
			fn(Push{Kind: KindCatalog, Groups: c.Groups})
		}),

		events.BadMessages.Subscribe(func(client.BadMessage) {
			fn(Push{Kind: KindBadMessage})
		}),
	}

	return func() {
		for _, cancel := range cancels {
			cancel()
		}
	}
}

// Feed numbers pushes and keeps the recent ones, so a poller can ask for
// everything after the last push it saw.
type Feed struct {
	mu sync.Mutex
	ch *event.Channel[Push]
}

func NewFeed(history int) *Feed {
	return &Feed{ch: event.New[Push](history)}
}

// Publish numbers p and adds it to the feed.
func (f *Feed) Publish(p Push) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p.Seq = f.ch.Generation() + 1
	f.ch.Publish(p)
}

// Seq returns the number of the latest push.
func (f *Feed) Seq() uint64 {
	return f.ch.Generation()
}

// Next blocks until there is a push after seq and returns it.
func (f *Feed) Next(ctx context.Context, seq uint64) (Push, error) {
	return f.ch.WaitSince(ctx, seq, func(Push) bool {
		return true
	})
}

// Recorder is a Presenter that only records pushes. Tests use it to see what
// a front end would have been shown.
type Recorder struct {
	mu     sync.Mutex
	pushes []Push

	cancel func()
}

// NewRecorder starts recording straight away.
func NewRecorder(events *client.Events) *Recorder {
	r := &Recorder{}
	r.cancel = Subscribe(events, r.record)

	return r
}

// Run records pushes until ctx ends, then stops recording.
func (r *Recorder) Run(ctx context.Context) error {
	defer r.cancel()

	<-ctx.Done()
	return nil
}

func (r *Recorder) record(p Push) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p.Seq = uint64(len(r.pushes) + 1)
	r.pushes = append(r.pushes, p)
}

// Pushes returns what has been recorded so far.
func (r *Recorder) Pushes() []Push {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Push(nil), r.pushes...)
}

// Kinds returns the kind of every recorded push, in order.
func (r *Recorder) Kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()

	kinds := make([]Kind, 0, len(r.pushes))
	for _, p := range r.pushes {
		kinds = append(kinds, p.Kind)
	}

	return kinds
}

var _ Presenter = (*Recorder)(nil)
