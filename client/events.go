package client

import (
	"github.com/luma/huddle/event"
	"github.com/luma/huddle/state"
)

// Verification is the server's answer to a JOIN.
type Verification struct {
	Username string
	Accepted bool
}

// CatalogUpdate is published whenever the group catalog is received.
type CatalogUpdate struct {
	Groups []state.Group
}

// Label is published for every message label, new or replayed.
type Label struct {
	Message state.Message
}

// Content is the answer to a message retrieval. Message is nil when Valid is
// false, or when the content arrived for a message we have no label for.
type Content struct {
	GroupID   int
	MessageID int
	Message   *state.Message
	Valid     bool
}

// UserList is published when a group's user list is replaced.
type UserList struct {
	Group state.Group
}

// Membership is published when a user joins or leaves a group.
type Membership struct {
	Group    state.Group
	Username string
}

// BadMessage is published when the server rejects something we sent.
type BadMessage struct{}

// Events holds a channel per kind of server frame. Presenters subscribe to
// them for live updates.
//
// Subscribers are called while the session is locked. They must not call
// back into the Client.
type Events struct {
	Verified    *event.Channel[Verification]
	Catalog     *event.Channel[CatalogUpdate]
	Labels      *event.Channel[Label]
	Contents    *event.Channel[Content]
	UserLists   *event.Channel[UserList]
	UserJoined  *event.Channel[Membership]
	UserLeft    *event.Channel[Membership]
	BadMessages *event.Channel[BadMessage]
}

func NewEvents(history int) *Events {
	return &Events{
		Verified:    event.New[Verification](history),
		Catalog:     event.New[CatalogUpdate](history),
		Labels:      event.New[Label](history),
		Contents:    event.New[Content](history),
		UserLists:   event.New[UserList](history),
		UserJoined:  event.New[Membership](history),
		UserLeft:    event.New[Membership](history),
		BadMessages: event.New[BadMessage](history),
	}
}
