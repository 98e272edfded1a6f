// Package presenter holds what the user facing front ends of the client
// share. A presenter only talks to the client through Client and learns
// about server pushes through Subscribe.
package presenter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/luma/huddle/client"
	"github.com/luma/huddle/state"
)

var (
	ErrUnknownGroup = errors.New("No group with that id or name")
	ErrBadMessageID = errors.New("Message ids are integers")
)

// Presenter is a front end that runs until ctx ends or the user quits.
type Presenter interface {
	Run(ctx context.Context) error
}

// Client is the part of *client.Client presenters use.
type Client interface {
	Connect(ctx context.Context, addr string) error
	Connected() bool
	Join(ctx context.Context, username string) (bool, error)
	PostMessage(ctx context.Context, groupID int, subject, content string) (state.Message, error)
	RetrieveMessage(ctx context.Context, groupID, messageID int) (state.Message, error)
	JoinGroup(ctx context.Context, groupID int) error
	LeaveGroup(ctx context.Context, groupID int) error
	Groups(ctx context.Context) ([]state.Group, error)
	GroupUsers(ctx context.Context, groupID int) (state.Group, error)
	LogOut(ctx context.Context) error
	Disconnect(ctx context.Context) error

	Joined() bool
	Username() string
	MemberGroups() []int
	KnownGroups() []state.Group
	Group(id int) (state.Group, bool)
	FindGroup(name string) (state.Group, bool)
	Message(groupID, messageID int) (state.Message, bool)
	Snapshot() ([]byte, error)
	Events() *client.Events
}

var _ Client = (*client.Client)(nil)

// ResolveGroup turns a group argument, an id or a name, into a group id.
// Names the client has not seen yet are looked up in a fresh catalog.
func ResolveGroup(ctx context.Context, c Client, arg string) (int, error) {
	arg = strings.TrimSpace(arg)

	if id, err := strconv.Atoi(arg); err == nil {
		return id, nil
	}

	if g, ok := c.FindGroup(arg); ok {
		return g.ID, nil
	}

	if c.Joined() {
		if _, err := c.Groups(ctx); err != nil {
			return 0, err
		}

		if g, ok := c.FindGroup(arg); ok {
			return g.ID, nil
		}
	}

	return 0, fmt.Errorf("%q: %w", arg, ErrUnknownGroup)
}

// ParseMessageID parses a message id argument.
func ParseMessageID(arg string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return 0, fmt.Errorf("%q: %w", arg, ErrBadMessageID)
	}

	return id, nil
}
