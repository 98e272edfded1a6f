package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luma/huddle/event"
	"github.com/luma/huddle/protocol"
	"github.com/luma/huddle/state"
	"github.com/luma/huddle/transport"
)

// Client is a connection to a group chat server and the local view of the
// server's state.
//
// Every call that talks to the server sends its request and then blocks
// until the matching answer has been applied to the session, the request
// timeout passes, ctx ends, or the connection is lost.
type Client struct {
	session    *state.Session
	events     *Events
	dispatcher *dispatcher

	mu   sync.Mutex
	conn *connection

	options Options
	log     *zap.Logger
}

func New(options Options) *Client {
	options = options.withDefaults()

	c := &Client{
		session: state.NewSession(),
		events:  NewEvents(options.History),
		options: options,
		log:     options.Log,
	}

	c.dispatcher = newDispatcher(c.session, c.events, c.resync, options.Log.Named("dispatcher"))

	return c
}

// Events returns the channels presenters subscribe to.
func (c *Client) Events() *Events {
	return c.events
}

// Connect dials addr and starts listening for frames from the server.
func (c *Client) Connect(ctx context.Context, addr string) error {
	if c.Connected() {
		return ErrAlreadyConnected
	}

	dialer := c.options.Dialer
	if dialer == nil {
		var err error
		if dialer, err = transport.DialerFor(addr, c.options.Transport); err != nil {
			return err
		}
	}

	// Dial without c.mu so Connected and Disconnect answer while it runs
	tc, err := dialer.Dial(ctx, addr)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another Connect won the race
	if c.conn != nil && c.conn.err() == nil {
		_ = tc.Close()
		return ErrAlreadyConnected
	}

	conn := newConnection(tc)
	c.conn = conn

	// Nothing from an earlier connection carries over
	c.endSession()

	c.log.Info("Connected", zap.String("addr", tc.RemoteAddr()))

	go c.listen(conn)

	return nil
}

// Connected reports whether the client has a working connection.
func (c *Client) Connected() bool {
	_, err := c.connection()
	return err == nil
}

// Join asks to join the server as username. It returns whether the server
// accepted the username.
func (c *Client) Join(ctx context.Context, username string) (bool, error) {
	conn, err := c.connection()
	if err != nil {
		return false, err
	}

	c.session.Lock()
	if c.session.Joined() {
		c.session.Unlock()
		return false, ErrAlreadyJoined
	}
	c.session.SetUsername(username)
	c.session.Unlock()

	gen := c.events.Verified.Generation()

	if err := conn.send(protocol.JoinRequest(username)); err != nil {
		return false, err
	}

	verification, err := await(ctx, c, conn, c.events.Verified, gen, func(Verification) bool {
		return true
	})
	if err != nil {
		return false, fmt.Errorf("Failed to join as %s: %w", username, err)
	}

	return verification.Accepted, nil
}

// PostMessage posts a message to a group and waits for the server to
// announce it.
func (c *Client) PostMessage(ctx context.Context, groupID int, subject, content string) (state.Message, error) {
	conn, err := c.connection()
	if err != nil {
		return state.Message{}, err
	}

	if err := c.checkGroup(ctx, conn, groupID, mustBeMember); err != nil {
		return state.Message{}, err
	}

	username := c.Username()
	gen := c.events.Labels.Generation()

	if err := conn.send(protocol.PostRequest(groupID, subject, content)); err != nil {
		return state.Message{}, err
	}

	label, err := await(ctx, c, conn, c.events.Labels, gen, func(l Label) bool {
		return l.Message.GroupID == groupID &&
			l.Message.Username == username &&
			l.Message.Subject == subject
	})
	if err != nil {
		return state.Message{}, fmt.Errorf("Failed to post to group %d: %w", groupID, err)
	}

	return label.Message, nil
}

// RetrieveMessage fetches the content of a message.
func (c *Client) RetrieveMessage(ctx context.Context, groupID, messageID int) (state.Message, error) {
	conn, err := c.connection()
	if err != nil {
		return state.Message{}, err
	}

	if err := c.checkGroup(ctx, conn, groupID, mustBeMember); err != nil {
		return state.Message{}, err
	}

	gen := c.events.Contents.Generation()

	if err := conn.send(protocol.RetrieveRequest(groupID, messageID)); err != nil {
		return state.Message{}, err
	}

	content, err := await(ctx, c, conn, c.events.Contents, gen, func(p Content) bool {
		return p.GroupID == groupID && p.MessageID == messageID
	})
	if err != nil {
		return state.Message{}, fmt.Errorf("Failed to retrieve message %d/%d: %w", groupID, messageID, err)
	}

	if !content.Valid || content.Message == nil {
		return state.Message{}, fmt.Errorf("Message %d/%d: %w", groupID, messageID, ErrMessageUnavailable)
	}

	return *content.Message, nil
}

// JoinGroup joins a group and waits for the server to announce it. The
// membership only changes once the server tells the group that we joined, so
// against a server that does not announce the joiner the call times out.
func (c *Client) JoinGroup(ctx context.Context, groupID int) error {
	conn, err := c.connection()
	if err != nil {
		return err
	}

	if err := c.checkGroup(ctx, conn, groupID, mustNotBeMember); err != nil {
		return err
	}

	return c.changeMembership(ctx, conn, protocol.GroupJoin, groupID, c.events.UserJoined)
}

// LeaveGroup leaves a group and waits for the server to announce it. Use
// LogOut to leave the global group.
func (c *Client) LeaveGroup(ctx context.Context, groupID int) error {
	if groupID == state.GlobalGroupID {
		return fmt.Errorf("Cannot leave the global group, log out instead: %w", ErrInvalidGroup)
	}

	conn, err := c.connection()
	if err != nil {
		return err
	}

	if err := c.checkGroup(ctx, conn, groupID, mustBeMember); err != nil {
		return err
	}

	return c.changeMembership(ctx, conn, protocol.GroupLeave, groupID, c.events.UserLeft)
}

func (c *Client) changeMembership(
	ctx context.Context,
	conn *connection,
	action protocol.GroupAction,
	groupID int,
	ch *event.Channel[Membership],
) error {
	username := c.Username()
	gen := ch.Generation()

	if err := conn.send(protocol.GroupRequest(action, groupID)); err != nil {
		return err
	}

	_, err := await(ctx, c, conn, ch, gen, func(m Membership) bool {
		return m.Group.ID == groupID && m.Username == username
	})
	if err != nil {
		return fmt.Errorf("Failed to %s group %d: %w", action, groupID, err)
	}

	return nil
}

// Groups fetches the group catalog.
func (c *Client) Groups(ctx context.Context) ([]state.Group, error) {
	conn, err := c.connection()
	if err != nil {
		return nil, err
	}

	if !c.Joined() {
		return nil, ErrNotJoined
	}

	catalog, err := c.fetchCatalog(ctx, conn)
	if err != nil {
		return nil, err
	}

	return catalog.Groups, nil
}

// GroupUsers fetches the user list of a group.
func (c *Client) GroupUsers(ctx context.Context, groupID int) (state.Group, error) {
	conn, err := c.connection()
	if err != nil {
		return state.Group{}, err
	}

	if err := c.checkGroup(ctx, conn, groupID, anyMembership); err != nil {
		return state.Group{}, err
	}

	gen := c.events.UserLists.Generation()

	if err := conn.send(protocol.GroupRequest(protocol.GroupUsers, groupID)); err != nil {
		return state.Group{}, err
	}

	list, err := await(ctx, c, conn, c.events.UserLists, gen, func(l UserList) bool {
		return l.Group.ID == groupID
	})
	if err != nil {
		return state.Group{}, fmt.Errorf("Failed to fetch users of group %d: %w", groupID, err)
	}

	return list.Group, nil
}

// LogOut leaves the server but keeps the connection open. The session is
// reset once the server confirms.
func (c *Client) LogOut(ctx context.Context) error {
	conn, err := c.connection()
	if err != nil {
		return err
	}

	c.session.Lock()
	joined, username := c.session.Joined(), c.session.Username()
	c.session.Unlock()

	if !joined {
		return ErrNotJoined
	}

	gen := c.events.UserLeft.Generation()

	if err := conn.send(protocol.LeaveRequest()); err != nil {
		return err
	}

	_, err = await(ctx, c, conn, c.events.UserLeft, gen, func(m Membership) bool {
		return m.Group.ID == state.GlobalGroupID && m.Username == username
	})
	if err != nil {
		return fmt.Errorf("Failed to log out: %w", err)
	}

	return nil
}

// Disconnect asks the server to close the connection and waits, for up to
// the disconnect timeout, for it to do so before closing it ourselves. The
// session is reset straight away.
func (c *Client) Disconnect(ctx context.Context) (err error) {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	conn.closing.Store(true)

	if serr := conn.send(protocol.DisconnectRequest()); serr != nil {
		c.log.Warn("Failed to send disconnect", zap.Error(serr))
	}

	c.endSession()

	c.waitForClose(ctx, conn)

	if cerr := conn.conn.Close(); cerr != nil {
		err = multierr.Append(err, fmt.Errorf("Failed to close the connection: %w", cerr))
	}

	conn.cancel(ErrDisconnected)

	select {
	case <-conn.done:
	case <-ctx.Done():
		err = multierr.Append(err, ctx.Err())
	}

	c.log.Info("Disconnected")

	return err
}

// waitForClose polls until the server has closed the connection or the
// disconnect timeout passes.
func (c *Client) waitForClose(ctx context.Context, conn *connection) {
	timeout := time.NewTimer(c.options.DisconnectTimeout)
	defer timeout.Stop()

	poll := time.NewTicker(c.options.DisconnectPoll)
	defer poll.Stop()

	for !conn.closed() {
		select {
		case <-poll.C:

		case <-timeout.C:
			c.log.Info("Server did not close the connection, closing it")
			return

		case <-ctx.Done():
			return
		}
	}
}

// Joined reports whether the server has accepted our username.
func (c *Client) Joined() bool {
	c.session.Lock()
	defer c.session.Unlock()

	return c.session.Joined()
}

func (c *Client) Username() string {
	c.session.Lock()
	defer c.session.Unlock()

	return c.session.Username()
}

// MemberGroups returns the IDs of the groups we are a member of.
func (c *Client) MemberGroups() []int {
	c.session.Lock()
	defer c.session.Unlock()

	return c.session.MemberIDs()
}

// KnownGroups returns every group in the local view, without asking the
// server.
func (c *Client) KnownGroups() []state.Group {
	c.session.Lock()
	defer c.session.Unlock()

	return c.session.Groups()
}

// Group returns a copy of a group from the local view.
func (c *Client) Group(id int) (state.Group, bool) {
	c.session.Lock()
	defer c.session.Unlock()

	g, ok := c.session.Group(id)
	if !ok {
		return state.Group{}, false
	}

	return g.Copy(), true
}

// FindGroup looks a group up by name in the local view.
func (c *Client) FindGroup(name string) (state.Group, bool) {
	c.session.Lock()
	defer c.session.Unlock()

	g, ok := c.session.FindGroup(name)
	if !ok {
		return state.Group{}, false
	}

	return g.Copy(), true
}

// Message returns a copy of a message from the local view.
func (c *Client) Message(groupID, messageID int) (state.Message, bool) {
	c.session.Lock()
	defer c.session.Unlock()

	m, ok := c.session.Message(groupID, messageID)
	if !ok {
		return state.Message{}, false
	}

	return *m, true
}

// Snapshot encodes the local view as JSON.
func (c *Client) Snapshot() ([]byte, error) {
	c.session.Lock()
	defer c.session.Unlock()

	return c.session.Backup()
}

type membership int

const (
	anyMembership membership = iota
	mustBeMember
	mustNotBeMember
)

// checkGroup checks the preconditions of a group operation, fetching the
// group catalog if groupID is not known yet.
func (c *Client) checkGroup(ctx context.Context, conn *connection, groupID int, want membership) error {
	c.session.Lock()
	joined := c.session.Joined()
	_, known := c.session.Group(groupID)
	c.session.Unlock()

	if !joined {
		return ErrNotJoined
	}

	if !known {
		if _, err := c.fetchCatalog(ctx, conn); err != nil {
			return err
		}
	}

	c.session.Lock()
	defer c.session.Unlock()

	if _, ok := c.session.Group(groupID); !ok {
		return fmt.Errorf("Group %d: %w", groupID, ErrInvalidGroup)
	}

	member := c.session.IsMember(groupID)

	switch {
	case want == mustBeMember && !member:
		return fmt.Errorf("Group %d: %w", groupID, ErrNotMember)

	case want == mustNotBeMember && member:
		return fmt.Errorf("Group %d: %w", groupID, ErrAlreadyMember)
	}

	return nil
}

// fetchCatalog asks for the group catalog and waits for it to be applied.
func (c *Client) fetchCatalog(ctx context.Context, conn *connection) (CatalogUpdate, error) {
	gen := c.events.Catalog.Generation()

	if err := conn.send(protocol.ListGroupsRequest()); err != nil {
		return CatalogUpdate{}, err
	}

	catalog, err := await(ctx, c, conn, c.events.Catalog, gen, func(CatalogUpdate) bool {
		return true
	})
	if err != nil {
		return CatalogUpdate{}, fmt.Errorf("Failed to fetch the group catalog: %w", err)
	}

	return catalog, nil
}

// resync is how the dispatcher learns about groups a push referenced before
// we knew about them.
func (c *Client) resync(ctx context.Context) error {
	conn, err := c.connection()
	if err != nil {
		return err
	}

	_, err = c.fetchCatalog(ctx, conn)
	return err
}

// connection returns the current connection if it still works.
func (c *Client) connection() (*connection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, ErrNotConnected
	}

	if err := c.conn.err(); err != nil {
		return nil, err
	}

	return c.conn, nil
}

// connectionLost resets the session, unless conn has already been replaced
// by a newer connection.
func (c *Client) connectionLost(conn *connection) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == conn {
		c.endSession()
	}
}

func (c *Client) endSession() {
	c.session.Lock()
	defer c.session.Unlock()

	c.session.Reset()
}

// await waits on ch for a payload published after gen that matches. The wait
// ends early when ctx ends, the request timeout passes or the connection is
// lost, whichever comes first.
func await[T any](
	ctx context.Context,
	c *Client,
	conn *connection,
	ch *event.Channel[T],
	gen uint64,
	match func(T) bool,
) (T, error) {
	ctx, cancelTimeout := context.WithTimeout(ctx, c.options.RequestTimeout)
	defer cancelTimeout()

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	stop := context.AfterFunc(conn.ctx, func() {
		cancel(context.Cause(conn.ctx))
	})
	defer stop()

	return ch.WaitSince(ctx, gen, match)
}
