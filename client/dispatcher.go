package client

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/luma/huddle/protocol"
	"github.com/luma/huddle/state"
)

// dispatcher validates server frames and applies them to the session.
//
// The session lock is held for validation, the state change and the publish,
// so a waiter woken by a payload always sees its effects in the session.
type dispatcher struct {
	session *state.Session
	events  *Events

	// resync fetches the group catalog. It is called without the session
	// lock held.
	resync func(ctx context.Context) error

	log *zap.Logger
}

func newDispatcher(
	session *state.Session,
	events *Events,
	resync func(ctx context.Context) error,
	log *zap.Logger,
) *dispatcher {
	return &dispatcher{
		session: session,
		events:  events,
		resync:  resync,
		log:     log,
	}
}

// dispatch handles one frame. The returned error says why the frame was
// dropped, it is never fatal to the connection.
func (d *dispatcher) dispatch(ctx context.Context, frame protocol.Frame) error {
	d.session.Lock()
	defer d.session.Unlock()

	if err := d.validate(frame); err != nil {
		return err
	}

	switch frame.Command {
	case protocol.VerifyUsername:
		return d.verifyUsername(frame)

	case protocol.SendGroupsList:
		return d.groupsList(frame)

	case protocol.SendMessageLabel:
		return d.messageLabel(ctx, frame)

	case protocol.SendMessageContent:
		return d.messageContent(frame)

	case protocol.SendUserList:
		return d.userList(ctx, frame)

	case protocol.UserJoinNotif:
		return d.userJoined(ctx, frame)

	case protocol.UserLeaveNotif:
		return d.userLeft(ctx, frame)

	case protocol.BadMessage:
		d.log.Warn("Server reported a bad message")
		d.events.BadMessages.Publish(BadMessage{})
		return nil

	default:
		return fmt.Errorf("%q: %w", frame.Command, ErrUnknownCommand)
	}
}

func (d *dispatcher) validate(frame protocol.Frame) error {
	minParams, ok := protocol.MinParameters(frame.Command)
	if !ok {
		return fmt.Errorf("%q: %w", frame.Command, ErrUnknownCommand)
	}

	if len(frame.Params) < minParams {
		return fmt.Errorf("%s expected %d parameters, received %d: %w",
			frame.Command, minParams, len(frame.Params), ErrTooFewParameters)
	}

	if !d.session.Joined() &&
		frame.Command != protocol.VerifyUsername &&
		frame.Command != protocol.BadMessage {
		return fmt.Errorf("%s before joining: %w", frame.Command, ErrOutOfSequence)
	}

	return nil
}

func (d *dispatcher) verifyUsername(frame protocol.Frame) error {
	accepted := frame.Bool(0)
	username := d.session.Username()

	if accepted {
		d.session.Join()
	} else {
		d.session.SetUsername("")
	}

	d.events.Verified.Publish(Verification{
		Username: username,
		Accepted: accepted,
	})

	return nil
}

func (d *dispatcher) groupsList(frame protocol.Frame) error {
	names := frame.List(0)
	rawIDs := frame.List(1)

	if len(names) != len(rawIDs) {
		d.log.Warn("Group names and ids differ in length",
			zap.Int("names", len(names)),
			zap.Int("ids", len(rawIDs)))
	}

	n := len(names)
	if len(rawIDs) < n {
		n = len(rawIDs)
	}

	// Parse everything before touching the session
	ids := make([]int, n)
	idFrame := protocol.Frame{Command: frame.Command, Params: rawIDs}
	for i := 0; i < n; i++ {
		id, err := idFrame.Int(i)
		if err != nil {
			return err
		}

		ids[i] = id
	}

	for i, id := range ids {
		d.session.AddGroup(id, names[i])
	}

	d.events.Catalog.Publish(CatalogUpdate{Groups: d.session.Groups()})

	return nil
}

func (d *dispatcher) messageLabel(ctx context.Context, frame protocol.Frame) error {
	groupID, err := frame.Int(0)
	if err != nil {
		return err
	}

	messageID, err := frame.Int(1)
	if err != nil {
		return err
	}

	if _, err := d.resolveGroup(ctx, groupID); err != nil {
		return err
	}

	m, ok := d.session.PutLabel(state.Message{
		GroupID:   groupID,
		MessageID: messageID,
		Username:  frame.Param(2),
		PostDate:  frame.Param(3),
		Subject:   frame.Param(4),
	})
	if !ok {
		return fmt.Errorf("label for group %d: %w", groupID, ErrUnresolvableReference)
	}

	d.events.Labels.Publish(Label{Message: *m})

	return nil
}

func (d *dispatcher) messageContent(frame protocol.Frame) error {
	groupID, err := frame.Int(0)
	if err != nil {
		return err
	}

	messageID, err := frame.Int(1)
	if err != nil {
		return err
	}

	// Servers that leave the flag off only send content for valid messages
	valid := !frame.HasParam(3) || frame.Bool(3)

	payload := Content{GroupID: groupID, MessageID: messageID, Valid: valid}

	if valid {
		if m, ok := d.session.Message(groupID, messageID); ok {
			m.SetContent(frame.Param(2))

			msg := *m
			payload.Message = &msg
		} else {
			d.log.Info("Content arrived without a label",
				zap.Int("groupID", groupID),
				zap.Int("messageID", messageID))
		}
	}

	d.events.Contents.Publish(payload)

	return nil
}

func (d *dispatcher) userList(ctx context.Context, frame protocol.Frame) error {
	groupID, err := frame.Int(0)
	if err != nil {
		return err
	}

	g, err := d.resolveGroup(ctx, groupID)
	if err != nil {
		return err
	}

	g.SetUsers(frame.List(1))

	d.events.UserLists.Publish(UserList{Group: g.Copy()})

	return nil
}

func (d *dispatcher) userJoined(ctx context.Context, frame protocol.Frame) error {
	groupID, err := frame.Int(0)
	if err != nil {
		return err
	}

	g, err := d.resolveGroup(ctx, groupID)
	if err != nil {
		return err
	}

	username := frame.Param(1)
	g.AddUser(username)

	if username == d.session.Username() {
		d.session.AddMember(groupID)
	}

	d.events.UserJoined.Publish(Membership{Group: g.Copy(), Username: username})

	return nil
}

func (d *dispatcher) userLeft(ctx context.Context, frame protocol.Frame) error {
	groupID, err := frame.Int(0)
	if err != nil {
		return err
	}

	g, err := d.resolveGroup(ctx, groupID)
	if err != nil {
		return err
	}

	username := frame.Param(1)
	g.RemoveUser(username)

	self := username == d.session.Username()
	if self {
		d.session.RemoveMember(groupID)
	}

	d.events.UserLeft.Publish(Membership{Group: g.Copy(), Username: username})

	if self && groupID == state.GlobalGroupID {
		// We have logged out
		d.log.Info("Logged out", zap.String("username", username))
		d.session.Reset()
	}

	return nil
}

// resolveGroup returns the group with id, fetching the group catalog if the
// group is not known yet. The session lock is released while the catalog is
// fetched, so the session must be re-checked afterwards.
func (d *dispatcher) resolveGroup(ctx context.Context, id int) (*state.Group, error) {
	if g, ok := d.session.Group(id); ok {
		return g, nil
	}

	d.log.Info("Unknown group, fetching the group catalog", zap.Int("groupID", id))

	d.session.Unlock()
	err := d.resync(ctx)
	d.session.Lock()

	if err != nil {
		d.log.Warn("Failed to fetch the group catalog", zap.Error(err))
	}

	if !d.session.Joined() {
		return nil, fmt.Errorf("session ended while fetching group %d: %w", id, ErrOutOfSequence)
	}

	if g, ok := d.session.Group(id); ok {
		return g, nil
	}

	return nil, fmt.Errorf("group %d: %w", id, ErrUnresolvableReference)
}
