package peer

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luma/huddle/protocol"
)

type roomMessage struct {
	id       int
	username string
	postDate string
	subject  string
	content  string
}

type roomGroup struct {
	id       int
	name     string
	users    []string
	messages []*roomMessage
}

func (g *roomGroup) has(username string) bool {
	for _, u := range g.users {
		if u == username {
			return true
		}
	}

	return false
}

func (g *roomGroup) remove(username string) {
	for i, u := range g.users {
		if u == username {
			g.users = append(g.users[:i:i], g.users[i+1:]...)
			return
		}
	}
}

// Room is a small in memory chat server. It is good enough to try the client
// against and to run integration tests, it keeps nothing once it stops.
type Room struct {
	mu     sync.Mutex
	groups []*roomGroup
	users  map[string]*Conn
	names  map[*Conn]string

	// Now stamps posted messages
	Now func() time.Time

	log *zap.Logger
}

// NewRoom creates a room with a group per name, the first one gets ID 0.
// With no names a single "Global" group is created.
func NewRoom(log *zap.Logger, groupNames ...string) *Room {
	if log == nil {
		log = zap.NewNop()
	}

	if len(groupNames) == 0 {
		groupNames = []string{"Global"}
	}

	r := &Room{
		users: make(map[string]*Conn),
		names: make(map[*Conn]string),
		Now:   time.Now,
		log:   log,
	}

	for id, name := range groupNames {
		r.groups = append(r.groups, &roomGroup{id: id, name: name, users: []string{}})
	}

	return r
}

func (r *Room) HandleFrame(conn *Conn, frame protocol.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error

	switch frame.Command {
	case protocol.JOIN:
		err = r.join(conn, frame.Param(0))

	case protocol.LEAVE:
		err = r.leave(conn)

	case protocol.GROUP:
		err = r.group(conn, frame)

	case protocol.MESSAGE:
		err = r.message(conn, frame)

	case protocol.DISCONNECT:
		err = r.leave(conn)
		conn.HangUp()

	default:
		err = conn.Send(protocol.Frame{Command: protocol.BadMessage})
	}

	if err != nil {
		r.log.Warn("Failed to handle frame",
			zap.String("command", string(frame.Command)),
			zap.Error(err))
	}
}

func (r *Room) Disconnected(conn *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.leave(conn); err != nil {
		r.log.Warn("Failed to announce disconnect", zap.Error(err))
	}
}

func (r *Room) join(conn *Conn, username string) error {
	_, taken := r.users[username]
	_, already := r.names[conn]

	if username == "" || strings.ContainsAny(username, ", ") || taken || already {
		return conn.Send(protocol.Frame{
			Command: protocol.VerifyUsername,
			Params:  []string{protocol.FormatBool(false)},
		})
	}

	r.users[username] = conn
	r.names[conn] = username

	err := conn.Send(protocol.Frame{
		Command: protocol.VerifyUsername,
		Params:  []string{protocol.FormatBool(true)},
	})

	return multierr.Append(err, r.addToGroup(r.groups[0], username))
}

// leave removes the connection's user from every group, the global group
// last, so the client sees its own log out confirmation after everything
// else.
func (r *Room) leave(conn *Conn) (err error) {
	username, ok := r.names[conn]
	if !ok {
		return nil
	}

	for i := len(r.groups) - 1; i >= 0; i-- {
		if g := r.groups[i]; g.has(username) {
			err = multierr.Append(err, r.removeFromGroup(g, username))
		}
	}

	delete(r.users, username)
	delete(r.names, conn)

	return err
}

func (r *Room) group(conn *Conn, frame protocol.Frame) error {
	username, joined := r.names[conn]
	if !joined {
		return r.bad(conn)
	}

	action := protocol.GroupAction(frame.Param(0))

	if action == protocol.GroupList {
		names := make([]string, 0, len(r.groups))
		ids := make([]string, 0, len(r.groups))
		for _, g := range r.groups {
			names = append(names, g.name)
			ids = append(ids, strconv.Itoa(g.id))
		}

		return conn.Send(protocol.Frame{
			Command: protocol.SendGroupsList,
			Params:  []string{strings.Join(names, ","), strings.Join(ids, ",")},
		})
	}

	g, ok := r.lookup(frame.Param(1))
	if !ok {
		return r.bad(conn)
	}

	switch action {
	case protocol.GroupUsers:
		return conn.Send(protocol.Frame{
			Command: protocol.SendUserList,
			Params:  []string{strconv.Itoa(g.id), strings.Join(g.users, ",")},
		})

	case protocol.GroupJoin:
		if g.has(username) {
			return r.bad(conn)
		}

		return r.addToGroup(g, username)

	case protocol.GroupLeave:
		if !g.has(username) || g.id == 0 {
			return r.bad(conn)
		}

		return r.removeFromGroup(g, username)

	default:
		return r.bad(conn)
	}
}

func (r *Room) message(conn *Conn, frame protocol.Frame) error {
	username, joined := r.names[conn]
	if !joined {
		return r.bad(conn)
	}

	g, ok := r.lookup(frame.Param(1))
	if !ok || !g.has(username) {
		return r.bad(conn)
	}

	switch protocol.MessageAction(frame.Param(0)) {
	case protocol.POST:
		m := &roomMessage{
			id:       len(g.messages) + 1,
			username: username,
			postDate: r.Now().UTC().Format(time.RFC3339),
			subject:  frame.Param(3),
			content:  frame.Param(4),
		}
		g.messages = append(g.messages, m)

		return r.broadcast(g, protocol.Frame{
			Command: protocol.SendMessageLabel,
			Params: []string{
				strconv.Itoa(g.id),
				strconv.Itoa(m.id),
				m.username,
				m.postDate,
				m.subject,
			},
		})

	case protocol.RETRIEVE:
		id, err := frame.Int(2)
		valid := err == nil && id >= 1 && id <= len(g.messages)

		content := ""
		if valid {
			content = g.messages[id-1].content
		}

		return conn.Send(protocol.Frame{
			Command: protocol.SendMessageContent,
			Params: []string{
				strconv.Itoa(g.id),
				frame.Param(2),
				content,
				protocol.FormatBool(valid),
			},
		})

	default:
		return r.bad(conn)
	}
}

func (r *Room) addToGroup(g *roomGroup, username string) error {
	g.users = append(g.users, username)

	return r.broadcast(g, protocol.Frame{
		Command: protocol.UserJoinNotif,
		Params:  []string{strconv.Itoa(g.id), username},
	})
}

// removeFromGroup tells every member, including the one leaving, and then
// removes the user.
func (r *Room) removeFromGroup(g *roomGroup, username string) error {
	err := r.broadcast(g, protocol.Frame{
		Command: protocol.UserLeaveNotif,
		Params:  []string{strconv.Itoa(g.id), username},
	})

	g.remove(username)
	return err
}

func (r *Room) broadcast(g *roomGroup, frame protocol.Frame) (err error) {
	for _, username := range g.users {
		if conn, ok := r.users[username]; ok {
			err = multierr.Append(err, conn.Send(frame))
		}
	}

	return err
}

func (r *Room) lookup(rawID string) (*roomGroup, bool) {
	id, err := strconv.Atoi(rawID)
	if err != nil || id < 0 || id >= len(r.groups) {
		return nil, false
	}

	return r.groups[id], true
}

func (r *Room) bad(conn *Conn) error {
	return conn.Send(protocol.Frame{Command: protocol.BadMessage})
}

var _ Handler = (*Room)(nil)
