package client_test

import (
	"context"
	"errors"
	"net"
	"sync"

	. "github.com/onsi/gomega"

	"github.com/luma/huddle/protocol"
	"github.com/luma/huddle/transport"
)

var errNoPipe = errors.New("No pipe left to dial")

// fakeServer is the far end of a net.Pipe. It records every frame the client
// sends and answers them with respond.
type fakeServer struct {
	conn net.Conn
	r    *protocol.FrameReader

	received chan protocol.Frame

	mu      sync.Mutex
	respond func(s *fakeServer, frame protocol.Frame)

	writeMu sync.Mutex
}

func newFakeServer() (*fakeServer, transport.Conn) {
	client, server := net.Pipe()

	s := &fakeServer{
		conn:     server,
		r:        protocol.NewFrameReader(server, 0),
		received: make(chan protocol.Frame, 256),
	}

	go s.readLoop()

	return s, transport.Wrap(client)
}

func (s *fakeServer) readLoop() {
	for {
		raw, err := s.r.ReadFrame()
		if err != nil {
			return
		}

		frame, err := protocol.Decode(raw)
		if err != nil {
			continue
		}

		s.received <- frame

		s.mu.Lock()
		respond := s.respond
		s.mu.Unlock()

		if respond != nil {
			respond(s, frame)
		}
	}
}

func (s *fakeServer) onFrame(respond func(s *fakeServer, frame protocol.Frame)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.respond = respond
}

func (s *fakeServer) push(command protocol.Command, params ...string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	Expect(protocol.WriteCommand(s.conn, command, params...)).To(Succeed())
}

// tryPush is push for goroutines other than the test's own.
func (s *fakeServer) tryPush(command protocol.Command, params ...string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_ = protocol.WriteCommand(s.conn, command, params...)
}

func (s *fakeServer) close() {
	s.conn.Close()
}

// pipeDialer hands out connections that already exist, one per Dial.
type pipeDialer struct {
	conns chan transport.Conn
}

func newPipeDialer(conns ...transport.Conn) *pipeDialer {
	d := &pipeDialer{conns: make(chan transport.Conn, 8)}
	for _, conn := range conns {
		d.conns <- conn
	}

	return d
}

func (d *pipeDialer) Dial(ctx context.Context, addr string) (transport.Conn, error) {
	select {
	case conn := <-d.conns:
		return conn, nil
	default:
		return nil, errNoPipe
	}
}

// gatedDialer holds every Dial until open is closed.
type gatedDialer struct {
	*pipeDialer
	open chan struct{}
}

func (d *gatedDialer) Dial(ctx context.Context, addr string) (transport.Conn, error) {
	select {
	case <-d.open:
		return d.pipeDialer.Dial(ctx, addr)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// standardReplies answers like a well behaved server with a Global group
// and a Cats group.
func standardReplies(s *fakeServer, frame protocol.Frame) {
	switch frame.Command {
	case protocol.JOIN:
		s.tryPush(protocol.VerifyUsername, "1")

	case protocol.GROUP:
		switch protocol.GroupAction(frame.Param(0)) {
		case protocol.GroupList:
			s.tryPush(protocol.SendGroupsList, "Global,Cats", "0,1")

		case protocol.GroupUsers:
			s.tryPush(protocol.SendUserList, frame.Param(1), "alice,bob")

		case protocol.GroupJoin:
			s.tryPush(protocol.UserJoinNotif, frame.Param(1), "alice")

		case protocol.GroupLeave:
			s.tryPush(protocol.UserLeaveNotif, frame.Param(1), "alice")
		}

	case protocol.MESSAGE:
		switch protocol.MessageAction(frame.Param(0)) {
		case protocol.POST:
			s.tryPush(protocol.SendMessageLabel, frame.Param(1), "1", "alice", "2021-09-01", frame.Param(3))

		case protocol.RETRIEVE:
			s.tryPush(protocol.SendMessageContent, frame.Param(1), frame.Param(2), "content "+frame.Param(2), "1")
		}

	case protocol.LEAVE:
		s.tryPush(protocol.UserLeaveNotif, "0", "alice")

	case protocol.DISCONNECT:
		s.close()
	}
}
