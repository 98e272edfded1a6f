package peer_test

import (
	"context"
	"net"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/huddle/internal/peer"
	"github.com/luma/huddle/protocol"
)

type testConn struct {
	net.Conn
	r *protocol.FrameReader
}

func dialPeer(server *peer.Server) *testConn {
	conn, err := net.Dial("tcp", server.Addr())
	Expect(err).To(Succeed())

	return &testConn{Conn: conn, r: protocol.NewFrameReader(conn, 0)}
}

func (c *testConn) send(frame protocol.Frame) {
	Expect(protocol.WriteFrame(c, frame)).To(Succeed())
}

func (c *testConn) next() protocol.Frame {
	Expect(c.SetReadDeadline(time.Now().Add(2 * time.Second))).To(Succeed())

	raw, err := c.r.ReadFrame()
	Expect(err).To(Succeed())

	frame, err := protocol.Decode(raw)
	Expect(err).To(Succeed())

	return frame
}

func (c *testConn) join(username string) {
	c.send(protocol.JoinRequest(username))
	Expect(c.next()).To(Equal(protocol.Frame{Command: protocol.VerifyUsername, Params: []string{"1"}}))
	Expect(c.next()).To(Equal(protocol.Frame{Command: protocol.UserJoinNotif, Params: []string{"0", username}}))
}

var _ = Describe("peer", func() {
	var (
		room   *peer.Room
		server *peer.Server
	)

	BeforeEach(func() {
		room = peer.NewRoom(nil, "Global", "Cats", "Dogs")
		room.Now = func() time.Time {
			return time.Date(2021, 9, 1, 12, 0, 0, 0, time.UTC)
		}

		server = peer.NewServer(peer.Options{
			Host:    "127.0.0.1",
			Handler: room,
		})
		Expect(server.Start(context.Background())).To(Succeed())
	})

	AfterEach(func() {
		Expect(server.Close()).To(Succeed())
	})

	It("verifies a new username and announces it", func() {
		alice := dialPeer(server)
		defer alice.Close()

		alice.join("alice")
	})

	It("rejects taken and malformed usernames", func() {
		alice := dialPeer(server)
		defer alice.Close()
		alice.join("alice")

		bob := dialPeer(server)
		defer bob.Close()

		bob.send(protocol.JoinRequest("alice"))
		Expect(bob.next()).To(Equal(protocol.Frame{Command: protocol.VerifyUsername, Params: []string{"0"}}))

		bob.send(protocol.JoinRequest("bob smith"))
		Expect(bob.next()).To(Equal(protocol.Frame{Command: protocol.VerifyUsername, Params: []string{"0"}}))
	})

	It("lists groups and their users", func() {
		alice := dialPeer(server)
		defer alice.Close()
		alice.join("alice")

		alice.send(protocol.ListGroupsRequest())
		Expect(alice.next()).To(Equal(protocol.Frame{
			Command: protocol.SendGroupsList,
			Params:  []string{"Global,Cats,Dogs", "0,1,2"},
		}))

		alice.send(protocol.GroupRequest(protocol.GroupUsers, 0))
		Expect(alice.next()).To(Equal(protocol.Frame{
			Command: protocol.SendUserList,
			Params:  []string{"0", "alice"},
		}))
	})

	It("posts and retrieves messages in a group", func() {
		alice := dialPeer(server)
		defer alice.Close()
		alice.join("alice")

		alice.send(protocol.GroupRequest(protocol.GroupJoin, 1))
		Expect(alice.next()).To(Equal(protocol.Frame{Command: protocol.UserJoinNotif, Params: []string{"1", "alice"}}))

		alice.send(protocol.PostRequest(1, "Hi", "Meow"))
		Expect(alice.next()).To(Equal(protocol.Frame{
			Command: protocol.SendMessageLabel,
			Params:  []string{"1", "1", "alice", "2021-09-01T12:00:00Z", "Hi"},
		}))

		alice.send(protocol.RetrieveRequest(1, 1))
		Expect(alice.next()).To(Equal(protocol.Frame{
			Command: protocol.SendMessageContent,
			Params:  []string{"1", "1", "Meow", "1"},
		}))

		alice.send(protocol.RetrieveRequest(1, 7))
		Expect(alice.next()).To(Equal(protocol.Frame{
			Command: protocol.SendMessageContent,
			Params:  []string{"1", "7", "", "0"},
		}))
	})

	It("refuses to post to a group the user is not in", func() {
		alice := dialPeer(server)
		defer alice.Close()
		alice.join("alice")

		alice.send(protocol.PostRequest(2, "Hi", "Woof"))
		Expect(alice.next()).To(Equal(protocol.Frame{Command: protocol.BadMessage}))
	})

	It("answers unknown commands with BAD_MESSAGE", func() {
		alice := dialPeer(server)
		defer alice.Close()

		alice.send(protocol.Frame{Command: "PING"})
		Expect(alice.next()).To(Equal(protocol.Frame{Command: protocol.BadMessage}))
	})

	It("tells other members when someone leaves", func() {
		alice := dialPeer(server)
		defer alice.Close()
		alice.join("alice")

		bob := dialPeer(server)
		defer bob.Close()
		bob.join("bob")

		Expect(alice.next()).To(Equal(protocol.Frame{Command: protocol.UserJoinNotif, Params: []string{"0", "bob"}}))

		bob.send(protocol.LeaveRequest())
		Expect(bob.next()).To(Equal(protocol.Frame{Command: protocol.UserLeaveNotif, Params: []string{"0", "bob"}}))
		Expect(alice.next()).To(Equal(protocol.Frame{Command: protocol.UserLeaveNotif, Params: []string{"0", "bob"}}))
	})

	It("closes the connection after DISCONNECT", func() {
		alice := dialPeer(server)
		defer alice.Close()
		alice.join("alice")

		alice.send(protocol.DisconnectRequest())
		Expect(alice.next()).To(Equal(protocol.Frame{Command: protocol.UserLeaveNotif, Params: []string{"0", "alice"}}))

		Expect(alice.SetReadDeadline(time.Now().Add(2 * time.Second))).To(Succeed())
		_, err := alice.r.ReadFrame()
		Expect(err).To(HaveOccurred())
	})
})
