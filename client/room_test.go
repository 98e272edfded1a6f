package client_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/huddle/client"
	"github.com/luma/huddle/internal/peer"
)

var _ = Describe("client against a room", func() {
	var (
		ctx        context.Context
		server     *peer.Server
		alice, bob *client.Client
	)

	BeforeEach(func() {
		ctx = context.Background()

		server = peer.NewServer(peer.Options{
			Host:    "127.0.0.1",
			Handler: peer.NewRoom(nil, "Global", "Cats"),
		})
		Expect(server.Start(ctx)).To(Succeed())

		alice = client.New(client.Options{RequestTimeout: 2 * time.Second})
		bob = client.New(client.Options{RequestTimeout: 2 * time.Second})

		for name, c := range map[string]*client.Client{"alice": alice, "bob": bob} {
			Expect(c.Connect(ctx, "tcp://"+server.Addr())).To(Succeed())

			ok, err := c.Join(ctx, name)
			Expect(err).To(Succeed())
			Expect(ok).To(BeTrue())
		}
	})

	AfterEach(func() {
		_ = alice.Disconnect(ctx)
		_ = bob.Disconnect(ctx)
		Expect(server.Close()).To(Succeed())
	})

	It("shares messages between members of a group", func() {
		Expect(alice.JoinGroup(ctx, 1)).To(Succeed())
		Expect(bob.JoinGroup(ctx, 1)).To(Succeed())

		posted, err := alice.PostMessage(ctx, 1, "Hi", "Meow")
		Expect(err).To(Succeed())

		Eventually(func() bool {
			_, ok := bob.Message(1, posted.MessageID)
			return ok
		}).Should(BeTrue())

		m, err := bob.RetrieveMessage(ctx, 1, posted.MessageID)
		Expect(err).To(Succeed())
		Expect(m.Username).To(Equal("alice"))
		Expect(m.Content).To(Equal("Meow"))

		_, err = bob.RetrieveMessage(ctx, 1, 99)
		Expect(err).To(MatchError(client.ErrMessageUnavailable))
	})

	It("keeps user lists in step", func() {
		g, err := alice.GroupUsers(ctx, 0)
		Expect(err).To(Succeed())
		Expect(g.Users).To(ConsistOf("alice", "bob"))

		Expect(bob.LogOut(ctx)).To(Succeed())

		Eventually(func() []string {
			g, _ := alice.Group(0)
			return g.Users
		}).Should(Equal([]string{"alice"}))
	})

	It("lets the server close the connection on disconnect", func() {
		Expect(bob.Disconnect(ctx)).To(Succeed())
		Expect(bob.Connected()).To(BeFalse())

		Eventually(func() []string {
			g, _ := alice.Group(0)
			return g.Users
		}).Should(Equal([]string{"alice"}))
	})
})
