package web_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/tidwall/gjson"

	"github.com/luma/huddle/client"
	"github.com/luma/huddle/internal/peer"
	"github.com/luma/huddle/presenter/web"
)

var _ = Describe("web", func() {
	var (
		ctx     context.Context
		server  *peer.Server
		c       *client.Client
		handler http.Handler
	)

	do := func(method, path, body string) *httptest.ResponseRecorder {
		var req *http.Request
		if body == "" {
			req = httptest.NewRequest(method, path, nil)
		} else {
			req = httptest.NewRequest(method, path, strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
		}

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		return rec
	}

	BeforeEach(func() {
		ctx = context.Background()

		server = peer.NewServer(peer.Options{
			Host:    "127.0.0.1",
			Handler: peer.NewRoom(nil, "Global", "Cats"),
		})
		Expect(server.Start(ctx)).To(Succeed())

		c = client.New(client.Options{RequestTimeout: 2 * time.Second})
		handler = web.New(c, web.Options{PollTimeout: 100 * time.Millisecond}).Handler()
	})

	AfterEach(func() {
		if c.Connected() {
			Expect(c.Disconnect(ctx)).To(Succeed())
		}
		Expect(server.Close()).To(Succeed())
	})

	It("answers pings", func() {
		rec := do(http.MethodGet, "/ping", "")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(Equal("pong"))
	})

	It("refuses requests before connecting", func() {
		rec := do(http.MethodPost, "/join", `{"username":"alice"}`)
		Expect(rec.Code).To(Equal(http.StatusConflict))
	})

	It("validates request bodies", func() {
		rec := do(http.MethodPost, "/connect", `{}`)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	Describe("once joined", func() {
		BeforeEach(func() {
			rec := do(http.MethodPost, "/connect", `{"addr":"`+server.Addr()+`"}`)
			Expect(rec.Code).To(Equal(http.StatusOK))

			rec = do(http.MethodPost, "/join", `{"username":"alice"}`)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(gjson.Get(rec.Body.String(), "joined").Bool()).To(BeTrue())
		})

		It("reports its status", func() {
			rec := do(http.MethodGet, "/status", "")
			Expect(rec.Code).To(Equal(http.StatusOK))

			body := rec.Body.String()
			Expect(gjson.Get(body, "connected").Bool()).To(BeTrue())
			Expect(gjson.Get(body, "username").String()).To(Equal("alice"))
			Expect(gjson.Get(body, "members").String()).To(Equal("[0]"))
		})

		It("lists groups and joins one by name", func() {
			rec := do(http.MethodGet, "/groups", "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(gjson.Get(rec.Body.String(), "#.name").String()).To(Equal(`["Global","Cats"]`))

			rec = do(http.MethodPost, "/groups/Cats/join", "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(gjson.Get(rec.Body.String(), "members").String()).To(Equal("[0,1]"))

			rec = do(http.MethodGet, "/groups/1/users", "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(gjson.Get(rec.Body.String(), "users").String()).To(Equal(`["alice"]`))

			rec = do(http.MethodPost, "/groups/Cats/leave", "")
			Expect(rec.Code).To(Equal(http.StatusOK))

			rec = do(http.MethodPost, "/groups/Cats/leave", "")
			Expect(rec.Code).To(Equal(http.StatusConflict))

			rec = do(http.MethodPost, "/groups/Dogs/join", "")
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})

		It("posts and retrieves messages", func() {
			rec := do(http.MethodPost, "/groups/0/messages", `{"subject":"Hi","content":"Hello"}`)
			Expect(rec.Code).To(Equal(http.StatusCreated))
			Expect(gjson.Get(rec.Body.String(), "messageID").Int()).To(Equal(int64(1)))

			rec = do(http.MethodGet, "/groups/0/messages/1", "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(gjson.Get(rec.Body.String(), "content").String()).To(Equal("Hello"))

			rec = do(http.MethodGet, "/groups/0/messages/5", "")
			Expect(rec.Code).To(Equal(http.StatusNotFound))

			rec = do(http.MethodGet, "/groups/0/messages/first", "")
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("feeds pushes to pollers", func() {
			rec := do(http.MethodGet, "/events?after=0", "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(gjson.Get(rec.Body.String(), "seq").Int()).To(BeNumerically(">=", 1))

			rec = do(http.MethodGet, "/events", "")
			Expect(rec.Code).To(Equal(http.StatusNoContent))
			seq := rec.Header().Get("X-Huddle-Seq")

			do(http.MethodPost, "/groups/0/messages", `{"subject":"Hi","content":"Hello"}`)

			// Skip anything that arrived between the polls
			var push gjson.Result
			for i := 0; i < 10 && push.Get("kind").String() != "label"; i++ {
				rec = do(http.MethodGet, "/events?after="+seq, "")
				Expect(rec.Code).To(Equal(http.StatusOK))

				push = gjson.Parse(rec.Body.String())
				seq = push.Get("seq").String()
			}

			Expect(push.Get("kind").String()).To(Equal("label"))
			Expect(push.Get("message.subject").String()).To(Equal("Hi"))
		})

		It("queries the session state", func() {
			rec := do(http.MethodGet, "/state?path=username", "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(Equal(`"alice"`))

			rec = do(http.MethodGet, "/state?path=nothing", "")
			Expect(rec.Code).To(Equal(http.StatusNotFound))

			rec = do(http.MethodGet, "/state", "")
			Expect(gjson.Get(rec.Body.String(), "joined").Bool()).To(BeTrue())
		})

		It("logs out and disconnects", func() {
			rec := do(http.MethodPost, "/logout", "")
			Expect(rec.Code).To(Equal(http.StatusNoContent))
			Expect(c.Joined()).To(BeFalse())

			rec = do(http.MethodPost, "/disconnect", "")
			Expect(rec.Code).To(Equal(http.StatusNoContent))
			Expect(c.Connected()).To(BeFalse())
		})
	})
})
