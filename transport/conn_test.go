package transport_test

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/huddle/transport"
)

var _ = Describe("transport", func() {
	Describe("DialerFor()", func() {
		It("uses TCP for bare and tcp:// addresses", func() {
			d, err := transport.DialerFor("localhost:1234", transport.Options{})
			Expect(err).To(Succeed())
			Expect(d).To(BeAssignableToTypeOf(&transport.TCPDialer{}))

			d, err = transport.DialerFor("tcp://localhost:1234", transport.Options{})
			Expect(err).To(Succeed())
			Expect(d).To(BeAssignableToTypeOf(&transport.TCPDialer{}))
		})

		It("uses WebSockets for ws:// and wss:// addresses", func() {
			d, err := transport.DialerFor("ws://localhost:1234/chat", transport.Options{})
			Expect(err).To(Succeed())
			Expect(d).To(BeAssignableToTypeOf(&transport.WebSocketDialer{}))

			d, err = transport.DialerFor("wss://localhost:1234/chat", transport.Options{})
			Expect(err).To(Succeed())
			Expect(d).To(BeAssignableToTypeOf(&transport.WebSocketDialer{}))
		})

		It("rejects other schemes", func() {
			_, err := transport.DialerFor("udp://localhost:1234", transport.Options{})
			Expect(err).To(MatchError(transport.ErrUnsupportedScheme))
		})
	})

	Describe("Wrap()", func() {
		It("notices when the other side closes", func() {
			client, server := net.Pipe()
			conn := transport.Wrap(client)

			Expect(conn.Closed()).To(BeFalse())
			Expect(server.Close()).To(Succeed())

			_, err := conn.Read(make([]byte, 1))
			Expect(err).To(MatchError(io.EOF))
			Expect(conn.Closed()).To(BeTrue())
		})

		It("can be closed twice", func() {
			client, server := net.Pipe()
			defer server.Close()

			conn := transport.Wrap(client)
			Expect(conn.Close()).To(Succeed())
			Expect(conn.Close()).To(Succeed())
			Expect(conn.Closed()).To(BeTrue())
		})
	})

	Describe("TCP", func() {
		var listener net.Listener

		BeforeEach(func() {
			var err error
			listener, err = net.Listen("tcp", "127.0.0.1:0")
			Expect(err).To(Succeed())
		})

		AfterEach(func() {
			listener.Close()
		})

		It("exchanges bytes with the server", func() {
			accepted := make(chan net.Conn, 1)
			go func() {
				defer GinkgoRecover()

				conn, err := listener.Accept()
				Expect(err).To(Succeed())
				accepted <- conn
			}()

			conn, err := transport.Dial(context.Background(), "tcp://"+listener.Addr().String(), transport.Options{
				DialTimeout: time.Second,
			})
			Expect(err).To(Succeed())
			defer conn.Close()

			server := <-accepted
			defer server.Close()

			_, err = conn.Write([]byte("GROUP\r\nLIST\r\n-1\x00"))
			Expect(err).To(Succeed())

			line, err := bufio.NewReader(server).ReadString(0)
			Expect(err).To(Succeed())
			Expect(line).To(Equal("GROUP\r\nLIST\r\n-1\x00"))

			Expect(server.Close()).To(Succeed())

			_, err = conn.Read(make([]byte, 8))
			Expect(err).To(HaveOccurred())
			Expect(conn.Closed()).To(BeTrue())
		})

		It("fails to connect when nobody is listening", func() {
			addr := listener.Addr().String()
			listener.Close()

			_, err := transport.Dial(context.Background(), addr, transport.Options{})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("WebSocket", func() {
		var listener net.Listener

		BeforeEach(func() {
			var err error
			listener, err = net.Listen("tcp", "127.0.0.1:0")
			Expect(err).To(Succeed())
		})

		AfterEach(func() {
			listener.Close()
		})

		It("turns messages into a byte stream", func() {
			received := make(chan []byte, 1)

			go func() {
				defer GinkgoRecover()

				conn, err := listener.Accept()
				Expect(err).To(Succeed())
				defer conn.Close()

				_, err = ws.Upgrade(conn)
				Expect(err).To(Succeed())

				data, _, err := wsutil.ReadClientData(conn)
				Expect(err).To(Succeed())
				received <- data

				// Two frames in one message
				Expect(wsutil.WriteServerText(conn, []byte("VERIFY_USERNAME\r\n1\x00BAD_MESSAGE\x00"))).To(Succeed())

				// And the close handshake
				_, _, _ = wsutil.ReadClientData(conn)
			}()

			conn, err := transport.Dial(context.Background(), "ws://"+listener.Addr().String()+"/", transport.Options{
				DialTimeout: time.Second,
			})
			Expect(err).To(Succeed())

			_, err = conn.Write([]byte("JOIN\r\nalice\x00"))
			Expect(err).To(Succeed())
			Eventually(received).Should(Receive(Equal([]byte("JOIN\r\nalice\x00"))))

			r := bufio.NewReader(conn)

			frame, err := r.ReadString(0)
			Expect(err).To(Succeed())
			Expect(frame).To(Equal("VERIFY_USERNAME\r\n1\x00"))

			frame, err = r.ReadString(0)
			Expect(err).To(Succeed())
			Expect(frame).To(Equal("BAD_MESSAGE\x00"))

			Expect(conn.Close()).To(Succeed())
			Expect(conn.Closed()).To(BeTrue())
		})

		It("keeps pong replies apart from messages written at the same time", func() {
			const (
				pings    = 50
				messages = 200
				message  = "GROUP\r\nLIST\r\n-1\x00"
			)

			type tally struct {
				pongs, texts int
				err          error
			}
			result := make(chan tally, 1)

			go func() {
				defer GinkgoRecover()

				conn, err := listener.Accept()
				Expect(err).To(Succeed())
				defer conn.Close()

				_, err = ws.Upgrade(conn)
				Expect(err).To(Succeed())

				go func() {
					for i := 0; i < pings; i++ {
						if err := ws.WriteFrame(conn, ws.NewPingFrame([]byte("ping"))); err != nil {
							return
						}
					}
					_ = wsutil.WriteServerText(conn, []byte("BAD_MESSAGE\x00"))
				}()

				var t tally
				for t.pongs < pings || t.texts < messages {
					frame, err := ws.ReadFrame(conn)
					if err != nil {
						t.err = err
						break
					}

					frame = ws.UnmaskFrameInPlace(frame)

					switch frame.Header.OpCode {
					case ws.OpPong:
						t.pongs++
					case ws.OpText:
						if string(frame.Payload) != message {
							t.err = fmt.Errorf("garbled message %q", frame.Payload)
						}
						t.texts++
					}

					if t.err != nil {
						break
					}
				}

				result <- t
			}()

			conn, err := transport.Dial(context.Background(), "ws://"+listener.Addr().String()+"/", transport.Options{
				DialTimeout: time.Second,
			})
			Expect(err).To(Succeed())
			defer conn.Close()

			go func() {
				defer GinkgoRecover()

				for i := 0; i < messages; i++ {
					_, err := conn.Write([]byte(message))
					Expect(err).To(Succeed())
				}
			}()

			frame, err := bufio.NewReader(conn).ReadString(0)
			Expect(err).To(Succeed())
			Expect(frame).To(Equal("BAD_MESSAGE\x00"))

			var t tally
			Eventually(result, 5*time.Second).Should(Receive(&t))
			Expect(t.err).NotTo(HaveOccurred())
			Expect(t.pongs).To(Equal(pings))
			Expect(t.texts).To(Equal(messages))
		})
	})
})
