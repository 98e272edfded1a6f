package protocol_test

import (
	"bytes"
	"errors"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"

	"github.com/luma/huddle/protocol"
)

var _ = Describe("Encoding / Writer", func() {
	Describe("Encode()", func() {
		It("separates fields with \r\n and ends with the terminator", func() {
			b, err := protocol.Encode(protocol.JOIN, "alice")
			Expect(err).To(Succeed())
			Expect(string(b)).To(Equal("JOIN\r\nalice\r\n\x00"))
		})

		It("encodes a command without parameters", func() {
			b, err := protocol.Encode(protocol.LEAVE)
			Expect(err).To(Succeed())
			Expect(string(b)).To(Equal("LEAVE\r\n\x00"))
		})

		It("rejects fields containing a separator or terminator", func() {
			for _, bad := range []string{"a\r\nb", "a\nb", "a\rb", "a\x00b"} {
				_, err := protocol.Encode(protocol.MESSAGE, "POST", bad)
				Expect(errors.Is(err, protocol.ErrInvalidField)).To(BeTrue(), bad)
			}
		})

		It("rejects an empty command", func() {
			_, err := protocol.Encode("")
			Expect(errors.Is(err, protocol.ErrInvalidField)).To(BeTrue())
		})
	})

	DescribeTable("round trips through Decode()",
		func(command protocol.Command, params []string) {
			b, err := protocol.Encode(command, params...)
			Expect(err).To(Succeed())

			frame, err := protocol.Decode(b)
			Expect(err).To(Succeed())
			Expect(frame.Command).To(Equal(command))

			if len(params) == 0 {
				Expect(frame.Params).To(BeEmpty())
			} else {
				Expect(frame.Params).To(Equal(params))
			}
		},
		Entry("no parameters", protocol.DISCONNECT, nil),
		Entry("one parameter", protocol.JOIN, []string{"alice"}),
		Entry("an empty last parameter", protocol.SendUserList, []string{"4", ""}),
		Entry("only empty parameters", protocol.MESSAGE, []string{"", "", ""}),
		Entry("spaces inside fields", protocol.MESSAGE, []string{"POST", "0", "-1", " hello ", "a  b"}),
		Entry("unicode", protocol.SendMessageLabel, []string{"1", "2", "zoë", "今日", "☕"}),
	)

	Describe("WriteFrame", func() {
		It("writes the encoded frame", func() {
			w := bytes.NewBuffer([]byte{})

			Expect(protocol.WriteFrame(w, protocol.ListGroupsRequest())).To(Succeed())
			Expect(w.String()).To(Equal("GROUP\r\nLIST\r\n-1\r\n\x00"))
		})

		It("writes nothing when a field is invalid", func() {
			w := bytes.NewBuffer([]byte{})

			err := protocol.WriteFrame(w, protocol.PostRequest(0, "subject", "two\nlines"))
			Expect(errors.Is(err, protocol.ErrInvalidField)).To(BeTrue())
			Expect(w.Len()).To(BeZero())
		})
	})

	Describe("Requests", func() {
		It("builds POST requests with a message ID of -1", func() {
			Expect(protocol.PostRequest(2, "sub", "body").Params).
				To(Equal([]string{"POST", "2", "-1", "sub", "body"}))
		})

		It("builds RETRIEVE requests with an empty subject and content", func() {
			Expect(protocol.RetrieveRequest(2, 9).Params).
				To(Equal([]string{"RETRIEVE", "2", "9", "", ""}))
		})

		It("builds GROUP requests", func() {
			req := protocol.GroupRequest(protocol.GroupUsers, 4)
			Expect(req.Command).To(Equal(protocol.GROUP))
			Expect(req.Params).To(Equal([]string{"USERS", "4"}))
		})
	})

	Describe("MinParameters", func() {
		It("knows every server command", func() {
			n, ok := protocol.MinParameters(protocol.SendMessageLabel)
			Expect(ok).To(BeTrue())
			Expect(n).To(Equal(5))

			_, ok = protocol.MinParameters(protocol.JOIN)
			Expect(ok).To(BeFalse())
		})
	})
})
