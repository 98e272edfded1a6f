package state_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/huddle/state"
)

var _ = Describe("state / Group", func() {
	It("keeps users in order and removes only the first match", func() {
		g := state.NewGroup(1, "g")
		g.AddUser("a")
		g.AddUser("b")
		g.AddUser("a")

		Expect(g.RemoveUser("a")).To(BeTrue())
		Expect(g.Users).To(Equal([]string{"b", "a"}))
		Expect(g.RemoveUser("zed")).To(BeFalse())
	})

	It("replaces the user list wholesale", func() {
		g := state.NewGroup(1, "g")
		g.AddUser("x")

		list := []string{"y", "z"}
		g.SetUsers(list)
		list[0] = "changed"

		Expect(g.Users).To(Equal([]string{"y", "z"}))
		Expect(g.HasUser("x")).To(BeFalse())
	})

	It("sorts message IDs", func() {
		g := state.NewGroup(1, "g")
		g.Messages[9] = &state.Message{MessageID: 9}
		g.Messages[2] = &state.Message{MessageID: 2}

		Expect(g.MessageIDs()).To(Equal([]int{2, 9}))
	})
})
