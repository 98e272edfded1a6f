package state

import (
	"fmt"
	"sort"
)

// Group is everything known about one group.
type Group struct {
	ID   int    `json:"id"`
	Name string `json:"name"`

	// Users is in the order the server last sent it
	Users []string `json:"users"`

	Messages map[int]*Message `json:"messages,omitempty"`
}

func NewGroup(id int, name string) *Group {
	return &Group{
		ID:       id,
		Name:     name,
		Users:    []string{},
		Messages: make(map[int]*Message),
	}
}

// SetUsers replaces the user list wholesale.
func (g *Group) SetUsers(users []string) {
	g.Users = append(make([]string, 0, len(users)), users...)
}

// AddUser appends username to the user list.
func (g *Group) AddUser(username string) {
	g.Users = append(g.Users, username)
}

// RemoveUser removes the first occurrence of username, returning false if it
// was not in the list.
func (g *Group) RemoveUser(username string) bool {
	for i, u := range g.Users {
		if u == username {
			g.Users = append(g.Users[:i:i], g.Users[i+1:]...)
			return true
		}
	}

	return false
}

// HasUser reports whether username is in the user list.
func (g *Group) HasUser(username string) bool {
	for _, u := range g.Users {
		if u == username {
			return true
		}
	}

	return false
}

// Copy returns a deep copy that shares nothing with g.
func (g *Group) Copy() Group {
	c := Group{
		ID:       g.ID,
		Name:     g.Name,
		Users:    append(make([]string, 0, len(g.Users)), g.Users...),
		Messages: make(map[int]*Message, len(g.Messages)),
	}

	for id, m := range g.Messages {
		msg := *m
		c.Messages[id] = &msg
	}

	return c
}

// MessageIDs returns the known message IDs in ascending order.
func (g *Group) MessageIDs() []int {
	ids := make([]int, 0, len(g.Messages))
	for id := range g.Messages {
		ids = append(ids, id)
	}

	sort.Ints(ids)
	return ids
}

func (g Group) String() string {
	return fmt.Sprintf("%s (%d)", g.Name, g.ID)
}
