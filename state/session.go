package state

import (
	"sort"
	"sync"

	"github.com/tidwall/sjson"
)

const (
	// GlobalGroupID is the group every joined user is a member of.
	GlobalGroupID = 0

	GlobalGroupName = "Global"
)

// Session is the client side replica of the server state.
//
// The embedded mutex guards everything in the session. None of the methods
// lock it, callers hold it for as long as they need a consistent view.
type Session struct {
	sync.Mutex

	joined   bool
	username string

	members map[int]struct{}
	groups  map[int]*Group
}

func NewSession() *Session {
	return &Session{
		members: make(map[int]struct{}),
		groups:  make(map[int]*Group),
	}
}

// Joined reports whether the server accepted our username.
func (s *Session) Joined() bool {
	return s.joined
}

func (s *Session) Username() string {
	return s.username
}

// SetUsername records the username we are trying to join as.
func (s *Session) SetUsername(username string) {
	s.username = username
}

// Join marks the session joined and seeds the global group.
func (s *Session) Join() {
	s.joined = true

	if _, ok := s.groups[GlobalGroupID]; !ok {
		s.groups[GlobalGroupID] = NewGroup(GlobalGroupID, GlobalGroupName)
	}

	s.members[GlobalGroupID] = struct{}{}
}

// Reset returns the session to the state it had when it was created.
func (s *Session) Reset() {
	s.joined = false
	s.username = ""
	s.members = make(map[int]struct{})
	s.groups = make(map[int]*Group)
}

// Group returns the live group with id.
func (s *Session) Group(id int) (*Group, bool) {
	g, ok := s.groups[id]
	return g, ok
}

// AddGroup creates a group if id is unknown. It returns false if the group
// already existed.
func (s *Session) AddGroup(id int, name string) bool {
	if _, ok := s.groups[id]; ok {
		return false
	}

	s.groups[id] = NewGroup(id, name)
	return true
}

// Groups returns copies of every known group ordered by ID.
func (s *Session) Groups() []Group {
	groups := make([]Group, 0, len(s.groups))
	for _, id := range s.GroupIDs() {
		groups = append(groups, s.groups[id].Copy())
	}

	return groups
}

// GroupIDs returns the known group IDs in ascending order.
func (s *Session) GroupIDs() []int {
	ids := make([]int, 0, len(s.groups))
	for id := range s.groups {
		ids = append(ids, id)
	}

	sort.Ints(ids)
	return ids
}

// FindGroup looks a group up by name.
func (s *Session) FindGroup(name string) (*Group, bool) {
	for _, id := range s.GroupIDs() {
		if g := s.groups[id]; g.Name == name {
			return g, true
		}
	}

	return nil, false
}

// IsMember reports whether we are a member of group id.
func (s *Session) IsMember(id int) bool {
	_, ok := s.members[id]
	return ok
}

func (s *Session) AddMember(id int) {
	s.members[id] = struct{}{}
}

func (s *Session) RemoveMember(id int) {
	delete(s.members, id)
}

// MemberIDs returns the groups we are a member of in ascending order.
func (s *Session) MemberIDs() []int {
	ids := make([]int, 0, len(s.members))
	for id := range s.members {
		ids = append(ids, id)
	}

	sort.Ints(ids)
	return ids
}

// PutLabel stores a message label, replacing any message with the same ID.
// It returns false if the group is unknown.
func (s *Session) PutLabel(label Message) (*Message, bool) {
	g, ok := s.groups[label.GroupID]
	if !ok {
		return nil, false
	}

	label.Content = ""
	label.Loaded = false

	m := &label
	g.Messages[label.MessageID] = m

	return m, true
}

// Message returns the live message with the given IDs.
func (s *Session) Message(groupID, messageID int) (*Message, bool) {
	g, ok := s.groups[groupID]
	if !ok {
		return nil, false
	}

	m, ok := g.Messages[messageID]
	return m, ok
}

type groupBackup struct {
	ID       int       `json:"id"`
	Name     string    `json:"name"`
	Member   bool      `json:"member"`
	Users    []string  `json:"users"`
	Messages []Message `json:"messages"`
}

// Backup encodes the whole session as JSON.
//
// {"joined":true,"username":"alice","members":[0],"groups":[{"id":0,...}]}
func (s *Session) Backup() (values []byte, err error) {
	values = []byte("{}")

	if values, err = sjson.SetBytes(values, "joined", s.joined); err != nil {
		return nil, err
	}

	if values, err = sjson.SetBytes(values, "username", s.username); err != nil {
		return nil, err
	}

	if values, err = sjson.SetBytes(values, "members", s.MemberIDs()); err != nil {
		return nil, err
	}

	if values, err = sjson.SetRawBytes(values, "groups", []byte("[]")); err != nil {
		return nil, err
	}

	for _, id := range s.GroupIDs() {
		g := s.groups[id]

		backup := groupBackup{
			ID:       g.ID,
			Name:     g.Name,
			Member:   s.IsMember(g.ID),
			Users:    g.Users,
			Messages: make([]Message, 0, len(g.Messages)),
		}

		for _, mid := range g.MessageIDs() {
			backup.Messages = append(backup.Messages, *g.Messages[mid])
		}

		if values, err = sjson.SetBytes(values, "groups.-1", backup); err != nil {
			return nil, err
		}
	}

	return values, nil
}
