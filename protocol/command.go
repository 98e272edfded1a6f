package protocol

// Command is the first line of every frame.
type Command string

// Client commands
const (
	JOIN       Command = "JOIN"
	LEAVE      Command = "LEAVE"
	MESSAGE    Command = "MESSAGE"
	GROUP      Command = "GROUP"
	DISCONNECT Command = "DISCONNECT"
)

// Server commands
const (
	VerifyUsername     Command = "VERIFY_USERNAME"
	UserJoinNotif      Command = "USER_JOIN_NOTIF"
	UserLeaveNotif     Command = "USER_LEAVE_NOTIF"
	SendMessageLabel   Command = "SEND_MESSAGE_LABEL"
	SendUserList       Command = "SEND_USER_LIST"
	SendGroupsList     Command = "SEND_GROUPS_LIST"
	SendMessageContent Command = "SEND_MESSAGE_CONTENT"
	BadMessage         Command = "BAD_MESSAGE"
)

// MessageAction is the first parameter of a MESSAGE request.
type MessageAction string

const (
	POST     MessageAction = "POST"
	RETRIEVE MessageAction = "RETRIEVE"
)

// GroupAction is the first parameter of a GROUP request.
type GroupAction string

const (
	GroupJoin  GroupAction = "JOIN"
	GroupLeave GroupAction = "LEAVE"
	GroupUsers GroupAction = "USERS"
	GroupList  GroupAction = "LIST"
)

// minParameters holds the smallest parameter count each server command can
// be handled with.
var minParameters = map[Command]int{
	VerifyUsername:     1,
	UserJoinNotif:      2,
	UserLeaveNotif:     2,
	SendMessageLabel:   5,
	SendUserList:       1,
	SendGroupsList:     2,
	SendMessageContent: 3,
	BadMessage:         0,
}

// MinParameters returns the minimum parameter count for a server command and
// whether the command is known at all.
func MinParameters(c Command) (int, bool) {
	n, ok := minParameters[c]
	return n, ok
}

// IsServerCommand reports whether c is a command the server may send.
func IsServerCommand(c Command) bool {
	_, ok := minParameters[c]
	return ok
}
