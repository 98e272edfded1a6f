package protocol

import "strconv"

// Request is a frame the client sends to the server.
type Request = Frame

// JoinRequest asks to join the server as username.
func JoinRequest(username string) Request {
	return Frame{Command: JOIN, Params: []string{username}}
}

// LeaveRequest logs out of the server.
func LeaveRequest() Request {
	return Frame{Command: LEAVE}
}

// MessageRequest posts or retrieves a message.
func MessageRequest(action MessageAction, groupID, messageID int, subject, content string) Request {
	return Frame{
		Command: MESSAGE,
		Params: []string{
			string(action),
			strconv.Itoa(groupID),
			strconv.Itoa(messageID),
			subject,
			content,
		},
	}
}

// PostRequest posts a new message to a group.
func PostRequest(groupID int, subject, content string) Request {
	return MessageRequest(POST, groupID, -1, subject, content)
}

// RetrieveRequest asks for the content of a message.
func RetrieveRequest(groupID, messageID int) Request {
	return MessageRequest(RETRIEVE, groupID, messageID, "", "")
}

// GroupRequest performs a group action.
func GroupRequest(action GroupAction, groupID int) Request {
	return Frame{
		Command: GROUP,
		Params:  []string{string(action), strconv.Itoa(groupID)},
	}
}

// ListGroupsRequest asks for the full group catalog.
func ListGroupsRequest() Request {
	return GroupRequest(GroupList, -1)
}

// DisconnectRequest asks the server to close the connection.
func DisconnectRequest() Request {
	return Frame{Command: DISCONNECT}
}
