package protocol

// This package implements the encoding and decoding of frames for the
// protocol that huddle speaks with a group chat server.
//
// - `Frame` - one unit of the protocol, a command followed by its parameters.
// - `Request` - A frame sent by the client to the server.
// - `Push` - A frame sent by the server that was not directly solicited by
//            the request before it (e.g. a user joining a group).
//
// === General Syntax
//
// - fields are `\r\n` delimited
// - frames are terminated by a single NUL byte (`\0`)
// - the first field is the command, every following field is a parameter
// - the `\r\n` after the last parameter is optional
// - fields can never contain `\r`, `\n` or `\0`
// - booleans are encoded as `1` (true) and anything else (false)
//
// For example
//   ```
//     JOIN\r\nalice\r\n\0
//     VERIFY_USERNAME\r\n1\r\n\0
//   ```
//
// There are no request IDs. The client works out
// which response belongs to which request by looking at the fields of the
// response (e.g. the group and message ID of a SEND_MESSAGE_CONTENT).
//
// === Client Commands
//
// - `JOIN <username>` - join the server under a username
// - `LEAVE` - log out of the server, keeping the connection open
// - `MESSAGE <POST|RETRIEVE> <groupID> <messageID> <subject> <content>`
//       - POST uses a messageID of -1
//       - RETRIEVE sends an empty subject and content
// - `GROUP <JOIN|LEAVE|USERS|LIST> <groupID>`
//       - LIST uses a groupID of -1
// - `DISCONNECT` - the server should close the connection
//
// === Server Commands
//
//   | Command              | Parameters                                   |
//   |----------------------|----------------------------------------------|
//   | VERIFY_USERNAME      | success                                      |
//   | USER_JOIN_NOTIF      | groupID, username                            |
//   | USER_LEAVE_NOTIF     | groupID, username                            |
//   | SEND_MESSAGE_LABEL   | groupID, messageID, username, date, subject  |
//   | SEND_USER_LIST       | groupID, [usernames,csv]                     |
//   | SEND_GROUPS_LIST     | names,csv, ids,csv                           |
//   | SEND_MESSAGE_CONTENT | groupID, messageID, content, [valid]         |
//   | BAD_MESSAGE          |                                              |
//
