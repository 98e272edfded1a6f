package client

import "errors"

// Protocol violations by the server. Frames rejected with these are logged
// and dropped, the connection stays open.
var (
	ErrUnknownCommand        = errors.New("Unknown server command")
	ErrTooFewParameters      = errors.New("Frame has too few parameters")
	ErrOutOfSequence         = errors.New("Frame received out of sequence")
	ErrUnresolvableReference = errors.New("Frame references an unknown group or message")
)

// Connection errors. Every blocked call fails with one of these when the
// connection goes away.
var (
	ErrConnectionLost = errors.New("Connection to the server was lost")
	ErrDisconnected   = errors.New("Disconnected from the server")
)

// Precondition errors, returned before any frame is sent.
var (
	ErrNotConnected     = errors.New("Not connected to a server")
	ErrAlreadyConnected = errors.New("Already connected to a server")
	ErrNotJoined        = errors.New("Not joined to the server")
	ErrAlreadyJoined    = errors.New("Already joined to the server")
	ErrInvalidGroup     = errors.New("Invalid group")
	ErrNotMember        = errors.New("Not a member of the group")
	ErrAlreadyMember    = errors.New("Already a member of the group")
)

var (
	// ErrMessageUnavailable means the server does not know the message, or
	// its content arrived without a label we could attach it to.
	ErrMessageUnavailable = errors.New("Message is not available")
)
