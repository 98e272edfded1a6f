package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// DefaultMaxFrameSize bounds the size of a single frame read by a
	// FrameReader.
	DefaultMaxFrameSize = 1 << 20
)

var (
	ErrMalformedFrame = errors.New("Frame is malformed")
	ErrInvalidField   = errors.New("Field contains a separator or terminator")
	ErrFrameTooLarge  = errors.New("Frame is larger than the maximum frame size")
)

// Encode produces the wire form of a command and its parameters.
//
// Fields that contain '\r', '\n' or the terminator are rejected, as they
// could never be decoded back into the same frame.
func Encode(command Command, params ...string) ([]byte, error) {
	if strings.TrimSpace(string(command)) == "" {
		return nil, fmt.Errorf("Empty command: %w", ErrInvalidField)
	}

	if err := validateField(string(command)); err != nil {
		return nil, fmt.Errorf("Command %q: %w", command, err)
	}

	var buf bytes.Buffer
	buf.WriteString(string(command))
	buf.WriteString(Separator)

	for i, p := range params {
		if err := validateField(p); err != nil {
			return nil, fmt.Errorf("%s parameter %d: %w", command, i, err)
		}

		buf.WriteString(p)
		buf.WriteString(Separator)
	}

	buf.WriteByte(Terminator)

	return buf.Bytes(), nil
}

// Decode parses a raw frame, with or without its terminator.
func Decode(raw []byte) (Frame, error) {
	if n := len(raw); n > 0 && raw[n-1] == Terminator {
		raw = raw[:n-1]
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return Frame{}, fmt.Errorf("Empty frame: %w", ErrMalformedFrame)
	}

	fields := strings.Split(string(raw), Separator)

	// The separator after the last parameter is optional
	if n := len(fields); n > 1 && fields[n-1] == "" {
		fields = fields[:n-1]
	}

	command := strings.TrimSpace(fields[0])
	if command == "" {
		return Frame{}, fmt.Errorf("Frame %q has no command: %w", string(raw), ErrMalformedFrame)
	}

	frame := Frame{Command: Command(command)}

	if len(fields) > 1 {
		frame.Params = make([]string, 0, len(fields)-1)
		for _, f := range fields[1:] {
			frame.Params = append(frame.Params, trimLineWhitespace(f))
		}
	}

	return frame, nil
}

// FrameReader splits a byte stream into terminator delimited frames.
type FrameReader struct {
	r       *bufio.Reader
	maxSize int
}

// NewFrameReader wraps r. A maxSize below one uses DefaultMaxFrameSize.
func NewFrameReader(r io.Reader, maxSize int) *FrameReader {
	if maxSize < 1 {
		maxSize = DefaultMaxFrameSize
	}

	return &FrameReader{r: bufio.NewReader(r), maxSize: maxSize}
}

// ReadFrame blocks until a whole frame has been read and returns it without
// its terminator.
//
// Frames longer than the maximum size are consumed and discarded, and
// ErrFrameTooLarge is returned. The reader can keep being used after that.
// Any other error comes from the underlying reader and is final.
func (f *FrameReader) ReadFrame() ([]byte, error) {
	var (
		frame    []byte
		tooLarge bool
	)

	for {
		chunk, err := f.r.ReadSlice(Terminator)

		if !tooLarge {
			if len(frame)+len(chunk) > f.maxSize+1 {
				tooLarge = true
				frame = nil
			} else {
				frame = append(frame, chunk...)
			}
		}

		switch {
		case err == nil:
			if tooLarge {
				return nil, ErrFrameTooLarge
			}

			return frame[:len(frame)-1], nil

		case errors.Is(err, bufio.ErrBufferFull):
			continue

		default:
			return nil, err
		}
	}
}

func validateField(field string) error {
	if strings.ContainsAny(field, "\r\n\x00") {
		return ErrInvalidField
	}

	return nil
}

func trimLineWhitespace(field string) string {
	return strings.Trim(field, "\r\n")
}
