package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// Separator delimits the fields of a frame.
	Separator = "\r\n"

	// Terminator ends every frame. It can never occur inside a field.
	Terminator byte = 0
)

// Frame is a single command and its parameters.
type Frame struct {
	Command Command
	Params  []string
}

// Param returns the i'th parameter, or "" when the frame has fewer
// parameters.
func (f Frame) Param(i int) string {
	if i < 0 || i >= len(f.Params) {
		return ""
	}

	return f.Params[i]
}

// HasParam reports whether the i'th parameter was sent.
func (f Frame) HasParam(i int) bool {
	return i >= 0 && i < len(f.Params)
}

// Int parses the i'th parameter as a base 10 integer. Surrounding spaces are
// ignored.
func (f Frame) Int(i int) (int, error) {
	if !f.HasParam(i) {
		return 0, fmt.Errorf("%s parameter %d is missing: %w", f.Command, i, ErrMalformedFrame)
	}

	n, err := strconv.Atoi(strings.TrimSpace(f.Params[i]))
	if err != nil {
		return 0, fmt.Errorf("%s parameter %d %q is not an integer: %w",
			f.Command, i, f.Params[i], ErrMalformedFrame)
	}

	return n, nil
}

// Bool reads the i'th parameter as a protocol boolean, "1" is true.
func (f Frame) Bool(i int) bool {
	return strings.TrimSpace(f.Param(i)) == "1"
}

// List splits the i'th parameter on commas. A missing or empty parameter is
// an empty list.
func (f Frame) List(i int) []string {
	p := f.Param(i)
	if p == "" {
		return []string{}
	}

	items := strings.Split(p, ",")
	for j := range items {
		items[j] = strings.TrimSpace(items[j])
	}

	return items
}

// Marshal encodes the frame for the wire.
func (f Frame) Marshal() ([]byte, error) {
	return Encode(f.Command, f.Params...)
}

func (f Frame) String() string {
	return fmt.Sprintf("%s%q", f.Command, f.Params)
}

// FormatBool encodes a boolean the way the protocol expects.
func FormatBool(b bool) string {
	if b {
		return "1"
	}

	return "0"
}
