package protocol

import "io"

// WriteFrame encodes the frame and writes it to w in a single Write call.
func WriteFrame(w io.Writer, f Frame) error {
	b, err := f.Marshal()
	if err != nil {
		return err
	}

	_, err = w.Write(b)
	return err
}

// WriteCommand encodes and writes a command with its parameters.
func WriteCommand(w io.Writer, command Command, params ...string) error {
	return WriteFrame(w, Frame{Command: command, Params: params})
}
