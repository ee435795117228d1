package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// maxFrameSize is the largest payload a 2-byte length prefix can
// describe; WriteFrame rejects anything longer rather than truncating
// the length.
const maxFrameSize = 64*1024 - 1

// FrameCodec reads and writes length-prefixed frames on two file
// descriptors: a read side the controlling process writes requests to,
// and a write side honeycombd writes responses to. It is a pure
// wire-format concern -- it knows nothing about CommandSpec or
// responses, only about framing raw bytes.
type FrameCodec struct {
	r io.Reader
	w io.Writer
}

// NewFrameCodec wraps the given read and write sides. In the daemon
// these are pre-opened file descriptors handed down by the controlling
// process; in tests they are in-memory pipes.
func NewFrameCodec(r io.Reader, w io.Writer) *FrameCodec {
	return &FrameCodec{r: r, w: w}
}

// ReadFrame reads one 2-byte big-endian length-prefixed frame and
// returns its payload. io.EOF is returned verbatim when the peer has
// closed its end between frames.
func (c *FrameCodec) ReadFrame() ([]byte, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(c.r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := int(binary.BigEndian.Uint16(lenBuf[:]))
	if n > maxFrameSize {
		return nil, fmt.Errorf("protocol: frame of %d bytes exceeds maximum %d", n, maxFrameSize)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(c.r, payload); err != nil {
		return nil, fmt.Errorf("protocol: reading %d byte frame body: %w", n, err)
	}
	return payload, nil
}

// WriteFrame writes payload as one 2-byte big-endian length-prefixed
// frame.
func (c *FrameCodec) WriteFrame(payload []byte) error {
	if len(payload) > maxFrameSize {
		return fmt.Errorf("protocol: payload of %d bytes exceeds maximum %d", len(payload), maxFrameSize)
	}
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(payload)))
	if _, err := c.w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := c.w.Write(payload)
	return err
}
