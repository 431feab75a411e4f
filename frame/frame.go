// Package frame implements Mumble's outer TLS frame:
// [type_id: u16 big-endian][payload_len: u32 big-endian][payload].
// It is deliberately ignorant of what a payload means; package
// mumbleproto maps type IDs to message classes and package gumble
// drives the read/write loops that use this codec.
package frame

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// HeaderSize is the fixed size, in bytes, of a frame header.
const HeaderSize = 6

// ErrClosed is returned when the underlying stream reaches EOF exactly
// at a frame boundary, or mid-frame — both are reported the same way
// since there is no way to resynchronize a truncated TLS stream.
var ErrClosed = errors.New("frame: connection closed")

// Frame is a single decoded outer frame.
type Frame struct {
	Type    uint16
	Payload []byte
}

// Read blocks until exactly one frame has been read from r, or returns
// ErrClosed on EOF (whether at the header boundary or mid-payload).
func Read(r io.Reader) (Frame, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Frame{}, errors.Wrap(ErrClosed, err.Error())
	}

	typeID := binary.BigEndian.Uint16(header[0:2])
	length := binary.BigEndian.Uint32(header[2:6])

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Frame{}, errors.Wrap(ErrClosed, err.Error())
	}

	return Frame{Type: typeID, Payload: payload}, nil
}

// Write serializes and writes a single frame to w in one call, so that
// concurrent writers (there should only ever be one, the send loop)
// can't interleave a header with another frame's payload.
func Write(w io.Writer, typeID uint16, payload []byte) error {
	buf := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint16(buf[0:2], typeID)
	binary.BigEndian.PutUint32(buf[2:6], uint32(len(payload)))
	copy(buf[HeaderSize:], payload)

	_, err := w.Write(buf)
	return errors.Wrap(err, "frame: write")
}
