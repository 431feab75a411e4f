// Package udptunnel implements Mumble's UDP-tunnel message: the
// bit-packed audio/ping frame carried inside outer frame type 1 (see
// package frame) when real UDP transport isn't available or hasn't
// been negotiated.
//
// The bit-packing and voice-frame walking here are grounded on
// _examples/Lotlab-grumble/pkg/mumbleproto/udp_packet.go's legacy
// packet parser, corrected per the known bugs in the reference
// implementation: the CELT/Speex loop now actually iterates over every
// frame (the source's loop silently stopped after one), the
// continuation bit is set with OR instead of AND, and the Opus
// payload slice no longer skips an extra byte.
package udptunnel

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"github.com/diamondburned/gumble-go/varint"
)

// Type identifies the audio codec (or ping) carried by a Message.
type Type uint8

const (
	CELTAlpha Type = 0
	Ping      Type = 1
	Speex     Type = 2
	CELTBeta  Type = 3
	Opus      Type = 4
)

// Audio targets. NormalTalking is regular voice chat; target values
// 1-30 select a whisper/shout voice target previously registered with
// the server; ServerLoopback asks the server to echo the audio back.
const (
	NormalTalking  = 0
	ServerLoopback = 31
)

// ErrUnsupportedType is returned for the reserved tunnel types (5, 6,
// 7); the caller should log and skip the payload, not treat this as
// fatal to the connection.
var ErrUnsupportedType = errors.New("udptunnel: unsupported type")

// ErrInvalidField is returned for serialize-time validation failures:
// an oversize voice frame or the wrong voice-frame count for Opus.
// A Position is always serializable and is never rejected.
var ErrInvalidField = errors.New("udptunnel: invalid field")

// Position is an optional 3-D positional-audio vector, big-endian
// IEEE-754 floats on the wire.
type Position struct {
	X, Y, Z float32
}

// Message is a parsed UDP-tunnel payload. Not every field applies to
// every Type: Timestamp is Ping-only; SessionID is set only on
// messages received from the server (the client never sends one);
// VoiceFrames and EndTransmission apply only to the four audio types.
type Message struct {
	Type   Type
	Target uint8 // 5 bits: 0-31

	Timestamp int64 // Ping only

	SessionID      uint64 // incoming audio only
	SequenceNumber uint64

	VoiceFrames     [][]byte
	EndTransmission bool

	Position *Position
}

// IsAudio reports whether m carries an audio payload rather than a ping.
func (m Message) IsAudio() bool {
	switch m.Type {
	case CELTAlpha, Speex, CELTBeta, Opus:
		return true
	default:
		return false
	}
}

// Encode serializes m into the UDP-tunnel wire format. incoming
// controls whether a session ID is emitted ahead of the sequence
// number, matching the asymmetry where only server->client audio
// carries the sender's session.
func Encode(m Message, incoming bool) ([]byte, error) {
	buf := make([]byte, 0, 64)
	buf = append(buf, byte(m.Type&0x7)<<5|byte(m.Target&0x1F))

	if m.Type == Ping {
		return append(buf, varint.Encode(m.Timestamp)...), nil
	}

	if incoming {
		buf = append(buf, varint.Encode(int64(m.SessionID))...)
	}
	buf = append(buf, varint.Encode(int64(m.SequenceNumber))...)

	switch m.Type {
	case Opus:
		if len(m.VoiceFrames) != 1 {
			return nil, errors.Wrapf(ErrInvalidField, "opus requires exactly 1 voice frame, got %d", len(m.VoiceFrames))
		}
		frame := m.VoiceFrames[0]
		if len(frame) > 8191 {
			return nil, errors.Wrapf(ErrInvalidField, "opus frame length %d exceeds 8191", len(frame))
		}

		header := uint16(len(frame))
		if m.EndTransmission {
			header |= 0x2000
		}
		// Mumble always emits this as the fixed-width 14-bit varint
		// form (10xxxxxx, 2 bytes), even when the value would
		// otherwise canonicalize to 1 byte — the terminator bit lives
		// in the first byte of that form (0xA0 instead of 0x80).
		buf = append(buf, 0x80|byte(header>>8), byte(header))
		buf = append(buf, frame...)

	case CELTAlpha, CELTBeta, Speex:
		// A length-0 header is the transmission-end marker, distinct
		// from simply running out of frames (continuation bit clear
		// on the last real frame). If this packet ends the
		// transmission, every real frame must keep its continuation
		// bit set so the decoder keeps reading through to the
		// trailing zero-length marker.
		for i, frame := range m.VoiceFrames {
			if len(frame) > 127 {
				return nil, errors.Wrapf(ErrInvalidField, "voice frame %d length %d exceeds 127", i, len(frame))
			}
			header := byte(len(frame))
			if m.EndTransmission || i != len(m.VoiceFrames)-1 {
				header |= 0x80
			}
			buf = append(buf, header)
			buf = append(buf, frame...)
		}
		if m.EndTransmission {
			buf = append(buf, 0)
		}

	default:
		return nil, errors.Wrapf(ErrUnsupportedType, "type %d", m.Type)
	}

	if m.Position != nil {
		var pos [12]byte
		binary.BigEndian.PutUint32(pos[0:4], math.Float32bits(m.Position.X))
		binary.BigEndian.PutUint32(pos[4:8], math.Float32bits(m.Position.Y))
		binary.BigEndian.PutUint32(pos[8:12], math.Float32bits(m.Position.Z))
		buf = append(buf, pos[:]...)
	}

	return buf, nil
}

// Decode parses a UDP-tunnel payload. incoming must match the value
// passed to Encode: true when parsing a message received from the
// server (which is preceded by a session ID), false when parsing a
// message this client is about to send (there is none).
func Decode(data []byte, incoming bool) (Message, error) {
	if len(data) < 1 {
		return Message{}, errors.Wrap(varint.ErrTruncated, "udptunnel: empty payload")
	}

	header := data[0]
	m := Message{
		Type:   Type((header >> 5) & 0x7),
		Target: header & 0x1F,
	}
	rest := data[1:]

	if m.Type == Ping {
		ts, rem, err := varint.Decode(rest)
		if err != nil {
			return Message{}, errors.Wrap(err, "udptunnel: ping timestamp")
		}
		m.Timestamp = ts
		_ = rem // trailing garbage after a ping is tolerated
		return m, nil
	}

	if !m.IsAudio() {
		return Message{}, errors.Wrapf(ErrUnsupportedType, "type %d", m.Type)
	}

	if incoming {
		session, rem, err := varint.Decode(rest)
		if err != nil {
			return Message{}, errors.Wrap(err, "udptunnel: session id")
		}
		m.SessionID = uint64(session)
		rest = rem
	}

	seq, rem, err := varint.Decode(rest)
	if err != nil {
		return Message{}, errors.Wrap(err, "udptunnel: sequence number")
	}
	m.SequenceNumber = uint64(seq)
	rest = rem

	switch m.Type {
	case Opus:
		header, rem, err := varint.Decode(rest)
		if err != nil {
			return Message{}, errors.Wrap(err, "udptunnel: opus frame header")
		}
		length := int(header & 0x1FFF)
		m.EndTransmission = header&0x2000 != 0

		if len(rem) < length {
			return Message{}, errors.Wrap(varint.ErrTruncated, "udptunnel: opus frame body")
		}
		m.VoiceFrames = [][]byte{rem[:length]}
		rest = rem[length:]

	case CELTAlpha, CELTBeta, Speex:
		for {
			if len(rest) < 1 {
				return Message{}, errors.Wrap(varint.ErrTruncated, "udptunnel: voice frame header")
			}
			h := rest[0]
			rest = rest[1:]

			length := int(h & 0x7F)
			if len(rest) < length {
				return Message{}, errors.Wrap(varint.ErrTruncated, "udptunnel: voice frame body")
			}

			if length > 0 {
				m.VoiceFrames = append(m.VoiceFrames, rest[:length])
			}
			rest = rest[length:]

			if length == 0 {
				m.EndTransmission = true
				break
			}
			if h&0x80 == 0 {
				break
			}
		}

	default:
		return Message{}, errors.Wrapf(ErrUnsupportedType, "type %d", m.Type)
	}

	// Positional audio trailer: exactly 12 bytes of big-endian floats.
	// Any other remaining length is server variance and is ignored.
	if len(rest) == 12 {
		m.Position = &Position{
			X: math.Float32frombits(binary.BigEndian.Uint32(rest[0:4])),
			Y: math.Float32frombits(binary.BigEndian.Uint32(rest[4:8])),
			Z: math.Float32frombits(binary.BigEndian.Uint32(rest[8:12])),
		}
	}

	return m, nil
}
