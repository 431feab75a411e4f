// Package varint implements Mumble's self-delimiting variable-length
// integer encoding. It is unrelated to Protocol Buffers' own varint
// format; Mumble uses this encoding only inside the UDP-tunnel message
// (see package udptunnel).
package varint

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// ErrTruncated is returned when data does not contain enough bytes to
// decode the varint implied by its first byte.
var ErrTruncated = errors.New("varint: truncated input")

// Encode returns the canonical Mumble varint encoding of n. n must be
// within [-2^63, 2^63-1], which is every value representable by int64.
func Encode(n int64) []byte {
	if n >= 0 {
		return encodeUnsigned(uint64(n))
	}
	if n >= -4 {
		// Small negative form: 111111xx, xx = ~n truncated to 2 bits.
		xx := byte(-n - 1)
		return []byte{0xFC | xx}
	}

	// Negation prefix followed by the recursively encoded magnitude.
	// uint64(-(n+1))+1 computes -n as a uint64 without overflowing
	// int64 when n == math.MinInt64.
	magnitude := uint64(-(n + 1)) + 1
	return append([]byte{0xF8}, encodeUnsigned(magnitude)...)
}

// encodeUnsigned encodes a non-negative magnitude using the canonical
// byte count for its size: 1/2/3/4/5/9 bytes as the value crosses each
// power-of-two threshold.
func encodeUnsigned(u uint64) []byte {
	switch {
	case u < 1<<7:
		return []byte{byte(u)}
	case u < 1<<14:
		return []byte{0x80 | byte(u>>8), byte(u)}
	case u < 1<<21:
		return []byte{0xC0 | byte(u>>16), byte(u >> 8), byte(u)}
	case u < 1<<28:
		return []byte{0xE0 | byte(u>>24), byte(u >> 16), byte(u >> 8), byte(u)}
	case u < 1<<32:
		buf := make([]byte, 5)
		buf[0] = 0xF0
		binary.BigEndian.PutUint32(buf[1:], uint32(u))
		return buf
	default:
		buf := make([]byte, 9)
		buf[0] = 0xF4
		binary.BigEndian.PutUint64(buf[1:], u)
		return buf
	}
}

// Decode reads a single varint from the front of data and returns its
// value along with the unconsumed remainder. data may contain
// arbitrary trailing bytes beyond the varint itself.
func Decode(data []byte) (value int64, remainder []byte, err error) {
	if len(data) == 0 {
		return 0, nil, ErrTruncated
	}

	b0 := data[0]
	switch {
	case b0&0x80 == 0, b0&0xC0 == 0x80, b0&0xE0 == 0xC0, b0&0xF0 == 0xE0,
		b0&0xFC == 0xF0, b0&0xFC == 0xF4:
		u, rest, err := decodeUnsigned(data)
		if err != nil {
			return 0, nil, err
		}
		return int64(u), rest, nil

	case b0&0xFC == 0xF8:
		// Negation prefix: following bytes are a non-negative varint
		// giving the magnitude of a negative value.
		u, rest, err := decodeUnsigned(data[1:])
		if err != nil {
			return 0, nil, err
		}
		return negate(u), rest, nil

	default: // b0&0xFC == 0xFC
		xx := int64(b0 & 0x03)
		return -xx - 1, data[1:], nil
	}
}

// negate converts a uint64 magnitude produced by encodeUnsigned back
// into the int64 it represents when negated, without overflowing for
// a magnitude of 2^63 (the encoding of math.MinInt64).
func negate(u uint64) int64 {
	if u == 0 {
		return 0
	}
	return -int64(u-1) - 1
}

// decodeUnsigned parses only the non-negative varint forms (the first
// six rows of the encoding table). It is also used to parse the
// magnitude that follows a negation prefix.
func decodeUnsigned(data []byte) (value uint64, remainder []byte, err error) {
	if len(data) == 0 {
		return 0, nil, ErrTruncated
	}

	b0 := data[0]
	switch {
	case b0&0x80 == 0:
		return uint64(b0), data[1:], nil

	case b0&0xC0 == 0x80:
		if len(data) < 2 {
			return 0, nil, ErrTruncated
		}
		return uint64(b0&0x3F)<<8 | uint64(data[1]), data[2:], nil

	case b0&0xE0 == 0xC0:
		if len(data) < 3 {
			return 0, nil, ErrTruncated
		}
		return uint64(b0&0x1F)<<16 | uint64(data[1])<<8 | uint64(data[2]), data[3:], nil

	case b0&0xF0 == 0xE0:
		if len(data) < 4 {
			return 0, nil, ErrTruncated
		}
		return uint64(b0&0x0F)<<24 | uint64(data[1])<<16 | uint64(data[2])<<8 | uint64(data[3]), data[4:], nil

	case b0&0xFC == 0xF0:
		if len(data) < 5 {
			return 0, nil, ErrTruncated
		}
		return uint64(binary.BigEndian.Uint32(data[1:5])), data[5:], nil

	case b0&0xFC == 0xF4:
		if len(data) < 9 {
			return 0, nil, ErrTruncated
		}
		return binary.BigEndian.Uint64(data[1:9]), data[9:], nil

	default:
		return 0, nil, errors.Errorf("varint: byte 0x%02x is not a non-negative prefix", b0)
	}
}

// Len returns the canonical encoded length of n in bytes, without
// allocating.
func Len(n int64) int {
	if n >= 0 {
		return lenUnsigned(uint64(n))
	}
	if n >= -4 {
		return 1
	}
	return 1 + lenUnsigned(uint64(-(n+1))+1)
}

func lenUnsigned(u uint64) int {
	switch {
	case u < 1<<7:
		return 1
	case u < 1<<14:
		return 2
	case u < 1<<21:
		return 3
	case u < 1<<28:
		return 4
	case u < 1<<32:
		return 5
	default:
		return 9
	}
}
