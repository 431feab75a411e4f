package varint

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestConcreteVectors(t *testing.T) {
	value64 := int64(uint64(1)<<63 | uint64(1)<<31 | uint64(1)<<15 | uint64(1))

	tests := []struct {
		name  string
		bytes []byte
		value int64
	}{
		{"7-bit", []byte{0b01000000}, 64},
		{"14-bit", []byte{0b10110000, 0b10000001}, 12417},
		{"21-bit", []byte{0b11010000, 0b00010000, 0b00000001}, 1052673},
		{"28-bit", []byte{0b11101000, 0b10000000, 0b00000001, 0b00000000}, 1<<27 + 1<<8 + 1<<23},
		{"32-bit", []byte{0xF0, 0x80, 0x00, 0x80, 0x01}, 1 + 1<<15 + 1<<31},
		{"64-bit", []byte{0xF4, 0x80, 0, 0, 0, 0x80, 0, 0x80, 0x01}, value64},
		{"small-negative", []byte{0b11111101}, -2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			garbage := []byte{0xAA, 0xBB, 0xCC}
			input := append(append([]byte{}, tt.bytes...), garbage...)

			value, rest, err := Decode(input)
			require.NoError(t, err)
			assert.Equal(t, tt.value, value)
			assert.Equal(t, garbage, rest)

			assert.Equal(t, tt.bytes, Encode(tt.value))
			assert.Equal(t, len(tt.bytes), Len(tt.value))
		})
	}
}

// TestLenientPrefixDecoding checks that the reserved low bits of the
// 32/64-bit and negation prefixes are ignored on decode, as the spec's
// vectors 5 and 6 use non-canonical prefix bytes.
func TestLenientPrefixDecoding(t *testing.T) {
	value, rest, err := Decode([]byte{0b11110011, 0x80, 0x00, 0x80, 0x01})
	require.NoError(t, err)
	assert.Equal(t, int64(1+1<<15+1<<31), value)
	assert.Empty(t, rest)

	value64 := int64(uint64(1)<<63 | uint64(1)<<31 | uint64(1)<<15 | uint64(1))
	value, rest, err = Decode([]byte{0b11110110, 0x80, 0, 0, 0, 0x80, 0, 0x80, 0x01})
	require.NoError(t, err)
	assert.Equal(t, value64, value)
	assert.Empty(t, rest)
}

func TestNegationPrefix(t *testing.T) {
	// Prepending 0b11111010 to the 7-bit vector for 64 yields -64.
	input := append([]byte{0b11111010}, 0b01000000)
	value, rest, err := Decode(input)
	require.NoError(t, err)
	assert.Equal(t, int64(-64), value)
	assert.Empty(t, rest)

	assert.Equal(t, []byte{0xF8, 0b01000000}, Encode(-64))
}

func TestCanonicalLengths(t *testing.T) {
	cases := []struct {
		n    int64
		want int
	}{
		{0, 1}, {1<<7 - 1, 1},
		{1 << 7, 2}, {1<<14 - 1, 2},
		{1 << 14, 3}, {1<<21 - 1, 3},
		{1 << 21, 4}, {1<<28 - 1, 4},
		{1 << 28, 5}, {1<<32 - 1, 5},
		{1 << 32, 9},
		{-1, 1}, {-4, 1},
		{-5, 1 + Len(5)},
		{math.MinInt64, 10}, // prefix byte + 9-byte 64-bit magnitude (2^63)
	}

	for _, c := range cases {
		assert.Equal(t, c.want, Len(c.n), "n=%d", c.n)
	}
}

func TestRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.Int64().Draw(rt, "n")
		garbage := rapid.SliceOfN(rapid.Byte(), 0, 8).Draw(rt, "garbage")

		encoded := Encode(n)
		value, rest, err := Decode(append(append([]byte{}, encoded...), garbage...))
		require.NoError(rt, err)
		assert.Equal(rt, n, value)
		assert.Equal(rt, garbage, rest)
	})
}

func TestTruncatedVarint(t *testing.T) {
	_, _, err := Decode(nil)
	assert.ErrorIs(t, err, ErrTruncated)

	// A 14-bit prefix promising a second byte that never arrives.
	_, _, err = Decode([]byte{0b10110000})
	assert.ErrorIs(t, err, ErrTruncated)
}
