// Package version packs and unpacks Mumble's advertised protocol
// version: a single uint32 of (major<<16 | minor<<8 | patch).
//
// Grounded on the reference gumble client's ClientVersion constant and
// packSemver helper (other_examples/feff6675_playswithfir3-gumble__gumble-client.go.go).
package version

import "fmt"

// Version identifies a Mumble protocol release.
type Version struct {
	Major, Minor, Patch uint8
}

// Client is the protocol version this module advertises to the
// server, matching spec.md §8's runtime scenario (0x010300).
var Client = Version{Major: 1, Minor: 3, Patch: 0}

// Pack encodes v into the wire uint32.
func (v Version) Pack() uint32 {
	return uint32(v.Major)<<16 | uint32(v.Minor)<<8 | uint32(v.Patch)
}

// Unpack decodes a wire uint32 into a Version.
func Unpack(packed uint32) Version {
	return Version{
		Major: uint8(packed >> 16),
		Minor: uint8(packed >> 8),
		Patch: uint8(packed),
	}
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}
