package gumble

import (
	"github.com/pkg/errors"

	"github.com/diamondburned/gumble-go/frame"
)

// ErrConnectionClosed is returned by any loop or Send call once the
// underlying TLS stream has reached EOF or been reset. It is an alias
// of frame.ErrClosed: the frame codec already distinguishes "closed at
// a boundary" from "closed mid-payload" not at all, matching the
// protocol's inability to resynchronize a truncated stream either way.
var ErrConnectionClosed = frame.ErrClosed

// ErrTLSHandshakeFailed is returned by Dial when the TCP dial or TLS
// handshake fails.
var ErrTLSHandshakeFailed = errors.New("gumble: tls handshake failed")

// ErrUnregisteredMessage is returned by Send when given a message
// value whose concrete type was never registered with package
// mumbleproto — a programmer error, not a protocol error.
var ErrUnregisteredMessage = errors.New("gumble: message type not registered")
