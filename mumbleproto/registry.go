package mumbleproto

import (
	"reflect"
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

// ErrUnknownMessageID names the error kind for a type ID outside the
// registered range. Nothing in this package returns it: New and
// EventNameByID report such an ID with a false second result, and the
// caller should log and skip the frame, not treat the connection as
// broken.
var ErrUnknownMessageID = errors.New("mumbleproto: unknown message id")

// UDPTunnelID is the reserved type ID for the in-repo UDP-tunnel
// frame (package udptunnel). It never appears in this registry's
// tables because it isn't a protobuf message.
const UDPTunnelID uint16 = 1

type entry struct {
	id  uint16
	new func() Message
}

// registry is populated once at init and never mutated afterward,
// matching spec.md §4.4's read-only-after-initialization contract.
var (
	byID   = map[uint16]entry{}
	byType = map[reflect.Type]entry{}
)

func register(id uint16, new func() Message) {
	e := entry{id: id, new: new}
	byID[id] = e
	byType[reflect.TypeOf(new())] = e
}

func init() {
	register(0, func() Message { return &Version{} })
	// 1 = UDPTunnel, handled directly by package gumble via udptunnel.
	register(2, func() Message { return &Authenticate{} })
	register(3, func() Message { return &Ping{} })
	register(4, func() Message { return &Reject{} })
	register(5, func() Message { return &ServerSync{} })
	register(6, func() Message { return &ChannelRemove{} })
	register(7, func() Message { return &ChannelState{} })
	register(8, func() Message { return &UserRemove{} })
	register(9, func() Message { return &UserState{} })
	register(10, func() Message { return &BanList{} })
	register(11, func() Message { return &TextMessage{} })
	register(12, func() Message { return &PermissionDenied{} })
	register(13, func() Message { return &ACL{} })
	register(14, func() Message { return &QueryUsers{} })
	register(15, func() Message { return &CryptSetup{} })
	register(16, func() Message { return &ContextActionModify{} })
	register(17, func() Message { return &ContextAction{} })
	register(18, func() Message { return &UserList{} })
	register(19, func() Message { return &VoiceTarget{} })
	register(20, func() Message { return &PermissionQuery{} })
	register(21, func() Message { return &CodecVersion{} })
	register(22, func() Message { return &UserStats{} })
	register(23, func() Message { return &RequestBlob{} })
	register(24, func() Message { return &ServerConfig{} })
	register(25, func() Message { return &SuggestConfig{} })
}

// New constructs a zero-value message for the given type ID. The
// second return value is false for IDs not in the registry,
// including the reserved UDPTunnelID.
func New(id uint16) (Message, bool) {
	e, ok := byID[id]
	if !ok {
		return nil, false
	}
	return e.new(), true
}

// IDFor returns the registered type ID for a message value's concrete
// type.
func IDFor(msg Message) (uint16, bool) {
	e, ok := byType[reflect.TypeOf(msg)]
	return e.id, ok
}

// EventName derives the dispatcher event name for a message value,
// e.g. *ChannelState -> "channel_state". Event names are computed from
// the Go type name, not stored in the table, so a new registered
// message class never needs a name added by hand.
func EventName(msg Message) string {
	t := reflect.TypeOf(msg)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return toSnakeCase(t.Name())
}

// EventNameByID is a convenience wrapper combining New and EventName
// for callers that only have a type ID in hand. The frame dispatcher
// in package gumble calls New and EventName itself.
func EventNameByID(id uint16) (string, bool) {
	msg, ok := New(id)
	if !ok {
		return "", false
	}
	return EventName(msg), true
}

// toSnakeCase implements spec.md §4.4's derivation: insert an
// underscore at each lowercase-to-uppercase boundary and at each
// uppercase-run-to-new-word boundary (so an acronym like "UDP" in
// "UDPTunnel" splits before the "T", not before every capital), then
// lowercase everything.
func toSnakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)

	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			var next rune
			if i+1 < len(runes) {
				next = runes[i+1]
			}

			lowerToUpper := unicode.IsLower(prev)
			acronymToWord := unicode.IsUpper(prev) && unicode.IsLower(next)

			if lowerToUpper || acronymToWord {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}

	return b.String()
}
