// Package state is the optional channel/user convenience cache
// described in SPEC_FULL.md §6: a layer on top of the bare handler
// event stream, grounded on the teacher's state package (which wraps
// session's raw event dispatch with read-through caches for guilds,
// channels, and members). Unlike the core connection runtime, this
// package is consumed state, not owned by it — a bot attaches it to a
// handler.Registry and reads it whenever convenient; the core has no
// knowledge this package exists.
package state

import (
	"context"
	"sync"

	"github.com/diamondburned/gumble-go/handler"
	"github.com/diamondburned/gumble-go/mumbleproto"
)

// Channel is a snapshot of a ChannelState's fields as last observed.
type Channel struct {
	ID          uint32
	Parent      *uint32
	Name        string
	Description string
	Temporary   bool
	Position    int32
	Links       []uint32
}

// User is a snapshot of a UserState's fields as last observed.
type User struct {
	Session   uint32
	Name      string
	ChannelID uint32
	Mute      bool
	Deaf      bool
	Suppress  bool
	SelfMute  bool
	SelfDeaf  bool
	Comment   string
}

// Registry caches channels and users from the events the server sends
// after a successful handshake. A zero-value Registry is not usable;
// construct one with Attach.
type Registry struct {
	mu       sync.RWMutex
	channels map[uint32]Channel
	users    map[uint32]User
}

// Attach registers this package's handlers on reg for
// channel_state/channel_remove/user_state/user_remove and returns the
// Registry those handlers populate. Attach must be called before the
// connection carrying reg starts dispatching, matching the handler
// registry's own read-only-after-initialization contract.
func Attach(reg *handler.Registry) *Registry {
	s := &Registry{
		channels: make(map[uint32]Channel),
		users:    make(map[uint32]User),
	}

	reg.On("channel_state", func(ctx context.Context, msg mumbleproto.Message) handler.Response {
		s.applyChannelState(msg.(*mumbleproto.ChannelState))
		return handler.None()
	})
	reg.On("channel_remove", func(ctx context.Context, msg mumbleproto.Message) handler.Response {
		cr := msg.(*mumbleproto.ChannelRemove)
		s.mu.Lock()
		delete(s.channels, cr.ChannelID)
		s.mu.Unlock()
		return handler.None()
	})
	reg.On("user_state", func(ctx context.Context, msg mumbleproto.Message) handler.Response {
		s.applyUserState(msg.(*mumbleproto.UserState))
		return handler.None()
	})
	reg.On("user_remove", func(ctx context.Context, msg mumbleproto.Message) handler.Response {
		ur := msg.(*mumbleproto.UserRemove)
		s.mu.Lock()
		delete(s.users, ur.Session)
		s.mu.Unlock()
		return handler.None()
	})

	return s
}

// applyChannelState overwrites the cached channel wholesale.
// ChannelState carries every channel field on both creation and
// update (unlike UserState, Mumble never sends a partial
// ChannelState), so a plain replace is correct.
func (s *Registry) applyChannelState(cs *mumbleproto.ChannelState) {
	ch := Channel{
		ID:          cs.ChannelID,
		Parent:      cs.Parent,
		Name:        cs.Name,
		Description: cs.Description,
		Temporary:   cs.Temporary,
		Position:    cs.Position,
		Links:       append([]uint32(nil), cs.Links...),
	}

	s.mu.Lock()
	s.channels[ch.ID] = ch
	s.mu.Unlock()
}

// applyUserState merges a UserState delta onto the cached user: only
// the fields the server actually optionalized (ChannelID) are merged
// by presence; the rest replace the cached value outright, matching
// how the server re-sends a user's full boolean/comment state on any
// change rather than diffing it itself.
func (s *Registry) applyUserState(us *mumbleproto.UserState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.users[us.Session]
	u.Session = us.Session
	u.Name = us.Name
	if us.ChannelID != nil {
		u.ChannelID = *us.ChannelID
	}
	u.Mute = us.Mute
	u.Deaf = us.Deaf
	u.Suppress = us.Suppress
	u.SelfMute = us.SelfMute
	u.SelfDeaf = us.SelfDeaf
	u.Comment = us.Comment

	s.users[us.Session] = u
}

// Channels returns a snapshot of every cached channel.
func (s *Registry) Channels() []Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Channel, 0, len(s.channels))
	for _, ch := range s.channels {
		out = append(out, ch)
	}
	return out
}

// Users returns a snapshot of every cached user.
func (s *Registry) Users() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	return out
}

// Channel looks up a single cached channel by ID.
func (s *Registry) Channel(id uint32) (Channel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.channels[id]
	return ch, ok
}

// User looks up a single cached user by session ID.
func (s *Registry) User(session uint32) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[session]
	return u, ok
}
