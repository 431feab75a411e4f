package handler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diamondburned/gumble-go/mumbleproto"
)

func drain(t *testing.T, r Response) []mumbleproto.Message {
	t.Helper()

	out := make(chan mumbleproto.Message, 16)
	Flatten(context.Background(), r, out)
	close(out)

	var got []mumbleproto.Message
	for msg := range out {
		got = append(got, msg)
	}
	return got
}

func TestNoneFlattensToNothing(t *testing.T) {
	assert.Empty(t, drain(t, None()))
	assert.Empty(t, drain(t, nil))
}

func TestOneFlattensToSingleMessage(t *testing.T) {
	ping := &mumbleproto.Ping{Timestamp: 1}
	got := drain(t, One(ping))
	require.Len(t, got, 1)
	assert.Same(t, ping, got[0])
}

func TestManyFlattensInOrderAndSkipsNilAndNone(t *testing.T) {
	a := &mumbleproto.Ping{Timestamp: 1}
	b := &mumbleproto.Ping{Timestamp: 2}
	c := &mumbleproto.Ping{Timestamp: 3}

	got := drain(t, Many(One(a), nil, None(), One(b), Many(One(c))))
	require.Len(t, got, 3)
	assert.Same(t, a, got[0])
	assert.Same(t, b, got[1])
	assert.Same(t, c, got[2])
}

func TestStreamDrainsInArrivalOrder(t *testing.T) {
	c := make(chan Response)
	go func() {
		defer close(c)
		c <- One(&mumbleproto.Ping{Timestamp: 1})
		c <- One(&mumbleproto.Ping{Timestamp: 2})
		c <- Many(One(&mumbleproto.Ping{Timestamp: 3}), One(&mumbleproto.Ping{Timestamp: 4}))
	}()

	got := drain(t, Stream(c))
	require.Len(t, got, 4)
	for i, msg := range got {
		assert.Equal(t, uint64(i+1), msg.(*mumbleproto.Ping).Timestamp)
	}
}

func TestFlattenStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	blocked := make(chan Response) // never sent to, never closed
	out := make(chan mumbleproto.Message)

	done := make(chan struct{})
	go func() {
		Flatten(ctx, Stream(blocked), out)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Flatten did not respect context cancellation")
	}
}

func TestRegistryLookupAndDispatch(t *testing.T) {
	r := New()

	_, ok := r.Lookup("channel_state")
	assert.False(t, ok)

	var gotMsg mumbleproto.Message
	r.On("channel_state", func(ctx context.Context, msg mumbleproto.Message) Response {
		gotMsg = msg
		return One(&mumbleproto.Ping{Timestamp: 99})
	})

	fn, ok := r.Lookup("channel_state")
	require.True(t, ok)

	in := &mumbleproto.ChannelState{ChannelID: 5}
	resp := fn(context.Background(), in)
	assert.Same(t, in, gotMsg)

	got := drain(t, resp)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(99), got[0].(*mumbleproto.Ping).Timestamp)
}

func TestRegistryLifecycleDefaultsToNone(t *testing.T) {
	r := New()
	assert.Empty(t, drain(t, r.Connect(context.Background())))
	assert.Empty(t, drain(t, r.Disconnect(context.Background())))
}

func TestRegistryLifecycleHandlers(t *testing.T) {
	r := New()

	var connected, disconnected bool
	r.OnConnect(func(ctx context.Context) Response {
		connected = true
		return One(&mumbleproto.Ping{Timestamp: 1})
	})
	r.OnDisconnect(func(ctx context.Context) Response {
		disconnected = true
		return None()
	})

	got := drain(t, r.Connect(context.Background()))
	require.Len(t, got, 1)
	assert.True(t, connected)

	drain(t, r.Disconnect(context.Background()))
	assert.True(t, disconnected)
}
