package gumble

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diamondburned/gumble-go/frame"
	"github.com/diamondburned/gumble-go/handler"
	"github.com/diamondburned/gumble-go/mumbleproto"
	"github.com/diamondburned/gumble-go/udptunnel"
)

// newTestConn wires a Conn to one end of an in-process net.Pipe,
// returning the other end for the test to act as the "server" side.
func newTestConn(registry *handler.Registry) (*Conn, net.Conn) {
	client, server := net.Pipe()
	return newConn(client, registry, nil), server
}

func TestSendWritesFrameToStream(t *testing.T) {
	reg := handler.New()
	conn, server := newTestConn(reg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- conn.Run(ctx) }()

	require.NoError(t, conn.Send(ctx, &mumbleproto.Ping{Timestamp: 5}))

	fr, err := frame.Read(server)
	require.NoError(t, err)

	id, ok := mumbleproto.IDFor(&mumbleproto.Ping{})
	require.True(t, ok)
	assert.Equal(t, id, fr.Type)

	got := &mumbleproto.Ping{}
	require.NoError(t, got.Unmarshal(fr.Payload))
	assert.Equal(t, uint64(5), got.Timestamp)

	cancel()
	server.Close()
	<-runDone
}

func TestReceivedFrameDispatchesToRegisteredHandler(t *testing.T) {
	reg := handler.New()

	received := make(chan *mumbleproto.ChannelState, 1)
	reg.On("channel_state", func(ctx context.Context, msg mumbleproto.Message) handler.Response {
		received <- msg.(*mumbleproto.ChannelState)
		return handler.None()
	})

	conn, server := newTestConn(reg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- conn.Run(ctx) }()

	cs := &mumbleproto.ChannelState{ChannelID: 7, Name: "Lobby"}
	data, err := cs.Marshal()
	require.NoError(t, err)
	id, _ := mumbleproto.IDFor(cs)
	require.NoError(t, frame.Write(server, id, data))

	select {
	case got := <-received:
		assert.Equal(t, uint32(7), got.ChannelID)
		assert.Equal(t, "Lobby", got.Name)
	case <-time.After(2 * time.Second):
		t.Fatal("handler was never invoked")
	}

	cancel()
	server.Close()
	<-runDone
}

func TestHandlerResponseIsSentBack(t *testing.T) {
	reg := handler.New()
	reg.On("text_message", func(ctx context.Context, msg mumbleproto.Message) handler.Response {
		return handler.One(&mumbleproto.Ping{Timestamp: 42})
	})

	conn, server := newTestConn(reg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- conn.Run(ctx) }()

	tm := &mumbleproto.TextMessage{Actor: 1, Message: "hi"}
	data, err := tm.Marshal()
	require.NoError(t, err)
	id, _ := mumbleproto.IDFor(tm)
	require.NoError(t, frame.Write(server, id, data))

	fr, err := frame.Read(server)
	require.NoError(t, err)
	pingID, _ := mumbleproto.IDFor(&mumbleproto.Ping{})
	assert.Equal(t, pingID, fr.Type)

	got := &mumbleproto.Ping{}
	require.NoError(t, got.Unmarshal(fr.Payload))
	assert.Equal(t, uint64(42), got.Timestamp)

	cancel()
	server.Close()
	<-runDone
}

func TestUnknownMessageIDIsSkippedNotFatal(t *testing.T) {
	reg := handler.New()
	received := make(chan struct{}, 1)
	reg.On("ping", func(ctx context.Context, msg mumbleproto.Message) handler.Response {
		received <- struct{}{}
		return handler.None()
	})

	conn, server := newTestConn(reg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- conn.Run(ctx) }()

	// 90 is outside the registered 0-25 range.
	require.NoError(t, frame.Write(server, 90, []byte{1, 2, 3}))

	ping := &mumbleproto.Ping{Timestamp: 1}
	data, _ := ping.Marshal()
	id, _ := mumbleproto.IDFor(ping)
	require.NoError(t, frame.Write(server, id, data))

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("connection did not survive an unknown message id")
	}

	cancel()
	server.Close()
	<-runDone
}

func TestUDPTunnelFrameDispatchesAsUDPTunnelEvent(t *testing.T) {
	reg := handler.New()
	received := make(chan udptunnel.Message, 1)
	reg.On("udp_tunnel", func(ctx context.Context, msg mumbleproto.Message) handler.Response {
		received <- msg.(*udpTunnelMessage).Message
		return handler.None()
	})

	conn, server := newTestConn(reg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- conn.Run(ctx) }()

	ping := udptunnel.Message{Type: udptunnel.Ping, Timestamp: 123}
	data, err := udptunnel.Encode(ping, false)
	require.NoError(t, err)
	require.NoError(t, frame.Write(server, mumbleproto.UDPTunnelID, data))

	select {
	case got := <-received:
		assert.Equal(t, int64(123), got.Timestamp)
	case <-time.After(2 * time.Second):
		t.Fatal("udp tunnel handler was never invoked")
	}

	cancel()
	server.Close()
	<-runDone
}

func TestPingLoopFiresRepeatedlyAtConfiguredInterval(t *testing.T) {
	reg := handler.New()
	conn, server := newTestConn(reg)
	conn.pingInterval = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- conn.Run(ctx) }()

	pingID, _ := mumbleproto.IDFor(&mumbleproto.Ping{})
	for i := 0; i < 2; i++ {
		fr, err := frame.Read(server)
		require.NoError(t, err)
		assert.Equal(t, pingID, fr.Type)
	}

	cancel()
	server.Close()
	<-runDone
}

func TestConnectedAndLastPingRTTTracking(t *testing.T) {
	reg := handler.New()
	conn, server := newTestConn(reg)

	ctx, cancel := context.WithCancel(context.Background())

	runDone := make(chan error, 1)
	go func() { runDone <- conn.Run(ctx) }()

	assert.Eventually(t, conn.Connected, time.Second, 10*time.Millisecond)
	assert.Equal(t, time.Duration(0), conn.LastPingRTT())

	sent := time.Now().Add(-5 * time.Millisecond)
	ping := &mumbleproto.Ping{Timestamp: uint64(sent.UnixNano())}
	data, err := ping.Marshal()
	require.NoError(t, err)
	id, _ := mumbleproto.IDFor(ping)
	require.NoError(t, frame.Write(server, id, data))

	require.Eventually(t, func() bool {
		return conn.LastPingRTT() > 0
	}, time.Second, 10*time.Millisecond)

	cancel()
	server.Close()
	<-runDone

	assert.False(t, conn.Connected())
}

func TestConnectAndDisconnectHandlersFire(t *testing.T) {
	reg := handler.New()

	connected := make(chan struct{}, 1)
	disconnected := make(chan struct{}, 1)
	reg.OnConnect(func(ctx context.Context) handler.Response {
		connected <- struct{}{}
		return handler.None()
	})
	reg.OnDisconnect(func(ctx context.Context) handler.Response {
		disconnected <- struct{}{}
		return handler.None()
	})

	conn, server := newTestConn(reg)
	ctx, cancel := context.WithCancel(context.Background())

	runDone := make(chan error, 1)
	go func() { runDone <- conn.Run(ctx) }()

	select {
	case <-connected:
	case <-time.After(2 * time.Second):
		t.Fatal("connect handler was never invoked")
	}

	cancel()
	server.Close()
	<-runDone

	select {
	case <-disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect handler was never invoked")
	}
}

func TestRunReturnsConnectionClosedOnEOF(t *testing.T) {
	reg := handler.New()
	conn, server := newTestConn(reg)

	runDone := make(chan error, 1)
	go func() { runDone <- conn.Run(context.Background()) }()

	server.Close()

	select {
	case err := <-runDone:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after the stream closed")
	}
}
