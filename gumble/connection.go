// Package gumble is the connection runtime: TLS setup, the three
// concurrent loops (receive, send, ping), the outbound queue, and
// event dispatch through a handler.Registry.
//
// Loop topology is grounded on the teacher's gateway.Gateway (connect,
// then run concurrent pumps until one fails), internal/heart.Pacemaker
// (the ping loop, specialized to Mumble's fixed 10s client-side
// cadence rather than a server-negotiated heartrate or a
// Dead()-triggered reconnect — Mumble's server silently drops silent
// clients after 30s, and the protocol has no resume/reconnect
// handshake for this package to drive), and utils/ws.Conn's
// single-writer Send discipline (here, a single send loop draining a
// bounded channel instead of a mutex-guarded direct write).
package gumble

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"runtime"
	"strconv"
	"sync"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"golang.org/x/time/rate"

	"github.com/diamondburned/gumble-go/frame"
	"github.com/diamondburned/gumble-go/handler"
	"github.com/diamondburned/gumble-go/mumbleproto"
	"github.com/diamondburned/gumble-go/udptunnel"
)

// outboundQueueCapacity is the bounded outbound queue's capacity.
// Producers (handlers calling Send) suspend once it's full; the send
// loop drains it in FIFO order.
const outboundQueueCapacity = 1024

// defaultPingInterval is the fixed client-side ping cadence. The
// server's silence timeout is roughly 3x this.
const defaultPingInterval = 10 * time.Second

type rawFrame struct {
	typeID  uint16
	payload []byte
}

// Conn is one connected Mumble session: the TLS stream plus the three
// loops and the outbound queue that drive it. Construct one with Dial;
// Connect builds and runs one internally without returning it.
type Conn struct {
	raw      net.Conn
	registry *handler.Registry
	logger   *charmlog.Logger

	pingInterval time.Duration

	outbound  chan rawFrame
	closeOnce sync.Once
	done      chan struct{}

	// connected and lastPingRTT are read by callers concurrently with
	// the loops that write them; go.uber.org/atomic gives them
	// load/store semantics without a bespoke mutex, the way the
	// teacher's internal/moreatomic.Bool does for its own state flags.
	connected   atomic.Bool
	lastPingRTT atomic.Duration
}

func newConn(raw net.Conn, registry *handler.Registry, logger *charmlog.Logger) *Conn {
	if logger == nil {
		logger = charmlog.New(io.Discard)
	}

	return &Conn{
		raw:          raw,
		registry:     registry,
		logger:       logger,
		pingInterval: defaultPingInterval,
		outbound:     make(chan rawFrame, outboundQueueCapacity),
		done:         make(chan struct{}),
	}
}

// Dial opens a TCP connection to cfg's (host, port), performs the TLS
// handshake, and returns a Conn ready for Run. A nil logger discards
// log output.
func Dial(ctx context.Context, cfg Config, registry *handler.Registry, logger *charmlog.Logger) (*Conn, error) {
	tlsConf, err := cfg.tlsConfig()
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	dialer := tls.Dialer{Config: tlsConf}
	raw, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrap(ErrTLSHandshakeFailed, err.Error())
	}

	return newConn(raw, registry, logger), nil
}

// Connect dials cfg, performs the initial Version/Authenticate
// handshake for id, and runs the connection until a loop fails or ctx
// is cancelled. It blocks for the lifetime of the session.
func Connect(ctx context.Context, cfg Config, id Identity, registry *handler.Registry, logger *charmlog.Logger) error {
	conn, err := Dial(ctx, cfg, registry, logger)
	if err != nil {
		return err
	}

	clientVersion := id.clientVersion()
	versionMsg := &mumbleproto.Version{
		Version:   clientVersion.Pack(),
		Release:   "gumble-go",
		OS:        runtime.GOOS,
		OSVersion: runtime.GOARCH,
	}

	if err := conn.Send(ctx, versionMsg); err != nil {
		conn.raw.Close()
		return err
	}
	if err := conn.Send(ctx, id.authenticate()); err != nil {
		conn.raw.Close()
		return err
	}

	return conn.Run(ctx)
}

// Send marshals msg and enqueues it on the outbound queue, blocking
// when the queue is full until the send loop drains it, ctx is
// cancelled, or the connection closes.
func (c *Conn) Send(ctx context.Context, msg mumbleproto.Message) error {
	id, ok := mumbleproto.IDFor(msg)
	if !ok {
		return errors.Wrapf(ErrUnregisteredMessage, "%T", msg)
	}

	payload, err := msg.Marshal()
	if err != nil {
		return errors.Wrap(err, "marshal outbound message")
	}

	return c.enqueue(ctx, id, payload)
}

// SendUDPTunnel encodes msg as an outgoing UDP-tunnel frame and
// enqueues it. Encode errors (oversize Opus payload, wrong frame
// count, non-numeric position) are spec.md's InvalidUdpTunnelField:
// fatal to this call, reported to the caller, not to the connection.
func (c *Conn) SendUDPTunnel(ctx context.Context, msg udptunnel.Message) error {
	payload, err := udptunnel.Encode(msg, false)
	if err != nil {
		return err
	}
	return c.enqueue(ctx, mumbleproto.UDPTunnelID, payload)
}

// Connected reports whether Run has completed its post-handshake
// connect handler and not yet torn down.
func (c *Conn) Connected() bool { return c.connected.Load() }

// LastPingRTT returns the round-trip time measured from the most
// recently received control-stream Ping, or zero if none has arrived
// yet.
func (c *Conn) LastPingRTT() time.Duration { return c.lastPingRTT.Load() }

func (c *Conn) enqueue(ctx context.Context, typeID uint16, payload []byte) error {
	select {
	case c.outbound <- rawFrame{typeID: typeID, payload: payload}:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drives the receive, send, and ping loops until one of them
// fails or ctx is cancelled, then tears down: all loops are cancelled
// together, the underlying connection is closed, and the disconnect
// handler fires unconditionally before Run returns.
func (c *Conn) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer c.raw.Close()

	// The receive loop blocks in a plain net.Conn.Read, which has no
	// context awareness; closing the stream is what actually unblocks
	// it once runCtx ends, whether from an external cancel or from one
	// of the three loops below failing.
	go func() {
		<-runCtx.Done()
		c.raw.Close()
	}()

	c.runLifecycle(runCtx, c.registry.Connect)
	c.connected.Store(true)

	errs := make(chan error, 3)
	go func() { errs <- c.receiveLoop(runCtx) }()
	go func() { errs <- c.sendLoop(runCtx) }()
	go func() { errs <- c.pingLoop(runCtx) }()

	var firstErr error
	for i := 0; i < 3; i++ {
		if err := <-errs; err != nil && firstErr == nil {
			firstErr = err
			cancel()
		}
	}

	c.connected.Store(false)
	c.closeOnce.Do(func() { close(c.done) })

	// The disconnect handler runs after teardown with a fresh
	// background context: the stream is closing either way, so any
	// messages it produces are logged and discarded rather than sent.
	discOut := make(chan mumbleproto.Message)
	go func() {
		handler.Flatten(context.Background(), c.registry.Disconnect(context.Background()), discOut)
		close(discOut)
	}()
	for range discOut {
		c.logger.Debug("disconnect handler produced a message after teardown; discarding")
	}

	return firstErr
}

func (c *Conn) runLifecycle(ctx context.Context, invoke func(context.Context) handler.Response) {
	out := make(chan mumbleproto.Message)
	go func() {
		handler.Flatten(ctx, invoke(ctx), out)
		close(out)
	}()
	for msg := range out {
		if err := c.Send(ctx, msg); err != nil {
			c.logger.Warn("failed to send message from lifecycle handler", "err", err)
		}
	}
}

func (c *Conn) receiveLoop(ctx context.Context) error {
	for {
		fr, err := frame.Read(c.raw)
		if err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		default:
		}

		go c.dispatchFrame(ctx, fr)
	}
}

func (c *Conn) sendLoop(ctx context.Context) error {
	for {
		select {
		case fr := <-c.outbound:
			if err := frame.Write(c.raw, fr.typeID, fr.payload); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// pingLoop paces the fixed 10s client-side ping cadence with a
// golang.org/x/time/rate.Limiter rather than a bare time.Ticker, the
// way the teacher's wsutil.Throttler paces outbound websocket frames
// — here with a single-token bucket so the cadence is exact rather
// than drifting with however long each Send call takes.
func (c *Conn) pingLoop(ctx context.Context) error {
	limiter := rate.NewLimiter(rate.Every(c.pingInterval), 1)
	limiter.Allow() // consume the initial free token: first ping fires after one interval, not immediately

	for {
		if err := limiter.Wait(ctx); err != nil {
			return nil
		}

		ping := &mumbleproto.Ping{Timestamp: uint64(time.Now().UnixNano())}
		if err := c.Send(ctx, ping); err != nil {
			if err == context.Canceled {
				return nil
			}
			return err
		}
	}
}

func (c *Conn) dispatchFrame(ctx context.Context, fr frame.Frame) {
	if fr.Type == mumbleproto.UDPTunnelID {
		msg, err := udptunnel.Decode(fr.Payload, true)
		if err != nil {
			if errors.Cause(err) == udptunnel.ErrUnsupportedType {
				c.logger.Debug("unsupported udp tunnel type", "err", err)
				return
			}
			c.logger.Error("invalid udp tunnel frame", "err", err)
			return
		}
		c.dispatch(ctx, "udp_tunnel", &udpTunnelMessage{msg})
		return
	}

	msg, ok := mumbleproto.New(fr.Type)
	if !ok {
		c.logger.Debug("unknown message id", "id", fr.Type)
		return
	}

	if err := msg.Unmarshal(fr.Payload); err != nil {
		c.logger.Error("failed to unmarshal message", "id", fr.Type, "err", err)
		return
	}

	if ping, ok := msg.(*mumbleproto.Ping); ok {
		c.recordPingRTT(ping)
	}

	c.dispatch(ctx, mumbleproto.EventName(msg), msg)
}

// recordPingRTT assumes the server echoes back the timestamp this
// client last sent, per upstream Mumble's ping convention, and records
// the time elapsed since that timestamp. Only a timestamp in the
// future (a negative RTT) is ignored; the timestamp is not checked
// against the ones this client sent, so a Ping carrying any past
// timestamp is recorded as-is.
func (c *Conn) recordPingRTT(ping *mumbleproto.Ping) {
	sent := time.Unix(0, int64(ping.Timestamp))
	if rtt := time.Since(sent); rtt >= 0 {
		c.lastPingRTT.Store(rtt)
	}
}

func (c *Conn) dispatch(ctx context.Context, event string, msg mumbleproto.Message) {
	fn, ok := c.registry.Lookup(event)
	if !ok {
		c.logger.Debug("no handler registered for event", "event", event)
		return
	}

	out := make(chan mumbleproto.Message)
	go func() {
		handler.Flatten(ctx, fn(ctx, msg), out)
		close(out)
	}()

	for reply := range out {
		if err := c.Send(ctx, reply); err != nil {
			c.logger.Warn("failed to send message from handler", "event", event, "err", err)
			return
		}
	}
}

// udpTunnelMessage adapts udptunnel.Message, which has no Marshal/
// Unmarshal contract of its own, to mumbleproto.Message so it can
// flow through the same dispatch and Send paths as every other
// message class. Decode always runs with incoming=true since it is
// only ever constructed by dispatchFrame from a received frame.
type udpTunnelMessage struct {
	udptunnel.Message
}

func (m udpTunnelMessage) Marshal() ([]byte, error) {
	return udptunnel.Encode(m.Message, false)
}

func (m *udpTunnelMessage) Unmarshal(data []byte) error {
	msg, err := udptunnel.Decode(data, true)
	if err != nil {
		return err
	}
	m.Message = msg
	return nil
}
