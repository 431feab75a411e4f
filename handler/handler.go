// Package handler implements the connection runtime's handler
// contract and its flattener: named event handlers whose results —
// nothing, one message, a sequence, an asynchronous producer, or any
// nesting of those — collapse into a flat, ordered stream of outbound
// messages.
//
// Grounded on the teacher's own handler package (reflection-based
// registration keyed by a callback's first argument type, a
// serial-ordered handler map with remove closures), generalized to an
// explicit event-name registry instead of reflecting over argument
// types: Go has no dynamic "on_<event>" dispatch worth emulating for
// this protocol, since every inbound message already carries a known
// type ID the registry can key on directly, and an explicit map is
// easier for callers to audit than a reflect-discovered one.
package handler

import (
	"context"

	"github.com/diamondburned/gumble-go/mumbleproto"
)

// Response is the result of one handler invocation. Flatten walks it
// to produce an ordered stream of outbound messages.
type Response interface {
	flatten(ctx context.Context, out chan<- mumbleproto.Message)
}

// None is the empty Response: a handler that produced no outbound
// messages.
func None() Response { return noneResponse{} }

type noneResponse struct{}

func (noneResponse) flatten(context.Context, chan<- mumbleproto.Message) {}

// One wraps a single outbound message.
func One(msg mumbleproto.Message) Response { return messageResponse{msg} }

type messageResponse struct{ msg mumbleproto.Message }

func (r messageResponse) flatten(ctx context.Context, out chan<- mumbleproto.Message) {
	select {
	case out <- r.msg:
	case <-ctx.Done():
	}
}

// Many wraps an ordered sequence of Responses, flattened in order.
func Many(items ...Response) Response { return manyResponse{items} }

type manyResponse struct{ items []Response }

func (r manyResponse) flatten(ctx context.Context, out chan<- mumbleproto.Message) {
	for _, item := range r.items {
		if item == nil {
			continue
		}
		item.flatten(ctx, out)
		if ctx.Err() != nil {
			return
		}
	}
}

// Stream wraps an asynchronous producer of Responses: a channel that
// the handler (or a goroutine it started) sends further Responses on,
// closed when the producer is done. Flatten drains it in arrival
// order, same as any other Response.
func Stream(c <-chan Response) Response { return streamResponse{c} }

type streamResponse struct{ c <-chan Response }

func (r streamResponse) flatten(ctx context.Context, out chan<- mumbleproto.Message) {
	for {
		select {
		case resp, ok := <-r.c:
			if !ok {
				return
			}
			if resp != nil {
				resp.flatten(ctx, out)
			}
		case <-ctx.Done():
			return
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// Flatten recursively unwraps r into a flat ordered stream of
// outbound messages, sending each to out in source order. It blocks
// until r is fully drained or ctx is cancelled.
func Flatten(ctx context.Context, r Response, out chan<- mumbleproto.Message) {
	if r == nil {
		return
	}
	r.flatten(ctx, out)
}

// Func is a handler for a named event carrying a parsed message.
type Func func(ctx context.Context, msg mumbleproto.Message) Response

// LifecycleFunc is a handler for the synthetic connect/disconnect
// events, which carry no message.
type LifecycleFunc func(ctx context.Context) Response

// Registry is the explicit event-name -> handler map described above.
// A zero-value Registry is not ready to use; construct one with New.
// It is read-only once a connection starts dispatching against it:
// registering handlers concurrently with dispatch is not supported.
type Registry struct {
	handlers     map[string]Func
	onConnect    LifecycleFunc
	onDisconnect LifecycleFunc
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{handlers: make(map[string]Func)}
}

// On registers fn for the named event (e.g. "channel_state"),
// replacing any previous handler for that name.
func (r *Registry) On(event string, fn Func) {
	r.handlers[event] = fn
}

// OnConnect registers the handler for the synthetic connect event,
// fired once after the TLS handshake completes and before any frame
// is dispatched.
func (r *Registry) OnConnect(fn LifecycleFunc) { r.onConnect = fn }

// OnDisconnect registers the handler for the synthetic disconnect
// event, guaranteed to fire during teardown regardless of how the
// connection ended.
func (r *Registry) OnDisconnect(fn LifecycleFunc) { r.onDisconnect = fn }

// Lookup returns the handler registered for event, if any. A missing
// handler is not an error: dispatch is a no-op, logged at debug level
// by the caller.
func (r *Registry) Lookup(event string) (Func, bool) {
	fn, ok := r.handlers[event]
	return fn, ok
}

// Connect invokes the connect handler, if registered, returning None
// otherwise.
func (r *Registry) Connect(ctx context.Context) Response {
	if r.onConnect == nil {
		return None()
	}
	return r.onConnect(ctx)
}

// Disconnect invokes the disconnect handler, if registered, returning
// None otherwise.
func (r *Registry) Disconnect(ctx context.Context) Response {
	if r.onDisconnect == nil {
		return None()
	}
	return r.onDisconnect(ctx)
}
