// Package bus implements the typed publish/subscribe channel that
// decouples the agent engine from its UI (C1). It is single-process,
// unbounded, and publishers never block: emit() fans out to subscribers
// on unbuffered per-subscriber goroutine hops so a slow or absent
// listener cannot stall the publisher.
package bus

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Kind identifies an event's payload type on the bus.
type Kind string

const (
	ToolConfirmationRequest  Kind = "tool_confirmation_request"
	ToolConfirmationResponse Kind = "tool_confirmation_response"
	AskUserRequest           Kind = "ask_user_request"
	AskUserResponse          Kind = "ask_user_response"
	ToolCallsUpdate          Kind = "tool_calls_update"
)

// Event is one message published on the bus.
type Event struct {
	Kind    Kind
	Payload any
}

// Subscription is returned by On; call Unsubscribe to stop delivery.
type Subscription struct {
	bus *Bus
	id  string
	kind Kind
}

// Unsubscribe removes the callback. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.bus == nil {
		return
	}
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	delete(s.bus.subs[s.kind], s.id)
}

// Bus is a single-process typed pub/sub channel with a one-shot
// wait-for(kind, predicate) primitive.
type Bus struct {
	mu        sync.Mutex
	subs      map[Kind]map[string]func(any)
	destroyed bool
	closeCh   chan struct{}
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[Kind]map[string]func(any)), closeCh: make(chan struct{})}
}

// Emit publishes an event. Publication after Destroy is a silent no-op.
// Each subscriber callback runs on its own goroutine so Emit never blocks.
func (b *Bus) Emit(kind Kind, payload any) {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return
	}
	callbacks := make([]func(any), 0, len(b.subs[kind]))
	for _, cb := range b.subs[kind] {
		callbacks = append(callbacks, cb)
	}
	b.mu.Unlock()

	for _, cb := range callbacks {
		go cb(payload)
	}
}

// On registers a callback for every event of the given kind.
func (b *Bus) On(kind Kind, cb func(payload any)) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := uuid.NewString()
	if b.subs[kind] == nil {
		b.subs[kind] = make(map[string]func(any))
	}
	b.subs[kind][id] = cb
	return &Subscription{bus: b, id: id, kind: kind}
}

// ErrBusDestroyed is returned by outstanding WaitFor calls when Destroy runs.
var ErrBusDestroyed = fmt.Errorf("bus: destroyed while waiting")

// WaitFor blocks until an event of kind matching predicate is emitted, then
// returns its payload. It is single-shot: the internal subscription is
// removed as soon as it fires or the bus is destroyed.
func (b *Bus) WaitFor(kind Kind, predicate func(payload any) bool) (any, error) {
	result := make(chan any, 1)

	var sub *Subscription
	sub = b.On(kind, func(payload any) {
		if predicate(payload) {
			select {
			case result <- payload:
			default:
			}
		}
	})
	defer sub.Unsubscribe()

	b.mu.Lock()
	done := b.destroyed
	closeCh := b.closeCh
	b.mu.Unlock()
	if done {
		return nil, ErrBusDestroyed
	}

	select {
	case p := <-result:
		return p, nil
	case <-closeCh:
		return nil, ErrBusDestroyed
	}
}

// EmitAndWaitFor publishes a request event and then waits for the first
// matching response, with the response subscription registered before the
// request is published. This closes the race an Emit-then-WaitFor call
// pair would otherwise have against a response that arrives fast enough to
// be delivered to zero subscribers.
func (b *Bus) EmitAndWaitFor(requestKind Kind, requestPayload any, responseKind Kind, predicate func(payload any) bool) (any, error) {
	result := make(chan any, 1)

	var sub *Subscription
	sub = b.On(responseKind, func(payload any) {
		if predicate(payload) {
			select {
			case result <- payload:
			default:
			}
		}
	})
	defer sub.Unsubscribe()

	b.mu.Lock()
	done := b.destroyed
	closeCh := b.closeCh
	b.mu.Unlock()
	if done {
		return nil, ErrBusDestroyed
	}

	b.Emit(requestKind, requestPayload)

	select {
	case p := <-result:
		return p, nil
	case <-closeCh:
		return nil, ErrBusDestroyed
	}
}

// Destroy closes the bus. Outstanding WaitFor calls resolve as
// Cancel-equivalent errors; subsequent Emit calls are silent no-ops.
func (b *Bus) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return
	}
	b.destroyed = true
	b.subs = make(map[Kind]map[string]func(any))
	close(b.closeCh)
}
