package syncmanager

import (
	"sync"
	"time"
)

// EventKind names a lifecycle or data event the manager emits to the UI
// layer.
type EventKind string

const (
	// EventConnected fires when a transport becomes active. The payload
	// names the connection type.
	EventConnected EventKind = "connected"
	// EventDisconnected fires when the manager leaves Push/Pull for
	// Offline.
	EventDisconnected EventKind = "disconnected"
	// EventDataUpdated carries fresh server-side data from any transport.
	EventDataUpdated EventKind = "data_updated"
	// EventSyncError reports a recovered transport error; steady-state
	// operation never surfaces errors as return values.
	EventSyncError EventKind = "sync_error"
	// EventDataInconsistency fires when a consistency check reports a
	// mismatch.
	EventDataInconsistency EventKind = "data_inconsistency"
)

// Event is the typed payload delivered to subscribed handlers.
type Event struct {
	Kind      EventKind
	Payload   any
	Timestamp time.Time
}

// Handler receives events. Handlers run synchronously on the emitting
// goroutine and must not block.
type Handler func(Event)

// Token identifies one subscription for later removal.
type Token struct {
	kind EventKind
	id   int
}

// eventBus is a minimal typed observer registry. It replaces dynamic
// event-name pub/sub with an explicit subscribe/unsubscribe contract.
type eventBus struct {
	mu       sync.Mutex
	handlers map[EventKind]map[int]Handler
	nextID   int
}

func newEventBus() *eventBus {
	return &eventBus{handlers: make(map[EventKind]map[int]Handler)}
}

func (b *eventBus) subscribe(kind EventKind, h Handler) Token {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers[kind] == nil {
		b.handlers[kind] = make(map[int]Handler)
	}
	b.nextID++
	b.handlers[kind][b.nextID] = h
	return Token{kind: kind, id: b.nextID}
}

func (b *eventBus) unsubscribe(tok Token) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if hs := b.handlers[tok.kind]; hs != nil {
		delete(hs, tok.id)
	}
}

func (b *eventBus) emit(kind EventKind, payload any) {
	b.mu.Lock()
	hs := make([]Handler, 0, len(b.handlers[kind]))
	for _, h := range b.handlers[kind] {
		hs = append(hs, h)
	}
	b.mu.Unlock()

	ev := Event{Kind: kind, Payload: payload, Timestamp: time.Now()}
	for _, h := range hs {
		h(ev)
	}
}

// clear removes every listener. Called by Destroy.
func (b *eventBus) clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.handlers)
}
