// Package events carries semantic game events from the match session to
// presentation collaborators without letting them influence rule outcomes.
//
// The bus is an explicit per-session object: sessions publish, cosmetic and
// audio layers subscribe. Delivery is synchronous and in publish order, so
// subscribers observe entities while their data is still resolvable. The
// bus never filters, re-orders or persists anything.
package events

import (
	"sync"

	"github.com/google/uuid"
	"github.com/splitduel/server/internal/engine"
)

// CardRef identifies a card at the moment an event was emitted. Handlers
// must treat a ref whose entity has vanished since as "no longer exists",
// not as an error.
type CardRef struct {
	EntityID     uuid.UUID
	OwnerID      uuid.UUID
	DefinitionID string
}

// Attacked is published once per resolved attack. Defender is nil on a
// direct hit.
type Attacked struct {
	Attacker CardRef
	Defender *CardRef
}

// Destroyed is published right before a card ceases to exist.
type Destroyed struct {
	Card CardRef
}

// Split is published when a split card divides, referencing the original
// entity and the archetype of the two replacements.
type Split struct {
	Original     CardRef
	NewArchetype engine.Archetype
}

// Handler receives every published event. Exactly one of the type
// assertions on the event value will succeed.
type Handler func(event any)

// Token identifies one subscription for later removal.
type Token uint64

// Bus is a synchronous in-process publish/subscribe channel.
// The zero value is not usable; call NewBus.
type Bus struct {
	mu       sync.Mutex
	next     Token
	handlers []subscription
}

type subscription struct {
	token   Token
	handler Handler
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a handler and returns its removal token.
func (b *Bus) Subscribe(h Handler) Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	b.handlers = append(b.handlers, subscription{token: b.next, handler: h})
	return b.next
}

// Unsubscribe removes a subscription. Unknown or already-removed tokens
// are a no-op.
func (b *Bus) Unsubscribe(t Token) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.handlers {
		if s.token == t {
			b.handlers = append(b.handlers[:i], b.handlers[i+1:]...)
			return
		}
	}
}

// Publish delivers the event to every subscriber in registration order.
// Publishing with zero subscribers is a safe no-op.
func (b *Bus) Publish(event any) {
	b.mu.Lock()
	snapshot := make([]subscription, len(b.handlers))
	copy(snapshot, b.handlers)
	b.mu.Unlock()

	for _, s := range snapshot {
		s.handler(event)
	}
}
