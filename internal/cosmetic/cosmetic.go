// Package cosmetic turns semantic match events into presentation cues.
// Nothing in here feeds back into match state; the session publishes to
// its bus and moves on.
package cosmetic

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/splitduel/server/internal/events"
)

// AnimationEvent is a presentation cue for one card.
type AnimationEvent string

const (
	AnimAttacked     AnimationEvent = "attacked"      // the card launched an attack
	AnimBlocked      AnimationEvent = "blocked"       // the card absorbed an attack
	AnimWasDestroyed AnimationEvent = "was_destroyed" // the card left play
	AnimSplit        AnimationEvent = "split"         // the card divided
)

// Handler receives presentation cues for a single card.
type Handler interface {
	PlayEvent(card events.CardRef, event AnimationEvent)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(card events.CardRef, event AnimationEvent)

func (f HandlerFunc) PlayEvent(card events.CardRef, event AnimationEvent) { f(card, event) }

// Registry maps card entities to their presentation handlers. Cards with
// no registered handler are skipped silently.
type Registry struct {
	mu       sync.RWMutex
	handlers map[uuid.UUID]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[uuid.UUID]Handler)}
}

// Register binds a handler to a card entity, replacing any previous one.
func (r *Registry) Register(entityID uuid.UUID, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[entityID] = h
}

// Unregister removes the card's handler. Safe to call for unknown ids.
func (r *Registry) Unregister(entityID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, entityID)
}

func (r *Registry) lookup(entityID uuid.UUID) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[entityID]
	return h, ok
}

// Len reports the number of registered handlers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// Director subscribes to a session bus and routes semantic events to the
// per-card handlers. One director per session.
type Director struct {
	registry *Registry
	bus      *events.Bus
	token    events.Token
	log      *logrus.Entry
}

// NewDirector attaches a director to the bus. Call Close to detach.
func NewDirector(bus *events.Bus, registry *Registry) *Director {
	d := &Director{
		registry: registry,
		bus:      bus,
		log:      logrus.WithField("component", "cosmetic"),
	}
	d.token = bus.Subscribe(d.handle)
	return d
}

// Close detaches the director from the bus. Idempotent.
func (d *Director) Close() {
	d.bus.Unsubscribe(d.token)
}

func (d *Director) handle(event any) {
	switch e := event.(type) {
	case events.Attacked:
		d.play(e.Attacker, AnimAttacked)
		if e.Defender != nil {
			d.play(*e.Defender, AnimBlocked)
		}
	case events.Destroyed:
		d.play(e.Card, AnimWasDestroyed)
		// The card is gone; its handler has nothing left to animate.
		d.registry.Unregister(e.Card.EntityID)
	case events.Split:
		d.play(e.Original, AnimSplit)
	default:
		d.log.WithField("event", event).Debug("unhandled bus event")
	}
}

func (d *Director) play(card events.CardRef, anim AnimationEvent) {
	h, ok := d.registry.lookup(card.EntityID)
	if !ok {
		return
	}
	h.PlayEvent(card, anim)
}
