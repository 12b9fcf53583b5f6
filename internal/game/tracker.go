// internal/game/tracker.go
package game

import (
	"github.com/google/uuid"

	"github.com/splitduel/server/internal/engine"
	"github.com/splitduel/server/internal/events"
)

// entityRecord is the wire-facing identity of one engine card entity.
// Records outlive destruction so notifications emitted at destruction time
// can still resolve card metadata.
type entityRecord struct {
	WireID       uuid.UUID
	OwnerID      uuid.UUID
	DefinitionID string
}

// entityTracker mirrors engine entity handles with UUIDs for client
// communication. Updated in lockstep with every engine mutation.
type entityTracker struct {
	byHandle map[engine.EntityID]entityRecord
	byWire   map[uuid.UUID]engine.EntityID
}

func newEntityTracker() entityTracker {
	return entityTracker{
		byHandle: make(map[engine.EntityID]entityRecord),
		byWire:   make(map[uuid.UUID]engine.EntityID),
	}
}

// register assigns a wire UUID to a freshly spawned engine entity.
func (t *entityTracker) register(handle engine.EntityID, owner uuid.UUID, definitionID string) entityRecord {
	rec := entityRecord{
		WireID:       uuid.New(),
		OwnerID:      owner,
		DefinitionID: definitionID,
	}
	t.byHandle[handle] = rec
	t.byWire[rec.WireID] = handle
	return rec
}

// record resolves an engine handle. ok is false for handles this tracker
// never registered.
func (t *entityTracker) record(handle engine.EntityID) (entityRecord, bool) {
	rec, ok := t.byHandle[handle]
	return rec, ok
}

// handle resolves a wire UUID back to the engine entity handle.
func (t *entityTracker) handle(wireID uuid.UUID) (engine.EntityID, bool) {
	h, ok := t.byWire[wireID]
	return h, ok
}

// cardRef builds the bus payload for an engine entity.
func (t *entityTracker) cardRef(handle engine.EntityID) events.CardRef {
	rec := t.byHandle[handle]
	return events.CardRef{
		EntityID:     rec.WireID,
		OwnerID:      rec.OwnerID,
		DefinitionID: rec.DefinitionID,
	}
}

// wireCard builds the notification payload for an engine entity.
func (t *entityTracker) wireCard(handle engine.EntityID) *WireCard {
	rec := t.byHandle[handle]
	return &WireCard{
		EntityID:     rec.WireID,
		DefinitionID: rec.DefinitionID,
		OwnerID:      rec.OwnerID,
	}
}
