package game

import (
	"github.com/google/uuid"
)

// SnapshotCard is one live card as replicated to actors.
type SnapshotCard struct {
	EntityID     uuid.UUID `json:"entityId"`
	DefinitionID string    `json:"definitionId"`
	OwnerID      uuid.UUID `json:"ownerId"`
}

// SnapshotParticipant is one seated actor and their visible state.
type SnapshotParticipant struct {
	ParticipantID uuid.UUID      `json:"participantId"`
	Name          string         `json:"name"`
	Seat          uint8          `json:"seat"`
	Health        int            `json:"health"`
	Connected     bool           `json:"connected"`
	Cards         []SnapshotCard `json:"cards"`
}

// StateSnapshot is the full replicated surface of a session. Nothing in a
// duel is hidden information, so every actor receives the same snapshot.
type StateSnapshot struct {
	SessionID            uuid.UUID             `json:"sessionId"`
	Phase                string                `json:"phase"`
	TurnIndex            int                   `json:"turnIndex"`
	CurrentParticipantID uuid.UUID             `json:"currentParticipantId,omitempty"`
	Participants         []SnapshotParticipant `json:"participants"`
	WinnerID             uuid.UUID             `json:"winnerId,omitempty"`
}

// Snapshot assembles the replicated surface from the live match state.
// Assumes lock is held.
func (s *Session) Snapshot() StateSnapshot {
	snap := StateSnapshot{
		SessionID: s.ID,
		Phase:     s.Match.Phase.String(),
		TurnIndex: int(s.Match.TurnIndex),
	}

	for _, p := range s.Participants {
		ps := &s.Match.Players[p.Seat]
		sp := SnapshotParticipant{
			ParticipantID: p.ID,
			Name:          p.Name,
			Seat:          p.Seat,
			Health:        int(ps.Health),
			Connected:     p.Connected,
		}
		for i := uint8(0); i < ps.CardLen; i++ {
			slot := ps.Cards[i]
			if !slot.Live {
				continue
			}
			rec, ok := s.tracker.record(slot.ID)
			if !ok {
				continue
			}
			sp.Cards = append(sp.Cards, SnapshotCard{
				EntityID:     rec.WireID,
				DefinitionID: rec.DefinitionID,
				OwnerID:      rec.OwnerID,
			})
		}
		snap.Participants = append(snap.Participants, sp)
	}

	if s.Match.IsActive() {
		if cur := s.participantBySeat(s.Match.TurnIndex); cur != nil {
			snap.CurrentParticipantID = cur.ID
		}
	}
	if s.Match.IsFinished() {
		if seat, ok := s.Match.Winner(); ok {
			if w := s.participantBySeat(seat); w != nil {
				snap.WinnerID = w.ID
			}
		}
	}
	return snap
}
