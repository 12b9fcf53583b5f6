// Package game hosts the authoritative match session: it owns the rules
// engine, maps engine entities to wire identities, serializes all actor
// requests, and fans out notifications and semantic events.
package game

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/splitduel/server/internal/cache"
	"github.com/splitduel/server/internal/catalog"
	"github.com/splitduel/server/internal/database"
	"github.com/splitduel/server/internal/engine"
	"github.com/splitduel/server/internal/events"
	"github.com/splitduel/server/internal/models"
)

// OnMatchEndFunc is executed once when a session reaches its terminal
// phase. winnerID is uuid.Nil when the match ended without a winner.
type OnMatchEndFunc func(sessionID, winnerID uuid.UUID, reason string)

// Session is the single authoritative instance of one duel.
type Session struct {
	ID uuid.UUID

	// Mu protects all session state. Every exported method takes it;
	// unexported helpers assume it is held.
	Mu sync.Mutex

	Match   engine.MatchState
	Catalog *catalog.Registry
	Bus     *events.Bus

	Participants []*models.Participant
	tracker      entityTracker
	actionIndex  int

	// Communication callbacks, wired by the transport layer.
	BroadcastFn   func(n Notification)
	BroadcastToFn func(participantID uuid.UUID, n Notification)
	OnMatchEnd    OnMatchEndFunc

	ended bool // OnMatchEnd already fired
	log   *logrus.Entry
}

// NewSession creates a session in the Waiting phase with its own event bus.
func NewSession(reg *catalog.Registry, rules engine.Rules) *Session {
	id := uuid.New()
	return &Session{
		ID:      id,
		Match:   engine.NewMatch(rules),
		Catalog: reg,
		Bus:     events.NewBus(),
		tracker: newEntityTracker(),
		log:     logrus.WithField("session", id),
	}
}

// ---------------------------------------------------------------------------
// Admission
// ---------------------------------------------------------------------------

// AdmitParticipant seats a participant. The second admission deals the
// opening hands and starts the match. Duplicate ids and full rosters are
// rejected without state change.
func (s *Session) AdmitParticipant(p *models.Participant) error {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	if s.participantByID(p.ID) != nil {
		return fmt.Errorf("participant %s already admitted", p.ID)
	}
	seat, err := s.Match.Admit()
	if err != nil {
		return fmt.Errorf("admit participant %s: %w", p.ID, err)
	}

	p.Seat = seat
	p.Connected = true
	s.Participants = append(s.Participants, p)
	s.log.WithFields(logrus.Fields{"participant": p.ID, "seat": seat}).Info("participant admitted")
	s.journalAction(p.ID, "participant_admitted", map[string]any{"seat": seat, "name": p.Name})

	if s.Match.IsActive() {
		s.registerDealtCards()
		s.fireNotification(Notification{Type: NotifMatchStarted})
		s.broadcastDealtCards()
		s.fireNotification(Notification{Type: NotifTurnChanged, TurnIndex: intPtr(int(s.Match.TurnIndex))})
		s.journalAction(uuid.Nil, "match_started", nil)
	}

	// Late or early, every admitted actor gets the replicated surface.
	s.sendSyncState(p.ID)
	return nil
}

// registerDealtCards assigns wire identities to every card created by the
// deal. Assumes lock is held.
func (s *Session) registerDealtCards() {
	for _, p := range s.Participants {
		ps := &s.Match.Players[p.Seat]
		for i := uint8(0); i < ps.CardLen; i++ {
			slot := ps.Cards[i]
			if _, known := s.tracker.record(slot.ID); known {
				continue
			}
			def := s.Catalog.ForArchetype(slot.Arch)
			s.tracker.register(slot.ID, p.ID, def.ID)
		}
	}
}

// broadcastDealtCards replicates every dealt card to all actors.
// Assumes lock is held.
func (s *Session) broadcastDealtCards() {
	for _, p := range s.Participants {
		ps := &s.Match.Players[p.Seat]
		for i := uint8(0); i < ps.CardLen; i++ {
			s.fireNotification(Notification{
				Type: NotifCardDataChanged,
				Card: s.tracker.wireCard(ps.Cards[i].ID),
			})
		}
	}
}

// ---------------------------------------------------------------------------
// Request handling
// ---------------------------------------------------------------------------

// HandleRequest is the serialized entry point for all actor requests.
// Invalid requests are rejected without state change: the offending actor
// gets a private rejection, nobody else observes anything.
func (s *Session) HandleRequest(actorID uuid.UUID, req Request) {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	actor := s.participantByID(actorID)
	if actor == nil {
		s.log.WithField("actor", actorID).Warn("request from unadmitted actor ignored")
		return
	}
	if s.Match.IsFinished() {
		s.reject(actorID, req.Type, "match is over")
		return
	}

	switch req.Type {
	case RequestSelectCard:
		s.handleSelectCard(actor, req)
	case RequestUseAttack:
		s.handleUseAttack(actor, req)
	case RequestUseSplit:
		s.handleUseSplit(actor, req)
	default:
		s.reject(actorID, req.Type, fmt.Sprintf("unknown request type %q", req.Type))
	}
}

// handleSelectCard answers with the action options the selected card
// supports. Read-only; never mutates match state. Assumes lock is held.
func (s *Session) handleSelectCard(actor *models.Participant, req Request) {
	if !s.Match.IsActive() {
		s.reject(actor.ID, req.Type, "match is not active")
		return
	}
	handle, ok := s.tracker.handle(req.CardID)
	if !ok {
		s.reject(actor.ID, req.Type, "unknown card")
		return
	}
	seat, slot, ok := s.Match.Card(handle)
	if !ok || !s.Match.Players[seat].Cards[slot].Live {
		s.reject(actor.ID, req.Type, "card is no longer in play")
		return
	}
	if seat != actor.Seat {
		s.reject(actor.ID, req.Type, "not your card")
		return
	}

	arch := s.Match.Players[seat].Cards[slot].Arch
	s.fireToParticipant(actor.ID, Notification{
		Type: NotifActionOptions,
		Card: s.tracker.wireCard(handle),
		Options: &ActionOptions{
			AllowAttack: arch == engine.ArchetypeAttack,
			AllowSplit:  arch == engine.ArchetypeSplit,
		},
	})
}

// handleUseAttack resolves an attack request. Assumes lock is held.
func (s *Session) handleUseAttack(actor *models.Participant, req Request) {
	handle, ok := s.tracker.handle(req.CardID)
	if !ok {
		s.reject(actor.ID, req.Type, "unknown card")
		return
	}

	res, err := s.Match.Attack(actor.Seat, handle)
	if err != nil {
		s.reject(actor.ID, req.Type, err.Error())
		return
	}

	// Emit bus events before the wire teardown so subscribers can still
	// resolve both cards' metadata.
	attackerRef := s.tracker.cardRef(res.Attacker)
	if res.Blocked {
		defenderRef := s.tracker.cardRef(res.Defender)
		s.Bus.Publish(events.Attacked{Attacker: attackerRef, Defender: &defenderRef})
		s.Bus.Publish(events.Destroyed{Card: defenderRef})
	} else {
		s.Bus.Publish(events.Attacked{Attacker: attackerRef})
	}
	s.Bus.Publish(events.Destroyed{Card: attackerRef})

	attacked := Notification{Type: NotifCardAttacked, Card: s.tracker.wireCard(res.Attacker)}
	if res.Blocked {
		attacked.Defender = s.tracker.wireCard(res.Defender)
	}
	s.fireNotification(attacked)
	if res.Blocked {
		s.fireNotification(Notification{Type: NotifCardDestroyed, Card: s.tracker.wireCard(res.Defender)})
	}
	s.fireNotification(Notification{Type: NotifCardDestroyed, Card: s.tracker.wireCard(res.Attacker)})

	target := s.participantBySeat(res.TargetSeat)
	if !res.Blocked && target != nil {
		s.fireNotification(Notification{
			Type:          NotifHealthChanged,
			ParticipantID: target.ID,
			Health:        intPtr(int(res.TargetHealth)),
		})
	}

	s.journalAction(actor.ID, "attack_resolved", map[string]any{
		"card":    req.CardID.String(),
		"blocked": res.Blocked,
	})

	if res.Finished {
		s.finishMatch(actor.ID, "health_depleted")
		return
	}
	s.fireNotification(Notification{Type: NotifTurnChanged, TurnIndex: intPtr(int(s.Match.TurnIndex))})
}

// handleUseSplit resolves a split request. Assumes lock is held.
func (s *Session) handleUseSplit(actor *models.Participant, req Request) {
	handle, ok := s.tracker.handle(req.CardID)
	if !ok {
		s.reject(actor.ID, req.Type, "unknown card")
		return
	}
	target, ok := engine.ParseArchetype(req.Archetype)
	if !ok {
		s.reject(actor.ID, req.Type, fmt.Sprintf("unknown archetype %q", req.Archetype))
		return
	}

	res, err := s.Match.Split(actor.Seat, handle, target)
	if err != nil {
		s.reject(actor.ID, req.Type, err.Error())
		return
	}

	// Split event goes out before the source's destruction, as with attacks.
	sourceRef := s.tracker.cardRef(res.Source)
	s.Bus.Publish(events.Split{Original: sourceRef, NewArchetype: res.NewArchetype})
	s.Bus.Publish(events.Destroyed{Card: sourceRef})

	def := s.Catalog.ForArchetype(res.NewArchetype)
	s.fireNotification(Notification{
		Type:      NotifCardSplit,
		Card:      s.tracker.wireCard(res.Source),
		Archetype: res.NewArchetype.String(),
	})
	s.fireNotification(Notification{Type: NotifCardDestroyed, Card: s.tracker.wireCard(res.Source)})
	for _, spawned := range res.Spawned {
		s.tracker.register(spawned, actor.ID, def.ID)
		s.fireNotification(Notification{Type: NotifCardDataChanged, Card: s.tracker.wireCard(spawned)})
	}

	s.journalAction(actor.ID, "split_resolved", map[string]any{
		"card":      req.CardID.String(),
		"archetype": res.NewArchetype.String(),
	})

	s.fireNotification(Notification{Type: NotifTurnChanged, TurnIndex: intPtr(int(s.Match.TurnIndex))})
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// HandleDisconnect marks the participant inactive and terminates the
// session. Disconnects are terminal: the match is never resumed.
func (s *Session) HandleDisconnect(participantID uuid.UUID) {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	p := s.participantByID(participantID)
	if p == nil {
		s.log.WithField("participant", participantID).Warn("disconnect for unknown participant")
		return
	}
	if !p.Connected {
		return // already handled
	}
	p.Connected = false
	p.Conn = nil
	s.log.WithField("participant", participantID).Info("participant disconnected")
	s.journalAction(participantID, "participant_disconnected", nil)

	if s.Match.IsFinished() {
		return
	}
	s.Match.Finish()
	s.finishMatch(uuid.Nil, "participant_disconnected")
}

// finishMatch broadcasts the terminal notification, archives the outcome
// and fires the end callback exactly once. Assumes lock is held.
func (s *Session) finishMatch(lastActor uuid.UUID, reason string) {
	if s.ended {
		return
	}
	s.ended = true

	winnerID := uuid.Nil
	if seat, ok := s.Match.Winner(); ok {
		if w := s.participantBySeat(seat); w != nil {
			winnerID = w.ID
		}
	}

	s.log.WithFields(logrus.Fields{"winner": winnerID, "reason": reason}).Info("match ended")
	s.fireNotification(Notification{Type: NotifMatchEnded, WinnerID: winnerID, Reason: reason})
	s.journalAction(lastActor, "match_ended", map[string]any{"winner": winnerID.String(), "reason": reason})
	s.archiveResult(winnerID, reason)

	if s.OnMatchEnd != nil {
		s.OnMatchEnd(s.ID, winnerID, reason)
	}
}

// archiveResult stores the final outcome asynchronously, if an archive is
// configured. Assumes lock is held.
func (s *Session) archiveResult(winnerID uuid.UUID, reason string) {
	type archivedParticipant struct {
		ID     uuid.UUID `json:"id"`
		Name   string    `json:"name"`
		Health int       `json:"health"`
	}
	result := struct {
		Winner       uuid.UUID             `json:"winner"`
		Reason       string                `json:"reason"`
		Participants []archivedParticipant `json:"participants"`
	}{Winner: winnerID, Reason: reason}

	for _, p := range s.Participants {
		result.Participants = append(result.Participants, archivedParticipant{
			ID:     p.ID,
			Name:   p.Name,
			Health: int(s.Match.Players[p.Seat].Health),
		})
	}

	if database.DB == nil {
		return
	}
	sessionID := s.ID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := database.StoreMatchResult(ctx, sessionID, result); err != nil {
			logrus.WithError(err).WithField("session", sessionID).Error("failed archiving match result")
		}
	}()
}

// ---------------------------------------------------------------------------
// Helpers (assume lock is held)
// ---------------------------------------------------------------------------

// reject logs a validation failure and tells only the offending actor.
// No state changed; nobody else observes anything.
func (s *Session) reject(actorID uuid.UUID, reqType RequestType, reason string) {
	s.log.WithFields(logrus.Fields{
		"actor":   actorID,
		"request": reqType,
		"reason":  reason,
	}).Info("request rejected")
	s.fireToParticipant(actorID, Notification{Type: NotifRequestRejected, Reason: reason})
}

func (s *Session) participantByID(id uuid.UUID) *models.Participant {
	for _, p := range s.Participants {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (s *Session) participantBySeat(seat uint8) *models.Participant {
	for _, p := range s.Participants {
		if p.Seat == seat {
			return p
		}
	}
	return nil
}

// fireNotification broadcasts to all connected actors.
func (s *Session) fireNotification(n Notification) {
	if s.BroadcastFn == nil {
		s.log.WithField("type", n.Type).Warn("BroadcastFn is nil, dropping notification")
		return
	}
	s.BroadcastFn(n)
}

// fireToParticipant sends to a single connected actor.
func (s *Session) fireToParticipant(id uuid.UUID, n Notification) {
	if s.BroadcastToFn == nil {
		s.log.WithField("type", n.Type).Warn("BroadcastToFn is nil, dropping notification")
		return
	}
	p := s.participantByID(id)
	if p == nil || !p.Connected {
		return
	}
	s.BroadcastToFn(id, n)
}

// sendSyncState pushes the full replicated surface to one actor.
func (s *Session) sendSyncState(id uuid.UUID) {
	snap := s.Snapshot()
	s.fireToParticipant(id, Notification{Type: NotifSyncState, State: &snap})
}

// journalAction publishes an action record to the Redis journal,
// asynchronously and best-effort.
func (s *Session) journalAction(actorID uuid.UUID, actionType string, payload map[string]any) {
	s.actionIndex++
	if payload == nil {
		payload = make(map[string]any)
	}
	rec := cache.ActionRecord{
		SessionID:   s.ID,
		ActionIndex: s.actionIndex,
		ActorID:     actorID,
		ActionType:  actionType,
		Payload:     payload,
		Timestamp:   time.Now().UnixMilli(),
	}
	go func() {
		if cache.Rdb == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := cache.PublishActionRecord(ctx, rec); err != nil {
			logrus.WithError(err).WithField("session", rec.SessionID).Error("failed publishing action record")
		}
	}()
}
