package game

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splitduel/server/internal/catalog"
	"github.com/splitduel/server/internal/engine"
	"github.com/splitduel/server/internal/events"
	"github.com/splitduel/server/internal/models"
)

// mockBroadcaster captures everything a session pushes over the wire.
type mockBroadcaster struct {
	mu        sync.Mutex
	broadcast []Notification
	private   map[uuid.UUID][]Notification
}

func newMockBroadcaster() *mockBroadcaster {
	return &mockBroadcaster{private: make(map[uuid.UUID][]Notification)}
}

func (m *mockBroadcaster) wire(s *Session) {
	s.BroadcastFn = func(n Notification) {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.broadcast = append(m.broadcast, n)
	}
	s.BroadcastToFn = func(id uuid.UUID, n Notification) {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.private[id] = append(m.private[id], n)
	}
}

func (m *mockBroadcaster) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broadcast = nil
	m.private = make(map[uuid.UUID][]Notification)
}

func (m *mockBroadcaster) broadcastTypes() []NotificationType {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]NotificationType, len(m.broadcast))
	for i, n := range m.broadcast {
		out[i] = n.Type
	}
	return out
}

func (m *mockBroadcaster) privateTypes(id uuid.UUID) []NotificationType {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]NotificationType, len(m.private[id]))
	for i, n := range m.private[id] {
		out[i] = n.Type
	}
	return out
}

func (m *mockBroadcaster) lastPrivate(t *testing.T, id uuid.UUID) Notification {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.private[id], "expected a private notification for %s", id)
	return m.private[id][len(m.private[id])-1]
}

// newTestSession builds a started two-participant session.
func newTestSession(t *testing.T) (*Session, *mockBroadcaster, *models.Participant, *models.Participant) {
	t.Helper()
	s := NewSession(catalog.Default(), engine.DefaultRules())
	mb := newMockBroadcaster()
	mb.wire(s)

	p0 := &models.Participant{ID: uuid.New(), Name: "ada"}
	p1 := &models.Participant{ID: uuid.New(), Name: "grace"}
	require.NoError(t, s.AdmitParticipant(p0))
	require.NoError(t, s.AdmitParticipant(p1))
	return s, mb, p0, p1
}

// cardIDOf returns the wire id of the first live card of the given
// archetype owned by the participant.
func cardIDOf(t *testing.T, s *Session, p *models.Participant, arch engine.Archetype) uuid.UUID {
	t.Helper()
	ps := &s.Match.Players[p.Seat]
	for i := uint8(0); i < ps.CardLen; i++ {
		slot := ps.Cards[i]
		if !slot.Live || slot.Arch != arch {
			continue
		}
		rec, ok := s.tracker.record(slot.ID)
		require.True(t, ok, "dealt card has no wire identity")
		return rec.WireID
	}
	t.Fatalf("participant %s has no live %s card", p.Name, arch)
	return uuid.Nil
}

// killDefenses removes every live defense card from a seat, so the next
// attack against it lands directly.
func killDefenses(s *Session, seat uint8) {
	ps := &s.Match.Players[seat]
	for i := uint8(0); i < ps.CardLen; i++ {
		if ps.Cards[i].Live && ps.Cards[i].Arch == engine.ArchetypeDefense {
			ps.Cards[i].Live = false
		}
	}
}

func TestAdmissionStartsMatch(t *testing.T) {
	s := NewSession(catalog.Default(), engine.DefaultRules())
	mb := newMockBroadcaster()
	mb.wire(s)

	p0 := &models.Participant{ID: uuid.New(), Name: "ada"}
	require.NoError(t, s.AdmitParticipant(p0))
	assert.Empty(t, mb.broadcast, "no broadcast before the match starts")
	assert.Equal(t, []NotificationType{NotifSyncState}, mb.privateTypes(p0.ID))

	p1 := &models.Participant{ID: uuid.New(), Name: "grace"}
	require.NoError(t, s.AdmitParticipant(p1))

	want := []NotificationType{
		NotifMatchStarted,
		NotifCardDataChanged, NotifCardDataChanged, NotifCardDataChanged,
		NotifCardDataChanged, NotifCardDataChanged, NotifCardDataChanged,
		NotifTurnChanged,
	}
	assert.Equal(t, want, mb.broadcastTypes())
	assert.Equal(t, []NotificationType{NotifSyncState}, mb.privateTypes(p1.ID))
}

func TestAdmissionRejectsDuplicateAndOverflow(t *testing.T) {
	s, _, p0, _ := newTestSession(t)

	assert.Error(t, s.AdmitParticipant(p0))
	assert.Error(t, s.AdmitParticipant(&models.Participant{ID: uuid.New(), Name: "late"}))
	assert.Len(t, s.Participants, 2)
}

func TestSelectCardReturnsOptions(t *testing.T) {
	s, mb, p0, _ := newTestSession(t)

	cases := []struct {
		arch  engine.Archetype
		wantA bool
		wantS bool
	}{
		{engine.ArchetypeAttack, true, false},
		{engine.ArchetypeDefense, false, false},
		{engine.ArchetypeSplit, false, true},
	}
	for _, tc := range cases {
		mb.reset()
		s.HandleRequest(p0.ID, Request{Type: RequestSelectCard, CardID: cardIDOf(t, s, p0, tc.arch)})

		n := mb.lastPrivate(t, p0.ID)
		require.Equal(t, NotifActionOptions, n.Type)
		require.NotNil(t, n.Options)
		assert.Equal(t, tc.wantA, n.Options.AllowAttack, "archetype %s", tc.arch)
		assert.Equal(t, tc.wantS, n.Options.AllowSplit, "archetype %s", tc.arch)
		assert.Empty(t, mb.broadcast, "select_card must not broadcast")
	}
}

func TestSelectOpponentCardRejected(t *testing.T) {
	s, mb, p0, p1 := newTestSession(t)
	mb.reset()

	s.HandleRequest(p0.ID, Request{Type: RequestSelectCard, CardID: cardIDOf(t, s, p1, engine.ArchetypeAttack)})

	n := mb.lastPrivate(t, p0.ID)
	assert.Equal(t, NotifRequestRejected, n.Type)
	assert.Empty(t, mb.broadcast)
}

func TestBlockedAttackSequence(t *testing.T) {
	s, mb, p0, p1 := newTestSession(t)
	attacker := cardIDOf(t, s, p0, engine.ArchetypeAttack)
	defender := cardIDOf(t, s, p1, engine.ArchetypeDefense)
	mb.reset()

	var busEvents []any
	s.Bus.Subscribe(func(e any) { busEvents = append(busEvents, e) })

	s.HandleRequest(p0.ID, Request{Type: RequestUseAttack, CardID: attacker})

	want := []NotificationType{
		NotifCardAttacked,
		NotifCardDestroyed, // defender first
		NotifCardDestroyed, // then attacker
		NotifTurnChanged,
	}
	require.Equal(t, want, mb.broadcastTypes())

	attacked := mb.broadcast[0]
	require.NotNil(t, attacked.Card)
	require.NotNil(t, attacked.Defender)
	assert.Equal(t, attacker, attacked.Card.EntityID)
	assert.Equal(t, defender, attacked.Defender.EntityID)
	assert.Equal(t, defender, mb.broadcast[1].Card.EntityID)
	assert.Equal(t, attacker, mb.broadcast[2].Card.EntityID)
	assert.Equal(t, 1, *mb.broadcast[3].TurnIndex)

	assert.EqualValues(t, 5, s.Match.Players[p1.Seat].Health, "blocked attacks deal no damage")

	require.Len(t, busEvents, 3)
	att, ok := busEvents[0].(events.Attacked)
	require.True(t, ok)
	assert.Equal(t, p0.ID, att.Attacker.OwnerID)
	require.NotNil(t, att.Defender)
	assert.Equal(t, p1.ID, att.Defender.OwnerID)
	_, ok = busEvents[1].(events.Destroyed)
	assert.True(t, ok)
	_, ok = busEvents[2].(events.Destroyed)
	assert.True(t, ok)
}

func TestDirectHitChangesHealth(t *testing.T) {
	s, mb, p0, p1 := newTestSession(t)
	killDefenses(s, p1.Seat)
	attacker := cardIDOf(t, s, p0, engine.ArchetypeAttack)
	mb.reset()

	s.HandleRequest(p0.ID, Request{Type: RequestUseAttack, CardID: attacker})

	want := []NotificationType{
		NotifCardAttacked,
		NotifCardDestroyed,
		NotifHealthChanged,
		NotifTurnChanged,
	}
	require.Equal(t, want, mb.broadcastTypes())
	assert.Nil(t, mb.broadcast[0].Defender, "direct hits have no defender")

	hc := mb.broadcast[2]
	assert.Equal(t, p1.ID, hc.ParticipantID)
	require.NotNil(t, hc.Health)
	assert.Equal(t, 4, *hc.Health)
}

func TestLethalAttackEndsMatch(t *testing.T) {
	s, mb, p0, p1 := newTestSession(t)
	killDefenses(s, p1.Seat)
	s.Match.Players[p1.Seat].Health = 1

	var endedSession, endedWinner uuid.UUID
	var endedReason string
	s.OnMatchEnd = func(sessionID, winnerID uuid.UUID, reason string) {
		endedSession, endedWinner, endedReason = sessionID, winnerID, reason
	}
	mb.reset()

	s.HandleRequest(p0.ID, Request{Type: RequestUseAttack, CardID: cardIDOf(t, s, p0, engine.ArchetypeAttack)})

	want := []NotificationType{
		NotifCardAttacked,
		NotifCardDestroyed,
		NotifHealthChanged,
		NotifMatchEnded,
	}
	require.Equal(t, want, mb.broadcastTypes())
	assert.NotContains(t, mb.broadcastTypes(), NotifTurnChanged, "no turn switch after the terminal phase")

	ended := mb.broadcast[3]
	assert.Equal(t, p0.ID, ended.WinnerID)
	assert.Equal(t, "health_depleted", ended.Reason)

	assert.Equal(t, s.ID, endedSession)
	assert.Equal(t, p0.ID, endedWinner)
	assert.Equal(t, "health_depleted", endedReason)

	mb.reset()
	s.HandleRequest(p1.ID, Request{Type: RequestUseAttack, CardID: cardIDOf(t, s, p1, engine.ArchetypeAttack)})
	assert.Equal(t, NotifRequestRejected, mb.lastPrivate(t, p1.ID).Type)
}

func TestSplitSpawnsTwoCards(t *testing.T) {
	s, mb, p0, _ := newTestSession(t)
	source := cardIDOf(t, s, p0, engine.ArchetypeSplit)
	mb.reset()

	var busEvents []any
	s.Bus.Subscribe(func(e any) { busEvents = append(busEvents, e) })

	s.HandleRequest(p0.ID, Request{Type: RequestUseSplit, CardID: source, Archetype: "attack"})

	want := []NotificationType{
		NotifCardSplit,
		NotifCardDestroyed,
		NotifCardDataChanged,
		NotifCardDataChanged,
		NotifTurnChanged,
	}
	require.Equal(t, want, mb.broadcastTypes())

	split := mb.broadcast[0]
	assert.Equal(t, source, split.Card.EntityID)
	assert.Equal(t, "attack", split.Archetype)
	assert.Equal(t, source, mb.broadcast[1].Card.EntityID)

	for _, n := range mb.broadcast[2:4] {
		require.NotNil(t, n.Card)
		assert.NotEqual(t, source, n.Card.EntityID)
		assert.Equal(t, p0.ID, n.Card.OwnerID)
		assert.Equal(t, "attack", n.Card.DefinitionID)
	}

	require.Len(t, busEvents, 2)
	sp, ok := busEvents[0].(events.Split)
	require.True(t, ok)
	assert.Equal(t, engine.ArchetypeAttack, sp.NewArchetype)
	_, ok = busEvents[1].(events.Destroyed)
	assert.True(t, ok)
}

func TestRejectionLeavesStateUntouched(t *testing.T) {
	s, mb, p0, p1 := newTestSession(t)
	mb.reset()

	// Wrong archetype for the action.
	s.HandleRequest(p0.ID, Request{Type: RequestUseAttack, CardID: cardIDOf(t, s, p0, engine.ArchetypeDefense)})
	assert.Equal(t, NotifRequestRejected, mb.lastPrivate(t, p0.ID).Type)

	// Out of turn.
	s.HandleRequest(p1.ID, Request{Type: RequestUseAttack, CardID: cardIDOf(t, s, p1, engine.ArchetypeAttack)})
	assert.Equal(t, NotifRequestRejected, mb.lastPrivate(t, p1.ID).Type)

	// Unknown card.
	s.HandleRequest(p0.ID, Request{Type: RequestUseAttack, CardID: uuid.New()})

	// Unknown request type.
	s.HandleRequest(p0.ID, Request{Type: "dance"})

	assert.Empty(t, mb.broadcast, "rejections must not broadcast")
	assert.EqualValues(t, 0, s.Match.TurnIndex)
	assert.Equal(t, engine.PhaseActive, s.Match.Phase)
}

func TestUnadmittedActorIgnored(t *testing.T) {
	s, mb, p0, _ := newTestSession(t)
	mb.reset()

	stranger := uuid.New()
	s.HandleRequest(stranger, Request{Type: RequestUseAttack, CardID: cardIDOf(t, s, p0, engine.ArchetypeAttack)})

	assert.Empty(t, mb.broadcast)
	assert.Empty(t, mb.private[stranger])
	assert.EqualValues(t, 0, s.Match.TurnIndex)
}

func TestDisconnectEndsMatch(t *testing.T) {
	s, mb, _, p1 := newTestSession(t)
	var ended bool
	var endedWinner uuid.UUID
	s.OnMatchEnd = func(_, winnerID uuid.UUID, _ string) {
		ended = true
		endedWinner = winnerID
	}
	mb.reset()

	s.HandleDisconnect(p1.ID)

	require.Equal(t, []NotificationType{NotifMatchEnded}, mb.broadcastTypes())
	n := mb.broadcast[0]
	assert.Equal(t, uuid.Nil, n.WinnerID, "disconnects produce no winner")
	assert.Equal(t, "participant_disconnected", n.Reason)
	assert.True(t, ended)
	assert.Equal(t, uuid.Nil, endedWinner)
	assert.False(t, p1.Connected)

	// A second disconnect is a no-op.
	mb.reset()
	s.HandleDisconnect(p1.ID)
	assert.Empty(t, mb.broadcast)
}

func TestTurnsAlternateAcrossActions(t *testing.T) {
	s, mb, p0, p1 := newTestSession(t)
	mb.reset()

	s.HandleRequest(p0.ID, Request{Type: RequestUseAttack, CardID: cardIDOf(t, s, p0, engine.ArchetypeAttack)})
	assert.EqualValues(t, 1, s.Match.TurnIndex)

	s.HandleRequest(p1.ID, Request{Type: RequestUseSplit, CardID: cardIDOf(t, s, p1, engine.ArchetypeSplit), Archetype: "defense"})
	assert.EqualValues(t, 0, s.Match.TurnIndex)

	assert.Empty(t, mb.privateTypes(p0.ID))
	assert.Empty(t, mb.privateTypes(p1.ID))
}
