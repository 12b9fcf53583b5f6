// Package engine implements the authoritative duel rules.
//
// The package is a pure state machine: a flat value type mutated through
// validated operations, with no I/O, no clocks and no dependencies. The
// service layer owns identity mapping and notification fan-out; everything
// here is deterministic given the same operation sequence.
package engine

import "fmt"

const (
	MaxPlayers = 2

	// MaxCards bounds one seat's arena. A split removes one card and adds
	// two, so the arena grows by at most one per turn taken.
	MaxCards = 32
)

// Rules holds configurable match settings.
type Rules struct {
	StartingHealth int8
	AttackDamage   int8
}

// DefaultRules returns the standard duel rules.
func DefaultRules() Rules {
	return Rules{
		StartingHealth: 5,
		AttackDamage:   1,
	}
}

// MatchState holds the complete, self-contained state of one duel.
type MatchState struct {
	Players    [MaxPlayers]PlayerState
	Seats      uint8
	Phase      Phase
	TurnIndex  uint8
	nextEntity EntityID
	Rules      Rules
}

// NewMatch initializes an empty match in the Waiting phase.
func NewMatch(rules Rules) MatchState {
	if rules.StartingHealth <= 0 {
		rules.StartingHealth = 5
	}
	if rules.AttackDamage <= 0 {
		rules.AttackDamage = 1
	}
	return MatchState{
		Phase: PhaseWaiting,
		Rules: rules,
	}
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// IsActive reports whether turns are currently proceeding.
func (m *MatchState) IsActive() bool { return m.Phase == PhaseActive }

// IsFinished reports whether the match reached its terminal phase.
func (m *MatchState) IsFinished() bool { return m.Phase == PhaseFinished }

// Opponent returns the other seat.
// Only meaningful once both seats are admitted.
func (m *MatchState) Opponent(seat uint8) uint8 { return 1 - seat }

// Card returns the slot holding the given entity, if it exists at all
// (live or destroyed).
func (m *MatchState) Card(id EntityID) (seat uint8, slot uint8, ok bool) {
	for s := uint8(0); s < m.Seats; s++ {
		for i := uint8(0); i < m.Players[s].CardLen; i++ {
			if m.Players[s].Cards[i].ID == id {
				return s, i, true
			}
		}
	}
	return 0, 0, false
}

// LiveDefense returns the lowest-index live Defense slot for a seat.
// Lowest index is the stable defender tie-break.
func (m *MatchState) LiveDefense(seat uint8) (slot uint8, ok bool) {
	for i := uint8(0); i < m.Players[seat].CardLen; i++ {
		c := &m.Players[seat].Cards[i]
		if c.Live && c.Arch == ArchetypeDefense {
			return i, true
		}
	}
	return 0, false
}

// Winner returns the winning seat once the match finished because a seat's
// health reached zero. ok is false for disconnect-terminated matches where
// both seats still have health.
func (m *MatchState) Winner() (seat uint8, ok bool) {
	if m.Phase != PhaseFinished {
		return 0, false
	}
	for s := uint8(0); s < m.Seats; s++ {
		if m.Players[s].Health <= 0 {
			return m.Opponent(s), true
		}
	}
	return 0, false
}

// ---------------------------------------------------------------------------
// Admission and dealing
// ---------------------------------------------------------------------------

// Admit appends one seat to the roster. The second admission deals the
// opening hands and transitions Waiting→Active exactly once.
func (m *MatchState) Admit() (seat uint8, err error) {
	if m.Phase != PhaseWaiting {
		return 0, fmt.Errorf("cannot admit in phase %s", m.Phase)
	}
	if m.Seats >= MaxPlayers {
		return 0, fmt.Errorf("roster is full (%d seats)", m.Seats)
	}
	seat = m.Seats
	m.Players[seat] = PlayerState{Health: m.Rules.StartingHealth}
	m.Seats++

	if m.Seats == MaxPlayers {
		m.deal()
		m.Phase = PhaseActive
		m.TurnIndex = 0
	}
	return seat, nil
}

// deal gives each seat one card of every archetype.
func (m *MatchState) deal() {
	for s := uint8(0); s < m.Seats; s++ {
		m.spawn(s, ArchetypeAttack)
		m.spawn(s, ArchetypeDefense)
		m.spawn(s, ArchetypeSplit)
	}
}

// spawn creates a live card for a seat and returns its entity id.
func (m *MatchState) spawn(seat uint8, arch Archetype) EntityID {
	m.nextEntity++
	id := m.nextEntity
	p := &m.Players[seat]
	p.Cards[p.CardLen] = CardSlot{ID: id, Arch: arch, Live: true}
	p.CardLen++
	return id
}

// destroy marks a slot dead. The slot stays in place so the entity id
// remains resolvable by Card until the match ends.
func (m *MatchState) destroy(seat, slot uint8) {
	m.Players[seat].Cards[slot].Live = false
}

// ---------------------------------------------------------------------------
// Actions
// ---------------------------------------------------------------------------

// validateAction runs the common phase/turn/ownership checks shared by
// Attack and Split. Returns the actor's slot index for the card.
func (m *MatchState) validateAction(seat uint8, card EntityID) (slot uint8, err error) {
	if m.Phase != PhaseActive {
		return 0, fmt.Errorf("match is not active (phase %s)", m.Phase)
	}
	if seat >= m.Seats {
		return 0, fmt.Errorf("unknown seat %d", seat)
	}
	if seat != m.TurnIndex {
		return 0, fmt.Errorf("not seat %d's turn (turn index %d)", seat, m.TurnIndex)
	}
	ownerSeat, slot, ok := m.Card(card)
	if !ok {
		return 0, fmt.Errorf("unknown card entity %d", card)
	}
	if ownerSeat != seat {
		return 0, fmt.Errorf("card %d is not owned by seat %d", card, seat)
	}
	if !m.Players[seat].Cards[slot].Live {
		return 0, fmt.Errorf("card %d is no longer in play", card)
	}
	return slot, nil
}

// Attack resolves an attack with the given card. If the opponent holds a
// live Defense card the attack is blocked: both the defender and the
// attacking card are destroyed and health is untouched. Otherwise the
// attacking card is destroyed and the opponent takes damage, floored at
// zero. Either way the turn ends.
func (m *MatchState) Attack(seat uint8, card EntityID) (AttackResult, error) {
	slot, err := m.validateAction(seat, card)
	if err != nil {
		return AttackResult{}, err
	}
	if m.Players[seat].Cards[slot].Arch != ArchetypeAttack {
		return AttackResult{}, fmt.Errorf("card %d is not an attack card", card)
	}
	if m.Seats < MaxPlayers {
		// One-participant edge case: no opponent to resolve against.
		return AttackResult{}, fmt.Errorf("no opponent seat admitted")
	}

	opp := m.Opponent(seat)
	res := AttackResult{
		Attacker:   card,
		TargetSeat: opp,
	}

	if defSlot, ok := m.LiveDefense(opp); ok {
		res.Blocked = true
		res.Defender = m.Players[opp].Cards[defSlot].ID
		m.destroy(opp, defSlot)
	} else {
		m.applyDamage(opp, m.Rules.AttackDamage)
	}
	res.TargetHealth = m.Players[opp].Health
	res.Finished = m.Phase == PhaseFinished

	m.destroy(seat, slot)
	m.switchTurn()
	return res, nil
}

// Split destroys the source card and spawns exactly two new cards of the
// chosen archetype for the same seat, then ends the turn.
func (m *MatchState) Split(seat uint8, card EntityID, target Archetype) (SplitResult, error) {
	slot, err := m.validateAction(seat, card)
	if err != nil {
		return SplitResult{}, err
	}
	if !target.Valid() {
		return SplitResult{}, fmt.Errorf("invalid split target archetype %d", target)
	}
	if m.Players[seat].Cards[slot].Arch != ArchetypeSplit {
		return SplitResult{}, fmt.Errorf("card %d is not a split card", card)
	}
	if int(m.Players[seat].CardLen)+2 > MaxCards {
		return SplitResult{}, fmt.Errorf("seat %d arena is full", seat)
	}

	m.destroy(seat, slot)
	res := SplitResult{
		Source:       card,
		NewArchetype: target,
		Spawned: [2]EntityID{
			m.spawn(seat, target),
			m.spawn(seat, target),
		},
	}
	m.switchTurn()
	return res, nil
}

// applyDamage lowers a seat's health, floored at zero. Reaching zero ends
// the match.
func (m *MatchState) applyDamage(seat uint8, amount int8) {
	h := m.Players[seat].Health - amount
	if h <= 0 {
		h = 0
		m.Phase = PhaseFinished
	}
	m.Players[seat].Health = h
}

// switchTurn alternates the turn index after every resolved action.
// No-op once the match finished.
func (m *MatchState) switchTurn() {
	if m.Phase != PhaseActive {
		return
	}
	m.TurnIndex = (m.TurnIndex + 1) % MaxPlayers
}

// Finish forces the terminal phase. Used for disconnects; idempotent.
func (m *MatchState) Finish() {
	m.Phase = PhaseFinished
}
