package engine

// Archetype is the rule-relevant category of a card.
type Archetype uint8

const (
	ArchetypeAttack  Archetype = 0
	ArchetypeDefense Archetype = 1
	ArchetypeSplit   Archetype = 2

	NumArchetypes = 3
)

// Valid reports whether a is one of the three known archetypes.
func (a Archetype) Valid() bool { return a < NumArchetypes }

func (a Archetype) String() string {
	switch a {
	case ArchetypeAttack:
		return "attack"
	case ArchetypeDefense:
		return "defense"
	case ArchetypeSplit:
		return "split"
	default:
		return "unknown"
	}
}

// ParseArchetype converts a wire string back into an Archetype.
func ParseArchetype(s string) (Archetype, bool) {
	switch s {
	case "attack":
		return ArchetypeAttack, true
	case "defense":
		return ArchetypeDefense, true
	case "split":
		return ArchetypeSplit, true
	default:
		return 0, false
	}
}

// Phase is the lifecycle state of a match.
type Phase uint8

const (
	PhaseWaiting  Phase = 0 // 0 or 1 seats admitted
	PhaseActive   Phase = 1 // 2 seats admitted, turns proceeding
	PhaseFinished Phase = 2 // terminal
)

func (p Phase) String() string {
	switch p {
	case PhaseWaiting:
		return "waiting"
	case PhaseActive:
		return "active"
	case PhaseFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// EntityID is a match-unique handle for one live card instance.
// Zero means "no entity".
type EntityID uint16

// NoEntity is the absent-card sentinel.
const NoEntity EntityID = 0

// CardSlot is one card instance owned by a seat. Destroyed cards keep their
// slot with Live=false so entity ids never get reused within a match.
type CardSlot struct {
	ID   EntityID
	Arch Archetype
	Live bool
}

// PlayerState holds one seat's health and card slots.
type PlayerState struct {
	Cards   [MaxCards]CardSlot
	CardLen uint8
	Health  int8
}

// LiveCount returns the number of live cards in the seat's arena.
func (p *PlayerState) LiveCount() uint8 {
	var n uint8
	for i := uint8(0); i < p.CardLen; i++ {
		if p.Cards[i].Live {
			n++
		}
	}
	return n
}

// AttackResult describes a resolved attack so the caller can emit
// notifications referencing entities captured before destruction.
type AttackResult struct {
	Attacker     EntityID
	Blocked      bool
	Defender     EntityID // NoEntity on a direct hit
	TargetSeat   uint8
	TargetHealth int8 // opponent health after damage
	Finished     bool // health reached zero and ended the match
}

// SplitResult describes a resolved split.
type SplitResult struct {
	Source       EntityID
	NewArchetype Archetype
	Spawned      [2]EntityID
}
