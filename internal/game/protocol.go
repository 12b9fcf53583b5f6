// internal/game/protocol.go
package game

import (
	"github.com/google/uuid"
)

// RequestType identifies a client request.
type RequestType string

// Requests an actor may submit. Admission happens at connection time, so it
// has no request envelope of its own.
const (
	RequestSelectCard RequestType = "select_card"
	RequestUseAttack  RequestType = "use_attack"
	RequestUseSplit   RequestType = "use_split"
)

// Request is the decoded client request envelope.
type Request struct {
	Type      RequestType `json:"type"`
	CardID    uuid.UUID   `json:"cardId,omitempty"`
	Archetype string      `json:"archetype,omitempty"` // split target
}

// NotificationType identifies a session → actor notification.
type NotificationType string

// Constants defining the notification types pushed over the wire.
const (
	NotifMatchStarted    NotificationType = "match_started"     // Waiting→Active transition.
	NotifTurnChanged     NotificationType = "turn_changed"      // Every turn switch.
	NotifActionOptions   NotificationType = "action_options"    // Private: reply to select_card.
	NotifCardDataChanged NotificationType = "card_data_changed" // Card created or data assigned.
	NotifCardDestroyed   NotificationType = "card_destroyed"    // Card left play.
	NotifCardAttacked    NotificationType = "card_attacked"     // Attack resolved (defender set when blocked).
	NotifCardSplit       NotificationType = "card_split"        // Split resolved.
	NotifHealthChanged   NotificationType = "health_changed"    // Replicated health update.
	NotifMatchEnded      NotificationType = "match_ended"       // Terminal phase entered.
	NotifSyncState       NotificationType = "sync_state"        // Private: full replicated surface.
	NotifRequestRejected NotificationType = "request_rejected"  // Private: validation failure.
)

// WireCard is a card reference inside a notification payload.
type WireCard struct {
	EntityID     uuid.UUID `json:"entityId"`
	DefinitionID string    `json:"definitionId,omitempty"`
	OwnerID      uuid.UUID `json:"ownerId,omitempty"`
}

// ActionOptions tells the requesting actor which actions the selected card
// supports.
type ActionOptions struct {
	AllowAttack bool `json:"allowAttack"`
	AllowSplit  bool `json:"allowSplit"`
}

// Notification is the standard structure for session → actor messages.
type Notification struct {
	Type NotificationType `json:"type"`

	TurnIndex *int      `json:"turnIndex,omitempty"` // turn_changed
	Card      *WireCard `json:"card,omitempty"`      // primary card involved
	Defender  *WireCard `json:"defender,omitempty"`  // card_attacked, when blocked
	Archetype string    `json:"archetype,omitempty"` // card_split target

	ParticipantID uuid.UUID `json:"participantId,omitempty"` // health_changed
	Health        *int      `json:"health,omitempty"`        // health_changed

	Options *ActionOptions `json:"options,omitempty"` // action_options

	WinnerID uuid.UUID `json:"winnerId,omitempty"` // match_ended (zero when no winner)
	Reason   string    `json:"reason,omitempty"`   // match_ended / request_rejected

	State *StateSnapshot `json:"state,omitempty"` // sync_state
}

func intPtr(v int) *int { return &v }
