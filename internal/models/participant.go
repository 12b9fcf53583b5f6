package models

import (
	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// Participant is one of the two remote actors in a match.
type Participant struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Seat      uint8           `json:"seat"`
	Connected bool            `json:"connected"`
	Conn      *websocket.Conn `json:"-"`
}
