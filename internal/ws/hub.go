// Package ws exposes match sessions over websockets. The hub owns the
// session registry and the per-connection clients; the game package never
// sees a socket.
package ws

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/splitduel/server/internal/auth"
	"github.com/splitduel/server/internal/catalog"
	"github.com/splitduel/server/internal/cosmetic"
	"github.com/splitduel/server/internal/engine"
	"github.com/splitduel/server/internal/game"
	"github.com/splitduel/server/internal/models"
)

// sessionEntry couples a session with its transport and presentation
// collaborators.
type sessionEntry struct {
	session  *game.Session
	director *cosmetic.Director
	clients  map[uuid.UUID]*client
}

// Hub routes connections to sessions and session notifications back to
// connections.
type Hub struct {
	mu       sync.Mutex
	catalog  *catalog.Registry
	rules    engine.Rules
	secret   []byte
	tokenTTL time.Duration
	sessions map[uuid.UUID]*sessionEntry
	log      *logrus.Entry
}

// NewHub creates an empty hub. Every session it creates plays under the
// given rules.
func NewHub(reg *catalog.Registry, rules engine.Rules, secret []byte, tokenTTL time.Duration) *Hub {
	return &Hub{
		catalog:  reg,
		rules:    rules,
		secret:   secret,
		tokenTTL: tokenTTL,
		sessions: make(map[uuid.UUID]*sessionEntry),
		log:      logrus.WithField("component", "hub"),
	}
}

// CreateSession registers a new waiting session and returns its id.
func (h *Hub) CreateSession() uuid.UUID {
	s := game.NewSession(h.catalog, h.rules)
	entry := &sessionEntry{
		session:  s,
		director: cosmetic.NewDirector(s.Bus, cosmetic.NewRegistry()),
		clients:  make(map[uuid.UUID]*client),
	}

	sessionID := s.ID
	s.BroadcastFn = func(n game.Notification) { h.broadcast(sessionID, n) }
	s.BroadcastToFn = func(id uuid.UUID, n game.Notification) { h.broadcastTo(sessionID, id, n) }
	s.OnMatchEnd = func(sessionID, _ uuid.UUID, _ string) { h.scheduleRemoval(sessionID) }

	h.mu.Lock()
	h.sessions[sessionID] = entry
	h.mu.Unlock()

	h.log.WithField("session", sessionID).Info("session created")
	return sessionID
}

// IssueToken mints an admission token for a fresh participant identity.
func (h *Hub) IssueToken(sessionID uuid.UUID, name string) (token string, participantID uuid.UUID, err error) {
	h.mu.Lock()
	_, ok := h.sessions[sessionID]
	h.mu.Unlock()
	if !ok {
		return "", uuid.Nil, fmt.Errorf("session %s not found", sessionID)
	}

	participantID = uuid.New()
	token, err = auth.CreateAdmissionToken(h.secret, participantID, sessionID, name, h.tokenTTL)
	if err != nil {
		return "", uuid.Nil, err
	}
	return token, participantID, nil
}

// ServeConnect upgrades the request to a websocket and admits the
// participant named by the ?token= query parameter.
func (h *Hub) ServeConnect(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.ParseAdmissionToken(h.secret, r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "invalid admission token", http.StatusUnauthorized)
		return
	}

	h.mu.Lock()
	entry, ok := h.sessions[claims.SessionID]
	h.mu.Unlock()
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket accept failed")
		return
	}

	p := &models.Participant{ID: claims.ParticipantID, Name: claims.Name, Conn: conn}
	c := newClient(h, entry.session, claims.ParticipantID, conn)

	// Register the client before admission so the admission notifications
	// reach it. The session may have been torn down during the handshake;
	// only a registered client gets cleaned up later, so re-check under the
	// lock before inserting.
	h.mu.Lock()
	entry, ok = h.sessions[claims.SessionID]
	if ok {
		entry.clients[claims.ParticipantID] = c
	}
	h.mu.Unlock()
	if !ok {
		conn.Close(websocket.StatusGoingAway, "session closed")
		return
	}
	go c.writePump()

	if err := entry.session.AdmitParticipant(p); err != nil {
		h.log.WithError(err).WithField("participant", claims.ParticipantID).Info("admission refused")
		h.dropClient(claims.SessionID, claims.ParticipantID)
		conn.Close(websocket.StatusPolicyViolation, "admission refused")
		return
	}

	go c.readPump()
}

// broadcast fans a notification out to every client of a session.
func (h *Hub) broadcast(sessionID uuid.UUID, n game.Notification) {
	h.mu.Lock()
	entry, ok := h.sessions[sessionID]
	if !ok {
		h.mu.Unlock()
		return
	}
	clients := make([]*client, 0, len(entry.clients))
	for _, c := range entry.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.enqueue(n)
	}
}

// broadcastTo sends a notification to one client of a session.
func (h *Hub) broadcastTo(sessionID, participantID uuid.UUID, n game.Notification) {
	h.mu.Lock()
	entry, ok := h.sessions[sessionID]
	if !ok {
		h.mu.Unlock()
		return
	}
	c := entry.clients[participantID]
	h.mu.Unlock()

	if c != nil {
		c.enqueue(n)
	}
}

// dropClient forgets a client. The session keeps its own participant
// bookkeeping via HandleDisconnect.
func (h *Hub) dropClient(sessionID, participantID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	entry, ok := h.sessions[sessionID]
	if !ok {
		return
	}
	if c, ok := entry.clients[participantID]; ok {
		delete(entry.clients, participantID)
		c.closeSend()
	}
}

// scheduleRemoval tears the session down after a grace period, leaving
// clients time to receive the terminal notification.
func (h *Hub) scheduleRemoval(sessionID uuid.UUID) {
	go func() {
		time.Sleep(5 * time.Second)
		h.removeSession(sessionID)
	}()
}

func (h *Hub) removeSession(sessionID uuid.UUID) {
	h.mu.Lock()
	entry, ok := h.sessions[sessionID]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.sessions, sessionID)
	clients := make([]*client, 0, len(entry.clients))
	for _, c := range entry.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	entry.director.Close()
	for _, c := range clients {
		c.closeSend()
		c.conn.Close(websocket.StatusNormalClosure, "session closed")
	}
	h.log.WithField("session", sessionID).Info("session removed")
}

// SessionCount reports the number of live sessions.
func (h *Hub) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}
