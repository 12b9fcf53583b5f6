package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/splitduel/server/internal/game"
)

const (
	sendBuffer   = 32
	writeTimeout = 10 * time.Second
)

// client pumps one websocket connection. Reads are decoded into requests
// and handed to the session; writes drain a buffered channel so a slow
// consumer never blocks the session.
type client struct {
	hub           *Hub
	session       *game.Session
	participantID uuid.UUID
	conn          *websocket.Conn

	sendMu     sync.Mutex
	send       chan []byte
	sendClosed bool

	log *logrus.Entry
}

func newClient(h *Hub, s *game.Session, participantID uuid.UUID, conn *websocket.Conn) *client {
	return &client{
		hub:           h,
		session:       s,
		participantID: participantID,
		conn:          conn,
		send:          make(chan []byte, sendBuffer),
		log: logrus.WithFields(logrus.Fields{
			"session":     s.ID,
			"participant": participantID,
		}),
	}
}

// enqueue serializes a notification onto the send channel. A client that
// cannot drain its buffer would silently diverge from the replicated state,
// so overflow closes the connection and lets the disconnect path run.
func (c *client) enqueue(n game.Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		c.log.WithError(err).Error("failed encoding notification")
		return
	}

	c.sendMu.Lock()
	if c.sendClosed {
		c.sendMu.Unlock()
		return
	}
	select {
	case c.send <- payload:
		c.sendMu.Unlock()
	default:
		c.sendClosed = true
		close(c.send)
		c.sendMu.Unlock()
		c.log.WithField("type", n.Type).Warn("send buffer full, closing connection")
		c.conn.Close(websocket.StatusPolicyViolation, "client too slow")
	}
}

func (c *client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.sendClosed {
		c.sendClosed = true
		close(c.send)
	}
}

// writePump drains the send channel onto the socket.
func (c *client) writePump() {
	for payload := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := c.conn.Write(ctx, websocket.MessageText, payload)
		cancel()
		if err != nil {
			c.log.WithError(err).Debug("write failed, closing connection")
			c.conn.Close(websocket.StatusAbnormalClosure, "write failed")
			return
		}
	}
}

// readPump decodes requests off the socket until the connection dies, then
// reports the disconnect to the session.
func (c *client) readPump() {
	defer func() {
		c.hub.dropClient(c.session.ID, c.participantID)
		c.session.HandleDisconnect(c.participantID)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		_, payload, err := c.conn.Read(context.Background())
		if err != nil {
			c.log.WithError(err).Debug("connection closed")
			return
		}

		var req game.Request
		if err := json.Unmarshal(payload, &req); err != nil {
			c.log.WithError(err).Warn("undecodable request, ignoring")
			continue
		}
		c.session.HandleRequest(c.participantID, req)
	}
}
