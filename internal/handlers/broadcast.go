// internal/handlers/broadcast.go
package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/unolabs/uno-service/internal/models"
)

// Broadcaster delivers outbound messages. The dispatcher snapshots the
// recipient list while it holds the game lock and hands it over here, so
// delivery itself never touches shared state. Implementations must drop
// silently on a dead connection; the read loop owns disconnect handling.
type Broadcaster interface {
	// Unicast sends to a raw connection, used before the sender has a seat.
	Unicast(c *websocket.Conn, msg interface{})
	// Send sends to one seated player.
	Send(p *models.Player, msg interface{})
	// Broadcast sends to every recipient except the one with excludeID,
	// if any.
	Broadcast(recipients []*models.Player, msg interface{}, excludeID string)
}

// writeTimeout bounds each WebSocket write so a stalled client cannot block
// the connection handler.
const writeTimeout = 3 * time.Second

// WSBroadcaster writes JSON text frames over coder/websocket connections.
// Writes are synchronous so a narration and the state views that follow it
// arrive in order.
type WSBroadcaster struct {
	Logger *logrus.Logger
}

// NewWSBroadcaster returns a broadcaster logging delivery failures to logger.
func NewWSBroadcaster(logger *logrus.Logger) *WSBroadcaster {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &WSBroadcaster{Logger: logger}
}

func (b *WSBroadcaster) write(c *websocket.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return c.Write(ctx, websocket.MessageText, data)
}

// Unicast sends to a raw connection; dropped silently if the write fails.
func (b *WSBroadcaster) Unicast(c *websocket.Conn, msg interface{}) {
	if c == nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		b.Logger.WithError(err).Error("Failed to marshal outbound message")
		return
	}
	if err := b.write(c, data); err != nil {
		b.Logger.WithError(err).Warn("Failed to write unicast message")
	}
}

// Send sends to one seated player over their live connection.
func (b *WSBroadcaster) Send(p *models.Player, msg interface{}) {
	if p == nil {
		return
	}
	b.Unicast(p.Conn, msg)
}

// Broadcast sends to every recipient with an open connection, excluding at
// most one player. Failures are logged and dropped; the failing player's own
// read loop tears the session down.
func (b *WSBroadcaster) Broadcast(recipients []*models.Player, msg interface{}, excludeID string) {
	data, err := json.Marshal(msg)
	if err != nil {
		b.Logger.WithError(err).Error("Failed to marshal broadcast message")
		return
	}
	for _, p := range recipients {
		if p.ID == excludeID || p.Conn == nil {
			continue
		}
		if err := b.write(p.Conn, data); err != nil {
			b.Logger.WithError(err).Warnf("Failed to write broadcast message to player %s", p.ID)
		}
	}
}
