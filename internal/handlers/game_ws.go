// internal/handlers/game_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/unolabs/uno-service/internal/middleware"
)

// GameWSHandler upgrades the HTTP connection to WebSocket and runs the read
// loop. Each connection gets its own Session; all room mutations flow through
// the dispatcher, which serializes them per room.
func GameWSHandler(logger *logrus.Logger, d *Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"uno"},
			OriginPatterns: []string{"*"}, // Adjust in production
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != "uno" {
			c.Close(BadSubprotocolError, "client must speak the uno subprotocol")
			return
		}
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		sess := &Session{Conn: c}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		readMessages(ctx, c, d, sess, logger)

		// readMessages exited: connection is gone, remove the seat.
		d.HandleDisconnect(sess)
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, nil)
	}
}

// readMessages reads frames until the connection closes or the context ends.
// Malformed frames are reported to the sender and discarded; they never crash
// the handler or reach the dispatcher.
func readMessages(ctx context.Context, c *websocket.Conn, d *Dispatcher, sess *Session, logger *logrus.Logger) {
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				logger.Infof("WebSocket closed normally for player %q", sess.PlayerID)
			} else if strings.Contains(err.Error(), "context canceled") {
				logger.Infof("WebSocket context canceled for player %q", sess.PlayerID)
			} else {
				logger.Warnf("WebSocket read error for player %q: %v (status: %d)", sess.PlayerID, err, status)
			}
			return
		}

		if typ != websocket.MessageText {
			logger.Warnf("Ignoring non-text message type %d from player %q", typ, sess.PlayerID)
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warnf("Invalid JSON from player %q: %v", sess.PlayerID, err)
			d.Caster.Unicast(c, newErrorMsg("invalid JSON payload"))
			continue
		}

		d.Handle(sess, msg)

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}
