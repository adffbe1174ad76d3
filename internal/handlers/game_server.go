// internal/handlers/game_server.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/unolabs/uno-service/internal/game"
)

// GameServer bundles the process-wide pieces: the room registry, the
// broadcaster, and the dispatcher wired over them.
type GameServer struct {
	Registry   *game.Registry
	Dispatcher *Dispatcher
	Logger     *logrus.Logger
}

// NewGameServer wires a registry, broadcaster and dispatcher together.
func NewGameServer(logger *logrus.Logger) *GameServer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	reg := game.NewRegistry(logger)
	caster := NewWSBroadcaster(logger)
	return &GameServer{
		Registry:   reg,
		Dispatcher: NewDispatcher(reg, caster, logger),
		Logger:     logger,
	}
}

// HealthHandler reports liveness and the live room count.
func (gs *GameServer) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "ok",
		"rooms":  gs.Registry.Count(),
	})
}
