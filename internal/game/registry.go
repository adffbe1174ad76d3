// internal/game/registry.go
package game

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Registry owns the live rooms of the process, keyed by room code. Its mutex
// guards only the map; each room serializes its own mutations behind UnoGame.Mu.
type Registry struct {
	mu     sync.Mutex
	rooms  map[string]*UnoGame
	logger *logrus.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(logger *logrus.Logger) *Registry {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Registry{
		rooms:  make(map[string]*UnoGame),
		logger: logger,
	}
}

// CreateRoom mints a fresh room code, creates a waiting room, and returns it.
// Seating the creator is the caller's job, under the room's own lock.
func (r *Registry) CreateRoom() *UnoGame {
	r.mu.Lock()
	defer r.mu.Unlock()

	code := NewRoomCode()
	for _, taken := r.rooms[code]; taken; _, taken = r.rooms[code] {
		code = NewRoomCode()
	}
	g := NewUnoGame(code, r.logger)
	r.rooms[code] = g
	r.logger.WithField("room", code).Info("Room created")
	return g
}

// Get looks up a room by code.
func (r *Registry) Get(code string) (*UnoGame, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.rooms[code]
	return g, ok
}

// FindOpen returns an arbitrary room that is still waiting for players and
// has a free seat, or nil if none exists. The waiting check takes the room
// lock briefly; map iteration order supplies the arbitrariness.
func (r *Registry) FindOpen() *UnoGame {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range r.rooms {
		g.Mu.Lock()
		open := g.WaitingForPlayers() && len(g.Players) < MaxPlayers
		g.Mu.Unlock()
		if open {
			return g
		}
	}
	return nil
}

// Retire removes a room from the registry. Called when the last player leaves
// or the game finishes.
func (r *Registry) Retire(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[code]; ok {
		delete(r.rooms, code)
		r.logger.WithField("room", code).Info("Room retired")
	}
}

// Count reports the number of live rooms, for the health endpoint.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}
