// internal/models/player.go
package models

import (
	"github.com/coder/websocket"
)

// Player is one seat in a room. The hand preserves insertion order; clients
// index into it when playing. Conn is the player's live WebSocket, owned by
// the connection handler, never serialized.
type Player struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Hand      []Card          `json:"hand"`
	IsHost    bool            `json:"isHost"`
	CalledUno bool            `json:"calledUno"`
	Conn      *websocket.Conn `json:"-"`
}

// PlayerSummary is the public roster projection broadcast to the room. It
// exposes the hand size but never its contents.
type PlayerSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CardCount int    `json:"cardCount"`
	IsHost    bool   `json:"isHost"`
}

// Summary builds the public projection of the player.
func (p *Player) Summary() PlayerSummary {
	return PlayerSummary{
		ID:        p.ID,
		Name:      p.Name,
		CardCount: len(p.Hand),
		IsHost:    p.IsHost,
	}
}
