// internal/handlers/messages.go
package handlers

import (
	"github.com/unolabs/uno-service/internal/game"
	"github.com/unolabs/uno-service/internal/models"
)

// MessageType discriminates inbound client messages. Dispatch switches over
// these constants exhaustively; an unlisted value is a protocol error, not a
// silent drop.
type MessageType string

const (
	MsgCreateRoom MessageType = "createRoom"
	MsgJoin       MessageType = "join"
	MsgStartGame  MessageType = "startGame"
	MsgPlayCard   MessageType = "playCard"
	MsgDrawCard   MessageType = "drawCard"
	MsgCallUno    MessageType = "callUno"
)

// ClientMessage is the single inbound envelope. Fields beyond Type are
// populated per message type; CardIndex is a pointer so a missing index is
// distinguishable from index 0.
type ClientMessage struct {
	Type        MessageType `json:"type"`
	PlayerName  string      `json:"playerName,omitempty"`
	RoomCode    string      `json:"roomCode,omitempty"`
	CardIndex   *int        `json:"cardIndex,omitempty"`
	ChosenColor string      `json:"chosenColor,omitempty"`
}

// --- Outbound messages. Every struct carries its own fixed type tag. ---

// ErrorMsg is sent only to the connection whose action failed.
type ErrorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func newErrorMsg(message string) ErrorMsg {
	return ErrorMsg{Type: "error", Message: message}
}

// RoomCreatedMsg acknowledges room creation to the host.
type RoomCreatedMsg struct {
	Type     string `json:"type"`
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
}

// JoinedMsg acknowledges a join to the joining player, roster included.
type JoinedMsg struct {
	Type     string                 `json:"type"`
	RoomCode string                 `json:"roomCode"`
	PlayerID string                 `json:"playerId"`
	Players  []models.PlayerSummary `json:"players"`
}

// PlayerJoinedMsg is broadcast to the room, excluding the newcomer.
type PlayerJoinedMsg struct {
	Type       string                 `json:"type"`
	PlayerName string                 `json:"playerName"`
	Players    []models.PlayerSummary `json:"players"`
}

// PlayerLeftMsg is broadcast to the remaining room members.
type PlayerLeftMsg struct {
	Type       string                 `json:"type"`
	PlayerName string                 `json:"playerName"`
	Players    []models.PlayerSummary `json:"players"`
}

// GameStateMsg is the per-recipient private view: the recipient's own hand,
// plus only public facts about everyone else. Sent with type "gameStarted" on
// deal and "gameState" after every state-changing action.
type GameStateMsg struct {
	Type          string                 `json:"type"`
	Hand          []models.Card          `json:"hand"`
	TopCard       models.Card            `json:"topCard"`
	Players       []models.PlayerSummary `json:"players"`
	CurrentPlayer string                 `json:"currentPlayer"`
	Direction     int                    `json:"direction"`
	DeckCount     int                    `json:"deckCount"`
}

func newGameStateMsg(typ string, snap game.StateSnapshot) GameStateMsg {
	return GameStateMsg{
		Type:          typ,
		Hand:          snap.Hand,
		TopCard:       snap.TopCard,
		Players:       snap.Players,
		CurrentPlayer: snap.CurrentPlayer,
		Direction:     snap.Direction,
		DeckCount:     snap.DeckCount,
	}
}

// NarrationMsg carries human-readable room narration: cardPlayed, unoCall,
// and the room-wide form of cardDrawn.
type NarrationMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// CardDrawnMsg is the private form of cardDrawn sent to the drawing player:
// narration plus the drawn card and whether it is currently playable.
type CardDrawnMsg struct {
	Type    string      `json:"type"`
	Message string      `json:"message"`
	Card    models.Card `json:"card"`
	CanPlay bool        `json:"canPlay"`
}

// GameOverMsg announces the winner with the final tally, ascending by
// remaining card count, winner first with 0.
type GameOverMsg struct {
	Type   string               `json:"type"`
	Winner models.PlayerSummary `json:"winner"`
	Scores []game.ScoreEntry    `json:"scores"`
}
