// internal/handlers/dispatch.go
package handlers

import (
	"fmt"
	"strings"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/unolabs/uno-service/internal/game"
	"github.com/unolabs/uno-service/internal/models"
)

// Session is the per-connection binding: which player this connection speaks
// for and which room it is bound to. It replaces the closure-captured state of
// a per-connection handler with an explicit record handed to the dispatcher.
type Session struct {
	Conn     *websocket.Conn
	PlayerID string
	RoomCode string
	Game     *game.UnoGame
	Player   *models.Player
}

// Dispatcher translates inbound client messages into registry and game
// operations and their results into outbound messages. For every mutation it
// acquires the room lock once, builds all resulting payloads and recipient
// snapshots under it, and delivers only after release — so no two mutations
// can interleave between a state change and the views it produced.
type Dispatcher struct {
	Registry *game.Registry
	Caster   Broadcaster
	Logger   *logrus.Logger
}

// NewDispatcher wires a dispatcher over a registry and broadcaster.
func NewDispatcher(reg *game.Registry, caster Broadcaster, logger *logrus.Logger) *Dispatcher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Dispatcher{Registry: reg, Caster: caster, Logger: logger}
}

// targeted pairs a private message with its recipient for delivery after the
// room lock is released.
type targeted struct {
	player *models.Player
	msg    interface{}
}

func (d *Dispatcher) sendError(sess *Session, message string) {
	d.Caster.Unicast(sess.Conn, newErrorMsg(message))
}

// Handle routes one decoded message. Unknown types are protocol errors; they
// are reported to the sender and discarded without touching any session.
func (d *Dispatcher) Handle(sess *Session, msg ClientMessage) {
	switch msg.Type {
	case MsgCreateRoom:
		d.handleCreateRoom(sess, msg)
	case MsgJoin:
		d.handleJoin(sess, msg)
	case MsgStartGame:
		d.handleStartGame(sess)
	case MsgPlayCard:
		d.handlePlayCard(sess, msg)
	case MsgDrawCard:
		d.handleDrawCard(sess)
	case MsgCallUno:
		d.handleCallUno(sess)
	default:
		d.Logger.Warnf("Unknown message type %q from player %q", msg.Type, sess.PlayerID)
		d.sendError(sess, fmt.Sprintf("unknown message type: %s", msg.Type))
	}
}

func (d *Dispatcher) handleCreateRoom(sess *Session, msg ClientMessage) {
	name := strings.TrimSpace(msg.PlayerName)
	if name == "" {
		d.sendError(sess, "playerName is required")
		return
	}
	if sess.Game != nil {
		d.sendError(sess, "already in a room")
		return
	}

	g := d.Registry.CreateRoom()
	g.Mu.Lock()
	p, err := g.AddPlayer(game.NewPlayerID(), name, sess.Conn)
	g.Mu.Unlock()
	if err != nil {
		// unreachable on a fresh room, but the registry entry must not leak
		d.Registry.Retire(g.RoomCode)
		d.sendError(sess, err.Error())
		return
	}

	sess.Game = g
	sess.RoomCode = g.RoomCode
	sess.PlayerID = p.ID
	sess.Player = p

	d.Caster.Send(p, RoomCreatedMsg{Type: "roomCreated", RoomCode: g.RoomCode, PlayerID: p.ID})
}

func (d *Dispatcher) handleJoin(sess *Session, msg ClientMessage) {
	name := strings.TrimSpace(msg.PlayerName)
	if name == "" {
		d.sendError(sess, "playerName is required")
		return
	}
	if sess.Game != nil {
		d.sendError(sess, "already in a room")
		return
	}

	var g *game.UnoGame
	if msg.RoomCode != "" {
		var ok bool
		if g, ok = d.Registry.Get(msg.RoomCode); !ok {
			d.sendError(sess, game.ErrRoomNotFound.Error())
			return
		}
	} else if g = d.Registry.FindOpen(); g == nil {
		d.sendError(sess, game.ErrRoomNotFound.Error())
		return
	}

	g.Mu.Lock()
	p, err := g.AddPlayer(game.NewPlayerID(), name, sess.Conn)
	if err != nil {
		g.Mu.Unlock()
		d.sendError(sess, err.Error())
		return
	}
	roster := g.Roster()
	recipients := g.Recipients()
	g.Mu.Unlock()

	sess.Game = g
	sess.RoomCode = g.RoomCode
	sess.PlayerID = p.ID
	sess.Player = p

	d.Caster.Send(p, JoinedMsg{Type: "joined", RoomCode: g.RoomCode, PlayerID: p.ID, Players: roster})
	d.Caster.Broadcast(recipients, PlayerJoinedMsg{Type: "playerJoined", PlayerName: name, Players: roster}, p.ID)
}

func (d *Dispatcher) handleStartGame(sess *Session) {
	g := sess.Game
	if g == nil {
		d.sendError(sess, game.ErrRoomNotFound.Error())
		return
	}

	g.Mu.Lock()
	if err := g.StartGame(sess.PlayerID); err != nil {
		g.Mu.Unlock()
		d.sendError(sess, err.Error())
		return
	}
	views := make([]targeted, 0, len(g.Players))
	for _, p := range g.Players {
		views = append(views, targeted{p, newGameStateMsg("gameStarted", g.SnapshotFor(p))})
	}
	g.Mu.Unlock()

	for _, v := range views {
		d.Caster.Send(v.player, v.msg)
	}
}

func (d *Dispatcher) handlePlayCard(sess *Session, msg ClientMessage) {
	g := sess.Game
	if g == nil {
		d.sendError(sess, game.ErrRoomNotFound.Error())
		return
	}
	if msg.CardIndex == nil {
		d.sendError(sess, "cardIndex is required")
		return
	}
	var chosen models.Color
	if msg.ChosenColor != "" {
		var ok bool
		if chosen, ok = models.ParseColor(msg.ChosenColor); !ok {
			d.sendError(sess, fmt.Sprintf("invalid color choice: %s", msg.ChosenColor))
			return
		}
	}

	g.Mu.Lock()
	res, err := g.PlayCard(sess.PlayerID, *msg.CardIndex, chosen)
	if err != nil {
		g.Mu.Unlock()
		d.sendError(sess, err.Error())
		return
	}

	played := NarrationMsg{Type: "cardPlayed", Message: fmt.Sprintf("%s played a %s", res.PlayerName, res.Card)}
	recipients := g.Recipients()

	if res.GameOver {
		over := GameOverMsg{Type: "gameOver", Winner: res.Winner, Scores: g.Scores()}
		g.Mu.Unlock()

		d.Caster.Broadcast(recipients, played, "")
		d.Caster.Broadcast(recipients, over, "")
		d.Registry.Retire(g.RoomCode)
		return
	}

	var penalty *NarrationMsg
	if res.UnoPenalty {
		penalty = &NarrationMsg{
			Type:    "cardDrawn",
			Message: fmt.Sprintf("%s didn't call UNO and drew 2 penalty cards!", res.PlayerName),
		}
	}
	views := make([]targeted, 0, len(g.Players))
	for _, p := range g.Players {
		views = append(views, targeted{p, newGameStateMsg("gameState", g.SnapshotFor(p))})
	}
	g.Mu.Unlock()

	d.Caster.Broadcast(recipients, played, "")
	if penalty != nil {
		d.Caster.Broadcast(recipients, *penalty, "")
	}
	for _, v := range views {
		d.Caster.Send(v.player, v.msg)
	}
}

func (d *Dispatcher) handleDrawCard(sess *Session) {
	g := sess.Game
	if g == nil {
		d.sendError(sess, game.ErrRoomNotFound.Error())
		return
	}

	g.Mu.Lock()
	res, err := g.HandleDrawCard(sess.PlayerID)
	if err != nil {
		g.Mu.Unlock()
		d.sendError(sess, err.Error())
		return
	}

	var text string
	if res.Passed {
		text = fmt.Sprintf("%s drew a card and passed", res.PlayerName)
	} else {
		text = fmt.Sprintf("%s drew a card", res.PlayerName)
	}
	narration := NarrationMsg{Type: "cardDrawn", Message: text}

	// the drawn card and its playability are for the drawing player only
	var private *CardDrawnMsg
	if !res.Passed {
		private = &CardDrawnMsg{Type: "cardDrawn", Message: text, Card: res.Card, CanPlay: res.CanPlay}
	}

	recipients := g.Recipients()
	views := make([]targeted, 0, len(g.Players))
	for _, p := range g.Players {
		views = append(views, targeted{p, newGameStateMsg("gameState", g.SnapshotFor(p))})
	}
	g.Mu.Unlock()

	if private != nil {
		d.Caster.Send(sess.Player, *private)
		d.Caster.Broadcast(recipients, narration, sess.PlayerID)
	} else {
		d.Caster.Broadcast(recipients, narration, "")
	}
	for _, v := range views {
		d.Caster.Send(v.player, v.msg)
	}
}

func (d *Dispatcher) handleCallUno(sess *Session) {
	g := sess.Game
	if g == nil {
		d.sendError(sess, game.ErrRoomNotFound.Error())
		return
	}

	g.Mu.Lock()
	ok := g.CallUno(sess.PlayerID)
	var name string
	if ok {
		name = sess.Player.Name
	}
	recipients := g.Recipients()
	g.Mu.Unlock()

	if !ok {
		d.sendError(sess, game.ErrUnoNotCallable.Error())
		return
	}
	d.Caster.Broadcast(recipients, NarrationMsg{Type: "unoCall", Message: fmt.Sprintf("%s called UNO!", name)}, "")
}

// HandleDisconnect tears down a closed connection's seat: the player is
// removed, the room told, and an emptied room retired. Disconnection is the
// only cancellation signal; there is no reconnect or resume.
func (d *Dispatcher) HandleDisconnect(sess *Session) {
	g := sess.Game
	if g == nil {
		return
	}

	g.Mu.Lock()
	removed := g.RemovePlayer(sess.PlayerID)
	roster := g.Roster()
	recipients := g.Recipients()
	empty := len(g.Players) == 0
	g.Mu.Unlock()

	if removed == nil {
		return
	}
	d.Logger.WithFields(logrus.Fields{"room": g.RoomCode, "player": removed.Name}).Info("Player left")

	d.Caster.Broadcast(recipients, PlayerLeftMsg{Type: "playerLeft", PlayerName: removed.Name, Players: roster}, "")
	if empty {
		d.Registry.Retire(g.RoomCode)
	}
	sess.Game = nil
	sess.Player = nil
	sess.RoomCode = ""
}
