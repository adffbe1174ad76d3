// internal/game/game.go
package game

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/unolabs/uno-service/internal/cache"
	"github.com/unolabs/uno-service/internal/models"
)

// MaxPlayers caps the number of seats in a room.
const MaxPlayers = 15

// MinPlayers is the minimum required to start a game. A solo game is
// degenerate, so two players are required even though the room stays open
// below the cap.
const MinPlayers = 2

// Validation errors: local to one action, session state unchanged.
var (
	ErrNotYourTurn    = errors.New("not your turn")
	ErrInvalidCard    = errors.New("invalid card")
	ErrIllegalPlay    = errors.New("cannot play this card")
	ErrUnoNotCallable = errors.New("you can only call UNO with one card left")
	ErrDeckExhausted  = errors.New("no cards left to draw")
	ErrGameNotStarted = errors.New("game has not started")
	ErrGameOver       = errors.New("game has ended")
)

// Room errors: reported before any session mutation.
var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrRoomFull            = errors.New("room is full (15 players max)")
	ErrGameAlreadyStarted  = errors.New("game already started")
	ErrNotHost             = errors.New("only the host can start the game")
	ErrInsufficientPlayers = errors.New("need at least 2 players to start")
)

// UnoGame holds the authoritative state for a single room. All rule methods
// assume the caller holds Mu; the connection layer acquires it once per
// inbound action so a mutation and the views built from it form one atomic
// step.
type UnoGame struct {
	ID       uuid.UUID
	RoomCode string

	Players     []*models.Player
	Deck        Stack
	DiscardPile Stack

	CurrentPlayerIndex int
	Direction          int // +1 forward, -1 reversed

	Started       bool
	GameOver      bool
	DrawnThisTurn bool

	Mu sync.Mutex

	Logger *logrus.Logger

	rng         *rand.Rand
	actionIndex int
}

// NewUnoGame builds an empty waiting room.
func NewUnoGame(roomCode string, logger *logrus.Logger) *UnoGame {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &UnoGame{
		ID:        uuid.New(),
		RoomCode:  roomCode,
		Direction: 1,
		Logger:    logger,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WaitingForPlayers reports whether the room is still joinable.
// Assumes lock is held.
func (g *UnoGame) WaitingForPlayers() bool {
	return !g.Started && !g.GameOver
}

// AddPlayer seats a new player. The first seat becomes host.
// Assumes lock is held.
func (g *UnoGame) AddPlayer(id, name string, conn *websocket.Conn) (*models.Player, error) {
	if g.Started || g.GameOver {
		return nil, ErrGameAlreadyStarted
	}
	if len(g.Players) >= MaxPlayers {
		return nil, ErrRoomFull
	}
	p := &models.Player{
		ID:     id,
		Name:   name,
		Hand:   []models.Card{},
		IsHost: len(g.Players) == 0,
		Conn:   conn,
	}
	g.Players = append(g.Players, p)
	g.logAction(id, "player_join", map[string]interface{}{"name": name, "seats": len(g.Players)})
	return p, nil
}

// RemovePlayer unseats a player and returns them, or nil if absent. Host duty
// passes to the first remaining seat. Relative turn order is preserved: seats
// before the departed one shift down with the slice, and if the departed
// player was due to act the turn falls to the seat now occupying their index.
// Assumes lock is held.
func (g *UnoGame) RemovePlayer(id string) *models.Player {
	idx := g.playerIndex(id)
	if idx == -1 {
		return nil
	}
	removed := g.Players[idx]
	g.Players = append(g.Players[:idx], g.Players[idx+1:]...)

	if removed.IsHost && len(g.Players) > 0 {
		g.Players[0].IsHost = true
	}

	if idx < g.CurrentPlayerIndex {
		g.CurrentPlayerIndex--
	} else if idx == g.CurrentPlayerIndex {
		g.DrawnThisTurn = false
	}
	if g.CurrentPlayerIndex >= len(g.Players) {
		g.CurrentPlayerIndex = 0
	}

	g.logAction(id, "player_leave", map[string]interface{}{"name": removed.Name, "seats": len(g.Players)})
	return removed
}

// StartGame moves the room from waiting to in-progress: builds and shuffles
// the deck, deals, and flips the first discard. Only the host may start, and
// only with enough players.
// Assumes lock is held.
func (g *UnoGame) StartGame(playerID string) error {
	p := g.playerByID(playerID)
	if p == nil || !p.IsHost {
		return ErrNotHost
	}
	if g.Started || g.GameOver {
		return ErrGameAlreadyStarted
	}
	if len(g.Players) < MinPlayers {
		return ErrInsufficientPlayers
	}

	g.Deck = BuildDeck()
	g.Deck.Shuffle(g.rng)
	g.DiscardPile = Stack{}
	g.dealInitial()

	g.Started = true
	g.DrawnThisTurn = false
	g.Logger.WithFields(logrus.Fields{
		"room":    g.RoomCode,
		"players": len(g.Players),
	}).Info("Game started")
	g.logAction(playerID, "game_start", map[string]interface{}{"players": len(g.Players)})
	return nil
}

// dealInitial deals 7 cards to each seat in order, then flips the first
// discard. A wild first card is buried at the bottom, the deck reshuffled and
// the flip retried until a colored card appears. If that card is an action
// card its effect applies before anyone acts.
// Assumes lock is held.
func (g *UnoGame) dealInitial() {
	for _, p := range g.Players {
		p.Hand = make([]models.Card, 0, 7)
		for i := 0; i < 7; i++ {
			c, _ := g.Deck.Pop()
			p.Hand = append(p.Hand, c)
		}
	}

	first, _ := g.Deck.Pop()
	for first.IsWild() {
		g.Deck.PushBottom(first)
		g.Deck.Shuffle(g.rng)
		first, _ = g.Deck.Pop()
	}
	g.DiscardPile = Stack{first}

	n := len(g.Players)
	switch first.Kind {
	case models.KindSkip:
		g.CurrentPlayerIndex = 1 % n
	case models.KindReverse:
		g.Direction = -1
		g.CurrentPlayerIndex = n - 1
	case models.KindDraw2:
		g.drawForPlayer(0, 2)
		g.CurrentPlayerIndex = 1 % n
	}
}

// drawOne pops the top of the deck. When the deck runs dry the discard pile
// minus its top card is shuffled back in first; the top card stays so
// legality never changes mid-draw.
// Assumes lock is held.
func (g *UnoGame) drawOne() (models.Card, bool) {
	if g.Deck.Len() == 0 {
		top, ok := g.DiscardPile.Pop()
		if !ok {
			return models.Card{}, false
		}
		g.Deck = Stack(g.DiscardPile)
		g.DiscardPile = Stack{top}
		g.Deck.Shuffle(g.rng)
		g.Logger.WithFields(logrus.Fields{
			"room":     g.RoomCode,
			"deckSize": g.Deck.Len(),
		}).Info("Reshuffled discard pile into deck")
		g.logAction("", "deck_reshuffle", map[string]interface{}{"deckSize": g.Deck.Len()})
	}
	return g.Deck.Pop()
}

// drawForPlayer draws count cards into the seat at idx and clears their UNO
// call. Stops short if no cards remain anywhere.
// Assumes lock is held.
func (g *UnoGame) drawForPlayer(idx, count int) {
	p := g.Players[idx]
	for i := 0; i < count; i++ {
		c, ok := g.drawOne()
		if !ok {
			g.Logger.WithField("room", g.RoomCode).Warn("Forced draw cut short, no cards left")
			break
		}
		p.Hand = append(p.Hand, c)
	}
	p.CalledUno = false
}

// PlayResult reports the outcome of a successful play.
type PlayResult struct {
	Card       models.Card // as pushed on the discard, chosen color applied
	PlayerName string
	UnoPenalty bool // the player hit one card without calling UNO and drew 2
	GameOver   bool
	Winner     models.PlayerSummary // meaningful only when GameOver
}

// PlayCard plays the card at cardIndex from playerID's hand. chosenColor
// fixes the color of a wild; it is ignored for colored cards. A play that
// empties the hand wins immediately: no card effect, turn advance, or UNO
// penalty applies to the winning move.
// Assumes lock is held.
func (g *UnoGame) PlayCard(playerID string, cardIndex int, chosenColor models.Color) (*PlayResult, error) {
	if g.GameOver {
		return nil, ErrGameOver
	}
	if !g.Started {
		return nil, ErrGameNotStarted
	}
	idx := g.playerIndex(playerID)
	if idx == -1 || idx != g.CurrentPlayerIndex {
		return nil, ErrNotYourTurn
	}
	p := g.Players[idx]
	if cardIndex < 0 || cardIndex >= len(p.Hand) {
		return nil, ErrInvalidCard
	}

	card := p.Hand[cardIndex]
	top, _ := g.DiscardPile.Peek()
	if !card.Matches(top) {
		return nil, ErrIllegalPlay
	}

	p.Hand = append(p.Hand[:cardIndex], p.Hand[cardIndex+1:]...)

	played := card
	if card.IsWild() && chosenColor != "" {
		played.Color = chosenColor
	}
	g.DiscardPile.Push(played)

	res := &PlayResult{Card: played, PlayerName: p.Name}
	g.logAction(playerID, "play_card", map[string]interface{}{
		"card": played.String(), "remaining": len(p.Hand),
	})

	if len(p.Hand) == 0 {
		g.GameOver = true
		g.Started = false
		res.GameOver = true
		res.Winner = p.Summary()
		g.Logger.WithFields(logrus.Fields{"room": g.RoomCode, "winner": p.Name}).Info("Game over")
		g.logAction(playerID, "game_over", map[string]interface{}{"winner": p.Name})
		return res, nil
	}

	if len(p.Hand) == 1 && !p.CalledUno {
		g.drawForPlayer(idx, 2)
		res.UnoPenalty = true
		g.logAction(playerID, "uno_penalty", nil)
	}

	skipNext := false
	drawCount := 0
	switch card.Kind {
	case models.KindSkip:
		skipNext = true
	case models.KindReverse:
		g.Direction *= -1
		if len(g.Players) == 2 {
			// reverse degenerates to skip heads-up
			skipNext = true
		}
	case models.KindDraw2:
		drawCount = 2
		skipNext = true
	case models.KindWildDraw4:
		drawCount = 4
		skipNext = true
	}

	g.nextPlayer()
	if drawCount > 0 {
		g.drawForPlayer(g.CurrentPlayerIndex, drawCount)
	}
	if skipNext {
		g.nextPlayer()
	}

	g.DrawnThisTurn = false
	p.CalledUno = false
	return res, nil
}

// DrawResult reports the outcome of a draw action. When Passed is true no
// card was drawn; the player had already drawn this turn and the call passed
// the turn instead.
type DrawResult struct {
	Passed     bool
	Card       models.Card
	CanPlay    bool // whether the drawn card is playable right now
	PlayerName string
}

// HandleDrawCard draws one card for playerID, or passes the turn if they have
// already drawn this turn. Drawing never advances the turn by itself.
// Assumes lock is held.
func (g *UnoGame) HandleDrawCard(playerID string) (*DrawResult, error) {
	if g.GameOver {
		return nil, ErrGameOver
	}
	if !g.Started {
		return nil, ErrGameNotStarted
	}
	idx := g.playerIndex(playerID)
	if idx == -1 || idx != g.CurrentPlayerIndex {
		return nil, ErrNotYourTurn
	}
	p := g.Players[idx]

	if g.DrawnThisTurn {
		g.nextPlayer()
		g.DrawnThisTurn = false
		g.logAction(playerID, "pass_turn", nil)
		return &DrawResult{Passed: true, PlayerName: p.Name}, nil
	}

	c, ok := g.drawOne()
	if !ok {
		return nil, ErrDeckExhausted
	}
	p.Hand = append(p.Hand, c)
	p.CalledUno = false
	g.DrawnThisTurn = true

	top, _ := g.DiscardPile.Peek()
	g.logAction(playerID, "draw_card", map[string]interface{}{"handSize": len(p.Hand)})
	return &DrawResult{Card: c, CanPlay: c.Matches(top), PlayerName: p.Name}, nil
}

// CallUno marks the player as having declared a one-card hand. It succeeds
// only when the hand size is exactly one; otherwise nothing changes.
// Assumes lock is held.
func (g *UnoGame) CallUno(playerID string) bool {
	p := g.playerByID(playerID)
	if p == nil || len(p.Hand) != 1 {
		return false
	}
	p.CalledUno = true
	g.logAction(playerID, "call_uno", nil)
	return true
}

// nextPlayer advances the turn pointer one seat in the current direction.
// Assumes lock is held.
func (g *UnoGame) nextPlayer() {
	n := len(g.Players)
	g.CurrentPlayerIndex = (g.CurrentPlayerIndex + g.Direction + n) % n
}

// TopCard returns the current discard top.
// Assumes lock is held.
func (g *UnoGame) TopCard() models.Card {
	top, _ := g.DiscardPile.Peek()
	return top
}

// CurrentPlayer returns the seat whose turn it is, or nil for an empty room.
// Assumes lock is held.
func (g *UnoGame) CurrentPlayer() *models.Player {
	if len(g.Players) == 0 {
		return nil
	}
	return g.Players[g.CurrentPlayerIndex]
}

// Roster returns the public projection of every seat in order.
// Assumes lock is held.
func (g *UnoGame) Roster() []models.PlayerSummary {
	roster := make([]models.PlayerSummary, len(g.Players))
	for i, p := range g.Players {
		roster[i] = p.Summary()
	}
	return roster
}

// Recipients snapshots the seats for delivery outside the lock.
// Assumes lock is held.
func (g *UnoGame) Recipients() []*models.Player {
	out := make([]*models.Player, len(g.Players))
	copy(out, g.Players)
	return out
}

// ScoreEntry is one row of the end-of-game tally: remaining card count,
// ascending, winner first with 0.
type ScoreEntry struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// Scores tallies remaining hand sizes sorted ascending.
// Assumes lock is held.
func (g *UnoGame) Scores() []ScoreEntry {
	scores := make([]ScoreEntry, len(g.Players))
	for i, p := range g.Players {
		scores[i] = ScoreEntry{Name: p.Name, Score: len(p.Hand)}
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score < scores[j].Score
	})
	return scores
}

// StateSnapshot is one player's private view of the room: their own hand in
// full, everyone else only as roster entries.
type StateSnapshot struct {
	Hand          []models.Card
	TopCard       models.Card
	Players       []models.PlayerSummary
	CurrentPlayer string
	Direction     int
	DeckCount     int
}

// SnapshotFor builds the private view for one recipient. The hand is copied
// so the view stays consistent after the lock is released.
// Assumes lock is held.
func (g *UnoGame) SnapshotFor(p *models.Player) StateSnapshot {
	hand := make([]models.Card, len(p.Hand))
	copy(hand, p.Hand)

	var currentID string
	if cur := g.CurrentPlayer(); cur != nil {
		currentID = cur.ID
	}
	return StateSnapshot{
		Hand:          hand,
		TopCard:       g.TopCard(),
		Players:       g.Roster(),
		CurrentPlayer: currentID,
		Direction:     g.Direction,
		DeckCount:     g.Deck.Len(),
	}
}

func (g *UnoGame) playerIndex(id string) int {
	for i, p := range g.Players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (g *UnoGame) playerByID(id string) *models.Player {
	if i := g.playerIndex(id); i != -1 {
		return g.Players[i]
	}
	return nil
}

// logAction publishes an action record to the history queue, asynchronously
// so gameplay never waits on Redis. No-op while no queue is connected.
// Assumes lock is held.
func (g *UnoGame) logAction(actorID, actionType string, payload map[string]interface{}) {
	if cache.Rdb == nil {
		return
	}
	g.actionIndex++
	if payload == nil {
		payload = make(map[string]interface{})
	}
	rec := cache.GameActionRecord{
		GameID:        g.ID,
		RoomCode:      g.RoomCode,
		ActionIndex:   g.actionIndex,
		ActorPlayerID: actorID,
		ActionType:    actionType,
		ActionPayload: payload,
		Timestamp:     time.Now().UnixMilli(),
	}
	go func(rec cache.GameActionRecord) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := cache.PublishGameAction(ctx, rec); err != nil {
			g.Logger.WithError(err).Warnf("failed to publish action %d for game %s", rec.ActionIndex, rec.GameID)
		}
	}(rec)
}
