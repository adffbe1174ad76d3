// internal/handlers/dispatch_test.go
package handlers

import (
	"testing"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unolabs/uno-service/internal/game"
	"github.com/unolabs/uno-service/internal/models"
)

type sentMsg struct {
	playerID string
	msg      interface{}
}

type broadcastMsg struct {
	recipients int
	excludeID  string
	msg        interface{}
}

// mockCaster records deliveries instead of writing to sockets.
type mockCaster struct {
	unicasts   []interface{}
	sends      []sentMsg
	broadcasts []broadcastMsg
}

func (m *mockCaster) Unicast(c *websocket.Conn, msg interface{}) {
	m.unicasts = append(m.unicasts, msg)
}

func (m *mockCaster) Send(p *models.Player, msg interface{}) {
	m.sends = append(m.sends, sentMsg{playerID: p.ID, msg: msg})
}

func (m *mockCaster) Broadcast(recipients []*models.Player, msg interface{}, excludeID string) {
	m.broadcasts = append(m.broadcasts, broadcastMsg{recipients: len(recipients), excludeID: excludeID, msg: msg})
}

func (m *mockCaster) reset() {
	m.unicasts = nil
	m.sends = nil
	m.broadcasts = nil
}

// lastError returns the message of the most recent ErrorMsg unicast.
func (m *mockCaster) lastError() (string, bool) {
	for i := len(m.unicasts) - 1; i >= 0; i-- {
		if e, ok := m.unicasts[i].(ErrorMsg); ok {
			return e.Message, true
		}
	}
	return "", false
}

// sentTo returns the messages delivered privately to one player.
func (m *mockCaster) sentTo(playerID string) []interface{} {
	var out []interface{}
	for _, s := range m.sends {
		if s.playerID == playerID {
			out = append(out, s.msg)
		}
	}
	return out
}

func newTestDispatcher() (*Dispatcher, *mockCaster) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	caster := &mockCaster{}
	return NewDispatcher(game.NewRegistry(logger), caster, logger), caster
}

func intPtr(i int) *int { return &i }

// createRoom drives a createRoom message and returns the bound session.
func createRoom(t *testing.T, d *Dispatcher, name string) *Session {
	t.Helper()
	sess := &Session{}
	d.Handle(sess, ClientMessage{Type: MsgCreateRoom, PlayerName: name})
	require.NotNil(t, sess.Game, "createRoom must bind the session")
	return sess
}

// join drives a join message into an existing room.
func join(t *testing.T, d *Dispatcher, roomCode, name string) *Session {
	t.Helper()
	sess := &Session{}
	d.Handle(sess, ClientMessage{Type: MsgJoin, RoomCode: roomCode, PlayerName: name})
	require.NotNil(t, sess.Game, "join must bind the session")
	return sess
}

func TestCreateRoom(t *testing.T) {
	d, caster := newTestDispatcher()

	sess := createRoom(t, d, "alice")
	assert.Len(t, sess.RoomCode, 6)
	assert.NotEmpty(t, sess.PlayerID)
	assert.True(t, sess.Player.IsHost)
	assert.Equal(t, 1, d.Registry.Count())

	msgs := caster.sentTo(sess.PlayerID)
	require.Len(t, msgs, 1)
	created, ok := msgs[0].(RoomCreatedMsg)
	require.True(t, ok)
	assert.Equal(t, "roomCreated", created.Type)
	assert.Equal(t, sess.RoomCode, created.RoomCode)
	assert.Equal(t, sess.PlayerID, created.PlayerID)
}

func TestCreateRoomRequiresName(t *testing.T) {
	d, caster := newTestDispatcher()
	sess := &Session{}

	d.Handle(sess, ClientMessage{Type: MsgCreateRoom, PlayerName: "   "})
	errText, ok := caster.lastError()
	require.True(t, ok)
	assert.Equal(t, "playerName is required", errText)
	assert.Nil(t, sess.Game)
	assert.Equal(t, 0, d.Registry.Count())
}

func TestCreateRoomWhileSeated(t *testing.T) {
	d, caster := newTestDispatcher()
	sess := createRoom(t, d, "alice")
	caster.reset()

	d.Handle(sess, ClientMessage{Type: MsgCreateRoom, PlayerName: "alice"})
	errText, ok := caster.lastError()
	require.True(t, ok)
	assert.Equal(t, "already in a room", errText)
	assert.Equal(t, 1, d.Registry.Count())
}

func TestJoinByCode(t *testing.T) {
	d, caster := newTestDispatcher()
	host := createRoom(t, d, "alice")
	caster.reset()

	joiner := join(t, d, host.RoomCode, "bob")

	msgs := caster.sentTo(joiner.PlayerID)
	require.Len(t, msgs, 1)
	joined, ok := msgs[0].(JoinedMsg)
	require.True(t, ok)
	assert.Equal(t, host.RoomCode, joined.RoomCode)
	require.Len(t, joined.Players, 2)
	assert.Equal(t, "alice", joined.Players[0].Name)
	assert.Equal(t, "bob", joined.Players[1].Name)

	require.Len(t, caster.broadcasts, 1)
	bc := caster.broadcasts[0]
	assert.Equal(t, joiner.PlayerID, bc.excludeID, "newcomer does not get the playerJoined echo")
	pj, ok := bc.msg.(PlayerJoinedMsg)
	require.True(t, ok)
	assert.Equal(t, "bob", pj.PlayerName)
}

func TestJoinUnknownRoom(t *testing.T) {
	d, caster := newTestDispatcher()
	sess := &Session{}

	d.Handle(sess, ClientMessage{Type: MsgJoin, RoomCode: "ZZZZZZ", PlayerName: "bob"})
	errText, ok := caster.lastError()
	require.True(t, ok)
	assert.Equal(t, "room not found", errText)
	assert.Nil(t, sess.Game)
}

func TestJoinAutoMatch(t *testing.T) {
	d, caster := newTestDispatcher()
	host := createRoom(t, d, "alice")
	caster.reset()

	joiner := join(t, d, "", "bob")
	assert.Equal(t, host.RoomCode, joiner.RoomCode, "empty room code matches any open room")
}

func TestJoinAutoMatchNoOpenRoom(t *testing.T) {
	d, caster := newTestDispatcher()
	sess := &Session{}

	d.Handle(sess, ClientMessage{Type: MsgJoin, PlayerName: "bob"})
	errText, ok := caster.lastError()
	require.True(t, ok)
	assert.Equal(t, "room not found", errText)
}

func TestJoinAfterStart(t *testing.T) {
	d, caster := newTestDispatcher()
	host := createRoom(t, d, "alice")
	join(t, d, host.RoomCode, "bob")
	d.Handle(host, ClientMessage{Type: MsgStartGame})
	caster.reset()

	late := &Session{}
	d.Handle(late, ClientMessage{Type: MsgJoin, RoomCode: host.RoomCode, PlayerName: "carol"})
	errText, ok := caster.lastError()
	require.True(t, ok)
	assert.Equal(t, "game already started", errText)
	assert.Nil(t, late.Game)
}

func TestStartGameDealsPrivateViews(t *testing.T) {
	d, caster := newTestDispatcher()
	host := createRoom(t, d, "alice")
	joiner := join(t, d, host.RoomCode, "bob")
	caster.reset()

	d.Handle(host, ClientMessage{Type: MsgStartGame})

	for _, sess := range []*Session{host, joiner} {
		msgs := caster.sentTo(sess.PlayerID)
		require.Len(t, msgs, 1)
		state, ok := msgs[0].(GameStateMsg)
		require.True(t, ok)
		assert.Equal(t, "gameStarted", state.Type)
		assert.Len(t, state.Hand, 7)
		assert.False(t, state.TopCard.IsWild())
		require.Len(t, state.Players, 2)
		assert.Equal(t, 7, state.Players[0].CardCount)
	}
}

func TestStartGameNonHost(t *testing.T) {
	d, caster := newTestDispatcher()
	host := createRoom(t, d, "alice")
	joiner := join(t, d, host.RoomCode, "bob")
	caster.reset()

	d.Handle(joiner, ClientMessage{Type: MsgStartGame})
	errText, ok := caster.lastError()
	require.True(t, ok)
	assert.Equal(t, "only the host can start the game", errText)
}

func TestStartGameOutsideRoom(t *testing.T) {
	d, caster := newTestDispatcher()
	sess := &Session{}
	d.Handle(sess, ClientMessage{Type: MsgStartGame})
	errText, ok := caster.lastError()
	require.True(t, ok)
	assert.Equal(t, "room not found", errText)
}

// rig replaces a started game's dealt state with a hand-picked one so card
// plays are deterministic.
func rig(g *game.UnoGame, hands [][]models.Card, deck game.Stack, top models.Card) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	for i, h := range hands {
		g.Players[i].Hand = append([]models.Card{}, h...)
		g.Players[i].CalledUno = false
	}
	g.Deck = deck
	g.DiscardPile = game.Stack{top}
	g.CurrentPlayerIndex = 0
	g.Direction = 1
	g.DrawnThisTurn = false
}

func startedPair(t *testing.T, d *Dispatcher) (*Session, *Session) {
	t.Helper()
	host := createRoom(t, d, "alice")
	joiner := join(t, d, host.RoomCode, "bob")
	d.Handle(host, ClientMessage{Type: MsgStartGame})
	return host, joiner
}

func TestPlayCardBroadcasts(t *testing.T) {
	d, caster := newTestDispatcher()
	host, joiner := startedPair(t, d)
	rig(host.Game,
		[][]models.Card{
			{{Color: models.ColorRed, Kind: models.KindNumber, Value: 3}, {Color: models.ColorBlue, Kind: models.KindNumber, Value: 7}, {Color: models.ColorBlue, Kind: models.KindNumber, Value: 2}},
			{{Color: models.ColorGreen, Kind: models.KindNumber, Value: 1}, {Color: models.ColorGreen, Kind: models.KindNumber, Value: 4}},
		},
		game.Stack{{Color: models.ColorYellow, Kind: models.KindNumber, Value: 9}},
		models.Card{Color: models.ColorRed, Kind: models.KindNumber, Value: 8},
	)
	caster.reset()

	d.Handle(host, ClientMessage{Type: MsgPlayCard, CardIndex: intPtr(0)})

	require.Len(t, caster.broadcasts, 1)
	played, ok := caster.broadcasts[0].msg.(NarrationMsg)
	require.True(t, ok)
	assert.Equal(t, "cardPlayed", played.Type)
	assert.Equal(t, "alice played a red 3", played.Message)
	assert.Empty(t, caster.broadcasts[0].excludeID)

	hostView := caster.sentTo(host.PlayerID)
	require.Len(t, hostView, 1)
	state := hostView[0].(GameStateMsg)
	assert.Equal(t, "gameState", state.Type)
	assert.Len(t, state.Hand, 2)
	assert.Equal(t, joiner.PlayerID, state.CurrentPlayer)

	joinerView := caster.sentTo(joiner.PlayerID)
	require.Len(t, joinerView, 1)
	assert.Len(t, joinerView[0].(GameStateMsg).Hand, 2, "opponent sees their own hand")
}

func TestPlayCardRequiresIndex(t *testing.T) {
	d, caster := newTestDispatcher()
	host, _ := startedPair(t, d)
	caster.reset()

	d.Handle(host, ClientMessage{Type: MsgPlayCard})
	errText, ok := caster.lastError()
	require.True(t, ok)
	assert.Equal(t, "cardIndex is required", errText)
}

func TestPlayCardRejectsBadColor(t *testing.T) {
	d, caster := newTestDispatcher()
	host, _ := startedPair(t, d)
	caster.reset()

	d.Handle(host, ClientMessage{Type: MsgPlayCard, CardIndex: intPtr(0), ChosenColor: "purple"})
	errText, ok := caster.lastError()
	require.True(t, ok)
	assert.Equal(t, "invalid color choice: purple", errText)
}

func TestPlayCardOutOfTurn(t *testing.T) {
	d, caster := newTestDispatcher()
	host, joiner := startedPair(t, d)
	rig(host.Game,
		[][]models.Card{
			{{Color: models.ColorRed, Kind: models.KindNumber, Value: 3}},
			{{Color: models.ColorRed, Kind: models.KindNumber, Value: 4}},
		},
		game.Stack{},
		models.Card{Color: models.ColorRed, Kind: models.KindNumber, Value: 8},
	)
	caster.reset()

	d.Handle(joiner, ClientMessage{Type: MsgPlayCard, CardIndex: intPtr(0)})
	errText, ok := caster.lastError()
	require.True(t, ok)
	assert.Equal(t, "not your turn", errText)
	assert.Empty(t, caster.broadcasts, "nothing is broadcast on a rejected play")
}

func TestPlayCardUnoPenaltyNarration(t *testing.T) {
	d, caster := newTestDispatcher()
	host, _ := startedPair(t, d)
	rig(host.Game,
		[][]models.Card{
			{{Color: models.ColorRed, Kind: models.KindNumber, Value: 3}, {Color: models.ColorBlue, Kind: models.KindNumber, Value: 7}},
			{{Color: models.ColorGreen, Kind: models.KindNumber, Value: 1}, {Color: models.ColorGreen, Kind: models.KindNumber, Value: 4}},
		},
		game.Stack{
			{Color: models.ColorYellow, Kind: models.KindNumber, Value: 1},
			{Color: models.ColorYellow, Kind: models.KindNumber, Value: 2},
		},
		models.Card{Color: models.ColorRed, Kind: models.KindNumber, Value: 8},
	)
	caster.reset()

	d.Handle(host, ClientMessage{Type: MsgPlayCard, CardIndex: intPtr(0)})

	require.Len(t, caster.broadcasts, 2)
	penalty, ok := caster.broadcasts[1].msg.(NarrationMsg)
	require.True(t, ok)
	assert.Equal(t, "cardDrawn", penalty.Type)
	assert.Equal(t, "alice didn't call UNO and drew 2 penalty cards!", penalty.Message)
}

func TestPlayCardWinRetiresRoom(t *testing.T) {
	d, caster := newTestDispatcher()
	host, _ := startedPair(t, d)
	rig(host.Game,
		[][]models.Card{
			{{Color: models.ColorRed, Kind: models.KindNumber, Value: 3}},
			{{Color: models.ColorGreen, Kind: models.KindNumber, Value: 1}, {Color: models.ColorGreen, Kind: models.KindNumber, Value: 4}},
		},
		game.Stack{{Color: models.ColorYellow, Kind: models.KindNumber, Value: 9}},
		models.Card{Color: models.ColorRed, Kind: models.KindNumber, Value: 8},
	)
	caster.reset()

	d.Handle(host, ClientMessage{Type: MsgPlayCard, CardIndex: intPtr(0)})

	require.Len(t, caster.broadcasts, 2)
	over, ok := caster.broadcasts[1].msg.(GameOverMsg)
	require.True(t, ok)
	assert.Equal(t, "gameOver", over.Type)
	assert.Equal(t, "alice", over.Winner.Name)
	require.Len(t, over.Scores, 2)
	assert.Equal(t, game.ScoreEntry{Name: "alice", Score: 0}, over.Scores[0])
	assert.Equal(t, game.ScoreEntry{Name: "bob", Score: 2}, over.Scores[1])

	_, ok = d.Registry.Get(host.RoomCode)
	assert.False(t, ok, "finished room is retired")
}

func TestDrawCardPrivateAndPublicViews(t *testing.T) {
	d, caster := newTestDispatcher()
	host, joiner := startedPair(t, d)
	drawn := models.Card{Color: models.ColorRed, Kind: models.KindNumber, Value: 1}
	rig(host.Game,
		[][]models.Card{
			{{Color: models.ColorBlue, Kind: models.KindNumber, Value: 3}, {Color: models.ColorBlue, Kind: models.KindNumber, Value: 5}},
			{{Color: models.ColorGreen, Kind: models.KindNumber, Value: 1}, {Color: models.ColorGreen, Kind: models.KindNumber, Value: 4}},
		},
		game.Stack{drawn},
		models.Card{Color: models.ColorRed, Kind: models.KindNumber, Value: 8},
	)
	caster.reset()

	d.Handle(host, ClientMessage{Type: MsgDrawCard})

	hostMsgs := caster.sentTo(host.PlayerID)
	require.NotEmpty(t, hostMsgs)
	private, ok := hostMsgs[0].(CardDrawnMsg)
	require.True(t, ok)
	assert.Equal(t, drawn, private.Card)
	assert.True(t, private.CanPlay)
	assert.Equal(t, "alice drew a card", private.Message)

	require.Len(t, caster.broadcasts, 1)
	assert.Equal(t, host.PlayerID, caster.broadcasts[0].excludeID, "drawn card details stay private")
	narration := caster.broadcasts[0].msg.(NarrationMsg)
	assert.Equal(t, "alice drew a card", narration.Message)

	joinerMsgs := caster.sentTo(joiner.PlayerID)
	require.Len(t, joinerMsgs, 1)
	state := joinerMsgs[0].(GameStateMsg)
	assert.Equal(t, 3, state.Players[0].CardCount, "everyone sees the new hand size")
}

func TestDrawCardTwicePasses(t *testing.T) {
	d, caster := newTestDispatcher()
	host, joiner := startedPair(t, d)
	rig(host.Game,
		[][]models.Card{
			{{Color: models.ColorBlue, Kind: models.KindNumber, Value: 3}},
			{{Color: models.ColorGreen, Kind: models.KindNumber, Value: 1}},
		},
		game.Stack{
			{Color: models.ColorGreen, Kind: models.KindNumber, Value: 7},
			{Color: models.ColorGreen, Kind: models.KindNumber, Value: 9},
		},
		models.Card{Color: models.ColorRed, Kind: models.KindNumber, Value: 8},
	)
	d.Handle(host, ClientMessage{Type: MsgDrawCard})
	caster.reset()

	d.Handle(host, ClientMessage{Type: MsgDrawCard})

	require.Len(t, caster.broadcasts, 1)
	narration := caster.broadcasts[0].msg.(NarrationMsg)
	assert.Equal(t, "alice drew a card and passed", narration.Message)
	assert.Empty(t, caster.broadcasts[0].excludeID, "the pass is public, everyone hears it")

	state := caster.sentTo(joiner.PlayerID)[0].(GameStateMsg)
	assert.Equal(t, joiner.PlayerID, state.CurrentPlayer, "turn passed to the next player")
}

func TestCallUnoBroadcast(t *testing.T) {
	d, caster := newTestDispatcher()
	host, _ := startedPair(t, d)
	rig(host.Game,
		[][]models.Card{
			{{Color: models.ColorBlue, Kind: models.KindNumber, Value: 3}},
			{{Color: models.ColorGreen, Kind: models.KindNumber, Value: 1}, {Color: models.ColorGreen, Kind: models.KindNumber, Value: 4}},
		},
		game.Stack{},
		models.Card{Color: models.ColorRed, Kind: models.KindNumber, Value: 8},
	)
	caster.reset()

	d.Handle(host, ClientMessage{Type: MsgCallUno})

	require.Len(t, caster.broadcasts, 1)
	call := caster.broadcasts[0].msg.(NarrationMsg)
	assert.Equal(t, "unoCall", call.Type)
	assert.Equal(t, "alice called UNO!", call.Message)
}

func TestCallUnoRejectedWithBiggerHand(t *testing.T) {
	d, caster := newTestDispatcher()
	host, _ := startedPair(t, d)
	caster.reset()

	d.Handle(host, ClientMessage{Type: MsgCallUno})
	errText, ok := caster.lastError()
	require.True(t, ok)
	assert.Equal(t, "you can only call UNO with one card left", errText)
	assert.Empty(t, caster.broadcasts)
}

func TestUnknownMessageType(t *testing.T) {
	d, caster := newTestDispatcher()
	sess := &Session{}

	d.Handle(sess, ClientMessage{Type: "bogus"})
	errText, ok := caster.lastError()
	require.True(t, ok)
	assert.Equal(t, "unknown message type: bogus", errText)
}

func TestDisconnectRemovesPlayer(t *testing.T) {
	d, caster := newTestDispatcher()
	host := createRoom(t, d, "alice")
	joiner := join(t, d, host.RoomCode, "bob")
	caster.reset()

	d.HandleDisconnect(joiner)

	require.Len(t, caster.broadcasts, 1)
	left, ok := caster.broadcasts[0].msg.(PlayerLeftMsg)
	require.True(t, ok)
	assert.Equal(t, "bob", left.PlayerName)
	require.Len(t, left.Players, 1)
	assert.Equal(t, "alice", left.Players[0].Name)

	assert.Nil(t, joiner.Game)
	assert.Empty(t, joiner.RoomCode)
	assert.Equal(t, 1, d.Registry.Count(), "room lives on with the host seated")
}

func TestDisconnectLastPlayerRetiresRoom(t *testing.T) {
	d, _ := newTestDispatcher()
	host := createRoom(t, d, "alice")
	code := host.RoomCode

	d.HandleDisconnect(host)

	_, ok := d.Registry.Get(code)
	assert.False(t, ok)
	assert.Equal(t, 0, d.Registry.Count())
}

func TestDisconnectOutsideRoomIsNoop(t *testing.T) {
	d, caster := newTestDispatcher()
	sess := &Session{}
	d.HandleDisconnect(sess)
	assert.Empty(t, caster.broadcasts)
	assert.Empty(t, caster.unicasts)
}

func TestDisconnectHostPassesHostDuty(t *testing.T) {
	d, _ := newTestDispatcher()
	host := createRoom(t, d, "alice")
	joiner := join(t, d, host.RoomCode, "bob")

	d.HandleDisconnect(host)

	assert.True(t, joiner.Player.IsHost, "host duty passes to the remaining player")
}
