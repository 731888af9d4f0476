package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

const minPlayers = 4

type Seat struct {
	Team Team
	Role Role
}

type Player struct {
	id   string
	name string
	peer Peer  // nil => отключился, но место за ним
	seat *Seat // nil => ещё не выбрал команду
}

func (p *Player) is(team Team, role Role) bool {
	return p.seat != nil && p.seat.Team == team && p.seat.Role == role
}

// Game is the authoritative state of one room. All state is guarded by mu,
// timer callbacks included.
type Game struct {
	roomID string
	mu     sync.Mutex

	cfg     Config
	log     *slog.Logger
	gateway Gateway
	words   []string
	effects *effectQueue

	creatorID  string
	durableID  int64
	maxPlayers int

	players map[string]*Player
	order   []string        // порядок входа, для стабильного ростера
	conns   map[Peer]string // peer -> userID, "" пока не прислал JOIN_GAME

	phase            Phase
	board            []Card
	turn             Team
	clue             *Clue
	guessesRemaining int
	scores           Scores
	winner           *Team
	events           []string

	creatorGrace gameTimer
	roleGrace    map[Team]*gameTimer
	countdown    countdown

	closed bool
	onIdle func(*Game)
}

func NewGame(roomID string, info RoomInfo, cfg Config, words []string, gw Gateway, log *slog.Logger) *Game {
	cfg = cfg.withDefaults()
	if log == nil {
		log = slog.Default()
	}
	log = log.With("room", roomID)

	maxPlayers := info.MaxPlayers
	if maxPlayers <= 0 {
		maxPlayers = cfg.MaxPlayers
	}

	return &Game{
		roomID:     roomID,
		cfg:        cfg,
		log:        log,
		gateway:    gw,
		words:      words,
		effects:    newEffectQueue(log, cfg.PersistTimeout),
		creatorID:  info.CreatorID,
		durableID:  info.DurableID,
		maxPlayers: maxPlayers,
		players:    make(map[string]*Player),
		conns:      make(map[Peer]string),
		phase:      PhaseWaiting,
		turn:       TeamA,
		roleGrace: map[Team]*gameTimer{
			TeamA: {},
			TeamB: {},
		},
	}
}

func (g *Game) RoomID() string { return g.roomID }

// Connect registers a transport connection that has not joined yet.
// It returns false if the game was already torn down.
func (g *Game) Connect(peer Peer) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return false
	}
	if _, ok := g.conns[peer]; !ok {
		g.conns[peer] = ""
	}
	return true
}

func (g *Game) HandleMessage(peer Peer, raw []byte) {
	msg, decodeErr := DecodeClientMessage(raw)

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return
	}
	userID, known := g.conns[peer]
	if !known {
		return
	}

	if decodeErr != nil {
		if errors.Is(decodeErr, ErrUnknownMessage) {
			g.log.Warn("unknown message ignored", "user", userID, "err", decodeErr)
			return
		}
		if userID == "" {
			g.dropPeerLocked(peer, "invalid message before JOIN_GAME")
			return
		}
		g.sendErrorLocked(peer, decodeErr.Error())
		return
	}

	if m, ok := msg.(JoinGame); ok {
		g.joinLocked(peer, m)
		return
	}
	if userID == "" {
		g.log.Warn("message before join", "type", msg.messageType())
		g.dropPeerLocked(peer, "JOIN_GAME required")
		return
	}
	p := g.players[userID]
	if p == nil {
		g.sendErrorLocked(peer, "you are not in this game")
		return
	}

	switch m := msg.(type) {
	case StartGame:
		g.startLocked(peer)
	case JoinTeam:
		g.joinTeamLocked(peer, p, m)
	case LeaveTeam:
		g.leaveTeamLocked(peer, p)
	case ExitLobby:
		g.exitLocked(peer, p)
	case GiveClue:
		g.giveClueLocked(peer, p, m)
	case MakeGuess:
		g.makeGuessLocked(peer, p, m)
	case PassTurn:
		g.passTurnLocked(peer, p)
	}
}

// Disconnect handles a transport drop. The seat is kept.
func (g *Game) Disconnect(peer Peer) {
	g.mu.Lock()
	defer g.mu.Unlock()

	userID, ok := g.conns[peer]
	if !ok {
		return
	}
	delete(g.conns, peer)
	if userID == "" || g.closed {
		return
	}
	p := g.players[userID]
	if p == nil || p.peer != peer {
		return // старое соединение, игрок уже переподключился
	}
	p.peer = nil
	g.log.Info("player disconnected", "user", p.id)

	if g.phase == PhaseWaiting && p.id == g.creatorID {
		secs := int(g.cfg.GraceTimeout.Seconds())
		g.logEventLocked(fmt.Sprintf("%s (host) disconnected. The lobby closes in %ds unless they return.", p.name, secs))
		g.creatorGrace.arm(g.cfg.GraceTimeout, g.onCreatorGraceExpired)
		g.broadcastLocked(Envelope{Type: MsgCreatorDisconnected, Payload: mustJSON(GracePayload{TimeoutSeconds: secs})})
	}

	g.checkEssentialRolesLocked()
	g.broadcastStateLocked()
}

// Removable reports whether the registry may drop this game.
func (g *Game) Removable() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.removableLocked()
}

func (g *Game) removableLocked() bool {
	if g.closed {
		return true
	}
	if len(g.conns) > 0 {
		return false
	}
	return len(g.players) == 0 || g.phase == PhaseEnded
}

// retire marks a removable game closed so no new peer can attach to it.
func (g *Game) retire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.removableLocked() {
		return false
	}
	g.closed = true
	return true
}

// shutdown cancels every timer, drops remaining peers and stops the
// persistence queue. Queued calls still run.
func (g *Game) shutdown(code int, reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.closed = true
	g.disarmAllLocked()
	for peer := range g.conns {
		peer.Close(code, reason)
	}
	g.conns = make(map[Peer]string)
	g.effects.close()
}

func (g *Game) joinLocked(peer Peer, m JoinGame) {
	if prev := g.conns[peer]; prev != "" && prev != m.UserID {
		g.sendErrorLocked(peer, "this connection already joined as another user")
		return
	}

	if p, ok := g.players[m.UserID]; ok {
		g.reconnectLocked(peer, p, m.Username)
		return
	}

	if g.phase != PhaseWaiting {
		g.rejectLocked(peer, "the game has already started")
		return
	}
	if len(g.players) >= g.maxPlayers {
		g.rejectLocked(peer, "the room is full")
		return
	}

	p := &Player{id: m.UserID, name: m.Username, peer: peer}
	g.players[p.id] = p
	g.order = append(g.order, p.id)
	g.conns[peer] = p.id
	g.log.Info("player joined", "user", p.id, "players", len(g.players))
	g.logEventLocked(fmt.Sprintf("%s joined the lobby.", p.name))

	userID, roomID := p.id, g.roomID
	g.effects.enqueue("set_active_room", func(ctx context.Context) error {
		return g.gateway.SetActiveRoom(ctx, userID, roomID)
	})

	g.checkEssentialRolesLocked()
	g.broadcastStateLocked()
}

func (g *Game) reconnectLocked(peer Peer, p *Player, name string) {
	if p.peer != nil && p.peer != peer {
		old := p.peer
		delete(g.conns, old)
		old.Close(ClosePolicyViolation, "connected from another session")
	}
	p.peer = peer
	g.conns[peer] = p.id
	if name != "" {
		p.name = name
	}
	g.log.Info("player reconnected", "user", p.id)

	if p.id == g.creatorID && g.creatorGrace.disarm() {
		g.logEventLocked(fmt.Sprintf("%s (host) is back.", p.name))
		g.broadcastLocked(Envelope{Type: MsgCreatorReconnected})
	}

	g.checkEssentialRolesLocked()
	g.broadcastStateLocked()
}

func (g *Game) exitLocked(peer Peer, p *Player) {
	delete(g.players, p.id)
	g.removeFromOrderLocked(p.id)
	if p.peer != nil {
		g.conns[p.peer] = ""
	}
	g.log.Info("player exited", "user", p.id, "players", len(g.players))

	userID := p.id
	g.effects.enqueue("clear_active_room", func(ctx context.Context) error {
		return g.gateway.ClearActiveRoom(ctx, userID)
	})

	if p.id == g.creatorID && g.phase == PhaseWaiting {
		g.closeRoomLocked("The host closed the lobby.")
		return
	}

	g.logEventLocked(fmt.Sprintf("%s left the game.", p.name))
	g.checkEssentialRolesLocked()
	g.broadcastStateLocked()
}

func (g *Game) startLocked(peer Peer) {
	if g.phase != PhaseWaiting {
		g.sendErrorLocked(peer, "the game has already started")
		return
	}
	if len(g.players) < minPlayers {
		g.sendErrorLocked(peer, fmt.Sprintf("at least %d players are needed to start", minPlayers))
		return
	}
	if msg := g.compositionErrorLocked(); msg != "" {
		g.sendErrorLocked(peer, msg)
		return
	}

	board, scores, err := GenerateBoard(g.words, g.cfg.Layout)
	if err != nil {
		g.log.Error("board generation failed", "err", err)
		g.sendErrorLocked(peer, "could not build a board")
		return
	}

	g.board = board
	g.scores = scores
	g.turn = TeamA
	g.phase = PhaseGivingClue
	g.clue = nil
	g.guessesRemaining = 0
	g.log.Info("game started", "players", len(g.players))
	g.logEventLocked("The game has started. Team A gives the first clue.")

	roomID := g.roomID
	g.effects.enqueue("set_room_status", func(ctx context.Context) error {
		return g.gateway.SetRoomStatus(ctx, roomID, RoomInGame)
	})

	g.armCountdownLocked()
	g.checkEssentialRolesLocked()
	g.broadcastStateLocked()
}

func (g *Game) compositionErrorLocked() string {
	for _, t := range []Team{TeamA, TeamB} {
		var spymasters, operatives int
		for _, p := range g.players {
			switch {
			case p.is(t, RoleSpymaster):
				spymasters++
			case p.is(t, RoleOperative):
				operatives++
			}
		}
		if spymasters == 0 {
			return fmt.Sprintf("Team %s needs a spymaster", t)
		}
		if operatives == 0 {
			return fmt.Sprintf("Team %s needs at least one operative", t)
		}
	}
	return ""
}

func (g *Game) joinTeamLocked(peer Peer, p *Player, m JoinTeam) {
	switch g.phase {
	case PhaseWaiting:
		if m.Role == RoleSpymaster {
			for _, other := range g.players {
				if other != p && other.is(m.Team, RoleSpymaster) {
					g.sendErrorLocked(peer, fmt.Sprintf("Team %s already has a spymaster", m.Team))
					return
				}
			}
		}
		p.seat = &Seat{Team: m.Team, Role: m.Role}
		g.logEventLocked(fmt.Sprintf("%s joined Team %s as %s.", p.name, m.Team, m.Role))
		g.broadcastStateLocked()

	case PhaseGivingClue, PhaseGuessing:
		// во время игры можно только подменить отвалившегося спаймастера своей команды
		canReplace := m.Role == RoleSpymaster &&
			p.seat != nil && p.seat.Team == m.Team &&
			g.roleGrace[m.Team].armed
		if !canReplace {
			g.sendErrorLocked(peer, "teams are locked while the game is running")
			return
		}
		for _, other := range g.players {
			if other != p && other.is(m.Team, RoleSpymaster) {
				other.seat.Role = RoleOperative
			}
		}
		p.seat.Role = RoleSpymaster
		g.logEventLocked(fmt.Sprintf("%s takes over as Team %s spymaster.", p.name, m.Team))
		g.checkEssentialRolesLocked()
		g.broadcastStateLocked()

	default:
		g.sendErrorLocked(peer, "the game is over")
	}
}

func (g *Game) leaveTeamLocked(peer Peer, p *Player) {
	if g.phase != PhaseWaiting {
		g.sendErrorLocked(peer, "teams are locked while the game is running")
		return
	}
	if p.seat == nil {
		return
	}
	g.logEventLocked(fmt.Sprintf("%s left Team %s.", p.name, p.seat.Team))
	p.seat = nil
	g.broadcastStateLocked()
}

func (g *Game) giveClueLocked(peer Peer, p *Player, m GiveClue) {
	if g.phase != PhaseGivingClue {
		g.sendErrorLocked(peer, "it is not time to give a clue")
		return
	}
	if !p.is(g.turn, RoleSpymaster) {
		g.sendErrorLocked(peer, fmt.Sprintf("only Team %s's spymaster can give a clue now", g.turn))
		return
	}
	if i := g.cardIndexLocked(m.Clue); i >= 0 && !g.board[i].Revealed {
		g.sendErrorLocked(peer, "the clue cannot be a word on the board")
		return
	}

	g.clue = &Clue{Word: m.Clue, Count: m.Count}
	g.guessesRemaining = m.Count + 1
	g.phase = PhaseGuessing
	g.logEventLocked(fmt.Sprintf("Team %s spymaster: %s (%d)", g.turn, m.Clue, m.Count))

	g.armCountdownLocked()
	g.broadcastStateLocked()
}

func (g *Game) makeGuessLocked(peer Peer, p *Player, m MakeGuess) {
	if g.phase != PhaseGuessing {
		g.sendErrorLocked(peer, "it is not time to guess")
		return
	}
	if !p.is(g.turn, RoleOperative) {
		g.sendErrorLocked(peer, fmt.Sprintf("only Team %s's operatives can guess now", g.turn))
		return
	}
	i := g.cardIndexLocked(m.Word)
	if i < 0 || g.board[i].Revealed {
		return
	}

	card := &g.board[i]
	card.Revealed = true
	g.logEventLocked(fmt.Sprintf("%s guessed %s (%s).", p.name, card.Word, card.Color))

	out := resolveGuess(card.Color, g.turn)
	if out.assassin {
		g.endGameLocked(g.turn.Other(), fmt.Sprintf("Team %s revealed the assassin.", g.turn))
		return
	}
	if out.scored != nil {
		*g.scores.of(*out.scored)--
	}
	g.guessesRemaining--

	// сначала победа по счёту, потом конец хода
	if w, ok := scoreWinner(g.scores, g.turn); ok {
		g.endGameLocked(w, fmt.Sprintf("Team %s found all their words.", w))
		return
	}
	if out.endsTurn || g.guessesRemaining <= 0 {
		g.endTurnLocked()
		return
	}
	g.broadcastStateLocked()
}

func (g *Game) passTurnLocked(peer Peer, p *Player) {
	if g.phase != PhaseGuessing {
		g.sendErrorLocked(peer, "it is not time to guess")
		return
	}
	if !p.is(g.turn, RoleOperative) {
		g.sendErrorLocked(peer, fmt.Sprintf("only Team %s's operatives can pass", g.turn))
		return
	}
	g.logEventLocked(fmt.Sprintf("%s passed.", p.name))
	g.endTurnLocked()
}

func (g *Game) endTurnLocked() {
	g.turn = g.turn.Other()
	g.clue = nil
	g.guessesRemaining = 0
	g.phase = PhaseGivingClue
	g.logEventLocked(fmt.Sprintf("Team %s's turn.", g.turn))

	g.armCountdownLocked()
	g.broadcastStateLocked()
}

// endGameLocked is a no-op once a winner is set.
func (g *Game) endGameLocked(winner Team, reason string) {
	if g.winner != nil {
		return
	}
	g.disarmAllLocked()
	for i := range g.board {
		g.board[i].Revealed = true
	}
	g.phase = PhaseEnded
	g.winner = &winner
	g.clue = nil
	g.guessesRemaining = 0
	g.logEventLocked(reason)
	g.logEventLocked(fmt.Sprintf("Team %s wins!", winner))
	g.log.Info("game ended", "winner", winner, "reason", reason)

	var result []MatchPlayer
	for _, id := range g.order {
		p := g.players[id]
		userID := p.id
		g.effects.enqueue("clear_active_room", func(ctx context.Context) error {
			return g.gateway.ClearActiveRoom(ctx, userID)
		})
		if p.seat == nil {
			continue
		}
		result = append(result, MatchPlayer{
			UserID: p.id,
			Team:   p.seat.Team,
			Role:   p.seat.Role,
			Won:    p.seat.Team == winner,
		})
	}

	if g.durableID != 0 {
		durableID := g.durableID
		g.effects.enqueue("record_match", func(ctx context.Context) error {
			return g.gateway.RecordMatch(ctx, durableID, winner, result)
		})
	} else {
		roomID := g.roomID
		g.effects.enqueue("set_room_status", func(ctx context.Context) error {
			return g.gateway.SetRoomStatus(ctx, roomID, RoomFinished)
		})
	}

	g.broadcastStateLocked()
}

// closeRoomLocked shuts the lobby down before the game started.
func (g *Game) closeRoomLocked(reason string) {
	if g.closed {
		return
	}
	g.closed = true
	g.disarmAllLocked()
	g.logEventLocked(reason)
	g.broadcastLocked(Envelope{Type: MsgLobbyClosed, Payload: mustJSON(LobbyClosedPayload{Reason: reason})})

	for _, id := range g.order {
		userID := id
		g.effects.enqueue("clear_active_room", func(ctx context.Context) error {
			return g.gateway.ClearActiveRoom(ctx, userID)
		})
	}
	for peer := range g.conns {
		peer.Close(CloseNormal, reason)
	}
	g.players = make(map[string]*Player)
	g.order = nil
	g.conns = make(map[Peer]string)

	roomID := g.roomID
	g.effects.enqueue("set_room_status", func(ctx context.Context) error {
		return g.gateway.SetRoomStatus(ctx, roomID, RoomFinished)
	})
	g.log.Info("room closed", "reason", reason)
}

// checkEssentialRolesLocked arms or cancels the per-team grace timer
// depending on whether the team's spymaster is connected.
func (g *Game) checkEssentialRolesLocked() {
	if g.phase == PhaseWaiting || g.phase == PhaseEnded {
		return
	}
	for _, t := range []Team{TeamA, TeamB} {
		timer := g.roleGrace[t]
		if g.spymasterConnectedLocked(t) {
			if timer.disarm() {
				g.logEventLocked(fmt.Sprintf("Team %s's spymaster is back.", t))
				g.broadcastLocked(Envelope{Type: MsgEssentialRoleReconnected, Payload: mustJSON(TeamPayload{Team: t})})
			}
			continue
		}
		if timer.armed {
			continue
		}
		team := t
		timer.arm(g.cfg.GraceTimeout, func(gen uint64) { g.onRoleGraceExpired(team, gen) })
		g.logEventLocked(fmt.Sprintf("Team %s's spymaster disconnected. Team %s forfeits in %ds unless they return.",
			t, t, int(g.cfg.GraceTimeout.Seconds())))
		g.broadcastLocked(Envelope{Type: MsgEssentialRoleDisconnected, Payload: mustJSON(TeamPayload{Team: t})})
	}
}

func (g *Game) spymasterConnectedLocked(t Team) bool {
	for _, p := range g.players {
		if p.peer != nil && p.is(t, RoleSpymaster) {
			return true
		}
	}
	return false
}

func (g *Game) onRoleGraceExpired(team Team, gen uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	timer := g.roleGrace[team]
	if g.closed || !timer.current(gen) {
		return // таймер уже отменён или перевзведён
	}
	timer.disarm()
	if g.phase == PhaseWaiting || g.phase == PhaseEnded || g.spymasterConnectedLocked(team) {
		return
	}
	g.endGameLocked(team.Other(), fmt.Sprintf("Team %s's spymaster did not return.", team))
	g.notifyIfIdleLocked()
}

func (g *Game) onCreatorGraceExpired(gen uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed || !g.creatorGrace.current(gen) {
		return
	}
	g.creatorGrace.disarm()
	if g.phase != PhaseWaiting {
		return
	}
	if p := g.players[g.creatorID]; p != nil && p.peer != nil {
		return
	}
	g.closeRoomLocked("The host did not return.")
	g.notifyIfIdleLocked()
}

func (g *Game) armCountdownLocked() {
	g.countdown.disarm()
	if g.cfg.RoundDuration <= 0 {
		return
	}
	g.countdown.remaining = ticksIn(g.cfg.RoundDuration, g.cfg.TickInterval)
	g.countdown.timer.arm(g.cfg.TickInterval, g.onCountdownTick)
}

func (g *Game) onCountdownTick(gen uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed || !g.countdown.timer.current(gen) {
		return
	}
	g.countdown.remaining--
	if g.countdown.remaining > 0 {
		g.countdown.timer.arm(g.cfg.TickInterval, g.onCountdownTick)
		g.broadcastStateLocked()
		return
	}

	g.countdown.disarm()
	g.log.Info("turn timed out", "team", g.turn)
	g.logEventLocked(fmt.Sprintf("Time's up! Team %s's turn is over.", g.turn))
	g.endTurnLocked()
}

func (g *Game) disarmAllLocked() {
	g.creatorGrace.disarm()
	for _, t := range g.roleGrace {
		t.disarm()
	}
	g.countdown.disarm()
}

func (g *Game) notifyIfIdleLocked() {
	if g.onIdle != nil && g.removableLocked() {
		go g.onIdle(g)
	}
}

func (g *Game) cardIndexLocked(word string) int {
	for i := range g.board {
		if strings.EqualFold(g.board[i].Word, word) {
			return i
		}
	}
	return -1
}

func (g *Game) removeFromOrderLocked(id string) {
	for i, v := range g.order {
		if v == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			return
		}
	}
}

func (g *Game) logEventLocked(s string) {
	if len(g.events) >= g.cfg.LogLimit {
		n := len(g.events) - g.cfg.LogLimit + 1
		g.events = append(g.events[:0], g.events[n:]...)
	}
	g.events = append(g.events, s)
}

// rejectLocked refuses a new entrant and drops the connection.
func (g *Game) rejectLocked(peer Peer, msg string) {
	g.sendErrorLocked(peer, msg)
	delete(g.conns, peer)
	peer.Close(ClosePolicyViolation, msg)
}

func (g *Game) dropPeerLocked(peer Peer, reason string) {
	delete(g.conns, peer)
	peer.Close(ClosePolicyViolation, reason)
}

func (g *Game) sendErrorLocked(peer Peer, msg string) {
	g.sendLocked(peer, Envelope{Type: MsgError, Payload: mustJSON(ErrorPayload{Message: msg})})
}

func (g *Game) sendLocked(peer Peer, env Envelope) {
	if peer == nil {
		return
	}
	b, err := json.Marshal(env)
	if err != nil {
		g.log.Error("marshal envelope", "type", env.Type, "err", err)
		return
	}
	peer.Send(b)
}

func (g *Game) broadcastLocked(env Envelope) {
	for _, id := range g.order {
		if p := g.players[id]; p.peer != nil {
			g.sendLocked(p.peer, env)
		}
	}
}
