package game

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const resolveTimeout = 5 * time.Second

// GameManager owns every live Game, keyed by room id. A Game is created on
// the first connection to a room that exists in the durable store and is
// dropped once nobody is left in it.
type GameManager struct {
	mu    sync.Mutex
	games map[string]*Game

	creating singleflight.Group

	cfg     Config
	gateway Gateway
	words   []string
	log     *slog.Logger
}

func NewGameManager(cfg Config, gw Gateway, words []string, log *slog.Logger) *GameManager {
	if log == nil {
		log = slog.Default()
	}
	return &GameManager{
		games:   make(map[string]*Game),
		cfg:     cfg.withDefaults(),
		gateway: gw,
		words:   words,
		log:     log,
	}
}

// Connect attaches peer to the room, creating the Game if needed. If the
// room can't be resolved the peer is closed and the error returned.
func (m *GameManager) Connect(ctx context.Context, roomID string, peer Peer) error {
	// игра могла быть удалена между поиском и Connect — пробуем ещё раз
	for attempt := 0; attempt < 3; attempt++ {
		g, err := m.getOrCreate(ctx, roomID)
		if err != nil {
			if errors.Is(err, ErrRoomNotFound) {
				peer.Close(CloseRoomNotFound, "room not found")
			} else {
				m.log.Error("resolve room failed", "room", roomID, "err", err)
				peer.Close(CloseInternalError, "room lookup failed")
			}
			return err
		}
		if g.Connect(peer) {
			return nil
		}
		if m.forget(roomID, g) {
			g.shutdown(CloseNormal, "room closed")
		}
	}
	peer.Close(CloseInternalError, "room is shutting down")
	return errors.New("room is shutting down")
}

func (m *GameManager) Message(roomID string, peer Peer, raw []byte) {
	g := m.Get(roomID)
	if g == nil {
		return
	}
	g.HandleMessage(peer, raw)
	m.reap(g)
}

func (m *GameManager) Disconnect(roomID string, peer Peer) {
	g := m.Get(roomID)
	if g == nil {
		return
	}
	g.Disconnect(peer)
	m.reap(g)
}

func (m *GameManager) Get(roomID string) *Game {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.games[roomID]
}

// Len returns the number of live games.
func (m *GameManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.games)
}

// Shutdown tears down every game and waits for queued persistence calls.
func (m *GameManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	games := make([]*Game, 0, len(m.games))
	for _, g := range m.games {
		games = append(games, g)
	}
	m.games = make(map[string]*Game)
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		for _, g := range games {
			g.shutdown(CloseGoingAway, "server shutting down")
		}
		for _, g := range games {
			g.effects.wait()
		}
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *GameManager) getOrCreate(ctx context.Context, roomID string) (*Game, error) {
	if g := m.Get(roomID); g != nil {
		return g, nil
	}

	// параллельные первые подключения к одной комнате делят один lookup
	v, err, _ := m.creating.Do(roomID, func() (any, error) {
		if g := m.Get(roomID); g != nil {
			return g, nil
		}

		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resolveTimeout)
		defer cancel()
		info, err := m.gateway.ResolveRoom(lookupCtx, roomID)
		if err != nil {
			return nil, err
		}

		g := NewGame(roomID, info, m.cfg, m.words, m.gateway, m.log)
		g.onIdle = m.reap

		m.mu.Lock()
		m.games[roomID] = g
		m.mu.Unlock()

		m.log.Info("game created", "room", roomID, "creator", info.CreatorID)
		return g, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Game), nil
}

// reap drops g from the registry once it has nobody left.
func (m *GameManager) reap(g *Game) {
	m.mu.Lock()
	if m.games[g.roomID] != g || !g.retire() {
		m.mu.Unlock()
		return
	}
	delete(m.games, g.roomID)
	m.mu.Unlock()

	g.shutdown(CloseNormal, "room closed")
	m.log.Info("game removed", "room", g.roomID)
}

func (m *GameManager) forget(roomID string, g *Game) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.games[roomID] != g {
		return false
	}
	delete(m.games, roomID)
	return true
}
