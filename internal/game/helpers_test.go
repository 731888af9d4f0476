package game

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func testWords(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("word%02d", i)
	}
	return out
}

// fakePeer records everything the game sends to it.
type fakePeer struct {
	mu     sync.Mutex
	out    []Envelope
	closed bool
	code   int
	reason string
}

func (p *fakePeer) Send(b []byte) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		panic(err)
	}
	p.mu.Lock()
	p.out = append(p.out, env)
	p.mu.Unlock()
}

func (p *fakePeer) Close(code int, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed, p.code, p.reason = true, code, reason
}

func (p *fakePeer) isClosed() (bool, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed, p.code
}

func (p *fakePeer) ofType(typ string) []Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Envelope
	for _, e := range p.out {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func (p *fakePeer) lastError(t *testing.T) string {
	t.Helper()
	errs := p.ofType(MsgError)
	require.NotEmpty(t, errs, "expected an ERROR message")
	var pl ErrorPayload
	require.NoError(t, json.Unmarshal(errs[len(errs)-1].Payload, &pl))
	return pl.Message
}

func (p *fakePeer) lastState(t *testing.T) StatePayload {
	t.Helper()
	states := p.ofType(MsgGameStateUpdate)
	require.NotEmpty(t, states, "expected a GAME_STATE_UPDATE")
	var st StatePayload
	require.NoError(t, json.Unmarshal(states[len(states)-1].Payload, &st))
	return st
}

// fakeGateway is an in-memory Gateway.
type fakeGateway struct {
	mu       sync.Mutex
	rooms    map[string]RoomInfo
	resolves int
	block    chan struct{} // if set, ResolveRoom waits on it

	statuses []RoomStatus
	matches  []recordedMatch
	active   map[string]string
}

type recordedMatch struct {
	durableID int64
	winner    Team
	players   []MatchPlayer
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		rooms:  make(map[string]RoomInfo),
		active: make(map[string]string),
	}
}

func (f *fakeGateway) ResolveRoom(ctx context.Context, roomID string) (RoomInfo, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return RoomInfo{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolves++
	info, ok := f.rooms[roomID]
	if !ok {
		return RoomInfo{}, ErrRoomNotFound
	}
	return info, nil
}

func (f *fakeGateway) SetRoomStatus(ctx context.Context, roomID string, status RoomStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *fakeGateway) RecordMatch(ctx context.Context, durableID int64, winner Team, players []MatchPlayer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.matches = append(f.matches, recordedMatch{durableID: durableID, winner: winner, players: players})
	return nil
}

func (f *fakeGateway) SetActiveRoom(ctx context.Context, userID, roomID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active[userID] = roomID
	return nil
}

func (f *fakeGateway) ClearActiveRoom(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.active, userID)
	return nil
}

func (f *fakeGateway) resolveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resolves
}

// mockGateway is a testify mock for asserting exact persistence calls.
type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) ResolveRoom(ctx context.Context, roomID string) (RoomInfo, error) {
	args := m.Called(ctx, roomID)
	return args.Get(0).(RoomInfo), args.Error(1)
}

func (m *mockGateway) SetRoomStatus(ctx context.Context, roomID string, status RoomStatus) error {
	return m.Called(ctx, roomID, status).Error(0)
}

func (m *mockGateway) RecordMatch(ctx context.Context, durableID int64, winner Team, players []MatchPlayer) error {
	return m.Called(ctx, durableID, winner, players).Error(0)
}

func (m *mockGateway) SetActiveRoom(ctx context.Context, userID, roomID string) error {
	return m.Called(ctx, userID, roomID).Error(0)
}

func (m *mockGateway) ClearActiveRoom(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func envelope(t *testing.T, typ string, payload any) []byte {
	t.Helper()
	env := Envelope{Type: typ}
	if payload != nil {
		env.Payload = mustJSON(payload)
	}
	b, err := json.Marshal(env)
	require.NoError(t, err)
	return b
}

type gameHarness struct {
	t     *testing.T
	g     *Game
	gw    Gateway
	peers map[string]*fakePeer
}

func newHarness(t *testing.T, cfg Config, gw Gateway) *gameHarness {
	t.Helper()
	if gw == nil {
		gw = newFakeGateway()
	}
	g := NewGame("room1", RoomInfo{DurableID: 7, CreatorID: "u1"}, cfg, testWords(40), gw, testLogger)
	t.Cleanup(func() { g.shutdown(CloseNormal, "test done") })
	return &gameHarness{t: t, g: g, gw: gw, peers: make(map[string]*fakePeer)}
}

func (h *gameHarness) join(id string) *fakePeer {
	h.t.Helper()
	p := &fakePeer{}
	require.True(h.t, h.g.Connect(p))
	h.g.HandleMessage(p, envelope(h.t, MsgJoinGame, JoinGame{UserID: id, Username: "name-" + id}))
	h.peers[id] = p
	return p
}

func (h *gameHarness) send(id, typ string, payload any) {
	h.t.Helper()
	h.g.HandleMessage(h.peers[id], envelope(h.t, typ, payload))
}

// seatFour joins u1..u4 as A spymaster, A operative, B spymaster, B operative.
func (h *gameHarness) seatFour() {
	h.t.Helper()
	seats := []struct {
		id   string
		team Team
		role Role
	}{
		{"u1", TeamA, RoleSpymaster},
		{"u2", TeamA, RoleOperative},
		{"u3", TeamB, RoleSpymaster},
		{"u4", TeamB, RoleOperative},
	}
	for _, s := range seats {
		h.join(s.id)
		h.send(s.id, MsgJoinTeam, JoinTeam{Team: s.team, Role: s.role})
	}
}

func (h *gameHarness) start() {
	h.t.Helper()
	h.seatFour()
	h.send("u1", MsgStartGame, nil)
	require.Equal(h.t, PhaseGivingClue, h.phase())
}

func (h *gameHarness) phase() Phase {
	h.g.mu.Lock()
	defer h.g.mu.Unlock()
	return h.g.phase
}

// wordOf returns an unrevealed board word of the given color.
func (h *gameHarness) wordOf(c CardColor) string {
	h.t.Helper()
	h.g.mu.Lock()
	defer h.g.mu.Unlock()
	for _, card := range h.g.board {
		if card.Color == c && !card.Revealed {
			return card.Word
		}
	}
	h.t.Fatalf("no unrevealed %s card", c)
	return ""
}
