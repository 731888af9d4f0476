package game

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, gw Gateway) *GameManager {
	t.Helper()
	m := NewGameManager(Config{}, gw, testWords(40), testLogger)
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })
	return m
}

func TestGameManager_CreatesOnFirstConnect(t *testing.T) {
	gw := newFakeGateway()
	gw.rooms["r1"] = RoomInfo{DurableID: 1, CreatorID: "u1", MaxPlayers: 6}
	m := newTestManager(t, gw)

	p := &fakePeer{}
	require.NoError(t, m.Connect(context.Background(), "r1", p))
	assert.Equal(t, 1, m.Len())

	m.Message("r1", p, envelope(t, MsgJoinGame, JoinGame{UserID: "u1"}))
	st := p.lastState(t)
	assert.Equal(t, "r1", st.RoomID)
	assert.Equal(t, "u1", st.CreatorID)
	assert.Equal(t, 6, st.MaxPlayers)
	assert.Equal(t, PhaseWaiting, st.Phase)

	// second peer reuses the live game
	require.NoError(t, m.Connect(context.Background(), "r1", &fakePeer{}))
	assert.Equal(t, 1, gw.resolveCount())
}

func TestGameManager_UnknownRoom(t *testing.T) {
	m := newTestManager(t, newFakeGateway())

	p := &fakePeer{}
	err := m.Connect(context.Background(), "nope", p)
	assert.True(t, errors.Is(err, ErrRoomNotFound))

	closed, code := p.isClosed()
	assert.True(t, closed)
	assert.Equal(t, CloseRoomNotFound, code)
	assert.Equal(t, 0, m.Len())
}

func TestGameManager_LookupFailure(t *testing.T) {
	gw := &mockGateway{}
	gw.On("ResolveRoom", mock.Anything, "r1").Return(RoomInfo{}, errors.New("db down"))
	m := newTestManager(t, gw)

	p := &fakePeer{}
	require.Error(t, m.Connect(context.Background(), "r1", p))
	_, code := p.isClosed()
	assert.Equal(t, CloseInternalError, code)
	gw.AssertExpectations(t)
}

func TestGameManager_ConcurrentFirstConnectsShareLookup(t *testing.T) {
	gw := newFakeGateway()
	gw.rooms["r1"] = RoomInfo{CreatorID: "u1"}
	gw.block = make(chan struct{})
	m := newTestManager(t, gw)

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- m.Connect(context.Background(), "r1", &fakePeer{})
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(gw.block)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, 1, gw.resolveCount())
}

func TestGameManager_ReapsEmptyGame(t *testing.T) {
	gw := newFakeGateway()
	gw.rooms["r1"] = RoomInfo{CreatorID: "u1"}
	m := newTestManager(t, gw)

	p := &fakePeer{}
	require.NoError(t, m.Connect(context.Background(), "r1", p))
	m.Message("r1", p, envelope(t, MsgJoinGame, JoinGame{UserID: "u2"}))
	m.Message("r1", p, envelope(t, MsgExitLobby, nil))
	assert.Equal(t, 1, m.Len(), "peer is still connected")

	m.Disconnect("r1", p)
	assert.Equal(t, 0, m.Len())
	assert.Nil(t, m.Get("r1"))
}

func TestGameManager_KeepsGameWithSeatedPlayers(t *testing.T) {
	gw := newFakeGateway()
	gw.rooms["r1"] = RoomInfo{CreatorID: "u1"}
	m := newTestManager(t, gw)

	p := &fakePeer{}
	require.NoError(t, m.Connect(context.Background(), "r1", p))
	m.Message("r1", p, envelope(t, MsgJoinGame, JoinGame{UserID: "u2"}))
	m.Disconnect("r1", p)

	assert.Equal(t, 1, m.Len())
}

func TestGameManager_ReapsAfterLobbyClosed(t *testing.T) {
	gw := newFakeGateway()
	gw.rooms["r1"] = RoomInfo{CreatorID: "u1"}
	m := NewGameManager(Config{GraceTimeout: 20 * time.Millisecond}, gw, testWords(40), testLogger)
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })

	p := &fakePeer{}
	require.NoError(t, m.Connect(context.Background(), "r1", p))
	m.Message("r1", p, envelope(t, MsgJoinGame, JoinGame{UserID: "u1"}))
	m.Disconnect("r1", p)

	require.Eventually(t, func() bool { return m.Len() == 0 }, time.Second, 5*time.Millisecond)

	// the room is resolved again for a late joiner
	require.NoError(t, m.Connect(context.Background(), "r1", &fakePeer{}))
	assert.Equal(t, 2, gw.resolveCount())
}

func TestGameManager_Shutdown(t *testing.T) {
	gw := newFakeGateway()
	gw.rooms["r1"] = RoomInfo{CreatorID: "u1"}
	m := NewGameManager(Config{}, gw, testWords(40), testLogger)

	p := &fakePeer{}
	require.NoError(t, m.Connect(context.Background(), "r1", p))
	m.Message("r1", p, envelope(t, MsgJoinGame, JoinGame{UserID: "u1"}))

	require.NoError(t, m.Shutdown(context.Background()))
	closed, code := p.isClosed()
	assert.True(t, closed)
	assert.Equal(t, CloseGoingAway, code)
	assert.Equal(t, 0, m.Len())

	gw.mu.Lock()
	defer gw.mu.Unlock()
	assert.Equal(t, "r1", gw.active["u1"])
}
