package game

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"example.com/codenames/internal/auth"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 25 * time.Second
	maxMessageSize = 4096
	maxRoomIDLen   = 64
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true }, // MVP
}

var errUnauthorized = errors.New("unauthorized")

// ClientConn is a Peer backed by a websocket. Writes go through a buffered
// channel drained by writeLoop.
type ClientConn struct {
	id   string
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}

	closeOnce   sync.Once
	closeCode   int
	closeReason string
}

func newClientConn(ws *websocket.Conn) *ClientConn {
	return &ClientConn{
		id:   uuid.NewString(),
		ws:   ws,
		send: make(chan []byte, 64),
		done: make(chan struct{}),
	}
}

func (c *ClientConn) ID() string { return c.id }

func (c *ClientConn) Send(b []byte) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- b:
	default:
		// клиент не успевает читать — дропаем, следующий снапшот всё равно полный
	}
}

func (c *ClientConn) Close(code int, reason string) {
	c.closeOnce.Do(func() {
		c.closeCode = code
		c.closeReason = truncateReason(reason)
		close(c.done)
	})
}

func (c *ClientConn) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *ClientConn) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			if err := c.write(msg); err != nil {
				c.Close(CloseGoingAway, "")
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close(CloseGoingAway, "")
				return
			}
		case <-c.done:
			// дописываем то, что успели поставить в очередь (например LOBBY_CLOSED)
		drain:
			for {
				select {
				case msg := <-c.send:
					if c.write(msg) != nil {
						return
					}
				default:
					break drain
				}
			}
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(c.closeCode, c.closeReason),
				time.Now().Add(writeWait))
			return
		}
	}
}

func (c *ClientConn) write(msg []byte) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, msg)
}

// handleWS — WebSocket вход в комнату: /ws/{roomId}
// Токен (если есть): Authorization: Bearer ... или ?token=...
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	roomID, ok := roomIDFromWSPath(r.URL.Path)
	if !ok {
		http.Error(w, "invalid room id", http.StatusBadRequest)
		return
	}

	claims, err := s.authenticate(r)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	cc := newClientConn(ws)
	log := s.log.With("room", roomID, "peer", cc.id)
	go cc.writeLoop()

	if err := s.games.Connect(r.Context(), roomID, cc); err != nil {
		log.Info("connection refused", "err", err)
		return
	}
	log.Debug("peer connected", "remote", r.RemoteAddr)

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) && !cc.closed() {
				log.Warn("read failed", "err", err)
			}
			break
		}
		if claims != nil && !joinMatchesClaims(data, claims) {
			cc.Send(mustEnvelope(MsgError, ErrorPayload{Message: "userId does not match your session"}))
			continue
		}
		s.games.Message(roomID, cc, data)
	}

	s.games.Disconnect(roomID, cc)
	cc.Close(CloseNormal, "")
	log.Debug("peer disconnected")
}

func (s *Server) authenticate(r *http.Request) (*auth.Claims, error) {
	token := r.URL.Query().Get("token")
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		token = strings.TrimPrefix(h, "Bearer ")
	}
	if token == "" {
		if s.cfg.RequireAuth {
			return nil, errUnauthorized
		}
		return nil, nil
	}
	if s.verifier == nil {
		return nil, errUnauthorized
	}
	return s.verifier.Verify(token)
}

// joinMatchesClaims rejects a JOIN_GAME that claims someone else's id.
func joinMatchesClaims(data []byte, claims *auth.Claims) bool {
	msg, err := DecodeClientMessage(data)
	if err != nil {
		return true // разберётся Game
	}
	join, ok := msg.(JoinGame)
	return !ok || join.UserID == claims.UserID
}

func roomIDFromWSPath(path string) (string, bool) {
	const prefix = "/ws/"
	if !strings.HasPrefix(path, prefix) {
		return "", false
	}
	id := strings.TrimPrefix(path, prefix)
	if id == "" || len(id) > maxRoomIDLen {
		return "", false
	}
	for i := 0; i < len(id); i++ {
		ch := id[i]
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9', ch == '-', ch == '_':
		default:
			return "", false
		}
	}
	return id, true
}

func mustEnvelope(typ string, payload any) []byte {
	b, _ := json.Marshal(Envelope{Type: typ, Payload: mustJSON(payload)})
	return b
}

func truncateReason(s string) string {
	// control frame payload: 125 bytes, 2 of them are the code
	if len(s) > 123 {
		return s[:123]
	}
	return s
}
