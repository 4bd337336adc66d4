package ipc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsTransport carries one envelope per websocket text message.
type wsTransport struct {
	conn *websocket.Conn
	mu   sync.Mutex
	done chan struct{}
	once sync.Once
}

func newWSTransport(conn *websocket.Conn) *wsTransport {
	conn.SetReadLimit(maxFrame)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	t := &wsTransport{conn: conn, done: make(chan struct{})}
	go t.ping()
	return t
}

func (t *wsTransport) ping() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			t.mu.Lock()
			t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := t.conn.WriteMessage(websocket.PingMessage, nil)
			t.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (t *wsTransport) ReadEnvelope() (Envelope, error) {
	_, payload, err := t.conn.ReadMessage()
	if err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
			return Envelope{}, fmt.Errorf("websocket closed: %w", err)
		}
		return Envelope{}, fmt.Errorf("read message: %w", err)
	}
	// Any traffic proves the peer is alive.
	t.conn.SetReadDeadline(time.Now().Add(pongWait))
	return decodeFrame(payload)
}

func (t *wsTransport) WriteEnvelope(env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := t.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

func (t *wsTransport) Close() error {
	t.once.Do(func() {
		close(t.done)
		t.mu.Lock()
		t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		t.mu.Unlock()
	})
	return t.conn.Close()
}

// ServeWebSocket upgrades each request and hands the resulting connection to
// setup, which registers handlers. The handler then blocks in ReadLoop.
// With auth set, the request must carry a valid ?token= and the connection is
// bound to the token's team.
func ServeWebSocket(setup func(c *Connection), auth *Auth, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var team string
		if auth != nil {
			claims, err := auth.Validate(r.URL.Query().Get("token"))
			if err != nil {
				log.Warn("bridge token rejected", "remote", r.RemoteAddr, "error", err)
				http.Error(w, `{"error":"invalid or missing token"}`, http.StatusUnauthorized)
				return
			}
			team = claims.Team
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error("websocket upgrade failed", "error", err)
			return
		}
		log.Info("simulator connected", "transport", "websocket", "remote", r.RemoteAddr)

		c := NewTransportConnection(newWSTransport(conn), nil)
		c.SetLogger(log)
		c.Team = team
		setup(c)
		c.ReadLoop()
	})
}

// DialWebSocket connects the simulator side of a bridge to url.
func DialWebSocket(ctx context.Context, url string) (*Connection, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return NewTransportConnection(newWSTransport(conn), nil), nil
}
