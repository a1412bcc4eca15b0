package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// writeWait bounds how long a control frame write may block.
const writeWait = 5 * time.Second

// wsSocket wraps a websocket connection behind the registry.Socket
// interface. The mutex serializes writes: command issuance from HTTP
// goroutines and eviction close frames would otherwise race on the
// connection, which gorilla/websocket does not allow.
type wsSocket struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func newSocket(conn *websocket.Conn) *wsSocket {
	return &wsSocket{conn: conn}
}

func (s *wsSocket) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *wsSocket) CloseWithReason(code int, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	deadline := time.Now().Add(writeWait)
	_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	return s.conn.Close()
}
