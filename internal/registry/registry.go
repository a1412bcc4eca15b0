// Package registry tracks the live device connection for each terminal.
// It is the only shared mutable state between the HTTP-serving and
// socket-serving goroutines; every operation holds one mutex and none of
// them perform I/O under it.
package registry

import (
	"sync"
	"time"

	"locker-terminal-backend/internal/protocol"
)

// CloseDuplicate is the close code sent to a connection evicted by a
// newer one for the same terminal code.
const CloseDuplicate = 1012

// Socket is the subset of a device connection the registry manages.
// *gateway.wsSocket implements it in production; tests use fakes.
type Socket interface {
	Send(data []byte) error
	CloseWithReason(code int, reason string) error
}

// Connection is the in-memory record of one live terminal connection.
// Lookups return copies; mutation happens only through registry methods.
type Connection struct {
	Code         string
	TerminalID   string
	Socket       Socket
	ConnectedAt  time.Time
	LastStateAt  *time.Time
	LastState    *protocol.StateReport
	LastEnvelope any
}

// Registry is the process-wide table of connected terminals, indexed by
// terminal code and by storage id.
type Registry struct {
	mu     sync.Mutex
	byCode map[string]*Connection
	byID   map[string]*Connection
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		byCode: make(map[string]*Connection),
		byID:   make(map[string]*Connection),
	}
}

// Admit registers a connection for the given terminal code. An existing
// connection holding a different socket is evicted: it is replaced under
// the lock and closed best-effort afterwards, so the two sockets can
// never both be the active connection for the code.
func (r *Registry) Admit(code, terminalID string, socket Socket) {
	var evicted Socket

	r.mu.Lock()
	if existing, ok := r.byCode[code]; ok && existing.Socket != socket {
		evicted = existing.Socket
		delete(r.byID, existing.TerminalID)
	}
	conn := &Connection{
		Code:        code,
		TerminalID:  terminalID,
		Socket:      socket,
		ConnectedAt: time.Now(),
	}
	r.byCode[code] = conn
	r.byID[terminalID] = conn
	r.mu.Unlock()

	if evicted != nil {
		// Best effort; a close failure leaves the old socket to die on
		// its own read loop.
		_ = evicted.CloseWithReason(CloseDuplicate, "duplicate connection")
	}
}

// Remove drops the connection holding the given socket and returns its
// terminal code. It returns false when the socket was never admitted or
// was already evicted, which is a normal outcome on disconnect.
func (r *Registry) Remove(socket Socket) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for code, conn := range r.byCode {
		if conn.Socket == socket {
			delete(r.byCode, code)
			delete(r.byID, conn.TerminalID)
			return code, true
		}
	}
	return "", false
}

// FindByCode returns a copy of the connection for a terminal code.
func (r *Registry) FindByCode(code string) (Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conn, ok := r.byCode[code]; ok {
		return *conn, true
	}
	return Connection{}, false
}

// FindByTerminalID returns a copy of the connection for a storage id.
func (r *Registry) FindByTerminalID(id string) (Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conn, ok := r.byID[id]; ok {
		return *conn, true
	}
	return Connection{}, false
}

// FindBySocket returns a copy of the connection holding the socket.
func (r *Registry) FindBySocket(socket Socket) (Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, conn := range r.byCode {
		if conn.Socket == socket {
			return *conn, true
		}
	}
	return Connection{}, false
}

// ConnectedTerminalIDs lists the storage ids of all live connections.
func (r *Registry) ConnectedTerminalIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	return ids
}

// RecordState overwrites the last-known state snapshot for the
// connection holding the socket. Unregistered sockets are ignored.
func (r *Registry) RecordState(socket Socket, report protocol.StateReport) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, conn := range r.byCode {
		if conn.Socket == socket {
			now := time.Now()
			conn.LastState = &report
			conn.LastStateAt = &now
			return
		}
	}
}

// RecordEnvelope overwrites the last raw envelope observed for the
// connection holding the socket. Unregistered sockets are ignored.
func (r *Registry) RecordEnvelope(socket Socket, envelope any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, conn := range r.byCode {
		if conn.Socket == socket {
			conn.LastEnvelope = envelope
			return
		}
	}
}
