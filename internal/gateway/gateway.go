// Package gateway accepts inbound terminal websocket connections, binds
// them to a provisioned terminal identity and dispatches decoded device
// messages into the control service.
package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"locker-terminal-backend/internal/protocol"
	"locker-terminal-backend/internal/registry"
	"locker-terminal-backend/internal/store"
	"locker-terminal-backend/internal/terminal"
)

// closePolicyViolation is sent when identity binding fails.
const closePolicyViolation = 1008

// Gateway upgrades device connections and runs one read loop per socket.
type Gateway struct {
	store    store.Store
	registry *registry.Registry
	service  *terminal.Service
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// New creates a gateway bound to the given registry and control service.
func New(s store.Store, r *registry.Registry, svc *terminal.Service, logger zerolog.Logger) *Gateway {
	return &Gateway{
		store:    s,
		registry: r,
		service:  svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Terminals are embedded controllers, not browsers.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger.With().Str("component", "gateway").Logger(),
	}
}

// ServeHTTP handles GET /terminals?code=...&terminalId=... device
// connections. Binding failures close the socket with a policy close
// code; the close reason tells the device what went wrong.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}
	sock := newSocket(conn)

	code := strings.TrimSpace(r.URL.Query().Get("code"))
	id := strings.TrimSpace(r.URL.Query().Get("terminalId"))

	if code == "" {
		g.logger.Warn().Str("remote_addr", r.RemoteAddr).Msg("connection rejected: missing terminal code")
		_ = sock.CloseWithReason(closePolicyViolation, "terminal code is required")
		return
	}

	term, err := g.store.TerminalByCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			g.logger.Warn().Str("code", code).Msg("connection rejected: unknown terminal")
			_ = sock.CloseWithReason(closePolicyViolation, "terminal is not registered")
		} else {
			g.logger.Error().Err(err).Str("code", code).Msg("terminal lookup failed")
			_ = sock.CloseWithReason(closePolicyViolation, "terminal lookup failed")
		}
		return
	}
	if id != "" && term.ID != id {
		g.logger.Warn().Str("code", code).Str("terminal_id", id).Msg("connection rejected: terminal id mismatch")
		_ = sock.CloseWithReason(closePolicyViolation, "terminal id mismatch")
		return
	}

	g.registry.Admit(code, term.ID, sock)
	g.logger.Info().Str("code", code).Str("terminal_id", term.ID).Msg("terminal connected")

	g.readLoop(sock, conn, code)
}

// readLoop pumps frames off the socket until it dies, then removes it
// from the registry. Removal is a no-op when the connection was already
// evicted by a duplicate.
func (g *Gateway) readLoop(sock *wsSocket, conn *websocket.Conn, code string) {
	defer func() {
		if removed, ok := g.registry.Remove(sock); ok {
			g.logger.Info().Str("code", removed).Msg("terminal disconnected")
		}
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				g.logger.Debug().Err(err).Str("code", code).Msg("read loop ended")
			}
			return
		}
		g.dispatch(sock, code, data)
	}
}

// dispatch routes one decoded frame. State reports refresh the last-seen
// snapshot, acks refresh the last envelope, results additionally drive
// reconciliation. Unrecognized frames are logged and dropped; the
// connection stays open.
func (g *Gateway) dispatch(sock *wsSocket, code string, data []byte) {
	switch msg := protocol.Decode(data).(type) {
	case protocol.StateReport:
		g.registry.RecordState(sock, msg)
	case protocol.CommandAck:
		g.registry.RecordEnvelope(sock, msg)
	case protocol.CommandResult:
		g.registry.RecordEnvelope(sock, msg)
		// Reconciliation must not be cancelled by a dying connection.
		if err := g.service.HandleCommandResult(context.Background(), msg); err != nil {
			g.logger.Error().Err(err).
				Str("code", code).
				Str("command_id", msg.CommandID).
				Msg("command result reconciliation failed")
		}
	case protocol.Unrecognized:
		g.logger.Warn().
			Str("code", code).
			Str("event", msg.Event).
			Str("reason", msg.Reason).
			Msg("unrecognized device message dropped")
	}
}
