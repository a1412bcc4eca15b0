package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"locker-terminal-backend/internal/db"
	"locker-terminal-backend/internal/model"
	"locker-terminal-backend/internal/registry"
	"locker-terminal-backend/internal/store"
	"locker-terminal-backend/internal/terminal"
)

type gatewayFixture struct {
	server   *httptest.Server
	store    store.Store
	registry *registry.Registry
	terminal *model.Terminal
	cell     *model.Cell
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gormDB))

	s := store.NewGormStore(gormDB)
	term := model.Terminal{ID: uuid.NewString(), Code: "TMA-001", Name: "Terminal 1"}
	require.NoError(t, s.DB().Create(&term).Error)
	cell := model.Cell{ID: uuid.NewString(), TerminalID: term.ID, Index: 1, GpioPin: 18, Status: model.CellStatusFree, IsActive: true}
	require.NoError(t, s.DB().Create(&cell).Error)

	reg := registry.New()
	svc := terminal.NewService(s, reg, nil, zerolog.Nop())
	gw := New(s, reg, svc, zerolog.Nop())

	server := httptest.NewServer(gw)
	t.Cleanup(server.Close)

	return &gatewayFixture{
		server:   server,
		store:    s,
		registry: reg,
		terminal: &term,
		cell:     &cell,
	}
}

func (f *gatewayFixture) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/terminals" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// expectClose reads until the server closes the connection and returns
// the close code and reason.
func expectClose(t *testing.T, conn *websocket.Conn) (int, string) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	return closeErr.Code, closeErr.Text
}

func TestRejectsMissingCode(t *testing.T) {
	f := newGatewayFixture(t)

	conn := f.dial(t, "")
	code, reason := expectClose(t, conn)
	assert.Equal(t, closePolicyViolation, code)
	assert.Equal(t, "terminal code is required", reason)
}

func TestRejectsUnknownTerminal(t *testing.T) {
	f := newGatewayFixture(t)

	conn := f.dial(t, "?code=TMA-999")
	code, reason := expectClose(t, conn)
	assert.Equal(t, closePolicyViolation, code)
	assert.Equal(t, "terminal is not registered", reason)
}

func TestRejectsTerminalIDMismatch(t *testing.T) {
	f := newGatewayFixture(t)

	conn := f.dial(t, "?code=TMA-001&terminalId=wrong-id")
	code, reason := expectClose(t, conn)
	assert.Equal(t, closePolicyViolation, code)
	assert.Equal(t, "terminal id mismatch", reason)
}

func TestAdmitsValidTerminal(t *testing.T) {
	f := newGatewayFixture(t)

	f.dial(t, "?code=TMA-001&terminalId="+f.terminal.ID)

	require.Eventually(t, func() bool {
		_, ok := f.registry.FindByCode("TMA-001")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	conn, _ := f.registry.FindByCode("TMA-001")
	assert.Equal(t, f.terminal.ID, conn.TerminalID)
}

func TestDuplicateConnectionEvictsOld(t *testing.T) {
	f := newGatewayFixture(t)

	first := f.dial(t, "?code=TMA-001")
	require.Eventually(t, func() bool {
		_, ok := f.registry.FindByCode("TMA-001")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	f.dial(t, "?code=TMA-001")

	code, reason := expectClose(t, first)
	assert.Equal(t, registry.CloseDuplicate, code)
	assert.Equal(t, "duplicate connection", reason)
}

func TestStateReportUpdatesRegistry(t *testing.T) {
	f := newGatewayFixture(t)
	conn := f.dial(t, "?code=TMA-001")

	frame := `{"event":"terminal-state","data":{"pins":[{"id":18,"level":"low"}]}}`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))

	require.Eventually(t, func() bool {
		c, ok := f.registry.FindByCode("TMA-001")
		return ok && c.LastState != nil && len(c.LastState.Pins) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCommandResultDrivesReconciliation(t *testing.T) {
	f := newGatewayFixture(t)
	conn := f.dial(t, "?code=TMA-001")

	userID := "user-1"
	cmd := &model.Command{
		CommandID:  uuid.NewString(),
		TerminalID: f.terminal.ID,
		CellID:     f.cell.ID,
		UserID:     &userID,
		Action:     model.CommandActionActive,
		Status:     model.CommandStatusPending,
	}
	require.NoError(t, f.store.CreateStartCommand(context.Background(), cmd))

	payload, err := json.Marshal(map[string]any{
		"event": "command-result",
		"data":  map[string]any{"commandId": cmd.CommandID, "status": "completed"},
	})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, payload))

	require.Eventually(t, func() bool {
		updated, err := f.store.CommandByCommandID(context.Background(), cmd.CommandID)
		return err == nil && updated.Status == model.CommandStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	cell, err := f.store.CellByID(context.Background(), f.cell.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CellStatusOccupied, cell.Status)
}

func TestMalformedMessageKeepsConnectionOpen(t *testing.T) {
	f := newGatewayFixture(t)
	conn := f.dial(t, "?code=TMA-001")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"event":"terminal-state","data":{"pins":[{"id":1,"level":"low"}]}}`)))

	// The second frame still lands, so the first one did not kill the loop.
	require.Eventually(t, func() bool {
		c, ok := f.registry.FindByCode("TMA-001")
		return ok && c.LastState != nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDisconnectRemovesConnection(t *testing.T) {
	f := newGatewayFixture(t)
	conn := f.dial(t, "?code=TMA-001")

	require.Eventually(t, func() bool {
		_, ok := f.registry.FindByCode("TMA-001")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second)))
	conn.Close()

	require.Eventually(t, func() bool {
		_, ok := f.registry.FindByCode("TMA-001")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

var _ http.Handler = (*Gateway)(nil)
