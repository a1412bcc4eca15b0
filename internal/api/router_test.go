package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"locker-terminal-backend/config"
	"locker-terminal-backend/internal/db"
	"locker-terminal-backend/internal/model"
	"locker-terminal-backend/internal/registry"
	"locker-terminal-backend/internal/store"
	"locker-terminal-backend/internal/terminal"
)

const testSecret = "test-secret"

type apiFixture struct {
	router   http.Handler
	store    store.Store
	registry *registry.Registry
	terminal *model.Terminal
	cell     *model.Cell
	socket   *fakeSocket
}

type fakeSocket struct {
	sent [][]byte
}

func (f *fakeSocket) Send(data []byte) error {
	f.sent = append(f.sent, data)
	return nil
}

func (f *fakeSocket) CloseWithReason(int, string) error { return nil }

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gormDB))

	s := store.NewGormStore(gormDB)
	term := model.Terminal{ID: uuid.NewString(), Code: "TMA-001", Name: "Terminal 1", Location: "Office"}
	require.NoError(t, s.DB().Create(&term).Error)
	cell := model.Cell{ID: uuid.NewString(), TerminalID: term.ID, Index: 1, GpioPin: 18, Status: model.CellStatusFree, IsActive: true}
	require.NoError(t, s.DB().Create(&cell).Error)

	reg := registry.New()
	socket := &fakeSocket{}
	reg.Admit(term.Code, term.ID, socket)

	svc := terminal.NewService(s, reg, nil, zerolog.Nop())

	cfg := &config.Config{}
	cfg.Server.RateLimitPerSec = 1000
	cfg.Server.RateLimitBurst = 1000
	cfg.Server.CacheTTLSeconds = 1
	cfg.Auth.JWTSecret = testSecret

	router := NewRouter(cfg, svc, s, http.NotFoundHandler(), nil)

	return &apiFixture{
		router:   router,
		store:    s,
		registry: reg,
		terminal: &term,
		cell:     &cell,
		socket:   socket,
	}
}

func bearerToken(t *testing.T, userID string) string {
	t.Helper()

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func (f *apiFixture) request(t *testing.T, method, path, user string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	if user != "" {
		req.Header.Set("Authorization", bearerToken(t, user))
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestRequiresAuthentication(t *testing.T) {
	f := newAPIFixture(t)

	w := f.request(t, http.MethodGet, "/api/terminals/online", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRejectsForgedToken(t *testing.T) {
	f := newAPIFixture(t)

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1"})
	signed, err := tok.SignedString([]byte("wrong-secret"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/terminals/online", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetOnlineTerminals(t *testing.T) {
	f := newAPIFixture(t)

	w := f.request(t, http.MethodGet, "/api/terminals/online", "user-1")
	require.Equal(t, http.StatusOK, w.Code)

	var online []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &online))
	require.Len(t, online, 1)
	assert.Equal(t, f.terminal.ID, online[0]["terminalId"])
}

func TestGetTerminalState(t *testing.T) {
	f := newAPIFixture(t)

	w := f.request(t, http.MethodGet, "/api/terminals/"+f.terminal.ID+"/state", "user-1")
	require.Equal(t, http.StatusOK, w.Code)

	var state map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	cells, ok := state["cells"].([]any)
	require.True(t, ok)
	assert.Len(t, cells, 1)
}

func TestGetTerminalStateOffline(t *testing.T) {
	f := newAPIFixture(t)
	f.registry.Remove(f.socket)

	w := f.request(t, http.MethodGet, "/api/terminals/"+f.terminal.ID+"/state", "user-1")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStartRent(t *testing.T) {
	f := newAPIFixture(t)

	path := fmt.Sprintf("/api/terminals/%s/cells/%s/start", f.terminal.ID, f.cell.ID)
	w := f.request(t, http.MethodPost, path, "user-1")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotEmpty(t, body["commandId"])

	cmd, err := f.store.CommandByCommandID(context.Background(), body["commandId"])
	require.NoError(t, err)
	assert.Equal(t, model.CommandStatusPending, cmd.Status)
	assert.Len(t, f.socket.sent, 1)
}

func TestStartRentOnOccupiedCell(t *testing.T) {
	f := newAPIFixture(t)
	require.NoError(t, f.store.DB().Model(&model.Cell{}).Where("id = ?", f.cell.ID).
		Update("status", model.CellStatusOccupied).Error)

	path := fmt.Sprintf("/api/terminals/%s/cells/%s/start", f.terminal.ID, f.cell.ID)
	w := f.request(t, http.MethodPost, path, "user-1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFinishRentOnFreeCell(t *testing.T) {
	f := newAPIFixture(t)

	path := fmt.Sprintf("/api/terminals/%s/cells/%s/finish", f.terminal.ID, f.cell.ID)
	w := f.request(t, http.MethodPost, path, "user-1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStartRentUnknownTerminal(t *testing.T) {
	f := newAPIFixture(t)

	path := fmt.Sprintf("/api/terminals/%s/cells/%s/start", uuid.NewString(), f.cell.ID)
	w := f.request(t, http.MethodPost, path, "user-1")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetMyRentsEmpty(t *testing.T) {
	f := newAPIFixture(t)

	w := f.request(t, http.MethodGet, "/api/rents", "user-1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestVAPIDKeyUnconfigured(t *testing.T) {
	f := newAPIFixture(t)

	w := f.request(t, http.MethodGet, "/api/vapid_public_key", "user-1")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
