package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"social-realtime/internal/auth"
	"social-realtime/internal/maintenance"
	"social-realtime/internal/middleware"
	"social-realtime/internal/mocks"
	"social-realtime/internal/models"
	"social-realtime/internal/repositories"
	"social-realtime/internal/telemetry"
)

type staticStats struct{ users, conns int }

func (s staticStats) Stats() (int, int) { return s.users, s.conns }

type staticCluster struct {
	count int
	err   error
}

func (s staticCluster) OnlineCount(context.Context) (int, error) { return s.count, s.err }

type fakeConnections map[int][]string

func (f fakeConnections) Connections(userID int) []string { return f[userID] }

func (f fakeConnections) VisibleConnections(userID int) []string {
	if len(f[userID]) == 0 {
		return nil
	}
	return f[userID][:1]
}

var testVerifier = auth.NewVerifier("handler-secret")

func setupRealtimeRouter(t *testing.T, handler *RealtimeHandler, gate *maintenance.Gate) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Authenticate(testVerifier))
	r.Use(maintenance.Middleware(gate, func(c *gin.Context) bool { return middleware.ClaimsFrom(c).IsAdmin() }))
	handler.RegisterRoutes(r, func(c *gin.Context) { c.Status(http.StatusNoContent) })
	RegisterDebugRoutes(r, nil, fakeConnections{5: {"a", "b"}}, true)
	return r
}

func newGate(enabled bool) *maintenance.Gate {
	settings := new(mocks.SettingsRepositoryMock)
	settings.On("GetMaintenanceFlag", mock.Anything).Return(enabled, nil)
	return maintenance.NewGate(settings, time.Minute)
}

func doRequest(t *testing.T, r *gin.Engine, path string, userID int, role string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if userID != 0 {
		token, err := testVerifier.Issue(userID, role, time.Minute)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestMeReturnsUser(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	gate := newGate(false)
	r := setupRealtimeRouter(t, NewRealtimeHandler(users, gate, staticStats{}, nil, nil), gate)
	users.On("GetUser", mock.Anything, 5).Return(models.User{ID: 5, Username: "eve"}, nil).Once()

	rec := doRequest(t, r, "/auth/me", 5, models.RoleUser)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		User        models.User `json:"user"`
		Maintenance bool        `json:"maintenance"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "eve", resp.User.Username)
	assert.False(t, resp.Maintenance)
	users.AssertExpectations(t)
}

func TestMeDuringMaintenance(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	publisher := new(mocks.PublisherMock)
	publisher.On("Publish", mock.Anything, telemetry.AuditRoutingKey, mock.Anything, mock.Anything).Return(nil).Once()
	audit := telemetry.NewAuditEmitter(publisher, telemetry.AuditRoutingKey, "social-realtime", "test")
	gate := newGate(true)
	r := setupRealtimeRouter(t, NewRealtimeHandler(users, gate, staticStats{}, nil, audit), gate)
	users.On("GetUser", mock.Anything, 1).Return(models.User{ID: 1, Role: models.RoleAdmin}, nil).Once()

	rec := doRequest(t, r, "/auth/me", 5, models.RoleUser)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"error":"maintenance","maintenance":true}`, rec.Body.String())
	publisher.AssertExpectations(t)

	rec = doRequest(t, r, "/auth/me", 1, models.RoleAdmin)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMeErrors(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	gate := newGate(false)
	r := setupRealtimeRouter(t, NewRealtimeHandler(users, gate, staticStats{}, nil, nil), gate)
	users.On("GetUser", mock.Anything, 5).Return(nil, repositories.ErrUserNotFound).Once()
	users.On("GetUser", mock.Anything, 6).Return(nil, assert.AnError).Once()

	assert.Equal(t, http.StatusUnauthorized, doRequest(t, r, "/auth/me", 0, "").Code)
	assert.Equal(t, http.StatusNotFound, doRequest(t, r, "/auth/me", 5, models.RoleUser).Code)
	assert.Equal(t, http.StatusInternalServerError, doRequest(t, r, "/auth/me", 6, models.RoleUser).Code)
}

func TestAdminOnline(t *testing.T) {
	gate := newGate(false)
	handler := NewRealtimeHandler(new(mocks.UserRepositoryMock), gate, staticStats{users: 3, conns: 5}, staticCluster{count: 7}, nil)
	r := setupRealtimeRouter(t, handler, gate)

	assert.Equal(t, http.StatusForbidden, doRequest(t, r, "/admin/online", 5, models.RoleUser).Code)

	rec := doRequest(t, r, "/admin/online", 1, models.RoleAdmin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":3,"connections":5,"cluster_count":7}`, rec.Body.String())
}

func TestAdminOnlineWithoutCluster(t *testing.T) {
	gate := newGate(false)
	handler := NewRealtimeHandler(new(mocks.UserRepositoryMock), gate, staticStats{users: 1, conns: 1}, staticCluster{err: assert.AnError}, nil)
	r := setupRealtimeRouter(t, handler, gate)

	rec := doRequest(t, r, "/admin/online", 1, models.RoleAdmin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":1,"connections":1}`, rec.Body.String())
}

func TestSocketAndDebugRoutesAreGated(t *testing.T) {
	gate := newGate(true)
	r := setupRealtimeRouter(t, NewRealtimeHandler(new(mocks.UserRepositoryMock), gate, staticStats{}, nil, nil), gate)

	assert.Equal(t, http.StatusServiceUnavailable, doRequest(t, r, "/ws", 5, models.RoleUser).Code)
	assert.Equal(t, http.StatusNoContent, doRequest(t, r, "/ws", 1, models.RoleAdmin).Code)
	assert.Equal(t, http.StatusOK, doRequest(t, r, "/healthz", 0, "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, doRequest(t, r, "/debug/audit-test", 1, models.RoleAdmin).Code, "no emitter configured")
}

func TestDebugConnections(t *testing.T) {
	gate := newGate(false)
	r := setupRealtimeRouter(t, NewRealtimeHandler(new(mocks.UserRepositoryMock), gate, staticStats{}, nil, nil), gate)

	rec := doRequest(t, r, "/debug/connections/5", 0, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":5,"online":true,"connections":["a","b"],"visible":["a"]}`, rec.Body.String())

	rec = doRequest(t, r, "/debug/connections/6", 0, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":6,"online":false,"connections":null,"visible":null}`, rec.Body.String())

	assert.Equal(t, http.StatusBadRequest, doRequest(t, r, "/debug/connections/x", 0, "").Code)
}
