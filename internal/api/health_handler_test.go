package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn bool

func (c fakeConn) IsConnected() bool { return bool(c) }

func serve(t *testing.T, hc *HealthChecker, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	NewServer(hc).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestLiveness_AlwaysOK(t *testing.T) {
	rec, body := serve(t, NewHealthChecker(nil, nil, nil), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alive", body["status"])
	assert.Equal(t, "cmd/worker", rec.Header().Get("X-Server-Binary"))
}

func TestReadiness_AllUp(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectPing()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	rec, body := serve(t, NewHealthChecker(db, client, nil), "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["ready"])
	assert.Equal(t, "healthy", body["status"])

	checks := body["checks"].(map[string]interface{})
	assert.Equal(t, "up", checks["database"].(map[string]interface{})["status"])
	assert.Equal(t, "up", checks["redis"].(map[string]interface{})["status"])
	assert.Equal(t, notConfigured, checks["nats"].(map[string]interface{})["message"])
}

func TestReadiness_DatabaseDown(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	rec, body := serve(t, NewHealthChecker(db, nil, fakeConn(true)), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, false, body["ready"])
	assert.Equal(t, "unhealthy", body["status"])
}

func TestReadiness_NATSDisconnected(t *testing.T) {
	rec, _ := serve(t, NewHealthChecker(nil, nil, fakeConn(false)), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealth_ReportsVersion(t *testing.T) {
	SetVersion("1.2.3")
	rec, body := serve(t, NewHealthChecker(nil, nil, fakeConn(true)), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1.2.3", body["version"])
	assert.Equal(t, "healthy", body["status"])
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "5s", formatUptime(5e9))
	assert.Equal(t, "2m 0s", formatUptime(120e9))
	assert.Equal(t, "1d 0h 0m 1s", formatUptime(86401e9))
}

func TestUnknownRoute(t *testing.T) {
	rec, body := serve(t, NewHealthChecker(nil, nil, nil), "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not found", body["error"])
}
