package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDatabase struct {
	pingErr error
	version int64
	dirty   bool
	migErr  error
}

func (s stubDatabase) Ping(context.Context) error { return s.pingErr }

func (s stubDatabase) MigrationState(context.Context) (int64, bool, error) {
	return s.version, s.dirty, s.migErr
}

type stubQueue struct {
	depth, capacity int
	closed          bool
}

func (s stubQueue) QueueDepth() int    { return s.depth }
func (s stubQueue) QueueCapacity() int { return s.capacity }
func (s stubQueue) Closed() bool       { return s.closed }

func readyz(t *testing.T, checker *HealthChecker) (int, HealthCheck) {
	t.Helper()
	w := httptest.NewRecorder()
	checker.Readyz().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	var response HealthCheck
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	return w.Code, response
}

func TestReadyz_AllHealthy(t *testing.T) {
	checker := NewHealthChecker(stubDatabase{version: 2}, stubQueue{depth: 3, capacity: 1000}, "0.1.0", "abc123")

	code, response := readyz(t, checker)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", response.Status)
	assert.Equal(t, "0.1.0", response.Version)
	assert.Equal(t, "abc123", response.GitCommit)
	assert.Equal(t, "pass", response.Checks["database"].Status)
	assert.Equal(t, "pass", response.Checks["migrations"].Status)
	assert.Equal(t, "pass", response.Checks["event_publisher"].Status)
	assert.NotEmpty(t, response.Timestamp)
}

func TestReadyz_Failures(t *testing.T) {
	tests := []struct {
		name   string
		db     Database
		queue  EventQueue
		check  string
		status string
		code   int
	}{
		{name: "database down", db: stubDatabase{pingErr: errors.New("connection refused"), migErr: errors.New("connection refused")}, queue: stubQueue{capacity: 10}, check: "database", status: "fail", code: 503},
		{name: "no database", db: nil, queue: stubQueue{capacity: 10}, check: "database", status: "fail", code: 503},
		{name: "dirty migration", db: stubDatabase{version: 2, dirty: true}, queue: stubQueue{capacity: 10}, check: "migrations", status: "fail", code: 503},
		{name: "migrations missing", db: stubDatabase{migErr: errors.New(`relation "schema_migrations" does not exist`)}, queue: stubQueue{capacity: 10}, check: "migrations", status: "fail", code: 503},
		{name: "publisher closed", db: stubDatabase{version: 2}, queue: stubQueue{capacity: 10, closed: true}, check: "event_publisher", status: "fail", code: 503},
		{name: "queue nearly full", db: stubDatabase{version: 2}, queue: stubQueue{depth: 9, capacity: 10}, check: "event_publisher", status: "warn", code: 200},
		{name: "no publisher", db: stubDatabase{version: 2}, queue: nil, check: "event_publisher", status: "warn", code: 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, response := readyz(t, NewHealthChecker(tt.db, tt.queue, "dev", "unknown"))
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.status, response.Checks[tt.check].Status)
			if tt.code == http.StatusOK {
				assert.Equal(t, "degraded", response.Status)
			} else {
				assert.Equal(t, "unhealthy", response.Status)
			}
		})
	}
}

func TestReadyz_ShuttingDown(t *testing.T) {
	checker := NewHealthChecker(stubDatabase{}, stubQueue{capacity: 1}, "dev", "unknown")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := httptest.NewRecorder()
	checker.Readyz().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil).WithContext(ctx))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"shutting_down"}`, w.Body.String())
}

func TestHealthz(t *testing.T) {
	w := httptest.NewRecorder()
	Healthz().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
