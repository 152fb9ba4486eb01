package loadtest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrentRPS(t *testing.T) {
	cfg := ProfileConfig{RequestsPerSecond: 100, RampUpTime: 10 * time.Second}

	assert.Equal(t, 1, currentRPS(0, cfg))
	assert.Equal(t, 50, currentRPS(5*time.Second, cfg))
	assert.Equal(t, 100, currentRPS(10*time.Second, cfg))
	assert.Equal(t, 100, currentRPS(time.Hour, cfg))
	assert.Equal(t, 100, currentRPS(0, ProfileConfig{RequestsPerSecond: 100}))
}

func TestPercentile(t *testing.T) {
	values := []time.Duration{5 * time.Millisecond, time.Millisecond, 3 * time.Millisecond, 2 * time.Millisecond, 4 * time.Millisecond}

	assert.Equal(t, 3*time.Millisecond, percentile(values, 0.5))
	assert.Equal(t, 5*time.Millisecond, percentile(values, 0.99))
	assert.Equal(t, time.Duration(0), percentile(nil, 0.5))
	assert.Equal(t, time.Millisecond, values[1], "input must not be reordered")
}

func TestStatistics_NotFoundOnIDRoutesIsSuccess(t *testing.T) {
	s := newStatistics()
	s.record("get", http.StatusNotFound, time.Millisecond)
	s.record("list", http.StatusNotFound, time.Millisecond)
	s.record("create", http.StatusOK, time.Millisecond)
	s.record("create", 0, 0)

	total, succeeded, failed := s.Totals()
	assert.Equal(t, int64(4), total)
	assert.Equal(t, int64(2), succeeded)
	assert.Equal(t, int64(2), failed)
	assert.Equal(t, int64(1), s.StatusCount(0))
}

func TestRunCustom_SendsAuthenticatedTraffic(t *testing.T) {
	var unauthorized, creates atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			unauthorized.Add(1)
			http.Error(w, "Authorization header is missing", http.StatusUnauthorized)
			return
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/data":
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			creates.Add(1)
			_, _ = w.Write([]byte("Data added successfully and sent to Kafka."))
		case r.URL.Path == "/data":
			_, _ = w.Write([]byte("[]"))
		case strings.HasPrefix(r.URL.Path, "/data/"):
			http.Error(w, "Data not found.", http.StatusNotFound)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	tester := NewLoadTester(server.URL, "secret")
	stats, err := tester.RunCustom(context.Background(), ProfileConfig{
		RequestsPerSecond: 50,
		Duration:          500 * time.Millisecond,
		ReadWriteRatio:    0.5,
	})
	require.NoError(t, err)

	total, _, failed := stats.Totals()
	assert.Positive(t, total)
	assert.Zero(t, failed)
	assert.Zero(t, unauthorized.Load())
	assert.LessOrEqual(t, tester.created.Load(), creates.Load())
	assert.Contains(t, stats.Report(), "LOAD TEST RESULTS")
}

func TestRunCustom_RejectsZeroRate(t *testing.T) {
	_, err := NewLoadTester("http://localhost", "").RunCustom(context.Background(), ProfileConfig{})
	require.Error(t, err)
}

func TestRun_UnknownProfile(t *testing.T) {
	_, err := NewLoadTester("http://localhost", "").Run(context.Background(), "burst")
	require.Error(t, err)
}
