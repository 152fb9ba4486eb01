// Package loadtest generates traffic against the /data API to exercise the
// dashboards, the rate limiter and the event publisher under load.
package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// LoadProfile names a predefined scenario.
type LoadProfile string

const (
	ProfileLight  LoadProfile = "light"  // 5 req/s, 1 minute
	ProfileMedium LoadProfile = "medium" // 20 req/s, 2 minutes
	ProfileHeavy  LoadProfile = "heavy"  // 50 req/s, 5 minutes
	ProfileStress LoadProfile = "stress" // 100 req/s, 10 minutes
)

// ProfileConfig defines the parameters for a load test.
type ProfileConfig struct {
	RequestsPerSecond int
	Duration          time.Duration
	RampUpTime        time.Duration
	// ReadWriteRatio is the share of reads, 0.8 = 80% reads.
	ReadWriteRatio float64
}

var LoadProfiles = map[LoadProfile]ProfileConfig{
	ProfileLight:  {RequestsPerSecond: 5, Duration: time.Minute, RampUpTime: 10 * time.Second, ReadWriteRatio: 0.8},
	ProfileMedium: {RequestsPerSecond: 20, Duration: 2 * time.Minute, RampUpTime: 20 * time.Second, ReadWriteRatio: 0.8},
	ProfileHeavy:  {RequestsPerSecond: 50, Duration: 5 * time.Minute, RampUpTime: 30 * time.Second, ReadWriteRatio: 0.7},
	ProfileStress: {RequestsPerSecond: 100, Duration: 10 * time.Minute, RampUpTime: time.Minute, ReadWriteRatio: 0.6},
}

// LoadTester drives requests at a target server.
type LoadTester struct {
	baseURL    string
	token      string
	httpClient *http.Client
	rng        *rand.Rand
	rngMu      sync.Mutex
	// created counts successful POSTs; ids below it are likely to exist.
	created atomic.Int64
	stats   *Statistics
}

// NewLoadTester targets baseURL, authenticating with token when it is non-empty.
func NewLoadTester(baseURL, token string) *LoadTester {
	return &LoadTester{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run executes a predefined profile.
func (lt *LoadTester) Run(ctx context.Context, profile LoadProfile) (*Statistics, error) {
	cfg, ok := LoadProfiles[profile]
	if !ok {
		return nil, fmt.Errorf("unknown profile: %s", profile)
	}
	return lt.RunCustom(ctx, cfg)
}

// RunCustom executes cfg until its ramp-up and duration elapse or ctx ends.
func (lt *LoadTester) RunCustom(ctx context.Context, cfg ProfileConfig) (*Statistics, error) {
	if cfg.RequestsPerSecond <= 0 {
		return nil, fmt.Errorf("requests per second must be > 0")
	}

	lt.stats = newStatistics()

	ctx, cancel := context.WithTimeout(ctx, cfg.RampUpTime+cfg.Duration)
	defer cancel()

	workers := cfg.RequestsPerSecond * 2
	if workers < 10 {
		workers = 10
	}
	work := make(chan workItem, workers*2)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range work {
				lt.executeRequest(ctx, item)
			}
		}()
	}

	lt.generateWork(ctx, cfg, work)
	close(work)
	wg.Wait()
	lt.stats.endTime = time.Now()

	return lt.stats, nil
}

type workItem struct {
	method   string
	path     string
	body     []byte
	endpoint string
}

// generateWork paces work items with a token bucket whose rate rises linearly
// during ramp-up.
func (lt *LoadTester) generateWork(ctx context.Context, cfg ProfileConfig, work chan<- workItem) {
	start := time.Now()
	limiter := rate.NewLimiter(rate.Limit(currentRPS(0, cfg)), 1)

	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		limiter.SetLimit(rate.Limit(currentRPS(time.Since(start), cfg)))

		var item workItem
		if lt.float64() < cfg.ReadWriteRatio {
			item = lt.readRequest()
		} else {
			item = lt.writeRequest()
		}

		select {
		case work <- item:
		case <-ctx.Done():
			return
		}
	}
}

func currentRPS(elapsed time.Duration, cfg ProfileConfig) int {
	if cfg.RampUpTime <= 0 || elapsed >= cfg.RampUpTime {
		return cfg.RequestsPerSecond
	}
	rps := int(float64(cfg.RequestsPerSecond) * float64(elapsed) / float64(cfg.RampUpTime))
	if rps < 1 {
		rps = 1
	}
	return rps
}

func (lt *LoadTester) readRequest() workItem {
	if lt.intn(3) == 0 {
		return workItem{method: http.MethodGet, path: "/data", endpoint: "list"}
	}
	return workItem{method: http.MethodGet, path: "/data/" + lt.knownID(), endpoint: "get"}
}

func (lt *LoadTester) writeRequest() workItem {
	switch n := lt.intn(10); {
	case n < 6:
		return workItem{method: http.MethodPost, path: "/data", body: lt.textBody(), endpoint: "create"}
	case n < 9:
		return workItem{method: http.MethodPut, path: "/data/" + lt.knownID(), body: lt.textBody(), endpoint: "update"}
	default:
		return workItem{method: http.MethodDelete, path: "/data/" + lt.knownID(), endpoint: "delete"}
	}
}

func (lt *LoadTester) knownID() string {
	upper := lt.created.Load()
	if upper < 1 {
		upper = 1
	}
	return strconv.FormatInt(lt.int63n(upper)+1, 10)
}

func (lt *LoadTester) textBody() []byte {
	body, _ := json.Marshal(map[string]string{
		"text": fmt.Sprintf("load %d", lt.int63n(1_000_000)),
	})
	return body
}

func (lt *LoadTester) executeRequest(ctx context.Context, item workItem) {
	var body io.Reader
	if item.body != nil {
		body = bytes.NewReader(item.body)
	}

	req, err := http.NewRequestWithContext(ctx, item.method, lt.baseURL+item.path, body)
	if err != nil {
		lt.stats.record(item.endpoint, 0, 0)
		return
	}
	if item.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if lt.token != "" {
		req.Header.Set("Authorization", "Bearer "+lt.token)
	}

	start := time.Now()
	resp, err := lt.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			lt.stats.record(item.endpoint, 0, time.Since(start))
		}
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	if item.endpoint == "create" && resp.StatusCode == http.StatusOK {
		lt.created.Add(1)
	}
	lt.stats.record(item.endpoint, resp.StatusCode, time.Since(start))
}

func (lt *LoadTester) float64() float64 {
	lt.rngMu.Lock()
	defer lt.rngMu.Unlock()
	return lt.rng.Float64()
}

func (lt *LoadTester) intn(n int) int {
	lt.rngMu.Lock()
	defer lt.rngMu.Unlock()
	return lt.rng.Intn(n)
}

func (lt *LoadTester) int63n(n int64) int64 {
	lt.rngMu.Lock()
	defer lt.rngMu.Unlock()
	return lt.rng.Int63n(n)
}

// Statistics aggregates outcomes. A 404 on an id-addressed request counts as
// success: the id may have been deleted by a concurrent worker.
type Statistics struct {
	mu sync.Mutex

	total     int64
	succeeded int64
	failed    int64
	latencies []time.Duration
	byStatus  map[int]int64
	endpoints map[string]*EndpointStats

	startTime time.Time
	endTime   time.Time
}

type EndpointStats struct {
	Count     int64
	Errors    int64
	latencies []time.Duration
}

func newStatistics() *Statistics {
	return &Statistics{
		byStatus:  make(map[int]int64),
		endpoints: make(map[string]*EndpointStats),
		startTime: time.Now(),
	}
}

func (s *Statistics) record(endpoint string, status int, latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total++
	s.byStatus[status]++
	ep := s.endpoints[endpoint]
	if ep == nil {
		ep = &EndpointStats{}
		s.endpoints[endpoint] = ep
	}
	ep.Count++

	ok := status >= 200 && status < 300 || (status == http.StatusNotFound && endpoint != "list" && endpoint != "create")
	if ok {
		s.succeeded++
	} else {
		s.failed++
		ep.Errors++
	}
	if status != 0 {
		s.latencies = append(s.latencies, latency)
		ep.latencies = append(ep.latencies, latency)
	}
}

// Totals returns the request, success and failure counts.
func (s *Statistics) Totals() (total, succeeded, failed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total, s.succeeded, s.failed
}

// StatusCount returns how many responses had the given status; 0 counts transport errors.
func (s *Statistics) StatusCount(status int) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byStatus[status]
}

// Report renders a plain-text summary.
func (s *Statistics) Report() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	duration := s.endTime.Sub(s.startTime)
	var b bytes.Buffer
	fmt.Fprintf(&b, "\nLOAD TEST RESULTS\n\n")
	fmt.Fprintf(&b, "Duration:        %s\n", duration.Round(time.Second))
	fmt.Fprintf(&b, "Total Requests:  %d\n", s.total)
	fmt.Fprintf(&b, "Successful:      %d (%.1f%%)\n", s.succeeded, percent(s.succeeded, s.total))
	fmt.Fprintf(&b, "Failed:          %d (%.1f%%)\n", s.failed, percent(s.failed, s.total))
	if duration > 0 {
		fmt.Fprintf(&b, "Requests/sec:    %.2f\n", float64(s.total)/duration.Seconds())
	}

	if len(s.latencies) > 0 {
		fmt.Fprintf(&b, "\nLatency p50/p95/p99: %s / %s / %s\n",
			percentile(s.latencies, 0.50), percentile(s.latencies, 0.95), percentile(s.latencies, 0.99))
	}

	codes := make([]int, 0, len(s.byStatus))
	for code := range s.byStatus {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	fmt.Fprintf(&b, "\nResponses by status:\n")
	for _, code := range codes {
		label := strconv.Itoa(code)
		if code == 0 {
			label = "transport error"
		}
		fmt.Fprintf(&b, "  %-16s %d\n", label, s.byStatus[code])
	}

	names := make([]string, 0, len(s.endpoints))
	for name := range s.endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintf(&b, "\n%-10s %8s %8s %10s\n", "Endpoint", "Count", "Errors", "p95")
	for _, name := range names {
		ep := s.endpoints[name]
		fmt.Fprintf(&b, "%-10s %8d %8d %10s\n", name, ep.Count, ep.Errors, percentile(ep.latencies, 0.95))
	}
	return b.String()
}

func percent(n, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

func percentile(values []time.Duration, p float64) time.Duration {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index].Round(time.Millisecond)
}
