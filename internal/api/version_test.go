package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"
)

func TestVersionHandler(t *testing.T) {
	tests := []struct {
		name        string
		build       BuildInfo
		wantVersion string
		wantDate    string
	}{
		{
			name:        "with all values",
			build:       BuildInfo{Version: "0.1.0", GitCommit: "abc123def456", BuildDate: "2026-01-28T12:00:00Z"},
			wantVersion: "0.1.0",
			wantDate:    "2026-01-28T12:00:00Z",
		},
		{
			name:        "with defaults",
			build:       BuildInfo{},
			wantVersion: "dev",
			wantDate:    "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			VersionHandler(tt.build).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/version", nil))

			if w.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
			}
			if contentType := w.Header().Get("Content-Type"); contentType != "application/json" {
				t.Errorf("Content-Type = %q, want %q", contentType, "application/json")
			}

			var resp BuildInfo
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			if resp.Version != tt.wantVersion {
				t.Errorf("Version = %q, want %q", resp.Version, tt.wantVersion)
			}
			if resp.BuildDate != tt.wantDate {
				t.Errorf("BuildDate = %q, want %q", resp.BuildDate, tt.wantDate)
			}
			if resp.GitCommit == "" {
				t.Error("GitCommit should never be empty")
			}
			if tt.build.GitCommit != "" && resp.GitCommit != tt.build.GitCommit {
				t.Errorf("GitCommit = %q, want %q", resp.GitCommit, tt.build.GitCommit)
			}
			if resp.GoVersion != runtime.Version() {
				t.Errorf("GoVersion = %q, want %q", resp.GoVersion, runtime.Version())
			}
		})
	}
}
