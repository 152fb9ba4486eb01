package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := trace.NewTracerProvider(
		trace.WithSyncer(exporter),
		trace.WithSampler(trace.AlwaysSample()),
	)
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(previous)
	})
	return exporter
}

func spanAttr(attrs []attribute.KeyValue, key attribute.Key) (attribute.Value, bool) {
	for _, attr := range attrs {
		if attr.Key == key {
			return attr.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracing(t *testing.T) {
	exporter := newTestTracer(t)

	handler := Tracing(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/data/42", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]

	if span.Name != "GET /data/{id}" {
		t.Errorf("expected span name %q, got %q", "GET /data/{id}", span.Name)
	}
	if v, ok := spanAttr(span.Attributes, "http.method"); !ok || v.AsString() != "GET" {
		t.Errorf("expected http.method=GET, got %v", v)
	}
	if v, ok := spanAttr(span.Attributes, "http.route"); !ok || v.AsString() != "/data/{id}" {
		t.Errorf("expected http.route=/data/{id}, got %v", v)
	}
	if v, ok := spanAttr(span.Attributes, "http.status_code"); !ok || v.AsInt64() != 200 {
		t.Errorf("expected http.status_code=200, got %v", v)
	}
}

func TestTracingStatus(t *testing.T) {
	tests := []struct {
		status   int
		wantCode codes.Code
	}{
		{status: http.StatusUnauthorized, wantCode: codes.Unset},
		{status: http.StatusNotFound, wantCode: codes.Unset},
		{status: http.StatusInternalServerError, wantCode: codes.Error},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			exporter := newTestTracer(t)
			handler := Tracing(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))

			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/data", nil))

			spans := exporter.GetSpans()
			if len(spans) != 1 {
				t.Fatalf("expected 1 span, got %d", len(spans))
			}
			if spans[0].Status.Code != tt.wantCode {
				t.Errorf("expected span status %v, got %v", tt.wantCode, spans[0].Status.Code)
			}
			if v, _ := spanAttr(spans[0].Attributes, "http.status_code"); v.AsInt64() != int64(tt.status) {
				t.Errorf("expected http.status_code=%d, got %d", tt.status, v.AsInt64())
			}
		})
	}
}

func TestTracingCarriesRequestID(t *testing.T) {
	exporter := newTestTracer(t)

	handler := CorrelationID(nopLogger())(Tracing(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	req := httptest.NewRequest(http.MethodGet, "/data", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if v, ok := spanAttr(spans[0].Attributes, "request_id"); !ok || v.AsString() != "req-123" {
		t.Errorf("expected request_id=req-123, got %v", v)
	}
}

func TestSchemeFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/data", nil)
	if got := schemeFromRequest(req); got != "http" {
		t.Errorf("expected http, got %s", got)
	}
	req.Header.Set("X-Forwarded-Proto", "https")
	if got := schemeFromRequest(req); got != "https" {
		t.Errorf("expected https, got %s", got)
	}
}
