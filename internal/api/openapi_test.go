package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAPIHandler(t *testing.T) {
	w := httptest.NewRecorder()
	OpenAPIHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var doc struct {
		OpenAPI string                    `json:"openapi"`
		Paths   map[string]map[string]any `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "3.0.3", doc.OpenAPI)
	require.Contains(t, doc.Paths, "/data")
	require.Contains(t, doc.Paths, "/data/{id}")
	for _, method := range []string{"get", "post", "delete"} {
		assert.Contains(t, doc.Paths["/data"], method)
	}
	for _, method := range []string{"get", "put", "delete"} {
		assert.Contains(t, doc.Paths["/data/{id}"], method)
	}
}

func TestOpenAPIHandlerConcurrentRequests(t *testing.T) {
	handler := OpenAPIHandler()

	var wg sync.WaitGroup
	bodies := make([]string, 10)
	for i := range bodies {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))
			bodies[i] = w.Body.String()
		}(i)
	}
	wg.Wait()

	for _, body := range bodies[1:] {
		assert.Equal(t, bodies[0], body)
	}
}
