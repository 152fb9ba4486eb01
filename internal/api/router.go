package api

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/Togather-Foundation/datastudy/internal/api/handlers"
	"github.com/Togather-Foundation/datastudy/internal/api/middleware"
	"github.com/Togather-Foundation/datastudy/internal/audit"
	"github.com/Togather-Foundation/datastudy/internal/auth"
	"github.com/Togather-Foundation/datastudy/internal/config"
	"github.com/Togather-Foundation/datastudy/internal/metrics"
	"github.com/rs/zerolog"
)

// Dependencies are the collaborators the HTTP surface is built from.
type Dependencies struct {
	Config       config.Config
	Logger       zerolog.Logger
	Records      handlers.RecordService
	Introspector auth.Introspector
	Health       *handlers.HealthChecker
	Build        BuildInfo
}

// NewRouter builds the route table and wraps it in the middleware chain.
func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	recordsHandler := handlers.NewRecordsHandler(deps.Records, cfg.Environment)
	recordsHandler.Audit = audit.NewLogger(deps.Logger)

	requireToken := middleware.BearerAuth(deps.Introspector)
	limitBody := middleware.RequestSize(middleware.DefaultMaxBodySize)

	mux := http.NewServeMux()
	mux.Handle("/healthz", methodMux(map[string]http.Handler{
		http.MethodGet: handlers.Healthz(),
	}))
	if deps.Health != nil {
		mux.Handle("/readyz", methodMux(map[string]http.Handler{
			http.MethodGet: deps.Health.Readyz(),
		}))
	}
	mux.Handle("/metrics", methodMux(map[string]http.Handler{
		http.MethodGet: metrics.Handler(),
	}))
	mux.Handle("/version", methodMux(map[string]http.Handler{
		http.MethodGet: VersionHandler(deps.Build),
	}))
	mux.Handle("/openapi.json", methodMux(map[string]http.Handler{
		http.MethodGet: OpenAPIHandler(),
	}))
	mux.Handle("/apidocs", methodMux(map[string]http.Handler{
		http.MethodGet: http.RedirectHandler("/openapi.json", http.StatusFound),
	}))

	mux.Handle("/data", methodMux(map[string]http.Handler{
		http.MethodGet:    requireToken(http.HandlerFunc(recordsHandler.List)),
		http.MethodPost:   requireToken(limitBody(http.HandlerFunc(recordsHandler.Create))),
		http.MethodDelete: requireToken(http.HandlerFunc(recordsHandler.DeleteAll)),
	}))
	mux.Handle("/data/{id}", decimalID(methodMux(map[string]http.Handler{
		http.MethodGet:    requireToken(http.HandlerFunc(recordsHandler.Get)),
		http.MethodPut:    requireToken(limitBody(http.HandlerFunc(recordsHandler.Update))),
		http.MethodDelete: requireToken(http.HandlerFunc(recordsHandler.Delete)),
	})))
	mux.Handle("/", http.HandlerFunc(notFound))

	var handler http.Handler = mux
	handler = middleware.RequestTimeout(cfg.Server.RequestTimeout)(handler)
	handler = middleware.RateLimit(cfg.RateLimit)(handler)
	handler = middleware.SecurityHeaders(cfg.Environment == "production")(handler)
	handler = middleware.RequestLogging(deps.Logger)(handler)
	handler = metrics.HTTPMiddleware(handler)
	handler = middleware.Tracing(handler)
	handler = middleware.CorrelationID(deps.Logger)(handler)
	handler = middleware.Recoverer(deps.Logger)(handler)
	return handler
}

// decimalID makes an {id} that is not an unsigned decimal fitting in int64 an
// unknown path. It runs before method dispatch and authentication.
func decimalID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if id == "" {
			notFound(w, r)
			return
		}
		for _, c := range id {
			if c < '0' || c > '9' {
				notFound(w, r)
				return
			}
		}
		if _, err := strconv.ParseInt(id, 10, 64); err != nil {
			notFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	http.Error(w, "Not Found", http.StatusNotFound)
}

// methodMux dispatches on the request method. HEAD falls back to GET and OPTIONS
// answers with the Allow header without reaching the handlers.
func methodMux(handlers map[string]http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := handlers[r.Method]; ok {
			handler.ServeHTTP(w, r)
			return
		}
		if r.Method == http.MethodHead {
			if handler, ok := handlers[http.MethodGet]; ok {
				handler.ServeHTTP(w, r)
				return
			}
		}
		w.Header().Set("Allow", allowedMethods(handlers))
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	})
}

func allowedMethods(handlers map[string]http.Handler) string {
	methods := make([]string, 0, len(handlers)+2)
	for method := range handlers {
		methods = append(methods, method)
	}
	if _, ok := handlers[http.MethodGet]; ok {
		methods = append(methods, http.MethodHead)
	}
	methods = append(methods, http.MethodOptions)
	sort.Strings(methods)
	return strings.Join(methods, ", ")
}
