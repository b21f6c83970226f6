package utils

import (
	"net/http"

	"github.com/gorilla/mux"

	"mediastream/handlers"
)

// CORS middleware to allow cross-origin players to issue range requests
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Set CORS headers
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Range, Content-Type, X-Request-ID")
		w.Header().Set("Access-Control-Expose-Headers", "Accept-Ranges, Content-Length, Content-Range, X-Request-ID")

		// Handle preflight requests
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Routes groups the handlers mounted on the router. Nil entries are skipped.
type Routes struct {
	Stream *handlers.StreamHandler
	Health *handlers.HealthHandler
	Admin  *handlers.AdminHandler
}

// NewRouter constructs the mux router with common middleware and routes.
func NewRouter(routes Routes) *mux.Router {
	r := mux.NewRouter()

	r.Use(handlers.WithRequestID)
	r.Use(corsMiddleware)

	if routes.Health != nil {
		r.HandleFunc("/health", routes.Health.Liveness).Methods(http.MethodGet)
		r.HandleFunc("/ready", routes.Health.Readiness).Methods(http.MethodGet)
	} else {
		r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		}).Methods(http.MethodGet)
	}

	if routes.Stream != nil {
		// Method checks live in the handler so every rejection carries the envelope.
		r.Handle("/videos/{id:.+}", routes.Stream)
	}
	if routes.Admin != nil {
		r.HandleFunc("/admin/streams", routes.Admin.GetActiveStreams).Methods(http.MethodGet)
	}
	return r
}
