/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. RequestLogger: Attaches a zerolog logger to the request context,
                    which the engine picks up for its own log lines
  2. Recoverer:     Panic recovery (500 instead of crash)
  3. RequestID:     Unique ID per request for tracing
  4. CORS:          Cross-origin requests for frontend

ROUTE GROUPS:
  /api/statement/*  Beginning-cash and working-capital calculations
  /api/periods/*    Period lookup and previous-period resolution

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, logger *zerolog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Statement calculation routes
		r.Route("/statement", func(r chi.Router) {
			r.Post("/beginning-cash", h.BeginningCash)
			r.Post("/working-capital", h.WorkingCapital)
			r.Post("/inputs", h.StatementInputs)
		})

		// Period routes
		r.Route("/periods", func(r chi.Router) {
			r.Get("/{id}", h.GetPeriod)
			r.Get("/{id}/previous", h.GetPreviousPeriod)
		})
	})

	return r
}

// RequestLogger attaches a per-request logger to the context. Engine log
// lines are written through zerolog.Ctx, so this is what ties them to the
// request that triggered them.
func RequestLogger(logger *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			reqLogger := logger.With().
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Str("remote_ip", req.RemoteAddr).
				Logger()

			ctx := reqLogger.WithContext(req.Context())
			req = req.WithContext(ctx)

			next.ServeHTTP(w, req)
		})
	}
}
