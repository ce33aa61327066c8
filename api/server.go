/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the front-end
  5. Auth:       Caller identity (bearer JWT or X-Identity, see auth.go)

ROUTE GROUPS:
  /api/accounts/*       Registration and account reads
  /api/identities/*     Identity lookup
  /api/posts/*          Posts, replies and likes
  /api/stats            Ledger summary
  /api/scenarios/*      Demo scenarios (development only)
  /metrics              Prometheus

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
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	AllowedOrigins []string
	Auth           *Authenticator
	Metrics        http.Handler // served at /metrics when set
	Scenarios      bool         // mount /api/scenarios (development only)
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	if opts.Auth == nil {
		opts.Auth = &Authenticator{}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", IdentityHeader},
		AllowCredentials: true,
	}))

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(opts.Auth.Middleware)

		// Account routes
		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", h.Register)
			r.Get("/{id}", h.GetAccount)
			r.Get("/{id}/posts", h.ListUserPosts)
			r.Get("/{id}/posts/{index}", h.GetUserPostAt)
		})

		r.Get("/identities/{identity}", h.LookupIdentity)

		// Post routes
		r.Route("/posts", func(r chi.Router) {
			r.Get("/", h.Feed)
			r.Post("/", h.CreatePost)
			r.Get("/{id}", h.GetPost)
			r.Put("/{id}", h.EditPost)
			r.Delete("/{id}", h.RemovePost)
			r.Get("/{id}/thread", h.Thread)
			r.Get("/{id}/replies", h.ListReplies)
			r.Get("/{id}/replies/{index}", h.GetReplyAt)

			// Like routes
			r.Post("/{id}/like", h.Like)
			r.Delete("/{id}/like", h.Unlike)
			r.Get("/{id}/likes/{accountID}", h.IsLiked)
		})

		r.Get("/stats", h.Stats)

		// Scenario routes
		if opts.Scenarios {
			r.Route("/scenarios", func(r chi.Router) {
				r.Get("/", h.ListScenarios)
				r.Post("/load", h.LoadScenario)
			})
		}
	})

	return r
}
