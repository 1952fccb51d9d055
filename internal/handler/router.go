/*
Package handler provides the HTTP handlers and routing setup for the Stranger Chat Server.

This file defines the main Router, applying necessary middleware like logging, CORS,
and IP-based rate limiting before delegating requests to the WebSocket and admin handlers.
*/
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"strangerchat/internal/pkg/auth/jwt"
	"strangerchat/internal/pkg/limiter"
	"strangerchat/internal/pkg/logx"
	"strangerchat/internal/pkg/resp"
)

const (
	ConnectRate  = 0.5
	ConnectBurst = 10
	AdminRate    = 2
	AdminBurst   = 20
)

// Router sets up the main HTTP routing table (chi.Router) for the application.
// The rate limiters' cleanup goroutines stop when ctx is cancelled.
func Router(ctx context.Context, deps *AppDeps) http.Handler {
	connectLimiter := limiter.NewIPRateLimiter(ctx, rate.Limit(ConnectRate), ConnectBurst)
	adminLimiter := limiter.NewIPRateLimiter(ctx, rate.Limit(AdminRate), AdminBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	var wsUpgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.IsDevelopment() {
				return true
			}

			origin := r.Header.Get("Origin")
			if origin == "" {
				// Native mobile clients send no Origin header.
				return true
			}
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		data := map[string]string{
			"status":  "ok",
			"service": "Stranger Chat Server",
		}
		resp.RespondSuccess(w, r, data)
	})

	r.With(connectLimiter.Middleware).Get("/ws", HandleWebSocket(wsUpgrader, deps))

	r.Route("/admin", func(admin chi.Router) {
		admin.Use(adminLimiter.Middleware)
		admin.Use(jwt.RequireAdmin(deps.Config.AdminJWTSecret))

		admin.Get("/tokens", HandleListTokens(deps))
		admin.Get("/tokens/stats", HandleTokenStats(deps))
		admin.Delete("/tokens/{token}", HandleDeleteToken(deps))
		admin.Delete("/tokens", HandleDeleteAllTokens(deps))
		admin.Get("/engine", HandleEngineStats(deps))
	})

	return r
}
