package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/hongminglow/aratiri-client/internal/auth"
	"github.com/hongminglow/aratiri-client/internal/config"
	"github.com/hongminglow/aratiri-client/internal/http/handlers"
	"github.com/hongminglow/aratiri-client/internal/ledger"
	"github.com/hongminglow/aratiri-client/internal/middleware"
)

// APIPrefix is where the wallet API is mounted.
const APIPrefix = "/v1"

// Server wraps an http.Server with configured routes.
type Server struct {
	inner *http.Server
}

// New wires up middleware, routes, and returns a ready server.
func New(cfg config.ServerConfig, l *ledger.Ledger) *Server {
	// Notification streams never go idle on their own; ending the base
	// context on shutdown lets them return.
	base, cancel := context.WithCancel(context.Background())
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           Handler(cfg, l),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return base },
	}
	httpServer.RegisterOnShutdown(cancel)

	return &Server{inner: httpServer}
}

// Handler builds the routed, middleware-wrapped handler. Tests mount it on
// httptest servers directly.
func Handler(cfg config.ServerConfig, l *ledger.Ledger) http.Handler {
	tokenManager := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)

	r := mux.NewRouter()
	handlers.NewHealthHandler(time.Now()).Register(r)

	api := r.PathPrefix(APIPrefix).Subrouter()
	handlers.NewAuthHandler(l, tokenManager).Register(api)

	private := api.NewRoute().Subrouter()
	private.Use(middleware.Authenticate(tokenManager))
	handlers.NewAccountHandler(l).Register(private)
	handlers.NewPaymentHandler(l).Register(private)
	handlers.NewNotificationHandler(l.Hub()).Register(private)

	return middleware.CORS(cfg.CORSOrigins)(middleware.Logging(r))
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
