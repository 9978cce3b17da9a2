// Package server is the HTTP and websocket front door to the agent.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"

	"nlcp/agent"
	"nlcp/aitools"
	"nlcp/config"
	"nlcp/llm"
	"nlcp/streamers"
)

// TurnRunner is the part of *agent.Agent the server drives.
type TurnRunner interface {
	Stream(ctx context.Context, userMessage string, history []llm.Message, handler streamers.TurnHandler) (agent.TurnResult, error)
	Tools() []aitools.ToolDescriptor
}

// HealthChecker reports per-provider health; *plugin.Supervisor satisfies it.
type HealthChecker interface {
	Health(ctx context.Context) map[string]error
}

// Options configure a Server.
type Options struct {
	// Agent answers turns. A nil agent makes /query and /ws answer 503.
	Agent     TurnRunner
	Providers HealthChecker
	Config    *config.Server
	Logger    hclog.Logger
}

// Server serves the query API.
type Server struct {
	router    chi.Router
	http      *http.Server
	agent     TurnRunner
	providers HealthChecker
	cfg       *config.Server
	upgrader  websocket.Upgrader
	logger    hclog.Logger
}

// New builds the router and its middleware.
func New(opts Options) *Server {
	cfg := opts.Config
	if cfg == nil {
		cfg = &config.Server{}
	}
	cfg.Defaults()
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	s := &Server{
		router:    chi.NewRouter(),
		agent:     opts.Agent,
		providers: opts.Providers,
		cfg:       cfg,
		logger:    logger.Named("server"),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.http = &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       65 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: !slices.Contains(s.cfg.AllowedOrigins, "*"),
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(s.cfg.GetRequestTimeout()))
		r.Get("/health", s.handleHealth)
		r.Get("/tools", s.handleTools)
		r.Post("/query", s.handleQuery)
	})
	// Websocket sessions outlive a single request budget; each turn carries
	// the agent's own turn timeout instead.
	s.router.Get("/ws", s.handleWS)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe blocks until the server stops. It returns nil after Shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Info("listening", "addr", s.cfg.Listen)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")
	return s.http.Shutdown(ctx)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || slices.Contains(s.cfg.AllowedOrigins, "*") {
		return true
	}
	return slices.Contains(s.cfg.AllowedOrigins, origin)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := healthResponse{Status: "ok", Providers: map[string]string{}}
	if s.agent == nil {
		status = http.StatusServiceUnavailable
		body.Status = "starting"
	}
	if s.providers != nil {
		for name, err := range s.providers.Health(r.Context()) {
			if err != nil {
				status = http.StatusServiceUnavailable
				body.Status = "degraded"
				body.Providers[name] = err.Error()
				continue
			}
			body.Providers[name] = "ok"
		}
	}
	writeJSON(w, status, body)
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	if s.agent == nil {
		writeError(w, http.StatusServiceUnavailable, errAgentNotReady)
		return
	}
	writeJSON(w, http.StatusOK, s.agent.Tools())
}

type healthResponse struct {
	Status    string            `json:"status"`
	Providers map[string]string `json:"providers"`
}

type errorResponse struct {
	Error string `json:"error"`
}

const errAgentNotReady = "The agent is not initialized. Check the server startup logs."

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
