package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/cuemby/streakline/pkg/completion"
	"github.com/cuemby/streakline/pkg/enrollment"
	"github.com/cuemby/streakline/pkg/gateway"
	"github.com/cuemby/streakline/pkg/log"
	"github.com/cuemby/streakline/pkg/metrics"
	"github.com/cuemby/streakline/pkg/progress"
	"github.com/cuemby/streakline/pkg/schedule"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Config holds the HTTP listener settings
type Config struct {
	Addr      string
	RateLimit float64 // requests per second per client, 0 disables
	RateBurst int
}

// Deps are the engine components the API serves
type Deps struct {
	Gateway     gateway.Gateway
	Coordinator *enrollment.Coordinator
	Recorder    *completion.Recorder
	Progress    *progress.Service
	Sessions    *enrollment.Sessions
	Assigner    *schedule.Assigner
}

// Server is the HTTP JSON API
type Server struct {
	deps       Deps
	config     Config
	router     *mux.Router
	limiter    *RateLimiter
	httpServer *http.Server
	stopCh     chan struct{}
	stopOnce   sync.Once
	logger     zerolog.Logger
}

// NewServer creates the API server and registers its routes
func NewServer(deps Deps, cfg Config) *Server {
	s := &Server{
		deps:    deps,
		config:  cfg,
		router:  mux.NewRouter(),
		limiter: NewRateLimiter(cfg.RateLimit, cfg.RateBurst),
		stopCh:  make(chan struct{}),
		logger:  log.WithComponent("api"),
	}
	s.routes()
	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.router.Use(monitorMiddleware)

	s.router.HandleFunc("/health", metrics.HealthHandler()).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", metrics.ReadyHandler()).Methods(http.MethodGet)
	s.router.HandleFunc("/livez", metrics.LivenessHandler()).Methods(http.MethodGet)
	s.router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	v1 := s.router.PathPrefix("/v1").Subrouter()
	v1.Use(s.limiter.Middleware)

	v1.HandleFunc("/challenges/{challengeID}/enrollments", s.handleEnroll).Methods(http.MethodPost)
	v1.HandleFunc("/challenges/{challengeID}/enrollments/actions:retry", s.handleRetryActions).Methods(http.MethodPost)
	v1.HandleFunc("/challenges/{challengeID}/participants/{userID}", s.handleGetParticipant).Methods(http.MethodGet)
	v1.HandleFunc("/challenges/{challengeID}/standings", s.handleStanding).Methods(http.MethodGet)
	v1.HandleFunc("/challenges/{challengeID}/leaderboard", s.handleLeaderboard).Methods(http.MethodGet)
	v1.HandleFunc("/participants/{participantID}/completions", s.handleComplete).Methods(http.MethodPost)
}

// Handler returns the router for embedding or testing
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address and blocks until the server stops.
// It returns nil at once if Shutdown already ran.
func (s *Server) Start() error {
	s.limiter.StartCleanup(time.Hour, s.stopCh)

	metrics.RegisterComponent("api", true, "listening on "+s.config.Addr)
	s.logger.Info().Str("addr", s.config.Addr).Msg("API server listening")

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	metrics.UpdateComponent("api", false, err.Error())
	return err
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	metrics.UpdateComponent("api", false, "shutting down")
	return s.httpServer.Shutdown(ctx)
}

// errorResponse is the body of every non-2xx reply
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg, kind string) {
	writeJSON(w, code, errorResponse{Error: msg, Kind: kind})
}

func decode(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
