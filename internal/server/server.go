package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/teamforge/internal/agents"
	"github.com/jonathan/teamforge/internal/agents/planner"
	"github.com/jonathan/teamforge/internal/agents/teamformation"
	"github.com/jonathan/teamforge/internal/config"
	"github.com/jonathan/teamforge/internal/llm"
	"github.com/jonathan/teamforge/internal/logging"
	"github.com/jonathan/teamforge/internal/server/middleware"
	"github.com/jonathan/teamforge/internal/server/ratelimit"
	"github.com/jonathan/teamforge/internal/types"
	"github.com/jonathan/teamforge/internal/vector"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Store is the persistence the handlers need. *db.DB implements it.
type Store interface {
	agents.ArtifactStore
	GetProject(ctx context.Context, id string) (*types.Project, error)
	ProfileTimezone(ctx context.Context, userID string) (string, error)
	UpsertProfile(ctx context.Context, p *types.Profile) error
	CreateRun(ctx context.Context, pipeline, projectID string) (uuid.UUID, error)
	CompleteRun(ctx context.Context, runID uuid.UUID, status string, errMsg *string) error
	SaveRecommendations(ctx context.Context, projectID string, runID uuid.UUID, recs []types.Recommendation, errMsg *string) (uuid.UUID, error)
	UpsertRoadmap(ctx context.Context, r *types.Roadmap) error
	GetRoadmap(ctx context.Context, projectID string) (*types.Roadmap, error)
	UpdateTaskStatus(ctx context.Context, projectID, taskID string, status types.TaskStatus) (*types.Roadmap, error)
	LatestRecommendations(ctx context.Context, projectID string) ([]types.Recommendation, *string, error)
}

// Deps are the collaborators a Server is built from.
type Deps struct {
	Store   Store
	LLM     llm.Client
	Vectors vector.Store
	Logger  *slog.Logger
	// Now is the clock used to date roadmaps; time.Now when nil.
	Now func() time.Time
}

// Server serves the agent API.
type Server struct {
	httpServer  *http.Server
	handler     http.Handler
	cfg         *config.Config
	store       Store
	vectors     vector.Store
	teams       *teamformation.Pipeline
	planner     *planner.Pipeline
	rateLimiter *ratelimit.Limiter
	jwtService  *JWTService
	logger      *slog.Logger
	now         func() time.Time
}

// New wires a server from configuration and dependencies.
func New(cfg *config.Config, deps Deps) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("server requires a store")
	}
	if deps.LLM == nil {
		return nil, fmt.Errorf("server requires an LLM client")
	}
	if deps.Vectors == nil {
		return nil, fmt.Errorf("server requires a vector store")
	}

	logger := logging.OrDiscard(deps.Logger)
	s := &Server{
		cfg:     cfg,
		store:   deps.Store,
		vectors: deps.Vectors,
		logger:  logger,
		now:     deps.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}

	s.teams = teamformation.New(deps.LLM, deps.Vectors)
	s.teams.TopK = cfg.Vector.TopK
	s.teams.MaxDiff = cfg.Agents.MaxTimezoneDiff
	s.teams.Logger = logger

	s.planner = planner.New(deps.LLM)
	s.planner.MaxParallel = cfg.Agents.MaxParallelTasks
	s.planner.Logger = logger

	rl := cfg.RateLimit
	s.rateLimiter = ratelimit.NewLimiter(ratelimit.NewConfig(
		rl.Enabled, rl.DefaultLimit, rl.DefaultWindow, rl.CleanupInterval, rl.Whitelist, rl.Blacklist,
	))

	if cfg.Auth.JWTSecret != "" {
		jwtConfig, err := cfg.JWT()
		if err != nil {
			return nil, fmt.Errorf("failed to create JWT config: %w", err)
		}
		s.jwtService = NewJWTService(jwtConfig)
	} else if cfg.Auth.Required {
		return nil, fmt.Errorf("auth.required needs auth.jwt_secret")
	}

	api := http.NewServeMux()
	api.HandleFunc("POST /api/agents/team-formation", s.handleTeamFormation)
	api.HandleFunc("GET /api/agents/team-formation/{project_id}", s.handleGetRecommendations)
	api.HandleFunc("POST /api/agents/project-planner", s.handleProjectPlanner)
	api.HandleFunc("POST /api/agents/project-planner/stream", s.handleProjectPlannerStream)
	api.HandleFunc("GET /api/planned-projects/project/{project_id}", s.handleGetPlannedProject)
	api.HandleFunc("PATCH /api/planned-projects/tasks", s.handleUpdateTaskStatus)
	api.HandleFunc("POST /api/profiles/index", s.handleIndexProfile)

	var apiHandler http.Handler = api
	if s.jwtService != nil {
		apiHandler = middleware.AuthMiddleware(s.jwtService.AsTokenValidator(), cfg.Auth.Required)(api)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("/api/", apiHandler)

	s.handler = s.withRateLimit(s.withLogging(s.withCORS(mux)))
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// JWT returns the token service, or nil when auth is not configured.
func (s *Server) JWT() *JWTService {
	return s.jwtService
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.Close()
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	err := s.httpServer.Shutdown(shutdownCtx)
	s.Close()
	if err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// Close stops background work owned by the server.
func (s *Server) Close() {
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
}

// withCORS adds CORS headers for the configured origins.
func (s *Server) withCORS(next http.Handler) http.Handler {
	origins := s.cfg.Server.CORSOrigins
	wildcard := slices.Contains(origins, "*")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case wildcard:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && slices.Contains(origins, origin):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withRateLimit rejects clients over their token bucket with 429.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(clientID(r), r.URL.Path, r.Method)
		setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, r, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status and keeps streaming working.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// withLogging logs one line per request.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
			"remote", r.RemoteAddr,
		)
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decode reads a JSON body into v and runs its Validate method.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{ Validate() error }) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return &ErrValidation{Field: "body", Message: "invalid JSON: " + err.Error()}
	}
	return v.Validate()
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", "error", err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// writeError maps err to a status code and writes it.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	s.errorResponse(w, status, ErrorMessage(err))
}

// clientID identifies the caller by remote IP.
func clientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
	}
}

func (s *Server) rateLimitResponse(w http.ResponseWriter, r *http.Request, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
	}
	if !info.ResetTime.IsZero() {
		response["reset_at"] = info.ResetTime.Format(time.RFC3339)
	}
	if info.RetryAfter > 0 {
		seconds := max(1, int(info.RetryAfter.Seconds()))
		response["retry_after"] = seconds
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}

	s.logger.Warn("rate limit exceeded", "client", clientID(r), "path", r.URL.Path, "limit", info.Limit)
	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
