// Package server runs winprep's agent mode: a small HTTP API for
// inspecting deployment state and triggering re-runs on a fleet
// workstation that keeps the agent resident after first boot.
//
// # Endpoints
//
//   - GET /api/health - simple health check, returns "ok"
//   - GET /api/status - run state plus the persisted per-task records
//   - POST /api/run - triggers a deployment run (token protected)
//   - GET /metrics - Prometheus scrape endpoint, when configured
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/jmcgill52/winprep/orchestrator"
	"github.com/jmcgill52/winprep/report"
	"github.com/jmcgill52/winprep/statestore"
)

const (
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second
)

// ErrRunInProgress is returned when attempting to start a run while one
// is already running.
var ErrRunInProgress = errors.New("deployment run already in progress")

// Deployer executes one deployment run.
type Deployer interface {
	Run(ctx context.Context) (orchestrator.RunOutcome, error)
}

// Server is the agent HTTP server. At most one deployment run executes
// at a time; concurrent trigger attempts are rejected.
type Server struct {
	addr       string
	logger     *slog.Logger
	deployer   Deployer
	store      statestore.Store
	tokenHash  string
	metrics    http.Handler
	cron       *CronTrigger
	httpServer *http.Server

	mu             sync.Mutex
	running        bool
	lastStarted    *time.Time
	lastEnded      *time.Time
	lastSummary    *report.Summary
	rebootRequired bool
	lastError      string
}

// Option configures a Server.
type Option func(*Server) error

// WithMetricsHandler exposes the given handler on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) error {
		s.metrics = h
		return nil
	}
}

// WithRunTokenHash protects POST /api/run with a bcrypt token hash.
// Without it, remote triggering is disabled.
func WithRunTokenHash(hash string) Option {
	return func(s *Server) error {
		s.tokenHash = hash
		return nil
	}
}

// WithSchedule triggers deployment runs on a cron schedule.
// The spec follows standard cron format (5 fields: minute, hour, day, month, weekday).
func WithSchedule(spec string) Option {
	return func(s *Server) error {
		trigger, err := NewCronTrigger(spec, RunnableFunc(func() error {
			return s.TriggerRun()
		}), s.logger)
		if err != nil {
			return fmt.Errorf("creating cron trigger: %w", err)
		}
		s.cron = trigger
		return nil
	}
}

// New creates a Server around a deployer and the shared state store.
func New(addr string, deployer Deployer, store statestore.Store, logger *slog.Logger, opts ...Option) (*Server, error) {
	s := &Server{
		addr:     addr,
		logger:   logger.With("component", "server"),
		deployer: deployer,
		store:    store,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// TriggerRun starts a deployment run in the background.
// Returns ErrRunInProgress if a run is already in progress.
func (s *Server) TriggerRun() error {
	if !s.tryStart() {
		return ErrRunInProgress
	}

	s.logger.Info("starting deployment run")

	go func() {
		outcome, err := s.deployer.Run(context.Background())
		s.finish(outcome, err)
	}()

	return nil
}

// IsRunning reports whether a deployment run is in progress.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// tryStart attempts to transition from idle to running.
func (s *Server) tryStart() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return false
	}

	now := time.Now()
	s.running = true
	s.lastStarted = &now
	s.lastEnded = nil
	s.lastError = ""
	return true
}

// finish transitions from running to idle and records the outcome.
func (s *Server) finish(outcome orchestrator.RunOutcome, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.running = false
	s.lastEnded = &now

	if err != nil {
		s.lastError = err.Error()
		s.logger.Error("deployment run failed", "error", err)
		return
	}

	s.lastSummary = &outcome.Summary
	s.rebootRequired = outcome.RebootRequired
	s.logger.Info("deployment run finished", "summary", outcome.Summary.String())
}

// Serve starts the HTTP server and blocks until the context is
// cancelled, then shuts down gracefully. The cron trigger, when
// configured, starts with the server and stops with the context.
func (s *Server) Serve(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/run", s.handleRun)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      mux,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
	}

	if s.cron != nil {
		s.logger.Info("starting scheduled runs", "next_run", s.cron.NextRun())
		s.cron.Start(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting agent server", "addr", s.addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down agent server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "ok")
}

// statusResponse is the JSON shape of GET /api/status.
type statusResponse struct {
	Running        bool                         `json:"running"`
	LastStarted    *time.Time                   `json:"last_started,omitempty"`
	LastEnded      *time.Time                   `json:"last_ended,omitempty"`
	LastError      string                       `json:"last_error,omitempty"`
	Summary        *report.Summary              `json:"summary,omitempty"`
	RebootRequired bool                         `json:"reboot_required"`
	NextRun        *time.Time                   `json:"next_run,omitempty"`
	Tasks          map[string]statestore.Record `json:"tasks"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.store.All()
	if err != nil {
		s.logger.Error("failed to read state store", "error", err)
		http.Error(w, "failed to read state store", http.StatusInternalServerError)
		return
	}

	s.mu.Lock()
	resp := statusResponse{
		Running:        s.running,
		LastStarted:    s.lastStarted,
		LastEnded:      s.lastEnded,
		LastError:      s.lastError,
		Summary:        s.lastSummary,
		RebootRequired: s.rebootRequired,
		Tasks:          tasks,
	}
	s.mu.Unlock()

	if s.cron != nil {
		next := s.cron.NextRun()
		resp.NextRun = &next
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("failed to encode status response", "error", err)
	}
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.tokenHash == "" {
		http.Error(w, "remote run trigger is disabled", http.StatusForbidden)
		return
	}

	token := bearerToken(r)
	if token == "" {
		http.Error(w, "missing run token", http.StatusUnauthorized)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.tokenHash), []byte(token)); err != nil {
		s.logger.Warn("run trigger rejected, invalid token", "remote", r.RemoteAddr)
		http.Error(w, "invalid run token", http.StatusUnauthorized)
		return
	}

	if err := s.TriggerRun(); err != nil {
		if errors.Is(err, ErrRunInProgress) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	fmt.Fprintln(w, "run started")
}

// bearerToken extracts the run token from the Authorization header.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if strings.HasPrefix(auth, prefix) {
		return strings.TrimSpace(auth[len(prefix):])
	}
	return ""
}
