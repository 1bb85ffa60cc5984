// Package health serves liveness and readiness endpoints backed by named checks.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/fd1az/arbguard/internal/logger"
)

// Status is the body of /health.
type Status struct {
	Status    string           `json:"status"`
	Checks    map[string]Check `json:"checks"`
	Version   string           `json:"version,omitempty"`
	Timestamp string           `json:"timestamp"`
}

// Check is the outcome of one named check.
type Check struct {
	Healthy  bool   `json:"healthy"`
	Critical bool   `json:"critical"`
	Message  string `json:"message,omitempty"`
	Latency  string `json:"latency"`
}

// CheckFunc reports whether a dependency is healthy with an optional message.
type CheckFunc func(ctx context.Context) (bool, string)

type registered struct {
	fn       CheckFunc
	critical bool
}

// Server provides health check HTTP endpoints.
type Server struct {
	port    int
	version string
	log     logger.LoggerInterface
	mu      sync.RWMutex
	checks  map[string]registered
	server  *http.Server
}

// NewServer creates a new health check server.
func NewServer(port int, version string, log logger.LoggerInterface) *Server {
	return &Server{
		port:    port,
		version: version,
		log:     log,
		checks:  make(map[string]registered),
	}
}

// RegisterCheck registers a critical check: failing it fails readiness.
func (s *Server) RegisterCheck(name string, check CheckFunc) {
	s.register(name, check, true)
}

// RegisterInfoCheck registers a check that only degrades /health.
func (s *Server) RegisterInfoCheck(name string, check CheckFunc) {
	s.register(name, check, false)
}

func (s *Server) register(name string, check CheckFunc, critical bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = registered{fn: check, critical: critical}
}

// Handler returns the mux serving /health, /ready and /live.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	mux.HandleFunc("/live", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("alive"))
	})
	return mux
}

// Start binds the port and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("health listen: %w", err)
	}
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error(context.Background(), "health server stopped", "error", err)
		}
	}()
	return nil
}

// Stop gracefully stops the health check server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// Run executes every check concurrently.
func (s *Server) Run(ctx context.Context) map[string]Check {
	s.mu.RLock()
	checks := make(map[string]registered, len(s.checks))
	for k, v := range s.checks {
		checks[k] = v
	}
	s.mu.RUnlock()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]Check, len(checks))
	)
	for name, c := range checks {
		wg.Add(1)
		go func(name string, c registered) {
			defer wg.Done()
			start := time.Now()
			healthy, msg := c.fn(ctx)
			mu.Lock()
			results[name] = Check{
				Healthy:  healthy,
				Critical: c.critical,
				Message:  msg,
				Latency:  time.Since(start).String(),
			}
			mu.Unlock()
		}(name, c)
	}
	wg.Wait()
	return results
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := Status{
		Status:    "ok",
		Checks:    s.Run(ctx),
		Version:   s.version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	code := http.StatusOK
	for _, c := range status.Checks {
		if c.Healthy {
			continue
		}
		if c.Critical {
			status.Status = "down"
			code = http.StatusServiceUnavailable
			break
		}
		status.Status = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(status)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var failing []string
	for name, c := range s.Run(ctx) {
		if c.Critical && !c.Healthy {
			failing = append(failing, name)
		}
	}
	if len(failing) > 0 {
		sort.Strings(failing)
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintf(w, "not ready: %v", failing)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}
