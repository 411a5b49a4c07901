package microservice

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// HealthChecker reports broker liveness. The dispatch service satisfies it.
type HealthChecker interface {
	IsHealthy(ctx context.Context) bool
}

// ProducerServer exposes the producer's liveness over HTTP so external
// orchestration can poll it, and owns graceful shutdown of that surface.
type ProducerServer struct {
	Logger       zerolog.Logger
	HTTPPort     string
	httpServer   *http.Server
	mux          *http.ServeMux
	health       HealthChecker
	probeTimeout time.Duration
	actualAddr   string
	mu           sync.RWMutex
}

// NewProducerServer creates and initializes a new ProducerServer. The health
// endpoint probes checker with a bounded timeout so a hung broker connection
// cannot stall the poller.
func NewProducerServer(logger zerolog.Logger, httpPort string, checker HealthChecker) *ProducerServer {
	s := &ProducerServer{
		Logger:       logger,
		HTTPPort:     httpPort,
		health:       checker,
		probeTimeout: 5 * time.Second,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.healthzHandler)
	mux.HandleFunc("/readyz", readyzHandler)
	s.mux = mux
	s.httpServer = &http.Server{
		Addr:    httpPort,
		Handler: mux,
	}
	return s
}

// Start initiates the HTTP server in a background goroutine.
func (s *ProducerServer) Start() error {
	listener, err := net.Listen("tcp", s.HTTPPort)
	if err != nil {
		return fmt.Errorf("failed to listen on port %s: %w", s.HTTPPort, err)
	}

	s.mu.Lock()
	s.actualAddr = listener.Addr().String()
	s.mu.Unlock()

	s.Logger.Info().Str("address", s.actualAddr).Msg("HTTP server starting to listen")

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Logger.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	return nil
}

// Shutdown gracefully stops the HTTP server, respecting the provided
// context's deadline.
func (s *ProducerServer) Shutdown(ctx context.Context) error {
	s.Logger.Info().Msg("Shutting down HTTP server...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.Logger.Error().Err(err).Msg("Error during HTTP server shutdown.")
		return err
	}
	s.Logger.Info().Msg("HTTP server stopped.")
	return nil
}

// GetHTTPPort returns the actual port the server is listening on, which may
// differ from the configured one when port 0 was requested.
func (s *ProducerServer) GetHTTPPort() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, port, err := net.SplitHostPort(s.actualAddr)
	if err != nil {
		return s.HTTPPort
	}
	return ":" + port
}

// Mux returns the underlying ServeMux.
func (s *ProducerServer) Mux() *http.ServeMux {
	return s.mux
}

// healthzHandler reports broker liveness: 200 when the cluster is reachable
// and the task topic exists, 503 otherwise.
func (s *ProducerServer) healthzHandler(w http.ResponseWriter, r *http.Request) {
	probeCtx, cancel := context.WithTimeout(r.Context(), s.probeTimeout)
	defer cancel()

	if !s.health.IsHealthy(probeCtx) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("UNAVAILABLE"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// readyzHandler reports that the process is up and serving. Readiness of the
// broker connection is healthz's concern.
func readyzHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
