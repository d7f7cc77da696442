package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultPath is where the metrics are served.
const DefaultPath = "/metrics"

// Server serves a Recorder's metrics and a health endpoint over HTTP.
type Server struct {
	addr     string
	path     string
	recorder *Recorder
	server   *http.Server
	listener net.Listener
	mu       sync.Mutex // protects server and listener
}

// NewServer creates a metrics server listening on addr (host:port).
func NewServer(addr string, rec *Recorder) *Server {
	return &Server{
		addr:     addr,
		path:     DefaultPath,
		recorder: rec,
	}
}

// Start binds the listener and serves in the background. Serve errors
// after a successful bind are sent to errc, if non-nil.
func (s *Server) Start(errc chan<- error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return errors.New("metrics server already running")
	}
	if s.recorder == nil {
		return errors.New("metrics server: nil recorder")
	}

	mux := http.NewServeMux()
	mux.Handle(s.path, promhttp.HandlerFor(s.recorder.Gatherer(), promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to start metrics server on %s: %w", s.addr, err)
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	srv := s.server
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) && errc != nil {
			errc <- err
		}
	}()
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// URL returns the metrics endpoint URL.
func (s *Server) URL() string {
	return "http://" + s.Addr() + s.path
}

// Shutdown stops the server, waiting for in-flight scrapes up to ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}
	err := s.server.Shutdown(ctx)
	s.server = nil
	s.listener = nil
	return err
}
