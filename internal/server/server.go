package server

import (
	"context"
	"crypto/tls"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/ginkida/queue-probe/internal/admission"
	"github.com/ginkida/queue-probe/internal/config"
)

const readHeaderTimeout = 10 * time.Second

// Server wraps the HTTP server with graceful shutdown.
type Server struct {
	httpServer *http.Server
	cfg        *config.Config
}

// New creates a new Server answering health checks from evaluator.
func New(cfg *config.Config, evaluator *admission.Evaluator) *Server {
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           NewRouter(evaluator),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	if cfg.Server.TLS.Enabled() {
		srv.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	return &Server{
		httpServer: srv,
		cfg:        cfg,
	}
}

// Listen binds the configured address. A bind failure is a fatal startup error,
// so it is reported before the serve loop starts.
func (s *Server) Listen() (net.Listener, error) {
	return net.Listen("tcp", s.httpServer.Addr)
}

// Serve accepts connections on ln (TLS if configured, plaintext otherwise).
func (s *Server) Serve(ln net.Listener) error {
	if s.cfg.Server.TLS.Enabled() {
		log.Printf("Queue probe listening on %s (TLS)", ln.Addr())
		return s.httpServer.ServeTLS(ln,
			s.cfg.Server.TLS.CertFile,
			s.cfg.Server.TLS.KeyFile,
		)
	}
	log.Printf("Queue probe listening on %s", ln.Addr())
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server, letting in-flight checks finish.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down server...")
	return s.httpServer.Shutdown(ctx)
}
