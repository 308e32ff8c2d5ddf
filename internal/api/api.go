// Package api provides the HTTP surface for Yard.
//
// It exposes the WhatsApp webhook endpoints (verification handshake and
// inbound message delivery) plus a health probe. The webhook always
// acknowledges deliveries with 200 once they parse; processing failures are
// logged and never bounced back to the channel, which would only trigger
// redelivery of a message we already marked processed.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/findhomeng/yard/internal/flow"
)

// Constants for API server configuration.
const (
	// DefaultAddr is the default listen address.
	DefaultAddr = ":8080"
	// DefaultHandlerTimeout bounds the processing of one webhook delivery.
	DefaultHandlerTimeout = 30 * time.Second
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr        string
	VerifyToken string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithVerifyToken sets the webhook verification token.
func WithVerifyToken(token string) Option {
	return func(o *Opts) { o.VerifyToken = token }
}

// Server routes webhook traffic into the dialog engine.
type Server struct {
	engine      *flow.Engine
	addr        string
	verifyToken string
}

// NewServer creates an API server over the given dialog engine. Falls back to
// the VERIFY_TOKEN environment variable when no token option is provided.
func NewServer(engine *flow.Engine, opts ...Option) (*Server, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.VerifyToken == "" {
		cfg.VerifyToken = os.Getenv("VERIFY_TOKEN")
	}
	if cfg.VerifyToken == "" {
		return nil, fmt.Errorf("webhook verify token not set")
	}
	return &Server{engine: engine, addr: cfg.Addr, verifyToken: cfg.VerifyToken}, nil
}

// Handler returns the server's route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", s.webhookHandler)
	mux.HandleFunc("/health", s.healthHandler)
	return mux
}

// Run starts the HTTP server and blocks until the context is cancelled or the
// listener fails.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Yard API running", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	}
}
