// Package httpserver runs the HTTP listener of the server and stops it
// gracefully when the context ends.
package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/vipkeeper/internal/logging"
)

type HTTPServer struct {
	address         string
	handler         http.Handler
	logger          logging.Logger
	certFile        string
	keyFile         string
	shutdownTimeout time.Duration
}

// Option configures an HTTPServer.
type Option func(*HTTPServer)

// WithTLS serves HTTPS with the given certificate pair.
func WithTLS(certFile, keyFile string) Option {
	return func(s *HTTPServer) {
		s.certFile, s.keyFile = certFile, keyFile
	}
}

// WithShutdownTimeout bounds how long in-flight requests may take to finish.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *HTTPServer) { s.shutdownTimeout = d }
}

func NewHTTPServer(address string, handler http.Handler, l logging.Logger, opts ...Option) *HTTPServer {
	if l == nil {
		l = logging.Nop()
	}
	s := &HTTPServer{
		address:         address,
		handler:         handler,
		logger:          l.With("module", "http_server"),
		shutdownTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run listens on the configured address and serves until ctx is done.
func (s *HTTPServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
// A clean shutdown returns nil.
func (s *HTTPServer) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	stopped := make(chan error, 1)
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
		defer cancel()
		stopped <- srv.Shutdown(shutdownCtx)
	}()

	var err error
	tls := s.certFile != "" && s.keyFile != ""
	s.logger.Info(ctx, "Starting HTTP server", "address", ln.Addr().String(), "tls", tls)

	if tls {
		err = srv.ServeTLS(ln, s.certFile, s.keyFile)
	} else {
		err = srv.Serve(ln)
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return <-stopped
}
