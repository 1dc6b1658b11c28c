// Package web serves the display's status page, its JSON snapshot and the
// Prometheus metrics.
package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/sweeney/arrival-display/internal/logging"
	"github.com/sweeney/arrival-display/internal/status"
)

// ShutdownTimeout bounds how long Run waits for open requests once its
// context is cancelled.
const ShutdownTimeout = 5 * time.Second

// Options configure a Server.
type Options struct {
	Addr    string
	Tracker *status.Tracker
	Metrics http.Handler // mounted on /metrics when non-nil
	Log     *slog.Logger
}

// Server serves read-only views of a status.Tracker.
type Server struct {
	opts Options
	mux  *http.ServeMux
}

// New builds the routes. Only GET (and HEAD) are routed; other methods get
// 405 from the mux.
func New(opts Options) *Server {
	if opts.Log == nil {
		opts.Log = logging.Discard()
	}
	s := &Server{opts: opts, mux: http.NewServeMux()}
	s.mux.HandleFunc("GET /{$}", s.page)
	s.mux.HandleFunc("GET /index.html", s.page)
	s.mux.HandleFunc("GET /index.json", s.snapshot)
	if opts.Metrics != nil {
		s.mux.Handle("GET /metrics", opts.Metrics)
	}
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.mux }

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("http listen %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully. A clean
// shutdown returns nil.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	hs := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- hs.Serve(ln) }()
	s.opts.Log.Info("http status server listening", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		return fmt.Errorf("http serve: %w", err)
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	err := hs.Shutdown(sctx)
	if serr := <-errc; !errors.Is(serr, http.ErrServerClosed) {
		err = errors.Join(err, serr)
	}
	return err
}

func (s *Server) page(w http.ResponseWriter, _ *http.Request) {
	var buf bytes.Buffer
	if err := renderHTML(&buf, s.opts.Tracker.Snapshot()); err != nil {
		s.opts.Log.Error("render status page", "error", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

func (s *Server) snapshot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(status.FormatJSON(s.opts.Tracker.Snapshot()))
}
