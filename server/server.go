package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/viant/sqlite-docstore/docstore"
	"github.com/viant/sqlite-docstore/shard"
)

// Options configures a Server.
type Options struct {
	// StreamRate limits snapshot and delta streams to this many entries per
	// second per request. Zero disables throttling.
	StreamRate float64
	// StreamBurst is the limiter burst, StreamRate rounded up by default.
	StreamBurst int
	// Logger defaults to the no-op logger.
	Logger *docstore.Logger
}

// Server serves one store.
type Server struct {
	store  *docstore.Store
	opts   Options
	logger *docstore.Logger
	router chi.Router
}

// New returns a Server for store.
func New(store *docstore.Store, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = docstore.NoopLogger()
	}
	if opts.StreamRate > 0 && opts.StreamBurst <= 0 {
		opts.StreamBurst = int(opts.StreamRate + 0.999)
	}
	s := &Server{store: store, opts: opts, logger: opts.Logger}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", s.health)
	r.Get("/size", s.size)
	r.Post("/cleanup", s.cleanup)
	r.Get("/timestamp", s.dataTimestamp)
	r.Post("/snapshot", s.createSnapshot)
	r.Get("/snapshot", s.snapshot)
	r.Get("/snapshot/size", s.snapshotSize)
	r.Get("/snapshot/timestamp", s.snapshotTimestamp)
	r.Get("/delta", s.delta)
	r.Get("/metrics", s.metrics)
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errs := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errs <- srv.ListenAndServe()
	}()
	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}
	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdown); err != nil {
		return err
	}
	if err := <-errs; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case docstore.IsTransient(err), errors.Is(err, docstore.ErrDryRun), errors.Is(err, docstore.ErrClosed):
		status = http.StatusServiceUnavailable
	}
	s.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func badRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "initialized": s.store.Initialized()})
}

func (s *Server) size(w http.ResponseWriter, r *http.Request) {
	n, err := s.store.Size(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"size": n})
}

func (s *Server) cleanup(w http.ResponseWriter, r *http.Request) {
	n, err := s.store.Cleanup(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"removed": n})
}

func (s *Server) createSnapshot(w http.ResponseWriter, r *http.Request) {
	if err := s.store.CreateSnapshot(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	n, err := s.store.SnapshotSize(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"size": n})
}

func (s *Server) snapshotSize(w http.ResponseWriter, r *http.Request) {
	n, err := s.store.SnapshotSize(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"size": n})
}

type timestampResponse struct {
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) snapshotTimestamp(w http.ResponseWriter, r *http.Request) {
	ts, err := s.store.SnapshotTimestamp(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, timestampResponse{Timestamp: ts})
}

func (s *Server) dataTimestamp(w http.ResponseWriter, r *http.Request) {
	ts, err := s.store.DataTimestamp(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, timestampResponse{Timestamp: ts})
}

func (s *Server) metrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	s.store.WritePrometheus(w)
}

// shards parses the shards query parameter; all shards by default.
func (s *Server) shards(r *http.Request) (*shard.Set, error) {
	text := r.URL.Query().Get("shards")
	if text == "" {
		return shard.Range(0, s.store.Config().Partitions), nil
	}
	return shard.ParseSet(text)
}
