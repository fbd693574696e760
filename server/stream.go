package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/viant/sqlite-docstore/docstore"
	"github.com/viant/sqlite-docstore/dump"
	"golang.org/x/time/rate"
)

// flushEvery is the number of entries between explicit flushes.
const flushEvery = 1024

func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) {
	shards, err := s.shards(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	compression, err := dump.ParseCompression(r.URL.Query().Get("compression"))
	if err != nil {
		badRequest(w, err)
		return
	}
	cursor, err := s.store.Snapshot(r.Context(), shards)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.stream(w, r, "snapshot", cursor, compression)
}

func (s *Server) delta(w http.ResponseWriter, r *http.Request) {
	shards, err := s.shards(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	compression, err := dump.ParseCompression(r.URL.Query().Get("compression"))
	if err != nil {
		badRequest(w, err)
		return
	}
	var since time.Time
	if text := r.URL.Query().Get("since"); text != "" {
		if since, err = time.Parse(time.RFC3339Nano, text); err != nil {
			badRequest(w, fmt.Errorf("invalid since %q: %w", text, err))
			return
		}
	}
	cursor, err := s.store.Delta(r.Context(), shards, since)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.stream(w, r, "delta", cursor, compression)
}

// stream writes cursor as a dump. Once the header is sent, failures can only
// be signalled by leaving out the terminator, which readers report as a
// truncated stream.
func (s *Server) stream(w http.ResponseWriter, r *http.Request, name string, cursor *docstore.Cursor, compression dump.Compression) {
	defer cursor.Close()
	ctx := r.Context()
	var limiter *rate.Limiter
	if s.opts.StreamRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.opts.StreamRate), s.opts.StreamBurst)
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	dw, err := dump.NewWriter(w, s.store.Config().DumpDType, compression)
	if err != nil {
		s.logger.ErrorContext(ctx, "stream failed", "stream", name, "error", err)
		return
	}
	flusher, _ := w.(http.Flusher)
	for cursor.Next() {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				s.logger.WarnContext(ctx, "stream aborted", "stream", name, "entries", dw.Count(), "error", err)
				return
			}
		}
		if err := dw.Write(cursor.Entry()); err != nil {
			s.logger.WarnContext(ctx, "stream aborted", "stream", name, "entries", dw.Count(), "error", err)
			return
		}
		if flusher != nil && dw.Count()%flushEvery == 0 {
			if err := dw.Flush(); err != nil {
				return
			}
			flusher.Flush()
		}
	}
	if err := cursor.Err(); err != nil {
		s.logger.ErrorContext(ctx, "stream failed", "stream", name, "entries", dw.Count(), "error", err)
		return
	}
	if err := dw.Close(); err != nil {
		s.logger.WarnContext(ctx, "stream aborted", "stream", name, "entries", dw.Count(), "error", err)
	}
}
