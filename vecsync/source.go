package vecsync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/viant/sqlite-docstore/docstore"
	"github.com/viant/sqlite-docstore/dump"
	"github.com/viant/sqlite-docstore/shard"
)

// Source provides the snapshot and delta streams a replica follows.
type Source interface {
	SnapshotTimestamp(ctx context.Context) (time.Time, error)
	Snapshot(ctx context.Context, shards *shard.Set) (Iterator, error)
	Delta(ctx context.Context, shards *shard.Set, since time.Time) (Iterator, error)
}

// StoreSource reads from a store in the same process.
type StoreSource struct {
	Store *docstore.Store
}

func (s StoreSource) SnapshotTimestamp(ctx context.Context) (time.Time, error) {
	return s.Store.SnapshotTimestamp(ctx)
}

func (s StoreSource) Snapshot(ctx context.Context, shards *shard.Set) (Iterator, error) {
	cursor, err := s.Store.Snapshot(ctx, shards)
	if err != nil {
		return nil, err
	}
	return cursor, nil
}

func (s StoreSource) Delta(ctx context.Context, shards *shard.Set, since time.Time) (Iterator, error) {
	cursor, err := s.Store.Delta(ctx, shards, since)
	if err != nil {
		return nil, err
	}
	return cursor, nil
}

// HTTPSource reads dump streams from a store server.
type HTTPSource struct {
	// BaseURL is the server root, e.g. "http://localhost:8080".
	BaseURL string
	// Client defaults to http.DefaultClient.
	Client *http.Client
	// Compression is requested for streams.
	Compression dump.Compression
}

func (s *HTTPSource) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return http.DefaultClient
}

func (s *HTTPSource) get(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	u := strings.TrimRight(s.BaseURL, "/") + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("vecsync: GET %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("vecsync: GET %s: %s: %s", path, resp.Status, strings.TrimSpace(string(msg)))
	}
	return resp, nil
}

func (s *HTTPSource) SnapshotTimestamp(ctx context.Context) (time.Time, error) {
	resp, err := s.get(ctx, "/snapshot/timestamp", nil)
	if err != nil {
		return time.Time{}, err
	}
	defer resp.Body.Close()
	var body struct {
		Timestamp time.Time `json:"timestamp"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return time.Time{}, fmt.Errorf("vecsync: decode snapshot timestamp: %w", err)
	}
	return body.Timestamp, nil
}

func (s *HTTPSource) Snapshot(ctx context.Context, shards *shard.Set) (Iterator, error) {
	return s.stream(ctx, "/snapshot", url.Values{"shards": {shards.String()}})
}

func (s *HTTPSource) Delta(ctx context.Context, shards *shard.Set, since time.Time) (Iterator, error) {
	query := url.Values{"shards": {shards.String()}}
	if !since.IsZero() {
		query.Set("since", since.UTC().Format(time.RFC3339Nano))
	}
	return s.stream(ctx, "/delta", query)
}

func (s *HTTPSource) stream(ctx context.Context, path string, query url.Values) (Iterator, error) {
	query.Set("compression", s.Compression.String())
	resp, err := s.get(ctx, path, query)
	if err != nil {
		return nil, err
	}
	r, err := dump.NewReader(resp.Body)
	if err != nil {
		resp.Body.Close()
		return nil, err
	}
	return r, nil
}
