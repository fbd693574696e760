// Package server exposes a Store over HTTP: maintenance and size endpoints
// as JSON, snapshot and delta streams in the dump format, and Prometheus
// metrics.
package server
