package docstore

import (
	"encoding/json"
	"time"
)

// Document is a logical document. The payload persisted for it is the
// Codec encoding of the document without its embedding; the embedding is
// stored separately as a raw buffer in the configured dtype.
type Document struct {
	ID        string    `json:"id"`
	Content   string    `json:"content,omitempty"`
	Metadata  string    `json:"metadata,omitempty"`
	Embedding []float64 `json:"-"`
}

// Entry is one row produced by a streaming read.
type Entry struct {
	ID string
	// Embedding is nil when the row has none or is a tombstone.
	Embedding []float64
	// LastUpdated is set by Delta and Scan.
	LastUpdated time.Time
	// Tombstone is set by Delta and Scan for soft-deleted rows.
	Tombstone bool
	// Payload is set by Scan when payloads are requested.
	Payload []byte
}

// Codec serializes documents without their embedding.
type Codec interface {
	Marshal(doc Document) ([]byte, error)
	Unmarshal(data []byte) (Document, error)
}

// JSONCodec is the default Codec.
type JSONCodec struct{}

func (JSONCodec) Marshal(doc Document) ([]byte, error) {
	doc.Embedding = nil
	return json.Marshal(doc)
}

func (JSONCodec) Unmarshal(data []byte) (Document, error) {
	var doc Document
	err := json.Unmarshal(data, &doc)
	return doc, err
}
