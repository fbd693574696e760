package dump

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/viant/sqlite-docstore/docstore"
	"github.com/viant/sqlite-docstore/vector"
)

// Magic opens every dump.
const Magic = "DSD1"

const (
	flagEmbedding byte = 1 << iota
	flagTimestamp
	flagTombstone
	flagEnd byte = 0x80
)

// ErrClosed is returned by Write after Close.
var ErrClosed = errors.New("dump: writer is closed")

// Writer encodes entries into a dump. It is not safe for concurrent use.
type Writer struct {
	dtype   vector.DType
	comp    io.WriteCloser
	buf     *bufio.Writer
	scratch [binary.MaxVarintLen64]byte
	count   int
	closed  bool
}

// NewWriter writes the dump header to w and returns a Writer encoding
// embeddings as dtype.
func NewWriter(w io.Writer, dtype vector.DType, compression Compression) (*Writer, error) {
	if !dtype.Valid() {
		return nil, fmt.Errorf("dump: unsupported dtype %q", string(dtype))
	}
	header := append([]byte(Magic), byte(compression), byte(dtype.Size()))
	if _, err := w.Write(header); err != nil {
		return nil, fmt.Errorf("dump: write header: %w", err)
	}
	comp, err := compression.compressor(w)
	if err != nil {
		return nil, err
	}
	return &Writer{dtype: dtype, comp: comp, buf: bufio.NewWriter(comp)}, nil
}

// Write appends one entry.
func (w *Writer) Write(e docstore.Entry) error {
	if w.closed {
		return ErrClosed
	}
	var flags byte
	embedding, err := w.dtype.Encode(e.Embedding)
	if err != nil {
		return err
	}
	if embedding != nil {
		flags |= flagEmbedding
	}
	if !e.LastUpdated.IsZero() {
		flags |= flagTimestamp
	}
	if e.Tombstone {
		flags |= flagTombstone
	}
	if err := w.buf.WriteByte(flags); err != nil {
		return err
	}
	if err := w.writeBytes([]byte(e.ID)); err != nil {
		return err
	}
	if flags&flagEmbedding != 0 {
		if err := w.writeBytes(embedding); err != nil {
			return err
		}
	}
	if flags&flagTimestamp != 0 {
		binary.LittleEndian.PutUint64(w.scratch[:8], uint64(e.LastUpdated.UnixNano()))
		if _, err := w.buf.Write(w.scratch[:8]); err != nil {
			return err
		}
	}
	w.count++
	return nil
}

func (w *Writer) writeBytes(b []byte) error {
	n := binary.PutUvarint(w.scratch[:], uint64(len(b)))
	if _, err := w.buf.Write(w.scratch[:n]); err != nil {
		return err
	}
	_, err := w.buf.Write(b)
	return err
}

// Count returns the number of entries written so far.
func (w *Writer) Count() int { return w.count }

// Flush pushes buffered frames to the compressor.
func (w *Writer) Flush() error { return w.buf.Flush() }

// Close writes the terminator and flushes the body. The underlying writer
// is not closed.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.buf.WriteByte(flagEnd); err != nil {
		return err
	}
	if err := w.buf.Flush(); err != nil {
		return err
	}
	return w.comp.Close()
}

// Iterator is the streaming contract shared by store cursors and dump
// readers.
type Iterator interface {
	Next() bool
	Entry() docstore.Entry
	Err() error
}

// Copy writes every entry of it to w and returns how many were written. It
// does not close w.
func Copy(w *Writer, it Iterator) (int, error) {
	n := 0
	for it.Next() {
		if err := w.Write(it.Entry()); err != nil {
			return n, err
		}
		n++
	}
	return n, it.Err()
}
