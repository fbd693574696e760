package dump

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/viant/sqlite-docstore/docstore"
	"github.com/viant/sqlite-docstore/vector"
)

// ErrTruncated is returned when a body ends without its terminator.
var ErrTruncated = errors.New("dump: truncated stream")

// maxField bounds id and embedding lengths read from a frame.
const maxField = 64 << 20

// Reader decodes a dump. It follows the cursor contract: call Next until it
// returns false, then check Err.
type Reader struct {
	dtype       vector.DType
	compression Compression
	src         *bufio.Reader
	release     func()
	closer      io.Closer
	current     docstore.Entry
	err         error
	done        bool
}

// NewReader reads the dump header from r. If r is an io.Closer, Close closes
// it.
func NewReader(r io.Reader) (*Reader, error) {
	header := make([]byte, len(Magic)+2)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("dump: read header: %w", err)
	}
	if string(header[:len(Magic)]) != Magic {
		return nil, fmt.Errorf("dump: bad magic %q", header[:len(Magic)])
	}
	compression := Compression(header[len(Magic)])
	var dtype vector.DType
	switch header[len(Magic)+1] {
	case 4:
		dtype = vector.Float32
	case 8:
		dtype = vector.Float64
	default:
		return nil, fmt.Errorf("dump: unsupported value width %d", header[len(Magic)+1])
	}
	body, release, err := compression.decompressor(r)
	if err != nil {
		return nil, err
	}
	ret := &Reader{dtype: dtype, compression: compression, src: bufio.NewReader(body), release: release}
	if c, ok := r.(io.Closer); ok {
		ret.closer = c
	}
	return ret, nil
}

// DType returns the embedding encoding announced by the header.
func (r *Reader) DType() vector.DType { return r.dtype }

// Compression returns the body compression announced by the header.
func (r *Reader) Compression() Compression { return r.compression }

// Next decodes the next entry.
func (r *Reader) Next() bool {
	if r.done {
		return false
	}
	e, end, err := r.frame()
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			err = ErrTruncated
		}
		r.err = err
		r.done = true
		return false
	}
	if end {
		r.done = true
		return false
	}
	r.current = e
	return true
}

func (r *Reader) frame() (docstore.Entry, bool, error) {
	var e docstore.Entry
	flags, err := r.src.ReadByte()
	if err != nil {
		return e, false, err
	}
	if flags == flagEnd {
		return e, true, nil
	}
	id, err := r.readBytes()
	if err != nil {
		return e, false, err
	}
	e.ID = string(id)
	if flags&flagEmbedding != 0 {
		raw, err := r.readBytes()
		if err != nil {
			return e, false, err
		}
		if e.Embedding, err = r.dtype.Decode(raw); err != nil {
			return e, false, err
		}
	}
	if flags&flagTimestamp != 0 {
		var ts [8]byte
		if _, err := io.ReadFull(r.src, ts[:]); err != nil {
			return e, false, err
		}
		e.LastUpdated = time.Unix(0, int64(binary.LittleEndian.Uint64(ts[:]))).UTC()
	}
	e.Tombstone = flags&flagTombstone != 0
	return e, false, nil
}

func (r *Reader) readBytes() ([]byte, error) {
	n, err := binary.ReadUvarint(r.src)
	if err != nil {
		return nil, err
	}
	if n > maxField {
		return nil, fmt.Errorf("dump: field of %d bytes exceeds limit", n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r.src, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Entry returns the entry Next decoded.
func (r *Reader) Entry() docstore.Entry { return r.current }

// Err returns the error that ended the stream, if any.
func (r *Reader) Err() error { return r.err }

// Close releases the decompressor and closes the source when it is a
// Closer.
func (r *Reader) Close() error {
	r.done = true
	if r.release != nil {
		r.release()
		r.release = nil
	}
	if r.closer != nil {
		c := r.closer
		r.closer = nil
		return c.Close()
	}
	return nil
}
