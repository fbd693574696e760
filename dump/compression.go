package dump

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the body compression of a dump.
type Compression uint8

const (
	// None writes the body as is.
	None Compression = 0
	// LZ4 compresses the body with the lz4 frame format.
	LZ4 Compression = 1
	// Zstd compresses the body with zstd.
	Zstd Compression = 2
)

// ParseCompression resolves a compression name; "" means None.
func ParseCompression(name string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd", "zst":
		return Zstd, nil
	default:
		return None, fmt.Errorf("dump: unsupported compression %q", name)
	}
}

func (c Compression) String() string {
	switch c {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// compressor returns a writer compressing into w. Closing it flushes the
// compressed stream but leaves w open.
func (c Compression) compressor(w io.Writer) (io.WriteCloser, error) {
	switch c {
	case None:
		return nopWriteCloser{w}, nil
	case LZ4:
		return lz4.NewWriter(w), nil
	case Zstd:
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	default:
		return nil, fmt.Errorf("dump: unsupported compression %d", uint8(c))
	}
}

func (c Compression) decompressor(r io.Reader) (io.Reader, func(), error) {
	switch c {
	case None:
		return r, func() {}, nil
	case LZ4:
		return lz4.NewReader(r), func() {}, nil
	case Zstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return dec, dec.Close, nil
	default:
		return nil, nil, fmt.Errorf("dump: unsupported compression %d", uint8(c))
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
