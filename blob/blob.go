package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Uploader stores dump files under a key.
type Uploader interface {
	// Upload copies the local file at path to key.
	Upload(ctx context.Context, key, path string) error
	// Create returns a writer streaming to key. The object is complete once
	// Close returns nil.
	Create(ctx context.Context, key string) (io.WriteCloser, error)
}

// Dir is an Uploader writing into a local directory, used for file:// targets
// and tests.
type Dir string

func (d Dir) target(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("blob: empty key")
	}
	target := filepath.Join(string(d), clean)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", err
	}
	return target, nil
}

func (d Dir) Upload(ctx context.Context, key, path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := d.Create(ctx, key)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return err
	}
	return dst.Close()
}

func (d Dir) Create(_ context.Context, key string) (io.WriteCloser, error) {
	target, err := d.target(key)
	if err != nil {
		return nil, err
	}
	return os.Create(target)
}

// Open resolves a target URL: "s3://bucket/prefix" uses minio with opts
// providing endpoint and credentials, "file:///dir" or a plain path writes
// into a directory.
func Open(target string, opts MinioOptions) (Uploader, error) {
	switch {
	case strings.HasPrefix(target, "s3://"):
		bucket, prefix, _ := strings.Cut(strings.TrimPrefix(target, "s3://"), "/")
		if bucket == "" {
			return nil, fmt.Errorf("blob: missing bucket in %q", target)
		}
		opts.Bucket, opts.Prefix = bucket, prefix
		m, err := NewMinio(opts)
		if err != nil {
			return nil, err
		}
		return m, nil
	case strings.HasPrefix(target, "file://"):
		return Dir(strings.TrimPrefix(target, "file://")), nil
	case target == "":
		return nil, fmt.Errorf("blob: empty target")
	default:
		return Dir(target), nil
	}
}
