package blob

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioOptions configures a Minio uploader.
type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Secure    bool
	Bucket    string
	// Prefix is prepended to every key.
	Prefix string
}

// Minio uploads to MinIO or any S3-compatible storage.
type Minio struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewMinio creates the client. No request is made until the first upload.
func NewMinio(opts MinioOptions) (*Minio, error) {
	if opts.Endpoint == "" || opts.Bucket == "" {
		return nil, fmt.Errorf("blob: endpoint and bucket are required")
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.Secure,
	})
	if err != nil {
		return nil, err
	}
	return &Minio{client: client, bucket: opts.Bucket, prefix: opts.Prefix}, nil
}

func (m *Minio) key(name string) string { return path.Join(m.prefix, name) }

// ensureBucket creates the bucket when it does not exist.
func (m *Minio) ensureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("blob: check bucket %s: %w", m.bucket, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("blob: create bucket %s: %w", m.bucket, err)
	}
	return nil
}

func (m *Minio) Upload(ctx context.Context, key, file string) error {
	if err := m.ensureBucket(ctx); err != nil {
		return err
	}
	_, err := m.client.FPutObject(ctx, m.bucket, m.key(key), file, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return fmt.Errorf("blob: upload %s: %w", key, err)
	}
	return nil
}

func (m *Minio) Create(ctx context.Context, key string) (io.WriteCloser, error) {
	if err := m.ensureBucket(ctx); err != nil {
		return nil, err
	}
	pr, pw := io.Pipe()
	w := &pipeWriter{pw: pw, done: make(chan error, 1)}
	go func() {
		_, err := m.client.PutObject(ctx, m.bucket, m.key(key), pr, -1, minio.PutObjectOptions{
			ContentType: "application/octet-stream",
		})
		_ = pr.CloseWithError(err)
		w.done <- err
	}()
	return w, nil
}

type pipeWriter struct {
	pw   *io.PipeWriter
	done chan error
}

func (w *pipeWriter) Write(p []byte) (int, error) { return w.pw.Write(p) }

// Close finishes the stream and waits for the upload.
func (w *pipeWriter) Close() error {
	if err := w.pw.Close(); err != nil {
		return err
	}
	return <-w.done
}
