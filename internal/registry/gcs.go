package registry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

const gcsTimeout = 2 * time.Minute

// GCSStore keeps artifacts as objects in a Cloud Storage bucket under an optional prefix.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSStore opens a storage client for bucket.
func NewGCSStore(ctx context.Context, bucket, prefix string, opts ...option.ClientOption) (*GCSStore, error) {
	if bucket == "" {
		return nil, errors.New("gcs bucket is required")
	}
	opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket, prefix: prefix}, nil
}

// Put uploads data as name. The object only becomes visible once the writer closes
// cleanly.
func (s *GCSStore) Put(ctx context.Context, name string, data []byte) error {
	const op = "registry.GCSStore.Put"
	if err := checkName(op, name); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, gcsTimeout)
	defer cancel()

	w := s.object(name).NewWriter(ctx)
	w.ContentType = "application/json"
	if err := upload(w, cancel, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// upload copies r into w and closes it. A failed copy cancels the writer's context before
// Close so the partial object is discarded rather than committed.
func upload(w io.WriteCloser, cancel context.CancelFunc, r io.Reader) error {
	if _, err := io.Copy(w, r); err != nil {
		cancel()
		_ = w.Close()
		return fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return nil
}

// Get downloads name.
func (s *GCSStore) Get(ctx context.Context, name string) ([]byte, error) {
	const op = "registry.GCSStore.Get"
	if err := checkName(op, name); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, gcsTimeout)
	defer cancel()

	r, err := s.object(name).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, notFound(op, name)
		}
		return nil, fmt.Errorf("%s: failed to open GCS reader: %w", op, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%s: read %s: %w", op, name, err)
	}
	return data, nil
}

// Exists reports whether the object is present.
func (s *GCSStore) Exists(ctx context.Context, name string) (bool, error) {
	if err := checkName("registry.GCSStore.Exists", name); err != nil {
		return false, err
	}
	_, err := s.object(name).Attrs(ctx)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, storage.ErrObjectNotExist):
		return false, nil
	default:
		return false, err
	}
}

// Size implements Sizer.
func (s *GCSStore) Size(ctx context.Context, name string) (int64, error) {
	const op = "registry.GCSStore.Size"
	attrs, err := s.object(name).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return 0, notFound(op, name)
		}
		return 0, err
	}
	return attrs.Size, nil
}

// Delete removes the object if present.
func (s *GCSStore) Delete(ctx context.Context, name string) error {
	const op = "registry.GCSStore.Delete"
	if err := checkName(op, name); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, gcsTimeout)
	defer cancel()
	if err := s.object(name).Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("%s: failed to delete object: %w", op, err)
	}
	return nil
}

// Close releases the storage client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

func (s *GCSStore) object(name string) *storage.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(objectKey(s.prefix, name))
}

func objectKey(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}
