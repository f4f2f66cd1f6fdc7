package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"github.com/dvloznov/finance-analytics/internal/domain"
)

const uploadTimeout = 2 * time.Minute

// GCSStore keeps artifacts as objects under a prefix in one bucket.
// It assumes Application Default Credentials are configured.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSStore creates a storage client bound to bucket and prefix.
func NewGCSStore(ctx context.Context, bucket, prefix string) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewGCSStore: create storage client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket, prefix: prefix}, nil
}

// Close releases the storage client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

func (s *GCSStore) object(name string) *storage.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(path.Join(s.prefix, name))
}

// Put implements Store.
func (s *GCSStore) Put(ctx context.Context, name string, data []byte) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := s.object(name).NewWriter(ctx)
	w.ContentType = "application/pdf"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("Put: write gs://%s/%s: %w", s.bucket, path.Join(s.prefix, name), err)
	}
	// Close finalizes the upload
	if err := w.Close(); err != nil {
		return fmt.Errorf("Put: finalize upload: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *GCSStore) Get(ctx context.Context, name string) ([]byte, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	r, err := s.object(name).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, &domain.NotFoundError{Resource: "report", ID: name}
	}
	if err != nil {
		return nil, fmt.Errorf("Get: open GCS object reader: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("Get: read GCS object: %w", err)
	}
	return data, nil
}

// Delete implements Store.
func (s *GCSStore) Delete(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	err := s.object(name).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("Delete: delete GCS object: %w", err)
	}
	return nil
}

var _ Store = (*GCSStore)(nil)
