// Package artifacts stores generated report files by name.
package artifacts

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/dvloznov/finance-analytics/internal/domain"
)

// Store provides an interface for report artifact storage.
type Store interface {
	// Put writes data under name, replacing any previous content.
	Put(ctx context.Context, name string, data []byte) error

	// Get reads the artifact. A missing artifact yields a domain.NotFoundError.
	Get(ctx context.Context, name string) ([]byte, error)

	// Delete removes the artifact. Deleting a missing artifact is not an error.
	Delete(ctx context.Context, name string) error
}

// ValidateName rejects names that could escape the store's root.
func ValidateName(name string) error {
	if name == "" || name != path.Base(name) || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return &domain.ValidationError{Field: "filename", Reason: "invalid artifact name"}
	}
	return nil
}

// New opens the store described by location: "gs://bucket/prefix" selects
// Cloud Storage, anything else is a local directory.
func New(ctx context.Context, location string) (Store, error) {
	if strings.HasPrefix(location, "gs://") {
		bucket, prefix, err := ParseGCSURI(location)
		if err != nil {
			return nil, err
		}
		return NewGCSStore(ctx, bucket, prefix)
	}
	return NewDirStore(location)
}

// ParseGCSURI splits "gs://bucket/some/prefix" into bucket and prefix.
// The prefix may be empty.
func ParseGCSURI(uri string) (bucket, prefix string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if parts[0] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no bucket): %s", uri)
	}
	if len(parts) == 2 {
		prefix = strings.Trim(parts[1], "/")
	}
	return parts[0], prefix, nil
}
