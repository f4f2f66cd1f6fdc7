package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dvloznov/finance-analytics/internal/domain"
)

// DirStore keeps artifacts as files in one local directory.
type DirStore struct {
	root string
}

// NewDirStore creates the directory if needed.
func NewDirStore(root string) (*DirStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("NewDirStore: create %q: %w", root, err)
	}
	return &DirStore{root: root}, nil
}

// Put implements Store. The file is written to a temp name and renamed so
// readers never see a partial report.
func (s *DirStore) Put(ctx context.Context, name string, data []byte) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.root, ".tmp-*")
	if err != nil {
		return fmt.Errorf("Put: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("Put: write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("Put: close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.root, name)); err != nil {
		return fmt.Errorf("Put: rename %s: %w", name, err)
	}
	return nil
}

// Get implements Store.
func (s *DirStore) Get(ctx context.Context, name string) ([]byte, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.root, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &domain.NotFoundError{Resource: "report", ID: name}
	}
	if err != nil {
		return nil, fmt.Errorf("Get: read %s: %w", name, err)
	}
	return data, nil
}

// Delete implements Store.
func (s *DirStore) Delete(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.root, name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("Delete: remove %s: %w", name, err)
	}
	return nil
}

var _ Store = (*DirStore)(nil)
