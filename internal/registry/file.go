package registry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore keeps artifacts as files under a root directory. Writes go to a temporary file
// in the same directory which is synced and renamed into place, so readers never observe a
// partially written artifact.
type FileStore struct {
	root string
}

// NewFileStore creates root if needed.
func NewFileStore(root string) (*FileStore, error) {
	if root == "" {
		root = "."
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir %s: %w", root, err)
	}
	return &FileStore{root: root}, nil
}

// Root returns the directory artifacts are written to.
func (s *FileStore) Root() string { return s.root }

// Put atomically replaces name with data.
func (s *FileStore) Put(ctx context.Context, name string, data []byte) (err error) {
	const op = "registry.FileStore.Put"
	if err := checkName(op, name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.root, "."+name+".tmp-*")
	if err != nil {
		return fmt.Errorf("%s: create temp: %w", op, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%s: write %s: %w", op, name, err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%s: sync %s: %w", op, name, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("%s: close %s: %w", op, name, err)
	}
	if err = os.Rename(tmpName, s.path(name)); err != nil {
		return fmt.Errorf("%s: rename %s: %w", op, name, err)
	}
	return nil
}

// Get reads name, returning ErrArtifactNotFound when it does not exist.
func (s *FileStore) Get(ctx context.Context, name string) ([]byte, error) {
	const op = "registry.FileStore.Get"
	if err := checkName(op, name); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, notFound(op, name)
		}
		return nil, fmt.Errorf("%s: read %s: %w", op, name, err)
	}
	return data, nil
}

// Exists reports whether name is present.
func (s *FileStore) Exists(_ context.Context, name string) (bool, error) {
	if err := checkName("registry.FileStore.Exists", name); err != nil {
		return false, err
	}
	_, err := os.Stat(s.path(name))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// Size implements Sizer.
func (s *FileStore) Size(_ context.Context, name string) (int64, error) {
	const op = "registry.FileStore.Size"
	if err := checkName(op, name); err != nil {
		return 0, err
	}
	info, err := os.Stat(s.path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, notFound(op, name)
		}
		return 0, err
	}
	return info.Size(), nil
}

// Delete removes name if present.
func (s *FileStore) Delete(_ context.Context, name string) error {
	const op = "registry.FileStore.Delete"
	if err := checkName(op, name); err != nil {
		return err
	}
	if err := os.Remove(s.path(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: remove %s: %w", op, name, err)
	}
	return nil
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.root, name)
}
