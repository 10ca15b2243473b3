package attachment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// FSStore keeps files under a root directory of an afero filesystem.
type FSStore struct {
	fs   afero.Fs
	root string
}

// NewFSStore roots the store at dir on the OS filesystem.
func NewFSStore(dir string) (*FSStore, error) {
	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create attachment root: %w", err)
	}
	return &FSStore{fs: afero.NewBasePathFs(osFs, dir), root: dir}, nil
}

// NewMemStore is an in-memory store, used by tests and local runs.
func NewMemStore() *FSStore {
	return &FSStore{fs: afero.NewMemMapFs(), root: "/"}
}

// Save writes to a temporary file next to the target and renames it into
// place, so readers never observe a partial file.
func (s *FSStore) Save(ctx context.Context, name string, body io.Reader) (Ref, error) {
	key, err := cleanKey(name)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	target := filepath.FromSlash(key)
	dir := filepath.Dir(target)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create dir %s: %w", dir, err)
	}

	tmp, err := afero.TempFile(s.fs, dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, body); err != nil {
		_ = tmp.Close()
		_ = s.fs.Remove(tmpName)
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmpName)
		return "", fmt.Errorf("close %s: %w", key, err)
	}
	if err := s.fs.Rename(tmpName, target); err != nil {
		_ = s.fs.Remove(tmpName)
		return "", fmt.Errorf("rename %s: %w", key, err)
	}
	return Ref(key), nil
}

func (s *FSStore) Read(ctx context.Context, ref Ref) (io.ReadCloser, error) {
	key, err := cleanKey(string(ref))
	if err != nil {
		return nil, err
	}
	f, err := s.fs.Open(filepath.FromSlash(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, err
	}
	return f, nil
}

func (s *FSStore) Delete(ctx context.Context, ref Ref) error {
	key, err := cleanKey(string(ref))
	if err != nil {
		return err
	}
	err = s.fs.Remove(filepath.FromSlash(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Exists reports whether the ref is currently stored.
func (s *FSStore) Exists(ref Ref) (bool, error) {
	key, err := cleanKey(string(ref))
	if err != nil {
		return false, err
	}
	return afero.Exists(s.fs, filepath.FromSlash(key))
}
