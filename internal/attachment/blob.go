package attachment

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

var (
	ErrCommitFailed = errors.New("attachment commit failed")
	ErrNotFound     = errors.New("attachment not found")
	ErrInvalidRef   = errors.New("invalid attachment ref")
)

// Ref identifies one stored file. Refs are opaque to callers.
type Ref string

func (r Ref) String() string { return string(r) }

func (r Ref) IsZero() bool { return strings.TrimSpace(string(r)) == "" }

// BlobStore persists raw file bytes. Deleting a ref that does not exist is
// not an error.
type BlobStore interface {
	Save(ctx context.Context, name string, body io.Reader) (Ref, error)
	Read(ctx context.Context, ref Ref) (io.ReadCloser, error)
	Delete(ctx context.Context, ref Ref) error
}

// cleanKey normalizes a key and rejects anything that escapes the store root.
func cleanKey(raw string) (string, error) {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, "\\", "/"))
	if raw == "" {
		return "", ErrInvalidRef
	}
	key := path.Clean(raw)
	if key == "." || key == ".." || strings.HasPrefix(key, "/") || strings.HasPrefix(key, "../") {
		return "", ErrInvalidRef
	}
	return key, nil
}
