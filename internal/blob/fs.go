package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FS stores blobs as files under a single directory. The HTTP server mounts
// that directory read-only, so the public URL is baseURL + "/" + key.
type FS struct {
	dir     string
	baseURL string
}

// NewFS creates the directory if needed and returns a filesystem store.
func NewFS(dir, baseURL string) (*FS, error) {
	if dir == "" {
		return nil, fmt.Errorf("fs blob driver requires a directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating blob directory: %w", err)
	}
	return &FS{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Dir returns the backing directory, for mounting as a static file root.
func (s *FS) Dir() string { return s.dir }

func (s *FS) Put(_ context.Context, key string, r io.Reader, _ string) (string, error) {
	if key == "" || strings.Contains(key, "/") || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid blob key %q", key)
	}

	// Write to a temp file first so a failed upload never leaves a partial
	// blob at the final key.
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, key)); err != nil {
		return "", fmt.Errorf("publishing blob: %w", err)
	}

	return s.baseURL + "/" + key, nil
}
