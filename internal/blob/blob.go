// Package blob stores avatar images behind a small driver interface:
// filesystem for single-host deployments, S3 for hosted ones, memory for
// tests. Upload failures are recoverable — profile updates proceed without
// the new avatar URL.
package blob

import (
	"context"
	"fmt"
	"io"
)

// Store writes avatar blobs and answers with a publicly servable URL.
type Store interface {
	// Put stores the blob under key and returns its public URL.
	Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
}

// Config selects and parameterizes a driver.
type Config struct {
	Driver   string // "fs", "s3", or "memory"
	Dir      string // fs: directory to write into
	BaseURL  string // fs: URL prefix the server mounts the directory under
	Bucket   string // s3
	Region   string // s3
	Endpoint string // s3: optional custom endpoint (e.g. MinIO)
}

// New constructs the configured driver.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", "fs":
		return NewFS(cfg.Dir, cfg.BaseURL)
	case "s3":
		return NewS3(ctx, cfg)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}
