package domain

import (
	"context"
	"io"
)

// FileRepository defines the interface for upload storage operations
type FileRepository interface {
	// Save writes src under filename and returns the path it was written to
	Save(ctx context.Context, filename string, src io.Reader) (string, error)

	// Size returns the size in bytes of a saved file, or an error if it is gone
	Size(ctx context.Context, path string) (int64, error)
}

// ImageValidator defines the interface for the image check
type ImageValidator interface {
	// Check decodes the file at path. A non-nil error means the check itself
	// failed, not that the image is invalid.
	Check(ctx context.Context, path string) (Result, error)
}
