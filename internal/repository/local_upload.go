package repository

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalUploadRepository implements domain.FileRepository on a local directory
type LocalUploadRepository struct {
	dir string
}

// NewLocalUploadRepository creates the upload directory if needed and returns
// a repository rooted at it
func NewLocalUploadRepository(dir string) (*LocalUploadRepository, error) {
	repo := &LocalUploadRepository{dir: dir}

	if err := repo.ensureDir(); err != nil {
		return nil, err
	}

	return repo, nil
}

// Dir returns the upload directory
func (r *LocalUploadRepository) Dir() string {
	return r.dir
}

// Save writes src to <dir>/<filename>, replacing any file already there.
// The filename is used as given.
func (r *LocalUploadRepository) Save(ctx context.Context, filename string, src io.Reader) (string, error) {
	path := filepath.Join(r.dir, filename)

	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}

	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}

	return path, nil
}

// Size returns the size of a saved file
func (r *LocalUploadRepository) Size(ctx context.Context, path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s is a directory", path)
	}
	return info.Size(), nil
}

// ensureDir creates the upload directory if it does not exist
func (r *LocalUploadRepository) ensureDir() error {
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return fmt.Errorf("failed to create upload directory %s: %w", r.dir, err)
	}
	return nil
}
