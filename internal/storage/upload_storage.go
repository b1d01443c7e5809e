package storage

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
)

// ErrInvalidName is returned for file names that are not a single path element.
var ErrInvalidName = errors.New("invalid file name")

// UploadStore keeps uploaded heatmaps and their annotated copies in one
// directory.
type UploadStore struct {
	dir string
}

// NewUploadStore creates the directory if needed
func NewUploadStore(dir string) (*UploadStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &UploadStore{dir: dir}, nil
}

// Dir returns the upload directory
func (s *UploadStore) Dir() string {
	return s.dir
}

// Path resolves name inside the upload directory
func (s *UploadStore) Path(name string) (string, error) {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(s.dir, name), nil
}

// Save copies r into the named file and returns its path
func (s *UploadStore) Save(name string, r io.Reader) (string, error) {
	path, err := s.Path(name)
	if err != nil {
		return "", err
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", name, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	return path, nil
}

// Open decodes the named image
func (s *UploadStore) Open(name string) (image.Image, string, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer f.Close()

	return DecodeImage(f)
}

// Remove deletes the named file. A missing file is not an error.
func (s *UploadStore) Remove(name string) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", name, err)
	}
	return nil
}

// SaveImage encodes img under name, using the format implied by its extension
func (s *UploadStore) SaveImage(name string, img image.Image) (string, error) {
	path, err := s.Path(name)
	if err != nil {
		return "", err
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", name, err)
	}
	if err := EncodeImage(f, img, FormatFromFilename(name)); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	return path, nil
}
