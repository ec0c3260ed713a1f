package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/CollComm/werewolf-sign/internal/models"
)

const maxExtLen = 8

// Staging writes incoming videos under uuid names in a single directory.
// Names never derive from client input beyond a sanitized extension.
type Staging struct {
	dir string
}

// NewStaging creates the staging directory if needed
func NewStaging(dir string) (*Staging, error) {
	if dir == "" {
		return nil, errors.New("staging directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory '%s': %w", dir, err)
	}
	return &Staging{dir: dir}, nil
}

// Dir returns the staging directory
func (s *Staging) Dir() string {
	return s.dir
}

// Save copies r into a new staged upload. An empty body is reported as a missing upload.
func (s *Staging) Save(r io.Reader, originalName string) (models.VideoUpload, error) {
	id := uuid.NewString()
	path := filepath.Join(s.dir, id+sanitizeExt(originalName))

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return models.VideoUpload{}, fmt.Errorf("failed to create staged upload: %w", err)
	}

	size, err := io.Copy(file, r)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return models.VideoUpload{}, fmt.Errorf("failed to write staged upload: %w", err)
	}
	if size == 0 {
		os.Remove(path)
		return models.VideoUpload{}, models.NewPipelineError("stage", models.ErrUploadMissing, errors.New("uploaded video is empty"))
	}

	return models.VideoUpload{
		ID:           id,
		Path:         path,
		OriginalName: filepath.Base(originalName),
		SizeBytes:    size,
	}, nil
}

// SaveFile stages a copy of a local file; the original is never handed to the pipeline
func (s *Staging) SaveFile(path string) (models.VideoUpload, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return models.VideoUpload{}, models.NewPipelineError("stage", models.ErrUploadMissing, err)
		}
		return models.VideoUpload{}, fmt.Errorf("failed to open video '%s': %w", path, err)
	}
	defer file.Close()

	return s.Save(file, filepath.Base(path))
}

// sanitizeExt keeps a short lowercase alphanumeric extension from a client-supplied name
func sanitizeExt(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filepath.Base(name)), "."))
	if ext == "" || len(ext) > maxExtLen {
		return ""
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return "." + ext
}
