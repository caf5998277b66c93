package services

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// StorageService persists raw resume uploads on disk. The extracted text
// lives on the interview document; the original file is kept for audit.
type StorageService struct {
	dir string
}

func NewStorageService(dir string) (*StorageService, error) {
	if dir == "" {
		dir = "uploads"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &StorageService{dir: dir}, nil
}

// SaveFile writes the upload under a uuid-prefixed name and returns the
// stored filename and its full path.
func (s *StorageService) SaveFile(originalName string, data []byte) (string, string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	filename := uuid.New().String() + ext
	path := filepath.Join(s.dir, filename)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", "", fmt.Errorf("failed to write upload: %w", err)
	}

	slog.Info("Resume file stored", "filename", filename, "size", len(data))
	return filename, path, nil
}

// DeleteFile removes a stored upload; used to clean up when a later step
// of resume processing fails.
func (s *StorageService) DeleteFile(filename string) {
	if filename == "" {
		return
	}
	if err := os.Remove(filepath.Join(s.dir, filename)); err != nil && !os.IsNotExist(err) {
		slog.Error("Failed to delete stored file", "filename", filename, "error", err)
	}
}
