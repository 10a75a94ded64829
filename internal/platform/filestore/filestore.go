// Package filestore provides local-disk storage for uploaded files: medical
// report attachments, profile pictures and food label photos. Files are keyed
// by a generated uuid rather than the client-supplied name, so two users
// uploading "report.pdf" can never collide or overwrite each other.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound           = errors.New("file not found")
	ErrFileTooLarge       = errors.New("file exceeds maximum allowed size")
	ErrInvalidContentType = errors.New("content type is not allowed")
)

// MaxFileSize is the maximum allowed upload size in bytes (16 MB).
const MaxFileSize = 16 * 1024 * 1024

// Categories partition uploads into subdirectories.
const (
	CategoryReport  = "reports"
	CategoryPicture = "pictures"
)

// AllowedContentTypes lists the MIME types accepted per category.
var AllowedContentTypes = map[string]map[string]bool{
	CategoryReport: {
		"application/pdf": true,
		"image/png":       true,
		"image/jpeg":      true,
	},
	CategoryPicture: {
		"image/png":  true,
		"image/jpeg": true,
	},
}

// FileInfo describes a stored file.
type FileInfo struct {
	ID           string    `json:"id"`
	OriginalName string    `json:"original_name"`
	ContentType  string    `json:"content_type"`
	Category     string    `json:"category"`
	Size         int64     `json:"size"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store defines the contract for file storage backends.
type Store interface {
	Save(ctx context.Context, category, originalName, contentType string, content io.Reader) (*FileInfo, error)
	Open(ctx context.Context, category, id string) (io.ReadCloser, error)
	Delete(ctx context.Context, category, id string) error
}

// DiskStore stores files under a root directory, one subdirectory per
// category, each file named by its uuid plus the original extension.
type DiskStore struct {
	root string
}

// NewDiskStore creates the root and category directories if needed.
func NewDiskStore(root string) (*DiskStore, error) {
	for _, cat := range []string{CategoryReport, CategoryPicture} {
		if err := os.MkdirAll(filepath.Join(root, cat), 0o755); err != nil {
			return nil, fmt.Errorf("creating upload dir: %w", err)
		}
	}
	return &DiskStore{root: root}, nil
}

func (s *DiskStore) Save(_ context.Context, category, originalName, contentType string, content io.Reader) (*FileInfo, error) {
	allowed, ok := AllowedContentTypes[category]
	if !ok {
		return nil, fmt.Errorf("unknown category %q", category)
	}
	if !allowed[contentType] {
		return nil, ErrInvalidContentType
	}

	id := uuid.New().String()
	name := id + filepath.Ext(originalName)
	path := filepath.Join(s.root, category, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}

	n, err := io.Copy(f, io.LimitReader(content, MaxFileSize+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing file: %w", err)
	}
	if n > MaxFileSize {
		os.Remove(path)
		return nil, ErrFileTooLarge
	}

	return &FileInfo{
		ID:           name,
		OriginalName: originalName,
		ContentType:  contentType,
		Category:     category,
		Size:         n,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

func (s *DiskStore) Open(_ context.Context, category, id string) (io.ReadCloser, error) {
	// Reject path traversal in the id.
	if filepath.Base(id) != id {
		return nil, ErrNotFound
	}
	f, err := os.Open(filepath.Join(s.root, category, id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *DiskStore) Delete(_ context.Context, category, id string) error {
	if filepath.Base(id) != id {
		return ErrNotFound
	}
	err := os.Remove(filepath.Join(s.root, category, id))
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	return err
}
