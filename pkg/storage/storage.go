package storage

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Store persists uploaded attachments and returns stable references for them.
// References are slash-separated paths relative to the process working
// directory, so they double as URL paths under the static file route.
type Store interface {
	Save(file *multipart.FileHeader) (string, error)
	Remove(ref string) error
}

// DiskStore implements Store on the local filesystem.
type DiskStore struct {
	dir string
}

// NewDiskStore creates a DiskStore rooted at dir, creating it if needed.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload dir: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

// Save writes the upload to disk as YYYYMMDD-<original name> and returns its
// reference.
func (s *DiskStore) Save(file *multipart.FileHeader) (string, error) {
	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	name := time.Now().Format("20060102") + "-" + filepath.Base(file.Filename)
	path := filepath.Join(s.dir, name)

	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", err
	}
	return filepath.ToSlash(path), nil
}

// Remove deletes a previously stored attachment. References outside the store
// directory are refused.
func (s *DiskStore) Remove(ref string) error {
	path := filepath.Clean(filepath.FromSlash(ref))
	if !strings.HasPrefix(path, s.dir+string(filepath.Separator)) {
		return fmt.Errorf("reference %q is outside the upload dir", ref)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
