// Package storage is the uploaded-document collaborator. Handlers depend on
// the FileStore interface; the disk implementation below is the default and
// an object-store backend can replace it without touching handlers.
package storage

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

type FileStore interface {
	// Save persists the file content under a generated name derived from the
	// original filename's extension and returns the stored relative path.
	Save(filename string, r io.Reader) (string, error)
	// URL resolves a stored relative path to a fully-qualified retrievable URL.
	URL(storedPath string) string
}

// DiskStore writes uploads beneath Root and serves them under BaseURL/uploads/.
type DiskStore struct {
	Root    string
	BaseURL string
}

func NewDiskStore(root, baseURL string) *DiskStore {
	return &DiskStore{Root: root, BaseURL: strings.TrimRight(baseURL, "/")}
}

func (s *DiskStore) Save(filename string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	rel := path.Join("invoices", uuid.NewString()+ext)
	full := filepath.Join(s.Root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		os.Remove(full)
		return "", fmt.Errorf("write upload: %w", err)
	}
	return rel, nil
}

func (s *DiskStore) URL(storedPath string) string {
	if storedPath == "" {
		return ""
	}
	return s.BaseURL + "/uploads/" + storedPath
}
