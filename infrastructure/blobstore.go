package infrastructure

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// BlobStore is the document-storage collaborator: store and retrieve uploaded
// resume bytes by opaque key.
type BlobStore interface {
	Put(data []byte, originalFilename string) (string, error)
	Get(key string) ([]byte, error)
	Delete(key string) error
}

// DiskBlobStore keeps uploads on the local filesystem. Keys are UUIDs with
// the original extension preserved; the original filename never becomes part
// of a path.
type DiskBlobStore struct {
	dir string
}

func NewDiskBlobStore(dir string) (*DiskBlobStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskBlobStore{dir: dir}, nil
}

func (s *DiskBlobStore) Put(data []byte, originalFilename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalFilename))
	key := uuid.NewString() + ext
	if err := os.WriteFile(filepath.Join(s.dir, key), data, 0o644); err != nil {
		return "", err
	}
	return key, nil
}

func (s *DiskBlobStore) Get(key string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.dir, filepath.Base(key)))
}

func (s *DiskBlobStore) Delete(key string) error {
	err := os.Remove(filepath.Join(s.dir, filepath.Base(key)))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
