package document

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DiskStore keeps uploads on the local filesystem as <dir>/<id>.pdf.
// The generated id is the only part of the path derived from the request,
// so user-supplied filenames never reach the filesystem.
type DiskStore struct {
	dir string
}

func NewDiskStore(dir string) *DiskStore {
	return &DiskStore{dir: dir}
}

func (s *DiskStore) Store(id string, r io.Reader) (string, int64, error) {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return "", 0, fmt.Errorf("create upload directory: %w", err)
	}

	path := s.path(id)
	dst, err := os.Create(path) // #nosec G304 -- path is built from a generated UUID
	if err != nil {
		return "", 0, fmt.Errorf("create file: %w", err)
	}
	defer dst.Close()

	written, err := io.Copy(dst, r)
	if err != nil {
		os.Remove(path)
		return "", 0, fmt.Errorf("write file: %w", err)
	}

	return path, written, nil
}

func (s *DiskStore) Delete(id string) error {
	err := os.Remove(s.path(id))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *DiskStore) path(id string) string {
	return filepath.Clean(filepath.Join(s.dir, id+".pdf"))
}
