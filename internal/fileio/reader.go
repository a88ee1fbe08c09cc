package fileio

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
)

// Reader reads the worker's data files.
type Reader struct {
	// rootDir is prepended to every path, useful for testing
	rootDir string
}

func NewReader() *Reader {
	return &Reader{}
}

// SetRootdir sets the root directory for the reader, useful for testing
func (r *Reader) SetRootdir(path string) {
	r.rootDir = path
}

// PathFor returns the full path for the provided file
func (r *Reader) PathFor(filePath string) string {
	return path.Join(r.rootDir, filePath)
}

// CheckPathExists stats the path and returns any error
func (r *Reader) CheckPathExists(filePath string) error {
	_, err := os.Stat(r.PathFor(filePath))
	return err
}

// ReadFile reads the file at the provided path
func (r *Reader) ReadFile(filePath string) ([]byte, error) {
	return os.ReadFile(r.PathFor(filePath))
}

// ReadJSON reads the file at the provided path and unmarshals it into v.
func (r *Reader) ReadJSON(filePath string, v any) error {
	data, err := r.ReadFile(filePath)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshalling %s: %w", filePath, err)
	}
	return nil
}
