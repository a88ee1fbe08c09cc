package fileio

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
)

// Writer writes the worker's data files. All JSON interchange files (job
// descriptor, result payloads, error registry) go through WriteJSONAtomic so
// an external watcher never observes a half-written file.
type Writer struct {
	// rootDir is prepended to every path, useful for testing
	rootDir string
}

func NewWriter() *Writer {
	return &Writer{}
}

// SetRootdir sets the root directory for the writer, useful for testing
func (w *Writer) SetRootdir(path string) {
	w.rootDir = path
}

// PathFor returns the full path for the provided file, useful for functions
// and libraries that don't work with the fileio.Writer
func (w *Writer) PathFor(filePath string) string {
	return path.Join(w.rootDir, filePath)
}

// WriteFile writes the file at the provided path
func (w *Writer) WriteFile(filePath string, data []byte) error {
	return os.WriteFile(w.PathFor(filePath), data, 0644)
}

// WriteJSONAtomic marshals v and writes it to filePath via a temp file in the
// same directory followed by a rename. Rename within one filesystem is atomic,
// which gives the at-least-once durability the job status file needs.
func (w *Writer) WriteJSONAtomic(filePath string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("marshalling %s: %w", filePath, err)
	}

	target := w.PathFor(filePath)
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp file %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing temp file %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file %s: %w", tmpName, err)
	}

	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming %s to %s: %w", tmpName, target, err)
	}
	return nil
}
