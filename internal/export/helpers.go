package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

const maxFilenameLength = 200

// SafeFilename builds a filesystem-safe base name (no extension) from a sheet
// number and name.
func SafeFilename(sheetNumber, sheetName string) string {
	return Sanitize(sheetNumber + "_" + sheetName)
}

// Sanitize makes a name safe for the filesystem: invalid characters become
// underscores, runs of underscores collapse, and the result is capped at 200
// characters. Idempotent, an already-safe name passes through unchanged.
func Sanitize(name string) string {
	for _, invalid := range []string{"<", ">", ":", "\"", "/", "\\", "|", "?", "*"} {
		name = strings.ReplaceAll(name, invalid, "_")
	}

	for strings.Contains(name, "__") {
		name = strings.ReplaceAll(name, "__", "_")
	}

	if len(name) > maxFilenameLength {
		// cut on a rune boundary so multibyte sheet names stay valid UTF-8
		cut := maxFilenameLength
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = name[:cut]
	}

	return name
}

// ValidateExport checks that the exported file exists and has a plausible
// size. The host API can fail silently, so the file on disk is the only
// trustworthy signal.
func ValidateExport(filePath string, minSizeKB int) error {
	info, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("file not created")
		}
		return fmt.Errorf("validation error: %w", err)
	}

	sizeKB := float64(info.Size()) / 1024.0
	if sizeKB < float64(minSizeKB) {
		return fmt.Errorf("file too small (%.1fKB)", sizeKB)
	}
	return nil
}

// EnsureExportDir creates the per-format export directory under base.
func EnsureExportDir(base, exportType string) (string, error) {
	dir := filepath.Join(base, exportType)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating export directory %s: %w", dir, err)
	}
	return dir, nil
}

// CleanupFailedExport removes a corrupt or partial file after a failed
// attempt. Best effort, never returns an error.
func CleanupFailedExport(filePath string) {
	if filePath == "" {
		return
	}
	if _, err := os.Stat(filePath); err != nil {
		return
	}
	if err := os.Remove(filePath); err != nil {
		zap.S().Named("export").Warnf("could not clean up failed export %s: %v", filePath, err)
		return
	}
	zap.S().Named("export").Debugf("cleaned up failed export: %s", filePath)
}

// FormatDuration renders seconds in an operator-friendly form.
func FormatDuration(seconds float64) string {
	switch {
	case seconds < 60:
		return fmt.Sprintf("%.1fs", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%dm %ds", int(seconds)/60, int(seconds)%60)
	default:
		return fmt.Sprintf("%dh %dm", int(seconds)/3600, (int(seconds)%3600)/60)
	}
}

// FormatFileSize renders a byte count in an operator-friendly form.
func FormatFileSize(bytes int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)
	switch {
	case bytes < kb:
		return fmt.Sprintf("%d bytes", bytes)
	case bytes < mb:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(kb))
	case bytes < gb:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(mb))
	default:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(gb))
	}
}
