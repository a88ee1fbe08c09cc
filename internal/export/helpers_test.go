package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeFilename(t *testing.T) {
	tests := []struct {
		name        string
		sheetNumber string
		sheetName   string
		want        string
	}{
		{name: "plain", sheetNumber: "A-101", sheetName: "Floor Plan", want: "A-101_Floor Plan"},
		{name: "invalid characters", sheetNumber: "A:101", sheetName: `Roof <Plan> "North"`, want: "A_101_Roof _Plan_ _North_"},
		{name: "slashes", sheetNumber: "A/101", sheetName: `Core\Shell`, want: "A_101_Core_Shell"},
		{name: "collapses underscores", sheetNumber: "A__101", sheetName: "__Plan__", want: "A_101_Plan_"},
		{name: "pipe question star", sheetNumber: "A|1", sheetName: "What?*", want: "A_1_What_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SafeFilename(tt.sheetNumber, tt.sheetName))
		})
	}
}

func TestSafeFilenameTruncates(t *testing.T) {
	long := strings.Repeat("x", 300)
	got := SafeFilename("A-101", long)
	assert.Len(t, got, 200)
}

func TestSafeFilenameTruncatesOnRuneBoundary(t *testing.T) {
	// 3 bytes per rune, so 200 is not a rune boundary of the raw bytes
	long := strings.Repeat("楼", 100)
	got := SafeFilename("A-101", long)
	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, len(got), 200)
	assert.Equal(t, got, Sanitize(got))
}

func TestSanitizeIdempotent(t *testing.T) {
	inputs := []string{
		`A:101_Roof <Plan>`,
		"A-101_" + strings.Repeat("y", 250),
		"P|?_**",
		"already_safe",
	}
	for _, in := range inputs {
		once := Sanitize(in)
		assert.Equal(t, once, Sanitize(once), in)
		assert.NotContains(t, once, "__")
		for _, invalid := range []string{"<", ">", ":", "\"", "/", "\\", "|", "?", "*"} {
			assert.NotContains(t, once, invalid)
		}
	}
}

func TestValidateExport(t *testing.T) {
	tmpDir := t.TempDir()

	missing := filepath.Join(tmpDir, "missing.pdf")
	err := ValidateExport(missing, 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not created")

	small := filepath.Join(tmpDir, "small.pdf")
	require.NoError(t, os.WriteFile(small, make([]byte, 1024), 0644))
	err = ValidateExport(small, 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too small")

	ok := filepath.Join(tmpDir, "ok.pdf")
	require.NoError(t, os.WriteFile(ok, make([]byte, 10*1024), 0644))
	assert.NoError(t, ValidateExport(ok, 5))
}

func TestEnsureExportDir(t *testing.T) {
	tmpDir := t.TempDir()

	dir, err := EnsureExportDir(tmpDir, "images")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmpDir, "images"), dir)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	// second call is a no-op
	_, err = EnsureExportDir(tmpDir, "images")
	assert.NoError(t, err)
}

func TestCleanupFailedExport(t *testing.T) {
	tmpDir := t.TempDir()
	target := filepath.Join(tmpDir, "partial.dwg")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0644))

	CleanupFailedExport(target)
	_, err := os.Stat(target)
	assert.True(t, os.IsNotExist(err))

	// missing file and empty path are both fine
	CleanupFailedExport(target)
	CleanupFailedExport("")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "12.3s", FormatDuration(12.3))
	assert.Equal(t, "2m 5s", FormatDuration(125))
	assert.Equal(t, "1h 1m", FormatDuration(3660))
}

func TestFormatFileSize(t *testing.T) {
	assert.Equal(t, "512 bytes", FormatFileSize(512))
	assert.Equal(t, "2.00 KB", FormatFileSize(2048))
	assert.Equal(t, "3.00 MB", FormatFileSize(3*1024*1024))
	assert.Equal(t, "1.50 GB", FormatFileSize(3*1024*1024*1024/2))
}
