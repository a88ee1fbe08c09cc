package mapping

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeWorkbook(t *testing.T, rows [][]any) string {
	t.Helper()

	f := excelize.NewFile()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}

	path := filepath.Join(t.TempDir(), "mapping.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
	return path
}

func TestLoadSheetMap(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"Sheet Number", "Discipline", "Subfolder"},
		{"A-101", "Architecture", "arch"},
		{"S-201", "Structure", ""},
		{"", "ignored", "ignored"},
	})

	m, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2, m.Len())
	assert.Equal(t, "arch", m.SubfolderFor("A-101"))
	// falls back to the discipline column
	assert.Equal(t, "Structure", m.SubfolderFor("S-201"))
	assert.Equal(t, "", m.SubfolderFor("M-301"))
}

func TestLoadSheetMapDuplicateKeepsFirst(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"Sheet Number", "Discipline", "Subfolder"},
		{"A-101", "Architecture", "arch"},
		{"A-101", "Architecture", "arch-v2"},
	})

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, "arch", m.SubfolderFor("A-101"))
}

func TestLoadSheetMapMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.xlsx"))
	assert.Error(t, err)
}
