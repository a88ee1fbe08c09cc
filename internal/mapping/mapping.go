package mapping

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// SheetMap routes sheets into per-discipline output subfolders. It is loaded
// from a workbook maintained by the project team: one row per sheet number,
// columns sheet number / discipline / subfolder. A sheet without a row keeps
// the default output folder.
type SheetMap struct {
	entries map[string]Entry
}

type Entry struct {
	SheetNumber string
	Discipline  string
	Subfolder   string
}

// NewSheetMap builds a map from explicit entries, bypassing the workbook.
func NewSheetMap(entries ...Entry) *SheetMap {
	m := &SheetMap{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		if _, dup := m.entries[e.SheetNumber]; dup {
			continue
		}
		m.entries[e.SheetNumber] = e
	}
	return m
}

// Load reads the mapping workbook. The first sheet is used; the first row is
// treated as a header. Rows without a sheet number are skipped.
func Load(path string) (*SheetMap, error) {
	excelFile, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("error opening Excel file: %v", err)
	}
	defer excelFile.Close()

	sheets := excelFile.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("mapping workbook %s has no sheets", path)
	}

	rows, err := excelFile.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading mapping sheet %q: %w", sheets[0], err)
	}

	m := &SheetMap{entries: make(map[string]Entry)}
	for i, row := range rows {
		if i == 0 {
			continue
		}
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		entry := Entry{SheetNumber: strings.TrimSpace(row[0])}
		if len(row) > 1 {
			entry.Discipline = strings.TrimSpace(row[1])
		}
		if len(row) > 2 {
			entry.Subfolder = strings.TrimSpace(row[2])
		}
		if _, dup := m.entries[entry.SheetNumber]; dup {
			zap.S().Named("mapping").Warnf("duplicate mapping row for sheet %s, keeping first", entry.SheetNumber)
			continue
		}
		m.entries[entry.SheetNumber] = entry
	}

	zap.S().Named("mapping").Infof("loaded %d sheet mapping entries from %s", len(m.entries), path)
	return m, nil
}

// SubfolderFor returns the output subfolder for the sheet number, or the
// discipline when no explicit subfolder is set. Empty when unmapped.
func (m *SheetMap) SubfolderFor(sheetNumber string) string {
	entry, ok := m.entries[sheetNumber]
	if !ok {
		return ""
	}
	if entry.Subfolder != "" {
		return entry.Subfolder
	}
	return entry.Discipline
}

// Len returns the number of mapped sheets.
func (m *SheetMap) Len() int {
	return len(m.entries)
}
