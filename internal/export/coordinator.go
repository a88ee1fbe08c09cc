package export

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/enneadtab/revit-worker/internal/bridge"
	"github.com/enneadtab/revit-worker/internal/mapping"
	"github.com/enneadtab/revit-worker/internal/metrics"
	"go.uber.org/zap"
)

// DefaultCollectEvery is how many sheets are exported between host memory
// collection passes.
const DefaultCollectEvery = 5

// Coordinator exports every selected sheet to image, PDF and DWG. Each format
// export is independent and isolated: a failure in one format never blocks
// the other two, and a failed sheet never blocks the next sheet.
type Coordinator struct {
	doc          Document
	report       *Report
	exporters    []*formatExporter
	collectEvery int
	log          *zap.SugaredLogger
}

type CoordinatorOption func(*coordinatorSettings)

type coordinatorSettings struct {
	sheetMap     *mapping.SheetMap
	retryDelay   time.Duration
	collectEvery int
}

// WithSheetMap routes exports into per-discipline subfolders.
func WithSheetMap(m *mapping.SheetMap) CoordinatorOption {
	return func(s *coordinatorSettings) {
		s.sheetMap = m
	}
}

// WithRetryDelay overrides the fixed delay between retry attempts.
func WithRetryDelay(d time.Duration) CoordinatorOption {
	return func(s *coordinatorSettings) {
		s.retryDelay = d
	}
}

// WithCollectEvery overrides the collection pacing. Zero disables collection
// passes.
func WithCollectEvery(n int) CoordinatorOption {
	return func(s *coordinatorSettings) {
		s.collectEvery = n
	}
}

func NewCoordinator(doc Document, outputBase string, opts ...CoordinatorOption) *Coordinator {
	settings := &coordinatorSettings{
		retryDelay:   DefaultRetryDelay,
		collectEvery: DefaultCollectEvery,
	}
	for _, opt := range opts {
		opt(settings)
	}

	paths := pathPlanner{base: outputBase, sheetMap: settings.sheetMap}

	return &Coordinator{
		doc: doc,
		exporters: []*formatExporter{
			newImageExporter(doc, paths, settings.retryDelay),
			newPDFExporter(doc, paths, settings.retryDelay),
			newDWGExporter(doc, paths, settings.retryDelay),
		},
		collectEvery: settings.collectEvery,
		report: &Report{
			ExportStatus: "not_started",
			Sheets:       []SheetResult{},
			Errors:       []ReportError{},
			Settings: Settings{
				ImageResolution: fmt.Sprintf("%d DPI", ImageDPI),
				ImageWidth:      ImageWidth,
				PDFCombine:      PDFCombine,
				DWGVersion:      DWGVersion,
				SheetSelection:  "all_print_sets",
			},
		},
		log: zap.S().Named("export"),
	}
}

// ExportAll selects the sheet set and exports every sheet to all three
// formats. It always returns a report; a pipeline-level failure is recorded
// in the report rather than returned.
func (c *Coordinator) ExportAll(ctx context.Context) *Report {
	start := time.Now()
	c.report.ExportStatus = "running"

	sheets, source, err := c.sheetsToExport(ctx)
	if err != nil {
		c.report.ExportStatus = "failed"
		c.report.Errors = append(c.report.Errors, ReportError{
			Error:      err.Error(),
			ErrorClass: ClassNoSheets,
		})
		c.log.Errorf("export failed: %v", err)
		return c.report
	}

	c.report.Summary.TotalSheets = len(sheets)
	c.log.Infof("starting export for %d sheets (from %s)", len(sheets), source)

	for i, sheet := range sheets {
		c.exportSingleSheet(ctx, sheet, i+1, len(sheets))

		if c.collectEvery > 0 && (i+1)%c.collectEvery == 0 {
			c.log.Debug("requesting host memory collection")
			if err := c.doc.Collect(ctx); err != nil {
				c.log.Warnf("collection pass failed: %v", err)
			}
		}
	}

	c.report.ExportStatus = "completed"
	for _, s := range c.report.Sheets {
		switch s.OverallStatus {
		case OverallAllSuccess:
			c.report.Summary.SuccessfulSheets++
		case OverallPartial:
			c.report.Summary.SuccessfulSheets++
			c.report.Summary.PartialFailures++
		case OverallAllFailed:
			c.report.Summary.FailedSheets++
		}
	}

	total := time.Since(start).Seconds()
	c.report.Performance.TotalDurationSeconds = round2(total)
	if c.report.Summary.TotalSheets > 0 {
		c.report.Performance.AverageTimePerSheet = round2(total / float64(c.report.Summary.TotalSheets))
	}

	c.log.Infof("export completed: %d/%d sheets successful (%s)",
		c.report.Summary.SuccessfulSheets, c.report.Summary.TotalSheets, FormatDuration(total))

	return c.report
}

// sheetsToExport returns the union of all print sets, falling back to every
// sheet in the document when no usable print set exists. Placeholder sheets
// are skipped, the result is ordered by sheet number.
func (c *Coordinator) sheetsToExport(ctx context.Context) ([]bridge.Sheet, string, error) {
	allSheets, err := c.doc.Sheets(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("listing sheets: %w", err)
	}

	byID := make(map[string]bridge.Sheet, len(allSheets))
	for _, s := range allSheets {
		byID[s.ID] = s
	}

	printSets, err := c.doc.PrintSets(ctx)
	if err != nil {
		c.log.Warnf("print sets unavailable (%v), using fallback", err)
		printSets = nil
	}

	seen := make(map[string]bool)
	var selected []bridge.Sheet
	for _, set := range printSets {
		c.log.Infof("print set %q: %d sheet(s)", set.Name, len(set.SheetIDs))
		for _, id := range set.SheetIDs {
			sheet, ok := byID[id]
			if !ok || sheet.IsPlaceholder || seen[id] {
				continue
			}
			seen[id] = true
			selected = append(selected, sheet)
		}
	}

	source := fmt.Sprintf("all print sets (%d sheets)", len(selected))
	if len(selected) == 0 {
		if len(printSets) > 0 {
			c.log.Warn("all print sets are empty, using fallback")
		}
		for _, sheet := range allSheets {
			if sheet.IsPlaceholder {
				continue
			}
			selected = append(selected, sheet)
		}
		source = fmt.Sprintf("all sheets in document (%d sheets - fallback)", len(selected))
	}

	if len(selected) == 0 {
		return nil, "", fmt.Errorf("no sheets available in document")
	}

	sort.Slice(selected, func(i, j int) bool {
		return selected[i].SheetNumber < selected[j].SheetNumber
	})
	return selected, source, nil
}

func (c *Coordinator) exportSingleSheet(ctx context.Context, sheet bridge.Sheet, current, total int) {
	c.log.Infof("[%d/%d] exporting %s - %s", current, total, sheet.SheetNumber, sheet.SheetName)

	result := SheetResult{
		SheetName:   sheet.SheetName,
		SheetNumber: sheet.SheetNumber,
		Exports:     make(map[Format]FormatResult, len(c.exporters)),
	}

	succeeded := make(map[Format]bool, len(c.exporters))
	for _, exporter := range c.exporters {
		formatResult := exporter.ExportSheet(ctx, sheet)
		result.Exports[exporter.format] = formatResult
		succeeded[exporter.format] = formatResult.Status == StatusSuccess

		metrics.RecordSheetExport(string(exporter.format), formatResult.Status, formatResult.Duration)
		if formatResult.Status == StatusSuccess {
			c.log.Infof("  -> %s: success (%s)", exporter.format, FormatDuration(formatResult.Duration))
		} else {
			c.log.Infof("  -> %s: failed (%s)", exporter.format, formatResult.ErrorClass)
		}
	}

	result.OverallStatus = OverallStatus(succeeded[FormatImage], succeeded[FormatPDF], succeeded[FormatDWG])
	c.report.Sheets = append(c.report.Sheets, result)
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
