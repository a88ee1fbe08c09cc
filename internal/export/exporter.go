package export

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/enneadtab/revit-worker/internal/bridge"
	"github.com/enneadtab/revit-worker/internal/mapping"
	"go.uber.org/zap"
)

// Format identifies one of the three export outputs of a sheet.
type Format string

const (
	FormatImage Format = "image"
	FormatPDF   Format = "pdf"
	FormatDWG   Format = "dwg"
)

// Fixed export settings, identical for every project.
const (
	ImageDPI      = 150
	ImageWidth    = 1920
	PDFCombine    = false // individual PDFs per sheet
	DWGVersion    = "R2018"
	LayerStandard = "AIA"

	MaxRetries        = 2
	DefaultRetryDelay = 2 * time.Second
)

// Advisory per-format timeouts. Exceeding one is logged, never aborted: the
// host API call cannot be cancelled mid-flight.
var advisoryTimeouts = map[Format]time.Duration{
	FormatImage: 60 * time.Second,
	FormatPDF:   120 * time.Second,
	FormatDWG:   180 * time.Second,
}

// Document is the slice of the bridge surface the export pipeline needs.
type Document interface {
	PrintSets(ctx context.Context) ([]bridge.PrintSet, error)
	Sheets(ctx context.Context) ([]bridge.Sheet, error)
	Export(ctx context.Context, req bridge.ExportRequest) error
	Collect(ctx context.Context) error
}

// pathPlanner decides where a format export of a sheet lands. With a sheet
// mapping loaded, sheets get routed into per-discipline subfolders.
type pathPlanner struct {
	base     string
	sheetMap *mapping.SheetMap
}

func (p pathPlanner) dirFor(kind, sheetNumber string) (string, error) {
	dir, err := EnsureExportDir(p.base, kind)
	if err != nil {
		return "", err
	}
	if p.sheetMap == nil {
		return dir, nil
	}
	sub := p.sheetMap.SubfolderFor(sheetNumber)
	if sub == "" {
		return dir, nil
	}
	subDir := filepath.Join(dir, sub)
	if err := os.MkdirAll(subDir, 0755); err != nil {
		return "", err
	}
	return subDir, nil
}

// formatExporter exports single sheets to one format. The three formats
// differ only in their request options, target folder, extension and minimum
// plausible file size.
type formatExporter struct {
	format     Format
	kind       string
	ext        string
	minSizeKB  int
	doc        Document
	paths      pathPlanner
	retryDelay time.Duration
	request    func(sheet bridge.Sheet, outputPath string) bridge.ExportRequest
}

func newImageExporter(doc Document, paths pathPlanner, retryDelay time.Duration) *formatExporter {
	return &formatExporter{
		format:     FormatImage,
		kind:       "images",
		ext:        ".jpg",
		minSizeKB:  10,
		doc:        doc,
		paths:      paths,
		retryDelay: retryDelay,
		request: func(sheet bridge.Sheet, outputPath string) bridge.ExportRequest {
			return bridge.ExportRequest{
				SheetID:         sheet.ID,
				Format:          string(FormatImage),
				OutputPath:      outputPath,
				ImageDPI:        ImageDPI,
				ImagePixelWidth: ImageWidth,
			}
		},
	}
}

func newPDFExporter(doc Document, paths pathPlanner, retryDelay time.Duration) *formatExporter {
	return &formatExporter{
		format:     FormatPDF,
		kind:       "pdfs",
		ext:        ".pdf",
		minSizeKB:  5,
		doc:        doc,
		paths:      paths,
		retryDelay: retryDelay,
		request: func(sheet bridge.Sheet, outputPath string) bridge.ExportRequest {
			return bridge.ExportRequest{
				SheetID:    sheet.ID,
				Format:     string(FormatPDF),
				OutputPath: outputPath,
			}
		},
	}
}

func newDWGExporter(doc Document, paths pathPlanner, retryDelay time.Duration) *formatExporter {
	return &formatExporter{
		format:     FormatDWG,
		kind:       "dwgs",
		ext:        ".dwg",
		minSizeKB:  5,
		doc:        doc,
		paths:      paths,
		retryDelay: retryDelay,
		request: func(sheet bridge.Sheet, outputPath string) bridge.ExportRequest {
			return bridge.ExportRequest{
				SheetID:       sheet.ID,
				Format:        string(FormatDWG),
				OutputPath:    outputPath,
				DWGVersion:    DWGVersion,
				LayerStandard: LayerStandard,
			}
		},
	}
}

// ExportSheet runs up to MaxRetries attempts, retrying only transient
// failures with a fixed delay.
func (e *formatExporter) ExportSheet(ctx context.Context, sheet bridge.Sheet) FormatResult {
	var result FormatResult
	for attempt := 1; attempt <= MaxRetries; attempt++ {
		result = e.attempt(ctx, sheet, attempt)
		if result.Status == StatusSuccess {
			return result
		}
		if !result.ErrorClass.Transient() || attempt == MaxRetries {
			return result
		}

		zap.S().Named("export").Infof("%s export attempt %d for sheet %s failed: %s - retrying",
			e.format, attempt, sheet.SheetNumber, result.ErrorClass)
		select {
		case <-ctx.Done():
			return result
		case <-time.After(e.retryDelay):
		}
	}
	return result
}

func (e *formatExporter) attempt(ctx context.Context, sheet bridge.Sheet, attemptNum int) FormatResult {
	start := time.Now()

	dir, err := e.paths.dirFor(e.kind, sheet.SheetNumber)
	if err != nil {
		return FormatResult{
			Status:     StatusFailed,
			Error:      err.Error(),
			ErrorClass: Classify(err),
			Duration:   time.Since(start).Seconds(),
			Attempt:    attemptNum,
		}
	}

	outputPath := filepath.Join(dir, SafeFilename(sheet.SheetNumber, sheet.SheetName)+e.ext)

	// the host refuses to overwrite, remove any previous export first
	if _, statErr := os.Stat(outputPath); statErr == nil {
		if rmErr := os.Remove(outputPath); rmErr != nil {
			zap.S().Named("export").Warnf("could not remove existing file %s: %v", outputPath, rmErr)
		}
	}

	if err := e.doc.Export(ctx, e.request(sheet, outputPath)); err != nil {
		CleanupFailedExport(outputPath)
		return FormatResult{
			Status:     StatusFailed,
			Error:      err.Error(),
			ErrorClass: Classify(err),
			Duration:   time.Since(start).Seconds(),
			Attempt:    attemptNum,
		}
	}

	duration := time.Since(start)
	if timeout := advisoryTimeouts[e.format]; duration > timeout {
		zap.S().Named("export").Warnf("%s export of sheet %s took %.1fs (advisory timeout %s)",
			e.format, sheet.SheetNumber, duration.Seconds(), timeout)
	}

	if err := ValidateExport(outputPath, e.minSizeKB); err != nil {
		CleanupFailedExport(outputPath)
		return FormatResult{
			Status:     StatusFailed,
			Error:      "validation failed: " + err.Error(),
			ErrorClass: ClassValidationFailed,
			Duration:   duration.Seconds(),
			Attempt:    attemptNum,
		}
	}

	info, _ := os.Stat(outputPath)
	var size int64
	if info != nil {
		size = info.Size()
	}
	return FormatResult{
		Status:        StatusSuccess,
		Path:          outputPath,
		Duration:      duration.Seconds(),
		FileSizeBytes: size,
		Attempt:       attemptNum,
	}
}
