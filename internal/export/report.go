package export

// Per-format and per-sheet status values as they appear in the report.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"

	OverallAllSuccess = "all_success"
	OverallPartial    = "partial"
	OverallAllFailed  = "all_failed"
)

// FormatResult is the uniform outcome shape of one format export of one
// sheet, regardless of how the attempt ended.
type FormatResult struct {
	Status        string  `json:"status"`
	Path          string  `json:"path,omitempty"`
	Error         string  `json:"error,omitempty"`
	ErrorClass    Class   `json:"error_class,omitempty"`
	Duration      float64 `json:"duration"`
	FileSizeBytes int64   `json:"file_size_bytes,omitempty"`
	Attempt       int     `json:"attempt"`
}

// SheetResult aggregates the three format results of one sheet.
type SheetResult struct {
	SheetName     string                  `json:"sheet_name"`
	SheetNumber   string                  `json:"sheet_number"`
	Exports       map[Format]FormatResult `json:"exports"`
	OverallStatus string                  `json:"overall_status"`
}

// OverallStatus derives the sheet-level status from the three per-format
// outcomes: all_success only when every format succeeded, all_failed only
// when none did.
func OverallStatus(image, pdf, dwg bool) string {
	successes := 0
	for _, ok := range []bool{image, pdf, dwg} {
		if ok {
			successes++
		}
	}
	switch successes {
	case 3:
		return OverallAllSuccess
	case 0:
		return OverallAllFailed
	default:
		return OverallPartial
	}
}

// ReportError is a pipeline-level failure entry (sheet selection failed,
// coordinator aborted).
type ReportError struct {
	Error      string `json:"error"`
	ErrorClass Class  `json:"error_class"`
}

type Summary struct {
	TotalSheets      int `json:"total_sheets"`
	SuccessfulSheets int `json:"successful_sheets"`
	FailedSheets     int `json:"failed_sheets"`
	PartialFailures  int `json:"partial_failures"`
}

type Performance struct {
	TotalDurationSeconds float64 `json:"total_duration_seconds"`
	AverageTimePerSheet  float64 `json:"average_time_per_sheet"`
}

// Settings echoes the fixed export settings into the report so a result file
// is self-describing.
type Settings struct {
	ImageResolution string `json:"image_resolution"`
	ImageWidth      int    `json:"image_width"`
	PDFCombine      bool   `json:"pdf_combine"`
	DWGVersion      string `json:"dwg_version"`
	SheetSelection  string `json:"sheet_selection"`
}

// Report is the aggregate outcome of one export run. It is built
// incrementally and finalized once; a finished report is never mutated.
type Report struct {
	ExportStatus string        `json:"export_status"`
	Summary      Summary       `json:"summary"`
	Sheets       []SheetResult `json:"sheets"`
	Errors       []ReportError `json:"errors"`
	Performance  Performance   `json:"performance"`
	Settings     Settings      `json:"settings"`
}
