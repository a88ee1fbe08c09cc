package job

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/enneadtab/revit-worker/internal/bridge"
	"github.com/enneadtab/revit-worker/internal/export"
	"github.com/enneadtab/revit-worker/internal/fileio"
	"github.com/enneadtab/revit-worker/internal/health"
	"github.com/enneadtab/revit-worker/internal/mapping"
	"github.com/enneadtab/revit-worker/internal/metrics"
	"github.com/enneadtab/revit-worker/internal/registry"
	"github.com/enneadtab/revit-worker/internal/store"
	"go.uber.org/zap"
)

// Metadata identifies a job in result and failure payloads.
type Metadata struct {
	JobID        string `json:"job_id"`
	HubName      string `json:"hub_name"`
	ProjectName  string `json:"project_name"`
	ModelName    string `json:"model_name"`
	RevitVersion string `json:"revit_version"`
	Timestamp    string `json:"timestamp"`
}

// ResultPayload is the write-once result file of a job run.
type ResultPayload struct {
	JobMetadata   Metadata       `json:"job_metadata"`
	HealthMetrics map[string]any `json:"health_metrics,omitempty"`
	ExportReport  *export.Report `json:"export_report,omitempty"`
	Status        Status         `json:"status"`
	Logs          string         `json:"logs,omitempty"`
	ErrorMsg      string         `json:"error_msg,omitempty"`
}

// Runner executes one job descriptor end to end: status transitions, open
// model, health metrics, optional export, result file. Stage isolation is
// the contract: the export stage may fail without failing the job, only the
// descriptor itself, the model open and the result write are fatal.
type Runner struct {
	descriptorPath string
	client         *bridge.Client
	collector      *health.Collector
	registry       *registry.Registry
	sheetMap       *mapping.SheetMap
	reader         *fileio.Reader
	writer         *fileio.Writer
	retryDelay     time.Duration
	now            func() time.Time
	log            *zap.SugaredLogger
}

type RunnerOption func(*Runner)

// WithSheetMap routes exports into mapped subfolders.
func WithSheetMap(m *mapping.SheetMap) RunnerOption {
	return func(r *Runner) {
		r.sheetMap = m
	}
}

// WithRetryDelay shortens the export retry delay, useful for testing.
func WithRetryDelay(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.retryDelay = d
	}
}

func NewRunner(descriptorPath string, client *bridge.Client, collector *health.Collector, reg *registry.Registry, opts ...RunnerOption) *Runner {
	r := &Runner{
		descriptorPath: descriptorPath,
		client:         client,
		collector:      collector,
		registry:       reg,
		reader:         fileio.NewReader(),
		writer:         fileio.NewWriter(),
		retryDelay:     export.DefaultRetryDelay,
		now:            time.Now,
		log:            zap.S().Named("job"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run processes the descriptor at descriptorPath and returns a history
// record of the run. The returned error reflects a fatal pipeline failure;
// per-sheet or per-format export failures are reported, not returned.
func (r *Runner) Run(ctx context.Context) (*store.JobRun, error) {
	var logs []string
	var dbg *debugLog
	defer func() { dbg.close() }()
	note := func(format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		logs = append(logs, msg)
		dbg.writeLine(r.now(), msg)
		r.log.Info(msg)
	}

	descriptor := &Descriptor{}
	if err := r.reader.ReadJSON(r.descriptorPath, descriptor); err != nil {
		err = fmt.Errorf("reading job descriptor %s: %w", r.descriptorPath, err)
		r.registry.Record("job_descriptor", "internal/job/runner.go", err)
		r.writeFailurePayload(nil, logs, err)
		metrics.RecordJobRun(string(StatusFailed))
		return nil, err
	}

	dbg = openDebugLog(descriptor.Paths.DebugDir)
	updater := NewStatusUpdater(descriptor, r.descriptorPath, r.writer)

	fail := func(kind string, err error) (*store.JobRun, error) {
		r.registry.Record(kind, "internal/job/runner.go", err)
		if failErr := updater.Fail(strings.Join(logs, "\n"), err.Error()); failErr != nil {
			r.log.Errorf("could not persist failed status: %v", failErr)
		}
		r.writeFailurePayload(descriptor, logs, err)
		metrics.RecordJobRun(string(StatusFailed))
		return r.historyRecord(descriptor, StatusFailed, nil, ""), err
	}

	if err := updater.Update(StatusPending); err != nil {
		return fail("job_status", err)
	}
	note("Job %s set to pending", descriptor.JobID)

	if err := updater.Update(StatusRunning); err != nil {
		return fail("job_status", err)
	}
	note("Job %s set to running", descriptor.JobID)

	// worksets stay closed for metric-only runs; export needs the sheets
	// fully loaded
	doc, err := r.client.OpenModel(ctx, bridge.OpenModelRequest{
		ModelPath:         descriptor.ModelPath,
		DetachFromCentral: true,
		CloseAllWorksets:  !descriptor.RunExporter,
	})
	if err != nil {
		return fail("open_model", fmt.Errorf("opening model %s: %w", descriptor.ModelPath, err))
	}
	note("Opened model %s (workshared=%t)", descriptor.ModelName, doc.IsWorkshared())
	defer func() {
		if closeErr := doc.Close(context.WithoutCancel(ctx)); closeErr != nil {
			r.log.Warnf("closing model: %v", closeErr)
		}
	}()

	// essential stage: always runs, individual checks isolate their own
	// failures
	healthMetrics := r.collector.Collect(ctx, doc)
	note("Collected %d health metric groups", len(healthMetrics))

	var report *export.Report
	if descriptor.RunExporter {
		if err := updater.Update(StatusExporting); err != nil {
			return fail("job_status", err)
		}
		note("Job %s set to exporting", descriptor.JobID)

		outputBase := filepath.Join(descriptor.Paths.TaskOutputDir, export.Sanitize(descriptor.ModelName))
		coordinatorOpts := []export.CoordinatorOption{export.WithRetryDelay(r.retryDelay)}
		if r.sheetMap != nil {
			coordinatorOpts = append(coordinatorOpts, export.WithSheetMap(r.sheetMap))
		}
		report = export.NewCoordinator(doc, outputBase, coordinatorOpts...).ExportAll(ctx)
		note("Export finished: %s (%d/%d sheets)", report.ExportStatus,
			report.Summary.SuccessfulSheets, report.Summary.TotalSheets)

		// a failed export is reported, never fatal
		if report.ExportStatus == export.StatusFailed && len(report.Errors) > 0 {
			r.registry.Record("export", "internal/export/coordinator.go",
				fmt.Errorf("%s", report.Errors[0].Error))
		}
	}

	resultFile, err := r.writeResultPayload(descriptor, healthMetrics, report, logs)
	if err != nil {
		return fail("result_file", err)
	}
	note("Output saved: %s", resultFile)

	if err := updater.Update(StatusCompleted); err != nil {
		return fail("job_status", err)
	}
	note("Job %s completed", descriptor.JobID)

	metrics.RecordJobRun(string(StatusCompleted))
	return r.historyRecord(descriptor, StatusCompleted, report, resultFile), nil
}

// ResultFilename builds the result file name: {monday-date}_{hub}_{project}_{model}.sexyDuck
func ResultFilename(descriptor *Descriptor, now time.Time) string {
	name := fmt.Sprintf("%s_%s_%s_%s.sexyDuck",
		mondayOf(now).Format("2006-01-02"),
		orDefault(descriptor.HubName, "hub"),
		orDefault(descriptor.ProjectName, "project"),
		orDefault(descriptor.ModelName, "model"),
	)
	return export.Sanitize(name)
}

// mondayOf returns the Monday of the week containing t, so all runs of one
// week land in the same result file name.
func mondayOf(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset)
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func (r *Runner) metadata(descriptor *Descriptor) Metadata {
	if descriptor == nil {
		descriptor = &Descriptor{
			JobID:        "unknown_job",
			HubName:      "unknown_hub",
			ProjectName:  "unknown_project",
			ModelName:    "unknown_model",
			RevitVersion: "Unknown",
		}
	}
	return Metadata{
		JobID:        descriptor.JobID,
		HubName:      descriptor.HubName,
		ProjectName:  descriptor.ProjectName,
		ModelName:    descriptor.ModelName,
		RevitVersion: descriptor.RevitVersion,
		Timestamp:    r.now().Format(time.RFC3339),
	}
}

func (r *Runner) writeResultPayload(descriptor *Descriptor, healthMetrics map[string]any, report *export.Report, logs []string) (string, error) {
	payload := ResultPayload{
		JobMetadata:   r.metadata(descriptor),
		HealthMetrics: healthMetrics,
		ExportReport:  report,
		Status:        StatusCompleted,
		Logs:          strings.Join(logs, "\n"),
	}

	resultFile := filepath.Join(descriptor.Paths.TaskOutputDir, ResultFilename(descriptor, r.now()))
	if err := r.writer.WriteJSONAtomic(resultFile, payload); err != nil {
		return "", fmt.Errorf("writing result file: %w", err)
	}
	return resultFile, nil
}

// writeFailurePayload emits a failure result file into the debug directory so
// the failure is visible outside the worker even when the descriptor itself
// could not be updated.
func (r *Runner) writeFailurePayload(descriptor *Descriptor, logs []string, runErr error) {
	debugDir := filepath.Dir(r.descriptorPath)
	if descriptor != nil && descriptor.Paths.DebugDir != "" {
		debugDir = descriptor.Paths.DebugDir
	}

	metadata := r.metadata(descriptor)
	name := export.Sanitize(fmt.Sprintf("%s_%s_%s_ERROR.sexyDuck",
		mondayOf(r.now()).Format("2006-01-02"), metadata.HubName, metadata.ModelName))

	payload := ResultPayload{
		JobMetadata: metadata,
		Status:      StatusFailed,
		Logs:        strings.Join(logs, "\n"),
		ErrorMsg:    runErr.Error(),
	}
	if err := r.writer.WriteJSONAtomic(filepath.Join(debugDir, name), payload); err != nil {
		r.log.Errorf("could not write failure payload: %v", err)
	}
}

// debugLogFile is the per-run event log appended next to the heartbeat.
const debugLogFile = "debug.txt"

// debugLog appends job events to debug.txt in the debug directory. All
// methods are nil-safe: a job must never fail because its event log could
// not be opened.
type debugLog struct {
	f *os.File
}

func openDebugLog(debugDir string) *debugLog {
	if debugDir == "" {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(debugDir, debugLogFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		zap.S().Named("job").Warnf("could not open debug log: %v", err)
		return nil
	}
	return &debugLog{f: f}
}

func (d *debugLog) writeLine(at time.Time, msg string) {
	if d == nil {
		return
	}
	if _, err := fmt.Fprintf(d.f, "[%s] %s\n", at.Format(time.RFC3339), msg); err != nil {
		zap.S().Named("job").Warnf("could not append to debug log: %v", err)
	}
}

func (d *debugLog) close() {
	if d == nil {
		return
	}
	_ = d.f.Close()
}

func (r *Runner) historyRecord(descriptor *Descriptor, status Status, report *export.Report, resultFile string) *store.JobRun {
	run := &store.JobRun{
		JobID:       descriptor.JobID,
		HubName:     descriptor.HubName,
		ProjectName: descriptor.ProjectName,
		ModelName:   descriptor.ModelName,
		Status:      string(status),
		ResultFile:  resultFile,
		CreatedAt:   r.now(),
	}
	if report != nil {
		run.TotalSheets = report.Summary.TotalSheets
		run.SuccessfulSheets = report.Summary.SuccessfulSheets
		run.FailedSheets = report.Summary.FailedSheets
		run.PartialSheets = report.Summary.PartialFailures
		run.DurationSeconds = report.Performance.TotalDurationSeconds
	}
	return run
}
