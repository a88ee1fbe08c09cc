package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/enneadtab/revit-worker/internal/bridge"
	"github.com/enneadtab/revit-worker/internal/fileio"
	"github.com/enneadtab/revit-worker/internal/health"
	"github.com/enneadtab/revit-worker/internal/heartbeat"
	"github.com/enneadtab/revit-worker/internal/job"
	"github.com/enneadtab/revit-worker/internal/mapping"
	"github.com/enneadtab/revit-worker/internal/registry"
	"github.com/enneadtab/revit-worker/internal/store"
	"github.com/enneadtab/revit-worker/internal/worker/config"
	"github.com/lthibault/jitterbug/v2"
	"go.uber.org/zap"
)

// This variable is set during build time.
// It contains the version of the code.
var version string

// ErrNoJob is returned by RunOnce when no job descriptor appeared within the
// poll timeout.
var ErrNoJob = errors.New("no job descriptor appeared within the poll timeout")

// Worker watches the data directory for job descriptors and processes them
// one at a time. A small status server and a heartbeat file make the worker
// observable from outside while a long job is running.
type Worker struct {
	config          *config.Config
	client          *bridge.Client
	store           store.Store
	registry        *registry.Registry
	sheetMap        *mapping.SheetMap
	server          *Server
	heartbeat       *heartbeat.Heartbeat
	heartbeatStopCh chan chan any
	log             *zap.SugaredLogger
}

func New(cfg *config.Config) *Worker {
	return &Worker{
		config:          cfg,
		heartbeatStopCh: make(chan chan any),
		log:             zap.S().Named("worker"),
	}
}

func Version() string {
	if version == "" {
		return "dev"
	}
	return version
}

// Run starts the worker and blocks until a termination signal arrives.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Infof("Starting worker: %s", Version())
	defer w.log.Infof("Worker stopped")
	w.log.Infof("Configuration: %s", w.config.String())

	if err := w.initialize(ctx); err != nil {
		return err
	}
	defer w.close()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	ctx, cancel := context.WithCancel(ctx)
	w.start(ctx)

	select {
	case <-sig:
	case <-ctx.Done():
	}

	w.log.Info("stopping worker...")
	w.Stop()
	cancel()

	return nil
}

// RunOnce waits for a single job descriptor, processes it and returns. Used
// by orchestrators that schedule the worker per job instead of running it as
// a service.
func (w *Worker) RunOnce(ctx context.Context) error {
	w.log.Infof("Starting worker (single job): %s", Version())

	if err := w.initialize(ctx); err != nil {
		return err
	}
	defer w.close()

	descriptorPath := w.descriptorPath()
	deadline := time.Now().Add(w.config.PollTimeout.Duration)
	reader := fileio.NewReader()

	for reader.CheckPathExists(descriptorPath) != nil {
		if time.Now().After(deadline) {
			return ErrNoJob
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.config.PollInterval.Duration):
		}
	}

	return w.processJob(ctx)
}

func (w *Worker) Stop() {
	if w.server != nil {
		serverCh := make(chan any)
		w.server.Stop(serverCh)
		<-serverCh
		w.log.Info("server stopped")
	}

	if w.heartbeat != nil {
		c := make(chan any)
		w.heartbeatStopCh <- c
		<-c
		w.log.Info("heartbeat stopped")
	}
}

func (w *Worker) initialize(ctx context.Context) error {
	for _, dir := range []string{w.config.TaskOutputDir, w.config.DebugDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	client, err := bridge.NewClient(&w.config.Bridge)
	if err != nil {
		return err
	}
	w.client = client
	if err := client.Health(ctx); err != nil {
		// jobs will fail until the bridge comes up, the worker itself stays up
		w.log.Warnf("bridge not reachable at %s: %v", w.config.Bridge.Endpoint, err)
	}

	db, err := store.InitDB(w.config.DatabaseFile)
	if err != nil {
		return fmt.Errorf("initializing run history database: %w", err)
	}
	w.store = store.NewStore(db)

	w.registry = registry.New(w.config.DebugDir)

	if w.config.MappingFile != "" {
		sheetMap, err := mapping.Load(w.config.MappingFile)
		if err != nil {
			w.log.Warnf("could not load sheet mapping %s: %v", w.config.MappingFile, err)
		} else {
			w.sheetMap = sheetMap
			w.log.Infof("loaded sheet mapping with %d entries", sheetMap.Len())
		}
	}

	return nil
}

func (w *Worker) close() {
	if w.store != nil {
		if err := w.store.Close(); err != nil {
			w.log.Warnf("closing run history database: %v", err)
		}
	}
}

func (w *Worker) start(ctx context.Context) {
	if w.config.ServerPort > 0 {
		w.server = NewServer(w.config.ServerPort, w)
		go w.server.Start()
	}

	hb, err := heartbeat.New(w.config.DebugDir, w.config.HeartbeatInterval.Duration)
	if err != nil {
		w.log.Errorf("could not start heartbeat: %v", err)
	} else {
		w.heartbeat = hb
		w.heartbeat.Start(ctx, w.heartbeatStopCh)
	}

	pollTicker := jitterbug.New(w.config.PollInterval.Duration, &jitterbug.Norm{Stdev: 100 * time.Millisecond})

	go func() {
		defer pollTicker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-pollTicker.C:
			}

			if !w.hasPendingJob() {
				continue
			}
			if err := w.processJob(ctx); err != nil {
				w.log.Errorf("job failed: %v", err)
			}
		}
	}()
}

func (w *Worker) descriptorPath() string {
	return filepath.Join(w.config.DataDir, job.DescriptorFile)
}

// hasPendingJob reports whether the descriptor file exists and has not been
// processed yet. A descriptor left in a terminal state belongs to the
// orchestrator until it drops a new one.
func (w *Worker) hasPendingJob() bool {
	descriptor := &job.Descriptor{}
	if err := fileio.NewReader().ReadJSON(w.descriptorPath(), descriptor); err != nil {
		return false
	}
	return !descriptor.Status.Terminal()
}

func (w *Worker) processJob(ctx context.Context) error {
	opts := []job.RunnerOption{}
	if w.sheetMap != nil {
		opts = append(opts, job.WithSheetMap(w.sheetMap))
	}
	runner := job.NewRunner(w.descriptorPath(), w.client, health.NewCollector(), w.registry, opts...)

	run, runErr := runner.Run(ctx)
	if run != nil {
		if err := w.store.CreateRun(ctx, run); err != nil {
			w.log.Warnf("could not record run history: %v", err)
		}
	}
	return runErr
}
