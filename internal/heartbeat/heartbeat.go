package heartbeat

import (
	"context"
	"fmt"
	"os"
	"path"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	logFilename = "_heartbeat.txt"
)

// Heartbeat writes a timestamped line to an append-only file so an external
// watcher can tell a stuck worker from a dead one. The file is never
// truncated: liveness history across restarts is the point.
//
// Example content:
// [2026-08-24T15:54:03+02:00] started
// [2026-08-24T15:55:03+02:00] alive
// [2026-08-24T15:56:03+02:00] alive
type Heartbeat struct {
	once        sync.Once
	interval    time.Duration
	logFilepath string
	logFile     *os.File
}

func New(debugDir string, interval time.Duration) (*Heartbeat, error) {
	if _, err := os.Stat(debugDir); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("debug folder %s does not exist", debugDir)
		}
		return nil, fmt.Errorf("failed to stat the debug folder %s: %w", debugDir, err)
	}

	logFile := path.Join(debugDir, logFilename)
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s for append %w", logFile, err)
	}

	return &Heartbeat{
		interval:    interval,
		logFilepath: logFile,
		logFile:     f,
	}, nil
}

// Path returns the heartbeat file location.
func (h *Heartbeat) Path() string {
	return h.logFilepath
}

// Start writes the initial "started" beat and then beats on every tick until
// a channel arrives on closeCh. The caller receives a message back once the
// file is flushed and closed.
func (h *Heartbeat) Start(ctx context.Context, closeCh chan chan any) {
	h.beat("started")

	h.once.Do(func() {
		go func() {
			t := time.NewTicker(h.interval)
			defer t.Stop()
			for {
				select {
				case c := <-closeCh:
					h.shutdown()
					c <- struct{}{}
					close(c)
					return
				case <-ctx.Done():
					h.shutdown()
					// the stop handshake must still be served, Stop blocks on
					// it even when the context is already gone
					c := <-closeCh
					c <- struct{}{}
					close(c)
					return
				case <-t.C:
					h.beat("alive")
				}
			}
		}()
	})
}

func (h *Heartbeat) shutdown() {
	h.beat("stopped")
	if err := h.logFile.Sync(); err != nil {
		zap.S().Named("heartbeat").Errorf("failed to flush the heartbeat file: %v", err)
	}
	if err := h.logFile.Close(); err != nil {
		zap.S().Named("heartbeat").Errorf("failed to close heartbeat file %s: %v", h.logFilepath, err)
	}
}

func (h *Heartbeat) beat(message string) {
	line := fmt.Sprintf("[%s] %s\n", time.Now().Format(time.RFC3339), message)
	if _, err := h.logFile.Write([]byte(line)); err != nil {
		zap.S().Named("heartbeat").Errorf("failed to write to heartbeat file %s: %v", h.logFilepath, err)
	}
}
