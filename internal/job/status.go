package job

import (
	"fmt"

	"github.com/enneadtab/revit-worker/internal/fileio"
	"go.uber.org/zap"
)

// StatusUpdater persists every status transition of a job descriptor back to
// its file so an external watcher can observe progress. Writes go through the
// atomic writer; a refused (non-monotonic) transition is an error and leaves
// the file untouched.
type StatusUpdater struct {
	descriptor *Descriptor
	filePath   string
	writer     *fileio.Writer
}

func NewStatusUpdater(descriptor *Descriptor, filePath string, writer *fileio.Writer) *StatusUpdater {
	return &StatusUpdater{
		descriptor: descriptor,
		filePath:   filePath,
		writer:     writer,
	}
}

// Descriptor returns the descriptor being tracked.
func (u *StatusUpdater) Descriptor() *Descriptor {
	return u.descriptor
}

// Update advances the job to next and persists the descriptor.
func (u *StatusUpdater) Update(next Status) error {
	current := u.descriptor.Status
	if current == "" {
		current = StatusCreated
	}
	if !current.CanTransition(next) {
		return fmt.Errorf("illegal status transition %q -> %q", current, next)
	}

	u.descriptor.Status = next
	if err := u.writer.WriteJSONAtomic(u.filePath, u.descriptor); err != nil {
		// roll the in-memory status back so a retry sees the persisted state
		u.descriptor.Status = current
		return fmt.Errorf("persisting status %q: %w", next, err)
	}

	zap.S().Named("job").Infof("job %s status set to %s", u.descriptor.JobID, next)
	return nil
}

// Fail marks the job failed and attaches the accumulated logs and the error
// text. Failing an already terminal job is a no-op so the first terminal
// write wins.
func (u *StatusUpdater) Fail(logs, errorMsg string) error {
	current := u.descriptor.Status
	if current.Terminal() {
		return nil
	}
	u.descriptor.Logs = logs
	u.descriptor.ErrorMsg = errorMsg
	return u.Update(StatusFailed)
}
