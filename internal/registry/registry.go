package registry

import (
	"runtime/debug"
	"sync"
	"time"

	"github.com/enneadtab/revit-worker/internal/fileio"
	"go.uber.org/zap"
)

// RegistryFile is the name of the registry file inside the debug directory.
const RegistryFile = "error_registry.json"

// Entry records one error kind. Repeat occurrences bump Count and refresh
// LastSeen plus the latest message and stack; the registry never grows per
// occurrence, only per kind.
type Entry struct {
	FirstSeen    string `json:"first_seen"`
	LastSeen     string `json:"last_seen"`
	Count        int    `json:"count"`
	ModulePath   string `json:"module_path"`
	Traceback    string `json:"traceback"`
	ErrorMessage string `json:"error_message"`
}

// Registry is a deduplicating record of worker errors, persisted as a JSON
// map keyed by error kind. It exists for operator triage: "what keeps
// failing, since when, how often" rather than a growing log.
type Registry struct {
	mu      sync.Mutex
	entries map[string]Entry
	path    string
	writer  *fileio.Writer
	now     func() time.Time
}

func New(debugDir string) *Registry {
	writer := fileio.NewWriter()
	writer.SetRootdir(debugDir)
	reader := fileio.NewReader()
	reader.SetRootdir(debugDir)

	entries := make(map[string]Entry)
	if err := reader.ReadJSON(RegistryFile, &entries); err != nil {
		// a fresh or corrupt registry starts empty
		entries = make(map[string]Entry)
	}

	return &Registry{
		entries: entries,
		path:    RegistryFile,
		writer:  writer,
		now:     time.Now,
	}
}

// Record logs an error under kind and persists the registry. Persistence
// failures are logged and swallowed: the registry must never take down the
// pipeline it is reporting on.
func (r *Registry) Record(kind, modulePath string, err error) {
	if err == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().Format(time.RFC3339)
	entry, exists := r.entries[kind]
	if !exists {
		entry = Entry{FirstSeen: now}
	}
	entry.Count++
	entry.LastSeen = now
	entry.ModulePath = modulePath
	entry.ErrorMessage = err.Error()
	entry.Traceback = string(debug.Stack())
	r.entries[kind] = entry

	if persistErr := r.writer.WriteJSONAtomic(r.path, r.entries); persistErr != nil {
		zap.S().Named("registry").Errorf("failed to persist error registry: %v", persistErr)
	}
}

// Entries returns a copy of the current registry content.
func (r *Registry) Entries() map[string]Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]Entry, len(r.entries))
	for k, v := range r.entries {
		out[k] = v
	}
	return out
}
