package job

// DescriptorFile is the name of the job descriptor dropped by the
// orchestrator into the worker's data directory.
const DescriptorFile = "current_job.sexyDuck"

// Status moves a job through its lifecycle. Transitions are monotonic: a job
// never moves backwards and terminal states are final within a run.
type Status string

const (
	StatusCreated   Status = "job_created"
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusExporting Status = "exporting"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// rank orders statuses for the monotonicity check. exporting and the two
// terminal states share the tier after running: a job goes running->completed
// directly when no export is requested.
var rank = map[Status]int{
	StatusCreated:   0,
	StatusPending:   1,
	StatusRunning:   2,
	StatusExporting: 3,
	StatusCompleted: 4,
	StatusFailed:    4,
}

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether moving from s to next respects the lifecycle.
func (s Status) CanTransition(next Status) bool {
	if s.Terminal() {
		return false
	}
	from, ok := rank[s]
	if !ok {
		// unknown statuses (e.g. descriptor written by a newer orchestrator)
		// are allowed to move anywhere forward of created
		from = 0
	}
	to, ok := rank[next]
	if !ok {
		return false
	}
	return to > from
}

// Paths carries the directories the orchestrator assigned to this job.
type Paths struct {
	TaskOutputDir string `json:"task_output_dir"`
	DebugDir      string `json:"debug_dir"`
}

// Descriptor is the file-based job contract with the orchestrator. It is read
// once per run and mutated in place to advance Status.
type Descriptor struct {
	JobID        string `json:"job_id"`
	HubName      string `json:"hub_name"`
	ProjectName  string `json:"project_name"`
	ModelName    string `json:"model_name"`
	ModelPath    string `json:"model_path"`
	RevitVersion string `json:"revit_version"`
	RunExporter  bool   `json:"run_exporter"`
	Paths        Paths  `json:"paths"`

	Status Status `json:"status,omitempty"`

	// set on failure only
	Logs     string `json:"logs,omitempty"`
	ErrorMsg string `json:"error_msg,omitempty"`
}
