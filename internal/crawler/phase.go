package crawler

import "time"

// Phase is the orchestrator lifecycle state.
type Phase int

// Lifecycle: Idle -> Running -> (Draining | Completed) -> Terminated.
const (
	PhaseIdle Phase = iota
	PhaseRunning
	PhaseDraining
	PhaseCompleted
	PhaseTerminated
)

func (p Phase) String() string {
	switch p {
	case PhaseRunning:
		return "running"
	case PhaseDraining:
		return "draining"
	case PhaseCompleted:
		return "completed"
	case PhaseTerminated:
		return "terminated"
	default:
		return "idle"
	}
}

// MarshalText renders the phase name in JSON payloads.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Progress is a point-in-time view of a run, served by the status API.
type Progress struct {
	RunID      string    `json:"run_id,omitempty"`
	Phase      Phase     `json:"phase"`
	Processed  int       `json:"processed"`
	Failed     int       `json:"failed"`
	Records    int       `json:"records"`
	Pending    int       `json:"pending"`
	Visited    int       `json:"visited"`
	Batches    int       `json:"batches"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// CrawlState is everything a run accumulates. The engine owns it and threads
// it through each batch.
type CrawlState struct {
	Frontier  *Frontier
	Records   []ContentRecord
	Processed int
	Failed    int
	Batches   int
}

// TaskOutcome is the result of processing one URL. Exactly one of Err or the
// extracted data is meaningful.
type TaskOutcome struct {
	URL     string
	Kind    TaskKind
	Records []ContentRecord
	Links   []string
	Err     error
}
