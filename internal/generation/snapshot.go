package generation

import "time"

// State is the worker's position in its loop.
type State string

const (
	StateStarting    State = "starting"
	StateIdle        State = "idle"
	StateReconciling State = "reconciling"
	StateGenerating  State = "generating"
	StateWriting     State = "writing"
	StateNotifying   State = "notifying"
	StateTerminated  State = "terminated"
)

// Snapshot is a read-only projection of the worker, safe to share across goroutines.
type Snapshot struct {
	State           State     `json:"state"`
	ModelID         string    `json:"model_id"`
	DurationSeconds float64   `json:"duration_seconds"`
	Device          string    `json:"device"`
	QueueDepth      int       `json:"queue_depth"`
	CurrentRequest  string    `json:"current_request,omitempty"`
	Completed       uint64    `json:"completed"`
	Failed          uint64    `json:"failed"`
	Cancelled       uint64    `json:"cancelled"`
	LastArtifact    string    `json:"last_artifact,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}
