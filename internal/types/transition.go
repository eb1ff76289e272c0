package types

import "time"

// EventType labels a transition record. The set is open: any string is a
// valid event type, and readers must tolerate types they do not know.
// Constants exist for the events this store emits itself.
type EventType string

const (
	// EventProjectInitialized indicates state files were created for a project
	EventProjectInitialized EventType = "project_initialized"
	// EventStateUpdated indicates top-level snapshot fields were merged
	EventStateUpdated EventType = "state_updated"
	// EventStageStarted indicates a pipeline stage entered in_progress
	EventStageStarted EventType = "stage_started"
	// EventStageCompleted indicates a pipeline stage finished successfully
	EventStageCompleted EventType = "stage_completed"
	// EventStageFailed indicates a pipeline stage failed
	EventStageFailed EventType = "stage_failed"
	// EventCheckpointCreated indicates a recovery checkpoint was recorded
	EventCheckpointCreated EventType = "checkpoint_created"
	// EventErrorRecorded indicates a dead-letter entry was written
	EventErrorRecorded EventType = "error_recorded"
)

// StateRef captures the status/stage pair on either side of a transition
type StateRef struct {
	Status ProjectStatus `json:"status"`
	Stage  string        `json:"stage"`
}

// ArtifactChange records one artifact touched by a transition
type ArtifactChange struct {
	Path   string `json:"path"`
	Action string `json:"action"`
}

// TransitionRecord is one immutable entry in the append-only audit log.
// Records are never rewritten or reordered once appended. All fields
// besides id, timestamp, project_id, and event_type are optional and
// omitted when empty.
type TransitionRecord struct {
	ID                 string                 `json:"id"`
	Timestamp          time.Time              `json:"timestamp"`
	ProjectID          string                 `json:"project_id"`
	EventType          EventType              `json:"event_type"`
	Stage              string                 `json:"stage,omitempty"`
	Agent              string                 `json:"agent,omitempty"`
	FromState          *StateRef              `json:"from_state,omitempty"`
	ToState            *StateRef              `json:"to_state,omitempty"`
	Metadata           map[string]interface{} `json:"metadata,omitempty"`
	Labels             map[string]interface{} `json:"labels,omitempty"`
	Artifacts          []ArtifactChange       `json:"artifacts,omitempty"`
	Metrics            map[string]interface{} `json:"metrics,omitempty"`
	Error              *ErrorInfo             `json:"error,omitempty"`
	Actor              map[string]string      `json:"actor,omitempty"`
	ParentTransitionID string                 `json:"parent_transition_id,omitempty"`
	CheckpointID       string                 `json:"checkpoint_id,omitempty"`
}
