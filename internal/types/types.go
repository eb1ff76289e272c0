package types

import (
	"fmt"
	"strings"
	"time"
)

// SchemaVersion is stamped into every state and dead-letter document.
const SchemaVersion = "1.0.0"

// ProjectStatus represents the overall state of a project
type ProjectStatus string

const (
	ProjectInitializing ProjectStatus = "initializing"
	ProjectInProgress   ProjectStatus = "in_progress"
	ProjectCompleted    ProjectStatus = "completed"
	ProjectFailed       ProjectStatus = "failed"
)

// IsValid checks if the project status value is valid
func (s ProjectStatus) IsValid() bool {
	switch s {
	case ProjectInitializing, ProjectInProgress, ProjectCompleted, ProjectFailed:
		return true
	}
	return false
}

// StageStatus represents the lifecycle state of a single pipeline stage
type StageStatus string

const (
	StagePending    StageStatus = "pending"
	StageInProgress StageStatus = "in_progress"
	StageCompleted  StageStatus = "completed"
	StageFailed     StageStatus = "failed"
)

// IsValid checks if the stage status value is valid
func (s StageStatus) IsValid() bool {
	switch s {
	case StagePending, StageInProgress, StageCompleted, StageFailed:
		return true
	}
	return false
}

// CheckpointStatus records whether a checkpoint marks a successful or
// failed stage boundary
type CheckpointStatus string

const (
	CheckpointSuccess CheckpointStatus = "success"
	CheckpointFailed  CheckpointStatus = "failed"
)

// IsValid checks if the checkpoint status value is valid
func (s CheckpointStatus) IsValid() bool {
	switch s {
	case CheckpointSuccess, CheckpointFailed:
		return true
	}
	return false
}

// Snapshot is the current mutable view of a project's progress. It is
// replaced wholesale on every mutation; history lives in the transition log.
type Snapshot struct {
	ProjectID    string                  `json:"project_id"`
	Version      string                  `json:"version"`
	CreatedAt    time.Time               `json:"created_at"`
	UpdatedAt    time.Time               `json:"updated_at"`
	IssueNumber  int                     `json:"issue_number"`
	Branch       string                  `json:"branch"`
	CurrentStage string                  `json:"current_stage"`
	Status       ProjectStatus           `json:"status"`
	Stages       map[string]*StageRecord `json:"stages"`
	Checkpoints  []Checkpoint            `json:"checkpoints"`
	Labels       Labels                  `json:"labels"`
	Metrics      Metrics                 `json:"metrics"`
	RecoveryInfo RecoveryInfo            `json:"recovery_info"`
}

// Stage returns the record for the named stage, creating a pending record
// in place if none exists. The stage set is open: unknown names are valid
// and come into existence on first use.
func (s *Snapshot) Stage(name string) *StageRecord {
	if s.Stages == nil {
		s.Stages = make(map[string]*StageRecord)
	}
	rec, ok := s.Stages[name]
	if !ok {
		rec = &StageRecord{Status: StagePending}
		s.Stages[name] = rec
	}
	return rec
}

// Validate checks if the snapshot has valid field values
func (s *Snapshot) Validate() error {
	if len(s.ProjectID) == 0 {
		return fmt.Errorf("project_id is required")
	}
	if !s.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", s.Status)
	}
	for name, rec := range s.Stages {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("stage name must not be empty")
		}
		if !rec.Status.IsValid() {
			return fmt.Errorf("invalid status for stage %s: %s", name, rec.Status)
		}
	}
	return nil
}

// StageRecord tracks one pipeline stage within a snapshot
type StageRecord struct {
	Status          StageStatus `json:"status"`
	StartedAt       *time.Time  `json:"started_at,omitempty"`
	CompletedAt     *time.Time  `json:"completed_at,omitempty"`
	DurationSeconds float64     `json:"duration_seconds,omitempty"`
	Agent           string      `json:"agent,omitempty"`
	Artifacts       []string    `json:"artifacts,omitempty"`
	RetryCount      int         `json:"retry_count"`
	Error           string      `json:"error,omitempty"`
}

// Checkpoint is a durable recovery marker recorded at a stage boundary.
// Only the most recent MaxCheckpoints are retained, but ids are never
// reused even after eviction.
type Checkpoint struct {
	ID        string                 `json:"id"`
	Stage     string                 `json:"stage"`
	Timestamp time.Time              `json:"timestamp"`
	Status    CheckpointStatus       `json:"status"`
	Artifacts []string               `json:"artifacts"`
	Metadata  map[string]interface{} `json:"metadata"`
}

// Labels holds the project's label sets
type Labels struct {
	GitHub []string          `json:"github"`
	Custom map[string]string `json:"custom"`
}

// Metrics holds running counters for a project
type Metrics struct {
	TotalDurationSeconds float64            `json:"total_duration_seconds"`
	StageDurations       map[string]float64 `json:"stage_durations"`
	RetryCount           int                `json:"retry_count"`
	AgentInvocations     int                `json:"agent_invocations"`
	ArtifactsGenerated   int                `json:"artifacts_generated"`
	DeadLetters          int                `json:"dead_letters"`
}

// RecoveryInfo points at where a crashed or halted pipeline can resume
type RecoveryInfo struct {
	LastSuccessfulCheckpoint string `json:"last_successful_checkpoint,omitempty"`
	CanResume                bool   `json:"can_resume"`
	ResumeFromStage          string `json:"resume_from_stage"`
}

// SnapshotExcerpt is the best-effort view of a snapshot embedded into a
// dead-letter entry's context at write time
type SnapshotExcerpt struct {
	CurrentStage string        `json:"current_stage"`
	Status       ProjectStatus `json:"status"`
	Metrics      Metrics       `json:"metrics"`
}

// Excerpt returns the slice of the snapshot embedded into dead-letter
// entries.
func (s *Snapshot) Excerpt() SnapshotExcerpt {
	return SnapshotExcerpt{
		CurrentStage: s.CurrentStage,
		Status:       s.Status,
		Metrics:      s.Metrics,
	}
}
