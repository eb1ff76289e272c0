// Package state implements the persistent project state store for the
// SOMAS pipeline. Each project owns three files under the store root:
//
//	<root>/<project-id>/state.json        current snapshot, replaced wholesale
//	<root>/<project-id>/dead_letters.json failure vault, replaced wholesale
//	<root>/<project-id>/transitions.jsonl append-only audit log
//
// Multiple processes may mutate the same project concurrently. Every
// read-modify-write runs inside one advisory file-lock acquisition, and
// whole-file replacements go through a temp-then-rename so no reader ever
// observes a partial document. Operations needing both the state file and
// the dead-letter file always lock state first, then dead letters.
package state

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/somas-io/somas/internal/types"
)

const (
	// DefaultLockTimeout bounds the wait for any advisory lock.
	DefaultLockTimeout = 30 * time.Second

	// DefaultMaxCheckpoints bounds the retained checkpoint ring.
	DefaultMaxCheckpoints = 20

	// DefaultRoot is the projects directory used when none is configured.
	DefaultRoot = ".somas/projects"
)

// defaultStages is the roster every new project starts with, in pipeline
// order. The stage set stays open afterwards: operations on unknown stage
// names create records on first use.
var defaultStages = []string{
	"ideation",
	"specification",
	"simulation",
	"architecture",
	"implementation",
	"validation",
	"staging",
}

var defaultLabels = []string{"somas-project", "somas:dev"}

// Options configures a Store. Zero values fall back to the defaults above.
type Options struct {
	// Root is the projects directory.
	Root string

	// LockTimeout bounds every advisory lock acquisition.
	LockTimeout time.Duration

	// MaxCheckpoints bounds the retained checkpoint ring per project.
	MaxCheckpoints int
}

// Store owns the durable execution state of pipeline projects. Construct
// one per process and pass it by reference; it holds no per-project state
// in memory, so any number of Stores (in any number of processes) may
// point at the same root.
type Store struct {
	root           string
	lockTimeout    time.Duration
	maxCheckpoints int
}

// New creates a Store with the given options.
func New(opts Options) *Store {
	if opts.Root == "" {
		opts.Root = DefaultRoot
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = DefaultLockTimeout
	}
	if opts.MaxCheckpoints <= 0 {
		opts.MaxCheckpoints = DefaultMaxCheckpoints
	}
	return &Store{
		root:           opts.Root,
		lockTimeout:    opts.LockTimeout,
		maxCheckpoints: opts.MaxCheckpoints,
	}
}

// Root returns the store's projects directory.
func (s *Store) Root() string {
	return s.root
}

func (s *Store) statePath(projectID string) (string, error) {
	dir, err := resolveProjectDir(s.root, projectID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "state.json"), nil
}

func (s *Store) deadLettersPath(projectID string) (string, error) {
	dir, err := resolveProjectDir(s.root, projectID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "dead_letters.json"), nil
}

func (s *Store) transitionsPath(projectID string) (string, error) {
	dir, err := resolveProjectDir(s.root, projectID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "transitions.jsonl"), nil
}

// readSnapshot loads a snapshot from disk. Lock-unaware: callers either
// hold the state lock or accept a point-in-time read.
func readSnapshot(path string) (*types.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap types.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", path, err)
	}
	return &snap, nil
}

// Initialize creates fresh state files for a project: a snapshot with the
// default stage roster, an empty dead-letter vault, and a
// project_initialized transition. An existing project is overwritten
// unconditionally; re-initialization is a caller decision, and the
// transition log keeps the record of it.
func (s *Store) Initialize(projectID string, issueNumber int, title, branch string, labels []string) (*types.Snapshot, error) {
	statePath, err := s.statePath(projectID)
	if err != nil {
		return nil, err
	}
	dlPath, err := s.deadLettersPath(projectID)
	if err != nil {
		return nil, err
	}

	if branch == "" {
		branch = fmt.Sprintf("somas/%s", projectID)
	}
	if labels == nil {
		labels = append([]string(nil), defaultLabels...)
	}

	now := time.Now().UTC()
	stages := make(map[string]*types.StageRecord, len(defaultStages))
	for _, stage := range defaultStages {
		stages[stage] = &types.StageRecord{Status: types.StagePending}
	}

	snap := &types.Snapshot{
		ProjectID:    projectID,
		Version:      types.SchemaVersion,
		CreatedAt:    now,
		UpdatedAt:    now,
		IssueNumber:  issueNumber,
		Branch:       branch,
		CurrentStage: defaultStages[0],
		Status:       types.ProjectInitializing,
		Stages:       stages,
		Checkpoints:  []types.Checkpoint{},
		Labels: types.Labels{
			GitHub: labels,
			Custom: map[string]string{},
		},
		Metrics: types.Metrics{
			StageDurations: map[string]float64{},
		},
		RecoveryInfo: types.RecoveryInfo{
			CanResume:       true,
			ResumeFromStage: defaultStages[0],
		},
	}

	guard, err := acquireLock(statePath, s.lockTimeout)
	if err != nil {
		return nil, err
	}
	writeErr := writeJSONAtomic(statePath, snap)
	guard.Release()
	if writeErr != nil {
		return nil, writeErr
	}

	dlGuard, err := acquireLock(dlPath, s.lockTimeout)
	if err != nil {
		return nil, err
	}
	writeErr = writeJSONAtomic(dlPath, types.NewDeadLetterFile(projectID))
	dlGuard.Release()
	if writeErr != nil {
		return nil, writeErr
	}

	_, err = s.LogTransition(projectID, types.TransitionRecord{
		EventType: types.EventProjectInitialized,
		Metadata: map[string]interface{}{
			"issue_number": issueNumber,
			"title":        title,
			"branch":       branch,
		},
		Labels: map[string]interface{}{"current": labels},
	})
	if err != nil {
		return nil, err
	}

	return snap, nil
}

// Get returns the current snapshot for a project.
func (s *Store) Get(projectID string) (*types.Snapshot, error) {
	path, err := s.statePath(projectID)
	if err != nil {
		return nil, err
	}
	return readSnapshot(path)
}

// Fields is the set of top-level snapshot fields Update can merge. Nil
// pointers leave the current value untouched; set pointers replace the
// whole value (nested maps are not deep-merged).
type Fields struct {
	IssueNumber  *int
	Branch       *string
	CurrentStage *string
	Status       *types.ProjectStatus
	Stages       map[string]*types.StageRecord
	Checkpoints  []types.Checkpoint
	Labels       *types.Labels
	Metrics      *types.Metrics
	RecoveryInfo *types.RecoveryInfo
}

// apply merges the set fields into snap and returns the applied updates
// keyed by document field name, for transition metadata.
func (f Fields) apply(snap *types.Snapshot) map[string]interface{} {
	applied := make(map[string]interface{})
	if f.IssueNumber != nil {
		snap.IssueNumber = *f.IssueNumber
		applied["issue_number"] = *f.IssueNumber
	}
	if f.Branch != nil {
		snap.Branch = *f.Branch
		applied["branch"] = *f.Branch
	}
	if f.CurrentStage != nil {
		snap.CurrentStage = *f.CurrentStage
		applied["current_stage"] = *f.CurrentStage
	}
	if f.Status != nil {
		snap.Status = *f.Status
		applied["status"] = *f.Status
	}
	if f.Stages != nil {
		snap.Stages = f.Stages
		applied["stages"] = f.Stages
	}
	if f.Checkpoints != nil {
		snap.Checkpoints = f.Checkpoints
		applied["checkpoints"] = f.Checkpoints
	}
	if f.Labels != nil {
		snap.Labels = *f.Labels
		applied["labels"] = *f.Labels
	}
	if f.Metrics != nil {
		snap.Metrics = *f.Metrics
		applied["metrics"] = *f.Metrics
	}
	if f.RecoveryInfo != nil {
		snap.RecoveryInfo = *f.RecoveryInfo
		applied["recovery_info"] = *f.RecoveryInfo
	}
	return applied
}

// Update shallow-merges top-level fields into the snapshot under the state
// lock and stamps updated_at. When logTransition is true a state_updated
// transition carrying the before/after status and stage is appended after
// the write commits.
func (s *Store) Update(projectID string, updates Fields, logTransition bool) (*types.Snapshot, error) {
	path, err := s.statePath(projectID)
	if err != nil {
		return nil, err
	}

	guard, err := acquireLock(path, s.lockTimeout)
	if err != nil {
		return nil, err
	}

	snap, err := readSnapshot(path)
	if err != nil {
		guard.Release()
		return nil, err
	}

	from := types.StateRef{Status: snap.Status, Stage: snap.CurrentStage}
	applied := updates.apply(snap)
	snap.UpdatedAt = time.Now().UTC()

	err = writeJSONAtomic(path, snap)
	guard.Release()
	if err != nil {
		return nil, err
	}

	if logTransition {
		_, err = s.LogTransition(projectID, types.TransitionRecord{
			EventType: types.EventStateUpdated,
			FromState: &from,
			ToState:   &types.StateRef{Status: snap.Status, Stage: snap.CurrentStage},
			Metadata:  applied,
		})
		if err != nil {
			return nil, err
		}
	}

	return snap, nil
}

// StartStage marks a stage in_progress under the state lock: the stage
// record is created if absent, the snapshot's current stage and overall
// status move to in_progress, and agent_invocations is incremented. A
// stage_started transition is appended after the write commits.
func (s *Store) StartStage(projectID, stage, agent string) (*types.Snapshot, error) {
	path, err := s.statePath(projectID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	guard, err := acquireLock(path, s.lockTimeout)
	if err != nil {
		return nil, err
	}

	snap, err := readSnapshot(path)
	if err != nil {
		guard.Release()
		return nil, err
	}

	rec := snap.Stage(stage)
	rec.Status = types.StageInProgress
	rec.StartedAt = &now
	rec.Agent = agent

	snap.CurrentStage = stage
	snap.Status = types.ProjectInProgress
	snap.UpdatedAt = now
	snap.Metrics.AgentInvocations++

	err = writeJSONAtomic(path, snap)
	guard.Release()
	if err != nil {
		return nil, err
	}

	_, err = s.LogTransition(projectID, types.TransitionRecord{
		EventType: types.EventStageStarted,
		Stage:     stage,
		Agent:     agent,
		Metadata:  map[string]interface{}{"started_at": now},
	})
	if err != nil {
		return nil, err
	}

	return snap, nil
}

// CompleteStage marks a stage completed with its artifacts under the state
// lock, recording the stage duration (zero when the stage was never
// started). When createCheckpoint is true, checkpoint creation runs as a
// separate lock acquisition after the primary write commits: the lock is
// not reentrant, so the stage completion is observable before its
// checkpoint exists. A stage_completed transition is appended last.
func (s *Store) CompleteStage(projectID, stage string, artifacts []string, createCheckpoint bool) (*types.Snapshot, error) {
	path, err := s.statePath(projectID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	guard, err := acquireLock(path, s.lockTimeout)
	if err != nil {
		return nil, err
	}

	snap, err := readSnapshot(path)
	if err != nil {
		guard.Release()
		return nil, err
	}

	rec := snap.Stage(stage)
	var duration float64
	if rec.StartedAt != nil {
		duration = now.Sub(*rec.StartedAt).Seconds()
	}
	rec.Status = types.StageCompleted
	rec.CompletedAt = &now
	rec.DurationSeconds = duration
	if artifacts == nil {
		artifacts = []string{}
	}
	rec.Artifacts = artifacts

	if snap.Metrics.StageDurations == nil {
		snap.Metrics.StageDurations = map[string]float64{}
	}
	snap.Metrics.StageDurations[stage] = duration
	snap.Metrics.ArtifactsGenerated += len(artifacts)
	snap.UpdatedAt = now

	err = writeJSONAtomic(path, snap)
	guard.Release()
	if err != nil {
		return nil, err
	}

	var checkpointID string
	if createCheckpoint {
		checkpointID, err = s.CreateCheckpoint(projectID, stage, types.CheckpointSuccess, artifacts, nil)
		if err != nil {
			return nil, err
		}
		snap, err = s.Get(projectID)
		if err != nil {
			return nil, err
		}
	}

	changes := make([]types.ArtifactChange, 0, len(artifacts))
	for _, a := range artifacts {
		changes = append(changes, types.ArtifactChange{Path: a, Action: "created"})
	}
	_, err = s.LogTransition(projectID, types.TransitionRecord{
		EventType: types.EventStageCompleted,
		Stage:     stage,
		Metadata: map[string]interface{}{
			"completed_at":     now,
			"duration_seconds": duration,
		},
		Artifacts:    changes,
		CheckpointID: checkpointID,
	})
	if err != nil {
		return nil, err
	}

	return snap, nil
}

// FailStage marks a stage failed under the state lock and moves the
// overall status to failed. The stage's retry_count is left at its
// pre-failure value: callers increment it before a retry attempt, so a
// single failure is never double-counted. When createDeadLetter is true a
// vault entry is written through a fresh lock acquisition with
// attempt_number = retry_count + 1. A stage_failed transition is appended
// last.
func (s *Store) FailStage(projectID, stage, agent string, failure types.ErrorInfo, context map[string]interface{}, createDeadLetter bool) (*types.Snapshot, error) {
	path, err := s.statePath(projectID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	guard, err := acquireLock(path, s.lockTimeout)
	if err != nil {
		return nil, err
	}

	snap, err := readSnapshot(path)
	if err != nil {
		guard.Release()
		return nil, err
	}

	rec := snap.Stage(stage)
	retryCount := rec.RetryCount
	rec.Status = types.StageFailed
	if failure.Message != "" {
		rec.Error = failure.Message
	} else {
		rec.Error = "Unknown error"
	}
	rec.RetryCount = retryCount

	snap.Status = types.ProjectFailed
	snap.UpdatedAt = now

	err = writeJSONAtomic(path, snap)
	guard.Release()
	if err != nil {
		return nil, err
	}

	var deadLetterID string
	if createDeadLetter {
		deadLetterID, err = s.AddDeadLetter(projectID, stage, agent, failure, context, nil, nil, retryCount+1)
		if err != nil {
			return nil, err
		}
		snap, err = s.Get(projectID)
		if err != nil {
			return nil, err
		}
	}

	_, err = s.LogTransition(projectID, types.TransitionRecord{
		EventType: types.EventStageFailed,
		Stage:     stage,
		Agent:     agent,
		Error: &types.ErrorInfo{
			Type:         failure.Type,
			Message:      failure.Message,
			DeadLetterID: deadLetterID,
		},
	})
	if err != nil {
		return nil, err
	}

	return snap, nil
}

// CreateCheckpoint appends a checkpoint to the snapshot's ring under the
// state lock. The ring keeps only the most recent MaxCheckpoints entries
// (oldest evicted first), but ids stay unique across the project's whole
// lifetime. A success checkpoint updates recovery_info before any later
// eviction could touch it. A checkpoint_created transition is appended
// after the write commits.
func (s *Store) CreateCheckpoint(projectID, stage string, status types.CheckpointStatus, artifacts []string, metadata map[string]interface{}) (string, error) {
	path, err := s.statePath(projectID)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	checkpointID := newCheckpointID()
	if artifacts == nil {
		artifacts = []string{}
	}
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	checkpoint := types.Checkpoint{
		ID:        checkpointID,
		Stage:     stage,
		Timestamp: now,
		Status:    status,
		Artifacts: artifacts,
		Metadata:  metadata,
	}

	guard, err := acquireLock(path, s.lockTimeout)
	if err != nil {
		return "", err
	}

	snap, err := readSnapshot(path)
	if err != nil {
		guard.Release()
		return "", err
	}

	snap.Checkpoints = append(snap.Checkpoints, checkpoint)
	if excess := len(snap.Checkpoints) - s.maxCheckpoints; excess > 0 {
		snap.Checkpoints = append([]types.Checkpoint(nil), snap.Checkpoints[excess:]...)
	}
	if status == types.CheckpointSuccess {
		snap.RecoveryInfo.LastSuccessfulCheckpoint = checkpointID
	}
	snap.UpdatedAt = now

	err = writeJSONAtomic(path, snap)
	guard.Release()
	if err != nil {
		return "", err
	}

	_, err = s.LogTransition(projectID, types.TransitionRecord{
		EventType:    types.EventCheckpointCreated,
		Stage:        stage,
		CheckpointID: checkpointID,
		Metadata: map[string]interface{}{
			"id":        checkpoint.ID,
			"stage":     checkpoint.Stage,
			"timestamp": checkpoint.Timestamp,
			"status":    checkpoint.Status,
			"artifacts": checkpoint.Artifacts,
			"metadata":  checkpoint.Metadata,
		},
	})
	if err != nil {
		return "", err
	}

	return checkpointID, nil
}

// newCheckpointID returns "chk-" plus a short random suffix. The suffix is
// not checked against the retained ring; at 8 hex characters a collision
// within one project's lifetime is vanishingly unlikely.
func newCheckpointID() string {
	u := uuid.New()
	return "chk-" + hex.EncodeToString(u[:])[:8]
}
