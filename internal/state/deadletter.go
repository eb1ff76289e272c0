package state

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/somas-io/somas/internal/types"
)

// readDeadLetters loads the vault document, or a fresh empty one when the
// file does not exist yet. Lock-unaware: callers either hold the
// dead-letter lock or accept a point-in-time read.
func readDeadLetters(path, projectID string) (*types.DeadLetterFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return types.NewDeadLetterFile(projectID), nil
		}
		return nil, fmt.Errorf("read dead letters: %w", err)
	}
	var vault types.DeadLetterFile
	if err := json.Unmarshal(data, &vault); err != nil {
		return nil, fmt.Errorf("parse dead letters %s: %w", path, err)
	}
	if vault.Statistics.ByStage == nil {
		vault.Statistics.ByStage = map[string]int{}
	}
	if vault.Statistics.ByAgent == nil {
		vault.Statistics.ByAgent = map[string]int{}
	}
	return &vault, nil
}

// AddDeadLetter records one failed execution in the project's vault and
// returns the entry id. The entry embeds a best-effort excerpt of the
// current snapshot; if the snapshot cannot be read the entry is written
// without it. After the vault commits, the new total is mirrored into the
// snapshot's metrics.dead_letters — also best-effort, a failure there is
// warned and swallowed. Both files are mutated under the fixed lock order:
// state first, then dead letters. An error_recorded transition is appended
// after the locks are released.
func (s *Store) AddDeadLetter(projectID, stage, agent string, failure types.ErrorInfo, context, request map[string]interface{}, trace []map[string]interface{}, attemptNumber int) (string, error) {
	statePath, err := s.statePath(projectID)
	if err != nil {
		return "", err
	}
	dlPath, err := s.deadLettersPath(projectID)
	if err != nil {
		return "", err
	}
	if attemptNumber < 1 {
		attemptNumber = 1
	}

	stateGuard, err := acquireLock(statePath, s.lockTimeout)
	if err != nil {
		return "", err
	}
	defer stateGuard.Release()

	dlGuard, err := acquireLock(dlPath, s.lockTimeout)
	if err != nil {
		return "", err
	}
	defer dlGuard.Release()

	vault, err := readDeadLetters(dlPath, projectID)
	if err != nil {
		return "", err
	}

	deadLetterID := uuid.New().String()
	now := time.Now().UTC()

	if context == nil {
		context = map[string]interface{}{}
	}
	if request == nil {
		request = map[string]interface{}{}
	}
	if trace == nil {
		trace = []map[string]interface{}{}
	}

	var labels types.Labels
	excerpt := types.SnapshotExcerpt{}
	snap, err := readSnapshot(statePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not load state snapshot for dead letter: %v\n", err)
	} else {
		excerpt = snap.Excerpt()
		labels = snap.Labels
	}
	context["state_snapshot"] = excerpt

	entry := types.DeadLetterEntry{
		ID:            deadLetterID,
		Timestamp:     now,
		Stage:         stage,
		Agent:         agent,
		AttemptNumber: attemptNumber,
		Error:         failure,
		Context:       context,
		Request:       request,
		Trace:         trace,
		Labels:        labels,
	}

	vault.Entries = append(vault.Entries, entry)
	vault.Statistics.TotalEntries++
	vault.Statistics.ByStage[stage]++
	vault.Statistics.ByAgent[agent]++
	vault.Statistics.Unrecovered++

	if err := writeJSONAtomic(dlPath, vault); err != nil {
		return "", err
	}

	// Mirror the new total into the snapshot. The vault entry is already
	// durable; a failure here leaves metrics.dead_letters stale, which the
	// next successful add corrects.
	if snap, err := readSnapshot(statePath); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not update state metrics: %v\n", err)
	} else {
		snap.Metrics.DeadLetters = vault.Statistics.TotalEntries
		if err := writeJSONAtomic(statePath, snap); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not update state metrics: %v\n", err)
		}
	}

	dlGuard.Release()
	stateGuard.Release()

	_, err = s.LogTransition(projectID, types.TransitionRecord{
		EventType: types.EventErrorRecorded,
		Stage:     stage,
		Agent:     agent,
		Error: &types.ErrorInfo{
			Type:         failure.Type,
			Message:      failure.Message,
			DeadLetterID: deadLetterID,
		},
	})
	if err != nil {
		return "", err
	}

	return deadLetterID, nil
}

// DeadLetterFilter narrows a DeadLetters read. Empty fields match
// everything; UnrecoveredOnly keeps entries whose recovery has not
// succeeded.
type DeadLetterFilter struct {
	Stage           string
	Agent           string
	UnrecoveredOnly bool
}

// DeadLetters returns the project's vault entries, filtered. A project
// with no vault yet yields an empty slice.
func (s *Store) DeadLetters(projectID string, filter DeadLetterFilter) ([]types.DeadLetterEntry, error) {
	path, err := s.deadLettersPath(projectID)
	if err != nil {
		return nil, err
	}

	vault, err := readDeadLetters(path, projectID)
	if err != nil {
		return nil, err
	}

	entries := make([]types.DeadLetterEntry, 0, len(vault.Entries))
	for _, e := range vault.Entries {
		if filter.Stage != "" && e.Stage != filter.Stage {
			continue
		}
		if filter.Agent != "" && e.Agent != filter.Agent {
			continue
		}
		if filter.UnrecoveredOnly && !e.Unrecovered() {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// DeadLetterStats returns the vault's running statistics.
func (s *Store) DeadLetterStats(projectID string) (types.DeadLetterStats, error) {
	path, err := s.deadLettersPath(projectID)
	if err != nil {
		return types.DeadLetterStats{}, err
	}
	vault, err := readDeadLetters(path, projectID)
	if err != nil {
		return types.DeadLetterStats{}, err
	}
	return vault.Statistics, nil
}
