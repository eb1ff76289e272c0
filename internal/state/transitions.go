package state

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/somas-io/somas/internal/types"
)

// LogTransition appends one record to the project's audit log and returns
// the transition id. The store stamps id, timestamp, and project_id; the
// caller supplies the event type and whichever optional fields apply.
// Event types are an open set, so no validation is performed against a
// known list. The log is append-only: records are never rewritten,
// truncated, or reordered.
func (s *Store) LogTransition(projectID string, rec types.TransitionRecord) (string, error) {
	path, err := s.transitionsPath(projectID)
	if err != nil {
		return "", err
	}

	rec.ID = uuid.New().String()
	rec.Timestamp = time.Now().UTC()
	rec.ProjectID = projectID

	guard, err := acquireLock(path, s.lockTimeout)
	if err != nil {
		return "", err
	}
	defer guard.Release()

	if err := appendJSONLine(path, rec); err != nil {
		return "", err
	}
	return rec.ID, nil
}

// TransitionFilter narrows a Transitions read. Empty fields match
// everything.
type TransitionFilter struct {
	EventType types.EventType
	Stage     string
}

// Transitions returns the project's audit log in file order (oldest
// first), filtered, then truncated to the most recent limit matches when
// limit is positive. A project with no log yet yields an empty slice.
func (s *Store) Transitions(projectID string, filter TransitionFilter, limit int) ([]types.TransitionRecord, error) {
	path, err := s.transitionsPath(projectID)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []types.TransitionRecord{}, nil
		}
		return nil, fmt.Errorf("open transitions log: %w", err)
	}
	defer file.Close()

	var records []types.TransitionRecord
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec types.TransitionRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("parse transition line: %w", err)
		}
		if filter.EventType != "" && rec.EventType != filter.EventType {
			continue
		}
		if filter.Stage != "" && rec.Stage != filter.Stage {
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read transitions log: %w", err)
	}

	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	if records == nil {
		records = []types.TransitionRecord{}
	}
	return records, nil
}
