package types

import "time"

// DeadLetterFile is the whole dead_letters.json document for a project.
// Like the snapshot it is replaced wholesale on every mutation.
type DeadLetterFile struct {
	ProjectID  string            `json:"project_id"`
	Version    string            `json:"version"`
	Entries    []DeadLetterEntry `json:"entries"`
	Statistics DeadLetterStats   `json:"statistics"`
}

// NewDeadLetterFile returns an empty vault document for a project.
func NewDeadLetterFile(projectID string) *DeadLetterFile {
	return &DeadLetterFile{
		ProjectID: projectID,
		Version:   SchemaVersion,
		Entries:   []DeadLetterEntry{},
		Statistics: DeadLetterStats{
			ByStage: map[string]int{},
			ByAgent: map[string]int{},
		},
	}
}

// DeadLetterStats holds running counts maintained alongside the entries
type DeadLetterStats struct {
	TotalEntries int            `json:"total_entries"`
	ByStage      map[string]int `json:"by_stage"`
	ByAgent      map[string]int `json:"by_agent"`
	Recovered    int            `json:"recovered"`
	Unrecovered  int            `json:"unrecovered"`
}

// ErrorInfo describes a failure in a stage, dead letter, or transition
type ErrorInfo struct {
	Type         string `json:"type"`
	Message      string `json:"message"`
	DeadLetterID string `json:"dead_letter_id,omitempty"`
}

// DeadLetterEntry is one durable record of a failed stage execution,
// retained for inspection and replay
type DeadLetterEntry struct {
	ID                string                   `json:"id"`
	Timestamp         time.Time                `json:"timestamp"`
	Stage             string                   `json:"stage"`
	Agent             string                   `json:"agent"`
	AttemptNumber     int                      `json:"attempt_number"`
	Error             ErrorInfo                `json:"error"`
	Context           map[string]interface{}   `json:"context"`
	Request           map[string]interface{}   `json:"request"`
	Trace             []map[string]interface{} `json:"trace"`
	Labels            Labels                   `json:"labels"`
	RecoveryAttempted bool                     `json:"recovery_attempted"`
	RecoveryResult    string                   `json:"recovery_result,omitempty"`
	ReplayCount       int                      `json:"replay_count"`
}

// Unrecovered reports whether this entry still needs recovery: either no
// recovery was attempted, or the last attempt did not succeed.
func (e *DeadLetterEntry) Unrecovered() bool {
	return !e.RecoveryAttempted || e.RecoveryResult != "success"
}
