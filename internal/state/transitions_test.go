package state

import (
	"fmt"
	"testing"

	"github.com/somas-io/somas/internal/types"
)

func TestLogTransitionStampsIdentity(t *testing.T) {
	s := newTestStore(t)

	id, err := s.LogTransition("project-30", types.TransitionRecord{
		EventType: "custom_event",
		Stage:     "ideation",
	})
	if err != nil {
		t.Fatalf("LogTransition failed: %v", err)
	}
	if id == "" {
		t.Fatal("empty transition id")
	}

	recs, err := s.Transitions("project-30", TransitionFilter{}, 0)
	if err != nil {
		t.Fatalf("Transitions failed: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("records = %d, want 1", len(recs))
	}
	rec := recs[0]
	if rec.ID != id {
		t.Errorf("id = %q, want %q", rec.ID, id)
	}
	if rec.ProjectID != "project-30" {
		t.Errorf("project_id = %q", rec.ProjectID)
	}
	if rec.Timestamp.IsZero() {
		t.Error("timestamp not stamped")
	}
	// Event types are open; "custom_event" is not one of the store's own
	// constants and must round-trip untouched.
	if rec.EventType != "custom_event" {
		t.Errorf("event_type = %q", rec.EventType)
	}
}

func TestTransitionsPreserveAppendOrder(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 10; i++ {
		_, err := s.LogTransition("project-31", types.TransitionRecord{
			EventType: "tick",
			Metadata:  map[string]interface{}{"seq": i},
		})
		if err != nil {
			t.Fatalf("LogTransition %d failed: %v", i, err)
		}
	}

	recs, err := s.Transitions("project-31", TransitionFilter{}, 0)
	if err != nil {
		t.Fatalf("Transitions failed: %v", err)
	}
	if len(recs) != 10 {
		t.Fatalf("records = %d, want 10", len(recs))
	}
	for i, rec := range recs {
		if seq, ok := rec.Metadata["seq"].(float64); !ok || int(seq) != i {
			t.Errorf("record %d has seq %v (order violated)", i, rec.Metadata["seq"])
		}
	}
}

func TestTransitionsFilterAndLimit(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 6; i++ {
		eventType := types.EventType("even")
		if i%2 == 1 {
			eventType = "odd"
		}
		_, err := s.LogTransition("project-32", types.TransitionRecord{
			EventType: eventType,
			Stage:     fmt.Sprintf("stage-%d", i%3),
			Metadata:  map[string]interface{}{"seq": i},
		})
		if err != nil {
			t.Fatalf("LogTransition %d failed: %v", i, err)
		}
	}

	odd, err := s.Transitions("project-32", TransitionFilter{EventType: "odd"}, 0)
	if err != nil {
		t.Fatalf("Transitions failed: %v", err)
	}
	if len(odd) != 3 {
		t.Errorf("odd records = %d, want 3", len(odd))
	}

	byStage, err := s.Transitions("project-32", TransitionFilter{Stage: "stage-1"}, 0)
	if err != nil {
		t.Fatalf("Transitions failed: %v", err)
	}
	if len(byStage) != 2 {
		t.Errorf("stage-1 records = %d, want 2", len(byStage))
	}

	// Limit keeps the most recent matches, not the first.
	limited, err := s.Transitions("project-32", TransitionFilter{EventType: "odd"}, 2)
	if err != nil {
		t.Fatalf("Transitions failed: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("limited records = %d, want 2", len(limited))
	}
	if seq := limited[1].Metadata["seq"].(float64); int(seq) != 5 {
		t.Errorf("last limited record seq = %v, want 5", seq)
	}
	if seq := limited[0].Metadata["seq"].(float64); int(seq) != 3 {
		t.Errorf("first limited record seq = %v, want 3", seq)
	}
}

func TestTransitionsMissingLog(t *testing.T) {
	s := newTestStore(t)

	recs, err := s.Transitions("project-33", TransitionFilter{}, 0)
	if err != nil {
		t.Fatalf("Transitions failed: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("records = %d, want 0 for missing log", len(recs))
	}
}
