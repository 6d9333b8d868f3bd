package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/emiliopalmerini/splitlab/internal/domain"
)

func TestTrackEvent_Idempotent(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()
	exp := env.createRunning(t, twoArmConfig("idempotent"))

	in := TrackEventInput{
		ExperimentID: exp.ID,
		EntityID:     "user-1",
		EventType:    "conversion",
		Properties:   map[string]string{"upload": "youtube"},
		Timestamp:    testStart.Add(time.Minute),
	}

	first, err := env.engine.TrackEvent(ctx, in)
	if err != nil {
		t.Fatalf("TrackEvent failed: %v", err)
	}
	if !first.Recorded || first.Duplicate {
		t.Errorf("expected first event recorded, got %+v", first)
	}

	second, err := env.engine.TrackEvent(ctx, in)
	if err != nil {
		t.Fatalf("duplicate TrackEvent must not fail: %v", err)
	}
	if second.Recorded || !second.Duplicate {
		t.Errorf("expected duplicate ack, got %+v", second)
	}

	if n := env.countEvents(t, exp.ID, "conversion"); n != 1 {
		t.Errorf("expected exactly one stored event, got %d", n)
	}
}

func TestTrackEvent_DefaultsTimestamp(t *testing.T) {
	env := newTestEnv(t, Options{})
	exp := env.createRunning(t, twoArmConfig("timestamp"))

	ack, err := env.engine.TrackEvent(context.Background(), TrackEventInput{
		ExperimentID: exp.ID,
		EntityID:     "user-1",
		EventType:    "conversion",
	})
	if err != nil {
		t.Fatalf("TrackEvent failed: %v", err)
	}
	if !ack.Timestamp.Equal(testStart) {
		t.Errorf("expected clock timestamp %v, got %v", testStart, ack.Timestamp)
	}
}

func TestTrackEvent_AcceptedAfterStop(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()
	exp := env.createRunning(t, twoArmConfig("late"))
	if _, err := env.engine.StopExperiment(ctx, exp.ID, "ended"); err != nil {
		t.Fatalf("StopExperiment failed: %v", err)
	}

	ack, err := env.engine.TrackEvent(ctx, TrackEventInput{
		ExperimentID: exp.ID,
		EntityID:     "user-1",
		EventType:    "conversion",
	})
	if err != nil || !ack.Recorded {
		t.Fatalf("expected late conversion recorded, got %+v, %v", ack, err)
	}
}

func TestTrackEvent_Errors(t *testing.T) {
	env := newTestEnv(t, Options{})
	exp := env.createRunning(t, twoArmConfig("track-errors"))

	tests := []struct {
		name    string
		in      TrackEventInput
		wantErr error
	}{
		{"unknown experiment", TrackEventInput{ExperimentID: "missing", EntityID: "u", EventType: "conversion"}, domain.ErrExperimentNotFound},
		{"missing entity", TrackEventInput{ExperimentID: exp.ID, EventType: "conversion"}, domain.ErrInvalidEvent},
		{"missing type", TrackEventInput{ExperimentID: exp.ID, EntityID: "u"}, domain.ErrInvalidEvent},
		{"reserved type", TrackEventInput{ExperimentID: exp.ID, EntityID: "u", EventType: domain.EventTypeAssignment}, domain.ErrInvalidEvent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.engine.TrackEvent(context.Background(), tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}
