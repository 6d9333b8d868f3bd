package domain

import (
	"fmt"
	"strings"
	"time"
)

// EventTypeAssignment is the event type emitted on first bucketing.
const EventTypeAssignment = "assignment"

// PropertyVariant is the assignment event property holding the variant.
const PropertyVariant = "variant"

// Assignment is the persisted bucket of one entity in one experiment.
type Assignment struct {
	ExperimentID string
	EntityID     string
	Variant      string
	HashValue    float64
	HashVersion  string
	AssignedAt   time.Time
}

// Event is an append-only record. Seq is assigned by the store and used as
// the paging cursor; it is zero until the event has been stored.
type Event struct {
	Seq          int64
	ExperimentID string
	EntityID     string
	EventType    string
	Properties   map[string]string
	Timestamp    time.Time
}

// Validate checks the fields required by the natural key.
func (e *Event) Validate() error {
	if strings.TrimSpace(e.ExperimentID) == "" {
		return fmt.Errorf("%w: experiment id is required", ErrInvalidEvent)
	}
	if strings.TrimSpace(e.EntityID) == "" {
		return fmt.Errorf("%w: entity id is required", ErrInvalidEvent)
	}
	if strings.TrimSpace(e.EventType) == "" {
		return fmt.Errorf("%w: event type is required", ErrInvalidEvent)
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("%w: timestamp is required", ErrInvalidEvent)
	}
	return nil
}

// NaturalKey is the idempotency key of an event.
type NaturalKey struct {
	ExperimentID string
	EntityID     string
	EventType    string
	Timestamp    int64
}

func (e *Event) Key() NaturalKey {
	return NaturalKey{
		ExperimentID: e.ExperimentID,
		EntityID:     e.EntityID,
		EventType:    e.EventType,
		Timestamp:    e.Timestamp.UTC().UnixNano(),
	}
}

// NewAssignmentEvent builds the event recorded when a is first persisted.
func NewAssignmentEvent(a *Assignment) *Event {
	return &Event{
		ExperimentID: a.ExperimentID,
		EntityID:     a.EntityID,
		EventType:    EventTypeAssignment,
		Properties: map[string]string{
			PropertyVariant: a.Variant,
			"hash_version":  a.HashVersion,
		},
		Timestamp: a.AssignedAt,
	}
}

// EventQuery selects events of one experiment. Empty EventTypes matches all
// types; zero From/To leave that side of the range open. To is exclusive.
type EventQuery struct {
	ExperimentID string
	EventTypes   []string
	From         time.Time
	To           time.Time
}

// Matches reports whether e satisfies the query.
func (q EventQuery) Matches(e *Event) bool {
	if e.ExperimentID != q.ExperimentID {
		return false
	}
	if len(q.EventTypes) > 0 {
		found := false
		for _, t := range q.EventTypes {
			if t == e.EventType {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !q.From.IsZero() && e.Timestamp.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && !e.Timestamp.Before(q.To) {
		return false
	}
	return true
}

// EventPage is one keyset page of a query. NextSeq is the cursor to pass as
// afterSeq for the following page.
type EventPage struct {
	Events  []*Event
	NextSeq int64
	Done    bool
}
