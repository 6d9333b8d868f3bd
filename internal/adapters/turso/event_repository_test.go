package turso_test

import (
	"context"
	"testing"
	"time"

	"github.com/emiliopalmerini/splitlab/internal/adapters/turso"
	"github.com/emiliopalmerini/splitlab/internal/domain"
)

func TestEventRepository_AppendIdempotent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	seedExperiment(t, db, "exp-1", "events")
	repo := turso.NewEventRepository(db)

	ts := time.Date(2026, 3, 1, 12, 0, 0, 987654321, time.UTC)
	e := &domain.Event{
		ExperimentID: "exp-1",
		EntityID:     "user-1",
		EventType:    "conversion",
		Properties:   map[string]string{"pipeline": "upload"},
		Timestamp:    ts,
	}

	inserted, err := repo.Append(ctx, e)
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if !inserted {
		t.Fatal("expected first append to insert")
	}

	dup := *e
	dup.Properties = map[string]string{"pipeline": "retry"}
	inserted, err = repo.Append(ctx, &dup)
	if err != nil {
		t.Fatalf("duplicate Append failed: %v", err)
	}
	if inserted {
		t.Error("expected duplicate to be ignored")
	}

	page, err := repo.Page(ctx, domain.EventQuery{ExperimentID: "exp-1"}, 0, 10)
	if err != nil {
		t.Fatalf("Page failed: %v", err)
	}
	if len(page.Events) != 1 {
		t.Fatalf("expected exactly 1 stored event, got %d", len(page.Events))
	}
	got := page.Events[0]
	if !got.Timestamp.Equal(ts) {
		t.Errorf("timestamp: expected %v, got %v", ts, got.Timestamp)
	}
	if got.Properties["pipeline"] != "upload" {
		t.Errorf("expected original properties, got %v", got.Properties)
	}
}

func TestEventRepository_PageFilters(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	seedExperiment(t, db, "exp-1", "paging")
	repo := turso.NewEventRepository(db)

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		eventType := "conversion"
		if i%2 == 0 {
			eventType = domain.EventTypeAssignment
		}
		_, err := repo.Append(ctx, &domain.Event{
			ExperimentID: "exp-1",
			EntityID:     "user",
			EventType:    eventType,
			Timestamp:    base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	var all []*domain.Event
	var cursor int64
	pages := 0
	for {
		page, err := repo.Page(ctx, domain.EventQuery{ExperimentID: "exp-1"}, cursor, 3)
		if err != nil {
			t.Fatalf("Page failed: %v", err)
		}
		pages++
		all = append(all, page.Events...)
		cursor = page.NextSeq
		if page.Done {
			break
		}
	}
	if len(all) != 7 {
		t.Fatalf("expected 7 events across pages, got %d", len(all))
	}
	if pages != 3 {
		t.Errorf("expected 3 pages, got %d", pages)
	}
	for i := 1; i < len(all); i++ {
		if all[i].Seq <= all[i-1].Seq {
			t.Fatalf("events out of order at %d", i)
		}
	}

	conversions, err := repo.Page(ctx, domain.EventQuery{ExperimentID: "exp-1", EventTypes: []string{"conversion"}}, 0, 100)
	if err != nil {
		t.Fatalf("Page failed: %v", err)
	}
	if len(conversions.Events) != 3 {
		t.Errorf("expected 3 conversions, got %d", len(conversions.Events))
	}

	window, err := repo.Page(ctx, domain.EventQuery{
		ExperimentID: "exp-1",
		From:         base.Add(2 * time.Hour),
		To:           base.Add(5 * time.Hour),
	}, 0, 100)
	if err != nil {
		t.Fatalf("Page failed: %v", err)
	}
	if len(window.Events) != 3 {
		t.Errorf("expected 3 events in [2h, 5h), got %d", len(window.Events))
	}
}

func TestEventRepository_RejectsInvalid(t *testing.T) {
	db := testDB(t)
	repo := turso.NewEventRepository(db)

	_, err := repo.Append(context.Background(), &domain.Event{ExperimentID: "exp-1", EventType: "conversion", Timestamp: time.Now()})
	if err == nil {
		t.Fatal("expected error for missing entity id")
	}
}
