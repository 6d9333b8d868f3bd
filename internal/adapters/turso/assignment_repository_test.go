package turso_test

import (
	"context"
	"testing"
	"time"

	"github.com/emiliopalmerini/splitlab/internal/adapters/turso"
	"github.com/emiliopalmerini/splitlab/internal/domain"
)

func TestAssignmentRepository_InsertIfAbsent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	seedExperiment(t, db, "exp-1", "assign")
	repo := turso.NewAssignmentRepository(db)

	missing, err := repo.Get(ctx, "exp-1", "user-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if missing != nil {
		t.Fatal("expected nil for unassigned entity")
	}

	at := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	first := &domain.Assignment{
		ExperimentID: "exp-1",
		EntityID:     "user-1",
		Variant:      "control",
		HashValue:    0.25,
		HashVersion:  domain.HashVersion,
		AssignedAt:   at,
	}
	stored, created, err := repo.InsertIfAbsent(ctx, first)
	if err != nil {
		t.Fatalf("InsertIfAbsent failed: %v", err)
	}
	if !created || stored.Variant != "control" {
		t.Fatalf("expected created control assignment, got created=%v %+v", created, stored)
	}

	second := *first
	second.Variant = "variantA"
	second.AssignedAt = at.Add(time.Minute)
	winner, created, err := repo.InsertIfAbsent(ctx, &second)
	if err != nil {
		t.Fatalf("InsertIfAbsent failed: %v", err)
	}
	if created {
		t.Error("expected second insert to lose")
	}
	if winner.Variant != "control" || !winner.AssignedAt.Equal(at) {
		t.Errorf("expected the first row to win, got %+v", winner)
	}

	n, err := repo.Count(ctx, "exp-1")
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 assignment, got %d", n)
	}
}

func TestAssignmentRepository_List(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	seedExperiment(t, db, "exp-1", "list")
	repo := turso.NewAssignmentRepository(db)

	for _, id := range []string{"c", "a", "b"} {
		_, _, err := repo.InsertIfAbsent(ctx, &domain.Assignment{
			ExperimentID: "exp-1", EntityID: id, Variant: "control",
			HashVersion: domain.HashVersion, AssignedAt: time.Now(),
		})
		if err != nil {
			t.Fatalf("InsertIfAbsent failed: %v", err)
		}
	}

	page, err := repo.List(ctx, "exp-1", "", 2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(page) != 2 || page[0].EntityID != "a" || page[1].EntityID != "b" {
		t.Fatalf("unexpected first page: %d rows", len(page))
	}

	rest, err := repo.List(ctx, "exp-1", page[1].EntityID, 2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(rest) != 1 || rest[0].EntityID != "c" {
		t.Fatalf("unexpected second page: %d rows", len(rest))
	}
}
