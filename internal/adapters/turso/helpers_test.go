package turso_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/emiliopalmerini/splitlab/internal/adapters/turso"
	"github.com/emiliopalmerini/splitlab/internal/domain"
	"github.com/emiliopalmerini/splitlab/internal/migrate"
)

// testDB opens a fresh libsql file database with all migrations applied.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("libsql", "file:"+filepath.Join(t.TempDir(), "splitlab.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		t.Fatalf("Failed to enable foreign keys: %v", err)
	}

	ctx := context.Background()
	if err := migrate.RunAll(ctx, db); err != nil {
		_ = db.Close()
		t.Fatalf("Failed to run migrations: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedExperiment(t *testing.T, db *sql.DB, id, name string) *domain.Experiment {
	t.Helper()

	exp, err := domain.NewExperiment(id, domain.ExperimentConfig{
		Name:             name,
		ScopeKey:         "shorts:finance",
		Variants:         []domain.Variant{{Name: "control", Weight: 50}, {Name: "variantA", Weight: 50}},
		PrimaryMetric:    "conversion",
		SecondaryMetrics: []string{"published"},
	}, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	if err != nil {
		t.Fatalf("NewExperiment failed: %v", err)
	}

	repo := turso.NewExperimentRepository(db)
	if err := repo.Create(context.Background(), exp); err != nil {
		t.Fatalf("failed to seed experiment: %v", err)
	}
	return exp
}
