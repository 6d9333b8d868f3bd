package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/emiliopalmerini/splitlab/internal/domain"
)

func TestCreateExperiment(t *testing.T) {
	env := newTestEnv(t, Options{DefaultDurationDays: 14})
	ctx := context.Background()

	exp, err := env.engine.CreateExperiment(ctx, twoArmConfig("hook-style"))
	if err != nil {
		t.Fatalf("CreateExperiment failed: %v", err)
	}
	if exp.ID != "exp-1" {
		t.Errorf("expected generated id exp-1, got %s", exp.ID)
	}
	if exp.Status != domain.StatusDraft {
		t.Errorf("expected draft, got %s", exp.Status)
	}
	if exp.PlannedDurationDays != 14 {
		t.Errorf("expected default duration 14, got %d", exp.PlannedDurationDays)
	}
	if !exp.CreatedAt.Equal(testStart) {
		t.Errorf("expected created at %v, got %v", testStart, exp.CreatedAt)
	}

	got, err := env.engine.GetExperiment(ctx, exp.ID)
	if err != nil {
		t.Fatalf("GetExperiment failed: %v", err)
	}
	if got.Name != "hook-style" || got.ControlVariant != "control" {
		t.Errorf("unexpected experiment: %+v", got)
	}
	byName, err := env.engine.GetExperimentByName(ctx, "hook-style")
	if err != nil {
		t.Fatalf("GetExperimentByName failed: %v", err)
	}
	if byName.ID != exp.ID {
		t.Errorf("expected %s, got %s", exp.ID, byName.ID)
	}
}

func TestCreateExperiment_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*domain.ExperimentConfig)
		wantErr error
	}{
		{
			name: "weights sum to 110",
			mutate: func(c *domain.ExperimentConfig) {
				c.Variants = []domain.Variant{
					{Name: "control", Weight: 60},
					{Name: "variantA", Weight: 30},
					{Name: "variantB", Weight: 20},
				}
			},
			wantErr: domain.ErrInvalidVariantWeights,
		},
		{
			name: "single variant",
			mutate: func(c *domain.ExperimentConfig) {
				c.Variants = []domain.Variant{{Name: "control", Weight: 100}}
			},
			wantErr: domain.ErrInvalidVariantWeights,
		},
		{
			name:    "missing name",
			mutate:  func(c *domain.ExperimentConfig) { c.Name = " " },
			wantErr: domain.ErrInvalidExperiment,
		},
		{
			name:    "missing primary metric",
			mutate:  func(c *domain.ExperimentConfig) { c.PrimaryMetric = "" },
			wantErr: domain.ErrInvalidExperiment,
		},
		{
			name:    "unknown control",
			mutate:  func(c *domain.ExperimentConfig) { c.ControlVariant = "baseline" },
			wantErr: domain.ErrInvalidExperiment,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, Options{})
			cfg := twoArmConfig("exp")
			tt.mutate(&cfg)
			_, err := env.engine.CreateExperiment(context.Background(), cfg)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCreateExperiment_DuplicateName(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()

	if _, err := env.engine.CreateExperiment(ctx, twoArmConfig("dup")); err != nil {
		t.Fatalf("CreateExperiment failed: %v", err)
	}
	_, err := env.engine.CreateExperiment(ctx, twoArmConfig("dup"))
	if !errors.Is(err, domain.ErrExperimentExists) {
		t.Fatalf("expected ErrExperimentExists, got %v", err)
	}
}

func TestListExperiments(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()

	first := env.createRunning(t, twoArmConfig("first"))
	other := twoArmConfig("second")
	other.ScopeKey = "shorts:travel"
	if _, err := env.engine.CreateExperiment(ctx, other); err != nil {
		t.Fatalf("CreateExperiment failed: %v", err)
	}

	all, err := env.engine.ListExperiments(ctx, domain.ExperimentFilter{})
	if err != nil {
		t.Fatalf("ListExperiments failed: %v", err)
	}
	if len(all) != 2 || all[0].Name != "first" || all[1].Name != "second" {
		t.Fatalf("expected insertion order, got %v", all)
	}

	running, err := env.engine.ListExperiments(ctx, domain.ExperimentFilter{Status: domain.StatusRunning})
	if err != nil {
		t.Fatalf("ListExperiments failed: %v", err)
	}
	if len(running) != 1 || running[0].ID != first.ID {
		t.Errorf("expected only %s running, got %v", first.ID, running)
	}

	travel, err := env.engine.ListExperiments(ctx, domain.ExperimentFilter{ScopeKey: "shorts:travel"})
	if err != nil {
		t.Fatalf("ListExperiments failed: %v", err)
	}
	if len(travel) != 1 || travel[0].Name != "second" {
		t.Errorf("expected scope filter to match second, got %v", travel)
	}
}

func TestLifecycle(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()

	exp, err := env.engine.CreateExperiment(ctx, twoArmConfig("lifecycle"))
	if err != nil {
		t.Fatalf("CreateExperiment failed: %v", err)
	}

	if _, err := env.engine.StopExperiment(ctx, exp.ID, "too early"); !errors.Is(err, domain.ErrExperimentNotStoppable) {
		t.Fatalf("stop on draft: expected ErrExperimentNotStoppable, got %v", err)
	}

	started, err := env.engine.StartExperiment(ctx, exp.ID)
	if err != nil {
		t.Fatalf("StartExperiment failed: %v", err)
	}
	if started.Status != domain.StatusRunning || started.ActualStartDate == nil {
		t.Fatalf("expected running with start date, got %+v", started)
	}

	if _, err := env.engine.StartExperiment(ctx, exp.ID); !errors.Is(err, domain.ErrExperimentNotRunnable) {
		t.Fatalf("start on running: expected ErrExperimentNotRunnable, got %v", err)
	}

	if _, err := env.engine.StopExperiment(ctx, exp.ID, "  "); !errors.Is(err, domain.ErrStopReasonRequired) {
		t.Fatalf("blank reason: expected ErrStopReasonRequired, got %v", err)
	}

	env.clock.Advance(48 * time.Hour)
	stopped, err := env.engine.StopExperiment(ctx, exp.ID, "guardrail breach")
	if err != nil {
		t.Fatalf("StopExperiment failed: %v", err)
	}
	if stopped.Status != domain.StatusStopped {
		t.Errorf("expected stopped, got %s", stopped.Status)
	}
	if stopped.StopReason == nil || *stopped.StopReason != "guardrail breach" {
		t.Errorf("expected stop reason, got %v", stopped.StopReason)
	}
	if stopped.ActualEndDate == nil || !stopped.ActualEndDate.Equal(testStart.Add(48*time.Hour)) {
		t.Errorf("unexpected end date %v", stopped.ActualEndDate)
	}

	if _, err := env.engine.StopExperiment(ctx, exp.ID, "again"); !errors.Is(err, domain.ErrExperimentNotStoppable) {
		t.Errorf("stop on stopped: expected ErrExperimentNotStoppable, got %v", err)
	}
	if _, err := env.engine.StartExperiment(ctx, exp.ID); !errors.Is(err, domain.ErrExperimentNotRunnable) {
		t.Errorf("start on stopped: expected ErrExperimentNotRunnable, got %v", err)
	}
}

func TestCompleteExperiment(t *testing.T) {
	env := newTestEnv(t, Options{})
	exp := env.createRunning(t, twoArmConfig("complete"))

	done, err := env.engine.CompleteExperiment(context.Background(), exp.ID, "planned duration reached")
	if err != nil {
		t.Fatalf("CompleteExperiment failed: %v", err)
	}
	if done.Status != domain.StatusCompleted || !done.Status.IsTerminal() {
		t.Errorf("expected completed, got %s", done.Status)
	}
}

func TestLifecycle_NotFound(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()

	if _, err := env.engine.StartExperiment(ctx, "missing"); !errors.Is(err, domain.ErrExperimentNotFound) {
		t.Errorf("start: expected ErrExperimentNotFound, got %v", err)
	}
	if _, err := env.engine.StopExperiment(ctx, "missing", "reason"); !errors.Is(err, domain.ErrExperimentNotFound) {
		t.Errorf("stop: expected ErrExperimentNotFound, got %v", err)
	}
	if _, err := env.engine.GetExperiment(ctx, "missing"); !errors.Is(err, domain.ErrExperimentNotFound) {
		t.Errorf("get: expected ErrExperimentNotFound, got %v", err)
	}
}

func TestStartExperiment_ConcurrentCallersOneWins(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()
	exp, err := env.engine.CreateExperiment(ctx, twoArmConfig("race-start"))
	if err != nil {
		t.Fatalf("CreateExperiment failed: %v", err)
	}

	const callers = 16
	var g errgroup.Group
	var wins atomic.Int32
	for i := 0; i < callers; i++ {
		g.Go(func() error {
			_, err := env.engine.StartExperiment(ctx, exp.ID)
			if err == nil {
				wins.Add(1)
				return nil
			}
			if !errors.Is(err, domain.ErrExperimentNotRunnable) {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wins.Load() != 1 {
		t.Errorf("expected exactly one winner, got %d", wins.Load())
	}
}
