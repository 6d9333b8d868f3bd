package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/emiliopalmerini/splitlab/internal/adapters/memory"
	"github.com/emiliopalmerini/splitlab/internal/domain"
)

var testStart = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	engine *Engine
	store  *memory.Store
	clock  *testClock
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	store := memory.NewStore()
	experiments, assignments, events := store.Repositories()
	clock := &testClock{now: testStart}

	var seq atomic.Int64
	opts.Now = clock.Now
	opts.NewID = func() string { return fmt.Sprintf("exp-%d", seq.Add(1)) }

	eng := New(Repositories{
		Experiments: experiments,
		Assignments: assignments,
		Events:      events,
	}, nil, slog.New(slog.DiscardHandler), opts)
	return &testEnv{engine: eng, store: store, clock: clock}
}

func twoArmConfig(name string) domain.ExperimentConfig {
	return domain.ExperimentConfig{
		Name:     name,
		ScopeKey: "shorts:finance",
		Variants: []domain.Variant{
			{Name: "control", Weight: 50},
			{Name: "variantA", Weight: 50},
		},
		PrimaryMetric: "conversion",
	}
}

func (env *testEnv) createRunning(t *testing.T, cfg domain.ExperimentConfig) *domain.Experiment {
	t.Helper()
	ctx := context.Background()
	exp, err := env.engine.CreateExperiment(ctx, cfg)
	if err != nil {
		t.Fatalf("CreateExperiment failed: %v", err)
	}
	exp, err = env.engine.StartExperiment(ctx, exp.ID)
	if err != nil {
		t.Fatalf("StartExperiment failed: %v", err)
	}
	return exp
}

// countEvents reads every stored event of the experiment with the given type.
func (env *testEnv) countEvents(t *testing.T, experimentID, eventType string) int {
	t.Helper()
	_, _, events := env.store.Repositories()
	page, err := events.Page(context.Background(), domain.EventQuery{
		ExperimentID: experimentID,
		EventTypes:   []string{eventType},
	}, 0, 0)
	if err != nil {
		t.Fatalf("Page failed: %v", err)
	}
	return len(page.Events)
}
