package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/emiliopalmerini/splitlab/internal/adapters/memory"
	"github.com/emiliopalmerini/splitlab/internal/domain"
)

func TestGetAssignment_Deterministic(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()
	exp := env.createRunning(t, twoArmConfig("determinism"))

	first, err := env.engine.GetAssignment(ctx, exp.ID, "user-42")
	if err != nil {
		t.Fatalf("GetAssignment failed: %v", err)
	}
	if !first.Created || first.IsFallback {
		t.Fatalf("expected fresh assignment, got %+v", first)
	}
	wantVariant, wantHash := domain.Bucket(exp, "user-42")
	if first.Variant != wantVariant || first.HashValue != wantHash {
		t.Errorf("expected %s/%v, got %s/%v", wantVariant, wantHash, first.Variant, first.HashValue)
	}

	env.clock.Advance(time.Hour)
	for i := 0; i < 5; i++ {
		again, err := env.engine.GetAssignment(ctx, exp.ID, "user-42")
		if err != nil {
			t.Fatalf("GetAssignment failed: %v", err)
		}
		if again.Variant != first.Variant || again.Created || !again.AssignedAt.Equal(first.AssignedAt) {
			t.Fatalf("call %d diverged: %+v vs %+v", i, again, first)
		}
	}

	if n := env.countEvents(t, exp.ID, domain.EventTypeAssignment); n != 1 {
		t.Errorf("expected one assignment event, got %d", n)
	}
}

func TestGetAssignment_Distribution(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()
	exp := env.createRunning(t, domain.ExperimentConfig{
		Name: "distribution",
		Variants: []domain.Variant{
			{Name: "control", Weight: 50},
			{Name: "variantA", Weight: 30},
			{Name: "variantB", Weight: 20},
		},
		PrimaryMetric: "conversion",
	})

	const total = 10000
	counts := make(map[string]int)
	for i := 0; i < total; i++ {
		res, err := env.engine.GetAssignment(ctx, exp.ID, fmt.Sprintf("entity-%05d", i))
		if err != nil {
			t.Fatalf("GetAssignment failed: %v", err)
		}
		counts[res.Variant]++
	}

	want := map[string]float64{"control": 50, "variantA": 30, "variantB": 20}
	for variant, pct := range want {
		got := float64(counts[variant]) * 100 / total
		if math.Abs(got-pct) > 3 {
			t.Errorf("%s: expected %.0f%% ±3, got %.2f%%", variant, pct, got)
		}
	}
}

func TestGetAssignment_FallbackWhenNotRunning(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()

	cfg := twoArmConfig("fallback")
	cfg.FallbackVariant = "variantA"
	exp, err := env.engine.CreateExperiment(ctx, cfg)
	if err != nil {
		t.Fatalf("CreateExperiment failed: %v", err)
	}

	res, err := env.engine.GetAssignment(ctx, exp.ID, "user-1")
	if err != nil {
		t.Fatalf("GetAssignment failed: %v", err)
	}
	if !res.IsFallback || res.Variant != "variantA" || res.Created {
		t.Errorf("expected fallback variantA, got %+v", res)
	}

	_, assignments, _ := env.store.Repositories()
	if n, _ := assignments.Count(ctx, exp.ID); n != 0 {
		t.Errorf("expected no persisted assignment, got %d", n)
	}
	if n := env.countEvents(t, exp.ID, domain.EventTypeAssignment); n != 0 {
		t.Errorf("expected no assignment event, got %d", n)
	}
}

func TestGetAssignment_StoppedServesControl(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()
	exp := env.createRunning(t, twoArmConfig("stopped"))

	if _, err := env.engine.GetAssignment(ctx, exp.ID, "early-user"); err != nil {
		t.Fatalf("GetAssignment failed: %v", err)
	}
	if _, err := env.engine.StopExperiment(ctx, exp.ID, "done"); err != nil {
		t.Fatalf("StopExperiment failed: %v", err)
	}

	res, err := env.engine.GetAssignment(ctx, exp.ID, "late-user")
	if err != nil {
		t.Fatalf("GetAssignment failed: %v", err)
	}
	if !res.IsFallback || res.Variant != "control" {
		t.Errorf("expected control fallback, got %+v", res)
	}

	// Stopping never retracts persisted assignments.
	list, err := env.engine.ListAssignments(ctx, exp.ID, "", 10)
	if err != nil {
		t.Fatalf("ListAssignments failed: %v", err)
	}
	if len(list) != 1 || list[0].EntityID != "early-user" {
		t.Errorf("expected early-user to stay assigned, got %v", list)
	}
}

func TestGetAssignment_Errors(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()

	if _, err := env.engine.GetAssignment(ctx, "missing", "user-1"); !errors.Is(err, domain.ErrExperimentNotFound) {
		t.Errorf("expected ErrExperimentNotFound, got %v", err)
	}
	exp := env.createRunning(t, twoArmConfig("errors"))
	if _, err := env.engine.GetAssignment(ctx, exp.ID, ""); !errors.Is(err, domain.ErrInvalidEntity) {
		t.Errorf("expected ErrInvalidEntity, got %v", err)
	}
}

func TestGetAssignment_ConcurrentFirstRequests(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()
	exp := env.createRunning(t, twoArmConfig("concurrent"))

	const callers = 32
	results := make([]AssignmentResult, callers)
	var g errgroup.Group
	for i := 0; i < callers; i++ {
		g.Go(func() error {
			res, err := env.engine.GetAssignment(ctx, exp.ID, "shared-entity")
			results[i] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("GetAssignment failed: %v", err)
	}

	created := 0
	for _, res := range results {
		if res.Variant != results[0].Variant {
			t.Fatalf("divergent variants: %s vs %s", res.Variant, results[0].Variant)
		}
		if res.Created {
			created++
		}
	}
	if created != 1 {
		t.Errorf("expected exactly one creating call, got %d", created)
	}
	if n := env.countEvents(t, exp.ID, domain.EventTypeAssignment); n != 1 {
		t.Errorf("expected one assignment event, got %d", n)
	}
}

// raceLosingAssignments always misses on Get and reports a pre-existing
// winner on insert, simulating a concurrent writer between the two calls.
type raceLosingAssignments struct {
	*memory.AssignmentRepository
	winner *domain.Assignment
}

func (r *raceLosingAssignments) Get(context.Context, string, string) (*domain.Assignment, error) {
	return nil, nil
}

func (r *raceLosingAssignments) InsertIfAbsent(context.Context, *domain.Assignment) (*domain.Assignment, bool, error) {
	cp := *r.winner
	return &cp, false, nil
}

func TestGetAssignment_RaceLoserReturnsWinner(t *testing.T) {
	store := memory.NewStore()
	experiments, assignments, events := store.Repositories()
	ctx := context.Background()

	base := New(Repositories{Experiments: experiments, Assignments: assignments, Events: events}, nil, nil, Options{})
	exp, err := base.CreateExperiment(ctx, twoArmConfig("race-loser"))
	if err != nil {
		t.Fatalf("CreateExperiment failed: %v", err)
	}
	if _, err := base.StartExperiment(ctx, exp.ID); err != nil {
		t.Fatalf("StartExperiment failed: %v", err)
	}

	computed, _ := domain.Bucket(exp, "user-7")
	other := "control"
	if computed == "control" {
		other = "variantA"
	}
	winner := &domain.Assignment{
		ExperimentID: exp.ID,
		EntityID:     "user-7",
		Variant:      other,
		HashValue:    0.5,
		HashVersion:  domain.HashVersion,
		AssignedAt:   testStart,
	}

	eng := New(Repositories{
		Experiments: experiments,
		Assignments: &raceLosingAssignments{AssignmentRepository: assignments, winner: winner},
		Events:      events,
	}, nil, nil, Options{})

	res, err := eng.GetAssignment(ctx, exp.ID, "user-7")
	if err != nil {
		t.Fatalf("GetAssignment failed: %v", err)
	}
	if res.Variant != other || res.Created {
		t.Errorf("expected winner's variant %s without creation, got %+v", other, res)
	}

	page, err := events.Page(ctx, domain.EventQuery{ExperimentID: exp.ID}, 0, 0)
	if err != nil {
		t.Fatalf("Page failed: %v", err)
	}
	// The winner's event is re-appended under its own timestamp and variant.
	if len(page.Events) != 1 {
		t.Fatalf("expected one assignment event, got %d", len(page.Events))
	}
	got := page.Events[0]
	if got.Properties[domain.PropertyVariant] != other || !got.Timestamp.Equal(winner.AssignedAt) {
		t.Errorf("expected winner's event, got %+v", got)
	}
}

// flakyEvents fails the first Append and then behaves normally.
type flakyEvents struct {
	*memory.EventRepository
	failures int
}

func (r *flakyEvents) Append(ctx context.Context, e *domain.Event) (bool, error) {
	if r.failures > 0 {
		r.failures--
		return false, errors.New("transient")
	}
	return r.EventRepository.Append(ctx, e)
}

func TestGetAssignment_RetryRepairsMissingEvent(t *testing.T) {
	store := memory.NewStore()
	experiments, assignments, events := store.Repositories()
	ctx := context.Background()

	flaky := &flakyEvents{EventRepository: events}
	eng := New(Repositories{Experiments: experiments, Assignments: assignments, Events: flaky}, nil, nil, Options{})
	exp, err := eng.CreateExperiment(ctx, twoArmConfig("flaky-events"))
	if err != nil {
		t.Fatalf("CreateExperiment failed: %v", err)
	}
	if _, err := eng.StartExperiment(ctx, exp.ID); err != nil {
		t.Fatalf("StartExperiment failed: %v", err)
	}

	flaky.failures = 1
	if _, err := eng.GetAssignment(ctx, exp.ID, "user-9"); err == nil {
		t.Fatal("expected first call to fail on the event append")
	}

	res, err := eng.GetAssignment(ctx, exp.ID, "user-9")
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if want, _ := domain.Bucket(exp, "user-9"); res.Variant != want || res.Created {
		t.Errorf("expected stored variant %s, got %+v", want, res)
	}

	if _, err := eng.TrackEvent(ctx, TrackEventInput{
		ExperimentID: exp.ID,
		EntityID:     "user-9",
		EventType:    "conversion",
	}); err != nil {
		t.Fatalf("TrackEvent failed: %v", err)
	}

	results, err := eng.GetResults(ctx, exp.ID)
	if err != nil {
		t.Fatalf("GetResults failed: %v", err)
	}
	var users int64
	for _, v := range results.Metrics.Variants {
		users += v.TotalUsers
	}
	if users != 1 || results.Metrics.UnattributedConversions != 0 {
		t.Errorf("expected 1 user and no unattributed conversions, got %d/%d", users, results.Metrics.UnattributedConversions)
	}
	if results.AssignedEntities != 1 {
		t.Errorf("expected 1 assigned entity, got %d", results.AssignedEntities)
	}
}

func TestListAssignments_Paging(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()
	exp := env.createRunning(t, twoArmConfig("paging"))

	for _, id := range []string{"c", "a", "e", "b", "d"} {
		if _, err := env.engine.GetAssignment(ctx, exp.ID, id); err != nil {
			t.Fatalf("GetAssignment failed: %v", err)
		}
	}

	page1, err := env.engine.ListAssignments(ctx, exp.ID, "", 2)
	if err != nil {
		t.Fatalf("ListAssignments failed: %v", err)
	}
	page2, err := env.engine.ListAssignments(ctx, exp.ID, page1[len(page1)-1].EntityID, 2)
	if err != nil {
		t.Fatalf("ListAssignments failed: %v", err)
	}
	got := []string{page1[0].EntityID, page1[1].EntityID, page2[0].EntityID, page2[1].EntityID}
	want := []string{"a", "b", "c", "d"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}

	if _, err := env.engine.ListAssignments(ctx, "missing", "", 2); !errors.Is(err, domain.ErrExperimentNotFound) {
		t.Errorf("expected ErrExperimentNotFound, got %v", err)
	}
}
