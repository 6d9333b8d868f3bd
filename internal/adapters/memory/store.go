// Package memory provides in-process implementations of the repository
// ports. All three repositories share one Store so a single mutex orders
// writes, which gives insert-if-absent and compare-and-set semantics.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/emiliopalmerini/splitlab/internal/domain"
	"github.com/emiliopalmerini/splitlab/internal/ports"
)

type assignmentKey struct {
	experimentID string
	entityID     string
}

// Store holds experiments, assignments and events in memory.
type Store struct {
	mu          sync.RWMutex
	experiments map[string]*domain.Experiment
	order       []string
	assignments map[assignmentKey]*domain.Assignment
	events      []*domain.Event
	eventKeys   map[domain.NaturalKey]struct{}
}

func NewStore() *Store {
	return &Store{
		experiments: make(map[string]*domain.Experiment),
		assignments: make(map[assignmentKey]*domain.Assignment),
		eventKeys:   make(map[domain.NaturalKey]struct{}),
	}
}

// Repositories returns the port implementations backed by s.
func (s *Store) Repositories() (*ExperimentRepository, *AssignmentRepository, *EventRepository) {
	return &ExperimentRepository{s: s}, &AssignmentRepository{s: s}, &EventRepository{s: s}
}

type ExperimentRepository struct{ s *Store }

func NewExperimentRepository(s *Store) *ExperimentRepository { return &ExperimentRepository{s: s} }

func (r *ExperimentRepository) Create(_ context.Context, experiment *domain.Experiment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.experiments[experiment.ID]; ok {
		return domain.ErrExperimentExists
	}
	for _, e := range r.s.experiments {
		if e.Name == experiment.Name {
			return domain.ErrExperimentExists
		}
	}
	r.s.experiments[experiment.ID] = cloneExperiment(experiment)
	r.s.order = append(r.s.order, experiment.ID)
	return nil
}

func (r *ExperimentRepository) GetByID(_ context.Context, id string) (*domain.Experiment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	e, ok := r.s.experiments[id]
	if !ok {
		return nil, domain.ErrExperimentNotFound
	}
	return cloneExperiment(e), nil
}

func (r *ExperimentRepository) GetByName(_ context.Context, name string) (*domain.Experiment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, id := range r.s.order {
		if e := r.s.experiments[id]; e.Name == name {
			return cloneExperiment(e), nil
		}
	}
	return nil, domain.ErrExperimentNotFound
}

func (r *ExperimentRepository) List(_ context.Context, filter domain.ExperimentFilter) ([]*domain.Experiment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*domain.Experiment
	for _, id := range r.s.order {
		if e := r.s.experiments[id]; filter.Matches(e) {
			out = append(out, cloneExperiment(e))
		}
	}
	return out, nil
}

func (r *ExperimentRepository) Transition(_ context.Context, t ports.StatusTransition) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	e, ok := r.s.experiments[t.ID]
	if !ok {
		return false, domain.ErrExperimentNotFound
	}
	if e.Status != t.From {
		return false, nil
	}

	at := t.At.UTC()
	e.Status = t.To
	switch t.To {
	case domain.StatusRunning:
		e.ActualStartDate = &at
	case domain.StatusStopped, domain.StatusCompleted:
		e.ActualEndDate = &at
		e.StopReason = clonePtr(t.StopReason)
	}
	return true, nil
}

type AssignmentRepository struct{ s *Store }

func NewAssignmentRepository(s *Store) *AssignmentRepository { return &AssignmentRepository{s: s} }

func (r *AssignmentRepository) Get(_ context.Context, experimentID, entityID string) (*domain.Assignment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	a, ok := r.s.assignments[assignmentKey{experimentID, entityID}]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *AssignmentRepository) InsertIfAbsent(_ context.Context, a *domain.Assignment) (*domain.Assignment, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := assignmentKey{a.ExperimentID, a.EntityID}
	if existing, ok := r.s.assignments[key]; ok {
		cp := *existing
		return &cp, false, nil
	}
	stored := *a
	r.s.assignments[key] = &stored
	cp := stored
	return &cp, true, nil
}

func (r *AssignmentRepository) List(_ context.Context, experimentID, afterEntityID string, limit int) ([]*domain.Assignment, error) {
	r.s.mu.RLock()
	var out []*domain.Assignment
	for key, a := range r.s.assignments {
		if key.experimentID == experimentID && key.entityID > afterEntityID {
			cp := *a
			out = append(out, &cp)
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *AssignmentRepository) Count(_ context.Context, experimentID string) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var n int64
	for key := range r.s.assignments {
		if key.experimentID == experimentID {
			n++
		}
	}
	return n, nil
}

type EventRepository struct{ s *Store }

func NewEventRepository(s *Store) *EventRepository { return &EventRepository{s: s} }

func (r *EventRepository) Append(_ context.Context, e *domain.Event) (bool, error) {
	if err := e.Validate(); err != nil {
		return false, err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := e.Key()
	if _, dup := r.s.eventKeys[key]; dup {
		return false, nil
	}
	r.s.eventKeys[key] = struct{}{}

	stored := cloneEvent(e)
	stored.Seq = int64(len(r.s.events) + 1)
	r.s.events = append(r.s.events, stored)
	e.Seq = stored.Seq
	return true, nil
}

func (r *EventRepository) Page(_ context.Context, q domain.EventQuery, afterSeq int64, limit int) (domain.EventPage, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if afterSeq < 0 {
		afterSeq = 0
	}
	page := domain.EventPage{NextSeq: afterSeq}
	// Seq is the slice index plus one, so the scan can start at afterSeq.
	for i := int(afterSeq); i < len(r.s.events); i++ {
		e := r.s.events[i]
		page.NextSeq = e.Seq
		if !q.Matches(e) {
			continue
		}
		page.Events = append(page.Events, cloneEvent(e))
		if limit > 0 && len(page.Events) == limit {
			page.Done = i == len(r.s.events)-1
			return page, nil
		}
	}
	page.Done = true
	return page, nil
}

func cloneExperiment(e *domain.Experiment) *domain.Experiment {
	cp := *e
	cp.Variants = append([]domain.Variant(nil), e.Variants...)
	cp.SecondaryMetrics = append([]string(nil), e.SecondaryMetrics...)
	cp.Description = clonePtr(e.Description)
	cp.Hypothesis = clonePtr(e.Hypothesis)
	cp.StopReason = clonePtr(e.StopReason)
	cp.ActualStartDate = clonePtr(e.ActualStartDate)
	cp.ActualEndDate = clonePtr(e.ActualEndDate)
	return &cp
}

func cloneEvent(e *domain.Event) *domain.Event {
	cp := *e
	cp.Timestamp = e.Timestamp.UTC()
	if e.Properties != nil {
		cp.Properties = make(map[string]string, len(e.Properties))
		for k, v := range e.Properties {
			cp.Properties[k] = v
		}
	}
	return &cp
}

func clonePtr[T any](t *T) *T {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
