package domain

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of an experiment.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusRunning   Status = "running"
	StatusStopped   Status = "stopped"
	StatusCompleted Status = "completed"
)

// DefaultControlVariant is the conventional name of the baseline arm.
const DefaultControlVariant = "control"

// TotalWeight is the sum every experiment's variant weights must reach.
const TotalWeight = 100

// ParseStatus converts a stored or user-supplied status string.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusDraft, StatusRunning, StatusStopped, StatusCompleted:
		return st, nil
	default:
		return "", fmt.Errorf("unknown experiment status %q", s)
	}
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusStopped || s == StatusCompleted
}

// Variant is one arm of an experiment with its integer share of traffic.
type Variant struct {
	Name   string
	Weight int
}

type Experiment struct {
	ID                  string
	Name                string
	Description         *string
	Hypothesis          *string
	ScopeKey            string
	Variants            []Variant
	ControlVariant      string
	FallbackVariant     string
	PrimaryMetric       string
	SecondaryMetrics    []string
	Status              Status
	PlannedDurationDays int
	StopReason          *string
	CreatedAt           time.Time
	ActualStartDate     *time.Time
	ActualEndDate       *time.Time
}

// ExperimentConfig is the caller-supplied definition of a new experiment.
type ExperimentConfig struct {
	Name                string
	Description         string
	Hypothesis          string
	ScopeKey            string
	Variants            []Variant
	ControlVariant      string
	FallbackVariant     string
	PrimaryMetric       string
	SecondaryMetrics    []string
	PlannedDurationDays int
}

// ExperimentFilter narrows List results. Zero values match everything.
type ExperimentFilter struct {
	ScopeKey string
	Status   Status
}

// Matches reports whether e satisfies the filter.
func (f ExperimentFilter) Matches(e *Experiment) bool {
	if f.ScopeKey != "" && e.ScopeKey != f.ScopeKey {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	return true
}

// Validate checks the structural invariants of a definition. Weight errors
// wrap ErrInvalidVariantWeights; everything else wraps ErrInvalidExperiment.
func (c ExperimentConfig) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidExperiment)
	}
	if strings.TrimSpace(c.PrimaryMetric) == "" {
		return fmt.Errorf("%w: primary metric is required", ErrInvalidExperiment)
	}
	if c.PrimaryMetric == EventTypeAssignment {
		return fmt.Errorf("%w: %q is reserved and cannot be a metric", ErrInvalidExperiment, EventTypeAssignment)
	}
	if c.PlannedDurationDays < 0 {
		return fmt.Errorf("%w: planned duration must not be negative", ErrInvalidExperiment)
	}
	if len(c.Variants) < 2 {
		return fmt.Errorf("%w: at least 2 variants required, got %d", ErrInvalidVariantWeights, len(c.Variants))
	}

	seen := make(map[string]struct{}, len(c.Variants))
	sum := 0
	for _, v := range c.Variants {
		if strings.TrimSpace(v.Name) == "" {
			return fmt.Errorf("%w: variant name is required", ErrInvalidExperiment)
		}
		if _, dup := seen[v.Name]; dup {
			return fmt.Errorf("%w: duplicate variant %q", ErrInvalidExperiment, v.Name)
		}
		seen[v.Name] = struct{}{}
		if v.Weight < 0 {
			return fmt.Errorf("%w: variant %q has negative weight %d", ErrInvalidVariantWeights, v.Name, v.Weight)
		}
		sum += v.Weight
	}
	if sum != TotalWeight {
		return fmt.Errorf("%w: weights sum to %d, want %d", ErrInvalidVariantWeights, sum, TotalWeight)
	}

	control := c.controlVariant()
	if _, ok := seen[control]; !ok {
		return fmt.Errorf("%w: control variant %q is not defined", ErrInvalidExperiment, control)
	}
	if c.FallbackVariant != "" {
		if _, ok := seen[c.FallbackVariant]; !ok {
			return fmt.Errorf("%w: fallback variant %q is not defined", ErrInvalidExperiment, c.FallbackVariant)
		}
	}
	for _, m := range c.SecondaryMetrics {
		if strings.TrimSpace(m) == "" || m == EventTypeAssignment {
			return fmt.Errorf("%w: invalid secondary metric %q", ErrInvalidExperiment, m)
		}
	}
	return nil
}

func (c ExperimentConfig) controlVariant() string {
	if c.ControlVariant != "" {
		return c.ControlVariant
	}
	return DefaultControlVariant
}

// NewExperiment validates cfg and builds a Draft experiment.
func NewExperiment(id string, cfg ExperimentConfig, now time.Time) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	variants := make([]Variant, len(cfg.Variants))
	copy(variants, cfg.Variants)

	exp := &Experiment{
		ID:                  id,
		Name:                strings.TrimSpace(cfg.Name),
		Description:         optionalString(cfg.Description),
		Hypothesis:          optionalString(cfg.Hypothesis),
		ScopeKey:            cfg.ScopeKey,
		Variants:            variants,
		ControlVariant:      cfg.controlVariant(),
		FallbackVariant:     cfg.FallbackVariant,
		PrimaryMetric:       cfg.PrimaryMetric,
		SecondaryMetrics:    dedupe(cfg.SecondaryMetrics, cfg.PrimaryMetric),
		Status:              StatusDraft,
		PlannedDurationDays: cfg.PlannedDurationDays,
		CreatedAt:           now.UTC(),
	}
	return exp, nil
}

// Fallback returns the variant served while the experiment is not running.
func (e *Experiment) Fallback() string {
	if e.FallbackVariant != "" {
		return e.FallbackVariant
	}
	return e.ControlVariant
}

// HasVariant reports whether name is one of the experiment's arms.
func (e *Experiment) HasVariant(name string) bool {
	for _, v := range e.Variants {
		if v.Name == name {
			return true
		}
	}
	return false
}

// CanStart reports whether Start is legal in the current state.
func (e *Experiment) CanStart() error {
	if e.Status != StatusDraft {
		return fmt.Errorf("%w: experiment %s is %s", ErrExperimentNotRunnable, e.ID, e.Status)
	}
	return nil
}

// CanStop reports whether Stop or Complete is legal in the current state.
func (e *Experiment) CanStop() error {
	if e.Status != StatusRunning {
		return fmt.Errorf("%w: experiment %s is %s", ErrExperimentNotStoppable, e.ID, e.Status)
	}
	return nil
}

// Elapsed returns how long the experiment has been (or was) running.
func (e *Experiment) Elapsed(now time.Time) time.Duration {
	if e.ActualStartDate == nil {
		return 0
	}
	end := now
	if e.ActualEndDate != nil {
		end = *e.ActualEndDate
	}
	if end.Before(*e.ActualStartDate) {
		return 0
	}
	return end.Sub(*e.ActualStartDate)
}

// PlannedDuration converts PlannedDurationDays. Zero means open-ended.
func (e *Experiment) PlannedDuration() time.Duration {
	return time.Duration(e.PlannedDurationDays) * 24 * time.Hour
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func dedupe(values []string, exclude string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == exclude {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
