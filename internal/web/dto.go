package web

import (
	"time"

	"github.com/emiliopalmerini/splitlab/internal/domain"
	"github.com/emiliopalmerini/splitlab/internal/engine"
)

type VariantJSON struct {
	Name   string `json:"name"`
	Weight int    `json:"weight"`
}

type CreateExperimentRequest struct {
	Name                string        `json:"name"`
	Description         string        `json:"description,omitempty"`
	Hypothesis          string        `json:"hypothesis,omitempty"`
	ScopeKey            string        `json:"scope_key"`
	Variants            []VariantJSON `json:"variants"`
	ControlVariant      string        `json:"control_variant,omitempty"`
	FallbackVariant     string        `json:"fallback_variant,omitempty"`
	PrimaryMetric       string        `json:"primary_metric"`
	SecondaryMetrics    []string      `json:"secondary_metrics,omitempty"`
	PlannedDurationDays int           `json:"planned_duration_days,omitempty"`
}

func (r CreateExperimentRequest) config() domain.ExperimentConfig {
	variants := make([]domain.Variant, len(r.Variants))
	for i, v := range r.Variants {
		variants[i] = domain.Variant{Name: v.Name, Weight: v.Weight}
	}
	return domain.ExperimentConfig{
		Name:                r.Name,
		Description:         r.Description,
		Hypothesis:          r.Hypothesis,
		ScopeKey:            r.ScopeKey,
		Variants:            variants,
		ControlVariant:      r.ControlVariant,
		FallbackVariant:     r.FallbackVariant,
		PrimaryMetric:       r.PrimaryMetric,
		SecondaryMetrics:    r.SecondaryMetrics,
		PlannedDurationDays: r.PlannedDurationDays,
	}
}

type StopRequest struct {
	Reason string `json:"reason"`
}

type AssignRequest struct {
	EntityID string `json:"entity_id"`
}

type TrackEventRequest struct {
	EntityID   string            `json:"entity_id"`
	EventType  string            `json:"event_type"`
	Properties map[string]string `json:"properties,omitempty"`
	Timestamp  *time.Time        `json:"timestamp,omitempty"`
}

type ExperimentResponse struct {
	ID                  string        `json:"id"`
	Name                string        `json:"name"`
	Description         *string       `json:"description,omitempty"`
	Hypothesis          *string       `json:"hypothesis,omitempty"`
	ScopeKey            string        `json:"scope_key"`
	Variants            []VariantJSON `json:"variants"`
	ControlVariant      string        `json:"control_variant"`
	FallbackVariant     string        `json:"fallback_variant"`
	PrimaryMetric       string        `json:"primary_metric"`
	SecondaryMetrics    []string      `json:"secondary_metrics,omitempty"`
	Status              string        `json:"status"`
	PlannedDurationDays int           `json:"planned_duration_days"`
	StopReason          *string       `json:"stop_reason,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	ActualStartDate     *time.Time    `json:"actual_start_date,omitempty"`
	ActualEndDate       *time.Time    `json:"actual_end_date,omitempty"`
}

func NewExperimentResponse(e *domain.Experiment) ExperimentResponse {
	variants := make([]VariantJSON, len(e.Variants))
	for i, v := range e.Variants {
		variants[i] = VariantJSON{Name: v.Name, Weight: v.Weight}
	}
	return ExperimentResponse{
		ID:                  e.ID,
		Name:                e.Name,
		Description:         e.Description,
		Hypothesis:          e.Hypothesis,
		ScopeKey:            e.ScopeKey,
		Variants:            variants,
		ControlVariant:      e.ControlVariant,
		FallbackVariant:     e.Fallback(),
		PrimaryMetric:       e.PrimaryMetric,
		SecondaryMetrics:    e.SecondaryMetrics,
		Status:              string(e.Status),
		PlannedDurationDays: e.PlannedDurationDays,
		StopReason:          e.StopReason,
		CreatedAt:           e.CreatedAt,
		ActualStartDate:     e.ActualStartDate,
		ActualEndDate:       e.ActualEndDate,
	}
}

type AssignmentResponse struct {
	ExperimentID string     `json:"experiment_id"`
	EntityID     string     `json:"entity_id"`
	Variant      string     `json:"variant"`
	IsFallback   bool       `json:"is_fallback"`
	HashValue    float64    `json:"hash_value,omitempty"`
	AssignedAt   *time.Time `json:"assigned_at,omitempty"`
}

func newAssignmentResponse(experimentID, entityID string, res engine.AssignmentResult) AssignmentResponse {
	out := AssignmentResponse{
		ExperimentID: experimentID,
		EntityID:     entityID,
		Variant:      res.Variant,
		IsFallback:   res.IsFallback,
		HashValue:    res.HashValue,
	}
	if !res.AssignedAt.IsZero() {
		at := res.AssignedAt
		out.AssignedAt = &at
	}
	return out
}

type EventAckResponse struct {
	Recorded  bool      `json:"recorded"`
	Duplicate bool      `json:"duplicate"`
	Timestamp time.Time `json:"timestamp"`
}

type VariantMetricsResponse struct {
	Variant              string           `json:"variant"`
	TotalUsers           int64            `json:"total_users"`
	Conversions          int64            `json:"conversions"`
	ConversionRate       float64          `json:"conversion_rate"`
	SecondaryConversions map[string]int64 `json:"secondary_conversions,omitempty"`
}

type SignificanceResponse struct {
	Variant            string   `json:"variant"`
	Control            string   `json:"control"`
	ControlRate        float64  `json:"control_rate"`
	VariantRate        float64  `json:"variant_rate"`
	Effect             float64  `json:"effect"`
	RelativeEffect     *float64 `json:"relative_effect,omitempty"`
	ZScore             float64  `json:"z_score"`
	PValue             float64  `json:"p_value"`
	Computable         bool     `json:"computable"`
	InsufficientSample bool     `json:"insufficient_sample"`
	Significant        bool     `json:"significant"`
}

type RecommendationResponse struct {
	Action     string   `json:"action"`
	Variant    string   `json:"variant,omitempty"`
	Confidence string   `json:"confidence"`
	Reasons    []string `json:"reasons"`
}

// ResultsResponse is the wire form of engine.Results. The CLI prints the
// same document for `experiment results --json`.
type ResultsResponse struct {
	Experiment              ExperimentResponse       `json:"experiment"`
	PrimaryMetric           string                   `json:"primary_metric"`
	Variants                []VariantMetricsResponse `json:"variants"`
	UnattributedConversions int64                    `json:"unattributed_conversions"`
	EventsScanned           int64                    `json:"events_scanned"`
	AssignedEntities        int64                    `json:"assigned_entities"`
	Significance            []SignificanceResponse   `json:"significance"`
	Recommendation          RecommendationResponse   `json:"recommendation"`
	GeneratedAt             time.Time                `json:"generated_at"`
}

func NewResultsResponse(r *engine.Results) ResultsResponse {
	out := ResultsResponse{
		Experiment:              NewExperimentResponse(r.Experiment),
		PrimaryMetric:           r.Metrics.PrimaryMetric,
		Variants:                make([]VariantMetricsResponse, len(r.Metrics.Variants)),
		UnattributedConversions: r.Metrics.UnattributedConversions,
		EventsScanned:           r.Metrics.EventsScanned,
		AssignedEntities:        r.AssignedEntities,
		Significance:            make([]SignificanceResponse, len(r.Significance)),
		Recommendation: RecommendationResponse{
			Action:     r.Recommendation.Action,
			Variant:    r.Recommendation.Variant,
			Confidence: string(r.Recommendation.Confidence),
			Reasons:    r.Recommendation.Reasons,
		},
		GeneratedAt: r.GeneratedAt,
	}
	for i, v := range r.Metrics.Variants {
		out.Variants[i] = VariantMetricsResponse{
			Variant:              v.Variant,
			TotalUsers:           v.TotalUsers,
			Conversions:          v.Conversions,
			ConversionRate:       v.ConversionRate,
			SecondaryConversions: v.SecondaryConversions,
		}
	}
	for i, s := range r.Significance {
		out.Significance[i] = SignificanceResponse{
			Variant:            s.Variant,
			Control:            s.Control,
			ControlRate:        s.ControlRate,
			VariantRate:        s.VariantRate,
			Effect:             s.Effect,
			RelativeEffect:     s.RelativeEffect,
			ZScore:             s.ZScore,
			PValue:             s.PValue,
			Computable:         s.Computable,
			InsufficientSample: s.InsufficientSample,
			Significant:        s.Significant,
		}
	}
	if out.Recommendation.Reasons == nil {
		out.Recommendation.Reasons = []string{}
	}
	return out
}

type errorResponse struct {
	Error string `json:"error"`
}
