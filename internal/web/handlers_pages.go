package web

import (
	"net/http"

	"github.com/a-h/templ"

	"github.com/emiliopalmerini/splitlab/internal/domain"
	"github.com/emiliopalmerini/splitlab/internal/engine"
	"github.com/emiliopalmerini/splitlab/internal/web/templates"
)

func (s *Server) handleExperiments(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	experiments, err := s.service.ListExperiments(r.Context(), filter)
	if err != nil {
		s.pageError(w, r, err)
		return
	}

	rows := make([]templates.ExperimentRow, len(experiments))
	for i, e := range experiments {
		rows[i] = templates.ExperimentRow{
			ID:            e.ID,
			Name:          e.Name,
			ScopeKey:      e.ScopeKey,
			Status:        string(e.Status),
			Variants:      len(e.Variants),
			PrimaryMetric: e.PrimaryMetric,
			StartedAt:     e.ActualStartDate,
		}
	}
	s.render(w, r, templates.ExperimentsPage(rows, string(filter.Status)))
}

func (s *Server) handleExperimentDetail(w http.ResponseWriter, r *http.Request) {
	results, err := s.service.GetResults(r.Context(), r.PathValue("id"))
	if err != nil {
		s.pageError(w, r, err)
		return
	}
	s.render(w, r, templates.ExperimentDetailPage(buildDetail(results)))
}

func buildDetail(res *engine.Results) templates.ExperimentDetail {
	e := res.Experiment
	d := templates.ExperimentDetail{
		ID:                  e.ID,
		Name:                e.Name,
		ScopeKey:            e.ScopeKey,
		Status:              string(e.Status),
		ControlVariant:      e.ControlVariant,
		FallbackVariant:     e.Fallback(),
		PrimaryMetric:       e.PrimaryMetric,
		PlannedDurationDays: e.PlannedDurationDays,
		StartedAt:           e.ActualStartDate,
		EndedAt:             e.ActualEndDate,
		EventsScanned:       res.Metrics.EventsScanned,
		Unattributed:        res.Metrics.UnattributedConversions,
		Recommendation: templates.RecommendationView{
			Action:     res.Recommendation.Action,
			Confidence: string(res.Recommendation.Confidence),
			Reasons:    res.Recommendation.Reasons,
		},
	}
	if e.Description != nil {
		d.Description = *e.Description
	}
	if e.Hypothesis != nil {
		d.Hypothesis = *e.Hypothesis
	}
	if e.StopReason != nil {
		d.StopReason = *e.StopReason
	}

	tests := make(map[string]domain.SignificanceResult, len(res.Significance))
	for _, sig := range res.Significance {
		tests[sig.Variant] = sig
	}
	for _, v := range e.Variants {
		row := templates.VariantRow{
			Name:      v.Name,
			Weight:    v.Weight,
			IsControl: v.Name == e.ControlVariant,
		}
		if m, ok := res.Metrics.ByVariant(v.Name); ok {
			row.Users = m.TotalUsers
			row.Conversions = m.Conversions
			row.Rate = m.ConversionRate
		}
		if sig, ok := tests[v.Name]; ok && sig.Computable {
			effect, p := sig.Effect, sig.PValue
			row.Effect = &effect
			row.PValue = &p
			row.Significant = sig.Significant
		}
		d.Variants = append(d.Variants, row)
	}
	return d
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := c.Render(r.Context(), w); err != nil {
		s.logger.Error("render failed", "path", r.URL.Path, "error", err)
	}
}

func (s *Server) pageError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("page failed", "path", r.URL.Path, "error", err)
		http.Error(w, http.StatusText(status), status)
		return
	}
	http.Error(w, err.Error(), status)
}
