package domain

import (
	"fmt"
	"time"
)

// Confidence grades a recommendation.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

const (
	ActionContinue     = "continue running"
	ActionInconclusive = "inconclusive"
	ActionNotStarted   = "not started"
	actionShipPrefix   = "ship "

	highConfidencePValue = 0.01
)

// Recommendation is the engine's suggested next step for an experiment.
type Recommendation struct {
	Action     string
	Variant    string
	Confidence Confidence
	Reasons    []string
}

// ShipAction formats the action for shipping variant.
func ShipAction(variant string) string {
	return actionShipPrefix + variant
}

// Recommend combines significance results with lifecycle and duration rules.
func Recommend(exp *Experiment, results []SignificanceResult, now time.Time) Recommendation {
	if exp.Status == StatusDraft {
		return Recommendation{
			Action:     ActionNotStarted,
			Confidence: ConfidenceLow,
			Reasons:    []string{"experiment has not been started"},
		}
	}

	var best *SignificanceResult
	for i := range results {
		r := &results[i]
		if !r.Significant || r.Effect <= 0 {
			continue
		}
		if best == nil || r.Effect > best.Effect || (r.Effect == best.Effect && r.Variant < best.Variant) {
			best = r
		}
	}
	if best != nil {
		confidence := ConfidenceMedium
		if best.PValue < highConfidencePValue {
			confidence = ConfidenceHigh
		}
		return Recommendation{
			Action:     ShipAction(best.Variant),
			Variant:    best.Variant,
			Confidence: confidence,
			Reasons: []string{fmt.Sprintf("%s converts at %.2f%% vs %.2f%% for %s (p=%.4f)",
				best.Variant, best.VariantRate*100, best.ControlRate*100, best.Control, best.PValue)},
		}
	}

	planned := exp.PlannedDuration()
	elapsed := exp.Elapsed(now)
	if exp.Status.IsTerminal() || (planned > 0 && elapsed >= planned) {
		reason := "no variant beat control with statistical significance"
		if !exp.Status.IsTerminal() {
			reason = fmt.Sprintf("planned duration of %d days reached and %s", exp.PlannedDurationDays, reason)
		}
		return Recommendation{
			Action:     ActionInconclusive,
			Confidence: ConfidenceLow,
			Reasons:    []string{reason},
		}
	}

	var reasons []string
	lacking := make(map[string]bool)
	for _, r := range results {
		if !r.InsufficientSample {
			continue
		}
		if r.ControlUsers < r.MinSampleSize && !lacking[r.Control] {
			lacking[r.Control] = true
			reasons = append(reasons, fmt.Sprintf("%s lacks sample size (%d users)", r.Control, r.ControlUsers))
		}
		if r.VariantUsers < r.MinSampleSize && !lacking[r.Variant] {
			lacking[r.Variant] = true
			reasons = append(reasons, fmt.Sprintf("%s lacks sample size (%d users)", r.Variant, r.VariantUsers))
		}
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "no significant positive effect yet")
	}
	return Recommendation{
		Action:     ActionContinue,
		Confidence: ConfidenceLow,
		Reasons:    reasons,
	}
}
