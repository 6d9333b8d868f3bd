package templates

import "time"

// ExperimentRow is one line of the experiments list.
type ExperimentRow struct {
	ID            string
	Name          string
	ScopeKey      string
	Status        string
	Variants      int
	PrimaryMetric string
	StartedAt     *time.Time
}

// ExperimentDetail backs the experiment page.
type ExperimentDetail struct {
	ID                  string
	Name                string
	Description         string
	Hypothesis          string
	ScopeKey            string
	Status              string
	ControlVariant      string
	FallbackVariant     string
	PrimaryMetric       string
	PlannedDurationDays int
	StopReason          string
	StartedAt           *time.Time
	EndedAt             *time.Time
	Variants            []VariantRow
	EventsScanned       int64
	Unattributed        int64
	Recommendation      RecommendationView
}

// VariantRow merges allocation, counts and the test against control.
type VariantRow struct {
	Name        string
	Weight      int
	IsControl   bool
	Users       int64
	Conversions int64
	Rate        float64
	Effect      *float64
	PValue      *float64
	Significant bool
}

type RecommendationView struct {
	Action     string
	Confidence string
	Reasons    []string
}
