package domain

// VariantMetrics holds the derived counts for one arm.
type VariantMetrics struct {
	Variant              string
	TotalUsers           int64
	Conversions          int64
	ConversionRate       float64
	SecondaryConversions map[string]int64
}

// MetricsSnapshot is the per-variant summary of an experiment at scan time.
type MetricsSnapshot struct {
	ExperimentID            string
	PrimaryMetric           string
	Variants                []VariantMetrics
	UnattributedConversions int64
	EventsScanned           int64
}

// ByVariant returns the metrics for name, or false if absent.
func (s *MetricsSnapshot) ByVariant(name string) (VariantMetrics, bool) {
	for _, v := range s.Variants {
		if v.Variant == name {
			return v, true
		}
	}
	return VariantMetrics{}, false
}

// MetricsAccumulator folds a stream of events into a MetricsSnapshot.
// An entity counts once per metric no matter how many events it produced.
type MetricsAccumulator struct {
	exp        *Experiment
	assigned   map[string]string
	converters map[string]map[string]struct{}
	scanned    int64
}

func NewMetricsAccumulator(exp *Experiment) *MetricsAccumulator {
	converters := make(map[string]map[string]struct{}, 1+len(exp.SecondaryMetrics))
	converters[exp.PrimaryMetric] = make(map[string]struct{})
	for _, m := range exp.SecondaryMetrics {
		converters[m] = make(map[string]struct{})
	}
	return &MetricsAccumulator{
		exp:        exp,
		assigned:   make(map[string]string),
		converters: converters,
	}
}

// Add consumes one event. Events of untracked types are counted as scanned
// and otherwise ignored.
func (a *MetricsAccumulator) Add(e *Event) {
	if e.ExperimentID != a.exp.ID {
		return
	}
	a.scanned++

	if e.EventType == EventTypeAssignment {
		variant := e.Properties[PropertyVariant]
		if _, seen := a.assigned[e.EntityID]; !seen && a.exp.HasVariant(variant) {
			a.assigned[e.EntityID] = variant
		}
		return
	}
	if set, ok := a.converters[e.EventType]; ok {
		set[e.EntityID] = struct{}{}
	}
}

// Snapshot returns the aggregated metrics in variant definition order.
func (a *MetricsAccumulator) Snapshot() MetricsSnapshot {
	index := make(map[string]int, len(a.exp.Variants))
	variants := make([]VariantMetrics, len(a.exp.Variants))
	for i, v := range a.exp.Variants {
		index[v.Name] = i
		variants[i] = VariantMetrics{Variant: v.Name}
		if len(a.exp.SecondaryMetrics) > 0 {
			variants[i].SecondaryConversions = make(map[string]int64, len(a.exp.SecondaryMetrics))
			for _, m := range a.exp.SecondaryMetrics {
				variants[i].SecondaryConversions[m] = 0
			}
		}
	}

	for _, variant := range a.assigned {
		variants[index[variant]].TotalUsers++
	}

	var unattributed int64
	for entity := range a.converters[a.exp.PrimaryMetric] {
		variant, ok := a.assigned[entity]
		if !ok {
			unattributed++
			continue
		}
		variants[index[variant]].Conversions++
	}
	for _, m := range a.exp.SecondaryMetrics {
		for entity := range a.converters[m] {
			if variant, ok := a.assigned[entity]; ok {
				variants[index[variant]].SecondaryConversions[m]++
			}
		}
	}

	for i := range variants {
		if variants[i].TotalUsers > 0 {
			variants[i].ConversionRate = float64(variants[i].Conversions) / float64(variants[i].TotalUsers)
		}
	}

	return MetricsSnapshot{
		ExperimentID:            a.exp.ID,
		PrimaryMetric:           a.exp.PrimaryMetric,
		Variants:                variants,
		UnattributedConversions: unattributed,
		EventsScanned:           a.scanned,
	}
}
