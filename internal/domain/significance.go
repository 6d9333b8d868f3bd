package domain

import "math"

const (
	DefaultAlpha         = 0.05
	DefaultMinSampleSize = 30
)

// SignificanceOptions configures the two-proportion test.
type SignificanceOptions struct {
	Alpha         float64
	MinSampleSize int64
}

// DefaultSignificanceOptions returns alpha 0.05 and 30 users per arm.
func DefaultSignificanceOptions() SignificanceOptions {
	return SignificanceOptions{Alpha: DefaultAlpha, MinSampleSize: DefaultMinSampleSize}
}

func (o SignificanceOptions) withDefaults() SignificanceOptions {
	if o.Alpha <= 0 || o.Alpha >= 1 {
		o.Alpha = DefaultAlpha
	}
	if o.MinSampleSize < 0 {
		o.MinSampleSize = DefaultMinSampleSize
	}
	return o
}

// SignificanceResult compares one variant against control.
//
// When Computable is false, ZScore and PValue are meaningless and left at
// zero and one respectively. RelativeEffect is nil when the control rate is
// zero.
type SignificanceResult struct {
	Variant            string
	Control            string
	ControlUsers       int64
	VariantUsers       int64
	ControlRate        float64
	VariantRate        float64
	Effect             float64
	RelativeEffect     *float64
	ZScore             float64
	PValue             float64
	MinSampleSize      int64
	Computable         bool
	InsufficientSample bool
	Significant        bool
}

// TwoProportionTest runs a pooled two-proportion z-test of variant against
// control with a two-tailed p-value.
func TwoProportionTest(control, variant VariantMetrics, opts SignificanceOptions) SignificanceResult {
	opts = opts.withDefaults()

	res := SignificanceResult{
		Variant:       variant.Variant,
		Control:       control.Variant,
		ControlUsers:  control.TotalUsers,
		VariantUsers:  variant.TotalUsers,
		ControlRate:   rate(control),
		VariantRate:   rate(variant),
		PValue:        1,
		MinSampleSize: opts.MinSampleSize,
	}
	res.Effect = res.VariantRate - res.ControlRate
	if res.ControlRate > 0 {
		rel := res.Effect / res.ControlRate
		res.RelativeEffect = &rel
	}
	res.InsufficientSample = control.TotalUsers < opts.MinSampleSize || variant.TotalUsers < opts.MinSampleSize

	if control.TotalUsers == 0 || variant.TotalUsers == 0 {
		return res
	}

	nc := float64(control.TotalUsers)
	nv := float64(variant.TotalUsers)
	pooled := float64(control.Conversions+variant.Conversions) / (nc + nv)
	se := math.Sqrt(pooled * (1 - pooled) * (1/nc + 1/nv))
	if se == 0 || math.IsNaN(se) {
		return res
	}

	res.Computable = true
	res.ZScore = res.Effect / se
	res.PValue = TwoTailedPValue(res.ZScore)
	res.Significant = res.PValue < opts.Alpha && !res.InsufficientSample
	return res
}

// TwoTailedPValue returns P(|Z| >= |z|) for a standard normal Z.
func TwoTailedPValue(z float64) float64 {
	return math.Erfc(math.Abs(z) / math.Sqrt2)
}

func rate(m VariantMetrics) float64 {
	if m.TotalUsers == 0 {
		return 0
	}
	return float64(m.Conversions) / float64(m.TotalUsers)
}

// CompareAll tests every non-control variant of the snapshot, in order.
func CompareAll(snapshot MetricsSnapshot, control string, opts SignificanceOptions) []SignificanceResult {
	ctrl, _ := snapshot.ByVariant(control)
	ctrl.Variant = control

	results := make([]SignificanceResult, 0, len(snapshot.Variants))
	for _, v := range snapshot.Variants {
		if v.Variant == control {
			continue
		}
		results = append(results, TwoProportionTest(ctrl, v, opts))
	}
	return results
}
