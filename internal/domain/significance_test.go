package domain

import (
	"math"
	"testing"
)

func arm(name string, conversions, users int64) VariantMetrics {
	return VariantMetrics{Variant: name, Conversions: conversions, TotalUsers: users}
}

func TestTwoProportionTest(t *testing.T) {
	tests := []struct {
		name             string
		control, variant VariantMetrics
		wantSignificant  bool
		wantComputable   bool
		wantInsufficient bool
		wantP            float64 // checked when non-zero
	}{
		{
			name:            "10/100 vs 30/100 is significant",
			control:         arm("control", 10, 100),
			variant:         arm("variantA", 30, 100),
			wantSignificant: true,
			wantComputable:  true,
			wantP:           math.Erfc(2.5),
		},
		{
			name:           "10/100 vs 11/100 is not significant",
			control:        arm("control", 10, 100),
			variant:        arm("variantA", 11, 100),
			wantComputable: true,
		},
		{
			name:             "below minimum sample",
			control:          arm("control", 1, 20),
			variant:          arm("variantA", 15, 20),
			wantComputable:   true,
			wantInsufficient: true,
		},
		{
			name:             "empty arm is not computable",
			control:          arm("control", 0, 0),
			variant:          arm("variantA", 5, 50),
			wantInsufficient: true,
		},
		{
			name:    "zero standard error is not computable",
			control: arm("control", 0, 50),
			variant: arm("variantA", 0, 50),
		},
		{
			name:    "all converted is not computable",
			control: arm("control", 50, 50),
			variant: arm("variantA", 50, 50),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := TwoProportionTest(tt.control, tt.variant, DefaultSignificanceOptions())
			if res.Significant != tt.wantSignificant {
				t.Errorf("Significant = %v, want %v (p=%v)", res.Significant, tt.wantSignificant, res.PValue)
			}
			if res.Computable != tt.wantComputable {
				t.Errorf("Computable = %v, want %v", res.Computable, tt.wantComputable)
			}
			if res.InsufficientSample != tt.wantInsufficient {
				t.Errorf("InsufficientSample = %v, want %v", res.InsufficientSample, tt.wantInsufficient)
			}
			if !res.Computable && res.PValue != 1 {
				t.Errorf("non-computable result should report p=1, got %v", res.PValue)
			}
			if tt.wantP != 0 && math.Abs(res.PValue-tt.wantP) > 1e-9 {
				t.Errorf("PValue = %v, want %v", res.PValue, tt.wantP)
			}
		})
	}
}

func TestTwoProportionTest_Effects(t *testing.T) {
	res := TwoProportionTest(arm("control", 20, 100), arm("variantA", 35, 100), DefaultSignificanceOptions())
	if math.Abs(res.Effect-0.15) > 1e-12 {
		t.Errorf("Effect = %v, want 0.15", res.Effect)
	}
	if res.RelativeEffect == nil || math.Abs(*res.RelativeEffect-0.75) > 1e-12 {
		t.Errorf("RelativeEffect = %v, want 0.75", res.RelativeEffect)
	}
	if math.Abs(res.ZScore-2.3754) > 1e-3 {
		t.Errorf("ZScore = %v, want ~2.375", res.ZScore)
	}
	if !res.Significant || res.PValue < 0.01 {
		t.Errorf("expected significant with 0.01 <= p < 0.05, got p=%v", res.PValue)
	}

	zeroControl := TwoProportionTest(arm("control", 0, 100), arm("variantA", 10, 100), DefaultSignificanceOptions())
	if zeroControl.RelativeEffect != nil {
		t.Errorf("relative effect undefined for zero control rate, got %v", *zeroControl.RelativeEffect)
	}
	if !zeroControl.Computable {
		t.Error("zero control rate with conversions in variant is still computable")
	}
}

func TestTwoProportionTest_CustomAlpha(t *testing.T) {
	opts := SignificanceOptions{Alpha: 0.01, MinSampleSize: 30}
	res := TwoProportionTest(arm("control", 20, 100), arm("variantA", 35, 100), opts)
	if res.Significant {
		t.Errorf("p=%v should not be significant at alpha 0.01", res.PValue)
	}
}

func TestTwoTailedPValue(t *testing.T) {
	if got := TwoTailedPValue(0); got != 1 {
		t.Errorf("TwoTailedPValue(0) = %v", got)
	}
	if got := TwoTailedPValue(-1.959963984540054); math.Abs(got-0.05) > 1e-9 {
		t.Errorf("TwoTailedPValue(1.96) = %v", got)
	}
}

func TestCompareAll(t *testing.T) {
	snapshot := MetricsSnapshot{Variants: []VariantMetrics{
		arm("control", 10, 100),
		arm("variantA", 30, 100),
		arm("variantB", 11, 100),
	}}
	results := CompareAll(snapshot, "control", DefaultSignificanceOptions())
	if len(results) != 2 {
		t.Fatalf("expected 2 comparisons, got %d", len(results))
	}
	if results[0].Variant != "variantA" || results[1].Variant != "variantB" {
		t.Errorf("expected variant order, got %s, %s", results[0].Variant, results[1].Variant)
	}
	if !results[0].Significant || results[1].Significant {
		t.Errorf("unexpected significance: %v, %v", results[0].Significant, results[1].Significant)
	}
}
