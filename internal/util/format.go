package util

import (
	"fmt"
	"time"
)

// FormatNumber formats an int64 with K/M suffix for readability.
// Examples: 500 -> "500", 1500 -> "1.5K", 1500000 -> "1.5M"
func FormatNumber(n int64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	}
	return fmt.Sprintf("%.1fM", float64(n)/1000000)
}

// FormatPercent formats a rate in [0,1] as a percentage with two decimals.
func FormatPercent(rate float64) string {
	return fmt.Sprintf("%.2f%%", rate*100)
}

// FormatSignedPercent formats a rate difference with an explicit sign.
func FormatSignedPercent(delta float64) string {
	return fmt.Sprintf("%+.2f%%", delta*100)
}

// FormatPValue formats a p-value, switching to a bound below 0.0001.
func FormatPValue(p float64) string {
	if p < 0.0001 {
		return "<0.0001"
	}
	return fmt.Sprintf("%.4f", p)
}

// FormatDateTime formats t as "2006-01-02 15:04" in UTC.
// Returns "-" for nil or zero times.
func FormatDateTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04")
}
