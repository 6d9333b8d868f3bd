package util

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFormatAndParseTime(t *testing.T) {
	ts := time.Date(2026, 4, 1, 12, 30, 15, 123456789, time.FixedZone("CEST", 2*3600))
	s := FormatTime(ts)
	if s != "2026-04-01T10:30:15.123456789Z" {
		t.Fatalf("unexpected format %q", s)
	}
	if got := ParseTime(s); !got.Equal(ts) || got.Location() != time.UTC {
		t.Errorf("round trip mismatch: %v", got)
	}
	if !ParseTime("yesterday").IsZero() {
		t.Error("invalid input should yield zero time")
	}
}

func TestNullTime(t *testing.T) {
	if NullTime(nil).Valid {
		t.Error("nil time should be null")
	}
	ts := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	ns := NullTime(&ts)
	if !ns.Valid || ns.String != "2026-04-01T00:00:00Z" {
		t.Errorf("unexpected %+v", ns)
	}
	if p := NullTimeToPtr(ns); p == nil || !p.Equal(ts) {
		t.Errorf("unexpected %v", p)
	}
	if NullTimeToPtr(sql.NullString{}) != nil {
		t.Error("null column should map to nil")
	}
}

func TestNullStringPtr(t *testing.T) {
	if NullStringPtr(nil).Valid {
		t.Error("nil should be null")
	}
	s := "reason"
	if p := NullStringToPtr(NullStringPtr(&s)); p == nil || *p != s {
		t.Errorf("round trip failed: %v", p)
	}
}

func TestFormatters(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{FormatNumber(500), "500"},
		{FormatNumber(1500), "1.5K"},
		{FormatNumber(2500000), "2.5M"},
		{FormatPercent(0.35), "35.00%"},
		{FormatSignedPercent(0.15), "+15.00%"},
		{FormatSignedPercent(-0.02), "-2.00%"},
		{FormatPValue(0.01752), "0.0175"},
		{FormatPValue(0.00001), "<0.0001"},
		{FormatDateTime(nil), "-"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestDefaultDatabaseURL(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dir)

	url, err := DefaultDatabaseURL()
	if err != nil {
		t.Fatalf("DefaultDatabaseURL failed: %v", err)
	}
	want := "file:" + filepath.Join(dir, "splitlab", "splitlab.db")
	if url != want {
		t.Errorf("expected %q, got %q", want, url)
	}
	if info, err := os.Stat(filepath.Join(dir, "splitlab")); err != nil || !info.IsDir() {
		t.Errorf("expected data dir to exist: %v", err)
	}
	if !strings.HasPrefix(url, "file:") {
		t.Error("expected file URL")
	}
}
