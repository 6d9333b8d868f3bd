package util

import (
	"database/sql"
	"time"
)

// FormatTime formats t as a UTC RFC3339 timestamp with nanoseconds.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTime parses an RFC3339 (optionally fractional) timestamp.
// Returns zero time if parsing fails.
func ParseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// NullTime converts a *time.Time to sql.NullString in FormatTime layout.
// Nil pointers are treated as invalid (null).
func NullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: FormatTime(*t), Valid: true}
}

// NullTimeToPtr converts a nullable timestamp column to *time.Time.
func NullTimeToPtr(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t := ParseTime(ns.String)
	return &t
}
