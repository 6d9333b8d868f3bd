package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"
)

// Client wraps a SQL database connection with Turso-specific retry logic.
type Client struct {
	*sql.DB
}

// Options configures the database client behavior.
type Options struct {
	Ping bool
	// MaxOpenConns overrides the pool size. Local files default to 1 so
	// writers never contend for the SQLite write lock.
	MaxOpenConns int
}

// New creates a new database client with default options (ping enabled).
func New(databaseURL, authToken string) (*Client, error) {
	return NewWithOptions(databaseURL, authToken, Options{Ping: true})
}

// NewNoPing creates a connection without an initial ping.
// Useful for request paths where latency matters and we'll discover failures on first query.
func NewNoPing(databaseURL, authToken string) (*Client, error) {
	return NewWithOptions(databaseURL, authToken, Options{Ping: false})
}

// NewWithOptions creates a database client with custom options.
func NewWithOptions(databaseURL, authToken string, opts Options) (*Client, error) {
	if databaseURL == "" {
		return nil, errors.New("database URL is required")
	}

	local := IsLocal(databaseURL)
	connStr := databaseURL
	if !local {
		if authToken == "" {
			return nil, errors.New("auth token is required for remote databases")
		}
		connStr = databaseURL + "?authToken=" + authToken
	}

	db, err := sql.Open("libsql", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if local {
		maxOpen := opts.MaxOpenConns
		if maxOpen <= 0 {
			maxOpen = 1
		}
		db.SetMaxOpenConns(maxOpen)
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	} else {
		// Configure connection pool for Turso's Hrana protocol.
		// Use minimal idle connections since Turso aggressively closes
		// idle streams, causing "stream not found" errors on stale connections.
		maxOpen := opts.MaxOpenConns
		if maxOpen <= 0 {
			maxOpen = 5
		}
		db.SetMaxOpenConns(maxOpen)
		db.SetMaxIdleConns(0) // Disable idle connections to force fresh connections
		db.SetConnMaxLifetime(5 * time.Minute)
		db.SetConnMaxIdleTime(0) // Don't keep idle connections
	}

	if opts.Ping {
		if err := db.Ping(); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
	}

	return &Client{DB: db}, nil
}

// IsLocal reports whether the URL points at a local libsql file.
func IsLocal(databaseURL string) bool {
	return strings.HasPrefix(databaseURL, "file:")
}

// IsStreamError checks if an error is a Turso "stream not found" error.
func IsStreamError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "stream not found")
}

// WithRetry executes a function with retry logic for Turso stream errors.
// It retries up to maxRetries times when encountering "stream not found" errors.
func WithRetry[T any](ctx context.Context, maxRetries int, fn func() (T, error)) (T, error) {
	var result T
	var err error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		result, err = fn()
		if err == nil {
			return result, nil
		}

		if !IsStreamError(err) || attempt == maxRetries {
			return result, err
		}

		// Brief pause before retry to allow connection pool to refresh
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}

	return result, err
}
