package turso

import (
	"fmt"

	"github.com/emiliopalmerini/splitlab/internal/infrastructure/config"
	"github.com/emiliopalmerini/splitlab/internal/infrastructure/database"
	"github.com/emiliopalmerini/splitlab/internal/util"
)

// NewDB opens the configured libsql database. Without a URL it falls back to
// a local file in the XDG data directory.
func NewDB(cfg config.Database) (*database.Client, error) {
	url := cfg.URL
	if url == "" {
		var err error
		if url, err = util.DefaultDatabaseURL(); err != nil {
			return nil, err
		}
	}

	client, err := database.NewWithOptions(url, cfg.AuthToken, database.Options{
		Ping:         cfg.Ping,
		MaxOpenConns: cfg.MaxOpenConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return client, nil
}
