package logging

import (
	"io"
	"log/slog"

	"github.com/emiliopalmerini/splitlab/internal/infrastructure/config"
)

// New builds the process logger from cfg, writing to w.
func New(cfg config.Log, w io.Writer) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler).With("service", "splitlab"), nil
}
