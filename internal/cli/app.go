package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/emiliopalmerini/splitlab/internal/adapters/memory"
	"github.com/emiliopalmerini/splitlab/internal/adapters/otel"
	"github.com/emiliopalmerini/splitlab/internal/adapters/turso"
	"github.com/emiliopalmerini/splitlab/internal/engine"
	"github.com/emiliopalmerini/splitlab/internal/infrastructure/config"
	"github.com/emiliopalmerini/splitlab/internal/infrastructure/database"
	"github.com/emiliopalmerini/splitlab/internal/infrastructure/logging"
	"github.com/emiliopalmerini/splitlab/internal/migrate"
	"github.com/emiliopalmerini/splitlab/internal/ports"
)

// App holds the shared dependencies for CLI commands.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Engine   *engine.Engine
	db       *database.Client
	exporter ports.MetricsExporter
}

// NewApp loads configuration and wires the engine to the configured store.
// Logs go to logOut so command output stays clean.
func NewApp(ctx context.Context, logOut io.Writer) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log, logOut)
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, Logger: logger}

	var repos engine.Repositories
	switch cfg.Store {
	case config.StoreMemory:
		experiments, assignments, events := memory.NewStore().Repositories()
		repos = engine.Repositories{Experiments: experiments, Assignments: assignments, Events: events}
	default:
		db, err := openDB(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		app.db = db
		r := turso.NewRepositories(db.DB)
		repos = engine.Repositories{Experiments: r.Experiments, Assignments: r.Assignments, Events: r.Events}
	}

	exporter, err := otel.FromConfig(ctx, cfg.OTEL)
	if err != nil {
		logger.Warn("metrics export disabled", "error", err)
		exporter = otel.NoOpExporter{}
	}
	app.exporter = exporter

	app.Engine = engine.New(repos, exporter, logger, engine.OptionsFromConfig(cfg.Engine))
	return app, nil
}

func openDB(ctx context.Context, cfg config.Database) (*database.Client, error) {
	db, err := turso.NewDB(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := migrate.RunAll(ctx, db.DB); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}
	return db, nil
}

// Close flushes metrics and releases the database.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.exporter != nil {
		errs = append(errs, a.exporter.Close(ctx))
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}

// withApp builds an App for the duration of fn.
func withApp(ctx context.Context, logOut io.Writer, fn func(*App) error) (err error) {
	app, err := NewApp(ctx, logOut)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := app.Close(context.WithoutCancel(ctx)); err == nil {
			err = cerr
		}
	}()
	return fn(app)
}
