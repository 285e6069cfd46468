package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/phrazzld/dataset-forge/internal/config"
	"github.com/phrazzld/dataset-forge/internal/generation"
	"github.com/phrazzld/dataset-forge/internal/jobs"
	"github.com/phrazzld/dataset-forge/internal/platform/gemini"
	"github.com/phrazzld/dataset-forge/internal/platform/ollama"
	"github.com/phrazzld/dataset-forge/internal/platform/openai"
	"github.com/phrazzld/dataset-forge/internal/platform/postgres"
	"github.com/phrazzld/dataset-forge/internal/platform/sqlite"
	"github.com/phrazzld/dataset-forge/internal/task"
)

// application holds the shared dependencies so they can be shut down in
// order.
type application struct {
	config *config.Config
	logger *slog.Logger

	taskStore  task.Store
	closers    []io.Closer
	models     *generation.Providers
	dispatcher *task.Dispatcher
	sweeper    *task.Sweeper
	service    *task.Service
}

// newApplication opens the task store, wires the job handlers and closes
// out tasks left Processing by a previous run.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
	}

	var err error
	app.taskStore, app.closers, err = openTaskStore(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	app.models = newProviders(cfg.LLM, logger)
	logger.Info("Model providers registered", "providers", app.models.IDs())

	registry := task.NewRegistry()
	err = jobs.Register(registry, jobs.Deps{
		Models:      app.models,
		Concurrency: cfg.Task.Concurrency,
		Retries:     cfg.Task.Retries,
		RetryDelay:  time.Duration(cfg.Task.RetryDelayMs) * time.Millisecond,
		Logger:      logger,
	})
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to register job handlers: %w", err)
	}

	dispatcherConfig := task.DefaultDispatcherConfig()
	dispatcherConfig.DefaultLanguage = cfg.Task.DefaultLanguage
	dispatcherConfig.MaxConcurrentTasks = cfg.Task.MaxConcurrentTasks
	app.dispatcher = task.NewDispatcher(app.taskStore, registry, dispatcherConfig, logger)
	app.service = task.NewService(app.taskStore, app.dispatcher, logger)

	app.sweeper = task.NewSweeper(app.taskStore, app.dispatcher, task.SweeperConfig{
		StaleAge: time.Duration(cfg.Task.StaleTaskMinutes) * time.Minute,
		Schedule: cfg.Task.SweepSchedule,
	}, logger)

	recovered, err := app.sweeper.RecoverOrphans(ctx)
	if err != nil {
		logger.Error("Failed to recover orphaned tasks", "error", err)
	} else if recovered > 0 {
		logger.Warn("Failed tasks orphaned by a previous run", "count", recovered)
	}

	if err := app.sweeper.Start(); err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to start task sweeper: %w", err)
	}

	logger.Info("Application initialized successfully", "task_types", registry.Types())
	return app, nil
}

// openTaskStore opens the store selected by cfg.Driver. The returned closers
// release its connections.
func openTaskStore(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (task.Store, []io.Closer, error) {
	switch cfg.Driver {
	case "postgres":
		db, err := postgres.Open(ctx, cfg.URL, cfg.MaxOpenConns)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.Migrate(ctx, db, logger); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("failed to apply migrations: %w", err)
		}
		logger.Info("Database connection established", "driver", cfg.Driver)
		return postgres.NewPostgresTaskStore(db, logger), []io.Closer{db}, nil

	case "sqlite":
		s, err := sqlite.Open(cfg.URL, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Database connection established", "driver", cfg.Driver)
		return s, []io.Closer{s}, nil

	case "memory":
		logger.Warn("Using in-memory task store; tasks are lost on restart")
		return task.NewMemoryStore(), nil, nil

	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// newProviders registers the built-in model providers. Process-wide keys
// and hosts fill in what a task's model info leaves out; anything naming an
// unregistered provider and an endpoint goes through the OpenAI-compatible
// client.
func newProviders(cfg config.LLMConfig, logger *slog.Logger) *generation.Providers {
	providers := generation.NewProviders()

	openaiDefaults := openai.Defaults{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
	}
	providers.Register(gemini.ProviderID, withDefaultKey(cfg.GeminiAPIKey, gemini.New))
	providers.Register(openai.ProviderID, openai.NewConstructor(openaiDefaults))
	providers.Register(ollama.ProviderID, ollama.NewConstructor(cfg.OllamaHost, nil))
	providers.SetFallback(openai.NewConstructor(openai.Defaults{}))

	providers.Use(generation.WithTimeout(time.Duration(cfg.RequestTimeoutSeconds) * time.Second))
	providers.Use(generation.WithLogging(logger))
	return providers
}

// withDefaultKey fills an empty API key before calling next.
func withDefaultKey(key string, next generation.Constructor) generation.Constructor {
	return func(ctx context.Context, info generation.ModelInfo) (generation.Client, error) {
		if info.APIKey == "" {
			info.APIKey = key
		}
		return next(ctx, info)
	}
}

// Run serves HTTP until ctx is canceled, then shuts everything down.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// shutdownTasks stops the sweeper and waits for running tasks. Tasks still
// running when ctx expires are left to the next startup's orphan recovery.
func (app *application) shutdownTasks(ctx context.Context) {
	if app.sweeper != nil {
		app.sweeper.Stop()
	}
	if app.dispatcher != nil {
		if err := app.dispatcher.Shutdown(ctx); err != nil {
			app.logger.Error("Tasks did not finish before shutdown timeout",
				"error", err,
				"running", app.dispatcher.Running())
		}
	}
}

// cleanup releases store connections.
func (app *application) cleanup() {
	for _, c := range app.closers {
		if err := c.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}
	app.logger.Info("Application shutdown completed")
}
