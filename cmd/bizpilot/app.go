package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/viper"

	"github.com/Veraticus/bizpilot/internal/analysis"
	"github.com/Veraticus/bizpilot/internal/assistant"
	"github.com/Veraticus/bizpilot/internal/config"
	"github.com/Veraticus/bizpilot/internal/engine"
	"github.com/Veraticus/bizpilot/internal/llm"
	"github.com/Veraticus/bizpilot/internal/storage"
)

// app holds every wired component for one command run.
type app struct {
	cfg          *config.Config
	store        *storage.SQLiteStorage
	client       *llm.ManagedClient
	recalculator *engine.Recalculator
	records      *engine.RecordService
	executor     *engine.Executor
	correlator   *analysis.Correlator
	chat         *assistant.ChatService
}

func loadConfig() (*config.Config, error) {
	return config.Load(viper.GetViper())
}

// openStore opens and migrates the configured database.
func openStore(ctx context.Context, cfg *config.Config) (*storage.SQLiteStorage, error) {
	if err := config.EnsureParentDir(cfg.Database.Path); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// newApp wires the store, the language model client and every service.
// Correlation is dispatched from record writes, so callers must close the
// app to wait for those runs.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := slog.Default()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	client, err := llm.NewClient(cfg.LLM, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create language model client: %w", err)
	}

	recalculator := engine.NewRecalculator(store, logger)
	records := engine.NewRecordService(store, recalculator, nil, logger)
	executor := engine.NewExecutor(store, records, logger)

	analyzer, err := analysis.NewAnalyzer(client, logger)
	if err != nil {
		_ = client.Close()
		_ = store.Close()
		return nil, err
	}
	correlator := analysis.NewCorrelator(store, analyzer, executor, recalculator, cfg.CorrelatorConfig(), logger)
	records.SetDispatcher(correlator)

	prompts, err := assistant.NewPromptBuilder()
	if err != nil {
		_ = client.Close()
		_ = store.Close()
		return nil, err
	}
	builder := assistant.NewContextBuilder(store, client, cfg.BuilderConfig(), logger)
	driver := assistant.NewDriver(client, assistant.DriverConfig{
		Temperature:     llm.Temperature(cfg.LLM.Temperature),
		MaxTokens:       cfg.LLM.MaxTokens,
		ExtendedActions: cfg.Assistant.ExtendedActions,
	}, logger)
	chat := assistant.NewChatService(store, builder, prompts, driver, executor, logger)

	return &app{
		cfg:          cfg,
		store:        store,
		client:       client,
		recalculator: recalculator,
		records:      records,
		executor:     executor,
		correlator:   correlator,
		chat:         chat,
	}, nil
}

// Close waits for dispatched correlation runs, then releases the client
// and the store.
func (a *app) Close() error {
	a.correlator.Wait()
	return errors.Join(a.client.Close(), a.store.Close())
}
