package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/peritus-ai/peritus/internal/common"
	"github.com/peritus-ai/peritus/internal/interfaces"
	"github.com/peritus-ai/peritus/internal/services/consult"
	"github.com/peritus-ai/peritus/internal/services/credentials"
	"github.com/peritus-ai/peritus/internal/services/datasets"
	"github.com/peritus-ai/peritus/internal/services/experts"
	"github.com/peritus-ai/peritus/internal/services/llm"
	"github.com/peritus-ai/peritus/internal/services/rag"
	"github.com/peritus-ai/peritus/internal/services/scheduler"
	"github.com/peritus-ai/peritus/internal/services/users"
	storagebadger "github.com/peritus-ai/peritus/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager interfaces.StorageManager

	// Provider plumbing
	LocalModels *credentials.LocalModelStore
	Factory     *llm.Factory
	Engine      interfaces.RagEngine

	// Core services
	CredentialResolver interfaces.CredentialResolver
	UserService        interfaces.UserService
	DatasetService     interfaces.DatasetService
	ExpertService      interfaces.ExpertService
	ConsultService     interfaces.ConsultService

	Scheduler *scheduler.Scheduler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := app.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := app.Scheduler.Start(); err != nil {
		return nil, fmt.Errorf("failed to start reindex scheduler: %w", err)
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Bool("processing_enabled", cfg.Processing.Enabled).
		Msg("Application initialization complete")

	return app, nil
}

// initStorage initializes the Badger storage layer and seeds the
// system-default credentials from config and key files.
func (a *App) initStorage() error {
	manager, err := storagebadger.NewManager(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return err
	}
	a.StorageManager = manager

	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")

	if seeder, ok := manager.(*storagebadger.Manager); ok {
		if err := seeder.SeedSystemCredentials(context.Background(), a.Config); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to seed system credentials")
		}
	}

	return nil
}

// initServices initializes all business services in dependency order
func (a *App) initServices() error {
	a.LocalModels = credentials.NewLocalModelStore(&a.Config.LocalModels, a.Logger)

	llamaClient := llm.NewLlamaClient(&a.Config.Providers.Llama, a.Logger)
	a.Factory = llm.NewFactory(&a.Config.Providers, llamaClient, a.Logger)
	a.Logger.Debug().Msg("Provider factory initialized")

	a.Engine = rag.NewEngine(a.Factory, a.StorageManager.ChunkStorage(), &a.Config.Documents, a.Logger)

	a.CredentialResolver = credentials.NewResolver(
		a.StorageManager.CredentialStorage(),
		a.LocalModels,
		&a.Config.Providers.Llama,
		a.Logger,
	)

	a.UserService = users.NewService(a.StorageManager, a.Logger)
	a.DatasetService = datasets.NewService(a.StorageManager, a.Config, a.Logger)
	a.ExpertService = experts.NewService(a.StorageManager, a.Logger)

	a.ConsultService = consult.NewService(
		a.StorageManager,
		a.CredentialResolver,
		a.Engine,
		a.Config,
		a.Logger,
	)
	a.Logger.Debug().Msg("Consult pipeline initialized")

	a.Scheduler = scheduler.NewScheduler(
		&a.Config.Processing,
		a.StorageManager,
		a.ConsultService,
		a.Logger,
	)

	return nil
}

// Close closes all application resources
func (a *App) Close() error {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
