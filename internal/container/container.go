package container

import (
	"context"
	"fmt"
	"log"

	"metastats/adapters/postgres"
	"metastats/adapters/stats/engine"
	"metastats/adapters/tabular"
	"metastats/app"
	"metastats/internal/config"
	"metastats/internal/memo"
	"metastats/internal/migration"
	"metastats/internal/testkit"
	"metastats/ports"

	"github.com/jmoiron/sqlx"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config

	// Infrastructure
	DB *sqlx.DB

	// Ports
	Readers ports.ReaderFactory
	RNG     ports.RNGPort
	RunRepo ports.RunRepository // nil unless a database is configured

	// Core components
	Engine   *engine.StatsEngine
	Cache    *memo.Cache
	Sessions *app.SessionStore

	// Services
	Prepare *app.PrepareService
	Compare *app.CompareService

	// Fixtures
	TestKit *testkit.TestKit
}

// New creates a dependency injection container and wires every component
// that works without a database.
func New(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	c := &Container{
		Config:   cfg,
		Readers:  func(path string) ports.TableReaderPort { return tabular.NewDataReader(path) },
		Engine:   engine.NewStatsEngine(),
		Cache:    memo.New(memo.DefaultCapacity),
		Sessions: app.NewSessionStore(),
		TestKit:  testkit.NewTestKit(),
	}
	c.RNG = c.TestKit.RNGAdapter()

	c.Prepare = app.NewPrepareService(c.Readers, c.RNG,
		cfg.Analysis.BlankCutoff, cfg.Analysis.ImputationSeed)
	c.Compare = app.NewCompareService(c.Engine, c.Cache, nil)

	return c, nil
}

// InitWithDatabase initializes components that require database access and
// rewires the compare service with run persistence.
func (c *Container) InitWithDatabase(ctx context.Context, db *sqlx.DB) error {
	if db == nil {
		return fmt.Errorf("database connection cannot be nil")
	}

	c.DB = db
	if err := db.Ping(); err != nil {
		return fmt.Errorf("database connection test failed: %w", err)
	}

	if err := migration.NewRunner().Run(ctx, db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	c.RunRepo = postgres.NewRunRepository(db)
	c.Compare = app.NewCompareService(c.Engine, c.Cache, c.RunRepo)

	log.Printf("Container initialized with database-backed run persistence")
	return nil
}

// Shutdown gracefully shuts down all components
func (c *Container) Shutdown(ctx context.Context) error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
