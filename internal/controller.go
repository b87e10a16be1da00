package internal

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/pandora-mc/pandora/internal/core"
	"github.com/pandora-mc/pandora/internal/core/client"
	"github.com/pandora-mc/pandora/internal/core/data"
	"github.com/pandora-mc/pandora/internal/core/debug"
	"github.com/pandora-mc/pandora/internal/core/world"
	"github.com/pandora-mc/pandora/internal/protocol"
)

// EngineFiles serves world data straight from the configured files.
const EngineFiles = "files"

// Controller is the main entrypoint for pandora. It's responsible for initializing
// any shared resources (such as the world data and logging), defining the servers,
// and launching everything.
type Controller struct {
	Config *core.Config
	// Logger is built from Config by Start if it isn't set.
	Logger *logrus.Logger

	wg       sync.WaitGroup
	db       *gorm.DB
	registry *client.Registry
	servers  []*frontend
}

// Start brings up every server and blocks until ctx is cancelled and all of
// them have exited. Failing to bring a server up is returned as an error.
func (c *Controller) Start(ctx context.Context) error {
	// Servers that did start are stopped if a later one fails to.
	ctx, cancel := context.WithCancel(ctx)
	defer c.Shutdown()
	defer cancel()

	if c.Logger == nil {
		// Set up the logger, which will be used by all sub-servers.
		logger, err := core.NewLogger(c.Config)
		if err != nil {
			return fmt.Errorf("error initializing logger: %w", err)
		}
		c.Logger = logger
	}

	// Start any debug utilities if we're configured to do so.
	if c.Config.Debugging.Enabled {
		debug.StartUtilities(ctx, c.Logger, c.Config.Debugging.HTTPPort)
	}

	provider, err := c.openWorld()
	if err != nil {
		return err
	}

	// Configure and run all of our servers.
	c.declareServers(provider)
	return c.run(ctx)
}

// openWorld builds the provider for the configured engine with the cache in front of it.
func (c *Controller) openWorld() (world.Provider, error) {
	var provider world.Provider
	switch engine := c.Config.World.Engine; engine {
	case EngineFiles:
		provider = FileProvider(c.Config)
	case data.EngineSQLite, data.EnginePostgres:
		db, err := OpenDatabase(c.Config)
		if err != nil {
			return nil, err
		}
		c.db = db
		provider = &data.Provider{DB: db}
	default:
		return nil, fmt.Errorf("unsupported world engine %q", engine)
	}

	c.Logger.Infof("serving world data from %s", c.Config.World.Engine)
	return world.NewCachedProvider(provider, c.Config.World.CacheTTL), nil
}

// FileProvider returns the file-backed world provider described by cfg.
func FileProvider(cfg *core.Config) *world.FileProvider {
	return &world.FileProvider{
		DimensionCodecFile: cfg.World.DimensionCodecFile,
		DimensionFile:      cfg.World.DimensionFile,
		ChunkDir:           cfg.World.ChunkDir,
		DefaultChunkFile:   cfg.World.DefaultChunkFile,
	}
}

// OpenDatabase connects to the database engine named by cfg.
func OpenDatabase(cfg *core.Config) (*gorm.DB, error) {
	dataSource := cfg.World.Database.Filename
	if cfg.World.Engine == data.EnginePostgres {
		dataSource = cfg.DatabaseURL()
	}
	return data.Open(cfg.World.Engine, dataSource, cfg.Debugging.DatabaseLoggingEnabled)
}

// Set up all of the servers we want to run.
func (c *Controller) declareServers(provider world.Provider) {
	c.registry = client.NewRegistry(c.Config.Protocol.SendQueueSize)

	c.servers = []*frontend{
		{
			Address: c.Config.Address(),
			Backend: &protocol.Server{
				Name:     "GAME",
				Config:   c.Config,
				Logger:   c.Logger,
				Registry: c.registry,
				World:    provider,
			},
		},
	}
}

func (c *Controller) run(ctx context.Context) error {
	// Start all of our servers. Failure to initialize one of the registered servers is considered terminal.
	for _, server := range c.servers {
		server.Config = c.Config
		server.Logger = c.Logger
		server.Registry = c.registry

		if err := server.Start(ctx, &c.wg); err != nil {
			return fmt.Errorf("error starting %s server: %w", server.Backend.Identifier(), err)
		}
	}

	c.wg.Wait()
	return nil
}

// Shutdown waits for every server to exit and releases the shared resources.
func (c *Controller) Shutdown() {
	c.wg.Wait()

	if c.db != nil {
		if err := data.Close(c.db); err != nil {
			c.Logger.Warnf("error closing database: %s", err)
		}
		c.db = nil
	}
}
