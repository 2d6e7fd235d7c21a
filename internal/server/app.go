// Package server wires configuration, storage, the entitlement cache and
// the services together and runs the HTTP and gRPC endpoints until a
// shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/leadkeeper/internal/dbx"
	"github.com/dmitrijs2005/leadkeeper/internal/logging"
	"github.com/dmitrijs2005/leadkeeper/internal/server/cache"
	"github.com/dmitrijs2005/leadkeeper/internal/server/config"
	"github.com/dmitrijs2005/leadkeeper/internal/server/pricing"
	"github.com/dmitrijs2005/leadkeeper/internal/server/projector"
	"github.com/dmitrijs2005/leadkeeper/internal/server/repositories/memory"
	"github.com/dmitrijs2005/leadkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/leadkeeper/internal/server/rest"
	"github.com/dmitrijs2005/leadkeeper/internal/server/services"

	gs "github.com/dmitrijs2005/leadkeeper/internal/server/grpc"
)

// MemoryDSN selects the in-process store instead of PostgreSQL. Data is
// lost on exit; meant for local development.
const MemoryDSN = "memory"

const connectTimeout = 10 * time.Second

type App struct {
	config     *config.Config
	logger     logging.Logger
	manager    repomanager.RepositoryManager
	closeStore func() error
	httpServer *rest.HTTPServer
	grpcServer *gs.GRPCServer
}

// OpenStore connects to the configured database and returns its manager
// plus a function releasing the connection pool.
func OpenStore(ctx context.Context, c *config.Config) (repomanager.RepositoryManager, func() error, error) {
	if c.DatabaseDSN == MemoryDSN {
		return memory.NewStore(), func() error { return nil }, nil
	}

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("db init error: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, nil, dbx.Classify(fmt.Errorf("db ping: %w", err))
	}

	return repomanager.NewPostgresRepositoryManager(db, c.LockTimeout), db.Close, nil
}

// LoadPrices reads the price list and checks it covers every field-group of
// the lead schema.
func LoadPrices(c *config.Config) (*pricing.PriceList, error) {
	prices, err := pricing.Load(c.PriceListFile)
	if err != nil {
		return nil, err
	}
	if err := prices.Validate(projector.LeadSchema.GroupNames()); err != nil {
		return nil, fmt.Errorf("price list: %w", err)
	}
	return prices, nil
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)
	return newApp(ctx, c, logger)
}

func newApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	prices, err := LoadPrices(c)
	if err != nil {
		return nil, err
	}

	manager, closeStore, err := OpenStore(ctx, c)
	if err != nil {
		return nil, err
	}

	if err := manager.RunMigrations(ctx); err != nil {
		_ = closeStore()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	var entCache services.EntitlementCache
	if c.CacheAddr != "" {
		ec := cache.NewEntitlementCache(cache.NewRedisClient(c.CacheAddr), c.CacheTTL, logger)
		if err := ec.Ping(ctx); err != nil {
			logger.Warn(ctx, "entitlement cache unreachable, continuing", "address", c.CacheAddr, "error", err)
		}
		entCache = ec
	}

	purchases := services.NewPurchaseService(manager, prices, entCache, logger)
	leads := services.NewLeadService(manager, entCache, logger)
	ledger := services.NewLedgerService(manager, logger)
	statements := services.NewStatementService(manager, c, logger)

	router := rest.NewRouter(&rest.Handlers{
		Purchases:  purchases,
		Leads:      leads,
		Ledger:     ledger,
		Statements: statements,
		Health:     manager,
	}, []byte(c.SecretKey), logger)

	return &App{
		config:     c,
		logger:     logger,
		manager:    manager,
		closeStore: closeStore,
		httpServer: rest.NewHTTPServer(c.EndpointAddrHTTP, router, logger),
		grpcServer: gs.NewGRPCServer(c.EndpointAddrGRPC, logger, purchases, leads, ledger, c.SecretKey),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run blocks until ctx is canceled, a signal arrives or either endpoint
// fails; a failure of one endpoint stops the other.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := app.grpcServer.Run(ctx); err != nil {
			app.logger.Error(ctx, "grpc server", "error", err)
			cancelFunc()
		}
	}()
	go func() {
		defer wg.Done()
		if err := app.httpServer.Run(ctx); err != nil {
			app.logger.Error(ctx, "http server", "error", err)
			cancelFunc()
		}
	}()

	wg.Wait()

	if err := app.closeStore(); err != nil {
		app.logger.Error(ctx, "closing store", "error", err)
	}
	app.logger.Info(ctx, "Stopped")
}
