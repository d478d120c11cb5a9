package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"

	"github.com/dmehra2102/inventory-hub/internal/auth"
	catalogapp "github.com/dmehra2102/inventory-hub/internal/catalog/application"
	catalogpg "github.com/dmehra2102/inventory-hub/internal/catalog/infrastructure/postgres"
	catalogredis "github.com/dmehra2102/inventory-hub/internal/catalog/infrastructure/redis"
	"github.com/dmehra2102/inventory-hub/internal/config"
	dashboardapp "github.com/dmehra2102/inventory-hub/internal/dashboard/application"
	eventskafka "github.com/dmehra2102/inventory-hub/internal/events/kafka"
	inventoryapp "github.com/dmehra2102/inventory-hub/internal/inventory/application"
	stockgrpc "github.com/dmehra2102/inventory-hub/internal/inventory/infrastructure/grpc"
	inventorypg "github.com/dmehra2102/inventory-hub/internal/inventory/infrastructure/postgres"
	orderapp "github.com/dmehra2102/inventory-hub/internal/order/application"
	orderpg "github.com/dmehra2102/inventory-hub/internal/order/infrastructure/postgres"
	"github.com/dmehra2102/inventory-hub/internal/server"
	"github.com/dmehra2102/inventory-hub/internal/storage/memory"
	storagepg "github.com/dmehra2102/inventory-hub/internal/storage/postgres"
	"github.com/dmehra2102/inventory-hub/migrations"
	"github.com/dmehra2102/inventory-hub/pkg/idempotency"
	"github.com/dmehra2102/inventory-hub/pkg/logging"
	"github.com/dmehra2102/inventory-hub/pkg/outbox"
	"github.com/dmehra2102/inventory-hub/pkg/postgres"
	"github.com/dmehra2102/inventory-hub/pkg/shutdown"
	"github.com/dmehra2102/inventory-hub/pkg/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("inventory-api stopped with error", "err", err)
		os.Exit(1)
	}
	log.Info("inventory-api shutdown complete")
}

// backend is the storage chosen by the store driver.
type backend struct {
	orderTx   orderapp.Transactor
	stockTx   inventoryapp.StockTransactor
	orders    orderapp.OrderReader
	stock     inventoryapp.StockReader
	products  catalogapp.ProductRepository
	outbox    outbox.Store
	readiness []func(context.Context) error
	close     func()
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	tp, err := tracing.Init(ctx, "inventory-api", cfg.OTLPEndpoint, log)
	if err != nil {
		return err
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	b, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.close()

	var (
		cache       catalogapp.Cache
		idempotent  func(http.Handler) http.Handler
		readinesses = b.readiness
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		cache = catalogredis.NewCache(log, rdb, cfg.CatalogCacheTTL)
		idempotent = idempotency.Middleware(idempotency.NewStore(rdb, cfg.IdempotencyTTL), log, server.CallerScope)
		readinesses = append(readinesses, func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}

	catalog := catalogapp.NewService(log, b.products, cache)
	inventory := inventoryapp.NewService(log, b.stockTx, b.stock, catalog)
	orders := orderapp.NewEngine(log, b.orderTx, b.orders, catalog)

	handler := server.NewRouter(server.Deps{
		Log:         log,
		Verifier:    auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL),
		Catalog:     catalog,
		Inventory:   inventory,
		Orders:      orders,
		Dashboard:   dashboardapp.NewService(catalog, inventory, orders),
		Idempotency: idempotent,
		Ready: func(ctx context.Context) error {
			for _, ready := range readinesses {
				if err := ready(ctx); err != nil {
					return err
				}
			}
			return nil
		},
	})

	if brokers := cfg.KafkaBrokers(); len(brokers) > 0 {
		writer := eventskafka.NewWriter(brokers)
		defer writer.Close()
		dispatch := outbox.NewDispatcher(log, writer, cfg.OutboxTopic)
		relay := outbox.NewRelay(log, b.outbox, dispatch, "inventory-api-relay",
			outbox.WithBatchSize(cfg.RelayBatch),
			outbox.WithInterval(cfg.RelayInterval),
		)
		go func() {
			if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("relay stopped with error", "err", err)
			}
		}()
	} else {
		log.Warn("no kafka brokers configured; outbox events are kept but not published")
	}

	gs := stockgrpc.NewGRPCServer(log, stockgrpc.NewServer(log, inventory))
	grpcAddr, err := stockgrpc.Run(cfg.GRPCAddr, gs)
	if err != nil {
		return err
	}
	log.Info("grpc listening", "addr", grpcAddr.String())

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      35 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err = <-errCh:
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	stopGRPC(shutdownCtx, gs)
	return err
}

func openBackend(ctx context.Context, cfg config.Config, log *slog.Logger) (*backend, error) {
	if cfg.StoreDriver == config.DriverMemory {
		store := memory.New()
		log.Warn("using the in-memory store; data is lost on restart")
		return &backend{
			orderTx:  store,
			stockTx:  store,
			orders:   store,
			stock:    store,
			products: store,
			outbox:   store.Outbox(),
			close:    func() {},
		}, nil
	}

	if err := postgres.Migrate(cfg.PGURL, migrations.FS); err != nil {
		return nil, err
	}
	pool, err := postgres.Connect(ctx, cfg.PGURL)
	if err != nil {
		return nil, err
	}
	uow := storagepg.NewUnitOfWork(log, pool)
	return &backend{
		orderTx:   uow,
		stockTx:   uow,
		orders:    orderpg.NewRepository(log, pool),
		stock:     inventorypg.NewRepository(log, pool),
		products:  catalogpg.NewRepository(log, pool),
		outbox:    outbox.NewPGStore(log, pool),
		readiness: []func(context.Context) error{pingPool(pool)},
		close:     pool.Close,
	}, nil
}

func pingPool(pool *pgxpool.Pool) func(context.Context) error {
	return func(ctx context.Context) error { return pool.Ping(ctx) }
}

func stopGRPC(ctx context.Context, gs *grpc.Server) {
	done := make(chan struct{})
	go func() {
		gs.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		gs.Stop()
	}
}
