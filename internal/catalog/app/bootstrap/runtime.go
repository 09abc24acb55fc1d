package bootstrap

import (
	"context"

	"github.com/teajhaney/shopstack-microservices/internal/catalog/adapters/postgres"
	catalogrpc "github.com/teajhaney/shopstack-microservices/internal/catalog/adapters/rpc"
	"github.com/teajhaney/shopstack-microservices/internal/catalog/application"
	"github.com/teajhaney/shopstack-microservices/internal/contracts"
	"github.com/teajhaney/shopstack-microservices/internal/platform/cache"
	"github.com/teajhaney/shopstack-microservices/internal/platform/config"
	"github.com/teajhaney/shopstack-microservices/internal/platform/events"
	platformpg "github.com/teajhaney/shopstack-microservices/internal/platform/postgres"
	"github.com/teajhaney/shopstack-microservices/internal/platform/registry"
	"github.com/teajhaney/shopstack-microservices/internal/platform/runtime"
	"github.com/teajhaney/shopstack-microservices/internal/platform/transport"
)

// Build wires the catalog service: postgres, redis, the broker and the
// product event publisher.
func Build(ctx context.Context, configPath string) (*runtime.Host, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Require(config.NeedBroker, config.NeedDatabase, config.NeedRedis); err != nil {
		return nil, err
	}
	logger := runtime.NewLogger(cfg.ServiceID)

	host, err := runtime.NewHost(logger, cfg.GRPCPort)
	if err != nil {
		return nil, err
	}
	fail := func(err error) (*runtime.Host, error) {
		host.Close()
		return nil, err
	}

	db, err := platformpg.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
	if err != nil {
		return fail(err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fail(err)
	}
	host.OnClose(sqlDB.Close)
	if cfg.AutoMigrate {
		if err := postgres.RunMigrations(ctx, db); err != nil {
			return fail(err)
		}
	}

	redisClient, err := cache.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return fail(err)
	}
	host.OnClose(redisClient.Close)

	broker, err := host.DialBroker(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	emitter, err := host.EventEmitter(cfg, broker)
	if err != nil {
		return fail(err)
	}
	publisher := events.NewPublisher(emitter, contracts.ProductEventRoutes(), logger)
	publisher.Connect(ctx)

	service := application.NewService(application.Dependencies{
		Config:    application.Config{ServiceName: cfg.ServiceID},
		Products:  postgres.NewProductRepository(db),
		Cache:     cache.NewReadThrough(cache.NewRedisStore(redisClient), cfg.CacheTTL, logger),
		Publisher: publisher,
		Logger:    logger,
	})

	reg := registry.New(cfg.ServiceID, logger)
	catalogrpc.Register(reg, service)
	host.Consume(broker, transport.QueueName(contracts.ServiceCatalog), reg)
	return host, nil
}
