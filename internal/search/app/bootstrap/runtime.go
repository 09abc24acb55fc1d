package bootstrap

import (
	"context"

	"github.com/teajhaney/shopstack-microservices/internal/contracts"
	"github.com/teajhaney/shopstack-microservices/internal/platform/cache"
	"github.com/teajhaney/shopstack-microservices/internal/platform/config"
	platformpg "github.com/teajhaney/shopstack-microservices/internal/platform/postgres"
	"github.com/teajhaney/shopstack-microservices/internal/platform/registry"
	"github.com/teajhaney/shopstack-microservices/internal/platform/runtime"
	"github.com/teajhaney/shopstack-microservices/internal/platform/transport"
	"github.com/teajhaney/shopstack-microservices/internal/search/adapters/postgres"
	searchrpc "github.com/teajhaney/shopstack-microservices/internal/search/adapters/rpc"
	"github.com/teajhaney/shopstack-microservices/internal/search/application"
)

// Build wires the search service. Product events arrive on the service queue
// and, with the kafka backend, from the per-service kafka topics as well.
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

	service := application.NewService(application.Dependencies{
		Projections: postgres.NewProjectionRepository(db),
		Cache:       cache.NewReadThrough(cache.NewRedisStore(redisClient), cfg.CacheTTL, logger),
		Logger:      logger,
	})

	reg := registry.New(cfg.ServiceID, logger)
	searchrpc.Register(reg, service)
	host.Consume(broker, transport.QueueName(contracts.ServiceSearch), reg)
	if err := host.ConsumeKafkaEvents(cfg, contracts.ServiceSearch, reg); err != nil {
		return fail(err)
	}
	return host, nil
}
