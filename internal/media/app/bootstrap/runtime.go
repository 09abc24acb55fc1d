package bootstrap

import (
	"context"

	"github.com/teajhaney/shopstack-microservices/internal/contracts"
	"github.com/teajhaney/shopstack-microservices/internal/media/adapters/blob"
	"github.com/teajhaney/shopstack-microservices/internal/media/adapters/postgres"
	mediarpc "github.com/teajhaney/shopstack-microservices/internal/media/adapters/rpc"
	"github.com/teajhaney/shopstack-microservices/internal/media/application"
	"github.com/teajhaney/shopstack-microservices/internal/platform/config"
	platformpg "github.com/teajhaney/shopstack-microservices/internal/platform/postgres"
	"github.com/teajhaney/shopstack-microservices/internal/platform/registry"
	"github.com/teajhaney/shopstack-microservices/internal/platform/runtime"
	"github.com/teajhaney/shopstack-microservices/internal/platform/transport"
)

func Build(ctx context.Context, configPath string) (*runtime.Host, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Require(config.NeedBroker, config.NeedDatabase, config.NeedBlobs); err != nil {
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

	blobs, err := blob.NewFilesystemStore(cfg.BlobDir, cfg.BlobBaseURL)
	if err != nil {
		return fail(err)
	}

	broker, err := host.DialBroker(ctx, cfg)
	if err != nil {
		return fail(err)
	}

	service := application.NewService(application.Dependencies{
		Config: application.Config{MaxUploadBytes: cfg.MaxUploadBytes},
		Assets: postgres.NewAssetRepository(db),
		Blobs:  blobs,
		Logger: logger,
	})

	reg := registry.New(cfg.ServiceID, logger)
	mediarpc.Register(reg, service)
	host.Consume(broker, transport.QueueName(contracts.ServiceMedia), reg)
	if err := host.ConsumeKafkaEvents(cfg, contracts.ServiceMedia, reg); err != nil {
		return fail(err)
	}
	return host, nil
}
