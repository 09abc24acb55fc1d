package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	gatewayhttp "github.com/teajhaney/shopstack-microservices/internal/gateway/adapters/http"
	"github.com/teajhaney/shopstack-microservices/internal/gateway/adapters/security"
	"github.com/teajhaney/shopstack-microservices/internal/gateway/application"
	"github.com/teajhaney/shopstack-microservices/internal/platform/cache"
	"github.com/teajhaney/shopstack-microservices/internal/platform/config"
	"github.com/teajhaney/shopstack-microservices/internal/platform/runtime"
)

// Build wires the gateway: the broker client for downstream calls, redis
// for rate limiting and the public HTTP server.
func Build(ctx context.Context, configPath string) (*runtime.Host, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Require(config.NeedBroker, config.NeedRedis, config.NeedJWT); err != nil {
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

	verifier, err := security.NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		return fail(err)
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

	service := application.NewService(application.Config{
		RPCTimeout:    cfg.RPCTimeout,
		HealthTimeout: cfg.HealthTimeout,
	}, broker, logger)
	handler := gatewayhttp.NewHandler(service, gatewayhttp.Options{
		Verifier: verifier,
		RateLimit: gatewayhttp.RateLimit{
			Counter: cache.NewRedisStore(redisClient),
			Limit:   cfg.RateLimit,
			Window:  cfg.RateWindow,
		},
		MaxUploadBytes: cfg.MaxUploadBytes,
		Logger:         logger,
	})

	host.ServeHTTP(&http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           gatewayhttp.NewRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
	})
	return host, nil
}
