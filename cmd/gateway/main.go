package main

import (
	"context"
	"log"
	"os"

	"github.com/teajhaney/shopstack-microservices/internal/gateway/app/bootstrap"
)

func main() {
	ctx := context.Background()
	configPath := "configs/gateway.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	host, err := bootstrap.Build(ctx, configPath)
	if err != nil {
		log.Fatalf("bootstrap gateway runtime: %v", err)
	}
	if err := host.Run(ctx); err != nil {
		log.Fatalf("run gateway: %v", err)
	}
}
