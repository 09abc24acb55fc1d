package main

import (
	"context"
	"log"
	"os"

	"github.com/teajhaney/shopstack-microservices/internal/media/app/bootstrap"
)

func main() {
	ctx := context.Background()
	configPath := "configs/media.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	host, err := bootstrap.Build(ctx, configPath)
	if err != nil {
		log.Fatalf("bootstrap media runtime: %v", err)
	}
	if err := host.Run(ctx); err != nil {
		log.Fatalf("run media: %v", err)
	}
}
