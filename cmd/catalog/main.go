package main

import (
	"context"
	"log"
	"os"

	"github.com/teajhaney/shopstack-microservices/internal/catalog/app/bootstrap"
)

func main() {
	ctx := context.Background()
	configPath := "configs/catalog.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	host, err := bootstrap.Build(ctx, configPath)
	if err != nil {
		log.Fatalf("bootstrap catalog runtime: %v", err)
	}
	if err := host.Run(ctx); err != nil {
		log.Fatalf("run catalog: %v", err)
	}
}
