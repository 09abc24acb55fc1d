package main

import (
	"context"
	"log"
	"os"

	"github.com/teajhaney/shopstack-microservices/internal/search/app/bootstrap"
)

func main() {
	ctx := context.Background()
	configPath := "configs/search.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	host, err := bootstrap.Build(ctx, configPath)
	if err != nil {
		log.Fatalf("bootstrap search runtime: %v", err)
	}
	if err := host.Run(ctx); err != nil {
		log.Fatalf("run search: %v", err)
	}
}
