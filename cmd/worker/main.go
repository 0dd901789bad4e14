package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/app/bootstrap"
)

func main() {
	// A local .env is optional; real deployments inject the environment.
	_ = godotenv.Load()

	ctx := context.Background()
	runtime, err := bootstrap.NewRuntime(ctx, "configs/default.yaml")
	if err != nil {
		log.Fatalf("bootstrap worker runtime: %v", err)
	}
	if err := runtime.RunWorker(ctx); err != nil {
		log.Fatalf("run worker: %v", err)
	}
}
