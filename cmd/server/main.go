package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"github.com/slemarket/hybridstore/internal/server"
	"github.com/slemarket/hybridstore/internal/server/config"
)

func main() {
	ctx := context.Background()

	// Missing .env is fine, real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.LoadConfig()

	app, err := server.NewApp(cfg)
	if err != nil {
		log.Fatalf("error initializing app: %v", err)
	}

	app.Run(ctx)
}
