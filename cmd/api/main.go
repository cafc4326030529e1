package main

import (
	"context"
	"log"

	"docintake-backend/internal/bootstrap"
	"docintake-backend/internal/shared/config"
	"docintake-backend/internal/shared/server"
)

func main() {
	cfg := config.Load()

	app, err := bootstrap.Build(cfg)
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	app.StartJanitor(ctx)

	addr := server.Addr(cfg.Port)
	log.Printf("Starting API server on %s (env=%s, store=%s)", addr, cfg.Env, cfg.ObjectStoreType)

	if err := app.Router.Run(addr); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
