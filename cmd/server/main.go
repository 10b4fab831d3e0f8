// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/MKhiriev/go-remind-sync/internal/config"
	handler "github.com/MKhiriev/go-remind-sync/internal/handler/http"
	"github.com/MKhiriev/go-remind-sync/internal/logger"
	"github.com/MKhiriev/go-remind-sync/internal/server"
	"github.com/MKhiriev/go-remind-sync/internal/service"
	"github.com/MKhiriev/go-remind-sync/internal/store"
)

// Build metadata, injected via -ldflags at release time.
var (
	buildVersion = "N/A"
	buildDate    = "N/A"
	buildCommit  = "N/A"
)

func main() {
	printBuildInfo()

	log := logger.NewLogger("sync-server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	cfg, err := config.GetStructuredConfig()
	if err != nil {
		log.Fatal().Err(err).Str("func", "main").Msg("failed to load configuration")
	}

	storages, err := store.NewStorages(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("func", "main").Msg("failed to initialize storages")
	}

	services := service.NewServices(storages, cfg, log)
	handlers := handler.NewHandler(services, log)
	srv := server.NewServer(cfg.Server, handlers.Init())

	go func() {
		log.Info().Str("func", "main").Str("address", cfg.Server.HTTPAddress).Msg("starting sync server")
		if runErr := srv.Run(); runErr != nil && !errors.Is(runErr, http.ErrServerClosed) {
			log.Err(runErr).Str("func", "main").Msg("http server stopped unexpectedly")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Str("func", "main").Msg("shutdown signal received")

	if shutdownErr := srv.Shutdown(context.Background()); shutdownErr != nil {
		log.Err(shutdownErr).Str("func", "main").Msg("graceful shutdown failed")
		os.Exit(1)
	}

	log.Info().Str("func", "main").Msg("sync server stopped")
}

func printBuildInfo() {
	fmt.Printf("Build version: %s\n", buildVersion)
	fmt.Printf("Build date: %s\n", buildDate)
	fmt.Printf("Build commit: %s\n", buildCommit)
}
