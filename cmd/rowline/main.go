package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rowline-app/rowline/internal/api"
	"github.com/rowline-app/rowline/internal/config"
	"github.com/rowline-app/rowline/internal/database"
	"github.com/rowline-app/rowline/internal/observability"
	"github.com/rowline-app/rowline/internal/records"
)

var version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("rowline %s\n", version)
		return
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Info().Str("version", version).Msg("Starting Rowline")

	metrics := observability.NewMetrics()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	provider, err := database.NewProvider(ctx, cfg.Databases, metrics)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to databases")
	}
	defer provider.Close()

	resolver := database.NewSchemaCache(provider, database.NewInspector(), cfg.Schema.CacheTTL)
	executor := database.NewExecutor(provider)
	service := records.NewService(resolver, executor)

	server := api.NewServer(cfg, provider, service, metrics)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatal().Err(err).Msg("Server failed")
		}
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Graceful shutdown failed")
		}
	}

	log.Info().Msg("Rowline stopped")
}
