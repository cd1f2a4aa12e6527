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
	"github.com/tokenmart/marketd/internal/bootstrap"
	"github.com/tokenmart/marketd/internal/bootstrap/client"
	"github.com/tokenmart/marketd/internal/bootstrap/seeder"
)

var (
	configPath = flag.String("config", "config.bootstrap.yaml", "Path to bootstrap configuration file")
	dryRun     = flag.Bool("dry-run", false, "Validate the seed file without creating entities")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	showHelp   = flag.Bool("help", false, "Show usage information")
)

func main() {
	flag.Parse()

	if *showHelp {
		displayHelp()
		return
	}

	setupLogging(*verbose)

	log.Info().
		Str("config", *configPath).
		Bool("dry_run", *dryRun).
		Msg("Starting marketd bootstrap tool")

	cfg, err := bootstrap.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	seed, err := seeder.LoadSeedFile(cfg.SeedFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load seed file")
	}
	log.Info().
		Str("seed_file", cfg.SeedFile).
		Int("currencies", len(seed.Currencies)).
		Int("listings", len(seed.Listings)).
		Msg("Seed file loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	mc := client.NewMarketdClient(cfg.Marketd.BaseURL, cfg.Marketd.RateLimitPerSecond)
	if err := mc.Health(ctx); err != nil {
		log.Fatal().Err(err).Str("base_url", cfg.Marketd.BaseURL).Msg("marketd is not reachable")
	}
	log.Info().Str("base_url", cfg.Marketd.BaseURL).Msg("marketd is healthy")

	result := seeder.New(mc, cfg, *dryRun).Run(ctx, seed)

	log.Info().
		Int("processed", result.TotalProcessed).
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Int("skipped", result.Skipped).
		Msg("Seeding complete")

	for _, se := range result.Errors {
		log.Error().Err(se.Err).Str("entity", se.Entity).Str("reason", se.Reason).Msg("Seed entry failed")
	}

	if result.Failed > 0 {
		os.Exit(1)
	}
}

// setupLogging configures structured logging with zerolog
func setupLogging(verbose bool) {
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	})

	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// displayHelp shows usage information
func displayHelp() {
	fmt.Print(`
Marketd Bootstrap Tool - Marketplace Seeding Utility

USAGE:
    bootstrap [OPTIONS]

OPTIONS:
    --config string    Path to bootstrap configuration file (default: config.bootstrap.yaml)
    --dry-run         Validate the seed file without creating entities (default: false)
    --verbose         Enable verbose logging (default: false)

EXAMPLES:
    # Run with default configuration
    ./bin/bootstrap --config config.bootstrap.yaml

    # Dry run to validate seed data without creating entities
    ./bin/bootstrap --dry-run

    # Verbose logging for debugging
    ./bin/bootstrap --verbose

DESCRIPTION:
    The bootstrap tool seeds a running marketd instance through its HTTP API:
    it sets the marketplace fee rate, allow-lists payment token currencies,
    and creates initial listings on behalf of the sellers named in the seed
    file. Requests are rate limited and retried on transient failures.

REQUIREMENTS:
    - marketd must be running and accessible at marketd.base_url
    - An admin API key for fee and currency operations
    - Seller API keys mapped by name under marketd.api_keys

NOTE:
    Listings are created with the seller's own API key, so every seller_key
    in the seed file must resolve to a configured API key. Entries that
    cannot be resolved are reported as failures.
`)
}
