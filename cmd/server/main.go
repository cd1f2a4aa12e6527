package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/tokenmart/marketd/internal/config"
	"github.com/tokenmart/marketd/internal/service"
)

var (
	version   = "0.1.0"
	buildTime = "unknown"
	gitCommit = "unknown"

	configPath = flag.String("config", "config.yaml", "path to configuration file")
	showHelp   = flag.Bool("help", false, "show help message")
	showVer    = flag.Bool("version", false, "show version information")
)

func main() {
	flag.Parse()

	if *showHelp {
		printHelp()
		os.Exit(0)
	}
	if *showVer {
		printVersion()
		os.Exit(0)
	}

	// Load .env if present, for local development.
	_ = godotenv.Load()

	cfg := config.MustLoad(*configPath)
	logger := newLogger(cfg)

	logger.Info().
		Str("version", version).
		Str("build_time", buildTime).
		Str("git_commit", gitCommit).
		Str("environment", cfg.Service.Environment).
		Msg("Starting marketd")

	ctx := context.Background()
	svc := service.New(cfg, logger)
	if err := svc.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start service")
	}

	logger.Info().Msg("Service ready, waiting for shutdown signal")
	if err := svc.WaitForShutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Shutdown finished with errors")
		os.Exit(1)
	}
	logger.Info().Msg("marketd stopped")
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Service.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).Level(level).With().
		Timestamp().
		Str("service", cfg.Service.Name).
		Logger()
	if cfg.Service.Environment == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return logger
}

func printHelp() {
	fmt.Fprintf(os.Stdout, "marketd - Fixed-Price NFT Marketplace Registry\n\n")
	fmt.Fprintf(os.Stdout, "An HTTP microservice managing fixed-price listings, atomic purchases\n")
	fmt.Fprintf(os.Stdout, "with fee split, and the marketplace event log.\n\n")
	fmt.Fprintf(os.Stdout, "USAGE:\n")
	fmt.Fprintf(os.Stdout, "    marketd [OPTIONS]\n\n")
	fmt.Fprintf(os.Stdout, "OPTIONS:\n")
	fmt.Fprintf(os.Stdout, "    -config <path>     Path to configuration file (default: config.yaml)\n")
	fmt.Fprintf(os.Stdout, "    -help              Show this help message\n")
	fmt.Fprintf(os.Stdout, "    -version           Show version information\n\n")
	fmt.Fprintf(os.Stdout, "ENVIRONMENT VARIABLES:\n")
	fmt.Fprintf(os.Stdout, "    MARKETD_DATABASE_DSN        PostgreSQL connection string\n")
	fmt.Fprintf(os.Stdout, "    MARKETD_EVENT_BUS_URL       NATS JetStream URL\n")
	fmt.Fprintf(os.Stdout, "    MARKETD_CHAIN_RPC_URL       EVM node RPC endpoint\n")
	fmt.Fprintf(os.Stdout, "    MARKETD_CHAIN_OPERATOR_KEY  Operator private key (hex)\n")
	fmt.Fprintf(os.Stdout, "    MARKETD_MARKET_ADMIN        Administrator address\n")
}

func printVersion() {
	fmt.Fprintf(os.Stdout, "marketd %s\n", version)
	fmt.Fprintf(os.Stdout, "Build Time: %s\n", buildTime)
	fmt.Fprintf(os.Stdout, "Git Commit: %s\n", gitCommit)
}
