// Package service wires the marketplace components together and manages
// their lifecycle.
package service

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/tokenmart/marketd/internal/chain"
	"github.com/tokenmart/marketd/internal/config"
	"github.com/tokenmart/marketd/internal/domain"
	"github.com/tokenmart/marketd/internal/manager"
	"github.com/tokenmart/marketd/internal/repository"
	"github.com/tokenmart/marketd/internal/server"
)

// Service manages the lifecycle of all marketd components: database pool,
// event bus, chain client, repository, managers and the HTTP server.
type Service struct {
	cfg    *config.Config
	logger zerolog.Logger

	pool       *pgxpool.Pool
	natsConn   *nats.Conn
	ethClient  *chain.EthereumClient
	httpServer *http.Server
}

// New creates a new Service instance with the given configuration and logger.
func New(cfg *config.Config, logger zerolog.Logger) *Service {
	return &Service{
		cfg:    cfg,
		logger: logger,
	}
}

// Start initializes all components and starts the HTTP server.
// Initialization order: database, migrations, event bus, chain client,
// repository, managers, HTTP server.
func (s *Service) Start(ctx context.Context) error {
	s.logger.Info().Msg("Initializing marketd components")

	pool, err := s.initDatabase(ctx)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	s.pool = pool

	if err := repository.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	js, err := s.initEventBus()
	if err != nil {
		return fmt.Errorf("initialize event bus: %w", err)
	}

	ethClient, err := chain.NewEthereumClient(ctx, s.cfg.Chain.RPCURL, s.cfg.Chain.OperatorKey, s.logger)
	if err != nil {
		return fmt.Errorf("initialize chain client: %w", err)
	}
	s.ethClient = ethClient
	operator := ethClient.Operator()

	var repo repository.Repository = repository.NewPostgresRepository(pool)
	repo = repository.NewCachedRepository(repo, repository.CacheTTLs{
		Listing:  s.cfg.CacheTTL.Listing,
		Fee:      s.cfg.CacheTTL.Fee,
		Currency: s.cfg.CacheTTL.Currency,
	})

	publisher := manager.NewEventPublisher(js, s.logger)
	guard := manager.NewGuard()
	admin := domain.MustParseAddress(s.cfg.Market.Admin)
	access := manager.NewAccessControl(admin)

	assets := ethClient.Assets()
	tokens := ethClient.Tokens()
	bank := ethClient.Bank()

	listings := manager.NewListingManager(repo, assets, guard, publisher, operator, s.logger)
	exchange := manager.NewExchangeManager(repo, assets, tokens, bank, guard, publisher, operator, s.logger)
	fees := manager.NewFeeManager(repo, access, tokens, bank, guard, publisher, s.logger)

	apiKeys := make(map[string]domain.Address, len(s.cfg.Auth.APIKeys))
	for key, addr := range s.cfg.Auth.APIKeys {
		apiKeys[key] = domain.MustParseAddress(addr)
	}

	srv := server.NewServer(listings, exchange, fees, repo, apiKeys, s.logger)
	s.httpServer = &http.Server{
		Addr:         s.cfg.ServerAddr(),
		Handler:      srv.Router(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	go func() {
		s.logger.Info().Str("addr", s.httpServer.Addr).Msg("Starting HTTP server")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	s.logger.Info().
		Str("operator", operator.String()).
		Str("admin", admin.String()).
		Msg("marketd started")
	return nil
}

// Stop gracefully shuts down all components in reverse order of
// initialization.
func (s *Service) Stop(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down marketd")

	if s.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error().Err(err).Msg("Failed to stop HTTP server")
		}
	}

	if s.ethClient != nil {
		s.ethClient.Close()
	}

	if s.natsConn != nil {
		if err := s.natsConn.Drain(); err != nil {
			s.logger.Error().Err(err).Msg("Failed to drain event bus connection")
		}
	}

	if s.pool != nil {
		s.pool.Close()
		s.logger.Info().Msg("Database pool closed")
	}

	s.logger.Info().Msg("marketd stopped")
	return nil
}

// Name returns the service name for identification.
func (s *Service) Name() string {
	return s.cfg.Service.Name
}

// Health checks database connectivity.
func (s *Service) Health(ctx context.Context) error {
	if s.pool == nil {
		return fmt.Errorf("database pool not initialized")
	}
	return s.pool.Ping(ctx)
}

func (s *Service) initDatabase(ctx context.Context) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(s.cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}
	poolCfg.MaxConns = s.cfg.Database.MaxConns
	poolCfg.MaxConnLifetime = s.cfg.Database.ConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping: %w", err)
	}

	s.logger.Info().Msg("Database connection established")
	return pool, nil
}

// initEventBus connects to NATS and ensures the marketplace stream exists.
// An empty URL disables publishing; the transactional event log in the
// database still records every transition.
func (s *Service) initEventBus() (nats.JetStreamContext, error) {
	if s.cfg.EventBus.URL == "" {
		s.logger.Warn().Msg("Event bus disabled, events recorded in the database only")
		return nil, nil
	}

	conn, err := nats.Connect(s.cfg.EventBus.URL,
		nats.Name(s.cfg.Service.Name),
		nats.Timeout(s.cfg.EventBus.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	s.natsConn = conn

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("open jetstream context: %w", err)
	}

	if _, err := js.StreamInfo(s.cfg.EventBus.Stream); err != nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:     s.cfg.EventBus.Stream,
			Subjects: []string{"market.events.>"},
			Storage:  nats.FileStorage,
		})
		if err != nil {
			return nil, fmt.Errorf("create stream %s: %w", s.cfg.EventBus.Stream, err)
		}
	}

	s.logger.Info().Str("stream", s.cfg.EventBus.Stream).Msg("Event bus connection established")
	return js, nil
}

// WaitForShutdown blocks until SIGINT or SIGTERM, then stops the service.
func (s *Service) WaitForShutdown(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		s.logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	case <-ctx.Done():
	}
	return s.Stop(context.Background())
}
