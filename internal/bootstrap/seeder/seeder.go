// Package seeder applies seed data to a running marketd instance.
package seeder

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/tokenmart/marketd/internal/bootstrap"
	"github.com/tokenmart/marketd/internal/bootstrap/client"
)

// Seeder drives the marketd API from a seed file.
type Seeder struct {
	client *client.MarketdClient
	cfg    *bootstrap.Config
	dryRun bool
}

// New creates a Seeder.
func New(c *client.MarketdClient, cfg *bootstrap.Config, dryRun bool) *Seeder {
	return &Seeder{client: c, cfg: cfg, dryRun: dryRun}
}

// LoadSeedFile parses the JSON seed data.
func LoadSeedFile(path string) (*bootstrap.SeedData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	seed := &bootstrap.SeedData{FeeRateBps: -1}
	if err := json.Unmarshal(data, seed); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return seed, nil
}

// Run applies the seed data in order: fee rate, currency allow-list,
// listings. Individual failures are recorded and do not stop the run.
func (s *Seeder) Run(ctx context.Context, seed *bootstrap.SeedData) *bootstrap.SeedResult {
	result := &bootstrap.SeedResult{}

	if seed.FeeRateBps >= 0 {
		if s.dryRun {
			log.Info().Int32("rate_bps", seed.FeeRateBps).Msg("Dry run: would set fee rate")
			result.AddSkipped()
		} else if err := s.client.SetFeeRate(ctx, s.cfg.Marketd.AdminAPIKey, seed.FeeRateBps); err != nil {
			result.AddFailure("fee_rate", "set fee rate", err)
		} else {
			log.Info().Int32("rate_bps", seed.FeeRateBps).Msg("Fee rate set")
			result.AddSuccess()
		}
	}

	for _, currency := range seed.Currencies {
		if s.dryRun {
			log.Info().Str("currency", currency).Msg("Dry run: would allow currency")
			result.AddSkipped()
			continue
		}
		if err := s.client.AllowCurrency(ctx, s.cfg.Marketd.AdminAPIKey, currency); err != nil {
			result.AddFailure(currency, "allow currency", err)
			continue
		}
		log.Info().Str("currency", currency).Msg("Currency allowed")
		result.AddSuccess()
	}

	for _, listing := range seed.Listings {
		entity := fmt.Sprintf("%s/%s", listing.Collection, listing.TokenID)
		apiKey, ok := s.cfg.Marketd.APIKeys[listing.SellerKey]
		if !ok {
			result.AddFailure(entity, "unknown seller key "+listing.SellerKey, nil)
			continue
		}
		if s.dryRun {
			log.Info().Str("listing", entity).Msg("Dry run: would create listing")
			result.AddSkipped()
			continue
		}
		err := s.client.CreateListing(ctx, apiKey, listing.Collection, listing.TokenID, listing.Price, listing.Currency)
		if err != nil {
			result.AddFailure(entity, "create listing", err)
			continue
		}
		log.Info().Str("listing", entity).Str("price", listing.Price).Msg("Listing created")
		result.AddSuccess()
	}

	return result
}
