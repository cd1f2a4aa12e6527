// Package client wraps the marketd HTTP API for bootstrap operations.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// MarketdClient is a rate-limited, retrying HTTP client for the marketd API.
type MarketdClient struct {
	baseURL    string
	httpClient *retryablehttp.Client
	limiter    *rate.Limiter
}

// NewMarketdClient creates a new marketd API client. rateLimit is the maximum
// number of requests per second.
func NewMarketdClient(baseURL string, rateLimit int) *MarketdClient {
	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = 3
	httpClient.Logger = nil

	return &MarketdClient{
		baseURL:    baseURL,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(rateLimit), 1),
	}
}

// Health checks that marketd is reachable and ready.
func (c *MarketdClient) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", "", nil, nil)
}

// SetFeeRate replaces the marketplace fee rate. Requires the administrator
// API key.
func (c *MarketdClient) SetFeeRate(ctx context.Context, apiKey string, rateBps int32) error {
	body := map[string]int32{"rate_bps": rateBps}
	return c.do(ctx, http.MethodPut, "/v1/fees/rate", apiKey, body, nil)
}

// AllowCurrency adds a token currency to the payment allow-list.
func (c *MarketdClient) AllowCurrency(ctx context.Context, apiKey, currency string) error {
	body := map[string]bool{"allowed": true}
	return c.do(ctx, http.MethodPut, "/v1/currencies/"+currency, apiKey, body, nil)
}

// CreateListing lists an asset on behalf of the seller the API key
// authenticates.
func (c *MarketdClient) CreateListing(ctx context.Context, apiKey, collection, tokenID, price, currency string) error {
	body := map[string]string{
		"collection": collection,
		"token_id":   tokenID,
		"price":      price,
	}
	if currency != "" {
		body["currency"] = currency
	}
	return c.do(ctx, http.MethodPost, "/v1/listings", apiKey, body, nil)
}

func (c *MarketdClient) do(ctx context.Context, method, path, apiKey string, body, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	log.Debug().Str("method", method).Str("path", path).Msg("Calling marketd")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(data))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
