// Package server exposes the marketplace registry over HTTP/JSON.
package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/tokenmart/marketd/internal/domain"
	"github.com/tokenmart/marketd/internal/manager"
	"github.com/tokenmart/marketd/internal/metrics"
	"github.com/tokenmart/marketd/internal/repository"
)

// Server routes HTTP requests to the marketplace managers. It owns no
// business rules: request decoding, caller resolution and status mapping
// only.
type Server struct {
	listings *manager.ListingManager
	exchange *manager.ExchangeManager
	fees     *manager.FeeManager
	repo     repository.Repository
	apiKeys  map[string]domain.Address
	logger   zerolog.Logger
}

// NewServer creates a new Server with the given dependencies. apiKeys maps
// API keys to the caller identity each key authenticates.
func NewServer(
	listings *manager.ListingManager,
	exchange *manager.ExchangeManager,
	fees *manager.FeeManager,
	repo repository.Repository,
	apiKeys map[string]domain.Address,
	logger zerolog.Logger,
) *Server {
	return &Server{
		listings: listings,
		exchange: exchange,
		fees:     fees,
		repo:     repo,
		apiKeys:  apiKeys,
		logger:   logger,
	}
}

// Router builds the full route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.loggingMiddleware, s.authMiddleware)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()

	v1.HandleFunc("/listings", s.handleCreateListing).Methods(http.MethodPost)
	v1.HandleFunc("/listings", s.handleListListings).Methods(http.MethodGet)
	v1.HandleFunc("/listings/{collection}/{tokenID}", s.handleGetListing).Methods(http.MethodGet)
	v1.HandleFunc("/listings/{collection}/{tokenID}", s.handleCancelListing).Methods(http.MethodDelete)
	v1.HandleFunc("/listings/{collection}/{tokenID}/price", s.handleUpdatePrice).Methods(http.MethodPut)
	v1.HandleFunc("/listings/{collection}/{tokenID}/valid", s.handleListingValid).Methods(http.MethodGet)

	v1.HandleFunc("/purchases/native", s.handleBuyNative).Methods(http.MethodPost)
	v1.HandleFunc("/purchases/token", s.handleBuyToken).Methods(http.MethodPost)

	v1.HandleFunc("/fees/quote", s.handleFeeQuote).Methods(http.MethodGet)
	v1.HandleFunc("/fees/rate", s.handleGetFeeRate).Methods(http.MethodGet)
	v1.HandleFunc("/fees/rate", s.handleSetFeeRate).Methods(http.MethodPut)
	v1.HandleFunc("/fees/accruals/{currency}", s.handleGetFeeAccrual).Methods(http.MethodGet)
	v1.HandleFunc("/fees/withdrawals/native", s.handleWithdrawNative).Methods(http.MethodPost)
	v1.HandleFunc("/fees/withdrawals/{currency}", s.handleWithdrawToken).Methods(http.MethodPost)

	v1.HandleFunc("/currencies", s.handleListCurrencies).Methods(http.MethodGet)
	v1.HandleFunc("/currencies/{currency}", s.handleSetCurrencyAllowance).Methods(http.MethodPut)

	v1.HandleFunc("/events", s.handleListEvents).Methods(http.MethodGet)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
