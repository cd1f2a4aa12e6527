package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/tokenmart/marketd/internal/domain"
	"github.com/tokenmart/marketd/internal/repository"
)

// assetVars extracts and validates the {collection}/{tokenID} path pair.
func assetVars(r *http.Request) (domain.Address, decimal.Decimal, error) {
	vars := mux.Vars(r)
	collection, err := domain.ParseAddress(vars["collection"])
	if err != nil {
		return "", decimal.Zero, err
	}
	tokenID, err := decimal.NewFromString(vars["tokenID"])
	if err != nil || !domain.ValidTokenID(tokenID) {
		return "", decimal.Zero, domain.ErrInvalidTokenID
	}
	return collection, tokenID, nil
}

func currencyVar(r *http.Request) (domain.Address, error) {
	return domain.ParseAddress(mux.Vars(r)["currency"])
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "MALFORMED_BODY", Message: "malformed request body"})
		return false
	}
	return true
}

// Listings

type createListingRequest struct {
	Collection string `json:"collection"`
	TokenID    string `json:"token_id"`
	Price      string `json:"price"`
	Currency   string `json:"currency,omitempty"` // empty settles in the native currency
}

func (s *Server) handleCreateListing(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}
	var req createListingRequest
	if !decodeBody(w, r, &req) {
		return
	}

	collection, err := domain.ParseAddress(req.Collection)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	tokenID, err := decimal.NewFromString(req.TokenID)
	if err != nil {
		writeError(w, s.logger, domain.ErrInvalidTokenID)
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		writeError(w, s.logger, domain.ErrInvalidPrice)
		return
	}
	currency := domain.NativeCurrency
	if req.Currency != "" {
		if currency, err = domain.ParseAddress(req.Currency); err != nil {
			writeError(w, s.logger, err)
			return
		}
	}

	listing, err := s.listings.ListAsset(r.Context(), caller, collection, tokenID, price, currency)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, listing)
}

func (s *Server) handleGetListing(w http.ResponseWriter, r *http.Request) {
	collection, tokenID, err := assetVars(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	listing, err := s.listings.GetListing(r.Context(), collection, tokenID)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (s *Server) handleListListings(w http.ResponseWriter, r *http.Request) {
	filter := &repository.ListingFilter{Limit: 100}
	q := r.URL.Query()
	if v := q.Get("collection"); v != "" {
		addr, err := domain.ParseAddress(v)
		if err != nil {
			writeError(w, s.logger, err)
			return
		}
		filter.Collection = &addr
	}
	if v := q.Get("seller"); v != "" {
		addr, err := domain.ParseAddress(v)
		if err != nil {
			writeError(w, s.logger, err)
			return
		}
		filter.Seller = &addr
	}
	if v := q.Get("currency"); v != "" {
		addr, err := domain.ParseAddress(v)
		if err != nil {
			writeError(w, s.logger, err)
			return
		}
		filter.Currency = &addr
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			filter.Offset = n
		}
	}

	listings, err := s.listings.ListListings(r.Context(), filter)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	if listings == nil {
		listings = []*domain.Listing{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"listings": listings})
}

func (s *Server) handleCancelListing(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}
	collection, tokenID, err := assetVars(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	if err := s.listings.CancelListing(r.Context(), caller, collection, tokenID); err != nil {
		writeError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type updatePriceRequest struct {
	Price string `json:"price"`
}

func (s *Server) handleUpdatePrice(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}
	collection, tokenID, err := assetVars(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	var req updatePriceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		writeError(w, s.logger, domain.ErrInvalidPrice)
		return
	}

	listing, err := s.listings.UpdatePrice(r.Context(), caller, collection, tokenID, price)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (s *Server) handleListingValid(w http.ResponseWriter, r *http.Request) {
	collection, tokenID, err := assetVars(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	valid, err := s.listings.IsListingValid(r.Context(), collection, tokenID)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}

// Purchases

type buyNativeRequest struct {
	Collection string `json:"collection"`
	TokenID    string `json:"token_id"`
	Value      string `json:"value"`
}

func (s *Server) handleBuyNative(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}
	var req buyNativeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	collection, err := domain.ParseAddress(req.Collection)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	tokenID, err := decimal.NewFromString(req.TokenID)
	if err != nil {
		writeError(w, s.logger, domain.ErrInvalidTokenID)
		return
	}
	value, err := decimal.NewFromString(req.Value)
	if err != nil {
		writeError(w, s.logger, domain.ErrWrongAmount)
		return
	}

	if err := s.exchange.BuyWithNative(r.Context(), caller, collection, tokenID, value); err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "settled"})
}

type buyTokenRequest struct {
	Collection string `json:"collection"`
	TokenID    string `json:"token_id"`
}

func (s *Server) handleBuyToken(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}
	var req buyTokenRequest
	if !decodeBody(w, r, &req) {
		return
	}
	collection, err := domain.ParseAddress(req.Collection)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	tokenID, err := decimal.NewFromString(req.TokenID)
	if err != nil {
		writeError(w, s.logger, domain.ErrInvalidTokenID)
		return
	}

	if err := s.exchange.BuyWithToken(r.Context(), caller, collection, tokenID); err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "settled"})
}

// Fees

func (s *Server) handleFeeQuote(w http.ResponseWriter, r *http.Request) {
	price, err := decimal.NewFromString(r.URL.Query().Get("price"))
	if err != nil {
		writeError(w, s.logger, domain.ErrInvalidPrice)
		return
	}
	fee, sellerAmount, err := s.exchange.CalculateFee(r.Context(), price)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"price":         price.String(),
		"fee":           fee.String(),
		"seller_amount": sellerAmount.String(),
	})
}

func (s *Server) handleGetFeeRate(w http.ResponseWriter, r *http.Request) {
	rate, err := s.fees.GetFeeRate(r.Context())
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int32{"rate_bps": rate})
}

type setFeeRateRequest struct {
	RateBps int32 `json:"rate_bps"`
}

func (s *Server) handleSetFeeRate(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}
	var req setFeeRateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.fees.SetFeeRate(r.Context(), caller, req.RateBps); err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int32{"rate_bps": req.RateBps})
}

func (s *Server) handleGetFeeAccrual(w http.ResponseWriter, r *http.Request) {
	currency, err := currencyVar(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	balance, err := s.fees.GetFeeAccrual(r.Context(), currency)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"currency": currency.String(),
		"balance":  balance.String(),
	})
}

func (s *Server) handleWithdrawNative(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}
	amount, err := s.fees.WithdrawNativeFees(r.Context(), caller)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"currency": domain.NativeCurrency.String(),
		"amount":   amount.String(),
	})
}

func (s *Server) handleWithdrawToken(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}
	currency, err := currencyVar(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	amount, err := s.fees.WithdrawTokenFees(r.Context(), caller, currency)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"currency": currency.String(),
		"amount":   amount.String(),
	})
}

// Currencies

func (s *Server) handleListCurrencies(w http.ResponseWriter, r *http.Request) {
	currencies, err := s.fees.ListAllowedCurrencies(r.Context())
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	if currencies == nil {
		currencies = []domain.Address{}
	}
	writeJSON(w, http.StatusOK, map[string][]domain.Address{"currencies": currencies})
}

type setCurrencyAllowanceRequest struct {
	Allowed bool `json:"allowed"`
}

func (s *Server) handleSetCurrencyAllowance(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}
	currency, err := currencyVar(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	var req setCurrencyAllowanceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.fees.SetCurrencyAllowance(r.Context(), caller, currency, req.Allowed); err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"currency": currency.String(),
		"allowed":  req.Allowed,
	})
}

// Events

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	filter := &repository.EventFilter{Limit: 100}
	q := r.URL.Query()
	if v := q.Get("type"); v != "" {
		t := domain.EventType(v)
		filter.Type = &t
	}
	if v := q.Get("after_seq"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			filter.AfterSeq = n
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			filter.Limit = n
		}
	}

	events, err := s.fees.GetEvents(r.Context(), filter)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	if events == nil {
		events = []*domain.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}
