package bootstrap

// SeedData is the parsed contents of a seed file: the initial marketplace
// parameters and any demo listings to create through the API.
type SeedData struct {
	// FeeRateBps replaces the fee rate when non-negative; -1 leaves the
	// deployed rate untouched.
	FeeRateBps int32 `json:"fee_rate_bps"`

	// Currencies are token contract addresses to allow-list.
	Currencies []string `json:"currencies"`

	// Listings are created in file order.
	Listings []SeedListing `json:"listings"`
}

// SeedListing describes one listing to create. SellerKey names the API key
// used for the request, since listings can only be created by their seller.
type SeedListing struct {
	SellerKey  string `json:"seller_key"`
	Collection string `json:"collection"`
	TokenID    string `json:"token_id"`
	Price      string `json:"price"`
	Currency   string `json:"currency,omitempty"`
}

// SeedResult tracks the outcome of a seeding run.
type SeedResult struct {
	TotalProcessed int
	Succeeded      int
	Failed         int
	Skipped        int
	Errors         []SeedError
}

// SeedError records one failed entity.
type SeedError struct {
	Entity string
	Reason string
	Err    error
}

// AddSuccess increments the success counter.
func (r *SeedResult) AddSuccess() {
	r.TotalProcessed++
	r.Succeeded++
}

// AddFailure increments the failure counter and records the error.
func (r *SeedResult) AddFailure(entity, reason string, err error) {
	r.TotalProcessed++
	r.Failed++
	r.Errors = append(r.Errors, SeedError{Entity: entity, Reason: reason, Err: err})
}

// AddSkipped increments the skipped counter.
func (r *SeedResult) AddSkipped() {
	r.TotalProcessed++
	r.Skipped++
}
