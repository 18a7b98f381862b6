package marketplace

import (
	"time"
)

// Listing is a standing sell offer. Nothing is escrowed at creation time:
// balance and allowance are checked lazily at settlement, so a listing can
// go stale if the seller moves credits away (see the under-collateralized
// sweep in cmd/workers).
type Listing struct {
	ID           int64     `json:"id" db:"id"`
	Seller       string    `json:"seller" db:"seller"`
	Amount       int64     `json:"amount" db:"amount"`
	PricePerUnit int64     `json:"price_per_unit" db:"price_per_unit"`
	Active       bool      `json:"active" db:"active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Purchase records one settlement against a listing, including the payment
// split: seller proceeds, platform fee and buyer refund always sum to the
// payment value supplied.
type Purchase struct {
	ID             int64     `json:"id" db:"id"`
	ListingID      int64     `json:"listing_id" db:"listing_id"`
	Buyer          string    `json:"buyer" db:"buyer"`
	Amount         int64     `json:"amount" db:"amount"`
	TotalPaid      int64     `json:"total_paid" db:"total_paid"`
	FeePaid        int64     `json:"fee_paid" db:"fee_paid"`
	SellerProceeds int64     `json:"seller_proceeds" db:"seller_proceeds"`
	Refund         int64     `json:"refund" db:"refund"`
	OccurredAt     time.Time `json:"occurred_at" db:"occurred_at"`
}

// Stats is the live marketplace aggregate.
type Stats struct {
	TotalListings  int64 `json:"total_listings" db:"total_listings"`
	ActiveListings int64 `json:"active_listings" db:"active_listings"`
	LifetimeVolume int64 `json:"lifetime_volume" db:"lifetime_volume"`
	FeeBasisPoints int64 `json:"fee_basis_points"`
}

// StatsSnapshot is a periodic capture written by the stats worker.
type StatsSnapshot struct {
	ID             int64     `json:"id" db:"id"`
	TotalListings  int64     `json:"total_listings" db:"total_listings"`
	ActiveListings int64     `json:"active_listings" db:"active_listings"`
	LifetimeVolume int64     `json:"lifetime_volume" db:"lifetime_volume"`
	CapturedAt     time.Time `json:"captured_at" db:"captured_at"`
}
