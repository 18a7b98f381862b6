package marketplace

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"green-hydrogen/credit-platform/credit-platform-backend/internal/ledger"
)

// Store is the marketplace's transactional data access surface. Ledger
// exposes the credit ledger bound to the same transaction so settlement
// moves tokens and decrements the listing atomically.
type Store interface {
	WithinTx(ctx context.Context, fn func(Store) error) error
	Ledger() ledger.Store

	CreateListing(ctx context.Context, listing *Listing) error
	GetListing(ctx context.Context, id int64) (*Listing, error)
	ListListings(ctx context.Context, activeOnly bool, limit int) ([]Listing, error)
	UpdatePrice(ctx context.Context, id, newPrice int64, updatedAt time.Time) error
	SetActive(ctx context.Context, id int64, active bool, updatedAt time.Time) error
	DecrementAmount(ctx context.Context, id, amount int64, updatedAt time.Time) (int64, error)

	RecordPurchase(ctx context.Context, purchase *Purchase) error
	GetStats(ctx context.Context) (*Stats, error)
	InsertStatsSnapshot(ctx context.Context, snapshot *StatsSnapshot) error
}

type postgresStore struct {
	db *sqlx.DB // nil when tx-scoped
	q  sqlx.ExtContext
}

func NewStore(db *sqlx.DB) Store {
	return &postgresStore{db: db, q: db}
}

func (s *postgresStore) WithinTx(ctx context.Context, fn func(Store) error) error {
	if s.db == nil {
		return fn(s)
	}
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	if err := fn(&postgresStore{q: tx}); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *postgresStore) Ledger() ledger.Store {
	return ledger.NewTxStore(s.q)
}

func (s *postgresStore) CreateListing(ctx context.Context, listing *Listing) error {
	query := `
		INSERT INTO listings (seller, amount, price_per_unit, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	row := s.q.QueryRowxContext(ctx, query,
		listing.Seller, listing.Amount, listing.PricePerUnit,
		listing.Active, listing.CreatedAt, listing.UpdatedAt)
	return row.Scan(&listing.ID)
}

func (s *postgresStore) GetListing(ctx context.Context, id int64) (*Listing, error) {
	var listing Listing
	err := sqlx.GetContext(ctx, s.q, &listing, "SELECT * FROM listings WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &listing, err
}

func (s *postgresStore) ListListings(ctx context.Context, activeOnly bool, limit int) ([]Listing, error) {
	query := "SELECT * FROM listings"
	if activeOnly {
		query += " WHERE active = true"
	}
	query += " ORDER BY id DESC LIMIT $1"

	var listings []Listing
	err := sqlx.SelectContext(ctx, s.q, &listings, query, limit)
	return listings, err
}

func (s *postgresStore) UpdatePrice(ctx context.Context, id, newPrice int64, updatedAt time.Time) error {
	_, err := s.q.ExecContext(ctx,
		"UPDATE listings SET price_per_unit = $1, updated_at = $2 WHERE id = $3",
		newPrice, updatedAt, id)
	return err
}

func (s *postgresStore) SetActive(ctx context.Context, id int64, active bool, updatedAt time.Time) error {
	_, err := s.q.ExecContext(ctx,
		"UPDATE listings SET active = $1, updated_at = $2 WHERE id = $3",
		active, updatedAt, id)
	return err
}

func (s *postgresStore) DecrementAmount(ctx context.Context, id, amount int64, updatedAt time.Time) (int64, error) {
	var remaining int64
	err := sqlx.GetContext(ctx, s.q, &remaining, `
		UPDATE listings SET amount = amount - $1, updated_at = $2
		WHERE id = $3 AND amount >= $1
		RETURNING amount`,
		amount, updatedAt, id)
	return remaining, err
}

func (s *postgresStore) RecordPurchase(ctx context.Context, purchase *Purchase) error {
	query := `
		INSERT INTO purchases (
			listing_id, buyer, amount, total_paid, fee_paid, seller_proceeds, refund, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	row := s.q.QueryRowxContext(ctx, query,
		purchase.ListingID, purchase.Buyer, purchase.Amount, purchase.TotalPaid,
		purchase.FeePaid, purchase.SellerProceeds, purchase.Refund, purchase.OccurredAt)
	return row.Scan(&purchase.ID)
}

func (s *postgresStore) GetStats(ctx context.Context) (*Stats, error) {
	var stats Stats
	err := sqlx.GetContext(ctx, s.q, &stats, `
		SELECT
			(SELECT COUNT(*) FROM listings)                          AS total_listings,
			(SELECT COUNT(*) FROM listings WHERE active = true)      AS active_listings,
			(SELECT COALESCE(SUM(amount), 0) FROM purchases)         AS lifetime_volume`)
	return &stats, err
}

func (s *postgresStore) InsertStatsSnapshot(ctx context.Context, snapshot *StatsSnapshot) error {
	query := `
		INSERT INTO marketplace_stats_snapshots (
			total_listings, active_listings, lifetime_volume, captured_at
		) VALUES ($1, $2, $3, $4)
		RETURNING id`
	row := s.q.QueryRowxContext(ctx, query,
		snapshot.TotalListings, snapshot.ActiveListings, snapshot.LifetimeVolume, snapshot.CapturedAt)
	return row.Scan(&snapshot.ID)
}
