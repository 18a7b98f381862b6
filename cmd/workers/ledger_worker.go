package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"green-hydrogen/credit-platform/credit-platform-backend/internal/config"
	"green-hydrogen/credit-platform/credit-platform-backend/internal/marketplace"
)

// LedgerWorker runs the periodic background jobs: marketplace stats
// snapshots, the stale-listing sweep and the supply conservation check.
type LedgerWorker struct {
	db       *sqlx.DB
	market   marketplace.Store
	logger   *zap.Logger
	operator string
}

func NewLedgerWorker(db *sqlx.DB, logger *zap.Logger, operator string) *LedgerWorker {
	return &LedgerWorker{
		db:       db,
		market:   marketplace.NewStore(db),
		logger:   logger,
		operator: operator,
	}
}

// snapshotStats captures the live marketplace aggregate for trend reporting.
func (w *LedgerWorker) snapshotStats(ctx context.Context) {
	stats, err := w.market.GetStats(ctx)
	if err != nil {
		w.logger.Error("Failed to read marketplace stats", zap.Error(err))
		return
	}

	snapshot := &marketplace.StatsSnapshot{
		TotalListings:  stats.TotalListings,
		ActiveListings: stats.ActiveListings,
		LifetimeVolume: stats.LifetimeVolume,
		CapturedAt:     time.Now().UTC(),
	}
	if err := w.market.InsertStatsSnapshot(ctx, snapshot); err != nil {
		w.logger.Error("Failed to write stats snapshot", zap.Error(err))
		return
	}

	w.logger.Info("Marketplace stats snapshot written",
		zap.Int64("snapshot_id", snapshot.ID),
		zap.Int64("active_listings", snapshot.ActiveListings),
		zap.Int64("lifetime_volume", snapshot.LifetimeVolume))
}

// StaleListing is an active listing the seller can no longer settle in full.
type StaleListing struct {
	ID        int64  `db:"id"`
	Seller    string `db:"seller"`
	Amount    int64  `db:"amount"`
	Balance   int64  `db:"balance"`
	Allowance int64  `db:"allowance"`
}

// sweepStaleListings flags listings whose seller moved credits away or
// revoked the operator allowance after listing. Nothing is escrowed at
// creation, so these listings fail at purchase time; the sweep surfaces them
// for support before a buyer trips over one.
func (w *LedgerWorker) sweepStaleListings(ctx context.Context) {
	query := `
		SELECT l.id, l.seller, l.amount,
			COALESCE(a.balance, 0) AS balance,
			COALESCE(al.amount, 0) AS allowance
		FROM listings l
		LEFT JOIN accounts a ON a.address = l.seller
		LEFT JOIN allowances al
			ON al.owner_address = l.seller AND al.spender_address = $1
		WHERE l.active = true
			AND (COALESCE(a.balance, 0) < l.amount OR COALESCE(al.amount, 0) < l.amount)
		ORDER BY l.id`

	var stale []StaleListing
	if err := w.db.SelectContext(ctx, &stale, query, w.operator); err != nil {
		w.logger.Error("Failed to sweep listings", zap.Error(err))
		return
	}

	for _, listing := range stale {
		w.logger.Warn("Listing is under-collateralized",
			zap.Int64("listing_id", listing.ID),
			zap.String("seller", listing.Seller),
			zap.Int64("listed_amount", listing.Amount),
			zap.Int64("seller_balance", listing.Balance),
			zap.Int64("operator_allowance", listing.Allowance))
	}
	if len(stale) > 0 {
		w.logger.Info("Stale listing sweep complete", zap.Int("flagged", len(stale)))
	}
}

// checkConservation verifies the supply invariant: circulating balances plus
// retired credits equal everything ever minted.
func (w *LedgerWorker) checkConservation(ctx context.Context) {
	var books struct {
		Balances     int64 `db:"balances"`
		TotalMinted  int64 `db:"total_minted"`
		TotalRetired int64 `db:"total_retired"`
	}
	query := `
		SELECT
			(SELECT COALESCE(SUM(balance), 0) FROM accounts) AS balances,
			total_minted, total_retired
		FROM ledger_state WHERE id = 1`
	if err := w.db.GetContext(ctx, &books, query); err != nil {
		w.logger.Error("Failed to read ledger books", zap.Error(err))
		return
	}

	if books.Balances+books.TotalRetired != books.TotalMinted {
		w.logger.Error("Supply conservation violated",
			zap.Int64("sum_balances", books.Balances),
			zap.Int64("total_retired", books.TotalRetired),
			zap.Int64("total_minted", books.TotalMinted))
		return
	}
	w.logger.Debug("Supply conservation holds",
		zap.Int64("total_minted", books.TotalMinted))
}

func main() {
	godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.LoadConfig("config.json")
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	db, err := sqlx.Connect("postgres", cfg.Database.GetDatabaseURL())
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Connected to database")

	worker := NewLedgerWorker(db, logger, cfg.Marketplace.OperatorAddress)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler := cron.New()
	scheduler.AddFunc("@every 5m", func() { worker.snapshotStats(ctx) })
	scheduler.AddFunc("@every 10m", func() { worker.sweepStaleListings(ctx) })
	scheduler.AddFunc("@every 1h", func() { worker.checkConservation(ctx) })
	scheduler.Start()

	logger.Info("Ledger worker started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutdown signal received")
	cancel()
	<-scheduler.Stop().Done()
	logger.Info("Ledger worker stopped")
}
