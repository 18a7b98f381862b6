package marketplace

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"green-hydrogen/credit-platform/credit-platform-backend/internal/audit"
	"green-hydrogen/credit-platform/credit-platform-backend/internal/ledger"
	"green-hydrogen/credit-platform/credit-platform-backend/pkg/apperrors"
)

type Service interface {
	CreateListing(ctx context.Context, caller string, req CreateListingRequest) (*Listing, error)
	PurchaseCredits(ctx context.Context, caller string, req PurchaseRequest) (*Purchase, error)
	UpdateListingPrice(ctx context.Context, caller string, listingID, newPrice int64) error
	CancelListing(ctx context.Context, caller string, listingID int64) error
	Get(ctx context.Context, listingID int64) (*Listing, error)
	List(ctx context.Context, activeOnly bool, limit int) ([]Listing, error)
	GetMarketplaceStats(ctx context.Context) (*Stats, error)
}

type CreateListingRequest struct {
	Amount       int64 `json:"amount"`
	PricePerUnit int64 `json:"price_per_unit"`
}

type PurchaseRequest struct {
	ListingID    int64 `json:"listing_id"`
	Amount       int64 `json:"amount"`
	PaymentValue int64 `json:"payment_value"`
}

// Config carries settlement parameters. OperatorAddress is the account
// sellers grant their allowance to; it plays the role the marketplace
// contract address plays on-chain.
type Config struct {
	FeeBasisPoints  int64
	FeeRecipient    string
	OperatorAddress string
}

type marketplaceService struct {
	store    Store
	recorder *audit.Recorder
	logger   *zap.Logger
	cfg      Config
}

func NewService(store Store, recorder *audit.Recorder, logger *zap.Logger, cfg Config) Service {
	if cfg.OperatorAddress == "" {
		cfg.OperatorAddress = "marketplace-operator"
	}
	return &marketplaceService{store: store, recorder: recorder, logger: logger, cfg: cfg}
}

// CreateListing records a sell offer. Tokens are not escrowed here; the
// seller's balance and allowance are checked at settlement time only, which
// means a listing can fail at purchase time rather than being prevented
// here. That trade-off is inherited behavior, kept deliberately.
func (s *marketplaceService) CreateListing(ctx context.Context, caller string, req CreateListingRequest) (*Listing, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: listing amount must be positive", apperrors.ErrInvalidInput)
	}
	if req.PricePerUnit <= 0 {
		return nil, fmt.Errorf("%w: price per unit must be positive", apperrors.ErrInvalidInput)
	}
	// The full listing value must stay representable or settlement math wraps.
	if req.Amount > math.MaxInt64/req.PricePerUnit {
		return nil, fmt.Errorf("%w: listing value overflows", apperrors.ErrInvalidInput)
	}

	listingTime := time.Now().UTC()
	listing := &Listing{
		Seller:       caller,
		Amount:       req.Amount,
		PricePerUnit: req.PricePerUnit,
		Active:       true,
		CreatedAt:    listingTime,
		UpdatedAt:    listingTime,
	}
	if err := s.store.CreateListing(ctx, listing); err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.EventListingCreated, map[string]interface{}{
		"listing_id": listing.ID,
		"seller":     listing.Seller,
		"amount":     listing.Amount,
		"price":      listing.PricePerUnit,
	})
	return listing, nil
}

// PurchaseCredits settles a purchase atomically: credits move seller ->
// buyer over the ledger's delegated-transfer path, the payment is split
// into seller proceeds, platform fee and buyer refund, and the listing is
// decremented, deactivating at zero.
func (s *marketplaceService) PurchaseCredits(ctx context.Context, caller string, req PurchaseRequest) (*Purchase, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: purchase amount must be positive", apperrors.ErrInvalidInput)
	}

	var purchase *Purchase
	var deactivated bool
	err := s.store.WithinTx(ctx, func(tx Store) error {
		listing, err := tx.GetListing(ctx, req.ListingID)
		if err != nil {
			return err
		}
		if listing == nil {
			return fmt.Errorf("%w: %d", apperrors.ErrUnknownListing, req.ListingID)
		}
		if !listing.Active {
			return fmt.Errorf("%w: %d", apperrors.ErrInactiveListing, req.ListingID)
		}
		if listing.Seller == caller {
			return fmt.Errorf("%w: seller cannot buy own listing", apperrors.ErrInvalidInput)
		}
		if req.Amount > listing.Amount {
			return fmt.Errorf("%w: %d > %d", apperrors.ErrAmountExceedsListing, req.Amount, listing.Amount)
		}

		// Wrapped products would turn the payment check into a bypass, so
		// both are guarded even though creation already bounds the listing.
		if listing.PricePerUnit > math.MaxInt64/req.Amount {
			return fmt.Errorf("%w: purchase value overflows", apperrors.ErrInvalidInput)
		}
		required := req.Amount * listing.PricePerUnit
		if req.PaymentValue < required {
			return fmt.Errorf("%w: got %d, need %d", apperrors.ErrInsufficientPayment, req.PaymentValue, required)
		}
		if s.cfg.FeeBasisPoints > 0 && required > math.MaxInt64/s.cfg.FeeBasisPoints {
			return fmt.Errorf("%w: fee value overflows", apperrors.ErrInvalidInput)
		}
		fee := required * s.cfg.FeeBasisPoints / 10_000
		settledAt := time.Now().UTC()

		// Lazy escrow: the seller's balance and allowance are only now
		// checked, by the ledger itself.
		err = ledger.ApplyTransferFrom(ctx, tx.Ledger(), s.cfg.OperatorAddress, listing.Seller, caller, req.Amount, settledAt)
		if err != nil {
			if errors.Is(err, apperrors.ErrPaused) {
				return err
			}
			return fmt.Errorf("%w: %s", apperrors.ErrTransferFailed, err)
		}

		remaining, err := tx.DecrementAmount(ctx, listing.ID, req.Amount, settledAt)
		if err != nil {
			return err
		}
		if remaining == 0 {
			if err := tx.SetActive(ctx, listing.ID, false, settledAt); err != nil {
				return err
			}
			deactivated = true
		}

		purchase = &Purchase{
			ListingID:      listing.ID,
			Buyer:          caller,
			Amount:         req.Amount,
			TotalPaid:      required,
			FeePaid:        fee,
			SellerProceeds: required - fee,
			Refund:         req.PaymentValue - required,
			OccurredAt:     settledAt,
		}
		return tx.RecordPurchase(ctx, purchase)
	})
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.EventCreditsPurchased, map[string]interface{}{
		"listing_id":    purchase.ListingID,
		"buyer":         purchase.Buyer,
		"amount":        purchase.Amount,
		"total_paid":    purchase.TotalPaid,
		"fee_paid":      purchase.FeePaid,
		"fee_recipient": s.cfg.FeeRecipient,
	})
	if deactivated {
		s.logger.Info("listing sold out",
			zap.Int64("listing_id", purchase.ListingID),
			zap.String("buyer", purchase.Buyer))
	}
	return purchase, nil
}

func (s *marketplaceService) UpdateListingPrice(ctx context.Context, caller string, listingID, newPrice int64) error {
	if newPrice <= 0 {
		return fmt.Errorf("%w: price per unit must be positive", apperrors.ErrInvalidInput)
	}

	listing, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return err
	}
	if listing == nil {
		return fmt.Errorf("%w: %d", apperrors.ErrUnknownListing, listingID)
	}
	if listing.Seller != caller {
		return fmt.Errorf("%w: listing %d", apperrors.ErrNotSeller, listingID)
	}
	if !listing.Active {
		return fmt.Errorf("%w: %d", apperrors.ErrInactiveListing, listingID)
	}
	if listing.Amount > math.MaxInt64/newPrice {
		return fmt.Errorf("%w: listing value overflows", apperrors.ErrInvalidInput)
	}
	if err := s.store.UpdatePrice(ctx, listingID, newPrice, time.Now().UTC()); err != nil {
		return err
	}

	s.recorder.Record(ctx, audit.EventListingPriceUpdated, map[string]interface{}{
		"listing_id": listingID,
		"new_price":  newPrice,
	})
	return nil
}

// CancelListing deactivates a listing. No balance movement is needed since
// nothing was escrowed at creation.
func (s *marketplaceService) CancelListing(ctx context.Context, caller string, listingID int64) error {
	listing, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return err
	}
	if listing == nil {
		return fmt.Errorf("%w: %d", apperrors.ErrUnknownListing, listingID)
	}
	if listing.Seller != caller {
		return fmt.Errorf("%w: listing %d", apperrors.ErrNotSeller, listingID)
	}
	if !listing.Active {
		return fmt.Errorf("%w: %d", apperrors.ErrInactiveListing, listingID)
	}
	if err := s.store.SetActive(ctx, listingID, false, time.Now().UTC()); err != nil {
		return err
	}

	s.recorder.Record(ctx, audit.EventListingCancelled, map[string]interface{}{
		"listing_id": listingID,
	})
	return nil
}

func (s *marketplaceService) Get(ctx context.Context, listingID int64) (*Listing, error) {
	listing, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing == nil {
		return nil, fmt.Errorf("%w: %d", apperrors.ErrUnknownListing, listingID)
	}
	return listing, nil
}

func (s *marketplaceService) List(ctx context.Context, activeOnly bool, limit int) ([]Listing, error) {
	return s.store.ListListings(ctx, activeOnly, limit)
}

func (s *marketplaceService) GetMarketplaceStats(ctx context.Context) (*Stats, error) {
	stats, err := s.store.GetStats(ctx)
	if err != nil {
		return nil, err
	}
	stats.FeeBasisPoints = s.cfg.FeeBasisPoints
	return stats, nil
}
