package marketplace

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"green-hydrogen/credit-platform/credit-platform-backend/internal/audit"
	"green-hydrogen/credit-platform/credit-platform-backend/internal/claims"
	"green-hydrogen/credit-platform/credit-platform-backend/internal/ledger"
	"green-hydrogen/credit-platform/credit-platform-backend/internal/producers"
	"green-hydrogen/credit-platform/credit-platform-backend/pkg/apperrors"
)

// fakeLedger is an in-memory ledger.Store covering the settlement path:
// allowance spend, pause check, balance movement.
type fakeLedger struct {
	paused     bool
	balances   map[string]int64
	allowances map[string]int64 // owner|spender
	transfers  []ledger.TransferEvent
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		balances:   map[string]int64{},
		allowances: map[string]int64{},
	}
}

func (f *fakeLedger) WithinTx(ctx context.Context, fn func(ledger.Store) error) error { return fn(f) }
func (f *fakeLedger) Claims() claims.Repository                                       { return nil }
func (f *fakeLedger) Producers() producers.Repository                                 { return nil }

func (f *fakeLedger) GetState(context.Context) (*ledger.State, error) {
	return &ledger.State{Paused: f.paused}, nil
}
func (f *fakeLedger) SetPaused(_ context.Context, paused bool) error { f.paused = paused; return nil }
func (f *fakeLedger) BumpGateVersion(context.Context) (int64, error) { return 0, nil }
func (f *fakeLedger) AddMinted(context.Context, int64) error         { return nil }
func (f *fakeLedger) AddRetiredTotal(context.Context, int64) error   { return nil }

func (f *fakeLedger) GetAccount(_ context.Context, address string) (*ledger.Account, error) {
	return &ledger.Account{Address: address, Balance: f.balances[address]}, nil
}

func (f *fakeLedger) AddBalance(_ context.Context, address string, amount int64) error {
	f.balances[address] += amount
	return nil
}

func (f *fakeLedger) SubBalance(_ context.Context, address string, amount int64) error {
	if f.balances[address] < amount {
		return apperrors.ErrInsufficientBalance
	}
	f.balances[address] -= amount
	return nil
}

func (f *fakeLedger) AddAccountRetired(context.Context, string, int64) error { return nil }

func (f *fakeLedger) SumBalances(context.Context) (int64, error) {
	var sum int64
	for _, b := range f.balances {
		sum += b
	}
	return sum, nil
}

func (f *fakeLedger) GetAllowance(_ context.Context, owner, spender string) (int64, error) {
	return f.allowances[owner+"|"+spender], nil
}

func (f *fakeLedger) SetAllowance(_ context.Context, owner, spender string, amount int64) error {
	f.allowances[owner+"|"+spender] = amount
	return nil
}

func (f *fakeLedger) SpendAllowance(_ context.Context, owner, spender string, amount int64) error {
	key := owner + "|" + spender
	if f.allowances[key] < amount {
		return apperrors.ErrInsufficientAllowance
	}
	f.allowances[key] -= amount
	return nil
}

func (f *fakeLedger) CreateBatch(context.Context, *ledger.CreditBatch) error { return nil }

func (f *fakeLedger) ListBatches(context.Context, *string, int) ([]ledger.CreditBatch, error) {
	return nil, nil
}

func (f *fakeLedger) RecordTransfer(_ context.Context, event *ledger.TransferEvent) error {
	f.transfers = append(f.transfers, *event)
	return nil
}

func (f *fakeLedger) CreateRetirement(context.Context, *ledger.Retirement) error { return nil }

func (f *fakeLedger) GetRetirement(context.Context, int64) (*ledger.Retirement, error) {
	return nil, nil
}

// MockStore is a mock implementation of the Store interface
type MockStore struct {
	mock.Mock
	ledger *fakeLedger
}

func NewMockStore() *MockStore {
	return &MockStore{ledger: newFakeLedger()}
}

func (m *MockStore) WithinTx(ctx context.Context, fn func(Store) error) error {
	return fn(m)
}

func (m *MockStore) Ledger() ledger.Store { return m.ledger }

func (m *MockStore) CreateListing(ctx context.Context, listing *Listing) error {
	args := m.Called(ctx, listing)
	listing.ID = 1
	return args.Error(0)
}

func (m *MockStore) GetListing(ctx context.Context, id int64) (*Listing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Listing), args.Error(1)
}

func (m *MockStore) ListListings(ctx context.Context, activeOnly bool, limit int) ([]Listing, error) {
	args := m.Called(ctx, activeOnly, limit)
	return args.Get(0).([]Listing), args.Error(1)
}

func (m *MockStore) UpdatePrice(ctx context.Context, id, newPrice int64, updatedAt time.Time) error {
	args := m.Called(ctx, id, newPrice, updatedAt)
	return args.Error(0)
}

func (m *MockStore) SetActive(ctx context.Context, id int64, active bool, updatedAt time.Time) error {
	args := m.Called(ctx, id, active, updatedAt)
	return args.Error(0)
}

func (m *MockStore) DecrementAmount(ctx context.Context, id, amount int64, updatedAt time.Time) (int64, error) {
	args := m.Called(ctx, id, amount, updatedAt)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) RecordPurchase(ctx context.Context, purchase *Purchase) error {
	args := m.Called(ctx, purchase)
	purchase.ID = 1
	return args.Error(0)
}

func (m *MockStore) GetStats(ctx context.Context) (*Stats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Stats), args.Error(1)
}

func (m *MockStore) InsertStatsSnapshot(ctx context.Context, snapshot *StatsSnapshot) error {
	args := m.Called(ctx, snapshot)
	return args.Error(0)
}

type stubAuditRepo struct{}

func (stubAuditRepo) InsertEvent(_ context.Context, event *audit.Event) error {
	event.ID = 1
	return nil
}

func (stubAuditRepo) ListEvents(context.Context, *audit.EventType, *time.Time, int) ([]audit.Event, error) {
	return nil, nil
}

func newTestService(store Store) Service {
	recorder := audit.NewRecorder(stubAuditRepo{}, zap.NewNop(), nil)
	return NewService(store, recorder, zap.NewNop(), Config{
		FeeBasisPoints:  250,
		FeeRecipient:    "platform-treasury",
		OperatorAddress: "marketplace-operator",
	})
}

func activeListing(seller string, amount, price int64) *Listing {
	return &Listing{
		ID:           1,
		Seller:       seller,
		Amount:       amount,
		PricePerUnit: price,
		Active:       true,
	}
}

func TestCreateListing(t *testing.T) {
	store := NewMockStore()
	service := newTestService(store)
	ctx := context.Background()

	store.On("CreateListing", ctx, mock.AnythingOfType("*marketplace.Listing")).Return(nil)

	listing, err := service.CreateListing(ctx, "seller", CreateListingRequest{Amount: 200, PricePerUnit: 5})

	assert.NoError(t, err)
	assert.True(t, listing.Active)
	// No escrow: the seller's ledger balance is untouched.
	assert.Equal(t, int64(0), store.ledger.balances["seller"])
	store.AssertExpectations(t)
}

func TestCreateListingValidation(t *testing.T) {
	store := NewMockStore()
	service := newTestService(store)
	ctx := context.Background()

	_, err := service.CreateListing(ctx, "seller", CreateListingRequest{Amount: 0, PricePerUnit: 5})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = service.CreateListing(ctx, "seller", CreateListingRequest{Amount: 200, PricePerUnit: -1})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	store.AssertNotCalled(t, "CreateListing")
}

func TestCreateListingValueOverflow(t *testing.T) {
	store := NewMockStore()
	service := newTestService(store)
	ctx := context.Background()

	_, err := service.CreateListing(ctx, "seller", CreateListingRequest{
		Amount:       2,
		PricePerUnit: math.MaxInt64/2 + 1,
	})

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	store.AssertNotCalled(t, "CreateListing")
}

// A price set high enough that amount*price wraps negative must not turn
// the payment check into a bypass: a zero-value payment gets rejected and
// no credits move.
func TestPurchaseValueOverflow(t *testing.T) {
	store := NewMockStore()
	service := newTestService(store)
	ctx := context.Background()

	store.ledger.balances["seller"] = 500
	store.ledger.allowances["seller|marketplace-operator"] = 500

	store.On("GetListing", ctx, int64(1)).Return(activeListing("seller", 10, int64(1)<<62), nil)

	_, err := service.PurchaseCredits(ctx, "buyer", PurchaseRequest{
		ListingID:    1,
		Amount:       3,
		PaymentValue: 0,
	})

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Equal(t, int64(0), store.ledger.balances["buyer"])
	assert.Equal(t, int64(500), store.ledger.balances["seller"])
	store.AssertNotCalled(t, "DecrementAmount")
	store.AssertNotCalled(t, "RecordPurchase")
}

func TestPurchaseCredits(t *testing.T) {
	store := NewMockStore()
	service := newTestService(store)
	ctx := context.Background()

	store.ledger.balances["seller"] = 500
	store.ledger.allowances["seller|marketplace-operator"] = 500

	store.On("GetListing", ctx, int64(1)).Return(activeListing("seller", 200, 5), nil)
	store.On("DecrementAmount", ctx, int64(1), int64(100), mock.AnythingOfType("time.Time")).Return(int64(100), nil)
	store.On("RecordPurchase", ctx, mock.AnythingOfType("*marketplace.Purchase")).Return(nil)

	purchase, err := service.PurchaseCredits(ctx, "buyer", PurchaseRequest{
		ListingID:    1,
		Amount:       100,
		PaymentValue: 500,
	})

	assert.NoError(t, err)
	assert.Equal(t, int64(500), purchase.TotalPaid)
	assert.Equal(t, int64(12), purchase.FeePaid) // 500 * 250 / 10000
	assert.Equal(t, int64(488), purchase.SellerProceeds)
	assert.Equal(t, int64(0), purchase.Refund)

	assert.Equal(t, int64(400), store.ledger.balances["seller"])
	assert.Equal(t, int64(100), store.ledger.balances["buyer"])
	assert.Equal(t, int64(400), store.ledger.allowances["seller|marketplace-operator"])

	// Listing stays active at remaining 100.
	store.AssertNotCalled(t, "SetActive")
	store.AssertExpectations(t)
}

func TestPurchaseOverpaymentRefunded(t *testing.T) {
	store := NewMockStore()
	service := newTestService(store)
	ctx := context.Background()

	store.ledger.balances["seller"] = 500
	store.ledger.allowances["seller|marketplace-operator"] = 500

	store.On("GetListing", ctx, int64(1)).Return(activeListing("seller", 200, 5), nil)
	store.On("DecrementAmount", ctx, int64(1), int64(100), mock.AnythingOfType("time.Time")).Return(int64(100), nil)
	store.On("RecordPurchase", ctx, mock.AnythingOfType("*marketplace.Purchase")).Return(nil)

	purchase, err := service.PurchaseCredits(ctx, "buyer", PurchaseRequest{
		ListingID:    1,
		Amount:       100,
		PaymentValue: 650,
	})

	assert.NoError(t, err)
	assert.Equal(t, int64(500), purchase.TotalPaid)
	assert.Equal(t, int64(150), purchase.Refund)
}

func TestPurchaseExceedsListing(t *testing.T) {
	store := NewMockStore()
	service := newTestService(store)
	ctx := context.Background()

	store.On("GetListing", ctx, int64(1)).Return(activeListing("seller", 100, 5), nil)

	_, err := service.PurchaseCredits(ctx, "buyer", PurchaseRequest{
		ListingID:    1,
		Amount:       150,
		PaymentValue: 750,
	})

	assert.ErrorIs(t, err, apperrors.ErrAmountExceedsListing)
	store.AssertNotCalled(t, "DecrementAmount")
}

func TestPurchaseInsufficientPayment(t *testing.T) {
	store := NewMockStore()
	service := newTestService(store)
	ctx := context.Background()

	store.On("GetListing", ctx, int64(1)).Return(activeListing("seller", 200, 5), nil)

	_, err := service.PurchaseCredits(ctx, "buyer", PurchaseRequest{
		ListingID:    1,
		Amount:       100,
		PaymentValue: 499,
	})

	assert.ErrorIs(t, err, apperrors.ErrInsufficientPayment)
}

func TestPurchaseDeactivatesSoldOutListing(t *testing.T) {
	store := NewMockStore()
	service := newTestService(store)
	ctx := context.Background()

	store.ledger.balances["seller"] = 500
	store.ledger.allowances["seller|marketplace-operator"] = 500

	store.On("GetListing", ctx, int64(1)).Return(activeListing("seller", 100, 5), nil)
	store.On("DecrementAmount", ctx, int64(1), int64(100), mock.AnythingOfType("time.Time")).Return(int64(0), nil)
	store.On("SetActive", ctx, int64(1), false, mock.AnythingOfType("time.Time")).Return(nil)
	store.On("RecordPurchase", ctx, mock.AnythingOfType("*marketplace.Purchase")).Return(nil)

	_, err := service.PurchaseCredits(ctx, "buyer", PurchaseRequest{
		ListingID:    1,
		Amount:       100,
		PaymentValue: 500,
	})

	assert.NoError(t, err)
	store.AssertExpectations(t)
}

// An under-collateralized listing fails at settlement, not at creation: the
// seller granted no allowance, so the delegated transfer is refused.
func TestPurchaseStaleListing(t *testing.T) {
	store := NewMockStore()
	service := newTestService(store)
	ctx := context.Background()

	store.ledger.balances["seller"] = 500

	store.On("GetListing", ctx, int64(1)).Return(activeListing("seller", 200, 5), nil)

	_, err := service.PurchaseCredits(ctx, "buyer", PurchaseRequest{
		ListingID:    1,
		Amount:       100,
		PaymentValue: 500,
	})

	assert.ErrorIs(t, err, apperrors.ErrTransferFailed)
	store.AssertNotCalled(t, "DecrementAmount")
}

func TestPurchaseOwnListing(t *testing.T) {
	store := NewMockStore()
	service := newTestService(store)
	ctx := context.Background()

	store.On("GetListing", ctx, int64(1)).Return(activeListing("seller", 200, 5), nil)

	_, err := service.PurchaseCredits(ctx, "seller", PurchaseRequest{
		ListingID:    1,
		Amount:       100,
		PaymentValue: 500,
	})

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestPurchaseWhilePaused(t *testing.T) {
	store := NewMockStore()
	service := newTestService(store)
	ctx := context.Background()

	store.ledger.paused = true
	store.ledger.allowances["seller|marketplace-operator"] = 500

	store.On("GetListing", ctx, int64(1)).Return(activeListing("seller", 200, 5), nil)

	_, err := service.PurchaseCredits(ctx, "buyer", PurchaseRequest{
		ListingID:    1,
		Amount:       100,
		PaymentValue: 500,
	})

	assert.ErrorIs(t, err, apperrors.ErrPaused)
}

func TestUpdateListingPrice(t *testing.T) {
	store := NewMockStore()
	service := newTestService(store)
	ctx := context.Background()

	store.On("GetListing", ctx, int64(1)).Return(activeListing("seller", 200, 5), nil)
	store.On("UpdatePrice", ctx, int64(1), int64(8), mock.AnythingOfType("time.Time")).Return(nil)

	assert.NoError(t, service.UpdateListingPrice(ctx, "seller", 1, 8))
	store.AssertExpectations(t)
}

func TestUpdateListingPriceNotSeller(t *testing.T) {
	store := NewMockStore()
	service := newTestService(store)
	ctx := context.Background()

	store.On("GetListing", ctx, int64(1)).Return(activeListing("seller", 200, 5), nil)

	err := service.UpdateListingPrice(ctx, "rando", 1, 8)
	assert.ErrorIs(t, err, apperrors.ErrNotSeller)
	store.AssertNotCalled(t, "UpdatePrice")
}

func TestCancelListing(t *testing.T) {
	store := NewMockStore()
	service := newTestService(store)
	ctx := context.Background()

	store.On("GetListing", ctx, int64(1)).Return(activeListing("seller", 200, 5), nil)
	store.On("SetActive", ctx, int64(1), false, mock.AnythingOfType("time.Time")).Return(nil)

	assert.NoError(t, service.CancelListing(ctx, "seller", 1))
	store.AssertExpectations(t)
}

func TestCancelInactiveListing(t *testing.T) {
	store := NewMockStore()
	service := newTestService(store)
	ctx := context.Background()

	inactive := activeListing("seller", 200, 5)
	inactive.Active = false
	store.On("GetListing", ctx, int64(1)).Return(inactive, nil)

	err := service.CancelListing(ctx, "seller", 1)
	assert.ErrorIs(t, err, apperrors.ErrInactiveListing)
}

func TestGetMarketplaceStats(t *testing.T) {
	store := NewMockStore()
	service := newTestService(store)
	ctx := context.Background()

	store.On("GetStats", ctx).Return(&Stats{TotalListings: 4, ActiveListings: 2, LifetimeVolume: 900}, nil)

	stats, err := service.GetMarketplaceStats(ctx)

	assert.NoError(t, err)
	assert.Equal(t, int64(250), stats.FeeBasisPoints)
	assert.Equal(t, int64(900), stats.LifetimeVolume)
}
