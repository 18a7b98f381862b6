package claims

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"green-hydrogen/credit-platform/credit-platform-backend/internal/audit"
	"green-hydrogen/credit-platform/credit-platform-backend/pkg/apperrors"
	"green-hydrogen/credit-platform/credit-platform-backend/pkg/authz"
	"green-hydrogen/credit-platform/credit-platform-backend/pkg/storage"
)

// MockRepository is a mock implementation of the Repository interface
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) NextNonce(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) CreateClaim(ctx context.Context, claim *Claim) error {
	args := m.Called(ctx, claim)
	return args.Error(0)
}

func (m *MockRepository) GetClaim(ctx context.Context, claimID string) (*Claim, error) {
	args := m.Called(ctx, claimID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Claim), args.Error(1)
}

func (m *MockRepository) ListClaims(ctx context.Context, producer *string, status *ClaimStatus, limit int) ([]Claim, error) {
	args := m.Called(ctx, producer, status, limit)
	return args.Get(0).([]Claim), args.Error(1)
}

func (m *MockRepository) RecordDecision(ctx context.Context, claimID string, status ClaimStatus, decidedBy string, decidedAt time.Time) error {
	args := m.Called(ctx, claimID, status, decidedBy, decidedAt)
	return args.Error(0)
}

func (m *MockRepository) MarkConsumed(ctx context.Context, claimID string, consumedAt time.Time) error {
	args := m.Called(ctx, claimID, consumedAt)
	return args.Error(0)
}

func (m *MockRepository) AddVerifier(ctx context.Context, verifier *Verifier) error {
	args := m.Called(ctx, verifier)
	return args.Error(0)
}

func (m *MockRepository) RemoveVerifier(ctx context.Context, address string) error {
	args := m.Called(ctx, address)
	return args.Error(0)
}

func (m *MockRepository) IsVerifier(ctx context.Context, address string) (bool, error) {
	args := m.Called(ctx, address)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) ListVerifiers(ctx context.Context) ([]Verifier, error) {
	args := m.Called(ctx)
	return args.Get(0).([]Verifier), args.Error(1)
}

type stubAuditRepo struct{}

func (stubAuditRepo) InsertEvent(_ context.Context, event *audit.Event) error {
	event.ID = 1
	return nil
}

func (stubAuditRepo) ListEvents(context.Context, *audit.EventType, *time.Time, int) ([]audit.Event, error) {
	return nil, nil
}

const (
	testSubmissionFee  = 100
	testMaxClaimAmount = 10_000_000
)

func newTestService(repo Repository) Service {
	policy := authz.NewStaticPolicy([]string{"admin"}, nil)
	recorder := audit.NewRecorder(stubAuditRepo{}, zap.NewNop(), nil)
	return NewService(repo, policy, storage.NewEvidencePinner(), recorder, zap.NewNop(), testSubmissionFee, testMaxClaimAmount)
}

func validSubmit() SubmitRequest {
	return SubmitRequest{
		PlantID:        "plant-alpha",
		Amount:         500,
		ProductionTime: time.Now().UTC().Add(-time.Hour),
		EvidenceRef:    "sha256-abc",
		Fee:            testSubmissionFee,
	}
}

func TestSubmitClaim(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo)
	ctx := context.Background()

	mockRepo.On("NextNonce", ctx).Return(int64(7), nil)
	mockRepo.On("CreateClaim", ctx, mock.AnythingOfType("*claims.Claim")).Return(nil)

	claim, err := service.Submit(ctx, "producer-1", validSubmit())

	assert.NoError(t, err)
	assert.NotNil(t, claim)
	assert.Equal(t, StatusSubmitted, claim.Status)
	assert.Equal(t, int64(7), claim.Nonce)
	assert.Len(t, claim.ClaimID, 64)

	mockRepo.AssertExpectations(t)
}

func TestSubmitInsufficientFee(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo)

	req := validSubmit()
	req.Fee = testSubmissionFee - 1
	_, err := service.Submit(context.Background(), "producer-1", req)

	assert.ErrorIs(t, err, apperrors.ErrInsufficientFee)
	mockRepo.AssertNotCalled(t, "CreateClaim")
}

func TestSubmitFutureTimestamp(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo)

	req := validSubmit()
	req.ProductionTime = time.Now().UTC().Add(time.Hour)
	_, err := service.Submit(context.Background(), "producer-1", req)

	assert.ErrorIs(t, err, apperrors.ErrFutureTimestamp)
	mockRepo.AssertNotCalled(t, "CreateClaim")
}

func TestSubmitAmountOverCeiling(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo)

	req := validSubmit()
	req.Amount = testMaxClaimAmount + 1
	_, err := service.Submit(context.Background(), "producer-1", req)

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	mockRepo.AssertNotCalled(t, "CreateClaim")
}

func TestSubmitNonceChangesClaimID(t *testing.T) {
	now := time.Now().UTC()
	first := ComputeClaimID("producer-1", "plant-alpha", 500, now, "sha256-abc", 1)
	second := ComputeClaimID("producer-1", "plant-alpha", 500, now, "sha256-abc", 2)

	assert.NotEqual(t, first, second)
}

func TestVerifyApprove(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo)
	ctx := context.Background()

	mockRepo.On("IsVerifier", ctx, "verifier-1").Return(true, nil)
	mockRepo.On("GetClaim", ctx, "claim-1").Return(&Claim{ClaimID: "claim-1", Status: StatusSubmitted}, nil)
	mockRepo.On("RecordDecision", ctx, "claim-1", StatusApproved, "verifier-1", mock.AnythingOfType("time.Time")).Return(nil)

	assert.NoError(t, service.Verify(ctx, "verifier-1", "claim-1", true))
	mockRepo.AssertExpectations(t)
}

func TestVerifyRequiresVerifier(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo)
	ctx := context.Background()

	mockRepo.On("IsVerifier", ctx, "rando").Return(false, nil)

	err := service.Verify(ctx, "rando", "claim-1", true)
	assert.ErrorIs(t, err, apperrors.ErrNotAuthorized)
	mockRepo.AssertNotCalled(t, "RecordDecision")
}

func TestVerifyOneShot(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo)
	ctx := context.Background()

	mockRepo.On("IsVerifier", ctx, "verifier-1").Return(true, nil)
	mockRepo.On("GetClaim", ctx, "claim-1").Return(&Claim{ClaimID: "claim-1", Status: StatusApproved}, nil)

	// Second decision is rejected whether it approves or rejects.
	assert.ErrorIs(t, service.Verify(ctx, "verifier-1", "claim-1", true), apperrors.ErrAlreadyDecided)
	assert.ErrorIs(t, service.Verify(ctx, "verifier-1", "claim-1", false), apperrors.ErrAlreadyDecided)
	mockRepo.AssertNotCalled(t, "RecordDecision")
}

func TestVerifyUnknownClaim(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo)
	ctx := context.Background()

	mockRepo.On("IsVerifier", ctx, "verifier-1").Return(true, nil)
	mockRepo.On("GetClaim", ctx, "ghost").Return(nil, nil)

	err := service.Verify(ctx, "verifier-1", "ghost", true)
	assert.ErrorIs(t, err, apperrors.ErrUnknownClaim)
}

func TestLifecycleTransitions(t *testing.T) {
	assert.True(t, Lifecycle.CanTransition(string(StatusSubmitted), string(StatusApproved)))
	assert.True(t, Lifecycle.CanTransition(string(StatusSubmitted), string(StatusRejected)))
	assert.True(t, Lifecycle.CanTransition(string(StatusApproved), string(StatusConsumed)))

	assert.False(t, Lifecycle.CanTransition(string(StatusRejected), string(StatusApproved)))
	assert.False(t, Lifecycle.CanTransition(string(StatusRejected), string(StatusConsumed)))
	assert.False(t, Lifecycle.CanTransition(string(StatusConsumed), string(StatusApproved)))
	assert.False(t, Lifecycle.CanTransition(string(StatusApproved), string(StatusRejected)))
}

func TestAddVerifierRequiresAdmin(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo)

	err := service.AddVerifier(context.Background(), "rando", "verifier-2", "TUV Nord")
	assert.ErrorIs(t, err, apperrors.ErrNotAuthorized)
	mockRepo.AssertNotCalled(t, "AddVerifier")
}

func TestPinEvidence(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo)

	cid, err := service.PinEvidence(context.Background(), strings.NewReader("meter readings"))

	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(cid, "sha256-"))
}
