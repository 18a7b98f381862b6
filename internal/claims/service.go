package claims

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"green-hydrogen/credit-platform/credit-platform-backend/internal/audit"
	"green-hydrogen/credit-platform/credit-platform-backend/pkg/apperrors"
	"green-hydrogen/credit-platform/credit-platform-backend/pkg/authz"
	"green-hydrogen/credit-platform/credit-platform-backend/pkg/storage"
)

type Service interface {
	Submit(ctx context.Context, caller string, req SubmitRequest) (*Claim, error)
	Verify(ctx context.Context, caller, claimID string, approve bool) error
	IsConsumable(ctx context.Context, claimID string) (bool, error)
	Get(ctx context.Context, claimID string) (*Claim, error)
	List(ctx context.Context, producer *string, status *ClaimStatus, limit int) ([]Claim, error)

	AddVerifier(ctx context.Context, caller, address, name string) error
	RemoveVerifier(ctx context.Context, caller, address string) error
	ListVerifiers(ctx context.Context) ([]Verifier, error)

	PinEvidence(ctx context.Context, body io.Reader) (string, error)
}

type SubmitRequest struct {
	PlantID        string    `json:"plant_id"`
	Amount         int64     `json:"amount"`
	ProductionTime time.Time `json:"production_time"`
	EvidenceRef    string    `json:"evidence_ref"`
	Fee            int64     `json:"fee"`
}

type claimService struct {
	repo          Repository
	policy        authz.Policy
	pinner        storage.EvidencePinner
	recorder      *audit.Recorder
	logger        *zap.Logger
	submissionFee int64
	maxAmount     int64
}

// NewService builds the gate. maxAmount bounds a single claim; no producer
// limit can exceed the configured ceiling, so a larger claim could never be
// issued anyway.
func NewService(repo Repository, policy authz.Policy, pinner storage.EvidencePinner, recorder *audit.Recorder, logger *zap.Logger, submissionFee, maxAmount int64) Service {
	return &claimService{
		repo:          repo,
		policy:        policy,
		pinner:        pinner,
		recorder:      recorder,
		logger:        logger,
		submissionFee: submissionFee,
		maxAmount:     maxAmount,
	}
}

// Submit records a production claim for the calling producer. The gate does
// not consult the producer registry; admission is re-checked by the ledger
// at issuance time.
func (s *claimService) Submit(ctx context.Context, caller string, req SubmitRequest) (*Claim, error) {
	if req.Fee < s.submissionFee {
		return nil, fmt.Errorf("%w: got %d, need %d", apperrors.ErrInsufficientFee, req.Fee, s.submissionFee)
	}
	now := time.Now().UTC()
	if req.ProductionTime.After(now) {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrFutureTimestamp, req.ProductionTime.Format(time.RFC3339))
	}
	if req.PlantID == "" || req.EvidenceRef == "" {
		return nil, fmt.Errorf("%w: plant id and evidence reference are required", apperrors.ErrInvalidInput)
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", apperrors.ErrInvalidInput)
	}
	if s.maxAmount > 0 && req.Amount > s.maxAmount {
		return nil, fmt.Errorf("%w: amount exceeds maximum of %d", apperrors.ErrInvalidInput, s.maxAmount)
	}

	nonce, err := s.repo.NextNonce(ctx)
	if err != nil {
		return nil, err
	}

	claim := &Claim{
		ClaimID:         ComputeClaimID(caller, req.PlantID, req.Amount, req.ProductionTime, req.EvidenceRef, nonce),
		ProducerAddress: caller,
		PlantID:         req.PlantID,
		Amount:          req.Amount,
		ProductionTime:  req.ProductionTime,
		EvidenceRef:     req.EvidenceRef,
		Status:          StatusSubmitted,
		FeePaid:         req.Fee,
		Nonce:           nonce,
		SubmittedAt:     now,
	}
	if err := s.repo.CreateClaim(ctx, claim); err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.EventProductionSubmitted, map[string]interface{}{
		"claim_id": claim.ClaimID,
		"producer": claim.ProducerAddress,
		"amount":   claim.Amount,
	})
	return claim, nil
}

// Verify records a single approve/reject decision. One verifier, one shot;
// re-decision is rejected regardless of the arguments.
func (s *claimService) Verify(ctx context.Context, caller, claimID string, approve bool) error {
	isVerifier, err := s.repo.IsVerifier(ctx, caller)
	if err != nil {
		return err
	}
	if !isVerifier {
		return fmt.Errorf("%w: %s is not an active verifier", apperrors.ErrNotAuthorized, caller)
	}

	claim, err := s.repo.GetClaim(ctx, claimID)
	if err != nil {
		return err
	}
	if claim == nil {
		return fmt.Errorf("%w: %s", apperrors.ErrUnknownClaim, claimID)
	}

	next := StatusRejected
	if approve {
		next = StatusApproved
	}
	if !Lifecycle.CanTransition(string(claim.Status), string(next)) {
		return fmt.Errorf("%w: claim is %s", apperrors.ErrAlreadyDecided, claim.Status)
	}
	if err := s.repo.RecordDecision(ctx, claimID, next, caller, time.Now().UTC()); err != nil {
		return err
	}

	s.recorder.Record(ctx, audit.EventProductionVerified, map[string]interface{}{
		"claim_id": claimID,
		"approved": approve,
	})
	return nil
}

func (s *claimService) IsConsumable(ctx context.Context, claimID string) (bool, error) {
	claim, err := s.repo.GetClaim(ctx, claimID)
	if err != nil {
		return false, err
	}
	if claim == nil {
		return false, fmt.Errorf("%w: %s", apperrors.ErrUnknownClaim, claimID)
	}
	return claim.Consumable(), nil
}

func (s *claimService) Get(ctx context.Context, claimID string) (*Claim, error) {
	claim, err := s.repo.GetClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if claim == nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnknownClaim, claimID)
	}
	return claim, nil
}

func (s *claimService) List(ctx context.Context, producer *string, status *ClaimStatus, limit int) ([]Claim, error) {
	return s.repo.ListClaims(ctx, producer, status, limit)
}

func (s *claimService) AddVerifier(ctx context.Context, caller, address, name string) error {
	if !s.policy.IsAdmin(caller) {
		return fmt.Errorf("%w: verifier management requires admin", apperrors.ErrNotAuthorized)
	}
	if address == "" {
		return fmt.Errorf("%w: verifier address is required", apperrors.ErrInvalidInput)
	}
	verifier := &Verifier{
		Address: address,
		Name:    name,
		Active:  true,
		AddedAt: time.Now().UTC(),
	}
	if err := s.repo.AddVerifier(ctx, verifier); err != nil {
		return err
	}

	s.recorder.Record(ctx, audit.EventVerifierAdded, map[string]interface{}{
		"verifier": address,
		"name":     name,
	})
	return nil
}

func (s *claimService) RemoveVerifier(ctx context.Context, caller, address string) error {
	if !s.policy.IsAdmin(caller) {
		return fmt.Errorf("%w: verifier management requires admin", apperrors.ErrNotAuthorized)
	}
	if err := s.repo.RemoveVerifier(ctx, address); err != nil {
		return err
	}

	s.recorder.Record(ctx, audit.EventVerifierRemoved, map[string]interface{}{
		"verifier": address,
	})
	return nil
}

func (s *claimService) ListVerifiers(ctx context.Context) ([]Verifier, error) {
	return s.repo.ListVerifiers(ctx)
}

func (s *claimService) PinEvidence(ctx context.Context, body io.Reader) (string, error) {
	return s.pinner.PinFile(ctx, body)
}
