package ledger

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"green-hydrogen/credit-platform/credit-platform-backend/internal/audit"
	"green-hydrogen/credit-platform/credit-platform-backend/pkg/apperrors"
	"green-hydrogen/credit-platform/credit-platform-backend/pkg/authz"
	"green-hydrogen/credit-platform/credit-platform-backend/pkg/certificates"
)

type Service interface {
	IssueFromClaim(ctx context.Context, caller, claimID string) (*CreditBatch, error)
	Transfer(ctx context.Context, caller, to string, amount int64) error
	Approve(ctx context.Context, caller, spender string, amount int64) error
	TransferFrom(ctx context.Context, caller, from, to string, amount int64) error
	Retire(ctx context.Context, caller string, amount int64, reason string) (*Retirement, error)

	Pause(ctx context.Context, caller string) error
	Unpause(ctx context.Context, caller string) error
	UpdateVerificationGate(ctx context.Context, caller string) (int64, error)

	GetAccount(ctx context.Context, address string) (*Account, error)
	GetState(ctx context.Context) (*State, error)
	ListBatches(ctx context.Context, producer *string, limit int) ([]CreditBatch, error)
	GetRetirement(ctx context.Context, id int64) (*Retirement, error)
	RenderRetirementCertificate(ctx context.Context, w io.Writer, id int64) error
}

// Config carries the issuance parameters the service needs.
type Config struct {
	CalendarMonths bool
}

type ledgerService struct {
	store    Store
	policy   authz.Policy
	recorder *audit.Recorder
	certs    certificates.Generator
	logger   *zap.Logger
	cfg      Config
}

func NewService(store Store, policy authz.Policy, recorder *audit.Recorder, certs certificates.Generator, logger *zap.Logger, cfg Config) Service {
	return &ledgerService{
		store:    store,
		policy:   policy,
		recorder: recorder,
		certs:    certs,
		logger:   logger,
		cfg:      cfg,
	}
}

// IssueFromClaim consumes an approved claim exactly once and mints its
// amount to the producer. Every step runs in one serializable transaction:
// a failure at any point leaves no state change, and the consumed flag
// commits together with the balance mutation.
func (s *ledgerService) IssueFromClaim(ctx context.Context, caller, claimID string) (*CreditBatch, error) {
	if !s.policy.IsIssuer(caller) {
		return nil, fmt.Errorf("%w: issuance requires issuer or admin", apperrors.ErrNotAuthorized)
	}

	var batch *CreditBatch
	err := s.store.WithinTx(ctx, func(tx Store) error {
		state, err := tx.GetState(ctx)
		if err != nil {
			return err
		}
		if state.Paused {
			return apperrors.ErrPaused
		}

		claim, err := tx.Claims().GetClaim(ctx, claimID)
		if err != nil {
			return err
		}
		if claim == nil {
			return fmt.Errorf("%w: %s", apperrors.ErrUnknownClaim, claimID)
		}
		if !claim.Consumable() {
			return fmt.Errorf("%w: claim is %s", apperrors.ErrNotConsumable, claim.Status)
		}

		producer, err := tx.Producers().GetByAddress(ctx, claim.ProducerAddress)
		if err != nil {
			return err
		}
		if producer == nil {
			return fmt.Errorf("%w: %s", apperrors.ErrUnknownProducer, claim.ProducerAddress)
		}
		if !producer.Active {
			return fmt.Errorf("%w: producer %s is deactivated", apperrors.ErrNotAuthorized, producer.Address)
		}
		if !producer.Verified {
			return fmt.Errorf("%w: producer %s has not passed KYC", apperrors.ErrNotAuthorized, producer.Address)
		}

		mintedAt := time.Now().UTC()
		if !producer.ApplyCap(claim.Amount, mintedAt, s.cfg.CalendarMonths) {
			return fmt.Errorf("%w: producer %s", apperrors.ErrMonthlyLimitExceeded, producer.Address)
		}

		// Consume before any balance mutation; rollback undoes both.
		if err := tx.Claims().MarkConsumed(ctx, claimID, mintedAt); err != nil {
			return err
		}

		batch = &CreditBatch{
			ProducerAddress: producer.Address,
			Amount:          claim.Amount,
			ClaimID:         claim.ClaimID,
			PlantID:         claim.PlantID,
			EnergySource:    producer.EnergySource,
			CreatedAt:       mintedAt,
		}
		if err := tx.CreateBatch(ctx, batch); err != nil {
			return err
		}
		if err := tx.AddBalance(ctx, producer.Address, claim.Amount); err != nil {
			return err
		}
		if err := tx.AddMinted(ctx, claim.Amount); err != nil {
			return err
		}
		return tx.Producers().UpdateCounters(ctx, producer)
	})
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.EventCreditIssued, map[string]interface{}{
		"producer":  batch.ProducerAddress,
		"amount":    batch.Amount,
		"plant_id":  batch.PlantID,
		"timestamp": batch.CreatedAt,
		"source":    batch.EnergySource,
		"claim_id":  batch.ClaimID,
	})
	return batch, nil
}

func (s *ledgerService) Transfer(ctx context.Context, caller, to string, amount int64) error {
	if to == "" || caller == to {
		return fmt.Errorf("%w: invalid transfer recipient", apperrors.ErrInvalidInput)
	}
	if amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", apperrors.ErrInvalidInput)
	}

	transferredAt := time.Now().UTC()
	err := s.store.WithinTx(ctx, func(tx Store) error {
		return ApplyTransfer(ctx, tx, caller, to, amount, transferredAt)
	})
	if err != nil {
		return err
	}

	s.recorder.Record(ctx, audit.EventCreditTransferred, map[string]interface{}{
		"from":      caller,
		"to":        to,
		"amount":    amount,
		"timestamp": transferredAt,
	})
	return nil
}

func (s *ledgerService) Approve(ctx context.Context, caller, spender string, amount int64) error {
	if spender == "" {
		return fmt.Errorf("%w: spender is required", apperrors.ErrInvalidInput)
	}
	if amount < 0 {
		return fmt.Errorf("%w: allowance cannot be negative", apperrors.ErrInvalidInput)
	}
	return s.store.SetAllowance(ctx, caller, spender, amount)
}

func (s *ledgerService) TransferFrom(ctx context.Context, caller, from, to string, amount int64) error {
	if from == "" || to == "" || from == to {
		return fmt.Errorf("%w: invalid transfer endpoints", apperrors.ErrInvalidInput)
	}
	if amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", apperrors.ErrInvalidInput)
	}

	transferredAt := time.Now().UTC()
	err := s.store.WithinTx(ctx, func(tx Store) error {
		return ApplyTransferFrom(ctx, tx, caller, from, to, amount, transferredAt)
	})
	if err != nil {
		return err
	}

	s.recorder.Record(ctx, audit.EventCreditTransferred, map[string]interface{}{
		"from":      from,
		"to":        to,
		"amount":    amount,
		"spender":   caller,
		"timestamp": transferredAt,
	})
	return nil
}

// ApplyTransfer moves balance inside the caller's transaction. Shared with
// the direct transfer path; pause state is re-checked here so no movement
// path can bypass the emergency stop.
func ApplyTransfer(ctx context.Context, tx Store, from, to string, amount int64, at time.Time) error {
	state, err := tx.GetState(ctx)
	if err != nil {
		return err
	}
	if state.Paused {
		return apperrors.ErrPaused
	}
	if err := tx.SubBalance(ctx, from, amount); err != nil {
		return err
	}
	if err := tx.AddBalance(ctx, to, amount); err != nil {
		return err
	}
	return tx.RecordTransfer(ctx, &TransferEvent{
		FromAddress: from,
		ToAddress:   to,
		Amount:      amount,
		OccurredAt:  at,
	})
}

// ApplyTransferFrom is the delegated-transfer path: the spender's allowance
// from the owner is consumed before the balance moves. The marketplace
// settlement runs this inside its own settlement transaction.
func ApplyTransferFrom(ctx context.Context, tx Store, spender, from, to string, amount int64, at time.Time) error {
	if err := tx.SpendAllowance(ctx, from, spender, amount); err != nil {
		return err
	}
	return ApplyTransfer(ctx, tx, from, to, amount, at)
}

func (s *ledgerService) Retire(ctx context.Context, caller string, amount int64, reason string) (*Retirement, error) {
	if reason == "" {
		return nil, fmt.Errorf("%w: retirement must state a purpose", apperrors.ErrEmptyReason)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", apperrors.ErrInvalidInput)
	}

	retirement := &Retirement{
		Holder:     caller,
		Amount:     amount,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}
	err := s.store.WithinTx(ctx, func(tx Store) error {
		state, err := tx.GetState(ctx)
		if err != nil {
			return err
		}
		if state.Paused {
			return apperrors.ErrPaused
		}
		if err := tx.SubBalance(ctx, caller, amount); err != nil {
			return err
		}
		if err := tx.AddAccountRetired(ctx, caller, amount); err != nil {
			return err
		}
		if err := tx.AddRetiredTotal(ctx, amount); err != nil {
			return err
		}
		return tx.CreateRetirement(ctx, retirement)
	})
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.EventCreditRetired, map[string]interface{}{
		"holder":      caller,
		"amount":      amount,
		"reason":      reason,
		"timestamp":   retirement.OccurredAt,
		"certificate": retirement.CertificateNumber,
	})
	return retirement, nil
}

func (s *ledgerService) Pause(ctx context.Context, caller string) error {
	if !s.policy.IsAdmin(caller) {
		return fmt.Errorf("%w: pause requires admin", apperrors.ErrNotAuthorized)
	}
	if err := s.store.SetPaused(ctx, true); err != nil {
		return err
	}
	s.recorder.Record(ctx, audit.EventLedgerPaused, map[string]interface{}{"by": caller})
	return nil
}

func (s *ledgerService) Unpause(ctx context.Context, caller string) error {
	if !s.policy.IsAdmin(caller) {
		return fmt.Errorf("%w: unpause requires admin", apperrors.ErrNotAuthorized)
	}
	if err := s.store.SetPaused(ctx, false); err != nil {
		return err
	}
	s.recorder.Record(ctx, audit.EventLedgerUnpaused, map[string]interface{}{"by": caller})
	return nil
}

// UpdateVerificationGate repoints issuance to a new gate generation. Claims
// consumed under earlier generations stay consumed; the version bump only
// fences new submissions.
func (s *ledgerService) UpdateVerificationGate(ctx context.Context, caller string) (int64, error) {
	if !s.policy.IsAdmin(caller) {
		return 0, fmt.Errorf("%w: gate rotation requires admin", apperrors.ErrNotAuthorized)
	}
	version, err := s.store.BumpGateVersion(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Info("verification gate rotated", zap.Int64("gate_version", version))
	return version, nil
}

func (s *ledgerService) GetAccount(ctx context.Context, address string) (*Account, error) {
	return s.store.GetAccount(ctx, address)
}

func (s *ledgerService) GetState(ctx context.Context) (*State, error) {
	return s.store.GetState(ctx)
}

func (s *ledgerService) ListBatches(ctx context.Context, producer *string, limit int) ([]CreditBatch, error) {
	return s.store.ListBatches(ctx, producer, limit)
}

func (s *ledgerService) GetRetirement(ctx context.Context, id int64) (*Retirement, error) {
	retirement, err := s.store.GetRetirement(ctx, id)
	if err != nil {
		return nil, err
	}
	if retirement == nil {
		return nil, fmt.Errorf("%w: retirement %d", apperrors.ErrInvalidInput, id)
	}
	return retirement, nil
}

func (s *ledgerService) RenderRetirementCertificate(ctx context.Context, w io.Writer, id int64) error {
	retirement, err := s.GetRetirement(ctx, id)
	if err != nil {
		return err
	}
	return s.certs.RenderRetirement(w, certificates.RetirementData{
		CertificateNumber: retirement.CertificateNumber,
		Holder:            retirement.Holder,
		Amount:            retirement.Amount,
		Reason:            retirement.Reason,
		RetiredAt:         retirement.OccurredAt,
	})
}
