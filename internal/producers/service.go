package producers

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"green-hydrogen/credit-platform/credit-platform-backend/internal/audit"
	"green-hydrogen/credit-platform/credit-platform-backend/pkg/apperrors"
	"green-hydrogen/credit-platform/credit-platform-backend/pkg/authz"
)

type Service interface {
	Register(ctx context.Context, caller string, req RegisterRequest) (*Producer, error)
	SetVerified(ctx context.Context, caller, address string, verified bool) error
	Deactivate(ctx context.Context, caller, address string) error
	Reactivate(ctx context.Context, caller, address string) error
	Get(ctx context.Context, address string) (*Producer, error)
	List(ctx context.Context, activeOnly bool) ([]Producer, error)
}

type RegisterRequest struct {
	Address      string       `json:"address"`
	PlantID      string       `json:"plant_id"`
	Location     string       `json:"location"`
	EnergySource EnergySource `json:"energy_source"`
	MonthlyLimit int64        `json:"monthly_limit"`
}

type producerService struct {
	repo                Repository
	policy              authz.Policy
	recorder            *audit.Recorder
	logger              *zap.Logger
	monthlyLimitCeiling int64
}

func NewService(repo Repository, policy authz.Policy, recorder *audit.Recorder, logger *zap.Logger, monthlyLimitCeiling int64) Service {
	return &producerService{
		repo:                repo,
		policy:              policy,
		recorder:            recorder,
		logger:              logger,
		monthlyLimitCeiling: monthlyLimitCeiling,
	}
}

func (s *producerService) Register(ctx context.Context, caller string, req RegisterRequest) (*Producer, error) {
	if !s.policy.IsAdmin(caller) {
		return nil, fmt.Errorf("%w: register requires admin", apperrors.ErrNotAuthorized)
	}
	if req.Address == "" || req.PlantID == "" || req.Location == "" {
		return nil, fmt.Errorf("%w: address, plant id and location are required", apperrors.ErrInvalidInput)
	}
	if !ValidSource(req.EnergySource) {
		return nil, fmt.Errorf("%w: unknown energy source %q", apperrors.ErrInvalidInput, req.EnergySource)
	}
	if req.MonthlyLimit <= 0 || req.MonthlyLimit > s.monthlyLimitCeiling {
		return nil, fmt.Errorf("%w: monthly limit must be in (0, %d]", apperrors.ErrInvalidInput, s.monthlyLimitCeiling)
	}

	existing, err := s.repo.GetByAddress(ctx, req.Address)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		// Re-registration is not supported; deactivated producers are
		// brought back with Reactivate.
		return nil, fmt.Errorf("%w: %s", apperrors.ErrAlreadyRegistered, req.Address)
	}

	producer := &Producer{
		Address:      req.Address,
		PlantID:      req.PlantID,
		Location:     req.Location,
		EnergySource: req.EnergySource,
		MonthlyLimit: req.MonthlyLimit,
		Active:       true,
		Verified:     false,
		RegisteredAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, producer); err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.EventProducerRegistered, map[string]interface{}{
		"producer":  producer.Address,
		"plant_id":  producer.PlantID,
		"location":  producer.Location,
		"timestamp": producer.RegisteredAt,
	})
	return producer, nil
}

func (s *producerService) SetVerified(ctx context.Context, caller, address string, verified bool) error {
	if !s.policy.IsAdmin(caller) {
		return fmt.Errorf("%w: setVerified requires admin", apperrors.ErrNotAuthorized)
	}
	producer, err := s.repo.GetByAddress(ctx, address)
	if err != nil {
		return err
	}
	if producer == nil {
		return fmt.Errorf("%w: %s", apperrors.ErrUnknownProducer, address)
	}
	if err := s.repo.SetVerified(ctx, address, verified); err != nil {
		return err
	}

	s.recorder.Record(ctx, audit.EventProducerVerified, map[string]interface{}{
		"producer": address,
		"verified": verified,
	})
	return nil
}

func (s *producerService) Deactivate(ctx context.Context, caller, address string) error {
	return s.setActive(ctx, caller, address, false)
}

func (s *producerService) Reactivate(ctx context.Context, caller, address string) error {
	return s.setActive(ctx, caller, address, true)
}

func (s *producerService) setActive(ctx context.Context, caller, address string, active bool) error {
	if !s.policy.IsAdmin(caller) {
		return fmt.Errorf("%w: activation toggle requires admin", apperrors.ErrNotAuthorized)
	}
	producer, err := s.repo.GetByAddress(ctx, address)
	if err != nil {
		return err
	}
	if producer == nil {
		return fmt.Errorf("%w: %s", apperrors.ErrUnknownProducer, address)
	}
	if producer.Active == active {
		return fmt.Errorf("%w: producer already in target state", apperrors.ErrInvalidInput)
	}
	if err := s.repo.SetActive(ctx, address, active); err != nil {
		return err
	}

	eventType := audit.EventProducerDeactivated
	if active {
		eventType = audit.EventProducerReactivated
	}
	s.recorder.Record(ctx, eventType, map[string]interface{}{"producer": address})
	return nil
}

func (s *producerService) Get(ctx context.Context, address string) (*Producer, error) {
	producer, err := s.repo.GetByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	if producer == nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnknownProducer, address)
	}
	return producer, nil
}

func (s *producerService) List(ctx context.Context, activeOnly bool) ([]Producer, error) {
	return s.repo.List(ctx, activeOnly)
}
