package claims

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"green-hydrogen/credit-platform/credit-platform-backend/pkg/apperrors"
)

type Repository interface {
	NextNonce(ctx context.Context) (int64, error)
	CreateClaim(ctx context.Context, claim *Claim) error
	GetClaim(ctx context.Context, claimID string) (*Claim, error)
	ListClaims(ctx context.Context, producer *string, status *ClaimStatus, limit int) ([]Claim, error)
	RecordDecision(ctx context.Context, claimID string, status ClaimStatus, decidedBy string, decidedAt time.Time) error
	MarkConsumed(ctx context.Context, claimID string, consumedAt time.Time) error

	AddVerifier(ctx context.Context, verifier *Verifier) error
	RemoveVerifier(ctx context.Context, address string) error
	IsVerifier(ctx context.Context, address string) (bool, error)
	ListVerifiers(ctx context.Context) ([]Verifier, error)
}

type postgresRepository struct {
	q sqlx.ExtContext
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{q: db}
}

// NewTxRepository scopes the repository to an in-flight transaction. The
// credit ledger is the only caller of MarkConsumed and goes through this so
// consumption commits or rolls back with the mint.
func NewTxRepository(q sqlx.ExtContext) Repository {
	return &postgresRepository{q: q}
}

func (r *postgresRepository) NextNonce(ctx context.Context) (int64, error) {
	var nonce int64
	err := sqlx.GetContext(ctx, r.q, &nonce, "SELECT nextval('claim_nonce_seq')")
	return nonce, err
}

func (r *postgresRepository) CreateClaim(ctx context.Context, claim *Claim) error {
	query := `
		INSERT INTO claims (
			claim_id, producer_address, plant_id, amount, production_time,
			evidence_ref, status, fee_paid, nonce, submitted_at
		) VALUES (
			:claim_id, :producer_address, :plant_id, :amount, :production_time,
			:evidence_ref, :status, :fee_paid, :nonce, :submitted_at
		)`
	_, err := sqlx.NamedExecContext(ctx, r.q, query, claim)
	return err
}

func (r *postgresRepository) GetClaim(ctx context.Context, claimID string) (*Claim, error) {
	var claim Claim
	err := sqlx.GetContext(ctx, r.q, &claim, "SELECT * FROM claims WHERE claim_id = $1", claimID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &claim, err
}

func (r *postgresRepository) ListClaims(ctx context.Context, producer *string, status *ClaimStatus, limit int) ([]Claim, error) {
	query := "SELECT * FROM claims WHERE 1=1"
	var args []interface{}
	argCount := 1

	if producer != nil {
		query += fmt.Sprintf(" AND producer_address = $%d", argCount)
		args = append(args, *producer)
		argCount++
	}
	if status != nil {
		query += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, *status)
		argCount++
	}
	query += fmt.Sprintf(" ORDER BY submitted_at DESC LIMIT $%d", argCount)
	args = append(args, limit)

	var claims []Claim
	err := sqlx.SelectContext(ctx, r.q, &claims, query, args...)
	return claims, err
}

func (r *postgresRepository) RecordDecision(ctx context.Context, claimID string, status ClaimStatus, decidedBy string, decidedAt time.Time) error {
	// The status predicate re-checks the one-shot transition at write time.
	res, err := r.q.ExecContext(ctx, `
		UPDATE claims SET status = $1, decided_by = $2, decided_at = $3
		WHERE claim_id = $4 AND status = $5`,
		status, decidedBy, decidedAt, claimID, StatusSubmitted)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", apperrors.ErrAlreadyDecided, claimID)
	}
	return nil
}

func (r *postgresRepository) MarkConsumed(ctx context.Context, claimID string, consumedAt time.Time) error {
	// Double-issuance guard: only an approved, unconsumed claim matches.
	res, err := r.q.ExecContext(ctx, `
		UPDATE claims SET status = $1, consumed_at = $2
		WHERE claim_id = $3 AND status = $4`,
		StatusConsumed, consumedAt, claimID, StatusApproved)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", apperrors.ErrNotConsumable, claimID)
	}
	return nil
}

func (r *postgresRepository) AddVerifier(ctx context.Context, verifier *Verifier) error {
	query := `
		INSERT INTO verifiers (address, name, active, added_at)
		VALUES (:address, :name, :active, :added_at)
		ON CONFLICT (address) DO UPDATE SET active = true, name = EXCLUDED.name`
	_, err := sqlx.NamedExecContext(ctx, r.q, query, verifier)
	return err
}

func (r *postgresRepository) RemoveVerifier(ctx context.Context, address string) error {
	_, err := r.q.ExecContext(ctx, "UPDATE verifiers SET active = false WHERE address = $1", address)
	return err
}

func (r *postgresRepository) IsVerifier(ctx context.Context, address string) (bool, error) {
	var active bool
	err := sqlx.GetContext(ctx, r.q, &active, "SELECT active FROM verifiers WHERE address = $1", address)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return active, err
}

func (r *postgresRepository) ListVerifiers(ctx context.Context) ([]Verifier, error) {
	var verifiers []Verifier
	err := sqlx.SelectContext(ctx, r.q, &verifiers, "SELECT * FROM verifiers WHERE active = true ORDER BY added_at")
	return verifiers, err
}
