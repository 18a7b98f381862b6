package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"green-hydrogen/credit-platform/credit-platform-backend/internal/claims"
	"green-hydrogen/credit-platform/credit-platform-backend/internal/producers"
	"green-hydrogen/credit-platform/credit-platform-backend/pkg/apperrors"
)

// Store is the ledger's transactional data access surface. Compound
// operations run inside WithinTx, which opens a serializable transaction and
// hands back a tx-scoped Store; Claims and Producers expose the sibling
// repositories bound to the same transaction.
type Store interface {
	WithinTx(ctx context.Context, fn func(Store) error) error
	Claims() claims.Repository
	Producers() producers.Repository

	GetState(ctx context.Context) (*State, error)
	SetPaused(ctx context.Context, paused bool) error
	BumpGateVersion(ctx context.Context) (int64, error)
	AddMinted(ctx context.Context, amount int64) error
	AddRetiredTotal(ctx context.Context, amount int64) error

	GetAccount(ctx context.Context, address string) (*Account, error)
	AddBalance(ctx context.Context, address string, amount int64) error
	SubBalance(ctx context.Context, address string, amount int64) error
	AddAccountRetired(ctx context.Context, address string, amount int64) error
	SumBalances(ctx context.Context) (int64, error)

	GetAllowance(ctx context.Context, owner, spender string) (int64, error)
	SetAllowance(ctx context.Context, owner, spender string, amount int64) error
	SpendAllowance(ctx context.Context, owner, spender string, amount int64) error

	CreateBatch(ctx context.Context, batch *CreditBatch) error
	ListBatches(ctx context.Context, producer *string, limit int) ([]CreditBatch, error)
	RecordTransfer(ctx context.Context, event *TransferEvent) error
	CreateRetirement(ctx context.Context, retirement *Retirement) error
	GetRetirement(ctx context.Context, id int64) (*Retirement, error)
}

type postgresStore struct {
	db *sqlx.DB // nil when tx-scoped
	q  sqlx.ExtContext
}

func NewStore(db *sqlx.DB) Store {
	return &postgresStore{db: db, q: db}
}

// NewTxStore binds the store to an in-flight transaction; the marketplace
// settlement path uses it to move credits atomically with the listing
// decrement.
func NewTxStore(q sqlx.ExtContext) Store {
	return &postgresStore{q: q}
}

func (s *postgresStore) WithinTx(ctx context.Context, fn func(Store) error) error {
	if s.db == nil {
		// Already transaction-scoped.
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

func (s *postgresStore) Claims() claims.Repository {
	return claims.NewTxRepository(s.q)
}

func (s *postgresStore) Producers() producers.Repository {
	return producers.NewTxRepository(s.q)
}

func (s *postgresStore) GetState(ctx context.Context) (*State, error) {
	var state State
	err := sqlx.GetContext(ctx, s.q, &state,
		"SELECT paused, total_minted, total_retired, gate_version FROM ledger_state WHERE id = 1")
	return &state, err
}

func (s *postgresStore) SetPaused(ctx context.Context, paused bool) error {
	_, err := s.q.ExecContext(ctx, "UPDATE ledger_state SET paused = $1 WHERE id = 1", paused)
	return err
}

func (s *postgresStore) BumpGateVersion(ctx context.Context) (int64, error) {
	var version int64
	err := sqlx.GetContext(ctx, s.q, &version,
		"UPDATE ledger_state SET gate_version = gate_version + 1 WHERE id = 1 RETURNING gate_version")
	return version, err
}

func (s *postgresStore) AddMinted(ctx context.Context, amount int64) error {
	_, err := s.q.ExecContext(ctx, "UPDATE ledger_state SET total_minted = total_minted + $1 WHERE id = 1", amount)
	return err
}

func (s *postgresStore) AddRetiredTotal(ctx context.Context, amount int64) error {
	_, err := s.q.ExecContext(ctx, "UPDATE ledger_state SET total_retired = total_retired + $1 WHERE id = 1", amount)
	return err
}

func (s *postgresStore) GetAccount(ctx context.Context, address string) (*Account, error) {
	var account Account
	err := sqlx.GetContext(ctx, s.q, &account, "SELECT * FROM accounts WHERE address = $1", address)
	if errors.Is(err, sql.ErrNoRows) {
		return &Account{Address: address}, nil
	}
	return &account, err
}

func (s *postgresStore) AddBalance(ctx context.Context, address string, amount int64) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO accounts (address, balance, retired_total)
		VALUES ($1, $2, 0)
		ON CONFLICT (address) DO UPDATE SET balance = accounts.balance + $2`,
		address, amount)
	return err
}

func (s *postgresStore) SubBalance(ctx context.Context, address string, amount int64) error {
	// The balance predicate keeps the non-negative invariant even if the
	// caller's read was stale.
	res, err := s.q.ExecContext(ctx,
		"UPDATE accounts SET balance = balance - $1 WHERE address = $2 AND balance >= $1",
		amount, address)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: account %s", apperrors.ErrInsufficientBalance, address)
	}
	return nil
}

func (s *postgresStore) AddAccountRetired(ctx context.Context, address string, amount int64) error {
	_, err := s.q.ExecContext(ctx,
		"UPDATE accounts SET retired_total = retired_total + $1 WHERE address = $2", amount, address)
	return err
}

func (s *postgresStore) SumBalances(ctx context.Context) (int64, error) {
	var sum int64
	err := sqlx.GetContext(ctx, s.q, &sum, "SELECT COALESCE(SUM(balance), 0) FROM accounts")
	return sum, err
}

func (s *postgresStore) GetAllowance(ctx context.Context, owner, spender string) (int64, error) {
	var amount int64
	err := sqlx.GetContext(ctx, s.q, &amount,
		"SELECT amount FROM allowances WHERE owner_address = $1 AND spender_address = $2", owner, spender)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return amount, err
}

func (s *postgresStore) SetAllowance(ctx context.Context, owner, spender string, amount int64) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO allowances (owner_address, spender_address, amount)
		VALUES ($1, $2, $3)
		ON CONFLICT (owner_address, spender_address) DO UPDATE SET amount = $3`,
		owner, spender, amount)
	return err
}

func (s *postgresStore) SpendAllowance(ctx context.Context, owner, spender string, amount int64) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE allowances SET amount = amount - $1
		WHERE owner_address = $2 AND spender_address = $3 AND amount >= $1`,
		amount, owner, spender)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s -> %s", apperrors.ErrInsufficientAllowance, owner, spender)
	}
	return nil
}

func (s *postgresStore) CreateBatch(ctx context.Context, batch *CreditBatch) error {
	query := `
		INSERT INTO credit_batches (
			producer_address, amount, claim_id, plant_id, energy_source, retired, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	row := s.q.QueryRowxContext(ctx, query,
		batch.ProducerAddress, batch.Amount, batch.ClaimID,
		batch.PlantID, batch.EnergySource, batch.Retired, batch.CreatedAt)
	return row.Scan(&batch.ID)
}

func (s *postgresStore) ListBatches(ctx context.Context, producer *string, limit int) ([]CreditBatch, error) {
	query := "SELECT * FROM credit_batches"
	var args []interface{}
	if producer != nil {
		query += " WHERE producer_address = $1"
		args = append(args, *producer)
	}
	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d", len(args)+1)
	args = append(args, limit)

	var batches []CreditBatch
	err := sqlx.SelectContext(ctx, s.q, &batches, query, args...)
	return batches, err
}

func (s *postgresStore) RecordTransfer(ctx context.Context, event *TransferEvent) error {
	query := `
		INSERT INTO transfer_events (from_address, to_address, amount, occurred_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	row := s.q.QueryRowxContext(ctx, query, event.FromAddress, event.ToAddress, event.Amount, event.OccurredAt)
	return row.Scan(&event.ID)
}

func (s *postgresStore) CreateRetirement(ctx context.Context, retirement *Retirement) error {
	row := s.q.QueryRowxContext(ctx, `
		INSERT INTO retirements (holder, amount, reason, certificate_number, occurred_at)
		VALUES ($1, $2, $3, '', $4)
		RETURNING id`,
		retirement.Holder, retirement.Amount, retirement.Reason, retirement.OccurredAt)
	if err := row.Scan(&retirement.ID); err != nil {
		return err
	}
	retirement.CertificateNumber = fmt.Sprintf("GH2-RET-%06d", retirement.ID)
	_, err := s.q.ExecContext(ctx,
		"UPDATE retirements SET certificate_number = $1 WHERE id = $2",
		retirement.CertificateNumber, retirement.ID)
	return err
}

func (s *postgresStore) GetRetirement(ctx context.Context, id int64) (*Retirement, error) {
	var retirement Retirement
	err := sqlx.GetContext(ctx, s.q, &retirement, "SELECT * FROM retirements WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &retirement, err
}
