package producers

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

type Repository interface {
	Create(ctx context.Context, producer *Producer) error
	GetByAddress(ctx context.Context, address string) (*Producer, error)
	List(ctx context.Context, activeOnly bool) ([]Producer, error)
	SetVerified(ctx context.Context, address string, verified bool) error
	SetActive(ctx context.Context, address string, active bool) error
	UpdateCounters(ctx context.Context, producer *Producer) error
}

type postgresRepository struct {
	q sqlx.ExtContext
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{q: db}
}

// NewTxRepository scopes the repository to an in-flight transaction; the
// ledger's issuance path uses it to update cap counters atomically with the
// mint.
func NewTxRepository(q sqlx.ExtContext) Repository {
	return &postgresRepository{q: q}
}

func (r *postgresRepository) Create(ctx context.Context, producer *Producer) error {
	query := `
		INSERT INTO producers (
			address, plant_id, location, energy_source, monthly_limit,
			total_produced, current_month_production, last_counted_month,
			active, verified, registered_at
		) VALUES (
			:address, :plant_id, :location, :energy_source, :monthly_limit,
			:total_produced, :current_month_production, :last_counted_month,
			:active, :verified, :registered_at
		)`
	_, err := sqlx.NamedExecContext(ctx, r.q, query, producer)
	return err
}

func (r *postgresRepository) GetByAddress(ctx context.Context, address string) (*Producer, error) {
	var producer Producer
	err := sqlx.GetContext(ctx, r.q, &producer, "SELECT * FROM producers WHERE address = $1", address)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &producer, err
}

func (r *postgresRepository) List(ctx context.Context, activeOnly bool) ([]Producer, error) {
	var producers []Producer
	query := "SELECT * FROM producers"
	if activeOnly {
		query += " WHERE active = true"
	}
	query += " ORDER BY registered_at"
	err := sqlx.SelectContext(ctx, r.q, &producers, query)
	return producers, err
}

func (r *postgresRepository) SetVerified(ctx context.Context, address string, verified bool) error {
	_, err := r.q.ExecContext(ctx, "UPDATE producers SET verified = $1 WHERE address = $2", verified, address)
	return err
}

func (r *postgresRepository) SetActive(ctx context.Context, address string, active bool) error {
	_, err := r.q.ExecContext(ctx, "UPDATE producers SET active = $1 WHERE address = $2", active, address)
	return err
}

func (r *postgresRepository) UpdateCounters(ctx context.Context, producer *Producer) error {
	query := `
		UPDATE producers SET
			total_produced = :total_produced,
			current_month_production = :current_month_production,
			last_counted_month = :last_counted_month
		WHERE address = :address`
	_, err := sqlx.NamedExecContext(ctx, r.q, query, producer)
	return err
}
