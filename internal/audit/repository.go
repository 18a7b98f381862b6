package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

type Repository interface {
	InsertEvent(ctx context.Context, event *Event) error
	ListEvents(ctx context.Context, eventType *EventType, since *time.Time, limit int) ([]Event, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) InsertEvent(ctx context.Context, event *Event) error {
	query := `
		INSERT INTO audit_events (event_type, payload, occurred_at)
		VALUES ($1, $2, $3)
		RETURNING id`
	return r.db.QueryRowxContext(ctx, query, event.EventType, event.Payload, event.OccurredAt).Scan(&event.ID)
}

func (r *postgresRepository) ListEvents(ctx context.Context, eventType *EventType, since *time.Time, limit int) ([]Event, error) {
	query := "SELECT * FROM audit_events WHERE 1=1"
	var args []interface{}
	argCount := 1

	if eventType != nil {
		query += fmt.Sprintf(" AND event_type = $%d", argCount)
		args = append(args, *eventType)
		argCount++
	}
	if since != nil {
		query += fmt.Sprintf(" AND occurred_at >= $%d", argCount)
		args = append(args, *since)
		argCount++
	}
	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d", argCount)
	args = append(args, limit)

	var events []Event
	err := r.db.SelectContext(ctx, &events, query, args...)
	return events, err
}
