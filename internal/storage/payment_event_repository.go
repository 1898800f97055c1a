package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mindgrid/psyconsult/libs/db"
)

var ErrDuplicateProviderEvent = errors.New("provider event already processed")

// ProviderEvent is one inbound payment-gateway event, recorded so replayed
// webhook deliveries are ignored.
type ProviderEvent struct {
	Provider        string
	ProviderEventID string
	EventType       string
	Payload         []byte
}

type PaymentEventRepository struct {
	pool *db.Pool
}

func NewPaymentEventRepository(pool *db.Pool) *PaymentEventRepository {
	return &PaymentEventRepository{pool: pool}
}

func (r *PaymentEventRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *PaymentEventRepository) Insert(ctx context.Context, tx pgx.Tx, evt ProviderEvent) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO payment_provider_events (provider, provider_event_id, event_type, payload)
		VALUES ($1, $2, $3, $4)
	`, evt.Provider, evt.ProviderEventID, evt.EventType, evt.Payload)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateProviderEvent
		}
		return err
	}
	return nil
}
