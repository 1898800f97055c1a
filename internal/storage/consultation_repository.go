package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/mindgrid/psyconsult/internal/model"
	"github.com/mindgrid/psyconsult/libs/db"
)

type ConsultationRepository struct {
	pool *db.Pool
}

// IdempotencyRecord is a previously locked booking attempt for one
// (client, Idempotency-Key) pair. ConsultationID is empty until the attempt
// that created it committed a consultation.
type IdempotencyRecord struct {
	ClientID       string
	IdempotencyKey string
	ConsultationID string
}

func NewConsultationRepository(pool *db.Pool) *ConsultationRepository {
	return &ConsultationRepository{pool: pool}
}

func (r *ConsultationRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

const consultationColumns = `
	id::text, provider_id::text, client_id::text, child_id::text,
	scheduled_at, duration_minutes, status, price_cents, payment_status,
	COALESCE(notes, ''), COALESCE(cancel_reason, ''), cancelled_at,
	created_at, updated_at`

func scanConsultation(row pgx.Row) (model.Consultation, error) {
	var c model.Consultation
	var childID *string
	var cancelledAt *time.Time
	err := row.Scan(
		&c.ID,
		&c.ProviderID,
		&c.ClientID,
		&childID,
		&c.ScheduledAt,
		&c.DurationMinutes,
		&c.Status,
		&c.PriceCents,
		&c.PaymentStatus,
		&c.Notes,
		&c.CancelReason,
		&cancelledAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return model.Consultation{}, err
	}
	c.ChildID = childID
	c.CancelledAt = cancelledAt
	return c, nil
}

func (r *ConsultationRepository) Create(ctx context.Context, tx pgx.Tx, c *model.Consultation) error {
	return tx.QueryRow(ctx, `
		INSERT INTO consultations
			(id, provider_id, client_id, child_id, scheduled_at, duration_minutes,
			status, price_cents, payment_status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`, c.ID, c.ProviderID, c.ClientID, c.ChildID, c.ScheduledAt, c.DurationMinutes,
		c.Status, c.PriceCents, c.PaymentStatus, c.Notes,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
}

func (r *ConsultationRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, consultationID string) (model.Consultation, error) {
	return scanConsultation(tx.QueryRow(ctx, `
		SELECT `+consultationColumns+`
		FROM consultations
		WHERE id = $1
		FOR UPDATE
	`, consultationID))
}

func (r *ConsultationRepository) GetByID(ctx context.Context, consultationID string) (model.Consultation, error) {
	return scanConsultation(r.pool.QueryRow(ctx, `
		SELECT `+consultationColumns+`
		FROM consultations
		WHERE id = $1
	`, consultationID))
}

// UpdateStatus applies an already-validated transition. cancelled_at is set
// only when the new status is cancelled.
func (r *ConsultationRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, consultationID string, status model.ConsultationStatus, cancelReason string) (model.Consultation, error) {
	return scanConsultation(tx.QueryRow(ctx, `
		UPDATE consultations
		SET status = $2,
			cancel_reason = CASE WHEN $2 = 'cancelled' THEN $3 ELSE cancel_reason END,
			cancelled_at = CASE WHEN $2 = 'cancelled' THEN now() ELSE cancelled_at END,
			updated_at = now()
		WHERE id = $1
		RETURNING `+consultationColumns+`
	`, consultationID, status, cancelReason))
}

func (r *ConsultationRepository) SetPaymentStatus(ctx context.Context, tx pgx.Tx, consultationID string, status model.PaymentStatus) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE consultations
		SET payment_status = $2, updated_at = now()
		WHERE id = $1
	`, consultationID, status)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ConsultationRepository) listRange(ctx context.Context, column, id string, from, to time.Time, limit int) ([]model.Consultation, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+consultationColumns+`
		FROM consultations
		WHERE `+column+` = $1
			AND scheduled_at >= $2
			AND scheduled_at < $3
		ORDER BY scheduled_at ASC
		LIMIT $4
	`, id, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Consultation
	for rows.Next() {
		c, err := scanConsultation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *ConsultationRepository) ListForProvider(ctx context.Context, providerID string, from, to time.Time, limit int) ([]model.Consultation, error) {
	return r.listRange(ctx, "provider_id", providerID, from, to, limit)
}

func (r *ConsultationRepository) ListForClient(ctx context.Context, clientID string, from, to time.Time, limit int) ([]model.Consultation, error) {
	return r.listRange(ctx, "client_id", clientID, from, to, limit)
}

// LockIdempotencyKey claims the (client, key) pair inside the booking
// transaction. A returned record with a ConsultationID means an earlier
// attempt with this key already committed; the caller replays its outcome.
func (r *ConsultationRepository) LockIdempotencyKey(ctx context.Context, tx pgx.Tx, clientID, key string) (IdempotencyRecord, error) {
	_, err := tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (client_id, idempotency_key)
		VALUES ($1, $2)
		ON CONFLICT (client_id, idempotency_key) DO NOTHING
	`, clientID, key)
	if err != nil {
		return IdempotencyRecord{}, err
	}

	var rec IdempotencyRecord
	err = tx.QueryRow(ctx, `
		SELECT client_id::text, idempotency_key, COALESCE(consultation_id::text, '')
		FROM booking_idempotency_keys
		WHERE client_id = $1 AND idempotency_key = $2
		FOR UPDATE
	`, clientID, key).Scan(&rec.ClientID, &rec.IdempotencyKey, &rec.ConsultationID)
	if err != nil {
		return IdempotencyRecord{}, err
	}
	return rec, nil
}

func (r *ConsultationRepository) FinalizeIdempotency(ctx context.Context, tx pgx.Tx, clientID, key, consultationID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET consultation_id = $3, updated_at = now()
		WHERE client_id = $1 AND idempotency_key = $2
	`, clientID, key, consultationID)
	return err
}
