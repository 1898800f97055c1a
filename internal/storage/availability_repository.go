package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/mindgrid/psyconsult/internal/schedule"
	"github.com/mindgrid/psyconsult/libs/db"
)

// AvailabilityRepository is the durable boundary between the generated grid
// and what a provider has actually committed. Rows exist only for slots the
// provider has saved at least once; absent rows mean unavailable.
type AvailabilityRepository struct {
	pool *db.Pool
}

func NewAvailabilityRepository(pool *db.Pool) *AvailabilityRepository {
	return &AvailabilityRepository{pool: pool}
}

func (r *AvailabilityRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// Load returns the saved availability map for the inclusive date range. The
// bounds are bound as plain dates (UTC calendar days) so the comparison never
// routes through the server's timezone.
func (r *AvailabilityRepository) Load(ctx context.Context, providerID string, from, to time.Time) (map[schedule.SlotKey]bool, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT slot_date, slot_hour, is_available
		FROM availability_slots
		WHERE provider_id = $1
			AND slot_date >= $2::date
			AND slot_date <= $3::date
	`, providerID, from.UTC().Format(schedule.DateLayout), to.UTC().Format(schedule.DateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	saved := make(map[schedule.SlotKey]bool)
	for rows.Next() {
		var date time.Time
		var hour int
		var available bool
		if err := rows.Scan(&date, &hour, &available); err != nil {
			return nil, err
		}
		saved[schedule.SlotKey{Date: date.Format(schedule.DateLayout), Hour: hour}] = available
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return saved, nil
}

// SaveBatch upserts every change inside the caller's transaction, so a
// partially applied week is never observable.
func (r *AvailabilityRepository) SaveBatch(ctx context.Context, tx pgx.Tx, providerID string, changes []schedule.SlotChange) error {
	for _, change := range changes {
		day, err := time.ParseInLocation(schedule.DateLayout, change.Key.Date, time.UTC)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO availability_slots (provider_id, slot_date, slot_hour, is_available)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (provider_id, slot_date, slot_hour)
			DO UPDATE SET is_available = EXCLUDED.is_available, updated_at = now()
		`, providerID, day, change.Key.Hour, change.Available)
		if err != nil {
			return err
		}
	}
	return nil
}

// Claim flips one available slot to unavailable. It is the critical section
// of booking: the conditional UPDATE succeeds for exactly one transaction per
// (provider, slot); everyone else sees zero rows affected.
func (r *AvailabilityRepository) Claim(ctx context.Context, tx pgx.Tx, providerID string, key schedule.SlotKey) (bool, error) {
	day, err := time.ParseInLocation(schedule.DateLayout, key.Date, time.UTC)
	if err != nil {
		return false, err
	}
	tag, err := tx.Exec(ctx, `
		UPDATE availability_slots
		SET is_available = FALSE, updated_at = now()
		WHERE provider_id = $1
			AND slot_date = $2
			AND slot_hour = $3
			AND is_available
	`, providerID, day, key.Hour)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
