package storage

import (
	"context"

	"github.com/mindgrid/psyconsult/internal/model"
	"github.com/mindgrid/psyconsult/libs/db"
)

type ProviderRepository struct {
	pool *db.Pool
}

func NewProviderRepository(pool *db.Pool) *ProviderRepository {
	return &ProviderRepository{pool: pool}
}

func (r *ProviderRepository) GetByID(ctx context.Context, providerID string) (model.Provider, error) {
	var p model.Provider
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, display_name, hourly_price_cents, timezone_offset_minutes, active, created_at
		FROM providers
		WHERE id = $1
	`, providerID).Scan(
		&p.ID,
		&p.DisplayName,
		&p.HourlyPriceCents,
		&p.TimezoneOffsetMinutes,
		&p.Active,
		&p.CreatedAt,
	)
	if err != nil {
		return model.Provider{}, err
	}
	return p, nil
}
