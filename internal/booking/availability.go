package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/mindgrid/psyconsult/internal/schedule"
	"github.com/mindgrid/psyconsult/internal/storage"
)

// maxRangeDays caps the client-facing schedule search window.
const maxRangeDays = 62

// WeekGrid renders the provider-editing calendar for one week offset.
func (s *Service) WeekGrid(ctx context.Context, providerID string, weekOffset int) ([]schedule.Day, error) {
	if _, err := s.providers.GetByID(ctx, providerID); err != nil {
		if storage.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load provider: %w", err)
	}

	now := s.clock()
	start := schedule.WeekStart(now, weekOffset)
	end := start.AddDate(0, 0, schedule.DaysPerWeek-1)

	saved, err := s.slots.Load(ctx, providerID, start, end)
	if err != nil {
		return nil, fmt.Errorf("load availability: %w", err)
	}
	return schedule.GenerateWeek(weekOffset, saved, now), nil
}

// RangeSlots returns the flat slot list for an inclusive date range, the
// read path behind client-side slot search.
func (s *Service) RangeSlots(ctx context.Context, providerID string, from, to time.Time) ([]schedule.Slot, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("invalid range: end %s before start %s", to.Format(schedule.DateLayout), from.Format(schedule.DateLayout))
	}
	if to.Sub(from) > maxRangeDays*24*time.Hour {
		to = from.AddDate(0, 0, maxRangeDays)
	}
	if _, err := s.providers.GetByID(ctx, providerID); err != nil {
		if storage.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load provider: %w", err)
	}

	saved, err := s.slots.Load(ctx, providerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load availability: %w", err)
	}
	return schedule.GenerateRange(from, to, saved, s.clock()), nil
}

// SaveAvailability persists a batched availability edit. The whole batch is
// rejected with ErrSlotInPast if any entry's hour has elapsed by the time the
// save runs: that means the grid the provider edited is stale and must be
// re-rendered. Otherwise the batch is applied atomically.
func (s *Service) SaveAvailability(ctx context.Context, providerID string, changes []schedule.SlotChange) error {
	if len(changes) == 0 {
		return nil
	}

	if err := validateChanges(changes, s.clock()); err != nil {
		return err
	}

	if _, err := s.providers.GetByID(ctx, providerID); err != nil {
		if storage.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("load provider: %w", err)
	}

	tx, err := s.slots.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.slots.SaveBatch(ctx, tx, providerID, changes); err != nil {
		return fmt.Errorf("save availability: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.logger.Info("availability saved",
		"provider_id", providerID,
		"slots", len(changes),
	)
	return nil
}

// validateChanges rejects the whole batch when any entry is malformed or its
// hour has already elapsed. A slot starting exactly at now is still editable.
func validateChanges(changes []schedule.SlotChange, now time.Time) error {
	for _, change := range changes {
		if !change.Key.Valid() {
			return fmt.Errorf("invalid slot key %q hour %d", change.Key.Date, change.Key.Hour)
		}
		if schedule.IsPast(change.Key, now) {
			return ErrSlotInPast
		}
	}
	return nil
}
