package booking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/mindgrid/psyconsult/internal/schedule"
)

func testService(now time.Time) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(nil, nil, nil, nil, nil, logger, func() time.Time { return now })
}

func TestSaveAvailabilityRejectsElapsedSlot(t *testing.T) {
	// 10:00 on the day itself: hour 9 has elapsed, hour 14 has not.
	now := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)
	svc := testService(now)

	changes := []schedule.SlotChange{
		{Key: schedule.SlotKey{Date: "2025-06-10", Hour: 14}, Available: true},
		{Key: schedule.SlotKey{Date: "2025-06-10", Hour: 9}, Available: true},
	}
	err := svc.SaveAvailability(context.Background(), "prov-1", changes)
	if !errors.Is(err, ErrSlotInPast) {
		t.Fatalf("SaveAvailability() err = %v, want ErrSlotInPast", err)
	}
}

func TestValidateChangesHourBoundary(t *testing.T) {
	changes := []schedule.SlotChange{
		{Key: schedule.SlotKey{Date: "2025-06-10", Hour: 9}, Available: true},
	}

	// A slot starting exactly at now is still editable.
	atBoundary := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	if err := validateChanges(changes, atBoundary); err != nil {
		t.Fatalf("validateChanges() at boundary = %v, want nil", err)
	}

	if err := validateChanges(changes, atBoundary.Add(time.Minute)); !errors.Is(err, ErrSlotInPast) {
		t.Fatalf("validateChanges() past boundary = %v, want ErrSlotInPast", err)
	}
}

func TestValidateChangesMalformedKey(t *testing.T) {
	now := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)
	changes := []schedule.SlotChange{
		{Key: schedule.SlotKey{Date: "10-06-2025", Hour: 9}, Available: true},
	}
	err := validateChanges(changes, now)
	if err == nil || errors.Is(err, ErrSlotInPast) {
		t.Fatalf("validateChanges() = %v, want a plain validation error", err)
	}
}

func TestBookPastSlot(t *testing.T) {
	now := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)
	svc := testService(now)

	_, err := svc.Book(context.Background(), BookRequest{
		ProviderID: "prov-1",
		ClientID:   "cli-1",
		Slot:       schedule.SlotKey{Date: "2025-06-10", Hour: 9},
	})
	if !errors.Is(err, ErrSlotInPast) {
		t.Fatalf("Book() err = %v, want ErrSlotInPast", err)
	}
}

func TestServiceNow(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 30, 0, 0, time.UTC)
	if got := testService(now).Now(); !got.Equal(now) {
		t.Fatalf("Now() = %v, want %v", got, now)
	}
}
