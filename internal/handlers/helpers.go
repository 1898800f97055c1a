package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/mindgrid/psyconsult/internal/booking"
	"github.com/mindgrid/psyconsult/internal/model"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

// writeDomainError maps the core's typed errors to user-facing statuses.
// Anything unmapped is an internal error; the caller logs it.
func writeDomainError(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, booking.ErrSlotInPast):
		http.Error(w, "slot is in the past; re-fetch the schedule and retry", http.StatusUnprocessableEntity)
	case errors.Is(err, booking.ErrSlotUnavailable):
		http.Error(w, "slot is not available", http.StatusConflict)
	case errors.Is(err, booking.ErrInvalidTransition):
		http.Error(w, "transition not permitted from current status", http.StatusConflict)
	case errors.Is(err, booking.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, booking.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	default:
		return false
	}
	return true
}

type consultationItem struct {
	ID              string  `json:"id"`
	ProviderID      string  `json:"provider_id"`
	ClientID        string  `json:"client_id"`
	ChildID         *string `json:"child_id,omitempty"`
	ScheduledAt     string  `json:"scheduled_at"`
	DurationMinutes int     `json:"duration_minutes"`
	Status          string  `json:"status"`
	PriceCents      int64   `json:"price_cents"`
	PaymentStatus   string  `json:"payment_status"`
	Notes           string  `json:"notes,omitempty"`
	CancelReason    string  `json:"cancel_reason,omitempty"`
	CancelledAt     string  `json:"cancelled_at,omitempty"`
	CreatedAt       string  `json:"created_at"`
}

func toConsultationItem(c model.Consultation) consultationItem {
	item := consultationItem{
		ID:              c.ID,
		ProviderID:      c.ProviderID,
		ClientID:        c.ClientID,
		ChildID:         c.ChildID,
		ScheduledAt:     c.ScheduledAt.UTC().Format(time.RFC3339),
		DurationMinutes: c.DurationMinutes,
		Status:          string(c.Status),
		PriceCents:      c.PriceCents,
		PaymentStatus:   string(c.PaymentStatus),
		Notes:           c.Notes,
		CancelReason:    c.CancelReason,
		CreatedAt:       c.CreatedAt.UTC().Format(time.RFC3339),
	}
	if c.CancelledAt != nil {
		item.CancelledAt = c.CancelledAt.UTC().Format(time.RFC3339)
	}
	return item
}
