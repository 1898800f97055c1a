package payments

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mindgrid/psyconsult/internal/model"
	"github.com/mindgrid/psyconsult/internal/storage"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

// WebhookHandler ingests Stripe events and records payment outcomes on
// consultations. The booking core never calls the gateway itself: charging
// happens in the payment layer, and this handler only mirrors its result into
// payment_status. Signature verification is the auth; no JWT on this route.
type WebhookHandler struct {
	events        *storage.PaymentEventRepository
	consultations *storage.ConsultationRepository
	logger        *slog.Logger
	secret        string
	tolerance     time.Duration
}

func NewWebhookHandler(events *storage.PaymentEventRepository, consultations *storage.ConsultationRepository, logger *slog.Logger, secret string, tolerance time.Duration) *WebhookHandler {
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}
	return &WebhookHandler{
		events:        events,
		consultations: consultations,
		logger:        logger,
		secret:        secret,
		tolerance:     tolerance,
	}
}

func (h *WebhookHandler) Stripe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if strings.TrimSpace(h.secret) == "" {
		http.Error(w, "stripe webhook not configured", http.StatusServiceUnavailable)
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if strings.TrimSpace(sigHeader) == "" {
		http.Error(w, "missing Stripe-Signature header", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1 MiB hard cap
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	evt, err := webhook.ConstructEventWithTolerance(body, sigHeader, h.secret, h.tolerance)
	if err != nil {
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	evtType := string(evt.Type)
	h.logger.Info("payment provider event received",
		"provider", "stripe",
		"provider_event_id", evt.ID,
		"event_type", evtType,
	)

	tx, err := h.events.Begin(r.Context())
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(r.Context()) }()

	// Idempotency: ignore replayed Stripe deliveries.
	if err := h.events.Insert(r.Context(), tx, storage.ProviderEvent{
		Provider:        "stripe",
		ProviderEventID: evt.ID,
		EventType:       evtType,
		Payload:         body,
	}); err != nil {
		if errors.Is(err, storage.ErrDuplicateProviderEvent) {
			_ = tx.Commit(r.Context())
			writeStatus(w, http.StatusOK, "duplicate")
			return
		}
		http.Error(w, "failed to record provider event", http.StatusInternalServerError)
		return
	}

	consultationID, status, ok := h.outcomeFromEvent(evt)
	if ok {
		found, err := h.consultations.SetPaymentStatus(r.Context(), tx, consultationID, status)
		if err != nil {
			http.Error(w, "failed to record payment status", http.StatusInternalServerError)
			return
		}
		if !found {
			h.logger.Warn("stripe event references unknown consultation",
				"provider_event_id", evt.ID,
				"consultation_id", consultationID,
			)
		}
	}

	if err := tx.Commit(r.Context()); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	writeStatus(w, http.StatusOK, "ok")
}

// outcomeFromEvent maps the Stripe event types this platform cares about to a
// (consultation, payment status) pair. Everything else is recorded and
// skipped.
func (h *WebhookHandler) outcomeFromEvent(evt stripe.Event) (string, model.PaymentStatus, bool) {
	switch string(evt.Type) {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(evt.Data.Raw, &session); err != nil {
			h.logger.Error("stripe: invalid checkout session payload", "err", err)
			return "", "", false
		}
		id := strings.TrimSpace(session.Metadata["consultation_id"])
		if id == "" {
			h.logger.Warn("stripe: checkout session missing consultation_id metadata")
			return "", "", false
		}
		return id, model.PaymentPaid, true

	case "charge.refunded":
		var charge stripe.Charge
		if err := json.Unmarshal(evt.Data.Raw, &charge); err != nil {
			h.logger.Error("stripe: invalid charge payload", "err", err)
			return "", "", false
		}
		id := strings.TrimSpace(charge.Metadata["consultation_id"])
		if id == "" {
			h.logger.Warn("stripe: charge missing consultation_id metadata")
			return "", "", false
		}
		return id, model.PaymentRefunded, true
	}
	return "", "", false
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}
