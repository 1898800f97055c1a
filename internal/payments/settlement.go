package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mindgrid/psyconsult/internal/consumer"
	"github.com/mindgrid/psyconsult/internal/model"
	"github.com/mindgrid/psyconsult/internal/storage"
	"github.com/segmentio/kafka-go"
)

type settlementPayload struct {
	ConsultationID string `json:"consultation_id"`
	PaymentStatus  string `json:"payment_status"`
}

func parseSettlement(value []byte) (settlementPayload, error) {
	var p settlementPayload
	if err := json.Unmarshal(value, &p); err != nil {
		return settlementPayload{}, fmt.Errorf("invalid settlement payload: %w", err)
	}
	if p.ConsultationID == "" {
		return settlementPayload{}, fmt.Errorf("settlement payload missing consultation_id")
	}
	switch model.PaymentStatus(p.PaymentStatus) {
	case model.PaymentPaid, model.PaymentRefunded:
	default:
		return settlementPayload{}, fmt.Errorf("unsupported payment_status %q", p.PaymentStatus)
	}
	return p, nil
}

// NewSettlementHandler returns the consumer handler for payment settlement
// events emitted by the billing pipeline (non-webhook channels). Malformed
// payloads are logged and dropped, not retried.
func NewSettlementHandler(consultations *storage.ConsultationRepository, logger *slog.Logger) consumer.Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		p, err := parseSettlement(msg.Value)
		if err != nil {
			logger.Error("settlement event rejected", "err", err, "topic", msg.Topic)
			return nil
		}

		tx, err := consultations.Begin(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		found, err := consultations.SetPaymentStatus(ctx, tx, p.ConsultationID, model.PaymentStatus(p.PaymentStatus))
		if err != nil {
			return err
		}
		if !found {
			logger.Warn("settlement references unknown consultation", "consultation_id", p.ConsultationID)
		}
		return tx.Commit(ctx)
	}
}
