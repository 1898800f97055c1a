package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mindgrid/psyconsult/internal/model"
	"github.com/mindgrid/psyconsult/internal/outbox"
	"github.com/mindgrid/psyconsult/internal/schedule"
	"github.com/mindgrid/psyconsult/internal/storage"
	"github.com/mindgrid/psyconsult/libs/auth"
	"github.com/mindgrid/psyconsult/libs/db"
)

// Service is the only component that turns an available slot into a
// consultation and the only component that changes a consultation's status.
type Service struct {
	pool          *db.Pool
	providers     *storage.ProviderRepository
	slots         *storage.AvailabilityRepository
	consultations *storage.ConsultationRepository
	outbox        *outbox.Repository
	logger        *slog.Logger
	clock         schedule.Clock
}

func NewService(
	pool *db.Pool,
	providers *storage.ProviderRepository,
	slots *storage.AvailabilityRepository,
	consultations *storage.ConsultationRepository,
	outboxRepo *outbox.Repository,
	logger *slog.Logger,
	clock schedule.Clock,
) *Service {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		pool:          pool,
		providers:     providers,
		slots:         slots,
		consultations: consultations,
		outbox:        outboxRepo,
		logger:        logger,
		clock:         clock,
	}
}

type BookRequest struct {
	ProviderID     string
	ClientID       string
	Slot           schedule.SlotKey
	ChildID        *string
	Notes          string
	IdempotencyKey string
}

// Book allocates a slot to a consultation request. Check and act are one
// critical section: re-checking availability, consuming the slot, and
// creating the consultation happen in a single transaction, so under
// concurrent callers exactly one Book per (provider, slot) succeeds and all
// others observe ErrSlotUnavailable. The booked event is written to the
// outbox in the same transaction and published only after commit.
func (s *Service) Book(ctx context.Context, req BookRequest) (*model.Consultation, error) {
	if !req.Slot.Valid() {
		return nil, ErrSlotUnavailable
	}
	if schedule.IsPast(req.Slot, s.clock()) {
		return nil, ErrSlotInPast
	}
	start, err := req.Slot.Start()
	if err != nil {
		return nil, ErrSlotUnavailable
	}

	provider, err := s.providers.GetByID(ctx, req.ProviderID)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load provider: %w", err)
	}
	if !provider.Active {
		return nil, ErrNotFound
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if req.IdempotencyKey != "" {
		rec, err := s.consultations.LockIdempotencyKey(ctx, tx, req.ClientID, req.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("lock idempotency key: %w", err)
		}
		if rec.ConsultationID != "" {
			prior, err := s.consultations.GetByID(ctx, rec.ConsultationID)
			if err != nil {
				return nil, fmt.Errorf("load prior booking: %w", err)
			}
			_ = tx.Rollback(ctx)
			return &prior, nil
		}
	}

	claimed, err := s.slots.Claim(ctx, tx, req.ProviderID, req.Slot)
	if err != nil {
		return nil, fmt.Errorf("claim slot: %w", err)
	}
	if !claimed {
		return nil, ErrSlotUnavailable
	}

	c := &model.Consultation{
		ID:              uuid.NewString(),
		ProviderID:      req.ProviderID,
		ClientID:        req.ClientID,
		ChildID:         req.ChildID,
		ScheduledAt:     start,
		DurationMinutes: schedule.SlotDurationMinutes,
		Status:          model.StatusPending,
		PriceCents:      provider.HourlyPriceCents,
		PaymentStatus:   model.PaymentUnpaid,
		Notes:           req.Notes,
	}
	if err := s.consultations.Create(ctx, tx, c); err != nil {
		// The partial unique index on (provider_id, scheduled_at) backs the
		// slot claim: a conflict here means another live consultation already
		// holds the hour (e.g. after the provider re-opened a consumed slot).
		if storage.IsConflict(err) {
			return nil, ErrSlotUnavailable
		}
		return nil, fmt.Errorf("create consultation: %w", err)
	}

	if err := s.insertEvent(ctx, tx, outbox.EventConsultationBooked, c); err != nil {
		return nil, err
	}

	if req.IdempotencyKey != "" {
		if err := s.consultations.FinalizeIdempotency(ctx, tx, req.ClientID, req.IdempotencyKey, c.ID); err != nil {
			return nil, fmt.Errorf("finalize idempotency key: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	s.logger.Info("consultation booked",
		"consultation_id", c.ID,
		"provider_id", c.ProviderID,
		"client_id", c.ClientID,
		"scheduled_at", c.ScheduledAt.Format(time.RFC3339),
	)
	return c, nil
}

// Transition applies one lifecycle event to a consultation. The caller's
// identity gates who may fire which event: the provider drives
// confirm/reject/start/complete/no_show; cancel is open to the provider and
// the owning client; admins bypass ownership.
func (s *Service) Transition(ctx context.Context, consultationID string, event model.TransitionEvent, caller *auth.Claims, reason string) (*model.Consultation, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := s.consultations.GetForUpdate(ctx, tx, consultationID)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load consultation: %w", err)
	}

	if err := authorizeTransition(current, event, caller); err != nil {
		return nil, err
	}

	next, ok := model.NextStatus(current.Status, event)
	if !ok {
		return nil, ErrInvalidTransition
	}
	// A no-show can only be recorded once the scheduled hour has passed
	// without the session starting.
	if event == model.EventNoShow && !current.ScheduledAt.Before(s.clock()) {
		return nil, ErrInvalidTransition
	}

	updated, err := s.consultations.UpdateStatus(ctx, tx, consultationID, next, reason)
	if err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}

	// Cancelling never frees the availability slot. Re-opening a cancelled
	// hour is a separate provider action through the schedule save, which
	// avoids racing a booking already in flight.
	if eventType := notificationFor(event); eventType != "" {
		if err := s.insertEvent(ctx, tx, eventType, &updated); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	s.logger.Info("consultation transitioned",
		"consultation_id", updated.ID,
		"event", string(event),
		"status", string(updated.Status),
	)
	return &updated, nil
}

func authorizeTransition(c model.Consultation, event model.TransitionEvent, caller *auth.Claims) error {
	if caller == nil {
		return ErrForbidden
	}
	if caller.Role == auth.RoleAdmin {
		return nil
	}
	switch event {
	case model.EventCancel:
		if caller.Sub == c.ProviderID || caller.Sub == c.ClientID {
			return nil
		}
	default:
		if caller.Role == auth.RoleProvider && caller.Sub == c.ProviderID {
			return nil
		}
	}
	return ErrForbidden
}

func notificationFor(event model.TransitionEvent) string {
	switch event {
	case model.EventConfirm:
		return outbox.EventConsultationConfirmed
	case model.EventCancel:
		return outbox.EventConsultationCancelled
	case model.EventComplete:
		return outbox.EventConsultationCompleted
	}
	return ""
}

func (s *Service) insertEvent(ctx context.Context, tx pgx.Tx, eventType string, c *model.Consultation) error {
	payload, err := json.Marshal(map[string]any{
		"consultation_id": c.ID,
		"provider_id":     c.ProviderID,
		"client_id":       c.ClientID,
		"scheduled_at":    c.ScheduledAt.UTC().Format(time.RFC3339),
		"status":          string(c.Status),
		"price_cents":     c.PriceCents,
	})
	if err != nil {
		return fmt.Errorf("build event payload: %w", err)
	}
	if err := s.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "consultation",
		AggregateID:   c.ID,
		EventType:     eventType,
		Payload:       payload,
	}); err != nil {
		return fmt.Errorf("write outbox event: %w", err)
	}
	return nil
}

// Now reports the service clock, so callers anchor list windows and other
// time-relative defaults to the same time source as the booking rules.
func (s *Service) Now() time.Time {
	return s.clock()
}

func (s *Service) Get(ctx context.Context, consultationID string) (*model.Consultation, error) {
	c, err := s.consultations.GetByID(ctx, consultationID)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *Service) ListForProvider(ctx context.Context, providerID string, from, to time.Time, limit int) ([]model.Consultation, error) {
	return s.consultations.ListForProvider(ctx, providerID, from, to, limit)
}

func (s *Service) ListForClient(ctx context.Context, clientID string, from, to time.Time, limit int) ([]model.Consultation, error) {
	return s.consultations.ListForClient(ctx, clientID, from, to, limit)
}
