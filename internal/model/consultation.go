package model

import "time"

type ConsultationStatus string

const (
	StatusPending    ConsultationStatus = "pending"
	StatusConfirmed  ConsultationStatus = "confirmed"
	StatusInProgress ConsultationStatus = "in_progress"
	StatusCompleted  ConsultationStatus = "completed"
	StatusRejected   ConsultationStatus = "rejected"
	StatusCancelled  ConsultationStatus = "cancelled"
	StatusNoShow     ConsultationStatus = "no_show"
)

type TransitionEvent string

const (
	EventConfirm  TransitionEvent = "confirm"
	EventReject   TransitionEvent = "reject"
	EventCancel   TransitionEvent = "cancel"
	EventStart    TransitionEvent = "start"
	EventComplete TransitionEvent = "complete"
	EventNoShow   TransitionEvent = "no_show"
)

type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// transitions is the full status lifecycle. Terminal statuses have no entry.
var transitions = map[ConsultationStatus]map[TransitionEvent]ConsultationStatus{
	StatusPending: {
		EventConfirm: StatusConfirmed,
		EventReject:  StatusRejected,
		EventCancel:  StatusCancelled,
	},
	StatusConfirmed: {
		EventStart:  StatusInProgress,
		EventCancel: StatusCancelled,
		EventNoShow: StatusNoShow,
	},
	StatusInProgress: {
		EventComplete: StatusCompleted,
	},
}

// NextStatus returns the status that event leads to from current, and whether
// the transition is legal at all.
func NextStatus(current ConsultationStatus, event TransitionEvent) (ConsultationStatus, bool) {
	next, ok := transitions[current][event]
	return next, ok
}

func (s ConsultationStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusRejected, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

type Consultation struct {
	ID              string
	ProviderID      string
	ClientID        string
	ChildID         *string
	ScheduledAt     time.Time
	DurationMinutes int
	Status          ConsultationStatus
	PriceCents      int64
	PaymentStatus   PaymentStatus
	Notes           string
	CancelReason    string
	CancelledAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
