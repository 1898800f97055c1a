package booking

import "errors"

var (
	// ErrSlotInPast: the slot's hour has already elapsed. Recoverable by
	// re-fetching the current grid.
	ErrSlotInPast = errors.New("slot is in the past")

	// ErrSlotUnavailable: the slot is not free (never was, or another booking
	// committed first). Recoverable by choosing another slot.
	ErrSlotUnavailable = errors.New("slot is not available")

	// ErrInvalidTransition: the requested event is not an outgoing edge of the
	// consultation's current status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrNotFound: unknown provider or consultation id.
	ErrNotFound = errors.New("not found")

	// ErrForbidden: the authenticated caller is neither a party to the
	// consultation nor an admin.
	ErrForbidden = errors.New("caller may not act on this consultation")
)
