package model

import "time"

// Provider is a psychologist offering consultations. Providers are created at
// onboarding and deactivated, never deleted.
type Provider struct {
	ID                    string
	DisplayName           string
	HourlyPriceCents      int64
	TimezoneOffsetMinutes int
	Active                bool
	CreatedAt             time.Time
}
