package outbox

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType (event per topic).
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// Consultation lifecycle events published to the notification pipeline.
// Emission points: booked on creation; confirmed/cancelled/completed on the
// matching transitions. Other transitions are silent.
const (
	EventConsultationBooked    = "consultation.booked.v1"
	EventConsultationConfirmed = "consultation.confirmed.v1"
	EventConsultationCancelled = "consultation.cancelled.v1"
	EventConsultationCompleted = "consultation.completed.v1"
)
