package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/techdesk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventAppointmentCreated      EventType = "appointment_created"
	EventAppointmentTransitioned EventType = "appointment_transitioned"
	EventAppointmentNotesUpdated EventType = "appointment_notes_updated"
	EventDegradedOverride        EventType = "degraded_override"
	EventSubmissionFailed        EventType = "submission_failed"
	EventSagaStarted             EventType = "saga_started"
	EventSagaCompleted           EventType = "saga_completed"
	EventSagaPartialFailure      EventType = "saga_partial_failure"
	EventTicketStatusChanged     EventType = "ticket_status_changed"
	EventTechnicianStatusChanged EventType = "technician_status_changed"
)

// Event represents a domain event emitted by the scheduler or the sandbox backend.
type Event struct {
	ID            string    `json:"id"`
	Type          EventType `json:"type"`
	AppointmentID string    `json:"appointment_id,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	Payload       any       `json:"payload"`
}

// New stamps an event with a fresh ID and the current time.
func New(eventType EventType, appointmentID string, payload any) Event {
	return Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		AppointmentID: appointmentID,
		Timestamp:     time.Now(),
		Payload:       payload,
	}
}

// AppointmentCreatedPayload payload.
type AppointmentCreatedPayload struct {
	TicketID     string    `json:"ticket_id"`
	TechnicianID string    `json:"technician_id"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Degraded     bool      `json:"degraded"`
}

// AppointmentTransitionedPayload payload.
type AppointmentTransitionedPayload struct {
	Action    domain.AppointmentAction `json:"action"`
	OldStatus domain.AppointmentStatus `json:"old_status"`
	NewStatus domain.AppointmentStatus `json:"new_status"`
	Reason    string                   `json:"reason,omitempty"`
}

// DegradedOverridePayload records an operator proceeding without a live availability check.
type DegradedOverridePayload struct {
	TechnicianID string `json:"technician_id"`
	Window       string `json:"window"`
	Cause        string `json:"cause"`
}

// SubmissionFailedPayload payload.
type SubmissionFailedPayload struct {
	Category   string `json:"category"`
	Message    string `json:"message"`
	Conclusion string `json:"conclusion,omitempty"`
}

// SagaPayload describes a cancel-and-recreate run.
type SagaPayload struct {
	OriginalID    string `json:"original_id"`
	ReplacementID string `json:"replacement_id,omitempty"`
	State         string `json:"state"`
	Cause         string `json:"cause,omitempty"`
}

// StatusChangedPayload records a status edit on a ticket or technician.
type StatusChangedPayload struct {
	EntityID  string `json:"entity_id"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}
