package audit

import (
	"time"

	"github.com/google/uuid"

	id "rihla/pkg/domain"
)

// Action identifies the domain operation an event records. Values are stable
// API: they are persisted and queried by operators.
type Action string

const (
	ActionTripCreated           Action = "trip.created"
	ActionRegistrationCreated   Action = "registration.created"
	ActionPaymentRecorded       Action = "registration.payment_recorded"
	ActionVisaUpdated           Action = "registration.visa_updated"
	ActionRegistrationCancelled Action = "registration.cancelled"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	OccurredAt time.Time
	OrgID      id.OrgID
	ActorID    id.MemberID
	Action     Action
	EntityType string
	EntityID   uuid.UUID
	Detail     string
}
