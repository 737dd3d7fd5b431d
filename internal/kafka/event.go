package kafka

import (
	"time"

	"github.com/Domenick1991/glamexpress/internal/domain"
	"github.com/google/uuid"
)

type EventType string

const (
	EventBookingCreated       EventType = "booking_created"
	EventBookingStatusChanged EventType = "booking_status_changed"
	EventBookingRemoved       EventType = "booking_removed"
	EventNegotiationProposed  EventType = "negotiation_proposed"
	EventNegotiationAccepted  EventType = "negotiation_accepted"
	EventNegotiationRejected  EventType = "negotiation_rejected"
	EventReviewSubmitted      EventType = "review_submitted"
	EventPaymentInitiated     EventType = "payment_initiated"
	EventPaymentCompleted     EventType = "payment_completed"
	EventPaymentFailed        EventType = "payment_failed"
	EventPaymentTimeout       EventType = "payment_timeout"
)

// BookingEvent is published after the backend confirmed a change. Actor is the user who caused
// it; the notifier tells the other party.
type BookingEvent struct {
	ID           string      `json:"id"`
	Type         EventType   `json:"type"`
	BookingID    string      `json:"booking_id"`
	CustomerID   string      `json:"customer_id"`
	BeauticianID string      `json:"beautician_id"`
	ActorID      string      `json:"actor_id,omitempty"`
	ActorRole    domain.Role `json:"actor_role,omitempty"`
	Status       string      `json:"status,omitempty"`
	Negotiation  string      `json:"negotiation,omitempty"`
	PaymentID    string      `json:"payment_id,omitempty"`
	Amount       float64     `json:"amount,omitempty"`
	Date         time.Time   `json:"date,omitempty"`
	OccurredAt   time.Time   `json:"occurred_at"`
}

// NewBookingEvent snapshots b for publishing.
func NewBookingEvent(t EventType, b *domain.Booking, actor domain.User, at time.Time) BookingEvent {
	e := BookingEvent{
		ID:         uuid.NewString(),
		Type:       t,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		OccurredAt: at,
	}
	if b != nil {
		e.BookingID = b.ID
		e.CustomerID = b.CustomerID
		e.BeauticianID = b.BeauticianID
		e.Status = string(b.Status)
		e.Negotiation = b.Negotiation.Wire()
		e.Amount = b.Amount
		e.Date = b.Date
	}
	return e
}
