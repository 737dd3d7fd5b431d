// Package notify turns booking events into messages for the party who did not cause them.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/Domenick1991/glamexpress/internal/domain"
	"github.com/Domenick1991/glamexpress/internal/kafka"
	"github.com/sirupsen/logrus"
)

type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	BookingID string    `json:"booking_id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Sink delivers a notification to a user.
type Sink interface {
	Deliver(ctx context.Context, n Notification) error
}

type Notifier struct {
	sink   Sink
	logger *logrus.Logger
}

func NewNotifier(sink Sink, logger *logrus.Logger) *Notifier {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Notifier{sink: sink, logger: logger}
}

// Handle delivers the event's notifications. Events with no message for anyone are skipped.
func (n *Notifier) Handle(ctx context.Context, event kafka.BookingEvent) error {
	for _, note := range Build(event) {
		if n.sink == nil {
			n.logger.WithFields(logrus.Fields{
				"booking_id": note.BookingID,
				"user_id":    note.UserID,
				"event":      event.Type,
			}).Info(note.Message)
			continue
		}
		if err := n.sink.Deliver(ctx, note); err != nil {
			return fmt.Errorf("deliver %s to %s: %w", event.Type, note.UserID, err)
		}
	}
	return nil
}

// Build renders the notifications for an event, addressed to the recipients it concerns.
func Build(event kafka.BookingEvent) []Notification {
	msg := message(event)
	if msg == "" {
		return nil
	}
	var out []Notification
	for _, userID := range recipients(event) {
		out = append(out, Notification{
			ID:        event.ID + ":" + userID,
			UserID:    userID,
			BookingID: event.BookingID,
			Message:   msg,
			CreatedAt: event.OccurredAt,
		})
	}
	return out
}

func recipients(event kafka.BookingEvent) []string {
	switch event.Type {
	case kafka.EventPaymentCompleted, kafka.EventPaymentFailed, kafka.EventPaymentTimeout:
		return nonEmpty(event.CustomerID, event.BeauticianID)
	}
	switch event.ActorRole {
	case domain.RoleCustomer:
		return nonEmpty(event.BeauticianID)
	case domain.RoleBeautician:
		return nonEmpty(event.CustomerID)
	}
	return nonEmpty(event.CustomerID, event.BeauticianID)
}

func nonEmpty(ids ...string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}

func message(event kafka.BookingEvent) string {
	when := ""
	if !event.Date.IsZero() {
		when = " for " + event.Date.Format("Mon 2 Jan 15:04")
	}
	switch event.Type {
	case kafka.EventBookingCreated:
		return fmt.Sprintf("New booking request%s.", when)
	case kafka.EventBookingStatusChanged:
		return fmt.Sprintf("Your booking%s was %s.", when, event.Status)
	case kafka.EventNegotiationProposed:
		return "Changes were proposed to your booking. Please review and respond."
	case kafka.EventNegotiationAccepted:
		return fmt.Sprintf("Your proposed changes were accepted. Booking confirmed%s.", when)
	case kafka.EventNegotiationRejected:
		return "Your proposed changes were rejected. The booking keeps its previous details."
	case kafka.EventReviewSubmitted:
		return "You received a new review."
	case kafka.EventPaymentCompleted:
		return fmt.Sprintf("Payment of KES %.2f received.", event.Amount)
	case kafka.EventPaymentFailed:
		return "M-Pesa payment failed. Please try again."
	case kafka.EventPaymentTimeout:
		return "We could not confirm the M-Pesa payment yet. Check the payment status again shortly."
	}
	return ""
}
