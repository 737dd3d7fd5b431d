package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Domenick1991/glamexpress/internal/domain"
	"github.com/Domenick1991/glamexpress/internal/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSink struct {
	mock.Mock
}

func (m *MockSink) Deliver(ctx context.Context, n Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func event(t kafka.EventType, actor domain.Role) kafka.BookingEvent {
	return kafka.BookingEvent{
		ID:           "e-1",
		Type:         t,
		BookingID:    "b-1",
		CustomerID:   "cust-1",
		BeauticianID: "beau-1",
		ActorRole:    actor,
		Status:       "confirmed",
		Amount:       1500,
		Date:         time.Date(2026, 11, 4, 14, 30, 0, 0, time.UTC),
		OccurredAt:   time.Date(2026, 11, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestBuild_AddressesCounterpart(t *testing.T) {
	notes := Build(event(kafka.EventNegotiationProposed, domain.RoleBeautician))
	require.Len(t, notes, 1)
	assert.Equal(t, "cust-1", notes[0].UserID)
	assert.Equal(t, "b-1", notes[0].BookingID)

	notes = Build(event(kafka.EventBookingCreated, domain.RoleCustomer))
	require.Len(t, notes, 1)
	assert.Equal(t, "beau-1", notes[0].UserID)
	assert.Contains(t, notes[0].Message, "Wed 4 Nov 14:30")
}

func TestBuild_PaymentOutcomesReachBothParties(t *testing.T) {
	notes := Build(event(kafka.EventPaymentCompleted, domain.RoleCustomer))
	require.Len(t, notes, 2)
	assert.Equal(t, "Payment of KES 1500.00 received.", notes[0].Message)
}

func TestBuild_SkipsSilentEvents(t *testing.T) {
	assert.Empty(t, Build(event(kafka.EventPaymentInitiated, domain.RoleCustomer)))
	assert.Empty(t, Build(event(kafka.EventBookingRemoved, domain.RoleCustomer)))
}

func TestNotifier_Handle(t *testing.T) {
	sink := &MockSink{}
	n := NewNotifier(sink, nil)
	ctx := context.Background()

	sink.On("Deliver", ctx, mock.MatchedBy(func(note Notification) bool {
		return note.UserID == "beau-1"
	})).Return(nil).Once()

	require.NoError(t, n.Handle(ctx, event(kafka.EventNegotiationRejected, domain.RoleCustomer)))
	sink.AssertExpectations(t)
}

func TestNotifier_HandlePropagatesSinkError(t *testing.T) {
	sink := &MockSink{}
	n := NewNotifier(sink, nil)
	ctx := context.Background()
	sink.On("Deliver", ctx, mock.Anything).Return(errors.New("smtp down"))

	err := n.Handle(ctx, event(kafka.EventBookingStatusChanged, domain.RoleBeautician))
	assert.ErrorContains(t, err, "smtp down")
}
