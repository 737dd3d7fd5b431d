package lifecycle

import (
	"testing"
	"time"

	"github.com/Domenick1991/glamexpress/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck(t *testing.T) {
	const (
		customer   = domain.RoleCustomer
		beautician = domain.RoleBeautician
	)
	cases := []struct {
		from  domain.BookingStatus
		to    domain.BookingStatus
		actor domain.Role
		want  error
	}{
		{domain.BookingStatusPending, domain.BookingStatusConfirmed, beautician, nil},
		{domain.BookingStatusPending, domain.BookingStatusConfirmed, customer, domain.ErrInvalidActor},
		{domain.BookingStatusPending, domain.BookingStatusRejected, beautician, nil},
		{domain.BookingStatusPending, domain.BookingStatusRejected, customer, domain.ErrInvalidActor},
		{domain.BookingStatusPending, domain.BookingStatusCancelled, customer, nil},
		{domain.BookingStatusPending, domain.BookingStatusCompleted, beautician, domain.ErrInvalidTransition},
		{domain.BookingStatusConfirmed, domain.BookingStatusCancelled, customer, nil},
		{domain.BookingStatusConfirmed, domain.BookingStatusCancelled, beautician, nil},
		{domain.BookingStatusAccepted, domain.BookingStatusCancelled, customer, nil},
		{domain.BookingStatusConfirmed, domain.BookingStatusCompleted, beautician, nil},
		{domain.BookingStatusAccepted, domain.BookingStatusCompleted, beautician, nil},
		{domain.BookingStatusConfirmed, domain.BookingStatusCompleted, customer, domain.ErrInvalidActor},
		{domain.BookingStatusCompleted, domain.BookingStatusCancelled, customer, domain.ErrInvalidTransition},
		{domain.BookingStatusCancelled, domain.BookingStatusConfirmed, beautician, domain.ErrInvalidTransition},
		{domain.BookingStatusRejected, domain.BookingStatusPending, beautician, domain.ErrInvalidTransition},
		{domain.BookingStatusPending, domain.BookingStatusConfirmed, domain.Role("admin"), domain.ErrInvalidActor},
	}

	for _, tt := range cases {
		err := Check(tt.from, tt.to, tt.actor)
		if tt.want == nil {
			assert.NoError(t, err, "%s -> %s by %s", tt.from, tt.to, tt.actor)
			continue
		}
		assert.ErrorIs(t, err, tt.want, "%s -> %s by %s", tt.from, tt.to, tt.actor)
	}
}

func openBooking() *domain.Booking {
	return &domain.Booking{
		ID:            "b-1",
		Services:      []domain.Service{{Name: "Braiding", Price: 1500}},
		Amount:        1500,
		Status:        domain.BookingStatusConfirmed,
		PaymentStatus: domain.PaymentStatusUnpaid,
		Negotiation:   domain.AwaitingResponse(domain.RoleBeautician),
		ProposedChanges: &domain.ProposedChanges{
			ServiceType: domain.ServiceTypeSalon,
			Services:    []domain.Service{{Name: "Manicure", Price: 500}},
			ProposedBy:  domain.RoleCustomer,
		},
	}
}

func TestApply_CancelTerminatesNegotiation(t *testing.T) {
	b := openBooking()

	next, err := Apply(b, domain.RoleCustomer, domain.BookingStatusCancelled)
	require.NoError(t, err)

	assert.Equal(t, domain.BookingStatusCancelled, next.Status)
	assert.Equal(t, domain.CompletedNegotiation(), next.Negotiation)
	assert.Nil(t, next.ProposedChanges)
	assert.Equal(t, 1500.0, next.Amount)

	assert.Equal(t, domain.BookingStatusConfirmed, b.Status)
	assert.NotNil(t, b.ProposedChanges)
}

func TestApply_CompleteClosesNegotiation(t *testing.T) {
	b := openBooking()

	next, err := Apply(b, domain.RoleBeautician, domain.BookingStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCompleted, next.Status)
	assert.Equal(t, domain.CompletedNegotiation(), next.Negotiation)
	assert.Nil(t, next.ProposedChanges)
	assert.Equal(t, b.Services, next.Services, "booked services stay as confirmed")

	assert.True(t, b.Negotiation.IsOpen())
}

func TestApply_PendingToCompletedFails(t *testing.T) {
	b := openBooking()
	b.Status = domain.BookingStatusPending

	next, err := Apply(b, domain.RoleBeautician, domain.BookingStatusCompleted)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Nil(t, next)
	assert.Equal(t, domain.BookingStatusPending, b.Status)
}

func TestAllowed(t *testing.T) {
	b := openBooking()
	b.Status = domain.BookingStatusPending

	assert.Equal(t, []domain.BookingStatus{
		domain.BookingStatusConfirmed,
		domain.BookingStatusAccepted,
		domain.BookingStatusRejected,
	}, Allowed(b, domain.RoleBeautician))
	assert.Equal(t, []domain.BookingStatus{domain.BookingStatusCancelled}, Allowed(b, domain.RoleCustomer))

	b.Status = domain.BookingStatusCancelled
	assert.Empty(t, Allowed(b, domain.RoleBeautician))
}

func TestCheckRemovable(t *testing.T) {
	created := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	now := created.Add(31 * 24 * time.Hour)

	cases := []struct {
		name    string
		status  domain.BookingStatus
		payment domain.PaymentStatus
		now     time.Time
		ok      bool
	}{
		{"cancelled past grace", domain.BookingStatusCancelled, domain.PaymentStatusUnpaid, now, true},
		{"rejected past grace", domain.BookingStatusRejected, domain.PaymentStatusUnpaid, now, true},
		{"completed and paid", domain.BookingStatusCompleted, domain.PaymentStatusPaid, now, true},
		{"completed unpaid", domain.BookingStatusCompleted, domain.PaymentStatusUnpaid, now, false},
		{"confirmed", domain.BookingStatusConfirmed, domain.PaymentStatusPaid, now, false},
		{"within grace", domain.BookingStatusCancelled, domain.PaymentStatusUnpaid, created.Add(29 * 24 * time.Hour), false},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			b := &domain.Booking{Status: tt.status, PaymentStatus: tt.payment, CreatedAt: created}
			err := CheckRemovable(b, tt.now, DefaultRemovalGrace)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, domain.ErrNotRemovable)
			}
		})
	}
}

func TestCheckPayable(t *testing.T) {
	assert.NoError(t, CheckPayable(&domain.Booking{Status: domain.BookingStatusConfirmed, PaymentStatus: domain.PaymentStatusUnpaid}))
	assert.NoError(t, CheckPayable(&domain.Booking{Status: domain.BookingStatusAccepted, PaymentStatus: domain.PaymentStatusFailed}))
	assert.NoError(t, CheckPayable(&domain.Booking{Status: domain.BookingStatusCompleted, PaymentStatus: domain.PaymentStatusUnpaid}))

	assert.ErrorIs(t, CheckPayable(&domain.Booking{Status: domain.BookingStatusPending}), domain.ErrNotEligible)
	assert.ErrorIs(t, CheckPayable(&domain.Booking{Status: domain.BookingStatusCancelled}), domain.ErrNotEligible)
	assert.ErrorIs(t, CheckPayable(&domain.Booking{Status: domain.BookingStatusConfirmed, PaymentStatus: domain.PaymentStatusPaid}), domain.ErrNotEligible)
}

func TestCheckReviewable(t *testing.T) {
	assert.NoError(t, CheckReviewable(&domain.Booking{Status: domain.BookingStatusCompleted}))
	assert.ErrorIs(t, CheckReviewable(&domain.Booking{Status: domain.BookingStatusRejected}), domain.ErrNotEligible)
	assert.ErrorIs(t, CheckReviewable(nil), domain.ErrNotEligible)
}

func TestValidateRating(t *testing.T) {
	for r := 1; r <= 5; r++ {
		assert.NoError(t, ValidateRating(r))
	}
	assert.Error(t, ValidateRating(0))
	assert.Error(t, ValidateRating(6))
}
