// Package lifecycle gates booking status transitions and the eligibility checks that hang off
// the status and payment axes.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/Domenick1991/glamexpress/internal/domain"
	"github.com/Domenick1991/glamexpress/internal/negotiation"
)

// DefaultRemovalGrace is how long a terminal booking stays before the client may remove it.
const DefaultRemovalGrace = 30 * 24 * time.Hour

var (
	beauticianOnly = []domain.Role{domain.RoleBeautician}
	customerOnly   = []domain.Role{domain.RoleCustomer}
	eitherParty    = []domain.Role{domain.RoleCustomer, domain.RoleBeautician}
)

// transitionMap lists, per current status, the reachable statuses and who may move there.
var transitionMap = map[domain.BookingStatus]map[domain.BookingStatus][]domain.Role{
	domain.BookingStatusPending: {
		domain.BookingStatusConfirmed: beauticianOnly,
		domain.BookingStatusAccepted:  beauticianOnly,
		domain.BookingStatusRejected:  beauticianOnly,
		domain.BookingStatusCancelled: customerOnly,
	},
	domain.BookingStatusConfirmed: {
		domain.BookingStatusCompleted: beauticianOnly,
		domain.BookingStatusCancelled: eitherParty,
	},
	domain.BookingStatusAccepted: {
		domain.BookingStatusCompleted: beauticianOnly,
		domain.BookingStatusCancelled: eitherParty,
	},
}

// Check reports whether actor may move a booking from one status to another. A move that no
// role may make is ErrInvalidTransition; a legal move by the wrong role is ErrInvalidActor.
func Check(from, to domain.BookingStatus, actor domain.Role) error {
	if !actor.Valid() {
		return domain.ErrInvalidActor
	}
	roles, ok := transitionMap[from][to]
	if !ok {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, from, to)
	}
	for _, r := range roles {
		if r == actor {
			return nil
		}
	}
	return fmt.Errorf("%w: %s may not move a booking %s -> %s", domain.ErrInvalidActor, actor, from, to)
}

// Apply returns the snapshot expected after the transition. Cancelling, rejecting or completing
// closes any open negotiation round and discards the proposal.
func Apply(b *domain.Booking, actor domain.Role, to domain.BookingStatus) (*domain.Booking, error) {
	if b == nil {
		return nil, fmt.Errorf("%w: no booking", domain.ErrInvalidTransition)
	}
	if err := Check(b.Status, to, actor); err != nil {
		return nil, err
	}

	next := b.Clone()
	if to.Settled() {
		next = negotiation.Terminate(next)
	}
	next.Status = to
	return next, nil
}

// Allowed lists the statuses actor can move b to.
func Allowed(b *domain.Booking, actor domain.Role) []domain.BookingStatus {
	if b == nil {
		return nil
	}
	var out []domain.BookingStatus
	for _, to := range []domain.BookingStatus{
		domain.BookingStatusConfirmed,
		domain.BookingStatusAccepted,
		domain.BookingStatusRejected,
		domain.BookingStatusCompleted,
		domain.BookingStatusCancelled,
	} {
		if Check(b.Status, to, actor) == nil {
			out = append(out, to)
		}
	}
	return out
}

// Terminal reports whether nothing further can happen to b: cancelled, rejected, or completed
// and paid.
func Terminal(b *domain.Booking) bool {
	if b.Status.Closed() {
		return true
	}
	return b.Status == domain.BookingStatusCompleted && b.PaymentStatus == domain.PaymentStatusPaid
}

// CheckRemovable allows removal of a terminal booking once grace has elapsed since creation.
func CheckRemovable(b *domain.Booking, now time.Time, grace time.Duration) error {
	if b == nil {
		return domain.ErrNotRemovable
	}
	if !Terminal(b) {
		return fmt.Errorf("%w: booking is %s/%s", domain.ErrNotRemovable, b.Status, b.PaymentStatus)
	}
	if now.Sub(b.CreatedAt) < grace {
		return fmt.Errorf("%w: available after %s", domain.ErrNotRemovable, b.CreatedAt.Add(grace).Format(time.DateOnly))
	}
	return nil
}

func confirmedLike(s domain.BookingStatus) bool {
	return s.Active() || s == domain.BookingStatusCompleted
}

// CheckPayable allows a payment when the booking is confirmed-like and not yet paid.
func CheckPayable(b *domain.Booking) error {
	if b == nil || !confirmedLike(b.Status) {
		return fmt.Errorf("%w: booking must be confirmed before payment", domain.ErrNotEligible)
	}
	if b.PaymentStatus == domain.PaymentStatusPaid {
		return fmt.Errorf("%w: booking is already paid", domain.ErrNotEligible)
	}
	return nil
}

// CheckReviewable allows a review on confirmed-like bookings.
func CheckReviewable(b *domain.Booking) error {
	if b == nil || !confirmedLike(b.Status) {
		return fmt.Errorf("%w: only confirmed or completed bookings can be reviewed", domain.ErrNotEligible)
	}
	return nil
}

func ValidateRating(rating int) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("%w: rating must be between 1 and 5", domain.ErrNotEligible)
	}
	return nil
}
