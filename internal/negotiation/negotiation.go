// Package negotiation decides whether a propose/accept/reject action is legal for a booking and
// computes the booking snapshot that results. It performs no I/O and never mutates its input.
package negotiation

import (
	"fmt"

	"github.com/Domenick1991/glamexpress/internal/domain"
	"github.com/Domenick1991/glamexpress/internal/pricing"
)

type Action string

const (
	ActionPropose Action = "propose"
	ActionAccept  Action = "accept"
	ActionReject  Action = "reject"
)

// Apply dispatches action on b. proposal is only read for ActionPropose.
func Apply(b *domain.Booking, actor domain.Role, action Action, proposal *domain.ProposedChanges) (*domain.Booking, error) {
	switch action {
	case ActionPropose:
		if proposal == nil {
			return nil, fmt.Errorf("%w: missing changes", domain.ErrInvalidProposal)
		}
		return Propose(b, actor, *proposal)
	case ActionAccept:
		return Accept(b, actor)
	case ActionReject:
		return Reject(b, actor)
	}
	return nil, fmt.Errorf("%w: unknown action %q", domain.ErrInvalidTransition, action)
}

// Propose opens a round, re-opens a completed one, or counter-proposes on an open one.
// The result awaits the other party.
func Propose(b *domain.Booking, actor domain.Role, changes domain.ProposedChanges) (*domain.Booking, error) {
	if err := checkPropose(b, actor); err != nil {
		return nil, err
	}
	if err := validateChanges(b, changes); err != nil {
		return nil, err
	}

	next := b.Clone()
	staged := changes.Clone()
	staged.ProposedBy = actor
	next.ProposedChanges = staged
	next.Negotiation = domain.AwaitingResponse(actor.Counterpart())
	return next, nil
}

// Accept merges the open proposal into the booking and confirms it.
func Accept(b *domain.Booking, actor domain.Role) (*domain.Booking, error) {
	if err := checkResponse(b, actor); err != nil {
		return nil, err
	}
	if b.PaymentStatus == domain.PaymentStatusPaid {
		return nil, fmt.Errorf("%w: booking is already paid", domain.ErrInvalidTransition)
	}

	next := b.Clone()
	p := b.ProposedChanges
	next.Date = p.Date
	next.ServiceType = p.ServiceType
	next.Services = append([]domain.Service(nil), p.Services...)
	next.Amount = pricing.Total(next.Services)
	next.Status = domain.BookingStatusConfirmed
	next.ProposedChanges = nil
	next.Negotiation = domain.CompletedNegotiation()
	return next, nil
}

// Reject drops the open proposal; the booking keeps its pre-negotiation values.
func Reject(b *domain.Booking, actor domain.Role) (*domain.Booking, error) {
	if err := checkResponse(b, actor); err != nil {
		return nil, err
	}

	next := b.Clone()
	next.ProposedChanges = nil
	next.Negotiation = domain.CompletedNegotiation()
	return next, nil
}

// Terminate force-closes an open round, used when the booking is cancelled or rejected.
func Terminate(b *domain.Booking) *domain.Booking {
	next := b.Clone()
	if next.Negotiation.IsOpen() {
		next.Negotiation = domain.CompletedNegotiation()
	}
	next.ProposedChanges = nil
	return next
}

// Allowed lists the actions actor may take now.
func Allowed(b *domain.Booking, actor domain.Role) []Action {
	var actions []Action
	for _, a := range []Action{ActionPropose, ActionAccept, ActionReject} {
		var err error
		switch a {
		case ActionPropose:
			err = checkPropose(b, actor)
		case ActionAccept:
			_, err = Accept(b, actor)
		case ActionReject:
			err = checkResponse(b, actor)
		}
		if err == nil {
			actions = append(actions, a)
		}
	}
	return actions
}

func checkBooking(b *domain.Booking, actor domain.Role) error {
	if b == nil {
		return fmt.Errorf("%w: no booking", domain.ErrInvalidTransition)
	}
	if !actor.Valid() {
		return domain.ErrInvalidActor
	}
	if b.Status.Settled() {
		return fmt.Errorf("%w: booking is %s", domain.ErrInvalidTransition, b.Status)
	}
	return nil
}

func checkPropose(b *domain.Booking, actor domain.Role) error {
	if err := checkBooking(b, actor); err != nil {
		return err
	}
	if b.PaymentStatus == domain.PaymentStatusPaid {
		return fmt.Errorf("%w: booking is already paid", domain.ErrInvalidTransition)
	}
	if b.Negotiation.IsOpen() {
		return checkTurn(b.Negotiation, actor)
	}
	return nil
}

func checkResponse(b *domain.Booking, actor domain.Role) error {
	if err := checkBooking(b, actor); err != nil {
		return err
	}
	if !b.Negotiation.IsOpen() || b.ProposedChanges == nil {
		return domain.ErrNoActiveProposal
	}
	return checkTurn(b.Negotiation, actor)
}

func checkTurn(n domain.Negotiation, actor domain.Role) error {
	if !n.Resolved() {
		return fmt.Errorf("%w: responder of the open proposal is unknown", domain.ErrInvalidTransition)
	}
	if n.Awaiting != actor {
		return fmt.Errorf("%w: waiting for %s", domain.ErrInvalidActor, n.Awaiting)
	}
	return nil
}

func validateChanges(b *domain.Booking, c domain.ProposedChanges) error {
	if c.Date.IsZero() {
		return fmt.Errorf("%w: date is required", domain.ErrInvalidProposal)
	}
	if !c.ServiceType.Valid() {
		return fmt.Errorf("%w: unknown service type %q", domain.ErrInvalidProposal, c.ServiceType)
	}
	if c.ServiceType == domain.ServiceTypeInHome && homeAddress(b) == "" {
		return fmt.Errorf("%w: in-home service needs a location", domain.ErrInvalidProposal)
	}
	if len(c.Services) == 0 {
		return fmt.Errorf("%w: at least one service is required", domain.ErrInvalidProposal)
	}
	for _, s := range c.Services {
		if s.Name == "" || s.Price < 0 {
			return fmt.Errorf("%w: bad service %q", domain.ErrInvalidProposal, s.Name)
		}
	}
	return nil
}

// homeAddress is the customer's visit address. Salon bookings carry the salon's own address,
// which never counts, and a proposal cannot supply a new one.
func homeAddress(b *domain.Booking) string {
	if b.ServiceType != domain.ServiceTypeInHome || b.Location == nil {
		return ""
	}
	return b.Location.Address
}
