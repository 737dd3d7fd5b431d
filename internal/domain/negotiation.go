package domain

import "fmt"

// NegotiationPhase is the canonical negotiation state; the responder lives in Negotiation.Awaiting.
type NegotiationPhase string

const (
	NegotiationInitial   NegotiationPhase = "initial"
	NegotiationOpen      NegotiationPhase = "open"
	NegotiationCompleted NegotiationPhase = "completed"
)

// Wire spellings used by the backend.
const (
	WireNegotiationInitial           = "initial"
	WireNegotiationPendingCustomer   = "pending-customer-response"
	WireNegotiationPendingBeautician = "pending-beautician-response"
	WireNegotiationChangesProposed   = "changes-proposed"
	WireNegotiationCompleted         = "completed"
)

type Negotiation struct {
	Phase    NegotiationPhase `json:"phase"`
	Awaiting Role             `json:"awaiting,omitempty"`
}

func InitialNegotiation() Negotiation {
	return Negotiation{Phase: NegotiationInitial}
}

func AwaitingResponse(responder Role) Negotiation {
	return Negotiation{Phase: NegotiationOpen, Awaiting: responder}
}

func CompletedNegotiation() Negotiation {
	return Negotiation{Phase: NegotiationCompleted}
}

func (n Negotiation) IsOpen() bool {
	return n.Phase == NegotiationOpen
}

// Resolved reports whether the responder of an open round is known.
func (n Negotiation) Resolved() bool {
	return n.Phase != NegotiationOpen || n.Awaiting.Valid()
}

// Wire renders the backend spelling. An open round with an unknown responder renders as
// changes-proposed.
func (n Negotiation) Wire() string {
	switch n.Phase {
	case NegotiationOpen:
		switch n.Awaiting {
		case RoleCustomer:
			return WireNegotiationPendingCustomer
		case RoleBeautician:
			return WireNegotiationPendingBeautician
		}
		return WireNegotiationChangesProposed
	case NegotiationCompleted:
		return WireNegotiationCompleted
	}
	return WireNegotiationInitial
}

func (n Negotiation) String() string {
	return n.Wire()
}

// ParseNegotiation maps a backend negotiationStatus onto the canonical form. changes-proposed
// collapses into pending-<other>-response when the proposer is known.
func ParseNegotiation(wire string, proposer Role) (Negotiation, error) {
	switch wire {
	case "", WireNegotiationInitial:
		return InitialNegotiation(), nil
	case WireNegotiationPendingCustomer:
		return AwaitingResponse(RoleCustomer), nil
	case WireNegotiationPendingBeautician:
		return AwaitingResponse(RoleBeautician), nil
	case WireNegotiationChangesProposed:
		if proposer.Valid() {
			return AwaitingResponse(proposer.Counterpart()), nil
		}
		return Negotiation{Phase: NegotiationOpen}, nil
	case WireNegotiationCompleted:
		return CompletedNegotiation(), nil
	}
	return Negotiation{}, fmt.Errorf("unknown negotiation status %q", wire)
}
