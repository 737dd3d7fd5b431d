package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNegotiation(t *testing.T) {
	cases := []struct {
		wire     string
		proposer Role
		want     Negotiation
	}{
		{"", "", InitialNegotiation()},
		{"initial", "", InitialNegotiation()},
		{"pending-customer-response", "", AwaitingResponse(RoleCustomer)},
		{"pending-beautician-response", RoleBeautician, AwaitingResponse(RoleBeautician)},
		{"changes-proposed", RoleCustomer, AwaitingResponse(RoleBeautician)},
		{"changes-proposed", RoleBeautician, AwaitingResponse(RoleCustomer)},
		{"changes-proposed", "", Negotiation{Phase: NegotiationOpen}},
		{"completed", "", CompletedNegotiation()},
	}
	for _, tt := range cases {
		got, err := ParseNegotiation(tt.wire, tt.proposer)
		require.NoError(t, err, tt.wire)
		assert.Equal(t, tt.want, got, tt.wire)
	}

	_, err := ParseNegotiation("haggling", "")
	assert.Error(t, err)
}

func TestNegotiationWire(t *testing.T) {
	assert.Equal(t, "initial", InitialNegotiation().Wire())
	assert.Equal(t, "pending-customer-response", AwaitingResponse(RoleCustomer).Wire())
	assert.Equal(t, "pending-beautician-response", AwaitingResponse(RoleBeautician).Wire())
	assert.Equal(t, "changes-proposed", Negotiation{Phase: NegotiationOpen}.Wire())
	assert.Equal(t, "completed", CompletedNegotiation().Wire())

	assert.False(t, Negotiation{Phase: NegotiationOpen}.Resolved())
	assert.True(t, InitialNegotiation().Resolved())
}

func TestRole(t *testing.T) {
	r, err := ParseRole("beautician")
	require.NoError(t, err)
	assert.Equal(t, RoleCustomer, r.Counterpart())

	_, err = ParseRole("admin")
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestBookingParty(t *testing.T) {
	b := &Booking{CustomerID: "c", BeauticianID: "s"}

	role, ok := b.Party("c")
	assert.True(t, ok)
	assert.Equal(t, RoleCustomer, role)

	role, ok = b.Party("s")
	assert.True(t, ok)
	assert.Equal(t, RoleBeautician, role)

	_, ok = b.Party("x")
	assert.False(t, ok)
	_, ok = b.Party("")
	assert.False(t, ok)
}

func TestBookingCloneIsDeep(t *testing.T) {
	b := &Booking{
		Services:        []Service{{Name: "Braiding", Price: 1500}},
		Location:        &Location{Address: "Ngong Rd"},
		ProposedChanges: &ProposedChanges{Services: []Service{{Name: "Manicure", Price: 500}}},
	}

	cp := b.Clone()
	cp.Services[0].Price = 1
	cp.Location.Address = "elsewhere"
	cp.ProposedChanges.Services[0].Name = "Pedicure"

	assert.Equal(t, 1500.0, b.Services[0].Price)
	assert.Equal(t, "Ngong Rd", b.Location.Address)
	assert.Equal(t, "Manicure", b.ProposedChanges.Services[0].Name)
}

func TestUserMessage(t *testing.T) {
	err := &BackendError{Kind: ErrRejected, StatusCode: 400, Message: "Booking already confirmed"}

	assert.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, "Booking already confirmed", UserMessage(err))
	assert.Equal(t, ErrStaleState.Error(), UserMessage(ErrStaleState))
	assert.Equal(t, "", UserMessage(nil))
}
