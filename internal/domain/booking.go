package domain

import "time"

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusAccepted  BookingStatus = "accepted"
	BookingStatusRejected  BookingStatus = "rejected"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
)

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusAccepted,
		BookingStatusRejected, BookingStatusCancelled, BookingStatusCompleted:
		return true
	}
	return false
}

// Closed reports whether the booking accepts no further negotiation or payment actions.
func (s BookingStatus) Closed() bool {
	return s == BookingStatusCancelled || s == BookingStatusRejected
}

// Settled reports statuses after which no negotiation round can be resolved.
func (s BookingStatus) Settled() bool {
	return s.Closed() || s == BookingStatusCompleted
}

// Active reports confirmed-like statuses; "accepted" is the legacy spelling of confirmed.
func (s BookingStatus) Active() bool {
	return s == BookingStatusConfirmed || s == BookingStatusAccepted
}

type PaymentStatus string

const (
	PaymentStatusUnpaid  PaymentStatus = "unpaid"
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

type ServiceType string

const (
	ServiceTypeSalon  ServiceType = "salon"
	ServiceTypeInHome ServiceType = "in-home"
)

func (t ServiceType) Valid() bool {
	return t == ServiceTypeSalon || t == ServiceTypeInHome
}

// Service is a priced line item copied onto a booking at selection time.
type Service struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type Coordinates struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

type Location struct {
	Coordinates Coordinates `json:"coordinates"`
	Address     string      `json:"address"`
}

// ProposedChanges is a staged, unconfirmed mutation of a booking.
type ProposedChanges struct {
	Date        time.Time   `json:"date"`
	ServiceType ServiceType `json:"serviceType"`
	Services    []Service   `json:"services"`
	ProposedBy  Role        `json:"proposedBy,omitempty"`
}

func (p *ProposedChanges) Clone() *ProposedChanges {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Services = append([]Service(nil), p.Services...)
	return &cp
}

type Booking struct {
	ID              string           `json:"id"`
	CustomerID      string           `json:"customerId"`
	BeauticianID    string           `json:"beauticianId"`
	Services        []Service        `json:"services"`
	ServiceType     ServiceType      `json:"serviceType"`
	Date            time.Time        `json:"date"`
	Location        *Location        `json:"location,omitempty"`
	Amount          float64          `json:"amount"`
	Status          BookingStatus    `json:"status"`
	PaymentStatus   PaymentStatus    `json:"paymentStatus"`
	Negotiation     Negotiation      `json:"negotiation"`
	ProposedChanges *ProposedChanges `json:"proposedChanges,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt,omitempty"`
}

// Clone returns a deep copy so callers can compute next snapshots without aliasing.
func (b *Booking) Clone() *Booking {
	if b == nil {
		return nil
	}
	cp := *b
	cp.Services = append([]Service(nil), b.Services...)
	if b.Location != nil {
		loc := *b.Location
		cp.Location = &loc
	}
	cp.ProposedChanges = b.ProposedChanges.Clone()
	return &cp
}

// Party returns the role the user plays on this booking, if any.
func (b *Booking) Party(userID string) (Role, bool) {
	switch userID {
	case "":
		return "", false
	case b.CustomerID:
		return RoleCustomer, true
	case b.BeauticianID:
		return RoleBeautician, true
	}
	return "", false
}

// SumServices is the plain float sum used for invariant checks; pricing uses exact decimals.
func SumServices(services []Service) float64 {
	var total float64
	for _, s := range services {
		total += s.Price
	}
	return total
}
