package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Domenick1991/glamexpress/internal/domain"
	"github.com/Domenick1991/glamexpress/internal/pricing"
)

// ref is a reference the backend sends either as a bare id or as a populated document.
type ref struct {
	ID   string
	Name string
}

func (r *ref) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		return json.Unmarshal(b, &r.ID)
	}
	var doc struct {
		MongoID string `json:"_id"`
		ID      string `json:"id"`
		Name    string `json:"name"`
		UserID  *struct {
			Name string `json:"name"`
		} `json:"userId"`
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}
	r.ID = doc.MongoID
	if r.ID == "" {
		r.ID = doc.ID
	}
	r.Name = doc.Name
	if r.Name == "" && doc.UserID != nil {
		r.Name = doc.UserID.Name
	}
	return nil
}

func (r ref) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.ID)
}

// wireLocation uses GeoJSON ordering: coordinates are [longitude, latitude].
type wireLocation struct {
	Coordinates []float64 `json:"coordinates"`
	Address     string    `json:"address"`
}

func locationToWire(l *domain.Location) *wireLocation {
	if l == nil {
		return nil
	}
	return &wireLocation{
		Coordinates: []float64{l.Coordinates.Longitude, l.Coordinates.Latitude},
		Address:     l.Address,
	}
}

func (w *wireLocation) toDomain() *domain.Location {
	if w == nil {
		return nil
	}
	loc := &domain.Location{Address: w.Address}
	if len(w.Coordinates) == 2 {
		loc.Coordinates = domain.Coordinates{Longitude: w.Coordinates[0], Latitude: w.Coordinates[1]}
	}
	return loc
}

type wireProposal struct {
	Date        time.Time       `json:"date"`
	ServiceType string          `json:"serviceType"`
	Services    json.RawMessage `json:"services"`
	ProposedBy  string          `json:"proposedBy,omitempty"`
}

type wireBooking struct {
	MongoID           string          `json:"_id"`
	ID                string          `json:"id"`
	CustomerID        ref             `json:"customerId"`
	BeauticianID      ref             `json:"beauticianId"`
	Services          json.RawMessage `json:"services"`
	ServiceType       string          `json:"serviceType"`
	Date              time.Time       `json:"date"`
	Location          *wireLocation   `json:"location"`
	Amount            float64         `json:"amount"`
	Status            string          `json:"status"`
	PaymentStatus     string          `json:"paymentStatus"`
	NegotiationStatus string          `json:"negotiationStatus"`
	ProposedChanges   *wireProposal   `json:"proposedChanges"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

func decodeServices(raw json.RawMessage) ([]domain.Service, error) {
	entries, err := pricing.DecodeCatalog(raw)
	if err != nil {
		return nil, err
	}
	services := make([]domain.Service, 0, len(entries))
	for _, e := range entries {
		services = append(services, domain.Service{Name: e.Name, Price: e.Price})
	}
	return services, nil
}

func malformed(format string, args ...interface{}) error {
	return &domain.BackendError{Kind: domain.ErrNetwork, Err: fmt.Errorf("malformed response: "+format, args...)}
}

func (w *wireBooking) toDomain() (*domain.Booking, error) {
	id := w.MongoID
	if id == "" {
		id = w.ID
	}
	if id == "" {
		return nil, malformed("booking without id")
	}

	status := domain.BookingStatus(w.Status)
	if !status.Valid() {
		return nil, malformed("booking %s has status %q", id, w.Status)
	}
	paymentStatus := domain.PaymentStatus(w.PaymentStatus)
	if paymentStatus == "" {
		paymentStatus = domain.PaymentStatusUnpaid
	}

	services, err := decodeServices(w.Services)
	if err != nil {
		return nil, malformed("booking %s services: %v", id, err)
	}

	b := &domain.Booking{
		ID:            id,
		CustomerID:    w.CustomerID.ID,
		BeauticianID:  w.BeauticianID.ID,
		Services:      services,
		ServiceType:   domain.ServiceType(w.ServiceType),
		Date:          w.Date,
		Location:      w.Location.toDomain(),
		Amount:        w.Amount,
		Status:        status,
		PaymentStatus: paymentStatus,
		CreatedAt:     w.CreatedAt,
		UpdatedAt:     w.UpdatedAt,
	}

	var proposer domain.Role
	if p := w.ProposedChanges; p != nil {
		proposer = domain.Role(p.ProposedBy)
		if !proposer.Valid() {
			proposer = ""
		}
		proposed, err := decodeServices(p.Services)
		if err != nil {
			return nil, malformed("booking %s proposed services: %v", id, err)
		}
		b.ProposedChanges = &domain.ProposedChanges{
			Date:        p.Date,
			ServiceType: domain.ServiceType(p.ServiceType),
			Services:    proposed,
			ProposedBy:  proposer,
		}
	}

	b.Negotiation, err = domain.ParseNegotiation(w.NegotiationStatus, proposer)
	if err != nil {
		return nil, malformed("booking %s: %v", id, err)
	}
	if !b.Negotiation.IsOpen() {
		b.ProposedChanges = nil
	} else if b.ProposedChanges != nil && b.Negotiation.Resolved() && b.ProposedChanges.ProposedBy == "" {
		b.ProposedChanges.ProposedBy = b.Negotiation.Awaiting.Counterpart()
	}
	return b, nil
}

func decodeBookings(items []wireBooking) ([]*domain.Booking, error) {
	out := make([]*domain.Booking, 0, len(items))
	for i := range items {
		b, err := items[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

type createBookingRequest struct {
	BeauticianID string           `json:"beauticianId"`
	CustomerID   string           `json:"customerId"`
	Services     []domain.Service `json:"services"`
	ServiceType  string           `json:"serviceType"`
	Date         time.Time        `json:"date"`
	Location     *wireLocation    `json:"location,omitempty"`
	Amount       float64          `json:"amount"`
}

type proposeRequest struct {
	Date        time.Time        `json:"date"`
	ServiceType string           `json:"serviceType"`
	Services    []domain.Service `json:"services"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type wirePayment struct {
	MongoID            string    `json:"_id"`
	ID                 string    `json:"id"`
	BookingID          ref       `json:"bookingId"`
	Amount             float64   `json:"amount"`
	Phone              string    `json:"phone"`
	Status             string    `json:"status"`
	MpesaCode          string    `json:"mpesaCode"`
	MpesaReceiptNumber string    `json:"mpesaReceiptNumber"`
	Timestamp          time.Time `json:"timestamp"`
	CreatedAt          time.Time `json:"createdAt"`
}

func (w *wirePayment) toDomain() (*domain.Payment, error) {
	id := w.MongoID
	if id == "" {
		id = w.ID
	}
	if id == "" {
		return nil, malformed("payment without id")
	}
	status := domain.PaymentState(w.Status)
	switch status {
	case domain.PaymentStatePending, domain.PaymentStateCompleted, domain.PaymentStateFailed:
	default:
		return nil, malformed("payment %s has status %q", id, w.Status)
	}
	p := &domain.Payment{
		ID:        id,
		BookingID: w.BookingID.ID,
		Amount:    w.Amount,
		Phone:     w.Phone,
		Status:    status,
		MpesaCode: w.MpesaCode,
		Timestamp: w.Timestamp,
	}
	if p.MpesaCode == "" {
		p.MpesaCode = w.MpesaReceiptNumber
	}
	if p.Timestamp.IsZero() {
		p.Timestamp = w.CreatedAt
	}
	return p, nil
}

type initiatePaymentRequest struct {
	BookingID string `json:"bookingId"`
	Phone     string `json:"phone"`
}

type wireBeautician struct {
	MongoID  string          `json:"_id"`
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	UserID   ref             `json:"userId"`
	Services json.RawMessage `json:"services"`
	Location *wireLocation   `json:"location"`
}

func (w *wireBeautician) toDomain() (*domain.Beautician, error) {
	id := w.MongoID
	if id == "" {
		id = w.ID
	}
	catalog, err := pricing.DecodeCatalog(w.Services)
	if err != nil {
		return nil, malformed("beautician %s services: %v", id, err)
	}
	name := w.Name
	if name == "" {
		name = w.UserID.Name
	}
	return &domain.Beautician{ID: id, Name: name, Services: catalog, Location: w.Location.toDomain()}, nil
}

type reviewRequest struct {
	BookingID string `json:"bookingId"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
}

type wireReview struct {
	MongoID   string    `json:"_id"`
	BookingID ref       `json:"bookingId"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}
