package domain

import "time"

type PaymentState string

const (
	PaymentStatePending   PaymentState = "pending"
	PaymentStateCompleted PaymentState = "completed"
	PaymentStateFailed    PaymentState = "failed"
)

func (s PaymentState) Terminal() bool {
	return s == PaymentStateCompleted || s == PaymentStateFailed
}

type Payment struct {
	ID        string       `json:"id"`
	BookingID string       `json:"bookingId"`
	Amount    float64      `json:"amount"`
	Phone     string       `json:"phone"`
	Status    PaymentState `json:"status"`
	MpesaCode string       `json:"mpesaCode,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

type Review struct {
	ID        string    `json:"id,omitempty"`
	BookingID string    `json:"bookingId"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// CatalogEntry is a beautician-published service. HasPrice is false when the catalog listed
// only the name.
type CatalogEntry struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	HasPrice bool    `json:"hasPrice"`
}

type Beautician struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Services []CatalogEntry `json:"services"`
	Location *Location      `json:"location,omitempty"`
}
