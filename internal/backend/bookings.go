package backend

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Domenick1991/glamexpress/internal/domain"
)

// CreateBookingInput is what the backend needs to store a new booking. Amount is already derived
// from Services.
type CreateBookingInput struct {
	BeauticianID string
	CustomerID   string
	Services     []domain.Service
	ServiceType  domain.ServiceType
	Date         time.Time
	Location     *domain.Location
	Amount       float64
}

func (c *Client) CreateBooking(ctx context.Context, in CreateBookingInput) (*domain.Booking, error) {
	req := createBookingRequest{
		BeauticianID: in.BeauticianID,
		CustomerID:   in.CustomerID,
		Services:     in.Services,
		ServiceType:  string(in.ServiceType),
		Date:         in.Date,
		Location:     locationToWire(in.Location),
		Amount:       in.Amount,
	}
	return c.bookingCall(ctx, http.MethodPost, "/api/bookings", req)
}

func (c *Client) ListBookings(ctx context.Context) ([]*domain.Booking, error) {
	var items []wireBooking
	if err := c.do(ctx, http.MethodGet, "/api/bookings", nil, nil, &items); err != nil {
		return nil, err
	}
	return decodeBookings(items)
}

// CustomerHistory lists the caller's past bookings as a customer.
func (c *Client) CustomerHistory(ctx context.Context) ([]*domain.Booking, error) {
	var items []wireBooking
	if err := c.do(ctx, http.MethodGet, "/api/bookings/customer/history", nil, nil, &items); err != nil {
		return nil, err
	}
	return decodeBookings(items)
}

func (c *Client) GetBooking(ctx context.Context, id string) (*domain.Booking, error) {
	return c.bookingCall(ctx, http.MethodGet, "/api/bookings/"+pathID(id), nil)
}

func (c *Client) UpdateStatus(ctx context.Context, id string, status domain.BookingStatus) (*domain.Booking, error) {
	return c.bookingCall(ctx, http.MethodPatch, "/api/bookings/"+pathID(id), statusRequest{Status: string(status)})
}

func (c *Client) ProposeChanges(ctx context.Context, id string, changes domain.ProposedChanges) (*domain.Booking, error) {
	req := proposeRequest{
		Date:        changes.Date,
		ServiceType: string(changes.ServiceType),
		Services:    changes.Services,
	}
	return c.bookingCall(ctx, http.MethodPut, "/api/bookings/"+pathID(id)+"/propose-changes", req)
}

func (c *Client) AcceptNegotiation(ctx context.Context, id string) (*domain.Booking, error) {
	return c.bookingCall(ctx, http.MethodPatch, "/api/bookings/"+pathID(id)+"/accept-negotiation", nil)
}

func (c *Client) RejectNegotiation(ctx context.Context, id string) (*domain.Booking, error) {
	return c.bookingCall(ctx, http.MethodPatch, "/api/bookings/"+pathID(id)+"/reject-negotiation", nil)
}

func (c *Client) DeleteBooking(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/bookings/"+pathID(id), nil, nil, nil)
}

func (c *Client) CreateReview(ctx context.Context, review domain.Review) (*domain.Review, error) {
	var w wireReview
	req := reviewRequest{BookingID: review.BookingID, Rating: review.Rating, Comment: review.Comment}
	if err := c.do(ctx, http.MethodPost, "/api/reviews", nil, req, &w); err != nil {
		return nil, err
	}
	out := &domain.Review{
		ID:        w.MongoID,
		BookingID: w.BookingID.ID,
		Rating:    w.Rating,
		Comment:   w.Comment,
		CreatedAt: w.CreatedAt,
	}
	if out.BookingID == "" {
		out.BookingID = review.BookingID
	}
	return out, nil
}

func (c *Client) GetBeautician(ctx context.Context, id string) (*domain.Beautician, error) {
	var w wireBeautician
	if err := c.do(ctx, http.MethodGet, "/api/beauticians/"+pathID(id), nil, nil, &w); err != nil {
		return nil, err
	}
	b, err := w.toDomain()
	if err != nil {
		return nil, err
	}
	if b.ID == "" {
		b.ID = id
	}
	return b, nil
}

// bookingCall returns the booking the backend answered with. A mutation acknowledged without a
// body yields (nil, nil) and the caller re-reads the booking.
func (c *Client) bookingCall(ctx context.Context, method, path string, body interface{}) (*domain.Booking, error) {
	var w wireBooking
	if err := c.do(ctx, method, path, nil, body, &w); err != nil {
		if method != http.MethodGet && errors.Is(err, errNoData) {
			return nil, nil
		}
		return nil, err
	}
	return w.toDomain()
}
