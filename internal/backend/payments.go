package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Domenick1991/glamexpress/internal/domain"
)

// InitiatePayment asks the gateway to push an STK prompt to phone. The returned payment is pending.
func (c *Client) InitiatePayment(ctx context.Context, bookingID, phone string) (*domain.Payment, error) {
	var w wirePayment
	if err := c.do(ctx, http.MethodPost, "/api/payments", nil, initiatePaymentRequest{BookingID: bookingID, Phone: phone}, &w); err != nil {
		return nil, err
	}
	p, err := w.toDomain()
	if err != nil {
		return nil, err
	}
	if p.BookingID == "" {
		p.BookingID = bookingID
	}
	return p, nil
}

func (c *Client) VerifyPayment(ctx context.Context, paymentID string) (*domain.Payment, error) {
	var w wirePayment
	if err := c.do(ctx, http.MethodGet, "/api/payments/"+pathID(paymentID)+"/verify", nil, nil, &w); err != nil {
		return nil, err
	}
	return w.toDomain()
}

func (c *Client) PaymentHistory(ctx context.Context) ([]*domain.Payment, error) {
	var items []wirePayment
	if err := c.do(ctx, http.MethodGet, "/api/payments", nil, nil, &items); err != nil {
		return nil, err
	}
	out := make([]*domain.Payment, 0, len(items))
	for i := range items {
		p, err := items[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

type geocodeResponse struct {
	Coordinates *struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	} `json:"coordinates"`
}

type reverseGeocodeResponse struct {
	Address string `json:"address"`
	Status  string `json:"status"`
	Results []struct {
		FormattedAddress string `json:"formatted_address"`
	} `json:"results"`
}

// Geocode resolves a free-form address.
func (c *Client) Geocode(ctx context.Context, address string) (domain.Coordinates, error) {
	var resp geocodeResponse
	q := url.Values{"address": {address}}
	if err := c.do(ctx, http.MethodGet, "/api/location/geocode", q, nil, &resp); err != nil {
		return domain.Coordinates{}, err
	}
	if resp.Coordinates == nil {
		return domain.Coordinates{}, &domain.BackendError{Kind: domain.ErrNotFound, Message: "address could not be located"}
	}
	return domain.Coordinates{Longitude: resp.Coordinates.Lng, Latitude: resp.Coordinates.Lat}, nil
}

// ReverseGeocode resolves coordinates to a display address. The backend either answers with its
// own address field or passes the maps provider payload through.
func (c *Client) ReverseGeocode(ctx context.Context, at domain.Coordinates) (string, error) {
	var resp reverseGeocodeResponse
	q := url.Values{
		"lat": {strconv.FormatFloat(at.Latitude, 'f', -1, 64)},
		"lng": {strconv.FormatFloat(at.Longitude, 'f', -1, 64)},
	}
	if err := c.do(ctx, http.MethodGet, "/api/location/reverse-geocode", q, nil, &resp); err != nil {
		return "", err
	}
	if resp.Address != "" {
		return resp.Address, nil
	}
	if resp.Status == "OK" && len(resp.Results) > 0 {
		return resp.Results[0].FormattedAddress, nil
	}
	return "", &domain.BackendError{Kind: domain.ErrNotFound, Message: "unable to determine address from location"}
}
