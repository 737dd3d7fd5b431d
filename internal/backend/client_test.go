package backend

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Domenick1991/glamexpress/internal/auth"
	"github.com/Domenick1991/glamexpress/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bookingJSON = `{
	"_id": "b-1",
	"customerId": {"_id": "cust-1", "name": "Achieng"},
	"beauticianId": "beau-1",
	"services": [{"name": "Braiding", "price": 1500}],
	"serviceType": "salon",
	"date": "2026-11-02T10:00:00.000Z",
	"location": {"coordinates": [36.8, -1.28], "address": "Ngong Rd"},
	"amount": 1500,
	"status": "pending",
	"paymentStatus": "unpaid",
	"negotiationStatus": "initial",
	"createdAt": "2026-10-30T08:00:00.000Z"
}`

func newTestClient(t *testing.T, routes func(r *gin.Engine)) *Client {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	f := NewFactory(srv.URL+"/", WithHTTPClient(srv.Client()), WithLogger(logger))
	return f.Client(&auth.Session{Token: "tok-1", User: domain.User{ID: "cust-1", Role: domain.RoleCustomer}})
}

func TestGetBooking_DecodesEnvelope(t *testing.T) {
	var gotAuth, gotRequestID string
	client := newTestClient(t, func(r *gin.Engine) {
		r.GET("/api/bookings/:id", func(c *gin.Context) {
			gotAuth = c.GetHeader("Authorization")
			gotRequestID = c.GetHeader("X-Request-ID")
			c.Data(http.StatusOK, "application/json", []byte(`{"success": true, "data": `+bookingJSON+`}`))
		})
	})

	b, err := client.GetBooking(context.Background(), "b-1")
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok-1", gotAuth)
	assert.NotEmpty(t, gotRequestID)
	assert.Equal(t, "b-1", b.ID)
	assert.Equal(t, "cust-1", b.CustomerID)
	assert.Equal(t, "beau-1", b.BeauticianID)
	assert.Equal(t, []domain.Service{{Name: "Braiding", Price: 1500}}, b.Services)
	assert.Equal(t, time.Date(2026, 11, 2, 10, 0, 0, 0, time.UTC), b.Date.UTC())
	assert.Equal(t, &domain.Location{Coordinates: domain.Coordinates{Longitude: 36.8, Latitude: -1.28}, Address: "Ngong Rd"}, b.Location)
	assert.Equal(t, domain.InitialNegotiation(), b.Negotiation)
	assert.Equal(t, domain.PaymentStatusUnpaid, b.PaymentStatus)
}

func TestCreateBooking_AcceptsBareResource(t *testing.T) {
	var got createBookingRequest
	client := newTestClient(t, func(r *gin.Engine) {
		r.POST("/api/bookings", func(c *gin.Context) {
			assert.NoError(t, c.ShouldBindJSON(&got))
			c.Data(http.StatusCreated, "application/json", []byte(bookingJSON))
		})
	})

	date := time.Date(2026, 11, 2, 10, 0, 0, 0, time.UTC)
	b, err := client.CreateBooking(context.Background(), CreateBookingInput{
		BeauticianID: "beau-1",
		CustomerID:   "cust-1",
		Services:     []domain.Service{{Name: "Braiding", Price: 1500}},
		ServiceType:  domain.ServiceTypeInHome,
		Date:         date,
		Location:     &domain.Location{Coordinates: domain.Coordinates{Longitude: 36.8, Latitude: -1.28}, Address: "Ngong Rd"},
		Amount:       1500,
	})
	require.NoError(t, err)
	assert.Equal(t, "b-1", b.ID)

	assert.Equal(t, "in-home", got.ServiceType)
	assert.Equal(t, []float64{36.8, -1.28}, got.Location.Coordinates)
	assert.Equal(t, 1500.0, got.Amount)
	assert.True(t, date.Equal(got.Date))
}

func TestProposeChanges_CollapsesChangesProposed(t *testing.T) {
	client := newTestClient(t, func(r *gin.Engine) {
		r.PUT("/api/bookings/:id/propose-changes", func(c *gin.Context) {
			c.Data(http.StatusOK, "application/json", []byte(`{"success": true, "data": {
				"_id": "b-1", "customerId": "cust-1", "beauticianId": "beau-1",
				"services": ["Braiding"], "serviceType": "salon", "amount": 0,
				"status": "pending", "paymentStatus": "unpaid",
				"negotiationStatus": "changes-proposed",
				"proposedChanges": {"date": "2026-11-04T14:30:00Z", "serviceType": "salon",
					"services": [{"name": "Braiding", "price": 1500}], "proposedBy": "beautician"}
			}}`))
		})
	})

	b, err := client.ProposeChanges(context.Background(), "b-1", domain.ProposedChanges{
		Date: time.Date(2026, 11, 4, 14, 30, 0, 0, time.UTC), ServiceType: domain.ServiceTypeSalon,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.AwaitingResponse(domain.RoleCustomer), b.Negotiation)
	require.NotNil(t, b.ProposedChanges)
	assert.Equal(t, domain.RoleBeautician, b.ProposedChanges.ProposedBy)
	assert.Equal(t, []domain.Service{{Name: "Braiding"}}, b.Services)
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		status int
		body   string
		kind   error
		msg    string
	}{
		{http.StatusBadRequest, `{"success": false, "message": "Booking already confirmed"}`, domain.ErrRejected, "Booking already confirmed"},
		{http.StatusUnauthorized, `{"message": "jwt expired"}`, domain.ErrUnauthorized, "jwt expired"},
		{http.StatusForbidden, `{"success": false, "message": "Not your booking"}`, domain.ErrInvalidActor, "Not your booking"},
		{http.StatusNotFound, ``, domain.ErrNotFound, ""},
		{http.StatusConflict, `{"error": "booking was modified"}`, domain.ErrStaleState, "booking was modified"},
		{http.StatusBadGateway, `<html>bad gateway</html>`, domain.ErrNetwork, ""},
		{http.StatusOK, `{"success": false, "message": "Cannot confirm"}`, domain.ErrRejected, "Cannot confirm"},
	}

	for _, tt := range cases {
		client := newTestClient(t, func(r *gin.Engine) {
			r.PATCH("/api/bookings/:id", func(c *gin.Context) {
				c.Data(tt.status, "application/json", []byte(tt.body))
			})
		})

		_, err := client.UpdateStatus(context.Background(), "b-1", domain.BookingStatusConfirmed)
		require.Error(t, err)
		assert.ErrorIs(t, err, tt.kind, tt.body)

		var be *domain.BackendError
		require.ErrorAs(t, err, &be)
		assert.Equal(t, tt.msg, be.Message)
		assert.Equal(t, tt.status, be.StatusCode)
	}
}

func TestTransportFailureIsNetworkError(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	client := NewFactory("http://127.0.0.1:1", WithLogger(logger), WithTimeout(time.Second)).Client(nil)

	_, err := client.ListBookings(context.Background())
	assert.ErrorIs(t, err, domain.ErrNetwork)
}

func TestMalformedBookingIsNetworkError(t *testing.T) {
	client := newTestClient(t, func(r *gin.Engine) {
		r.GET("/api/bookings", func(c *gin.Context) {
			c.Data(http.StatusOK, "application/json", []byte(`{"success": true, "data": [{"_id": "b-1", "status": "archived"}]}`))
		})
	})

	_, err := client.ListBookings(context.Background())
	assert.ErrorIs(t, err, domain.ErrNetwork)
}

func TestDeleteBooking(t *testing.T) {
	deleted := ""
	client := newTestClient(t, func(r *gin.Engine) {
		r.DELETE("/api/bookings/:id", func(c *gin.Context) {
			deleted = c.Param("id")
			c.JSON(http.StatusOK, gin.H{"success": true, "message": "Booking removed"})
		})
	})

	require.NoError(t, client.DeleteBooking(context.Background(), "b-9"))
	assert.Equal(t, "b-9", deleted)
}

func TestPayments(t *testing.T) {
	var initiated initiatePaymentRequest
	client := newTestClient(t, func(r *gin.Engine) {
		r.POST("/api/payments", func(c *gin.Context) {
			assert.NoError(t, c.ShouldBindJSON(&initiated))
			c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{
				"_id": "p-1", "amount": 1500, "phone": initiated.Phone, "status": "pending",
				"createdAt": "2026-11-01T10:00:00Z",
			}})
		})
		r.GET("/api/payments/:id/verify", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{
				"_id": c.Param("id"), "bookingId": gin.H{"_id": "b-1"}, "amount": 1500,
				"status": "completed", "mpesaReceiptNumber": "QKX81ABC",
			}})
		})
		r.GET("/api/payments", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"success": true, "data": []gin.H{
				{"_id": "p-1", "bookingId": "b-1", "status": "failed"},
			}})
		})
	})
	ctx := context.Background()

	p, err := client.InitiatePayment(ctx, "b-1", "+254712345678")
	require.NoError(t, err)
	assert.Equal(t, "+254712345678", initiated.Phone)
	assert.Equal(t, "b-1", initiated.BookingID)
	assert.Equal(t, "b-1", p.BookingID)
	assert.Equal(t, domain.PaymentStatePending, p.Status)
	assert.False(t, p.Timestamp.IsZero())

	v, err := client.VerifyPayment(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStateCompleted, v.Status)
	assert.Equal(t, "QKX81ABC", v.MpesaCode)

	history, err := client.PaymentHistory(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.PaymentStateFailed, history[0].Status)
}

func TestGetBeautician_NormalizesCatalog(t *testing.T) {
	client := newTestClient(t, func(r *gin.Engine) {
		r.GET("/api/beauticians/:id", func(c *gin.Context) {
			c.Data(http.StatusOK, "application/json", []byte(`{"success": true, "data": {
				"_id": "beau-1", "userId": {"name": "Amina"},
				"services": ["Threading", {"name": "Manicure", "price": 500}]
			}}`))
		})
	})

	b, err := client.GetBeautician(context.Background(), "beau-1")
	require.NoError(t, err)
	assert.Equal(t, "Amina", b.Name)
	assert.Equal(t, []domain.CatalogEntry{{Name: "Threading"}, {Name: "Manicure", Price: 500, HasPrice: true}}, b.Services)
}

func TestGeocoding(t *testing.T) {
	client := newTestClient(t, func(r *gin.Engine) {
		r.GET("/api/location/geocode", func(c *gin.Context) {
			if c.Query("address") == "nowhere" {
				c.JSON(http.StatusOK, gin.H{})
				return
			}
			c.JSON(http.StatusOK, gin.H{"coordinates": gin.H{"lat": -1.28, "lng": 36.8}})
		})
		r.GET("/api/location/reverse-geocode", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "OK", "results": []gin.H{{"formatted_address": "Ngong Rd, Nairobi"}}})
		})
	})
	ctx := context.Background()

	at, err := client.Geocode(ctx, "Ngong Rd")
	require.NoError(t, err)
	assert.Equal(t, domain.Coordinates{Longitude: 36.8, Latitude: -1.28}, at)

	_, err = client.Geocode(ctx, "nowhere")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	addr, err := client.ReverseGeocode(ctx, at)
	require.NoError(t, err)
	assert.Equal(t, "Ngong Rd, Nairobi", addr)
}

func TestMutationWithoutBody(t *testing.T) {
	client := newTestClient(t, func(r *gin.Engine) {
		r.PATCH("/api/bookings/:id", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"success": true, "message": "Booking updated"})
		})
		r.GET("/api/bookings/:id", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"success": true})
		})
	})

	b, err := client.UpdateStatus(context.Background(), "b-1", domain.BookingStatusConfirmed)
	require.NoError(t, err)
	assert.Nil(t, b)

	_, err = client.GetBooking(context.Background(), "b-1")
	assert.ErrorIs(t, err, domain.ErrNetwork)
}
