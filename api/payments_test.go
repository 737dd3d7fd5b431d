package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/Domenick1991/glamexpress/internal/auth"
	"github.com/Domenick1991/glamexpress/internal/domain"
	"github.com/Domenick1991/glamexpress/internal/service/payment"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPaymentUseCase struct {
	mock.Mock
}

func (m *MockPaymentUseCase) Initiate(ctx context.Context, sess *auth.Session, bookingID, phone string, observer payment.Observer) (*domain.Payment, error) {
	args := m.Called(ctx, sess, bookingID, phone, observer)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockPaymentUseCase) Verify(ctx context.Context, sess *auth.Session, bookingID string) (*payment.Update, error) {
	args := m.Called(ctx, sess, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Update), args.Error(1)
}

func (m *MockPaymentUseCase) Cancel(sess *auth.Session, bookingID string) error {
	return m.Called(sess, bookingID).Error(0)
}

func (m *MockPaymentUseCase) History(ctx context.Context, sess *auth.Session) ([]*domain.Payment, error) {
	args := m.Called(ctx, sess)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Payment), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendToUser(userID string, msg Message) int {
	return m.Called(userID, msg).Int(0)
}

func TestPaymentHandler_initiate_PushesUpdates(t *testing.T) {
	mockService := &MockPaymentUseCase{}
	notifier := &MockNotifier{}
	handler := NewPaymentHandler(mockService, notifier)

	c, w := testContext(http.MethodPost, "/api/payments", initiatePaymentRequest{BookingID: "b-1", Phone: "0712345678"}, customerSession)

	pending := &domain.Payment{ID: "pay-1", BookingID: "b-1", Amount: 1500, Status: domain.PaymentStatePending}
	update := payment.Update{BookingID: "b-1", UserID: "cust-1", Payment: pending, State: payment.StatePolling, Attempt: 1}

	mockService.On("Initiate", mock.Anything, customerSession, "b-1", "0712345678", mock.Anything).
		Run(func(args mock.Arguments) {
			args.Get(4).(payment.Observer)(update)
		}).
		Return(pending, nil)
	notifier.On("SendToUser", "cust-1", Message{Type: paymentUpdateMessage, Data: update}).Return(1).Once()

	handler.initiate(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	var got domain.Payment
	require.NoError(t, json.Unmarshal(decodeResponse(t, w).Data, &got))
	assert.Equal(t, "pay-1", got.ID)
	notifier.AssertExpectations(t)
}

func TestPaymentHandler_initiate_InvalidPhone(t *testing.T) {
	mockService := &MockPaymentUseCase{}
	handler := NewPaymentHandler(mockService, nil)

	c, w := testContext(http.MethodPost, "/api/payments", initiatePaymentRequest{BookingID: "b-1", Phone: "123"}, customerSession)
	mockService.On("Initiate", mock.Anything, customerSession, "b-1", "123", mock.Anything).Return(nil, domain.ErrInvalidPhoneFormat)

	handler.initiate(c)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "invalid_phone_format", decodeResponse(t, w).Code)
}

func TestPaymentHandler_initiate_MissingFields(t *testing.T) {
	mockService := &MockPaymentUseCase{}
	handler := NewPaymentHandler(mockService, nil)

	c, w := testContext(http.MethodPost, "/api/payments", gin.H{"bookingId": "b-1"}, customerSession)

	handler.initiate(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockService.AssertNotCalled(t, "Initiate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPaymentHandler_verify(t *testing.T) {
	mockService := &MockPaymentUseCase{}
	handler := NewPaymentHandler(mockService, nil)

	c, w := testContext(http.MethodPost, "/api/payments/b-1/verify", nil, customerSession)
	c.Params = gin.Params{{Key: "bookingId", Value: "b-1"}}
	mockService.On("Verify", mock.Anything, customerSession, "b-1").Return(nil, domain.ErrVerifyInFlight)

	handler.verify(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "verify_in_flight", decodeResponse(t, w).Code)
}

func TestPaymentHandler_verify_Completed(t *testing.T) {
	mockService := &MockPaymentUseCase{}
	handler := NewPaymentHandler(mockService, nil)

	c, w := testContext(http.MethodPost, "/api/payments/b-1/verify", nil, customerSession)
	c.Params = gin.Params{{Key: "bookingId", Value: "b-1"}}
	mockService.On("Verify", mock.Anything, customerSession, "b-1").Return(&payment.Update{
		BookingID: "b-1",
		State:     payment.StateCompleted,
		Payment:   &domain.Payment{ID: "pay-1", Status: domain.PaymentStateCompleted, MpesaCode: "QK12ABC"},
	}, nil)

	handler.verify(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var got payment.Update
	require.NoError(t, json.Unmarshal(decodeResponse(t, w).Data, &got))
	assert.Equal(t, payment.StateCompleted, got.State)
	assert.Equal(t, "QK12ABC", got.Payment.MpesaCode)
}

func TestPaymentHandler_cancel(t *testing.T) {
	mockService := &MockPaymentUseCase{}
	handler := NewPaymentHandler(mockService, nil)

	c, w := testContext(http.MethodDelete, "/api/payments/b-1/poll", nil, customerSession)
	c.Params = gin.Params{{Key: "bookingId", Value: "b-1"}}
	mockService.On("Cancel", customerSession, "b-1").Return(nil).Once()

	handler.cancel(c)

	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertExpectations(t)
}

func TestPaymentHandler_history(t *testing.T) {
	mockService := &MockPaymentUseCase{}
	handler := NewPaymentHandler(mockService, nil)

	c, w := testContext(http.MethodGet, "/api/payments", nil, customerSession)
	mockService.On("History", mock.Anything, customerSession).Return(nil, &domain.BackendError{Kind: domain.ErrNetwork})

	handler.history(c)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "network_error", decodeResponse(t, w).Code)
}
