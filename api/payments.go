package api

import (
	"net/http"

	"github.com/Domenick1991/glamexpress/internal/service/payment"
	"github.com/gin-gonic/gin"
)

const paymentUpdateMessage = "payment_update"

// Notifier pushes messages to a user's open connections.
type Notifier interface {
	SendToUser(userID string, msg Message) int
}

type PaymentHandler struct {
	service  payment.PaymentUseCase
	notifier Notifier
}

type initiatePaymentRequest struct {
	BookingID string `json:"bookingId" binding:"required"`
	Phone     string `json:"phone" binding:"required"`
}

func NewPaymentHandler(service payment.PaymentUseCase, notifier Notifier) *PaymentHandler {
	return &PaymentHandler{service: service, notifier: notifier}
}

func (h *PaymentHandler) Register(router *gin.RouterGroup) {
	router.GET("", h.history)
	router.POST("", h.initiate)
	router.POST("/:bookingId/verify", h.verify)
	router.DELETE("/:bookingId/poll", h.cancel)
}

func (h *PaymentHandler) initiate(c *gin.Context) {
	var req initiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	p, err := h.service.Initiate(c.Request.Context(), sessionFrom(c), req.BookingID, req.Phone, h.push)
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusCreated, p)
}

func (h *PaymentHandler) verify(c *gin.Context) {
	update, err := h.service.Verify(c.Request.Context(), sessionFrom(c), c.Param("bookingId"))
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusOK, update)
}

func (h *PaymentHandler) cancel(c *gin.Context) {
	if err := h.service.Cancel(sessionFrom(c), c.Param("bookingId")); err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"bookingId": c.Param("bookingId"), "state": payment.StateCancelled})
}

func (h *PaymentHandler) history(c *gin.Context) {
	payments, err := h.service.History(c.Request.Context(), sessionFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusOK, payments)
}

// push forwards poll updates to the browser that started the payment.
func (h *PaymentHandler) push(u payment.Update) {
	if h.notifier == nil {
		return
	}
	h.notifier.SendToUser(u.UserID, Message{Type: paymentUpdateMessage, Data: u})
}
