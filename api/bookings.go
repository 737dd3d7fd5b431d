package api

import (
	"net/http"

	"github.com/Domenick1991/glamexpress/internal/domain"
	"github.com/Domenick1991/glamexpress/internal/service/booking"
	"github.com/gin-gonic/gin"
)

type BookingHandler struct {
	service booking.BookingUseCase
}

type statusRequest struct {
	Status domain.BookingStatus `json:"status" binding:"required"`
}

type reviewRequest struct {
	Rating  int    `json:"rating" binding:"required"`
	Comment string `json:"comment"`
}

func NewBookingHandler(service booking.BookingUseCase) *BookingHandler {
	return &BookingHandler{service: service}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.GET("", h.list)
	router.POST("", h.create)
	router.GET("/:id", h.get)
	router.PATCH("/:id", h.changeStatus)
	router.DELETE("/:id", h.remove)
	router.PUT("/:id/propose-changes", h.propose)
	router.PATCH("/:id/accept-negotiation", h.accept)
	router.PATCH("/:id/reject-negotiation", h.reject)
	router.POST("/:id/reviews", h.review)
}

func (h *BookingHandler) list(c *gin.Context) {
	bookings, err := h.service.List(c.Request.Context(), sessionFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusOK, bookings)
}

func (h *BookingHandler) create(c *gin.Context) {
	var req booking.CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	created, err := h.service.Create(c.Request.Context(), sessionFrom(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusCreated, created)
}

func (h *BookingHandler) get(c *gin.Context) {
	b, err := h.service.Get(c.Request.Context(), sessionFrom(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusOK, b)
}

func (h *BookingHandler) changeStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	b, err := h.service.ChangeStatus(c.Request.Context(), sessionFrom(c), c.Param("id"), req.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusOK, b)
}

func (h *BookingHandler) remove(c *gin.Context) {
	if err := h.service.Remove(c.Request.Context(), sessionFrom(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"id": c.Param("id")})
}

func (h *BookingHandler) propose(c *gin.Context) {
	var req booking.ProposeInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	b, err := h.service.Propose(c.Request.Context(), sessionFrom(c), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusOK, b)
}

func (h *BookingHandler) accept(c *gin.Context) {
	b, err := h.service.Accept(c.Request.Context(), sessionFrom(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusOK, b)
}

func (h *BookingHandler) reject(c *gin.Context) {
	b, err := h.service.Reject(c.Request.Context(), sessionFrom(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusOK, b)
}

func (h *BookingHandler) review(c *gin.Context) {
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	review, err := h.service.Review(c.Request.Context(), sessionFrom(c), booking.ReviewInput{
		BookingID: c.Param("id"),
		Rating:    req.Rating,
		Comment:   req.Comment,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusCreated, review)
}
