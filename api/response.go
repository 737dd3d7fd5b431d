package api

import (
	"errors"
	"net/http"

	"github.com/Domenick1991/glamexpress/internal/auth"
	"github.com/Domenick1991/glamexpress/internal/domain"
	"github.com/gin-gonic/gin"
)

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Code    string      `json:"code,omitempty"`
}

type errorKind struct {
	err    error
	status int
	code   string
}

// errorKinds is checked in order; the first match wins.
var errorKinds = []errorKind{
	{auth.ErrInvalidToken, http.StatusUnauthorized, "invalid_token"},
	{domain.ErrUnauthorized, http.StatusUnauthorized, "session_expired"},
	{domain.ErrInvalidRole, http.StatusForbidden, "invalid_role"},
	{domain.ErrInvalidActor, http.StatusForbidden, "invalid_actor"},
	{domain.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{domain.ErrNoActiveProposal, http.StatusConflict, "no_active_proposal"},
	{domain.ErrStaleState, http.StatusConflict, "stale_state"},
	{domain.ErrActionInFlight, http.StatusConflict, "action_in_flight"},
	{domain.ErrVerifyInFlight, http.StatusConflict, "verify_in_flight"},
	{domain.ErrInvalidPhoneFormat, http.StatusUnprocessableEntity, "invalid_phone_format"},
	{domain.ErrServiceNotFound, http.StatusUnprocessableEntity, "service_not_found"},
	{domain.ErrInvalidProposal, http.StatusUnprocessableEntity, "invalid_proposal"},
	{domain.ErrNotRemovable, http.StatusUnprocessableEntity, "not_removable"},
	{domain.ErrNotEligible, http.StatusUnprocessableEntity, "not_eligible"},
	{domain.ErrPaymentTimeout, http.StatusGatewayTimeout, "payment_timeout"},
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrRejected, http.StatusBadRequest, "rejected"},
	{domain.ErrNetwork, http.StatusBadGateway, "network_error"},
}

func classify(err error) (int, string) {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.status, k.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

func respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, envelope{Success: true, Data: data})
}

func writeError(c *gin.Context, err error) {
	status, code := classify(err)
	c.AbortWithStatusJSON(status, envelope{Success: false, Message: domain.UserMessage(err), Code: code})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, envelope{Success: false, Message: err.Error(), Code: "bad_request"})
}
