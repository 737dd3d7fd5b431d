package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Handlers struct {
	Bookings *BookingHandler
	Payments *PaymentHandler
	Hub      *Hub
}

// Mount registers every route under the auth middleware. Health stays public.
func Mount(router *gin.Engine, parser TokenParser, h Handlers, logger *logrus.Logger) {
	router.GET("/healthz", func(c *gin.Context) {
		respond(c, http.StatusOK, gin.H{"status": "ok"})
	})

	authed := router.Group("/", Authenticate(parser))
	h.Bookings.Register(authed.Group("/api/bookings"))
	h.Payments.Register(authed.Group("/api/payments"))
	if h.Hub != nil {
		authed.GET("/ws", func(c *gin.Context) {
			sess := sessionFrom(c)
			if err := h.Hub.Serve(c.Writer, c.Request, sess.User.ID); err != nil {
				logger.WithError(err).WithField("actor", sess.User.ID).Warn("websocket upgrade failed")
			}
		})
	}
}
