package api

import (
	"strings"
	"time"

	"github.com/Domenick1991/glamexpress/internal/auth"
	"github.com/Domenick1991/glamexpress/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	sessionKey   = "session"
	requestIDKey = "request_id"
)

// TokenParser turns a bearer token into a session.
type TokenParser interface {
	Parse(token string) (*auth.Session, error)
}

// Authenticate requires a bearer token in the Authorization header, or in ?token= for clients
// that cannot set headers.
func Authenticate(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			writeError(c, domain.ErrUnauthorized)
			return
		}
		sess, err := parser.Parse(token)
		if err != nil {
			writeError(c, err)
			return
		}
		c.Set(sessionKey, sess)
		c.Next()
	}
}

func sessionFrom(c *gin.Context) *auth.Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	sess, _ := v.(*auth.Session)
	return sess
}

// RequestLogger tags each request with an id and logs it once it completes.
func RequestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Header("X-Request-ID", requestID)

		start := time.Now()
		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"duration":   time.Since(start).String(),
		})
		if sess := sessionFrom(c); sess != nil {
			entry = entry.WithField("actor", sess.User.ID)
		}
		switch {
		case c.Writer.Status() >= 500:
			entry.Error("request failed")
		case c.Writer.Status() >= 400:
			entry.Warn("request rejected")
		default:
			entry.Info("request")
		}
	}
}
