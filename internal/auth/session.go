// Package auth turns a bearer token issued by the identity provider into an explicit Session
// that is passed to every backend call.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/glamexpress/internal/domain"
	jwt "github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	ID    string `json:"id"`
	Role  string `json:"role"`
	Name  string `json:"name"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Session is the authenticated caller. It is immutable once built.
type Session struct {
	Token     string
	User      domain.User
	ExpiresAt time.Time
}

func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// ErrNoSigningKey is returned by Parse when the parser was built without a secret.
var ErrNoSigningKey = errors.New("token signing key is not configured")

// Parser builds sessions from HS256 tokens signed with the identity provider's secret.
// The session user id authorizes local state such as payment polls and websocket
// subscriptions, so unsigned or foreign tokens are never accepted.
type Parser struct {
	secret []byte
	now    func() time.Time
}

type ParserOption func(*Parser)

func WithClock(now func() time.Time) ParserOption {
	return func(p *Parser) {
		p.now = now
	}
}

func NewParser(secret string, opts ...ParserOption) *Parser {
	p := &Parser{now: time.Now}
	if secret != "" {
		p.secret = []byte(secret)
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse validates the token and its claims. A role other than customer or beautician fails
// with domain.ErrInvalidRole.
func (p *Parser) Parse(token string) (*Session, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	if p.secret == nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, ErrNoSigningKey)
	}

	claims := &Claims{}
	t, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(p.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrUnauthorized
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !t.Valid {
		return nil, ErrInvalidToken
	}

	id := claims.ID
	if id == "" {
		id = claims.Subject
	}
	user := domain.User{ID: id, Name: claims.Name, Email: claims.Email}
	sess, err := Login(token, user, claims.Role)
	if err != nil {
		return nil, err
	}
	if claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time
	}
	if sess.Expired(p.now()) {
		return nil, domain.ErrUnauthorized
	}
	return sess, nil
}

// Login builds a session from a login response: the token plus the user the identity provider
// returned.
func Login(token string, user domain.User, role string) (*Session, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	r, err := domain.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("%w: got %q", err, role)
	}
	if user.ID == "" {
		return nil, fmt.Errorf("%w: missing user id", ErrInvalidToken)
	}
	user.Role = r
	return &Session{Token: token, User: user}, nil
}
