// Package backend is the REST client for the marketplace backend. Every call is made on behalf
// of an explicit auth.Session.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Domenick1991/glamexpress/internal/auth"
	"github.com/Domenick1991/glamexpress/internal/domain"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxResponseBytes = 4 << 20

// errNoData marks a successful response that carried no resource.
var errNoData = errors.New("empty response body")

// Factory holds what all sessions share: base URL, HTTP transport, logger.
type Factory struct {
	baseURL string
	http    *http.Client
	logger  *logrus.Logger
}

type Option func(*Factory)

func WithHTTPClient(c *http.Client) Option {
	return func(f *Factory) {
		f.http = c
	}
}

func WithTimeout(d time.Duration) Option {
	return func(f *Factory) {
		if d > 0 {
			f.http.Timeout = d
		}
	}
}

func WithLogger(l *logrus.Logger) Option {
	return func(f *Factory) {
		f.logger = l
	}
}

func NewFactory(baseURL string, opts ...Option) *Factory {
	f := &Factory{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Client binds the factory to one session.
func (f *Factory) Client(sess *auth.Session) *Client {
	return &Client{factory: f, session: sess}
}

type Client struct {
	factory *Factory
	session *auth.Session
}

type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	target := c.factory.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.session != nil && c.session.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.session.Token)
	}

	log := c.factory.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"method":     method,
		"path":       path,
	})

	start := time.Now()
	resp, err := c.factory.http.Do(req)
	if err != nil {
		log.WithError(err).Warn("backend request failed")
		return &domain.BackendError{Kind: domain.ErrNetwork, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		log.WithError(err).Warn("backend response truncated")
		return &domain.BackendError{Kind: domain.ErrNetwork, StatusCode: resp.StatusCode, Err: err}
	}
	log.WithFields(logrus.Fields{
		"status":   resp.StatusCode,
		"duration": time.Since(start).String(),
	}).Debug("backend request")

	return decode(resp.StatusCode, raw, out)
}

// decode unwraps the {success, data, message} envelope when present. Some endpoints answer with
// the bare resource, which is accepted as data.
func decode(status int, raw []byte, out interface{}) error {
	var env envelope
	enveloped := len(raw) > 0 && json.Unmarshal(raw, &env) == nil && env.Success != nil

	if status >= http.StatusBadRequest {
		msg := env.Message
		if msg == "" {
			msg = env.Error
		}
		return &domain.BackendError{Kind: kindForStatus(status), StatusCode: status, Message: msg}
	}
	if enveloped && !*env.Success {
		msg := env.Message
		if msg == "" {
			msg = env.Error
		}
		return &domain.BackendError{Kind: domain.ErrRejected, StatusCode: status, Message: msg}
	}
	if out == nil {
		return nil
	}

	data := json.RawMessage(raw)
	if enveloped {
		data = env.Data
	}
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return &domain.BackendError{Kind: domain.ErrNetwork, StatusCode: status, Err: errNoData}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &domain.BackendError{Kind: domain.ErrNetwork, StatusCode: status, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func kindForStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized:
		return domain.ErrUnauthorized
	case status == http.StatusForbidden:
		return domain.ErrInvalidActor
	case status == http.StatusNotFound:
		return domain.ErrNotFound
	case status == http.StatusConflict:
		return domain.ErrStaleState
	case status >= http.StatusInternalServerError:
		return domain.ErrNetwork
	}
	return domain.ErrRejected
}

func pathID(id string) string {
	return url.PathEscape(id)
}
