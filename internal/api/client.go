// Package api implements the HTTP transport against the chat backend.
//
// Every non-success response is normalized into *Error; success with no
// body is a nil payload, never an error. An unauthorized response on an
// authenticated request additionally clears the stored credential.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-client/internal/credential"
	"github.com/capitalize-ai/chat-client/pkg/logger"
	"github.com/capitalize-ai/chat-client/pkg/metrics"
)

// Client issues requests against a configured backend base URL.
type Client struct {
	baseURL string
	http    *http.Client
	creds   credential.Store
	logger  *logger.Logger
	tracer  trace.Tracer
}

// New creates a backend client. A zero timeout disables the client-side
// deadline; failures then surface only through the context or the
// backend. The cookie jar keeps backend-set session cookies riding along
// independent of the bearer token.
func New(baseURL string, timeout time.Duration, creds credential.Store, log *logger.Logger) *Client {
	jar, _ := cookiejar.New(nil)

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		creds:  creds,
		logger: log,
		tracer: otel.Tracer("chat-client/api"),
	}
}

// request describes one backend call. Endpoint is the path template used
// for metrics labels; path is the concrete URL path.
type request struct {
	method       string
	endpoint     string
	path         string
	query        url.Values
	body         any
	form         url.Values
	requiresAuth bool
}

// do executes the request and returns the raw response body. Non-success
// responses come back as *Error; success with an empty body returns nil.
func (c *Client) do(ctx context.Context, req request) ([]byte, error) {
	u := c.baseURL + req.path
	if len(req.query) > 0 {
		u += "?" + req.query.Encode()
	}

	var reader io.Reader
	contentType := ""
	switch {
	case req.form != nil:
		reader = strings.NewReader(req.form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case req.body != nil:
		data, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
		contentType = "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if req.requiresAuth {
		if token, ok := c.creds.Get(); ok {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	correlationID := uuid.New().String()
	httpReq.Header.Set("X-Correlation-ID", correlationID)

	ctx, span := c.tracer.Start(ctx, "api.request",
		trace.WithAttributes(
			attribute.String("http.method", req.method),
			attribute.String("http.route", req.endpoint),
			attribute.String("correlation_id", correlationID),
		),
	)
	defer span.End()
	httpReq = httpReq.WithContext(ctx)

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		c.logger.Warn("request failed",
			zap.String("method", req.method),
			zap.String("endpoint", req.endpoint),
			zap.String("correlation_id", correlationID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%s %s: %w", req.method, req.endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	duration := time.Since(start)
	status := strconv.Itoa(resp.StatusCode)
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	metrics.RecordRequest(req.method, req.endpoint, status, duration.Seconds())

	c.logger.Debug("request completed",
		zap.String("method", req.method),
		zap.String("endpoint", req.endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", duration),
		zap.String("correlation_id", correlationID),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := normalizeError(resp.StatusCode, body)
		span.SetStatus(codes.Error, apiErr.Error())
		metrics.RecordError(req.endpoint, status)

		if apiErr.Unauthorized() && req.requiresAuth {
			if err := c.creds.Clear(); err != nil {
				c.logger.Warn("failed to clear credential", zap.Error(err))
			}
			metrics.CredentialInvalidations.Inc()
			c.logger.Info("credential cleared after unauthorized response",
				zap.String("endpoint", req.endpoint),
			)
		}
		return nil, apiErr
	}

	if resp.StatusCode == http.StatusNoContent || len(body) == 0 {
		return nil, nil
	}
	return body, nil
}

// decode unmarshals a response body into T. An empty body yields nil.
func decode[T any](body []byte) (*T, error) {
	if len(body) == 0 {
		return nil, nil
	}
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &v, nil
}
