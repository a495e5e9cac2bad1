// Package api is the JSON-over-HTTP transport to the storefront backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mmynk/storefront/internal/apperr"
	"github.com/mmynk/storefront/internal/cache"
	"github.com/mmynk/storefront/internal/middleware"
)

const tracerName = "github.com/mmynk/storefront/internal/api"

// Client issues calls against the backend base URL. Every call carries the
// session's bearer token when there is one.
type Client struct {
	baseURL        *url.URL
	http           *http.Client
	tracer         trace.Tracer
	logger         *slog.Logger
	onUnauthorized func(context.Context)
}

var _ cache.Fetcher = (*Client)(nil)

type options struct {
	transport      http.RoundTripper
	timeout        time.Duration
	tracerProvider trace.TracerProvider
	logger         *slog.Logger
	onUnauthorized func(context.Context)
}

// Option configures a Client.
type Option func(*options)

// WithTransport sets the underlying transport. Defaults to
// http.DefaultTransport.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		o.transport = rt
	}
}

// WithTimeout bounds every call. Zero, the default, means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithTracerProvider sets the provider spans are created from. Defaults to
// the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithUnauthorizedHandler sets the function run when the backend answers
// 401, before the error is returned.
func WithUnauthorizedHandler(fn func(context.Context)) Option {
	return func(o *options) {
		o.onUnauthorized = fn
	}
}

// New creates a Client for baseURL reading bearer tokens from tokens.
func New(baseURL string, tokens middleware.TokenSource, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("failed to parse base URL: unsupported scheme %q", u.Scheme)
	}

	o := options{
		tracerProvider: otel.GetTracerProvider(),
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	transport := middleware.Chain(o.transport,
		middleware.RequestID(),
		middleware.BearerAuth(tokens),
		middleware.Logging(o.logger),
	)

	return &Client{
		baseURL:        u,
		http:           &http.Client{Transport: transport, Timeout: o.timeout},
		tracer:         o.tracerProvider.Tracer(tracerName),
		logger:         o.logger,
		onUnauthorized: o.onUnauthorized,
	}, nil
}

// Fetch performs call and returns the raw JSON response body. Failures are
// classified: a transport failure is a network error, 401 an auth error and
// any other status of 400 or above a server error carrying the body's
// message.
func (c *Client) Fetch(ctx context.Context, call cache.Call) (json.RawMessage, error) {
	method := call.Method
	if method == "" {
		method = http.MethodGet
	}

	ctx, span := c.tracer.Start(ctx, method+" "+call.Endpoint,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", call.Endpoint),
		),
	)
	defer span.End()

	data, status, err := c.do(ctx, method, call)
	if status != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", status))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, apperr.UserMessage(err))
		return nil, err
	}
	return data, nil
}

func (c *Client) do(ctx context.Context, method string, call cache.Call) (json.RawMessage, int, error) {
	u := c.baseURL.JoinPath(call.Endpoint)
	u.RawQuery = call.Params.Encode()

	var body io.Reader
	if call.Body != nil {
		payload, err := json.Marshal(call.Body)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, 0, ctxErr
		}
		return nil, 0, apperr.Network(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, apperr.Network(fmt.Errorf("failed to read response body: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		if c.onUnauthorized != nil {
			c.onUnauthorized(ctx)
		}
		return nil, resp.StatusCode, apperr.Auth(resp.StatusCode, errorMessage(raw))
	case resp.StatusCode >= 400:
		return nil, resp.StatusCode, apperr.Server(resp.StatusCode, errorMessage(raw))
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return json.RawMessage("null"), resp.StatusCode, nil
	}
	if !json.Valid(raw) {
		return nil, resp.StatusCode, apperr.Server(resp.StatusCode, "")
	}
	return json.RawMessage(raw), resp.StatusCode, nil
}

// errorMessage extracts the "message" field of an error body, or "" when
// the body carries none.
func errorMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	return strings.TrimSpace(body.Message)
}

// Decode unmarshals a response into T, passing through a prior error.
func Decode[T any](data json.RawMessage, err error) (T, error) {
	var v T
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, &apperr.Error{Kind: apperr.KindServer, Cause: fmt.Errorf("failed to decode response: %w", err)}
	}
	return v, nil
}
