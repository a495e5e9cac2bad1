// Package middleware provides http.RoundTripper decorators for outgoing
// calls to the remote API.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// RequestIDKey is the context key for the request ID of an outgoing call.
const RequestIDKey contextKey = "request_id"

// RequestIDHeader carries the request ID to the server.
const RequestIDHeader = "X-Request-ID"

// GetRequestID extracts the request ID from the context.
// Returns empty string if not found.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// RoundTripperFunc adapts a function to http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

// RoundTrip implements http.RoundTripper.
func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Middleware decorates a RoundTripper.
type Middleware func(http.RoundTripper) http.RoundTripper

// Chain wraps base with mws. The first middleware is the outermost.
func Chain(base http.RoundTripper, mws ...Middleware) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	for i := len(mws) - 1; i >= 0; i-- {
		base = mws[i](base)
	}
	return base
}

// TokenSource yields the bearer credential for the current session, or ""
// when there is none.
type TokenSource interface {
	Token() string
}

// BearerAuth attaches "Authorization: Bearer <token>" to every call while
// the source holds a token. The token is read per call, so a login or logout
// takes effect on the next request.
func BearerAuth(source TokenSource) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			token := source.Token()
			if token == "" {
				return next.RoundTrip(req)
			}

			// RoundTrippers must not modify the caller's request.
			req = req.Clone(req.Context())
			req.Header.Set("Authorization", "Bearer "+token)
			return next.RoundTrip(req)
		})
	}
}

// RequestID tags every call with a fresh X-Request-ID unless the caller
// already set one, and exposes it through the request context.
func RequestID() Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			id := req.Header.Get(RequestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}
			ctx := context.WithValue(req.Context(), RequestIDKey, id)
			req = req.Clone(ctx)
			req.Header.Set(RequestIDHeader, id)
			return next.RoundTrip(req)
		})
	}
}
