package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// Logging logs every outgoing call with its method, path, status and
// duration. Transport failures log at error level, error statuses at warn.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			start := time.Now()
			requestID := GetRequestID(req.Context())

			resp, err := next.RoundTrip(req)

			duration := time.Since(start).Milliseconds()
			switch {
			case err != nil:
				logger.Error("HTTP call failed",
					"method", req.Method,
					"path", req.URL.Path,
					"error", err,
					"request_id", requestID,
					"duration_ms", duration,
				)
			case resp.StatusCode >= 400:
				logger.Warn("HTTP error status",
					"method", req.Method,
					"path", req.URL.Path,
					"status", resp.StatusCode,
					"request_id", requestID,
					"duration_ms", duration,
				)
			default:
				logger.Debug("HTTP ok",
					"method", req.Method,
					"path", req.URL.Path,
					"status", resp.StatusCode,
					"request_id", requestID,
					"duration_ms", duration,
				)
			}

			return resp, err
		})
	}
}
