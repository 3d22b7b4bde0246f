// Package middleware holds the HTTP middleware of the dashboard API: request
// IDs, tracing and metrics, CORS, security headers, rate limiting and request
// validation.
package middleware
