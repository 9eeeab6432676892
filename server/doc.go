// Package server provides the intentflow HTTP server: Gin served over
// HTTP/1.1 and h2c, a middleware stack and JSON envelopes.
//
// # Middleware
//
// Built-in middleware (server/middleware):
//
//   - Recovery: panic recovery with structured logging
//   - RequestID: request id generation and propagation
//   - CORS: cross-origin resource sharing
//   - BodySizeLimit: request body limits
//   - RequestLogger: request logging with duration
//   - Metrics: OpenTelemetry request metrics
//   - RateLimit: per-client token buckets
//   - Auth: JWT bearer authentication and scope checks
//
// # Endpoints
//
// Built-in endpoints (server/endpoint): /health and /info. The execution
// API lives in server/api.
package server
