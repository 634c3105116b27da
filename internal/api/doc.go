// Package api hosts the HTTP server, middleware, and REST handlers for the
// Callify frontend. Notable routes:
//   - GET /healthz and /readyz for container probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /call to place an outbound call, GET /call/{callId} for its status.
//   - POST /website-analysis to analyze a business website.
//   - POST /contact to relay a contact-form message.
package api
