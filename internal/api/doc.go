// Package api hosts the HTTP surface of the corpus service. Routes:
//   - POST /chat answers one chat message.
//   - POST /v1/search returns ranked results.
//   - GET /v1/stats reports index and request statistics.
//   - GET /healthz and /readyz for liveness and readiness checks.
//   - GET /metrics for Prometheus scraping.
package api
