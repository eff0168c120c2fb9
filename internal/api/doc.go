// Package api hosts the HTTP server, middleware, and REST handlers for the
// trends service. Notable routes:
//   - GET / for the endpoint index.
//   - GET /api/trends and /api/trends/download for collections.
//   - GET /api/health, /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
package api
