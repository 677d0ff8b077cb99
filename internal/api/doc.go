// Package api hosts the HTTP server, middleware, and handlers. Routes:
//   - GET / serves the embedded search page.
//   - POST /api/search streams one search as server-sent events.
//   - GET /api/searches, /api/searches/{id} and /api/searches/{id}/sites
//     read the search history.
//   - GET /healthz, /readyz and /metrics for probes and Prometheus.
package api
