// Package api hosts the HTTP server, middleware, and handlers of the screenshot
// service. Routes:
//   - GET / serves the browser UI.
//   - POST /screenshot captures a batch of URLs and returns one result per URL.
//   - GET /static/screenshots/* serves saved images (prefix is configurable).
//   - GET /healthz and /readyz for probes, GET /metrics for Prometheus.
package api
