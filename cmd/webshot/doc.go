// Package main hosts the webshot service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server serves the browser UI at /, accepts batches on POST /screenshot,
//     and serves saved images from the screenshot directory under /static/screenshots.
//   - Capture pipeline: internal/capture.Pipeline launches one Chrome session per batch through the
//     chromedp launcher in internal/browser/headless, visits every URL in input order, and returns one
//     result per URL. Failures are isolated per URL; a browser that cannot start fails every URL.
//   - Persistence & fanout: PNGs land in the local screenshot directory and are mirrored to GCS when
//     storage.gcs_bucket is set. Results are optionally appended to Postgres and a batch summary is
//     published to Pub/Sub when a project and topic are configured.
//   - Configuration & plumbing: Viper populates config from env/files; zap provides structured logging;
//     Prometheus metrics are exported at /metrics.
//
// Operational notes:
//   - Concurrency model: batches are sequential by default. screenshot.concurrency > 1 opens that many
//     pages at once over the batch's shared browsing context while keeping result order.
//   - A batch keeps running if the client disconnects; server.request_timeout_seconds bounds it and marks
//     unvisited URLs as aborted.
//   - Containers usually need browser.no_sandbox=true. The process drains on SIGTERM.
//
// Quick checklist:
//   - Configure env vars: WEBSHOT_SERVER_PORT or PORT, WEBSHOT_BROWSER_HEADLESS, WEBSHOT_SCREENSHOT_DIR,
//     WEBSHOT_SCREENSHOT_CONCURRENCY, WEBSHOT_DB_DSN, WEBSHOT_PUBSUB_PROJECT_ID, WEBSHOT_STORAGE_GCS_BUCKET.
//   - Run locally: go run ./cmd/webshot -config config.yaml (or rely solely on env overrides).
package main
