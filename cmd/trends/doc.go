// Package main hosts the trends service entrypoint.
//
// Architecture overview:
//   - CLI: cmd defines `trends serve` and `trends fetch`. The root command loads
//     configuration through Viper and builds internal/app.App before any
//     subcommand runs.
//   - Acquisition: internal/trends.Scraper waits on the per-host limiter, then
//     tries the Chromedp renderer (when headless.enabled), a raw Colly request,
//     the RSS feed via gofeed, and best-effort salvage. Upstream network
//     failures produce the built-in sample topics.
//   - Extraction: internal/parser runs goquery strategies over the HTML. It
//     never fails; unknown markup yields no topics.
//   - Persistence: the HTML that produced a result can be stored as a snapshot
//     (memory/local/GCS). Served collections are optionally archived to Postgres
//     and announced on Pub/Sub without affecting the response.
//   - Observability: zap logs on stderr; Prometheus metrics on /metrics.
//
// Quick checklist:
//   - Env vars use the TRENDS_ prefix, e.g. TRENDS_SERVER_PORT,
//     TRENDS_HEADLESS_ENABLED, TRENDS_STORAGE_BACKEND, TRENDS_DB_DSN,
//     TRENDS_PUBSUB_PROJECT_ID and TRENDS_PUBSUB_TOPIC_NAME.
//   - Run locally: go run ./cmd/trends serve --config config.yaml
//   - One-off: go run ./cmd/trends fetch --geo US --hl en
package main
