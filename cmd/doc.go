// Package cmd defines the CLI commands for the callify-backend executable.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, call, website analysis, and contact routes.
//     Requests are decoded, the caller's address is the remote peer (or a configured proxy hop), and domain
//     errors are mapped onto fixed JSON bodies.
//   - Call pipeline: internal/orchestrator checks the daily quota (internal/quota), resolves the newest stored
//     website analysis, synthesizes the spoken script, and dispatches it to Bland. Call logs and a Pub/Sub event
//     follow a successful dispatch; failures there never fail the call.
//   - Analysis: internal/analysis fetches the site text with Colly (paced per domain by x/time/rate), asks OpenAI
//     for a JSON description, snapshots the text to the blob store, and appends the record.
//   - Persistence: records live in memory, Postgres (pgx), or Firestore; quota counters may be moved to Redis.
//     Snapshots go to memory, local disk, or GCS.
//   - Configuration & plumbing: Viper reads config files and CALLIFY_* env vars (legacy secret names are bound
//     too); zap provides structured logging; Prometheus metrics are served on /metrics; OpenTelemetry spans wrap
//     each call placement.
//
// Operational notes:
//   - The quota gate fails open: when the store cannot be read or written the call is admitted and a warning logged.
//   - Retention: the serve command prunes old quota and analysis records on an interval when retention.enabled is
//     set; the cleanup command runs a single pass and exits.
//   - Cloud Run: the HTTP server listens on server.port, keeps no state outside the configured stores, and drains on
//     SIGTERM.
package cmd
