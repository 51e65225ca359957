// Package api hosts the HTTP server, middleware wiring, and REST handlers.
// Notable routes:
//   - GET /healthz and /readyz for liveness and readiness checks.
//   - GET /metrics for Prometheus scraping.
//   - /api/scraper/... for field mappings, single-URL scraping, quick batches
//     and the streamed CSV ingest (server-sent events).
//   - GET /api/scraper/download-remaining-csv/{token} for the single-use
//     export left behind by a blocked job.
//   - GET /api/jobs and /api/jobs/{job_id} for ingest job history via the
//     store.JobRepository interface.
package api
