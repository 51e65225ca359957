// Package sinks implements progress.Sink consumers: structured logging,
// Prometheus job counters, and Pub/Sub job-summary notifications.
package sinks
