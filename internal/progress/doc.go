// Package progress defines the events a bulk ingest reports while it runs, their
// wire encoding for streamed responses, and a non-blocking hub that fans events
// out to observability sinks (logs, Prometheus, Pub/Sub).
package progress
