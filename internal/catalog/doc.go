// Package catalog defines the collection and item records produced by ingestion,
// together with the store contracts the ingestion pipeline depends on.
package catalog
