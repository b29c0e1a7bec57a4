// Package ingest loads build datasets from the places the dumps live: a
// pipe-delimited psql dump file, a composer PostgreSQL database, or an S3
// object, with an on-disk SQLite cache for parsed dumps.
//
// Ingestion is a thin boundary layer: it produces a dataset.Dataset and
// leaves all interpretation to pkg/metrics. Records whose timestamp cannot
// be parsed are kept with a zero CreatedAt, which the engine excludes from
// every window computation.
package ingest
