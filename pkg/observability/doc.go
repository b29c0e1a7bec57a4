// Package observability provides the logger and Prometheus metrics shared
// by the report CLI and the analytics daemon.
package observability
