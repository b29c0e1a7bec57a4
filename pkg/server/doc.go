// Package server exposes the computed metrics series over HTTP for
// dashboards and the summary-text tooling.
//
// The daemon holds one immutable dataset snapshot at a time; every request
// computes against the snapshot current when it arrived. Reloads swap the
// snapshot atomically and bump a version that keys both result caches (an
// in-process LRU and an optional Redis layer), so stale responses are never
// served after a reload.
package server
