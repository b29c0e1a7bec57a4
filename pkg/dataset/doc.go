// Package dataset defines the in-memory representation of image build
// records and the read-only views the metrics engine consumes.
//
// # Overview
//
// A Dataset is an immutable snapshot of build records loaded by pkg/ingest.
// All operations return derived views or fresh slices; nothing mutates a
// Dataset in place. Records with a zero CreatedAt are treated as having no
// usable timestamp and are excluded from every time-based computation.
//
// # Selectors
//
// Aggregations that count distinct values of "some attribute" take a typed
// Selector instead of a column name:
//
//	counts, starts, err := metrics.DistinctPerMonth(ds, dataset.ByOrg)
//
// # Filtering
//
// FilterOrgs and FilterAccounts implement the org/user exclusion lists
// applied before any metrics are computed. Name patterns are matched
// case-insensitively against the start of the account name, and an account
// number that resolves to more than one directory entry is a hard error.
package dataset
