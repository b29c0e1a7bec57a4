// Package metrics implements the time-windowed aggregation and
// org-activity-classification engine over a build dataset.
//
// # Overview
//
// Every function is a pure computation over an immutable dataset snapshot:
//
//   - bucketing a timestamp range into calendar months or fixed periods
//   - counting distinct attribute values per bucket and per sliding window
//   - cohort tracking (first-seen reduction, new vs. returning orgs)
//   - repeat-org and active-org classification
//   - derived ratios (DAU/MAU) and smoothing primitives
//
// All windows are half-open intervals [start, end). Records without a
// timestamp are excluded from every computation. An aggregation over a
// dataset with no timestamped records fails with ErrEmptyDataset; a window
// that happens to contain no records yields a zero count instead.
//
// # Boundary policies
//
// Two boundary behaviors are deliberate and relied on by callers:
//
//   - PeriodStarts drops a final partial period that would straddle the end
//     of the range. Pick the range end accordingly when full tail coverage
//     matters.
//   - RepeatOrgs rejects minBuilds < 2: with the gap-sum rule, minBuilds of
//     0 or 1 would classify every org with a single build as a repeat org.
package metrics
